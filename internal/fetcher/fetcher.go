// Package fetcher reads every page of a suburb's listings from the listing
// store.
package fetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"propure/server/internal/models"
)

// ListingSource serves one page of listings at a time.
type ListingSource interface {
	FetchListings(ctx context.Context, q models.ListingQuery) (models.ListingPage, error)
}

type PagedFetcher struct {
	source   ListingSource
	pageSize int
	logger   *logrus.Logger
}

func NewPagedFetcher(source ListingSource, pageSize int, logger *logrus.Logger) *PagedFetcher {
	if pageSize <= 0 {
		pageSize = 100
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &PagedFetcher{source: source, pageSize: pageSize, logger: logger}
}

// FetchAll reads page 1 to learn the page count, then the remaining pages
// concurrently. Any failed page fails the whole fetch. Order across pages is
// not preserved.
func (f *PagedFetcher) FetchAll(ctx context.Context, loc models.LocationRef, listingType models.ListingType) ([]models.PropertyRecord, error) {
	query := func(page int) models.ListingQuery {
		return models.ListingQuery{
			Locations:   []models.LocationRef{loc},
			ListingType: listingType,
			Page:        page,
			PageSize:    f.pageSize,
		}
	}

	first, err := f.source.FetchListings(ctx, query(1))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s listings page 1 for %s: %w", listingType, loc.Suburb, err)
	}

	records := append([]models.PropertyRecord(nil), first.Data...)
	if first.TotalPages <= 1 {
		return records, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for page := 2; page <= first.TotalPages; page++ {
		page := page
		g.Go(func() error {
			result, err := f.source.FetchListings(gctx, query(page))
			if err != nil {
				return fmt.Errorf("failed to fetch %s listings page %d for %s: %w", listingType, page, loc.Suburb, err)
			}
			mu.Lock()
			records = append(records, result.Data...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f.logger.WithFields(logrus.Fields{
		"suburb":       loc.Suburb,
		"postcode":     loc.Postcode,
		"listing_type": listingType,
		"pages":        first.TotalPages,
		"records":      len(records),
	}).Debug("Fetched all listing pages")

	return records, nil
}
