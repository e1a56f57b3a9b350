package scraping

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"propure/server/config"
	"propure/server/internal/models"
)

var (
	ErrSpiderFailed   = errors.New("spider failed")
	ErrNoDemographics = errors.New("no demographics returned")
)

// Spider modes.
const (
	ModeListings     = "listings"
	ModeDemographics = "demographics"
)

const maxMessageSize = 16 * 1024 * 1024

// SpiderManager runs the external scraper, one page or census lookup per
// process.
type SpiderManager struct {
	logger     *logrus.Logger
	command    string
	scriptPath string
}

// SpiderParams is written to the scraper's stdin as JSON.
type SpiderParams struct {
	Mode        string             `json:"mode"`
	Suburb      string             `json:"suburb"`
	State       string             `json:"state"`
	Postcode    string             `json:"postcode"`
	ListingType models.ListingType `json:"listing_type,omitempty"`
	Page        int                `json:"page,omitempty"`
	CensusYear  int                `json:"census_year,omitempty"`
}

// SpiderMessage is one JSON line of scraper output.
type SpiderMessage struct {
	Type string          `json:"type"` // "items", "complete", or "error"
	Data json.RawMessage `json:"data"`
}

type completeMessage struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	TotalItems int    `json:"total_items"`
}

type errorMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func NewSpiderManager(command, script string, logger *logrus.Logger) *SpiderManager {
	if logger == nil {
		logger = logrus.New()
	}
	if command == "" {
		command = "python3"
	}

	scriptPath := script
	if script != "" {
		if abs, err := filepath.Abs(script); err == nil {
			scriptPath = abs
		} else {
			logger.WithError(err).Error("Failed to get absolute path to spider script")
		}
	}

	return &SpiderManager{
		logger:     logger,
		command:    command,
		scriptPath: scriptPath,
	}
}

func NewSpiderManagerFromConfig(cfg *config.Config, logger *logrus.Logger) *SpiderManager {
	return NewSpiderManager(cfg.Scraper.Command, cfg.Scraper.Script, logger)
}

// ScrapeListings scrapes one results page of a listing type for a location.
func (m *SpiderManager) ScrapeListings(ctx context.Context, loc models.LocationRef, listingType models.ListingType, page int) ([]models.PropertyRecord, error) {
	params := SpiderParams{
		Mode:        ModeListings,
		Suburb:      loc.Suburb,
		State:       loc.State,
		Postcode:    loc.Postcode,
		ListingType: listingType,
		Page:        page,
	}
	logger := m.logger.WithFields(logrus.Fields{
		"suburb":       loc.Suburb,
		"state":        loc.State,
		"postcode":     loc.Postcode,
		"listing_type": listingType,
		"page":         page,
	})

	items, err := runSpider[models.PropertyRecord](ctx, m, params, logger)
	if err != nil {
		return nil, err
	}
	scrapedAt := time.Now().UTC()
	for i := range items {
		fillDefaults(&items[i], params, scrapedAt)
	}
	logger.WithField("items", len(items)).Info("Spider completed")
	return items, nil
}

// ScrapeDemographics fetches the census statistics of a location's postcode
// for one census year. A spider that yields nothing returns ErrNoDemographics.
func (m *SpiderManager) ScrapeDemographics(ctx context.Context, loc models.LocationRef, censusYear int) (*models.DemographicSnapshot, error) {
	params := SpiderParams{
		Mode:       ModeDemographics,
		Suburb:     loc.Suburb,
		State:      loc.State,
		Postcode:   loc.Postcode,
		CensusYear: censusYear,
	}
	logger := m.logger.WithFields(logrus.Fields{
		"postcode":    loc.Postcode,
		"census_year": censusYear,
	})

	items, err := runSpider[models.DemographicSnapshot](ctx, m, params, logger)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w for postcode %s", ErrNoDemographics, loc.Postcode)
	}

	snapshot := items[len(items)-1]
	snapshot.Postcode = loc.Postcode
	if snapshot.Suburb == "" {
		snapshot.Suburb = loc.Suburb
	}
	if snapshot.State == "" {
		snapshot.State = loc.State
	}
	if snapshot.CensusYear == 0 {
		snapshot.CensusYear = censusYear
	}
	if snapshot.ScrapedAt.IsZero() {
		snapshot.ScrapedAt = time.Now().UTC()
	}
	logger.Info("Spider completed")
	return &snapshot, nil
}

func runSpider[T any](ctx context.Context, m *SpiderManager, params SpiderParams, logger *logrus.Entry) ([]T, error) {
	logger.Info("Starting spider")

	inputData, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal spider parameters: %w", err)
	}

	var args []string
	if m.scriptPath != "" {
		args = append(args, m.scriptPath)
	}
	cmd := exec.CommandContext(ctx, m.command, args...)
	cmd.Stdin = bytes.NewReader(inputData)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start spider: %w", err)
	}

	items, parseErr := parseSpiderOutput[T](stdout, logger)
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		logger.WithField("stderr", msg).Warn("Spider wrote to stderr")
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if waitErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpiderFailed, waitErr)
	}
	return items, nil
}

// parseSpiderOutput collects the items of every "items" message. An "error"
// message fails the scrape; unparseable lines are logged and skipped.
func parseSpiderOutput[T any](r io.Reader, logger *logrus.Entry) ([]T, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)

	items := []T{}
	var spiderErr error
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg SpiderMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			logger.WithError(err).Error("Failed to parse spider message")
			continue
		}

		switch msg.Type {
		case "items":
			var batch []T
			if err := json.Unmarshal(msg.Data, &batch); err != nil {
				logger.WithError(err).Error("Failed to parse items")
				continue
			}
			items = append(items, batch...)

		case "complete":
			var complete completeMessage
			if err := json.Unmarshal(msg.Data, &complete); err != nil {
				logger.WithError(err).Error("Failed to parse completion message")
				continue
			}
			logger.WithFields(logrus.Fields{
				"status":      complete.Status,
				"message":     complete.Message,
				"total_items": complete.TotalItems,
			}).Debug("Spider reported completion")

		case "error":
			var errMsg errorMessage
			if err := json.Unmarshal(msg.Data, &errMsg); err != nil {
				errMsg.Message = string(msg.Data)
			}
			logger.WithField("message", errMsg.Message).Error("Spider error")
			spiderErr = fmt.Errorf("%w: %s", ErrSpiderFailed, errMsg.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read spider output: %w", err)
	}
	if spiderErr != nil {
		return nil, spiderErr
	}
	return items, nil
}

func fillDefaults(r *models.PropertyRecord, params SpiderParams, scrapedAt time.Time) {
	if r.Source == "" {
		r.Source = models.DefaultListingSource
	}
	if r.ListingType == "" {
		r.ListingType = params.ListingType
	}
	if r.Suburb == "" {
		r.Suburb = params.Suburb
	}
	if r.State == "" {
		r.State = params.State
	}
	if r.Postcode == "" {
		r.Postcode = params.Postcode
	}
	if r.ScrapedAt.IsZero() {
		r.ScrapedAt = scrapedAt
	}
}
