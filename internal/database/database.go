package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"propure/server/config"
	"propure/server/internal/models"
)

const batchSize = 100

var ErrNotFound = errors.New("record not found")

type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func New(db *gorm.DB, logger *logrus.Logger) *Database {
	if logger == nil {
		logger = logrus.New()
	}
	return &Database{db: db, logger: logger}
}

// Open connects to the configured driver. SQLite files get WAL journaling and
// a busy timeout so concurrent suburb writers wait instead of failing.
func Open(cfg *config.Config, logger *logrus.Logger) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	default:
		dsn := cfg.Database.DSN
		if !strings.Contains(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, fmt.Errorf("failed to create database directory: %w", err)
				}
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Database.Driver, err)
	}

	logger.WithField("driver", cfg.Database.Driver).Info("Connected to database")
	return New(db, logger), nil
}

func (d *Database) DB() *gorm.DB {
	return d.db
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) Migrate() error {
	return MigrateSchema(d.db)
}

func locationFilter(locations []models.LocationRef) (string, []interface{}) {
	parts := make([]string, 0, len(locations))
	args := make([]interface{}, 0, len(locations)*3)
	for _, l := range locations {
		parts = append(parts, "(suburb = ? AND state = ? AND postcode = ?)")
		args = append(args, l.Suburb, config.NormalizeState(l.State), l.Postcode)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// FetchListings returns one page of listings of a type for any of the given
// locations. Pages are 1-based and ordered by id.
func (d *Database) FetchListings(ctx context.Context, q models.ListingQuery) (models.ListingPage, error) {
	page := models.ListingPage{Data: []models.PropertyRecord{}}
	if len(q.Locations) == 0 {
		return page, nil
	}
	if q.PageSize <= 0 {
		return page, fmt.Errorf("invalid page size %d", q.PageSize)
	}
	if q.Page < 1 {
		q.Page = 1
	}

	where, args := locationFilter(q.Locations)
	base := d.db.WithContext(ctx).
		Model(&models.PropertyRecord{}).
		Where("listing_type = ?", q.ListingType).
		Where(where, args...)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return page, fmt.Errorf("failed to count %s listings: %w", q.ListingType, err)
	}
	page.TotalPages = int(math.Ceil(float64(total) / float64(q.PageSize)))

	if err := base.Session(&gorm.Session{}).
		Order("id").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&page.Data).Error; err != nil {
		return page, fmt.Errorf("failed to fetch %s listings page %d: %w", q.ListingType, q.Page, err)
	}
	return page, nil
}

// DedupeListings keeps the last record per (source, external id), in the
// order each key was first seen. Records without an external id are dropped.
func DedupeListings(records []models.PropertyRecord) []models.PropertyRecord {
	index := make(map[string]int, len(records))
	out := make([]models.PropertyRecord, 0, len(records))
	for _, r := range records {
		if r.ExternalID == "" {
			continue
		}
		if r.Source == "" {
			r.Source = models.DefaultListingSource
		}
		r.ID = 0
		r.State = config.NormalizeState(r.State)

		if i, ok := index[r.DedupKey()]; ok {
			out[i] = r
			continue
		}
		index[r.DedupKey()] = len(out)
		out = append(out, r)
	}
	return out
}

// UpsertListings writes listings keyed by (source, external id) and returns
// how many were written. Running it twice with the same input is a no-op.
func (d *Database) UpsertListings(ctx context.Context, records []models.PropertyRecord) (int, error) {
	deduped := DedupeListings(records)
	if skipped := len(records) - len(deduped); skipped > 0 {
		d.logger.WithField("skipped", skipped).Debug("Dropped duplicate or unidentified listings")
	}
	if len(deduped) == 0 {
		return 0, nil
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
			UpdateAll: true,
		}).CreateInBatches(&deduped, batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert listings: %w", err)
	}
	return len(deduped), nil
}

// FetchDemographics returns every snapshot of a postcode, oldest first.
func (d *Database) FetchDemographics(ctx context.Context, postcode string) ([]models.DemographicSnapshot, error) {
	var snapshots []models.DemographicSnapshot
	if err := d.db.WithContext(ctx).
		Where("postcode = ?", postcode).
		Order("scraped_at ASC").
		Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch demographics for %s: %w", postcode, err)
	}
	return snapshots, nil
}

// UpsertDemographics stores a snapshot keyed by postcode and census year. An
// existing row is only replaced by a more recently scraped one. The census
// year defaults to the year of ScrapedAt. It reports whether a row was written.
func (d *Database) UpsertDemographics(ctx context.Context, s models.DemographicSnapshot) (bool, error) {
	s.Postcode = strings.TrimSpace(s.Postcode)
	if s.Postcode == "" {
		return false, errors.New("demographic snapshot requires a postcode")
	}
	if s.ScrapedAt.IsZero() {
		s.ScrapedAt = time.Now()
	}
	s.ScrapedAt = s.ScrapedAt.UTC()
	if s.CensusYear == 0 {
		s.CensusYear = s.ScrapedAt.Year()
	}
	s.ID = 0

	result := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "postcode"}, {Name: "census_year"}},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "excluded.scraped_at > demographic_snapshots.scraped_at"},
		}},
		UpdateAll: true,
	}).Create(&s)
	if result.Error != nil {
		return false, fmt.Errorf("failed to upsert demographics for %s: %w", s.Postcode, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// UpsertSuburbMetrics stores the latest metrics of a postcode, replacing any
// previous row for it.
func (d *Database) UpsertSuburbMetrics(ctx context.Context, m models.SuburbMetrics) error {
	if m.Postcode == "" {
		return errors.New("suburb metrics require a postcode")
	}
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	m.ID = 0

	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "postcode"}},
		UpdateAll: true,
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert metrics for %s: %w", m.Postcode, err)
	}
	return nil
}

func (d *Database) GetSuburbMetrics(ctx context.Context, postcode string) (*models.SuburbMetrics, error) {
	var m models.SuburbMetrics
	err := d.db.WithContext(ctx).Where("postcode = ?", postcode).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics for %s: %w", postcode, err)
	}
	return &m, nil
}

func (d *Database) ListSuburbMetrics(ctx context.Context) ([]models.SuburbMetrics, error) {
	var metrics []models.SuburbMetrics
	if err := d.db.WithContext(ctx).Order("postcode").Find(&metrics).Error; err != nil {
		return nil, fmt.Errorf("failed to list suburb metrics: %w", err)
	}
	return metrics, nil
}

func (d *Database) ListLocations(ctx context.Context) ([]models.ScrapeLocation, error) {
	var locations []models.ScrapeLocation
	if err := d.db.WithContext(ctx).Order("id").Find(&locations).Error; err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locations, nil
}

// UpsertLocation returns the stored location, creating it when new.
func (d *Database) UpsertLocation(ctx context.Context, loc models.ScrapeLocation) (*models.ScrapeLocation, error) {
	key := models.ScrapeLocation{
		Suburb:   strings.TrimSpace(loc.Suburb),
		State:    config.NormalizeState(loc.State),
		Postcode: strings.TrimSpace(loc.Postcode),
	}
	if key.Suburb == "" || key.State == "" || key.Postcode == "" {
		return nil, errors.New("location requires suburb, state and postcode")
	}

	var stored models.ScrapeLocation
	if err := d.db.WithContext(ctx).Where(key).FirstOrCreate(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert location %s: %w", key.Key(), err)
	}
	return &stored, nil
}

// SeedLocations inserts the locations that are not stored yet and returns
// how many were added.
func (d *Database) SeedLocations(ctx context.Context, locations []models.ScrapeLocation) (int, error) {
	if len(locations) == 0 {
		return 0, nil
	}
	rows := make([]models.ScrapeLocation, len(locations))
	for i, l := range locations {
		rows[i] = models.ScrapeLocation{Suburb: l.Suburb, State: config.NormalizeState(l.State), Postcode: l.Postcode}
	}

	result := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, batchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to seed locations: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
