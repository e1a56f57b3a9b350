package database

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"propure/server/internal/models"
)

// MigrateSchema creates or updates every table the service uses.
func MigrateSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.PropertyRecord{},
		&models.DemographicSnapshot{},
		&models.SuburbMetrics{},
		&models.ScrapeLocation{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// NewTestDB opens a private in-memory SQLite database. Each call gets its own
// database, shared by all connections of the returned handle.
func NewTestDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}
