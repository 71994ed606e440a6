package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"facebook-video-server/pkg/models"
)

// SQLiteStorage persists extraction history in a local SQLite database.
type SQLiteStorage struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewSQLiteStorage opens (and migrates) the database at path.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.AutoMigrate(&models.ExtractionRecord{}); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		logger: zerolog.New(os.Stdout).With().Timestamp().Str("component", "storage").Logger(),
	}, nil
}

// SaveExtraction records one extraction outcome.
func (s *SQLiteStorage) SaveExtraction(rec *models.ExtractionRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("error saving extraction record: %w", err)
	}
	return nil
}

// RecentExtractions returns the latest records, newest first.
func (s *SQLiteStorage) RecentExtractions(limit int) ([]models.ExtractionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []models.ExtractionRecord
	err := s.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("error querying extraction history: %w", err)
	}
	return records, nil
}

// Stats summarizes the stored history.
func (s *SQLiteStorage) Stats() (map[string]interface{}, error) {
	var total, resolved int64
	if err := s.db.Model(&models.ExtractionRecord{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("error counting records: %w", err)
	}
	err := s.db.Model(&models.ExtractionRecord{}).
		Where("strategy = ?", "resolver").Count(&resolved).Error
	if err != nil {
		return nil, fmt.Errorf("error counting resolver records: %w", err)
	}

	return map[string]interface{}{
		"total_extractions":    total,
		"resolver_extractions": resolved,
		"scraper_extractions":  total - resolved,
	}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
