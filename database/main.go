package database

import (
	"fmt"
	"time"

	"hlsfrag/models"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store persists fetched payloads and implements models.FileCache.
type Store struct {
	db *gorm.DB
}

func Open(driver string, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	if driver == "sqlite" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := db.AutoMigrate(&models.CachedFile{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key string) (*models.CachedFile, bool, error) {
	var file models.CachedFile
	err := s.db.Where("cache_key = ?", key).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached file: %w", err)
	}
	return &file, true, nil
}

func (s *Store) Put(file *models.CachedFile) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "content_type", "size", "data", "updated_at"}),
	}).Create(file).Error
	if err != nil {
		return fmt.Errorf("failed to store cached file: %w", err)
	}
	return nil
}

// Purge removes entries older than maxAge.
func (s *Store) Purge(maxAge time.Duration) (int64, error) {
	result := s.db.Unscoped().
		Where("updated_at < ?", time.Now().Add(-maxAge)).
		Delete(&models.CachedFile{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
