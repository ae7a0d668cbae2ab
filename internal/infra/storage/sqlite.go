package storage

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nft_market/internal/domain"
	"nft_market/internal/infra"
)

// KeyLastMode stores the last selected market mode.
const KeyLastMode = "market.mode"

// Storage persists the transaction journal and user settings. It implements domain.Journal.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at path.
// An empty path resolves to the application data directory.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		dir, err := infra.DataDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
		path = filepath.Join(dir, "data", "market.db")
	}

	if path != ":memory:" {
		if err := infra.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.TxRecord{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Journal Operations
// ======================================================================================

// Record appends or replaces a transaction outcome
func (s *Storage) Record(rec *domain.TxRecord) error {
	return s.db.Save(rec).Error
}

// GetRecord retrieves one journal entry by ID
func (s *Storage) GetRecord(id string) (*domain.TxRecord, error) {
	var rec domain.TxRecord
	err := s.db.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &rec, err
}

// ListRecords returns the most recent entries first. limit <= 0 returns everything.
func (s *Storage) ListRecords(limit int) ([]domain.TxRecord, error) {
	var recs []domain.TxRecord
	q := s.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

// ListByAction filters the journal by action kind
func (s *Storage) ListByAction(action domain.Action) ([]domain.TxRecord, error) {
	var recs []domain.TxRecord
	err := s.db.Where("action = ?", string(action)).Order("created_at DESC").Find(&recs).Error
	return recs, err
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a user configuration
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// LoadConfig returns one setting. ok is false when the key is unset.
func (s *Storage) LoadConfig(key string) (value string, ok bool, err error) {
	var cfg domain.AppConfig
	err = s.db.Where(&domain.AppConfig{Key: key}).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return cfg.Value, true, nil
}

// LoadConfigMap loads all user configurations as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}

// SaveMode remembers the selected market mode
func (s *Storage) SaveMode(mode domain.Mode) error {
	return s.SaveConfig(KeyLastMode, mode.String())
}

// LoadMode returns the remembered mode, if any
func (s *Storage) LoadMode() (domain.Mode, bool, error) {
	v, ok, err := s.LoadConfig(KeyLastMode)
	if err != nil || !ok {
		return domain.ModeSimulation, false, err
	}
	mode, err := domain.ParseMode(v)
	if err != nil {
		return domain.ModeSimulation, false, nil
	}
	return mode, true, nil
}
