// Package db stores the local mutation journal: an audit trail of every write
// the service sent to the remote API.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/gartstein/employees/internal/employees/db/models"
	e "github.com/gartstein/employees/internal/employees/errors"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultListLimit bounds ListMutations when no limit is given.
const DefaultListLimit = 50

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Driver string
	DSN    string
}

func NewRepository(cfg *Config) (*Repository, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: unknown journal driver %q", e.ErrInvalidInput, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.MutationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// RecordMutation stores a journal entry, assigning an id when missing.
func (r *Repository) RecordMutation(ctx context.Context, record *models.MutationRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *Repository) GetMutation(ctx context.Context, id uuid.UUID) (*models.MutationRecord, error) {
	var record models.MutationRecord
	result := r.db.WithContext(ctx).First(&record, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &record, nil
}

// ListMutations returns the most recent entries first.
func (r *Repository) ListMutations(ctx context.Context, limit int) ([]models.MutationRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var records []models.MutationRecord
	result := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
