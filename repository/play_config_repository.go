package repository

import (
	"context"
	"errors"
	"fmt"

	"RezoFM/model"

	"gorm.io/gorm"
)

// PlayConfigRepository reads and updates the global pay-rate configuration.
type PlayConfigRepository interface {
	// Latest returns the most recent configuration row, or nil when none exists.
	Latest(ctx context.Context) (*model.PlayConfiguration, error)
	Save(ctx context.Context, cfg *model.PlayConfiguration) error
}

// gormPlayConfigRepository implements PlayConfigRepository on GORM.
type gormPlayConfigRepository struct {
	db *gorm.DB
}

// NewGormPlayConfigRepository creates a new instance of gormPlayConfigRepository.
func NewGormPlayConfigRepository(db *gorm.DB) PlayConfigRepository {
	return &gormPlayConfigRepository{db: db}
}

func (r *gormPlayConfigRepository) Latest(ctx context.Context) (*model.PlayConfiguration, error) {
	var cfg model.PlayConfiguration
	err := r.db.WithContext(ctx).Order("id DESC").First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query play configuration: %w", err)
	}
	return &cfg, nil
}

func (r *gormPlayConfigRepository) Save(ctx context.Context, cfg *model.PlayConfiguration) error {
	if err := r.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return fmt.Errorf("failed to save play configuration: %w", err)
	}
	return nil
}
