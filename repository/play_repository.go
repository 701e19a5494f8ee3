package repository

import (
	"context"
	"fmt"
	"time"

	"RezoFM/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlayRepository records confirmed playbacks and serves payout aggregation.
type PlayRepository interface {
	// RecordPlay consumes the stream access and creates the play count in one
	// transaction. The consume edge is a conditional UPDATE from the given
	// states; when another request already consumed the record, nothing is
	// written and recorded is false.
	RecordPlay(ctx context.Context, accessID int64, play *model.PlayCount) (recorded bool, err error)
	// UpsertMonthlyListener refreshes the (user, artist) listener record.
	UpsertMonthlyListener(ctx context.Context, userID, artistID int64, playedAt time.Time) error
	// ArtistStats aggregates plays, income and trailing-28-day unique
	// listeners over an artist's whole catalog.
	ArtistStats(ctx context.Context, artistID int64, now time.Time) (*model.ArtistStats, error)
}

// gormPlayRepository implements PlayRepository on GORM.
type gormPlayRepository struct {
	db *gorm.DB
}

// NewGormPlayRepository creates a new instance of gormPlayRepository.
func NewGormPlayRepository(db *gorm.DB) PlayRepository {
	return &gormPlayRepository{db: db}
}

func (r *gormPlayRepository) RecordPlay(ctx context.Context, accessID int64, play *model.PlayCount) (bool, error) {
	recorded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.StreamAccess{}).
			Where("id = ? AND state IN ?", accessID,
				[]string{model.StateUnwrapped, model.StateAdAcknowledged}).
			Update("state", model.StateConsumed)
		if res.Error != nil {
			return fmt.Errorf("failed to consume stream access %d: %w", accessID, res.Error)
		}
		if res.RowsAffected != 1 {
			// Lost the consume race (or the record was never redeemed).
			// Nothing was written; the caller reports the conflict.
			return nil
		}

		if err := tx.Create(play).Error; err != nil {
			return fmt.Errorf("failed to create play count: %w", err)
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

func (r *gormPlayRepository) UpsertMonthlyListener(ctx context.Context, userID, artistID int64, playedAt time.Time) error {
	listener := model.MonthlyListener{
		UserID:       userID,
		ArtistID:     artistID,
		LastPlayedAt: playedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "artist_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_played_at"}),
		}).
		Create(&listener).Error
	if err != nil {
		return fmt.Errorf("failed to upsert monthly listener: %w", err)
	}
	return nil
}

func (r *gormPlayRepository) ArtistStats(ctx context.Context, artistID int64, now time.Time) (*model.ArtistStats, error) {
	stats := &model.ArtistStats{}

	row := r.db.WithContext(ctx).
		Model(&model.PlayCount{}).
		Select("COUNT(*), COALESCE(SUM(payout_amount), 0)").
		Where("song_id IN (?)", r.db.Table("songs").Select("id").Where("artist_id = ?", artistID)).
		Row()
	if err := row.Scan(&stats.TotalPlays, &stats.TotalIncome); err != nil {
		return nil, fmt.Errorf("failed to aggregate plays for artist %d: %w", artistID, err)
	}

	err := r.db.WithContext(ctx).
		Model(&model.MonthlyListener{}).
		Where("artist_id = ? AND last_played_at >= ?", artistID, now.AddDate(0, 0, -28)).
		Count(&stats.MonthlyListeners).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count monthly listeners for artist %d: %w", artistID, err)
	}

	return stats, nil
}
