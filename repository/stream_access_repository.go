package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"RezoFM/model"

	"gorm.io/gorm"
)

// ErrDuplicate is returned when an insert hits a uniqueness constraint,
// e.g. a token collision during issuance.
var ErrDuplicate = errors.New("duplicate key")

// StreamAccessRepository manages wrapper-token records and their state
// transitions. Every transition method performs a single conditional UPDATE
// keyed on the expected current state and reports whether this caller won the
// edge, so concurrent attempts against the same record resolve to one winner.
type StreamAccessRepository interface {
	Create(ctx context.Context, access *model.StreamAccess) error
	GetByToken(ctx context.Context, token string, userID int64) (*model.StreamAccess, error)
	GetByShortToken(ctx context.Context, shortToken string, userID int64) (*model.StreamAccess, error)
	GetByOTPlayID(ctx context.Context, otPlayID string, userID int64) (*model.StreamAccess, error)
	GetBySubmitID(ctx context.Context, submitID string, userID int64) (*model.StreamAccess, error)
	// PendingAd returns the user's outstanding ad-gated record, if any.
	PendingAd(ctx context.Context, userID int64) (*model.StreamAccess, error)
	// UnwrappedCountSince counts the user's records unwrapped after the given
	// instant, regardless of how far past unwrapped they have since moved.
	UnwrappedCountSince(ctx context.Context, userID int64, since time.Time) (int64, error)
	MarkUnwrapped(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkAdPending(ctx context.Context, id int64, adID int64, submitID string) (bool, error)
	MarkAdAcknowledged(ctx context.Context, id int64) (bool, error)
}

// gormStreamAccessRepository implements StreamAccessRepository on GORM.
type gormStreamAccessRepository struct {
	db *gorm.DB
}

// NewGormStreamAccessRepository creates a new instance of gormStreamAccessRepository.
func NewGormStreamAccessRepository(db *gorm.DB) StreamAccessRepository {
	return &gormStreamAccessRepository{db: db}
}

func isDuplicateErr(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(strings.ToLower(err.Error()), "duplicate entry")
}

func (r *gormStreamAccessRepository) Create(ctx context.Context, access *model.StreamAccess) error {
	if err := r.db.WithContext(ctx).Create(access).Error; err != nil {
		if isDuplicateErr(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create stream access: %w", err)
	}
	return nil
}

// getOne looks up a single record scoped to the requesting user. The user
// scope is part of the query, not an afterthought: a token that exists but
// belongs to someone else is indistinguishable from one that does not exist.
func (r *gormStreamAccessRepository) getOne(ctx context.Context, userID int64, cond string, arg interface{}) (*model.StreamAccess, error) {
	var access model.StreamAccess
	err := r.db.WithContext(ctx).
		Where(cond, arg).
		Where("user_id = ?", userID).
		First(&access).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query stream access: %w", err)
	}
	return &access, nil
}

func (r *gormStreamAccessRepository) GetByToken(ctx context.Context, token string, userID int64) (*model.StreamAccess, error) {
	return r.getOne(ctx, userID, "token = ?", token)
}

func (r *gormStreamAccessRepository) GetByShortToken(ctx context.Context, shortToken string, userID int64) (*model.StreamAccess, error) {
	return r.getOne(ctx, userID, "short_token = ?", shortToken)
}

func (r *gormStreamAccessRepository) GetByOTPlayID(ctx context.Context, otPlayID string, userID int64) (*model.StreamAccess, error) {
	return r.getOne(ctx, userID, "ot_play_id = ?", otPlayID)
}

func (r *gormStreamAccessRepository) GetBySubmitID(ctx context.Context, submitID string, userID int64) (*model.StreamAccess, error) {
	return r.getOne(ctx, userID, "ad_submit_id = ?", submitID)
}

func (r *gormStreamAccessRepository) PendingAd(ctx context.Context, userID int64) (*model.StreamAccess, error) {
	var access model.StreamAccess
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND state = ?", userID, model.StateAdPending).
		Order("id").
		First(&access).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query pending ad: %w", err)
	}
	return &access, nil
}

func (r *gormStreamAccessRepository) UnwrappedCountSince(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.StreamAccess{}).
		Where("user_id = ? AND unwrapped_at IS NOT NULL AND unwrapped_at >= ?", userID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unwrapped accesses: %w", err)
	}
	return count, nil
}

// transition performs the conditional state update and reports whether a row moved.
func (r *gormStreamAccessRepository) transition(ctx context.Context, id int64, from []string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.StreamAccess{}).
		Where("id = ? AND state IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition stream access %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormStreamAccessRepository) MarkUnwrapped(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.transition(ctx, id, []string{model.StateIssued}, map[string]interface{}{
		"state":        model.StateUnwrapped,
		"unwrapped_at": at,
	})
}

func (r *gormStreamAccessRepository) MarkAdPending(ctx context.Context, id int64, adID int64, submitID string) (bool, error) {
	return r.transition(ctx, id, []string{model.StateUnwrapped}, map[string]interface{}{
		"state":        model.StateAdPending,
		"ad_id":        adID,
		"ad_submit_id": submitID,
	})
}

func (r *gormStreamAccessRepository) MarkAdAcknowledged(ctx context.Context, id int64) (bool, error) {
	return r.transition(ctx, id, []string{model.StateAdPending}, map[string]interface{}{
		"state": model.StateAdAcknowledged,
	})
}
