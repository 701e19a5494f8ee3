package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RezoFM/model"
)

// AdRepository defines the interface for audio advertisement operations.
type AdRepository interface {
	CreateAd(ctx context.Context, ad *model.AudioAd) (int64, error)
	GetAdByID(ctx context.Context, id int64) (*model.AudioAd, error)
	GetAllActiveAds(ctx context.Context) ([]*model.AudioAd, error)
	// RandomActiveAd returns one active ad chosen uniformly at random,
	// or nil when no active ad exists.
	RandomActiveAd(ctx context.Context) (*model.AudioAd, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// mysqlAdRepository implements AdRepository for MySQL.
type mysqlAdRepository struct {
	DB *sql.DB
}

// NewMySQLAdRepository creates a new instance of mysqlAdRepository.
func NewMySQLAdRepository(db *sql.DB) AdRepository {
	return &mysqlAdRepository{DB: db}
}

const adColumns = `id, title, audio_url, cover_url, nav_link, duration, skip_after, active, created_at, updated_at`

func scanAd(scan func(dest ...interface{}) error) (*model.AudioAd, error) {
	ad := &model.AudioAd{}
	var coverURL, navLink sql.NullString
	var duration, skipAfter sql.NullFloat64
	err := scan(&ad.ID, &ad.Title, &ad.AudioURL, &coverURL, &navLink,
		&duration, &skipAfter, &ad.Active, &ad.CreatedAt, &ad.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ad.CoverURL = coverURL.String
	ad.NavLink = navLink.String
	ad.Duration = float32(duration.Float64)
	ad.SkipAfter = float32(skipAfter.Float64)
	return ad, nil
}

// CreateAd registers a new advertisement.
func (r *mysqlAdRepository) CreateAd(ctx context.Context, ad *model.AudioAd) (int64, error) {
	query := `INSERT INTO audio_ads (title, audio_url, cover_url, nav_link, duration, skip_after, active, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for CreateAd: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	res, err := stmt.ExecContext(ctx, ad.Title, ad.AudioURL, ad.CoverURL, ad.NavLink,
		ad.Duration, ad.SkipAfter, ad.Active, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateAd: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateAd: %w", err)
	}
	return id, nil
}

// GetAdByID retrieves an ad by its ID.
func (r *mysqlAdRepository) GetAdByID(ctx context.Context, id int64) (*model.AudioAd, error) {
	query := `SELECT ` + adColumns + ` FROM audio_ads WHERE id = ?`
	row := r.DB.QueryRowContext(ctx, query, id)

	ad, err := scanAd(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Ad not found
		}
		return nil, fmt.Errorf("failed to scan ad by ID %d: %w", id, err)
	}
	return ad, nil
}

// GetAllActiveAds retrieves all active advertisements.
func (r *mysqlAdRepository) GetAllActiveAds(ctx context.Context) ([]*model.AudioAd, error) {
	query := `SELECT ` + adColumns + ` FROM audio_ads WHERE active = TRUE ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active ads: %w", err)
	}
	defer rows.Close()

	ads := make([]*model.AudioAd, 0)
	for rows.Next() {
		ad, err := scanAd(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad in GetAllActiveAds: %w", err)
		}
		ads = append(ads, ad)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in GetAllActiveAds: %w", err)
	}

	return ads, nil
}

// RandomActiveAd returns one active ad chosen uniformly at random.
func (r *mysqlAdRepository) RandomActiveAd(ctx context.Context) (*model.AudioAd, error) {
	query := `SELECT ` + adColumns + ` FROM audio_ads WHERE active = TRUE ORDER BY RAND() LIMIT 1`
	row := r.DB.QueryRowContext(ctx, query)

	ad, err := scanAd(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No active ads
		}
		return nil, fmt.Errorf("failed to scan random active ad: %w", err)
	}
	return ad, nil
}

// SetActive toggles an ad's active flag.
func (r *mysqlAdRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE audio_ads SET active = ?, updated_at = ? WHERE id = ?`
	_, err := r.DB.ExecContext(ctx, query, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to execute SetActive for ad ID %d: %w", id, err)
	}
	return nil
}
