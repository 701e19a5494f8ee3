package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RezoFM/model"
)

// SongRepository defines the interface for song catalog operations.
type SongRepository interface {
	CreateSong(ctx context.Context, song *model.Song) (int64, error)
	GetSongByID(ctx context.Context, id int64) (*model.Song, error)
	GetAllSongsByArtistID(ctx context.Context, artistID int64) ([]*model.Song, error)
	UpdateVariantPaths(ctx context.Context, songID int64, highQualityPath, lowBitratePath string) error
	UpdateDuration(ctx context.Context, songID int64, duration float32) error
}

// mysqlSongRepository implements SongRepository for MySQL.
type mysqlSongRepository struct {
	DB *sql.DB
}

// NewMySQLSongRepository creates a new instance of mysqlSongRepository.
func NewMySQLSongRepository(db *sql.DB) SongRepository {
	return &mysqlSongRepository{DB: db}
}

const songColumns = `id, artist_id, title, file_path, high_quality_path, low_bitrate_path, external_url, cover_art_path, duration, created_at, updated_at`

func scanSong(scan func(dest ...interface{}) error) (*model.Song, error) {
	song := &model.Song{}
	var highQuality, lowBitrate, externalURL, coverArt sql.NullString
	var duration sql.NullFloat64
	err := scan(&song.ID, &song.ArtistID, &song.Title, &song.FilePath,
		&highQuality, &lowBitrate, &externalURL, &coverArt, &duration,
		&song.CreatedAt, &song.UpdatedAt)
	if err != nil {
		return nil, err
	}
	song.HighQualityPath = highQuality.String
	song.LowBitratePath = lowBitrate.String
	song.ExternalURL = externalURL.String
	song.CoverArtPath = coverArt.String
	song.Duration = float32(duration.Float64)
	return song, nil
}

// CreateSong adds a new song to the catalog.
func (r *mysqlSongRepository) CreateSong(ctx context.Context, song *model.Song) (int64, error) {
	query := `INSERT INTO songs (artist_id, title, file_path, high_quality_path, low_bitrate_path, external_url, cover_art_path, duration, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for CreateSong: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	res, err := stmt.ExecContext(ctx, song.ArtistID, song.Title, song.FilePath,
		song.HighQualityPath, song.LowBitratePath, song.ExternalURL, song.CoverArtPath,
		song.Duration, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateSong: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateSong: %w", err)
	}
	return id, nil
}

// GetSongByID retrieves a song by its ID.
func (r *mysqlSongRepository) GetSongByID(ctx context.Context, id int64) (*model.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE id = ?`
	row := r.DB.QueryRowContext(ctx, query, id)

	song, err := scanSong(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Song not found
		}
		return nil, fmt.Errorf("failed to scan song by ID %d: %w", id, err)
	}
	return song, nil
}

// GetAllSongsByArtistID retrieves all songs belonging to an artist.
func (r *mysqlSongRepository) GetAllSongsByArtistID(ctx context.Context, artistID int64) ([]*model.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE artist_id = ? ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, artistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs for artist ID %d: %w", artistID, err)
	}
	defer rows.Close()

	songs := make([]*model.Song, 0)
	for rows.Next() {
		song, err := scanSong(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song in GetAllSongsByArtistID: %w", err)
		}
		songs = append(songs, song)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in GetAllSongsByArtistID: %w", err)
	}

	return songs, nil
}

// UpdateVariantPaths updates the quality variant object keys for a song.
func (r *mysqlSongRepository) UpdateVariantPaths(ctx context.Context, songID int64, highQualityPath, lowBitratePath string) error {
	query := `UPDATE songs SET high_quality_path = ?, low_bitrate_path = ?, updated_at = ? WHERE id = ?`
	_, err := r.DB.ExecContext(ctx, query, highQualityPath, lowBitratePath, time.Now(), songID)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateVariantPaths for song ID %d: %w", songID, err)
	}
	return nil
}

// UpdateDuration updates the probed duration for a song.
func (r *mysqlSongRepository) UpdateDuration(ctx context.Context, songID int64, duration float32) error {
	query := `UPDATE songs SET duration = ?, updated_at = ? WHERE id = ?`
	_, err := r.DB.ExecContext(ctx, query, duration, time.Now(), songID)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateDuration for song ID %d: %w", songID, err)
	}
	return nil
}
