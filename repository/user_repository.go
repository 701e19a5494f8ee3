package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RezoFM/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePreferences(ctx context.Context, id int64, plan, streamQuality string) error
}

// mysqlUserRepository implements UserRepository for MySQL.
type mysqlUserRepository struct {
	DB *sql.DB
}

// NewMySQLUserRepository creates a new instance of mysqlUserRepository.
func NewMySQLUserRepository(db *sql.DB) UserRepository {
	return &mysqlUserRepository{DB: db}
}

const userColumns = `id, username, email, password_hash, plan, stream_quality, is_artist, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Plan, &user.StreamQuality, &user.IsArtist, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

// CreateUser adds a new user to the database.
func (r *mysqlUserRepository) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	query := `INSERT INTO users (username, email, password_hash, plan, stream_quality, is_artist, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for CreateUser: %w", err)
	}
	defer stmt.Close()

	if user.Plan == "" {
		user.Plan = model.PlanFree
	}
	if user.StreamQuality == "" {
		user.StreamQuality = model.QualityStandard
	}

	now := time.Now()
	res, err := stmt.ExecContext(ctx, user.Username, user.Email, user.PasswordHash,
		user.Plan, user.StreamQuality, user.IsArtist, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateUser: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateUser: %w", err)
	}
	return id, nil
}

// GetUserByID retrieves a user by ID.
func (r *mysqlUserRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.DB.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (r *mysqlUserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return scanUser(r.DB.QueryRowContext(ctx, query, username))
}

// GetUserByEmail retrieves a user by email.
func (r *mysqlUserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(r.DB.QueryRowContext(ctx, query, email))
}

// UpdatePreferences updates the subscription plan and stream quality preference.
func (r *mysqlUserRepository) UpdatePreferences(ctx context.Context, id int64, plan, streamQuality string) error {
	query := `UPDATE users SET plan = ?, stream_quality = ?, updated_at = ? WHERE id = ?`
	_, err := r.DB.ExecContext(ctx, query, plan, streamQuality, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to execute UpdatePreferences for user ID %d: %w", id, err)
	}
	return nil
}
