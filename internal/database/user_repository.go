package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns a user by Telegram ID, or nil if the user is not registered
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT user_id, name, role FROM users WHERE user_id = ?")
	err := r.db.GetContext(ctx, &user, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return &user, nil
}

// Create inserts a new user or updates name and role if it exists
func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	query := r.db.Rebind(`
		INSERT INTO users (user_id, name, role) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET name = excluded.name, role = excluded.role
	`)
	if _, err := r.db.ExecContext(ctx, query, user.UserID, user.Name, user.Role); err != nil {
		return fmt.Errorf("failed to create/update user: %w", err)
	}
	return nil
}

// Count returns the number of registered users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
