package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"modelbroker/internal/models"
)

// UserRepository handles owner database operations. Balance mutations go
// through single-statement atomic increments so concurrent requests never
// lose updates; the persistence layer is the sole arbiter of consistency.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByTlgID retrieves a user by Telegram id
func (r *UserRepository) GetByTlgID(ctx context.Context, tlgID int64) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, tlg_id, name, balance, created_at, updated_at
		FROM users
		WHERE tlg_id = $1
	`

	err := r.db.conn.GetContext(ctx, &user, query, tlgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// Create creates a new user with a zero balance
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, tlg_id, name, balance)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		user.ID, user.TlgID, user.Name, user.Balance,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// Debit atomically decreases the owner's balance by amount and returns the
// new balance. The balance is allowed to go negative: the request floor
// check is the only gate, not a hard lower bound.
func (r *UserRepository) Debit(ctx context.Context, tlgID int64, amount float64) (float64, error) {
	return r.increment(ctx, tlgID, -amount)
}

// Credit atomically increases the owner's balance by amount and returns the
// new balance.
func (r *UserRepository) Credit(ctx context.Context, tlgID int64, amount float64) (float64, error) {
	return r.increment(ctx, tlgID, amount)
}

func (r *UserRepository) increment(ctx context.Context, tlgID int64, delta float64) (float64, error) {
	var balance float64
	query := `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE tlg_id = $1
		RETURNING balance
	`

	err := r.db.conn.GetContext(ctx, &balance, query, tlgID, delta)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	return balance, nil
}
