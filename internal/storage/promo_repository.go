package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"modelbroker/internal/models"
)

// PromoRepository handles promo code database operations
type PromoRepository struct {
	db *DB
}

// NewPromoRepository creates a new promo repository
func NewPromoRepository(db *DB) *PromoRepository {
	return &PromoRepository{db: db}
}

// GetActiveByCode retrieves an active promo by its code
func (r *PromoRepository) GetActiveByCode(ctx context.Context, code string) (*models.Promo, error) {
	var promo models.Promo
	query := `
		SELECT id, code, amount, is_active, created_at, updated_at
		FROM promos
		WHERE code = $1 AND is_active = TRUE
	`

	err := r.db.conn.GetContext(ctx, &promo, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPromoNotFound
		}
		return nil, fmt.Errorf("failed to get promo: %w", err)
	}

	return &promo, nil
}

// Redeem records a redemption and credits the owner's balance in a single
// transaction. Each owner may redeem a given promo once; a second attempt
// returns ErrPromoAlreadyRedeemed and leaves the balance untouched.
func (r *PromoRepository) Redeem(ctx context.Context, promo *models.Promo, userID uuid.UUID, tlgID int64) (float64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM promo_redemptions
			WHERE user_id = $1 AND promo_id = $2
		)
	`, userID, promo.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to check redemption: %w", err)
	}
	if exists {
		return 0, ErrPromoAlreadyRedeemed
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO promo_redemptions (id, user_id, tlg_id, promo_id, credited)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), userID, tlgID, promo.ID, promo.Amount)
	if err != nil {
		return 0, fmt.Errorf("failed to record redemption: %w", err)
	}

	var balance float64
	err = tx.GetContext(ctx, &balance, `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING balance
	`, userID, promo.Amount)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to credit balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit redemption: %w", err)
	}

	return balance, nil
}
