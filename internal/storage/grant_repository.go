package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"modelbroker/internal/models"
)

// GrantRepository handles access grant database operations. Grant lookups
// by token sit on the hot request path, so they are cached the same way
// model descriptors are.
type GrantRepository struct {
	db *DB
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// GetByToken retrieves a grant by its access token, checking cache first
func (r *GrantRepository) GetByToken(ctx context.Context, token string) (*models.Grant, error) {
	cacheKey := "grant:token:" + token
	if cached, found := r.db.GetGrantCache().Get(cacheKey); found {
		if grant, ok := cached.(*models.Grant); ok {
			return grant, nil
		}
	}

	var grant models.Grant
	query := `
		SELECT id, user_id, model_id, tlg_id, token, created_at, updated_at
		FROM grants
		WHERE token = $1
	`

	err := r.db.conn.GetContext(ctx, &grant, query, token)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}

	r.db.GetGrantCache().Set(cacheKey, &grant)
	return &grant, nil
}

// GetByUserAndModel retrieves the grant an owner holds for a model, if any
func (r *GrantRepository) GetByUserAndModel(ctx context.Context, userID, modelID uuid.UUID) (*models.Grant, error) {
	var grant models.Grant
	query := `
		SELECT id, user_id, model_id, tlg_id, token, created_at, updated_at
		FROM grants
		WHERE user_id = $1 AND model_id = $2
	`

	err := r.db.conn.GetContext(ctx, &grant, query, userID, modelID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}

	return &grant, nil
}

// ListByTlgID retrieves all grants held by a Telegram user
func (r *GrantRepository) ListByTlgID(ctx context.Context, tlgID int64) ([]*models.Grant, error) {
	var out []*models.Grant
	query := `
		SELECT id, user_id, model_id, tlg_id, token, created_at, updated_at
		FROM grants
		WHERE tlg_id = $1
		ORDER BY created_at
	`

	err := r.db.conn.SelectContext(ctx, &out, query, tlgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}

	return out, nil
}

// Create inserts a new grant. At most one grant may exist per (owner, model)
// pair; a second attempt returns ErrGrantExists.
func (r *GrantRepository) Create(ctx context.Context, grant *models.Grant) error {
	query := `
		INSERT INTO grants (id, user_id, model_id, tlg_id, token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		grant.ID, grant.UserID, grant.ModelID, grant.TlgID, grant.Token,
	).Scan(&grant.CreatedAt, &grant.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrGrantExists
		}
		return fmt.Errorf("failed to create grant: %w", err)
	}

	return nil
}

// Delete removes a grant and invalidates its token cache entry
func (r *GrantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var token string
	query := `DELETE FROM grants WHERE id = $1 RETURNING token`

	err := r.db.conn.GetContext(ctx, &token, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrGrantNotFound
		}
		return fmt.Errorf("failed to delete grant: %w", err)
	}

	r.db.GetGrantCache().Delete("grant:token:" + token)
	return nil
}
