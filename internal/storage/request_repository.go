package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"modelbroker/internal/models"
)

// RequestRepository handles ledger row database operations. A row is
// inserted in pending state before the provider call; Settle and
// SkipBilling are the only transitions out of pending.
type RequestRepository struct {
	db *DB
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// CreatePending inserts a new ledger row in pending (unsettled) state
func (r *RequestRepository) CreatePending(ctx context.Context, entry *models.RequestEntry) error {
	query := `
		INSERT INTO requests (
			id, model_id, owner_id, owner_tlg_id, input, modality, is_authorized
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		entry.ID, entry.ModelID, entry.OwnerID, entry.OwnerTlgID,
		entry.Input, entry.Modality, entry.IsAuthorized,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create request entry: %w", err)
	}

	return nil
}

// Settle records usage and cost on a pending row and marks it operated
func (r *RequestRepository) Settle(ctx context.Context, entry *models.RequestEntry) error {
	query := `
		UPDATE requests
		SET input_tokens = $2, output_tokens = $3,
		    input_cost_usd = $4, output_cost_usd = $5,
		    rate = $6, final_cost_rub = $7,
		    operated = TRUE, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.conn.ExecContext(
		ctx, query,
		entry.ID, entry.InputTokens, entry.OutputTokens,
		entry.InputCostUSD, entry.OutputCostUSD,
		entry.Rate, entry.FinalCostRUB,
	)
	if err != nil {
		return fmt.Errorf("failed to settle request entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRequestNotFound
	}

	entry.Operated = true
	return nil
}

// SkipBilling marks a pending row operated without recording any cost.
// Used when the provider reported zero usage on both sides.
func (r *RequestRepository) SkipBilling(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE requests
		SET operated = TRUE, billing_skipped = TRUE, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to skip billing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRequestNotFound
	}

	return nil
}

// GetByID retrieves a ledger row by id
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RequestEntry, error) {
	var entry models.RequestEntry
	query := `
		SELECT id, model_id, owner_id, owner_tlg_id, input, modality,
		       is_authorized, input_tokens, output_tokens,
		       input_cost_usd, output_cost_usd, rate, final_cost_rub,
		       operated, billing_skipped, created_at, updated_at
		FROM requests
		WHERE id = $1
	`

	err := r.db.conn.GetContext(ctx, &entry, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request entry: %w", err)
	}

	return &entry, nil
}

// ListPending retrieves rows still awaiting settlement, oldest first
func (r *RequestRepository) ListPending(ctx context.Context, limit int) ([]*models.RequestEntry, error) {
	var out []*models.RequestEntry
	query := `
		SELECT id, model_id, owner_id, owner_tlg_id, input, modality,
		       is_authorized, input_tokens, output_tokens,
		       input_cost_usd, output_cost_usd, rate, final_cost_rub,
		       operated, billing_skipped, created_at, updated_at
		FROM requests
		WHERE operated = FALSE
		ORDER BY created_at
		LIMIT $1
	`

	err := r.db.conn.SelectContext(ctx, &out, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}

	return out, nil
}
