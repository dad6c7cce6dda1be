package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"modelbroker/internal/models"
)

// ModelRepository handles AI model descriptor database operations with
// read-through caching. Descriptors change rarely, so the cache TTL keeps
// the hot request path off the database.
type ModelRepository struct {
	db *DB
}

// NewModelRepository creates a new model repository
func NewModelRepository(db *DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// GetByID retrieves a model descriptor by id, checking cache first
func (r *ModelRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Model, error) {
	cacheKey := "model:id:" + id.String()
	if cached, found := r.db.GetModelCache().Get(cacheKey); found {
		if model, ok := cached.(*models.Model); ok {
			return model, nil
		}
	}

	var model models.Model
	query := `
		SELECT id, name_for_user, name_for_request, encrypted_provider_key,
		       modalities, input_price_usd, output_price_usd,
		       created_at, updated_at
		FROM ai_models
		WHERE id = $1
	`

	err := r.db.conn.GetContext(ctx, &model, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	r.db.GetModelCache().Set(cacheKey, &model)
	return &model, nil
}

// GetByUserName retrieves a model descriptor by its user-facing name
func (r *ModelRepository) GetByUserName(ctx context.Context, name string) (*models.Model, error) {
	var model models.Model
	query := `
		SELECT id, name_for_user, name_for_request, encrypted_provider_key,
		       modalities, input_price_usd, output_price_usd,
		       created_at, updated_at
		FROM ai_models
		WHERE name_for_user = $1
	`

	err := r.db.conn.GetContext(ctx, &model, query, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	return &model, nil
}

// List retrieves all model descriptors ordered by user-facing name
func (r *ModelRepository) List(ctx context.Context) ([]*models.Model, error) {
	var out []*models.Model
	query := `
		SELECT id, name_for_user, name_for_request, encrypted_provider_key,
		       modalities, input_price_usd, output_price_usd,
		       created_at, updated_at
		FROM ai_models
		ORDER BY name_for_user
	`

	err := r.db.conn.SelectContext(ctx, &out, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	return out, nil
}

// Create inserts a new model descriptor
func (r *ModelRepository) Create(ctx context.Context, model *models.Model) error {
	query := `
		INSERT INTO ai_models (
			id, name_for_user, name_for_request, encrypted_provider_key,
			modalities, input_price_usd, output_price_usd
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	if model.ID == uuid.Nil {
		model.ID = uuid.New()
	}

	err := r.db.conn.QueryRowxContext(
		ctx, query,
		model.ID, model.NameForUser, model.NameForRequest,
		model.EncryptedProviderKey, model.Modalities,
		model.InputPriceUSD, model.OutputPriceUSD,
	).Scan(&model.CreatedAt, &model.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}

	return nil
}

// Delete removes a model descriptor and invalidates its cache entry
func (r *ModelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM ai_models WHERE id = $1`

	result, err := r.db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrModelNotFound
	}

	r.db.GetModelCache().Delete("model:id:" + id.String())
	return nil
}
