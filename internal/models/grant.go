package models

import (
	"time"

	"github.com/google/uuid"
)

//
// Grant (model_grants table)
//

// Grant binds an owner to one model through an opaque bearer token.
// At most one grant exists per (owner, model) pair; tokens are unique
// across all grants.
type Grant struct {
	ID      uuid.UUID `db:"id" json:"id"`
	UserID  uuid.UUID `db:"user_id" json:"user_id"`
	ModelID uuid.UUID `db:"model_id" json:"model_id"`
	TlgID   int64     `db:"tlg_id" json:"tlgid"`
	Token   string    `db:"token" json:"token"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
