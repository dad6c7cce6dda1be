package models

import (
	"time"

	"github.com/google/uuid"
)

//
// Promo (promo_codes table) and PromoRedemption (promo_redemptions table)
//

// Promo is a code that credits a fixed RUB amount, at most once per owner.
type Promo struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Code     string    `db:"code" json:"code"`
	Amount   float64   `db:"amount" json:"amount"`
	IsActive bool      `db:"is_active" json:"is_active"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PromoRedemption records a single (owner, promo) redemption.
type PromoRedemption struct {
	ID       uuid.UUID `db:"id" json:"id"`
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	TlgID    int64     `db:"tlg_id" json:"tlgid"`
	PromoID  uuid.UUID `db:"promo_id" json:"promo_id"`
	Credited float64   `db:"credited" json:"credited"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
