package models

import (
	"time"

	"github.com/google/uuid"
)

//
// User (users table)
//

// User is a balance-bearing owner identified by a Telegram id.
type User struct {
	ID    uuid.UUID `db:"id" json:"id"`
	TlgID int64     `db:"tlg_id" json:"tlgid"`
	Name  string    `db:"name" json:"name,omitempty"`

	// Balance in RUB. Mutated only through atomic credit/debit statements;
	// debits may legitimately drive it negative.
	Balance float64 `db:"balance" json:"balance"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
