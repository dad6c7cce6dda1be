package models

import (
	"time"

	"github.com/google/uuid"
)

//
// RequestEntry (request_ledger table)
//

// RequestEntry is one row of the permanent request ledger. A row is created
// in a pending state (Operated=false, token counts nil) before the provider
// call and transitions exactly once to settled: either with full cost fields
// populated, or with BillingSkipped=true when the provider returned no usable
// usage data. Rows are never re-opened or deleted.
type RequestEntry struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ModelID    uuid.UUID `db:"model_id" json:"model_id"`
	OwnerID    uuid.UUID `db:"owner_id" json:"owner_id"`
	OwnerTlgID int64     `db:"owner_tlg_id" json:"owner_tlgid"`

	Input        string `db:"input" json:"input"`
	Modality     string `db:"modality" json:"modality"`
	IsAuthorized bool   `db:"is_authorized" json:"is_authorized"`

	// Usage and pricing, nil until settled.
	InputTokens     *int64   `db:"input_tokens" json:"input_tokens,omitempty"`
	OutputTokens    *int64   `db:"output_tokens" json:"output_tokens,omitempty"`
	InputCostUSD    *float64 `db:"input_cost_usd" json:"input_cost_usd,omitempty"`
	OutputCostUSD   *float64 `db:"output_cost_usd" json:"output_cost_usd,omitempty"`
	Rate            *float64 `db:"rate" json:"rate,omitempty"`
	FinalCostRUB    *float64 `db:"final_cost_rub" json:"final_cost_rub,omitempty"`

	Operated       bool `db:"operated" json:"operated"`
	BillingSkipped bool `db:"billing_skipped" json:"billing_skipped"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Settled reports whether the entry has left the pending state.
func (e *RequestEntry) Settled() bool {
	return e.Operated
}
