// Package logging maintains the settlement audit trail: every settled or
// billing-skipped request produces a record that is buffered in-process
// and flushed in batches to a JSONL file or S3.
package logging

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one settlement fact. Records are append-only; the ledger
// in Postgres stays authoritative, the audit trail exists for offline
// analysis and dispute handling.
type AuditRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	RequestID      uuid.UUID `json:"request_id"`
	ModelID        uuid.UUID `json:"model_id"`
	OwnerTlgID     int64     `json:"owner_tlg_id"`
	Modality       string    `json:"modality"`
	InputTokens    int64     `json:"input_tokens"`
	OutputTokens   int64     `json:"output_tokens"`
	CostUSD        float64   `json:"cost_usd"`
	Rate           float64   `json:"rate"`
	RateFallback   bool      `json:"rate_fallback,omitempty"`
	Coefficient    float64   `json:"coefficient"`
	FinalCostRUB   float64   `json:"final_cost_rub"`
	BillingSkipped bool      `json:"billing_skipped,omitempty"`
	BalanceAfter   float64   `json:"balance_after"`
}

// Sink receives audit records from the request path
type Sink interface {
	Enqueue(rec *AuditRecord) error
	Close() error
}

// NoopSink discards audit records. Used when the audit trail is disabled.
type NoopSink struct{}

// NewNoopSink creates a sink that discards everything
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

// Enqueue discards the record
func (s *NoopSink) Enqueue(rec *AuditRecord) error {
	return nil
}

// Close is a no-op
func (s *NoopSink) Close() error {
	return nil
}
