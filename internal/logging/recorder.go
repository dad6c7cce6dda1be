package logging

import (
	"time"

	"modelbroker/internal/billing"
	"modelbroker/internal/models"
	"modelbroker/internal/utils"
)

// Recorder turns settlement outcomes into audit records and feeds them to
// a sink
type Recorder struct {
	sink   Sink
	logger *utils.Logger
}

// NewRecorder creates a new settlement recorder
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{
		sink:   sink,
		logger: utils.NewLogger("audit"),
	}
}

// RecordSettlement captures one settlement. Sink failures are logged and
// swallowed; the audit trail never affects a request.
func (r *Recorder) RecordSettlement(entry *models.RequestEntry, outcome *billing.Outcome) {
	rec := &AuditRecord{
		Timestamp:      time.Now(),
		RequestID:      entry.ID,
		ModelID:        entry.ModelID,
		OwnerTlgID:     entry.OwnerTlgID,
		Modality:       entry.Modality,
		BillingSkipped: outcome.Skipped,
	}

	if !outcome.Skipped {
		if entry.InputTokens != nil {
			rec.InputTokens = *entry.InputTokens
		}
		if entry.OutputTokens != nil {
			rec.OutputTokens = *entry.OutputTokens
		}
		rec.CostUSD = outcome.CostUSD
		rec.Rate = outcome.Rate
		rec.RateFallback = outcome.RateFallback
		rec.Coefficient = outcome.Coefficient
		rec.FinalCostRUB = outcome.FinalCostRUB
		rec.BalanceAfter = outcome.NewBalance
	}

	if err := r.sink.Enqueue(rec); err != nil {
		r.logger.Warn("Failed to enqueue audit record", "request_id", entry.ID, "error", err)
	}
}
