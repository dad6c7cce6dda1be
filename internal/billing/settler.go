// Package billing settles pending ledger rows: it prices provider usage,
// converts to RUB, and debits the owner.
package billing

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"

	"modelbroker/internal/models"
	"modelbroker/internal/rates"
	"modelbroker/internal/storage"
	"modelbroker/internal/utils"
)

// ErrOwnerMissing indicates the owner vanished between the pre-call floor
// check and settlement. The ledger row is left pending for reconciliation.
var ErrOwnerMissing = errors.New("owner not found at settlement time")

// LedgerStore is the slice of the request repository settlement needs
type LedgerStore interface {
	Settle(ctx context.Context, entry *models.RequestEntry) error
	SkipBilling(ctx context.Context, id uuid.UUID) error
}

// BalanceStore is the slice of the user repository settlement needs
type BalanceStore interface {
	Debit(ctx context.Context, tlgID int64, amount float64) (float64, error)
}

// Outcome describes what settlement did to the ledger row and the balance
type Outcome struct {
	Skipped      bool
	CostUSD      float64
	Rate         float64
	RateFallback bool
	Coefficient  float64
	FinalCostRUB float64
	NewBalance   float64
}

// Settler prices usage and applies the debit
type Settler struct {
	requests LedgerStore
	users    BalanceStore
	rate     rates.Source
	coeff    rates.CoefficientProvider
	logger   *utils.Logger
}

// NewSettler creates a new settler
func NewSettler(
	requests LedgerStore,
	users BalanceStore,
	rate rates.Source,
	coeff rates.CoefficientProvider,
	logger *utils.Logger,
) *Settler {
	return &Settler{
		requests: requests,
		users:    users,
		rate:     rate,
		coeff:    coeff,
		logger:   logger,
	}
}

// Settle finalizes a pending ledger row against the owner's balance.
//
// Zero usage on both legs means the true cost is unknown; the row is
// marked settled with billing skipped and no balance mutation happens.
// Otherwise the USD cost is converted at the current rate, marked up by
// the coefficient, rounded to 3 decimals, and debited unconditionally.
// The floor check happened before the provider call, and balances may
// legitimately go negative here.
func (s *Settler) Settle(
	ctx context.Context,
	entry *models.RequestEntry,
	inputTokens, outputTokens int64,
	model *models.Model,
) (*Outcome, error) {
	if inputTokens == 0 && outputTokens == 0 {
		if err := s.requests.SkipBilling(ctx, entry.ID); err != nil {
			return nil, err
		}
		entry.Operated = true
		entry.BillingSkipped = true
		s.logger.Info("Billing skipped, no usage reported", "request_id", entry.ID)
		return &Outcome{Skipped: true}, nil
	}

	inputUSD, outputUSD := model.BasicCostUSD(inputTokens, outputTokens)
	costUSD := inputUSD + outputUSD

	rate, usedFallback := s.rate.CurrentRate(ctx)
	coeff := s.coeff.Coefficient()
	finalCost := round3(costUSD * rate * coeff)

	if usedFallback {
		s.logger.Warn("Settling with fallback rate",
			"request_id", entry.ID, "rate", rate)
	}

	newBalance, err := s.users.Debit(ctx, entry.OwnerTlgID, finalCost)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Row stays pending so a reconciliation pass can find it.
			return nil, ErrOwnerMissing
		}
		return nil, err
	}

	entry.InputTokens = &inputTokens
	entry.OutputTokens = &outputTokens
	entry.InputCostUSD = &inputUSD
	entry.OutputCostUSD = &outputUSD
	entry.Rate = &rate
	entry.FinalCostRUB = &finalCost

	if err := s.requests.Settle(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Request settled",
		"request_id", entry.ID,
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
		"cost_usd", costUSD,
		"rate", rate,
		"final_cost_rub", finalCost,
		"balance", newBalance)

	return &Outcome{
		CostUSD:      costUSD,
		Rate:         rate,
		RateFallback: usedFallback,
		Coefficient:  coeff,
		FinalCostRUB: finalCost,
		NewBalance:   newBalance,
	}, nil
}

// round3 rounds to 3 decimal places, half away from zero
func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
