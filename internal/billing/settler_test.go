package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelbroker/internal/models"
	"modelbroker/internal/rates"
	"modelbroker/internal/storage"
	"modelbroker/internal/utils"
)

type fakeLedger struct {
	settled []*models.RequestEntry
	skipped []uuid.UUID
}

func (f *fakeLedger) Settle(ctx context.Context, entry *models.RequestEntry) error {
	f.settled = append(f.settled, entry)
	return nil
}

func (f *fakeLedger) SkipBilling(ctx context.Context, id uuid.UUID) error {
	f.skipped = append(f.skipped, id)
	return nil
}

type fakeBalance struct {
	balance float64
	debits  []float64
	err     error
}

func (f *fakeBalance) Debit(ctx context.Context, tlgID int64, amount float64) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.debits = append(f.debits, amount)
	f.balance -= amount
	return f.balance, nil
}

func newTestSettler(ledger *fakeLedger, balance *fakeBalance, rate float64, coeff float64) *Settler {
	return NewSettler(
		ledger,
		balance,
		rates.StaticSource{Rate: rate},
		rates.StaticCoefficient{Value: coeff},
		utils.NewLogger("billing-test"),
	)
}

func pendingEntry() *models.RequestEntry {
	return &models.RequestEntry{
		ID:         uuid.New(),
		ModelID:    uuid.New(),
		OwnerID:    uuid.New(),
		OwnerTlgID: 12345,
		Input:      "hello",
		Modality:   "text_to_text",
	}
}

func TestSettleFullPath(t *testing.T) {
	ledger := &fakeLedger{}
	balance := &fakeBalance{balance: 100.0}
	settler := newTestSettler(ledger, balance, 95.0, 2.0)

	entry := pendingEntry()
	model := &models.Model{InputPriceUSD: 0.10, OutputPriceUSD: 0.40}

	outcome, err := settler.Settle(context.Background(), entry, 120, 340, model)
	require.NoError(t, err)

	// 120*0.10/1M + 340*0.40/1M = 0.000148 USD; *95*2 rounds to 0.028 RUB
	assert.False(t, outcome.Skipped)
	assert.InDelta(t, 0.000148, outcome.CostUSD, 1e-12)
	assert.Equal(t, 95.0, outcome.Rate)
	assert.False(t, outcome.RateFallback)
	assert.Equal(t, 2.0, outcome.Coefficient)
	assert.InDelta(t, 0.028, outcome.FinalCostRUB, 1e-9)
	assert.InDelta(t, 100.0-0.028, outcome.NewBalance, 1e-9)

	require.Len(t, balance.debits, 1)
	assert.InDelta(t, 0.028, balance.debits[0], 1e-9)

	require.Len(t, ledger.settled, 1)
	require.NotNil(t, entry.InputTokens)
	assert.Equal(t, int64(120), *entry.InputTokens)
	assert.Equal(t, int64(340), *entry.OutputTokens)
	assert.InDelta(t, 0.000012, *entry.InputCostUSD, 1e-12)
	assert.InDelta(t, 0.000136, *entry.OutputCostUSD, 1e-12)
	assert.Equal(t, 95.0, *entry.Rate)
	assert.InDelta(t, 0.028, *entry.FinalCostRUB, 1e-9)
	assert.Empty(t, ledger.skipped)
}

func TestSettleZeroUsageSkipsBilling(t *testing.T) {
	ledger := &fakeLedger{}
	balance := &fakeBalance{balance: 100.0}
	settler := newTestSettler(ledger, balance, 95.0, 2.0)

	entry := pendingEntry()
	model := &models.Model{InputPriceUSD: 0.10, OutputPriceUSD: 0.40}

	outcome, err := settler.Settle(context.Background(), entry, 0, 0, model)
	require.NoError(t, err)

	assert.True(t, outcome.Skipped)
	assert.True(t, entry.Operated)
	assert.True(t, entry.BillingSkipped)
	assert.Equal(t, []uuid.UUID{entry.ID}, ledger.skipped)
	assert.Empty(t, balance.debits, "skipped settlement must not touch the balance")
	assert.Empty(t, ledger.settled)
}

func TestSettlePartialUsageStillBills(t *testing.T) {
	ledger := &fakeLedger{}
	balance := &fakeBalance{balance: 50.0}
	settler := newTestSettler(ledger, balance, 100.0, 2.0)

	entry := pendingEntry()
	model := &models.Model{InputPriceUSD: 0.10, OutputPriceUSD: 0.40}

	outcome, err := settler.Settle(context.Background(), entry, 0, 1000, model)
	require.NoError(t, err)

	assert.False(t, outcome.Skipped)
	require.Len(t, balance.debits, 1)
}

func TestSettleDebitBelowZero(t *testing.T) {
	ledger := &fakeLedger{}
	balance := &fakeBalance{balance: 20.0}
	settler := newTestSettler(ledger, balance, 100.0, 2.0)

	entry := pendingEntry()
	// 1M output tokens at $10/1M is $10; *100*2 = 2000 RUB.
	model := &models.Model{InputPriceUSD: 2.50, OutputPriceUSD: 10.00}

	outcome, err := settler.Settle(context.Background(), entry, 0, 1_000_000, model)
	require.NoError(t, err)

	assert.InDelta(t, 20.0-2000.0, outcome.NewBalance, 1e-9,
		"debit is unconditional, the balance may go negative")
}

func TestSettleOwnerMissing(t *testing.T) {
	ledger := &fakeLedger{}
	balance := &fakeBalance{err: storage.ErrUserNotFound}
	settler := newTestSettler(ledger, balance, 95.0, 2.0)

	entry := pendingEntry()
	model := &models.Model{InputPriceUSD: 0.10, OutputPriceUSD: 0.40}

	_, err := settler.Settle(context.Background(), entry, 100, 100, model)
	assert.ErrorIs(t, err, ErrOwnerMissing)

	assert.False(t, entry.Operated, "the row stays pending when the owner is gone")
	assert.Empty(t, ledger.settled)
}

func TestSettleFallbackRateFlagged(t *testing.T) {
	ledger := &fakeLedger{}
	balance := &fakeBalance{balance: 100.0}
	settler := NewSettler(
		ledger,
		balance,
		fallbackSource{rate: 100.0},
		rates.StaticCoefficient{Value: 2.0},
		utils.NewLogger("billing-test"),
	)

	entry := pendingEntry()
	model := &models.Model{InputPriceUSD: 0.10, OutputPriceUSD: 0.40}

	outcome, err := settler.Settle(context.Background(), entry, 100, 100, model)
	require.NoError(t, err)

	assert.True(t, outcome.RateFallback)
	assert.Equal(t, 100.0, outcome.Rate)
}

type fallbackSource struct {
	rate float64
}

func (s fallbackSource) CurrentRate(ctx context.Context) (float64, bool) {
	return s.rate, true
}

func TestRound3(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.02812, 0.028},
		{0.0004, 0.0},
		{1.23456, 1.235},
		{-0.02812, -0.028},
		{0, 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, round3(tt.in), 1e-12, "round3(%v)", tt.in)
	}
}
