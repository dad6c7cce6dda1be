// Package broker orchestrates a metered AI request end to end: token
// resolution, balance gating, ledger bookkeeping, provider dispatch, and
// settlement.
package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"modelbroker/internal/billing"
	"modelbroker/internal/dispatch"
	"modelbroker/internal/models"
	"modelbroker/internal/storage"
	"modelbroker/internal/utils"
)

var (
	// ErrInvalidToken means the access token resolves to no grant
	ErrInvalidToken = errors.New("invalid access token")
	// ErrOwnerNotFound means the grant's owner no longer exists
	ErrOwnerNotFound = errors.New("grant owner not found")
)

// Status classifies a user-facing outcome
type Status string

const (
	// StatusSuccess means the provider call completed and was settled
	StatusSuccess Status = "success"
	// StatusLowBalance means the owner's balance is below the request
	// floor; no provider call was made and no ledger row was created
	StatusLowBalance Status = "lowbalance"
)

// Request is one inbound unit of work
type Request struct {
	Token       string
	Input       string
	Modality    string
	ImageRef    string
	AspectRatio string
}

// Outcome is the user-facing result of Handle
type Outcome struct {
	Status   Status
	Text     string
	ImageURL string
	Balance  float64
}

// Notifier delivers out-of-band owner notifications. Delivery is
// fire-and-forget; a failed notification never affects the request.
type Notifier interface {
	NotifyLowBalance(tlgID int64, balance float64)
}

// GrantStore resolves access tokens to grants
type GrantStore interface {
	GetByToken(ctx context.Context, token string) (*models.Grant, error)
}

// UserStore resolves grant owners
type UserStore interface {
	GetByTlgID(ctx context.Context, tlgID int64) (*models.User, error)
}

// ModelStore resolves model descriptors
type ModelStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Model, error)
}

// LedgerStore creates pending ledger rows
type LedgerStore interface {
	CreatePending(ctx context.Context, entry *models.RequestEntry) error
}

// AuditRecorder receives settlement facts for the audit trail
type AuditRecorder interface {
	RecordSettlement(entry *models.RequestEntry, outcome *billing.Outcome)
}

// Orchestrator runs the request pipeline
type Orchestrator struct {
	grants     GrantStore
	users      UserStore
	aiModels   ModelStore
	requests   LedgerStore
	dispatcher *dispatch.Dispatcher
	settler    *billing.Settler
	encryption *storage.Encryption
	notifier   Notifier
	audit      AuditRecorder
	floor      float64
	logger     *utils.Logger
}

// OrchestratorConfig wires the orchestrator's collaborators
type OrchestratorConfig struct {
	Grants     GrantStore
	Users      UserStore
	Models     ModelStore
	Requests   LedgerStore
	Dispatcher *dispatch.Dispatcher
	Settler    *billing.Settler
	Encryption *storage.Encryption
	Notifier   Notifier
	Audit      AuditRecorder
	Floor      float64
	Logger     *utils.Logger
}

// NewOrchestrator creates a new request orchestrator
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		grants:     cfg.Grants,
		users:      cfg.Users,
		aiModels:   cfg.Models,
		requests:   cfg.Requests,
		dispatcher: cfg.Dispatcher,
		settler:    cfg.Settler,
		encryption: cfg.Encryption,
		notifier:   cfg.Notifier,
		audit:      cfg.Audit,
		floor:      cfg.Floor,
		logger:     cfg.Logger,
	}
}

// Handle runs one request through the pipeline. Each step short-circuits
// on failure:
//
//  1. token -> grant
//  2. grant -> owner and balance
//  3. floor check (a distinguished outcome, not an error)
//  4. pending ledger row
//  5. dispatch to the provider
//  6. settle
//
// Dispatch rejections come back as *dispatch.Error and leave the ledger
// row pending with no billing. A provider or extraction failure does the
// same; rows left pending are a known reconciliation gap.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Outcome, error) {
	grant, err := o.grants.GetByToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, storage.ErrGrantNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	owner, err := o.users.GetByTlgID(ctx, grant.TlgID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrOwnerNotFound
		}
		return nil, fmt.Errorf("failed to resolve owner: %w", err)
	}

	if owner.Balance < o.floor {
		o.logger.Info("Request rejected, balance below floor",
			"tlg_id", owner.TlgID, "balance", owner.Balance, "floor", o.floor)
		if o.notifier != nil {
			o.notifier.NotifyLowBalance(owner.TlgID, owner.Balance)
		}
		return &Outcome{Status: StatusLowBalance, Balance: owner.Balance}, nil
	}

	model, err := o.aiModels.GetByID(ctx, grant.ModelID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve model: %w", err)
	}

	entry := &models.RequestEntry{
		ModelID:      model.ID,
		OwnerID:      owner.ID,
		OwnerTlgID:   owner.TlgID,
		Input:        req.Input,
		Modality:     req.Modality,
		IsAuthorized: true,
	}
	if err := o.requests.CreatePending(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create ledger entry: %w", err)
	}

	keyBytes, err := o.encryption.Decrypt(model.EncryptedProviderKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt provider key: %w", err)
	}

	result, err := o.dispatcher.Dispatch(ctx, model, string(keyBytes), dispatch.Request{
		Input:       req.Input,
		Modality:    models.Modality(req.Modality),
		ImageRef:    req.ImageRef,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		// Rejections and provider faults alike leave the row pending.
		return nil, err
	}

	settlement, err := o.settler.Settle(ctx, entry, result.InputTokens, result.OutputTokens, model)
	if err != nil {
		return nil, fmt.Errorf("settlement failed: %w", err)
	}

	if o.audit != nil {
		o.audit.RecordSettlement(entry, settlement)
	}

	balance := settlement.NewBalance
	if settlement.Skipped {
		balance = owner.Balance
	}

	return &Outcome{
		Status:   StatusSuccess,
		Text:     result.Text,
		ImageURL: result.ImageURL,
		Balance:  balance,
	}, nil
}
