package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelbroker/internal/billing"
	"modelbroker/internal/dispatch"
	"modelbroker/internal/extract"
	"modelbroker/internal/images"
	"modelbroker/internal/models"
	"modelbroker/internal/providers"
	"modelbroker/internal/rates"
	"modelbroker/internal/storage"
	"modelbroker/internal/utils"
)

//
// fakes
//

type fakeGrants struct {
	grants map[string]*models.Grant
}

func (f *fakeGrants) GetByToken(ctx context.Context, token string) (*models.Grant, error) {
	grant, ok := f.grants[token]
	if !ok {
		return nil, storage.ErrGrantNotFound
	}
	return grant, nil
}

type fakeUsers struct {
	users map[int64]*models.User
}

func (f *fakeUsers) GetByTlgID(ctx context.Context, tlgID int64) (*models.User, error) {
	user, ok := f.users[tlgID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUsers) Debit(ctx context.Context, tlgID int64, amount float64) (float64, error) {
	user, ok := f.users[tlgID]
	if !ok {
		return 0, storage.ErrUserNotFound
	}
	user.Balance -= amount
	return user.Balance, nil
}

type fakeModels struct {
	models map[uuid.UUID]*models.Model
}

func (f *fakeModels) GetByID(ctx context.Context, id uuid.UUID) (*models.Model, error) {
	model, ok := f.models[id]
	if !ok {
		return nil, storage.ErrModelNotFound
	}
	return model, nil
}

type fakeRequests struct {
	pending []*models.RequestEntry
	settled []*models.RequestEntry
	skipped []uuid.UUID
}

func (f *fakeRequests) CreatePending(ctx context.Context, entry *models.RequestEntry) error {
	entry.ID = uuid.New()
	f.pending = append(f.pending, entry)
	return nil
}

func (f *fakeRequests) Settle(ctx context.Context, entry *models.RequestEntry) error {
	f.settled = append(f.settled, entry)
	return nil
}

func (f *fakeRequests) SkipBilling(ctx context.Context, id uuid.UUID) error {
	f.skipped = append(f.skipped, id)
	return nil
}

type fakeNotifier struct {
	lowBalance []int64
}

func (f *fakeNotifier) NotifyLowBalance(tlgID int64, balance float64) {
	f.lowBalance = append(f.lowBalance, tlgID)
}

type fakeAudit struct {
	records int
}

func (f *fakeAudit) RecordSettlement(entry *models.RequestEntry, outcome *billing.Outcome) {
	f.records++
}

//
// fixture
//

type fixture struct {
	orchestrator *Orchestrator
	grants       *fakeGrants
	users        *fakeUsers
	requests     *fakeRequests
	notifier     *fakeNotifier
	audit        *fakeAudit
	modelID      uuid.UUID
}

const (
	testToken = "tok-abc123def45678"
	testTlgID = int64(777001)
)

func newFixture(t *testing.T, providerBody string, balance float64) *fixture {
	t.Helper()

	encryption, err := storage.NewEncryption([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	encryptedKey, err := encryption.Encrypt([]byte("sk-provider-key"))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(providerBody))
	}))
	t.Cleanup(server.Close)

	store, err := images.NewStore(t.TempDir(), "http://localhost:8080/images")
	require.NoError(t, err)

	logger := utils.NewLogger("broker-test")
	extractor := extract.NewExtractor(store, logger)
	client := providers.NewClient(providers.ClientConfig{
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
	})
	dispatcher := dispatch.NewDispatcher(client, extractor)

	modelID := uuid.New()
	userID := uuid.New()

	grants := &fakeGrants{grants: map[string]*models.Grant{
		testToken: {
			ID:      uuid.New(),
			UserID:  userID,
			ModelID: modelID,
			TlgID:   testTlgID,
			Token:   testToken,
		},
	}}
	users := &fakeUsers{users: map[int64]*models.User{
		testTlgID: {ID: userID, TlgID: testTlgID, Balance: balance},
	}}
	aiModels := &fakeModels{models: map[uuid.UUID]*models.Model{
		modelID: {
			ID:                   modelID,
			NameForUser:          "test-model",
			NameForRequest:       "test-model-v1",
			EncryptedProviderKey: encryptedKey,
			Modalities:           pq.StringArray{"text_to_text", "text_to_image"},
			InputPriceUSD:        0.10,
			OutputPriceUSD:       0.40,
		},
	}}
	requests := &fakeRequests{}
	notifier := &fakeNotifier{}
	audit := &fakeAudit{}

	settler := billing.NewSettler(
		requests,
		users,
		rates.StaticSource{Rate: 95.0},
		rates.StaticCoefficient{Value: 2.0},
		logger,
	)

	orchestrator := NewOrchestrator(OrchestratorConfig{
		Grants:     grants,
		Users:      users,
		Models:     aiModels,
		Requests:   requests,
		Dispatcher: dispatcher,
		Settler:    settler,
		Encryption: encryption,
		Notifier:   notifier,
		Audit:      audit,
		Floor:      20.0,
		Logger:     logger,
	})

	return &fixture{
		orchestrator: orchestrator,
		grants:       grants,
		users:        users,
		requests:     requests,
		notifier:     notifier,
		audit:        audit,
		modelID:      modelID,
	}
}

const successBody = `{
	"choices":[{"message":{"content":"the answer"}}],
	"usage":{"prompt_tokens":120,"completion_tokens":340}
}`

//
// tests
//

func TestHandleInvalidToken(t *testing.T) {
	f := newFixture(t, successBody, 100.0)

	_, err := f.orchestrator.Handle(context.Background(), Request{
		Token:    "no-such-token",
		Input:    "hi",
		Modality: "text_to_text",
	})

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Empty(t, f.requests.pending)
}

func TestHandleOwnerNotFound(t *testing.T) {
	f := newFixture(t, successBody, 100.0)
	delete(f.users.users, testTlgID)

	_, err := f.orchestrator.Handle(context.Background(), Request{
		Token:    testToken,
		Input:    "hi",
		Modality: "text_to_text",
	})

	assert.ErrorIs(t, err, ErrOwnerNotFound)
}

func TestHandleLowBalance(t *testing.T) {
	f := newFixture(t, successBody, 15.0)

	outcome, err := f.orchestrator.Handle(context.Background(), Request{
		Token:    testToken,
		Input:    "hi",
		Modality: "text_to_text",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusLowBalance, outcome.Status)
	assert.Equal(t, 15.0, outcome.Balance)
	assert.Empty(t, f.requests.pending, "no ledger row below the floor")
	assert.Equal(t, []int64{testTlgID}, f.notifier.lowBalance)
	assert.Equal(t, 15.0, f.users.users[testTlgID].Balance, "balance untouched")
}

func TestHandleBalanceExactlyAtFloor(t *testing.T) {
	f := newFixture(t, successBody, 20.0)

	outcome, err := f.orchestrator.Handle(context.Background(), Request{
		Token:    testToken,
		Input:    "hi",
		Modality: "text_to_text",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, outcome.Status, "the floor itself is enough")
}

func TestHandleSuccess(t *testing.T) {
	f := newFixture(t, successBody, 100.0)

	outcome, err := f.orchestrator.Handle(context.Background(), Request{
		Token:    testToken,
		Input:    "what is the answer",
		Modality: "text_to_text",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Equal(t, "the answer", outcome.Text)
	// 120*0.10/1M + 340*0.40/1M = 0.000148 USD; *95*2 rounds to 0.028
	assert.InDelta(t, 100.0-0.028, outcome.Balance, 1e-9)

	require.Len(t, f.requests.pending, 1)
	require.Len(t, f.requests.settled, 1)
	entry := f.requests.settled[0]
	assert.Equal(t, testTlgID, entry.OwnerTlgID)
	assert.True(t, entry.IsAuthorized)
	assert.Equal(t, 1, f.audit.records)
}

func TestHandleNoUsageSkipsBilling(t *testing.T) {
	body := `{"choices":[{"message":{"content":"free answer"}}]}`
	f := newFixture(t, body, 100.0)

	outcome, err := f.orchestrator.Handle(context.Background(), Request{
		Token:    testToken,
		Input:    "hi",
		Modality: "text_to_text",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Equal(t, "free answer", outcome.Text)
	assert.Equal(t, 100.0, outcome.Balance, "skipped billing reports the pre-call balance")
	require.Len(t, f.requests.skipped, 1)
	assert.Equal(t, 100.0, f.users.users[testTlgID].Balance)
}

func TestHandleDispatchRejectionLeavesRowPending(t *testing.T) {
	f := newFixture(t, successBody, 100.0)

	_, err := f.orchestrator.Handle(context.Background(), Request{
		Token:    testToken,
		Input:    "describe",
		Modality: "image_to_text",
	})

	var dispatchErr *dispatch.Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, dispatch.CodeModalityUnsupported, dispatchErr.Code)

	require.Len(t, f.requests.pending, 1, "the row was created before dispatch")
	assert.Empty(t, f.requests.settled)
	assert.Empty(t, f.requests.skipped)
	assert.Equal(t, 100.0, f.users.users[testTlgID].Balance)
}

func TestHandleImageRequest(t *testing.T) {
	body := `{
		"choices":[{"message":{"images":[{"image_url":{"url":"https://cdn.example.com/out.png"}}]}}],
		"usage":{"prompt_tokens":50,"completion_tokens":0}
	}`
	f := newFixture(t, body, 100.0)

	outcome, err := f.orchestrator.Handle(context.Background(), Request{
		Token:       testToken,
		Input:       "a sunset",
		Modality:    "text_to_image",
		AspectRatio: "16:9",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Equal(t, "https://cdn.example.com/out.png", outcome.ImageURL)
	assert.Empty(t, outcome.Text)
	require.Len(t, f.requests.settled, 1)
}
