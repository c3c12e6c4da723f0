package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	playground "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apphttp "github.com/omnivault/intent-relayer/pkg/app/http"
	"github.com/omnivault/intent-relayer/pkg/assets"
	"github.com/omnivault/intent-relayer/pkg/intent"
	"github.com/omnivault/intent-relayer/pkg/queue"
	"github.com/omnivault/intent-relayer/pkg/status"
)

func newTestAPI(t *testing.T, registry *assets.Registry) (*api, http.Handler) {
	t.Helper()
	// Avoid wrapping a nil *Registry in the resolver interface: the
	// resulting typed-nil would defeat the validator's nil check.
	var resolver intent.IntermediateResolver
	if registry != nil {
		resolver = registry
	}
	a := &api{
		validator: intent.NewValidator(intent.ChainNear, resolver),
		registry:  registry,
		check:     playground.New(),
		store:     status.NewMemoryStore(),
		queue:     queue.NewMemoryQueue(time.Minute),
		logger:    zap.NewNop(),
	}

	r := chi.NewRouter()
	r.Post("/api/v1/intents", apphttp.HandleError(a.submitIntent))
	r.Get("/api/v1/intents/{id}", apphttp.HandleError(a.getIntent))
	r.Get("/api/v1/admin/dead-letters", apphttp.HandleError(a.listDeadLetters))
	return a, r
}

func depositRequest(id string) map[string]any {
	return map[string]any{
		"intentId":         id,
		"sourceChain":      "near",
		"destinationChain": "near",
		"sourceAsset":      "usdc.near",
		"finalAsset":       "usdc.near",
		"sourceAmount":     "1000000",
		"userDestination":  "alice.near",
		"agentDestination": "agent.near",
		"metadata": map[string]any{
			"action": "lending_deposit",
			"market": "main-market",
			"mint":   "usdc-mint",
		},
		"originTxHash":   "origin-tx",
		"depositAddress": "escrow.near",
	}
}

func postIntent(t *testing.T, handler http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/intents", bytes.NewReader(raw))
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSubmitIntentAccepted(t *testing.T) {
	a, handler := newTestAPI(t, nil)

	rec := postIntent(t, handler, depositRequest("t1"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var st intent.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "t1", st.IntentID)
	assert.Equal(t, intent.StatePending, st.State)

	depth, err := a.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)

	saved, err := a.store.GetIntent(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "1000000", saved.SourceAmount)
}

func TestSubmitIntentIdempotent(t *testing.T) {
	a, handler := newTestAPI(t, nil)

	first := postIntent(t, handler, depositRequest("t1"))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := postIntent(t, handler, depositRequest("t1"))
	require.Equal(t, http.StatusOK, second.Code)

	depth, err := a.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth, "resubmission must not enqueue a second copy")
}

// blindLookupStore hides the status record from the first n GetStatus
// calls, reproducing two submissions of the same intent both passing the
// existence check before either has created a record.
type blindLookupStore struct {
	status.Store
	blind int32
}

func (s *blindLookupStore) GetStatus(ctx context.Context, intentID string) (*intent.Status, error) {
	if atomic.AddInt32(&s.blind, -1) >= 0 {
		return nil, nil
	}
	return s.Store.GetStatus(ctx, intentID)
}

func TestSubmitIntentDuplicateRaceEnqueuesOnce(t *testing.T) {
	a, handler := newTestAPI(t, nil)
	a.store = &blindLookupStore{Store: a.store, blind: 2}

	first := postIntent(t, handler, depositRequest("t1"))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := postIntent(t, handler, depositRequest("t1"))
	require.Equal(t, http.StatusOK, second.Code)

	depth, err := a.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth, "racing duplicates must enqueue exactly once")
}

func TestSubmitIntentRejectsUnsignedWithdrawal(t *testing.T) {
	a, handler := newTestAPI(t, nil)

	body := depositRequest("t1")
	body["metadata"] = map[string]any{
		"action": "lending_withdraw",
		"market": "main-market",
		"mint":   "usdc-mint",
	}

	rec := postIntent(t, handler, body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	depth, err := a.queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestSubmitIntentRejectsMissingFields(t *testing.T) {
	_, handler := newTestAPI(t, nil)

	body := depositRequest("t1")
	delete(body, "sourceAmount")

	rec := postIntent(t, handler, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitIntentRejectsInvalidJSON(t *testing.T) {
	_, handler := newTestAPI(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/intents", bytes.NewReader([]byte("{not json")))
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitIntentRejectsWrongChain(t *testing.T) {
	_, handler := newTestAPI(t, nil)

	body := depositRequest("t1")
	body["destinationChain"] = "solana"

	rec := postIntent(t, handler, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitIntentRejectsUnknownAsset(t *testing.T) {
	registry, err := assets.Parse([]byte(`
assets:
  - id: usdc.near
    chain: near
    symbol: USDC
    decimals: 6
`))
	require.NoError(t, err)
	_, handler := newTestAPI(t, registry)

	body := depositRequest("t1")
	body["sourceAsset"] = "shady.near"

	rec := postIntent(t, handler, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown source asset")
}

func TestGetIntentStatus(t *testing.T) {
	_, handler := newTestAPI(t, nil)

	rec := postIntent(t, handler, depositRequest("t1"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	get := httptest.NewRecorder()
	handler.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/v1/intents/t1", nil))
	require.Equal(t, http.StatusOK, get.Code)

	var st intent.Status
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &st))
	assert.Equal(t, intent.StatePending, st.State)
}

func TestGetIntentStatusNotFound(t *testing.T) {
	_, handler := newTestAPI(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/intents/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDeadLetters(t *testing.T) {
	a, handler := newTestAPI(t, nil)

	in := &intent.ValidatedIntent{Intent: intent.Intent{IntentID: "t1"}}
	require.NoError(t, a.queue.Enqueue(context.Background(), in))
	item, err := a.queue.FetchNext(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.queue.MoveToDeadLetter(context.Background(), item.Receipt, "exhausted", 3))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/dead-letters", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		DeadLetters []*queue.DeadLetter `json:"deadLetters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.DeadLetters, 1)
	assert.Equal(t, "exhausted", out.DeadLetters[0].Reason)
	assert.Equal(t, 3, out.DeadLetters[0].Attempts)
}

func TestListDeadLettersRejectsBadLimit(t *testing.T) {
	_, handler := newTestAPI(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/dead-letters?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
