package relayer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	playground "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/omnivault/intent-relayer/internal/metrics"
	apperrors "github.com/omnivault/intent-relayer/pkg/app/errors"
	"github.com/omnivault/intent-relayer/pkg/assets"
	"github.com/omnivault/intent-relayer/pkg/auth"
	"github.com/omnivault/intent-relayer/pkg/intent"
	"github.com/omnivault/intent-relayer/pkg/queue"
	"github.com/omnivault/intent-relayer/pkg/status"
)

const (
	maxRequestBody        = 1 << 20 // 1MB
	defaultDeadLetterPage = 100
)

// api carries the dependencies of the public intent routes
type api struct {
	validator *intent.Validator
	registry  *assets.Registry
	check     *playground.Validate
	store     status.Store
	queue     queue.Queue
	logger    *zap.Logger
}

// submitIntentRequest is the wire shape of an intent submission. Structural
// requirements live in the validate tags; semantic rules (amount bounds,
// served chain, metadata completeness) belong to the intent validator.
type submitIntentRequest struct {
	IntentID          string                `json:"intentId" validate:"required"`
	SourceChain       string                `json:"sourceChain" validate:"required,oneof=near solana"`
	DestinationChain  string                `json:"destinationChain" validate:"required,oneof=near solana"`
	SourceAsset       string                `json:"sourceAsset" validate:"required"`
	IntermediateAsset string                `json:"intermediateAsset,omitempty"`
	FinalAsset        string                `json:"finalAsset" validate:"required"`
	SourceAmount      string                `json:"sourceAmount" validate:"required,number"`
	DestinationAmount string                `json:"destinationAmount,omitempty" validate:"omitempty,number"`
	SlippageBps       int                   `json:"slippageBps,omitempty" validate:"gte=0,lte=10000"`
	UserDestination   string                `json:"userDestination" validate:"required"`
	AgentDestination  string                `json:"agentDestination" validate:"required"`
	Metadata          intent.Metadata       `json:"metadata,omitempty"`
	UserSignature     *intent.UserSignature `json:"userSignature,omitempty"`
	OriginTxHash      string                `json:"originTxHash,omitempty"`
	DepositAddress    string                `json:"depositAddress,omitempty"`
}

func (r *submitIntentRequest) toIntent() *intent.Intent {
	return &intent.Intent{
		IntentID:          r.IntentID,
		SourceChain:       intent.Chain(r.SourceChain),
		DestinationChain:  intent.Chain(r.DestinationChain),
		SourceAsset:       r.SourceAsset,
		IntermediateAsset: r.IntermediateAsset,
		FinalAsset:        r.FinalAsset,
		SourceAmount:      r.SourceAmount,
		DestinationAmount: r.DestinationAmount,
		SlippageBps:       r.SlippageBps,
		UserDestination:   r.UserDestination,
		AgentDestination:  r.AgentDestination,
		Metadata:          r.Metadata,
		UserSignature:     r.UserSignature,
		OriginTxHash:      r.OriginTxHash,
		DepositAddress:    r.DepositAddress,
	}
}

// submitIntent validates, authorizes and enqueues a new intent. Submission
// is idempotent on intentId: resubmitting a known intent returns its
// current status without enqueueing a second copy.
func (a *api) submitIntent(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return apperrors.ValidationError(err, "failed to read request body")
	}

	var req submitIntentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.ValidationError(err, "invalid JSON")
	}
	if err := a.check.Struct(&req); err != nil {
		return apperrors.ValidationError(err, fmt.Sprintf("invalid request: %v", err))
	}

	validated, err := a.validator.Validate(req.toIntent())
	if err != nil {
		return apperrors.ValidationError(err, err.Error())
	}
	if err := a.checkAssets(validated); err != nil {
		return err
	}

	if err := auth.AuthorizeIntent(validated); err != nil {
		a.logger.Warn("Intent rejected",
			zap.String("intent_id", validated.IntentID),
			zap.Error(err))
		return apperrors.AuthorizationError(err, "intent authorization failed")
	}

	existing, err := a.store.GetStatus(ctx, validated.IntentID)
	if err != nil {
		return apperrors.GeneralError(err)
	}
	if existing != nil {
		return writeJSON(w, http.StatusOK, existing)
	}

	if err := a.store.SaveIntent(ctx, validated); err != nil {
		return apperrors.GeneralError(err)
	}

	// Creation decides idempotency: exactly one submission wins the insert
	// and enqueues; every other one, concurrent or late, is served the
	// existing record instead.
	st := &intent.Status{
		IntentID:  validated.IntentID,
		State:     intent.StatePending,
		UpdatedAt: time.Now().UTC(),
	}
	created, err := a.store.CreateStatus(ctx, st)
	if err != nil {
		return apperrors.GeneralError(err)
	}
	if !created {
		existing, err := a.store.GetStatus(ctx, validated.IntentID)
		if err != nil {
			return apperrors.GeneralError(err)
		}
		return writeJSON(w, http.StatusOK, existing)
	}

	if err := a.queue.Enqueue(ctx, validated); err != nil {
		return apperrors.GeneralError(err)
	}

	metrics.IntentsTotal.WithLabelValues(string(intent.StatePending)).Inc()
	a.logger.Info("Intent accepted",
		zap.String("intent_id", validated.IntentID),
		zap.String("action", string(validated.Metadata.Action())))

	return writeJSON(w, http.StatusAccepted, st)
}

// checkAssets gates submissions on the static registry when one is loaded
func (a *api) checkAssets(in *intent.ValidatedIntent) error {
	if a.registry == nil {
		return nil
	}
	if !a.registry.Known(in.SourceAsset) {
		return apperrors.ValidationError(nil, fmt.Sprintf("unknown source asset %q", in.SourceAsset))
	}
	if !a.registry.Known(in.FinalAsset) {
		return apperrors.ValidationError(nil, fmt.Sprintf("unknown final asset %q", in.FinalAsset))
	}
	return nil
}

// getIntent returns the lifecycle status of a submitted intent
func (a *api) getIntent(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")

	st, err := a.store.GetStatus(r.Context(), id)
	if err != nil {
		return apperrors.GeneralError(err)
	}
	if st == nil {
		return apperrors.ResourceNotFoundError(nil, fmt.Sprintf("intent %s not found", id))
	}
	return writeJSON(w, http.StatusOK, st)
}

// listDeadLetters returns intents parked for manual inspection, newest first
func (a *api) listDeadLetters(w http.ResponseWriter, r *http.Request) error {
	limit := defaultDeadLetterPage
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return apperrors.ValidationError(err, "limit must be a positive integer")
		}
		limit = n
	}

	letters, err := a.queue.ListDeadLetters(r.Context(), limit)
	if err != nil {
		return apperrors.GeneralError(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"deadLetters": letters})
}

func writeJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
