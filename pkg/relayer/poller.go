package relayer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/omnivault/intent-relayer/internal/metrics"
	"github.com/omnivault/intent-relayer/pkg/intent"
	"github.com/omnivault/intent-relayer/pkg/queue"
	"github.com/omnivault/intent-relayer/pkg/settlement"
	"github.com/omnivault/intent-relayer/pkg/status"
)

// Poller watches intents parked in either suspend state, awaiting an
// external settlement leg. Once the settlement service reports the leg
// finished it re-enqueues the intent for a second pass through the router;
// refunds and failures terminate it.
// While an intent is awaiting, the poller is its sole owner; the consumer
// loop only takes back over after re-enqueue.
type Poller struct {
	store      status.Store
	queue      queue.Queue
	settlement settlement.Client
	interval   time.Duration
	maxWait    time.Duration
	logger     *zap.Logger
}

// NewPoller creates the completion poller. maxWait bounds how long a single
// intent may stay parked before it is failed instead of polled forever.
func NewPoller(
	store status.Store,
	q queue.Queue,
	settlementClient settlement.Client,
	interval, maxWait time.Duration,
	logger *zap.Logger,
) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 2 * time.Hour
	}
	return &Poller{
		store:      store,
		queue:      q,
		settlement: settlementClient,
		interval:   interval,
		maxWait:    maxWait,
		logger:     logger,
	}
}

// Run polls until the context is cancelled
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PollOnce(ctx); err != nil {
				p.logger.Error("Poll cycle failed", zap.Error(err))
				metrics.ErrorsTotal.WithLabelValues("poller", "cycle").Inc()
			}
		}
	}
}

// PollOnce runs a single poll cycle over every awaiting intent
func (p *Poller) PollOnce(ctx context.Context) error {
	var awaiting []*intent.Status
	for _, state := range []intent.State{intent.StateAwaitingDeposit, intent.StateAwaitingIntents} {
		parked, err := p.store.GetStatusesByState(ctx, state)
		if err != nil {
			return fmt.Errorf("failed to list %s intents: %w", state, err)
		}
		awaiting = append(awaiting, parked...)
	}

	metrics.PollCyclesTotal.Inc()
	metrics.AwaitingSettlement.Set(float64(len(awaiting)))

	for _, st := range awaiting {
		if err := p.pollIntent(ctx, st); err != nil {
			// Per-intent isolation: log and continue with the rest.
			p.logger.Error("Failed to poll intent",
				zap.String("intent_id", st.IntentID), zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues("poller", "intent").Inc()
		}
	}
	return nil
}

func (p *Poller) pollIntent(ctx context.Context, st *intent.Status) error {
	if st.DepositAddress == "" {
		// Nothing to poll against; a parked intent without a deposit
		// address can never settle.
		return p.fail(ctx, st, "awaiting settlement without a deposit address")
	}

	if time.Since(st.UpdatedAt) > p.maxWait {
		p.logger.Warn("Settlement wait horizon exceeded",
			zap.String("intent_id", st.IntentID),
			zap.Duration("max_wait", p.maxWait))
		return p.fail(ctx, st, fmt.Sprintf("settlement timed out after %s", p.maxWait))
	}

	ext, err := p.settlement.GetExecutionStatus(ctx, st.DepositAddress, st.DepositMemo)
	if err != nil {
		// Transient settlement-service errors leave the intent parked; it
		// will be polled again next cycle.
		return fmt.Errorf("settlement status query failed: %w", err)
	}

	switch ext.Status {
	case settlement.StatusSuccess, settlement.StatusCompleted:
		return p.resume(ctx, st, ext)

	case settlement.StatusRefunded, settlement.StatusFailed:
		p.logger.Info("Settlement leg terminated externally",
			zap.String("intent_id", st.IntentID),
			zap.String("status", ext.Status))
		return p.fail(ctx, st, fmt.Sprintf("settlement leg %s", ext.Status))

	case settlement.StatusPending, settlement.StatusProcessing:
		return nil

	default:
		// Fail open toward more polling: an unrecognized status must not
		// terminate a user's funds-in-flight.
		p.logger.Warn("Unknown settlement status, continuing to poll",
			zap.String("intent_id", st.IntentID),
			zap.String("status", ext.Status))
		return nil
	}
}

// resume re-enqueues a settled intent for its second pass through the
// router. The original intent data must still be retrievable; losing it
// after recording a successful settlement is a bug, not nothing-to-do.
func (p *Poller) resume(ctx context.Context, st *intent.Status, ext *settlement.ExecutionStatus) error {
	in, err := p.store.GetIntent(ctx, st.IntentID)
	if err != nil {
		return p.fail(ctx, st, "missing intent data")
	}

	st.State = intent.StateProcessing
	st.Detail = "external settlement completed, re-enqueued"
	if ext.TxHash != "" {
		st.BridgeTxID = ext.TxHash
	}
	st.UpdatedAt = time.Now().UTC()
	if err := p.store.SetStatus(ctx, st); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	clone := in.CloneWithSettled()
	if err := p.queue.Enqueue(ctx, clone); err != nil {
		return fmt.Errorf("failed to re-enqueue settled intent: %w", err)
	}

	p.logger.Info("Settled intent re-enqueued",
		zap.String("intent_id", st.IntentID),
		zap.String("bridge_tx_id", st.BridgeTxID))
	return nil
}

func (p *Poller) fail(ctx context.Context, st *intent.Status, reason string) error {
	st.State = intent.StateFailed
	st.Error = reason
	st.UpdatedAt = time.Now().UTC()
	if err := p.store.SetStatus(ctx, st); err != nil {
		return fmt.Errorf("failed to record terminal failure: %w", err)
	}
	metrics.IntentsTotal.WithLabelValues(string(intent.StateFailed)).Inc()
	return nil
}
