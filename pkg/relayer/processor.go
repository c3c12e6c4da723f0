package relayer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/omnivault/intent-relayer/internal/metrics"
	apperrors "github.com/omnivault/intent-relayer/pkg/app/errors"
	"github.com/omnivault/intent-relayer/pkg/intent"
	"github.com/omnivault/intent-relayer/pkg/queue"
	"github.com/omnivault/intent-relayer/pkg/status"
)

// Processor is the retry state machine: it leases intents from the durable
// queue, routes them to a flow, and drives bounded in-process retries with
// linear backoff. One bad intent never halts the loop; every failure is
// captured into status.
type Processor struct {
	queue       queue.Queue
	store       status.Store
	router      *Router
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger

	// sleep is swapped out in tests
	sleep func(time.Duration)
}

// NewProcessor creates the retry state machine
func NewProcessor(
	q queue.Queue,
	store status.Store,
	router *Router,
	maxAttempts int,
	backoff time.Duration,
	logger *zap.Logger,
) *Processor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Processor{
		queue:       q,
		store:       store,
		router:      router,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
		sleep:       time.Sleep,
	}
}

// ProcessNext leases and fully processes one queue item. It reports false
// when the queue is empty; that is a no-op poll, not an error.
func (p *Processor) ProcessNext(ctx context.Context) (bool, error) {
	item, err := p.queue.FetchNext(ctx)
	if err != nil {
		return false, fmt.Errorf("queue fetch failed: %w", err)
	}
	if item == nil {
		return false, nil
	}
	p.processItem(ctx, item)
	return true, nil
}

func (p *Processor) processItem(ctx context.Context, item *queue.Item) {
	in := item.Intent

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Panic while processing intent",
				zap.String("intent_id", in.IntentID),
				zap.Any("panic", r))
			metrics.ErrorsTotal.WithLabelValues("processor", "panic").Inc()
			p.failTerminally(ctx, item, 0, nil, fmt.Sprintf("internal error: %v", r), true)
		}
	}()

	flow, err := p.router.Route(in)
	if err != nil {
		p.failTerminally(ctx, item, 0, nil, err.Error(), true)
		return
	}

	for attempt := 1; ; attempt++ {
		p.setStatus(ctx, in.IntentID, &intent.Status{
			State:    intent.StateProcessing,
			Attempts: attempt,
		})

		started := time.Now()
		res, err := flow.Execute(ctx, in)
		metrics.ProcessingDuration.WithLabelValues(flow.Name()).Observe(time.Since(started).Seconds())

		if err == nil {
			metrics.AttemptsTotal.WithLabelValues(flow.Name(), "success").Inc()
			p.finish(ctx, item, attempt, res)
			return
		}

		metrics.AttemptsTotal.WithLabelValues(flow.Name(), "failure").Inc()
		p.logger.Warn("Flow execution failed",
			zap.String("intent_id", in.IntentID),
			zap.String("flow", flow.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if res != nil {
			// Partial progress: funds moved before a later step failed.
			// Terminal, never retried; a retry would move funds twice.
			p.failTerminally(ctx, item, attempt, res, err.Error(), false)
			return
		}
		if !apperrors.Retryable(err) {
			p.failTerminally(ctx, item, attempt, nil, err.Error(), false)
			return
		}
		if attempt >= p.maxAttempts {
			p.failTerminally(ctx, item, attempt, nil, err.Error(), true)
			return
		}

		p.setStatus(ctx, in.IntentID, &intent.Status{
			State:    intent.StateProcessing,
			Attempts: attempt,
			Detail:   fmt.Sprintf("retrying after error: %s", err),
		})
		p.sleep(p.backoff * time.Duration(attempt))
	}
}

// finish records a successful flow outcome: terminal success, or a suspend
// state handing ownership to the completion poller. The queue item is
// acknowledged either way.
func (p *Processor) finish(ctx context.Context, item *queue.Item, attempt int, res *FlowResult) {
	st := &intent.Status{
		State:          intent.StateSucceeded,
		TxID:           res.TxID,
		BridgeTxID:     res.BridgeTxID,
		DepositAddress: res.DepositAddress,
		DepositMemo:    res.DepositMemo,
		ExpectedAmount: res.ExpectedAmount,
		Attempts:       attempt,
		Detail:         res.Detail,
	}
	if res.Await != "" {
		st.State = res.Await
	}

	p.setStatus(ctx, item.Intent.IntentID, st)
	metrics.IntentsTotal.WithLabelValues(string(st.State)).Inc()

	if err := p.queue.Ack(ctx, item.Receipt); err != nil {
		p.logger.Error("Failed to ack queue item",
			zap.String("intent_id", item.Intent.IntentID), zap.Error(err))
	}

	p.logger.Info("Intent processed",
		zap.String("intent_id", item.Intent.IntentID),
		zap.String("state", string(st.State)),
		zap.String("tx_id", st.TxID),
		zap.Int("attempts", attempt))
}

// failTerminally marks the intent failed and removes the queue item, either
// into the dead-letter store (exhausted retry budget, unroutable, panic) or
// with a plain ack (partial progress that must not re-run).
func (p *Processor) failTerminally(
	ctx context.Context,
	item *queue.Item,
	attempt int,
	res *FlowResult,
	errMsg string,
	deadLetter bool,
) {
	st := &intent.Status{
		State:    intent.StateFailed,
		Attempts: attempt,
		Error:    errMsg,
	}
	if res != nil {
		// Funds-moved facts are never hidden by a later failure.
		st.TxID = res.TxID
		st.BridgeTxID = res.BridgeTxID
		st.Detail = "partial progress before failure"
	}
	p.setStatus(ctx, item.Intent.IntentID, st)
	metrics.IntentsTotal.WithLabelValues(string(intent.StateFailed)).Inc()

	if deadLetter {
		if err := p.queue.MoveToDeadLetter(ctx, item.Receipt, errMsg, attempt); err != nil {
			p.logger.Error("Failed to dead-letter queue item",
				zap.String("intent_id", item.Intent.IntentID), zap.Error(err))
			return
		}
		metrics.DeadLettersTotal.Inc()
		return
	}
	if err := p.queue.Ack(ctx, item.Receipt); err != nil {
		p.logger.Error("Failed to ack queue item",
			zap.String("intent_id", item.Intent.IntentID), zap.Error(err))
	}
}

// setStatus upserts the lifecycle record, preserving funds-moved facts
// (transaction IDs, deposit coordinates) already recorded by an earlier
// pass when the update leaves them empty.
func (p *Processor) setStatus(ctx context.Context, intentID string, st *intent.Status) {
	st.IntentID = intentID
	st.UpdatedAt = time.Now().UTC()

	if prev, err := p.store.GetStatus(ctx, intentID); err == nil && prev != nil {
		if st.TxID == "" {
			st.TxID = prev.TxID
		}
		if st.BridgeTxID == "" {
			st.BridgeTxID = prev.BridgeTxID
		}
		if st.DepositAddress == "" {
			st.DepositAddress = prev.DepositAddress
			st.DepositMemo = prev.DepositMemo
		}
		if st.ExpectedAmount == "" {
			st.ExpectedAmount = prev.ExpectedAmount
		}
	}

	if err := p.store.SetStatus(ctx, st); err != nil {
		p.logger.Error("Failed to update intent status",
			zap.String("intent_id", intentID),
			zap.String("state", string(st.State)),
			zap.Error(err))
	}
}
