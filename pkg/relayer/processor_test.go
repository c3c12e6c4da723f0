package relayer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/omnivault/intent-relayer/pkg/app/errors"
	"github.com/omnivault/intent-relayer/pkg/intent"
	"github.com/omnivault/intent-relayer/pkg/queue"
	"github.com/omnivault/intent-relayer/pkg/status"
)

func processorIntent(id string) *intent.ValidatedIntent {
	return &intent.ValidatedIntent{Intent: intent.Intent{
		IntentID:         id,
		SourceChain:      intent.ChainNear,
		DestinationChain: intent.ChainNear,
		SourceAsset:      "usdc.near",
		FinalAsset:       "usdt.near",
		SourceAmount:     "1000000",
		UserDestination:  "alice.near",
		AgentDestination: "agent.near",
		Metadata:         intent.Metadata{"action": "swap"},
	}}
}

func newTestProcessor(t *testing.T, flow Flow, maxAttempts int) (*Processor, *queue.MemoryQueue, *status.MemoryStore) {
	t.Helper()
	q := queue.NewMemoryQueue(time.Minute)
	store := status.NewMemoryStore()
	router := NewRouter(zap.NewNop(), flow)
	p := NewProcessor(q, store, router, maxAttempts, time.Millisecond, zap.NewNop())
	p.sleep = func(time.Duration) {}
	return p, q, store
}

func TestProcessNextEmptyQueue(t *testing.T) {
	p, _, _ := newTestProcessor(t, &MockFlow{}, 3)

	processed, err := p.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessNextSuccess(t *testing.T) {
	ctx := context.Background()
	flow := &MockFlow{ExecuteFunc: func(_ context.Context, _ *intent.ValidatedIntent) (*FlowResult, error) {
		return &FlowResult{TxID: "abc"}, nil
	}}
	p, q, store := newTestProcessor(t, flow, 3)

	require.NoError(t, q.Enqueue(ctx, processorIntent("t1")))
	processed, err := p.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	st, err := store.GetStatus(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, intent.StateSucceeded, st.State)
	assert.Equal(t, "abc", st.TxID)
	assert.Equal(t, 1, st.Attempts)

	// Acked: nothing left to fetch, nothing dead-lettered.
	depth, _ := q.Depth(ctx)
	assert.Zero(t, depth)
	dead, _ := q.ListDeadLetters(ctx, 10)
	assert.Empty(t, dead)
}

func TestProcessNextRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	failures := 2
	flow := &MockFlow{ExecuteFunc: func(_ context.Context, _ *intent.ValidatedIntent) (*FlowResult, error) {
		if failures > 0 {
			failures--
			return nil, apperrors.ExecutionError(errors.New("rpc unavailable"), "transfer failed")
		}
		return &FlowResult{TxID: "abc"}, nil
	}}
	p, q, store := newTestProcessor(t, flow, 5)

	require.NoError(t, q.Enqueue(ctx, processorIntent("t1")))
	_, err := p.ProcessNext(ctx)
	require.NoError(t, err)

	// Failed twice, succeeded on the third in-process attempt.
	assert.Equal(t, 3, flow.Executions)

	st, _ := store.GetStatus(ctx, "t1")
	require.NotNil(t, st)
	assert.Equal(t, intent.StateSucceeded, st.State)
	assert.Equal(t, 3, st.Attempts)

	dead, _ := q.ListDeadLetters(ctx, 10)
	assert.Empty(t, dead)
}

func TestProcessNextExhaustsRetriesAndDeadLetters(t *testing.T) {
	ctx := context.Background()
	flow := &MockFlow{ExecuteFunc: func(_ context.Context, _ *intent.ValidatedIntent) (*FlowResult, error) {
		return nil, apperrors.ExecutionError(errors.New("insufficient liquidity"), "transfer failed")
	}}
	p, q, store := newTestProcessor(t, flow, 3)

	require.NoError(t, q.Enqueue(ctx, processorIntent("t1")))
	_, err := p.ProcessNext(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, flow.Executions)

	st, _ := store.GetStatus(ctx, "t1")
	require.NotNil(t, st)
	assert.Equal(t, intent.StateFailed, st.State)
	assert.Equal(t, 3, st.Attempts)
	assert.Contains(t, st.Error, "insufficient liquidity")

	// Exactly one dead letter, and the item never returns to pending.
	dead, _ := q.ListDeadLetters(ctx, 10)
	require.Len(t, dead, 1)
	assert.Equal(t, "t1", dead[0].Intent.IntentID)
	assert.Equal(t, 3, dead[0].Attempts)

	depth, _ := q.Depth(ctx)
	assert.Zero(t, depth)
}

func TestProcessNextAwaitParksIntent(t *testing.T) {
	ctx := context.Background()
	flow := &MockFlow{ExecuteFunc: func(_ context.Context, _ *intent.ValidatedIntent) (*FlowResult, error) {
		return &FlowResult{
			TxID:           "fund-tx",
			Await:          intent.StateAwaitingIntents,
			DepositAddress: "deposit.near",
			DepositMemo:    "memo-1",
			ExpectedAmount: "995000",
		}, nil
	}}
	p, q, store := newTestProcessor(t, flow, 3)

	require.NoError(t, q.Enqueue(ctx, processorIntent("t1")))
	_, err := p.ProcessNext(ctx)
	require.NoError(t, err)

	st, _ := store.GetStatus(ctx, "t1")
	require.NotNil(t, st)
	assert.Equal(t, intent.StateAwaitingIntents, st.State)
	assert.Equal(t, "deposit.near", st.DepositAddress)
	assert.Equal(t, "memo-1", st.DepositMemo)
	assert.Equal(t, "995000", st.ExpectedAmount)
	assert.Equal(t, "fund-tx", st.TxID)

	// The queue item is acked; the poller owns the intent now.
	depth, _ := q.Depth(ctx)
	assert.Zero(t, depth)
}

func TestProcessNextPartialProgressIsTerminal(t *testing.T) {
	ctx := context.Background()
	flow := &MockFlow{ExecuteFunc: func(_ context.Context, _ *intent.ValidatedIntent) (*FlowResult, error) {
		return &FlowResult{TxID: "withdraw-tx"},
			apperrors.ExecutionError(errors.New("bridge quote failed"), "bridge-back failed")
	}}
	p, q, store := newTestProcessor(t, flow, 5)

	require.NoError(t, q.Enqueue(ctx, processorIntent("t1")))
	_, err := p.ProcessNext(ctx)
	require.NoError(t, err)

	// Never retried: funds already moved.
	assert.Equal(t, 1, flow.Executions)

	st, _ := store.GetStatus(ctx, "t1")
	require.NotNil(t, st)
	assert.Equal(t, intent.StateFailed, st.State)
	assert.Equal(t, "withdraw-tx", st.TxID)
	assert.Empty(t, st.BridgeTxID)
	assert.Contains(t, st.Error, "bridge quote failed")
}

func TestProcessNextPanicIsolated(t *testing.T) {
	ctx := context.Background()
	flow := &MockFlow{ExecuteFunc: func(_ context.Context, _ *intent.ValidatedIntent) (*FlowResult, error) {
		panic("flow bug")
	}}
	p, q, store := newTestProcessor(t, flow, 3)

	require.NoError(t, q.Enqueue(ctx, processorIntent("t1")))
	require.NoError(t, q.Enqueue(ctx, processorIntent("t2")))

	// The panic must not escape ProcessNext.
	processed, err := p.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	st, _ := store.GetStatus(ctx, "t1")
	require.NotNil(t, st)
	assert.Equal(t, intent.StateFailed, st.State)
	assert.Contains(t, st.Error, "internal error")

	// The next intent is still processable.
	flow.ExecuteFunc = func(_ context.Context, _ *intent.ValidatedIntent) (*FlowResult, error) {
		return &FlowResult{TxID: "ok"}, nil
	}
	processed, err = p.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	st2, _ := store.GetStatus(ctx, "t2")
	require.NotNil(t, st2)
	assert.Equal(t, intent.StateSucceeded, st2.State)
}

func TestProcessorPreservesEarlierTxID(t *testing.T) {
	ctx := context.Background()
	flow := &MockFlow{ExecuteFunc: func(_ context.Context, _ *intent.ValidatedIntent) (*FlowResult, error) {
		return &FlowResult{Detail: "external settlement completed"}, nil
	}}
	p, q, store := newTestProcessor(t, flow, 3)

	// First pass recorded the funding transaction.
	require.NoError(t, store.SetStatus(ctx, &intent.Status{
		IntentID:  "t1",
		State:     intent.StateProcessing,
		TxID:      "fund-tx",
		UpdatedAt: time.Now().UTC(),
	}))

	in := processorIntent("t1")
	in.Metadata = in.Metadata.WithSettled()
	require.NoError(t, q.Enqueue(ctx, in))

	_, err := p.ProcessNext(ctx)
	require.NoError(t, err)

	st, _ := store.GetStatus(ctx, "t1")
	require.NotNil(t, st)
	assert.Equal(t, intent.StateSucceeded, st.State)
	assert.Equal(t, "fund-tx", st.TxID)
}
