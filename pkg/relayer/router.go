// Package relayer owns the intent lifecycle: routing validated intents to
// execution flows, driving the bounded retry state machine over the durable
// queue, and polling external settlement legs to completion.
package relayer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// FlowResult is what an execution flow hands back to the state machine. A
// non-empty Await parks the intent in a suspend state instead of finishing
// it; the completion poller owns it from there.
type FlowResult struct {
	TxID           string
	BridgeTxID     string
	Await          intent.State
	DepositAddress string
	DepositMemo    string
	ExpectedAmount string
	Detail         string
}

// Flow is one execution strategy for a validated intent
type Flow interface {
	// Name identifies the flow in logs and metrics
	Name() string
	// Matches reports whether this flow should execute the intent
	Matches(in *intent.ValidatedIntent) bool
	// Execute runs the flow. A non-nil result alongside a non-nil error
	// reports partial progress: funds moved (TxID) before a later step
	// failed. The state machine must surface both, never collapse them.
	Execute(ctx context.Context, in *intent.ValidatedIntent) (*FlowResult, error)
}

// Router selects the execution flow for an intent by metadata discriminator.
// Precedence is fixed (protocol deposit > protocol withdraw > chain swap)
// and the first matching predicate wins; metadata could in principle
// satisfy more than one.
type Router struct {
	flows  []Flow
	logger *zap.Logger
}

// NewRouter creates a router over the given flows in precedence order
func NewRouter(logger *zap.Logger, flows ...Flow) *Router {
	return &Router{flows: flows, logger: logger}
}

// Route returns the first flow whose predicate matches the intent
func (r *Router) Route(in *intent.ValidatedIntent) (Flow, error) {
	for _, f := range r.flows {
		if f.Matches(in) {
			r.logger.Debug("Routed intent",
				zap.String("intent_id", in.IntentID),
				zap.String("flow", f.Name()))
			return f, nil
		}
	}
	return nil, fmt.Errorf("no execution flow matches intent %s (action %q)", in.IntentID, in.Metadata.Action())
}
