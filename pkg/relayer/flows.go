package relayer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/omnivault/intent-relayer/pkg/app/errors"
	"github.com/omnivault/intent-relayer/pkg/custody"
	"github.com/omnivault/intent-relayer/pkg/intent"
	"github.com/omnivault/intent-relayer/pkg/settlement"
)

// ChainExecutor builds, signs and broadcasts transactions on the served
// chain. Signing goes through the custody signer; this interface is the
// chain-specific part only.
type ChainExecutor interface {
	// Transfer moves amount of asset from the custodied account at path to
	// the destination address and returns the transaction identifier
	Transfer(ctx context.Context, path, asset, amount, to, memo string) (string, error)
}

// LendingClient executes protocol deposit/withdraw operations against the
// lending market on the served chain
type LendingClient interface {
	Deposit(ctx context.Context, path, market, mint, amount string) (string, error)
	Withdraw(ctx context.Context, path, market, mint, amount string) (string, error)
}

// minAcceptableOut applies the slippage tolerance to the quoted destination
// amount. An empty wanted amount accepts any quote.
func minAcceptableOut(wanted string, slippageBps int) (decimal.Decimal, bool, error) {
	if wanted == "" {
		return decimal.Zero, false, nil
	}
	want, err := decimal.NewFromString(wanted)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid destination amount %q: %w", wanted, err)
	}
	tolerance := decimal.NewFromInt(int64(10000 - slippageBps)).Div(decimal.NewFromInt(10000))
	return want.Mul(tolerance).Floor(), true, nil
}

func checkQuote(quote *settlement.Quote, wanted string, slippageBps int) error {
	min, bounded, err := minAcceptableOut(wanted, slippageBps)
	if err != nil {
		return apperrors.ExecutionError(err, "invalid quote bounds")
	}
	if !bounded {
		return nil
	}
	out, err := decimal.NewFromString(quote.AmountOut)
	if err != nil {
		return apperrors.ExecutionError(fmt.Errorf("invalid quoted amountOut %q: %w", quote.AmountOut, err), "invalid quote")
	}
	if out.LessThan(min) {
		return apperrors.ExecutionError(
			fmt.Errorf("quote %s below minimum acceptable %s", quote.AmountOut, min),
			"quote below slippage tolerance")
	}
	return nil
}

// ChainSwapFlow is the default flow: swap source asset for the final asset,
// crossing chains through the external settlement service when needed. A
// cross-chain swap runs in two passes: the first sends funds to the quoted
// deposit address and parks the intent awaiting settlement, the second runs
// after the poller observes the external leg complete.
type ChainSwapFlow struct {
	settlement settlement.Client
	executor   ChainExecutor
	signer     custody.Signer
	basePath   string
	logger     *zap.Logger
}

// NewChainSwapFlow creates the default swap flow
func NewChainSwapFlow(
	settlementClient settlement.Client,
	executor ChainExecutor,
	signer custody.Signer,
	basePath string,
	logger *zap.Logger,
) *ChainSwapFlow {
	return &ChainSwapFlow{
		settlement: settlementClient,
		executor:   executor,
		signer:     signer,
		basePath:   basePath,
		logger:     logger,
	}
}

func (f *ChainSwapFlow) Name() string { return "chain_swap" }

// Matches accepts everything; the swap flow is the default and must be
// registered last.
func (f *ChainSwapFlow) Matches(_ *intent.ValidatedIntent) bool { return true }

func (f *ChainSwapFlow) Execute(ctx context.Context, in *intent.ValidatedIntent) (*FlowResult, error) {
	if in.Metadata.Settled() {
		// Second pass: the external leg already delivered the final asset
		// to the user's destination.
		return &FlowResult{Detail: "external settlement completed"}, nil
	}

	path := custody.PathForIntent(f.basePath, in)
	refund, err := f.signer.DeriveAddress(ctx, path)
	if err != nil {
		return nil, apperrors.ExecutionError(err, "failed to derive refund address")
	}

	quote, err := f.settlement.GetQuote(ctx, &settlement.QuoteRequest{
		SourceChain:      string(in.SourceChain),
		DestinationChain: string(in.DestinationChain),
		SourceAsset:      in.SourceAsset,
		DestinationAsset: in.FinalAsset,
		Amount:           in.SourceAmount,
		Refund:           refund,
		Recipient:        in.UserDestination,
		SlippageBps:      in.SlippageBps,
	})
	if err != nil {
		return nil, apperrors.ExecutionError(err, "failed to obtain swap quote")
	}
	if err := checkQuote(quote, in.DestinationAmount, in.SlippageBps); err != nil {
		return nil, err
	}
	if quote.DepositAddress == "" {
		return nil, apperrors.ExecutionError(
			fmt.Errorf("quote %s has no deposit address", quote.QuoteID), "unusable quote")
	}

	txID, err := f.executor.Transfer(ctx, path, in.SourceAsset, in.SourceAmount, quote.DepositAddress, quote.DepositMemo)
	if err != nil {
		return nil, apperrors.ExecutionError(err, "failed to fund settlement deposit")
	}

	f.logger.Info("Swap leg funded, awaiting external settlement",
		zap.String("intent_id", in.IntentID),
		zap.String("tx_id", txID),
		zap.String("deposit_address", quote.DepositAddress))

	return &FlowResult{
		TxID:           txID,
		Await:          intent.StateAwaitingIntents,
		DepositAddress: quote.DepositAddress,
		DepositMemo:    quote.DepositMemo,
		ExpectedAmount: quote.AmountOut,
		Detail:         "awaiting external settlement",
	}, nil
}

// LendingDepositFlow deposits funds into a lending market. Deposit-class
// intents carry a deposit proof (the user escrowed funds on-chain), so no
// signature authority is needed. A cross-chain deposit parks until the
// settlement service delivers the escrowed funds; a same-chain deposit in
// the wrong asset swaps first. Either way the market deposit runs on the
// settled second pass.
type LendingDepositFlow struct {
	swap    *ChainSwapFlow
	lending LendingClient
	logger  *zap.Logger
}

// NewLendingDepositFlow creates the protocol-deposit flow
func NewLendingDepositFlow(swap *ChainSwapFlow, lending LendingClient, logger *zap.Logger) *LendingDepositFlow {
	return &LendingDepositFlow{swap: swap, lending: lending, logger: logger}
}

func (f *LendingDepositFlow) Name() string { return "lending_deposit" }

func (f *LendingDepositFlow) Matches(in *intent.ValidatedIntent) bool {
	return in.Metadata.Action() == intent.ActionLendingDeposit
}

func (f *LendingDepositFlow) Execute(ctx context.Context, in *intent.ValidatedIntent) (*FlowResult, error) {
	if !in.Metadata.Settled() {
		if in.SourceChain != in.DestinationChain {
			// The user escrowed funds at a bridge deposit address on the
			// source chain; the settlement service carries them across.
			// Nothing to execute until that leg lands.
			if in.DepositAddress == "" {
				return nil, apperrors.ExecutionError(
					fmt.Errorf("intent %s is cross-chain without a deposit address", in.IntentID),
					"cross-chain deposit missing deposit address")
			}
			f.logger.Info("Cross-chain deposit parked awaiting escrowed funds",
				zap.String("intent_id", in.IntentID),
				zap.String("deposit_address", in.DepositAddress))
			return &FlowResult{
				Await:          intent.StateAwaitingDeposit,
				DepositAddress: in.DepositAddress,
				ExpectedAmount: in.DestinationAmount,
				Detail:         "awaiting escrowed deposit settlement",
			}, nil
		}
		if in.SourceAsset != in.FinalAsset {
			return f.swap.Execute(ctx, in)
		}
	}

	amount := in.DestinationAmount
	if amount == "" {
		amount = in.SourceAmount
	}

	path := custody.PathForIntent(f.swap.basePath, in)
	txID, err := f.lending.Deposit(ctx, path, in.Metadata.Market(), in.Metadata.Mint(), amount)
	if err != nil {
		return nil, apperrors.ExecutionError(err, "lending deposit failed")
	}

	f.logger.Info("Lending deposit executed",
		zap.String("intent_id", in.IntentID),
		zap.String("market", in.Metadata.Market()),
		zap.String("tx_id", txID))
	return &FlowResult{TxID: txID}, nil
}

// LendingWithdrawFlow withdraws funds from a lending market and, when the
// user's destination lives on another chain, bridges them back through the
// settlement service. A withdrawal that succeeds on-chain but fails to
// bridge is partial progress: the result carries the withdrawal TxID and
// the error reports the failed bridge leg.
type LendingWithdrawFlow struct {
	swap    *ChainSwapFlow
	lending LendingClient
	logger  *zap.Logger
}

// NewLendingWithdrawFlow creates the protocol-withdraw flow
func NewLendingWithdrawFlow(swap *ChainSwapFlow, lending LendingClient, logger *zap.Logger) *LendingWithdrawFlow {
	return &LendingWithdrawFlow{swap: swap, lending: lending, logger: logger}
}

func (f *LendingWithdrawFlow) Name() string { return "lending_withdraw" }

func (f *LendingWithdrawFlow) Matches(in *intent.ValidatedIntent) bool {
	return in.Metadata.Action() == intent.ActionLendingWithdraw
}

func (f *LendingWithdrawFlow) Execute(ctx context.Context, in *intent.ValidatedIntent) (*FlowResult, error) {
	if in.Metadata.Settled() {
		// Second pass: the withdrawal already ran and the bridge-back leg
		// has settled.
		return &FlowResult{Detail: "bridge-back settlement completed"}, nil
	}

	path := custody.PathForIntent(f.swap.basePath, in)
	txID, err := f.lending.Withdraw(ctx, path, in.Metadata.Market(), in.Metadata.Mint(), in.SourceAmount)
	if err != nil {
		return nil, apperrors.ExecutionError(err, "lending withdrawal failed")
	}

	if in.SourceChain == in.DestinationChain {
		return &FlowResult{TxID: txID}, nil
	}

	// Bridge the withdrawn funds back to the user's chain. Funds have
	// already moved: any failure from here is partial progress.
	quote, err := f.swap.settlement.GetQuote(ctx, &settlement.QuoteRequest{
		SourceChain:      string(in.SourceChain),
		DestinationChain: string(in.DestinationChain),
		SourceAsset:      in.SourceAsset,
		DestinationAsset: in.FinalAsset,
		Amount:           in.SourceAmount,
		Recipient:        in.UserDestination,
		SlippageBps:      in.SlippageBps,
	})
	if err != nil {
		return &FlowResult{TxID: txID},
			apperrors.ExecutionError(err, "withdrawal executed but bridge-back quote failed")
	}
	if quote.DepositAddress == "" {
		return &FlowResult{TxID: txID},
			apperrors.ExecutionError(fmt.Errorf("quote %s has no deposit address", quote.QuoteID),
				"withdrawal executed but bridge-back quote unusable")
	}

	bridgeTxID, err := f.swap.executor.Transfer(ctx, path, in.SourceAsset, in.SourceAmount, quote.DepositAddress, quote.DepositMemo)
	if err != nil {
		return &FlowResult{TxID: txID},
			apperrors.ExecutionError(err, "withdrawal executed but bridge-back transfer failed")
	}

	f.logger.Info("Lending withdrawal bridged back",
		zap.String("intent_id", in.IntentID),
		zap.String("tx_id", txID),
		zap.String("bridge_tx_id", bridgeTxID))
	return &FlowResult{
		TxID:           txID,
		BridgeTxID:     bridgeTxID,
		Await:          intent.StateAwaitingIntents,
		DepositAddress: quote.DepositAddress,
		DepositMemo:    quote.DepositMemo,
		ExpectedAmount: quote.AmountOut,
		Detail:         "awaiting bridge-back settlement",
	}, nil
}
