package relayer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omnivault/intent-relayer/pkg/intent"
	"github.com/omnivault/intent-relayer/pkg/settlement"
)

func newSwapFlow(client settlement.Client, executor ChainExecutor) *ChainSwapFlow {
	return NewChainSwapFlow(client, executor, &MockSigner{}, "m/44'/397'/0'", zap.NewNop())
}

func TestChainSwapFlowFirstPassParks(t *testing.T) {
	ctx := context.Background()
	client := &MockSettlementClient{
		GetQuoteFunc: func(_ context.Context, req *settlement.QuoteRequest) (*settlement.Quote, error) {
			assert.Equal(t, "1000000", req.Amount)
			assert.Equal(t, "alice.near", req.Recipient)
			assert.Equal(t, "derived-address", req.Refund)
			return &settlement.Quote{DepositAddress: "deposit.near", DepositMemo: "m1", AmountOut: "995000"}, nil
		},
	}
	executor := &MockExecutor{TransferFunc: func(_ context.Context, path, asset, amount, to, memo string) (string, error) {
		assert.Equal(t, "m/44'/397'/0',alice.near", path)
		assert.Equal(t, "deposit.near", to)
		assert.Equal(t, "m1", memo)
		return "fund-tx", nil
	}}

	flow := newSwapFlow(client, executor)
	in := processorIntent("t1")
	in.DestinationChain = intent.ChainSolana
	in.SlippageBps = 300

	res, err := flow.Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, intent.StateAwaitingIntents, res.Await)
	assert.Equal(t, "fund-tx", res.TxID)
	assert.Equal(t, "deposit.near", res.DepositAddress)
	assert.Equal(t, "995000", res.ExpectedAmount)
}

func TestChainSwapFlowSettledPassSucceeds(t *testing.T) {
	client := &MockSettlementClient{
		GetQuoteFunc: func(_ context.Context, _ *settlement.QuoteRequest) (*settlement.Quote, error) {
			t.Fatal("settled pass must not request a new quote")
			return nil, nil
		},
	}
	flow := newSwapFlow(client, &MockExecutor{})

	in := processorIntent("t1")
	in.Metadata = in.Metadata.WithSettled()

	res, err := flow.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.Await)
	assert.Equal(t, "external settlement completed", res.Detail)
}

func TestChainSwapFlowRejectsQuoteBelowSlippage(t *testing.T) {
	client := &MockSettlementClient{
		GetQuoteFunc: func(_ context.Context, _ *settlement.QuoteRequest) (*settlement.Quote, error) {
			return &settlement.Quote{DepositAddress: "deposit.near", AmountOut: "900000"}, nil
		},
	}
	executor := &MockExecutor{}
	flow := newSwapFlow(client, executor)

	in := processorIntent("t1")
	in.DestinationAmount = "1000000"
	in.SlippageBps = 300 // floor is 970000

	_, err := flow.Execute(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum acceptable")
	assert.Zero(t, executor.Calls, "funds must not move on a rejected quote")
}

func TestLendingDepositFlowSameChain(t *testing.T) {
	lending := &MockLendingClient{DepositFunc: func(_ context.Context, path, market, mint, amount string) (string, error) {
		assert.Equal(t, "main-market", market)
		assert.Equal(t, "usdc-mint", mint)
		assert.Equal(t, "1000000", amount)
		return "deposit-tx", nil
	}}
	flow := NewLendingDepositFlow(newSwapFlow(&MockSettlementClient{}, &MockExecutor{}), lending, zap.NewNop())

	in := processorIntent("t1")
	in.SourceAsset = "usdc.near"
	in.FinalAsset = "usdc.near"
	in.Metadata = intent.Metadata{"action": "lending_deposit", "market": "main-market", "mint": "usdc-mint"}

	res, err := flow.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "deposit-tx", res.TxID)
	assert.Empty(t, res.Await)
}

func TestLendingDepositFlowCrossChainParksAwaitingDeposit(t *testing.T) {
	lending := &MockLendingClient{DepositFunc: func(_ context.Context, _, _, _, _ string) (string, error) {
		t.Fatal("deposit must wait for the escrowed funds to settle")
		return "", nil
	}}
	executor := &MockExecutor{}
	flow := NewLendingDepositFlow(newSwapFlow(&MockSettlementClient{}, executor), lending, zap.NewNop())

	in := processorIntent("t1")
	in.SourceChain = intent.ChainNear
	in.DestinationChain = intent.ChainSolana
	in.OriginTxHash = "origin-tx"
	in.DepositAddress = "escrow.near"
	in.Metadata = intent.Metadata{"action": "lending_deposit", "market": "main-market", "mint": "usdc-mint"}

	res, err := flow.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, intent.StateAwaitingDeposit, res.Await)
	assert.Equal(t, "escrow.near", res.DepositAddress)
	assert.Zero(t, executor.Calls, "escrowed funds are the settlement service's to move")
}

func TestLendingDepositFlowCrossChainRequiresDepositAddress(t *testing.T) {
	flow := NewLendingDepositFlow(newSwapFlow(&MockSettlementClient{}, &MockExecutor{}), &MockLendingClient{}, zap.NewNop())

	in := processorIntent("t1")
	in.SourceChain = intent.ChainNear
	in.DestinationChain = intent.ChainSolana
	in.Metadata = intent.Metadata{"action": "lending_deposit", "market": "main-market", "mint": "usdc-mint"}

	_, err := flow.Execute(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deposit address")
}

func TestLendingDepositFlowAssetMismatchSwapsFirst(t *testing.T) {
	lending := &MockLendingClient{DepositFunc: func(_ context.Context, _, _, _, _ string) (string, error) {
		t.Fatal("deposit must wait for the swap leg")
		return "", nil
	}}
	client := &MockSettlementClient{
		GetQuoteFunc: func(_ context.Context, _ *settlement.QuoteRequest) (*settlement.Quote, error) {
			return &settlement.Quote{DepositAddress: "deposit.near", AmountOut: "990000"}, nil
		},
	}
	flow := NewLendingDepositFlow(newSwapFlow(client, &MockExecutor{}), lending, zap.NewNop())

	in := processorIntent("t1")
	in.Metadata = intent.Metadata{"action": "lending_deposit", "market": "main-market", "mint": "usdc-mint"}

	res, err := flow.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, intent.StateAwaitingIntents, res.Await)
}

func TestLendingDepositFlowSettledPassDeposits(t *testing.T) {
	lending := &MockLendingClient{DepositFunc: func(_ context.Context, _, market, mint, amount string) (string, error) {
		assert.Equal(t, "main-market", market)
		assert.Equal(t, "usdc-mint", mint)
		assert.Equal(t, "990000", amount)
		return "deposit-tx", nil
	}}
	flow := NewLendingDepositFlow(newSwapFlow(&MockSettlementClient{}, &MockExecutor{}), lending, zap.NewNop())

	in := processorIntent("t1")
	in.SourceChain = intent.ChainNear
	in.DestinationChain = intent.ChainSolana
	in.DestinationAmount = "990000"
	in.OriginTxHash = "origin-tx"
	in.DepositAddress = "escrow.near"
	in.Metadata = intent.Metadata{"action": "lending_deposit", "market": "main-market", "mint": "usdc-mint"}.WithSettled()

	res, err := flow.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.Await)
	assert.Equal(t, "deposit-tx", res.TxID)
}

func TestLendingWithdrawFlowPartialProgress(t *testing.T) {
	lending := &MockLendingClient{WithdrawFunc: func(_ context.Context, _, _, _, _ string) (string, error) {
		return "withdraw-tx", nil
	}}
	client := &MockSettlementClient{
		GetQuoteFunc: func(_ context.Context, _ *settlement.QuoteRequest) (*settlement.Quote, error) {
			return nil, errors.New("quote service down")
		},
	}
	flow := NewLendingWithdrawFlow(newSwapFlow(client, &MockExecutor{}), lending, zap.NewNop())

	in := processorIntent("t1")
	in.SourceChain = intent.ChainSolana
	in.DestinationChain = intent.ChainNear
	in.Metadata = intent.Metadata{"action": "lending_withdraw", "market": "main-market", "mint": "usdc-mint"}

	res, err := flow.Execute(context.Background(), in)
	require.Error(t, err)
	require.NotNil(t, res, "funds moved: result must report the withdrawal transaction")
	assert.Equal(t, "withdraw-tx", res.TxID)
	assert.Empty(t, res.BridgeTxID)
}

func TestLendingWithdrawFlowBridgesBack(t *testing.T) {
	lending := &MockLendingClient{}
	client := &MockSettlementClient{
		GetQuoteFunc: func(_ context.Context, _ *settlement.QuoteRequest) (*settlement.Quote, error) {
			return &settlement.Quote{DepositAddress: "deposit-sol", AmountOut: "990000"}, nil
		},
	}
	executor := &MockExecutor{TransferFunc: func(_ context.Context, _, _, _, to, _ string) (string, error) {
		assert.Equal(t, "deposit-sol", to)
		return "bridge-tx", nil
	}}
	flow := NewLendingWithdrawFlow(newSwapFlow(client, executor), lending, zap.NewNop())

	in := processorIntent("t1")
	in.SourceChain = intent.ChainSolana
	in.DestinationChain = intent.ChainNear
	in.Metadata = intent.Metadata{"action": "lending_withdraw", "market": "main-market", "mint": "usdc-mint"}

	res, err := flow.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "withdraw-tx", res.TxID)
	assert.Equal(t, "bridge-tx", res.BridgeTxID)
	assert.Equal(t, intent.StateAwaitingIntents, res.Await)
}
