package relayer

// TODO: remove the mock impl and use mockery to generate mock

import (
	"context"

	"github.com/omnivault/intent-relayer/pkg/intent"
	"github.com/omnivault/intent-relayer/pkg/settlement"
)

// MockSettlementClient is a mock implementation of settlement.Client
type MockSettlementClient struct {
	GetQuoteFunc           func(ctx context.Context, req *settlement.QuoteRequest) (*settlement.Quote, error)
	GetExecutionStatusFunc func(ctx context.Context, depositAddress, depositMemo string) (*settlement.ExecutionStatus, error)
}

func (m *MockSettlementClient) GetQuote(ctx context.Context, req *settlement.QuoteRequest) (*settlement.Quote, error) {
	if m.GetQuoteFunc != nil {
		return m.GetQuoteFunc(ctx, req)
	}
	return &settlement.Quote{DepositAddress: "deposit-addr", AmountOut: "0"}, nil
}

func (m *MockSettlementClient) GetExecutionStatus(ctx context.Context, depositAddress, depositMemo string) (*settlement.ExecutionStatus, error) {
	if m.GetExecutionStatusFunc != nil {
		return m.GetExecutionStatusFunc(ctx, depositAddress, depositMemo)
	}
	return &settlement.ExecutionStatus{Status: settlement.StatusPending}, nil
}

// MockSigner is a mock implementation of custody.Signer
type MockSigner struct {
	RequestSignatureFunc func(ctx context.Context, path, payloadHex, keyType string) (string, error)
	DeriveAddressFunc    func(ctx context.Context, path string) (string, error)
}

func (m *MockSigner) RequestSignature(ctx context.Context, path, payloadHex, keyType string) (string, error) {
	if m.RequestSignatureFunc != nil {
		return m.RequestSignatureFunc(ctx, path, payloadHex, keyType)
	}
	return "signature", nil
}

func (m *MockSigner) DeriveAddress(ctx context.Context, path string) (string, error) {
	if m.DeriveAddressFunc != nil {
		return m.DeriveAddressFunc(ctx, path)
	}
	return "derived-address", nil
}

// MockExecutor is a mock implementation of ChainExecutor
type MockExecutor struct {
	TransferFunc func(ctx context.Context, path, asset, amount, to, memo string) (string, error)
	Calls        int
}

func (m *MockExecutor) Transfer(ctx context.Context, path, asset, amount, to, memo string) (string, error) {
	m.Calls++
	if m.TransferFunc != nil {
		return m.TransferFunc(ctx, path, asset, amount, to, memo)
	}
	return "tx-hash", nil
}

// MockLendingClient is a mock implementation of LendingClient
type MockLendingClient struct {
	DepositFunc  func(ctx context.Context, path, market, mint, amount string) (string, error)
	WithdrawFunc func(ctx context.Context, path, market, mint, amount string) (string, error)
}

func (m *MockLendingClient) Deposit(ctx context.Context, path, market, mint, amount string) (string, error) {
	if m.DepositFunc != nil {
		return m.DepositFunc(ctx, path, market, mint, amount)
	}
	return "deposit-tx", nil
}

func (m *MockLendingClient) Withdraw(ctx context.Context, path, market, mint, amount string) (string, error) {
	if m.WithdrawFunc != nil {
		return m.WithdrawFunc(ctx, path, market, mint, amount)
	}
	return "withdraw-tx", nil
}

// MockFlow is a mock implementation of Flow
type MockFlow struct {
	NameValue   string
	MatchesFunc func(in *intent.ValidatedIntent) bool
	ExecuteFunc func(ctx context.Context, in *intent.ValidatedIntent) (*FlowResult, error)
	Executions  int
}

func (m *MockFlow) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock_flow"
}

func (m *MockFlow) Matches(in *intent.ValidatedIntent) bool {
	if m.MatchesFunc != nil {
		return m.MatchesFunc(in)
	}
	return true
}

func (m *MockFlow) Execute(ctx context.Context, in *intent.ValidatedIntent) (*FlowResult, error) {
	m.Executions++
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, in)
	}
	return &FlowResult{TxID: "tx-hash"}, nil
}
