// Package settlement is the client for the external cross-chain swap
// service. The relayer never executes the settlement leg itself; it
// requests a quote with a deposit address, sends funds there, and then
// polls execution status until the leg resolves.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// External execution statuses. Anything else is treated as still pending
// by the completion poller.
const (
	StatusSuccess    = "success"
	StatusCompleted  = "completed"
	StatusRefunded   = "refunded"
	StatusFailed     = "failed"
	StatusPending    = "pending"
	StatusProcessing = "processing"
)

// QuoteRequest describes the swap leg to quote
type QuoteRequest struct {
	SourceChain      string `json:"sourceChain"`
	DestinationChain string `json:"destinationChain"`
	SourceAsset      string `json:"sourceAsset"`
	DestinationAsset string `json:"destinationAsset"`
	Amount           string `json:"amount"`
	Refund           string `json:"refundAddress,omitempty"`
	Recipient        string `json:"recipient"`
	SlippageBps      int    `json:"slippageBps,omitempty"`
}

// Quote is the settlement service's answer: where to deposit and what
// comes out the other side.
type Quote struct {
	DepositAddress string `json:"depositAddress,omitempty"`
	DepositMemo    string `json:"depositMemo,omitempty"`
	AmountOut      string `json:"amountOut"`
	QuoteID        string `json:"quoteId,omitempty"`
	ExpiresAt      string `json:"expiresAt,omitempty"`
}

// ExecutionStatus is the state of a settlement leg keyed by its deposit
// address
type ExecutionStatus struct {
	Status string `json:"status"`
	TxHash string `json:"txHash,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Client is the settlement-status collaborator consumed by the flows and
// the completion poller
type Client interface {
	GetQuote(ctx context.Context, req *QuoteRequest) (*Quote, error)
	GetExecutionStatus(ctx context.Context, depositAddress, depositMemo string) (*ExecutionStatus, error)
}

// HTTPClient talks JSON-over-HTTP to the settlement service. The base URL
// is fixed at construction; concurrent callers targeting different
// endpoints use separate clients.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates a settlement client for the given base URL
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type quoteResponse struct {
	Quote
	Error string `json:"error,omitempty"`
}

// GetQuote requests a swap quote with a deposit address
func (c *HTTPClient) GetQuote(ctx context.Context, req *QuoteRequest) (*Quote, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/quote", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create quote request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("settlement service returned status %d: %s", resp.StatusCode, raw)
	}

	var out quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("settlement service error: %s", out.Error)
	}
	if out.AmountOut == "" {
		return nil, fmt.Errorf("settlement service returned quote without amountOut")
	}

	c.logger.Debug("Quote obtained",
		zap.String("deposit_address", out.DepositAddress),
		zap.String("amount_out", out.AmountOut))
	return &out.Quote, nil
}

// GetExecutionStatus queries the settlement leg state for a deposit address
func (c *HTTPClient) GetExecutionStatus(ctx context.Context, depositAddress, depositMemo string) (*ExecutionStatus, error) {
	q := url.Values{}
	q.Set("depositAddress", depositAddress)
	if depositMemo != "" {
		q.Set("depositMemo", depositMemo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/status?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("settlement service returned status %d: %s", resp.StatusCode, raw)
	}

	var out ExecutionStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	if out.Status == "" {
		return nil, fmt.Errorf("settlement service returned empty status")
	}
	return &out, nil
}
