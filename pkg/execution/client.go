// Package execution is the client for the chain execution service, which
// builds and broadcasts transactions on the served chain. The relayer
// prepares an unsigned payload, obtains a signature from the custody
// signer, and submits the signed transaction; it never holds key material.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omnivault/intent-relayer/pkg/custody"
)

const (
	opTransfer = "transfer"
	opDeposit  = "lending_deposit"
	opWithdraw = "lending_withdraw"
)

// HTTPClient implements the chain executor and lending client over the
// execution service's JSON API
type HTTPClient struct {
	baseURL string
	signer  custody.Signer
	keyType string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates an execution client for the given service base URL
func NewHTTPClient(baseURL string, signer custody.Signer, keyType string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		keyType: keyType,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type prepareRequest struct {
	Operation string `json:"operation"`
	Signer    string `json:"signer"` // public key material of the custodied account
	Asset     string `json:"asset,omitempty"`
	Amount    string `json:"amount"`
	To        string `json:"to,omitempty"`
	Memo      string `json:"memo,omitempty"`
	Market    string `json:"market,omitempty"`
	Mint      string `json:"mint,omitempty"`
}

type prepareResponse struct {
	PayloadHex string `json:"payloadHex"`
	Error      string `json:"error,omitempty"`
}

type submitRequest struct {
	PayloadHex string `json:"payloadHex"`
	Signature  string `json:"signature"`
	Signer     string `json:"signer"`
}

type submitResponse struct {
	TxID  string `json:"txId"`
	Error string `json:"error,omitempty"`
}

// Transfer moves funds from the custodied account at path
func (c *HTTPClient) Transfer(ctx context.Context, path, asset, amount, to, memo string) (string, error) {
	return c.execute(ctx, path, &prepareRequest{
		Operation: opTransfer,
		Asset:     asset,
		Amount:    amount,
		To:        to,
		Memo:      memo,
	})
}

// Deposit supplies funds to a lending market from the custodied account
func (c *HTTPClient) Deposit(ctx context.Context, path, market, mint, amount string) (string, error) {
	return c.execute(ctx, path, &prepareRequest{
		Operation: opDeposit,
		Market:    market,
		Mint:      mint,
		Amount:    amount,
	})
}

// Withdraw redeems funds from a lending market to the custodied account
func (c *HTTPClient) Withdraw(ctx context.Context, path, market, mint, amount string) (string, error) {
	return c.execute(ctx, path, &prepareRequest{
		Operation: opWithdraw,
		Market:    market,
		Mint:      mint,
		Amount:    amount,
	})
}

// execute runs the prepare, sign, submit sequence for one transaction. The
// custody signer serializes signing per derivation path, so two intents
// sharing a custodied account never race on a nonce.
func (c *HTTPClient) execute(ctx context.Context, path string, req *prepareRequest) (string, error) {
	signerKey, err := c.signer.DeriveAddress(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to derive signing account: %w", err)
	}
	req.Signer = signerKey

	payloadHex, err := c.prepare(ctx, req)
	if err != nil {
		return "", err
	}

	signature, err := c.signer.RequestSignature(ctx, path, payloadHex, c.keyType)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s payload: %w", req.Operation, err)
	}

	txID, err := c.submit(ctx, &submitRequest{
		PayloadHex: payloadHex,
		Signature:  signature,
		Signer:     signerKey,
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("Transaction submitted",
		zap.String("operation", req.Operation),
		zap.String("tx_id", txID))
	return txID, nil
}

func (c *HTTPClient) prepare(ctx context.Context, req *prepareRequest) (string, error) {
	var out prepareResponse
	if err := c.post(ctx, "/v1/transactions/prepare", req, &out); err != nil {
		return "", fmt.Errorf("failed to prepare %s: %w", req.Operation, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("execution service error: %s", out.Error)
	}
	if out.PayloadHex == "" {
		return "", fmt.Errorf("execution service returned empty payload")
	}
	return out.PayloadHex, nil
}

func (c *HTTPClient) submit(ctx context.Context, req *submitRequest) (string, error) {
	var out submitResponse
	if err := c.post(ctx, "/v1/transactions/submit", req, &out); err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("execution service error: %s", out.Error)
	}
	if out.TxID == "" {
		return "", fmt.Errorf("execution service returned empty txId")
	}
	return out.TxID, nil
}

func (c *HTTPClient) post(ctx context.Context, route string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("execution service returned status %d: %s", resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
