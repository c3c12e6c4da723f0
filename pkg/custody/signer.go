package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Signer is the key-derivation/signing collaborator. The service owns all
// key material; this process only ever sees derivation paths, payloads and
// finished signatures.
type Signer interface {
	// RequestSignature signs payloadHex with the key at the derivation path
	RequestSignature(ctx context.Context, path, payloadHex, keyType string) (string, error)
	// DeriveAddress returns the public key material for the derivation path
	DeriveAddress(ctx context.Context, path string) (string, error)
}

// HTTPSigner talks JSON-over-HTTP to the derivation service. Signing is
// serialized per derivation path: two intents sharing a custodied account
// must never sign concurrently, or a stale nonce/blockhash from one would
// invalidate the other.
type HTTPSigner struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewHTTPSigner creates a signer client for the given service base URL
func NewHTTPSigner(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPSigner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSigner{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *HTTPSigner) pathLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

type signRequest struct {
	Path    string `json:"path"`
	Payload string `json:"payload"`
	KeyType string `json:"keyType"`
}

type signResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error,omitempty"`
}

// RequestSignature signs a payload with the custodied key at path
func (s *HTTPSigner) RequestSignature(ctx context.Context, path, payloadHex, keyType string) (string, error) {
	lock := s.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	body, err := json.Marshal(signRequest{Path: path, Payload: payloadHex, KeyType: keyType})
	if err != nil {
		return "", fmt.Errorf("failed to encode sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/sign", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("signer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("signer returned status %d: %s", resp.StatusCode, raw)
	}

	var out signResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode sign response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("signer error: %s", out.Error)
	}
	if out.Signature == "" {
		return "", fmt.Errorf("signer returned empty signature")
	}

	s.logger.Debug("Signature obtained", zap.String("path", path), zap.String("key_type", keyType))
	return out.Signature, nil
}

type deriveResponse struct {
	PublicKey string `json:"publicKey"`
	Error     string `json:"error,omitempty"`
}

// DeriveAddress returns the public key material of the custodied account
// at path. The same path always resolves to the same account.
func (s *HTTPSigner) DeriveAddress(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/v1/derive?path="+url.QueryEscape(path), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create derive request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("derive request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("signer returned status %d: %s", resp.StatusCode, raw)
	}

	var out deriveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode derive response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("signer error: %s", out.Error)
	}
	return out.PublicKey, nil
}
