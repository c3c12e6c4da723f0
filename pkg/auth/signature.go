// Package auth verifies the authorization proofs attached to intents and
// guards the admin API. Signature schemes are a tagged set selected by
// payload shape rather than a type hierarchy; each scheme owns its own
// byte-reconstruction routine.
package auth

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// Scheme identifies a supported signing scheme
type Scheme string

const (
	SchemeNEP413     Scheme = "nep413"
	SchemeSolanaRaw  Scheme = "solana_raw"
	SchemeLegacyNEAR Scheme = "legacy_near"
	SchemeUnknown    Scheme = ""
)

const signatureLen = 64

var (
	base58Pattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
	hexPattern    = regexp.MustCompile(`^(0x)?[0-9a-fA-F]+$`)
)

// SchemeOf selects the signing scheme for a payload. An explicit type tag
// wins; otherwise the presence of nonce and recipient marks a legacy NEAR
// payload, and their absence a raw Solana message.
func SchemeOf(sig *intent.UserSignature) Scheme {
	if sig == nil {
		return SchemeUnknown
	}
	switch strings.ToLower(sig.Type) {
	case "nep413":
		return SchemeNEP413
	case "solana_raw", "solana":
		return SchemeSolanaRaw
	case "":
		if sig.HasNonceAndRecipient() {
			return SchemeLegacyNEAR
		}
		return SchemeSolanaRaw
	default:
		return SchemeUnknown
	}
}

// decodeSignatureBytes decodes a 64-byte signature from base58, base64 or
// hex, tried in that order. A candidate encoding only matches when both the
// pattern and the decoded length agree, so a wrong-length decode falls
// through to the next encoding instead of being truncated.
func decodeSignatureBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("signature is empty")
	}

	if base58Pattern.MatchString(s) {
		if raw, err := base58.Decode(s); err == nil && len(raw) == signatureLen {
			return raw, nil
		}
	}

	if raw, err := base64.StdEncoding.DecodeString(s); err == nil && len(raw) == signatureLen {
		return raw, nil
	}

	if hexPattern.MatchString(s) {
		h := s
		if !strings.HasPrefix(h, "0x") {
			h = "0x" + h
		}
		if raw, err := hexutil.Decode(h); err == nil && len(raw) == signatureLen {
			return raw, nil
		}
	}

	return nil, fmt.Errorf("signature is not a %d-byte base58, base64 or hex string", signatureLen)
}

// decodeNonce decodes the base64 nonce of a NEAR payload, which must be
// exactly 32 bytes.
func decodeNonce(s string) ([32]byte, error) {
	var nonce [32]byte
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nonce, fmt.Errorf("nonce is not valid base64: %w", err)
	}
	if len(raw) != 32 {
		return nonce, fmt.Errorf("nonce must be 32 bytes, got %d", len(raw))
	}
	copy(nonce[:], raw)
	return nonce, nil
}
