package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// Verify runs the cryptographic check for a signature against its own
// declared public key, dispatching on the detected scheme.
func Verify(sig *intent.UserSignature) error {
	switch SchemeOf(sig) {
	case SchemeNEP413, SchemeLegacyNEAR:
		return verifyNEP413(sig)
	case SchemeSolanaRaw:
		return verifySolanaRaw(sig)
	default:
		return fmt.Errorf("unsupported signature scheme %q", sig.Type)
	}
}

// NormalizeIdentity canonicalizes a public key string for comparison:
// NEAR keys carry the "ed25519:" prefix, Solana keys are bare base58.
// Base58 is case sensitive, so no case folding happens here.
func NormalizeIdentity(scheme Scheme, key string) string {
	switch scheme {
	case SchemeNEP413, SchemeLegacyNEAR:
		if strings.HasPrefix(key, nearKeyPrefix) {
			return key
		}
		return nearKeyPrefix + key
	default:
		return key
	}
}

// VerifyIdentityMatch checks that the signature's declared public key is
// the expected identity, after normalizing both sides.
func VerifyIdentityMatch(sig *intent.UserSignature, expectedIdentity string) error {
	scheme := SchemeOf(sig)
	declared := NormalizeIdentity(scheme, sig.PublicKey)
	expected := NormalizeIdentity(scheme, expectedIdentity)
	if declared != expected {
		return fmt.Errorf("public key %s does not match expected identity %s", declared, expected)
	}
	return nil
}

// Validate composes the full authorization check for a signature:
// identity match, then (when expectedMessage is non-empty) an exact match
// of the signed message against the independently recomputed canonical
// message, then cryptographic verification. It stops at the first failure
// and names the check that failed.
func Validate(sig *intent.UserSignature, expectedIdentity, expectedMessage string) error {
	if sig == nil {
		return fmt.Errorf("signature check failed: no signature provided")
	}
	if err := VerifyIdentityMatch(sig, expectedIdentity); err != nil {
		return fmt.Errorf("identity check failed: %w", err)
	}
	if expectedMessage != "" && sig.Message != expectedMessage {
		return fmt.Errorf("message check failed: signed message does not match intent")
	}
	if err := Verify(sig); err != nil {
		return fmt.Errorf("signature check failed: %w", err)
	}
	return nil
}

// signingPayload fixes the field subset and key order of the canonical
// intent signing message. Changing any field changes the hash, binding a
// captured signature to exactly one intent.
type signingPayload struct {
	IntentID          string `json:"intentId"`
	SourceAmount      string `json:"sourceAmount"`
	DestinationAmount string `json:"destinationAmount"`
	FinalAsset        string `json:"finalAsset"`
	UserDestination   string `json:"userDestination"`
	Action            string `json:"action"`
}

// CreateIntentSigningMessage returns the hex SHA-256 of the canonical
// serialization of the intent fields a user signs over. Deterministic:
// the same intent always yields the same hash.
func CreateIntentSigningMessage(in *intent.Intent) string {
	payload := signingPayload{
		IntentID:          in.IntentID,
		SourceAmount:      in.SourceAmount,
		DestinationAmount: in.DestinationAmount,
		FinalAsset:        in.FinalAsset,
		UserDestination:   in.UserDestination,
		Action:            string(in.Metadata.Action()),
	}
	// Struct marshaling preserves declaration order, so the serialization
	// is stable across calls and processes.
	encoded, _ := json.Marshal(payload)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
