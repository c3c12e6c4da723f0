package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/near/borsh-go"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// nep413Tag is the NEP-413 message prefix: 2^31 + 413, Borsh-encoded
// little-endian. It keeps signed messages out of the transaction space.
const nep413Tag = uint32(1<<31) + 413

const nearKeyPrefix = "ed25519:"

// nep413Payload is Borsh-serialized in declaration order; any structural
// deviation changes the hash and fails verification outright.
type nep413Payload struct {
	Tag         uint32
	Message     string
	Nonce       [32]uint8
	Recipient   string
	CallbackURL *string
}

// nep413SigningHash reconstructs the exact byte sequence a NEP-413 wallet
// signed and returns its SHA-256 digest.
func nep413SigningHash(message string, nonce [32]byte, recipient, callbackURL string) ([32]byte, error) {
	payload := nep413Payload{
		Tag:       nep413Tag,
		Message:   message,
		Nonce:     nonce,
		Recipient: recipient,
	}
	if callbackURL != "" {
		payload.CallbackURL = &callbackURL
	}

	encoded, err := borsh.Serialize(payload)
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to borsh-encode payload: %w", err)
	}
	return sha256.Sum256(encoded), nil
}

// decodeNearPublicKey decodes an "ed25519:<base58>" public key string. The
// prefix is optional on input but the key must decode to 32 bytes.
func decodeNearPublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(strings.TrimPrefix(s, nearKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("public key is not valid base58: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// verifyNEP413 checks a NEP-413 (or legacy NEAR, which shares the byte
// construction) signature against its own declared public key.
func verifyNEP413(sig *intent.UserSignature) error {
	nonce, err := decodeNonce(sig.Nonce)
	if err != nil {
		return err
	}
	if sig.Recipient == "" {
		return fmt.Errorf("recipient is required for NEAR signatures")
	}

	hash, err := nep413SigningHash(sig.Message, nonce, sig.Recipient, sig.CallbackURL)
	if err != nil {
		return err
	}

	pub, err := decodeNearPublicKey(sig.PublicKey)
	if err != nil {
		return err
	}

	sigBytes, err := decodeSignatureBytes(sig.Signature)
	if err != nil {
		return err
	}

	if !ed25519.Verify(pub, hash[:], sigBytes) {
		return fmt.Errorf("ed25519 verification failed")
	}
	return nil
}
