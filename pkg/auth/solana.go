package auth

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// verifySolanaRaw checks a raw-message Solana signature. Solana wallets
// sign the UTF-8 bytes of the message directly, with no hashing or tag.
func verifySolanaRaw(sig *intent.UserSignature) error {
	pub, err := solana.PublicKeyFromBase58(sig.PublicKey)
	if err != nil {
		return fmt.Errorf("public key is not a valid Solana key: %w", err)
	}

	sigBytes, err := decodeSignatureBytes(sig.Signature)
	if err != nil {
		return err
	}
	signature := solana.SignatureFromBytes(sigBytes)
	if !signature.Verify(pub, []byte(sig.Message)) {
		return fmt.Errorf("ed25519 verification failed")
	}
	return nil
}
