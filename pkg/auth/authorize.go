package auth

import (
	"fmt"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// AuthorizationError rejects an intent before it is queued. It never
// consumes the retry budget.
type AuthorizationError struct {
	Reason string
	Err    error
}

func (e *AuthorizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authorization failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authorization failed: %s", e.Reason)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// RequiresSignature reports whether an action moves funds out of custody
// and therefore needs withdrawal-class authority. Deposit-class actions
// are proven by the user's own on-chain escrow transaction instead.
func RequiresSignature(a intent.Action) bool {
	return a != intent.ActionLendingDeposit
}

// AuthorizeIntent is the explicit authorization stage between validation
// and enqueue. Exactly one proof class must hold: a valid signature for
// withdrawal-class actions, or a deposit proof for deposit-class actions.
// An intent never enters the queue unauthorized.
func AuthorizeIntent(v *intent.ValidatedIntent) error {
	action := v.Metadata.Action()

	if !RequiresSignature(action) {
		if v.OriginTxHash == "" || v.DepositAddress == "" {
			return &AuthorizationError{Reason: "deposit action requires originTxHash and depositAddress"}
		}
		return nil
	}

	if v.UserSignature == nil {
		return &AuthorizationError{Reason: fmt.Sprintf("action %q requires a user signature", action)}
	}

	expected := CreateIntentSigningMessage(&v.Intent)
	if err := Validate(v.UserSignature, v.UserDestination, expected); err != nil {
		return &AuthorizationError{Reason: "invalid signature proof", Err: err}
	}
	return nil
}
