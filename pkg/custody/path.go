// Package custody derives per-user signing identities and talks to the
// external key-derivation service. Accounts are reconstructed from the
// derivation path on every use, never stored, which is what provides
// custody isolation without per-user key records.
package custody

import (
	"github.com/omnivault/intent-relayer/pkg/intent"
)

// PathSeparator joins the base path and the user scope. It never occurs in
// valid user identifiers, so two distinct users can never collide on a path.
const PathSeparator = ","

// Derive computes the derivation path for a custodied account. With an
// empty userID it addresses the system's own fee-paying account; otherwise
// the user-scoped account. Deterministic: same inputs, same path.
func Derive(basePath, userID string) string {
	if userID == "" {
		return basePath
	}
	return basePath + PathSeparator + userID
}

// PathForIntent returns the derivation path of the custodied account that
// holds the intent's funds in transit.
func PathForIntent(basePath string, in *intent.ValidatedIntent) string {
	return Derive(basePath, in.UserDestination)
}
