// Package intent defines the intent data model shared by the validation,
// queueing and execution layers.
package intent

import (
	"time"
)

// Chain identifies a supported settlement chain
type Chain string

const (
	ChainNear   Chain = "near"
	ChainSolana Chain = "solana"
)

// Valid reports whether the chain is part of the supported set
func (c Chain) Valid() bool {
	return c == ChainNear || c == ChainSolana
}

// Action is the metadata discriminator selecting an execution flow
type Action string

const (
	ActionSwap            Action = "swap"
	ActionLendingDeposit  Action = "lending_deposit"
	ActionLendingWithdraw Action = "lending_withdraw"
)

// Metadata is the open, protocol-specific instruction bag attached to an
// intent. Keys beyond the well-known ones below are preserved untouched.
type Metadata map[string]any

const (
	metaKeyAction  = "action"
	metaKeyMarket  = "market"
	metaKeyMint    = "mint"
	metaKeySettled = "settled"
)

// Action returns the flow discriminator, or ActionSwap when absent
func (m Metadata) Action() Action {
	if m == nil {
		return ActionSwap
	}
	if a, ok := m[metaKeyAction].(string); ok && a != "" {
		return Action(a)
	}
	return ActionSwap
}

// Market returns the lending market identifier, if present
func (m Metadata) Market() string {
	s, _ := m[metaKeyMarket].(string)
	return s
}

// Mint returns the lending reserve mint identifier, if present
func (m Metadata) Mint() string {
	s, _ := m[metaKeyMint].(string)
	return s
}

// Settled reports whether the external settlement leg has completed
func (m Metadata) Settled() bool {
	b, _ := m[metaKeySettled].(bool)
	return b
}

// WithSettled returns a copy of the metadata with the settled flag set.
// All other entries are preserved as-is.
func (m Metadata) WithSettled() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[metaKeySettled] = true
	return out
}

// UserSignature is the authorization proof attached to an intent. The
// populated fields determine the signing scheme: an explicit Type wins,
// otherwise nonce+recipient marks a NEAR payload and their absence a raw
// Solana message.
type UserSignature struct {
	Type        string `json:"type,omitempty"` // "nep413" | "solana_raw" | "" (legacy)
	Message     string `json:"message"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"publicKey"`
	Nonce       string `json:"nonce,omitempty"` // base64, 32 bytes once decoded
	Recipient   string `json:"recipient,omitempty"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// HasNonceAndRecipient distinguishes NEP-413 shaped payloads from raw
// Solana messages.
func (s *UserSignature) HasNonceAndRecipient() bool {
	return s != nil && s.Nonce != "" && s.Recipient != ""
}

// Intent is a user-originated instruction to move or deploy value. Amounts
// are unsigned integer strings in base units, never floats.
type Intent struct {
	IntentID          string         `json:"intentId"`
	SourceChain       Chain          `json:"sourceChain"`
	DestinationChain  Chain          `json:"destinationChain"`
	SourceAsset       string         `json:"sourceAsset"`
	IntermediateAsset string         `json:"intermediateAsset,omitempty"`
	FinalAsset        string         `json:"finalAsset"`
	SourceAmount      string         `json:"sourceAmount"`
	DestinationAmount string         `json:"destinationAmount,omitempty"`
	SlippageBps       int            `json:"slippageBps,omitempty"`
	UserDestination   string         `json:"userDestination"`
	AgentDestination  string         `json:"agentDestination"`
	Metadata          Metadata       `json:"metadata,omitempty"`
	UserSignature     *UserSignature `json:"userSignature,omitempty"`

	// Deposit-based proof: the user already escrowed funds on-chain.
	OriginTxHash   string `json:"originTxHash,omitempty"`
	DepositAddress string `json:"depositAddress,omitempty"`
}

// ValidatedIntent is an Intent that passed structural validation, with
// derived fields filled in. It must not be mutated after creation; the
// completion poller clones it instead.
type ValidatedIntent struct {
	Intent
}

// CloneWithSettled returns a copy of the intent whose metadata carries the
// settled flag, leaving every other field untouched.
func (v *ValidatedIntent) CloneWithSettled() *ValidatedIntent {
	out := *v
	out.Metadata = v.Metadata.WithSettled()
	return &out
}

// State is the pipeline position of an intent
type State string

const (
	StatePending         State = "pending"
	StateProcessing      State = "processing"
	StateAwaitingDeposit State = "awaiting_deposit"
	StateAwaitingIntents State = "awaiting_intents"
	StateSucceeded       State = "succeeded"
	StateFailed          State = "failed"
)

// Terminal reports whether no further transitions are permitted
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Status is the externally visible projection of pipeline progress for a
// single intent. It is owned by the processor while the intent is
// processing and by the completion poller while it awaits settlement.
type Status struct {
	IntentID       string    `json:"intentId"`
	State          State     `json:"state"`
	TxID           string    `json:"txId,omitempty"`
	BridgeTxID     string    `json:"bridgeTxId,omitempty"`
	DepositAddress string    `json:"depositAddress,omitempty"`
	DepositMemo    string    `json:"depositMemo,omitempty"`
	ExpectedAmount string    `json:"expectedAmount,omitempty"`
	Attempts       int       `json:"attempts,omitempty"`
	Error          string    `json:"error,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
