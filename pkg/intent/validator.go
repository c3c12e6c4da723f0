package intent

import (
	"fmt"
	"math/big"
	"regexp"
)

// DefaultSlippageBps is applied when the caller does not set a slippage
const DefaultSlippageBps = 300

var amountPattern = regexp.MustCompile(`^[0-9]+$`)

// maxAmount is a sanity bound against malformed upstream quotes; any amount
// at or above 2^128 base units is rejected even when well-formed.
var maxAmount = new(big.Int).Lsh(big.NewInt(1), 128)

// ValidationError names the first offending field of a rejected intent
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid intent: %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IntermediateResolver supplies the default routing asset for a source
// asset. The assets registry satisfies this.
type IntermediateResolver interface {
	DefaultIntermediate(id string) string
}

// Validator normalizes raw intents into ValidatedIntents for the single
// chain this deployment serves.
type Validator struct {
	servedChain   Chain
	intermediates IntermediateResolver
}

// NewValidator creates a validator for the served destination chain.
// resolver may be nil, in which case intermediate assets default to the
// source asset.
func NewValidator(servedChain Chain, resolver IntermediateResolver) *Validator {
	return &Validator{servedChain: servedChain, intermediates: resolver}
}

// Validate checks a raw intent and returns its canonical executable form.
// Rules run in a fixed order and the first violation is reported. The
// check is pure: the input is never mutated and no side effects occur.
// Signature verification is explicitly not done here; deposit-class
// actions carry no signature at all.
func (v *Validator) Validate(raw *Intent) (*ValidatedIntent, error) {
	if raw == nil {
		return nil, invalid("intent", "missing body")
	}
	if raw.IntentID == "" {
		return nil, invalid("intentId", "must not be empty")
	}
	if raw.DestinationChain != v.servedChain {
		return nil, invalid("destinationChain",
			fmt.Sprintf("this deployment serves %q, got %q", v.servedChain, raw.DestinationChain))
	}
	if raw.UserDestination == "" {
		return nil, invalid("userDestination", "must not be empty")
	}
	if raw.AgentDestination == "" {
		return nil, invalid("agentDestination", "must not be empty")
	}
	if raw.SourceAsset == "" {
		return nil, invalid("sourceAsset", "must not be empty")
	}
	if raw.FinalAsset == "" {
		return nil, invalid("finalAsset", "must not be empty")
	}
	if err := checkAmount("sourceAmount", raw.SourceAmount, true); err != nil {
		return nil, err
	}
	// Destination amount may legitimately be unknown before execution.
	if raw.DestinationAmount != "" {
		if err := checkAmount("destinationAmount", raw.DestinationAmount, false); err != nil {
			return nil, err
		}
	}
	// Over 10000 bps would turn the slippage floor negative and wave any
	// quote through.
	if raw.SlippageBps > 10000 {
		return nil, invalid("slippageBps", "must not exceed 10000 basis points")
	}
	if err := v.checkMetadata(raw.Metadata); err != nil {
		return nil, err
	}

	out := ValidatedIntent{Intent: *raw}
	if out.SlippageBps <= 0 {
		out.SlippageBps = DefaultSlippageBps
	}
	if out.IntermediateAsset == "" {
		if v.intermediates != nil {
			out.IntermediateAsset = v.intermediates.DefaultIntermediate(out.SourceAsset)
		}
		if out.IntermediateAsset == "" {
			out.IntermediateAsset = out.SourceAsset
		}
	}
	return &out, nil
}

func checkAmount(field, value string, requireNonZero bool) error {
	if value == "" {
		return invalid(field, "must not be empty")
	}
	if !amountPattern.MatchString(value) {
		return invalid(field, "must be an unsigned integer string")
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return invalid(field, "must be an unsigned integer string")
	}
	if requireNonZero && n.Sign() == 0 {
		return invalid(field, "must be non-zero")
	}
	if n.Cmp(maxAmount) >= 0 {
		return invalid(field, "exceeds maximum representable amount")
	}
	return nil
}

// checkMetadata enforces the extra required fields of protocol-specific
// actions. Authorization is deliberately not checked here.
func (v *Validator) checkMetadata(m Metadata) error {
	switch m.Action() {
	case ActionSwap:
		return nil
	case ActionLendingDeposit, ActionLendingWithdraw:
		if m.Market() == "" {
			return invalid("metadata.market", "required for lending actions")
		}
		if m.Mint() == "" {
			return invalid("metadata.mint", "required for lending actions")
		}
		return nil
	default:
		return invalid("metadata.action", fmt.Sprintf("unknown action %q", m.Action()))
	}
}
