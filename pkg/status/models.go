package status

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// StatusDao is the database row for an intent lifecycle record
type StatusDao struct {
	bun.BaseModel `bun:"table:intent_status"`

	IntentID       string    `bun:"intent_id,pk"`
	State          string    `bun:"state,notnull"`
	TxID           *string   `bun:"tx_id"`
	BridgeTxID     *string   `bun:"bridge_tx_id"`
	DepositAddress *string   `bun:"deposit_address"`
	DepositMemo    *string   `bun:"deposit_memo"`
	ExpectedAmount *string   `bun:"expected_amount"`
	Attempts       int       `bun:"attempts,notnull,default:0"`
	Error          *string   `bun:"error_message"`
	Detail         *string   `bun:"detail"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// IntentDao is the database row for a validated intent payload. The payload
// is stored as JSON so schema changes to the intent shape never need a
// migration.
type IntentDao struct {
	bun.BaseModel `bun:"table:intents"`

	IntentID  string                  `bun:"intent_id,pk"`
	Payload   *intent.ValidatedIntent `bun:"payload,type:jsonb,notnull"`
	CreatedAt time.Time               `bun:"created_at,notnull,default:current_timestamp"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toStatusDao(st *intent.Status) *StatusDao {
	return &StatusDao{
		IntentID:       st.IntentID,
		State:          string(st.State),
		TxID:           optional(st.TxID),
		BridgeTxID:     optional(st.BridgeTxID),
		DepositAddress: optional(st.DepositAddress),
		DepositMemo:    optional(st.DepositMemo),
		ExpectedAmount: optional(st.ExpectedAmount),
		Attempts:       st.Attempts,
		Error:          optional(st.Error),
		Detail:         optional(st.Detail),
		UpdatedAt:      st.UpdatedAt,
	}
}

func toStatus(dao *StatusDao) *intent.Status {
	return &intent.Status{
		IntentID:       dao.IntentID,
		State:          intent.State(dao.State),
		TxID:           orEmpty(dao.TxID),
		BridgeTxID:     orEmpty(dao.BridgeTxID),
		DepositAddress: orEmpty(dao.DepositAddress),
		DepositMemo:    orEmpty(dao.DepositMemo),
		ExpectedAmount: orEmpty(dao.ExpectedAmount),
		Attempts:       dao.Attempts,
		Error:          orEmpty(dao.Error),
		Detail:         orEmpty(dao.Detail),
		UpdatedAt:      dao.UpdatedAt,
	}
}
