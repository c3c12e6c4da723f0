package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates the postgres implementation of the status store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) SetStatus(ctx context.Context, st *intent.Status) error {
	dao := toStatusDao(st)
	if dao.UpdatedAt.IsZero() {
		dao.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (intent_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("tx_id = EXCLUDED.tx_id").
		Set("bridge_tx_id = EXCLUDED.bridge_tx_id").
		Set("deposit_address = EXCLUDED.deposit_address").
		Set("deposit_memo = EXCLUDED.deposit_memo").
		Set("expected_amount = EXCLUDED.expected_amount").
		Set("attempts = EXCLUDED.attempts").
		Set("error_message = EXCLUDED.error_message").
		Set("detail = EXCLUDED.detail").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set status for %s: %w", st.IntentID, err)
	}
	return nil
}

func (s *pgStore) CreateStatus(ctx context.Context, st *intent.Status) (bool, error) {
	dao := toStatusDao(st)
	if dao.UpdatedAt.IsZero() {
		dao.UpdatedAt = time.Now().UTC()
	}

	res, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (intent_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to create status for %s: %w", st.IntentID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to create status for %s: %w", st.IntentID, err)
	}
	return inserted > 0, nil
}

func (s *pgStore) GetStatus(ctx context.Context, intentID string) (*intent.Status, error) {
	dao := new(StatusDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("intent_id = ?", intentID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return toStatus(dao), nil
}

func (s *pgStore) GetStatusesByState(ctx context.Context, state intent.State) ([]*intent.Status, error) {
	var daos []StatusDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("state = ?", string(state)).
		Order("updated_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses by state: %w", err)
	}
	out := make([]*intent.Status, len(daos))
	for i := range daos {
		out[i] = toStatus(&daos[i])
	}
	return out, nil
}

func (s *pgStore) SaveIntent(ctx context.Context, in *intent.ValidatedIntent) error {
	dao := &IntentDao{
		IntentID:  in.IntentID,
		Payload:   in,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (intent_id) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save intent %s: %w", in.IntentID, err)
	}
	return nil
}

func (s *pgStore) GetIntent(ctx context.Context, intentID string) (*intent.ValidatedIntent, error) {
	dao := new(IntentDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("intent_id = ?", intentID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}
	return dao.Payload, nil
}
