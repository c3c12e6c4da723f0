package relayerdb

import (
	"context"
	"log"

	mghelper "github.com/omnivault/intent-relayer/pkg/pgutil/migrations"
	"github.com/omnivault/intent-relayer/pkg/status"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating intent_status table...")
		if err := mghelper.CreateSchema(ctx, db, &status.StatusDao{}); err != nil {
			return err
		}
		// The poller scans by state; the processor updates by intent_id.
		return mghelper.CreateModelIndexes(ctx, db, &status.StatusDao{}, "state", "updated_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping intent_status table...")
		return mghelper.DropTables(ctx, db, &status.StatusDao{})
	})
}
