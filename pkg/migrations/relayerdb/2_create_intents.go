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
		log.Println("creating intents table...")
		return mghelper.CreateSchema(ctx, db, &status.IntentDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping intents table...")
		return mghelper.DropTables(ctx, db, &status.IntentDao{})
	})
}
