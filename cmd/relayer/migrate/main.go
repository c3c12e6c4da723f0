package main

import (
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/omnivault/intent-relayer/pkg/config"
	"github.com/omnivault/intent-relayer/pkg/migrations/relayerdb"
	"github.com/omnivault/intent-relayer/pkg/pgutil"
	mghelper "github.com/omnivault/intent-relayer/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for relayer database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, relayerdb.Migrations)

	if err := mghelper.RunMigrations(migrator, flag.Args()...); err != nil {
		mghelper.Exitf(err.Error())
	}
}
