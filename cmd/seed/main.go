// Command seed creates the sales database and populates it with sample order
// data when the tables are empty. Run it once before starting the agent.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/contoso/salesagent/config"
	"github.com/contoso/salesagent/salesdata"
)

func main() {
	path := flag.String("db", "", "database path (defaults to SALES_DB_PATH)")
	force := flag.Bool("force", false, "reseed even when data already exists")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	dbPath := cfg.Database.Path
	if *path != "" {
		dbPath = *path
	}

	store, err := salesdata.New(dbPath, func(o *salesdata.Options) {
		o.ReadOnly = false
	})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := salesdata.EnsureSchema(ctx, store.DB()); err != nil {
		log.Fatalf("create schema: %v", err)
	}

	if *force {
		if _, err := store.DB().ExecContext(ctx, "DELETE FROM sales_data"); err != nil {
			log.Fatalf("clear existing data: %v", err)
		}
		if err := salesdata.Seed(ctx, store.DB()); err != nil {
			log.Fatalf("seed: %v", err)
		}
	} else if err := salesdata.SeedIfEmpty(ctx, store.DB()); err != nil {
		log.Fatalf("seed: %v", err)
	}

	log.Printf("sales database ready at %s", dbPath)
}
