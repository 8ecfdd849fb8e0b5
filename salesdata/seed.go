package salesdata

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
)

// Categories maps each main product category to its product types. The
// catalog mirrors the Contoso outdoor gear line the agent answers
// questions about.
var Categories = map[string][]string{
	"APPAREL":          {"JACKETS & VESTS", "TROUSERS & SHORTS", "FOOTWEAR"},
	"CAMPING & HIKING": {"TENTS", "BACKPACKS", "SLEEPING BAGS", "HIKING POLES"},
	"CLIMBING":         {"HARNESSES", "ROPES", "CARABINERS"},
	"TRAVEL":           {"LUGGAGE", "DUFFEL BAGS"},
	"WATER GEAR":       {"KAYAKS", "PADDLES", "WETSUITS"},
	"WINTER SPORTS":    {"SKIS", "SNOWBOARDS", "GOGGLES"},
}

// Regions are the sales regions present in the dataset.
var Regions = []string{"AFRICA", "ASIA-PACIFIC", "CHINA", "EUROPE", "LATIN AMERICA", "MIDDLE EAST", "NORTH AMERICA"}

// Years covered by the seeded dataset.
var Years = []int{2022, 2023, 2024}

// EnsureSchema creates the sales fact table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sales_data (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	main_category    TEXT    NOT NULL,
	product_type     TEXT    NOT NULL,
	region           TEXT    NOT NULL,
	year             INTEGER NOT NULL,
	month            INTEGER NOT NULL,
	revenue          REAL    NOT NULL,
	discount         REAL    NOT NULL,
	shipping_cost    REAL    NOT NULL,
	number_of_orders INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sales_region ON sales_data(region);
CREATE INDEX IF NOT EXISTS idx_sales_category ON sales_data(main_category);
CREATE INDEX IF NOT EXISTS idx_sales_year ON sales_data(year, month);
`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create sales schema: %w", err)
	}
	return nil
}

// Seed fills the fact table with one row per (category, product type, region,
// year, month). The generator is deterministic so tests and local runs see
// identical data.
func Seed(ctx context.Context, db *sql.DB) error {
	rng := rand.New(rand.NewSource(20240501))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO sales_data (main_category, product_type, region, year, month, revenue, discount, shipping_cost, number_of_orders)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare seed insert: %w", err)
	}
	defer stmt.Close()

	for category, productTypes := range Categories {
		for _, productType := range productTypes {
			for _, region := range Regions {
				for _, year := range Years {
					for month := 1; month <= 12; month++ {
						orders := 20 + rng.Intn(480)
						revenue := float64(orders) * (40 + rng.Float64()*160)
						discount := revenue * rng.Float64() * 0.15
						shipping := float64(orders) * (4 + rng.Float64()*11)

						if _, err := stmt.ExecContext(ctx,
							category, productType, region, year, month,
							round2(revenue), round2(discount), round2(shipping), orders,
						); err != nil {
							return fmt.Errorf("failed to insert seed row: %w", err)
						}
					}
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed data: %w", err)
	}
	return nil
}

// SeedIfEmpty creates the schema and seeds data only when the table is empty.
func SeedIfEmpty(ctx context.Context, db *sql.DB) error {
	if err := EnsureSchema(ctx, db); err != nil {
		return err
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sales_data").Scan(&count); err != nil {
		return fmt.Errorf("failed to count sales rows: %w", err)
	}
	if count > 0 {
		return nil
	}
	return Seed(ctx, db)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
