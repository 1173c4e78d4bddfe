package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

type ctxKey string

const dbKey ctxKey = "db"

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	c.Context = context.WithValue(c.Context, dbKey, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*sql.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func getDB(c *cli.Context) *sql.DB {
	return c.Context.Value(dbKey).(*sql.DB)
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Apply the schema and seed the database with demo data",
		Commands: []*cli.Command{
			{
				Name:  "schema",
				Usage: "Apply the database schema",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:  "file",
						Usage: "Path to the schema SQL file",
						Value: "./migrations/schema.sql",
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: applySchema,
			},
			{
				Name:  "demo",
				Usage: "Seed demo suppliers, inventory and a year of sales history",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.Int64Flag{
						Name:  "rand-seed",
						Usage: "Seed for the synthetic sales generator",
						Value: 42,
					},
					&cli.IntFlag{
						Name:  "history-days",
						Usage: "Days of sales history to generate",
						Value: 365,
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: seedDemo,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func applySchema(c *cli.Context) error {
	raw, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("reading schema file: %w", err)
	}
	if _, err := getDB(c).ExecContext(c.Context, string(raw)); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	log.Println("schema applied")
	return nil
}

type demoProduct struct {
	sku      string
	name     string
	brand    string
	category string
	price    float64
	stock    int
	safety   int
	reorder  int
	baseline int // average daily units
}

var demoProducts = []demoProduct{
	{"NV-SER-001", "Nordvik Renewal Serum", "nordvik", "beauty", 42.00, 18, 10, 25, 6},
	{"NV-CRM-002", "Nordvik Night Cream", "nordvik", "beauty", 38.50, 45, 10, 20, 4},
	{"AX-TEE-101", "Axion Crew Tee", "axion", "apparel", 19.90, 120, 25, 60, 9},
	{"AX-HDY-102", "Axion Fleece Hoodie", "axion", "apparel", 54.00, 30, 15, 35, 3},
	{"GN-CBL-201", "Genera USB-C Cable 2m", "genera", "electronics", 9.90, 200, 40, 90, 14},
	{"GN-PWR-202", "Genera 65W Charger", "genera", "electronics", 34.90, 12, 15, 30, 5},
	{"HM-CDL-301", "Hemmet Soy Candle", "hemmet", "home", 16.50, 60, 12, 28, 4},
	{"TY-BLK-401", "Tivoli Block Set", "tivoli", "toys", 29.00, 8, 10, 22, 3},
}

func seedDemo(c *cli.Context) error {
	db := getDB(c)
	rng := rand.New(rand.NewSource(c.Int64("rand-seed")))
	historyDays := c.Int("history-days")

	supplierIDs := make(map[string]int64)
	for _, s := range []struct {
		name, email string
		leadTime    int
	}{
		{"Nordvik Labs", "orders@nordviklabs.example", 14},
		{"Pacific Apparel Co", "supply@pacificapparel.example", 21},
		{"Genera Electronics", "b2b@genera.example", 10},
		{"Hemmet Living", "wholesale@hemmet.example", 7},
	} {
		var id int64
		err := db.QueryRowContext(c.Context,
			`INSERT INTO suppliers (name, email, lead_time_days, payment_terms, is_active)
			 VALUES ($1, $2, $3, 'NET 30', TRUE) RETURNING id`,
			s.name, s.email, s.leadTime).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting supplier %s: %w", s.name, err)
		}
		supplierIDs[s.name] = id
	}

	supplierFor := map[string]string{
		"nordvik": "Nordvik Labs",
		"axion":   "Pacific Apparel Co",
		"genera":  "Genera Electronics",
		"hemmet":  "Hemmet Living",
		"tivoli":  "Hemmet Living",
	}

	now := time.Now().UTC()
	for _, p := range demoProducts {
		_, err := db.ExecContext(c.Context,
			`INSERT INTO inventory_snapshots (sku, product_name, brand, category, unit_price,
			    qty_available, safety_stock, reorder_point, lead_time_days, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
			 ON CONFLICT (sku) DO NOTHING`,
			p.sku, p.name, p.brand, p.category, p.price, p.stock, p.safety, p.reorder, 14)
		if err != nil {
			return fmt.Errorf("inserting inventory %s: %w", p.sku, err)
		}

		supplierID := supplierIDs[supplierFor[p.brand]]
		cost := p.price * 0.55
		_, err = db.ExecContext(c.Context,
			`INSERT INTO supplier_prices (supplier_id, sku, unit_price, moq, valid_until)
			 VALUES ($1, $2, $3, $4, NULL)`,
			supplierID, p.sku, cost, 10)
		if err != nil {
			return fmt.Errorf("inserting price for %s: %w", p.sku, err)
		}

		if err := seedSales(c.Context, db, rng, p, now, historyDays); err != nil {
			return err
		}
	}

	log.Printf("seeded %d products with %d days of sales history", len(demoProducts), historyDays)
	return nil
}

// seedSales generates a year of plausible history: a weekly rhythm, a mild
// festival bump in November and December, and per-day noise.
func seedSales(ctx context.Context, db *sql.DB, rng *rand.Rand, p demoProduct, now time.Time, days int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sales_records (sku, quantity, unit_price, discount, sold_at)
		 VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for d := days; d > 0; d-- {
		day := now.AddDate(0, 0, -d)

		demand := float64(p.baseline)
		switch day.Weekday() {
		case time.Saturday, time.Sunday:
			demand *= 1.4
		case time.Monday:
			demand *= 0.8
		}
		if day.Month() == time.November || day.Month() == time.December {
			demand *= 1.3
		}
		demand *= 0.7 + rng.Float64()*0.6

		qty := int(demand)
		if qty <= 0 {
			continue
		}

		discount := 0.0
		if rng.Float64() < 0.1 {
			discount = p.price * 0.15
		}

		soldAt := day.Add(time.Duration(9+rng.Intn(12)) * time.Hour)
		if _, err := stmt.ExecContext(ctx, p.sku, qty, p.price, discount, soldAt); err != nil {
			return fmt.Errorf("inserting sale for %s: %w", p.sku, err)
		}
	}

	return tx.Commit()
}
