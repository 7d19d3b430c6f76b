package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/manifest"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/metrics"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARNING: failed to load .env: %v", err)
	}

	dataDir := filepath.Join("data", "techliquidators")
	manifestsDir := flag.String("manifests-dir", filepath.Join(dataDir, "order_manifests"), "Directory containing XLSX manifests")
	ordersJSON := flag.String("orders-json", filepath.Join(dataDir, "orders.json"), "Path to orders.json")
	batchSize := flag.Int("batch", manifest.DefaultBatchSize, "Upsert batch size")
	pushgateway := flag.String("pushgateway", os.Getenv("PUSHGATEWAY_URL"), "Prometheus Pushgateway URL for job metrics")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL_COGS")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		log.Fatal("Set DATABASE_URL_COGS or DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Manifests dir: %s", *manifestsDir)
	log.Printf("Orders JSON:   %s", *ordersJSON)

	orders, err := manifest.LoadOrders(*ordersJSON)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Loaded %d orders from orders.json", len(orders))

	files, err := manifest.FindManifests(*manifestsDir)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Found %d manifest XLSX files", len(files))
	if len(files) == 0 {
		log.Println("No manifest files found. Exiting.")
		return
	}

	var rows []manifest.Row
	for _, path := range files {
		orderID := manifest.OrderIDFromPath(path)
		parsed, err := manifest.ParseManifest(path, orderID, orders[orderID])
		if err != nil {
			log.Printf("Error reading %s: %v", filepath.Base(path), err)
			continue
		}
		log.Printf("  %s: %d product rows (order %s)", filepath.Base(path), len(parsed), orderID)
		rows = append(rows, parsed...)
	}
	log.Printf("Total rows to upsert: %d", len(rows))
	if len(rows) == 0 {
		log.Println("No rows parsed. Exiting.")
		return
	}

	pool, err := manifest.OpenPool(ctx, dsn, 2)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	reg := metrics.NewRegistry()
	store := manifest.NewStore(pool, *batchSize, reg)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal(err)
	}

	upserted, failed, err := store.Upsert(ctx, rows)
	if err != nil {
		log.Fatalf("Upsert interrupted after %d rows: %v", upserted, err)
	}

	if err := reg.Push(*pushgateway, "manifest_sync"); err != nil {
		log.Printf("WARNING: failed to push metrics: %v", err)
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("--- Sync Complete ---")
	log.Printf("Upserted:      %d rows (%d errors)", upserted, failed)
	log.Printf("Total in DB:   %d manifest rows", totals.Rows)
	log.Printf("Orders:        %d", totals.Orders)
	log.Printf("Total items:   %d", totals.Items)
	log.Printf("Total MSRP:    $%.2f", totals.MSRP)
	log.Printf("Unique UPCs:   %d", totals.UniqueUPCs)
}
