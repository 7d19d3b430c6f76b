package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/cache"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/comps"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/config"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/database"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/ebay"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/handlers"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/inventory"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/metrics"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/pricing"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARNING: failed to load .env: %v", err)
	}

	cfg := config.Load()
	cfg.RegisterFlags(flag.CommandLine)
	storeCredentials := flag.Bool("store-credentials", false, "Seal EBAY_CLIENT_SECRET into the database and exit")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if *storeCredentials {
		if cfg.EbayClientID == "" || cfg.EbayClientSecret == "" {
			log.Fatal("EBAY_CLIENT_ID and EBAY_CLIENT_SECRET are required to store credentials")
		}
		key, err := database.EncryptionKeyFromEnv()
		if err != nil {
			log.Fatal(err)
		}
		if err := db.SaveCredentials(cfg.EbayClientID, cfg.EbayClientSecret, key); err != nil {
			log.Fatalf("Failed to store credentials: %v", err)
		}
		log.Printf("Stored sealed secret for client %s", cfg.EbayClientID)
		return
	}

	// Fall back to a sealed secret stored in the database
	if cfg.EbayClientID != "" && cfg.EbayClientSecret == "" {
		if key, err := database.EncryptionKeyFromEnv(); err == nil {
			secret, err := db.LoadCredentials(cfg.EbayClientID, key)
			switch {
			case err == nil:
				cfg.EbayClientSecret = secret
				log.Printf("Loaded stored eBay client secret")
			case !errors.Is(err, database.ErrNoCredentials):
				log.Printf("WARNING: failed to load stored credentials: %v", err)
			}
		}
	}

	categories, err := cfg.Categories()
	if err != nil {
		log.Fatalf("Failed to load category map: %v", err)
	}

	reg := metrics.NewRegistry()

	var resultCache comps.Cache
	switch cfg.Cache {
	case config.CacheRedis:
		rc := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rc.Ping(ctx); err != nil {
			log.Fatalf("Failed to reach redis at %s: %v", cfg.RedisAddr, err)
		}
		cancel()
		defer rc.Close()
		resultCache = rc
	case config.CacheSQLite:
		cc := database.NewCompsCache(db, nil)
		if n, err := cc.Purge(context.Background()); err != nil {
			log.Printf("WARNING: failed to purge comps cache: %v", err)
		} else if n > 0 {
			log.Printf("Purged %d expired comps cache entries", n)
		}
		resultCache = cc
	default:
		resultCache = comps.NewMemoryCache(nil)
	}

	ebayClient := ebay.NewClient(ebay.Config{
		ClientID:      cfg.EbayClientID,
		ClientSecret:  cfg.EbayClientSecret,
		Sandbox:       cfg.Sandbox,
		MarketplaceID: cfg.MarketplaceID,
	})

	compsClient := comps.NewClient(ebayClient, comps.Options{
		Cache:   resultCache,
		Metrics: reg,
	})

	service := pricing.NewService(pricing.Options{
		Comps:      compsClient,
		Params:     db,
		Defaults:   cfg.Defaults,
		History:    db,
		Categories: categories,
		Metrics:    reg,
	})

	var rows handlers.RowSource
	if cfg.DatabaseURL != "" {
		pg, err := inventory.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open line item database: %v", err)
		}
		defer pg.Close()
		rows = inventory.NewPostgresSource(pg)
	}

	h := handlers.NewHandler(handlers.Options{
		Pricer:     service,
		Rows:       rows,
		Store:      db,
		Configured: ebayClient.IsConfigured(),
		Cache:      cfg.Cache,
	})

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.Handle("/metrics", reg.Handler())

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Starting comps service on http://localhost%s", addr)
	log.Printf("Sandbox mode: %v, cache: %s", cfg.Sandbox, cfg.Cache)
	if !ebayClient.IsConfigured() {
		log.Println("WARNING: EBAY_CLIENT_ID/EBAY_CLIENT_SECRET not set - comps will be empty")
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
