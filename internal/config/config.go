package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/inventory"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/valuation"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

type Config struct {
	Port    string
	Sandbox bool
	DBPath  string
	Cache   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// DatabaseURL points at the Postgres orders/line_items source.
	DatabaseURL string

	EbayClientID     string
	EbayClientSecret string
	MarketplaceID    string

	CategoryMapFile string
	Defaults        valuation.Params
}

// Load reads the environment. Call godotenv first if a .env file is wanted.
func Load() *Config {
	defaults := valuation.DefaultParams()
	return &Config{
		Port:    getEnv("PORT", "8080"),
		Sandbox: getEnvBool("EBAY_SANDBOX", false),
		DBPath:  getEnv("DB_PATH", "comps.db"),
		Cache:   getEnv("COMPS_CACHE", CacheSQLite),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		EbayClientID:     os.Getenv("EBAY_CLIENT_ID"),
		EbayClientSecret: os.Getenv("EBAY_CLIENT_SECRET"),
		MarketplaceID:    getEnv("EBAY_MARKETPLACE_ID", "EBAY_US"),

		CategoryMapFile: os.Getenv("CATEGORY_MAP_FILE"),
		Defaults: valuation.Params{
			FeeRate:          getEnvFloat("FEE_RATE", defaults.FeeRate),
			WholesaleRate:    getEnvFloat("WHOLESALE_RATE", defaults.WholesaleRate),
			RoutingThreshold: getEnvFloat("ROUTING_THRESHOLD", defaults.RoutingThreshold),
		},
	}
}

// RegisterFlags binds process flags over the loaded values.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Port, "port", c.Port, "Server port")
	fs.BoolVar(&c.Sandbox, "sandbox", c.Sandbox, "Use eBay sandbox environment")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path")
	fs.StringVar(&c.Cache, "cache", c.Cache, "Comps cache backend: memory, sqlite or redis")
	fs.StringVar(&c.CategoryMapFile, "category-map", c.CategoryMapFile, "YAML file overriding category search terms")
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Cache {
	case CacheMemory, CacheSQLite, CacheRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache)
	}
	return ValidateParams(c.Defaults)
}

// ValidateParams requires every rate to lie in [0, 1].
func ValidateParams(p valuation.Params) error {
	fields := []struct {
		name string
		v    float64
	}{
		{"fee_rate", p.FeeRate},
		{"wholesale_rate", p.WholesaleRate},
		{"routing_threshold", p.RoutingThreshold},
	}
	for _, f := range fields {
		if f.v < 0 || f.v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", f.name, f.v)
		}
	}
	return nil
}

// Categories returns the default category map with the optional YAML
// override applied.
func (c *Config) Categories() (inventory.CategoryMap, error) {
	if c.CategoryMapFile == "" {
		return inventory.DefaultCategories, nil
	}
	overrides, err := inventory.LoadCategoryMap(c.CategoryMapFile)
	if err != nil {
		return nil, err
	}
	return inventory.DefaultCategories.Merge(overrides), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if i, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return i
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}
