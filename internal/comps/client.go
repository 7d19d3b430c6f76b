package comps

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/ebay"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/metrics"
)

const (
	// LookbackWindow is the trailing sold-listing window.
	LookbackWindow = 90 * 24 * time.Hour
	// MaxListings caps the listings considered per query.
	MaxListings = 50
	// TokenSafetyMargin is subtracted from the token's own expiry.
	TokenSafetyMargin = 300 * time.Second

	defaultTokenLifetime = 2 * time.Hour
)

// Marketplace is the external market-data provider.
type Marketplace interface {
	FetchToken(ctx context.Context) (*oauth2.Token, error)
	SearchSold(ctx context.Context, token string, req ebay.SearchRequest) ([]ebay.SoldListing, error)
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Cache   Cache
	Clock   Clock
	Retry   RetryPolicy
	Sleep   func(ctx context.Context, d time.Duration) error
	TTL     time.Duration
	Metrics *metrics.Registry
}

// Client looks up comparable sold prices, caching the bearer token and
// per-query results.
type Client struct {
	market  Marketplace
	cache   Cache
	clock   Clock
	retry   RetryPolicy
	sleep   func(ctx context.Context, d time.Duration) error
	ttl     time.Duration
	metrics *metrics.Registry

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a comps client over market.
func NewClient(market Marketplace, opts Options) *Client {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache(opts.Clock)
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if opts.Retry.Backoff == nil {
		opts.Retry.Backoff = DefaultBackoff
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.TTL <= 0 {
		opts.TTL = ResultTTL
	}
	return &Client{
		market:  market,
		cache:   opts.Cache,
		clock:   opts.Clock,
		retry:   opts.Retry,
		sleep:   opts.Sleep,
		ttl:     opts.TTL,
		metrics: opts.Metrics,
	}
}

// Cached returns a fresh cached result for query without any external call.
func (c *Client) Cached(ctx context.Context, query string) (MarketStats, bool) {
	stats, ok, err := c.cache.Get(ctx, CacheKey(query))
	if err != nil {
		log.Printf("comps cache read error for %q: %v", query, err)
		return MarketStats{}, false
	}
	return stats, ok
}

// GetStats returns market statistics for query and whether they came from
// the cache. Lookup failures resolve to zero-valued stats; the only errors
// returned are ebay.ErrAuthConfiguration and context cancellation.
func (c *Client) GetStats(ctx context.Context, query string) (MarketStats, bool, error) {
	if stats, ok := c.Cached(ctx, query); ok {
		c.metrics.CacheHit()
		return stats, true, nil
	}
	c.metrics.CacheMiss()

	stats, err := c.fetch(ctx, query)
	if err != nil {
		return MarketStats{}, false, err
	}
	return stats, false, nil
}

func (c *Client) fetch(ctx context.Context, query string) (MarketStats, error) {
	now := c.clock.Now()
	req := ebay.SearchRequest{
		Query: strings.TrimSpace(query),
		From:  now.Add(-LookbackWindow),
		To:    now,
		Limit: MaxListings,
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		listings, err := c.search(ctx, req)
		if err == nil {
			stats := ComputeStats(Recent(listings, MaxListings))
			if err := c.cache.Set(ctx, CacheKey(query), stats, c.ttl); err != nil {
				log.Printf("comps cache write error for %q: %v", query, err)
			}
			c.metrics.Lookup("ok")
			return stats, nil
		}
		if errors.Is(err, ebay.ErrAuthConfiguration) {
			c.metrics.Lookup("auth_error")
			return MarketStats{}, fmt.Errorf("comps lookup %q: %w", query, err)
		}
		if ctx.Err() != nil {
			return MarketStats{}, ctx.Err()
		}

		lastErr = err
		kind := Classify(err)
		if kind == FailureUnauthorized {
			c.invalidateToken()
		}
		if attempt == c.retry.MaxAttempts-1 {
			break
		}
		wait := c.retry.Backoff(kind, attempt)
		c.metrics.Retry(kind.String())
		log.Printf("comps lookup %q attempt %d failed (%s), retrying in %s: %v", query, attempt+1, kind, wait, err)
		if err := c.sleep(ctx, wait); err != nil {
			return MarketStats{}, err
		}
	}

	c.metrics.Lookup("exhausted")
	log.Printf("comps lookup %q gave up after %d attempts: %v", query, c.retry.MaxAttempts, lastErr)
	return MarketStats{}, nil
}

func (c *Client) search(ctx context.Context, req ebay.SearchRequest) ([]ebay.SoldListing, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	return c.market.SearchSold(ctx, token, req)
}

// token returns the cached bearer token, refreshing it once it is within
// TokenSafetyMargin of expiry. The lock keeps refreshes single-flight.
func (c *Client) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	now := c.clock.Now()
	if c.accessToken != "" && now.Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	tok, err := c.market.FetchToken(ctx)
	if err != nil {
		return "", err
	}
	c.metrics.TokenRefresh()

	var expiry time.Time
	switch {
	case tok.ExpiresIn > 0:
		expiry = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		expiry = tok.Expiry
	default:
		expiry = now.Add(defaultTokenLifetime)
	}
	c.accessToken = tok.AccessToken
	c.tokenExpiry = expiry.Add(-TokenSafetyMargin)
	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.accessToken = ""
	c.tokenExpiry = time.Time{}
	c.tokenMu.Unlock()
}
