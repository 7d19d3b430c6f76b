package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/comps"
)

var _ comps.Cache = (*CompsCache)(nil)

// CompsCache persists comps results across restarts.
type CompsCache struct {
	db    *DB
	clock comps.Clock
}

// NewCompsCache uses the wall clock when clock is nil.
func NewCompsCache(db *DB, clock comps.Clock) *CompsCache {
	if clock == nil {
		clock = comps.SystemClock
	}
	return &CompsCache{db: db, clock: clock}
}

func (c *CompsCache) Get(ctx context.Context, key string) (comps.MarketStats, bool, error) {
	var s comps.MarketStats
	var expiresAt int64
	err := c.db.QueryRowContext(ctx, `
		SELECT median_price, avg_price, sold_count, p25, p75, expires_at
		FROM comps_cache
		WHERE key = ?
	`, key).Scan(&s.MedianPrice, &s.AvgPrice, &s.SoldCount, &s.P25, &s.P75, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return comps.MarketStats{}, false, nil
	}
	if err != nil {
		return comps.MarketStats{}, false, fmt.Errorf("comps cache get: %w", err)
	}
	if c.clock.Now().UnixMilli() >= expiresAt {
		return comps.MarketStats{}, false, nil
	}
	return s, true, nil
}

func (c *CompsCache) Set(ctx context.Context, key string, s comps.MarketStats, ttl time.Duration) error {
	expiresAt := c.clock.Now().Add(ttl).UnixMilli()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO comps_cache (key, median_price, avg_price, sold_count, p25, p75, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			median_price = excluded.median_price,
			avg_price = excluded.avg_price,
			sold_count = excluded.sold_count,
			p25 = excluded.p25,
			p75 = excluded.p75,
			expires_at = excluded.expires_at
	`, key, s.MedianPrice, s.AvgPrice, s.SoldCount, s.P25, s.P75, expiresAt)
	if err != nil {
		return fmt.Errorf("comps cache set: %w", err)
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed.
func (c *CompsCache) Purge(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx, `DELETE FROM comps_cache WHERE expires_at <= ?`, c.clock.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
