package manifest

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/metrics"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS tl_manifest_items (
    id SERIAL PRIMARY KEY,
    order_id VARCHAR(20) NOT NULL,
    listing_id VARCHAR(20),
    listing_title TEXT,
    category VARCHAR(255),
    product_name TEXT,
    upc VARCHAR(20),
    asin VARCHAR(20),
    quantity INTEGER DEFAULT 1,
    unit_retail DOUBLE PRECISION,
    total_retail DOUBLE PRECISION,
    order_date VARCHAR(50),
    line_item_brands VARCHAR(500),
    allocated_cogs_per_unit DOUBLE PRECISION DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW(),
    UNIQUE(order_id, listing_id, product_name, upc)
);
CREATE INDEX IF NOT EXISTS idx_tl_manifest_items_order_id ON tl_manifest_items(order_id);
CREATE INDEX IF NOT EXISTS idx_tl_manifest_items_upc ON tl_manifest_items(upc);
CREATE INDEX IF NOT EXISTS idx_tl_manifest_items_category ON tl_manifest_items(category);
`

const upsertSQL = `
INSERT INTO tl_manifest_items (
    order_id, listing_id, listing_title, category, product_name,
    upc, asin, quantity, unit_retail, total_retail,
    order_date, line_item_brands, allocated_cogs_per_unit
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (order_id, listing_id, product_name, upc)
DO UPDATE SET
    quantity = EXCLUDED.quantity,
    unit_retail = EXCLUDED.unit_retail,
    total_retail = EXCLUDED.total_retail,
    order_date = EXCLUDED.order_date,
    line_item_brands = EXCLUDED.line_item_brands,
    allocated_cogs_per_unit = EXCLUDED.allocated_cogs_per_unit,
    category = EXCLUDED.category,
    asin = EXCLUDED.asin`

// DefaultBatchSize is the number of upserts sent per round trip.
const DefaultBatchSize = 200

// Conn is the subset of *pgxpool.Pool the store needs.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store writes manifest rows to Postgres.
type Store struct {
	conn      Conn
	batchSize int
	metrics   *metrics.Registry
}

// OpenPool connects a pgx pool to dsn.
func OpenPool(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return pool, nil
}

// NewStore uses DefaultBatchSize when batchSize is not positive.
func NewStore(conn Conn, batchSize int, m *metrics.Registry) *Store {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{conn: conn, batchSize: batchSize, metrics: m}
}

// EnsureSchema creates the manifest table and indexes if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create tl_manifest_items: %w", err)
	}
	return nil
}

func rowArgs(r Row) []any {
	return []any{
		r.OrderID, r.ListingID, r.ListingTitle, r.Category, r.ProductName,
		r.UPC, r.ASIN, r.Quantity, r.UnitRetail, r.TotalRetail,
		r.OrderDate, r.LineItemBrands, r.AllocatedCogsPerUnit,
	}
}

// Upsert writes rows in batches. A failed batch is replayed row by row so
// one bad row only costs itself; failures are counted, not returned.
func (s *Store) Upsert(ctx context.Context, rows []Row) (upserted, failed int, err error) {
	for i := 0; i < len(rows); i += s.batchSize {
		j := i + s.batchSize
		if j > len(rows) {
			j = len(rows)
		}
		chunk := rows[i:j]

		berr := s.sendBatch(ctx, chunk)
		if berr == nil {
			upserted += len(chunk)
			continue
		}
		if ctx.Err() != nil {
			return upserted, failed, ctx.Err()
		}
		log.Printf("Batch of %d rows failed, retrying individually: %v", len(chunk), berr)

		for _, r := range chunk {
			if _, err := s.conn.Exec(ctx, upsertSQL, rowArgs(r)...); err != nil {
				failed++
				if failed <= 5 {
					log.Printf("Error upserting order=%s product=%.50s upc=%s: %v", r.OrderID, r.ProductName, r.UPC, err)
				}
				continue
			}
			upserted++
		}
	}
	s.metrics.Upserted(upserted)
	return upserted, failed, nil
}

func (s *Store) sendBatch(ctx context.Context, chunk []Row) error {
	b := &pgx.Batch{}
	for _, r := range chunk {
		b.Queue(upsertSQL, rowArgs(r)...)
	}
	br := s.conn.SendBatch(ctx, b)
	for range chunk {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

// Totals summarizes the manifest table.
type Totals struct {
	Rows       int64
	Orders     int64
	Items      int64
	MSRP       float64
	UniqueUPCs int64
}

// Totals reads table-wide counts.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.conn.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT order_id),
		       COALESCE(SUM(quantity), 0),
		       COALESCE(SUM(total_retail), 0),
		       COUNT(DISTINCT upc) FILTER (WHERE upc IS NOT NULL AND upc <> '')
		FROM tl_manifest_items
	`).Scan(&t.Rows, &t.Orders, &t.Items, &t.MSRP, &t.UniqueUPCs)
	if err != nil {
		return Totals{}, fmt.Errorf("manifest totals: %w", err)
	}
	return t, nil
}
