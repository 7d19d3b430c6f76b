package inventory

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const lineItemsQuery = `
	SELECT li.id::text, li.order_id, COALESCE(li.category, ''), COALESCE(li.brands, ''),
	       COALESCE(li.msrp::text, ''), COALESCE(li.all_in_cost::text, ''), COALESCE(li.item_count::text, '')
	FROM line_items li
	JOIN orders o ON o.order_id = li.order_id
	ORDER BY o.order_date, li.id`

// PostgresSource reads lot rows from the sourcing database.
type PostgresSource struct {
	db *sql.DB
}

// OpenPostgres opens a pgx-backed database/sql handle.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	return db, nil
}

// NewPostgresSource wraps an open database handle.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// LineItems returns every lot row. Numeric columns are read as text so that
// malformed values coerce to 0 instead of failing the scan.
func (s *PostgresSource) LineItems(ctx context.Context) ([]LineItemRow, error) {
	rows, err := s.db.QueryContext(ctx, lineItemsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer rows.Close()

	var out []LineItemRow
	for rows.Next() {
		var r LineItemRow
		var msrp, cost, count string
		if err := rows.Scan(&r.SourceID, &r.OrderID, &r.Category, &r.Brands, &msrp, &cost, &count); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		r.MSRP = ParseNumber(msrp)
		r.AllInCost = ParseNumber(cost)
		r.ItemCount = ParseNumber(count)
		out = append(out, r)
	}
	return out, rows.Err()
}
