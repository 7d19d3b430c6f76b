package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const ordersJSON = `{
  "orders": [
    {
      "order_id": "100234",
      "date": "2026-02-01",
      "items": [
        {"title": "Vacuums & Floorcare - iRobot, BISSELL, Shark - Orig. Retail $28,292", "price": 3000, "msrp": 20000, "item_count": 80, "pallet_ids": ["P1", "P2"]},
        {"title": "Mixed Lot", "price": "1000", "msrp": 10000, "item_count": 20, "pallet_ids": ["P3"]}
      ]
    },
    {"order_id": "", "items": []}
  ]
}`

func writeOrders(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(ordersJSON), 0o644))
	return path
}

func TestBrandsFromTitle(t *testing.T) {
	assert.Equal(t, "iRobot, BISSELL, Shark", BrandsFromTitle("Vacuums & Floorcare - iRobot, BISSELL, Shark - Orig. Retail $28,292"))
	assert.Equal(t, "", BrandsFromTitle("Vacuums - Shark"))
	assert.Equal(t, "", BrandsFromTitle(""))
}

func TestLoadOrders(t *testing.T) {
	orders, err := LoadOrders(writeOrders(t))
	require.NoError(t, err)
	require.Len(t, orders, 1)

	o := orders["100234"]
	assert.Equal(t, "2026-02-01", o.Date)
	assert.Equal(t, 4000.0, o.TotalCost)
	assert.Equal(t, 30000.0, o.TotalMSRP)
	assert.Equal(t, 100.0, o.TotalItemCount)
	assert.Equal(t, "iRobot, BISSELL, Shark", o.PalletBrands["P2"])
	assert.Equal(t, "", o.PalletBrands["P3"])
	assert.InDelta(t, 4000.0/30000.0, o.CogsRatio(), 1e-12)
}

func TestLoadOrders_MissingFile(t *testing.T) {
	orders, err := LoadOrders(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCleanUPC(t *testing.T) {
	assert.Equal(t, "012345678905", CleanUPC("012345678905.0"))
	assert.Equal(t, "885909950805", CleanUPC(" 8859-0995-0805 "))
	assert.Equal(t, "", CleanUPC(""))
	assert.Equal(t, "N/A", CleanUPC("N/A"))
}

func TestOrderIDFromPath(t *testing.T) {
	assert.Equal(t, "100234", OrderIDFromPath("/data/order_manifest_100234.xlsx"))
}

func TestParseSheet(t *testing.T) {
	cells := [][]string{
		{"TechLiquidators Manifest"},
		{},
		{"Listing ID", "Listing Title", "Category", "Product Name", "UPC", "ASIN", "Quantity", "Orig. Retail", "Total Orig. Retail"},
		{"P1", "Pallet of vacuums", "Vacuums", "Shark Navigator", "622356230186.0", "B00SMLJQNW", "2", "200", ""},
		{"", "", "", "", "", "", "", "", ""},
		{"P2", "Pallet of vacuums", "Vacuums", "Product Name"},
		{"P3", "Mixed", "Home", "Mystery Box", "", "", "", "50", "75"},
		{"P9", "Missing name", "Home", ""},
	}
	order := Order{Date: "2026-02-01", TotalCost: 25, TotalMSRP: 100, PalletBrands: map[string]string{"P1": "Shark"}}

	rows := ParseSheet(cells, "100234", order)
	require.Len(t, rows, 2)

	r := rows[0]
	assert.Equal(t, "100234", r.OrderID)
	assert.Equal(t, "P1", r.ListingID)
	assert.Equal(t, "Shark Navigator", r.ProductName)
	assert.Equal(t, "622356230186", r.UPC)
	assert.Equal(t, 2, r.Quantity)
	assert.Equal(t, 200.0, r.UnitRetail)
	assert.Equal(t, 400.0, r.TotalRetail)
	assert.Equal(t, "Shark", r.LineItemBrands)
	assert.Equal(t, 50.0, r.AllocatedCogsPerUnit)
	assert.Equal(t, "2026-02-01", r.OrderDate)

	r = rows[1]
	assert.Equal(t, 1, r.Quantity)
	assert.Equal(t, 75.0, r.TotalRetail)
	assert.Equal(t, "", r.LineItemBrands)
}

func TestParseSheet_NoHeader(t *testing.T) {
	assert.Empty(t, ParseSheet([][]string{{"foo", "bar"}}, "1", Order{}))
}

func TestParseManifest_Workbook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "order_manifest_555.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Listing ID", "Product Name", "UPC", "Quantity", "Orig. Retail"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"P1", "Dyson V8", 885609012345, 3, 299.99}))
	_, err := f.NewSheet("Extra")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Extra", "A1", &[]any{"Product Name", "Quantity"}))
	require.NoError(t, f.SetSheetRow("Extra", "A2", &[]any{"Toaster", 1}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	files, err := FindManifests(dir)
	require.NoError(t, err)
	require.Equal(t, []string{path}, files)

	rows, err := ParseManifest(path, OrderIDFromPath(path), Order{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "555", rows[0].OrderID)
	assert.Equal(t, "Dyson V8", rows[0].ProductName)
	assert.Equal(t, "885609012345", rows[0].UPC)
	assert.Equal(t, 3, rows[0].Quantity)
	assert.InDelta(t, 899.97, rows[0].TotalRetail, 1e-9)
	assert.Equal(t, 0.0, rows[0].AllocatedCogsPerUnit)
	assert.Equal(t, "Toaster", rows[1].ProductName)
}

type fakeBatch struct {
	failAt int
	n      int
	closed bool
}

func (b *fakeBatch) Exec() (pgconn.CommandTag, error) {
	b.n++
	if b.n == b.failAt {
		return pgconn.CommandTag{}, errors.New("duplicate key")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (b *fakeBatch) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (b *fakeBatch) QueryRow() pgx.Row        { return nil }
func (b *fakeBatch) Close() error             { b.closed = true; return nil }

type fakeConn struct {
	batches   []int
	failBatch int
	badUPC    string
	execs     int
}

func (c *fakeConn) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	c.execs++
	if len(args) > 5 && args[5] == c.badUPC {
		return pgconn.CommandTag{}, errors.New("value too long")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (c *fakeConn) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	c.batches = append(c.batches, b.Len())
	fb := &fakeBatch{}
	if len(c.batches) == c.failBatch {
		fb.failAt = 1
	}
	return fb
}

func (c *fakeConn) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func TestStore_UpsertBatches(t *testing.T) {
	conn := &fakeConn{}
	store := NewStore(conn, 2, nil)
	rows := []Row{{UPC: "1"}, {UPC: "2"}, {UPC: "3"}, {UPC: "4"}, {UPC: "5"}}

	upserted, failed, err := store.Upsert(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 5, upserted)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []int{2, 2, 1}, conn.batches)
	assert.Equal(t, 0, conn.execs)
}

func TestStore_FailedBatchReplaysRows(t *testing.T) {
	conn := &fakeConn{failBatch: 2, badUPC: "4"}
	store := NewStore(conn, 2, nil)
	rows := []Row{{UPC: "1"}, {UPC: "2"}, {UPC: "3"}, {UPC: "4"}, {UPC: "5"}}

	upserted, failed, err := store.Upsert(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 4, upserted)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, conn.execs)
}

func TestStore_EnsureSchema(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, NewStore(conn, 0, nil).EnsureSchema(context.Background()))
	assert.Equal(t, 1, conn.execs)
}
