package pricing

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/comps"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/database"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/ebay"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/inventory"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/valuation"
)

type countingPacer struct {
	mu    sync.Mutex
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.waits++
	p.mu.Unlock()
	return ctx.Err()
}

func (p *countingPacer) Done() {}

type span struct{ start, end time.Time }

// stubMarket answers every search with the same listings.
type stubMarket struct {
	mu       sync.Mutex
	tokenErr error
	listings []ebay.SoldListing
	queries  []string
	delay    time.Duration
	spans    []span
}

func (m *stubMarket) FetchToken(context.Context) (*oauth2.Token, error) {
	if m.tokenErr != nil {
		return nil, m.tokenErr
	}
	return &oauth2.Token{AccessToken: "tok"}, nil
}

func (m *stubMarket) SearchSold(_ context.Context, _ string, req ebay.SearchRequest) ([]ebay.SoldListing, error) {
	start := time.Now()
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, req.Query)
	m.spans = append(m.spans, span{start: start, end: time.Now()})
	return m.listings, nil
}

func newService(t *testing.T, market *stubMarket, pacer Pacer, opts Options) *Service {
	t.Helper()
	opts.Comps = comps.NewClient(market, comps.Options{})
	opts.Pacer = pacer
	return NewService(opts)
}

func scenarioRows() []inventory.LineItemRow {
	return []inventory.LineItemRow{{
		OrderID:   "O1",
		Category:  "Vacuums & Floorcare",
		Brands:    "Shark, BISSELL",
		MSRP:      200,
		AllInCost: 40,
		ItemCount: 10,
	}}
}

func TestRun_EndToEnd(t *testing.T) {
	market := &stubMarket{listings: []ebay.SoldListing{{ItemID: "1", Price: 15}}}
	pacer := &countingPacer{}
	svc := newService(t, market, pacer, Options{})

	report, err := svc.Run(context.Background(), scenarioRows())
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.False(t, report.AuthError)
	require.Len(t, report.Skus, 2)
	assert.Equal(t, []string{"Shark vacuum", "BISSELL vacuum"}, market.queries)

	for _, sku := range report.Skus {
		assert.Equal(t, 5.0, sku.AllocatedItems)
		assert.Equal(t, 100.0, sku.AllocatedMSRP)
		assert.Equal(t, 20.0, sku.AllocatedCOGS)
		assert.Equal(t, 20.0, sku.AvgUnitMSRP)
		assert.Equal(t, 0.75, sku.RecoveryPct)
		assert.Equal(t, valuation.ConfidenceLow, sku.Confidence)
		assert.False(t, sku.Routable)
	}

	assert.Equal(t, Meta{QueryCount: 2, UniqueBrandCategories: 2, CacheHits: 0}, report.Meta)
	assert.Equal(t, 2, pacer.waits)
	require.Len(t, report.Categories, 1)
	assert.Equal(t, 0.75, report.Categories[0].WeightedRecovery)
}

func TestRun_SecondRunServedFromCache(t *testing.T) {
	market := &stubMarket{listings: []ebay.SoldListing{{ItemID: "1", Price: 15}}}
	pacer := &countingPacer{}
	svc := newService(t, market, pacer, Options{})

	_, err := svc.Run(context.Background(), scenarioRows())
	require.NoError(t, err)
	report, err := svc.Run(context.Background(), scenarioRows())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Meta.QueryCount)
	assert.Equal(t, 2, report.Meta.CacheHits)
	assert.Equal(t, 2, pacer.waits)
	assert.Len(t, market.queries, 2)
}

func TestRun_AuthErrorDegrades(t *testing.T) {
	market := &stubMarket{tokenErr: ebay.ErrAuthConfiguration}
	svc := newService(t, market, &countingPacer{}, Options{})

	report, err := svc.Run(context.Background(), scenarioRows())
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.True(t, report.AuthError)
	require.Len(t, report.Skus, 2)
	for _, sku := range report.Skus {
		assert.Equal(t, 0.0, sku.EbayMedianSold)
		assert.Equal(t, valuation.ConfidenceLow, sku.Confidence)
		assert.False(t, sku.Routable)
	}
	assert.Equal(t, 0, report.Meta.QueryCount)
	assert.Empty(t, market.queries)
}

func TestRun_EmptyInput(t *testing.T) {
	svc := newService(t, &stubMarket{}, &countingPacer{}, Options{})

	report, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Empty(t, report.Skus)
	assert.Equal(t, 0, report.Meta.UniqueBrandCategories)
}

func TestRun_CancelledContext(t *testing.T) {
	svc := newService(t, &stubMarket{}, &countingPacer{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, scenarioRows())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_RecordsHistoryAndUsesStoredParams(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.UpdateSetting(database.SettingRoutingThreshold, "0.5"))

	// 15/20 = 0.75 recovery with 5+ samples routes at any threshold <= 0.75
	listings := make([]ebay.SoldListing, 6)
	for i := range listings {
		listings[i] = ebay.SoldListing{ItemID: "x", Price: 15}
	}
	market := &stubMarket{listings: listings}
	svc := newService(t, market, &countingPacer{}, Options{Params: db, History: db})

	report, err := svc.Run(context.Background(), scenarioRows())
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 0.5, svc.Params().RoutingThreshold)
	for _, sku := range report.Skus {
		assert.Equal(t, valuation.ConfidenceMedium, sku.Confidence)
		assert.True(t, sku.Routable)
	}
	assert.Equal(t, 2, report.Totals.RoutableSkus)

	runs, err := db.ListRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, database.RunSuccess, runs[0].Status)
	assert.Equal(t, 2, runs[0].SkuCount)
	assert.Equal(t, 2, runs[0].QueryCount)
}

func TestRun_AuthErrorRecordedAsDegraded(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer db.Close()

	market := &stubMarket{tokenErr: ebay.ErrAuthConfiguration}
	svc := newService(t, market, &countingPacer{}, Options{History: db})

	_, err = svc.Run(context.Background(), scenarioRows())
	require.NoError(t, err)

	runs, err := db.ListRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, database.RunDegraded, runs[0].Status)
	assert.True(t, runs[0].AuthError)
}

func TestRun_PausesAfterSlowLookups(t *testing.T) {
	const interval = 60 * time.Millisecond
	market := &stubMarket{
		listings: []ebay.SoldListing{{ItemID: "1", Price: 15}},
		delay:    2 * interval,
	}
	svc := newService(t, market, NewPacer(interval), Options{})

	rows := append(scenarioRows(), inventory.LineItemRow{
		OrderID: "O2", Category: "Toys", Brands: "LEGO", MSRP: 50, ItemCount: 2,
	})
	_, err := svc.Run(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, market.spans, 3)
	for i := 1; i < len(market.spans); i++ {
		gap := market.spans[i].start.Sub(market.spans[i-1].end)
		assert.GreaterOrEqual(t, gap, interval-time.Millisecond, "gap before lookup %d", i)
	}
}

func TestIntervalPacer(t *testing.T) {
	p := NewPacer(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 25*time.Millisecond)

	p.Done()
	start = time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 49*time.Millisecond)

	p.Done()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Wait(ctx))
}
