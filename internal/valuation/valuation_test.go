package valuation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/comps"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/inventory"
)

func sku(brand, category string, items, msrp, cogs float64) inventory.AllocatedSku {
	s := inventory.AllocatedSku{
		Brand:          brand,
		Category:       category,
		AllocatedItems: items,
		AllocatedMSRP:  msrp,
		AllocatedCOGS:  cogs,
	}
	if items > 0 {
		s.AvgUnitMSRP = msrp / items
	}
	return s
}

func TestConfidenceFor(t *testing.T) {
	tests := []struct {
		sold int
		want Confidence
	}{
		{0, ConfidenceLow},
		{4, ConfidenceLow},
		{5, ConfidenceMedium},
		{19, ConfidenceMedium},
		{20, ConfidenceHigh},
		{50, ConfidenceHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ConfidenceFor(tt.sold), "sold=%d", tt.sold)
	}
}

func TestEvaluate_RoutingThreshold(t *testing.T) {
	p := DefaultParams()
	base := sku("Shark", "Vacuums & Floorcare", 5, 100, 20) // avg unit 20

	tests := []struct {
		name     string
		median   float64
		sold     int
		routable bool
	}{
		{"at threshold", 12, 5, true},
		{"just below threshold", 11.8, 5, false},
		{"high recovery low confidence", 18, 4, false},
		{"high recovery high confidence", 18, 25, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Evaluate(base, comps.MarketStats{MedianPrice: tt.median, SoldCount: tt.sold}, p)
			assert.Equal(t, tt.routable, r.Routable)
		})
	}
}

func TestEvaluate_ZeroDivision(t *testing.T) {
	r := Evaluate(sku("Acme", "Toys", 0, 0, 0), comps.MarketStats{MedianPrice: 10, SoldCount: 30}, DefaultParams())
	assert.Equal(t, 0.0, r.RecoveryPct)
	assert.False(t, r.Routable)

	r = Evaluate(sku("Acme", "Toys", 3, 30, 6), comps.MarketStats{}, DefaultParams())
	assert.Equal(t, 0.0, r.RecoveryPct)
	assert.Equal(t, 0.0, r.EstimatedRevenue)
	assert.Equal(t, -6.0, r.EstimatedProfit)
	assert.Equal(t, ConfidenceLow, r.Confidence)
}

func TestEvaluate_Economics(t *testing.T) {
	r := Evaluate(sku("Shark", "Vacuums & Floorcare", 5, 100, 20),
		comps.MarketStats{MedianPrice: 15, AvgPrice: 16, SoldCount: 3, P25: 10, P75: 20}, DefaultParams())

	assert.InDelta(t, 0.75, r.RecoveryPct, 1e-9)
	assert.Equal(t, ConfidenceLow, r.Confidence)
	assert.InDelta(t, 75.0, r.EstimatedRevenue, 1e-9)
	assert.InDelta(t, 75-75*0.13-20, r.EstimatedProfit, 1e-9)
	assert.False(t, r.Routable)
	assert.Equal(t, 16.0, r.EbayAvgSold)
	assert.Equal(t, 3, r.EbaySoldCount90d)
}

func TestAggregate_TwoBrandsOneCategory(t *testing.T) {
	stats := comps.MarketStats{MedianPrice: 15, SoldCount: 2}
	p := DefaultParams()
	results := []SkuResult{
		Evaluate(sku("Shark", "Vacuums & Floorcare", 5, 100, 20), stats, p),
		Evaluate(sku("BISSELL", "Vacuums & Floorcare", 5, 100, 20), stats, p),
	}

	s := Aggregate(results, p)
	require.Len(t, s.Categories, 1)
	c := s.Categories[0]
	assert.Equal(t, 2, c.SkuCount)
	assert.InDelta(t, 200.0, c.TotalMSRP, 1e-9)
	assert.InDelta(t, 0.75, c.WeightedRecovery, 1e-9)
	assert.Len(t, c.Brands, 2)

	assert.Equal(t, 2, s.Totals.SkuCount)
	assert.InDelta(t, 10.0, s.Totals.ItemCount, 1e-9)
	assert.InDelta(t, 0.75, s.Totals.WeightedRecoveryPct, 1e-9)
	assert.Equal(t, 0, s.Totals.RoutableSkus)

	ra := s.RoutingAnalysis
	assert.Equal(t, 0, ra.Marketplace.SkuCount)
	assert.Equal(t, 2, ra.Wholesale.SkuCount)
	assert.InDelta(t, 36.0, ra.Wholesale.Revenue, 1e-9)
	assert.InDelta(t, -4.0, ra.Wholesale.Profit, 1e-9)
	assert.InDelta(t, ra.AllWholesale.Profit, ra.Combined.Profit, 1e-9)
	assert.InDelta(t, 0.0, ra.ProfitUplift, 1e-9)
}

func TestAggregate_RoutingUplift(t *testing.T) {
	p := DefaultParams()
	results := []SkuResult{
		Evaluate(sku("Dyson", "Vacuums & Floorcare", 2, 400, 60), comps.MarketStats{MedianPrice: 150, SoldCount: 30}, p),
		Evaluate(sku("Generic", "Kitchen", 10, 100, 15), comps.MarketStats{MedianPrice: 2, SoldCount: 30}, p),
	}
	require.True(t, results[0].Routable)
	require.False(t, results[1].Routable)

	s := Aggregate(results, p)
	ra := s.RoutingAnalysis
	assert.InDelta(t, 300.0, ra.Marketplace.Revenue, 1e-9)
	assert.InDelta(t, 300-39-60.0, ra.Marketplace.Profit, 1e-9)
	assert.InDelta(t, 0.75, ra.Marketplace.AvgRecovery, 1e-9)
	assert.InDelta(t, 18.0, ra.Wholesale.Revenue, 1e-9)
	assert.InDelta(t, 3.0, ra.Wholesale.Profit, 1e-9)
	assert.InDelta(t, 90.0, ra.AllWholesale.Revenue, 1e-9)
	assert.InDelta(t, 15.0, ra.AllWholesale.Profit, 1e-9)
	assert.InDelta(t, 201+3-15.0, ra.ProfitUplift, 1e-9)

	assert.Equal(t, 1, s.Totals.RoutableSkus)
	assert.InDelta(t, 2.0, s.Totals.RoutableItems, 1e-9)
	assert.InDelta(t, 400.0, s.Totals.RoutableMSRP, 1e-9)

	// sorted by total MSRP
	require.Len(t, s.Categories, 2)
	assert.Equal(t, "Vacuums & Floorcare", s.Categories[0].Category)
	assert.Equal(t, "Kitchen", s.Categories[1].Category)
}

func TestCategories_StableOnTies(t *testing.T) {
	p := DefaultParams()
	results := []SkuResult{
		Evaluate(sku("A", "Toys", 1, 50, 5), comps.MarketStats{}, p),
		Evaluate(sku("B", "Books", 1, 50, 5), comps.MarketStats{}, p),
	}
	cats := Categories(results)
	require.Len(t, cats, 2)
	assert.Equal(t, "Toys", cats[0].Category)
	assert.Equal(t, "Books", cats[1].Category)
	assert.Equal(t, 0.0, cats[0].WeightedRecovery)
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil, DefaultParams())
	assert.Empty(t, s.Categories)
	assert.Equal(t, PortfolioTotals{}, s.Totals)
	assert.Equal(t, 0.0, s.RoutingAnalysis.ProfitUplift)
}

func TestRounded(t *testing.T) {
	r := Evaluate(sku("Shark", "Vacuums", 3, 100, 20), comps.MarketStats{MedianPrice: 12.344, SoldCount: 6}, DefaultParams())
	r.SourceLineItemIDs = []string{"O1"}
	out := r.Rounded()

	assert.Equal(t, 33.33, out.AvgUnitMSRP)
	assert.Equal(t, 12.34, out.EbayMedianSold)
	assert.Equal(t, 0.3703, out.RecoveryPct)
	assert.Equal(t, 37.03, out.EstimatedRevenue)

	out.SourceLineItemIDs[0] = "changed"
	assert.Equal(t, "O1", r.SourceLineItemIDs[0])
}

func TestSkuResult_JSONFlattensSku(t *testing.T) {
	r := Evaluate(sku("Shark", "Vacuums", 1, 10, 2), comps.MarketStats{}, DefaultParams())
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "Shark", m["brand"])
	assert.Equal(t, "low", m["confidence"])
	assert.Contains(t, m, "ebaySoldCount90d")
	assert.Contains(t, m, "allocatedMSRP")
}
