package valuation

import "sort"

// CategorySummary rolls up every brand in one category.
type CategorySummary struct {
	Category         string      `json:"category"`
	SkuCount         int         `json:"skuCount"`
	ItemCount        float64     `json:"itemCount"`
	TotalMSRP        float64     `json:"totalMSRP"`
	TotalCOGS        float64     `json:"totalCOGS"`
	EstimatedRevenue float64     `json:"estimatedRevenue"`
	EstimatedProfit  float64     `json:"estimatedProfit"`
	WeightedRecovery float64     `json:"weightedRecovery"`
	Brands           []SkuResult `json:"brands"`
}

// PortfolioTotals sums every SKU.
type PortfolioTotals struct {
	SkuCount            int     `json:"skuCount"`
	ItemCount           float64 `json:"itemCount"`
	TotalMSRP           float64 `json:"totalMSRP"`
	TotalCOGS           float64 `json:"totalCOGS"`
	EstimatedRevenue    float64 `json:"estimatedRevenue"`
	EstimatedProfit     float64 `json:"estimatedProfit"`
	WeightedRecoveryPct float64 `json:"weightedRecoveryPct"`
	RoutableSkus        int     `json:"routableSkus"`
	RoutableItems       float64 `json:"routableItems"`
	RoutableMSRP        float64 `json:"routableMSRP"`
}

// Channel is one disposal route.
type Channel struct {
	SkuCount    int     `json:"skuCount"`
	Items       float64 `json:"items"`
	MSRP        float64 `json:"msrp"`
	COGS        float64 `json:"cogs"`
	Revenue     float64 `json:"revenue"`
	Profit      float64 `json:"profit"`
	AvgRecovery float64 `json:"avgRecovery"`
}

// Outcome is a revenue/profit pair.
type Outcome struct {
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

// RoutingAnalysis compares routing routable SKUs to the marketplace and the
// rest to wholesale against sending everything to wholesale.
type RoutingAnalysis struct {
	Marketplace  Channel `json:"marketplace"`
	Wholesale    Channel `json:"wholesale"`
	Combined     Outcome `json:"combined"`
	AllWholesale Outcome `json:"allWholesale"`
	ProfitUplift float64 `json:"profitUplift"`
}

// Summary is the full aggregation of a run.
type Summary struct {
	Categories      []CategorySummary `json:"categories"`
	Totals          PortfolioTotals   `json:"totals"`
	RoutingAnalysis RoutingAnalysis   `json:"routingAnalysis"`
}

// Aggregate rolls results up by category, across the portfolio and by
// routing channel.
func Aggregate(results []SkuResult, p Params) Summary {
	return Summary{
		Categories:      Categories(results),
		Totals:          Totals(results),
		RoutingAnalysis: Route(results, p),
	}
}

// Categories groups results by category, largest MSRP first.
func Categories(results []SkuResult) []CategorySummary {
	index := make(map[string]int)
	var cats []CategorySummary
	for _, r := range results {
		i, ok := index[r.Category]
		if !ok {
			i = len(cats)
			index[r.Category] = i
			cats = append(cats, CategorySummary{Category: r.Category})
		}
		c := &cats[i]
		c.SkuCount++
		c.ItemCount += r.AllocatedItems
		c.TotalMSRP += r.AllocatedMSRP
		c.TotalCOGS += r.AllocatedCOGS
		c.EstimatedRevenue += r.EstimatedRevenue
		c.EstimatedProfit += r.EstimatedProfit
		c.Brands = append(c.Brands, r)
	}

	for i := range cats {
		c := &cats[i]
		if c.TotalMSRP == 0 || c.ItemCount == 0 {
			continue
		}
		avgUnit := c.TotalMSRP / c.ItemCount
		var weighted float64
		for _, b := range c.Brands {
			weighted += b.RecoveryPct * b.AllocatedItems * avgUnit
		}
		c.WeightedRecovery = weighted / c.TotalMSRP
	}

	sort.SliceStable(cats, func(i, j int) bool {
		return cats[i].TotalMSRP > cats[j].TotalMSRP
	})
	return cats
}

// Totals sums results; recovery is MSRP-weighted.
func Totals(results []SkuResult) PortfolioTotals {
	var t PortfolioTotals
	var weighted float64
	for _, r := range results {
		t.SkuCount++
		t.ItemCount += r.AllocatedItems
		t.TotalMSRP += r.AllocatedMSRP
		t.TotalCOGS += r.AllocatedCOGS
		t.EstimatedRevenue += r.EstimatedRevenue
		t.EstimatedProfit += r.EstimatedProfit
		weighted += r.RecoveryPct * r.AllocatedMSRP
		if r.Routable {
			t.RoutableSkus++
			t.RoutableItems += r.AllocatedItems
			t.RoutableMSRP += r.AllocatedMSRP
		}
	}
	if t.TotalMSRP != 0 {
		t.WeightedRecoveryPct = weighted / t.TotalMSRP
	}
	return t
}

// Route splits results into marketplace (routable) and wholesale channels.
func Route(results []SkuResult, p Params) RoutingAnalysis {
	var a RoutingAnalysis
	var weighted, allMSRP, allCOGS float64

	for _, r := range results {
		allMSRP += r.AllocatedMSRP
		allCOGS += r.AllocatedCOGS

		ch := &a.Wholesale
		if r.Routable {
			ch = &a.Marketplace
			ch.Revenue += r.EstimatedRevenue
			ch.Profit += r.EstimatedProfit
			weighted += r.RecoveryPct * r.AllocatedMSRP
		}
		ch.SkuCount++
		ch.Items += r.AllocatedItems
		ch.MSRP += r.AllocatedMSRP
		ch.COGS += r.AllocatedCOGS
	}

	if a.Marketplace.MSRP != 0 {
		a.Marketplace.AvgRecovery = weighted / a.Marketplace.MSRP
	}
	a.Wholesale.AvgRecovery = p.WholesaleRate
	a.Wholesale.Revenue = p.WholesaleRate * a.Wholesale.MSRP
	a.Wholesale.Profit = a.Wholesale.Revenue - a.Wholesale.COGS

	a.Combined = Outcome{
		Revenue: a.Marketplace.Revenue + a.Wholesale.Revenue,
		Profit:  a.Marketplace.Profit + a.Wholesale.Profit,
	}
	allRevenue := p.WholesaleRate * allMSRP
	a.AllWholesale = Outcome{Revenue: allRevenue, Profit: allRevenue - allCOGS}
	a.ProfitUplift = a.Combined.Profit - a.AllWholesale.Profit
	return a
}
