package valuation

import "github.com/shopspring/decimal"

func round2(val float64) float64 {
	return decimal.NewFromFloat(val).Round(2).InexactFloat64()
}

func round4(val float64) float64 {
	return decimal.NewFromFloat(val).Round(4).InexactFloat64()
}

// Rounded returns a copy with currency at 2 places and ratios at 4.
func (r SkuResult) Rounded() SkuResult {
	r.SourceLineItemIDs = append([]string(nil), r.SourceLineItemIDs...)
	r.AllocatedMSRP = round2(r.AllocatedMSRP)
	r.AllocatedCOGS = round2(r.AllocatedCOGS)
	r.AvgUnitMSRP = round2(r.AvgUnitMSRP)
	r.EbayMedianSold = round2(r.EbayMedianSold)
	r.EbayAvgSold = round2(r.EbayAvgSold)
	r.EbayP25 = round2(r.EbayP25)
	r.EbayP75 = round2(r.EbayP75)
	r.RecoveryPct = round4(r.RecoveryPct)
	r.EstimatedRevenue = round2(r.EstimatedRevenue)
	r.EstimatedProfit = round2(r.EstimatedProfit)
	return r
}

func (c CategorySummary) Rounded() CategorySummary {
	brands := make([]SkuResult, len(c.Brands))
	for i, b := range c.Brands {
		brands[i] = b.Rounded()
	}
	c.Brands = brands
	c.TotalMSRP = round2(c.TotalMSRP)
	c.TotalCOGS = round2(c.TotalCOGS)
	c.EstimatedRevenue = round2(c.EstimatedRevenue)
	c.EstimatedProfit = round2(c.EstimatedProfit)
	c.WeightedRecovery = round4(c.WeightedRecovery)
	return c
}

func (t PortfolioTotals) Rounded() PortfolioTotals {
	t.TotalMSRP = round2(t.TotalMSRP)
	t.TotalCOGS = round2(t.TotalCOGS)
	t.EstimatedRevenue = round2(t.EstimatedRevenue)
	t.EstimatedProfit = round2(t.EstimatedProfit)
	t.WeightedRecoveryPct = round4(t.WeightedRecoveryPct)
	t.RoutableMSRP = round2(t.RoutableMSRP)
	return t
}

func (ch Channel) rounded() Channel {
	ch.MSRP = round2(ch.MSRP)
	ch.COGS = round2(ch.COGS)
	ch.Revenue = round2(ch.Revenue)
	ch.Profit = round2(ch.Profit)
	ch.AvgRecovery = round4(ch.AvgRecovery)
	return ch
}

func (o Outcome) rounded() Outcome {
	return Outcome{Revenue: round2(o.Revenue), Profit: round2(o.Profit)}
}

func (a RoutingAnalysis) Rounded() RoutingAnalysis {
	return RoutingAnalysis{
		Marketplace:  a.Marketplace.rounded(),
		Wholesale:    a.Wholesale.rounded(),
		Combined:     a.Combined.rounded(),
		AllWholesale: a.AllWholesale.rounded(),
		ProfitUplift: round2(a.ProfitUplift),
	}
}

func (s Summary) Rounded() Summary {
	cats := make([]CategorySummary, len(s.Categories))
	for i, c := range s.Categories {
		cats[i] = c.Rounded()
	}
	return Summary{
		Categories:      cats,
		Totals:          s.Totals.Rounded(),
		RoutingAnalysis: s.RoutingAnalysis.Rounded(),
	}
}
