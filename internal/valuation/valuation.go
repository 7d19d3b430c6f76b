package valuation

import (
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/comps"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/inventory"
)

// Confidence grades a market estimate by sample size.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Sample-size floors for each confidence tier.
const (
	HighConfidenceSamples   = 20
	MediumConfidenceSamples = 5
)

// Params are the tunable rates used by Evaluate and Aggregate.
type Params struct {
	FeeRate          float64 `json:"feeRate"`
	WholesaleRate    float64 `json:"wholesaleRate"`
	RoutingThreshold float64 `json:"routingThreshold"`
}

// DefaultParams returns a 13% marketplace fee, 18% wholesale recovery and
// a 60% routing threshold.
func DefaultParams() Params {
	return Params{
		FeeRate:          0.13,
		WholesaleRate:    0.18,
		RoutingThreshold: 0.6,
	}
}

// SkuResult is an AllocatedSku priced against its comparables.
type SkuResult struct {
	inventory.AllocatedSku

	EbayMedianSold   float64    `json:"ebayMedianSold"`
	EbayAvgSold      float64    `json:"ebayAvgSold"`
	EbayP25          float64    `json:"ebayP25"`
	EbayP75          float64    `json:"ebayP75"`
	EbaySoldCount90d int        `json:"ebaySoldCount90d"`
	RecoveryPct      float64    `json:"recoveryPct"`
	Confidence       Confidence `json:"confidence"`
	EstimatedRevenue float64    `json:"estimatedRevenue"`
	EstimatedProfit  float64    `json:"estimatedProfit"`
	Routable         bool       `json:"routable"`
}

// ConfidenceFor grades a sample of soldCount listings.
func ConfidenceFor(soldCount int) Confidence {
	switch {
	case soldCount >= HighConfidenceSamples:
		return ConfidenceHigh
	case soldCount >= MediumConfidenceSamples:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// RecoveryPct is median / avgUnitMSRP, or 0 when either side is not positive.
func RecoveryPct(median, avgUnitMSRP float64) float64 {
	if median <= 0 || avgUnitMSRP <= 0 {
		return 0
	}
	return median / avgUnitMSRP
}

// Evaluate prices sku against stats. It never fails; missing data yields zeros.
func Evaluate(sku inventory.AllocatedSku, stats comps.MarketStats, p Params) SkuResult {
	recovery := RecoveryPct(stats.MedianPrice, sku.AvgUnitMSRP)
	confidence := ConfidenceFor(stats.SoldCount)

	revenue := stats.MedianPrice * sku.AllocatedItems
	profit := revenue - revenue*p.FeeRate - sku.AllocatedCOGS

	return SkuResult{
		AllocatedSku:     sku,
		EbayMedianSold:   stats.MedianPrice,
		EbayAvgSold:      stats.AvgPrice,
		EbayP25:          stats.P25,
		EbayP75:          stats.P75,
		EbaySoldCount90d: stats.SoldCount,
		RecoveryPct:      recovery,
		Confidence:       confidence,
		EstimatedRevenue: revenue,
		EstimatedProfit:  profit,
		Routable:         recovery >= p.RoutingThreshold && confidence != ConfidenceLow,
	}
}
