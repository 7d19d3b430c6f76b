package comps

import (
	"sort"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/ebay"
)

// MarketStats summarises sold comparables for one query. MedianPrice is 0
// when SoldCount is 0.
type MarketStats struct {
	MedianPrice float64 `json:"medianPrice"`
	AvgPrice    float64 `json:"avgPrice"`
	SoldCount   int     `json:"soldCount"`
	P25         float64 `json:"p25"`
	P75         float64 `json:"p75"`
}

// Recent returns at most n listings, most recently ended first. Listings
// without an end date sort last; ties keep provider order.
func Recent(listings []ebay.SoldListing, n int) []ebay.SoldListing {
	out := make([]ebay.SoldListing, len(listings))
	copy(out, listings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EndDate.After(out[j].EndDate)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ComputeStats prices each listing at price plus shipping, drops listings
// without a positive price and summarises the rest.
func ComputeStats(listings []ebay.SoldListing) MarketStats {
	prices := make([]float64, 0, len(listings))
	for _, l := range listings {
		if l.Price <= 0 {
			continue
		}
		shipping := l.Shipping
		if shipping < 0 {
			shipping = 0
		}
		prices = append(prices, l.Price+shipping)
	}
	return Summarize(prices)
}

// Summarize computes median, mean and quartiles over prices.
func Summarize(prices []float64) MarketStats {
	n := len(prices)
	if n == 0 {
		return MarketStats{}
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	var sum float64
	for _, p := range sorted {
		sum += p
	}

	stats := MarketStats{
		MedianPrice: median(sorted),
		AvgPrice:    sum / float64(n),
		SoldCount:   n,
	}
	// Small samples report the range instead of quartiles.
	if n >= 4 {
		stats.P25 = sorted[int(float64(n)*0.25)]
		stats.P75 = sorted[int(float64(n)*0.75)]
	} else {
		stats.P25 = sorted[0]
		stats.P75 = sorted[n-1]
	}
	return stats
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
