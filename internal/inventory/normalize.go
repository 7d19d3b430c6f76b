package inventory

import "strings"

const (
	// UnknownBrand is used when a lot lists no brands.
	UnknownBrand = "Unknown"
	// DefaultCategory is used when a lot has no category.
	DefaultCategory = "General Merchandise"
)

// Key identifies an AllocatedSku.
type Key struct {
	Brand    string
	Category string
}

// AllocatedSku is the share of one or more lots attributed to a single
// brand within a category.
type AllocatedSku struct {
	Brand             string   `json:"brand"`
	Category          string   `json:"category"`
	SearchQuery       string   `json:"searchQuery"`
	AllocatedItems    float64  `json:"allocatedItems"`
	AllocatedMSRP     float64  `json:"allocatedMSRP"`
	AllocatedCOGS     float64  `json:"allocatedCOGS"`
	AvgUnitMSRP       float64  `json:"avgUnitMSRP"`
	SourceLineItemIDs []string `json:"sourceLineItemIds"`
}

// Allocation is an insertion-ordered set of AllocatedSku keyed by
// (brand, category).
type Allocation struct {
	order []Key
	skus  map[Key]*AllocatedSku
}

func newAllocation() *Allocation {
	return &Allocation{skus: make(map[Key]*AllocatedSku)}
}

// Len returns the number of distinct (brand, category) pairs.
func (a *Allocation) Len() int { return len(a.order) }

// Keys returns keys in first-encounter order.
func (a *Allocation) Keys() []Key {
	out := make([]Key, len(a.order))
	copy(out, a.order)
	return out
}

// Get returns the entry for brand and category.
func (a *Allocation) Get(brand, category string) (AllocatedSku, bool) {
	sku, ok := a.skus[Key{Brand: brand, Category: category}]
	if !ok {
		return AllocatedSku{}, false
	}
	return *sku, true
}

// SKUs returns copies of every entry in first-encounter order.
func (a *Allocation) SKUs() []AllocatedSku {
	out := make([]AllocatedSku, 0, len(a.order))
	for _, k := range a.order {
		sku := *a.skus[k]
		sku.SourceLineItemIDs = append([]string(nil), sku.SourceLineItemIDs...)
		out = append(out, sku)
	}
	return out
}

// SplitBrands splits a comma-separated brand list, dropping blanks. An
// empty list yields the single brand "Unknown".
func SplitBrands(brands string) []string {
	var out []string
	for _, b := range strings.Split(brands, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return []string{UnknownBrand}
	}
	return out
}

// Normalize splits every lot evenly across its listed brands and sums the
// shares per (brand, category).
func Normalize(rows []LineItemRow, categories CategoryMap) *Allocation {
	if categories == nil {
		categories = DefaultCategories
	}
	alloc := newAllocation()

	for _, row := range rows {
		category := strings.TrimSpace(row.Category)
		if category == "" {
			category = DefaultCategory
		}
		brands := SplitBrands(row.Brands)
		share := 1 / float64(len(brands))

		items := row.ItemCount.Int() * share
		msrp := row.MSRP.Float() * share
		cogs := row.AllInCost.Float() * share

		sourceID := row.SourceID
		if sourceID == "" {
			sourceID = row.OrderID
		}

		for _, brand := range brands {
			k := Key{Brand: brand, Category: category}
			sku, ok := alloc.skus[k]
			if !ok {
				sku = &AllocatedSku{
					Brand:       brand,
					Category:    category,
					SearchQuery: categories.SearchQuery(brand, category),
				}
				alloc.skus[k] = sku
				alloc.order = append(alloc.order, k)
			}
			sku.AllocatedItems += items
			sku.AllocatedMSRP += msrp
			sku.AllocatedCOGS += cogs
			sku.SourceLineItemIDs = append(sku.SourceLineItemIDs, sourceID)
		}
	}

	for _, k := range alloc.order {
		sku := alloc.skus[k]
		if sku.AllocatedItems > 0 {
			sku.AvgUnitMSRP = sku.AllocatedMSRP / sku.AllocatedItems
		}
	}
	return alloc
}
