package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/inventory"
)

// OrderItem is one pallet line in orders.json.
type OrderItem struct {
	Title     string           `json:"title"`
	Price     inventory.Number `json:"price"`
	MSRP      inventory.Number `json:"msrp"`
	ItemCount inventory.Number `json:"item_count"`
	PalletIDs []string         `json:"pallet_ids"`
}

type orderRecord struct {
	OrderID string      `json:"order_id"`
	Date    string      `json:"date"`
	Items   []OrderItem `json:"items"`
}

type ordersFile struct {
	Orders []orderRecord `json:"orders"`
}

// Order holds the per-order totals used for COGS allocation.
type Order struct {
	Date           string
	TotalCost      float64
	TotalMSRP      float64
	TotalItemCount float64
	// PalletBrands maps a pallet (listing) id to its line item's brand list.
	PalletBrands map[string]string
}

// CogsRatio is TotalCost / TotalMSRP, or 0 without MSRP.
func (o Order) CogsRatio() float64 {
	if o.TotalMSRP <= 0 {
		return 0
	}
	return o.TotalCost / o.TotalMSRP
}

// BrandsFromTitle returns the middle segment of
// "<Category> - <Brand, Brand> - Orig. Retail $X", or "" for other shapes.
func BrandsFromTitle(title string) string {
	parts := strings.Split(title, " - ")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

// LoadOrders reads orders.json keyed by order id. A missing file yields an
// empty map.
func LoadOrders(path string) (map[string]Order, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARNING: orders.json not found at %s", path)
		return map[string]Order{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	var file ordersFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	orders := make(map[string]Order, len(file.Orders))
	for _, rec := range file.Orders {
		if rec.OrderID == "" {
			continue
		}
		o := Order{Date: rec.Date, PalletBrands: make(map[string]string)}
		for _, item := range rec.Items {
			o.TotalCost += item.Price.Float()
			o.TotalMSRP += item.MSRP.Float()
			o.TotalItemCount += item.ItemCount.Float()
			brands := BrandsFromTitle(item.Title)
			for _, pid := range item.PalletIDs {
				o.PalletBrands[pid] = brands
			}
		}
		orders[rec.OrderID] = o
	}
	return orders, nil
}
