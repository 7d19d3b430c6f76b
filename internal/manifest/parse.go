package manifest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const filePrefix = "order_manifest_"

// Row is one product line of a manifest.
type Row struct {
	OrderID              string
	ListingID            string
	ListingTitle         string
	Category             string
	ProductName          string
	UPC                  string
	ASIN                 string
	Quantity             int
	UnitRetail           float64
	TotalRetail          float64
	OrderDate            string
	LineItemBrands       string
	AllocatedCogsPerUnit float64
}

var knownHeaders = map[string]bool{
	"listing id":         true,
	"listing title":      true,
	"category":           true,
	"product name":       true,
	"upc":                true,
	"asin":               true,
	"quantity":           true,
	"orig. retail":       true,
	"total orig. retail": true,
	"stock image":        true,
}

// FindManifests lists order_manifest_*.xlsx files in dir, sorted.
func FindManifests(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, filePrefix+"*.xlsx"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// OrderIDFromPath extracts XXXX from .../order_manifest_XXXX.xlsx.
func OrderIDFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".xlsx")
	return strings.TrimPrefix(name, filePrefix)
}

// ParseManifest reads every sheet of the workbook at path.
func ParseManifest(path, orderID string, order Order) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var rows []Row
	for _, sheet := range f.GetSheetList() {
		cells, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		rows = append(rows, ParseSheet(cells, orderID, order)...)
	}
	return rows, nil
}

type columns map[string]int

func mapColumns(header []string) columns {
	cols := make(columns)
	for j, raw := range header {
		h := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case strings.Contains(h, "listing id"):
			cols["listing_id"] = j
		case strings.Contains(h, "listing title"):
			cols["listing_title"] = j
		case strings.Contains(h, "category"):
			cols["category"] = j
		case strings.Contains(h, "product name"):
			cols["product_name"] = j
		case h == "upc":
			cols["upc"] = j
		case h == "asin":
			cols["asin"] = j
		case h == "quantity":
			cols["quantity"] = j
		case h == "orig. retail":
			cols["unit_retail"] = j
		case strings.Contains(h, "total orig"):
			cols["total_retail"] = j
		}
	}
	return cols
}

func (c columns) get(row []string, key string) string {
	j, ok := c[key]
	if !ok || j >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[j])
}

func isHeader(row []string) bool {
	for _, cell := range row {
		if knownHeaders[strings.ToLower(strings.TrimSpace(cell))] {
			return true
		}
	}
	return false
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// CleanUPC drops a float ".0" suffix and keeps only digits.
func CleanUPC(raw string) string {
	upc := strings.TrimSpace(raw)
	upc = strings.TrimSuffix(upc, ".0")
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, upc)
	if digits != "" {
		return digits
	}
	return upc
}

// ParseSheet converts one sheet's cells into rows. Sheets without a
// recognizable header produce nothing.
func ParseSheet(cells [][]string, orderID string, order Order) []Row {
	headerIdx := -1
	for i, row := range cells {
		if isHeader(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}
	cols := mapColumns(cells[headerIdx])
	ratio := order.CogsRatio()

	var rows []Row
	for _, cell := range cells[headerIdx+1:] {
		if isBlank(cell) {
			continue
		}
		product := cols.get(cell, "product_name")
		if product == "" || strings.EqualFold(product, "product name") {
			continue
		}

		quantity := 1
		if q, err := strconv.ParseFloat(cols.get(cell, "quantity"), 64); err == nil {
			quantity = int(q)
		}
		unitRetail, err := strconv.ParseFloat(cols.get(cell, "unit_retail"), 64)
		if err != nil {
			unitRetail = 0
		}
		totalRetail, err := strconv.ParseFloat(cols.get(cell, "total_retail"), 64)
		if err != nil || (totalRetail == 0 && unitRetail > 0) {
			totalRetail = unitRetail * float64(quantity)
		}

		listingID := cols.get(cell, "listing_id")
		rows = append(rows, Row{
			OrderID:              orderID,
			ListingID:            listingID,
			ListingTitle:         cols.get(cell, "listing_title"),
			Category:             cols.get(cell, "category"),
			ProductName:          product,
			UPC:                  CleanUPC(cols.get(cell, "upc")),
			ASIN:                 cols.get(cell, "asin"),
			Quantity:             quantity,
			UnitRetail:           unitRetail,
			TotalRetail:          totalRetail,
			OrderDate:            order.Date,
			LineItemBrands:       order.PalletBrands[listingID],
			AllocatedCogsPerUnit: unitRetail * ratio,
		})
	}
	return rows
}
