package inventory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategoryMap maps a manifest category name to a search-friendly term.
type CategoryMap map[string]string

// DefaultCategories holds the categories seen on liquidation manifests.
var DefaultCategories = CategoryMap{
	"Vacuums & Floorcare":       "vacuum",
	"Small Kitchen Appliances":  "kitchen appliance",
	"Kitchen & Dining":          "kitchen",
	"Home Improvement":          "tool",
	"Tools & Hardware":          "power tool",
	"Outdoor & Garden":          "outdoor",
	"Patio & Garden":            "patio",
	"Furniture":                 "furniture",
	"Home Decor":                "home decor",
	"Bedding & Bath":            "bedding",
	"Electronics":               "electronics",
	"TVs & Home Theater":        "tv",
	"Computers & Tablets":       "laptop",
	"Cell Phones & Accessories": "phone",
	"Audio & Headphones":        "headphones",
	"Video Games":               "video game",
	"Toys":                      "toy",
	"Baby":                      "baby",
	"Health & Beauty":           "beauty",
	"Personal Care":             "personal care",
	"Sports & Outdoors":         "sports",
	"Fitness":                   "fitness equipment",
	"Apparel":                   "clothing",
	"Shoes":                     "shoes",
	"Housewares":                "housewares",
	"Appliances":                "appliance",
	"Automotive":                "car accessory",
	"Pet Supplies":              "pet",
	"Office Supplies":           "office",
}

// Term returns the search term for category. Matching is exact after
// trimming; unknown categories fall back to the lowercased category name.
func (m CategoryMap) Term(category string) string {
	trimmed := strings.TrimSpace(category)
	if term := m[trimmed]; term != "" {
		return term
	}
	return strings.ToLower(trimmed)
}

// SearchQuery builds "<brand> <term>".
func (m CategoryMap) SearchQuery(brand, category string) string {
	return strings.TrimSpace(brand + " " + m.Term(category))
}

// Merge returns a copy of m with overrides applied on top.
func (m CategoryMap) Merge(overrides CategoryMap) CategoryMap {
	out := make(CategoryMap, len(m)+len(overrides))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// LoadCategoryMap reads a YAML mapping of category name to search term.
func LoadCategoryMap(path string) (CategoryMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category map: %w", err)
	}
	var m CategoryMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse category map %s: %w", path, err)
	}
	return m, nil
}
