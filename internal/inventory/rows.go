package inventory

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a lenient numeric field. It accepts JSON numbers and numeric
// strings; anything else (null, "", "n/a", NaN) becomes 0.
type Number float64

// UnmarshalJSON never fails: malformed values coerce to 0.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		*n = ParseNumber(s)
		return nil
	}
	*n = ParseNumber(string(data))
	return nil
}

// Float returns the value with NaN and infinities mapped to 0.
func (n Number) Float() float64 {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Int truncates toward zero.
func (n Number) Int() float64 {
	return math.Trunc(n.Float())
}

// ParseNumber parses s as a float, returning 0 on failure.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return Number(f)
}

// LineItemRow is one purchased lot as produced by the order/line-item join.
type LineItemRow struct {
	OrderID   string `json:"orderId"`
	SourceID  string `json:"sourceId"`
	Category  string `json:"category"`
	Brands    string `json:"brands"`
	MSRP      Number `json:"msrp"`
	AllInCost Number `json:"allInCost"`
	ItemCount Number `json:"itemCount"`
}
