// internal/workers/change-order/validate-breakdown/coerce.go
package validatebreakdown

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	descriptionKeys = []string{"description", "item", "name", "trade"}
	quantityKeys    = []string{"quantity", "qty"}
	unitCostKeys    = []string{"unit_cost", "unitCost", "unit_price", "unitPrice", "price", "hourly_rate", "rate"}
	crewKeys        = []string{"workers", "hours_per_day", "days"}
)

// lookup returns the first key present in item.
func lookup(item map[string]interface{}, keys []string) (interface{}, string, bool) {
	for _, k := range keys {
		if v, ok := item[k]; ok && v != nil {
			return v, k, true
		}
	}
	return nil, "", false
}

var numberCleaner = strings.NewReplacer("US$", "", "$", "", ",", "", " ", "", " ", "")

// toNumber coerces a decoded JSON value to a finite non-negative float.
func toNumber(v interface{}) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n.String())
		}
		f = parsed
	case string:
		s := numberCleaner.Replace(strings.TrimSpace(n))
		if s == "" {
			return 0, fmt.Errorf("empty number")
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not finite")
	}
	if f < 0 {
		return 0, fmt.Errorf("negative value %v", f)
	}
	return f, nil
}

func toText(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
