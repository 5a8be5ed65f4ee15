// Package classify maps metric values to choropleth colors using per-metric
// ascending threshold tables.
package classify

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// BelowRange is the default color for values that do not exceed the lowest
// threshold, and for missing or unparseable values.
const BelowRange = "#d3d3d3"

// Classify returns colors[i] for the greatest i with value > thresholds[i],
// or below when no threshold is exceeded. Comparison is strict: a value
// equal to a threshold falls in the bucket beneath it.
func Classify(value float64, thresholds []float64, colors []string, below string) string {
	if math.IsNaN(value) {
		return below
	}
	n := min(len(thresholds), len(colors))
	for i := n - 1; i >= 0; i-- {
		if value > thresholds[i] {
			return colors[i]
		}
	}
	return below
}

// Value converts a property value to a float64. ok is false for nil,
// non-numeric strings, NaN and types that carry no number.
func Value(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ClassifyAny classifies a raw property value, treating anything that is not
// a number as below range.
func ClassifyAny(v any, thresholds []float64, colors []string, below string) string {
	f, ok := Value(v)
	if !ok {
		return below
	}
	return Classify(f, thresholds, colors, below)
}
