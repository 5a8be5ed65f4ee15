package render

import "github.com/sells-group/covidmap/internal/classify"

// LegendEntry is one swatch of the map legend.
type LegendEntry struct {
	Color string
	Label string
}

// BuildLegend lists the scale's buckets from highest to lowest, followed by
// the below-range swatch. The top bucket is open ended ("1,500+"), middle
// buckets show their bounds and the lowest bucket of a scale with a negative
// floor covers zero counts.
func BuildLegend(scale classify.Scale, below string) []LegendEntry {
	n := min(len(scale.Thresholds), len(scale.Colors))
	if n == 0 {
		return []LegendEntry{{Color: below, Label: "No data"}}
	}

	t := scale.Thresholds
	entries := make([]LegendEntry, 0, n+1)
	for i := n - 1; i >= 0; i-- {
		var label string
		switch {
		case i == n-1:
			label = formatNumber(t[i]) + "+"
		case i == 0 && t[0] < 0:
			label = "0 - " + formatNumber(t[1])
		default:
			label = formatNumber(t[i]) + " - " + formatNumber(t[i+1])
		}
		entries = append(entries, LegendEntry{Color: scale.Colors[i], Label: label})
	}
	return append(entries, LegendEntry{Color: below, Label: "No data"})
}
