package render

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/covidmap/internal/classify"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// formatValue renders a property value with thousands separators. Whole
// numbers print without decimals, rates with two. Missing values print as
// "n/a".
func formatValue(v any) string {
	f, ok := classify.Value(v)
	if !ok {
		return "n/a"
	}
	return formatNumber(f)
}

func formatNumber(f float64) string {
	if math.IsInf(f, 0) {
		return "n/a"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return printer.Sprintf("%d", int64(f))
	}
	return printer.Sprintf("%.2f", f)
}
