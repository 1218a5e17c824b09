package equivalency

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatNumber renders n with thousands separators.
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

func formatValue(v float64) string {
	switch {
	case v >= billionNumberThreshold:
		return fmt.Sprintf("~%.1f billion", v/billionNumberThreshold)
	case v >= largeNumberThreshold:
		return fmt.Sprintf("~%.1f million", v/largeNumberThreshold)
	default:
		return FormatNumber(int64(math.Round(v)))
	}
}
