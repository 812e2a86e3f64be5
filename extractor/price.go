package extractor

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/use-agent/offerscout/models"
)

// priceRe matches the first numeral in a price text, with group separators
// and an optional decimal part.
var priceRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// MaxPrice is the largest amount ParsePrice accepts. Anything above it is a
// mis-scraped numeral (an id, a phone number) and FormatPrice could not
// render it in int64 cents.
const MaxPrice = 1e12

// ParsePrice strips currency symbols and separators from text and parses the
// first numeral. "₹1,23,456" → 123456, "$12.50" → 12.5. Amounts above
// MaxPrice do not parse.
func ParsePrice(text string) (float64, bool) {
	m := priceRe.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil || v > MaxPrice {
		return 0, false
	}
	return v, true
}

// parseCurrencyPrefixed parses text that starts with currency, requiring the
// numeral to follow it directly (optional spaces allowed).
func parseCurrencyPrefixed(text, currency string) (float64, bool) {
	rest, ok := strings.CutPrefix(text, currency)
	if !ok {
		return 0, false
	}
	rest = strings.TrimLeft(rest, " \u00a0")
	if loc := priceRe.FindStringIndex(rest); loc == nil || loc[0] != 0 {
		return 0, false
	}
	return ParsePrice(rest)
}

// PickPrice chooses one value from the scan candidates.
//
// second_highest sorts descending and takes index 1 when more than one value
// remains: on listing pages the highest figure is usually the struck-through
// list price. first keeps document order.
func PickPrice(values []float64, pick string) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	if pick == models.PickFirst {
		return values[0], true
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	switch pick {
	case models.PickHighest:
		return sorted[0], true
	case models.PickLowest:
		return sorted[len(sorted)-1], true
	default:
		if len(sorted) > 1 {
			return sorted[1], true
		}
		return sorted[0], true
	}
}

// PickCurrentPrice applies the default second-highest heuristic.
func PickCurrentPrice(values []float64) (float64, bool) {
	return PickPrice(values, models.PickSecondHighest)
}

// FormatPrice renders currency followed by grouped digits. Rupee amounts use
// Indian grouping (1,23,456); everything else groups by thousands. v is
// clamped to [0, MaxPrice].
func FormatPrice(currency string, v float64) string {
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > MaxPrice:
		v = MaxPrice
	}
	cents := int64(math.Round(v * 100))
	whole, frac := cents/100, cents%100

	var digits string
	if currency == "₹" {
		digits = groupIndian(whole)
	} else {
		digits = groupThousands(whole)
	}
	if frac != 0 {
		digits += fmt.Sprintf(".%02d", frac)
	}
	return currency + digits
}

// FormatINR is FormatPrice with the rupee sign.
func FormatINR(v float64) string {
	return FormatPrice("₹", v)
}

func groupIndian(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	head, tail := s[:len(s)-3], s[len(s)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	parts = append([]string{head}, parts...)
	return strings.Join(parts, ",") + "," + tail
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, ",")
}
