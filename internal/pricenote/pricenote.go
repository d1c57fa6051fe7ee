// Package pricenote converts an item's free-text trade note into a
// structured price.
package pricenote

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mattsre/poeledger/internal/listing"
)

var priceExpr = regexp.MustCompile(`~(?:price|b/o) ([\d.]+(?:/[\d.]+)?) ([\w-]+)`)

// Price is the extracted (listed price, listed currency) pair. Normalized
// is not set here — that's the processor's concern, and it's left at zero.
type Price struct {
	ListedPrice    float64
	ListedCurrency listing.Currency
}

// Parse extracts a Price from note. It returns (Price{}, false) only when
// the note doesn't match the price grammar at all; a match with
// numerically-invalid decimals is a caller-visible error instead.
func Parse(note string) (Price, bool, error) {
	m := priceExpr.FindStringSubmatch(note)
	if m == nil {
		return Price{}, false, nil
	}

	value, err := parseValue(m[1])
	if err != nil {
		return Price{}, true, err
	}

	return Price{
		ListedPrice:    value,
		ListedCurrency: listing.CurrencyFromToken(m[2]),
	}, true, nil
}

// parseValue handles both the decimal form ("70") and the rational form
// ("5/20"), resolving division by zero to 0 rather than erroring.
func parseValue(raw string) (float64, error) {
	num, denom, isRational := strings.Cut(raw, "/")
	if !isRational {
		return strconv.ParseFloat(num, 64)
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(denom, 64)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, nil
	}

	return n / d, nil
}
