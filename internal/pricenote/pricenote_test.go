package pricenote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsre/poeledger/internal/listing"
)

func TestParseGrammarTable(t *testing.T) {
	cases := []struct {
		note     string
		price    float64
		currency listing.Currency
	}{
		{"~price 70 chaos", 70.0, listing.CurrencyChaos},
		{"~b/o 0.8 divine", 0.8, listing.CurrencyDivine},
		{"~price 5/20 divine", 0.25, listing.CurrencyDivine},
		{"~price 100/0 chaos", 0.0, listing.CurrencyChaos},
		{"~price 3 alch", 3.0, listing.CurrencyAlchemy},
	}

	for _, c := range cases {
		price, matched, err := Parse(c.note)
		require.NoError(t, err)
		require.True(t, matched, "note %q should match", c.note)
		assert.InDelta(t, c.price, price.ListedPrice, 1e-9, c.note)
		assert.Equal(t, c.currency, price.ListedCurrency, c.note)
	}
}

func TestParseNoMatch(t *testing.T) {
	_, matched, err := Parse("random")
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestParseUnknownCurrencyToken(t *testing.T) {
	price, matched, err := Parse("~price 20 alch-shard")
	require.NoError(t, err)
	require.True(t, matched)
	assert.Equal(t, listing.CurrencyUnknown, price.ListedCurrency)
}

func TestParseFractionalDivisionByZero(t *testing.T) {
	price, matched, err := Parse("~price 100/0 chaos")
	require.NoError(t, err)
	require.True(t, matched)
	assert.Equal(t, 0.0, price.ListedPrice)
}
