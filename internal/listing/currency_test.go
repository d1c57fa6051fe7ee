package listing

import "testing"

func TestCurrencyRoundTripKnownTokens(t *testing.T) {
	for token := range currencyTokens {
		got := CurrencyFromToken(token).Token()
		if got != token {
			t.Errorf("round trip broke for %q: got %q", token, got)
		}
	}
}

func TestCurrencyUnknownIdempotent(t *testing.T) {
	c := CurrencyFromToken("alch-shard")
	if c != CurrencyUnknown {
		t.Fatalf("expected CurrencyUnknown, got %v", c)
	}
	if CurrencyFromToken(c.Token()) != CurrencyUnknown {
		t.Fatalf("Unknown token round trip is not idempotent")
	}
}
