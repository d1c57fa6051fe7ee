package listing

// Currency is the closed set of trade denominations a listing can be priced
// in, plus Unknown for forward-compatibility with upstream additions.
type Currency string

const (
	CurrencyExalted          Currency = "Exalted"
	CurrencyDivine           Currency = "Divine"
	CurrencyChaos            Currency = "Chaos"
	CurrencyAwakenedSextant  Currency = "AwakenedSextant"
	CurrencyMirrorOfKalandra Currency = "MirrorOfKalandra"
	CurrencyAlchemy          Currency = "Alchemy"
	CurrencyFusing           Currency = "Fusing"
	CurrencyAnnulment        Currency = "Annulment"
	CurrencyChance           Currency = "Chance"
	CurrencyAlteration       Currency = "Alteration"
	CurrencyScouring         Currency = "Scouring"
	CurrencyRegal            Currency = "Regal"
	CurrencyUnknown          Currency = "Unknown"
)

// currencyTokens is the closed upstream-token lookup table. Kept as a map
// literal, not generated, since the set changes rarely and a code-generated
// enum would obscure the round-trip property tested in currency_test.go.
var currencyTokens = map[string]Currency{
	"exa":              CurrencyExalted,
	"divine":           CurrencyDivine,
	"chaos":            CurrencyChaos,
	"awakened-sextant": CurrencyAwakenedSextant,
	"mirror":           CurrencyMirrorOfKalandra,
	"alch":             CurrencyAlchemy,
	"fusing":           CurrencyFusing,
	"annul":            CurrencyAnnulment,
	"chance":           CurrencyChance,
	"alt":              CurrencyAlteration,
	"scour":            CurrencyScouring,
	"regal":            CurrencyRegal,
}

var tokenByCurrency map[Currency]string

func init() {
	tokenByCurrency = make(map[Currency]string, len(currencyTokens))
	for token, cur := range currencyTokens {
		tokenByCurrency[cur] = token
	}
}

// CurrencyFromToken maps an upstream short token (as found in a price
// note) to a Currency. Unknown tokens map to CurrencyUnknown rather than
// failing, since the note grammar itself still matched.
func CurrencyFromToken(token string) Currency {
	if c, ok := currencyTokens[token]; ok {
		return c
	}
	return CurrencyUnknown
}

// Token renders a Currency back to its upstream short token. Round-trips
// losslessly for every known currency; Unknown renders to "unknown" and is
// idempotent (Token(CurrencyFromToken("unknown")) == "unknown").
func (c Currency) Token() string {
	if t, ok := tokenByCurrency[c]; ok {
		return t
	}
	return "unknown"
}

func (c Currency) String() string {
	if c == "" {
		return string(CurrencyUnknown)
	}
	return string(c)
}
