package normalize

import "strings"

// quoteSuffixes is tried in priority order; the first match wins.
var quoteSuffixes = []string{"USDT", "USDC", "BUSD", "BTC", "ETH", "BNB"}

// NormalizeSymbol upper-cases raw and rewrites it to the standardized
// "BASE^QUOTE" form by matching the longest recognized quote suffix in
// priority order. If no known suffix matches, raw is returned uppercased
// and unchanged (no '^' inserted) so the function never panics or loses
// data on unrecognized symbols.
//
// Idempotent: re-normalizing an already-normalized "BASE^QUOTE"
// string is a no-op, because any input that already contains '^' is
// returned uppercased and otherwise unchanged.
func NormalizeSymbol(raw string) string {
	upper := strings.ToUpper(raw)
	if strings.Contains(upper, "^") {
		// Already normalized (or contains a literal caret); leave as-is.
		return upper
	}
	for _, q := range quoteSuffixes {
		if strings.HasSuffix(upper, q) && len(upper) > len(q) {
			base := upper[:len(upper)-len(q)]
			return base + "^" + q
		}
	}
	return upper
}
