package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/sicarius01/CryptoFeeder/internal/venue"
)

// Normalizer is stateless and safe for concurrent use by every session.
type Normalizer struct{}

// New returns a ready-to-use Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Parse dispatches raw to the parser registered for venueID. Binance spot
// and futures sessions get the full combined-stream parser; every other
// configured venue (OKX, Bybit, Upbit, Bithumb, Coinbase) falls through to
// a best-effort parser that recognizes Binance-shaped fields to the extent
// the wire happens to overlap, and otherwise reports a parse error. A new
// venue adapter plugs in by adding a case to this switch and a parser
// file.
//
// sessionVenue is the display tag ("BinanceSpot", "OKXFutures", ...)
// stamped onto every returned record, overriding any venue hint the
// per-exchange parsing path would otherwise produce.
func (n *Normalizer) Parse(venueID venue.ID, raw []byte, sessionVenue string) ([]any, error) {
	switch venueID {
	case venue.Binance:
		return ParseBinance(raw, sessionVenue)
	default:
		return parseGenericFallback(raw, sessionVenue)
	}
}

// parseGenericFallback is the extension point for venues without a
// dedicated parser. It recognizes the Binance-shaped "e"/"s"/"p"/"q"
// fields where present (several venues use a similar envelope for trade
// ticks) and otherwise fails with a descriptive, connection-preserving
// parse error.
func parseGenericFallback(raw []byte, sessionVenue string) ([]any, error) {
	var hdr eventHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, fmt.Errorf("normalize: generic fallback: malformed frame: %w", err)
	}
	if hdr.EventType == "" {
		return nil, fmt.Errorf("normalize: generic fallback: no recognized event field for venue %q", sessionVenue)
	}
	return ParseBinance(raw, sessionVenue)
}
