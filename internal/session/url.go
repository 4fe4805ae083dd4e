package session

import (
	"strings"

	"github.com/sicarius01/CryptoFeeder/internal/venue"
)

// binanceStreamSuffixes is the set of base-URL trailing shapes rewritten
// before appending the combined-stream path.
var binanceStreamSuffixes = []string{"/stream/", "/stream", "/ws/", "/ws"}

// buildStreamURL constructs the connection URL for one session. The
// Binance family gets a combined-stream URL naming every symbol's trade
// (spot) or aggTrade (futures) channel plus a depth channel; every other
// venue connects to the endpoint's base URL alone and selects symbols
// with a post-connect subscription message.
func buildStreamURL(id venue.ID, kind venue.MarketKind, base string, symbols []string) string {
	if id != venue.Binance {
		return base
	}

	trimmed := base
	for _, suf := range binanceStreamSuffixes {
		if strings.HasSuffix(trimmed, suf) {
			trimmed = strings.TrimSuffix(trimmed, suf)
			break
		}
	}

	tradeChannel := "trade"
	if kind == venue.Futures {
		tradeChannel = "aggTrade"
	}

	streams := make([]string, 0, len(symbols)*2)
	for _, sym := range symbols {
		raw := binanceRawSymbol(sym)
		streams = append(streams, raw+"@"+tradeChannel, raw+"@depth")
	}

	return trimmed + "/stream?streams=" + strings.Join(streams, "/")
}

// binanceRawSymbol lowercases the configured symbol for use in a Binance
// stream path segment, without the "^" quote separator Binance itself
// does not use (e.g. "BTC^USDT" -> "btcusdt").
func binanceRawSymbol(sym string) string {
	var b strings.Builder
	for _, r := range sym {
		if r == '^' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
