package session

import (
	"strings"
	"testing"

	"github.com/sicarius01/CryptoFeeder/internal/venue"
)

func TestBuildStreamURLBinanceSpot(t *testing.T) {
	got := buildStreamURL(venue.Binance, venue.Spot, "wss://stream.binance.com:9443/ws", []string{"BTC^USDT", "ETH^USDT"})
	want := "wss://stream.binance.com:9443/stream?streams=btcusdt@trade/btcusdt@depth/ethusdt@trade/ethusdt@depth"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildStreamURLBinanceFuturesUsesAggTrade(t *testing.T) {
	got := buildStreamURL(venue.Binance, venue.Futures, "wss://fstream.binance.com/ws", []string{"BTC^USDT"})
	want := "wss://fstream.binance.com/stream?streams=btcusdt@aggTrade/btcusdt@depth"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildStreamURLStripsVariousBaseSuffixes(t *testing.T) {
	bases := []string{
		"wss://stream.binance.com:9443/ws",
		"wss://stream.binance.com:9443/ws/",
		"wss://stream.binance.com:9443/stream",
		"wss://stream.binance.com:9443/stream/",
		"wss://stream.binance.com:9443",
	}
	for _, base := range bases {
		got := buildStreamURL(venue.Binance, venue.Spot, base, []string{"BTC^USDT"})
		if !strings.HasPrefix(got, "wss://stream.binance.com:9443/stream?streams=") {
			t.Errorf("base %q produced unexpected URL %q", base, got)
		}
		if strings.Contains(got, "/ws") {
			t.Errorf("base %q: suffix not stripped, got %q", base, got)
		}
	}
}

func TestBuildStreamURLNonBinanceReturnsBaseUnchanged(t *testing.T) {
	base := "wss://ws.okx.com:8443/ws/v5/public"
	got := buildStreamURL(venue.OKX, venue.Spot, base, []string{"BTC^USDT"})
	if got != base {
		t.Fatalf("got %q, want unchanged base %q", got, base)
	}
}

func TestBinanceRawSymbolStripsCaretAndLowercases(t *testing.T) {
	if got := binanceRawSymbol("BTC^USDT"); got != "btcusdt" {
		t.Fatalf("binanceRawSymbol = %q, want btcusdt", got)
	}
}
