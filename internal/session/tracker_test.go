package session

import (
	"testing"

	"go.uber.org/zap"

	"github.com/sicarius01/CryptoFeeder/internal/config"
	"github.com/sicarius01/CryptoFeeder/internal/wire"
)

func TestTrackerActiveConns(t *testing.T) {
	tr := NewTracker()
	if tr.ActiveConns() != 0 {
		t.Fatalf("ActiveConns() = %d, want 0", tr.ActiveConns())
	}
	tr.connected()
	tr.connected()
	if tr.ActiveConns() != 2 {
		t.Fatalf("ActiveConns() = %d, want 2", tr.ActiveConns())
	}
	tr.disconnected()
	if tr.ActiveConns() != 1 {
		t.Fatalf("ActiveConns() = %d, want 1", tr.ActiveConns())
	}
}

func TestTrackerActiveConnsClampsAtZero(t *testing.T) {
	tr := NewTracker()
	tr.disconnected()
	if tr.ActiveConns() != 0 {
		t.Fatalf("ActiveConns() = %d, want 0 after spurious disconnect", tr.ActiveConns())
	}
}

func TestSubscriptionEventsBinanceFanOut(t *testing.T) {
	spec := config.SessionSpec{Exchange: "BinanceSpot", Symbols: []string{"BTC^USDT", "ETH^USDT"}}
	endpoint := config.Endpoint{Exchange: "BinanceSpot", WSURLBase: "wss://example/ws"}
	sup := New(spec, endpoint, Pipeline{}, zap.NewNop(), 55555)

	events := sup.subscriptionEvents(wire.SubStatusActive)
	if len(events) != 4 {
		t.Fatalf("expected 4 events (2 symbols x trade+depth), got %d", len(events))
	}
	seen := map[[2]uint8]int{}
	for _, evt := range events {
		if evt.SubStatus == nil {
			t.Fatalf("SubStatus payload missing")
		}
		if evt.SubStatus.Status != wire.SubStatusActive {
			t.Errorf("Status = %d, want active", evt.SubStatus.Status)
		}
		if evt.SubStatus.ExchangeID != 1 {
			t.Errorf("ExchangeID = %d, want 1 (Binance)", evt.SubStatus.ExchangeID)
		}
		seen[[2]uint8{evt.SubStatus.SubType, evt.SubStatus.Status}]++
	}
	if seen[[2]uint8{wire.SubTypeTrade, wire.SubStatusActive}] != 2 {
		t.Errorf("expected 2 trade-channel events, got %d", seen[[2]uint8{wire.SubTypeTrade, wire.SubStatusActive}])
	}
	if seen[[2]uint8{wire.SubTypeDepth, wire.SubStatusActive}] != 2 {
		t.Errorf("expected 2 depth-channel events, got %d", seen[[2]uint8{wire.SubTypeDepth, wire.SubStatusActive}])
	}
}

func TestSubscriptionEventsNonBinanceSingleChannel(t *testing.T) {
	spec := config.SessionSpec{Exchange: "OKXSpot", Symbols: []string{"BTC^USDT"}}
	endpoint := config.Endpoint{Exchange: "OKXSpot", WSURLBase: "wss://example/ws"}
	sup := New(spec, endpoint, Pipeline{}, zap.NewNop(), 55555)

	events := sup.subscriptionEvents(wire.SubStatusActive)
	if len(events) != 1 {
		t.Fatalf("expected 1 event for a non-Binance single-channel session, got %d", len(events))
	}
	if events[0].SubStatus.SubType != wire.SubTypeTrade {
		t.Errorf("SubType = %d, want trade channel", events[0].SubStatus.SubType)
	}
}
