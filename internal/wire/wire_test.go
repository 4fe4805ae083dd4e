package wire

import "testing"

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	flags, err := SetFlagsAndCount(5, true)
	if err != nil {
		t.Fatalf("SetFlagsAndCount: %v", err)
	}
	h := Header{
		ProtocolVersion:   ProtocolVersion,
		SequenceNumber:    42,
		ExchangeTimestamp: 1700000000000000000,
		LocalTimestamp:    1700000000100000000,
		MessageType:       MsgTradeTick,
		FlagsAndCount:     flags,
		Symbol:            SanitizeField("BTC^USDT"),
		Exchange:          SanitizeField("BinanceSpot"),
	}

	buf := make([]byte, HeaderSize)
	h.Encode(buf)

	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
	if got.ItemCount() != 5 {
		t.Fatalf("ItemCount() = %d, want 5", got.ItemCount())
	}
	if !got.IsLast() {
		t.Fatalf("IsLast() = false, want true")
	}
}

func TestSetFlagsAndCountRejectsOutOfRange(t *testing.T) {
	if _, err := SetFlagsAndCount(MaxItemsPerDatagram+1, false); err == nil {
		t.Fatalf("expected error for item_count > %d", MaxItemsPerDatagram)
	}
	if _, err := SetFlagsAndCount(-1, false); err == nil {
		t.Fatalf("expected error for negative item_count")
	}
	if _, err := SetFlagsAndCount(MaxItemsPerDatagram, true); err != nil {
		t.Fatalf("unexpected error at boundary: %v", err)
	}
}

func TestDecodeHeaderRejectsShortInput(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Fatalf("expected error decoding short header")
	}
}

func TestTradeTickItemRoundTrip(t *testing.T) {
	cases := []TradeTickItem{
		{Price: 5_000_000_000_000, Quantity: 10_000_000, IsBuyerTaker: true},
		{Price: 1, Quantity: 1, IsBuyerTaker: false},
	}
	for _, item := range cases {
		buf := make([]byte, ItemSize)
		item.Encode(buf)
		got := DecodeTradeTickItem(buf)
		if got != item {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, item)
		}
	}
}

func TestOrderBookItemRoundTrip(t *testing.T) {
	item := OrderBookItem{Price: 4_900_000_000_000, Quantity: 50_000_000, IsAsk: true}
	buf := make([]byte, ItemSize)
	item.Encode(buf)
	got := DecodeOrderBookItem(buf)
	if got != item {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, item)
	}
}

func TestLiquidationItemRoundTrip(t *testing.T) {
	item := LiquidationItem{Price: 4_900_000_000_000, Quantity: 50_000_000, IsSell: true}
	buf := make([]byte, ItemSize)
	item.Encode(buf)
	got := DecodeLiquidationItem(buf)
	if got != item {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, item)
	}
}

func TestConnectionStatusPayloadRoundTrip(t *testing.T) {
	p := ConnectionStatusPayload{ExchangeID: 1, Prev: ConnConnecting, Cur: ConnReconnecting, Retry: 3, Err: 77}
	buf := make([]byte, ItemSize)
	p.Encode(buf)
	got := DecodeConnectionStatusPayload(buf)
	if got != p {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, p)
	}
}

func TestSystemStatsPayloadRoundTrip(t *testing.T) {
	p := SystemStatsPayload{CPUPercent: 12, MemMB: 256, PacketsPerSec: 1000, BytesPerSec: 1_400_000}
	buf := make([]byte, ItemSize)
	p.Encode(buf)
	got := DecodeSystemStatsPayload(buf)
	if got != p {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, p)
	}
}

func TestSanitizeFieldStripsAndPads(t *testing.T) {
	out := SanitizeField("btc/usdt!! spot")
	s := FieldString(out)
	if s != "btcusdtspot" {
		t.Fatalf("SanitizeField = %q, want %q", s, "btcusdtspot")
	}
	for i := len(s); i < SymbolFieldSize; i++ {
		if out[i] != 0 {
			t.Fatalf("expected NUL padding at byte %d", i)
		}
	}
}

func TestSanitizeFieldTruncates(t *testing.T) {
	long := ""
	for i := 0; i < SymbolFieldSize+10; i++ {
		long += "a"
	}
	out := SanitizeField(long)
	if len(FieldString(out)) != SymbolFieldSize {
		t.Fatalf("expected truncation to %d bytes, got %d", SymbolFieldSize, len(FieldString(out)))
	}
}

func TestHeaderSizesAreExact(t *testing.T) {
	// Sizes must exactly match the wire contract, independent of
	// compiler struct layout.
	if HeaderSize != 67 {
		t.Fatalf("HeaderSize = %d, want 67", HeaderSize)
	}
	if ItemSize != 16 {
		t.Fatalf("ItemSize = %d, want 16", ItemSize)
	}
}
