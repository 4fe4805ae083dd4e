// Package builder serializes canonical records (internal/canonical) into
// one or more fixed-layout, MTU-bounded UDP datagrams (internal/wire),
// assigning sequence numbers from the shared seqcounter and drawing
// payload buffers from the shared bufpool.
package builder

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sicarius01/CryptoFeeder/internal/bufpool"
	"github.com/sicarius01/CryptoFeeder/internal/canonical"
	"github.com/sicarius01/CryptoFeeder/internal/seqcounter"
	"github.com/sicarius01/CryptoFeeder/internal/wire"
)

const (
	// singleTradeChunkSize is the chunk size used for the single-Trade
	// path, preserved for backwards compatibility with pre-batch
	// consumers.
	singleTradeChunkSize = 50
	// batchTradeChunkSize is the chunk size used for TradeBatch and
	// OrderBookDelta.
	batchTradeChunkSize = 80
)

// NowFunc returns the current wall-clock time in nanoseconds since epoch.
// A package variable so tests can substitute a deterministic clock.
var NowFunc = func() uint64 { return uint64(time.Now().UnixNano()) }

// Builder converts canonical records into wire datagrams. Stateless apart
// from the sequence counter and pool reference, and safe to share across
// every session.
type Builder struct {
	seq  *seqcounter.Counter
	pool *bufpool.Pool
}

// New constructs a Builder over shared sequence counter and buffer pool.
func New(seq *seqcounter.Counter, pool *bufpool.Pool) *Builder {
	return &Builder{seq: seq, pool: pool}
}

// Build dispatches on the concrete canonical record type and returns the
// datagram(s) it expands into. Each returned buffer was drawn from the
// shared pool; callers must release it (via Builder.Release) once sent.
func (b *Builder) Build(record any) ([]*[]byte, error) {
	switch r := record.(type) {
	case canonical.Trade:
		return b.BuildTrade(r)
	case canonical.TradeBatch:
		return b.BuildTradeBatch(r)
	case canonical.OrderBookDelta:
		return b.BuildOrderBookDelta(r)
	case canonical.SingleValue:
		return b.BuildSingleValue(r)
	case canonical.Liquidation:
		return b.BuildLiquidation(r)
	case canonical.SystemEvent:
		return b.BuildSystemEvent(r)
	default:
		return nil, fmt.Errorf("builder: unsupported record type %T", record)
	}
}

// Release returns a datagram buffer to the shared pool.
func (b *Builder) Release(buf *[]byte) {
	b.pool.Release(buf)
}

// scaleDecimal converts a decimal value to its fixed-point i64
// representation at the given power-of-ten scale, truncating toward zero
// and rejecting values that would overflow int64.
func scaleDecimal(v decimal.Decimal, shift int32) (int64, error) {
	scaled := v.Shift(shift).Truncate(0)
	maxI64 := decimal.New(9223372036854775807, 0)
	minI64 := decimal.New(-9223372036854775808, 0)
	if scaled.GreaterThan(maxI64) || scaled.LessThan(minI64) {
		return 0, fmt.Errorf("builder: scaled value %s overflows int64", scaled.String())
	}
	return scaled.IntPart(), nil
}

func (b *Builder) newHeader(msgType wire.MessageType, symbol, exchangeTag string, exchangeTS uint64) wire.Header {
	return wire.Header{
		ProtocolVersion:   wire.ProtocolVersion,
		SequenceNumber:    b.seq.Next(),
		ExchangeTimestamp: exchangeTS,
		LocalTimestamp:    NowFunc(),
		MessageType:       msgType,
		Symbol:            wire.SanitizeField(symbol),
		Exchange:          wire.SanitizeField(exchangeTag),
	}
}

func (b *Builder) allocDatagram(itemCount int) *[]byte {
	need := wire.HeaderSize + itemCount*wire.ItemSize
	return b.pool.Acquire(need)
}

// encodeDatagram writes header + items into a pool buffer and validates
// the MTU bound, returning a serialization error instead of a datagram
// that would exceed it.
func (b *Builder) encodeDatagram(hdr wire.Header, count int, isLast bool, encodeItem func(dst []byte)) (*[]byte, error) {
	flags, err := wire.SetFlagsAndCount(count, isLast)
	if err != nil {
		return nil, fmt.Errorf("builder: %w", err)
	}
	hdr.FlagsAndCount = flags

	total := wire.HeaderSize + count*wire.ItemSize
	if total > wire.MaxDatagramSize {
		return nil, fmt.Errorf("builder: datagram size %d exceeds MTU bound %d", total, wire.MaxDatagramSize)
	}

	buf := b.allocDatagram(count)
	*buf = (*buf)[:total]
	hdr.Encode((*buf)[:wire.HeaderSize])
	encodeItem((*buf)[wire.HeaderSize:total])
	return buf, nil
}

// BuildTrade serializes a single Trade, using the 50-item chunk size
// (here always a single-element, single-datagram emission) preserved for
// backwards compatibility with the pre-batch wire format.
func (b *Builder) BuildTrade(t canonical.Trade) ([]*[]byte, error) {
	return b.buildTrades([]canonical.Trade{t}, t.Symbol, t.Venue, t.EventTS, singleTradeChunkSize)
}

// BuildTradeBatch serializes an ordered batch of trades sharing a common
// symbol/venue/timestamp, using the 80-item chunk size.
func (b *Builder) BuildTradeBatch(batch canonical.TradeBatch) ([]*[]byte, error) {
	return b.buildTrades(batch.Trades, batch.Symbol, batch.Venue, batch.ExchangeTS, batchTradeChunkSize)
}

// buildTrades implements the shared trade-ordering and chunking logic for
// both the single-Trade and TradeBatch paths.
func (b *Builder) buildTrades(trades []canonical.Trade, symbol, venueTag string, exchangeTS uint64, chunkSize int) ([]*[]byte, error) {
	if len(trades) == 0 {
		// No trades to emit: no packet at all rather than a spurious
		// zero-item datagram.
		return nil, nil
	}

	ordered := make([]canonical.Trade, len(trades))
	copy(ordered, trades)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, c := ordered[i], ordered[j]
		if a.IsBuyerTaker != c.IsBuyerTaker {
			// asks (taker-buys) before bids
			return a.IsBuyerTaker && !c.IsBuyerTaker
		}
		if a.IsBuyerTaker {
			return a.Price.LessThan(c.Price) // ascending
		}
		return a.Price.GreaterThan(c.Price) // descending
	})

	if err := validateTradeScales(ordered); err != nil {
		return nil, err
	}

	chunks := chunkCount(len(ordered), chunkSize)
	datagrams := make([]*[]byte, 0, chunks)
	for k := 0; k < chunks; k++ {
		start := k * chunkSize
		end := minInt(start+chunkSize, len(ordered))
		chunk := ordered[start:end]

		hdr := b.newHeader(wire.MsgTradeTick, symbol, venueTag, exchangeTS)
		buf, err := b.encodeDatagram(hdr, len(chunk), k == chunks-1, func(dst []byte) {
			for i, t := range chunk {
				price, _ := scaleDecimal(t.Price, 8)
				qty, _ := scaleDecimal(t.Quantity, 8)
				item := wire.TradeTickItem{Price: price, Quantity: qty, IsBuyerTaker: t.IsBuyerTaker}
				item.Encode(dst[i*wire.ItemSize : (i+1)*wire.ItemSize])
			}
		})
		if err != nil {
			b.releaseAll(datagrams)
			return nil, err
		}
		datagrams = append(datagrams, buf)
	}
	return datagrams, nil
}

func validateTradeScales(trades []canonical.Trade) error {
	for _, t := range trades {
		if _, err := scaleDecimal(t.Price, 8); err != nil {
			return fmt.Errorf("builder: trade price: %w", err)
		}
		if _, err := scaleDecimal(t.Quantity, 8); err != nil {
			return fmt.Errorf("builder: trade quantity: %w", err)
		}
	}
	return nil
}

// BuildOrderBookDelta serializes an order-book delta, dropping zero-
// quantity levels, sorting bids descending / asks ascending,
// concatenating bids before asks, and chunking at 80 items per datagram.
func (b *Builder) BuildOrderBookDelta(d canonical.OrderBookDelta) ([]*[]byte, error) {
	bids := dropZero(d.Bids)
	asks := dropZero(d.Asks)

	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })

	for _, lvl := range bids {
		if _, err := scaleDecimal(lvl.Price, 8); err != nil {
			return nil, fmt.Errorf("builder: bid price: %w", err)
		}
		if _, err := scaleDecimal(lvl.Quantity, 8); err != nil {
			return nil, fmt.Errorf("builder: bid quantity: %w", err)
		}
	}
	for _, lvl := range asks {
		if _, err := scaleDecimal(lvl.Price, 8); err != nil {
			return nil, fmt.Errorf("builder: ask price: %w", err)
		}
		if _, err := scaleDecimal(lvl.Quantity, 8); err != nil {
			return nil, fmt.Errorf("builder: ask quantity: %w", err)
		}
	}

	if len(bids) == 0 && len(asks) == 0 {
		// An all-removals (qty=0) update carries no levels to emit: no
		// packet at all rather than a spurious zero-item datagram.
		return nil, nil
	}

	levels := make([]levelWithSide, 0, len(bids)+len(asks))
	for _, lvl := range bids {
		levels = append(levels, levelWithSide{lvl, false})
	}
	for _, lvl := range asks {
		levels = append(levels, levelWithSide{lvl, true})
	}

	chunks := chunkCount(len(levels), batchTradeChunkSize)
	datagrams := make([]*[]byte, 0, chunks)
	for k := 0; k < chunks; k++ {
		start := k * batchTradeChunkSize
		end := minInt(start+batchTradeChunkSize, len(levels))
		chunk := levels[start:end]

		hdr := b.newHeader(wire.MsgOrderBookDelta, d.Symbol, d.Venue, d.EventTS)
		buf, err := b.encodeDatagram(hdr, len(chunk), k == chunks-1, func(dst []byte) {
			for i, lvl := range chunk {
				price, _ := scaleDecimal(lvl.level.Price, 8)
				qty, _ := scaleDecimal(lvl.level.Quantity, 8)
				item := wire.OrderBookItem{Price: price, Quantity: qty, IsAsk: lvl.isAsk}
				item.Encode(dst[i*wire.ItemSize : (i+1)*wire.ItemSize])
			}
		})
		if err != nil {
			b.releaseAll(datagrams)
			return nil, err
		}
		datagrams = append(datagrams, buf)
	}
	return datagrams, nil
}

type levelWithSide struct {
	level canonical.PriceLevel
	isAsk bool
}

func dropZero(levels []canonical.PriceLevel) []canonical.PriceLevel {
	out := make([]canonical.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		if !lvl.Quantity.IsZero() {
			out = append(out, lvl)
		}
	}
	return out
}

// BuildSingleValue serializes an IndexPrice/MarkPrice/FundingRate record
// into a single one-item datagram, using the funding-rate-specific scale
// for FundingRate.
func (b *Builder) BuildSingleValue(v canonical.SingleValue) ([]*[]byte, error) {
	var msgType wire.MessageType
	shift := int32(8)
	switch v.Kind {
	case canonical.IndexPrice:
		msgType = wire.MsgIndexPrice
	case canonical.MarkPrice:
		msgType = wire.MsgMarkPrice
	case canonical.FundingRate:
		msgType = wire.MsgFundingRate
		shift = 9
	default:
		return nil, fmt.Errorf("builder: unknown SingleValue kind %d", v.Kind)
	}

	scaled, err := scaleDecimal(v.Value, shift)
	if err != nil {
		return nil, fmt.Errorf("builder: single value: %w", err)
	}

	hdr := b.newHeader(msgType, v.Symbol, v.Venue, v.EventTS)
	buf, err := b.encodeDatagram(hdr, 1, true, func(dst []byte) {
		wire.SingleValueItem{Value: scaled}.Encode(dst[0:wire.ItemSize])
	})
	if err != nil {
		return nil, err
	}
	return []*[]byte{buf}, nil
}

// BuildLiquidation serializes a Liquidation into a single one-item datagram.
func (b *Builder) BuildLiquidation(l canonical.Liquidation) ([]*[]byte, error) {
	price, err := scaleDecimal(l.Price, 8)
	if err != nil {
		return nil, fmt.Errorf("builder: liquidation price: %w", err)
	}
	qty, err := scaleDecimal(l.Quantity, 8)
	if err != nil {
		return nil, fmt.Errorf("builder: liquidation quantity: %w", err)
	}

	hdr := b.newHeader(wire.MsgLiquidation, l.Symbol, l.Venue, l.EventTS)
	buf, err := b.encodeDatagram(hdr, 1, true, func(dst []byte) {
		wire.LiquidationItem{Price: price, Quantity: qty, IsSell: l.IsSell}.Encode(dst[0:wire.ItemSize])
	})
	if err != nil {
		return nil, err
	}
	return []*[]byte{buf}, nil
}

// BuildSystemEvent serializes one of the five operational event kinds
// into a single one-item datagram. The symbol field is left blank
// (NUL-filled); the exchange field carries the displayed venue name for
// ConnectionStatus/SubscriptionStatus, or "system" otherwise.
func (b *Builder) BuildSystemEvent(e canonical.SystemEvent) ([]*[]byte, error) {
	now := NowFunc()
	switch e.Kind {
	case canonical.Heartbeat:
		if e.Heartbeat == nil {
			return nil, fmt.Errorf("builder: heartbeat payload missing")
		}
		hdr := b.newHeader(wire.MsgHeartbeat, "", "system", now)
		buf, err := b.encodeDatagram(hdr, 1, true, func(dst []byte) {
			wire.HeartbeatPayload{
				UptimeSeconds: e.Heartbeat.UptimeSeconds,
				ActiveConns:   e.Heartbeat.ActiveConns,
				PacketsSent:   e.Heartbeat.PacketsSent,
			}.Encode(dst[0:wire.ItemSize])
		})
		if err != nil {
			return nil, err
		}
		return []*[]byte{buf}, nil

	case canonical.ConnectionStatus:
		if e.ConnStatus == nil {
			return nil, fmt.Errorf("builder: connection status payload missing")
		}
		hdr := b.newHeader(wire.MsgConnectionStatus, "", e.ConnStatus.ExchangeName, now)
		buf, err := b.encodeDatagram(hdr, 1, true, func(dst []byte) {
			wire.ConnectionStatusPayload{
				ExchangeID: e.ConnStatus.ExchangeID,
				Prev:       wire.ConnStatus(e.ConnStatus.Prev),
				Cur:        wire.ConnStatus(e.ConnStatus.Cur),
				Retry:      e.ConnStatus.Retry,
				Err:        e.ConnStatus.Err,
			}.Encode(dst[0:wire.ItemSize])
		})
		if err != nil {
			return nil, err
		}
		return []*[]byte{buf}, nil

	case canonical.SubscriptionStatus:
		if e.SubStatus == nil {
			return nil, fmt.Errorf("builder: subscription status payload missing")
		}
		hdr := b.newHeader(wire.MsgSubscriptionStatus, "", e.SubStatus.ExchangeName, now)
		// Truncated to 11 bytes so the field always carries a NUL terminator.
		var short [12]byte
		n := len(e.SubStatus.SymbolShort)
		if n > len(short)-1 {
			n = len(short) - 1
		}
		copy(short[:n], e.SubStatus.SymbolShort)
		buf, err := b.encodeDatagram(hdr, 1, true, func(dst []byte) {
			wire.SubscriptionStatusPayload{
				ExchangeID:  e.SubStatus.ExchangeID,
				SubType:     e.SubStatus.SubType,
				Status:      e.SubStatus.Status,
				SymbolShort: short,
			}.Encode(dst[0:wire.ItemSize])
		})
		if err != nil {
			return nil, err
		}
		return []*[]byte{buf}, nil

	case canonical.SystemStats:
		if e.Stats == nil {
			return nil, fmt.Errorf("builder: system stats payload missing")
		}
		hdr := b.newHeader(wire.MsgSystemStats, "", "system", now)
		buf, err := b.encodeDatagram(hdr, 1, true, func(dst []byte) {
			wire.SystemStatsPayload{
				CPUPercent:    uint32(e.Stats.CPUPercent),
				MemMB:         e.Stats.MemMB,
				PacketsPerSec: e.Stats.PacketsPerSec,
				BytesPerSec:   e.Stats.BytesPerSec,
			}.Encode(dst[0:wire.ItemSize])
		})
		if err != nil {
			return nil, err
		}
		return []*[]byte{buf}, nil

	case canonical.ErrorEvent:
		if e.Err == nil {
			return nil, fmt.Errorf("builder: error event payload missing")
		}
		hdr := b.newHeader(wire.MsgErrorEvent, "", "system", now)
		buf, err := b.encodeDatagram(hdr, 1, true, func(dst []byte) {
			wire.ErrorEventPayload{
				ErrorType:  e.Err.ErrorType,
				ExchangeID: e.Err.ExchangeID,
				Severity:   e.Err.Severity,
				Details:    e.Err.Details,
			}.Encode(dst[0:wire.ItemSize])
		})
		if err != nil {
			return nil, err
		}
		return []*[]byte{buf}, nil

	default:
		return nil, fmt.Errorf("builder: unknown SystemEvent kind %d", e.Kind)
	}
}

func (b *Builder) releaseAll(bufs []*[]byte) {
	for _, buf := range bufs {
		b.Release(buf)
	}
}

func chunkCount(n, size int) int {
	if n == 0 {
		return 0
	}
	return (n + size - 1) / size
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
