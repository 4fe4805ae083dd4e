// Package normalize converts exchange-specific JSON frames into canonical
// records. Prices and quantities are decoded with shopspring/decimal for
// exact parsing ahead of fixed-point wire scaling.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sicarius01/CryptoFeeder/internal/canonical"
)

// envelope matches the Binance combined-stream wrapper. If "stream"/"data"
// are absent the raw frame itself is treated as the event (single-stream
// connections), so the Normalizer does not require a "stream" key.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// eventHeader is decoded first to dispatch on "e" without re-parsing the
// full event shape for every candidate type. EventTime is declared so the
// "E" key has an exact match; otherwise encoding/json's case-insensitive
// fallback would route Binance's numeric "E" into the string "e" field.
type eventHeader struct {
	EventType string          `json:"e"`
	EventTime json.RawMessage `json:"E"`
}

type binanceTradeEvent struct {
	EventType string          `json:"e"`
	EventTime int64           `json:"E"`
	Symbol    string          `json:"s"`
	Price     decimal.Decimal `json:"p"`
	Qty       decimal.Decimal `json:"q"`
	TradeTime int64           `json:"T"`
	IsMaker   bool            `json:"m"`
}

type binanceDepthEvent struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

type binanceMarkPriceEvent struct {
	EventType   string          `json:"e"`
	EventTime   int64           `json:"E"`
	Symbol      string          `json:"s"`
	MarkPrice   decimal.Decimal `json:"p"`
	IndexPrice  decimal.Decimal `json:"i"`
	FundingRate decimal.Decimal `json:"r"`
}

type binanceForceOrderEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Order     struct {
		Symbol   string           `json:"s"`
		Side     string           `json:"S"`
		AvgPrice *decimal.Decimal `json:"ap"`
		Price    decimal.Decimal  `json:"p"`
		Qty      decimal.Decimal  `json:"q"`
	} `json:"o"`
}

// msToNanos converts Binance's millisecond timestamps to nanoseconds.
func msToNanos(ms int64) uint64 {
	if ms < 0 {
		return 0
	}
	return uint64(ms) * 1_000_000
}

// ParseBinance dispatches a raw Binance (combined-stream or single-stream)
// frame to the appropriate canonical record(s). sessionVenue overrides any
// venue the per-event parsing would otherwise infer: every record returned
// carries Venue == sessionVenue.
//
// Returns a parse error (and no records) for malformed JSON, a missing
// required field, or an unparseable number; unknown event types are
// discarded without error.
func ParseBinance(raw []byte, sessionVenue string) ([]any, error) {
	body := raw
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		body = env.Data
	}

	var hdr eventHeader
	if err := json.Unmarshal(body, &hdr); err != nil {
		return nil, fmt.Errorf("normalize: malformed event envelope: %w", err)
	}

	switch hdr.EventType {
	case "trade":
		return parseTrade(body, sessionVenue)
	case "aggTrade":
		return parseAggTrade(body, sessionVenue)
	case "depthUpdate":
		return parseDepth(body, sessionVenue)
	case "markPriceUpdate":
		return parseMarkPrice(body, sessionVenue)
	case "forceOrder":
		return parseForceOrder(body, sessionVenue)
	default:
		// Unrecognized event type: discarded, not an error.
		return nil, nil
	}
}

func parseTrade(body []byte, sessionVenue string) ([]any, error) {
	var ev binanceTradeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("normalize: trade decode: %w", err)
	}
	if ev.Symbol == "" {
		return nil, fmt.Errorf("normalize: trade missing symbol")
	}
	t := canonical.Trade{
		Symbol:       NormalizeSymbol(ev.Symbol),
		Venue:        sessionVenue,
		Price:        ev.Price,
		Quantity:     ev.Qty,
		IsBuyerTaker: !ev.IsMaker,
		EventTS:      msToNanos(ev.TradeTime),
	}
	return []any{t}, nil
}

func parseAggTrade(body []byte, sessionVenue string) ([]any, error) {
	var ev binanceTradeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("normalize: aggTrade decode: %w", err)
	}
	if ev.Symbol == "" {
		return nil, fmt.Errorf("normalize: aggTrade missing symbol")
	}
	symbol := NormalizeSymbol(ev.Symbol)
	ts := msToNanos(ev.TradeTime)
	batch := canonical.TradeBatch{
		Symbol:     symbol,
		Venue:      sessionVenue,
		ExchangeTS: ts,
		Trades: []canonical.Trade{{
			Symbol:       symbol,
			Venue:        sessionVenue,
			Price:        ev.Price,
			Quantity:     ev.Qty,
			IsBuyerTaker: !ev.IsMaker,
			EventTS:      ts,
		}},
	}
	return []any{batch}, nil
}

func parseLevels(raw [][]string) ([]canonical.PriceLevel, error) {
	levels := make([]canonical.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) != 2 {
			return nil, fmt.Errorf("normalize: malformed price level %v", lvl)
		}
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return nil, fmt.Errorf("normalize: bad price %q: %w", lvl[0], err)
		}
		qty, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return nil, fmt.Errorf("normalize: bad quantity %q: %w", lvl[1], err)
		}
		levels = append(levels, canonical.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

func parseDepth(body []byte, sessionVenue string) ([]any, error) {
	var ev binanceDepthEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("normalize: depthUpdate decode: %w", err)
	}
	if ev.Symbol == "" {
		return nil, fmt.Errorf("normalize: depthUpdate missing symbol")
	}
	bids, err := parseLevels(ev.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels(ev.Asks)
	if err != nil {
		return nil, err
	}
	delta := canonical.OrderBookDelta{
		Symbol:  NormalizeSymbol(ev.Symbol),
		Venue:   sessionVenue,
		Bids:    bids,
		Asks:    asks,
		EventTS: msToNanos(ev.EventTime),
	}
	return []any{delta}, nil
}

func parseMarkPrice(body []byte, sessionVenue string) ([]any, error) {
	var ev binanceMarkPriceEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("normalize: markPriceUpdate decode: %w", err)
	}
	if ev.Symbol == "" {
		return nil, fmt.Errorf("normalize: markPriceUpdate missing symbol")
	}
	symbol := NormalizeSymbol(ev.Symbol)
	ts := msToNanos(ev.EventTime)
	return []any{
		canonical.SingleValue{Symbol: symbol, Venue: sessionVenue, Kind: canonical.IndexPrice, Value: ev.IndexPrice, EventTS: ts},
		canonical.SingleValue{Symbol: symbol, Venue: sessionVenue, Kind: canonical.MarkPrice, Value: ev.MarkPrice, EventTS: ts},
		canonical.SingleValue{Symbol: symbol, Venue: sessionVenue, Kind: canonical.FundingRate, Value: ev.FundingRate, EventTS: ts},
	}, nil
}

func parseForceOrder(body []byte, sessionVenue string) ([]any, error) {
	var ev binanceForceOrderEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("normalize: forceOrder decode: %w", err)
	}
	if ev.Order.Symbol == "" {
		return nil, fmt.Errorf("normalize: forceOrder missing symbol")
	}
	// ap falls back to p only when the key itself is absent from the
	// frame, not merely zero-valued.
	price := ev.Order.Price
	if ev.Order.AvgPrice != nil {
		price = *ev.Order.AvgPrice
	}
	liq := canonical.Liquidation{
		Symbol:   NormalizeSymbol(ev.Order.Symbol),
		Venue:    sessionVenue,
		Price:    price,
		Quantity: ev.Order.Qty,
		IsSell:   ev.Order.Side == "SELL",
		EventTS:  msToNanos(ev.EventTime),
	}
	return []any{liq}, nil
}
