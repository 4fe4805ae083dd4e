// Package canonical defines the normalizer's output records:
// exchange-agnostic, decimal-precise market events that the packet builder
// serializes into wire datagrams.
package canonical

import "github.com/shopspring/decimal"

// SingleValueKind distinguishes the three SingleValue record kinds.
type SingleValueKind int

const (
	IndexPrice SingleValueKind = iota
	MarkPrice
	FundingRate
)

// SystemEventKind distinguishes SystemEvent payload shapes.
type SystemEventKind int

const (
	Heartbeat SystemEventKind = iota
	ConnectionStatus
	SubscriptionStatus
	SystemStats
	ErrorEvent
)

// Trade is a single executed trade.
type Trade struct {
	Symbol       string
	Venue        string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	IsBuyerTaker bool
	EventTS      uint64 // ns since epoch
}

// TradeBatch is an ordered sequence of trades sharing symbol/venue/timestamp.
type TradeBatch struct {
	Symbol     string
	Venue      string
	ExchangeTS uint64
	Trades     []Trade
}

// PriceLevel is one order-book side's (price, qty) pair.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBookDelta is an incremental order-book update.
type OrderBookDelta struct {
	Symbol  string
	Venue   string
	Bids    []PriceLevel
	Asks    []PriceLevel
	EventTS uint64
}

// SingleValue is an IndexPrice/MarkPrice/FundingRate observation.
type SingleValue struct {
	Symbol  string
	Venue   string
	Kind    SingleValueKind
	Value   decimal.Decimal
	EventTS uint64
}

// Liquidation is a forced-liquidation trade.
type Liquidation struct {
	Symbol   string
	Venue    string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	IsSell   bool
	EventTS  uint64
}

// SystemEvent carries one of the five operational event kinds. Exactly one
// of the Heartbeat/ConnStatus/SubStatus/Stats/Err fields is populated,
// selected by Kind.
type SystemEvent struct {
	Kind       SystemEventKind
	Heartbeat  *HeartbeatData
	ConnStatus *ConnectionStatusData
	SubStatus  *SubscriptionStatusData
	Stats      *SystemStatsData
	Err        *ErrorEventData
}

// HeartbeatData is the SystemEvent/Heartbeat payload.
type HeartbeatData struct {
	UptimeSeconds uint64
	ActiveConns   uint32
	PacketsSent   uint32
}

// ConnectionStatusData is the SystemEvent/ConnectionStatus payload.
type ConnectionStatusData struct {
	ExchangeName string
	ExchangeID   uint16
	Prev         uint8
	Cur          uint8
	Retry        uint32
	Err          uint64
}

// SubscriptionStatusData is the SystemEvent/SubscriptionStatus payload.
type SubscriptionStatusData struct {
	ExchangeName string
	ExchangeID   uint16
	SubType      uint8
	Status       uint8
	SymbolShort  string
}

// SystemStatsData is the SystemEvent/SystemStats payload.
type SystemStatsData struct {
	CPUPercent    float64
	MemMB         uint32
	PacketsPerSec uint32
	BytesPerSec   uint32
}

// ErrorEventData is the SystemEvent/ErrorEvent payload.
type ErrorEventData struct {
	ErrorType  uint32
	ExchangeID uint16
	Severity   uint16
	Details    uint64
}
