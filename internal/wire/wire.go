// Package wire defines the fixed binary layout shipped over UDP multicast:
// a 67-byte header followed by zero or more 16-byte items. Every type here
// is encoded/decoded with encoding/binary in little-endian order so the
// layout never depends on compiler struct padding.
package wire

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the fixed, packed size of Header in bytes.
	HeaderSize = 67
	// ItemSize is the fixed, packed size of every 16-byte payload item.
	ItemSize = 16
	// SymbolFieldSize is the width of the symbol/exchange ASCII fields.
	SymbolFieldSize = 20
	// MaxDatagramSize is the Ethernet MTU minus typical UDP/IP overhead.
	MaxDatagramSize = 1472
	// MaxItemsPerDatagram bounds item_count (7 bits of flags_and_count).
	MaxItemsPerDatagram = 80

	// ProtocolVersion is the only wire version this feeder emits.
	ProtocolVersion uint8 = 1

	// PriceScale is the fixed-point scale for prices and quantities.
	PriceScale = 100_000_000 // 1e8
	// FundingRateScale is the fixed-point scale for FundingRate values,
	// one digit finer than PriceScale: funding rates are small fractions
	// (~1e-4) where the extra decimal digit matters.
	FundingRateScale = 1_000_000_000
)

// MessageType identifies the payload layout that follows the header.
type MessageType uint8

const (
	MsgOrderBookDelta     MessageType = 0
	MsgTradeTick          MessageType = 1
	MsgIndexPrice         MessageType = 2
	MsgMarkPrice          MessageType = 3
	MsgFundingRate        MessageType = 4
	MsgLiquidation        MessageType = 5
	MsgHeartbeat          MessageType = 100
	MsgConnectionStatus   MessageType = 101
	MsgSubscriptionStatus MessageType = 102
	MsgSystemStats        MessageType = 103
	MsgErrorEvent         MessageType = 104
)

const isLastBit = 1 << 7

// Header is the 67-byte datagram header, little-endian, no padding.
type Header struct {
	ProtocolVersion   uint8
	SequenceNumber    uint64
	ExchangeTimestamp uint64 // ns since epoch
	LocalTimestamp    uint64 // ns since epoch
	MessageType       MessageType
	FlagsAndCount     uint8 // bit 7 = is_last, bits 0-6 = item_count
	Symbol            [SymbolFieldSize]byte
	Exchange          [SymbolFieldSize]byte
}

// ItemCount extracts bits 0-6 of FlagsAndCount.
func (h Header) ItemCount() int {
	return int(h.FlagsAndCount &^ isLastBit)
}

// IsLast extracts bit 7 of FlagsAndCount.
func (h Header) IsLast() bool {
	return h.FlagsAndCount&isLastBit != 0
}

// SetFlagsAndCount packs item count and the is_last bit into one byte.
// Returns an error if count exceeds MaxItemsPerDatagram.
func SetFlagsAndCount(count int, isLast bool) (uint8, error) {
	if count < 0 || count > MaxItemsPerDatagram {
		return 0, fmt.Errorf("wire: item_count %d out of range [0,%d]", count, MaxItemsPerDatagram)
	}
	b := uint8(count)
	if isLast {
		b |= isLastBit
	}
	return b, nil
}

// Encode writes the packed header into dst, which must have length >= HeaderSize.
func (h Header) Encode(dst []byte) {
	_ = dst[HeaderSize-1] // bounds check hint
	dst[0] = h.ProtocolVersion
	binary.LittleEndian.PutUint64(dst[1:9], h.SequenceNumber)
	binary.LittleEndian.PutUint64(dst[9:17], h.ExchangeTimestamp)
	binary.LittleEndian.PutUint64(dst[17:25], h.LocalTimestamp)
	dst[25] = uint8(h.MessageType)
	dst[26] = h.FlagsAndCount
	copy(dst[27:47], h.Symbol[:])
	copy(dst[47:67], h.Exchange[:])
}

// DecodeHeader reads a packed header from src, which must have length >= HeaderSize.
func DecodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, fmt.Errorf("wire: short header: %d bytes", len(src))
	}
	var h Header
	h.ProtocolVersion = src[0]
	h.SequenceNumber = binary.LittleEndian.Uint64(src[1:9])
	h.ExchangeTimestamp = binary.LittleEndian.Uint64(src[9:17])
	h.LocalTimestamp = binary.LittleEndian.Uint64(src[17:25])
	h.MessageType = MessageType(src[25])
	h.FlagsAndCount = src[26]
	copy(h.Symbol[:], src[27:47])
	copy(h.Exchange[:], src[47:67])
	return h, nil
}

const quantityFlagBit = int64(-1 << 63)

// OrderBookItem is a 16-byte order-book level: price + signed magnitude
// with bit 63 marking the ask side.
type OrderBookItem struct {
	Price    int64
	Quantity int64
	IsAsk    bool
}

// Encode writes the packed item into dst, which must have length >= ItemSize.
func (it OrderBookItem) Encode(dst []byte) {
	_ = dst[ItemSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], uint64(it.Price))
	qf := it.Quantity
	if it.IsAsk {
		qf |= quantityFlagBit
	}
	binary.LittleEndian.PutUint64(dst[8:16], uint64(qf))
}

// DecodeOrderBookItem reads a packed item from src.
func DecodeOrderBookItem(src []byte) OrderBookItem {
	price := int64(binary.LittleEndian.Uint64(src[0:8]))
	raw := int64(binary.LittleEndian.Uint64(src[8:16]))
	return OrderBookItem{
		Price:    price,
		Quantity: raw &^ quantityFlagBit,
		IsAsk:    raw < 0,
	}
}

// TradeTickItem is a 16-byte trade tick: price + signed magnitude with
// bit 63 marking the buyer-taker side.
type TradeTickItem struct {
	Price        int64
	Quantity     int64
	IsBuyerTaker bool
}

// Encode writes the packed item into dst, which must have length >= ItemSize.
func (it TradeTickItem) Encode(dst []byte) {
	_ = dst[ItemSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], uint64(it.Price))
	qf := it.Quantity
	if it.IsBuyerTaker {
		qf |= quantityFlagBit
	}
	binary.LittleEndian.PutUint64(dst[8:16], uint64(qf))
}

// DecodeTradeTickItem reads a packed item from src.
func DecodeTradeTickItem(src []byte) TradeTickItem {
	price := int64(binary.LittleEndian.Uint64(src[0:8]))
	raw := int64(binary.LittleEndian.Uint64(src[8:16]))
	return TradeTickItem{
		Price:        price,
		Quantity:     raw &^ quantityFlagBit,
		IsBuyerTaker: raw < 0,
	}
}

// LiquidationItem is a 16-byte liquidation tick: price + signed magnitude
// with bit 63 marking the sell side.
type LiquidationItem struct {
	Price    int64
	Quantity int64
	IsSell   bool
}

// Encode writes the packed item into dst, which must have length >= ItemSize.
func (it LiquidationItem) Encode(dst []byte) {
	_ = dst[ItemSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], uint64(it.Price))
	qf := it.Quantity
	if it.IsSell {
		qf |= quantityFlagBit
	}
	binary.LittleEndian.PutUint64(dst[8:16], uint64(qf))
}

// DecodeLiquidationItem reads a packed item from src.
func DecodeLiquidationItem(src []byte) LiquidationItem {
	price := int64(binary.LittleEndian.Uint64(src[0:8]))
	raw := int64(binary.LittleEndian.Uint64(src[8:16]))
	return LiquidationItem{
		Price:    price,
		Quantity: raw &^ quantityFlagBit,
		IsSell:   raw < 0,
	}
}

// SingleValueItem packs one scaled value (IndexPrice, MarkPrice or
// FundingRate) into the first 8 bytes of a 16-byte item, zero-padded.
type SingleValueItem struct {
	Value int64
}

// Encode writes the packed item into dst, which must have length >= ItemSize.
func (it SingleValueItem) Encode(dst []byte) {
	_ = dst[ItemSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], uint64(it.Value))
	binary.LittleEndian.PutUint64(dst[8:16], 0)
}

// DecodeSingleValueItem reads a packed item from src.
func DecodeSingleValueItem(src []byte) SingleValueItem {
	return SingleValueItem{Value: int64(binary.LittleEndian.Uint64(src[0:8]))}
}

// HeartbeatPayload is the message_type=100 event body.
type HeartbeatPayload struct {
	UptimeSeconds uint64
	ActiveConns   uint32
	PacketsSent   uint32
}

func (p HeartbeatPayload) Encode(dst []byte) {
	_ = dst[ItemSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], p.UptimeSeconds)
	binary.LittleEndian.PutUint32(dst[8:12], p.ActiveConns)
	binary.LittleEndian.PutUint32(dst[12:16], p.PacketsSent)
}

func DecodeHeartbeatPayload(src []byte) HeartbeatPayload {
	return HeartbeatPayload{
		UptimeSeconds: binary.LittleEndian.Uint64(src[0:8]),
		ActiveConns:   binary.LittleEndian.Uint32(src[8:12]),
		PacketsSent:   binary.LittleEndian.Uint32(src[12:16]),
	}
}

// ConnStatus mirrors the SessionSupervisor state machine's numeric states.
type ConnStatus uint8

const (
	ConnDisconnected ConnStatus = 0
	ConnConnecting   ConnStatus = 1
	ConnConnected    ConnStatus = 2
	ConnReconnecting ConnStatus = 3
	ConnFailed       ConnStatus = 4
)

// ConnectionStatusPayload is the message_type=101 event body.
type ConnectionStatusPayload struct {
	ExchangeID uint16
	Prev       ConnStatus
	Cur        ConnStatus
	Retry      uint32
	Err        uint64
}

func (p ConnectionStatusPayload) Encode(dst []byte) {
	_ = dst[ItemSize-1]
	binary.LittleEndian.PutUint16(dst[0:2], p.ExchangeID)
	dst[2] = uint8(p.Prev)
	dst[3] = uint8(p.Cur)
	binary.LittleEndian.PutUint32(dst[4:8], p.Retry)
	binary.LittleEndian.PutUint64(dst[8:16], p.Err)
}

func DecodeConnectionStatusPayload(src []byte) ConnectionStatusPayload {
	return ConnectionStatusPayload{
		ExchangeID: binary.LittleEndian.Uint16(src[0:2]),
		Prev:       ConnStatus(src[2]),
		Cur:        ConnStatus(src[3]),
		Retry:      binary.LittleEndian.Uint32(src[4:8]),
		Err:        binary.LittleEndian.Uint64(src[8:16]),
	}
}

// Subscription channel codes carried in SubscriptionStatusPayload.SubType.
const (
	SubTypeTrade uint8 = 0
	SubTypeDepth uint8 = 1
)

// Subscription status codes carried in SubscriptionStatusPayload.Status.
const (
	SubStatusInactive uint8 = 0
	SubStatusActive   uint8 = 1
)

// SubscriptionStatusPayload is the message_type=102 event body.
type SubscriptionStatusPayload struct {
	ExchangeID  uint16
	SubType     uint8
	Status      uint8
	SymbolShort [12]byte
}

func (p SubscriptionStatusPayload) Encode(dst []byte) {
	_ = dst[ItemSize-1]
	binary.LittleEndian.PutUint16(dst[0:2], p.ExchangeID)
	dst[2] = p.SubType
	dst[3] = p.Status
	copy(dst[4:16], p.SymbolShort[:])
}

func DecodeSubscriptionStatusPayload(src []byte) SubscriptionStatusPayload {
	var p SubscriptionStatusPayload
	p.ExchangeID = binary.LittleEndian.Uint16(src[0:2])
	p.SubType = src[2]
	p.Status = src[3]
	copy(p.SymbolShort[:], src[4:16])
	return p
}

// SystemStatsPayload is the message_type=103 event body.
type SystemStatsPayload struct {
	CPUPercent    uint32 // whole percent, unscaled
	MemMB         uint32
	PacketsPerSec uint32
	BytesPerSec   uint32
}

func (p SystemStatsPayload) Encode(dst []byte) {
	_ = dst[ItemSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], p.CPUPercent)
	binary.LittleEndian.PutUint32(dst[4:8], p.MemMB)
	binary.LittleEndian.PutUint32(dst[8:12], p.PacketsPerSec)
	binary.LittleEndian.PutUint32(dst[12:16], p.BytesPerSec)
}

func DecodeSystemStatsPayload(src []byte) SystemStatsPayload {
	return SystemStatsPayload{
		CPUPercent:    binary.LittleEndian.Uint32(src[0:4]),
		MemMB:         binary.LittleEndian.Uint32(src[4:8]),
		PacketsPerSec: binary.LittleEndian.Uint32(src[8:12]),
		BytesPerSec:   binary.LittleEndian.Uint32(src[12:16]),
	}
}

// Error-type codes carried in ErrorEventPayload.ErrorType, matching the
// recoverable branches of the error taxonomy (parse, serialization, send).
const (
	ErrorTypeParse         uint32 = 1
	ErrorTypeSerialization uint32 = 2
	ErrorTypeSend          uint32 = 3
)

// Severity codes carried in ErrorEventPayload.Severity.
const (
	SeverityWarning uint16 = 1
	SeverityError   uint16 = 2
)

// ErrorEventPayload is the message_type=104 event body.
type ErrorEventPayload struct {
	ErrorType  uint32
	ExchangeID uint16
	Severity   uint16
	Details    uint64
}

func (p ErrorEventPayload) Encode(dst []byte) {
	_ = dst[ItemSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], p.ErrorType)
	binary.LittleEndian.PutUint16(dst[4:6], p.ExchangeID)
	binary.LittleEndian.PutUint16(dst[6:8], p.Severity)
	binary.LittleEndian.PutUint64(dst[8:16], p.Details)
}

func DecodeErrorEventPayload(src []byte) ErrorEventPayload {
	return ErrorEventPayload{
		ErrorType:  binary.LittleEndian.Uint32(src[0:4]),
		ExchangeID: binary.LittleEndian.Uint16(src[4:6]),
		Severity:   binary.LittleEndian.Uint16(src[6:8]),
		Details:    binary.LittleEndian.Uint64(src[8:16]),
	}
}

// SanitizeField uppercases nothing (callers uppercase symbols themselves),
// strips any byte outside [A-Za-z0-9^_-], truncates to SymbolFieldSize and
// NUL-pads the remainder.
func SanitizeField(s string) [SymbolFieldSize]byte {
	var out [SymbolFieldSize]byte
	n := 0
	for i := 0; i < len(s) && n < SymbolFieldSize; i++ {
		c := s[i]
		if isFieldByte(c) {
			out[n] = c
			n++
		}
	}
	return out
}

func isFieldByte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '^' || c == '_' || c == '-':
		return true
	}
	return false
}

// FieldString decodes a NUL-padded fixed field back to a Go string.
func FieldString(b [SymbolFieldSize]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}
