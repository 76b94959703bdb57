// Package net implements the TCP wire protocol and server. Fixed-width
// big-endian binary messages, grounded on the teacher's
// internal/net/messages.go, extended per spec.md §6: int64 tick
// prices instead of float64, a ModifyOrder and SnapshotRequest command,
// and a single Report encoding that mirrors internal/events.Event
// instead of the teacher's two-report-per-trade/one-report-per-error
// split.
package net

import (
	"encoding/binary"
	"errors"
	"strings"

	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/events"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for its declared type")
	ErrUnknownOrderKind   = errors.New("unknown order kind")
)

// MessageType is the closed set of commands a client may send.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	ModifyOrder
	SnapshotRequest
)

const (
	symbolFieldLen  = 8
	orderIDFieldLen = 36 // len(uuid.New().String())

	// Field lengths exclude the 2-byte MessageType header, which
	// parseMessage strips before dispatching.
	newOrderBodyLen        = symbolFieldLen + 1 + 1 + 8 + 8 + 8 + 8 + 1 // symbol,side,kind,price,stop,qty,dispQty,ownerLen
	cancelOrderBodyLen     = symbolFieldLen + orderIDFieldLen
	modifyOrderBodyLen     = symbolFieldLen + orderIDFieldLen + 8 + 8
	snapshotRequestBodyLen = symbolFieldLen + 1
)

func encodeFixed(s string, n int) []byte {
	buf := make([]byte, n)
	copy(buf, s)
	return buf
}

func decodeFixed(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}

// Command is the parsed form of any message a client can send.
type Command struct {
	Type MessageType
	engine.Command
	IncludeOrders bool
}

// ParseCommand parses a raw inbound message into an engine.Command
// ready to hand to Engine.Submit/Cancel/Modify/Snapshot.
func ParseCommand(msg []byte) (Command, error) {
	if len(msg) < 2 {
		return Command{}, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]

	switch typeOf {
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case ModifyOrder:
		return parseModifyOrder(body)
	case SnapshotRequest:
		return parseSnapshotRequest(body)
	case Heartbeat:
		return Command{Type: Heartbeat}, nil
	default:
		return Command{}, ErrInvalidMessageType
	}
}

func parseNewOrder(body []byte) (Command, error) {
	if len(body) < newOrderBodyLen {
		return Command{}, ErrMessageTooShort
	}
	off := 0
	symbol := decodeFixed(body[off : off+symbolFieldLen])
	off += symbolFieldLen
	side := common.Side(body[off])
	off++
	kind := common.Kind(body[off])
	if kind > common.StopLimit {
		return Command{}, ErrUnknownOrderKind
	}
	off++
	price := int64(binary.BigEndian.Uint64(body[off : off+8]))
	off += 8
	stopPrice := int64(binary.BigEndian.Uint64(body[off : off+8]))
	off += 8
	qty := binary.BigEndian.Uint64(body[off : off+8])
	off += 8
	dispQty := binary.BigEndian.Uint64(body[off : off+8])
	off += 8
	ownerLen := int(body[off])
	off++
	if len(body) < off+ownerLen {
		return Command{}, ErrMessageTooShort
	}
	owner := string(body[off : off+ownerLen])

	return Command{
		Type: NewOrder,
		Command: engine.Command{
			Kind:              engine.CmdSubmit,
			Symbol:            symbol,
			Owner:             owner,
			Side:              side,
			OrderKind:         kind,
			Price:             price,
			StopPrice:         stopPrice,
			Quantity:          qty,
			DisplayedQuantity: dispQty,
		},
	}, nil
}

func parseCancelOrder(body []byte) (Command, error) {
	if len(body) < cancelOrderBodyLen {
		return Command{}, ErrMessageTooShort
	}
	symbol := decodeFixed(body[0:symbolFieldLen])
	orderID := decodeFixed(body[symbolFieldLen : symbolFieldLen+orderIDFieldLen])
	return Command{
		Type: CancelOrder,
		Command: engine.Command{
			Kind:          engine.CmdCancel,
			Symbol:        symbol,
			TargetOrderID: orderID,
		},
	}, nil
}

func parseModifyOrder(body []byte) (Command, error) {
	if len(body) < modifyOrderBodyLen {
		return Command{}, ErrMessageTooShort
	}
	off := 0
	symbol := decodeFixed(body[off : off+symbolFieldLen])
	off += symbolFieldLen
	orderID := decodeFixed(body[off : off+orderIDFieldLen])
	off += orderIDFieldLen
	newPrice := int64(binary.BigEndian.Uint64(body[off : off+8]))
	off += 8
	newQty := binary.BigEndian.Uint64(body[off : off+8])

	return Command{
		Type: ModifyOrder,
		Command: engine.Command{
			Kind:          engine.CmdModify,
			Symbol:        symbol,
			TargetOrderID: orderID,
			NewPrice:      newPrice,
			NewQuantity:   newQty,
		},
	}, nil
}

func parseSnapshotRequest(body []byte) (Command, error) {
	if len(body) < snapshotRequestBodyLen {
		return Command{}, ErrMessageTooShort
	}
	symbol := decodeFixed(body[0:symbolFieldLen])
	includeOrders := body[symbolFieldLen] != 0
	return Command{
		Type: SnapshotRequest,
		Command: engine.Command{
			Kind:   engine.CmdSnapshot,
			Symbol: symbol,
		},
		IncludeOrders: includeOrders,
	}, nil
}

// EncodeNewOrder serializes a new-order command to the wire, used by
// cmd/client.
func EncodeNewOrder(symbol string, side common.Side, kind common.Kind, price, stopPrice int64, qty, dispQty uint64, owner string) []byte {
	buf := make([]byte, 2+newOrderBodyLen+len(owner))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	off := 2
	copy(buf[off:off+symbolFieldLen], encodeFixed(symbol, symbolFieldLen))
	off += symbolFieldLen
	buf[off] = byte(side)
	off++
	buf[off] = byte(kind)
	off++
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(price))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(stopPrice))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], qty)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], dispQty)
	off += 8
	buf[off] = byte(len(owner))
	off++
	copy(buf[off:], owner)
	return buf
}

// EncodeCancelOrder serializes a cancel command to the wire.
func EncodeCancelOrder(symbol, orderID string) []byte {
	buf := make([]byte, 2+cancelOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	off := 2
	copy(buf[off:off+symbolFieldLen], encodeFixed(symbol, symbolFieldLen))
	off += symbolFieldLen
	copy(buf[off:off+orderIDFieldLen], encodeFixed(orderID, orderIDFieldLen))
	return buf
}

// EncodeModifyOrder serializes a modify command to the wire.
func EncodeModifyOrder(symbol, orderID string, newPrice int64, newQty uint64) []byte {
	buf := make([]byte, 2+modifyOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(ModifyOrder))
	off := 2
	copy(buf[off:off+symbolFieldLen], encodeFixed(symbol, symbolFieldLen))
	off += symbolFieldLen
	copy(buf[off:off+orderIDFieldLen], encodeFixed(orderID, orderIDFieldLen))
	off += orderIDFieldLen
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(newPrice))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], newQty)
	return buf
}

// EncodeSnapshotRequest serializes a snapshot request to the wire.
func EncodeSnapshotRequest(symbol string, includeOrders bool) []byte {
	buf := make([]byte, 2+snapshotRequestBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(SnapshotRequest))
	off := 2
	copy(buf[off:off+symbolFieldLen], encodeFixed(symbol, symbolFieldLen))
	off += symbolFieldLen
	if includeOrders {
		buf[off] = 1
	}
	return buf
}

// ReportBodyLen is fixed: Kind(1) Symbol(8) Seq(8) OrderID(36)
// ArrivalSeq(8) Reason(1) Status(1) TakerOrderID(36) MakerOrderID(36)
// AggressorSide(1) Price(8) Quantity(8). Exported so callers (e.g.
// cmd/client) can tell a report apart from a variable-length
// snapshot report on the same connection.
const ReportBodyLen = 1 + symbolFieldLen + 8 + orderIDFieldLen + 8 + 1 + 1 + orderIDFieldLen + orderIDFieldLen + 1 + 8 + 8

// EncodeReport serializes an events.Event for delivery to a client.
// Reports never carry a Snapshot payload over this fixed-width
// encoding; SnapshotTaken events are served by the client's dedicated
// snapshot request/response instead (spec.md §6 keeps depth reports
// separate from the order-lifecycle/trade report stream).
func EncodeReport(ev events.Event) []byte {
	buf := make([]byte, ReportBodyLen)
	off := 0
	buf[off] = byte(ev.Kind)
	off++
	copy(buf[off:off+symbolFieldLen], encodeFixed(ev.Symbol, symbolFieldLen))
	off += symbolFieldLen
	binary.BigEndian.PutUint64(buf[off:off+8], ev.Seq)
	off += 8
	copy(buf[off:off+orderIDFieldLen], encodeFixed(ev.OrderID, orderIDFieldLen))
	off += orderIDFieldLen
	binary.BigEndian.PutUint64(buf[off:off+8], ev.ArrivalSeq)
	off += 8
	buf[off] = byte(ev.Reason)
	off++
	buf[off] = byte(ev.Status)
	off++
	copy(buf[off:off+orderIDFieldLen], encodeFixed(ev.TakerOrderID, orderIDFieldLen))
	off += orderIDFieldLen
	copy(buf[off:off+orderIDFieldLen], encodeFixed(ev.MakerOrderID, orderIDFieldLen))
	off += orderIDFieldLen
	buf[off] = byte(ev.AggressorSide)
	off++
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(ev.Price))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], ev.Quantity)
	return buf
}

// DecodeReport parses a report previously produced by EncodeReport,
// for cmd/client's reader loop.
func DecodeReport(buf []byte) (events.Event, error) {
	if len(buf) < ReportBodyLen {
		return events.Event{}, ErrMessageTooShort
	}
	off := 0
	ev := events.Event{Kind: events.Kind(buf[off])}
	off++
	ev.Symbol = decodeFixed(buf[off : off+symbolFieldLen])
	off += symbolFieldLen
	ev.Seq = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	ev.OrderID = decodeFixed(buf[off : off+orderIDFieldLen])
	off += orderIDFieldLen
	ev.ArrivalSeq = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	ev.Reason = common.RejectReason(buf[off])
	off++
	ev.Status = common.Status(buf[off])
	off++
	ev.TakerOrderID = decodeFixed(buf[off : off+orderIDFieldLen])
	off += orderIDFieldLen
	ev.MakerOrderID = decodeFixed(buf[off : off+orderIDFieldLen])
	off += orderIDFieldLen
	ev.AggressorSide = common.Side(buf[off])
	off++
	ev.Price = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	ev.Quantity = binary.BigEndian.Uint64(buf[off : off+8])
	return ev, nil
}
