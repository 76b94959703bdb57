package net

import (
	"encoding/binary"

	"fenrir/internal/events"
)

// Snapshot reports use a variable-length encoding (unlike the other,
// fixed-width messages) since depth is unbounded: a fixed header
// followed by repeated level records for bids then asks.
//
// Header: Symbol(8) HasLastTrade(1) LastTradePrice(8) BidCount(2) AskCount(2)
// Level record: Price(8) DisplayQty(8) HiddenQty(8) OrderCount(4)
const (
	snapshotHeaderLen = symbolFieldLen + 1 + 8 + 2 + 2
	levelRecordLen    = 8 + 8 + 8 + 4
)

// EncodeSnapshotReport serializes a depth snapshot for the wire.
// Per-order detail is never sent over this channel, even when the
// snapshot was requested with IncludeOrders; only Engine.Snapshot's
// in-process return value carries it.
func EncodeSnapshotReport(snap *events.Snapshot) []byte {
	buf := make([]byte, snapshotHeaderLen+levelRecordLen*(len(snap.Bids)+len(snap.Asks)))
	off := 0
	copy(buf[off:off+symbolFieldLen], encodeFixed(snap.Symbol, symbolFieldLen))
	off += symbolFieldLen
	if snap.HasLastTrade {
		buf[off] = 1
	}
	off++
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(snap.LastTradePrice))
	off += 8
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(snap.Bids)))
	off += 2
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(snap.Asks)))
	off += 2

	for _, lvl := range snap.Bids {
		off = encodeLevel(buf, off, lvl)
	}
	for _, lvl := range snap.Asks {
		off = encodeLevel(buf, off, lvl)
	}
	return buf
}

func encodeLevel(buf []byte, off int, lvl events.LevelView) int {
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(lvl.Price))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], lvl.DisplayQty)
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], lvl.HiddenQty)
	off += 8
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(lvl.OrderCount))
	off += 4
	return off
}

// DecodeSnapshotReport parses a report previously produced by
// EncodeSnapshotReport.
func DecodeSnapshotReport(buf []byte) (*events.Snapshot, error) {
	if len(buf) < snapshotHeaderLen {
		return nil, ErrMessageTooShort
	}
	off := 0
	snap := &events.Snapshot{Symbol: decodeFixed(buf[off : off+symbolFieldLen])}
	off += symbolFieldLen
	snap.HasLastTrade = buf[off] != 0
	off++
	snap.LastTradePrice = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	bidCount := int(binary.BigEndian.Uint16(buf[off : off+2]))
	off += 2
	askCount := int(binary.BigEndian.Uint16(buf[off : off+2]))
	off += 2

	if len(buf) < off+levelRecordLen*(bidCount+askCount) {
		return nil, ErrMessageTooShort
	}
	for i := 0; i < bidCount; i++ {
		var lvl events.LevelView
		lvl, off = decodeLevel(buf, off)
		snap.Bids = append(snap.Bids, lvl)
	}
	for i := 0; i < askCount; i++ {
		var lvl events.LevelView
		lvl, off = decodeLevel(buf, off)
		snap.Asks = append(snap.Asks, lvl)
	}
	return snap, nil
}

func decodeLevel(buf []byte, off int) (events.LevelView, int) {
	lvl := events.LevelView{
		Price:      int64(binary.BigEndian.Uint64(buf[off : off+8])),
		DisplayQty: binary.BigEndian.Uint64(buf[off+8 : off+16]),
		HiddenQty:  binary.BigEndian.Uint64(buf[off+16 : off+24]),
		OrderCount: int(binary.BigEndian.Uint32(buf[off+24 : off+28])),
	}
	return lvl, off + levelRecordLen
}
