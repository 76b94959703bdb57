// Package events defines the EventSink contract (spec.md §4.6) and its
// event envelope (spec.md §6): the push interface the matching core
// uses to report everything it does, without ever blocking a trade on
// a slow consumer.
package events

import (
	"time"

	"fenrir/internal/common"
)

// Kind is the closed set of event kinds spec.md §6 names.
type Kind uint8

const (
	Accepted Kind = iota
	Rejected
	Canceled
	CancelReject
	Modified
	ModifyReject
	Trade
	Triggered
	SnapshotTaken
)

func (k Kind) String() string {
	switch k {
	case Accepted:
		return "Accepted"
	case Rejected:
		return "Rejected"
	case Canceled:
		return "Canceled"
	case CancelReject:
		return "CancelReject"
	case Modified:
		return "Modified"
	case ModifyReject:
		return "ModifyReject"
	case Trade:
		return "Trade"
	case Triggered:
		return "Triggered"
	case SnapshotTaken:
		return "SnapshotTaken"
	default:
		return "Unknown"
	}
}

// Event is the envelope spec.md §6 describes:
// { event_seq, symbol, ts, kind, payload }.
// Exactly one of the payload fields is meaningful for a given Kind;
// which one is determined by Kind, following the teacher's style of a
// flat struct instead of an interface{} payload (internal/net's Report
// is likewise one flat struct serialized per message type).
type Event struct {
	Seq    uint64
	Symbol string
	Ts     time.Time
	Kind   Kind

	// Order-lifecycle payload (Accepted, Rejected, Canceled,
	// CancelReject, Modified, ModifyReject, Triggered).
	OrderID    string
	ArrivalSeq uint64
	Reason     common.RejectReason
	Status     common.Status

	// Trade payload.
	TakerOrderID  string
	MakerOrderID  string
	AggressorSide common.Side
	Price         int64
	Quantity      uint64

	// SnapshotTaken payload.
	Snapshot *Snapshot
}

// Sink is the single-method push interface spec.md §4.6 requires.
// Delivery is synchronous from the matching core's point of view and
// must never fail the engine or block on a slow consumer; a Sink
// implementation owns its own buffering/backpressure and must be safe
// for concurrent use, since multiple symbol workers may deliver at once.
type Sink interface {
	Deliver(Event)
}
