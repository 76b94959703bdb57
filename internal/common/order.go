// Package common holds the value types shared by the book, engine, and
// wire-protocol layers: orders, trades, sides, and the closed set of
// order kinds and statuses the matching core understands.
package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Side is which side of the book an order rests on or crosses.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// Kind is the closed set of order types the core supports. Unknown
// kinds are rejected at the ingress (internal/net), never here.
type Kind uint8

const (
	Limit Kind = iota
	Market
	IOC
	FOK
	Iceberg
	StopLoss
	StopLimit
)

func (k Kind) String() string {
	switch k {
	case Limit:
		return "Limit"
	case Market:
		return "Market"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	case Iceberg:
		return "Iceberg"
	case StopLoss:
		return "StopLoss"
	case StopLimit:
		return "StopLimit"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// IsStop reports whether the kind is held in the stop book until
// triggered, rather than resting directly on a SideBook.
func (k Kind) IsStop() bool {
	return k == StopLoss || k == StopLimit
}

// Status is an order's lifecycle state. Terminal statuses are Filled,
// Canceled, Rejected, and Expired; Pending, PartiallyFilled, and
// Triggered are live.
type Status uint8

const (
	Pending Status = iota
	PartiallyFilled
	Filled
	Canceled
	Rejected
	Expired
	Triggered
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case PartiallyFilled:
		return "PartiallyFilled"
	case Filled:
		return "Filled"
	case Canceled:
		return "Canceled"
	case Rejected:
		return "Rejected"
	case Expired:
		return "Expired"
	case Triggered:
		return "Triggered"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// IsTerminal reports whether no further mutation of the order is
// possible; a terminal order is destroyed (removed from all indices).
func (s Status) IsTerminal() bool {
	return s == Filled || s == Canceled || s == Rejected || s == Expired
}

// RejectReason is the closed taxonomy of non-fatal reject causes.
type RejectReason uint8

const (
	ReasonNone RejectReason = iota
	ReasonInvalidPrice
	ReasonInvalidQuantity
	ReasonInvalidDisplayQuantity
	ReasonInvalidSide
	ReasonUnsupportedKind
	ReasonUnknownSymbol
	ReasonDuplicateOrderID
	ReasonMissingStopPrice
	ReasonUnfilledLiquidity
	ReasonInsufficientLiquidity
	ReasonUnknownOrder
	ReasonAlreadyTerminal
	ReasonSelfTrade
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonInvalidPrice:
		return "InvalidPrice"
	case ReasonInvalidQuantity:
		return "InvalidQuantity"
	case ReasonInvalidDisplayQuantity:
		return "InvalidDisplayQuantity"
	case ReasonInvalidSide:
		return "InvalidSide"
	case ReasonUnsupportedKind:
		return "UnsupportedKind"
	case ReasonUnknownSymbol:
		return "UnknownSymbol"
	case ReasonDuplicateOrderID:
		return "DuplicateOrderID"
	case ReasonMissingStopPrice:
		return "MissingStopPrice"
	case ReasonUnfilledLiquidity:
		return "UnfilledLiquidity"
	case ReasonInsufficientLiquidity:
		return "InsufficientLiquidity"
	case ReasonUnknownOrder:
		return "UnknownOrder"
	case ReasonAlreadyTerminal:
		return "AlreadyTerminal"
	case ReasonSelfTrade:
		return "SelfTrade"
	default:
		return fmt.Sprintf("RejectReason(%d)", uint8(r))
	}
}

// Validation errors returned by Validate. These never propagate out
// of a command as panics or exceptions; the matching core turns them
// into Rejected events.
var (
	ErrInvalidPrice           = errors.New("price must be > 0 for a priced order")
	ErrInvalidQuantity        = errors.New("quantity must be > 0")
	ErrInvalidDisplayQuantity = errors.New("displayed_quantity must be in (0, quantity]")
	ErrInvalidSide            = errors.New("side must be Buy or Sell")
	ErrMissingStopPrice       = errors.New("stop_price required for StopLoss/StopLimit")
)

// Order is the mutable-residual, immutable-identity entity the
// SymbolBook owns. Price is in integer ticks; quantities are base
// units. No field is floating point anywhere in the matching core.
type Order struct {
	OrderID           string
	Symbol            string
	Side              Side
	Kind              Kind
	Price             int64 // absent (zero) for Market
	StopPrice         int64 // present iff Kind.IsStop()
	Quantity          uint64
	DisplayedQuantity uint64 // for Iceberg; 0 means "not an iceberg"
	Residual          uint64
	ArrivalSeq        uint64
	TsArrival         time.Time
	Status            Status
	Owner             string // empty means "owners not tracked"
}

// NewOrder constructs an order from submit parameters, assigning a
// fresh UUID. It does not assign ArrivalSeq (the SymbolBook does that
// at admission) and does not validate (callers must call Validate).
func NewOrder(symbol string, side Side, kind Kind, price, stopPrice int64, qty, displayQty uint64, owner string, now time.Time) Order {
	return Order{
		OrderID:           uuid.New().String(),
		Symbol:            symbol,
		Side:              side,
		Kind:              kind,
		Price:             price,
		StopPrice:         stopPrice,
		Quantity:          qty,
		DisplayedQuantity: displayQty,
		Residual:          qty,
		TsArrival:         now,
		Status:            Pending,
		Owner:             owner,
	}
}

// Validate checks the invariants of spec.md §4.1. It is pure and
// side-effect free; callers map the returned error to a RejectReason.
func (o Order) Validate() error {
	if o.Side != Buy && o.Side != Sell {
		return ErrInvalidSide
	}
	if o.Quantity == 0 {
		return ErrInvalidQuantity
	}
	if o.Kind != Market && o.Kind != StopLoss && o.Price <= 0 {
		return ErrInvalidPrice
	}
	if o.Kind == Iceberg {
		if o.DisplayedQuantity == 0 || o.DisplayedQuantity > o.Quantity {
			return ErrInvalidDisplayQuantity
		}
	}
	if o.Kind.IsStop() && o.StopPrice <= 0 {
		return ErrMissingStopPrice
	}
	return nil
}

// RejectReasonFor maps a Validate error to the closed taxonomy used on
// the wire and in events.
func RejectReasonFor(err error) RejectReason {
	switch {
	case errors.Is(err, ErrInvalidPrice):
		return ReasonInvalidPrice
	case errors.Is(err, ErrInvalidQuantity):
		return ReasonInvalidQuantity
	case errors.Is(err, ErrInvalidDisplayQuantity):
		return ReasonInvalidDisplayQuantity
	case errors.Is(err, ErrInvalidSide):
		return ReasonInvalidSide
	case errors.Is(err, ErrMissingStopPrice):
		return ReasonMissingStopPrice
	default:
		return ReasonNone
	}
}

// DisplayQty returns the quantity visible in a depth snapshot: the
// full residual for ordinary orders, or the advertised slice for an
// Iceberg order (capped at the remaining residual).
func (o Order) DisplayQty() uint64 {
	if o.Kind != Iceberg || o.DisplayedQuantity == 0 {
		return o.Residual
	}
	if o.DisplayedQuantity < o.Residual {
		return o.DisplayedQuantity
	}
	return o.Residual
}

// HiddenQty is the portion of residual not shown in depth.
func (o Order) HiddenQty() uint64 {
	return o.Residual - o.DisplayQty()
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{id=%s symbol=%s side=%s kind=%s price=%d stop=%d qty=%d/%d seq=%d status=%s owner=%q}",
		o.OrderID, o.Symbol, o.Side, o.Kind, o.Price, o.StopPrice,
		o.Residual, o.Quantity, o.ArrivalSeq, o.Status, o.Owner,
	)
}
