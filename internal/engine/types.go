package engine

import "fenrir/internal/common"

// SelfTradePolicy decides what happens when a taker and resting maker
// share an owner (spec.md §4.4). Skipped entirely when owners are not
// tracked (either order's Owner is empty).
type SelfTradePolicy uint8

const (
	// CancelTaker cancels the remainder of the incoming order and lets
	// the resting maker stand. This is the spec.md default.
	CancelTaker SelfTradePolicy = iota
	// CancelMaker cancels the resting order and lets the taker continue
	// matching against the next resting order, on the same level or the
	// next one.
	CancelMaker
	// CancelBoth cancels both the taker's remainder and the maker.
	CancelBoth
)

func (p SelfTradePolicy) String() string {
	switch p {
	case CancelTaker:
		return "CancelTaker"
	case CancelMaker:
		return "CancelMaker"
	case CancelBoth:
		return "CancelBoth"
	default:
		return "Unknown"
	}
}

// BookBackend selects which book.LevelBook implementation a symbol's
// SideBooks are built on (spec.md §4.3 leaves the level container
// unspecified: "balanced BST, skip list, or array of levels").
type BookBackend uint8

const (
	// BTreeBackend uses book.SideBook (tidwall/btree), the default:
	// O(log n) best-price access regardless of how many distinct
	// price levels a symbol carries.
	BTreeBackend BookBackend = iota
	// HeapBackend uses book.HeapSideBook (container/heap), a lighter
	// choice for a symbol expected to hold few distinct price levels.
	HeapBackend
)

func (b BookBackend) String() string {
	switch b {
	case BTreeBackend:
		return "BTree"
	case HeapBackend:
		return "Heap"
	default:
		return "Unknown"
	}
}

// CommandKind is the closed set of operations the Engine accepts,
// mirroring spec.md §6's command envelope `type` field.
type CommandKind uint8

const (
	CmdSubmit CommandKind = iota
	CmdCancel
	CmdModify
	CmdSnapshot
)

func (k CommandKind) String() string {
	switch k {
	case CmdSubmit:
		return "Submit"
	case CmdCancel:
		return "Cancel"
	case CmdModify:
		return "Modify"
	case CmdSnapshot:
		return "Snapshot"
	default:
		return "Unknown"
	}
}

// Command is the envelope spec.md §6 describes:
// { type, symbol, order_id?, side?, kind?, price?, stop_price?,
//   quantity?, displayed_quantity?, client_seq }.
// Exactly the fields relevant to Kind are meaningful; unused fields
// are zero.
type Command struct {
	Kind       CommandKind
	Symbol     string
	ClientSeq  uint64
	Owner      string

	// Submit fields.
	OrderID           string // set by the caller only for duplicate-detection tests; normally assigned fresh
	Side              common.Side
	OrderKind         common.Kind
	Price             int64
	StopPrice         int64
	Quantity          uint64
	DisplayedQuantity uint64

	// Cancel/Modify fields.
	TargetOrderID string
	NewPrice      int64
	NewQuantity   uint64
}
