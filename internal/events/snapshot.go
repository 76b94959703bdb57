package events

// LevelView is one price level as exposed in a depth snapshot:
// spec.md §6 "{ price, display_qty, hidden_qty, order_count }".
// Iceberg orders contribute only DisplayQty to depth; HiddenQty
// reports the resting-but-invisible liquidity separately. Both fields
// are carried in the wire snapshot report (internal/net).
type LevelView struct {
	Price      int64
	DisplayQty uint64
	HiddenQty  uint64
	OrderCount int
}

// OrderView is the optional per-order detail a snapshot may include.
type OrderView struct {
	OrderID    string
	Price      int64
	Residual   uint64
	ArrivalSeq uint64
	Owner      string
}

// Snapshot is a consistent, point-in-time view of one symbol's book,
// produced by the symbol's own worker goroutine (spec.md §5) so no
// concurrent mutation can be observed mid-snapshot.
type Snapshot struct {
	Symbol         string
	LastTradePrice int64
	HasLastTrade   bool
	Bids           []LevelView
	Asks           []LevelView
	OrderDetail    map[string][]OrderView // "bids"/"asks" -> ordered detail, optional
}
