package book

import (
	"fenrir/internal/common"

	"github.com/tidwall/btree"
)

// LevelBook is the behavior SymbolBook needs from one side of a book.
// SideBook (btree-backed) and HeapSideBook (container/heap-backed,
// see legacy_heap.go) both implement it, so a symbol's storage
// backend is selectable per spec.md §4.3's "balanced BST, skip list,
// or array of levels" note without SymbolBook knowing which one it
// has.
type LevelBook interface {
	Best() (*PriceLevel, bool)
	GetLevel(price int64) (*PriceLevel, bool)
	GetOrCreateLevel(price int64) *PriceLevel
	Insert(o *common.Order)
	RemoveOrder(price int64, orderID string) (*common.Order, bool)
	DropIfEmpty(price int64)
	Len() int
	IterateFromBest(fn func(*PriceLevel) bool)
	Crosses(price int64) bool
}

// SideBook is the price-ordered collection of PriceLevels for one
// side of one symbol's book. Best bid is the maximum price; best ask
// is the minimum price — both are the btree's Min() under a
// side-specific comparator, exactly as the teacher's
// internal/engine/orderbook.go constructs its two BTreeG instances.
//
// No empty level is ever present (spec.md §3 SideBook invariant);
// Remove deletes a level the instant it empties.
type SideBook struct {
	side   common.Side
	levels *btree.BTreeG[*PriceLevel]
}

// NewSideBook creates an empty SideBook. Bids are ordered so the
// highest price is "best" (the tree minimum under a descending
// comparator); asks are ordered so the lowest price is best (ascending).
func NewSideBook(side common.Side) *SideBook {
	var less func(a, b *PriceLevel) bool
	if side == common.Buy {
		less = func(a, b *PriceLevel) bool { return a.Price > b.Price }
	} else {
		less = func(a, b *PriceLevel) bool { return a.Price < b.Price }
	}
	return &SideBook{side: side, levels: btree.NewBTreeG(less)}
}

// Best returns the head level (best price) in O(log n) or better, or
// (nil, false) if the side is empty.
func (s *SideBook) Best() (*PriceLevel, bool) {
	return s.levels.Min()
}

// GetLevel returns the live level at price, if any, without creating one.
func (s *SideBook) GetLevel(price int64) (*PriceLevel, bool) {
	return s.levels.Get(&PriceLevel{Price: price})
}

// GetOrCreateLevel returns the level at price, creating an empty one
// and inserting it into the tree (O(log n)) if it did not already exist.
func (s *SideBook) GetOrCreateLevel(price int64) *PriceLevel {
	if lvl, ok := s.levels.Get(&PriceLevel{Price: price}); ok {
		return lvl
	}
	lvl := NewPriceLevel(price, s.side)
	s.levels.Set(lvl)
	return lvl
}

// Insert places an order on its price level, creating the level if
// needed. The order must already have Side/Price matching this book.
func (s *SideBook) Insert(o *common.Order) {
	lvl := s.GetOrCreateLevel(o.Price)
	lvl.PushBack(o)
}

// RemoveOrder removes an order from the level at price, deleting the
// level from the tree if it becomes empty. Reports whether the order
// was found.
func (s *SideBook) RemoveOrder(price int64, orderID string) (*common.Order, bool) {
	lvl, ok := s.levels.Get(&PriceLevel{Price: price})
	if !ok {
		return nil, false
	}
	o, found := lvl.Remove(orderID)
	if found && lvl.IsEmpty() {
		s.levels.Delete(&PriceLevel{Price: price})
	}
	return o, found
}

// DropIfEmpty removes the level at price from the tree if it is
// present and empty. Called after a level's front order is popped by
// the matching loop.
func (s *SideBook) DropIfEmpty(price int64) {
	if lvl, ok := s.levels.Get(&PriceLevel{Price: price}); ok && lvl.IsEmpty() {
		s.levels.Delete(&PriceLevel{Price: price})
	}
}

// Len returns the number of non-empty price levels.
func (s *SideBook) Len() int { return s.levels.Len() }

// IterateFromBest walks levels from best toward worst, calling fn on
// each; iteration stops early if fn returns false. Deterministic and
// side-effect free on the tree itself.
func (s *SideBook) IterateFromBest(fn func(*PriceLevel) bool) {
	s.levels.Scan(fn)
}

// Crosses reports whether a resting price on this side would cross an
// incoming order at the given price: for the bid side, true if
// bidPrice >= incomingAskPrice is checked by the caller with price as
// the opposing best; this helper only compares this side's best
// against a threshold in the direction appropriate to the side.
func (s *SideBook) Crosses(price int64) bool {
	best, ok := s.Best()
	if !ok {
		return false
	}
	if s.side == common.Buy {
		return best.Price >= price
	}
	return best.Price <= price
}

var _ LevelBook = (*SideBook)(nil)
