package book

import (
	"container/heap"
	"sort"

	"fenrir/internal/common"
)

// HeapSideBook is an alternative LevelBook implementation backed by
// container/heap instead of a btree, kept as the array/heap variant
// spec.md §4.3 allows ("balanced BST, skip list, or array of levels").
// It never removes a level from the middle of the heap: an emptied
// level leaves the price index at once and is popped from the heap
// lazily, once it reaches the root, by Best. It is a reasonable choice for a
// symbol with few distinct price levels, where the btree's balancing
// overhead buys little. Selected per symbol via
// config.Server.BookBackend / engine.HeapBackend (see
// internal/engine/symbolbook.go's newSideBooks).
//
// This is the same queue the teacher's internal/book/buy_book.go and
// internal/book/sell_book.go implemented against container/heap, with
// the tie-break fixed from wall-clock nanoseconds (flagged in spec.md
// §9 as an inconsistent, non-monotonic ordering) to arrival_seq.
type HeapSideBook struct {
	side   common.Side
	levels *levelHeap
	byPx   map[int64]*PriceLevel
}

// NewHeapSideBook creates an empty heap-backed SideBook for side.
func NewHeapSideBook(side common.Side) *HeapSideBook {
	h := &levelHeap{side: side}
	heap.Init(h)
	return &HeapSideBook{side: side, levels: h, byPx: make(map[int64]*PriceLevel)}
}

// Best returns the top-of-book level, or (nil, false) if empty.
func (s *HeapSideBook) Best() (*PriceLevel, bool) {
	for s.levels.Len() > 0 {
		lvl := s.levels.data[0]
		if !lvl.IsEmpty() {
			return lvl, true
		}
		// Drop stale empty levels lazily, mirroring the teacher's
		// "skip zero-sized entries" approach from the quantcup-style
		// sweep, adapted to whole levels instead of individual orders.
		heap.Pop(s.levels)
		if s.byPx[lvl.Price] == lvl {
			delete(s.byPx, lvl.Price)
		}
	}
	return nil, false
}

// GetLevel returns the live level at price, if any, without creating one.
func (s *HeapSideBook) GetLevel(price int64) (*PriceLevel, bool) {
	lvl, ok := s.byPx[price]
	return lvl, ok
}

// GetOrCreateLevel returns the level at price, creating and
// heap-pushing an empty one if it did not already exist.
func (s *HeapSideBook) GetOrCreateLevel(price int64) *PriceLevel {
	if lvl, ok := s.byPx[price]; ok {
		return lvl
	}
	lvl := NewPriceLevel(price, s.side)
	s.byPx[price] = lvl
	heap.Push(s.levels, lvl)
	return lvl
}

// Insert places an order on its price level, creating and
// heap-pushing the level if it did not already exist.
func (s *HeapSideBook) Insert(o *common.Order) {
	lvl := s.GetOrCreateLevel(o.Price)
	lvl.PushBack(o)
}

// RemoveOrder removes an order from its level, dropping the level
// from the index once it empties (actual heap removal is deferred to
// the next Best() call, as in the teacher's lazy-cleanup style).
func (s *HeapSideBook) RemoveOrder(price int64, orderID string) (*common.Order, bool) {
	lvl, ok := s.byPx[price]
	if !ok {
		return nil, false
	}
	o, found := lvl.Remove(orderID)
	if found && lvl.IsEmpty() {
		delete(s.byPx, price)
	}
	return o, found
}

// DropIfEmpty removes the level at price from the index if it is
// present and empty. Actual heap-slice removal stays deferred to the
// next Best() call, matching RemoveOrder's lazy-cleanup style.
func (s *HeapSideBook) DropIfEmpty(price int64) {
	if lvl, ok := s.byPx[price]; ok && lvl.IsEmpty() {
		delete(s.byPx, price)
	}
}

// Len returns the number of distinct live price levels. Emptied levels
// leave the index at once, so they are not counted even while they
// still sit in the heap awaiting lazy removal.
func (s *HeapSideBook) Len() int { return len(s.byPx) }

// IterateFromBest walks non-empty levels from best toward worst. The
// heap array is only root-ordered, so this sorts a snapshot of the
// live levels rather than draining the heap itself.
func (s *HeapSideBook) IterateFromBest(fn func(*PriceLevel) bool) {
	levels := make([]*PriceLevel, 0, len(s.byPx))
	for _, lvl := range s.byPx {
		if !lvl.IsEmpty() {
			levels = append(levels, lvl)
		}
	}
	sort.Slice(levels, func(i, j int) bool {
		if s.side == common.Buy {
			return levels[i].Price > levels[j].Price
		}
		return levels[i].Price < levels[j].Price
	})
	for _, lvl := range levels {
		if !fn(lvl) {
			return
		}
	}
}

// Crosses reports whether this side's best price would cross an
// incoming order at price, mirroring SideBook.Crosses.
func (s *HeapSideBook) Crosses(price int64) bool {
	best, ok := s.Best()
	if !ok {
		return false
	}
	if s.side == common.Buy {
		return best.Price >= price
	}
	return best.Price <= price
}

var _ LevelBook = (*HeapSideBook)(nil)

// levelHeap is the container/heap.Interface glue. Ordering matches
// SideBook: descending price for Buy (so Min-heap root is the highest
// bid), ascending for Sell.
type levelHeap struct {
	side common.Side
	data []*PriceLevel
}

func (h *levelHeap) Len() int { return len(h.data) }

func (h *levelHeap) Less(i, j int) bool {
	if h.side == common.Buy {
		return h.data[i].Price > h.data[j].Price
	}
	return h.data[i].Price < h.data[j].Price
}

func (h *levelHeap) Swap(i, j int) { h.data[i], h.data[j] = h.data[j], h.data[i] }

func (h *levelHeap) Push(x any) { h.data = append(h.data, x.(*PriceLevel)) }

func (h *levelHeap) Pop() any {
	old := h.data
	n := len(old)
	lvl := old[n-1]
	old[n-1] = nil
	h.data = old[:n-1]
	return lvl
}
