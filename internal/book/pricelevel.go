// Package book implements the price-ordered collections that sit
// beneath a SymbolBook: a FIFO PriceLevel per price point, and a
// btree-backed SideBook of levels per side.
package book

import "fenrir/internal/common"

// node is an intrusive doubly-linked-list element. PriceLevel holds
// orders by *common.Order pointer — a logical, non-owning reference;
// the SymbolBook's order-id index is the sole owner (spec.md §9).
type node struct {
	order      *common.Order
	prev, next *node
}

// PriceLevel is a FIFO queue of live orders at one price, for one
// side. Earlier arrival_seq is always served first: PushBack/PopFront
// preserve insertion order, and Remove never reorders the remaining
// orders.
type PriceLevel struct {
	Price int64
	Side  common.Side

	head, tail *node
	index      map[string]*node
	totalQty   uint64
}

// NewPriceLevel creates an empty level at price for side.
func NewPriceLevel(price int64, side common.Side) *PriceLevel {
	return &PriceLevel{
		Price: price,
		Side:  side,
		index: make(map[string]*node),
	}
}

// PushBack appends an order to the tail of the queue, i.e. it is
// served last among current occupants. Callers must have already
// verified order.Price == level.Price and order.Side == level.Side.
func (l *PriceLevel) PushBack(o *common.Order) {
	n := &node{order: o}
	if l.tail == nil {
		l.head, l.tail = n, n
	} else {
		n.prev = l.tail
		l.tail.next = n
		l.tail = n
	}
	l.index[o.OrderID] = n
	l.totalQty += o.Residual
}

// PeekFront returns the order at the head of the queue without
// removing it, or nil if the level is empty.
func (l *PriceLevel) PeekFront() *common.Order {
	if l.head == nil {
		return nil
	}
	return l.head.order
}

// PopFront removes and returns the head order, or nil if empty.
func (l *PriceLevel) PopFront() *common.Order {
	if l.head == nil {
		return nil
	}
	n := l.head
	l.unlink(n)
	return n.order
}

// Remove removes the order with the given id from anywhere in the
// queue in O(1) via the secondary index, without disturbing the
// relative order of the remaining orders. Reports whether it was
// present.
func (l *PriceLevel) Remove(orderID string) (*common.Order, bool) {
	n, ok := l.index[orderID]
	if !ok {
		return nil, false
	}
	l.unlink(n)
	return n.order, true
}

func (l *PriceLevel) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
	delete(l.index, n.order.OrderID)
	l.totalQty -= n.order.Residual
}

// AdjustQty updates the level's running total after an order's
// residual changes in place (a trade fill, or a same-price modify
// that only shrinks residual). It does not move the order within the
// queue.
func (l *PriceLevel) AdjustQty(delta int64) {
	if delta < 0 {
		l.totalQty -= uint64(-delta)
	} else {
		l.totalQty += uint64(delta)
	}
}

// TotalQty is the sum of residual quantity of every live order on the
// level (spec.md §3 PriceLevel invariant (b)).
func (l *PriceLevel) TotalQty() uint64 { return l.totalQty }

// DisplayQty is the sum of each order's visible quantity — equal to
// TotalQty unless the level holds Iceberg orders with hidden residual.
func (l *PriceLevel) DisplayQty() uint64 {
	var sum uint64
	for n := l.head; n != nil; n = n.next {
		sum += n.order.DisplayQty()
	}
	return sum
}

// IsEmpty reports whether the level has no live orders; an empty
// level must be removed from its SideBook (spec.md §3 invariant (c)).
func (l *PriceLevel) IsEmpty() bool { return l.head == nil }

// Len returns the number of live orders on the level.
func (l *PriceLevel) Len() int { return len(l.index) }

// Orders returns the live orders from front (earliest arrival_seq) to
// back, for snapshotting and testing. The returned slice is a copy;
// mutating it does not affect the level.
func (l *PriceLevel) Orders() []*common.Order {
	out := make([]*common.Order, 0, l.Len())
	for n := l.head; n != nil; n = n.next {
		out = append(out, n.order)
	}
	return out
}
