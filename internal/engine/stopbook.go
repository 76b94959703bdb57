package engine

import (
	"sort"

	"fenrir/internal/common"
)

// StopBook holds StopLoss/StopLimit orders that have not yet crossed
// their trigger price. They are not present in either SideBook
// (spec.md §3/§4.4) but are still present in the order-id index, so
// the index-bijection invariant covers "a PriceLevel ... or the stop
// book".
type StopBook struct {
	orders map[string]*common.Order
}

// NewStopBook creates an empty stop book.
func NewStopBook() *StopBook {
	return &StopBook{orders: make(map[string]*common.Order)}
}

// Add admits a stop order to the book.
func (s *StopBook) Add(o *common.Order) { s.orders[o.OrderID] = o }

// Remove removes a stop order by id, reporting whether it was present.
func (s *StopBook) Remove(orderID string) (*common.Order, bool) {
	o, ok := s.orders[orderID]
	if ok {
		delete(s.orders, orderID)
	}
	return o, ok
}

// Contains reports whether orderID is currently held untriggered.
func (s *StopBook) Contains(orderID string) bool {
	_, ok := s.orders[orderID]
	return ok
}

// Len returns the number of untriggered stop orders.
func (s *StopBook) Len() int { return len(s.orders) }

// Orders returns a snapshot of every untriggered stop order.
func (s *StopBook) Orders() []*common.Order {
	out := make([]*common.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

// triggerCondition implements spec.md §4.4: "StopLoss sell: last ≤
// stop; StopLoss buy: last ≥ stop. StopLimit analogous."
func triggerCondition(o *common.Order, lastTradePrice int64) bool {
	if o.Side == common.Sell {
		return lastTradePrice <= o.StopPrice
	}
	return lastTradePrice >= o.StopPrice
}

// PopTriggered removes and returns every stop order whose trigger
// condition holds against lastTradePrice, in a deterministic
// (ascending order-id) order so cascades replay identically.
func (s *StopBook) PopTriggered(lastTradePrice int64) []*common.Order {
	var ids []string
	for id, o := range s.orders {
		if triggerCondition(o, lastTradePrice) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)
	out := make([]*common.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.orders[id])
		delete(s.orders, id)
	}
	return out
}
