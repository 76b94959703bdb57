package engine

import (
	"errors"
	"sync/atomic"

	"fenrir/internal/book"
	"fenrir/internal/common"
	"fenrir/internal/events"
)

// Errors returned by SymbolBook operations that never reach Validate
// (unknown/terminal targets, FOK infeasibility, duplicate ids).
var (
	ErrDuplicateOrderID     = errors.New("order id already live on this symbol")
	ErrInsufficientLiquidity = errors.New("FOK could not be filled in full")
	ErrUnknownOrder         = errors.New("order id not live on this symbol")
	ErrAlreadyTerminal      = errors.New("order already reached a terminal status")
	ErrModifyToZero         = errors.New("modify to zero quantity; cancel instead")
)

// SymbolBook is the matching core for a single symbol: two SideBooks,
// a StopBook, an order-id index, and the monotonic arrival_seq counter
// (spec.md §3, §4.4). It is single-threaded by construction — the
// Engine's per-symbol worker goroutine is the only caller — so no
// internal locking is needed; this mirrors the teacher's
// internal/engine/orderbook.go OrderBook, generalized from float64
// prices and a single "Match" entry point to int64 ticks and the full
// order-kind/command surface of spec.md §4.
type SymbolBook struct {
	Symbol string

	Bids book.LevelBook
	Asks book.LevelBook
	stops *StopBook

	orders map[string]*common.Order

	nextSeq uint64

	lastTradePrice int64
	hasLastTrade   bool
	lastTradeSeq   uint64
	tradeSeq       uint64

	icebergFilled map[string]uint64

	policy    SelfTradePolicy
	clock     common.Clock
	sink      events.Sink
	globalSeq *atomic.Uint64
}

// NewSymbolBook wires a fresh, empty book for symbol on the given
// backend. globalSeq is shared across every symbol in the Engine so
// event_seq is a single engine-wide monotonic sequence (spec.md §3).
func NewSymbolBook(symbol string, policy SelfTradePolicy, clock common.Clock, sink events.Sink, globalSeq *atomic.Uint64, backend BookBackend) *SymbolBook {
	bids, asks := newSideBooks(backend)
	return &SymbolBook{
		Symbol:        symbol,
		Bids:          bids,
		Asks:          asks,
		stops:         NewStopBook(),
		orders:        make(map[string]*common.Order),
		icebergFilled: make(map[string]uint64),
		policy:        policy,
		clock:         clock,
		sink:          sink,
		globalSeq:     globalSeq,
	}
}

// newSideBooks builds the bid/ask pair for backend.
func newSideBooks(backend BookBackend) (book.LevelBook, book.LevelBook) {
	if backend == HeapBackend {
		return book.NewHeapSideBook(common.Buy), book.NewHeapSideBook(common.Sell)
	}
	return book.NewSideBook(common.Buy), book.NewSideBook(common.Sell)
}

func (sb *SymbolBook) ownBook(side common.Side) book.LevelBook {
	if side == common.Buy {
		return sb.Bids
	}
	return sb.Asks
}

func (sb *SymbolBook) oppositeBook(side common.Side) book.LevelBook {
	if side == common.Buy {
		return sb.Asks
	}
	return sb.Bids
}

func (sb *SymbolBook) nextArrivalSeq() uint64 {
	sb.nextSeq++
	return sb.nextSeq
}

func (sb *SymbolBook) nextTradeSeq() uint64 {
	sb.tradeSeq++
	return sb.tradeSeq
}

func (sb *SymbolBook) nextEventSeq() uint64 {
	return sb.globalSeq.Add(1)
}

func (sb *SymbolBook) deliver(ev events.Event) {
	ev.Seq = sb.nextEventSeq()
	ev.Symbol = sb.Symbol
	ev.Ts = sb.clock.Now()
	sb.sink.Deliver(ev)
}

func (sb *SymbolBook) emitAccepted(o *common.Order) {
	sb.deliver(events.Event{Kind: events.Accepted, OrderID: o.OrderID, ArrivalSeq: o.ArrivalSeq, Status: o.Status})
}

func (sb *SymbolBook) emitRejected(orderID string, reason common.RejectReason) {
	sb.deliver(events.Event{Kind: events.Rejected, OrderID: orderID, Reason: reason, Status: common.Rejected})
}

func (sb *SymbolBook) emitCanceled(o *common.Order, reason common.RejectReason) {
	sb.deliver(events.Event{Kind: events.Canceled, OrderID: o.OrderID, Reason: reason, Status: o.Status})
}

func (sb *SymbolBook) emitCancelReject(orderID string, reason common.RejectReason) {
	sb.deliver(events.Event{Kind: events.CancelReject, OrderID: orderID, Reason: reason})
}

func (sb *SymbolBook) emitModified(o *common.Order) {
	sb.deliver(events.Event{Kind: events.Modified, OrderID: o.OrderID, ArrivalSeq: o.ArrivalSeq, Status: o.Status})
}

func (sb *SymbolBook) emitModifyReject(orderID string, reason common.RejectReason) {
	sb.deliver(events.Event{Kind: events.ModifyReject, OrderID: orderID, Reason: reason})
}

func (sb *SymbolBook) emitTriggered(o *common.Order) {
	sb.deliver(events.Event{Kind: events.Triggered, OrderID: o.OrderID, ArrivalSeq: o.ArrivalSeq, Status: o.Status})
}

func (sb *SymbolBook) emitTrade(t common.Trade) {
	sb.deliver(events.Event{
		Kind:          events.Trade,
		TakerOrderID:  t.TakerOrderID,
		MakerOrderID:  t.MakerOrderID,
		AggressorSide: t.AggressorSide,
		Price:         t.Price,
		Quantity:      t.Quantity,
	})
}

// isAggressive reports whether o would immediately cross the book if
// admitted right now (spec.md §4.4: "Market, or a Limit priced to
// cross").
func (sb *SymbolBook) isAggressive(o *common.Order) bool {
	if o.Kind == common.Market {
		return true
	}
	best, ok := sb.oppositeBook(o.Side).Best()
	if !ok {
		return false
	}
	return sb.crosses(o, best.Price)
}

// crosses reports whether an opposing level at price would trade
// against o.
func (sb *SymbolBook) crosses(o *common.Order, price int64) bool {
	if o.Kind == common.Market {
		return true
	}
	if o.Side == common.Buy {
		return o.Price >= price
	}
	return o.Price <= price
}

func (sb *SymbolBook) selfTrade(taker, maker *common.Order) bool {
	if taker.Owner == "" || maker.Owner == "" {
		return false
	}
	return taker.Owner == maker.Owner
}

// canFillFully performs the FOK dry run of spec.md §4.4: it walks the
// opposing side from best, summing resting quantity without mutating
// anything, and reports whether it can cover o's full residual.
//
// It must mirror matchLoop's self-trade handling exactly, not just
// skip self-trade makers: under CancelTaker/CancelBoth, matchLoop
// stops matching the instant it hits a self-trade maker and cancels
// the taker, so any liquidity resting behind that maker is never
// actually reachable. Only CancelMaker lets the taker keep matching
// past a self-trade maker, so only that policy skips over it here.
func (sb *SymbolBook) canFillFully(o *common.Order) bool {
	remaining := o.Residual
	opposing := sb.oppositeBook(o.Side)
	opposing.IterateFromBest(func(lvl *book.PriceLevel) bool {
		if !sb.crosses(o, lvl.Price) {
			return false
		}
		for _, resting := range lvl.Orders() {
			if sb.selfTrade(o, resting) {
				if sb.policy == CancelMaker {
					continue
				}
				return false
			}
			if resting.Residual >= remaining {
				remaining = 0
				return false
			}
			remaining -= resting.Residual
		}
		return true
	})
	return remaining == 0
}

// Submit admits a new order. Exactly one of {Rejected} or {Accepted,
// ...} is emitted before this returns (spec.md §4.4).
func (sb *SymbolBook) Submit(cmd Command) (string, error) {
	o := common.NewOrder(cmd.Symbol, cmd.Side, cmd.OrderKind, cmd.Price, cmd.StopPrice, cmd.Quantity, cmd.DisplayedQuantity, cmd.Owner, sb.clock.Now())
	if cmd.OrderID != "" {
		o.OrderID = cmd.OrderID
	}

	if err := o.Validate(); err != nil {
		sb.emitRejected(o.OrderID, common.RejectReasonFor(err))
		return "", err
	}
	if _, exists := sb.orders[o.OrderID]; exists {
		sb.emitRejected(o.OrderID, common.ReasonDuplicateOrderID)
		return "", ErrDuplicateOrderID
	}
	o.ArrivalSeq = sb.nextArrivalSeq()

	if o.Kind == common.FOK {
		if !sb.canFillFully(&o) {
			sb.emitRejected(o.OrderID, common.ReasonInsufficientLiquidity)
			return "", ErrInsufficientLiquidity
		}
	}

	op := &o
	sb.orders[op.OrderID] = op
	sb.emitAccepted(op)

	if op.Kind.IsStop() {
		sb.stops.Add(op)
		return op.OrderID, nil
	}

	sb.processIncoming(op)
	return op.OrderID, nil
}

// processIncoming runs the match loop (if aggressive) and then
// disposes of whatever residual remains, per order kind. Used both
// for freshly-submitted orders and for stop orders converted on
// trigger.
func (sb *SymbolBook) processIncoming(o *common.Order) {
	if sb.isAggressive(o) {
		sb.matchLoop(o)
	}
	sb.finalizeResting(o)
	sb.removeIfTerminal(o)
}

// matchLoop sweeps the opposing side from best while o remains
// aggressive and has residual, applying price-time priority and the
// configured self-trade policy (spec.md §4.4).
func (sb *SymbolBook) matchLoop(o *common.Order) {
	opposing := sb.oppositeBook(o.Side)
	for o.Residual > 0 {
		lvl, ok := opposing.Best()
		if !ok {
			return
		}
		if !sb.crosses(o, lvl.Price) {
			return
		}
		maker := lvl.PeekFront()
		if maker == nil {
			opposing.DropIfEmpty(lvl.Price)
			continue
		}
		if sb.selfTrade(o, maker) {
			switch sb.policy {
			case CancelTaker:
				sb.cancelResting(o, common.ReasonSelfTrade)
				return
			case CancelMaker:
				sb.cancelMakerAt(opposing, lvl, maker)
				continue
			case CancelBoth:
				sb.cancelMakerAt(opposing, lvl, maker)
				sb.cancelResting(o, common.ReasonSelfTrade)
				return
			}
		}
		qty := min(o.Residual, maker.Residual)
		sb.applyFill(o, maker, qty, lvl, opposing)
	}
}

// applyFill executes one trade between taker o and the resting maker
// at the front of lvl, updates both residuals, the level's running
// total, last-trade state, and emits the Trade event before handing
// off to stop evaluation (spec.md §4.4, §4.5).
func (sb *SymbolBook) applyFill(o, maker *common.Order, qty uint64, lvl *book.PriceLevel, opposing book.LevelBook) {
	o.Residual -= qty
	maker.Residual -= qty
	lvl.AdjustQty(-int64(qty))

	trade := common.Trade{
		Symbol:        sb.Symbol,
		Seq:           sb.nextTradeSeq(),
		TakerOrderID:  o.OrderID,
		MakerOrderID:  maker.OrderID,
		AggressorSide: o.Side,
		Price:         maker.Price,
		Quantity:      qty,
		Timestamp:     sb.clock.Now(),
	}
	sb.lastTradePrice = trade.Price
	sb.hasLastTrade = true
	sb.lastTradeSeq = trade.Seq
	sb.emitTrade(trade)

	if maker.Residual == 0 {
		lvl.PopFront()
		opposing.DropIfEmpty(lvl.Price)
		maker.Status = common.Filled
		delete(sb.icebergFilled, maker.OrderID)
		sb.removeIfTerminal(maker)
	} else {
		maker.Status = common.PartiallyFilled
		if maker.Kind == common.Iceberg {
			sb.refreshIcebergIfNeeded(maker, qty, lvl)
		}
	}

	if o.Residual == 0 {
		o.Status = common.Filled
	} else {
		o.Status = common.PartiallyFilled
	}

	sb.evaluateStops()
}

// refreshIcebergIfNeeded implements spec.md §4.4's iceberg rule: once
// the currently displayed slice has been exhausted by fills, the next
// slice is shown under a fresh arrival_seq, losing queue priority.
func (sb *SymbolBook) refreshIcebergIfNeeded(o *common.Order, filledQty uint64, lvl *book.PriceLevel) {
	acc := sb.icebergFilled[o.OrderID] + filledQty
	refreshed := false
	for o.DisplayedQuantity > 0 && acc >= o.DisplayedQuantity {
		acc -= o.DisplayedQuantity
		refreshed = true
	}
	sb.icebergFilled[o.OrderID] = acc
	if refreshed {
		lvl.Remove(o.OrderID)
		o.ArrivalSeq = sb.nextArrivalSeq()
		lvl.PushBack(o)
	}
}

func (sb *SymbolBook) cancelResting(o *common.Order, reason common.RejectReason) {
	o.Status = common.Canceled
	sb.emitCanceled(o, reason)
	sb.removeIfTerminal(o)
}

func (sb *SymbolBook) cancelMakerAt(sidebook book.LevelBook, lvl *book.PriceLevel, maker *common.Order) {
	lvl.Remove(maker.OrderID)
	sidebook.DropIfEmpty(lvl.Price)
	delete(sb.icebergFilled, maker.OrderID)
	sb.cancelResting(maker, common.ReasonSelfTrade)
}

// finalizeResting disposes of whatever residual is left after the
// match loop, according to order kind (spec.md §4.4).
func (sb *SymbolBook) finalizeResting(o *common.Order) {
	if o.Residual == 0 || o.Status.IsTerminal() {
		return
	}
	switch o.Kind {
	case common.Limit, common.Iceberg:
		sb.ownBook(o.Side).Insert(o)
		if o.Residual == o.Quantity {
			o.Status = common.Pending
		} else {
			o.Status = common.PartiallyFilled
		}
	case common.Market, common.IOC:
		o.Status = common.Canceled
		sb.emitCanceled(o, common.ReasonUnfilledLiquidity)
	case common.FOK:
		// unreachable: the dry run in Submit guarantees a full fill.
		o.Status = common.Canceled
		sb.emitCanceled(o, common.ReasonInsufficientLiquidity)
	}
}

func (sb *SymbolBook) removeIfTerminal(o *common.Order) {
	if o.Status.IsTerminal() {
		delete(sb.orders, o.OrderID)
	}
}

// evaluateStops runs one round of stop triggering against the most
// recent trade price; any resulting trades recurse back into
// evaluateStops via applyFill, so a cascade runs to completion before
// this returns. It terminates because PopTriggered only ever returns
// orders it removes, so no order can be triggered twice.
func (sb *SymbolBook) evaluateStops() {
	if !sb.hasLastTrade {
		return
	}
	triggered := sb.stops.PopTriggered(sb.lastTradePrice)
	for _, o := range triggered {
		sb.triggerStop(o)
	}
}

func (sb *SymbolBook) triggerStop(o *common.Order) {
	if o.Kind == common.StopLoss {
		o.Kind = common.Market
	} else {
		o.Kind = common.Limit
	}
	o.ArrivalSeq = sb.nextArrivalSeq()
	o.Status = common.Triggered
	sb.emitTriggered(o)
	sb.processIncoming(o)
}

// Cancel removes a live order by id.
func (sb *SymbolBook) Cancel(cmd Command) error {
	o, ok := sb.orders[cmd.TargetOrderID]
	if !ok {
		sb.emitCancelReject(cmd.TargetOrderID, common.ReasonUnknownOrder)
		return ErrUnknownOrder
	}
	if o.Status.IsTerminal() {
		sb.emitCancelReject(cmd.TargetOrderID, common.ReasonAlreadyTerminal)
		return ErrAlreadyTerminal
	}
	if o.Kind.IsStop() {
		sb.stops.Remove(o.OrderID)
	} else {
		sb.ownBook(o.Side).RemoveOrder(o.Price, o.OrderID)
	}
	delete(sb.icebergFilled, o.OrderID)
	o.Status = common.Canceled
	delete(sb.orders, o.OrderID)
	sb.emitCanceled(o, common.ReasonNone)
	return nil
}

// Modify applies spec.md §4.4's modify semantics: a same-price
// decrease mutates residual in place and keeps queue priority; any
// price change or quantity increase is equivalent to a cancel plus
// resubmit, so it loses priority and may immediately match.
func (sb *SymbolBook) Modify(cmd Command) error {
	o, ok := sb.orders[cmd.TargetOrderID]
	if !ok {
		sb.emitModifyReject(cmd.TargetOrderID, common.ReasonUnknownOrder)
		return ErrUnknownOrder
	}
	if o.Status.IsTerminal() {
		sb.emitModifyReject(cmd.TargetOrderID, common.ReasonAlreadyTerminal)
		return ErrAlreadyTerminal
	}
	if cmd.NewQuantity == 0 {
		sb.emitModifyReject(cmd.TargetOrderID, common.ReasonInvalidQuantity)
		return ErrModifyToZero
	}

	if o.Kind.IsStop() {
		o.Price = cmd.NewPrice
		o.StopPrice = cmd.NewPrice
		o.Quantity = cmd.NewQuantity
		o.Residual = cmd.NewQuantity
		sb.emitModified(o)
		return nil
	}

	priceChanged := cmd.NewPrice != o.Price
	growing := cmd.NewQuantity > o.Residual

	if !priceChanged && !growing {
		lvl, ok := sb.ownBook(o.Side).GetLevel(o.Price)
		if !ok {
			sb.emitModifyReject(cmd.TargetOrderID, common.ReasonUnknownOrder)
			return ErrUnknownOrder
		}
		delta := int64(cmd.NewQuantity) - int64(o.Residual)
		lvl.AdjustQty(delta)
		o.Residual = cmd.NewQuantity
		o.Status = common.PartiallyFilled
		sb.emitModified(o)
		return nil
	}

	// Price change or growth: remove from the book and re-enter as if
	// freshly arrived, losing priority.
	sb.ownBook(o.Side).RemoveOrder(o.Price, o.OrderID)
	delete(sb.icebergFilled, o.OrderID)
	o.Price = cmd.NewPrice
	o.Quantity = cmd.NewQuantity
	o.Residual = cmd.NewQuantity
	o.ArrivalSeq = sb.nextArrivalSeq()
	sb.emitModified(o)
	sb.processIncoming(o)
	return nil
}

// Snapshot produces a consistent, point-in-time view of the book
// (spec.md §4.6). Called only from the owning symbol worker, so no
// concurrent mutation can be observed mid-snapshot.
func (sb *SymbolBook) Snapshot(includeOrders bool) *events.Snapshot {
	snap := &events.Snapshot{
		Symbol:         sb.Symbol,
		LastTradePrice: sb.lastTradePrice,
		HasLastTrade:   sb.hasLastTrade,
	}
	sb.Bids.IterateFromBest(func(lvl *book.PriceLevel) bool {
		snap.Bids = append(snap.Bids, levelView(lvl))
		return true
	})
	sb.Asks.IterateFromBest(func(lvl *book.PriceLevel) bool {
		snap.Asks = append(snap.Asks, levelView(lvl))
		return true
	})
	if includeOrders {
		snap.OrderDetail = map[string][]events.OrderView{
			"bids": orderViews(sb.Bids),
			"asks": orderViews(sb.Asks),
		}
	}
	return snap
}

func levelView(lvl *book.PriceLevel) events.LevelView {
	return events.LevelView{
		Price:      lvl.Price,
		DisplayQty: lvl.DisplayQty(),
		HiddenQty:  lvl.TotalQty() - lvl.DisplayQty(),
		OrderCount: lvl.Len(),
	}
}

func orderViews(sidebook book.LevelBook) []events.OrderView {
	var out []events.OrderView
	sidebook.IterateFromBest(func(lvl *book.PriceLevel) bool {
		for _, o := range lvl.Orders() {
			out = append(out, events.OrderView{
				OrderID:    o.OrderID,
				Price:      o.Price,
				Residual:   o.Residual,
				ArrivalSeq: o.ArrivalSeq,
				Owner:      o.Owner,
			})
		}
		return true
	})
	return out
}
