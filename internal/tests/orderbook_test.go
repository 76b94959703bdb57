package tests

import (
	"sync/atomic"
	"testing"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

func newTestBook(policy engine.SelfTradePolicy) (*engine.SymbolBook, *events.RecordingSink) {
	return newTestBookWithBackend(policy, engine.BTreeBackend)
}

func newTestBookWithBackend(policy engine.SelfTradePolicy, backend engine.BookBackend) (*engine.SymbolBook, *events.RecordingSink) {
	sink := events.NewRecordingSink()
	var seq atomic.Uint64
	sb := engine.NewSymbolBook("AAPL", policy, common.NewManualClock(time.Unix(0, 0)), sink, &seq, backend)
	return sb, sink
}

func placeLimit(t *testing.T, sb *engine.SymbolBook, side common.Side, price int64, qty uint64, owner string) string {
	t.Helper()
	id, err := sb.Submit(engine.Command{
		Kind:      engine.CmdSubmit,
		Symbol:    "AAPL",
		Side:      side,
		OrderKind: common.Limit,
		Price:     price,
		Quantity:  qty,
		Owner:     owner,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

// --- Tests -------------------------------------------------------------------

func TestSubmit_SimpleMatch(t *testing.T) {
	sb, sink := newTestBook(engine.CancelTaker)

	placeLimit(t, sb, common.Sell, 100, 50, "")
	takerID, err := sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Buy,
		OrderKind: common.Limit, Price: 100, Quantity: 50,
	})
	require.NoError(t, err)
	require.NotEmpty(t, takerID)

	trades := filterKind(sink.Events(), events.Trade)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(100), trades[0].Price)
	assert.Equal(t, uint64(50), trades[0].Quantity)

	_, askBest := sb.Asks.Best()
	assert.False(t, askBest, "ask side should be fully consumed")
}

func TestSubmit_FIFOAtSamePrice(t *testing.T) {
	sb, sink := newTestBook(engine.CancelTaker)

	first := placeLimit(t, sb, common.Sell, 100, 30, "")
	placeLimit(t, sb, common.Sell, 100, 30, "")

	_, err := sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Buy,
		OrderKind: common.Limit, Price: 100, Quantity: 30,
	})
	require.NoError(t, err)

	trades := filterKind(sink.Events(), events.Trade)
	require.Len(t, trades, 1)
	assert.Equal(t, first, trades[0].MakerOrderID, "earlier arrival at the same price must fill first")
}

func TestSubmit_MarketSweepWithPartialResidual(t *testing.T) {
	sb, sink := newTestBook(engine.CancelTaker)

	placeLimit(t, sb, common.Sell, 100, 20, "")
	placeLimit(t, sb, common.Sell, 101, 20, "")

	_, err := sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Buy,
		OrderKind: common.Market, Quantity: 50,
	})
	require.NoError(t, err)

	trades := filterKind(sink.Events(), events.Trade)
	require.Len(t, trades, 2)
	assert.Equal(t, int64(100), trades[0].Price)
	assert.Equal(t, int64(101), trades[1].Price)

	canceled := filterKind(sink.Events(), events.Canceled)
	require.Len(t, canceled, 1)
	assert.Equal(t, common.ReasonUnfilledLiquidity, canceled[0].Reason, "market order with no remaining liquidity cancels its residual")
}

func TestSubmit_FOKRejectsWithoutMutatingBook(t *testing.T) {
	sb, sink := newTestBook(engine.CancelTaker)

	placeLimit(t, sb, common.Sell, 100, 20, "")

	_, err := sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Buy,
		OrderKind: common.FOK, Price: 100, Quantity: 50,
	})
	assert.ErrorIs(t, err, engine.ErrInsufficientLiquidity)

	rejected := filterKind(sink.Events(), events.Rejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, common.ReasonInsufficientLiquidity, rejected[0].Reason)

	lvl, ok := sb.Asks.GetLevel(100)
	require.True(t, ok)
	assert.Equal(t, uint64(20), lvl.TotalQty(), "a rejected FOK must leave the book untouched")
}

func TestSubmit_IcebergRefreshesSliceAndLosesPriority(t *testing.T) {
	sb, _ := newTestBook(engine.CancelTaker)

	icebergID, err := sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Sell,
		OrderKind: common.Iceberg, Price: 100, Quantity: 30, DisplayedQuantity: 10,
	})
	require.NoError(t, err)

	lvl, ok := sb.Asks.GetLevel(100)
	require.True(t, ok)
	assert.Equal(t, uint64(10), lvl.DisplayQty())
	assert.Equal(t, uint64(20), lvl.TotalQty()-lvl.DisplayQty())
	seqBefore := lvl.Orders()[0].ArrivalSeq

	_, err = sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Buy,
		OrderKind: common.Limit, Price: 100, Quantity: 10,
	})
	require.NoError(t, err)

	lvl, ok = sb.Asks.GetLevel(100)
	require.True(t, ok, "iceberg still has hidden residual after its displayed slice fills")
	assert.Equal(t, uint64(10), lvl.DisplayQty(), "refreshed slice shows the next 10 units")
	assert.Equal(t, uint64(10), lvl.TotalQty()-lvl.DisplayQty())

	orders := lvl.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, icebergID, orders[0].OrderID)
	assert.Greater(t, orders[0].ArrivalSeq, seqBefore, "the refreshed slice takes a fresh arrival_seq")
}

func TestSubmit_StopTriggerCascade(t *testing.T) {
	sb, sink := newTestBook(engine.CancelTaker)

	placeLimit(t, sb, common.Sell, 100, 10, "")
	placeLimit(t, sb, common.Sell, 105, 10, "")

	_, err := sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Buy,
		OrderKind: common.StopLoss, StopPrice: 100, Quantity: 10,
	})
	require.NoError(t, err)

	triggered := filterKind(sink.Events(), events.Triggered)
	assert.Empty(t, triggered, "stop must not trigger before any trade happens")

	_, err = sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Buy,
		OrderKind: common.Limit, Price: 100, Quantity: 10,
	})
	require.NoError(t, err)

	triggered = filterKind(sink.Events(), events.Triggered)
	require.Len(t, triggered, 1, "a trade at or above the stop price must trigger the stop")

	trades := filterKind(sink.Events(), events.Trade)
	require.Len(t, trades, 2, "the triggered stop converts to a market order and trades immediately")
	assert.Equal(t, int64(100), trades[0].Price, "the limit order trades first, setting the last trade price")
	assert.Equal(t, int64(105), trades[1].Price, "the triggered market order sweeps the next best level")
}

func TestSubmit_SelfTradeCancelsTaker(t *testing.T) {
	sb, sink := newTestBook(engine.CancelTaker)

	placeLimit(t, sb, common.Sell, 100, 20, "alice")
	_, err := sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Buy,
		OrderKind: common.Limit, Price: 100, Quantity: 20, Owner: "alice",
	})
	require.NoError(t, err)

	assert.Empty(t, filterKind(sink.Events(), events.Trade), "same-owner orders must never trade against each other")
	canceled := filterKind(sink.Events(), events.Canceled)
	require.Len(t, canceled, 1)
	assert.Equal(t, common.ReasonSelfTrade, canceled[0].Reason)
}

func TestCancel_RemovesRestingOrder(t *testing.T) {
	sb, sink := newTestBook(engine.CancelTaker)

	id := placeLimit(t, sb, common.Buy, 99, 10, "")
	err := sb.Cancel(engine.Command{Symbol: "AAPL", TargetOrderID: id})
	require.NoError(t, err)

	_, ok := sb.Bids.Best()
	assert.False(t, ok)

	canceled := filterKind(sink.Events(), events.Canceled)
	require.Len(t, canceled, 1)
	assert.Equal(t, id, canceled[0].OrderID)
}

func TestModify_SamePriceShrinkKeepsPriority(t *testing.T) {
	sb, _ := newTestBook(engine.CancelTaker)

	first := placeLimit(t, sb, common.Buy, 99, 10, "")
	placeLimit(t, sb, common.Buy, 99, 10, "")

	err := sb.Modify(engine.Command{Symbol: "AAPL", TargetOrderID: first, NewPrice: 99, NewQuantity: 5})
	require.NoError(t, err)

	lvl, ok := sb.Bids.GetLevel(99)
	require.True(t, ok)
	orders := lvl.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, first, orders[0].OrderID, "a same-price shrink keeps the order at the front of the queue")
	assert.Equal(t, uint64(5), orders[0].Residual)
}

func TestSubmit_HeapBackendMatchesLikeBTreeBackend(t *testing.T) {
	sb, sink := newTestBookWithBackend(engine.CancelTaker, engine.HeapBackend)

	placeLimit(t, sb, common.Sell, 101, 5, "")
	placeLimit(t, sb, common.Sell, 100, 5, "")

	_, err := sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Buy,
		OrderKind: common.Market, Quantity: 10,
	})
	require.NoError(t, err)

	trades := filterKind(sink.Events(), events.Trade)
	require.Len(t, trades, 2, "the heap backend must still match best price first")
	assert.Equal(t, int64(100), trades[0].Price, "lowest resting ask fills first regardless of book backend")
	assert.Equal(t, int64(101), trades[1].Price)
}

func TestSubmit_FOKRejectsWhenOnlyLiquidityIsSelfTrade(t *testing.T) {
	sb, sink := newTestBook(engine.CancelTaker)

	placeLimit(t, sb, common.Sell, 100, 10, "alice")

	_, err := sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Buy,
		OrderKind: common.FOK, Price: 100, Quantity: 10, Owner: "alice",
	})
	require.Error(t, err, "under CancelTaker, matchLoop would cancel the taker on the self-trade instead of filling it, so canFillFully must reject up front")

	assert.Empty(t, filterKind(sink.Events(), events.Trade))
	rejected := filterKind(sink.Events(), events.Rejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, common.ReasonInsufficientLiquidity, rejected[0].Reason)
}

func TestSubmit_FOKSkipsSelfTradeMakerUnderCancelMakerPolicy(t *testing.T) {
	sb, sink := newTestBookWithBackend(engine.CancelMaker, engine.BTreeBackend)

	placeLimit(t, sb, common.Sell, 100, 10, "alice")
	placeLimit(t, sb, common.Sell, 101, 10, "bob")

	_, err := sb.Submit(engine.Command{
		Kind: engine.CmdSubmit, Symbol: "AAPL", Side: common.Buy,
		OrderKind: common.FOK, Price: 101, Quantity: 10, Owner: "alice",
	})
	require.NoError(t, err, "CancelMaker lets the taker skip past its own resting order and reach bob's liquidity")

	trades := filterKind(sink.Events(), events.Trade)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(101), trades[0].Price)
}

func filterKind(evs []events.Event, kind events.Kind) []events.Event {
	var out []events.Event
	for _, ev := range evs {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
