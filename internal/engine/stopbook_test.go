package engine

import (
	"testing"

	"fenrir/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stopOrder(id string, side common.Side, stopPrice int64) *common.Order {
	return &common.Order{OrderID: id, Symbol: "AAPL", Side: side, Kind: common.StopLoss, StopPrice: stopPrice, Quantity: 10, Residual: 10}
}

func TestStopBook_PopTriggered_SellTriggersOnPriceAtOrBelow(t *testing.T) {
	sb := NewStopBook()
	sb.Add(stopOrder("s1", common.Sell, 90))

	assert.Empty(t, sb.PopTriggered(95), "sell stop must not trigger above its stop price")
	assert.Equal(t, 1, sb.Len())

	triggered := sb.PopTriggered(90)
	require.Len(t, triggered, 1)
	assert.Equal(t, "s1", triggered[0].OrderID)
	assert.Equal(t, 0, sb.Len())
}

func TestStopBook_PopTriggered_BuyTriggersOnPriceAtOrAbove(t *testing.T) {
	sb := NewStopBook()
	sb.Add(stopOrder("b1", common.Buy, 110))

	assert.Empty(t, sb.PopTriggered(105))
	triggered := sb.PopTriggered(110)
	require.Len(t, triggered, 1)
	assert.Equal(t, "b1", triggered[0].OrderID)
}

func TestStopBook_PopTriggered_DeterministicOrderAndNoDoubleTrigger(t *testing.T) {
	sb := NewStopBook()
	sb.Add(stopOrder("c", common.Sell, 100))
	sb.Add(stopOrder("a", common.Sell, 100))
	sb.Add(stopOrder("b", common.Sell, 100))

	triggered := sb.PopTriggered(100)
	require.Len(t, triggered, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{triggered[0].OrderID, triggered[1].OrderID, triggered[2].OrderID})

	assert.Empty(t, sb.PopTriggered(100), "already-triggered orders must not trigger again")
	assert.Equal(t, 0, sb.Len())
}

func TestStopBook_RemoveAndContains(t *testing.T) {
	sb := NewStopBook()
	sb.Add(stopOrder("x", common.Buy, 100))
	assert.True(t, sb.Contains("x"))

	_, ok := sb.Remove("x")
	assert.True(t, ok)
	assert.False(t, sb.Contains("x"))

	_, ok = sb.Remove("x")
	assert.False(t, ok)
}
