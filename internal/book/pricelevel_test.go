package book

import (
	"testing"
	"time"

	"fenrir/internal/common"
	"github.com/stretchr/testify/assert"
)

func testOrder(id string, price int64, qty uint64, seq uint64) *common.Order {
	o := common.NewOrder("AAPL", common.Buy, common.Limit, price, 0, qty, 0, "", time.Unix(0, 0))
	o.OrderID = id
	o.ArrivalSeq = seq
	return &o
}

func TestPriceLevel_FIFO(t *testing.T) {
	lvl := NewPriceLevel(100, common.Buy)
	lvl.PushBack(testOrder("a", 100, 10, 1))
	lvl.PushBack(testOrder("b", 100, 20, 2))
	lvl.PushBack(testOrder("c", 100, 30, 3))

	assert.Equal(t, uint64(60), lvl.TotalQty())
	assert.Equal(t, "a", lvl.PeekFront().OrderID)

	front := lvl.PopFront()
	assert.Equal(t, "a", front.OrderID)
	assert.Equal(t, uint64(50), lvl.TotalQty())
	assert.Equal(t, "b", lvl.PeekFront().OrderID)
}

func TestPriceLevel_RemoveMiddlePreservesOrder(t *testing.T) {
	lvl := NewPriceLevel(100, common.Buy)
	lvl.PushBack(testOrder("a", 100, 10, 1))
	lvl.PushBack(testOrder("b", 100, 20, 2))
	lvl.PushBack(testOrder("c", 100, 30, 3))

	removed, ok := lvl.Remove("b")
	assert.True(t, ok)
	assert.Equal(t, "b", removed.OrderID)
	assert.Equal(t, uint64(40), lvl.TotalQty())

	ids := []string{}
	for _, o := range lvl.Orders() {
		ids = append(ids, o.OrderID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestPriceLevel_RemoveUnknown(t *testing.T) {
	lvl := NewPriceLevel(100, common.Buy)
	_, ok := lvl.Remove("nope")
	assert.False(t, ok)
}

func TestPriceLevel_IsEmptyAfterDraining(t *testing.T) {
	lvl := NewPriceLevel(100, common.Sell)
	lvl.PushBack(testOrder("a", 100, 10, 1))
	assert.False(t, lvl.IsEmpty())
	lvl.PopFront()
	assert.True(t, lvl.IsEmpty())
}
