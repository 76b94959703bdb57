package book

import (
	"testing"

	"fenrir/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestHeapSideBook_BestBidIsHighestPrice(t *testing.T) {
	bids := NewHeapSideBook(common.Buy)
	bids.Insert(testOrder("a", 99, 10, 1))
	bids.Insert(testOrder("b", 101, 10, 2))
	bids.Insert(testOrder("c", 100, 10, 3))

	best, ok := bids.Best()
	assert.True(t, ok)
	assert.Equal(t, int64(101), best.Price)
}

func TestHeapSideBook_BestAskIsLowestPrice(t *testing.T) {
	asks := NewHeapSideBook(common.Sell)
	asks.Insert(testOrder("a", 99, 10, 1))
	asks.Insert(testOrder("b", 101, 10, 2))
	asks.Insert(testOrder("c", 100, 10, 3))

	best, ok := asks.Best()
	assert.True(t, ok)
	assert.Equal(t, int64(99), best.Price)
}

func TestHeapSideBook_RemoveDrainsLazily(t *testing.T) {
	asks := NewHeapSideBook(common.Sell)
	asks.Insert(testOrder("a", 100, 10, 1))
	asks.Insert(testOrder("b", 101, 10, 2))

	_, ok := asks.RemoveOrder(100, "a")
	assert.True(t, ok)

	best, ok := asks.Best()
	assert.True(t, ok)
	assert.Equal(t, int64(101), best.Price)
}
