package book

import (
	"testing"

	"fenrir/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestSideBook_BestBidIsHighestPrice(t *testing.T) {
	bids := NewSideBook(common.Buy)
	bids.Insert(testOrder("a", 99, 10, 1))
	bids.Insert(testOrder("b", 101, 10, 2))
	bids.Insert(testOrder("c", 100, 10, 3))

	best, ok := bids.Best()
	assert.True(t, ok)
	assert.Equal(t, int64(101), best.Price)
}

func TestSideBook_BestAskIsLowestPrice(t *testing.T) {
	asks := NewSideBook(common.Sell)
	asks.Insert(testOrder("a", 99, 10, 1))
	asks.Insert(testOrder("b", 101, 10, 2))
	asks.Insert(testOrder("c", 100, 10, 3))

	best, ok := asks.Best()
	assert.True(t, ok)
	assert.Equal(t, int64(99), best.Price)
}

func TestSideBook_DropsEmptyLevels(t *testing.T) {
	asks := NewSideBook(common.Sell)
	asks.Insert(testOrder("a", 100, 10, 1))
	assert.Equal(t, 1, asks.Len())

	_, ok := asks.RemoveOrder(100, "a")
	assert.True(t, ok)
	assert.Equal(t, 0, asks.Len())

	_, ok = asks.Best()
	assert.False(t, ok)
}

func TestSideBook_IterateFromBestOrder(t *testing.T) {
	bids := NewSideBook(common.Buy)
	bids.Insert(testOrder("a", 99, 10, 1))
	bids.Insert(testOrder("b", 101, 10, 2))
	bids.Insert(testOrder("c", 100, 10, 3))

	var prices []int64
	bids.IterateFromBest(func(l *PriceLevel) bool {
		prices = append(prices, l.Price)
		return true
	})
	assert.Equal(t, []int64{101, 100, 99}, prices)
}
