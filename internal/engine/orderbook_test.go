package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restingNode(id uint64, side Side, price, quantity, maxVisible uint64) *OrderNode {
	return &OrderNode{Order: NewOrder(id, 0, 0, side, price, quantity, maxVisible)}
}

func TestLevelTracksVisibleAndHiddenVolume(t *testing.T) {
	book := newOrderBook(Symbol{ID: 0, Name: "TEST"})
	n := restingNode(1, Buy, 100, 100, 10)

	update := book.AddOrder(n)
	require.Equal(t, UpdateAdd, update.Kind)

	level := book.BestBid()
	require.NotNil(t, level)
	assert.Equal(t, uint64(100), level.TotalVolume)
	assert.Equal(t, uint64(10), level.VisibleVolume)
	assert.Equal(t, uint64(90), level.HiddenVolume)
	assert.Equal(t, uint64(10), n.Visible())
	assert.Equal(t, uint64(90), n.Hidden())
}

func TestLevelPreservesTimePriority(t *testing.T) {
	book := newOrderBook(Symbol{ID: 0, Name: "TEST"})
	first := restingNode(1, Buy, 100, 10, MaxQuantity)
	second := restingNode(2, Buy, 100, 10, MaxQuantity)

	book.AddOrder(first)
	book.AddOrder(second)

	level := book.BestBid()
	require.NotNil(t, level)
	assert.Same(t, first, level.Front())

	volDelta, hiddenDelta, visibleDelta := first.fill(10)
	book.ReduceOrder(first, volDelta, hiddenDelta, visibleDelta)

	assert.Same(t, second, level.Front())
}

func TestDrainingALevelRemovesItFromTheTree(t *testing.T) {
	book := newOrderBook(Symbol{ID: 0, Name: "TEST"})
	n := restingNode(1, Sell, 50, 20, MaxQuantity)
	book.AddOrder(n)
	require.NotNil(t, book.BestAsk())

	update := book.DeleteOrder(n)
	assert.Equal(t, UpdateDelete, update.Kind)
	assert.Nil(t, book.BestAsk())
	assert.True(t, book.Empty())
}

func TestBestBidIsHighestPriceBestAskIsLowestPrice(t *testing.T) {
	book := newOrderBook(Symbol{ID: 0, Name: "TEST"})
	book.AddOrder(restingNode(1, Buy, 99, 10, MaxQuantity))
	book.AddOrder(restingNode(2, Buy, 101, 10, MaxQuantity))
	book.AddOrder(restingNode(3, Buy, 100, 10, MaxQuantity))
	book.AddOrder(restingNode(4, Sell, 205, 10, MaxQuantity))
	book.AddOrder(restingNode(5, Sell, 201, 10, MaxQuantity))
	book.AddOrder(restingNode(6, Sell, 203, 10, MaxQuantity))

	assert.Equal(t, uint64(101), book.BestBid().Price)
	assert.Equal(t, uint64(201), book.BestAsk().Price)

	prices := func(levels []*Level) []uint64 {
		out := make([]uint64, len(levels))
		for i, l := range levels {
			out[i] = l.Price
		}
		return out
	}
	assert.Equal(t, []uint64{101, 100, 99}, prices(book.Bids()))
	assert.Equal(t, []uint64{201, 203, 205}, prices(book.Asks()))
}

func TestReduceOrderUpdatesLevelVolumeWithoutTrading(t *testing.T) {
	book := newOrderBook(Symbol{ID: 0, Name: "TEST"})
	n := restingNode(1, Buy, 100, 100, MaxQuantity)
	book.AddOrder(n)

	volDelta, hiddenDelta, visibleDelta := n.shrink(40)
	update := book.ReduceOrder(n, volDelta, hiddenDelta, visibleDelta)

	assert.Equal(t, UpdateUpdate, update.Kind)
	assert.Equal(t, uint64(60), book.BestBid().TotalVolume)
	assert.Equal(t, uint64(60), n.Leaves)
}

func TestMarketPriceSynthesisPrefersTransientWatermarkOverBestLevel(t *testing.T) {
	book := newOrderBook(Symbol{ID: 0, Name: "TEST"})
	book.AddOrder(restingNode(1, Buy, 100, 10, MaxQuantity))
	assert.Equal(t, uint64(100), book.MarketPriceBid())

	book.matchingBidPrice = 150
	assert.Equal(t, uint64(150), book.MarketPriceBid())

	book.AddOrder(restingNode(2, Sell, 300, 10, MaxQuantity))
	assert.Equal(t, uint64(300), book.MarketPriceAsk())
	book.matchingAskPrice = 250
	assert.Equal(t, uint64(250), book.MarketPriceAsk())
}
