package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMarket(t *testing.T) *MarketManager {
	t.Helper()
	m := NewMarketManager(nil)
	require.NoError(t, m.AddSymbol(0, "TEST"))
	require.NoError(t, m.AddOrderBook(0))
	require.NoError(t, m.AddUser(0, "alice"))
	require.NoError(t, m.AddUser(1, "bob"))
	require.NoError(t, m.AddUser(2, "carol"))
	return m
}

func balance(t *testing.T, m *MarketManager, user uint64) int64 {
	t.Helper()
	u, err := m.GetUser(user)
	require.NoError(t, err)
	return u.Balance
}

func TestAddSymbolDuplicate(t *testing.T) {
	m := NewMarketManager(nil)
	require.NoError(t, m.AddSymbol(0, "TEST"))
	assert.ErrorIs(t, m.AddSymbol(0, "TEST"), ErrSymbolDuplicate)
}

func TestAddOrderBookValidatesBeforeAllocating(t *testing.T) {
	m := NewMarketManager(nil)
	assert.ErrorIs(t, m.AddOrderBook(0), ErrSymbolNotFound)
	require.NoError(t, m.AddSymbol(0, "TEST"))
	require.NoError(t, m.AddOrderBook(0))
	assert.ErrorIs(t, m.AddOrderBook(0), ErrOrderBookDuplicate)
}

func TestAddOrderRejectsInvalidIDAndQuantity(t *testing.T) {
	m := newTestMarket(t)
	assert.ErrorIs(t, m.AddOrder(NewBuyOrder(0, 0, 0, 100, 1)), ErrOrderIDInvalid)
	assert.ErrorIs(t, m.AddOrder(NewBuyOrder(1, 0, 0, 100, 0)), ErrOrderQuantityInvalid)
}

func TestAddOrderUnknownBookAndUser(t *testing.T) {
	m := newTestMarket(t)
	assert.ErrorIs(t, m.AddOrder(NewBuyOrder(1, 99, 0, 100, 1)), ErrOrderBookNotFound)
	assert.ErrorIs(t, m.AddOrder(NewBuyOrder(1, 0, 99, 100, 1)), ErrUserNotFound)
}

// Scenario 1: two resting bids, one sweeping ask.
func TestScenarioSweepingAskAgainstTwoBids(t *testing.T) {
	m := newTestMarket(t)
	require.NoError(t, m.AddOrder(NewBuyOrder(1, 0, 0, 62, 10)))
	require.NoError(t, m.AddOrder(NewBuyOrder(2, 0, 1, 63, 20)))
	require.NoError(t, m.AddOrder(NewSellOrder(3, 0, 2, 61, 50)))

	book, err := m.GetOrderBook(0)
	require.NoError(t, err)

	assert.Nil(t, book.BestBid())
	ask := book.BestAsk()
	require.NotNil(t, ask)
	assert.Equal(t, uint64(61), ask.Price)
	assert.Equal(t, uint64(20), ask.TotalVolume)

	assert.Equal(t, int64(-620), balance(t, m, 0))
	assert.Equal(t, int64(-1260), balance(t, m, 1))
	assert.Equal(t, int64(1880), balance(t, m, 2))
}

// Scenario 2: partial fill.
func TestScenarioPartialFill(t *testing.T) {
	m := newTestMarket(t)
	require.NoError(t, m.AddOrder(NewBuyOrder(1, 0, 0, 200, 100)))
	require.NoError(t, m.AddOrder(NewSellOrder(2, 0, 1, 190, 50)))

	book, err := m.GetOrderBook(0)
	require.NoError(t, err)

	bid := book.BestBid()
	require.NotNil(t, bid)
	assert.Equal(t, uint64(200), bid.Price)
	assert.Equal(t, uint64(50), bid.TotalVolume)
	assert.Nil(t, book.BestAsk())

	assert.Equal(t, int64(-10000), balance(t, m, 0))
	assert.Equal(t, int64(10000), balance(t, m, 1))
}

// Scenario 3: exact fill empties the book.
func TestScenarioExactFill(t *testing.T) {
	m := newTestMarket(t)
	require.NoError(t, m.AddOrder(NewBuyOrder(1, 0, 0, 200, 100)))
	require.NoError(t, m.AddOrder(NewSellOrder(2, 0, 1, 200, 100)))

	book, err := m.GetOrderBook(0)
	require.NoError(t, err)
	assert.True(t, book.Empty())

	assert.Equal(t, int64(-20000), balance(t, m, 0))
	assert.Equal(t, int64(20000), balance(t, m, 1))
}

// Scenario 4: unfilled resting order leaves balances untouched.
func TestScenarioUnfilledResting(t *testing.T) {
	m := newTestMarket(t)
	require.NoError(t, m.AddOrder(NewBuyOrder(1, 0, 0, 200, 100)))

	book, err := m.GetOrderBook(0)
	require.NoError(t, err)
	bid := book.BestBid()
	require.NotNil(t, bid)
	assert.Equal(t, uint64(100), bid.TotalVolume)

	assert.Equal(t, int64(0), balance(t, m, 0))
	assert.Equal(t, int64(0), balance(t, m, 1))
}

// Scenario 5: cancelling the resting remainder after a partial fill.
func TestScenarioCancelAfterPartialFill(t *testing.T) {
	m := newTestMarket(t)
	require.NoError(t, m.AddOrder(NewBuyOrder(1, 0, 0, 200, 100)))
	require.NoError(t, m.AddOrder(NewSellOrder(2, 0, 1, 190, 50)))
	require.NoError(t, m.DeleteOrder(1))

	book, err := m.GetOrderBook(0)
	require.NoError(t, err)
	assert.True(t, book.Empty())

	assert.Equal(t, int64(-10000), balance(t, m, 0))
	assert.Equal(t, int64(10000), balance(t, m, 1))
}

// Scenario 6: symmetric sell-side sweep.
func TestScenarioSweepingBidAgainstTwoAsks(t *testing.T) {
	m := newTestMarket(t)
	require.NoError(t, m.AddOrder(NewSellOrder(1, 0, 0, 62, 10)))
	require.NoError(t, m.AddOrder(NewSellOrder(2, 0, 1, 63, 20)))
	require.NoError(t, m.AddOrder(NewBuyOrder(3, 0, 2, 65, 50)))

	book, err := m.GetOrderBook(0)
	require.NoError(t, err)

	assert.Nil(t, book.BestAsk())
	bid := book.BestBid()
	require.NotNil(t, bid)
	assert.Equal(t, uint64(65), bid.Price)
	assert.Equal(t, uint64(20), bid.TotalVolume)

	assert.Equal(t, int64(620), balance(t, m, 0))
	assert.Equal(t, int64(1260), balance(t, m, 1))
	assert.Equal(t, int64(-1880), balance(t, m, 2))
}

func TestDeleteUserCascadeCancelsOpenOrders(t *testing.T) {
	m := newTestMarket(t)
	require.NoError(t, m.AddOrder(NewBuyOrder(1, 0, 0, 200, 100)))

	book, err := m.GetOrderBook(0)
	require.NoError(t, err)
	require.NotNil(t, book.BestBid())

	require.NoError(t, m.DeleteUser(0))
	assert.True(t, book.Empty())
	_, err = m.GetOrder(1)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = m.GetUser(0)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMatchingPriceResetsAfterTopLevelCall(t *testing.T) {
	m := newTestMarket(t)
	require.NoError(t, m.AddOrder(NewBuyOrder(1, 0, 0, 200, 100)))
	require.NoError(t, m.AddOrder(NewSellOrder(2, 0, 1, 190, 50)))

	book, err := m.GetOrderBook(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), book.matchingBidPrice)
	assert.Equal(t, uint64(MaxQuantity), book.matchingAskPrice)
}
