package engine

import (
	"github.com/tidwall/btree"
)

// levelTree is the ordered-by-price container behind every side of the
// book. Six of them live on one OrderBook: bids, asks, buy-stop,
// sell-stop, trailing-buy-stop, trailing-sell-stop. Whichever
// comparator a tree is built with, Min() always returns that tree's
// "best" level — see newOrderBook for why each of the six is wired the
// way it is.
type levelTree = btree.BTreeG[*Level]

// OrderBook is the per-symbol container of level trees, best-level
// accessors (computed on demand from the trees rather than cached, a
// pointer is just Min() away) and the three pairs of price watermarks.
type OrderBook struct {
	Symbol Symbol

	bids *levelTree // LevelType Bid, best = highest price
	asks *levelTree // LevelType Ask, best = lowest price

	buyStop  *levelTree // LevelType Ask, best = lowest stop price
	sellStop *levelTree // LevelType Bid, best = highest stop price

	trailingBuyStop  *levelTree // LevelType Ask, best = lowest stop price
	trailingSellStop *levelTree // LevelType Bid, best = highest stop price

	lastBidPrice     uint64
	lastAskPrice     uint64
	matchingBidPrice uint64
	matchingAskPrice uint64
	trailingBidPrice uint64 // last trailing reference price seen by trailingMarketMoved
	trailingAskPrice uint64
}

func ascending(a, b *Level) bool  { return a.Price < b.Price }
func descending(a, b *Level) bool { return a.Price > b.Price }

func newOrderBook(symbol Symbol) *OrderBook {
	return &OrderBook{
		Symbol:           symbol,
		bids:             btree.NewBTreeG(descending), // best = max price
		asks:             btree.NewBTreeG(ascending),  // best = min price
		buyStop:          btree.NewBTreeG(ascending),  // activates as ask rises, best = min price
		sellStop:         btree.NewBTreeG(descending), // activates as bid falls, best = max price
		trailingBuyStop:  btree.NewBTreeG(ascending),
		trailingSellStop: btree.NewBTreeG(descending),
		lastAskPrice:     MaxQuantity,
		matchingAskPrice: MaxQuantity,
		trailingAskPrice: MaxQuantity,
	}
}

func (b *OrderBook) Empty() bool { return b.Size() == 0 }

func (b *OrderBook) Size() int {
	return b.bids.Len() + b.asks.Len() + b.buyStop.Len() + b.sellStop.Len() +
		b.trailingBuyStop.Len() + b.trailingSellStop.Len()
}

func (b *OrderBook) BestBid() *Level { l, _ := b.bids.Min(); return l }
func (b *OrderBook) BestAsk() *Level { l, _ := b.asks.Min(); return l }

func (b *OrderBook) BestBuyStop() *Level  { l, _ := b.buyStop.Min(); return l }
func (b *OrderBook) BestSellStop() *Level { l, _ := b.sellStop.Min(); return l }

func (b *OrderBook) BestTrailingBuyStop() *Level  { l, _ := b.trailingBuyStop.Min(); return l }
func (b *OrderBook) BestTrailingSellStop() *Level { l, _ := b.trailingSellStop.Min(); return l }

func (b *OrderBook) GetBid(price uint64) *Level { l, _ := b.bids.Get(&Level{Price: price}); return l }
func (b *OrderBook) GetAsk(price uint64) *Level { l, _ := b.asks.Get(&Level{Price: price}); return l }

func (b *OrderBook) GetBuyStopLevel(price uint64) *Level {
	l, _ := b.buyStop.Get(&Level{Price: price})
	return l
}

func (b *OrderBook) GetSellStopLevel(price uint64) *Level {
	l, _ := b.sellStop.Get(&Level{Price: price})
	return l
}

// Bids and Asks return resting levels in best-first order, for
// observers and tests.
func (b *OrderBook) Bids() []*Level { return scanLevels(b.bids) }
func (b *OrderBook) Asks() []*Level { return scanLevels(b.asks) }

func scanLevels(tree *levelTree) []*Level {
	var out []*Level
	tree.Scan(func(l *Level) bool {
		out = append(out, l)
		return true
	})
	return out
}

// bookTree returns the regular (non-stop) tree an order of the given
// side rests on, plus the LevelType new levels there should carry.
func (b *OrderBook) bookTree(side Side) (*levelTree, LevelType) {
	if side == Buy {
		return b.bids, Bid
	}
	return b.asks, Ask
}

func (b *OrderBook) stopTree(side Side) (*levelTree, LevelType) {
	if side == Buy {
		return b.buyStop, Ask
	}
	return b.sellStop, Bid
}

func (b *OrderBook) trailingStopTree(side Side) (*levelTree, LevelType) {
	if side == Buy {
		return b.trailingBuyStop, Ask
	}
	return b.trailingSellStop, Bid
}

func (b *OrderBook) bestForSide(side Side) *Level {
	if side == Buy {
		return b.BestBid()
	}
	return b.BestAsk()
}

// restOn inserts n onto the level at price within tree, creating the
// level if it does not exist yet. Returns the level and whether it was
// newly created.
func restOn(tree *levelTree, levelType LevelType, price uint64, n *OrderNode) (*Level, bool) {
	level, ok := tree.Get(&Level{Price: price})
	created := !ok
	if !ok {
		level = newLevel(levelType, price)
		tree.Set(level)
	}
	level.push(n)
	return level, created
}

// AddOrder rests a brand-new resting order on the regular bid/ask side
// of the book.
func (b *OrderBook) AddOrder(n *OrderNode) LevelUpdate {
	tree, lt := b.bookTree(n.Side)
	level, created := restOn(tree, lt, n.Price, n)
	kind := UpdateUpdate
	if created {
		kind = UpdateAdd
	}
	return LevelUpdate{Kind: kind, Level: *level, IsTop: level == b.bestForSide(n.Side), SymbolID: b.Symbol.ID}
}

// ReduceOrder reflects a quantity reduction (partial fill or partial
// cancel) of an already-resting order: qty is how much leaves was just
// removed, hiddenDelta/visibleDelta are the corresponding drops in the
// order's hidden/visible split. Caller has already decremented
// n.Leaves. If n.Leaves reached zero the order is also unlinked from
// the level's order list.
func (b *OrderBook) ReduceOrder(n *OrderNode, qty, hiddenDelta, visibleDelta uint64) LevelUpdate {
	return b.detachFromLevel(n, qty, hiddenDelta, visibleDelta, n.Leaves == 0)
}

// DeleteOrder fully removes a resting order from its level regardless
// of remaining leaves.
func (b *OrderBook) DeleteOrder(n *OrderNode) LevelUpdate {
	return b.detachFromLevel(n, n.Leaves, n.Hidden(), n.Visible(), true)
}

func (b *OrderBook) detachFromLevel(n *OrderNode, volDelta, hiddenDelta, visibleDelta uint64, removeFromList bool) LevelUpdate {
	level := n.level
	wasTop := level == b.bestForSide(n.Side)

	level.TotalVolume -= volDelta
	level.HiddenVolume -= hiddenDelta
	level.VisibleVolume -= visibleDelta
	if removeFromList {
		level.remove(n)
	}

	snapshot := *level
	kind := UpdateUpdate
	if level.TotalVolume == 0 {
		tree, _ := b.bookTree(n.Side)
		tree.Delete(level)
		kind = UpdateDelete
	}
	return LevelUpdate{Kind: kind, Level: snapshot, IsTop: wasTop, SymbolID: b.Symbol.ID}
}

// AddStopOrder rests a regular stop order on the buy-stop/sell-stop
// tree, keyed by its StopPrice.
func (b *OrderBook) AddStopOrder(n *OrderNode) {
	tree, lt := b.stopTree(n.Side)
	restOn(tree, lt, n.StopPrice, n)
}

// DeleteStopOrder removes a resting stop order from its stop level,
// destroying the level if it drains to zero volume.
func (b *OrderBook) DeleteStopOrder(n *OrderNode) {
	level := n.level
	level.TotalVolume -= n.Leaves
	level.HiddenVolume -= n.Hidden()
	level.VisibleVolume -= n.Visible()
	level.remove(n)
	if level.TotalVolume == 0 {
		tree, _ := b.stopTree(n.Side)
		tree.Delete(level)
	}
}

// ReduceStopOrder and ReduceTrailingStopOrder reflect a partial
// cancellation of an order resting on a stop tree; the caller has
// already shrunk n.Leaves/n.Quantity and passes the resulting deltas.
func (b *OrderBook) ReduceStopOrder(n *OrderNode, volDelta, hiddenDelta, visibleDelta uint64) {
	level := n.level
	level.TotalVolume -= volDelta
	level.HiddenVolume -= hiddenDelta
	level.VisibleVolume -= visibleDelta
	if n.Leaves == 0 {
		level.remove(n)
		if level.TotalVolume == 0 {
			tree, _ := b.stopTree(n.Side)
			tree.Delete(level)
		}
	}
}

func (b *OrderBook) ReduceTrailingStopOrder(n *OrderNode, volDelta, hiddenDelta, visibleDelta uint64) {
	level := n.level
	level.TotalVolume -= volDelta
	level.HiddenVolume -= hiddenDelta
	level.VisibleVolume -= visibleDelta
	if n.Leaves == 0 {
		level.remove(n)
		if level.TotalVolume == 0 {
			tree, _ := b.trailingStopTree(n.Side)
			tree.Delete(level)
		}
	}
}

// AddTrailingStopOrder/DeleteTrailingStopOrder are AddStopOrder/
// DeleteStopOrder's counterparts on the trailing-stop trees.
func (b *OrderBook) AddTrailingStopOrder(n *OrderNode) {
	tree, lt := b.trailingStopTree(n.Side)
	restOn(tree, lt, n.StopPrice, n)
}

func (b *OrderBook) DeleteTrailingStopOrder(n *OrderNode) {
	level := n.level
	level.TotalVolume -= n.Leaves
	level.HiddenVolume -= n.Hidden()
	level.VisibleVolume -= n.Visible()
	level.remove(n)
	if level.TotalVolume == 0 {
		tree, _ := b.trailingStopTree(n.Side)
		tree.Delete(level)
	}
}

// --- market price synthesis -------------------------------------------------

func (b *OrderBook) MarketPriceBid() uint64 {
	best := uint64(0)
	if l := b.BestBid(); l != nil {
		best = l.Price
	}
	return max(b.matchingBidPrice, best)
}

func (b *OrderBook) MarketPriceAsk() uint64 {
	best := uint64(MaxQuantity)
	if l := b.BestAsk(); l != nil {
		best = l.Price
	}
	return min(b.matchingAskPrice, best)
}

func (b *OrderBook) marketTrailingStopPriceBid() uint64 {
	best := uint64(0)
	if l := b.BestBid(); l != nil {
		best = l.Price
	}
	return min(b.lastBidPrice, best)
}

func (b *OrderBook) marketTrailingStopPriceAsk() uint64 {
	best := uint64(MaxQuantity)
	if l := b.BestAsk(); l != nil {
		best = l.Price
	}
	return max(b.lastAskPrice, best)
}

// trailingMarketMoved reports whether side's trailing reference price has
// moved favorably since the last recalculation pass, updating the
// persisted trailingBidPrice/trailingAskPrice watermark as it goes. A
// buy-side trailing stop can only ever be helped by the ask reference
// falling; a sell-side one only by the bid reference rising. Callers use
// this to skip walking a side's trailing-stop tree entirely when the
// market hasn't moved in a direction that could ratchet any order on it.
func (b *OrderBook) trailingMarketMoved(side Side) bool {
	if side == Buy {
		old := b.trailingAskPrice
		b.trailingAskPrice = b.marketTrailingStopPriceAsk()
		return b.trailingAskPrice < old
	}
	old := b.trailingBidPrice
	b.trailingBidPrice = b.marketTrailingStopPriceBid()
	return b.trailingBidPrice > old
}

func (b *OrderBook) updateLastPrice(o *Order, price uint64) {
	if o.IsBuy() {
		b.lastBidPrice = price
	} else {
		b.lastAskPrice = price
	}
}

func (b *OrderBook) updateMatchingPrice(o *Order, price uint64) {
	if o.IsBuy() {
		b.matchingBidPrice = price
	} else {
		b.matchingAskPrice = price
	}
}

func (b *OrderBook) resetMatchingPrice() {
	b.matchingBidPrice = 0
	b.matchingAskPrice = MaxQuantity
}

// calculateTrailingStopPrice implements the ratchet rule: a buy-side
// trailing stop only ever moves down, a sell-side one only ever moves
// up, and only once the move clears the configured step.
func (b *OrderBook) calculateTrailingStopPrice(o *Order) uint64 {
	var marketPrice uint64
	if o.IsBuy() {
		marketPrice = b.marketTrailingStopPriceAsk()
	} else {
		marketPrice = b.marketTrailingStopPriceBid()
	}

	distance := o.TrailingDistance
	step := o.TrailingStep
	if distance < 0 {
		distance = (-distance * int64(marketPrice)) / 10000
		step = (-step * int64(marketPrice)) / 10000
	}

	old := o.StopPrice

	if o.IsBuy() {
		newPrice := uint64(MaxQuantity)
		if marketPrice < MaxQuantity-uint64(distance) {
			newPrice = marketPrice + uint64(distance)
		}
		if newPrice < old && old-newPrice >= uint64(step) {
			return newPrice
		}
		return old
	}

	newPrice := uint64(0)
	if marketPrice > uint64(distance) {
		newPrice = marketPrice - uint64(distance)
	}
	if newPrice > old && newPrice-old >= uint64(step) {
		return newPrice
	}
	return old
}
