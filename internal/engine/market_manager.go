package engine

// MarketManager owns every symbol, user, order book and resting order
// in one market. It is not safe for concurrent use; callers serialize
// access the way the session front-end does (one MarketManager per
// process, every call into it made under one mutex).
type MarketManager struct {
	symbols    map[uint64]Symbol
	users      map[uint64]User
	orderBooks map[uint64]*OrderBook
	orders     map[uint64]*OrderNode

	// openOrders tracks, per user, which order ids are still resting
	// somewhere. DeleteUser walks this set to cascade-cancel rather
	// than leaving orders pointing at a user that no longer exists.
	openOrders map[uint64]map[uint64]struct{}

	ordersCount uint64
	reporter    Reporter
}

// NewMarketManager builds an empty market. A nil reporter is replaced
// with a no-op one so callers never need a nil check.
func NewMarketManager(reporter Reporter) *MarketManager {
	if reporter == nil {
		reporter = noopReporter{}
	}
	return &MarketManager{
		symbols:     make(map[uint64]Symbol),
		users:       make(map[uint64]User),
		orderBooks:  make(map[uint64]*OrderBook),
		orders:      make(map[uint64]*OrderNode),
		openOrders:  make(map[uint64]map[uint64]struct{}),
		ordersCount: 1,
		reporter:    reporter,
	}
}

// --- registries --------------------------------------------------------

func (m *MarketManager) AddSymbol(id uint64, name string) error {
	if _, ok := m.symbols[id]; ok {
		return ErrSymbolDuplicate
	}
	m.symbols[id] = Symbol{ID: id, Name: name}
	return nil
}

// DeleteSymbol removes a symbol. It does not cascade to the symbol's
// order book or to orders resting there: the book keeps its own copy
// of the Symbol and keeps accepting and matching orders until
// DeleteOrderBook removes it. Once both are gone the symbol id can
// gain no new order book unless the symbol is added again.
func (m *MarketManager) DeleteSymbol(id uint64) error {
	if _, ok := m.symbols[id]; !ok {
		return ErrSymbolNotFound
	}
	delete(m.symbols, id)
	return nil
}

func (m *MarketManager) GetSymbol(id uint64) (Symbol, error) {
	s, ok := m.symbols[id]
	if !ok {
		return Symbol{}, ErrSymbolNotFound
	}
	return s, nil
}

// AddOrderBook creates the order book for symbolID. The duplicate
// check runs before any allocation, so a repeat call never leaks a
// freshly built OrderBook that is immediately discarded.
func (m *MarketManager) AddOrderBook(symbolID uint64) error {
	if _, ok := m.orderBooks[symbolID]; ok {
		return ErrOrderBookDuplicate
	}
	symbol, ok := m.symbols[symbolID]
	if !ok {
		return ErrSymbolNotFound
	}
	m.orderBooks[symbolID] = newOrderBook(symbol)
	return nil
}

// DeleteOrderBook removes a symbol's order book without cascading to
// resting orders; this mirrors DeleteSymbol's non-cascading behavior.
func (m *MarketManager) DeleteOrderBook(symbolID uint64) error {
	if _, ok := m.orderBooks[symbolID]; !ok {
		return ErrOrderBookNotFound
	}
	delete(m.orderBooks, symbolID)
	return nil
}

func (m *MarketManager) GetOrderBook(symbolID uint64) (*OrderBook, error) {
	b, ok := m.orderBooks[symbolID]
	if !ok {
		return nil, ErrOrderBookNotFound
	}
	return b, nil
}

func (m *MarketManager) AddUser(id uint64, name string) error {
	if _, ok := m.users[id]; ok {
		return ErrUserDuplicate
	}
	m.users[id] = User{ID: id, Name: name}
	m.openOrders[id] = make(map[uint64]struct{})
	return nil
}

// DeleteUser cascade-cancels every order still open under id before
// removing the user record, so no later trade can credit or debit a
// balance that no longer exists.
func (m *MarketManager) DeleteUser(id uint64) error {
	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	for orderID := range m.openOrders[id] {
		node := m.orders[orderID]
		if book, ok := m.orderBooks[node.SymbolID]; ok {
			m.cancelOrder(book, node)
		} else {
			delete(m.orders, orderID)
			delete(m.openOrders[id], orderID)
		}
	}
	delete(m.openOrders, id)
	delete(m.users, id)
	return nil
}

func (m *MarketManager) GetUser(id uint64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MarketManager) GetOrder(id uint64) (Order, error) {
	n, ok := m.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return n.Order, nil
}

func (m *MarketManager) GetOrdersCount() uint64 { return m.ordersCount }

// UsersCount is how many users are currently registered; the session
// front-end uses it to assign dense user ids at registration time.
func (m *MarketManager) UsersCount() int { return len(m.users) }

// --- order lifecycle -----------------------------------------------------

// AddOrder validates and admits a new order. Plain limit orders match
// immediately against the resting book at the maker's price in strict
// time priority, rest whatever leaves remain, then run the stop/
// trailing-stop cascade. Stop and trailing-stop orders (StopPrice !=
// 0) are parked on their own tree until the synthesized market price
// reaches their trigger; a resting level alone can move that price, no
// trade is needed. A trailing stop's StopPrice is first re-priced
// against the current trailing market price before it is parked.
func (m *MarketManager) AddOrder(o Order) error {
	if o.ID == 0 {
		return ErrOrderIDInvalid
	}
	if o.Quantity == 0 || o.Leaves == 0 {
		return ErrOrderQuantityInvalid
	}
	if _, ok := m.orders[o.ID]; ok {
		return ErrOrderDuplicate
	}
	if _, ok := m.users[o.UserID]; !ok {
		return ErrUserNotFound
	}
	book, ok := m.orderBooks[o.SymbolID]
	if !ok {
		return ErrOrderBookNotFound
	}

	node := &OrderNode{Order: o}
	m.registerOrder(node)

	if node.StopPrice != 0 {
		m.restStopOrder(book, node)
	} else {
		m.matchAndRest(book, node)
	}
	m.runCascade(book)
	return nil
}

func (m *MarketManager) registerOrder(n *OrderNode) {
	m.orders[n.ID] = n
	m.ordersCount++
	if _, ok := m.openOrders[n.UserID]; !ok {
		m.openOrders[n.UserID] = make(map[uint64]struct{})
	}
	m.openOrders[n.UserID][n.ID] = struct{}{}
}

func (m *MarketManager) forgetOrder(n *OrderNode) {
	delete(m.orders, n.ID)
	if s, ok := m.openOrders[n.UserID]; ok {
		delete(s, n.ID)
	}
}

func (m *MarketManager) restStopOrder(book *OrderBook, n *OrderNode) {
	if n.IsTrailing() {
		n.StopPrice = book.calculateTrailingStopPrice(&n.Order)
		book.AddTrailingStopOrder(n)
	} else {
		book.AddStopOrder(n)
	}
}

func (m *MarketManager) matchAndRest(book *OrderBook, taker *OrderNode) {
	m.matchAggressively(book, taker)
	if taker.Leaves > 0 {
		m.reporter.OnLevelUpdate(book.AddOrder(taker))
	} else {
		m.forgetOrder(taker)
	}
}

// matchAggressively walks the opposite side best-level-first, filling
// taker against the maker at the front of each crossed level in
// arrival order, until taker is exhausted or the book no longer
// crosses taker's limit.
func (m *MarketManager) matchAggressively(book *OrderBook, taker *OrderNode) {
	for taker.Leaves > 0 {
		var level *Level
		if taker.IsBuy() {
			level = book.BestAsk()
		} else {
			level = book.BestBid()
		}
		if level == nil {
			return
		}
		if taker.IsBuy() && taker.Price < level.Price {
			return
		}
		if taker.IsSell() && taker.Price > level.Price {
			return
		}

		maker := level.Front()
		if maker == nil {
			return
		}

		qty := min(taker.Leaves, maker.Leaves)
		price := maker.Price

		taker.Leaves -= qty
		taker.Executed += qty
		volDelta, hiddenDelta, visibleDelta := maker.fill(qty)

		// ReduceOrder backs volDelta (== qty) out of the level and, since
		// it inspects maker.Leaves (already decremented by fill above),
		// removes the order from the list and deletes an emptied level
		// in the same call when the maker is fully filled.
		m.reporter.OnLevelUpdate(book.ReduceOrder(maker, volDelta, hiddenDelta, visibleDelta))
		if maker.Leaves == 0 {
			m.forgetOrder(maker)
		}

		m.settleTrade(book, taker, maker, qty, price)
	}
}

func (m *MarketManager) settleTrade(book *OrderBook, taker, maker *OrderNode, qty, price uint64) {
	var buyer, seller *OrderNode
	if taker.IsBuy() {
		buyer, seller = taker, maker
	} else {
		buyer, seller = maker, taker
	}

	cash := int64(qty) * int64(price)
	if u, ok := m.users[buyer.UserID]; ok {
		u.Balance -= cash
		m.users[buyer.UserID] = u
	}
	if u, ok := m.users[seller.UserID]; ok {
		u.Balance += cash
		m.users[seller.UserID] = u
	}

	book.updateLastPrice(&taker.Order, price)
	book.updateLastPrice(&maker.Order, price)
	book.updateMatchingPrice(&taker.Order, price)
	book.updateMatchingPrice(&maker.Order, price)

	m.reporter.OnTrade(TradeEvent{
		SymbolID:     book.Symbol.ID,
		Price:        price,
		Quantity:     qty,
		MakerOrderID: maker.ID,
		MakerUserID:  maker.UserID,
		TakerOrderID: taker.ID,
		TakerUserID:  taker.UserID,
	})
}

// ReduceOrder shrinks a resting order's quantity without trading it
// (a partial cancellation). Reducing to exactly zero leaves is
// equivalent to DeleteOrder.
func (m *MarketManager) ReduceOrder(orderID, quantity uint64) error {
	node, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if quantity == 0 || quantity > node.Leaves {
		return ErrOrderQuantityInvalid
	}
	book, ok := m.orderBooks[node.SymbolID]
	if !ok {
		return ErrOrderBookNotFound
	}

	volDelta, hiddenDelta, visibleDelta := node.shrink(quantity)

	switch {
	case node.StopPrice == 0:
		m.reporter.OnLevelUpdate(book.ReduceOrder(node, volDelta, hiddenDelta, visibleDelta))
	case node.IsTrailing():
		book.ReduceTrailingStopOrder(node, volDelta, hiddenDelta, visibleDelta)
	default:
		book.ReduceStopOrder(node, volDelta, hiddenDelta, visibleDelta)
	}

	if node.Leaves == 0 {
		m.forgetOrder(node)
	}
	return nil
}

// DeleteOrder cancels a resting order outright, regardless of which
// tree it currently sits on.
func (m *MarketManager) DeleteOrder(orderID uint64) error {
	node, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	book, ok := m.orderBooks[node.SymbolID]
	if !ok {
		return ErrOrderBookNotFound
	}
	m.cancelOrder(book, node)
	return nil
}

func (m *MarketManager) cancelOrder(book *OrderBook, node *OrderNode) {
	switch {
	case node.StopPrice == 0:
		m.reporter.OnLevelUpdate(book.DeleteOrder(node))
	case node.IsTrailing():
		book.DeleteTrailingStopOrder(node)
	default:
		book.DeleteStopOrder(node)
	}
	m.forgetOrder(node)
}

// --- stop cascade --------------------------------------------------------

// runCascade activates every stop and trailing-stop order the market
// has just crossed, re-pricing surviving trailing stops after each
// round, until a full round activates nothing. The transient matching
// price watermark is reset once the cascade settles.
func (m *MarketManager) runCascade(book *OrderBook) {
	for {
		activated := m.activateStopOrders(book)
		m.recalculateTrailingStopPrice(book)
		if !activated {
			break
		}
	}
	book.resetMatchingPrice()
}

func (m *MarketManager) activateStopOrders(book *OrderBook) bool {
	activated := false
	for {
		level := book.BestBuyStop()
		if level == nil || book.MarketPriceAsk() < level.Price {
			break
		}
		m.drainStopLevel(book, level, false)
		activated = true
	}
	for {
		level := book.BestSellStop()
		if level == nil || book.MarketPriceBid() > level.Price {
			break
		}
		m.drainStopLevel(book, level, false)
		activated = true
	}
	for {
		level := book.BestTrailingBuyStop()
		if level == nil || book.MarketPriceAsk() < level.Price {
			break
		}
		m.drainStopLevel(book, level, true)
		activated = true
	}
	for {
		level := book.BestTrailingSellStop()
		if level == nil || book.MarketPriceBid() > level.Price {
			break
		}
		m.drainStopLevel(book, level, true)
		activated = true
	}
	return activated
}

// drainStopLevel activates every order resting at a triggered stop
// level, in time priority, turning each into a plain limit order that
// then matches and rests exactly like a freshly submitted one.
func (m *MarketManager) drainStopLevel(book *OrderBook, level *Level, trailing bool) {
	for {
		node := level.Front()
		if node == nil {
			return
		}
		if trailing {
			book.DeleteTrailingStopOrder(node)
		} else {
			book.DeleteStopOrder(node)
		}
		node.StopPrice = 0
		m.matchAndRest(book, node)
	}
}

// recalculateTrailingStopPrice snapshots every order id resting on
// each trailing-stop tree up front and visits each exactly once,
// skipping ids that a stop activation already removed earlier in this
// same cascade round.
func (m *MarketManager) recalculateTrailingStopPrice(book *OrderBook) {
	m.recalcTrailingSide(book, Buy)
	m.recalcTrailingSide(book, Sell)
}

func (m *MarketManager) recalcTrailingSide(book *OrderBook, side Side) {
	if !book.trailingMarketMoved(side) {
		return
	}

	tree, _ := book.trailingStopTree(side)

	var ids []uint64
	tree.Scan(func(l *Level) bool {
		for _, n := range l.Orders() {
			ids = append(ids, n.ID)
		}
		return true
	})

	for _, id := range ids {
		node, ok := m.orders[id]
		if !ok || node.level == nil {
			continue
		}
		newPrice := book.calculateTrailingStopPrice(&node.Order)
		if newPrice == node.StopPrice {
			continue
		}
		book.DeleteTrailingStopOrder(node)
		node.StopPrice = newPrice
		book.AddTrailingStopOrder(node)
	}
}
