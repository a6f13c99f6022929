package engine

import "container/list"

// Level is a price bucket on one side of one tree. Invariant:
// TotalVolume == sum of resting leaves, VisibleVolume == sum of visible,
// HiddenVolume == TotalVolume-VisibleVolume, OrdersCount == len(order list).
// A level with TotalVolume == 0 is removed from its tree in the same
// operation that drains it.
type Level struct {
	Type          LevelType
	Price         uint64
	TotalVolume   uint64
	HiddenVolume  uint64
	VisibleVolume uint64
	OrdersCount   int

	// orders is insertion-ordered (time priority); list.List gives O(1)
	// removal given the *list.Element a resting OrderNode holds, the Go
	// stand-in for an intrusive list hook.
	orders *list.List
}

func newLevel(t LevelType, price uint64) *Level {
	return &Level{Type: t, Price: price, orders: list.New()}
}

func (l *Level) IsBid() bool { return l.Type == Bid }
func (l *Level) IsAsk() bool { return l.Type == Ask }

// Front returns the earliest-resting order on the level, or nil if empty.
func (l *Level) Front() *OrderNode {
	e := l.orders.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*OrderNode)
}

// Orders returns the resting orders in time priority, earliest first.
func (l *Level) Orders() []*OrderNode {
	out := make([]*OrderNode, 0, l.OrdersCount)
	for e := l.orders.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*OrderNode))
	}
	return out
}

func (l *Level) push(n *OrderNode) {
	n.elem = l.orders.PushBack(n)
	n.level = l
	l.OrdersCount++
	l.TotalVolume += n.Leaves
	l.HiddenVolume += n.Hidden()
	l.VisibleVolume += n.Visible()
}

// remove detaches n from the level's order list and decrements
// OrdersCount. It does not touch the volume totals, which callers back
// out themselves, nor the tree the level itself lives in; callers
// remove an emptied level from its tree separately.
func (l *Level) remove(n *OrderNode) {
	l.orders.Remove(n.elem)
	n.elem = nil
	n.level = nil
	l.OrdersCount--
}

// OrderNode is a resting Order plus its back-reference to the level it
// currently sits on, used for O(1) removal during reduce/delete/stop
// activation. The back-reference is invalidated (set nil) the instant
// the order leaves its level.
type OrderNode struct {
	Order
	level *Level
	elem  *list.Element
}

// fill records a trade execution of qty against this order, returning
// the (volume, hidden, visible) deltas a caller should back out of the
// level it rests on.
func (n *OrderNode) fill(qty uint64) (volDelta, hiddenDelta, visibleDelta uint64) {
	oldHidden, oldVisible := n.Hidden(), n.Visible()
	n.Leaves -= qty
	n.Executed += qty
	return qty, oldHidden - n.Hidden(), oldVisible - n.Visible()
}

// shrink records a partial cancellation of qty (no execution), again
// returning the deltas to back out of the resting level.
func (n *OrderNode) shrink(qty uint64) (volDelta, hiddenDelta, visibleDelta uint64) {
	oldHidden, oldVisible := n.Hidden(), n.Visible()
	n.Leaves -= qty
	n.Quantity -= qty
	return qty, oldHidden - n.Hidden(), oldVisible - n.Visible()
}

// LevelUpdate is the observability contract: each book mutation that
// touches a regular bid or ask level yields one of these; mutations of
// the stop and trailing-stop trees yield none. The core only ever builds them
// and hands them to a Reporter (see reporter.go); it never reads them
// back.
type LevelUpdate struct {
	Kind     UpdateKind
	Level    Level
	IsTop    bool
	SymbolID uint64
}
