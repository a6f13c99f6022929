package engine

import "math"

// MaxQuantity is the sentinel "no limit" max-visible quantity: an order
// with MaxVisible == MaxQuantity shows its entire leaves and carries no
// hidden (iceberg) volume.
const MaxQuantity = math.MaxUint64

// Side is which book an order rests on.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// Order is an immutable trading intent plus mutable fill progress.
// Id is nonzero and globally unique within a MarketManager. Invariant:
// Executed+Leaves == Quantity at all times, 0 <= Executed <= Quantity.
type Order struct {
	ID       uint64
	SymbolID uint64
	UserID   uint64
	Side     Side
	Price    uint64

	// StopPrice is nonzero for stop and trailing-stop orders; it is
	// cleared to 0 on activation, turning the order into a plain limit
	// order resting at Price.
	StopPrice uint64

	Quantity uint64
	Executed uint64
	Leaves   uint64

	// MaxVisible caps how much of Leaves is shown on the level; the
	// remainder is Hidden(). MaxQuantity means "fully visible".
	MaxVisible uint64

	// TrailingDistance/TrailingStep are either absolute ticks (>= 0) or,
	// if negative, a basis-point percentage of the reference market
	// price (see OrderBook.calculateTrailingStopPrice). Zero for non-trailing
	// orders.
	TrailingDistance int64
	TrailingStep     int64
}

func (o *Order) IsBuy() bool  { return o.Side == Buy }
func (o *Order) IsSell() bool { return o.Side == Sell }

func (o *Order) IsStop() bool     { return o.StopPrice != 0 && o.TrailingDistance == 0 && o.TrailingStep == 0 }
func (o *Order) IsTrailing() bool { return o.StopPrice != 0 && (o.TrailingDistance != 0 || o.TrailingStep != 0) }

// Hidden is the leaves quantity not shown on the level.
func (o *Order) Hidden() uint64 {
	if o.Leaves > o.MaxVisible {
		return o.Leaves - o.MaxVisible
	}
	return 0
}

// Visible is the leaves quantity shown on the level.
func (o *Order) Visible() uint64 {
	if o.Leaves < o.MaxVisible {
		return o.Leaves
	}
	return o.MaxVisible
}

// NewOrder builds a limit order (StopPrice 0) resting at price with an
// optional iceberg cap. maxVisible == MaxQuantity means fully visible.
func NewOrder(id, symbolID, userID uint64, side Side, price, quantity, maxVisible uint64) Order {
	return Order{
		ID:         id,
		SymbolID:   symbolID,
		UserID:     userID,
		Side:       side,
		Price:      price,
		Quantity:   quantity,
		Leaves:     quantity,
		MaxVisible: maxVisible,
	}
}

// NewBuyOrder/NewSellOrder are the fully-visible limit-order shorthands.
func NewBuyOrder(id, symbolID, userID, price, quantity uint64) Order {
	return NewOrder(id, symbolID, userID, Buy, price, quantity, MaxQuantity)
}

func NewSellOrder(id, symbolID, userID, price, quantity uint64) Order {
	return NewOrder(id, symbolID, userID, Sell, price, quantity, MaxQuantity)
}

// NewStopOrder builds a regular stop order: invisible to matching until
// the reference market price crosses stopPrice, at which point it
// becomes a limit order resting at price.
func NewStopOrder(id, symbolID, userID uint64, side Side, stopPrice, price, quantity, maxVisible uint64) Order {
	o := NewOrder(id, symbolID, userID, side, price, quantity, maxVisible)
	o.StopPrice = stopPrice
	return o
}

// NewTrailingStopOrder builds a trailing stop: its StopPrice ratchets
// with the market by trailingDistance (ticks if >= 0, basis points of
// market price if negative), re-pricing only after at least
// trailingStep of favorable movement.
func NewTrailingStopOrder(id, symbolID, userID uint64, side Side, stopPrice, price, quantity, maxVisible uint64, trailingDistance, trailingStep int64) Order {
	o := NewStopOrder(id, symbolID, userID, side, stopPrice, price, quantity, maxVisible)
	o.TrailingDistance = trailingDistance
	o.TrailingStep = trailingStep
	return o
}
