package engine

import "errors"

// Sentinel errors returned by MarketManager mutations. A nil error is
// the OK result; every failure mode is one of these, compared with
// errors.Is.
var (
	ErrSymbolDuplicate      = errors.New("engine: symbol already exists")
	ErrSymbolNotFound       = errors.New("engine: symbol not found")
	ErrOrderBookDuplicate   = errors.New("engine: order book already exists")
	ErrOrderBookNotFound    = errors.New("engine: order book not found")
	ErrOrderDuplicate       = errors.New("engine: order id already exists")
	ErrOrderNotFound        = errors.New("engine: order not found")
	ErrOrderIDInvalid       = errors.New("engine: order id is invalid")
	ErrOrderQuantityInvalid = errors.New("engine: order quantity is invalid")
	ErrUserDuplicate        = errors.New("engine: user already exists")
	ErrUserNotFound         = errors.New("engine: user not found")
)
