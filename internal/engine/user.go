package engine

// User is a trading participant with a running cash balance. Balance
// starts at zero and accumulates signed trade cash: buys subtract
// price*quantity, sells add it. Ids are dense indices, same as Symbol.
type User struct {
	ID      uint64
	Name    string
	Balance int64
}
