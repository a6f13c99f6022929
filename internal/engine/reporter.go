package engine

// TradeEvent describes one execution: a quantity traded at the resting
// (maker) order's price between two orders. THE CORE emits one per
// matched pair; it never interprets the event itself.
type TradeEvent struct {
	SymbolID     uint64
	Price        uint64
	Quantity     uint64
	MakerOrderID uint64
	MakerUserID  uint64
	TakerOrderID uint64
	TakerUserID  uint64
}

// Reporter is the notification contract the matching core drives but
// does not itself consume. An embedding caller (the session front-end,
// a persistence layer, a test) supplies an implementation;
// MarketManager's default is a no-op.
type Reporter interface {
	OnTrade(TradeEvent)
	OnLevelUpdate(LevelUpdate)
}

type noopReporter struct{}

func (noopReporter) OnTrade(TradeEvent)        {}
func (noopReporter) OnLevelUpdate(LevelUpdate) {}
