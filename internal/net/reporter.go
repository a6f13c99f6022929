package net

import (
	"github.com/rs/zerolog/log"

	"matchbook/internal/engine"
)

// logReporter is the one consumer of engine.Reporter in this
// repository: it turns every trade and top-of-book change into a
// structured log line. The matching core never depends on it; it is
// wired in purely by the session layer that embeds the core.
type logReporter struct{}

// NewReporter returns the zerolog-backed engine.Reporter this package
// supplies to an embedding MarketManager.
func NewReporter() engine.Reporter { return logReporter{} }

func (logReporter) OnTrade(t engine.TradeEvent) {
	log.Info().
		Uint64("symbolId", t.SymbolID).
		Uint64("price", t.Price).
		Uint64("quantity", t.Quantity).
		Uint64("makerOrderId", t.MakerOrderID).
		Uint64("takerOrderId", t.TakerOrderID).
		Msg("trade executed")
}

func (logReporter) OnLevelUpdate(u engine.LevelUpdate) {
	if !u.IsTop {
		return
	}
	log.Debug().
		Uint64("symbolId", u.SymbolID).
		Str("kind", u.Kind.String()).
		Str("side", u.Level.Type.String()).
		Uint64("price", u.Level.Price).
		Uint64("totalVolume", u.Level.TotalVolume).
		Msg("top of book changed")
}
