package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"matchbook/internal/engine"
	"matchbook/internal/net"
)

// bootstrapSymbols are the instruments available when the exchange
// starts; a real deployment would load these from configuration, but
// nothing in this repository's scope specifies a config format for
// them, so they're seeded directly.
var bootstrapSymbols = []string{"AAPL", "MSFT", "GOOG"}

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	market := engine.NewMarketManager(net.NewReporter())
	for i, name := range bootstrapSymbols {
		id := uint64(i + 1)
		if err := market.AddSymbol(id, name); err != nil {
			log.Fatal().Err(err).Str("symbol", name).Msg("failed to register symbol")
		}
		if err := market.AddOrderBook(id); err != nil {
			log.Fatal().Err(err).Str("symbol", name).Msg("failed to create order book")
		}
	}

	srv := net.New("0.0.0.0", 5555, market)

	go srv.Run(ctx)
	log.Info().Msg("exchange running")
	<-ctx.Done()
}
