// Command swapscalp is the process entry point: load config, construct
// every collaborator, start trading, and block until SIGINT/SIGTERM
// triggers a graceful stopTrading. Mirrors the donor's main() construction
// order (config -> store -> exchange client -> engines -> coordinator)
// without its HTTP listener, which this spec's control surface is an
// explicit out-of-scope collaborator for.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yjx-labs/swapscalp/config"
	"github.com/yjx-labs/swapscalp/control"
	"github.com/yjx-labs/swapscalp/exchange"
	"github.com/yjx-labs/swapscalp/internal/logx"
	"github.com/yjx-labs/swapscalp/marketdata"
	"github.com/yjx-labs/swapscalp/notify"
	"github.com/yjx-labs/swapscalp/store"
)

func main() {
	log := logx.New("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	audit, err := store.Open(cfg.AuditDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open audit store")
	}
	defer audit.Close()

	notifier := notify.NewTelegram(logx.New("notify"), cfg.TelegramBotToken, cfg.TelegramChatID)

	newAdapter := func(agg *marketdata.CandleAggregator, marks *marketdata.MarkPrices) exchange.Adapter {
		return exchange.NewBinance(logx.New("exchange"), cfg.BinanceAPIKey, cfg.BinanceAPISecret, cfg.IsTestnet, agg, marks)
	}

	plane := control.NewPlane(logx.New("control"), cfg, newAdapter, audit, notifier)

	if err := plane.StartTrading(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to start trading")
	}
	log.Info().Msg("swapscalp running, awaiting SIGINT/SIGTERM")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := plane.StopTrading(shutdownCtx, "process shutdown"); err != nil {
		log.Error().Err(err).Msg("stopTrading returned an error")
	}
	log.Info().Msg("swapscalp stopped")
}
