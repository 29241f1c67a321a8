// Ceraunus — a single-venue futures market-making client.
//
// Architecture:
//
//	main.go                 — entry point: loads config, wires sessions + engine, runs until SIGINT/SIGTERM
//	engine/engine.go        — single-threaded dispatcher: owns books, active orders, PnL; drives timers
//	engine/state.go         — the trading state the engine mutates exclusively
//	engine/pnl.go           — per-symbol position / realized / unrealized PnL ledger
//	market/book.go          — local order book replica with gap-checked incremental updates
//	market/snapshot.go      — one-shot delayed snapshot task + bootstrap drain
//	exchange/client.go      — signed REST client (orders, cancels, listen key, snapshots)
//	exchange/ws.go          — generic WebSocket session: commands in, typed events out
//	strategy/quote.go       — midpoint quoter exercising the order plumbing
//
// How it runs:
//
//	Two stream sessions feed the engine over bounded channels — one public
//	market socket (depth + bookTicker) and one listen-key user socket (order
//	and account updates). The engine bootstraps a book from a REST snapshot
//	reconciled against buffered depth deltas, then quotes around the BBO on a
//	timer. Order opens and cancels are fire-and-forget HTTP tasks; the truth
//	about every order flows back in on the user stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"ceraunus/internal/config"
	"ceraunus/internal/engine"
	"ceraunus/internal/exchange"
	"ceraunus/internal/strategy"
	"ceraunus/pkg/types"
)

const listenKeyTimeout = 10 * time.Second

func main() {
	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	creds, err := config.LoadCredentials(cfg.Account.CredentialsCSV, cfg.Account.Name)
	if err != nil {
		return err
	}

	endpoints, err := cfg.Exchange.Endpoints()
	if err != nil {
		return err
	}

	symbol, err := types.ParseSymbol(cfg.Exchange.Symbol)
	if err != nil {
		return err
	}
	quoteQty, err := decimal.NewFromString(cfg.Exchange.QuoteQty)
	if err != nil {
		return fmt.Errorf("exchange.quote_qty: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	signer := exchange.NewSigner(creds.APIKey, creds.APISecret)
	client := exchange.NewClient(endpoints.Rest, signer, logger.With("component", "rest"))

	// The user stream needs a listen key before its socket can connect.
	keyCtx, cancel := context.WithTimeout(ctx, listenKeyTimeout)
	listenKey, err := client.CreateListenKey(keyCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("create listen key: %w", err)
	}
	logger.Info("listen key created")

	marketCmds := make(chan exchange.Command, exchange.CommandBufferSize)
	accountCmds := make(chan exchange.Command, exchange.CommandBufferSize)
	marketEvents := make(chan types.MarketEvent, exchange.EventBufferSize)
	accountEvents := make(chan types.AccountEvent, exchange.EventBufferSize)

	marketSession := exchange.NewMarketSession(endpoints.WS+"/ws", marketCmds, marketEvents, logger)
	accountSession := exchange.NewAccountSession(endpoints.WS+"/ws/"+listenKey, accountCmds, accountEvents, logger)
	go marketSession.Run(ctx)
	go accountSession.Run(ctx)

	eng := engine.New(
		engine.Config{
			Symbol:            symbol,
			DepthLevels:       cfg.Exchange.DepthLevels,
			DepthIntervalMs:   cfg.Exchange.DepthIntervalMs,
			SnapshotDepth:     cfg.Exchange.SnapshotDepth,
			SnapshotDelay:     cfg.Exchange.SnapshotDelay,
			QuoteInterval:     cfg.Exchange.QuoteInterval,
			CancelInterval:    cfg.Exchange.CancelInterval,
			ReportInterval:    cfg.Exchange.ReportInterval,
			KeepaliveInterval: cfg.Exchange.KeepaliveInterval,
			StaleThreshold:    cfg.Exchange.StaleThreshold,
		},
		client,
		strategy.NewMidpointQuoter(quoteQty),
		marketCmds,
		accountCmds,
		marketEvents,
		accountEvents,
		logger,
	)

	logger.Info("ceraunus started",
		"environment", cfg.Exchange.Environment,
		"account", creds.AccountName,
		"symbol", symbol,
		"quote_qty", quoteQty,
	)

	return eng.Run(ctx)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
