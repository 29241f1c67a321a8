// Package engine is the single-threaded dispatcher at the center of the bot.
//
// One goroutine owns all mutable trading state and consumes every input:
// market stream events, account stream events, snapshot task completions,
// and timer ticks. Stream events preempt timers when both are ready. The
// engine never blocks on network I/O inside a handler — order opens, cancels,
// and listen-key keepalives are spawned as detached tasks whose results are
// logged only; the authoritative order lifecycle flows back in on the
// account stream.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ceraunus/internal/exchange"
	"ceraunus/internal/market"
	"ceraunus/pkg/types"
)

// Execution is what the engine needs from the REST client.
type Execution interface {
	OpenOrder(ctx context.Context, order *types.Order) (*types.OpenOrderAck, error)
	CancelOrder(ctx context.Context, symbol types.Symbol, clientOrderID uuid.UUID) (*types.CancelOrderAck, error)
	KeepAliveListenKey(ctx context.Context) error
	DepthSnapshot(ctx context.Context, symbol types.Symbol, limit int) (*types.DepthSnapshot, error)
}

// Strategy turns the current state into quote orders. Implementations must
// treat the state as read-only.
type Strategy interface {
	GenerateQuotes(symbol types.Symbol, state *State) []*types.Order
}

// Config carries the engine's tunables, already resolved from file config.
type Config struct {
	Symbol            types.Symbol
	DepthLevels       int
	DepthIntervalMs   int
	SnapshotDepth     int
	SnapshotDelay     time.Duration
	QuoteInterval     time.Duration
	CancelInterval    time.Duration
	ReportInterval    time.Duration
	KeepaliveInterval time.Duration
	StaleThreshold    time.Duration
}

// Engine wires the sessions, snapshot tasks, strategy, and REST client to
// the trading state.
type Engine struct {
	cfg      Config
	client   Execution
	strategy Strategy
	state    *State

	marketCmds    chan<- exchange.Command
	accountCmds   chan<- exchange.Command
	marketEvents  <-chan types.MarketEvent
	accountEvents <-chan types.AccountEvent

	// Bootstrap plumbing for the traded symbol: buffered depth deltas and
	// the in-flight snapshot task, nil when none is pending.
	buffer     []*types.DepthUpdate
	snapshotCh <-chan market.SnapshotResult

	logger *slog.Logger
}

// New creates an engine around fresh state.
func New(
	cfg Config,
	client Execution,
	strategy Strategy,
	marketCmds chan<- exchange.Command,
	accountCmds chan<- exchange.Command,
	marketEvents <-chan types.MarketEvent,
	accountEvents <-chan types.AccountEvent,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:           cfg,
		client:        client,
		strategy:      strategy,
		state:         NewState(),
		marketCmds:    marketCmds,
		accountCmds:   accountCmds,
		marketEvents:  marketEvents,
		accountEvents: accountEvents,
		logger:        logger.With("component", "engine"),
	}
}

// State exposes the trading state for wiring and tests. The engine loop is
// the only writer.
func (e *Engine) State() *State { return e.state }

// Run subscribes the streams, kicks off the first bootstrap, and dispatches
// events until ctx is cancelled or a fatal error occurs (snapshot failure).
func (e *Engine) Run(ctx context.Context) error {
	e.marketCmds <- exchange.Command{Subscribe: []exchange.StreamSpec{
		exchange.DepthSpec(e.cfg.Symbol, e.cfg.DepthLevels, e.cfg.DepthIntervalMs),
		exchange.BookTickerSpec(e.cfg.Symbol),
	}}
	e.accountCmds <- exchange.Command{Subscribe: exchange.UserStreamSpecs()}

	e.startBootstrap(ctx)

	quoteTick := time.NewTicker(e.cfg.QuoteInterval)
	defer quoteTick.Stop()
	cancelTick := time.NewTicker(e.cfg.CancelInterval)
	defer cancelTick.Stop()
	reportTick := time.NewTicker(e.cfg.ReportInterval)
	defer reportTick.Stop()
	keepaliveTick := time.NewTicker(e.cfg.KeepaliveInterval)
	defer keepaliveTick.Stop()

	for {
		// Stream events win over timers when both are ready.
		select {
		case ev := <-e.marketEvents:
			e.onMarketEvent(ctx, ev)
			continue
		case ev := <-e.accountEvents:
			e.onAccountEvent(ev)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.marketEvents:
			e.onMarketEvent(ctx, ev)
		case ev := <-e.accountEvents:
			e.onAccountEvent(ev)
		case res := <-e.snapshotGate():
			if err := e.onSnapshot(ctx, res); err != nil {
				return err
			}
		case <-quoteTick.C:
			e.onQuoteTick(ctx)
		case <-cancelTick.C:
			e.onCancelTick(ctx)
		case <-reportTick.C:
			e.reportState()
		case <-keepaliveTick.C:
			e.onKeepaliveTick(ctx)
		}
	}
}

// snapshotGate enables the snapshot arm only while the traded symbol's book
// is absent; a nil channel never fires in select.
func (e *Engine) snapshotGate() <-chan market.SnapshotResult {
	if e.state.Book(e.cfg.Symbol) == nil {
		return e.snapshotCh
	}
	return nil
}

// startBootstrap begins a fresh buffer + delayed snapshot cycle.
func (e *Engine) startBootstrap(ctx context.Context) {
	e.buffer = nil
	e.snapshotCh = market.FetchSnapshot(ctx, e.client, e.cfg.Symbol, e.cfg.SnapshotDepth, e.cfg.SnapshotDelay)
	e.logger.Info("bootstrap started",
		"symbol", e.cfg.Symbol,
		"depth", e.cfg.SnapshotDepth,
		"delay", e.cfg.SnapshotDelay,
	)
}

// onSnapshot completes (or restarts) a bootstrap. A snapshot HTTP failure is
// the engine's one fatal path.
func (e *Engine) onSnapshot(ctx context.Context, res market.SnapshotResult) error {
	e.snapshotCh = nil
	if res.Err != nil {
		return fmt.Errorf("depth snapshot %s: %w", res.Symbol, res.Err)
	}

	ob, err := market.Bootstrap(res.Symbol, res.Snapshot, e.buffer)
	e.buffer = nil
	if err != nil {
		e.logger.Warn("gap inside buffered deltas, restarting bootstrap",
			"symbol", res.Symbol,
			"error", err,
		)
		e.startBootstrap(ctx)
		return nil
	}

	e.state.SetBook(res.Symbol, ob)
	e.logger.Info("order book initialized",
		"symbol", res.Symbol,
		"last_update_id", ob.LastUpdateID(),
		"top", ob.Show(1),
	)
	return nil
}

func (e *Engine) onMarketEvent(ctx context.Context, ev types.MarketEvent) {
	switch {
	case ev.Depth != nil:
		e.onDepth(ctx, ev.Depth)
	case ev.BookTicker != nil:
		e.state.SetBbo(ev.BookTicker.Symbol, ev.BookTicker.Bbo())
	case ev.AggTrade != nil, ev.Trade != nil:
		// parsed but unused
	default:
		e.logger.Error("unknown market stream text", "payload", string(ev.Raw))
	}
}

func (e *Engine) onDepth(ctx context.Context, du *types.DepthUpdate) {
	if du.Symbol != e.cfg.Symbol {
		e.logger.Debug("depth update for untraded symbol dropped", "symbol", du.Symbol)
		return
	}

	ob := e.state.Book(du.Symbol)
	if ob == nil {
		e.buffer = append(e.buffer, du)
		return
	}

	if err := ob.Extend(du); err != nil {
		e.logger.Warn("depth gap detected, dropping book",
			"symbol", du.Symbol,
			"error", err,
		)
		e.state.DropBook(du.Symbol)
		e.startBootstrap(ctx)
		// The gapped delta may still straddle the next snapshot.
		e.buffer = append(e.buffer, du)
	}
}

func (e *Engine) onAccountEvent(ev types.AccountEvent) {
	switch {
	case ev.OrderTradeUpdate != nil:
		e.onOrderUpdate(ev.OrderTradeUpdate)
	case ev.TradeLite != nil:
		if order, ok := e.state.ActiveOrder(ev.TradeLite.ClientOrderID); ok {
			order.Touch(ev.TradeLite.TransactionTime)
		}
	case ev.AccountUpdate != nil:
		e.logger.Info("account update",
			"reason", ev.AccountUpdate.Data.Reason,
			"balances", len(ev.AccountUpdate.Data.Balances),
			"positions", len(ev.AccountUpdate.Data.Positions),
		)
	default:
		e.logger.Error("unknown account stream text", "payload", string(ev.Raw))
	}
}

// onOrderUpdate applies one venue order update to the local record and runs
// the execution-type transition table.
func (e *Engine) onOrderUpdate(ev *types.OrderTradeUpdate) {
	u := &ev.Order
	order, ok := e.state.ActiveOrder(u.ClientOrderID)
	if !ok {
		if e.state.InHist(u.ClientOrderID) {
			e.logger.Error("update for already completed order",
				"client_order_id", u.ClientOrderID,
				"exec_type", u.ExecType,
				"status", u.Status,
			)
		} else {
			e.logger.Error("update for untracked order",
				"client_order_id", u.ClientOrderID,
				"exec_type", u.ExecType,
				"status", u.Status,
			)
		}
		return
	}

	if drifted := order.OnUpdate(ev); drifted {
		e.logger.Warn("limit order traded as market order",
			"client_order_id", u.ClientOrderID,
			"status", u.Status,
			"total_filled_qty", u.FilledQty,
			"this_filled_qty", u.LastFilledQty,
			"this_filled_price", u.LastFilledPrice,
		)
	}

	switch u.ExecType {
	case types.ExecCanceled, types.ExecCalculated, types.ExecExpired:
		e.state.Complete(u.ClientOrderID)
	case types.ExecTrade:
		e.applyTrade(u)
		if u.Status == types.StatusFilled {
			e.state.Complete(u.ClientOrderID)
		}
	case types.ExecAmendment:
		if u.Status == types.StatusFilled || u.Status == types.StatusCanceled {
			e.state.Complete(u.ClientOrderID)
		}
	case types.ExecNew:
		// stays active
	}
}

func (e *Engine) applyTrade(u *types.OrderUpdate) {
	e.state.Ledger(u.Symbol).OnTrade(u)
	e.state.AddTurnover(u.LastFilledAmount())
}

// onQuoteTick asks the strategy for quotes and fires detached open tasks.
// Each order enters the active set before its HTTP call starts, so the
// venue's first stream update for it always finds a record.
func (e *Engine) onQuoteTick(ctx context.Context) {
	if e.state.Book(e.cfg.Symbol) == nil {
		return
	}

	for _, order := range e.strategy.GenerateQuotes(e.cfg.Symbol, e.state) {
		e.state.Register(order)
		go e.openOrderTask(ctx, order)
	}
}

func (e *Engine) openOrderTask(ctx context.Context, order *types.Order) {
	ack, err := e.client.OpenOrder(ctx, order)
	if err != nil {
		e.logger.Error("order open failed",
			"client_order_id", order.ClientOrderID,
			"symbol", order.Symbol,
			"side", order.Side,
			"price", order.OrigPrice,
			"qty", order.OrigQty,
			"category", apiCategory(err),
			"error", err,
		)
		return
	}
	e.logger.Info("order open acknowledged",
		"client_order_id", ack.ClientOrderID,
		"order_id", ack.OrderID,
		"status", ack.Status,
	)
}

// onCancelTick sweeps orders with no venue activity past the staleness
// threshold. This also garbage-collects ghost entries left by failed opens.
func (e *Engine) onCancelTick(ctx context.Context) {
	stale := e.state.StaleOrderIDs(e.cfg.StaleThreshold, time.Now())
	for _, target := range stale {
		go e.cancelOrderTask(ctx, target)
	}
	if len(stale) > 0 {
		e.logger.Info("stale order sweep", "count", len(stale))
	}
}

func (e *Engine) cancelOrderTask(ctx context.Context, target StaleOrder) {
	ack, err := e.client.CancelOrder(ctx, target.Symbol, target.ClientOrderID)
	if err != nil {
		e.logger.Error("order cancel failed",
			"client_order_id", target.ClientOrderID,
			"category", apiCategory(err),
			"error", err,
		)
		return
	}
	e.logger.Info("order cancel acknowledged",
		"client_order_id", ack.ClientOrderID,
		"status", ack.Status,
	)
}

// reportState emits the periodic one-line summary.
func (e *Engine) reportState() {
	sym := e.cfg.Symbol
	ledger := e.state.Ledger(sym)

	top := "-"
	if ob := e.state.Book(sym); ob != nil {
		top = ob.Show(1)
	}

	e.logger.Info("state report",
		"elapsed", time.Since(e.state.StartTime()).Round(time.Second),
		"symbol", sym,
		"turnover", e.state.Turnover(),
		"position", ledger.Position(),
		"realized_pnl", ledger.RealizedPnL(),
		"unrealized_pnl", ledger.UnrealizedPnL(),
		"execution_pnl", ledger.ExecutionPnL(),
		"active_orders", e.state.ActiveCount(),
		"top", top,
	)
}

func (e *Engine) onKeepaliveTick(ctx context.Context) {
	go func() {
		if err := e.client.KeepAliveListenKey(ctx); err != nil {
			e.logger.Error("listen key keepalive failed", "error", err)
			return
		}
		e.logger.Info("listen key kept alive")
	}()
}

// apiCategory extracts the coarse API error category for log lines.
func apiCategory(err error) exchange.APICategory {
	var apiErr *exchange.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category
	}
	return exchange.CategoryOther
}
