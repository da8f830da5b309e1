// Package bot runs the live trading loop: it consumes the bar stream,
// maintains the closed-bar window, evaluates the strategy and the
// profit/loss circuit breaker, and routes signals to the order executor.
//
// The loop is a single consumer: every ledger mutation happens from the
// stream callback goroutine, and all stop paths (duration elapsed, fatal
// transport error, circuit breaker, interrupt) funnel through one context
// cancellation so the close-out summary runs exactly once.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cryptotrader/internal/execution"
	"cryptotrader/internal/ledger"
	"cryptotrader/internal/marketdata/agg"
	"cryptotrader/internal/metrics"
	"cryptotrader/internal/model"
	"cryptotrader/internal/notification"
	"cryptotrader/internal/strategy"
)

// State is the trading loop lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateExiting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateRunning:
		return "RUNNING"
	case StateExiting:
		return "EXITING"
	case StateStopped:
		return "STOPPED"
	}
	return "UNKNOWN"
}

// Market is the REST slice of the exchange the loop consumes.
type Market interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]model.Bar, error)
	TickerPrice(ctx context.Context, symbol string) (float64, error)
	CoinBalance(ctx context.Context, asset string) (float64, error)
}

// Stream is the push-based bar subscription.
type Stream interface {
	Run(ctx context.Context, symbol, interval string, handler func(raw []byte)) error
}

// BarPublisher receives every closed bar (observability, optional).
type BarPublisher interface {
	PublishBar(ctx context.Context, bar model.Bar)
}

// Config holds the session parameters.
type Config struct {
	Coin       string
	QuoteAsset string // default USDT
	Interval   string
	OrderSize  float64
	Duration   time.Duration // 0 = unbounded
	ProfitPct  float64       // positive percentage
	LossPct    float64       // negative percentage
	PaperTrade bool

	// Paper allocation, or real balances when UseRealBalance is set.
	PaperPosition  float64
	PaperCash      float64
	UseRealBalance bool

	// Fraction of the position sold on a "Loss" exit.
	LiquidateFraction float64 // default 0.1

	WindowMaxLen int // default agg.DefaultMaxLen
}

// Bot orchestrates one trading session. It owns the session ledger.
type Bot struct {
	cfg      Config
	market   Market
	stream   Stream
	executor *execution.Executor
	ledger   *ledger.Ledger
	agg      *agg.Aggregator
	strat    strategy.Strategy
	log      *slog.Logger

	// Optional collaborators.
	notifier  notification.Notifier
	metrics   *metrics.Metrics
	health    *metrics.HealthStatus
	publisher BarPublisher

	symbol     string
	state      State
	window     []model.Bar
	exitReason string
	rejections int
	cancel     context.CancelFunc
	closeOnce  sync.Once
}

// New creates a trading bot. The ledger reference is shared with the
// executor; the bot is its single writer.
func New(cfg Config, market Market, stream Stream, exec *execution.Executor, l *ledger.Ledger, strat strategy.Strategy, logger *slog.Logger) *Bot {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.LiquidateFraction == 0 {
		cfg.LiquidateFraction = 0.1
	}
	return &Bot{
		cfg:      cfg,
		market:   market,
		stream:   stream,
		executor: exec,
		ledger:   l,
		agg:      agg.New(cfg.WindowMaxLen),
		strat:    strat,
		log:      logger,
		symbol:   cfg.Coin + cfg.QuoteAsset,
		notifier: notification.NewLogNotifier(),
	}
}

// SetNotifier replaces the default log notifier.
func (b *Bot) SetNotifier(n notification.Notifier) { b.notifier = n }

// SetMetrics attaches Prometheus metrics and health status.
func (b *Bot) SetMetrics(m *metrics.Metrics, h *metrics.HealthStatus) {
	b.metrics = m
	b.health = h
	b.agg.OnDuplicate = m.DuplicateBars.Inc
	b.agg.OnForming = m.FormingBars.Inc
}

// SetPublisher attaches a closed-bar publisher.
func (b *Bot) SetPublisher(p BarPublisher) { b.publisher = p }

// State returns the current lifecycle state.
func (b *Bot) State() State { return b.state }

// Window returns the current closed-bar window.
func (b *Bot) Window() []model.Bar { return b.window }

// Run executes the session: seed, subscribe, trade until the stop signal,
// then close out. Blocks for the whole session.
func (b *Bot) Run(ctx context.Context) error {
	b.setState(StateInitializing)
	b.log.Info("running strategy", "strategy", b.strat.Name(), "symbol", b.symbol,
		"interval", b.cfg.Interval, "order_size", b.cfg.OrderSize,
		"take_profit_pct", b.cfg.ProfitPct, "stop_loss_pct", b.cfg.LossPct,
		"paper_trade", b.cfg.PaperTrade)

	if err := b.initialize(ctx); err != nil {
		return fmt.Errorf("bot: initialize: %w", err)
	}

	runCtx := ctx
	if b.cfg.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.cfg.Duration)
		defer cancel()
		b.cancel = cancel
	} else {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		b.cancel = cancel
	}

	b.setState(StateRunning)
	if b.health != nil {
		b.health.SetStreamConnected(true)
	}
	err := b.stream.Run(runCtx, b.symbol, b.cfg.Interval, func(raw []byte) {
		b.handleUpdate(runCtx, raw)
	})
	if b.health != nil {
		b.health.SetStreamConnected(false)
	}
	if err != nil && b.exitReason == "" {
		b.exitReason = "transport error"
		b.log.Error("bar stream failed", "err", err)
	}

	b.closeOut(ctx)
	return err
}

// initialize fetches the lookback window, seeds positions and snapshots
// initial wealth.
func (b *Bot) initialize(ctx context.Context) error {
	window, err := b.market.Klines(ctx, b.symbol, b.cfg.Interval, b.strat.Lookback())
	if err != nil {
		return err
	}
	b.window = window

	if b.cfg.PaperTrade && !b.cfg.UseRealBalance {
		b.ledger.Seed(b.cfg.PaperPosition, b.cfg.PaperCash)
	} else {
		position, err := b.market.CoinBalance(ctx, b.cfg.Coin)
		if err != nil {
			return err
		}
		cash, err := b.market.CoinBalance(ctx, b.cfg.QuoteAsset)
		if err != nil {
			return err
		}
		b.ledger.Seed(position, cash)
	}

	price, err := b.market.TickerPrice(ctx, b.symbol)
	if err != nil {
		return err
	}
	initWealth := b.ledger.SnapshotInitial(price)
	b.log.Info("session seeded", "position", b.ledger.Position(), "cash", b.ledger.Cash(),
		"init_wealth", initWealth, "lookback_bars", len(b.window))
	return nil
}

// handleUpdate processes one raw stream frame on the consumer goroutine.
func (b *Bot) handleUpdate(ctx context.Context, raw []byte) {
	update := model.DecodeUpdate(raw)
	switch update.Kind {
	case model.UpdateKeepAlive:
		return
	case model.UpdateUnknown:
		// Malformed payload: fatal to the session, never to the ledger.
		b.log.Error("unexpected stream payload, terminating session", "payload", string(raw))
		b.exitReason = "transport error"
		b.setState(StateExiting)
		b.stop()
		return
	}

	window, changed := b.agg.Ingest(update.Bar, b.window)
	b.window = window
	if !changed {
		return
	}
	bar := update.Bar
	if b.metrics != nil {
		b.metrics.BarsTotal.Inc()
		b.metrics.WealthGauge.Set(b.ledger.Value(bar.Close))
		b.metrics.CommissionsPaid.Set(b.ledger.Commissions())
	}
	if b.health != nil {
		b.health.SetLastBarTime(bar.CloseTime)
	}
	if b.publisher != nil {
		b.publisher.PublishBar(ctx, bar)
	}

	if exit, reason := b.ledger.CheckProfitLoss(bar.Close, b.cfg.ProfitPct, b.cfg.LossPct); exit {
		b.exitCircuitBreaker(ctx, reason, bar.Close)
		return
	}
	if b.metrics != nil {
		_, pct := b.ledger.Return(bar.Close)
		b.metrics.CurrentReturn.Set(pct)
	}

	b.executeStrategy(ctx)
}

// executeStrategy evaluates the strategy over the current window and acts
// on a non-NONE signal. Execution errors are reported and survived.
func (b *Bot) executeStrategy(ctx context.Context) {
	if len(b.window) < b.strat.Lookback() {
		return
	}

	sig := b.strat.Signal(b.window)
	if b.metrics != nil {
		b.metrics.SignalsTotal.WithLabelValues(signalLabel(sig)).Inc()
	}
	if sig == strategy.SignalNone {
		b.log.Debug("no order was placed")
		return
	}

	order, err := b.executor.Execute(ctx, b.symbol, model.Side(sig), b.cfg.OrderSize)
	if err != nil {
		var execErr *execution.ExecutionError
		if errors.As(err, &execErr) {
			b.rejections++
			if b.metrics != nil {
				b.metrics.OrdersRejected.WithLabelValues(execErr.Reason).Inc()
			}
			b.notify(ctx, notification.RejectionAlert(b.symbol, execErr.Reason))
			return
		}
		b.log.Error("order execution failed", "err", err)
		return
	}
	if b.metrics != nil {
		b.metrics.OrdersTotal.WithLabelValues(string(order.Side), b.mode()).Inc()
	}
	b.notify(ctx, notification.FillAlert(order))
}

// exitCircuitBreaker handles a profit/loss exit: on "Loss" it first
// liquidates the configured fraction of the position, then stops.
func (b *Bot) exitCircuitBreaker(ctx context.Context, reason string, price float64) {
	b.exitReason = reason
	b.setState(StateExiting)

	_, pct := b.ledger.Return(price)
	b.notify(ctx, notification.ExitAlert(reason, pct))

	if reason == ledger.ReasonLoss {
		toSell := b.ledger.Position() * b.cfg.LiquidateFraction
		if toSell > 0 {
			b.log.Info("liquidating position fraction on stop loss",
				"fraction", b.cfg.LiquidateFraction, "qty", toSell)
			if _, err := b.executor.ExecuteWithCommission(ctx, b.symbol, model.SideSell, toSell, 0); err != nil {
				b.log.Error("liquidation order failed", "err", err)
			}
		}
	}
	b.stop()
}

// closeOut emits the final summary exactly once.
func (b *Bot) closeOut(ctx context.Context) {
	b.closeOnce.Do(func() {
		b.setState(StateStopped)

		price, err := b.market.TickerPrice(ctx, b.symbol)
		if err != nil {
			// Fall back to the last closed bar for valuation.
			if n := len(b.window); n > 0 {
				price = b.window[n-1].Close
			}
		}
		abs, pct := b.ledger.Return(price)
		trades := b.ledger.Trades()

		b.log.Info("closing session",
			"reason", b.reasonOrDefault(),
			"trades", len(trades),
			"rejected_orders", b.rejections,
			"position", b.ledger.Position(),
			"cash", b.ledger.Cash(),
			"commissions", b.ledger.Commissions(),
			"wealth", b.ledger.Value(price),
			"return", abs,
			"return_pct", pct)
		for _, trade := range trades {
			b.log.Info("session trade", "order", trade.String())
		}
	})
}

func (b *Bot) reasonOrDefault() string {
	if b.exitReason == "" {
		return "session complete"
	}
	return b.exitReason
}

// stop fires the single authoritative stop signal.
func (b *Bot) stop() {
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *Bot) setState(s State) {
	b.state = s
	if b.metrics != nil {
		b.metrics.SessionState.Set(float64(s))
	}
	b.log.Debug("state transition", "state", s.String())
}

func (b *Bot) notify(ctx context.Context, alert notification.Alert) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Send(ctx, alert); err != nil {
		b.log.Warn("notification failed", "err", err)
	}
}

func (b *Bot) mode() string {
	if b.cfg.PaperTrade {
		return "paper"
	}
	return "live"
}

func signalLabel(sig strategy.Signal) string {
	if sig == strategy.SignalNone {
		return "NONE"
	}
	return string(sig)
}
