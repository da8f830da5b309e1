// Package backtest replays a strategy over historical bars with paper
// execution. The replay hands the strategy growing prefixes of the bar
// table, so a strategy behaves identically here and in the live loop.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cryptotrader/internal/exchange"
	"cryptotrader/internal/execution"
	"cryptotrader/internal/ledger"
	"cryptotrader/internal/model"
	"cryptotrader/internal/strategy"
)

// Market fetches historical bars.
type Market interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]model.Bar, error)
}

// Config holds the replay parameters. Backtests are always paper.
type Config struct {
	Coin       string
	QuoteAsset string // default USDT
	Interval   string
	Periods    int // number of historical bars to replay
	OrderSize  float64

	Position       float64
	Cash           float64
	CommissionRate float64
}

// Result summarizes one replay.
type Result struct {
	Trades      []model.Order
	Rejected    int
	InitWealth  float64
	FinalWealth float64
	Return      float64
	ReturnPct   float64
}

// Simulator replays a strategy over fetched history.
type Simulator struct {
	cfg    Config
	market Market
	strat  strategy.Strategy
	log    *slog.Logger
}

// New validates the replay parameters before any data is fetched. The bar
// count must exceed the strategy lookback or no window is ever evaluated.
func New(cfg Config, market Market, strat strategy.Strategy, logger *slog.Logger) (*Simulator, error) {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.Periods <= strat.Lookback() {
		return nil, fmt.Errorf("backtest: %d periods insufficient for strategy %s (lookback %d)",
			cfg.Periods, strat.Name(), strat.Lookback())
	}
	if cfg.OrderSize <= 0 {
		return nil, fmt.Errorf("backtest: order size must be positive, got %v", cfg.OrderSize)
	}
	return &Simulator{cfg: cfg, market: market, strat: strat, log: logger}, nil
}

// replayVenue prices paper fills at the close of the bar under replay.
type replayVenue struct {
	price float64
}

func (v *replayVenue) TickerPrice(ctx context.Context, symbol string) (float64, error) {
	return v.price, nil
}

func (v *replayVenue) NewMarketOrder(ctx context.Context, symbol string, side model.Side, qty float64) (exchange.OrderConfirmation, error) {
	return exchange.OrderConfirmation{}, errors.New("backtest: live orders are not available")
}

// Run fetches the history and replays the strategy over growing prefixes.
// Initial wealth is taken at the first bar's open, final wealth at the last
// bar's close.
func (s *Simulator) Run(ctx context.Context) (Result, error) {
	symbol := s.cfg.Coin + s.cfg.QuoteAsset
	bars, err := s.market.Klines(ctx, symbol, s.cfg.Interval, s.cfg.Periods)
	if err != nil {
		return Result{}, fmt.Errorf("backtest: fetch klines: %w", err)
	}
	lookback := s.strat.Lookback()
	if len(bars) <= lookback {
		return Result{}, fmt.Errorf("backtest: got %d bars, need more than %d", len(bars), lookback)
	}

	book := ledger.New()
	book.Seed(s.cfg.Position, s.cfg.Cash)
	initWealth := book.SnapshotInitial(bars[0].Open)

	venue := &replayVenue{}
	exec := execution.New(venue, book, execution.Config{
		PaperTrade:     true,
		CommissionRate: s.cfg.CommissionRate,
	})

	s.log.Info("replaying strategy", "strategy", s.strat.Name(), "symbol", symbol,
		"interval", s.cfg.Interval, "bars", len(bars), "init_wealth", initWealth)

	rejected := 0
	for i := lookback + 1; i < len(bars); i++ {
		window := bars[:i]
		venue.price = window[len(window)-1].Close

		sig := s.strat.Signal(window)
		if sig == strategy.SignalNone {
			continue
		}
		if _, err := exec.Execute(ctx, symbol, model.Side(sig), s.cfg.OrderSize); err != nil {
			var execErr *execution.ExecutionError
			if errors.As(err, &execErr) {
				rejected++
				s.log.Debug("replay order rejected", "bar", i, "reason", execErr.Reason)
				continue
			}
			return Result{}, fmt.Errorf("backtest: execute at bar %d: %w", i, err)
		}
	}

	finalPrice := bars[len(bars)-1].Close
	abs, pct := book.Return(finalPrice)
	return Result{
		Trades:      book.Trades(),
		Rejected:    rejected,
		InitWealth:  initWealth,
		FinalWealth: book.Value(finalPrice),
		Return:      abs,
		ReturnPct:   pct,
	}, nil
}
