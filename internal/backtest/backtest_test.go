package backtest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"cryptotrader/internal/model"
	"cryptotrader/internal/strategy"
)

type tableMarket struct {
	bars  []model.Bar
	calls int
}

func (m *tableMarket) Klines(ctx context.Context, symbol, interval string, limit int) ([]model.Bar, error) {
	m.calls++
	if limit < len(m.bars) {
		return m.bars[:limit], nil
	}
	return m.bars, nil
}

type scriptStrategy struct {
	lookback int
	signals  map[int]strategy.Signal // keyed by window length
	windows  []int
}

func (s *scriptStrategy) Name() string  { return "script" }
func (s *scriptStrategy) Lookback() int { return s.lookback }

func (s *scriptStrategy) Signal(bars []model.Bar) strategy.Signal {
	s.windows = append(s.windows, len(bars))
	if sig, ok := s.signals[len(bars)]; ok {
		return sig
	}
	return strategy.SignalNone
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func priceBars(prices []float64) []model.Bar {
	bars := make([]model.Bar, len(prices))
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		open := base.Add(time.Duration(i) * time.Hour)
		bars[i] = model.Bar{
			OpenTime:  open,
			CloseTime: open.Add(time.Hour),
			Symbol:    "BTCUSDT",
			Interval:  "1h",
			Open:      p, High: p, Low: p, Close: p,
			Volume: 1, Trades: 1, Closed: true,
		}
	}
	return bars
}

func TestNewRejectsInsufficientPeriods(t *testing.T) {
	market := &tableMarket{}
	strat := &scriptStrategy{lookback: 31}

	_, err := New(Config{Coin: "BTC", Interval: "1h", Periods: 31, OrderSize: 1},
		market, strat, quietLogger())
	if err == nil {
		t.Fatal("expected error for periods == lookback")
	}
	if market.calls != 0 {
		t.Fatalf("market queried %d times during validation, want 0", market.calls)
	}
}

func TestNewRejectsNonPositiveOrderSize(t *testing.T) {
	strat := &scriptStrategy{lookback: 5}
	_, err := New(Config{Coin: "BTC", Interval: "1h", Periods: 50, OrderSize: 0},
		&tableMarket{}, strat, quietLogger())
	if err == nil {
		t.Fatal("expected error for zero order size")
	}
}

func TestRunReplaysPrefixes(t *testing.T) {
	prices := make([]float64, 12)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	market := &tableMarket{bars: priceBars(prices)}
	strat := &scriptStrategy{lookback: 4}

	sim, err := New(Config{Coin: "BTC", Interval: "1h", Periods: 12, OrderSize: 1, Cash: 1000},
		market, strat, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Windows grow from lookback+1 up to N-1; the final bar is valuation only.
	want := []int{5, 6, 7, 8, 9, 10, 11}
	if len(strat.windows) != len(want) {
		t.Fatalf("window count = %d, want %d", len(strat.windows), len(want))
	}
	for i, n := range want {
		if strat.windows[i] != n {
			t.Fatalf("window %d length = %d, want %d", i, strat.windows[i], n)
		}
	}
}

func TestRunBuyAndHoldProfit(t *testing.T) {
	// Buy at 104 (close of the first evaluated window), hold to 120.
	prices := []float64{100, 101, 102, 103, 104, 105, 110, 115, 118, 120}
	market := &tableMarket{bars: priceBars(prices)}
	strat := &scriptStrategy{
		lookback: 4,
		signals:  map[int]strategy.Signal{5: strategy.SignalBuy},
	}

	sim, err := New(Config{Coin: "BTC", Interval: "1h", Periods: 10, OrderSize: 2, Cash: 1000},
		market, strat, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.InitWealth != 1000 {
		t.Fatalf("init wealth = %v, want 1000", res.InitWealth)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	buy := res.Trades[0]
	if buy.Side != model.SideBuy || buy.Price != 104 || buy.Qty != 2 {
		t.Fatalf("unexpected fill: %+v", buy)
	}
	// Cash 1000-208=792, position 2 valued at the final close 120.
	if res.FinalWealth != 792+2*120 {
		t.Fatalf("final wealth = %v, want %v", res.FinalWealth, 792+2*120.0)
	}
	if res.Return != res.FinalWealth-1000 {
		t.Fatalf("return = %v, want %v", res.Return, res.FinalWealth-1000)
	}
	wantPct := (res.FinalWealth/1000 - 1) * 100
	if res.ReturnPct != wantPct {
		t.Fatalf("return pct = %v, want %v", res.ReturnPct, wantPct)
	}
}

func TestRunCountsRejections(t *testing.T) {
	prices := make([]float64, 10)
	for i := range prices {
		prices[i] = 50 + float64(i)
	}
	market := &tableMarket{bars: priceBars(prices)}
	// Sells with no position: every signal is rejected, the replay finishes.
	strat := &scriptStrategy{
		lookback: 4,
		signals: map[int]strategy.Signal{
			5: strategy.SignalSell,
			6: strategy.SignalSell,
		},
	}

	sim, err := New(Config{Coin: "BTC", Interval: "1h", Periods: 10, OrderSize: 1, Cash: 500},
		market, strat, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := sim.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Rejected != 2 {
		t.Fatalf("rejected = %d, want 2", res.Rejected)
	}
	if len(res.Trades) != 0 {
		t.Fatalf("trades = %d, want 0", len(res.Trades))
	}
	if res.FinalWealth != 500 {
		t.Fatalf("final wealth = %v, want untouched 500", res.FinalWealth)
	}
}
