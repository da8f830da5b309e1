package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"cryptotrader/internal/exchange"
	"cryptotrader/internal/execution"
	"cryptotrader/internal/ledger"
	"cryptotrader/internal/model"
	"cryptotrader/internal/strategy"
)

type fakeMarket struct {
	klines   []model.Bar
	price    float64
	balances map[string]float64
}

func (m *fakeMarket) Klines(ctx context.Context, symbol, interval string, limit int) ([]model.Bar, error) {
	if limit < len(m.klines) {
		return m.klines[len(m.klines)-limit:], nil
	}
	return m.klines, nil
}

func (m *fakeMarket) TickerPrice(ctx context.Context, symbol string) (float64, error) {
	return m.price, nil
}

func (m *fakeMarket) CoinBalance(ctx context.Context, asset string) (float64, error) {
	return m.balances[asset], nil
}

func (m *fakeMarket) NewMarketOrder(ctx context.Context, symbol string, side model.Side, qty float64) (exchange.OrderConfirmation, error) {
	return exchange.OrderConfirmation{}, fmt.Errorf("no live orders in paper tests")
}

type fakeStream struct {
	frames [][]byte
}

func (s *fakeStream) Run(ctx context.Context, symbol, interval string, handler func(raw []byte)) error {
	for _, f := range s.frames {
		if ctx.Err() != nil {
			return nil
		}
		handler(f)
	}
	<-ctx.Done()
	return nil
}

// scriptStrategy replays a fixed signal sequence and records every window
// it was handed.
type scriptStrategy struct {
	lookback int
	signals  []strategy.Signal
	calls    int
	windows  [][]model.Bar
}

func (s *scriptStrategy) Name() string  { return "script" }
func (s *scriptStrategy) Lookback() int { return s.lookback }

func (s *scriptStrategy) Signal(bars []model.Bar) strategy.Signal {
	s.windows = append(s.windows, append([]model.Bar(nil), bars...))
	sig := strategy.SignalNone
	if s.calls < len(s.signals) {
		sig = s.signals[s.calls]
	}
	s.calls++
	return sig
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedBars(n int, startPrice float64) []model.Bar {
	bars := make([]model.Bar, n)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		open := base.Add(time.Duration(i) * time.Minute)
		p := startPrice + float64(i)
		bars[i] = model.Bar{
			OpenTime:  open,
			CloseTime: open.Add(time.Minute),
			Symbol:    "BTCUSDT",
			Interval:  "1m",
			Open:      p, High: p, Low: p, Close: p,
			Volume: 1, Trades: 1, Closed: true,
		}
	}
	return bars
}

func klineFrame(openTime time.Time, closePrice float64, closed bool) []byte {
	return []byte(fmt.Sprintf(
		`{"e":"kline","E":%d,"s":"BTCUSDT","k":{"t":%d,"T":%d,"s":"BTCUSDT","i":"1m","o":"%f","c":"%f","h":"%f","l":"%f","v":"1.0","n":5,"x":%t}}`,
		openTime.UnixMilli(), openTime.UnixMilli(), openTime.Add(time.Minute).UnixMilli(),
		closePrice, closePrice, closePrice, closePrice, closed))
}

func newPaperBot(market *fakeMarket, stream Stream, strat strategy.Strategy, cfg Config) (*Bot, *ledger.Ledger) {
	l := ledger.New()
	exec := execution.New(market, l, execution.Config{PaperTrade: true, CommissionRate: 0.00075})
	cfg.Coin = "BTC"
	cfg.Interval = "1m"
	cfg.PaperTrade = true
	return New(cfg, market, stream, exec, l, strat, quietLogger()), l
}

func TestRunPaperSessionPlacesOrders(t *testing.T) {
	seed := seedBars(5, 100)
	market := &fakeMarket{klines: seed, price: 105}

	next := seed[len(seed)-1].CloseTime
	stream := &fakeStream{frames: [][]byte{
		[]byte(`{"result":null,"id":1}`),
		klineFrame(next, 106, false), // forming, must be ignored
		klineFrame(next, 106, true),
		klineFrame(next.Add(time.Minute), 107, true),
	}}

	strat := &scriptStrategy{lookback: 5, signals: []strategy.Signal{strategy.SignalBuy, strategy.SignalSell}}
	bot, l := newPaperBot(market, stream, strat, Config{
		OrderSize:     1,
		Duration:      200 * time.Millisecond,
		ProfitPct:     500,
		LossPct:       -99,
		PaperPosition: 10,
		PaperCash:     10000,
	})

	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bot.State() != StateStopped {
		t.Fatalf("state = %v, want STOPPED", bot.State())
	}
	trades := l.Trades()
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(trades))
	}
	if trades[0].Side != model.SideBuy || trades[1].Side != model.SideSell {
		t.Fatalf("trade sides = %v, %v", trades[0].Side, trades[1].Side)
	}
	if strat.calls != 2 {
		t.Fatalf("strategy evaluated %d times, want 2 (one per changed bar)", strat.calls)
	}
}

func TestRunIgnoresKeepAliveAndFormingBars(t *testing.T) {
	seed := seedBars(3, 100)
	market := &fakeMarket{klines: seed, price: 100}

	next := seed[len(seed)-1].CloseTime
	stream := &fakeStream{frames: [][]byte{
		[]byte(`{"result":null,"id":1}`),
		klineFrame(next, 101, false),
		klineFrame(next, 102, false),
	}}

	strat := &scriptStrategy{lookback: 3}
	bot, l := newPaperBot(market, stream, strat, Config{
		OrderSize: 1, Duration: 100 * time.Millisecond,
		ProfitPct: 500, LossPct: -99,
		PaperPosition: 1, PaperCash: 1000,
	})

	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strat.calls != 0 {
		t.Fatalf("strategy evaluated %d times on forming bars, want 0", strat.calls)
	}
	if len(l.Trades()) != 0 {
		t.Fatalf("trades = %d, want 0", len(l.Trades()))
	}
	if got := len(bot.Window()); got != 3 {
		t.Fatalf("window length = %d, want 3 (forming bars never appended)", got)
	}
}

func TestRunDuplicateBarIsIdempotent(t *testing.T) {
	seed := seedBars(3, 100)
	market := &fakeMarket{klines: seed, price: 100}

	next := seed[len(seed)-1].CloseTime
	dup := klineFrame(next, 101, true)
	stream := &fakeStream{frames: [][]byte{dup, dup, dup}}

	strat := &scriptStrategy{lookback: 3}
	bot, _ := newPaperBot(market, stream, strat, Config{
		OrderSize: 1, Duration: 100 * time.Millisecond,
		ProfitPct: 500, LossPct: -99,
		PaperPosition: 1, PaperCash: 1000,
	})

	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strat.calls != 1 {
		t.Fatalf("strategy evaluated %d times for one distinct bar, want 1", strat.calls)
	}
	if got := len(bot.Window()); got != 4 {
		t.Fatalf("window length = %d, want 4", got)
	}
}

func TestRunUnknownPayloadIsFatal(t *testing.T) {
	seed := seedBars(3, 100)
	market := &fakeMarket{klines: seed, price: 100}

	stream := &fakeStream{frames: [][]byte{
		[]byte(`{"error":"unexpected"}`),
		klineFrame(seed[len(seed)-1].CloseTime, 101, true),
	}}

	strat := &scriptStrategy{lookback: 3}
	bot, l := newPaperBot(market, stream, strat, Config{
		OrderSize: 1, Duration: 5 * time.Second,
		ProfitPct: 500, LossPct: -99,
		PaperPosition: 1, PaperCash: 1000,
	})

	start := time.Now()
	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("session did not terminate promptly on a malformed payload")
	}
	if bot.State() != StateStopped {
		t.Fatalf("state = %v, want STOPPED", bot.State())
	}
	if strat.calls != 0 {
		t.Fatalf("strategy ran after a fatal payload, calls = %d", strat.calls)
	}
	if len(l.Trades()) != 0 {
		t.Fatalf("trades = %d after fatal payload, want 0", len(l.Trades()))
	}
}

func TestRunProfitExitStopsWithoutLiquidation(t *testing.T) {
	seed := seedBars(3, 100)
	market := &fakeMarket{klines: seed, price: 100}

	next := seed[len(seed)-1].CloseTime
	stream := &fakeStream{frames: [][]byte{
		klineFrame(next, 150, true), // +50% on an all-position book
	}}

	strat := &scriptStrategy{lookback: 3, signals: []strategy.Signal{strategy.SignalBuy}}
	bot, l := newPaperBot(market, stream, strat, Config{
		OrderSize: 1, Duration: 5 * time.Second,
		ProfitPct: 25, LossPct: -99,
		PaperPosition: 10, PaperCash: 0,
	})

	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bot.exitReason != ledger.ReasonProfit {
		t.Fatalf("exit reason = %q, want %q", bot.exitReason, ledger.ReasonProfit)
	}
	if strat.calls != 0 {
		t.Fatal("strategy ran on the bar that tripped the circuit breaker")
	}
	if len(l.Trades()) != 0 {
		t.Fatalf("trades = %d, profit exit must not liquidate", len(l.Trades()))
	}
}

func TestRunLossExitLiquidatesFraction(t *testing.T) {
	seed := seedBars(3, 100)
	market := &fakeMarket{klines: seed, price: 100}

	next := seed[len(seed)-1].CloseTime
	stream := &fakeStream{frames: [][]byte{
		klineFrame(next, 80, true), // -20% on an all-position book
	}}

	strat := &scriptStrategy{lookback: 3}
	bot, l := newPaperBot(market, stream, strat, Config{
		OrderSize: 1, Duration: 5 * time.Second,
		ProfitPct: 500, LossPct: -10,
		PaperPosition: 10, PaperCash: 0,
	})

	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bot.exitReason != ledger.ReasonLoss {
		t.Fatalf("exit reason = %q, want %q", bot.exitReason, ledger.ReasonLoss)
	}
	trades := l.Trades()
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1 liquidation sell", len(trades))
	}
	liq := trades[0]
	if liq.Side != model.SideSell {
		t.Fatalf("liquidation side = %v, want SELL", liq.Side)
	}
	if liq.Qty != 1 { // 10% of the 10-unit position
		t.Fatalf("liquidation qty = %v, want 1", liq.Qty)
	}
	if liq.Commission != 0 {
		t.Fatalf("liquidation commission = %v, want 0", liq.Commission)
	}
	if got := l.Position(); got != 9 {
		t.Fatalf("position after liquidation = %v, want 9", got)
	}
}

func TestRunLookbackGatesStrategy(t *testing.T) {
	seed := seedBars(3, 100)
	market := &fakeMarket{klines: seed, price: 100}

	next := seed[len(seed)-1].CloseTime
	stream := &fakeStream{frames: [][]byte{
		klineFrame(next, 101, true),
		klineFrame(next.Add(time.Minute), 102, true),
		klineFrame(next.Add(2*time.Minute), 103, true),
	}}

	// Lookback of 5 with 3 seed bars: evaluation starts at the 5th bar.
	strat := &scriptStrategy{lookback: 5}
	bot, _ := newPaperBot(market, stream, strat, Config{
		OrderSize: 1, Duration: 100 * time.Millisecond,
		ProfitPct: 500, LossPct: -99,
		PaperPosition: 1, PaperCash: 1000,
	})

	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strat.calls != 2 {
		t.Fatalf("strategy evaluated %d times, want 2 (bars 5 and 6 only)", strat.calls)
	}
}

func TestRunSurvivesOrderRejection(t *testing.T) {
	seed := seedBars(3, 100)
	market := &fakeMarket{klines: seed, price: 100}

	next := seed[len(seed)-1].CloseTime
	stream := &fakeStream{frames: [][]byte{
		klineFrame(next, 101, true),
		klineFrame(next.Add(time.Minute), 102, true),
	}}

	// Both signals are buys; there is no cash, so both are rejected.
	strat := &scriptStrategy{lookback: 3, signals: []strategy.Signal{strategy.SignalBuy, strategy.SignalBuy}}
	bot, l := newPaperBot(market, stream, strat, Config{
		OrderSize: 1, Duration: 100 * time.Millisecond,
		ProfitPct: 500, LossPct: -99,
		PaperPosition: 10, PaperCash: 5,
	})

	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strat.calls != 2 {
		t.Fatalf("strategy evaluated %d times, want 2 (rejections never stop the loop)", strat.calls)
	}
	if bot.rejections != 2 {
		t.Fatalf("rejections = %d, want 2", bot.rejections)
	}
	if len(l.Trades()) != 0 {
		t.Fatalf("trades = %d, want 0", len(l.Trades()))
	}
}

// TestLiveWindowMatchesPrefixReplay checks the replay guarantee: the window
// the strategy sees after ingesting bars one at a time equals the prefix of
// the full bar table at every step.
func TestLiveWindowMatchesPrefixReplay(t *testing.T) {
	table := seedBars(20, 100)
	seedLen := 5
	market := &fakeMarket{klines: table[:seedLen], price: 100}

	frames := make([][]byte, 0, len(table)-seedLen)
	for _, bar := range table[seedLen:] {
		frames = append(frames, klineFrame(bar.OpenTime, bar.Close, true))
	}
	stream := &fakeStream{frames: frames}

	strat := &scriptStrategy{lookback: seedLen}
	bot, _ := newPaperBot(market, stream, strat, Config{
		OrderSize: 1, Duration: 200 * time.Millisecond,
		ProfitPct: 500, LossPct: -99,
		PaperPosition: 1, PaperCash: 1000,
	})

	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(strat.windows) != len(table)-seedLen {
		t.Fatalf("strategy calls = %d, want %d", len(strat.windows), len(table)-seedLen)
	}
	for i, window := range strat.windows {
		prefix := table[:seedLen+i+1]
		if len(window) != len(prefix) {
			t.Fatalf("call %d: window length %d, want prefix length %d", i, len(window), len(prefix))
		}
		for j := range window {
			if !window[j].OpenTime.Equal(prefix[j].OpenTime) || window[j].Close != prefix[j].Close {
				t.Fatalf("call %d bar %d: window diverged from table prefix", i, j)
			}
		}
	}
}
