package ledger

import (
	"math"
	"testing"

	"cryptotrader/internal/model"
)

func TestApplyFill_BuySellMirror(t *testing.T) {
	l := New()
	l.Seed(0, 1000)

	l.ApplyFill(model.SideBuy, 100, 2, 0.001)
	if got := l.Position(); got != 2 {
		t.Errorf("expected position 2, got %f", got)
	}
	if got := l.Cash(); got != 800 {
		t.Errorf("expected cash 800, got %f", got)
	}
	if got := l.Commissions(); math.Abs(got-0.2) > 1e-9 {
		t.Errorf("expected commissions 0.2, got %f", got)
	}

	l.ApplyFill(model.SideSell, 100, 2, 0.001)
	if got := l.Position(); got != 0 {
		t.Errorf("expected position 0, got %f", got)
	}
	if got := l.Cash(); got != 1000 {
		t.Errorf("expected cash 1000, got %f", got)
	}
	if got := l.Commissions(); math.Abs(got-0.4) > 1e-9 {
		t.Errorf("expected commissions to keep accruing, got %f", got)
	}
}

// A fill at the exact market price conserves wealth; only fees reduce it.
func TestValue_ConservationAtMarketPrice(t *testing.T) {
	l := New()
	l.Seed(0.5, 1000)

	price := 200.0
	before := l.Value(price)
	l.ApplyFill(model.SideBuy, price, 0.3, 0)
	after := l.Value(price)
	if math.Abs(after-before) > 1e-9 {
		t.Errorf("expected wealth conserved for fee-free fill, got %f -> %f", before, after)
	}

	l.ApplyFill(model.SideSell, price, 0.3, 0.001)
	withFee := l.Value(price)
	if withFee >= after {
		t.Errorf("expected fees to reduce wealth, got %f -> %f", after, withFee)
	}
}

func TestCommissions_Monotonic(t *testing.T) {
	l := New()
	l.Seed(1, 1000)

	prev := l.Commissions()
	fills := []model.Side{model.SideBuy, model.SideSell, model.SideSell, model.SideBuy}
	for _, side := range fills {
		l.ApplyFill(side, 50, 0.1, 0.002)
		if c := l.Commissions(); c < prev {
			t.Fatalf("commissions decreased: %f -> %f", prev, c)
		} else {
			prev = c
		}
	}
}

func TestCheckProfitLoss_Thresholds(t *testing.T) {
	cases := []struct {
		name   string
		price  float64 // drives wealth: position=1, cash=0
		exit   bool
		reason string
	}{
		{"profit target", 1250.01, true, ReasonProfit},
		{"stop loss", 945, true, ReasonLoss},
		{"lower edge holds", 950, false, ""},
		{"upper edge holds", 1250, false, ""},
		{"flat", 1000, false, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := New()
			l.Seed(1, 0)
			if init := l.SnapshotInitial(1000); init != 1000 {
				t.Fatalf("expected init wealth 1000, got %f", init)
			}

			exit, reason := l.CheckProfitLoss(tc.price, 25, -5)
			if exit != tc.exit || reason != tc.reason {
				t.Errorf("price %.2f: expected (%v,%q), got (%v,%q)",
					tc.price, tc.exit, tc.reason, exit, reason)
			}
		})
	}
}

func TestReturn_Figures(t *testing.T) {
	l := New()
	l.Seed(0, 1000)
	l.SnapshotInitial(500)

	l.ApplyFill(model.SideBuy, 500, 1, 0)
	abs, pct := l.Return(600)
	if math.Abs(abs-100) > 1e-9 {
		t.Errorf("expected absolute return 100, got %f", abs)
	}
	if math.Abs(pct-10) > 1e-9 {
		t.Errorf("expected 10%% return, got %f", pct)
	}
}

func TestTrades_SnapshotIsolated(t *testing.T) {
	l := New()
	l.RecordTrade(model.Order{Symbol: "BTCUSDT", Side: model.SideBuy, Qty: 1, Price: 100})

	trades := l.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	trades[0].Qty = 99
	if l.Trades()[0].Qty != 1 {
		t.Error("expected Trades to return an isolated copy")
	}
}
