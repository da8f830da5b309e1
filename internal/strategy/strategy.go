// Package strategy provides the trading strategies evaluated by the trading
// loop and the backtest simulator.
//
// A Strategy is a pure function of a whole bar window: every call recomputes
// its crossover state from scratch over the supplied bars, so no state is
// carried between calls and a window produces the same signal whether it
// arrived live or as a backtest prefix.
package strategy

import (
	"fmt"
	"strconv"
	"strings"

	"cryptotrader/internal/model"
)

// Signal is a trading decision for the final bar of a window.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalNone Signal = ""
)

// Strategy is the interface all trading strategies implement.
type Strategy interface {
	// Name returns a human-readable description of the strategy.
	Name() string

	// Lookback returns the minimum number of bars required before Signal
	// may be called. Callers must enforce this.
	Lookback() int

	// Signal evaluates the whole window (oldest bar first) and returns the
	// decision for its final bar.
	Signal(bars []model.Bar) Signal
}

// New builds a strategy from a spec string such as "macd", "macd:26,12,9",
// "tma:63,21,5" or "random:25,75". Omitted periods use the defaults.
func New(spec string) (Strategy, error) {
	name, args, _ := strings.Cut(strings.TrimSpace(spec), ":")
	periods, err := parsePeriods(args)
	if err != nil {
		return nil, fmt.Errorf("strategy spec %q: %w", spec, err)
	}

	switch strings.ToLower(name) {
	case "macd":
		long, short, signal := 26, 12, 9
		if len(periods) == 3 {
			long, short, signal = periods[0], periods[1], periods[2]
		} else if len(periods) != 0 {
			return nil, fmt.Errorf("strategy spec %q: macd takes 3 periods", spec)
		}
		return NewMACDCrossover(long, short, signal)
	case "tma":
		long, mid, short := 63, 21, 5
		if len(periods) == 3 {
			long, mid, short = periods[0], periods[1], periods[2]
		} else if len(periods) != 0 {
			return nil, fmt.Errorf("strategy spec %q: tma takes 3 periods", spec)
		}
		return NewThreeMA(long, mid, short)
	case "random":
		lower, upper := 25, 75
		if len(periods) == 2 {
			lower, upper = periods[0], periods[1]
		} else if len(periods) != 0 {
			return nil, fmt.Errorf("strategy spec %q: random takes 2 bounds", spec)
		}
		return NewRandom(lower, upper), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

func parsePeriods(args string) ([]int, error) {
	if strings.TrimSpace(args) == "" {
		return nil, nil
	}
	parts := strings.Split(args, ",")
	periods := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid period %q", p)
		}
		periods = append(periods, n)
	}
	return periods, nil
}
