package strategy

import (
	"fmt"

	"cryptotrader/internal/indicator"
	"cryptotrader/internal/model"
)

// lookbackMargin is the safety margin added on top of the longest
// configured period.
const lookbackMargin = 5

// MACDCrossover trades MACD line / signal line crossovers.
//
// Buy: the first bar where MACD crosses above the signal line while flat.
// Sell: the first bar after that where MACD falls back below the signal
// line. Only the final bar's event is reported.
type MACDCrossover struct {
	periodLong   int
	periodShort  int
	periodSignal int
}

// NewMACDCrossover creates a MACD crossover strategy. periodLong must be
// greater than periodShort; violating this is a configuration error.
func NewMACDCrossover(periodLong, periodShort, periodSignal int) (*MACDCrossover, error) {
	if periodLong <= periodShort {
		return nil, fmt.Errorf("macd: period_long (%d) must be greater than period_short (%d)", periodLong, periodShort)
	}
	if periodSignal <= 0 {
		return nil, fmt.Errorf("macd: period_signal (%d) must be positive", periodSignal)
	}
	return &MACDCrossover{
		periodLong:   periodLong,
		periodShort:  periodShort,
		periodSignal: periodSignal,
	}, nil
}

func (s *MACDCrossover) Name() string {
	return fmt.Sprintf("MACD Strategy (long=%d, short=%d, signal=%d)", s.periodLong, s.periodShort, s.periodSignal)
}

func (s *MACDCrossover) Lookback() int {
	longest := s.periodLong
	if s.periodSignal > longest {
		longest = s.periodSignal
	}
	return longest + lookbackMargin
}

func (s *MACDCrossover) Signal(bars []model.Bar) Signal {
	prices := model.Closes(bars)
	macdLine, signalLine := indicator.MACD(prices, s.periodLong, s.periodShort, s.periodSignal)

	// Walk the whole window chronologically, replaying every crossover.
	var lastBuy, lastSell bool
	inPosition := false
	for i := range prices {
		buy, sell := false, false
		switch {
		case macdLine[i] > signalLine[i]:
			if !inPosition {
				buy = true
				inPosition = true
			}
		case macdLine[i] < signalLine[i]:
			if inPosition {
				sell = true
				inPosition = false
			}
		}
		if i == len(prices)-1 {
			lastBuy, lastSell = buy, sell
		}
	}

	return finalBarSignal(lastBuy, lastSell)
}

// finalBarSignal applies the final-bar-only reporting rule: a contradictory
// bar (both events) or a quiet bar yields no signal.
func finalBarSignal(buy, sell bool) Signal {
	if buy == sell {
		return SignalNone
	}
	if buy {
		return SignalBuy
	}
	return SignalSell
}
