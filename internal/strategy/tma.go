package strategy

import (
	"fmt"

	"cryptotrader/internal/indicator"
	"cryptotrader/internal/model"
)

// ThreeMA trades crossovers of three exponential moving averages
// (long/mid/short).
//
// Short path: buy when mid < long and short < mid while flat, sell when
// short rises back above mid. Long path is the mirror: buy when mid > long
// and short > mid, sell when short falls back below mid. The two paths are
// mutually exclusive; only the final bar's event is reported.
type ThreeMA struct {
	periodLong  int
	periodMid   int
	periodShort int
}

// NewThreeMA creates a three-moving-average strategy. Periods must satisfy
// long > mid > short; violating this is a configuration error.
func NewThreeMA(periodLong, periodMid, periodShort int) (*ThreeMA, error) {
	if periodLong <= periodMid || periodMid <= periodShort {
		return nil, fmt.Errorf("tma: periods must satisfy long > mid > short, got %d/%d/%d",
			periodLong, periodMid, periodShort)
	}
	return &ThreeMA{
		periodLong:  periodLong,
		periodMid:   periodMid,
		periodShort: periodShort,
	}, nil
}

func (s *ThreeMA) Name() string {
	return fmt.Sprintf("Three Moving Average Strategy (long=%d, mid=%d, short=%d)", s.periodLong, s.periodMid, s.periodShort)
}

func (s *ThreeMA) Lookback() int {
	return s.periodLong + lookbackMargin
}

func (s *ThreeMA) Signal(bars []model.Bar) Signal {
	prices := model.Closes(bars)
	longMA := indicator.EMA(prices, s.periodLong)
	midMA := indicator.EMA(prices, s.periodMid)
	shortMA := indicator.EMA(prices, s.periodShort)

	var lastBuy, lastSell bool
	shortFlag, longFlag := false, false
	for i := range prices {
		buy, sell := false, false
		switch {
		case midMA[i] < longMA[i] && shortMA[i] < midMA[i] && !longFlag && !shortFlag:
			buy = true
			shortFlag = true
		case shortMA[i] > midMA[i] && shortFlag:
			sell = true
			shortFlag = false
		case midMA[i] > longMA[i] && shortMA[i] > midMA[i] && !longFlag && !shortFlag:
			buy = true
			longFlag = true
		case shortMA[i] < midMA[i] && longFlag:
			sell = true
			longFlag = false
		}
		if i == len(prices)-1 {
			lastBuy, lastSell = buy, sell
		}
	}

	return finalBarSignal(lastBuy, lastSell)
}
