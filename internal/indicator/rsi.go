package indicator

// RSI returns the Relative Strength Index over a trailing window of price
// deltas: 100 - 100/(1+RS) where RS is the average gain divided by the
// average loss magnitude. The first window positions are undefined.
// A window with no losses yields 100, never a division fault.
func RSI(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}

	gains := make([]float64, len(series))
	losses := make([]float64, len(series))
	for i := 1; i < len(series); i++ {
		delta := series[i] - series[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	var gainSum, lossSum float64
	for i := range series {
		gainSum += gains[i]
		lossSum += losses[i]
		if i > window {
			gainSum -= gains[i-window]
			lossSum -= losses[i-window]
		}
		if i < window {
			out[i] = Undefined()
			continue
		}
		if lossSum == 0 {
			out[i] = 100.0
			continue
		}
		rs := gainSum / lossSum
		out[i] = 100.0 - 100.0/(1.0+rs)
	}
	return out
}
