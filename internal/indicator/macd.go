package indicator

// MACD returns the moving average convergence/divergence line and its
// signal line. The MACD line is EMA(series, short) - EMA(series, long);
// the signal line is an EMA of the MACD line over periodSignal.
// periodLong must be greater than periodShort.
func MACD(series []float64, periodLong, periodShort, periodSignal int) (macd, signal []float64) {
	longEMA := EMA(series, periodLong)
	shortEMA := EMA(series, periodShort)

	macd = make([]float64, len(series))
	for i := range series {
		macd[i] = shortEMA[i] - longEMA[i]
	}
	signal = EMA(macd, periodSignal)
	return macd, signal
}
