package indicator

// EMA returns the exponential moving average of the series with smoothing
// factor 2/(window+1), seeded by the first observation (no bias
// correction). Defined from the first position onward.
func EMA(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}
	alpha := 2.0 / float64(window+1)
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = series[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}
