package indicator

// SMA returns the simple moving average of the series over a trailing
// window. The first window-1 positions are undefined.
func SMA(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	sum := 0.0
	for i, v := range series {
		sum += v
		if i >= window {
			sum -= series[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		} else {
			out[i] = Undefined()
		}
	}
	return out
}
