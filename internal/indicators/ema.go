package indicators

// EMA computes an exponential moving average over the whole of values,
// seeded with values[0] and smoothed with 2/(period+1).
// It returns false when values holds fewer than period entries.
func EMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	k := 2.0 / (float64(period) + 1.0)
	ema := values[0]
	for _, v := range values[1:] {
		ema = v*k + ema*(1-k)
	}
	return ema, true
}
