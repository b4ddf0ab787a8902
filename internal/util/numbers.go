package util

// MinOr returns the smallest of values, or defaultValue when there are none.
func MinOr(values []uint8, defaultValue uint8) uint8 {
	if len(values) == 0 {
		return defaultValue
	}
	m := values[0]
	for _, v := range values[1:] {
		m = min(m, v)
	}
	return m
}

// Percent clamps v to 0..100 and scales it to a 0..1 fraction.
func Percent(v uint8) float64 {
	return float64(min(v, 100)) / 100
}
