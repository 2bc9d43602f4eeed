package distribution

import "math"

// chiSquare05 holds chi-square critical values at alpha=0.05, indexed by
// degrees of freedom (index 0 unused).
var chiSquare05 = [...]float64{
	0,
	3.841, 5.991, 7.815, 9.488, 11.070,
	12.592, 14.067, 15.507, 16.919, 18.307,
	19.675, 21.026, 22.362, 23.685, 24.996,
	26.296, 27.587, 28.869, 30.144, 31.410,
	32.671, 33.924, 35.172, 36.415, 37.652,
	38.885, 40.113, 41.337, 42.557, 43.773,
}

// z95 is the upper 5% point of the standard normal distribution.
const z95 = 1.6449

// CriticalValue returns the alpha=0.05 chi-square critical value for df
// degrees of freedom. Values past the table use the Wilson-Hilferty
// approximation. df <= 0 returns 0.
func CriticalValue(df int) float64 {
	if df <= 0 {
		return 0
	}
	if df < len(chiSquare05) {
		return chiSquare05[df]
	}
	k := float64(df)
	h := 2 / (9 * k)
	return k * math.Pow(1-h+z95*math.Sqrt(h), 3)
}
