package stats

import (
	"math"
)

// ScalarDistance measures the distance between two scalar values.
// Used as the local cost function for DTW over 1-D sequences.
type ScalarDistance func(a, b float64) float64

// AbsoluteDistance is the absolute difference |a-b|
func AbsoluteDistance(a, b float64) float64 {
	return math.Abs(a - b)
}

// SquaredDistance is the squared difference (a-b)²
func SquaredDistance(a, b float64) float64 {
	d := a - b
	return d * d
}

// CircularDistance returns a distance on a circle of the given modulus:
// min(|a-b| mod m, m - |a-b| mod m). Values one full modulus apart are
// identical and the largest possible distance is m/2. With modulus 12
// this is the pitch-class distance where note classes 0 and 11 are
// neighbors at distance 1, not 11.
func CircularDistance(modulus float64) ScalarDistance {
	return func(a, b float64) float64 {
		diff := math.Mod(math.Abs(a-b), modulus)
		return math.Min(diff, modulus-diff)
	}
}
