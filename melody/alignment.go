package melody

import (
	"github.com/PillaiFanClub/Ladidadidaaaa/algorithms/stats"
)

// EstimateShift returns the frame offset that best aligns the
// performance curve with the reference curve. Positive means the
// performance runs ahead and must be delayed.
func EstimateShift(reference, performance []float64) (int, error) {
	return stats.NewCrossCorrelation().EstimateShift(reference, performance)
}

// ApplyShift rolls a curve circularly by shift frames and silences the
// wrapped-around region, so material from the end of the take never
// lines up against the start of the reference. Positive shift moves the
// curve later and zeroes the leading frames; negative moves it earlier
// and zeroes the trailing frames.
func ApplyShift(curve []float64, shift int) []float64 {
	n := len(curve)
	shifted := make([]float64, n)
	if n == 0 {
		return shifted
	}

	for i, v := range curve {
		shifted[((i+shift)%n+n)%n] = v
	}

	if shift > 0 {
		for i := 0; i < min(shift, n); i++ {
			shifted[i] = 0
		}
	} else if shift < 0 {
		for i := max(n+shift, 0); i < n; i++ {
			shifted[i] = 0
		}
	}

	return shifted
}
