package melody

import (
	"math"

	"github.com/PillaiFanClub/Ladidadidaaaa/algorithms/filters"
)

// Curve processing: an f0 series in Hz becomes a comparable melodic
// contour in three steps. Frequencies turn into fractional note
// numbers, notes fold into a single octave so singers in different
// registers compare equal, and each voiced run is smoothed to strip
// pitch-tracker jitter. Zero marks an unvoiced frame throughout and
// every step preserves exactly where the zeros are.

// ConvertToNote converts frequencies in Hz to fractional MIDI note
// numbers (A4 = 440 Hz = 69). Unvoiced frames stay zero.
func ConvertToNote(f0 []float64) []float64 {
	notes := make([]float64, len(f0))
	for i, f := range f0 {
		if f > 0 {
			notes[i] = 12.0*math.Log2(f/440.0) + 69.0
		}
	}
	return notes
}

// FoldToOctave maps every voiced note into the octave [60, 72). Notes
// below 60 fold up, notes at or above 72 fold down. Unvoiced frames
// stay zero.
func FoldToOctave(notes []float64) []float64 {
	folded := make([]float64, len(notes))
	for i, n := range notes {
		if n != 0 {
			folded[i] = flooredMod(n-60.0, 12.0) + 60.0
		}
	}
	return folded
}

// flooredMod is the modulo with the sign of the divisor, so negative
// inputs still land in [0, m)
func flooredMod(a, m float64) float64 {
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}

// Smoothing windows are only ever 3 or 5 frames wide, so both filters
// are built once. The window-3 quadratic fit is an exact interpolation
// and passes short runs through unchanged.
var (
	smoothWindow3 = mustSavitzkyGolay(3, 2)
	smoothWindow5 = mustSavitzkyGolay(5, 2)
)

func mustSavitzkyGolay(window, degree int) *filters.SavitzkyGolayFilter {
	sg, err := filters.NewSavitzkyGolayFilter(window, degree)
	if err != nil {
		panic(err)
	}
	return sg
}

// SmoothCurve smooths each voiced run of a folded note curve and leaves
// silent runs untouched. Runs shorter than five frames pass through
// unchanged; longer runs get a Savitzky-Golay fit with a window of
// min(5, len-2) forced odd. The voiced/unvoiced boundaries of the
// output match the input exactly.
func SmoothCurve(folded []float64) []float64 {
	out := make([]float64, len(folded))

	for start := 0; start < len(folded); {
		voiced := folded[start] != 0
		end := start + 1
		for end < len(folded) && (folded[end] != 0) == voiced {
			end++
		}

		if voiced {
			smoothRun(folded[start:end], out[start:end])
		}
		// Silent runs stay zero

		start = end
	}

	return out
}

// smoothRun writes the smoothed run into dst, falling back to a plain
// copy when the run is too short to fit a window.
func smoothRun(run, dst []float64) {
	n := len(run)
	if n < 5 {
		copy(dst, run)
		return
	}

	window := min(5, n-2)
	if window%2 == 0 {
		window--
	}

	var sg *filters.SavitzkyGolayFilter
	switch window {
	case 5:
		sg = smoothWindow5
	case 3:
		sg = smoothWindow3
	default:
		copy(dst, run)
		return
	}

	smoothed, err := sg.ProcessBuffer(run)
	if err != nil {
		copy(dst, run)
		return
	}
	copy(dst, smoothed)
}
