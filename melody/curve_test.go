package melody

import (
	"math"
	"testing"
)

func TestConvertToNote(t *testing.T) {
	f0 := []float64{440, 220, 880, 0, 261.625565}
	notes := ConvertToNote(f0)

	want := []float64{69, 57, 81, 0, 60}
	for i := range want {
		if math.Abs(notes[i]-want[i]) > 1e-6 {
			t.Fatalf("notes[%d] = %v, want %v", i, notes[i], want[i])
		}
	}
}

func TestConvertToNoteKeepsSilenceSentinel(t *testing.T) {
	notes := ConvertToNote([]float64{0, 0, 0})
	for i, n := range notes {
		if n != 0 {
			t.Fatalf("notes[%d] = %v, want exactly 0", i, n)
		}
	}
}

func TestFoldToOctaveRange(t *testing.T) {
	// Any real note folds into [60, 72); silence stays exactly 0.
	for n := -10.0; n < 130; n += 0.37 {
		folded := FoldToOctave([]float64{n})[0]
		if n == 0 {
			continue
		}
		if folded < 60 || folded >= 72 {
			t.Fatalf("FoldToOctave(%v) = %v, want in [60,72)", n, folded)
		}
	}

	if got := FoldToOctave([]float64{0})[0]; got != 0 {
		t.Fatalf("FoldToOctave(0) = %v, want 0", got)
	}
}

func TestFoldToOctaveValues(t *testing.T) {
	cases := map[float64]float64{
		60:   60,
		69:   69,
		72:   60,   // one octave above the base folds down
		57:   69,   // A3 and A4 share a pitch class
		81:   69,   // A5 too
		35.5: 71.5, // far below the base octave
	}

	for in, want := range cases {
		if got := FoldToOctave([]float64{in})[0]; math.Abs(got-want) > 1e-9 {
			t.Fatalf("FoldToOctave(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestSmoothCurvePreservesRunBoundaries(t *testing.T) {
	curve := []float64{
		0, 0,
		65, 65.5, 64.8, 65.2, 65.1, 65, 64.9,
		0, 0, 0,
		69, 69.3,
		0,
		62, 62.1, 61.9, 62, 62.2, 61.8,
	}

	smoothed := SmoothCurve(curve)

	if len(smoothed) != len(curve) {
		t.Fatalf("len = %d, want %d", len(smoothed), len(curve))
	}
	for i := range curve {
		if (curve[i] == 0) != (smoothed[i] == 0) {
			t.Fatalf("voicing boundary moved at frame %d: in %v, out %v", i, curve[i], smoothed[i])
		}
	}
}

func TestSmoothCurveShortRunsPassThrough(t *testing.T) {
	curve := []float64{0, 66, 67, 66.5, 0, 0, 70, 0}
	smoothed := SmoothCurve(curve)

	for i := range curve {
		if smoothed[i] != curve[i] {
			t.Fatalf("short run altered at frame %d: in %v, out %v", i, curve[i], smoothed[i])
		}
	}
}

func TestSmoothCurveConstantRunUnchanged(t *testing.T) {
	curve := make([]float64, 40)
	for i := 5; i < 35; i++ {
		curve[i] = 67
	}

	smoothed := SmoothCurve(curve)
	for i := range curve {
		if math.Abs(smoothed[i]-curve[i]) > 1e-9 {
			t.Fatalf("constant run altered at frame %d: in %v, out %v", i, curve[i], smoothed[i])
		}
	}
}

func TestSmoothCurveReducesJitter(t *testing.T) {
	// A voiced run hovering around one note with alternating jitter.
	curve := make([]float64, 60)
	for i := 10; i < 50; i++ {
		curve[i] = 66
		if i%2 == 0 {
			curve[i] += 0.4
		} else {
			curve[i] -= 0.4
		}
	}

	smoothed := SmoothCurve(curve)

	for i := 15; i < 45; i++ {
		if dev := math.Abs(smoothed[i] - 66); dev >= 0.4 {
			t.Fatalf("frame %d deviates %v, jitter not reduced", i, dev)
		}
	}
}

func TestSmoothCurveAllSilent(t *testing.T) {
	smoothed := SmoothCurve(make([]float64, 25))
	for i, v := range smoothed {
		if v != 0 {
			t.Fatalf("smoothed[%d] = %v, want 0", i, v)
		}
	}
}
