package melody

import (
	"math"
	"testing"
)

func TestSimilarityIdenticalCurvesExceedsHundred(t *testing.T) {
	cc := NewCurveComparator(nil)
	curve := constantCurve(69, 200)

	got := cc.Similarity(curve, curve)

	// DTW distance 0, full overlap: the raw 100 recalibrates to 100 and
	// the boost pushes it past the nominal ceiling. The result is
	// deliberately not clamped.
	if got <= 100 {
		t.Fatalf("Similarity = %v, want > 100 for identical curves", got)
	}
	if math.Abs(got-111) > 1e-9 {
		t.Fatalf("Similarity = %v, want 111", got)
	}
}

func TestSimilaritySilentPerformanceIsZero(t *testing.T) {
	cc := NewCurveComparator(nil)

	got := cc.Similarity(constantCurve(69, 100), make([]float64, 100))
	if got != 0 {
		t.Fatalf("Similarity = %v, want 0 for silent performance", got)
	}
}

func TestSimilarityDisjointVoicingIsZero(t *testing.T) {
	cc := NewCurveComparator(nil)

	// Reference sings the first half, performance only the second half.
	ref := make([]float64, 100)
	perf := make([]float64, 100)
	for i := 0; i < 50; i++ {
		ref[i] = 69
		perf[i+50] = 69
	}

	if got := cc.Similarity(ref, perf); got != 0 {
		t.Fatalf("Similarity = %v, want 0 with no common voiced frame", got)
	}
}

func TestSimilaritySingleValidPointIsZero(t *testing.T) {
	cc := NewCurveComparator(nil)

	ref := make([]float64, 10)
	perf := make([]float64, 10)
	ref[3], perf[3] = 69, 69

	if got := cc.Similarity(ref, perf); got != 0 {
		t.Fatalf("Similarity = %v, want 0 with a single valid point", got)
	}
}

func TestSimilarityEmptyCurvesAreZero(t *testing.T) {
	cc := NewCurveComparator(nil)
	if got := cc.Similarity(nil, nil); got != 0 {
		t.Fatalf("Similarity(nil, nil) = %v, want 0", got)
	}
}

func TestSimilarityPartialCoverageIsWeighted(t *testing.T) {
	cc := NewCurveComparator(nil)

	// The performance matches perfectly but sings only half the
	// reference's voiced frames.
	ref := constantCurve(69, 200)
	perf := make([]float64, 200)
	copy(perf, ref[:100])

	got := cc.Similarity(ref, perf)
	want := 100.0 * 0.5 * 1.11
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Similarity = %v, want %v (perfect match, half coverage)", got, want)
	}
}

func TestSimilarityConstantOffsetScoresBelowPerfect(t *testing.T) {
	cc := NewCurveComparator(nil)

	ref := constantCurve(69, 200)
	perf := constantCurve(72, 200)

	// Every frame is 3 semitones off: distance 3n against the 6n
	// ceiling gives raw 50, which recalibrates to (50-30)/(90-30) of
	// the full scale before the boost.
	got := cc.Similarity(ref, perf)
	want := (50.0 - 30.0) / (90.0 - 30.0) * 100.0 * 1.11
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("Similarity = %v, want %v", got, want)
	}
}

func TestSimilarityOctaveNeighborsAreClose(t *testing.T) {
	cc := NewCurveComparator(nil)

	// Note classes 71.5 and 60.5 are one semitone apart around the
	// circle, not eleven: this must score far better than a tritone gap.
	nearWrap := cc.Similarity(constantCurve(71.5, 200), constantCurve(60.5, 200))
	tritone := cc.Similarity(constantCurve(66, 200), constantCurve(60, 200))

	if nearWrap <= tritone {
		t.Fatalf("wrap-around distance scored %v, tritone %v; want wrap-around higher", nearWrap, tritone)
	}
}

func TestSimilarityTruncatesToSharedLength(t *testing.T) {
	cc := NewCurveComparator(nil)

	ref := constantCurve(69, 300)
	perf := constantCurve(69, 200)

	// Only the shared 200 frames count, and the reference's voiced
	// frames beyond them do not exist after truncation.
	got := cc.Similarity(ref, perf)
	if math.Abs(got-111) > 1e-9 {
		t.Fatalf("Similarity = %v, want 111", got)
	}
}

func TestSimilarityDownsamplesLongCurves(t *testing.T) {
	cc := NewCurveComparator(nil)
	curve := constantCurve(69, 5000)

	// Above the DTW cap the curves are strided down; identical inputs
	// still score perfectly.
	got := cc.Similarity(curve, curve)
	if math.Abs(got-111) > 1e-9 {
		t.Fatalf("Similarity = %v, want 111", got)
	}
}

func constantCurve(note float64, n int) []float64 {
	curve := make([]float64, n)
	for i := range curve {
		curve[i] = note
	}
	return curve
}
