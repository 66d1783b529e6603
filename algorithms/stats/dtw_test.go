package stats

import (
	"math"
	"testing"
)

func TestDTWIdenticalSequencesZeroDistance(t *testing.T) {
	dtw := NewDTWAlignmentWithParams(10, AbsoluteDistance)
	seq := []float64{1, 2, 3, 2, 1, 0.5, 2}

	result, err := dtw.Align(seq, seq)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if result.Distance != 0 {
		t.Fatalf("Distance = %v, want 0", result.Distance)
	}
	if len(result.Path) != len(seq) {
		t.Fatalf("path length = %d, want diagonal of %d", len(result.Path), len(seq))
	}
}

func TestDTWWarpsLocalTempoDifference(t *testing.T) {
	dtw := NewDTWAlignmentWithParams(10, AbsoluteDistance)

	// Same contour, one sequence holds the middle value a step longer.
	query := []float64{1, 2, 3}
	reference := []float64{1, 2, 2, 3}

	result, err := dtw.Align(query, reference)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if result.Distance != 0 {
		t.Fatalf("Distance = %v, want 0 for warpable contours", result.Distance)
	}
}

func TestDTWConstantOffsetAccumulates(t *testing.T) {
	dtw := NewDTWAlignmentWithParams(10, CircularDistance(12))

	n := 50
	query := make([]float64, n)
	reference := make([]float64, n)
	for i := range n {
		query[i] = 69
		reference[i] = 72
	}

	result, err := dtw.Align(query, reference)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}

	// No warping can reduce a constant 3-semitone offset: the optimal
	// path is the diagonal and every step costs 3.
	want := 3.0 * float64(n)
	if math.Abs(result.Distance-want) > 1e-9 {
		t.Fatalf("Distance = %v, want %v", result.Distance, want)
	}
}

func TestDTWBandWidensForLengthDifference(t *testing.T) {
	dtw := NewDTWAlignmentWithParams(2, AbsoluteDistance)

	// Length difference of 20 exceeds the radius of 2; the band must
	// still admit a path to the final cell.
	query := make([]float64, 10)
	reference := make([]float64, 30)

	result, err := dtw.Align(query, reference)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if result.Radius < 20 {
		t.Fatalf("Radius = %d, want at least the length difference 20", result.Radius)
	}
}

func TestDTWEmptySequenceErrors(t *testing.T) {
	dtw := NewDTWAlignment()

	if _, err := dtw.Align(nil, []float64{1, 2}); err == nil {
		t.Fatal("Align(nil, seq) should error")
	}
	if _, err := dtw.Align([]float64{1, 2}, nil); err == nil {
		t.Fatal("Align(seq, nil) should error")
	}
}

func TestDTWNormalizedDistance(t *testing.T) {
	dtw := NewDTWAlignmentWithParams(10, AbsoluteDistance)

	query := []float64{0, 0, 0, 0}
	reference := []float64{1, 1, 1, 1}

	result, err := dtw.Align(query, reference)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	want := result.Distance / float64(len(result.Path))
	if result.NormalizedDistance != want {
		t.Fatalf("NormalizedDistance = %v, want %v", result.NormalizedDistance, want)
	}
}
