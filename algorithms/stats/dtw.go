package stats

import (
	"fmt"
	"math"
)

// DTWAlignment represents Dynamic Time Warping alignment over 1-D
// sequences with a Sakoe-Chiba band constraint.
//
// WHY: DTW tolerates local tempo differences between two melodic
// contours, so a singer who stretches or rushes a phrase is still
// matched against the right part of the reference. The band keeps the
// cost O(n·radius) instead of O(n²) at a small accuracy cost.
type DTWAlignment struct {
	radius   int // Sakoe-Chiba band half width
	distance ScalarDistance
}

// DTWResult contains DTW alignment results
type DTWResult struct {
	Distance           float64      `json:"distance"`            // Accumulated distance along the optimal path
	NormalizedDistance float64      `json:"normalized_distance"` // Distance divided by path length
	Path               []AlignPoint `json:"path"`                // Optimal alignment path
	QueryLength        int          `json:"query_length"`        // Length of query sequence
	RefLength          int          `json:"ref_length"`          // Length of reference sequence
	Radius             int          `json:"radius"`              // Band half width used
}

// AlignPoint represents a point in the alignment path
type AlignPoint struct {
	QueryIndex int     `json:"query_index"` // Index in query sequence
	RefIndex   int     `json:"ref_index"`   // Index in reference sequence
	Cost       float64 `json:"cost"`        // Local cost at this point
}

// NewDTWAlignment creates a DTW instance with an unconstrained band and
// absolute distance
func NewDTWAlignment() *DTWAlignment {
	return &DTWAlignment{
		radius:   -1,
		distance: AbsoluteDistance,
	}
}

// NewDTWAlignmentWithParams creates DTW with a band half width and a
// local distance function. A non-positive radius disables the band.
func NewDTWAlignmentWithParams(radius int, distance ScalarDistance) *DTWAlignment {
	if distance == nil {
		distance = AbsoluteDistance
	}
	return &DTWAlignment{
		radius:   radius,
		distance: distance,
	}
}

// Align computes the optimal warping between query and reference and
// returns the accumulated path distance.
func (dtw *DTWAlignment) Align(query, reference []float64) (*DTWResult, error) {
	if len(query) == 0 || len(reference) == 0 {
		return nil, fmt.Errorf("empty sequences provided")
	}

	queryLen := len(query)
	refLen := len(reference)

	// The band must be at least as wide as the length difference or the
	// corner cell (queryLen, refLen) is unreachable.
	radius := dtw.radius
	if radius > 0 {
		if diff := queryLen - refLen; diff > radius {
			radius = diff
		} else if diff := refLen - queryLen; diff > radius {
			radius = diff
		}
	}

	costMatrix := make([][]float64, queryLen+1)
	for i := range costMatrix {
		costMatrix[i] = make([]float64, refLen+1)
		for j := range costMatrix[i] {
			costMatrix[i][j] = math.Inf(1)
		}
	}
	costMatrix[0][0] = 0

	for i := 1; i <= queryLen; i++ {
		jLo, jHi := 1, refLen
		if radius > 0 {
			if lo := i - radius; lo > jLo {
				jLo = lo
			}
			if hi := i + radius; hi < jHi {
				jHi = hi
			}
		}

		for j := jLo; j <= jHi; j++ {
			localDist := dtw.distance(query[i-1], reference[j-1])
			minPrev := math.Min(math.Min(costMatrix[i-1][j], costMatrix[i][j-1]), costMatrix[i-1][j-1])
			costMatrix[i][j] = localDist + minPrev
		}
	}

	finalDistance := costMatrix[queryLen][refLen]
	if math.IsInf(finalDistance, 1) {
		return nil, fmt.Errorf("no feasible warping path for lengths %d and %d with radius %d", queryLen, refLen, radius)
	}

	path := dtw.backtrack(costMatrix, queryLen, refLen)

	return &DTWResult{
		Distance:           finalDistance,
		NormalizedDistance: finalDistance / float64(len(path)),
		Path:               path,
		QueryLength:        queryLen,
		RefLength:          refLen,
		Radius:             radius,
	}, nil
}

// backtrack recovers the optimal alignment path from the cost matrix
func (dtw *DTWAlignment) backtrack(costMatrix [][]float64, queryLen, refLen int) []AlignPoint {
	var reversed []AlignPoint
	i, j := queryLen, refLen

	for i > 0 && j > 0 {
		cost := costMatrix[i][j] - math.Min(math.Min(costMatrix[i-1][j], costMatrix[i][j-1]), costMatrix[i-1][j-1])
		reversed = append(reversed, AlignPoint{
			QueryIndex: i - 1,
			RefIndex:   j - 1,
			Cost:       cost,
		})

		prevI, prevJ := i-1, j-1
		best := costMatrix[i-1][j-1]
		if costMatrix[i-1][j] < best {
			prevI, prevJ = i-1, j
			best = costMatrix[i-1][j]
		}
		if costMatrix[i][j-1] < best {
			prevI, prevJ = i, j-1
		}
		i, j = prevI, prevJ
	}

	path := make([]AlignPoint, len(reversed))
	for k, p := range reversed {
		path[len(reversed)-1-k] = p
	}
	return path
}
