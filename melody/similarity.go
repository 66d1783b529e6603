package melody

import (
	"github.com/PillaiFanClub/Ladidadidaaaa/algorithms/common"
	"github.com/PillaiFanClub/Ladidadidaaaa/algorithms/stats"
	"github.com/PillaiFanClub/Ladidadidaaaa/logging"
)

// CurveComparator scores how closely a performance contour tracks the
// reference contour. The score is a DTW distance over the frames where
// both curves are voiced, mapped onto a 0..100 scale, weighted by how
// much of the reference the performer actually covered, and finally
// boosted by a fixed factor. The boost is applied after everything else
// and the result is deliberately not clamped, so a near-perfect take
// can score above 100.
type CurveComparator struct {
	cfg    *Config
	dtw    *stats.DTWAlignment
	logger logging.Logger
}

// NewCurveComparator creates a comparator for the given config
func NewCurveComparator(cfg *Config) *CurveComparator {
	cfg = cfg.withDefaults()
	return &CurveComparator{
		cfg: cfg,
		dtw: stats.NewDTWAlignmentWithParams(cfg.DTWRadius, stats.CircularDistance(12)),
		logger: logging.WithFields(logging.Fields{
			"component": "curve_comparator",
		}),
	}
}

// Similarity computes the melody score for a performance curve against
// the reference curve. Both inputs are smoothed folded-octave contours
// with zero marking unvoiced frames. Returns 0 when there is nothing
// comparable or when alignment fails.
func (cc *CurveComparator) Similarity(reference, performance []float64) float64 {
	minLen := min(len(reference), len(performance))
	if minLen == 0 {
		return 0.0
	}
	reference = reference[:minLen]
	performance = performance[:minLen]

	// Keep only frames where both curves are voiced; DTW over silence
	// would reward matching nothing.
	refClean := make([]float64, 0, minLen)
	perfClean := make([]float64, 0, minLen)
	for i := range minLen {
		if reference[i] != 0 && performance[i] != 0 {
			refClean = append(refClean, reference[i])
			perfClean = append(perfClean, performance[i])
		}
	}

	if len(refClean) < 2 {
		return 0.0
	}

	// Cap the DTW input size; a stride keeps the overall contour shape
	if len(refClean) > cc.cfg.DownsampleCap {
		step := len(refClean) / cc.cfg.DownsampleCap
		refClean = strideSample(refClean, step)
		perfClean = strideSample(perfClean, step)
	}

	result, err := cc.dtw.Align(refClean, perfClean)
	if err != nil {
		cc.logger.Warn("DTW alignment failed", logging.Fields{
			"error":  err.Error(),
			"points": len(refClean),
		})
		return 0.0
	}

	maxDistance := cc.cfg.MaxSemitoneDistance * float64(len(refClean))
	rawScore := common.Clamp(100.0*(1.0-result.Distance/maxDistance), 0.0, 100.0)

	// Coverage over the full truncated curves, not the cleaned ones:
	// frames where the reference sings but the performance is silent
	// drag the score down here.
	refVoiced := 0
	bothVoiced := 0
	for i := range minLen {
		if reference[i] != 0 {
			refVoiced++
			if performance[i] != 0 {
				bothVoiced++
			}
		}
	}
	overlap := 1.0
	if refVoiced > 0 {
		overlap = float64(bothVoiced) / float64(refVoiced)
	}

	scaled := cc.recalibrate(rawScore)
	weighted := scaled * overlap
	final := weighted * cc.cfg.ScoreBoost

	cc.logger.Debug("Curve similarity computed", logging.Fields{
		"dtw_distance": result.Distance,
		"max_distance": maxDistance,
		"raw_score":    rawScore,
		"scaled_score": scaled,
		"overlap":      overlap,
		"final_score":  final,
	})

	return final
}

// recalibrate spreads the useful middle of the raw scale across the
// full 0..100 range: everything at or below the low cutoff collapses
// to 0, everything at or above the high cutoff saturates at 100.
func (cc *CurveComparator) recalibrate(raw float64) float64 {
	low := cc.cfg.LowScoreCutoff
	high := cc.cfg.HighScoreCutoff

	switch {
	case raw <= low:
		return 0.0
	case raw >= high:
		return 100.0
	default:
		return common.Lerp(0.0, 100.0, (raw-low)/(high-low))
	}
}

// strideSample keeps every step-th element starting from the first
func strideSample(values []float64, step int) []float64 {
	if step <= 1 {
		return values
	}
	out := make([]float64, 0, (len(values)+step-1)/step)
	for i := 0; i < len(values); i += step {
		out = append(out, values[i])
	}
	return out
}
