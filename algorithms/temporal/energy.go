package temporal

import (
	"github.com/PillaiFanClub/Ladidadidaaaa/algorithms/common"
)

// Energy computes short-time RMS energy over centered analysis frames.
//
// Frames use the centered convention: frame i spans
// [i*hop - frame/2, i*hop + frame/2) with the signal conceptually
// zero-padded on both sides, giving len/hop + 1 frames. The pitch
// detector frames the same way, so energy and pitch series line up
// index for index.
type Energy struct {
	frameSize int
	hopSize   int
}

// NewEnergy creates a new energy calculator
func NewEnergy(frameSize, hopSize int) *Energy {
	return &Energy{
		frameSize: frameSize,
		hopSize:   hopSize,
	}
}

// NumFrames returns the number of centered frames for a signal length
func (e *Energy) NumFrames(signalLen int) int {
	if signalLen <= 0 || e.hopSize <= 0 {
		return 0
	}
	return signalLen/e.hopSize + 1
}

// ComputeRMS calculates per-frame RMS energy with centered frames.
// Samples outside the signal count as zero, and the divisor is always
// the full frame size, so edge frames report proportionally less energy.
func (e *Energy) ComputeRMS(signal []float64) []float64 {
	if len(signal) == 0 || e.frameSize <= 0 || e.hopSize <= 0 {
		return []float64{}
	}

	numFrames := e.NumFrames(len(signal))
	energies := make([]float64, numFrames)

	frame := make([]float64, e.frameSize)
	for i := range numFrames {
		ExtractFrame(signal, i, e.hopSize, frame)
		energies[i] = common.RMS(frame)
	}

	return energies
}

// ExtractFrame copies the centered frame at the given index into dst,
// zero-filling samples that fall outside the signal. dst length defines
// the frame size. Shared by energy and pitch analysis so both see the
// exact same windows.
func ExtractFrame(signal []float64, frameIdx, hopSize int, dst []float64) {
	start := frameIdx*hopSize - len(dst)/2
	for j := range dst {
		idx := start + j
		if idx >= 0 && idx < len(signal) {
			dst[j] = signal[idx]
		} else {
			dst[j] = 0.0
		}
	}
}

// ComputeEnergyGate derives a voicing gate from an RMS series: the
// threshold is meanRatio times the series mean, and a frame passes the
// gate when its energy is strictly above the threshold. Returns the
// mask and the threshold used.
func ComputeEnergyGate(energies []float64, meanRatio float64) ([]bool, float64) {
	mask := make([]bool, len(energies))
	if len(energies) == 0 {
		return mask, 0.0
	}

	threshold := common.Mean(energies) * meanRatio
	for i, energy := range energies {
		mask[i] = energy > threshold
	}

	return mask, threshold
}

// FixLength truncates or zero-pads a series to the requested size so
// two framings of the same signal can be reconciled index for index.
func FixLength(series []float64, size int) []float64 {
	if size < 0 {
		size = 0
	}
	if len(series) == size {
		return series
	}

	out := make([]float64, size)
	copy(out, series)
	return out
}
