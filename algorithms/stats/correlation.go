package stats

import (
	"fmt"
	"math/cmplx"

	"github.com/PillaiFanClub/Ladidadidaaaa/algorithms/common"
	"github.com/PillaiFanClub/Ladidadidaaaa/algorithms/spectral"
)

// CrossCorrelation estimates the time offset between two signals via
// FFT-based circular cross-correlation.
//
// References:
// - Rabiner, L., Schafer, R. (1978). "Digital Processing of Speech Signals"
// - Oppenheim, A.V., Schafer, R.W. (2010). "Discrete-Time Signal Processing"
// - Knapp, C., Carter, G. (1976). "The Generalized Correlation Method for
//   Estimation of Time Delay"
//
// Cross-correlation is fundamental for:
// - Audio alignment and synchronization
// - Time delay estimation
// - Pattern matching in signals
type CrossCorrelation struct {
	fft *spectral.FFT
}

// NewCrossCorrelation creates a new cross-correlation estimator
func NewCrossCorrelation() *CrossCorrelation {
	return &CrossCorrelation{
		fft: spectral.NewFFT(),
	}
}

// EstimateShift returns the lag at which the performance signal best
// matches the reference signal, in whatever unit the inputs are
// sampled in.
//
// A positive shift means the performance runs ahead of the reference
// and should be delayed by that many samples; a negative shift means it
// trails behind. The search covers lags in [-(n-1), n-1] where n is the
// reference length. A longer performance contributes only its first
// fftSize samples, which always covers the full search range.
func (cc *CrossCorrelation) EstimateShift(reference, performance []float64) (int, error) {
	n := len(reference)
	if n == 0 {
		return 0, fmt.Errorf("empty reference sequence")
	}
	if len(performance) == 0 {
		return 0, fmt.Errorf("empty performance sequence")
	}

	// Power-of-two transform length covering both the reference and the
	// wrap-around of the circular correlation.
	fftSize := common.NextPowerOfTwo(2 * n)

	refSpec := cc.fft.ComputePadded(reference, fftSize)
	perfSpec := cc.fft.ComputePadded(performance, fftSize)

	crossPower := make([]complex128, fftSize)
	for i := range crossPower {
		crossPower[i] = refSpec[i] * cmplx.Conj(perfSpec[i])
	}

	corr := cc.fft.ComputeInverseReal(crossPower)

	// Rearrange so negative lags precede non-negative ones: indices
	// fftSize-(n-1)..fftSize-1 hold lags -(n-1)..-1 and 0..n-1 hold
	// lags 0..n-1.
	lagged := make([]float64, 0, 2*n-1)
	if n > 1 {
		lagged = append(lagged, corr[fftSize-(n-1):]...)
	}
	lagged = append(lagged, corr[:n]...)

	peakIdx := 0
	for i, v := range lagged {
		if v > lagged[peakIdx] {
			peakIdx = i
		}
	}

	return peakIdx - (n - 1), nil
}
