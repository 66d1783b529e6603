package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality over mjibson/go-dsp
type FFT struct {
	// No state needed for now
}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the forward transform of a real signal
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes, including non-power-of-2
	return fft.FFTReal(x)
}

// ComputePadded zero-pads the signal to the given length before the
// forward transform. Signals longer than n are truncated. Power-of-two
// lengths take the radix-2 path inside go-dsp.
func (f *FFT) ComputePadded(x []float64, n int) []complex128 {
	if n <= 0 {
		return []complex128{}
	}

	padded := make([]float64, n)
	copy(padded, x)
	return fft.FFTReal(padded)
}

// ComputeInverse computes the inverse transform
func (f *FFT) ComputeInverse(x []complex128) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	return fft.IFFT(x)
}

// ComputeInverseReal computes the inverse transform and returns real parts only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))

	for i, val := range result {
		realResult[i] = real(val)
	}

	return realResult
}
