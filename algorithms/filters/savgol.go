package filters

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SavitzkyGolayFilter smooths a signal by least-squares fitting a
// low-degree polynomial to each sliding window and replacing the
// center sample with the fitted value.
//
// Unlike a moving average, the polynomial fit preserves the height and
// width of peaks, which matters when the signal is a melodic pitch
// contour and note onsets must not be flattened away.
//
// Reference: Savitzky, A., Golay, M.J.E. (1964). "Smoothing and
// Differentiation of Data by Simplified Least Squares Procedures"
type SavitzkyGolayFilter struct {
	windowSize int
	polyOrder  int

	// Projection matrix A(AᵀA)⁻¹Aᵀ for the window. The center row is
	// the convolution kernel for interior samples; the outer rows
	// evaluate the fitted polynomial at edge positions.
	proj *mat.Dense
}

// NewSavitzkyGolayFilter creates a smoothing filter with the given
// window size and polynomial order.
//
// The window size must be odd and strictly greater than the polynomial
// order. When windowSize equals polyOrder+1 the fit is an exact
// interpolation and the filter passes the signal through unchanged.
func NewSavitzkyGolayFilter(windowSize, polyOrder int) (*SavitzkyGolayFilter, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if windowSize%2 == 0 {
		return nil, fmt.Errorf("window size must be odd, got %d", windowSize)
	}
	if polyOrder < 0 {
		return nil, fmt.Errorf("polynomial order must be non-negative, got %d", polyOrder)
	}
	if polyOrder >= windowSize {
		return nil, fmt.Errorf("polynomial order %d must be less than window size %d", polyOrder, windowSize)
	}

	proj, err := projectionMatrix(windowSize, polyOrder)
	if err != nil {
		return nil, err
	}

	return &SavitzkyGolayFilter{
		windowSize: windowSize,
		polyOrder:  polyOrder,
		proj:       proj,
	}, nil
}

// projectionMatrix builds the least-squares projection A(AᵀA)⁻¹Aᵀ for a
// Vandermonde design matrix centered on the window midpoint.
func projectionMatrix(windowSize, polyOrder int) (*mat.Dense, error) {
	half := windowSize / 2

	design := mat.NewDense(windowSize, polyOrder+1, nil)
	for i := 0; i < windowSize; i++ {
		x := float64(i - half)
		term := 1.0
		for j := 0; j <= polyOrder; j++ {
			design.Set(i, j, term)
			term *= x
		}
	}

	var gram mat.Dense
	gram.Mul(design.T(), design)

	var gramInv mat.Dense
	if err := gramInv.Inverse(&gram); err != nil {
		return nil, fmt.Errorf("singular design matrix for window %d order %d: %w", windowSize, polyOrder, err)
	}

	var proj mat.Dense
	proj.Product(design, &gramInv, design.T())
	return &proj, nil
}

// ProcessBuffer smooths an entire buffer and returns a new slice.
//
// Interior samples are convolved with the center row of the projection
// matrix. The first and last half-window samples are produced by
// evaluating the polynomial fitted to the first and last full window,
// so the output covers the whole input without edge padding.
func (sg *SavitzkyGolayFilter) ProcessBuffer(input []float64) ([]float64, error) {
	n := len(input)
	if n < sg.windowSize {
		return nil, fmt.Errorf("input length %d shorter than window size %d", n, sg.windowSize)
	}

	half := sg.windowSize / 2
	output := make([]float64, n)

	for i := half; i < n-half; i++ {
		output[i] = sg.applyRow(half, input[i-half:i+half+1])
	}

	for i := 0; i < half; i++ {
		output[i] = sg.applyRow(i, input[:sg.windowSize])
		output[n-half+i] = sg.applyRow(half+1+i, input[n-sg.windowSize:])
	}

	return output, nil
}

// applyRow computes the dot product of a projection matrix row with a
// window of samples.
func (sg *SavitzkyGolayFilter) applyRow(row int, window []float64) float64 {
	sum := 0.0
	for k, v := range window {
		sum += sg.proj.At(row, k) * v
	}
	return sum
}

// GetParameters returns the current filter parameters.
func (sg *SavitzkyGolayFilter) GetParameters() (windowSize, polyOrder int) {
	return sg.windowSize, sg.polyOrder
}
