package tonal

import (
	"fmt"
	"math"
)

// FramePitch holds the pitch estimate for a single analysis frame
type FramePitch struct {
	Frequency  float64 `json:"frequency"`  // Fundamental frequency in Hz, 0 when unvoiced
	Confidence float64 `json:"confidence"` // Periodicity confidence (0-1)
	Voiced     bool    `json:"voiced"`     // Voicing decision
}

// PitchDetectionParams contains parameters for pitch detection
type PitchDetectionParams struct {
	SampleRate  int `json:"sample_rate"`
	FrameLength int `json:"frame_length"`

	// Frequency range constraints. The lag search is bounded by these,
	// which both speeds up the difference function and rejects
	// subharmonic octave errors outside the expected range.
	MinFreq float64 `json:"min_freq"` // Minimum frequency (Hz)
	MaxFreq float64 `json:"max_freq"` // Maximum frequency (Hz)

	YinThreshold  float64 `json:"yin_threshold"`  // Aperiodicity threshold (0.1-0.5)
	MinConfidence float64 `json:"min_confidence"` // Voicing confidence floor
}

// DefaultPitchDetectionParams returns parameters tuned for sung vocals:
// a C2-C5 range covering bass through soprano melody lines.
func DefaultPitchDetectionParams(sampleRate int) PitchDetectionParams {
	return PitchDetectionParams{
		SampleRate:    sampleRate,
		FrameLength:   2048,
		MinFreq:       65.4,   // C2
		MaxFreq:       523.25, // C5
		YinThreshold:  0.15,
		MinConfidence: 0.5,
	}
}

// PitchDetector estimates the fundamental frequency of vocal audio frames.
//
// The implementation is the YIN algorithm: a difference function over
// candidate lags, cumulative mean normalization, an absolute threshold
// with first-local-minimum search, and parabolic interpolation of the
// selected lag for sub-sample accuracy.
//
// References:
// - de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental frequency estimator for speech and music"
//
// The detector keeps no state between frames and is safe for concurrent
// use from multiple goroutines.
type PitchDetector struct {
	params PitchDetectionParams
	tauMin int
	tauMax int
}

// NewPitchDetector creates a pitch detector with default vocal parameters
func NewPitchDetector(sampleRate int) (*PitchDetector, error) {
	return NewPitchDetectorWithParams(DefaultPitchDetectionParams(sampleRate))
}

// NewPitchDetectorWithParams creates a pitch detector with custom parameters
func NewPitchDetectorWithParams(params PitchDetectionParams) (*PitchDetector, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", params.SampleRate)
	}
	if params.FrameLength <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d", params.FrameLength)
	}
	if params.MinFreq <= 0 || params.MaxFreq <= params.MinFreq {
		return nil, fmt.Errorf("invalid frequency range [%f, %f]", params.MinFreq, params.MaxFreq)
	}

	// Lag bounds from the frequency range: tau = sampleRate / f
	tauMin := int(math.Floor(float64(params.SampleRate) / params.MaxFreq))
	if tauMin < 1 {
		tauMin = 1
	}
	tauMax := int(math.Ceil(float64(params.SampleRate) / params.MinFreq))

	// The difference function compares x[j] with x[j+tau] over half the
	// frame, so the largest usable lag is half the frame length.
	if tauMax >= params.FrameLength/2 {
		tauMax = params.FrameLength/2 - 1
	}
	if tauMin >= tauMax {
		return nil, fmt.Errorf("frame length %d too short for minimum frequency %.1f Hz at %d Hz",
			params.FrameLength, params.MinFreq, params.SampleRate)
	}

	return &PitchDetector{
		params: params,
		tauMin: tauMin,
		tauMax: tauMax,
	}, nil
}

// Params returns the detector's parameters
func (pd *PitchDetector) Params() PitchDetectionParams {
	return pd.params
}

// DetectFrame estimates the fundamental frequency of a single frame.
// The frame must be exactly FrameLength samples. Frames with no periodic
// content in range come back with Frequency 0 and Voiced false.
func (pd *PitchDetector) DetectFrame(frame []float64) (*FramePitch, error) {
	if len(frame) != pd.params.FrameLength {
		return nil, fmt.Errorf("frame size (%d) doesn't match frame length (%d)", len(frame), pd.params.FrameLength)
	}

	halfN := len(frame) / 2

	// Difference function over the bounded lag range
	diff := make([]float64, pd.tauMax+1)
	for tau := 1; tau <= pd.tauMax; tau++ {
		sum := 0.0
		for j := range halfN {
			delta := frame[j] - frame[j+tau]
			sum += delta * delta
		}
		diff[tau] = sum
	}

	// Cumulative mean normalized difference function
	cmndf := make([]float64, pd.tauMax+1)
	cmndf[0] = 1.0

	runningSum := 0.0
	for tau := 1; tau <= pd.tauMax; tau++ {
		runningSum += diff[tau]
		if runningSum == 0 {
			cmndf[tau] = 1.0
		} else {
			cmndf[tau] = diff[tau] * float64(tau) / runningSum
		}
	}

	// First lag below threshold, then descend to its local minimum
	minTau := -1
	for tau := pd.tauMin; tau <= pd.tauMax; tau++ {
		if cmndf[tau] < pd.params.YinThreshold {
			for tau+1 <= pd.tauMax && cmndf[tau+1] < cmndf[tau] {
				tau++
			}
			minTau = tau
			break
		}
	}

	if minTau < 0 {
		return &FramePitch{}, nil
	}

	period := parabolicInterpolation(cmndf, minTau)
	frequency := float64(pd.params.SampleRate) / period
	confidence := 1.0 - cmndf[minTau]

	if frequency < pd.params.MinFreq || frequency > pd.params.MaxFreq || confidence < pd.params.MinConfidence {
		return &FramePitch{}, nil
	}

	return &FramePitch{
		Frequency:  frequency,
		Confidence: confidence,
		Voiced:     true,
	}, nil
}

// parabolicInterpolation refines a minimum location by fitting a parabola
// through the point and its neighbors
func parabolicInterpolation(data []float64, idx int) float64 {
	if idx <= 0 || idx >= len(data)-1 {
		return float64(idx)
	}

	y1 := data[idx-1]
	y2 := data[idx]
	y3 := data[idx+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2

	if a == 0 {
		return float64(idx)
	}

	return float64(idx) - b/(2*a)
}
