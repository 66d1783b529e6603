package melody

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ReferenceAnalysis holds every processed pitch series of a reference
// track. All four series are frame-aligned and equal length; Smoothed
// is the curve performances are scored against, the earlier stages are
// kept for inspection and debugging.
type ReferenceAnalysis struct {
	F0         []float64 `msgpack:"f0" json:"f0"`
	Notes      []float64 `msgpack:"notes" json:"notes"`
	Folded     []float64 `msgpack:"folded" json:"folded"`
	Smoothed   []float64 `msgpack:"smoothed" json:"smoothed"`
	SampleRate int       `msgpack:"sample_rate" json:"sample_rate"`
	HopLength  int       `msgpack:"hop_length" json:"hop_length"`
}

// Validate checks the structural invariants of a loaded analysis
func (ra *ReferenceAnalysis) Validate() error {
	if ra.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", ra.SampleRate)
	}
	if ra.HopLength <= 0 {
		return fmt.Errorf("invalid hop length: %d", ra.HopLength)
	}

	n := len(ra.F0)
	if n == 0 {
		return fmt.Errorf("empty pitch series")
	}
	if len(ra.Notes) != n || len(ra.Folded) != n || len(ra.Smoothed) != n {
		return fmt.Errorf("series lengths disagree: f0=%d notes=%d folded=%d smoothed=%d",
			n, len(ra.Notes), len(ra.Folded), len(ra.Smoothed))
	}

	return nil
}

// VoicedFrames returns how many frames of the smoothed curve are voiced
func (ra *ReferenceAnalysis) VoicedFrames() int {
	count := 0
	for _, v := range ra.Smoothed {
		if v != 0 {
			count++
		}
	}
	return count
}

// Encode serializes the analysis for cache storage
func (ra *ReferenceAnalysis) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(ra)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reference analysis: %w", err)
	}
	return data, nil
}

// DecodeReferenceAnalysis deserializes a cached analysis and validates
// its invariants, so a corrupt or truncated cache entry surfaces as an
// error instead of a silently broken engine.
func DecodeReferenceAnalysis(data []byte) (*ReferenceAnalysis, error) {
	var ra ReferenceAnalysis
	if err := msgpack.Unmarshal(data, &ra); err != nil {
		return nil, fmt.Errorf("failed to decode reference analysis: %w", err)
	}
	if err := ra.Validate(); err != nil {
		return nil, fmt.Errorf("decoded reference analysis is invalid: %w", err)
	}
	return &ra, nil
}

// CacheKey derives the cache key for a reference file: the base name
// without extension. Two files that differ only in directory or
// extension share a key, so a cache directory serves one song library.
func CacheKey(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
