package melody

import (
	"fmt"
	"os"
	"runtime"

	"github.com/goccy/go-yaml"
)

// Config holds every tunable of the scoring pipeline. The zero value of
// any field means "use the default", so a partially specified config is
// always usable after withDefaults.
type Config struct {
	// Audio framing
	SampleRate   int `json:"sample_rate" yaml:"sample_rate"`
	FrameLength  int `json:"frame_length" yaml:"frame_length"`
	HopLength    int `json:"hop_length" yaml:"hop_length"`
	ChunkSeconds int `json:"chunk_seconds" yaml:"chunk_seconds"`

	// Pitch detection range in Hz (sung vocal range C2..C5)
	MinFrequency float64 `json:"min_frequency" yaml:"min_frequency"`
	MaxFrequency float64 `json:"max_frequency" yaml:"max_frequency"`

	// EnergyRatio scales the chunk-mean RMS into the silence threshold
	EnergyRatio float64 `json:"energy_ratio" yaml:"energy_ratio"`

	// Workers is the pitch extraction pool size
	Workers int `json:"workers" yaml:"workers"`

	// Similarity scoring
	DTWRadius           int     `json:"dtw_radius" yaml:"dtw_radius"`
	DownsampleCap       int     `json:"downsample_cap" yaml:"downsample_cap"`
	MaxSemitoneDistance float64 `json:"max_semitone_distance" yaml:"max_semitone_distance"`
	LowScoreCutoff      float64 `json:"low_score_cutoff" yaml:"low_score_cutoff"`
	HighScoreCutoff     float64 `json:"high_score_cutoff" yaml:"high_score_cutoff"`
	ScoreBoost          float64 `json:"score_boost" yaml:"score_boost"`

	// CacheDir enables the on-disk reference analysis cache when set
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`
}

// DefaultConfig returns the canonical scoring configuration
func DefaultConfig() *Config {
	return &Config{
		SampleRate:          44100,
		FrameLength:         2048,
		HopLength:           512,
		ChunkSeconds:        10,
		MinFrequency:        65.4,   // C2
		MaxFrequency:        523.25, // C5
		EnergyRatio:         0.02,
		Workers:             runtime.NumCPU(),
		DTWRadius:           10,
		DownsampleCap:       1000,
		MaxSemitoneDistance: 6.0,
		LowScoreCutoff:      30.0,
		HighScoreCutoff:     90.0,
		ScoreBoost:          1.11,
	}
}

// LoadConfig reads a YAML config file and overlays it on the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}

// withDefaults returns a copy with zero or invalid fields replaced by
// their defaults
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}

	out := *c
	def := DefaultConfig()

	if out.SampleRate <= 0 {
		out.SampleRate = def.SampleRate
	}
	if out.FrameLength <= 0 {
		out.FrameLength = def.FrameLength
	}
	if out.HopLength <= 0 {
		out.HopLength = def.HopLength
	}
	if out.ChunkSeconds <= 0 {
		out.ChunkSeconds = def.ChunkSeconds
	}
	if out.MinFrequency <= 0 {
		out.MinFrequency = def.MinFrequency
	}
	if out.MaxFrequency <= 0 {
		out.MaxFrequency = def.MaxFrequency
	}
	if out.EnergyRatio <= 0 {
		out.EnergyRatio = def.EnergyRatio
	}
	if out.Workers <= 0 {
		out.Workers = def.Workers
	}
	if out.DTWRadius <= 0 {
		out.DTWRadius = def.DTWRadius
	}
	if out.DownsampleCap <= 0 {
		out.DownsampleCap = def.DownsampleCap
	}
	if out.MaxSemitoneDistance <= 0 {
		out.MaxSemitoneDistance = def.MaxSemitoneDistance
	}
	if out.LowScoreCutoff <= 0 {
		out.LowScoreCutoff = def.LowScoreCutoff
	}
	if out.HighScoreCutoff <= 0 {
		out.HighScoreCutoff = def.HighScoreCutoff
	}
	if out.ScoreBoost <= 0 {
		out.ScoreBoost = def.ScoreBoost
	}

	return &out
}

// chunkSize returns the chunk length in samples
func (c *Config) chunkSize() int {
	return c.ChunkSeconds * c.SampleRate
}
