package melody

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/PillaiFanClub/Ladidadidaaaa/kv"
	"github.com/PillaiFanClub/Ladidadidaaaa/logging"
	"github.com/PillaiFanClub/Ladidadidaaaa/transcode"
)

// ScoreResult holds the outcome of scoring one performance take.
// MelodyScore and FinalScore carry the same value today; both fields
// exist so the result shape stays stable when other score components
// are added.
type ScoreResult struct {
	MelodyScore float64 `json:"melody_score"`
	FinalScore  float64 `json:"final_score"`
}

// Scorer scores sung performances against one reference track.
//
// Construction is the only hard failure point: a missing or undecodable
// reference returns an error. Once built, Score and ScoreFile always
// return a result; any failure along the way is logged and degrades to
// a zero score. A Scorer is safe for concurrent use.
type Scorer struct {
	cfg        *Config
	reference  *ReferenceAnalysis
	extractor  *PitchExtractor
	comparator *CurveComparator
	store      kv.Store
	ownsStore  bool
	logger     logging.Logger
}

// NewScorer builds a scoring engine for the reference audio file. When
// the config names a cache directory, the reference analysis is loaded
// from or persisted to a BadgerDB store under that directory.
func NewScorer(ctx context.Context, referencePath string, cfg *Config) (*Scorer, error) {
	cfg = cfg.withDefaults()

	var store kv.Store
	ownsStore := false
	if cfg.CacheDir != "" {
		badgerStore, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.CacheDir})
		if err != nil {
			logging.Warn("Cache store unavailable, scoring without cache", logging.Fields{
				"cache_dir": cfg.CacheDir,
				"error":     err.Error(),
			})
		} else {
			store = badgerStore
			ownsStore = true
		}
	}

	s, err := newScorer(ctx, referencePath, store, ownsStore, cfg)
	if err != nil {
		if ownsStore {
			_ = store.Close()
		}
		return nil, err
	}
	return s, nil
}

// NewScorerWithStore builds a scoring engine with an injected cache
// store. The caller keeps ownership of the store and closes it.
func NewScorerWithStore(ctx context.Context, referencePath string, store kv.Store, cfg *Config) (*Scorer, error) {
	return newScorer(ctx, referencePath, store, false, cfg.withDefaults())
}

// NewScorerFromBuffer builds a scoring engine from raw reference
// samples. The buffer is resampled if its rate differs from the
// configured one. No caching happens here; there is no file name to
// key the cache by.
func NewScorerFromBuffer(samples []float64, sampleRate int, cfg *Config) (*Scorer, error) {
	cfg = cfg.withDefaults()

	if len(samples) == 0 {
		return nil, fmt.Errorf("empty reference samples")
	}

	extractor, err := NewPitchExtractor(cfg)
	if err != nil {
		return nil, err
	}

	s := &Scorer{
		cfg:        cfg,
		extractor:  extractor,
		comparator: NewCurveComparator(cfg),
		logger: logging.WithFields(logging.Fields{
			"component": "melody_scorer",
			"reference": "buffer",
		}),
	}

	if sampleRate != cfg.SampleRate {
		resampled, err := resampleTo(samples, sampleRate, cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("failed to resample reference buffer: %w", err)
		}
		samples = resampled
	}

	s.reference = s.buildAnalysis(samples)
	return s, nil
}

func newScorer(ctx context.Context, referencePath string, store kv.Store, ownsStore bool, cfg *Config) (*Scorer, error) {
	if _, err := os.Stat(referencePath); err != nil {
		return nil, fmt.Errorf("reference audio not accessible: %w", err)
	}

	extractor, err := NewPitchExtractor(cfg)
	if err != nil {
		return nil, err
	}

	s := &Scorer{
		cfg:        cfg,
		extractor:  extractor,
		comparator: NewCurveComparator(cfg),
		store:      store,
		ownsStore:  ownsStore,
		logger: logging.WithFields(logging.Fields{
			"component": "melody_scorer",
			"reference": referencePath,
		}),
	}

	key := CacheKey(referencePath)

	if ra := s.loadCached(ctx, key); ra != nil {
		s.reference = ra
		return s, nil
	}

	ra, err := s.analyzeReference(ctx, referencePath)
	if err != nil {
		return nil, err
	}
	s.reference = ra
	s.saveCached(ctx, key, ra)

	return s, nil
}

// Score scores a performance given as raw mono samples. The samples are
// resampled when the rate differs from the configured one. Always
// returns a result; failures degrade to a zero score.
func (s *Scorer) Score(samples []float64, sampleRate int) (result *ScoreResult) {
	result = &ScoreResult{}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(nil, "Scoring panicked, returning zero score", logging.Fields{
				"panic": fmt.Sprint(r),
			})
			result = &ScoreResult{}
		}
	}()

	startTime := time.Now()

	logger := s.logger.WithFields(logging.Fields{
		"function": "Score",
		"samples":  len(samples),
	})

	logger.Debug("Starting performance scoring")

	if sampleRate != s.cfg.SampleRate {
		resampled, err := resampleTo(samples, sampleRate, s.cfg.SampleRate)
		if err != nil {
			logger.Error(err, "Failed to resample performance, returning zero score", logging.Fields{
				"input_rate": sampleRate,
			})
			return result
		}
		logger.Debug("Performance resampled", logging.Fields{
			"input_rate":  sampleRate,
			"target_rate": s.cfg.SampleRate,
			"resampled":   len(resampled),
		})
		samples = resampled
	}

	f0, voiced := s.extractor.Extract(samples)

	voicedCount := 0
	for _, v := range voiced {
		if v {
			voicedCount++
		}
	}

	if voicedCount == 0 {
		logger.Info("No voiced frames in performance, returning zero score")
		return result
	}

	notes := ConvertToNote(f0)
	folded := FoldToOctave(notes)
	smoothed := SmoothCurve(folded)

	shift, err := EstimateShift(s.reference.Smoothed, smoothed)
	if err != nil {
		logger.Error(err, "Shift estimation failed, returning zero score")
		return result
	}

	logger.Debug("Alignment shift estimated", logging.Fields{
		"shift_frames": shift,
		"shift_ms":     float64(shift) * float64(s.cfg.HopLength) / float64(s.cfg.SampleRate) * 1000.0,
	})

	aligned := ApplyShift(smoothed, shift)

	score := s.comparator.Similarity(s.reference.Smoothed, aligned)

	result = &ScoreResult{
		MelodyScore: score,
		FinalScore:  score,
	}

	logger.Info("Performance scored", logging.Fields{
		"melody_score":  result.MelodyScore,
		"final_score":   result.FinalScore,
		"frames":        len(f0),
		"voiced_frames": voicedCount,
		"shift_frames":  shift,
		"scoring_time":  time.Since(startTime).Seconds(),
	})

	return result
}

// ScoreFile decodes a performance audio file and scores it. A decode
// failure is logged and yields a zero score.
func (s *Scorer) ScoreFile(ctx context.Context, path string) *ScoreResult {
	logger := s.logger.WithFields(logging.Fields{
		"function":    "ScoreFile",
		"performance": path,
	})

	decoder := transcode.NewDecoder(s.decoderConfig())
	audio, err := decoder.DecodeFile(ctx, path)
	if err != nil {
		logger.Error(err, "Failed to decode performance, returning zero score")
		return &ScoreResult{}
	}

	logger.Debug("Performance audio decoded", logging.Fields{
		"duration_seconds": audio.Duration.Seconds(),
	})

	return s.Score(audio.PCM, audio.SampleRate)
}

// Reference returns the analyzed reference series for inspection
func (s *Scorer) Reference() *ReferenceAnalysis {
	return s.reference
}

// Close releases the cache store if the scorer owns it
func (s *Scorer) Close() error {
	if s.ownsStore && s.store != nil {
		return s.store.Close()
	}
	return nil
}

// loadCached returns the cached analysis for key, or nil when the cache
// is disabled, the entry is missing, or the entry cannot be used.
func (s *Scorer) loadCached(ctx context.Context, key string) *ReferenceAnalysis {
	if s.store == nil {
		return nil
	}

	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			s.logger.Debug("Reference analysis cache miss", logging.Fields{
				"cache_key": key,
			})
		} else {
			s.logger.Warn("Cache read failed, re-analyzing", logging.Fields{
				"cache_key": key,
				"error":     err.Error(),
			})
		}
		return nil
	}

	ra, err := DecodeReferenceAnalysis(data)
	if err != nil {
		s.logger.Warn("Cached analysis unusable, re-analyzing", logging.Fields{
			"cache_key": key,
			"error":     err.Error(),
		})
		return nil
	}

	if ra.SampleRate != s.cfg.SampleRate || ra.HopLength != s.cfg.HopLength {
		s.logger.Warn("Cached analysis framing mismatch, re-analyzing", logging.Fields{
			"cache_key":          key,
			"cached_sample_rate": ra.SampleRate,
			"cached_hop_length":  ra.HopLength,
		})
		return nil
	}

	s.logger.Info("Loaded reference analysis from cache", logging.Fields{
		"cache_key":     key,
		"frames":        len(ra.Smoothed),
		"voiced_frames": ra.VoicedFrames(),
	})

	return ra
}

// saveCached persists an analysis best-effort; failures are logged and
// never block scoring.
func (s *Scorer) saveCached(ctx context.Context, key string, ra *ReferenceAnalysis) {
	if s.store == nil {
		return
	}

	data, err := ra.Encode()
	if err != nil {
		s.logger.Warn("Failed to encode analysis for cache", logging.Fields{
			"cache_key": key,
			"error":     err.Error(),
		})
		return
	}

	if err := s.store.Set(ctx, key, data); err != nil {
		s.logger.Warn("Failed to write analysis to cache", logging.Fields{
			"cache_key": key,
			"error":     err.Error(),
		})
		return
	}

	s.logger.Debug("Reference analysis cached", logging.Fields{
		"cache_key": key,
		"bytes":     len(data),
	})
}

// analyzeReference decodes the reference audio and builds its analysis
func (s *Scorer) analyzeReference(ctx context.Context, referencePath string) (*ReferenceAnalysis, error) {
	decoder := transcode.NewDecoder(s.decoderConfig())

	audio, err := decoder.DecodeFile(ctx, referencePath)
	if err != nil {
		return nil, fmt.Errorf("failed to decode reference audio: %w", err)
	}

	s.logger.Info("Reference audio decoded", logging.Fields{
		"duration_seconds": audio.Duration.Seconds(),
		"samples":          len(audio.PCM),
	})

	return s.buildAnalysis(audio.PCM), nil
}

// buildAnalysis runs the full curve pipeline over reference samples
func (s *Scorer) buildAnalysis(samples []float64) *ReferenceAnalysis {
	f0, _ := s.extractor.Extract(samples)
	notes := ConvertToNote(f0)
	folded := FoldToOctave(notes)
	smoothed := SmoothCurve(folded)

	ra := &ReferenceAnalysis{
		F0:         f0,
		Notes:      notes,
		Folded:     folded,
		Smoothed:   smoothed,
		SampleRate: s.cfg.SampleRate,
		HopLength:  s.cfg.HopLength,
	}

	s.logger.Info("Reference analysis built", logging.Fields{
		"frames":        len(f0),
		"voiced_frames": ra.VoicedFrames(),
	})

	return ra
}

func (s *Scorer) decoderConfig() *transcode.DecoderConfig {
	dc := transcode.DefaultDecoderConfig()
	dc.TargetSampleRate = s.cfg.SampleRate
	return dc
}

// resampleTo converts mono samples between sample rates
func resampleTo(samples []float64, fromRate, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return samples, nil
	}
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", fromRate, toRate)
	}

	config := &resampling.Config{
		InputRate:  float64(fromRate),
		OutputRate: float64(toRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	}

	resampler, err := resampling.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := resampler.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}

	return out, nil
}
