package melody

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/PillaiFanClub/Ladidadidaaaa/kv"
	"github.com/PillaiFanClub/Ladidadidaaaa/logging"
	"github.com/PillaiFanClub/Ladidadidaaaa/transcode"
)

func TestMain(m *testing.M) {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	os.Exit(m.Run())
}

func TestScorerSelfSimilarityExceedsHundred(t *testing.T) {
	cfg := DefaultConfig()
	samples := makeSine(220.0, 3.0, cfg.SampleRate, 0.7)

	s := newBufferScorer(t, samples, cfg.SampleRate, cfg)

	result := s.Score(samples, cfg.SampleRate)
	if result.FinalScore <= 100 {
		t.Fatalf("FinalScore = %v, want > 100 for a perfect take", result.FinalScore)
	}
	if result.MelodyScore != result.FinalScore {
		t.Fatalf("MelodyScore = %v, FinalScore = %v, want equal", result.MelodyScore, result.FinalScore)
	}
}

func TestScorerSilentPerformanceScoresZero(t *testing.T) {
	cfg := DefaultConfig()
	s := newBufferScorer(t, makeSine(220.0, 2.0, cfg.SampleRate, 0.7), cfg.SampleRate, cfg)

	result := s.Score(make([]float64, cfg.SampleRate*2), cfg.SampleRate)
	if result.MelodyScore != 0 || result.FinalScore != 0 {
		t.Fatalf("silent performance scored %+v, want {0 0}", result)
	}
}

func TestScorerResamplesPerformance(t *testing.T) {
	cfg := DefaultConfig()
	s := newBufferScorer(t, makeSine(220.0, 2.0, cfg.SampleRate, 0.7), cfg.SampleRate, cfg)

	// Same melody recorded at half the canonical rate.
	result := s.Score(makeSine(220.0, 2.0, 22050, 0.7), 22050)
	if result.FinalScore < 50 {
		t.Fatalf("FinalScore = %v, want a high score after resampling", result.FinalScore)
	}
}

func TestScorerResamplesReferenceBuffer(t *testing.T) {
	cfg := DefaultConfig()

	// Reference supplied at 48 kHz must be brought to the canonical rate.
	s := newBufferScorer(t, makeSine(220.0, 2.0, 48000, 0.7), 48000, cfg)
	if s.Reference().SampleRate != cfg.SampleRate {
		t.Fatalf("reference sample rate = %d, want %d", s.Reference().SampleRate, cfg.SampleRate)
	}

	result := s.Score(makeSine(220.0, 2.0, cfg.SampleRate, 0.7), cfg.SampleRate)
	if result.FinalScore < 50 {
		t.Fatalf("FinalScore = %v, want a high score", result.FinalScore)
	}
}

func TestScorerDifferentMelodyScoresLow(t *testing.T) {
	cfg := DefaultConfig()
	s := newBufferScorer(t, makeSine(220.0, 3.0, cfg.SampleRate, 0.7), cfg.SampleRate, cfg)

	// A tritone away on the pitch-class circle: the farthest note.
	self := s.Score(makeSine(220.0, 3.0, cfg.SampleRate, 0.7), cfg.SampleRate)
	tritone := s.Score(makeSine(311.13, 3.0, cfg.SampleRate, 0.7), cfg.SampleRate)

	if tritone.FinalScore >= self.FinalScore {
		t.Fatalf("tritone scored %v, self scored %v; want self higher", tritone.FinalScore, self.FinalScore)
	}
}

func TestScorerReferenceAnalysisInvariants(t *testing.T) {
	cfg := DefaultConfig()
	s := newBufferScorer(t, makeSine(220.0, 2.0, cfg.SampleRate, 0.7), cfg.SampleRate, cfg)

	ra := s.Reference()
	if ra == nil {
		t.Fatal("Reference() = nil")
	}
	if err := ra.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ra.VoicedFrames() == 0 {
		t.Fatal("reference has no voiced frames")
	}

	// A4 folds onto note class 69.
	for i, v := range ra.Smoothed {
		if v != 0 && math.Abs(v-69) > 0.5 {
			t.Fatalf("smoothed[%d] = %v, want near 69", i, v)
		}
	}
}

func TestNewScorerFromBufferRejectsEmptyInput(t *testing.T) {
	if _, err := NewScorerFromBuffer(nil, 44100, nil); err == nil {
		t.Fatal("NewScorerFromBuffer(nil) should error")
	}
}

func TestNewScorerMissingReferenceFails(t *testing.T) {
	_, err := NewScorer(context.Background(), filepath.Join(t.TempDir(), "absent.wav"), nil)
	if err == nil {
		t.Fatal("NewScorer with a missing reference should error")
	}
}

func TestScorerCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	if !transcode.NewDecoder(nil).Available() {
		t.Skip("ffmpeg not available")
	}

	cfg := DefaultConfig()
	refPath := writeWAV(t, makeSine(220.0, 2.0, cfg.SampleRate, 0.7), cfg.SampleRate)
	store := kv.NewMemory()

	first, err := NewScorerWithStore(ctx, refPath, store, cfg)
	if err != nil {
		t.Fatalf("NewScorerWithStore: %v", err)
	}

	// The analysis must now be cached under the base-name key.
	if _, err := store.Get(ctx, CacheKey(refPath)); err != nil {
		t.Fatalf("cache entry missing after build: %v", err)
	}

	// A second build loads the cached analysis and matches the first.
	second, err := NewScorerWithStore(ctx, refPath, store, cfg)
	if err != nil {
		t.Fatalf("NewScorerWithStore (cached): %v", err)
	}

	a, b := first.Reference(), second.Reference()
	if len(a.Smoothed) != len(b.Smoothed) {
		t.Fatalf("cached analysis length %d, want %d", len(b.Smoothed), len(a.Smoothed))
	}
	for i := range a.Smoothed {
		if a.F0[i] != b.F0[i] || a.Notes[i] != b.Notes[i] ||
			a.Folded[i] != b.Folded[i] || a.Smoothed[i] != b.Smoothed[i] {
			t.Fatalf("cached analysis differs at frame %d", i)
		}
	}
}

func TestScorerCorruptCacheEntryIsRebuilt(t *testing.T) {
	ctx := context.Background()
	if !transcode.NewDecoder(nil).Available() {
		t.Skip("ffmpeg not available")
	}

	cfg := DefaultConfig()
	refPath := writeWAV(t, makeSine(220.0, 2.0, cfg.SampleRate, 0.7), cfg.SampleRate)
	store := kv.NewMemory()

	if err := store.Set(ctx, CacheKey(refPath), []byte("not msgpack")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s, err := NewScorerWithStore(ctx, refPath, store, cfg)
	if err != nil {
		t.Fatalf("NewScorerWithStore: %v", err)
	}
	if s.Reference().VoicedFrames() == 0 {
		t.Fatal("rebuilt reference has no voiced frames")
	}

	// The corrupt entry was replaced with a decodable one.
	data, err := store.Get(ctx, CacheKey(refPath))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := DecodeReferenceAnalysis(data); err != nil {
		t.Fatalf("cache entry still corrupt after rebuild: %v", err)
	}
}

func TestScoreFileUndecodableReturnsZero(t *testing.T) {
	cfg := DefaultConfig()
	s := newBufferScorer(t, makeSine(220.0, 2.0, cfg.SampleRate, 0.7), cfg.SampleRate, cfg)

	result := s.ScoreFile(context.Background(), filepath.Join(t.TempDir(), "absent.wav"))
	if result.MelodyScore != 0 || result.FinalScore != 0 {
		t.Fatalf("ScoreFile on missing file scored %+v, want {0 0}", result)
	}
}

func newBufferScorer(t *testing.T, samples []float64, sampleRate int, cfg *Config) *Scorer {
	t.Helper()
	s, err := NewScorerFromBuffer(samples, sampleRate, cfg)
	if err != nil {
		t.Fatalf("NewScorerFromBuffer: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// writeWAV writes mono 16-bit PCM samples as a RIFF/WAVE file and
// returns its path.
func writeWAV(t *testing.T, samples []float64, sampleRate int) string {
	t.Helper()

	var data bytes.Buffer
	for _, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.Write(&data, binary.LittleEndian, int16(v*32767))
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))            // fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))             // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1))             // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))    // sample rate
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))  // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))             // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))            // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())

	path := filepath.Join(t.TempDir(), "reference.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}
