package melody

import (
	"fmt"
	"sync"
	"time"

	"github.com/PillaiFanClub/Ladidadidaaaa/algorithms/temporal"
	"github.com/PillaiFanClub/Ladidadidaaaa/algorithms/tonal"
	"github.com/PillaiFanClub/Ladidadidaaaa/logging"
)

// PitchExtractor turns raw mono PCM into a per-frame fundamental
// frequency series. The signal is cut into fixed-length chunks that are
// analyzed in parallel, each chunk combining YIN pitch detection with
// an RMS energy gate so breaths and room noise between phrases do not
// register as pitch.
type PitchExtractor struct {
	cfg      *Config
	energy   *temporal.Energy
	detector *tonal.PitchDetector
	logger   logging.Logger
}

// NewPitchExtractor creates a pitch extractor for the given config
func NewPitchExtractor(cfg *Config) (*PitchExtractor, error) {
	cfg = cfg.withDefaults()

	params := tonal.DefaultPitchDetectionParams(cfg.SampleRate)
	params.FrameLength = cfg.FrameLength
	params.MinFreq = cfg.MinFrequency
	params.MaxFreq = cfg.MaxFrequency

	detector, err := tonal.NewPitchDetectorWithParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create pitch detector: %w", err)
	}

	return &PitchExtractor{
		cfg:      cfg,
		energy:   temporal.NewEnergy(cfg.FrameLength, cfg.HopLength),
		detector: detector,
		logger: logging.WithFields(logging.Fields{
			"component": "pitch_extractor",
		}),
	}, nil
}

// Extract computes the gated f0 series for a signal. The returned
// voiced mask is true exactly where f0 is nonzero. Chunks are processed
// by a worker pool and results are concatenated in chunk order, so the
// output is identical regardless of worker count.
func (pe *PitchExtractor) Extract(samples []float64) ([]float64, []bool) {
	if len(samples) == 0 {
		return []float64{}, []bool{}
	}

	startTime := time.Now()

	chunkSize := pe.cfg.chunkSize()
	numChunks := (len(samples) + chunkSize - 1) / chunkSize

	f0Chunks := make([][]float64, numChunks)
	voicedChunks := make([][]bool, numChunks)

	numWorkers := min(pe.cfg.Workers, numChunks)
	if numWorkers < 1 {
		numWorkers = 1
	}

	type chunkJob struct {
		chunkIdx int
		startIdx int
		endIdx   int
	}

	jobs := make(chan chunkJob, numChunks)

	var wg sync.WaitGroup

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, pe.cfg.FrameLength)

			for job := range jobs {
				f0, voiced := pe.processChunk(samples[job.startIdx:job.endIdx], frameBuffer)
				f0Chunks[job.chunkIdx] = f0
				voicedChunks[job.chunkIdx] = voiced
			}
		}()
	}

	// Send jobs to workers
	go func() {
		defer close(jobs)
		for chunkIdx := range numChunks {
			startIdx := chunkIdx * chunkSize
			endIdx := min(startIdx+chunkSize, len(samples))
			jobs <- chunkJob{
				chunkIdx: chunkIdx,
				startIdx: startIdx,
				endIdx:   endIdx,
			}
		}
	}()

	wg.Wait()

	totalFrames := 0
	for _, chunk := range f0Chunks {
		totalFrames += len(chunk)
	}

	f0 := make([]float64, 0, totalFrames)
	voiced := make([]bool, 0, totalFrames)
	for i := range numChunks {
		f0 = append(f0, f0Chunks[i]...)
		voiced = append(voiced, voicedChunks[i]...)
	}

	voicedCount := 0
	for _, v := range voiced {
		if v {
			voicedCount++
		}
	}

	pe.logger.Debug("Pitch extraction completed", logging.Fields{
		"samples":         len(samples),
		"chunks":          numChunks,
		"workers":         numWorkers,
		"frames":          len(f0),
		"voiced_frames":   voicedCount,
		"extraction_time": time.Since(startTime).Seconds(),
	})

	return f0, voiced
}

// processChunk analyzes one chunk. Any panic degrades the chunk to
// all-unvoiced rather than taking down the whole extraction.
func (pe *PitchExtractor) processChunk(chunk []float64, frameBuffer []float64) (f0 []float64, voiced []bool) {
	numFrames := pe.energy.NumFrames(len(chunk))

	defer func() {
		if r := recover(); r != nil {
			pe.logger.Warn("Chunk processing failed, zeroing chunk", logging.Fields{
				"panic": fmt.Sprint(r),
			})
			f0 = make([]float64, numFrames)
			voiced = make([]bool, numFrames)
		}
	}()

	f0 = make([]float64, numFrames)
	voiced = make([]bool, numFrames)

	rms := pe.energy.ComputeRMS(chunk)
	rms = temporal.FixLength(rms, numFrames)
	gate, _ := temporal.ComputeEnergyGate(rms, pe.cfg.EnergyRatio)

	for i := range numFrames {
		temporal.ExtractFrame(chunk, i, pe.cfg.HopLength, frameBuffer)

		pitch, err := pe.detector.DetectFrame(frameBuffer)
		if err != nil || pitch == nil {
			continue
		}

		// A frame only counts when the detector flags it voiced AND it
		// carries enough energy
		if pitch.Voiced && gate[i] && pitch.Frequency > 0 {
			f0[i] = pitch.Frequency
			voiced[i] = true
		}
	}

	return f0, voiced
}
