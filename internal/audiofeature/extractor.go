// Package audiofeature derives fixed-length embeddings from recorded audio.
package audiofeature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-audio/wav"
	"github.com/samber/mo"

	"multimodal-rag/internal/metrics"
)

// ModelSampleRate is the rate the audio model expects.
const ModelSampleRate = 16000

// FrameEmbedder runs an audio model over a waveform at ModelSampleRate and
// returns one vector per analysis frame.
type FrameEmbedder interface {
	EmbedFrames(ctx context.Context, waveform []float32) ([][]float32, error)
}

// Extractor turns recordings into audio embeddings. Failures never
// propagate: the embedding is absent instead.
type Extractor struct {
	model   FrameEmbedder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger for degraded extractions.
func WithLogger(l *slog.Logger) Option { return func(e *Extractor) { e.logger = l } }

// WithMetrics counts degraded extractions on m.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Extractor) { e.metrics = m } }

// NewExtractor creates an extractor backed by model. A nil model makes every
// extraction absent.
func NewExtractor(model FrameEmbedder, opts ...Option) *Extractor {
	e := &Extractor{model: model, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads a PCM WAV file and embeds it.
func (e *Extractor) Extract(ctx context.Context, path string) mo.Option[[]float32] {
	if e.model == nil {
		return mo.None[[]float32]()
	}
	samples, rate, depth, channels, err := readWAV(path)
	if err != nil {
		return e.fail(fmt.Errorf("read %s: %w", path, err))
	}
	return e.embed(ctx, Normalize(samples, depth, channels), rate)
}

// ExtractSamples embeds mono integer PCM already in memory.
func (e *Extractor) ExtractSamples(ctx context.Context, samples []int, sampleRate, bitDepth int) mo.Option[[]float32] {
	if e.model == nil {
		return mo.None[[]float32]()
	}
	if bitDepth <= 0 || sampleRate <= 0 {
		return e.fail(fmt.Errorf("invalid audio format: rate=%d bits=%d", sampleRate, bitDepth))
	}
	return e.embed(ctx, Normalize(samples, bitDepth, 1), sampleRate)
}

// Waveform resamples normalized audio to ModelSampleRate and pads it to at
// least one second.
func Waveform(x []float32, sampleRate int) []float32 {
	if sampleRate != ModelSampleRate {
		x = Resample(x, sampleRate, ModelSampleRate)
	}
	return PadToMinimum(x, ModelSampleRate)
}

func (e *Extractor) embed(ctx context.Context, x []float32, sampleRate int) mo.Option[[]float32] {
	if len(x) == 0 {
		return e.fail(errors.New("no audio samples"))
	}
	frames, err := e.model.EmbedFrames(ctx, Waveform(x, sampleRate))
	if err != nil {
		return e.fail(fmt.Errorf("run audio model: %w", err))
	}
	vec, err := MeanPool(frames)
	if err != nil {
		return e.fail(err)
	}
	return mo.Some(vec)
}

func (e *Extractor) fail(err error) mo.Option[[]float32] {
	e.logger.Warn("audio embedding unavailable", "error", err)
	e.metrics.RecordEmbeddingFailure("audio")
	return mo.None[[]float32]()
}

func readWAV(path string) (samples []int, rate, depth, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, 0, 0, errors.New("not a valid wav file")
	}
	if d.WavAudioFormat != 1 {
		return nil, 0, 0, 0, fmt.Errorf("unsupported wav format %d", d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	return buf.Data, int(d.SampleRate), int(d.BitDepth), int(d.NumChans), nil
}
