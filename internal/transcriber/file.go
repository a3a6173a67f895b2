package transcriber

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// BlockFrames is how many frames file mode hands the recognizer at a time.
const BlockFrames = 4000

// Transcriber runs whole-file transcriptions against a shared engine.
type Transcriber struct {
	engine Engine
	opts   options
}

// New creates a file-mode transcriber.
func New(engine Engine, opts ...Option) *Transcriber {
	return &Transcriber{engine: engine, opts: buildOptions(opts)}
}

// NewSession starts a streaming session on the same engine and options.
func (t *Transcriber) NewSession() *Session {
	return &Session{engine: t.engine, sampleRate: SampleRate, opts: t.opts}
}

// TranscribeFile returns the finalized text of a mono 16-bit 16 kHz PCM WAV
// file, segments joined by single spaces. Any other format, or any failure,
// yields "" and is logged. The recognizer is not created for files that fail
// the format check.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) string {
	text, err := t.transcribeFile(ctx, path)
	if err != nil {
		t.opts.logger.Warn("transcribe file", "path", path, "error", err)
		return ""
	}
	return text
}

func (t *Transcriber) transcribeFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return "", fmt.Errorf("not a valid wav file")
	}
	if err := checkFormat(d); err != nil {
		return "", err
	}

	rec, err := t.engine.NewRecognizer(ctx, SampleRate)
	if err != nil {
		return "", fmt.Errorf("create recognizer: %w", err)
	}
	defer func() {
		if err := rec.Close(); err != nil {
			t.opts.logger.Warn("close recognizer", "error", err)
		}
	}()

	var segments []string
	buf := &audio.IntBuffer{Data: make([]int, BlockFrames)}
	block := make([]byte, 0, BlockFrames*2)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := d.PCMBuffer(buf)
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read pcm: %w", err)
		}
		if n == 0 {
			break
		}
		block = block[:0]
		for _, s := range buf.Data[:n] {
			block = binary.LittleEndian.AppendUint16(block, uint16(int16(s)))
		}
		done, err := rec.AcceptWaveform(block)
		if err != nil {
			return "", fmt.Errorf("accept waveform: %w", err)
		}
		if done {
			text, err := rec.Result()
			if err != nil {
				return "", fmt.Errorf("read result: %w", err)
			}
			if text = strings.TrimSpace(text); text != "" {
				segments = append(segments, text)
			}
		}
	}

	final, err := rec.FinalResult()
	if err != nil {
		return "", fmt.Errorf("read final result: %w", err)
	}
	if final = strings.TrimSpace(final); final != "" {
		segments = append(segments, final)
	}
	return strings.Join(segments, " "), nil
}

func checkFormat(d *wav.Decoder) error {
	if d.WavAudioFormat != 1 || d.NumChans != 1 || d.BitDepth != 16 || d.SampleRate != SampleRate {
		return fmt.Errorf("unsupported audio: format=%d channels=%d bits=%d rate=%d, want mono 16-bit %d Hz PCM",
			d.WavAudioFormat, d.NumChans, d.BitDepth, d.SampleRate, SampleRate)
	}
	return nil
}
