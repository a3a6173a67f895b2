//go:build vosk

package vosk

import (
	"context"
	"errors"
	"fmt"

	voskapi "github.com/alphacep/vosk-api/go"

	"multimodal-rag/internal/transcriber"
)

// NativeEngine runs recognition in-process through libvosk. The model is
// loaded once and shared by every recognizer.
type NativeEngine struct {
	model *voskapi.VoskModel
}

// LoadModel loads the Vosk model directory at path.
func LoadModel(path string) (*NativeEngine, error) {
	m, err := voskapi.NewModel(path)
	if err != nil {
		return nil, fmt.Errorf("load vosk model %s: %w", path, err)
	}
	return &NativeEngine{model: m}, nil
}

// Close frees the model. Recognizers must be closed first.
func (e *NativeEngine) Close() { e.model.Free() }

func (e *NativeEngine) NewRecognizer(_ context.Context, sampleRate int) (transcriber.Recognizer, error) {
	rec, err := voskapi.NewRecognizer(e.model, float64(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("create vosk recognizer: %w", err)
	}
	rec.SetWords(1)
	return &nativeRecognizer{rec: rec}, nil
}

type nativeRecognizer struct {
	rec *voskapi.VoskRecognizer
}

func (r *nativeRecognizer) AcceptWaveform(pcm []byte) (bool, error) {
	switch r.rec.AcceptWaveform(pcm) {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, errors.New("vosk rejected waveform")
	}
}

func (r *nativeRecognizer) Result() (string, error) {
	m, err := decode([]byte(r.rec.Result()))
	return m.text(), err
}

func (r *nativeRecognizer) PartialResult() (string, error) {
	m, err := decode([]byte(r.rec.PartialResult()))
	return m.partial(), err
}

func (r *nativeRecognizer) FinalResult() (string, error) {
	m, err := decode([]byte(r.rec.FinalResult()))
	return m.text(), err
}

func (r *nativeRecognizer) Close() error {
	r.rec.Free()
	return nil
}
