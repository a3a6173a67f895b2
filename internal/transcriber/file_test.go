package transcriber

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multimodal-rag/internal/logger"
)

func voiced(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = 1000 + i%7
	}
	return s
}

func TestTranscribeFile_CollectsFinalSegments(t *testing.T) {
	// 9000 frames read as blocks of 4000, 4000 and 1000. Each utterance
	// needs 5000 frames of voiced audio.
	path := writeWAV(t, SampleRate, 1, voiced(9000))
	eng := &fakeEngine{utteranceBytes: 10000}
	tr := New(eng, WithLogger(logger.Discard()))

	got := tr.TranscribeFile(context.Background(), path)
	assert.Equal(t, "segment 1 tail", got)
	require.Len(t, eng.recs, 1)
	assert.Len(t, eng.recs[0].received, 3)
	assert.Len(t, eng.recs[0].received[0], BlockFrames*2)
	assert.True(t, eng.recs[0].closed)
}

func TestTranscribeFile_Deterministic(t *testing.T) {
	path := writeWAV(t, SampleRate, 1, voiced(23000))
	tr := New(&fakeEngine{utteranceBytes: 6000}, WithLogger(logger.Discard()))

	first := tr.TranscribeFile(context.Background(), path)
	require.NotEmpty(t, first)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, tr.TranscribeFile(context.Background(), path))
	}
}

func TestTranscribeFile_NonConformingAudio(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"stereo", func(t *testing.T) string { return writeWAV(t, SampleRate, 2, voiced(8000)) }},
		{"8 kHz", func(t *testing.T) string { return writeWAV(t, 8000, 1, voiced(8000)) }},
		{"not a wav", func(t *testing.T) string {
			p := filepath.Join(t.TempDir(), "x.wav")
			require.NoError(t, os.WriteFile(p, []byte("definitely not riff data"), 0o644))
			return p
		}},
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.wav") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{utteranceBytes: 100}
			tr := New(eng, WithLogger(logger.Discard()))
			assert.Equal(t, "", tr.TranscribeFile(context.Background(), tt.path(t)))
			assert.Equal(t, 0, eng.created)
		})
	}
}

func TestTranscribeFile_OneSecondSilence(t *testing.T) {
	path := writeWAV(t, SampleRate, 1, make([]int, SampleRate))
	eng := &fakeEngine{utteranceBytes: 100}
	tr := New(eng, WithLogger(logger.Discard()))

	assert.Equal(t, "", tr.TranscribeFile(context.Background(), path))
	assert.Equal(t, 1, eng.created)
}

func TestTranscribeFile_EngineFailure(t *testing.T) {
	path := writeWAV(t, SampleRate, 1, voiced(4000))
	tr := New(&fakeEngine{createErr: errEngine}, WithLogger(logger.Discard()))
	assert.Equal(t, "", tr.TranscribeFile(context.Background(), path))
}

func TestTranscriber_NewSessionSharesEngine(t *testing.T) {
	eng := &fakeEngine{utteranceBytes: 20}
	tr := New(eng, WithLogger(logger.Discard()))
	s := tr.NewSession()
	r, err := s.AcceptWaveform(context.Background(), tone(10))
	require.NoError(t, err)
	assert.Equal(t, FinalSegment, r.Kind)
	assert.Equal(t, 1, eng.created)
}
