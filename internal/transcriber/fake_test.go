package transcriber

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

// fakeEngine hands out fakeRecognizers. Every utteranceBytes of non-silent
// audio completes one segment named "segment N".
type fakeEngine struct {
	utteranceBytes int
	created        int
	createErr      error
	recs           []*fakeRecognizer
}

func (e *fakeEngine) NewRecognizer(_ context.Context, sampleRate int) (Recognizer, error) {
	if e.createErr != nil {
		return nil, e.createErr
	}
	e.created++
	r := &fakeRecognizer{utteranceBytes: e.utteranceBytes}
	e.recs = append(e.recs, r)
	return r, nil
}

type fakeRecognizer struct {
	utteranceBytes int
	voiced         int
	segments       int
	last           string
	received       [][]byte
	finalErr       error
	acceptErr      error
	closed         bool
}

func (r *fakeRecognizer) AcceptWaveform(pcm []byte) (bool, error) {
	if r.acceptErr != nil {
		return false, r.acceptErr
	}
	r.received = append(r.received, append([]byte(nil), pcm...))
	for i := 0; i+1 < len(pcm); i += 2 {
		if binary.LittleEndian.Uint16(pcm[i:]) != 0 {
			r.voiced += 2
		}
	}
	if r.utteranceBytes > 0 && r.voiced >= r.utteranceBytes {
		r.voiced -= r.utteranceBytes
		r.segments++
		r.last = fmt.Sprintf("segment %d", r.segments)
		return true, nil
	}
	return false, nil
}

func (r *fakeRecognizer) Result() (string, error) { return r.last, nil }

func (r *fakeRecognizer) PartialResult() (string, error) {
	if r.voiced == 0 {
		return "", nil
	}
	return "hearing", nil
}

func (r *fakeRecognizer) FinalResult() (string, error) {
	if r.finalErr != nil {
		return "", r.finalErr
	}
	if r.voiced == 0 {
		return "", nil
	}
	r.voiced = 0
	return "tail", nil
}

func (r *fakeRecognizer) Close() error {
	r.closed = true
	return nil
}

var errEngine = errors.New("engine failure")

// tone returns n non-zero little-endian 16-bit samples.
func tone(n int) []byte {
	b := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(1000+i%7))
	}
	return b
}

func writeWAV(t *testing.T, rate, channels int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}
