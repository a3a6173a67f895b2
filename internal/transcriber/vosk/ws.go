package vosk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"multimodal-rag/internal/transcriber"
)

// ServerEngine opens one vosk-server WebSocket connection per recognizer.
type ServerEngine struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
}

// NewServerEngine creates an engine for the vosk-server at url
// (for example ws://localhost:2700). timeout bounds every round trip.
func NewServerEngine(url string, timeout time.Duration) *ServerEngine {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ServerEngine{url: url, timeout: timeout, dialer: websocket.DefaultDialer}
}

// NewRecognizer dials the server and sends the stream configuration.
func (e *ServerEngine) NewRecognizer(ctx context.Context, sampleRate int) (transcriber.Recognizer, error) {
	conn, _, err := e.dialer.DialContext(ctx, e.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial vosk server: %w", err)
	}
	r := &serverRecognizer{conn: conn, timeout: e.timeout}
	cfg := map[string]any{"config": map[string]any{"sample_rate": sampleRate, "words": 1}}
	if err := r.writeJSON(cfg); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("configure vosk server: %w", err)
	}
	return r, nil
}

// serverRecognizer keeps the latest reply so Result and PartialResult need
// no extra round trip.
type serverRecognizer struct {
	conn    *websocket.Conn
	timeout time.Duration
	result  string
	partial string
	done    bool
}

func (r *serverRecognizer) AcceptWaveform(pcm []byte) (bool, error) {
	if r.done {
		return false, errors.New("vosk stream already finished")
	}
	_ = r.conn.SetWriteDeadline(time.Now().Add(r.timeout))
	if err := r.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return false, fmt.Errorf("send audio: %w", err)
	}
	m, err := r.read()
	if err != nil {
		return false, err
	}
	if m.isFinal() {
		r.result = m.text()
		r.partial = ""
		return true, nil
	}
	r.partial = m.partial()
	return false, nil
}

func (r *serverRecognizer) Result() (string, error) { return r.result, nil }

func (r *serverRecognizer) PartialResult() (string, error) { return r.partial, nil }

func (r *serverRecognizer) FinalResult() (string, error) {
	if r.done {
		return "", nil
	}
	r.done = true
	if err := r.writeJSON(map[string]int{"eof": 1}); err != nil {
		return "", fmt.Errorf("send eof: %w", err)
	}
	m, err := r.read()
	if err != nil {
		return "", err
	}
	return m.text(), nil
}

func (r *serverRecognizer) Close() error {
	_ = r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return r.conn.Close()
}

func (r *serverRecognizer) writeJSON(v any) error {
	_ = r.conn.SetWriteDeadline(time.Now().Add(r.timeout))
	return r.conn.WriteJSON(v)
}

func (r *serverRecognizer) read() (message, error) {
	_ = r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	_, raw, err := r.conn.ReadMessage()
	if err != nil {
		return message{}, fmt.Errorf("read vosk reply: %w", err)
	}
	return decode(raw)
}
