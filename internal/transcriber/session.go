package transcriber

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"multimodal-rag/internal/metrics"
)

// ErrSessionFinalized is returned when audio is fed to a finalized session
// that was not Reset.
var ErrSessionFinalized = errors.New("transcription session finalized")

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	Listening
	Finalized
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Finalized:
		return "finalized"
	default:
		return "idle"
	}
}

// Option configures a Session or a Transcriber.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithLogger sets the logger used for recovered recognizer failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records result kinds on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Session is a streaming transcription of one audio stream. The recognizer
// is created on the first waveform chunk. A Session must have a single
// owner; it is not safe for concurrent use.
type Session struct {
	engine     Engine
	sampleRate int
	opts       options

	rec      Recognizer
	segments []string
	partial  string
	pending  []byte
	state    State
}

// NewSession creates an idle session that will decode audio at sampleRate.
func NewSession(engine Engine, sampleRate int, opts ...Option) *Session {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	return &Session{engine: engine, sampleRate: sampleRate, opts: buildOptions(opts)}
}

// State reports the current lifecycle state.
func (s *Session) State() State { return s.state }

// Transcript returns the finalized segments joined by single spaces.
// Partial hypotheses are never part of it.
func (s *Session) Transcript() string { return strings.Join(s.segments, " ") }

// AcceptWaveform feeds a chunk of 16-bit PCM. A trailing odd byte is held
// back until the next chunk so samples stay aligned. Recognizer failures are
// logged and reported as Empty; the only error is ErrSessionFinalized.
func (s *Session) AcceptWaveform(ctx context.Context, pcm []byte) (Result, error) {
	if s.state == Finalized {
		return Result{}, ErrSessionFinalized
	}
	if s.rec == nil {
		rec, err := s.engine.NewRecognizer(ctx, s.sampleRate)
		if err != nil {
			s.opts.logger.Error("create recognizer", "error", err)
			return s.emit(Result{Kind: Empty, Transcript: s.display()}), nil
		}
		s.rec = rec
		s.state = Listening
	}

	data := pcm
	if len(s.pending) > 0 {
		data = append(s.pending, pcm...)
		s.pending = nil
	}
	if len(data)%2 == 1 {
		s.pending = []byte{data[len(data)-1]}
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return s.emit(Result{Kind: Empty, Transcript: s.display()}), nil
	}

	done, err := s.rec.AcceptWaveform(data)
	if err != nil {
		s.opts.logger.Warn("accept waveform", "error", err)
		return s.emit(Result{Kind: Empty, Transcript: s.display()}), nil
	}
	if done {
		text, err := s.rec.Result()
		if err != nil {
			s.opts.logger.Warn("read result", "error", err)
			return s.emit(Result{Kind: Empty, Transcript: s.display()}), nil
		}
		s.partial = ""
		if text = strings.TrimSpace(text); text != "" {
			s.segments = append(s.segments, text)
			return s.emit(Result{Kind: FinalSegment, Text: text, Transcript: s.display()}), nil
		}
	}

	partial, err := s.rec.PartialResult()
	if err != nil {
		s.opts.logger.Warn("read partial result", "error", err)
		return s.emit(Result{Kind: Empty, Transcript: s.display()}), nil
	}
	s.partial = strings.TrimSpace(partial)
	if s.partial == "" {
		return s.emit(Result{Kind: Empty, Transcript: s.display()}), nil
	}
	return s.emit(Result{Kind: Partial, Text: s.partial, Transcript: s.display()}), nil
}

// Finalize flushes the recognizer, releases it and returns the complete
// transcript. It never fails; calling it again returns the same text.
func (s *Session) Finalize() string {
	if s.state == Finalized {
		return s.Transcript()
	}
	if s.rec != nil {
		text, err := s.rec.FinalResult()
		if err != nil {
			s.opts.logger.Warn("read final result", "error", err)
		} else if text = strings.TrimSpace(text); text != "" {
			s.segments = append(s.segments, text)
		}
		s.closeRecognizer()
	}
	s.pending = nil
	s.partial = ""
	s.state = Finalized
	return s.Transcript()
}

// Reset discards all state and returns the session to Idle.
func (s *Session) Reset() {
	s.closeRecognizer()
	s.segments = nil
	s.partial = ""
	s.pending = nil
	s.state = Idle
}

func (s *Session) closeRecognizer() {
	if s.rec == nil {
		return
	}
	if err := s.rec.Close(); err != nil {
		s.opts.logger.Warn("close recognizer", "error", err)
	}
	s.rec = nil
}

func (s *Session) display() string {
	t := s.Transcript()
	switch {
	case s.partial == "":
		return t
	case t == "":
		return s.partial
	default:
		return t + " " + s.partial
	}
}

func (s *Session) emit(r Result) Result {
	s.opts.metrics.RecordTranscriptionResult(r.Kind.String())
	return r
}
