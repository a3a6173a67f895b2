// Package transcriber turns 16-bit PCM speech into text on top of a
// Kaldi-style streaming recognizer.
package transcriber

import "context"

// SampleRate is the only rate the recognizers are fed.
const SampleRate = 16000

// Recognizer is one decoding stream. It consumes little-endian 16-bit mono
// PCM and reports when the current utterance has ended.
type Recognizer interface {
	// AcceptWaveform reports true when an utterance ended and Result holds
	// its final text.
	AcceptWaveform(pcm []byte) (bool, error)
	Result() (string, error)
	PartialResult() (string, error)
	// FinalResult flushes buffered audio and returns the remaining text.
	FinalResult() (string, error)
	Close() error
}

// Engine is a loaded speech model. It is shared for the whole process and
// hands out one Recognizer per stream.
type Engine interface {
	NewRecognizer(ctx context.Context, sampleRate int) (Recognizer, error)
}
