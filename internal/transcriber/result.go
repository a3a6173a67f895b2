package transcriber

// ResultKind tags what AcceptWaveform produced.
type ResultKind int

const (
	// Empty means nothing new was recognized.
	Empty ResultKind = iota
	// Partial is a provisional hypothesis for the current utterance.
	Partial
	// FinalSegment is a finished utterance, now part of the transcript.
	FinalSegment
)

func (k ResultKind) String() string {
	switch k {
	case Partial:
		return "partial"
	case FinalSegment:
		return "final"
	default:
		return "empty"
	}
}

// Result is the outcome of one AcceptWaveform call. Text is the new segment
// or partial hypothesis. Transcript is what a live display shows: every
// finalized segment plus the current partial.
type Result struct {
	Kind       ResultKind
	Text       string
	Transcript string
}
