package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multimodal-rag/internal/audiofeature"
	"multimodal-rag/internal/chunker"
	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/embedding/hashing"
	"multimodal-rag/internal/generation"
	"multimodal-rag/internal/logger"
	"multimodal-rag/internal/retrieval"
	"multimodal-rag/internal/summarizer"
	"multimodal-rag/internal/transcriber"
	"multimodal-rag/internal/vectorstore"
	"multimodal-rag/internal/vectorstore/memory"
)

// keywordEmbedder puts each known word on its own axis.
type keywordEmbedder struct{ words []string }

func (e keywordEmbedder) Name() string   { return "keyword" }
func (e keywordEmbedder) Dimension() int { return len(e.words) }

func (e keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, len(e.words))
	lower := strings.ToLower(text)
	for i, w := range e.words {
		if strings.Contains(lower, w) {
			v[i] = 1
		}
	}
	return v, nil
}

func (e keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

// scriptedEngine recognizes nothing until the end of the stream, then
// returns final.
type scriptedEngine struct{ final string }

func (e scriptedEngine) NewRecognizer(context.Context, int) (transcriber.Recognizer, error) {
	return &scriptedRecognizer{final: e.final}, nil
}

type scriptedRecognizer struct{ final string }

func (r *scriptedRecognizer) AcceptWaveform([]byte) (bool, error) { return false, nil }
func (r *scriptedRecognizer) Result() (string, error)             { return "", nil }
func (r *scriptedRecognizer) PartialResult() (string, error)      { return "", nil }
func (r *scriptedRecognizer) FinalResult() (string, error)        { return r.final, nil }
func (r *scriptedRecognizer) Close() error                        { return nil }

// flakyStore rejects every chunk insert after the first failAfter.
type flakyStore struct {
	*memory.Storage
	failAfter int
	inserts   int
}

func (s *flakyStore) InsertChunk(ctx context.Context, ch domain.Chunk) error {
	if s.inserts >= s.failAfter {
		return &vectorstore.StorageError{Op: "insert chunk", Status: 500, Body: "boom"}
	}
	s.inserts++
	return s.Storage.InsertChunk(ctx, ch)
}

// brokenAudioStore rejects every audio insert.
type brokenAudioStore struct{ *memory.Storage }

func (brokenAudioStore) InsertAudio(context.Context, domain.AudioRecord) error {
	return &vectorstore.StorageError{Op: "insert audio record", Status: 503, Body: "unavailable"}
}

type echoCompleter struct{ calls int }

func (c *echoCompleter) Complete(_ context.Context, prompt string) (generation.Completion, error) {
	c.calls++
	return generation.Completion{Text: "answer from context"}, nil
}

var words = []string{"hello", "world", "attention"}

func newTestService(t *testing.T, store domain.VectorStore, engine transcriber.Engine, completer generation.Completer) *Service {
	t.Helper()
	return newTestServiceWith(t, keywordEmbedder{words: words}, store, engine, completer)
}

func newTestServiceWith(t *testing.T, emb domain.TextEmbedder, store domain.VectorStore, engine transcriber.Engine, completer generation.Completer) *Service {
	t.Helper()
	log := logger.Discard()
	c := Components{
		Chunker:       chunker.NewPageChunker(""),
		Embedder:      emb,
		Store:         store,
		Retriever:     retrieval.New(emb, store, retrieval.WithLogger(log)),
		AudioFeatures: audiofeature.NewExtractor(nil, audiofeature.WithLogger(log)),
		Summarizer:    summarizer.NewFrequencySummarizer(),
	}
	if completer != nil {
		c.Generator = generation.New(completer, generation.WithLogger(log))
	}
	if engine != nil {
		c.Transcriber = transcriber.New(engine, transcriber.WithLogger(log))
	}
	s := New(c, WithLogger(log), WithRecordingsDir(filepath.Join(t.TempDir(), "recordings")))
	s.now = func() time.Time { return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC) }
	return s
}

func writeSilentWAV(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, frames),
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

const twoPages = "\n=== Page 1 ===\nHello\n=== Page 2 ===\nWorld"

func TestIngestText_TwoPagesThenAsk(t *testing.T) {
	store := memory.NewStorage()
	completer := &echoCompleter{}
	s := newTestService(t, store, nil, completer)

	report, err := s.IngestText(context.Background(), domain.Document{ID: "doc", Path: "paper.pdf", Text: twoPages})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 2, report.Stored)
	assert.NotEmpty(t, report.Summary)
	chunks, _ := store.Len()
	assert.Equal(t, 2, chunks)

	ans, err := s.Ask(context.Background(), "Hello")
	require.NoError(t, err)
	require.NotEmpty(t, ans.Matches)
	assert.Equal(t, "Page 1", ans.Matches[0].Label)
	assert.GreaterOrEqual(t, ans.Matches[0].Similarity, retrieval.DefaultThreshold)
	assert.Equal(t, "answer from context", ans.Answer)
	assert.Equal(t, 1, completer.calls)
}

func TestAsk_TwoPagesWithHashingEmbedder(t *testing.T) {
	store := memory.NewStorage()
	s := newTestServiceWith(t, hashing.NewEmbedder(0), store, nil, nil)

	text := "\n=== Page 1 ===\nPage 1: Hello\n=== Page 2 ===\nPage 2: World"
	report, err := s.IngestText(context.Background(), domain.Document{ID: "doc", Path: "paper.pdf", Text: text})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stored)

	ans, err := s.Ask(context.Background(), "Hello")
	require.NoError(t, err)
	require.Len(t, ans.Matches, 1)
	assert.Equal(t, "Page 1", ans.Matches[0].Label)
	assert.GreaterOrEqual(t, ans.Matches[0].Similarity, retrieval.DefaultThreshold)
	assert.Contains(t, ans.Answer, "Hello")
}

func TestIngestPDF_UsesExtractedText(t *testing.T) {
	s := newTestService(t, memory.NewStorage(), nil, nil)
	s.extractPDF = func(path string) (string, error) { return twoPages, nil }

	report, err := s.IngestPDF(context.Background(), "paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, "paper.pdf", report.Source)
	assert.Equal(t, 2, report.Stored)

	s.extractPDF = func(string) (string, error) { return "", errors.New("not a pdf") }
	_, err = s.IngestPDF(context.Background(), "broken.pdf")
	require.Error(t, err)
}

func TestIngestText_StopsAtFirstStorageError(t *testing.T) {
	store := &flakyStore{Storage: memory.NewStorage(), failAfter: 1}
	s := newTestService(t, store, nil, nil)

	report, err := s.IngestText(context.Background(), domain.Document{ID: "doc", Path: "paper.pdf", Text: twoPages})
	require.Error(t, err)
	var se *vectorstore.StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.Status)
	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 1, report.Stored)
}

func TestIngestText_BlankDocument(t *testing.T) {
	s := newTestService(t, memory.NewStorage(), nil, nil)
	report, err := s.IngestText(context.Background(), domain.Document{Path: "blank.txt", Text: "  \n "})
	require.NoError(t, err)
	assert.Zero(t, report.Chunks)
}

func TestAsk_EmptyStoreFallsBack(t *testing.T) {
	completer := &echoCompleter{}
	s := newTestService(t, memory.NewStorage(), nil, completer)

	ans, err := s.Ask(context.Background(), "anything about attention?")
	require.NoError(t, err)
	assert.Empty(t, ans.Matches)
	assert.NotNil(t, ans.Matches)
	assert.Equal(t, generation.FallbackAnswer, ans.Answer)
	assert.Zero(t, completer.calls)
}

func TestIngestAudio_SilentSecondIsStored(t *testing.T) {
	store := memory.NewStorage()
	s := newTestService(t, store, scriptedEngine{}, nil)

	rec, err := s.IngestAudio(context.Background(), writeSilentWAV(t, 16000))
	require.NoError(t, err)
	assert.Equal(t, "", rec.Transcript)
	assert.NotNil(t, rec.LexicalEmbedding)
	assert.Empty(t, rec.LexicalEmbedding)
	assert.True(t, rec.AudioEmbedding.IsAbsent())
	assert.True(t, rec.TranscriptEmbedding.IsAbsent())
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "audio_20260102_150405.wav", filepath.Base(rec.FilePath))
	assert.FileExists(t, rec.FilePath)

	_, audioCount := store.Len()
	assert.Equal(t, 1, audioCount)
}

func TestIngestAudio_SameSecondGetsSuffix(t *testing.T) {
	s := newTestService(t, memory.NewStorage(), scriptedEngine{}, nil)
	src := writeSilentWAV(t, 1600)

	first, err := s.IngestAudio(context.Background(), src)
	require.NoError(t, err)
	second, err := s.IngestAudio(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "audio_20260102_150405.wav", filepath.Base(first.FilePath))
	assert.Equal(t, "audio_20260102_150405_1.wav", filepath.Base(second.FilePath))
}

func TestIngestAudio_TranscriptIsSearchable(t *testing.T) {
	store := memory.NewStorage()
	s := newTestService(t, store, scriptedEngine{final: "hello world"}, nil)

	rec, err := s.IngestAudio(context.Background(), writeSilentWAV(t, 16000))
	require.NoError(t, err)
	assert.Equal(t, "hello world", rec.Transcript)
	assert.Contains(t, rec.LexicalEmbedding, "hello")
	assert.True(t, rec.TranscriptEmbedding.IsPresent())

	matches, err := s.Query(context.Background(), "hello world", 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, domain.MatchKindAudio, matches[0].Kind)
	assert.Equal(t, "hello world", matches[0].Content)

	ans, err := s.Ask(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Contains(t, ans.Answer, "hello world")
}

func TestIngestAudio_FailedInsertRemovesCopy(t *testing.T) {
	s := newTestService(t, brokenAudioStore{memory.NewStorage()}, scriptedEngine{}, nil)

	_, err := s.IngestAudio(context.Background(), writeSilentWAV(t, 1600))
	var se *vectorstore.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.Status)

	entries, err := os.ReadDir(s.recordingsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIngestAudio_NeedsTranscriber(t *testing.T) {
	s := newTestService(t, memory.NewStorage(), nil, nil)
	_, err := s.IngestAudio(context.Background(), writeSilentWAV(t, 100))
	require.ErrorIs(t, err, ErrNoTranscriber)
}
