// Package service wires the ingestion and query pipelines together.
package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"multimodal-rag/internal/audiofeature"
	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/embedding/tfidf"
	"multimodal-rag/internal/generation"
	"multimodal-rag/internal/metrics"
	"multimodal-rag/internal/pdftext"
	"multimodal-rag/internal/retrieval"
	"multimodal-rag/internal/transcriber"
)

// ErrNoTranscriber is returned by IngestAudio when no speech engine is wired.
var ErrNoTranscriber = errors.New("audio ingestion needs a transcriber")

// Components are the pipeline stages a Service composes. Transcriber,
// AudioFeatures, Generator and Summarizer may be nil when the commands that
// use them are not run.
type Components struct {
	Chunker       domain.Chunker
	Embedder      domain.TextEmbedder
	Store         domain.VectorStore
	Retriever     *retrieval.Retriever
	Generator     *generation.Generator
	Transcriber   *transcriber.Transcriber
	AudioFeatures *audiofeature.Extractor
	Summarizer    domain.Summarizer
}

// IngestReport describes one document ingestion. Stored counts the chunks
// persisted before any failure.
type IngestReport struct {
	Source  string `json:"source"`
	Chunks  int    `json:"chunks"`
	Stored  int    `json:"stored"`
	Summary string `json:"summary,omitempty"`
}

// Answer is the result of a question: the query, what was retrieved for it
// and the generated answer.
type Answer struct {
	Query   string         `json:"query"`
	Matches []domain.Match `json:"matches"`
	Answer  string         `json:"answer"`
}

// Service runs ingestion and question answering over one vector store.
type Service struct {
	c                Components
	summarySentences int
	recordingsDir    string
	batchSize        int
	logger           *slog.Logger
	metrics          *metrics.Metrics
	now              func() time.Time
	newID            func() string
	extractPDF       func(path string) (string, error)
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithRecordingsDir sets where ingested audio files are copied.
func WithRecordingsDir(dir string) Option { return func(s *Service) { s.recordingsDir = dir } }

// WithSummarySentences sets the length of ingest summaries.
func WithSummarySentences(n int) Option { return func(s *Service) { s.summarySentences = n } }

// WithBatchSize caps how many chunks go into one embedding request.
// Non-positive values send every chunk of a document at once.
func WithBatchSize(n int) Option { return func(s *Service) { s.batchSize = n } }

// New creates a Service from its components.
func New(c Components, opts ...Option) *Service {
	s := &Service{
		c:                c,
		summarySentences: 5,
		recordingsDir:    "recordings",
		logger:           slog.Default(),
		now:              time.Now,
		newID:            uuid.NewString,
		extractPDF:       pdftext.Extract,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestPDF extracts the text of a PDF and ingests it as one document.
func (s *Service) IngestPDF(ctx context.Context, path string) (IngestReport, error) {
	text, err := s.extractPDF(path)
	if err != nil {
		return IngestReport{Source: path}, err
	}
	return s.IngestText(ctx, domain.Document{ID: hashString(path), Path: path, Text: text})
}

// IngestText chunks, embeds and stores already extracted text. Insertion
// stops at the first storage error; the report then tells how many chunks
// made it.
func (s *Service) IngestText(ctx context.Context, doc domain.Document) (IngestReport, error) {
	if doc.ID == "" {
		doc.ID = hashString(doc.Path + "\x00" + doc.Text)
	}
	report := IngestReport{Source: doc.Path}
	chunks, err := s.c.Chunker.Chunk(doc)
	if err != nil {
		return report, fmt.Errorf("chunk %s: %w", doc.Path, err)
	}
	report.Chunks = len(chunks)
	if len(chunks) == 0 {
		s.logger.Info("nothing to ingest", "source", doc.Path)
		return report, nil
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		s.metrics.RecordEmbeddingFailure("text")
		return report, fmt.Errorf("embed chunks of %s: %w", doc.Path, err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
		if err := s.c.Store.InsertChunk(ctx, chunks[i]); err != nil {
			s.metrics.RecordInsertFailure("chunk")
			s.logger.Error("insert chunk", "source", doc.Path, "chunk", chunks[i].ChunkID, "stored", report.Stored, "error", err)
			return report, fmt.Errorf("insert chunk %s: %w", chunks[i].ChunkID, err)
		}
		s.metrics.RecordChunkIngested()
		report.Stored++
	}

	if s.c.Summarizer != nil {
		summary, err := s.c.Summarizer.Summarize(doc.Text, s.summarySentences)
		if err != nil {
			s.logger.Warn("summarize", "source", doc.Path, "error", err)
		}
		report.Summary = summary
	}
	s.logger.Info("ingested document", "source", doc.Path, "chunks", report.Chunks)
	return report, nil
}

func (s *Service) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
		if ch.Body != "" {
			texts[i] = ch.Body
		}
	}
	size := s.batchSize
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := s.c.Embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// IngestAudio copies a WAV file into the recordings directory, transcribes
// it, computes its embeddings and stores the record. Transcription and
// embedding failures degrade the record instead of failing; an empty
// transcript is still stored.
func (s *Service) IngestAudio(ctx context.Context, path string) (domain.AudioRecord, error) {
	if s.c.Transcriber == nil {
		return domain.AudioRecord{}, ErrNoTranscriber
	}
	created := s.now()
	saved, err := s.saveRecording(path, created)
	if err != nil {
		return domain.AudioRecord{}, fmt.Errorf("save recording: %w", err)
	}

	transcript := s.c.Transcriber.TranscribeFile(ctx, saved)
	lexical, err := tfidf.NewVectorizer().FitTransform(transcript)
	if err != nil {
		s.logger.Warn("lexical embedding", "path", saved, "error", err)
		lexical = domain.SparseVector{}
	}
	rec := domain.AudioRecord{
		ID:                  s.newID(),
		FilePath:            saved,
		Transcript:          transcript,
		LexicalEmbedding:    lexical,
		AudioEmbedding:      mo.None[[]float32](),
		TranscriptEmbedding: mo.None[[]float32](),
		CreatedAt:           created,
	}
	if s.c.AudioFeatures != nil {
		rec.AudioEmbedding = s.c.AudioFeatures.Extract(ctx, saved)
	}
	if transcript != "" {
		vec, err := s.c.Embedder.Embed(ctx, transcript)
		if err != nil {
			s.metrics.RecordEmbeddingFailure("text")
			s.logger.Warn("transcript embedding", "path", saved, "error", err)
		} else {
			rec.TranscriptEmbedding = mo.Some(vec)
		}
	}

	if err := s.c.Store.InsertAudio(ctx, rec); err != nil {
		s.metrics.RecordInsertFailure("audio")
		if rmErr := os.Remove(saved); rmErr != nil {
			s.logger.Warn("remove unstored recording", "path", saved, "error", rmErr)
		}
		return rec, fmt.Errorf("insert audio record: %w", err)
	}
	s.metrics.RecordAudioIngested()
	s.logger.Info("ingested audio", "path", saved, "transcript_chars", len(transcript),
		"audio_embedding", rec.AudioEmbedding.IsPresent())
	return rec, nil
}

// saveRecording copies src to recordings/audio_<timestamp>.wav, adding a
// numeric suffix when a recording from the same second already exists.
func (s *Service) saveRecording(src string, at time.Time) (string, error) {
	if err := os.MkdirAll(s.recordingsDir, 0o755); err != nil {
		return "", err
	}
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	base := "audio_" + at.Format("20060102_150405")
	for n := 0; ; n++ {
		name := base
		if n > 0 {
			name += "_" + strconv.Itoa(n)
		}
		dst := filepath.Join(s.recordingsDir, name+".wav")
		out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return "", err
		}
		return dst, out.Close()
	}
}

// Query returns the ranked matches for query without generating an answer.
func (s *Service) Query(ctx context.Context, query string, topK int) ([]domain.Match, error) {
	r, err := s.c.Retriever.RetrieveTopK(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	return r.Matches, nil
}

// Ask retrieves context for query and generates an answer from it. A
// retrieval failure is reported in the answer text, the way generation
// failures are, and also returned.
func (s *Service) Ask(ctx context.Context, query string) (Answer, error) {
	out := Answer{Query: query, Matches: []domain.Match{}}
	r, err := s.c.Retriever.Retrieve(ctx, query)
	if err != nil {
		s.logger.Error("retrieve", "query", query, "error", err)
		out.Answer = fmt.Sprintf("Error retrieving research context: %v", err)
		return out, err
	}
	out.Matches = r.Matches
	if s.c.Generator == nil {
		// Retrieval-only mode: the context is the answer.
		out.Answer = r.Context
		if out.Answer == "" {
			out.Answer = generation.FallbackAnswer
		}
		return out, nil
	}
	out.Answer = s.c.Generator.Generate(ctx, r.Context, query)
	return out, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
