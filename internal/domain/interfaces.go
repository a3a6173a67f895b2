package domain

import (
	"context"
	"time"

	"github.com/samber/mo"
)

// Document represents a single source whose text has been extracted.
type Document struct {
	ID   string
	Path string
	Text string
}

// Chunk is a labeled, ordered unit of source text sized for embedding. Body
// is Text without its page header, or "" when the two are the same.
type Chunk struct {
	SourceID  string
	ChunkID   string
	Ordinal   int
	Label     string
	Text      string
	Body      string
	Embedding []float32
	CreatedAt time.Time
}

// SparseVector maps a term to its weight. Absent terms weigh zero.
type SparseVector map[string]float64

// AudioRecord is a stored recording with its transcript and embeddings.
// Transcript is "" when nothing was recognized. TranscriptEmbedding lives in
// the text embedder's space and makes the record searchable by text queries;
// AudioEmbedding is never compared with text vectors.
type AudioRecord struct {
	ID                  string
	FilePath            string
	Transcript          string
	LexicalEmbedding    SparseVector
	AudioEmbedding      mo.Option[[]float32]
	TranscriptEmbedding mo.Option[[]float32]
	CreatedAt           time.Time
}

// MatchKind tells which kind of stored record a Match refers to.
type MatchKind string

const (
	MatchKindChunk MatchKind = "chunk"
	MatchKindAudio MatchKind = "audio"
)

// Match is one ranked search hit.
type Match struct {
	ID         string
	Kind       MatchKind
	Label      string
	Content    string
	Metadata   map[string]any
	Similarity float64
}

// Retrieval is the outcome of a query-time retrieval: ranked matches and the
// context text assembled from them. Both may be empty.
type Retrieval struct {
	Query   string
	Matches []Match
	Context string
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// TextEmbedder converts text into fixed-length vectors. Implementations are
// shared process-wide service handles; unless documented otherwise they are
// not safe for concurrent use.
type TextEmbedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists records and performs similarity search.
type VectorStore interface {
	InsertChunk(ctx context.Context, chunk Chunk) error
	InsertAudio(ctx context.Context, record AudioRecord) error
	// Search returns matches with similarity >= threshold, best first, at
	// most topK of them.
	Search(ctx context.Context, embedding []float32, threshold float64, topK int) ([]Match, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
