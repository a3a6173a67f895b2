package memory

import (
	"context"
	"fmt"
	"sync"

	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine
// similarity. The text embedding dimension is fixed by the first insert.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	chunks    []domain.Chunk
	audio     []domain.AudioRecord
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) InsertChunk(_ context.Context, ch domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkDimension("insert chunk", len(ch.Embedding)); err != nil {
		return err
	}
	for _, existing := range s.chunks {
		if existing.ChunkID != "" && existing.ChunkID == ch.ChunkID {
			return &vectorstore.StorageError{Op: "insert chunk", Body: "duplicate chunk id " + ch.ChunkID}
		}
	}
	ch.Embedding = append([]float32(nil), ch.Embedding...)
	s.chunks = append(s.chunks, ch)
	return nil
}

func (s *Storage) InsertAudio(_ context.Context, rec domain.AudioRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := rec.TranscriptEmbedding.Get(); ok && len(v) > 0 {
		if err := s.checkDimension("insert audio record", len(v)); err != nil {
			return err
		}
	}
	for _, existing := range s.audio {
		if existing.ID == rec.ID {
			return &vectorstore.StorageError{Op: "insert audio record", Body: "duplicate id " + rec.ID}
		}
	}
	s.audio = append(s.audio, rec)
	return nil
}

func (s *Storage) Search(_ context.Context, embedding []float32, threshold float64, topK int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]domain.Match, 0, len(s.chunks))
	for _, ch := range s.chunks {
		matches = append(matches, domain.Match{
			ID:         ch.ChunkID,
			Kind:       domain.MatchKindChunk,
			Label:      ch.Label,
			Content:    ch.Text,
			Metadata:   map[string]any{"source_id": ch.SourceID, "ordinal": ch.Ordinal},
			Similarity: vectorstore.Cosine(ch.Embedding, embedding),
		})
	}
	for _, rec := range s.audio {
		v, ok := rec.TranscriptEmbedding.Get()
		if !ok || len(v) == 0 {
			continue
		}
		matches = append(matches, domain.Match{
			ID:         rec.ID,
			Kind:       domain.MatchKindAudio,
			Label:      rec.FilePath,
			Content:    rec.Transcript,
			Similarity: vectorstore.Cosine(v, embedding),
		})
	}
	return vectorstore.Rank(matches, threshold, topK), nil
}

// Len reports how many chunks and audio records are stored.
func (s *Storage) Len() (chunks, audio int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), len(s.audio)
}

// Clear drops every record and forgets the dimension.
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = 0
	s.chunks = nil
	s.audio = nil
}

func (s *Storage) checkDimension(op string, n int) error {
	if n == 0 {
		return &vectorstore.StorageError{Op: op, Body: "empty embedding"}
	}
	if s.dimension == 0 {
		s.dimension = n
		return nil
	}
	if n != s.dimension {
		return &vectorstore.StorageError{Op: op, Body: fmt.Sprintf("vector dimension %d, want %d", n, s.dimension)}
	}
	return nil
}
