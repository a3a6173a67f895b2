// Package postgres stores records in PostgreSQL with the pgvector extension.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/vectorstore"
)

// Storage is a pgvector-backed store. Chunks and audio transcripts share one
// text embedding dimension, fixed by EnsureSchema.
type Storage struct {
	pool *pgxpool.Pool
}

// Open connects to the database at dsn.
func Open(ctx context.Context, dsn string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Storage { return &Storage{pool: pool} }

// Close releases the pool.
func (s *Storage) Close() { s.pool.Close() }

// EnsureSchema creates the extension, tables and indexes if missing.
func (s *Storage) EnsureSchema(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id BIGSERIAL PRIMARY KEY,
			source_id TEXT NOT NULL,
			chunk_id TEXT NOT NULL UNIQUE,
			ordinal INT NOT NULL,
			label TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dimension),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS audio_records (
			id TEXT PRIMARY KEY,
			audio_path TEXT NOT NULL,
			transcribed_text TEXT NOT NULL DEFAULT '',
			tfidf_embedding JSONB NOT NULL DEFAULT '{}',
			audio_embedding REAL[] NOT NULL DEFAULT '{}',
			transcript_embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx
			ON document_chunks USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return storageError("ensure schema", err)
		}
	}
	return nil
}

// InsertChunk stores one chunk. A duplicate chunk ID is a StorageError.
func (s *Storage) InsertChunk(ctx context.Context, ch domain.Chunk) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document_chunks (source_id, chunk_id, ordinal, label, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ch.SourceID, ch.ChunkID, ch.Ordinal, ch.Label, ch.Text, pgvector.NewVector(ch.Embedding), ch.CreatedAt)
	if err != nil {
		return storageError("insert chunk", err)
	}
	return nil
}

// InsertAudio stores one audio record.
func (s *Storage) InsertAudio(ctx context.Context, rec domain.AudioRecord) error {
	lexical := rec.LexicalEmbedding
	if lexical == nil {
		lexical = domain.SparseVector{}
	}
	lexicalJSON, err := json.Marshal(lexical)
	if err != nil {
		return storageError("insert audio record", err)
	}
	audio := rec.AudioEmbedding.OrEmpty()
	if audio == nil {
		audio = []float32{}
	}
	var transcript *pgvector.Vector
	if v, ok := rec.TranscriptEmbedding.Get(); ok && len(v) > 0 {
		vec := pgvector.NewVector(v)
		transcript = &vec
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audio_records (id, audio_path, transcribed_text, tfidf_embedding, audio_embedding, transcript_embedding, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)`,
		rec.ID, rec.FilePath, rec.Transcript, string(lexicalJSON), audio, transcript, rec.CreatedAt)
	if err != nil {
		return storageError("insert audio record", err)
	}
	return nil
}

// Search ranks chunks and transcribed audio records by cosine similarity.
func (s *Storage) Search(ctx context.Context, embedding []float32, threshold float64, topK int) ([]domain.Match, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, label, content, source_id, ordinal, similarity FROM (
			SELECT id::text AS id, 'chunk' AS kind, label, content, source_id, ordinal,
				1 - (embedding <=> $1) AS similarity
			FROM document_chunks
			UNION ALL
			SELECT id, 'audio', audio_path, transcribed_text, '', 0,
				1 - (transcript_embedding <=> $1)
			FROM audio_records
			WHERE transcript_embedding IS NOT NULL
		) m
		WHERE similarity >= $2
		ORDER BY similarity DESC
		LIMIT $3`,
		pgvector.NewVector(embedding), threshold, topK)
	if err != nil {
		return nil, storageError("search", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var (
			m        domain.Match
			kind     string
			sourceID string
			ordinal  int
		)
		if err := rows.Scan(&m.ID, &kind, &m.Label, &m.Content, &sourceID, &ordinal, &m.Similarity); err != nil {
			return nil, storageError("search", err)
		}
		m.Kind = domain.MatchKind(kind)
		if m.Kind == domain.MatchKindChunk {
			m.Metadata = map[string]any{"source_id": sourceID, "ordinal": ordinal}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("search", err)
	}
	return vectorstore.Rank(matches, threshold, topK), nil
}

func storageError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &vectorstore.StorageError{Op: op, Body: pgErr.Code + ": " + pgErr.Message, Err: err}
	}
	return &vectorstore.StorageError{Op: op, Err: err}
}
