// Package supabase stores records through the Supabase PostgREST API and
// searches them with pgvector-backed RPC functions.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/vectorstore"
)

// Config contains connection details for a Supabase project.
type Config struct {
	URL                string
	APIKey             string
	ChunkTable         string
	AudioTable         string
	MatchFunction      string
	AudioMatchFunction string // optional; audio records are searched only when set
	Timeout            time.Duration
}

// Storage is a minimal PostgREST client.
type Storage struct {
	cfg    Config
	client *http.Client
}

// NewStorage creates a Supabase store, filling in the default table and
// function names.
func NewStorage(cfg Config) *Storage {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ChunkTable == "" {
		cfg.ChunkTable = "research_paper_embeddings"
	}
	if cfg.AudioTable == "" {
		cfg.AudioTable = "audio_records"
	}
	if cfg.MatchFunction == "" {
		cfg.MatchFunction = "match_research_papers"
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Storage{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// InsertChunk stores one chunk. Anything but 201 Created is a StorageError.
func (s *Storage) InsertChunk(ctx context.Context, ch domain.Chunk) error {
	row := map[string]any{
		"filename":   ch.Label,
		"content":    ch.Text,
		"embedding":  nonNil(ch.Embedding),
		"source_id":  ch.SourceID,
		"chunk_id":   ch.ChunkID,
		"ordinal":    ch.Ordinal,
		"created_at": ch.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	return s.insert(ctx, "insert chunk", s.cfg.ChunkTable, row)
}

// InsertAudio stores one audio record. Absent embeddings are sent as empty
// arrays.
func (s *Storage) InsertAudio(ctx context.Context, rec domain.AudioRecord) error {
	lexical := rec.LexicalEmbedding
	if lexical == nil {
		lexical = domain.SparseVector{}
	}
	row := map[string]any{
		"id":                   rec.ID,
		"transcribed_text":     rec.Transcript,
		"tfidf_embedding":      lexical,
		"audio_embedding":      nonNil(rec.AudioEmbedding.OrEmpty()),
		"transcript_embedding": nonNil(rec.TranscriptEmbedding.OrEmpty()),
		"audio_path":           rec.FilePath,
		"created_at":           rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	return s.insert(ctx, "insert audio record", s.cfg.AudioTable, row)
}

// Search calls the match function and re-applies the threshold, ordering and
// cap locally so a loosely written function cannot widen the result.
func (s *Storage) Search(ctx context.Context, embedding []float32, threshold float64, topK int) ([]domain.Match, error) {
	args := map[string]any{
		"query_embedding": nonNil(embedding),
		"match_threshold": threshold,
		"match_count":     topK,
	}
	var rows []map[string]any
	if err := s.rpc(ctx, s.cfg.MatchFunction, args, &rows); err != nil {
		return nil, err
	}
	matches := make([]domain.Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, toMatch(r, domain.MatchKindChunk, "filename", "content"))
	}
	if s.cfg.AudioMatchFunction != "" {
		var audioRows []map[string]any
		if err := s.rpc(ctx, s.cfg.AudioMatchFunction, args, &audioRows); err != nil {
			return nil, err
		}
		for _, r := range audioRows {
			matches = append(matches, toMatch(r, domain.MatchKindAudio, "audio_path", "transcribed_text"))
		}
	}
	return vectorstore.Rank(matches, threshold, topK), nil
}

func (s *Storage) insert(ctx context.Context, op, table string, row map[string]any) error {
	resp, body, err := s.post(ctx, fmt.Sprintf("%s/rest/v1/%s", s.cfg.URL, table), row, true)
	if err != nil {
		return &vectorstore.StorageError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusCreated {
		return &vectorstore.StorageError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (s *Storage) rpc(ctx context.Context, fn string, args any, out any) error {
	op := "search " + fn
	resp, body, err := s.post(ctx, fmt.Sprintf("%s/rest/v1/rpc/%s", s.cfg.URL, fn), args, false)
	if err != nil {
		return &vectorstore.StorageError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &vectorstore.StorageError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &vectorstore.StorageError{Op: op, Status: resp.StatusCode, Body: string(body), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (s *Storage) post(ctx context.Context, url string, payload any, representation bool) (*http.Response, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	if representation {
		req.Header.Set("Prefer", "return=representation")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

func toMatch(row map[string]any, kind domain.MatchKind, labelKey, contentKey string) domain.Match {
	m := domain.Match{Kind: kind, Metadata: map[string]any{}}
	for k, v := range row {
		switch k {
		case "id":
			m.ID = formatID(v)
		case labelKey:
			m.Label, _ = v.(string)
		case contentKey:
			m.Content, _ = v.(string)
		case "similarity":
			switch n := v.(type) {
			case json.Number:
				m.Similarity, _ = n.Float64()
			case float64:
				m.Similarity = n
			}
		default:
			m.Metadata[k] = v
		}
	}
	return m
}

// formatID keeps bigint ids exact; rows are decoded with UseNumber.
func formatID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

func nonNil(v []float32) []float32 {
	if v == nil {
		return []float32{}
	}
	return v
}
