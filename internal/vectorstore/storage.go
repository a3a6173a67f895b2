// Package vectorstore holds what every vector store backend shares: the
// storage error type and result ranking.
package vectorstore

import (
	"fmt"
	"math"
	"sort"

	"multimodal-rag/internal/domain"
)

// StorageError reports a store operation that the backend rejected or that
// could not reach it. Status is the backend status code when there is one.
type StorageError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *StorageError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s failed: %s", e.Op, e.Body)
	}
}

func (e *StorageError) Unwrap() error { return e.Err }

// Rank keeps matches whose similarity is at least threshold, orders them
// best first and returns at most topK of them. Equal scores keep their input
// order. topK <= 0 means no cap. The result is never nil.
func Rank(matches []domain.Match, threshold float64, topK int) []domain.Match {
	out := make([]domain.Match, 0, len(matches))
	for _, m := range matches {
		if m.Similarity >= threshold {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
