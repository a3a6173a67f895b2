package tfidf

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"

	"multimodal-rag/internal/domain"
)

// ErrNoTokens is returned when a corpus contains nothing to index.
var ErrNoTokens = errors.New("no tokens found in corpus")

// Vectorizer computes sparse TF-IDF term weights. Prepare fixes the
// vocabulary and IDF values; FitTransform does both steps for one text, the
// way transcripts are weighted at ingestion.
type Vectorizer struct {
	idf          map[string]float64
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewVectorizer creates an unprepared vectorizer.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Prepare builds the vocabulary and smoothed IDF values from corpus.
func (v *Vectorizer) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range v.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return ErrNoTokens
	}
	n := float64(len(corpus))
	v.idf = make(map[string]float64, len(df))
	for term, count := range df {
		v.idf[term] = math.Log((1+n)/(1+float64(count))) + 1.0
	}
	return nil
}

// Vocabulary returns the prepared terms in sorted order.
func (v *Vectorizer) Vocabulary() []string {
	terms := make([]string, 0, len(v.idf))
	for term := range v.idf {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Transform weights the terms of text that are in the vocabulary and
// L2-normalizes the result. Unknown terms are ignored.
func (v *Vectorizer) Transform(text string) (domain.SparseVector, error) {
	if v.idf == nil {
		return nil, errors.New("tfidf vectorizer not prepared")
	}
	counts := make(map[string]int)
	for _, tok := range v.tokenize(text) {
		if _, ok := v.idf[tok]; ok {
			counts[tok]++
		}
	}
	out := make(domain.SparseVector, len(counts))
	norm := 0.0
	for term, c := range counts {
		w := float64(c) * v.idf[term]
		out[term] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for term := range out {
			out[term] /= norm
		}
	}
	return out, nil
}

// FitTransform prepares on text alone and weights it. Text with no indexable
// tokens yields an empty vector.
func (v *Vectorizer) FitTransform(text string) (domain.SparseVector, error) {
	if err := v.Prepare([]string{text}); err != nil {
		if errors.Is(err, ErrNoTokens) {
			return domain.SparseVector{}, nil
		}
		return nil, err
	}
	return v.Transform(text)
}

func (v *Vectorizer) tokenize(text string) []string {
	raw := v.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := v.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
