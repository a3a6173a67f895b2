package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_PicksFrequentSentencesInOrder(t *testing.T) {
	text := "Attention weighs words. The weather was nice. Attention handles long dependencies with attention heads."
	got, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "Attention weighs words. Attention handles long dependencies with attention heads.", got)
}

func TestSummarize_DropsPageHeaders(t *testing.T) {
	text := "\n=== Page 1 ===\nHello there.\n=== Page 2 ===\nWorld."
	got, err := NewFrequencySummarizer().Summarize(text, 5)
	require.NoError(t, err)
	assert.NotContains(t, got, "===")
	assert.Equal(t, "Hello there. World.", got)
}

func TestSummarize_NoSentencePunctuation(t *testing.T) {
	got, err := NewFrequencySummarizer().Summarize("  just   some words  ", 3)
	require.NoError(t, err)
	assert.Equal(t, "just some words", got)
}
