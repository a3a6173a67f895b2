package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multimodal-rag/internal/domain"
	"multimodal-rag/internal/service"
)

type stubAsker struct {
	answer service.Answer
	err    error
	asked  []string
}

func (s *stubAsker) Ask(_ context.Context, q string) (service.Answer, error) {
	s.asked = append(s.asked, q)
	return s.answer, s.err
}

func typeQuery(t *testing.T, m Model, q string) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(q)})
	m = next.(Model)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestModel_AskAndCycleMatches(t *testing.T) {
	asker := &stubAsker{answer: service.Answer{
		Query:  "hello",
		Answer: "Greetings are on page 1.",
		Matches: []domain.Match{
			{Label: "Page 1", Kind: domain.MatchKindChunk, Content: "Hello there.", Similarity: 0.9},
			{Label: "Page 2", Kind: domain.MatchKindChunk, Content: "World.", Similarity: 0.8},
		},
	}}
	m := typeQuery(t, New(asker, "summary", 0), "hello")

	assert.Equal(t, []string{"hello"}, asker.asked)
	assert.False(t, m.busy)
	assert.Contains(t, m.render(), "Greetings are on page 1.")
	assert.Contains(t, m.render(), "Source 1/2  Page 1")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.render(), "Source 2/2  Page 2")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
}

func TestModel_ShowsError(t *testing.T) {
	asker := &stubAsker{
		answer: service.Answer{Answer: "Error retrieving research context: store down"},
		err:    errors.New("store down"),
	}
	m := typeQuery(t, New(asker, "", 0), "anything")
	assert.Contains(t, m.status, "store down")
	assert.Contains(t, m.render(), "No matching sources.")
}

func TestHighlightBestSentence(t *testing.T) {
	assert.Equal(t, "Single sentence.", highlightBestSentence("Single sentence.", ""))
	assert.Equal(t, "  ", highlightBestSentence("  ", "query"))
	assert.Equal(t, map[string]struct{}{"don’t": {}, "stop": {}}, toTokenSet("Don’t STOP"))
}
