package chunker

import (
	"strconv"
	"strings"
	"time"

	"multimodal-rag/internal/domain"
)

// DefaultPageMarker is the separator pdftext puts in front of every page.
const DefaultPageMarker = "\n=== Page "

// PageChunker splits extracted document text on page markers, one chunk per
// non-empty page.
type PageChunker struct {
	marker string
	prefix string
	now    func() time.Time
}

// NewPageChunker creates a chunker splitting on marker. An empty marker
// selects DefaultPageMarker.
func NewPageChunker(marker string) *PageChunker {
	if marker == "" {
		marker = DefaultPageMarker
	}
	return &PageChunker{
		marker: marker,
		prefix: strings.TrimLeft(marker, "\r\n"),
		now:    time.Now,
	}
}

// Chunk returns the pages of document in their original order. Whitespace-only
// input yields no chunks and no error.
func (c *PageChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Text) == "" {
		return nil, nil
	}
	created := c.now()
	var chunks []domain.Chunk
	for i, seg := range strings.Split(document.Text, c.marker) {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		// Only the first segment can precede every marker, unless the text
		// opens with one.
		text, body, label := strings.TrimSpace(seg), "", fallbackLabel(document)
		switch {
		case i > 0:
			text, body, label = c.restore(seg, document)
		case strings.HasPrefix(seg, c.prefix):
			text, body, label = c.restore(strings.TrimPrefix(seg, c.prefix), document)
		}
		idx := len(chunks)
		chunks = append(chunks, domain.Chunk{
			SourceID:  document.ID,
			ChunkID:   document.ID + ":" + strconv.Itoa(idx),
			Ordinal:   idx,
			Label:     label,
			Text:      text,
			Body:      body,
			CreatedAt: created,
		})
	}
	return chunks, nil
}

// restore re-attaches the marker to a segment that followed it and derives
// the segment label from the text up to the closing "===". body is the page
// text after the header with a repeated "<label>:" lead dropped.
func (c *PageChunker) restore(seg string, document domain.Document) (text, body, label string) {
	text = c.prefix + seg
	head, rest, found := strings.Cut(seg, "===")
	if !found {
		head, rest, _ = strings.Cut(seg, "\n")
	}
	label = strings.TrimSpace(head)
	if _, err := strconv.Atoi(label); err == nil {
		label = "Page " + label
	}
	if label == "" {
		label = fallbackLabel(document)
	}
	body = strings.TrimSpace(rest)
	if after, ok := strings.CutPrefix(body, label+":"); ok {
		body = strings.TrimSpace(after)
	}
	return text, body, label
}

func fallbackLabel(document domain.Document) string {
	if document.Path != "" {
		return document.Path
	}
	return document.ID
}
