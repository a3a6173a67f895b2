// Package pdftext extracts plain text from PDF files, page by page.
package pdftext

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageHeader formats the marker written in front of page n (1-based).
func PageHeader(n int) string {
	return fmt.Sprintf("\n=== Page %d ===\n", n)
}

// Extract returns the text of every page in path, each page preceded by
// PageHeader. Pages without extractable text contribute only their header.
func Extract(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		sb.WriteString(PageHeader(i))
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read page %d of %s: %w", i, path, err)
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
