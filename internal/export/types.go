// Package export renders message collections to downloadable CSV and PDF.
package export

import (
	"errors"

	"github.com/faqdesk/faqdesk/internal/domain/model"
)

// Format represents the export output format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// Request contains parameters for an export operation. Exactly one of
// Messages or Groups is populated, matching the two collection shapes.
type Request struct {
	Title    string
	Format   Format
	Messages []model.Message
	Groups   []model.MessageGroup
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are
// unavailable (no chromium on PATH).
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")

// row is the flattened record both renderers consume.
type row struct {
	Owner     string
	Body      string
	Sentiment string
	Received  string
}

// sanitizeFilename creates a safe filename from a title.
func sanitizeFilename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "messages"
	}
	return result
}
