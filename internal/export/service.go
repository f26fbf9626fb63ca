package export

import (
	"context"
	"fmt"
	"time"

	"github.com/faqdesk/faqdesk/internal/domain/model"
)

// Service renders message collections into downloadable artifacts.
type Service struct{}

// NewService creates an export service.
func NewService() *Service {
	return &Service{}
}

// Export generates an export in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	rows := flatten(req)
	switch req.Format {
	case FormatCSV:
		return exportCSV(rows, req.Title)
	case FormatPDF:
		return exportPDF(ctx, rows, req.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func flatten(req Request) []row {
	var rows []row
	for _, m := range req.Messages {
		rows = append(rows, toRow(m))
	}
	for _, g := range req.Groups {
		for _, m := range g.Messages {
			r := toRow(m)
			if r.Owner == "" {
				r.Owner = g.OwnerEmail
			}
			rows = append(rows, r)
		}
	}
	return rows
}

func toRow(m model.Message) row {
	return row{
		Owner:     m.OwnerEmail,
		Body:      m.Body,
		Sentiment: m.Sentiment.Display().Label(),
		Received:  m.Timestamp.Format(time.RFC3339),
	}
}
