package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

func exportCSV(rows []row, title string) (*Result, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{{"Owner", "Message", "Sentiment", "Received"}}
	for _, r := range rows {
		records = append(records, []string{r.Owner, r.Body, r.Sentiment, r.Received})
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(title) + ".csv",
		MimeType: "text/csv",
	}, nil
}
