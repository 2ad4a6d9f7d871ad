package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

// CSVEncoder writes the line-item table; the first row holds the columns.
type CSVEncoder struct {
	Comma rune
}

func NewCSVEncoder() *CSVEncoder {
	return &CSVEncoder{Comma: ';'}
}

func (e *CSVEncoder) Extension() string {
	return "csv"
}

func (e *CSVEncoder) Encode(result domain.DocumentResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if e.Comma != 0 {
		w.Comma = e.Comma
	}

	columns := domain.Columns(result.LineItems)
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(columns))
	for _, item := range result.LineItems {
		for i, col := range columns {
			row[i] = item.Text(col)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
