package export

import (
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

const (
	SheetHeader    = "Testata"
	SheetLineItems = "Articoli"
)

type XLSXEncoder struct{}

func NewXLSXEncoder() *XLSXEncoder {
	return &XLSXEncoder{}
}

func (e *XLSXEncoder) Extension() string {
	return "xlsx"
}

// Encode writes the header fields to Testata and the line items to Articoli.
func (e *XLSXEncoder) Encode(result domain.DocumentResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetHeader); err != nil {
		return nil, fmt.Errorf("rename header sheet: %w", err)
	}
	values := headerValues(result)
	for i, label := range headerLabels {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		row := []any{label[0], values[i]}
		if err := f.SetSheetRow(SheetHeader, cell, &row); err != nil {
			return nil, fmt.Errorf("write header row %d: %w", i+1, err)
		}
	}

	if _, err := f.NewSheet(SheetLineItems); err != nil {
		return nil, fmt.Errorf("create line items sheet: %w", err)
	}
	columns := domain.Columns(result.LineItems)
	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err := f.SetSheetRow(SheetLineItems, "A1", &header); err != nil {
		return nil, fmt.Errorf("write line items header: %w", err)
	}
	for r, item := range result.LineItems {
		row := make([]any, len(columns))
		for i, col := range columns {
			v, _ := item.Get(col)
			row[i] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetLineItems, cell, &row); err != nil {
			return nil, fmt.Errorf("write line item %d: %w", r+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue keeps numbers numeric so spreadsheets can sum them.
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case string, bool, float64, int, int64:
		return t
	default:
		return domain.FormatValue(t)
	}
}
