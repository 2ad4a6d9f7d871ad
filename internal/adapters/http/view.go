package httpadapter

import (
	"embed"
	"html/template"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type formValues struct {
	Customer string
	Supplier string
	Test     bool
}

type pageView struct {
	Form   formValues
	Error  string
	Result *resultView
	Pages  int
}

type resultView struct {
	Document domain.DocumentHeader
	Supplier domain.Party
	Customer domain.Party
	Columns  []string
	Rows     [][]string
}

func newResultView(result *domain.DocumentResult) *resultView {
	if result == nil {
		return nil
	}
	columns := domain.Columns(result.LineItems)
	rows := make([][]string, 0, len(result.LineItems))
	for _, item := range result.LineItems {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = item.Text(col)
		}
		rows = append(rows, row)
	}
	return &resultView{
		Document: result.Document,
		Supplier: result.Supplier,
		Customer: result.Customer,
		Columns:  columns,
		Rows:     rows,
	}
}

type processResponse struct {
	State       domain.ActionState    `json:"state"`
	RunID       string                `json:"run_id"`
	Pages       int                   `json:"pages"`
	TokenReused bool                  `json:"token_reused"`
	Document    domain.DocumentHeader `json:"document"`
	Supplier    domain.Party          `json:"supplier"`
	Customer    domain.Party          `json:"customer"`
	Columns     []string              `json:"columns"`
	LineItems   []domain.LineItem     `json:"line_items"`
}

type errorResponse struct {
	State domain.ActionState `json:"state,omitempty"`
	RunID string             `json:"run_id,omitempty"`
	Error string             `json:"error"`
}
