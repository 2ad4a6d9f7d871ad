package export

import (
	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

var headerLabels = [][2]string{
	{"Numero", "document.number"},
	{"Tipo", "document.type"},
	{"Data", "document.date"},
	{"Fornitore", "supplier.legal_name"},
	{"P.IVA Fornitore", "supplier.tax_id"},
	{"Cliente", "customer.legal_name"},
	{"P.IVA Cliente", "customer.tax_id"},
}

func headerValues(result domain.DocumentResult) []string {
	return []string{
		result.Document.Number,
		result.Document.Type,
		result.Document.Date,
		result.Supplier.LegalName,
		result.Supplier.TaxID,
		result.Customer.LegalName,
		result.Customer.TaxID,
	}
}
