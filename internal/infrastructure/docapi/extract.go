package docapi

import (
	"context"
	"strings"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/resilience"
)

const (
	uploadFilename    = "document.pdf"
	uploadContentType = "application/pdf"
)

type Extractor struct {
	client     *Client
	processURL string
}

func NewExtractor(client *Client, processURL string) *Extractor {
	return &Extractor{client: client, processURL: strings.TrimSpace(processURL)}
}

func (e *Extractor) ProcessPDF(ctx context.Context, token domain.Token, req domain.ProcessingRequest) (*domain.DocumentResult, error) {
	file := multipartFile{
		Field:       "file",
		Filename:    uploadFilename,
		ContentType: uploadContentType,
		Data:        req.PDF,
	}
	fields := filterFields(req.Filters)

	var body []byte
	err := e.client.execute(ctx, resilience.OperationDocumentUpload, func(callCtx context.Context) error {
		var callErr error
		body, callErr = e.client.postMultipart(callCtx, e.processURL, token.Value, file, fields, "process")
		return callErr
	})
	if err != nil {
		return nil, upstreamError(domain.ErrProcessing, "process pdf", err)
	}

	result, err := decodeDocumentResult(body)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// filterFields returns the optional form fields; blank filters are omitted.
func filterFields(filters domain.Filters) [][2]string {
	var fields [][2]string
	if v := strings.TrimSpace(filters.CustomerTaxID); v != "" {
		fields = append(fields, [2]string{"customer", v})
	}
	if v := strings.TrimSpace(filters.SupplierTaxID); v != "" {
		fields = append(fields, [2]string{"supplier", v})
	}
	if filters.TestMode {
		fields = append(fields, [2]string{"test", "true"})
	}
	return fields
}
