package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

var pdfMagic = []byte("%PDF-")

// headerWindow is how far into the file the %PDF- marker may appear.
// Readers accept leading junk such as a BOM before the header.
const headerWindow = 1024

type Inspector struct{}

func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect rejects uploads that are not PDFs at all. Anything carrying a PDF
// header is accepted; Pages is 0 when the page count could not be read
// (PDF 2.0, AES encryption, damaged cross-reference tables).
func (i *Inspector) Inspect(data []byte) (domain.PDFInfo, error) {
	if len(data) == 0 {
		return domain.PDFInfo{}, domain.WrapError(domain.ErrInvalidInput, "inspect pdf", errors.New("empty upload"))
	}
	offset := bytes.Index(data[:min(len(data), headerWindow)], pdfMagic)
	if offset < 0 {
		return domain.PDFInfo{}, domain.WrapError(domain.ErrInvalidInput, "inspect pdf", errors.New("not a PDF file"))
	}

	info := domain.PDFInfo{SizeBytes: int64(len(data))}
	pages, err := countPages(data[offset:])
	if err != nil {
		slog.Info("pdf_page_count_unknown", "size_bytes", len(data), "header_offset", offset, "error", err)
		return info, nil
	}
	info.Pages = pages
	return info, nil
}

func countPages(data []byte) (pages int, err error) {
	// The parser panics on some truncated cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = fmt.Errorf("unreadable pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}
