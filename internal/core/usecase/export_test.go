package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

type storageFake struct {
	saved map[string][]byte
	err   error
}

func (s *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if s.err != nil {
		return s.err
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[key] = payload
	return nil
}

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	payload, ok := s.saved[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

type encoderFake struct {
	ext string
	err error
}

func (e encoderFake) Extension() string { return e.ext }

func (e encoderFake) Encode(result domain.DocumentResult) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []byte(e.ext + ":" + result.Document.Number), nil
}

func TestExportRenderSelectsEncoder(t *testing.T) {
	uc := NewExportUseCase(nil, encoderFake{ext: "csv"}, encoderFake{ext: "xlsx"})

	data, err := uc.Render(*sampleResult(), ".XLSX")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if string(data) != "xlsx:123" {
		t.Fatalf("unexpected payload: %q", data)
	}

	_, err = uc.Render(*sampleResult(), "pdf")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown format, got %v", err)
	}
}

func TestExportHandleProcessedWritesEveryFormat(t *testing.T) {
	storage := &storageFake{}
	uc := NewExportUseCase(storage, encoderFake{ext: "csv"}, encoderFake{ext: "xlsx"})
	result := sampleResult()
	result.Document.Number = "DDT 12/2024"

	err := uc.HandleProcessed(context.Background(), domain.DocumentProcessed{RunID: "run-1", Result: *result})
	if err != nil {
		t.Fatalf("HandleProcessed() error = %v", err)
	}
	for _, key := range []string{"run-1_DDT_12-2024.csv", "run-1_DDT_12-2024.xlsx"} {
		if _, ok := storage.saved[key]; !ok {
			t.Fatalf("expected %s in outbox, got %v", key, storage.saved)
		}
	}
}

func TestExportHandleProcessedValidatesEvent(t *testing.T) {
	uc := NewExportUseCase(&storageFake{}, encoderFake{ext: "csv"})
	err := uc.HandleProcessed(context.Background(), domain.DocumentProcessed{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	failing := NewExportUseCase(&storageFake{err: errors.New("disk full")}, encoderFake{ext: "csv"})
	if err := failing.HandleProcessed(context.Background(), domain.DocumentProcessed{RunID: "run-2"}); err == nil {
		t.Fatalf("expected storage error")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"":            "document",
		"a b.pdf":     "a_b.pdf",
		"../etc/pass": "pass",
		"fattura#1":   "fattura_1",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
