package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

func TestClassifyNATSError(t *testing.T) {
	if class := classifyNATSError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !class.Retryable || !class.RecordFailure {
		t.Fatalf("expected closed connection to be retryable, got %+v", class)
	}
	if class := classifyNATSError(gobreaker.ErrOpenState); !class.Retryable {
		t.Fatalf("expected open breaker to be retryable, got %+v", class)
	}
	if class := classifyNATSError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("expected canceled to be ignored, got %+v", class)
	}
	if class := classifyNATSError(nats.ErrBadSubject); class.Retryable {
		t.Fatalf("expected bad subject to be permanent, got %+v", class)
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := wrapTemporaryIfNeeded(nats.ErrNoServers)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	permanent := errors.New("boom")
	if got := wrapTemporaryIfNeeded(permanent); got != permanent {
		t.Fatalf("expected permanent error unchanged, got %v", got)
	}
	if wrapTemporaryIfNeeded(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestDispatchDecodesEventInOrder(t *testing.T) {
	event := domain.DocumentProcessed{
		RunID:       "run-1",
		Filename:    "ddt.pdf",
		ProcessedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Result: domain.DocumentResult{
			Document: domain.DocumentHeader{Number: "123", Type: "DDT"},
			LineItems: []domain.LineItem{
				domain.NewLineItem(domain.Field{Key: "Qta", Value: json.Number("2")}, domain.Field{Key: "Codice", Value: "A1"}),
			},
		},
	}
	payload, err := encodeEvent(event)
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}

	var got domain.DocumentProcessed
	dispatch(context.Background(), payload, func(_ context.Context, e domain.DocumentProcessed) error {
		got = e
		return nil
	})
	if got.RunID != "run-1" || got.Result.Document.Number != "123" {
		t.Fatalf("unexpected event: %+v", got)
	}
	if cols := domain.Columns(got.Result.LineItems); len(cols) != 2 || cols[0] != "Qta" {
		t.Fatalf("expected line item key order to survive transport, got %v", cols)
	}
}

func TestDispatchDropsMalformedMessages(t *testing.T) {
	called := false
	handler := func(context.Context, domain.DocumentProcessed) error {
		called = true
		return nil
	}
	dispatch(context.Background(), []byte("not json"), handler)
	dispatch(context.Background(), []byte(`{"filename":"a.pdf"}`), handler)
	if called {
		t.Fatalf("handler must not run for malformed messages")
	}
}
