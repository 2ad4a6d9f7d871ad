package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

// TokenIssuer exchanges configured credentials for a bearer token.
type TokenIssuer interface {
	IssueToken(ctx context.Context, creds domain.Credentials) (domain.Token, error)
}

// DocumentExtractor uploads a PDF and returns the structured document.
type DocumentExtractor interface {
	ProcessPDF(ctx context.Context, token domain.Token, req domain.ProcessingRequest) (*domain.DocumentResult, error)
}

// PDFInspector checks that an upload is a readable PDF.
type PDFInspector interface {
	Inspect(data []byte) (domain.PDFInfo, error)
}

// RunRecorder persists upload action summaries.
type RunRecorder interface {
	Save(ctx context.Context, run *domain.ProcessingRun) error
}

// EventPublisher publishes processed-document events.
type EventPublisher interface {
	PublishDocumentProcessed(ctx context.Context, event domain.DocumentProcessed) error
}

// EventSubscriber consumes processed-document events.
type EventSubscriber interface {
	SubscribeDocumentProcessed(ctx context.Context, handler func(context.Context, domain.DocumentProcessed) error) error
}

// ObjectStorage stores export files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TableEncoder writes a document result as a file format.
type TableEncoder interface {
	Extension() string
	Encode(result domain.DocumentResult) ([]byte, error)
}
