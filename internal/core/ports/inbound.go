package ports

import (
	"context"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

// TokenSession holds the bearer token for one logical user session.
type TokenSession interface {
	ID() string
	CachedToken() (domain.Token, bool)
	StoreToken(token domain.Token)
	InvalidateToken()
}

// DocumentProcessingService is the inbound contract for one upload action.
type DocumentProcessingService interface {
	Process(ctx context.Context, session TokenSession, req domain.ProcessingRequest) *domain.ActionOutcome
}

// RunHistoryReader is the inbound read model for past upload actions.
// Reads are scoped to the session that ran the actions.
type RunHistoryReader interface {
	GetByID(ctx context.Context, sessionID, id string) (*domain.ProcessingRun, error)
	ListRecent(ctx context.Context, sessionID string, limit int) ([]domain.ProcessingRun, error)
}

// DocumentExportService renders a processed document into downloadable files.
type DocumentExportService interface {
	Render(result domain.DocumentResult, format string) ([]byte, error)
	HandleProcessed(ctx context.Context, event domain.DocumentProcessed) error
}
