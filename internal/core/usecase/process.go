package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
	"github.com/kirillkom/pdf-processor/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	creds     domain.Credentials
	issuer    ports.TokenIssuer
	extractor ports.DocumentExtractor
	inspector ports.PDFInspector
	runs      ports.RunRecorder
	events    ports.EventPublisher
	now       func() time.Time
}

// NewProcessDocumentUseCase builds the upload action. runs and events may be nil.
func NewProcessDocumentUseCase(
	creds domain.Credentials,
	issuer ports.TokenIssuer,
	extractor ports.DocumentExtractor,
	inspector ports.PDFInspector,
	runs ports.RunRecorder,
	events ports.EventPublisher,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		creds:     creds,
		issuer:    issuer,
		extractor: extractor,
		inspector: inspector,
		runs:      runs,
		events:    events,
		now:       time.Now,
	}
}

// Process runs one upload action: authenticate (or reuse the session token),
// then submit the PDF. The outcome always ends in a terminal state.
func (uc *ProcessDocumentUseCase) Process(
	ctx context.Context,
	session ports.TokenSession,
	req domain.ProcessingRequest,
) *domain.ActionOutcome {
	if session == nil {
		session = NewSession()
	}
	outcome := &domain.ActionOutcome{
		RunID:     uuid.NewString(),
		State:     domain.StateIdle,
		StartedAt: uc.now().UTC(),
	}

	if err := uc.creds.Validate(); err != nil {
		return uc.finish(ctx, session, req, outcome, domain.StateConfigError, err)
	}

	info, err := uc.inspect(req)
	if err != nil {
		return uc.finish(ctx, session, req, outcome, domain.StateRejected, err)
	}
	outcome.PDF = info

	outcome.State = domain.StateAuthenticating
	token, reused, err := uc.token(ctx, session)
	if err != nil {
		return uc.finish(ctx, session, req, outcome, domain.StateAuthFailed, err)
	}
	outcome.TokenReused = reused

	outcome.State = domain.StateProcessing
	result, err := uc.extract(ctx, token, req)
	if err != nil {
		if domain.IsKind(err, domain.ErrUnauthorized) {
			// The next action starts from a fresh login.
			session.InvalidateToken()
		}
		return uc.finish(ctx, session, req, outcome, domain.StateProcessingFailed, err)
	}

	outcome.Result = result
	return uc.finish(ctx, session, req, outcome, domain.StateSuccess, nil)
}

func (uc *ProcessDocumentUseCase) inspect(req domain.ProcessingRequest) (domain.PDFInfo, error) {
	if err := req.Validate(); err != nil {
		return domain.PDFInfo{}, err
	}
	info, err := uc.inspector.Inspect(req.PDF)
	if err != nil {
		return domain.PDFInfo{}, ensureKind(domain.ErrInvalidInput, "inspect pdf", err)
	}
	return info, nil
}

func (uc *ProcessDocumentUseCase) token(ctx context.Context, session ports.TokenSession) (domain.Token, bool, error) {
	if token, ok := session.CachedToken(); ok {
		return token, true, nil
	}

	token, err := uc.issuer.IssueToken(ctx, uc.creds)
	if err != nil {
		return domain.Token{}, false, ensureKind(domain.ErrAuth, "issue token", err)
	}
	if strings.TrimSpace(token.Value) == "" {
		return domain.Token{}, false, domain.WrapError(domain.ErrAuth, "issue token", errors.New("empty token"))
	}
	session.StoreToken(token)
	return token, false, nil
}

func (uc *ProcessDocumentUseCase) extract(ctx context.Context, token domain.Token, req domain.ProcessingRequest) (*domain.DocumentResult, error) {
	result, err := uc.extractor.ProcessPDF(ctx, token, req)
	if err != nil {
		return nil, ensureKind(domain.ErrProcessing, "process pdf", err)
	}
	if result == nil {
		return nil, domain.WrapError(domain.ErrParse, "process pdf", errors.New("empty result"))
	}
	if result.LineItems == nil {
		result.LineItems = []domain.LineItem{}
	}
	return result, nil
}

func (uc *ProcessDocumentUseCase) finish(
	ctx context.Context,
	session ports.TokenSession,
	req domain.ProcessingRequest,
	outcome *domain.ActionOutcome,
	state domain.ActionState,
	err error,
) *domain.ActionOutcome {
	outcome.State = state
	outcome.Err = err
	outcome.FinishedAt = uc.now().UTC()

	logAttrs := []any{
		"run_id", outcome.RunID,
		"session_id", session.ID(),
		"filename", req.Filename,
		"state", string(state),
		"pages", outcome.PDF.Pages,
		"token_reused", outcome.TokenReused,
		"duration_ms", float64(outcome.Duration().Microseconds()) / 1000.0,
	}
	if err != nil {
		slog.Warn("upload_action", append(logAttrs, "error", err)...)
	} else {
		slog.Info("upload_action", append(logAttrs, "line_items", len(outcome.Result.LineItems))...)
	}

	uc.record(ctx, session, req, outcome)
	if state == domain.StateSuccess {
		uc.publish(ctx, req, outcome)
	}
	return outcome
}

func (uc *ProcessDocumentUseCase) record(ctx context.Context, session ports.TokenSession, req domain.ProcessingRequest, outcome *domain.ActionOutcome) {
	if uc.runs == nil {
		return
	}
	run := buildRun(session.ID(), req, outcome)
	if err := uc.runs.Save(ctx, run); err != nil {
		slog.Warn("record_run_failed", "run_id", outcome.RunID, "error", err)
	}
}

func (uc *ProcessDocumentUseCase) publish(ctx context.Context, req domain.ProcessingRequest, outcome *domain.ActionOutcome) {
	if uc.events == nil || outcome.Result == nil {
		return
	}
	event := domain.DocumentProcessed{
		RunID:       outcome.RunID,
		Filename:    req.Filename,
		ProcessedAt: outcome.FinishedAt,
		Result:      *outcome.Result,
	}
	if err := uc.events.PublishDocumentProcessed(ctx, event); err != nil {
		slog.Warn("publish_processed_failed", "run_id", outcome.RunID, "error", err)
	}
}

func buildRun(sessionID string, req domain.ProcessingRequest, outcome *domain.ActionOutcome) *domain.ProcessingRun {
	run := &domain.ProcessingRun{
		ID:          outcome.RunID,
		SessionID:   sessionID,
		Filename:    req.Filename,
		SizeBytes:   int64(len(req.PDF)),
		Pages:       outcome.PDF.Pages,
		State:       outcome.State,
		CreatedAt:   outcome.StartedAt,
		CompletedAt: outcome.FinishedAt,
	}
	if outcome.Err != nil {
		run.Error = outcome.Err.Error()
	}
	if res := outcome.Result; res != nil {
		run.DocumentNumber = res.Document.Number
		run.DocumentType = res.Document.Type
		run.SupplierTaxID = res.Supplier.TaxID
		run.CustomerTaxID = res.Customer.TaxID
		run.LineItems = len(res.LineItems)
	}
	return run
}

func ensureKind(kind error, operation string, err error) error {
	if domain.IsKind(err, kind) {
		return err
	}
	return domain.WrapError(kind, operation, err)
}
