package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/pdf-processor/internal/config"
	"github.com/kirillkom/pdf-processor/internal/core/domain"
	"github.com/kirillkom/pdf-processor/internal/core/ports"
	"github.com/kirillkom/pdf-processor/internal/observability/metrics"
)

type Router struct {
	cfg       config.Config
	processor ports.DocumentProcessingService
	exporter  ports.DocumentExportService
	history   ports.RunHistoryReader

	sessions      *sessionStore
	metrics       *metrics.HTTPServerMetrics
	breakerStates func() map[string]string
}

type Option func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

// WithBreakerStates exposes upstream circuit breaker states on /healthz.
func WithBreakerStates(fn func() map[string]string) Option {
	return func(rt *Router) { rt.breakerStates = fn }
}

// NewRouter wires the page, the JSON API and the operational endpoints.
// history may be nil when no database is configured.
func NewRouter(
	cfg config.Config,
	processor ports.DocumentProcessingService,
	exporter ports.DocumentExportService,
	history ports.RunHistoryReader,
	opts ...Option,
) (*Router, error) {
	if _, err := loadOpenAPI(context.Background()); err != nil {
		return nil, err
	}
	rt := &Router{
		cfg:       cfg,
		processor: processor,
		exporter:  exporter,
		history:   history,
		sessions:  newSessionStore(time.Duration(cfg.SessionIdleMinutes) * time.Minute),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	wait := time.Duration(rt.cfg.APIBackpressureWaitMS) * time.Millisecond
	guard := func(h http.HandlerFunc) http.Handler {
		return rateLimitMiddleware(backpressureMiddleware(h, rt.cfg.APIMaxInFlight, wait), rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.index)
	mux.Handle("POST /{$}", guard(rt.submitForm))
	mux.Handle("POST /v1/documents/process", guard(rt.processDocument))
	mux.HandleFunc("GET /v1/history", rt.listHistory)
	mux.HandleFunc("GET /v1/history/{id}", rt.getHistoryRun)
	mux.HandleFunc("GET /exports/latest.csv", rt.downloadLatest("csv", "text/csv; charset=utf-8"))
	mux.HandleFunc("GET /exports/latest.xlsx", rt.downloadLatest("xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	mux.HandleFunc("GET /healthz", rt.healthz)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok", "sessions": rt.sessions.size()}
	if rt.breakerStates != nil {
		payload["breakers"] = rt.breakerStates()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) index(w http.ResponseWriter, r *http.Request) {
	rt.sessions.resolve(w, r)
	rt.render(w, http.StatusOK, pageView{Form: formValues{Test: rt.cfg.DefaultTestMode}})
}

func (rt *Router) submitForm(w http.ResponseWriter, r *http.Request) {
	entry := rt.sessions.resolve(w, r)

	// The page always renders the checkbox, and an unchecked box sends no field.
	req, err := rt.readUpload(w, r, false)
	view := pageView{Form: formValues{
		Customer: req.Filters.CustomerTaxID,
		Supplier: req.Filters.SupplierTaxID,
		Test:     req.Filters.TestMode,
	}}
	if err != nil {
		view.Error = uploadErrorMessage(err, rt.cfg.MaxUploadBytes())
		rt.render(w, mapErrorToHTTPStatus(err), view)
		return
	}

	outcome := rt.process(r.Context(), entry, req)
	if outcome.State != domain.StateSuccess {
		view.Error = userMessage(outcome.State, outcome.Err)
		rt.render(w, mapErrorToHTTPStatus(outcome.Err), view)
		return
	}
	view.Result = newResultView(outcome.Result)
	view.Pages = outcome.PDF.Pages
	rt.render(w, http.StatusOK, view)
}

func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	entry := rt.sessions.resolve(w, r)

	req, err := rt.readUpload(w, r, rt.cfg.DefaultTestMode)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), errorResponse{
			State: domain.StateRejected,
			Error: uploadErrorMessage(err, rt.cfg.MaxUploadBytes()),
		})
		return
	}

	outcome := rt.process(r.Context(), entry, req)
	if outcome.State != domain.StateSuccess {
		writeJSON(w, mapErrorToHTTPStatus(outcome.Err), errorResponse{
			State: outcome.State,
			RunID: outcome.RunID,
			Error: errText(outcome.Err),
		})
		return
	}

	result := outcome.Result
	writeJSON(w, http.StatusOK, processResponse{
		State:       outcome.State,
		RunID:       outcome.RunID,
		Pages:       outcome.PDF.Pages,
		TokenReused: outcome.TokenReused,
		Document:    result.Document,
		Supplier:    result.Supplier,
		Customer:    result.Customer,
		Columns:     domain.Columns(result.LineItems),
		LineItems:   result.LineItems,
	})
}

func (rt *Router) process(ctx context.Context, entry *sessionEntry, req domain.ProcessingRequest) *domain.ActionOutcome {
	outcome := rt.processor.Process(ctx, entry.session, req)
	if rt.metrics != nil {
		rt.metrics.RecordAction(outcome)
	}
	if outcome.State == domain.StateSuccess {
		rt.sessions.remember(entry, outcome.Result)
	}
	return outcome
}

// readUpload parses the multipart form shared by the page and the JSON API.
// defaultTest applies when the request has no test field. Filters are returned
// even when the file is missing so the form can be redisplayed.
func (rt *Router) readUpload(w http.ResponseWriter, r *http.Request, defaultTest bool) (domain.ProcessingRequest, error) {
	maxBytes := rt.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return domain.ProcessingRequest{}, domain.WrapError(domain.ErrInvalidInput, "parse upload", err)
	}

	req := domain.ProcessingRequest{Filters: domain.Filters{
		CustomerTaxID: strings.TrimSpace(r.FormValue("customer")),
		SupplierTaxID: strings.TrimSpace(r.FormValue("supplier")),
		TestMode:      defaultTest,
	}}
	if raw := strings.TrimSpace(r.FormValue("test")); raw != "" {
		req.Filters.TestMode = raw == "on" || parseBool(raw)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("multipart field 'file' is required"))
	}
	defer file.Close()

	if header.Size > maxBytes {
		return req, domain.WrapError(domain.ErrInvalidInput, "read upload", &http.MaxBytesError{Limit: maxBytes})
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return req, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}
	req.Filename = header.Filename
	req.PDF = data
	return req, nil
}

type listHistoryParams struct {
	Limit *int `form:"limit" json:"limit,omitempty"`
}

func (rt *Router) listHistory(w http.ResponseWriter, r *http.Request) {
	if rt.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "processing history is not configured"})
		return
	}
	var params listHistoryParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid format for parameter limit: %s", err)})
		return
	}
	limit := rt.cfg.HistoryListDefaultLimit
	if params.Limit != nil {
		if *params.Limit <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = *params.Limit
	}

	entry, ok := rt.sessions.lookup(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []domain.ProcessingRun{}})
		return
	}
	runs, err := rt.history.ListRecent(r.Context(), entry.session.ID(), limit)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (rt *Router) getHistoryRun(w http.ResponseWriter, r *http.Request) {
	if rt.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "processing history is not configured"})
		return
	}
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", r.PathValue("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid format for parameter id: %s", err)})
		return
	}

	entry, ok := rt.sessions.lookup(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "run not found"})
		return
	}
	run, err := rt.history.GetByID(r.Context(), entry.session.ID(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) downloadLatest(format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, ok := rt.sessions.lookup(r)
		var result *domain.DocumentResult
		if ok {
			result = rt.sessions.lastResult(entry)
		}
		if result == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no processed document in this session"})
			return
		}

		data, err := rt.exporter.Render(*result, format)
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), errorResponse{Error: err.Error()})
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, downloadName(result), format))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func (rt *Router) render(w http.ResponseWriter, status int, view pageView) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		slog.Error("render_page_failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func uploadErrorMessage(err error, maxBytes int64) string {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return fmt.Sprintf("Il file supera il limite di %d MB", maxBytes>>20)
	}
	return "Carica un file PDF: " + err.Error()
}

func downloadName(result *domain.DocumentResult) string {
	number := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(result.Document.Number))
	if number == "" {
		return "documento"
	}
	return "documento_" + number
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
