package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/pdf-processor/internal/config"
	"github.com/kirillkom/pdf-processor/internal/core/domain"
	"github.com/kirillkom/pdf-processor/internal/core/ports"
	"github.com/kirillkom/pdf-processor/internal/testutil/pdffixture"
)

type processorFake struct {
	outcome *domain.ActionOutcome
}

func (f processorFake) Process(context.Context, ports.TokenSession, domain.ProcessingRequest) *domain.ActionOutcome {
	return f.outcome
}

type historyFake struct {
	run       *domain.ProcessingRun
	err       error
	sessionID string
}

func (f *historyFake) GetByID(_ context.Context, sessionID, _ string) (*domain.ProcessingRun, error) {
	f.sessionID = sessionID
	return f.run, f.err
}

func (f *historyFake) ListRecent(_ context.Context, sessionID string, _ int) ([]domain.ProcessingRun, error) {
	f.sessionID = sessionID
	if f.err != nil {
		return nil, f.err
	}
	return []domain.ProcessingRun{*f.run}, nil
}

func newFakeRouter(t *testing.T, outcome *domain.ActionOutcome, history ports.RunHistoryReader) http.Handler {
	t.Helper()
	rt, err := NewRouter(config.Config{}, processorFake{outcome: outcome}, nil, history)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return rt.Handler()
}

func TestProcessAPIMapsFailureStates(t *testing.T) {
	cases := []struct {
		name   string
		state  domain.ActionState
		err    error
		status int
	}{
		{"config", domain.StateConfigError, domain.WrapError(domain.ErrConfig, "validate", errors.New("missing options: password")), http.StatusInternalServerError},
		{"auth", domain.StateAuthFailed, domain.WrapError(domain.ErrAuth, "issue token", errors.New("status 401")), http.StatusBadGateway},
		{"parse", domain.StateProcessingFailed, domain.WrapError(domain.ErrParse, "decode", errors.New("missing data")), http.StatusBadGateway},
		{"temporary", domain.StateProcessingFailed, domain.WrapError(domain.ErrProcessing, "process", fmt.Errorf("%w: 503", domain.ErrTemporary)), http.StatusServiceUnavailable},
		{"rejected", domain.StateRejected, domain.WrapError(domain.ErrInvalidInput, "inspect", errors.New("not a PDF file")), http.StatusBadRequest},
	}
	for _, tc := range cases {
		handler := newFakeRouter(t, &domain.ActionOutcome{RunID: "run-1", State: tc.state, Err: tc.err}, nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, uploadRequest(t, "/v1/documents/process", pdffixture.Minimal(1), nil))
		if res.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, res.Code)
		}
	}
}

func TestFormShowsErrorWithoutPartialResult(t *testing.T) {
	outcome := &domain.ActionOutcome{
		State: domain.StateAuthFailed,
		Err:   domain.WrapError(domain.ErrAuth, "issue token", errors.New("status 401")),
	}
	handler := newFakeRouter(t, outcome, nil)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, uploadRequest(t, "/", pdffixture.Minimal(1), map[string]string{"customer": "IT456"}))
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
	body := res.Body.String()
	if !containsAll(body, "Errore autenticazione", `value="IT456"`) {
		t.Fatalf("expected auth error and preserved filters, got %s", body)
	}
	if containsAll(body, `id="testata"`) {
		t.Fatalf("failed action must not render a result")
	}
}

func TestUploadWithoutFileIsBadRequest(t *testing.T) {
	handler := newFakeRouter(t, nil, nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, uploadRequest(t, "/v1/documents/process", nil, map[string]string{"customer": "x"}))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

// sessionCookie opens the page once and returns the session cookie it sets.
func sessionCookie(t *testing.T, handler http.Handler) *http.Cookie {
	t.Helper()
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, c := range res.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatalf("expected session cookie")
	return nil
}

func historyRequest(target string, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestHistoryEndpoints(t *testing.T) {
	disabled := newFakeRouter(t, nil, nil)
	res := httptest.NewRecorder()
	disabled.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without history, got %d", res.Code)
	}

	missingStore := &historyFake{err: domain.WrapError(domain.ErrNotFound, "get run", errors.New("run missing"))}
	missing := newFakeRouter(t, nil, missingStore)
	res = httptest.NewRecorder()
	missing.ServeHTTP(res, historyRequest("/v1/history/missing", sessionCookie(t, missing)))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}

	store := &historyFake{run: &domain.ProcessingRun{ID: "run-1", SessionID: "secret-session", State: domain.StateSuccess}}
	found := newFakeRouter(t, nil, store)
	cookie := sessionCookie(t, found)
	res = httptest.NewRecorder()
	found.ServeHTTP(res, historyRequest("/v1/history?limit=5", cookie))
	if res.Code != http.StatusOK || !containsAll(res.Body.String(), `"id":"run-1"`) {
		t.Fatalf("unexpected history response: %d %s", res.Code, res.Body.String())
	}
	if store.sessionID != cookie.Value {
		t.Fatalf("expected history scoped to session %q, got %q", cookie.Value, store.sessionID)
	}
	if strings.Contains(res.Body.String(), "secret-session") {
		t.Fatalf("session ids must not be exposed: %s", res.Body.String())
	}

	for _, bad := range []string{"abc", "0"} {
		res = httptest.NewRecorder()
		found.ServeHTTP(res, historyRequest("/v1/history?limit="+bad, cookie))
		if res.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for limit=%s, got %d", bad, res.Code)
		}
	}
}

func TestHistoryWithoutSessionShowsNothing(t *testing.T) {
	store := &historyFake{run: &domain.ProcessingRun{ID: "run-1", State: domain.StateSuccess}}
	handler := newFakeRouter(t, nil, store)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, historyRequest("/v1/history", nil))
	if res.Code != http.StatusOK || !containsAll(res.Body.String(), `"runs":[]`) {
		t.Fatalf("expected empty list without a session, got %d %s", res.Code, res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, historyRequest("/v1/history/run-1", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a session, got %d", res.Code)
	}
	if store.sessionID != "" {
		t.Fatalf("history must not be queried without a session")
	}
}

func containsAll(body string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(body, p) {
			return false
		}
	}
	return true
}
