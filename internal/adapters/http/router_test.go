package httpadapter

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kirillkom/pdf-processor/internal/config"
	"github.com/kirillkom/pdf-processor/internal/core/usecase"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/docapi"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/export"
	"github.com/kirillkom/pdf-processor/internal/infrastructure/pdfinfo"
	"github.com/kirillkom/pdf-processor/internal/observability/metrics"
	"github.com/kirillkom/pdf-processor/internal/testutil/pdffixture"
)

const upstreamPayload = `{"data":{"TestataDocumento":{"Documento":{"Numero":"123","Tipo":"DDT","Data":"2024-01-01"},"Fornitore":{"RagioneSociale":"Acme","PartitaIva":"IT123"},"Cliente":{"RagioneSociale":"Beta","PartitaIva":"IT456"}},"Articoli":[{"Codice":"A1","Qta":2}]}}`

type upstreamFake struct {
	authCalls    atomic.Int32
	processCalls atomic.Int32
	lastTest     atomic.Value
	server       *httptest.Server
}

func newUpstreamFake(t *testing.T) *upstreamFake {
	t.Helper()
	f := &upstreamFake{}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		f.authCalls.Add(1)
		_, _ = w.Write([]byte(`{"access_token":"abc"}`))
	})
	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		f.processCalls.Add(1)
		f.lastTest.Store(r.FormValue("test"))
		if r.Header.Get("Authorization") != "Bearer abc" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(upstreamPayload))
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newE2EHandler(t *testing.T, upstream *upstreamFake, overrides ...func(*config.Config)) http.Handler {
	t.Helper()
	cfg := config.Config{
		APIAuthURL:    upstream.server.URL + "/login",
		APIProcessURL: upstream.server.URL + "/process",
		APIUsername:   "demo",
		APIPassword:   "secret",
		MaxUploadMB:   10,
	}
	for _, override := range overrides {
		override(&cfg)
	}
	client, err := docapi.New(docapi.Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("docapi.New() error = %v", err)
	}
	processor := usecase.NewProcessDocumentUseCase(
		cfg.Credentials(),
		docapi.NewAuthenticator(client),
		docapi.NewExtractor(client, cfg.APIProcessURL),
		pdfinfo.NewInspector(),
		nil,
		nil,
	)
	exporter := usecase.NewExportUseCase(nil, export.NewCSVEncoder(), export.NewXLSXEncoder())

	rt, err := NewRouter(cfg, processor, exporter, nil, WithMetrics(metrics.NewHTTPServerMetrics("test")))
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return rt.Handler()
}

func uploadRequest(t *testing.T, path string, pdf []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if pdf != nil {
		part, err := writer.CreateFormFile("file", "ddt.pdf")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		_, _ = part.Write(pdf)
	}
	for k, v := range fields {
		_ = writer.WriteField(k, v)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestIndexRendersUploadForm(t *testing.T) {
	handler := newE2EHandler(t, newUpstreamFake(t))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if doc.Find(`form#upload input[type="file"][name="file"]`).Length() != 1 {
		t.Fatalf("expected file input in form")
	}
	if doc.Find("#testata").Length() != 0 || doc.Find("#error").Length() != 0 {
		t.Fatalf("idle page must not show results or errors")
	}
	if len(res.Result().Cookies()) == 0 {
		t.Fatalf("expected session cookie")
	}
}

func TestUploadRendersHeaderAndLineItems(t *testing.T) {
	upstream := newUpstreamFake(t)
	handler := newE2EHandler(t, upstream)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, uploadRequest(t, "/", pdffixture.Minimal(1), nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body.Bytes()))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if got := doc.Find("#documento-numero").Text(); got != "123" {
		t.Fatalf("expected Numero 123, got %q", got)
	}
	if got := doc.Find("#documento-tipo").Text(); got != "DDT" {
		t.Fatalf("expected Tipo DDT, got %q", got)
	}
	if got := doc.Find("#fornitore-piva").Text(); got != "IT123" {
		t.Fatalf("expected supplier P.IVA IT123, got %q", got)
	}

	var columns []string
	doc.Find("#articoli thead th").Each(func(_ int, s *goquery.Selection) {
		columns = append(columns, s.Text())
	})
	if strings.Join(columns, ",") != "Codice,Qta" {
		t.Fatalf("unexpected columns: %v", columns)
	}
	rows := doc.Find("#articoli tbody tr")
	if rows.Length() != 1 {
		t.Fatalf("expected 1 row, got %d", rows.Length())
	}
	if got := rows.First().Find("td").Eq(1).Text(); got != "2" {
		t.Fatalf("expected Qta 2, got %q", got)
	}

	cookies := res.Result().Cookies()
	second := uploadRequest(t, "/", pdffixture.Minimal(1), nil)
	for _, c := range cookies {
		second.AddCookie(c)
	}
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, second)
	if res2.Code != http.StatusOK {
		t.Fatalf("expected 200 on second upload, got %d", res2.Code)
	}
	if upstream.authCalls.Load() != 1 || upstream.processCalls.Load() != 2 {
		t.Fatalf("expected token reuse, got auth=%d process=%d", upstream.authCalls.Load(), upstream.processCalls.Load())
	}

	download := httptest.NewRequest(http.MethodGet, "/exports/latest.csv", nil)
	for _, c := range cookies {
		download.AddCookie(c)
	}
	res3 := httptest.NewRecorder()
	handler.ServeHTTP(res3, download)
	if res3.Code != http.StatusOK || !strings.HasPrefix(res3.Body.String(), "Codice;Qta\n") {
		t.Fatalf("unexpected csv download: %d %q", res3.Code, res3.Body.String())
	}
	if !strings.Contains(res3.Header().Get("Content-Disposition"), "documento_123.csv") {
		t.Fatalf("unexpected content disposition %q", res3.Header().Get("Content-Disposition"))
	}
}

func TestUploadForwardsPDFsWithUnreadablePageCount(t *testing.T) {
	upstream := newUpstreamFake(t)
	handler := newE2EHandler(t, upstream)

	base := pdffixture.Minimal(1)
	uploads := map[string][]byte{
		"pdf 2.0":   bytes.Replace(base, []byte("%PDF-1.4"), []byte("%PDF-2.0"), 1),
		"encrypted": bytes.Replace(base, []byte("/Root 1 0 R >>"), []byte("/Root 1 0 R /Encrypt << /Filter /Standard /V 4 /R 4 /Length 128 /O (o) /U (u) /P -4 >> >>"), 1),
	}
	for name, data := range uploads {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, uploadRequest(t, "/v1/documents/process", data, nil))
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", name, res.Code, res.Body.String())
		}
	}
	if upstream.processCalls.Load() != 2 {
		t.Fatalf("expected both uploads to reach the processing endpoint, got %d", upstream.processCalls.Load())
	}
}

func TestFormUncheckedTestBoxOverridesDefault(t *testing.T) {
	upstream := newUpstreamFake(t)
	handler := newE2EHandler(t, upstream, func(cfg *config.Config) { cfg.DefaultTestMode = true })

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, uploadRequest(t, "/", pdffixture.Minimal(1), nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got, _ := upstream.lastTest.Load().(string); got != "" {
		t.Fatalf("unchecked box must not send test mode, upstream got test=%q", got)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, uploadRequest(t, "/", pdffixture.Minimal(1), map[string]string{"test": "true"}))
	if got, _ := upstream.lastTest.Load().(string); got != "true" {
		t.Fatalf("checked box must send test mode, upstream got test=%q", got)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, uploadRequest(t, "/v1/documents/process", pdffixture.Minimal(1), nil))
	if got, _ := upstream.lastTest.Load().(string); got != "true" {
		t.Fatalf("JSON API without a test field must use the default, upstream got test=%q", got)
	}
}

func TestUploadRejectsNonPDFWithoutUpstreamCalls(t *testing.T) {
	upstream := newUpstreamFake(t)
	handler := newE2EHandler(t, upstream)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, uploadRequest(t, "/", []byte("plain text, not a pdf"), nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if doc.Find("#error").Length() != 1 || doc.Find("#testata").Length() != 0 {
		t.Fatalf("expected error message without result")
	}
	if upstream.authCalls.Load() != 0 || upstream.processCalls.Load() != 0 {
		t.Fatalf("no upstream call expected for rejected upload")
	}
}

func TestProcessAPIReturnsStructuredJSON(t *testing.T) {
	handler := newE2EHandler(t, newUpstreamFake(t))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, uploadRequest(t, "/v1/documents/process", pdffixture.Minimal(1), map[string]string{"customer": "IT456"}))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var payload struct {
		State     string           `json:"state"`
		Pages     int              `json:"pages"`
		Document  map[string]any   `json:"document"`
		Columns   []string         `json:"columns"`
		LineItems []map[string]any `json:"line_items"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.State != "success" || payload.Pages != 1 || payload.Document["number"] != "123" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if strings.Join(payload.Columns, ",") != "Codice,Qta" || len(payload.LineItems) != 1 {
		t.Fatalf("unexpected table: %+v", payload)
	}
	if !strings.Contains(res.Body.String(), `{"Codice":"A1","Qta":2}`) {
		t.Fatalf("expected line item key order preserved, got %s", res.Body.String())
	}
}

func TestOperationalEndpoints(t *testing.T) {
	handler := newE2EHandler(t, newUpstreamFake(t))

	for path, want := range map[string]string{
		"/healthz":             `"status":"ok"`,
		"/openapi.yaml":        "/v1/documents/process",
		"/metrics":             "pdfproc_http_in_flight_requests",
		"/exports/latest.xlsx": "no processed document",
	} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		if !strings.Contains(res.Body.String(), want) {
			t.Fatalf("%s: expected %q in body, got %d %s", path, want, res.Code, res.Body.String())
		}
	}
}
