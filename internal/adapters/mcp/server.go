package mcpadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
	"github.com/kirillkom/pdf-processor/internal/core/ports"
	"github.com/kirillkom/pdf-processor/internal/core/usecase"
)

const ProcessToolName = "process_pdf"

// Server exposes the upload action as an MCP tool. All tool calls share one
// session, so the bearer token is reused for the lifetime of the process.
type Server struct {
	processor       ports.DocumentProcessingService
	session         *usecase.Session
	defaultTestMode bool
	maxBytes        int64
}

func NewServer(processor ports.DocumentProcessingService, defaultTestMode bool, maxBytes int64) *Server {
	return &Server{
		processor:       processor,
		session:         usecase.NewSession(),
		defaultTestMode: defaultTestMode,
		maxBytes:        maxBytes,
	}
}

func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"pdf-processor",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	srv.AddTool(mcp.NewTool(ProcessToolName,
		mcp.WithDescription("Upload a PDF to the document processing service and return the extracted header and line items."),
		mcp.WithString("path", mcp.Description("Path of a local PDF file")),
		mcp.WithString("pdf_base64", mcp.Description("Base64-encoded PDF content, used when path is empty")),
		mcp.WithString("customer", mcp.Description("Customer VAT number filter")),
		mcp.WithString("supplier", mcp.Description("Supplier VAT number filter")),
		mcp.WithBoolean("test", mcp.Description("Run the processing in test mode")),
	), s.handleProcessPDF)
	return srv
}

// ServeStdio blocks until stdin is closed.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func (s *Server) handleProcessPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := s.readRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome := s.processor.Process(ctx, s.session, req)
	if outcome.State != domain.StateSuccess {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", outcome.State, outcome.Err)), nil
	}

	payload, err := json.MarshalIndent(toolPayload{
		RunID:     outcome.RunID,
		Pages:     outcome.PDF.Pages,
		Document:  outcome.Result.Document,
		Supplier:  outcome.Result.Supplier,
		Customer:  outcome.Result.Customer,
		Columns:   domain.Columns(outcome.Result.LineItems),
		LineItems: outcome.Result.LineItems,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error()), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(summary(outcome)),
			mcp.NewTextContent(string(payload)),
		},
	}, nil
}

type toolPayload struct {
	RunID     string                `json:"run_id"`
	Pages     int                   `json:"pages"`
	Document  domain.DocumentHeader `json:"document"`
	Supplier  domain.Party          `json:"supplier"`
	Customer  domain.Party          `json:"customer"`
	Columns   []string              `json:"columns"`
	LineItems []domain.LineItem     `json:"line_items"`
}

func (s *Server) readRequest(request mcp.CallToolRequest) (domain.ProcessingRequest, error) {
	req := domain.ProcessingRequest{Filters: domain.Filters{
		CustomerTaxID: strings.TrimSpace(request.GetString("customer", "")),
		SupplierTaxID: strings.TrimSpace(request.GetString("supplier", "")),
		TestMode:      request.GetBool("test", s.defaultTestMode),
	}}

	path := strings.TrimSpace(request.GetString("path", ""))
	encoded := strings.TrimSpace(request.GetString("pdf_base64", ""))
	switch {
	case path != "":
		info, err := os.Stat(path)
		if err != nil {
			return req, fmt.Errorf("read pdf: %w", err)
		}
		if s.maxBytes > 0 && info.Size() > s.maxBytes {
			return req, fmt.Errorf("file exceeds %d bytes", s.maxBytes)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("read pdf: %w", err)
		}
		req.Filename = filepath.Base(path)
		req.PDF = data
	case encoded != "":
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return req, fmt.Errorf("decode pdf_base64: %w", err)
		}
		if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
			return req, fmt.Errorf("file exceeds %d bytes", s.maxBytes)
		}
		req.Filename = "document.pdf"
		req.PDF = data
	default:
		return req, fmt.Errorf("either path or pdf_base64 is required")
	}
	return req, nil
}

func summary(outcome *domain.ActionOutcome) string {
	res := outcome.Result
	return fmt.Sprintf(
		"%s %s del %s. Fornitore: %s (%s). Cliente: %s (%s). Articoli: %d.",
		res.Document.Type, res.Document.Number, res.Document.Date,
		res.Supplier.LegalName, res.Supplier.TaxID,
		res.Customer.LegalName, res.Customer.TaxID,
		len(res.LineItems),
	)
}
