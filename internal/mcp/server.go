// Package mcp exposes the assembly service as Model Context Protocol tools
// over stdio or SSE.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-affidavit/internal/assembly"
	"github.com/a3tai/mcp-affidavit/internal/config"
	"github.com/a3tai/mcp-affidavit/internal/publish"
	"github.com/a3tai/mcp-affidavit/internal/security"
)

// Tool names
const (
	ToolComposeDocx     = "affidavit_compose_docx"
	ToolAssemblePDF     = "affidavit_assemble_pdf"
	ToolConvertUploaded = "affidavit_convert_uploaded"
	ToolServerInfo      = "affidavit_server_info"
)

// HTTP endpoints served in server mode
const (
	SSEPath     = "/sse"
	MessagePath = "/message"
	MetricsPath = "/metrics"
	HealthPath  = "/healthz"
)

const shutdownTimeout = 10 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *assembly.Service
	mcpServer *server.MCPServer
	inputs    *security.PathGuard
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *assembly.Service, logger *zap.Logger) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("assembly service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
		logger:    logger,
	}
	if cfg.InputDir != "" {
		guard, err := security.NewPathGuard(cfg.InputDir, "input")
		if err != nil {
			return nil, err
		}
		s.inputs = guard
	}

	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	recordArg := mcp.WithObject("record",
		mcp.Required(),
		mcp.Description("Case record: subject_name, case_file, party_name, lawyer_name, date (YYYY-MM-DD), "+
			"stat_declaration (Sworn|Affirmed), address, email, phone, party_role (Witness|Plaintiff|Defendant)"),
	)
	exhibitsArg := mcp.WithArray("exhibits",
		mcp.Description("Exhibit PDFs in order. Each item has 'name' and either 'content' (base64) or 'path' "+
			"(relative to the server input directory). Exhibits are labelled a, b, c, ..."),
		mcp.Items(fileSchema()),
	)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolComposeDocx,
		mcp.WithDescription("Fill the cover affidavit, one exhibit cover sheet per exhibit and the closing section, "+
			"and publish them as one editable .docx with 1-inch margins"),
		recordArg,
		exhibitsArg,
	), s.handleComposeDocx)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolAssemblePDF,
		mcp.WithDescription("Convert the filled affidavit sections to PDF and merge them with the exhibit PDFs: "+
			"cover, then each cover sheet followed by its exhibit pages, then the closing section"),
		recordArg,
		exhibitsArg,
	), s.handleAssemblePDF)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolConvertUploaded,
		mcp.WithDescription("Like "+ToolAssemblePDF+", but an uploaded editable .docx replaces the generated cover affidavit"),
		recordArg,
		exhibitsArg,
		mcp.WithObject("upload",
			mcp.Required(),
			mcp.Description("The edited affidavit .docx: 'name' and either 'content' (base64) or 'path'"),
			mcp.Properties(fileSchema()["properties"].(map[string]any)),
		),
	), s.handleConvertUploaded)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolServerInfo,
		mcp.WithDescription("Get server information: templates and their placeholders, converter availability, limits and output names"),
	), s.handleServerInfo)
}

func fileSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":    map[string]any{"type": "string", "description": "Original file name"},
			"content": map[string]any{"type": "string", "description": "Base64-encoded file content"},
			"path":    map[string]any{"type": "string", "description": "Path relative to the server input directory"},
		},
	}
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	switch {
	case s.config.IsServerMode():
		return s.runServerMode(ctx)
	case s.config.IsStdioMode():
		return s.runStdioMode(ctx)
	default:
		return fmt.Errorf("unsupported mode: %s", s.config.Mode)
	}
}

// runStdioMode serves MCP over stdin/stdout until ctx ends or stdin closes
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Info("starting MCP server in stdio mode",
		zap.String("template_dir", s.config.TemplateDir))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves SSE, artifact downloads and metrics on one listener
func (s *Server) runServerMode(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}

	baseURL := s.config.ArtifactBaseURL()
	if s.config.BaseURL == "" {
		baseURL = "http://" + ln.Addr().String()
	}

	srv := &http.Server{
		Handler:           s.HTTPHandler(baseURL),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server in server mode",
			zap.String("address", ln.Addr().String()),
			zap.String("base_url", baseURL))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// HTTPHandler routes the SSE transport, artifact downloads, metrics and a
// health check. baseURL is the externally visible server root.
func (s *Server) HTTPHandler(baseURL string) http.Handler {
	sse := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL(baseURL),
		server.WithSSEEndpoint(SSEPath),
		server.WithMessageEndpoint(MessagePath),
	)

	r := chi.NewRouter()
	r.Handle(SSEPath, sse.SSEHandler())
	r.Handle(MessagePath, sse.MessageHandler())
	publish.Routes(r, s.service.Artifacts(), s.logger)
	r.Method(http.MethodGet, MetricsPath, promhttp.HandlerFor(s.service.Metrics().Registry, promhttp.HandlerOpts{}))
	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}
