package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docfind/internal/ingest"
	"github.com/Aman-CERP/docfind/internal/telemetry"
	"github.com/Aman-CERP/docfind/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "docfind"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes query statistics as the query_metrics resource.
func WithMetrics(m *telemetry.Collector) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server bridges MCP clients to an ingest.Service.
type Server struct {
	mcp     *mcp.Server
	svc     *ingest.Service
	metrics *telemetry.Collector
	logger  *slog.Logger
}

// NewServer creates an MCP server with all tools and resources registered.
func NewServer(svc *ingest.Service, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, errors.New("ingest service is required")
	}
	s := &Server{svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version.Version}, nil)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ToolNames lists the registered tools.
func (s *Server) ToolNames() []string {
	return append([]string(nil), toolNames...)
}

// CallTool invokes a tool directly with JSON-like arguments, bypassing the
// transport. It returns the tool's structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "extract_document":
		return call(ctx, args, s.extractHandler)
	case "search_document":
		return call(ctx, args, s.searchHandler)
	case "document_info":
		return call(ctx, args, s.infoHandler)
	case "list_documents":
		return call(ctx, args, s.listHandler)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func call[In, Out any](ctx context.Context, args map[string]any, h func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error)) (any, error) {
	var in In
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, NewInvalidParamsError(err.Error())
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
		}
	}
	_, out, err := h(ctx, nil, in)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HTTPHandler serves the MCP streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}

// ServeStdio runs the server on stdin/stdout until ctx is done.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}
