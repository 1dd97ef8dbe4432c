package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docfind/internal/telemetry"
)

const (
	queryMetricsURI     = "docfind://query_metrics"
	documentURIPrefix   = "docfind://documents/"
	documentURITemplate = documentURIPrefix + "{id}"
)

// QueryMetricsOutput is the JSON body of the query_metrics resource.
type QueryMetricsOutput struct {
	*telemetry.Snapshot
	ZeroResultPct float64 `json:"zero_result_pct"`
}

func (s *Server) registerResources() {
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "document",
		URITemplate: documentURITemplate,
		Description: "Extracted pages of a stored document, with text fragments and coordinates",
		MIMEType:    "application/json",
	}, s.readDocument)

	if s.metrics != nil {
		s.mcp.AddResource(&mcp.Resource{
			Name:        "query_metrics",
			URI:         queryMetricsURI,
			Description: "Search query statistics for this server session",
			MIMEType:    "application/json",
		}, s.readQueryMetrics)
	}
}

func (s *Server) readDocument(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id, ok := strings.CutPrefix(uri, documentURIPrefix)
	if !ok || id == "" {
		return nil, NewResourceNotFoundError(uri)
	}
	rec, err := s.svc.Get(ctx, id)
	if err != nil {
		return nil, MapError(err)
	}
	return jsonResource(uri, rec.Document)
}

func (s *Server) readQueryMetrics(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	snap := s.metrics.Snapshot()
	return jsonResource(queryMetricsURI, QueryMetricsOutput{Snapshot: snap, ZeroResultPct: snap.ZeroResultPercentage()})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(content)}},
	}, nil
}
