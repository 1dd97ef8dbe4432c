package mcp

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docfind/internal/document"
	"github.com/Aman-CERP/docfind/internal/search"
	"github.com/Aman-CERP/docfind/internal/store"
)

// maxToolResults caps search_document when the caller sets no limit.
const maxToolResults = 100

// ExtractInput is the input of extract_document.
type ExtractInput struct {
	Path           string `json:"path" jsonschema:"path to a PDF or pdf2json file on the server machine"`
	IncludeContent bool   `json:"include_content,omitempty" jsonschema:"return the extracted text of every page"`
}

// PageOutput is one page of extracted text.
type PageOutput struct {
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
}

// DocumentOutput describes a stored document.
type DocumentOutput struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	PageCount  int          `json:"page_count"`
	Fragments  int          `json:"fragments"`
	UploadDate string       `json:"upload_date"`
	Pages      []PageOutput `json:"pages,omitempty"`
}

// SearchInput is the input of search_document.
type SearchInput struct {
	DocumentID    string `json:"document_id" jsonschema:"identifier returned by extract_document or list_documents"`
	Query         string `json:"query" jsonschema:"text or regular expression to find"`
	CaseSensitive bool   `json:"case_sensitive,omitempty" jsonschema:"match letter case exactly"`
	WholeWord     bool   `json:"whole_word,omitempty" jsonschema:"only match whole words (ignored for regex)"`
	Regex         bool   `json:"regex,omitempty" jsonschema:"treat the query as an RE2 regular expression"`
	Limit         int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 100"`
}

// SearchOutput is the output of search_document.
type SearchOutput struct {
	FileName     string          `json:"file_name"`
	TotalResults int             `json:"total_results"`
	Truncated    bool            `json:"truncated,omitempty"`
	Results      []search.Result `json:"results"`
}

// DocumentInput selects a stored document.
type DocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"identifier of a stored document"`
}

// ListInput is the (empty) input of list_documents.
type ListInput struct{}

// ListOutput is the output of list_documents.
type ListOutput struct {
	Documents []store.Info `json:"documents"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "extract_document",
		Description: "Extract the text of a PDF (or pdf2json output) from a local path and store it for searching. Returns the document id and page count.",
	}, s.extractHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_document",
		Description: "Find every occurrence of a query in a stored document. Each result has the page, a context snippet and the position of the matched text on the page.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_info",
		Description: "Show name, page count and upload time of a stored document.",
	}, s.infoHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_documents",
		Description: "List stored documents, newest first.",
	}, s.listHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", len(toolNames)))
}

var toolNames = []string{"extract_document", "search_document", "document_info", "list_documents"}

func (s *Server) extractHandler(ctx context.Context, _ *mcp.CallToolRequest, in ExtractInput) (*mcp.CallToolResult, DocumentOutput, error) {
	if in.Path == "" {
		return nil, DocumentOutput{}, NewInvalidParamsError("path parameter is required")
	}
	rec, err := s.svc.IngestFile(ctx, filepath.Clean(in.Path))
	if err != nil {
		s.logger.Warn("extract_document failed", slog.String("path", in.Path), slog.String("error", err.Error()))
		return nil, DocumentOutput{}, MapError(err)
	}
	return nil, documentOutput(rec, in.IncludeContent), nil
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	start := time.Now()
	rec, results, err := s.svc.Search(ctx, in.DocumentID, in.Query, search.Filters{
		CaseSensitive: in.CaseSensitive,
		WholeWord:     in.WholeWord,
		Regex:         in.Regex,
	})
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	out := SearchOutput{FileName: rec.Name, TotalResults: len(results), Results: results}
	limit := clampLimit(in.Limit, maxToolResults, 1, 1000)
	if len(out.Results) > limit {
		out.Results = out.Results[:limit]
		out.Truncated = true
	}

	s.logger.Info("search_document completed",
		slog.String("document_id", in.DocumentID),
		slog.Int("result_count", len(results)),
		slog.Duration("duration", time.Since(start)))

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(in.Query, rec.Name, out)}},
	}, out, nil
}

func (s *Server) infoHandler(ctx context.Context, _ *mcp.CallToolRequest, in DocumentInput) (*mcp.CallToolResult, DocumentOutput, error) {
	rec, err := s.svc.Get(ctx, in.DocumentID)
	if err != nil {
		return nil, DocumentOutput{}, MapError(err)
	}
	return nil, documentOutput(rec, false), nil
}

func (s *Server) listHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListInput) (*mcp.CallToolResult, ListOutput, error) {
	recs, err := s.svc.List(ctx)
	if err != nil {
		return nil, ListOutput{}, MapError(err)
	}
	out := ListOutput{Documents: make([]store.Info, len(recs))}
	for i, rec := range recs {
		out.Documents[i] = rec.Info()
	}
	return nil, out, nil
}

func documentOutput(rec *store.Record, withContent bool) DocumentOutput {
	info := rec.Info()
	out := DocumentOutput{
		ID:         info.ID,
		Name:       info.Name,
		PageCount:  info.PageCount,
		Fragments:  rec.Document.FragmentCount(),
		UploadDate: info.UploadDate.UTC().Format(time.RFC3339),
	}
	if withContent {
		out.Pages = pagesOutput(rec.Document)
	}
	return out
}

func pagesOutput(doc *document.ProcessedDocument) []PageOutput {
	pages := make([]PageOutput, len(doc.Pages))
	for i, p := range doc.Pages {
		pages[i] = PageOutput{PageNumber: p.PageNumber, Content: p.Content}
	}
	return pages
}

// clampLimit returns def for non-positive limits, otherwise limit bounded
// to [lo, hi].
func clampLimit(limit, def, lo, hi int) int {
	switch {
	case limit <= 0:
		return def
	case limit < lo:
		return lo
	case limit > hi:
		return hi
	default:
		return limit
	}
}
