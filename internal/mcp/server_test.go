package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docfind/internal/document"
	dferrors "github.com/Aman-CERP/docfind/internal/errors"
	"github.com/Aman-CERP/docfind/internal/ingest"
	"github.com/Aman-CERP/docfind/internal/loader"
	"github.com/Aman-CERP/docfind/internal/search"
	"github.com/Aman-CERP/docfind/internal/store"
	"github.com/Aman-CERP/docfind/internal/telemetry"
)

const helloDoc = `{"Pages":[
  {"Texts":[{"x":0,"y":0,"w":5,"R":[{"T":"Hello"}]},{"x":10,"y":0,"w":5,"R":[{"T":"World"}]}]},
  {"Texts":[{"x":3,"y":4,"w":9,"R":[{"T":"world%20again"}]}]}
]}`

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	repo, err := store.NewMemoryRepository(10)
	require.NoError(t, err)
	svc := ingest.New(repo, loader.New(), document.NewExtractor(), search.NewEngine(search.DefaultConfig()))
	srv, err := NewServer(svc, opts...)
	require.NoError(t, err)
	return srv
}

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hello.json")
	require.NoError(t, os.WriteFile(path, []byte(helloDoc), 0o644))
	return path
}

func extract(t *testing.T, srv *Server) DocumentOutput {
	t.Helper()
	out, err := srv.CallTool(context.Background(), "extract_document", map[string]any{"path": writeDoc(t)})
	require.NoError(t, err)
	return out.(DocumentOutput)
}

// =============================================================================
// Construction
// =============================================================================

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestServer_ToolNames(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, []string{"extract_document", "search_document", "document_info", "list_documents"}, srv.ToolNames())
}

// =============================================================================
// Tools
// =============================================================================

func TestExtractDocument(t *testing.T) {
	// Given: a pdf2json file on disk
	srv := newTestServer(t)

	// When: extracting it with content
	out, err := srv.CallTool(context.Background(), "extract_document", map[string]any{
		"path": writeDoc(t), "include_content": true,
	})

	// Then: it is stored and its pages are returned
	require.NoError(t, err)
	doc := out.(DocumentOutput)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "hello.json", doc.Name)
	assert.Equal(t, 2, doc.PageCount)
	assert.Equal(t, 3, doc.Fragments)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "world again", doc.Pages[1].Content)
}

func TestExtractDocument_Errors(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.CallTool(ctx, "extract_document", map[string]any{})
	assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)

	_, err = srv.CallTool(ctx, "extract_document", map[string]any{"path": "/does/not/exist.pdf"})
	assert.Equal(t, ErrCodeFileNotFound, MapError(err).Code)
}

func TestSearchDocument(t *testing.T) {
	srv := newTestServer(t)
	doc := extract(t, srv)

	out, err := srv.CallTool(context.Background(), "search_document", map[string]any{
		"document_id": doc.ID, "query": "world",
	})

	require.NoError(t, err)
	res := out.(SearchOutput)
	assert.Equal(t, 2, res.TotalResults)
	assert.Equal(t, 1, res.Results[0].Page)
	assert.Equal(t, 2, res.Results[1].Page)
	assert.Equal(t, &search.Position{X: 3, Y: 4}, res.Results[1].Position)
}

func TestSearchDocument_LimitAndFilters(t *testing.T) {
	srv := newTestServer(t)
	doc := extract(t, srv)
	ctx := context.Background()

	out, err := srv.CallTool(ctx, "search_document", map[string]any{
		"document_id": doc.ID, "query": "world", "limit": 1,
	})
	require.NoError(t, err)
	res := out.(SearchOutput)
	assert.Equal(t, 2, res.TotalResults)
	assert.Len(t, res.Results, 1)
	assert.True(t, res.Truncated)

	out, err = srv.CallTool(ctx, "search_document", map[string]any{
		"document_id": doc.ID, "query": "World", "case_sensitive": true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.(SearchOutput).TotalResults)
}

func TestSearchDocument_Errors(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.CallTool(ctx, "search_document", map[string]any{"document_id": "x", "query": ""})
	assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)

	_, err = srv.CallTool(ctx, "search_document", map[string]any{"document_id": "missing", "query": "q"})
	assert.Equal(t, ErrCodeDocumentNotFound, MapError(err).Code)

	_, err = srv.CallTool(ctx, "search_document", map[string]any{"query": 5})
	assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)
}

func TestDocumentInfoAndList(t *testing.T) {
	srv := newTestServer(t)
	doc := extract(t, srv)
	ctx := context.Background()

	out, err := srv.CallTool(ctx, "document_info", map[string]any{"document_id": doc.ID})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, out.(DocumentOutput).ID)
	assert.Empty(t, out.(DocumentOutput).Pages)

	out, err = srv.CallTool(ctx, "list_documents", nil)
	require.NoError(t, err)
	require.Len(t, out.(ListOutput).Documents, 1)
	assert.Equal(t, "hello.json", out.(ListOutput).Documents[0].Name)
}

func TestCallTool_Unknown(t *testing.T) {
	_, err := newTestServer(t).CallTool(context.Background(), "index_status", nil)

	assert.Equal(t, ErrCodeMethodNotFound, MapError(err).Code)
}

// =============================================================================
// Protocol round trip
// =============================================================================

func connect(t *testing.T, srv *Server) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	ct, st := mcp.NewInMemoryTransports()
	_, err := srv.MCPServer().Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestProtocol_ListAndCallTools(t *testing.T) {
	// Given: a client connected over in-memory transports
	srv := newTestServer(t)
	session := connect(t, srv)
	ctx := context.Background()

	// When: listing tools
	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}

	// Then: all four are advertised
	assert.ElementsMatch(t, srv.ToolNames(), names)

	// And: extract then search round-trips through JSON-RPC
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "extract_document",
		Arguments: map[string]any{"path": writeDoc(t)},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var doc DocumentOutput
	require.NoError(t, json.Unmarshal(raw, &doc))

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search_document",
		Arguments: map[string]any{"document_id": doc.ID, "query": "hello"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "**Hello**")
}

func TestProtocol_ReadResources(t *testing.T) {
	metrics := telemetry.NewCollector(nil, telemetry.DefaultConfig())
	t.Cleanup(func() { _ = metrics.Close() })
	srv := newTestServer(t, WithMetrics(metrics))
	doc := extract(t, srv)
	session := connect(t, srv)
	ctx := context.Background()

	res, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: documentURIPrefix + doc.ID})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	var pd document.ProcessedDocument
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &pd))
	assert.Equal(t, 2, pd.TotalPages)

	res, err = session.ReadResource(ctx, &mcp.ReadResourceParams{URI: queryMetricsURI})
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, "zero_result_pct")
}

// =============================================================================
// Error mapping and formatting
// =============================================================================

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", dferrors.NotFound("x"), ErrCodeDocumentNotFound},
		{"extraction", dferrors.New(dferrors.ErrCodeExtractionFailed, "bad", nil), ErrCodeExtractionFailed},
		{"too large", dferrors.New(dferrors.ErrCodeFileTooLarge, "big", nil), ErrCodeFileTooLarge},
		{"validation", dferrors.New(dferrors.ErrCodeQueryTooLong, "long", nil), ErrCodeInvalidParams},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"other", os.ErrClosed, ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}
	assert.Nil(t, MapError(nil))

	withHint := dferrors.New(dferrors.ErrCodeFileTooLarge, "big", nil).WithSuggestion("Split it.")
	assert.Equal(t, "big Split it.", MapError(withHint).Message)
}

func TestFormatSearchResults(t *testing.T) {
	out := SearchOutput{
		TotalResults: 3,
		Truncated:    true,
		Results: []search.Result{
			{Page: 2, Offset: 4, Context: "the quick\nfox", Highlight: "quick", Position: &search.Position{X: 1.5, Y: 2}},
		},
	}

	md := FormatSearchResults("quick", "a.pdf", out)

	assert.Contains(t, md, `## Results for "quick" in a.pdf`)
	assert.Contains(t, md, "Found 3 results (showing first 1)")
	assert.Contains(t, md, "1. **Page 2**, offset 4 at (1.5, 2)")
	assert.Contains(t, md, "> the **quick** fox")

	assert.Equal(t, `No results found for "x" in a.pdf`, FormatSearchResults("x", "a.pdf", SearchOutput{}))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 100, clampLimit(0, 100, 1, 1000))
	assert.Equal(t, 5, clampLimit(5, 100, 1, 1000))
	assert.Equal(t, 1000, clampLimit(5000, 100, 1, 1000))
}
