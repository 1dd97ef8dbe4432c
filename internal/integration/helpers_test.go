// Package integration exercises the HTTP API, the MCP server and the inbox
// watcher together over one shared ingest service.
package integration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docfind/internal/document"
	"github.com/Aman-CERP/docfind/internal/ingest"
	"github.com/Aman-CERP/docfind/internal/loader"
	"github.com/Aman-CERP/docfind/internal/search"
	"github.com/Aman-CERP/docfind/internal/store"
)

// reportDoc is a two-page pdf2json document. Page contents:
//
//	1: "Quarterly Report revenue up"
//	2: "Report appendix"
const reportDoc = `{"Pages":[
  {"Texts":[{"x":1,"y":1,"w":9,"R":[{"T":"Quarterly%20Report"}]},{"x":1,"y":3,"w":10,"R":[{"T":"revenue%20up"}]}]},
  {"Texts":[{"x":4,"y":2,"w":12,"R":[{"T":"Report%20appendix"}]}]}
]}`

func newService(t *testing.T, opts ...search.EngineOption) *ingest.Service {
	t.Helper()
	repo, err := store.NewMemoryRepository(10)
	require.NoError(t, err)
	return ingest.New(repo, loader.New(), document.NewExtractor(), search.NewEngine(search.DefaultConfig(), opts...),
		ingest.WithLimits(ingest.Limits{MaxBytes: 1 << 20, AllowedTypes: []string{"application/pdf", "application/json"}}))
}
