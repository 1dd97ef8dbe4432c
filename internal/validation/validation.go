// Package validation runs data-driven search checks through the MCP tool
// surface.
//
// Cases are loaded from testdata/queries.yaml and name fixture documents
// under testdata/docs/, so expected results can be changed without touching
// Go code.
package validation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docfind/internal/mcp"
	"github.com/Aman-CERP/docfind/internal/search"
)

// resultLimit is high enough that no fixture query is truncated.
const resultLimit = 1000

// QuerySpec is one search case.
type QuerySpec struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Document string `yaml:"document"` // fixture file name, extracted on first use
	// DocumentID is sent as-is instead of extracting Document.
	DocumentID    string      `yaml:"document_id"`
	Query         string      `yaml:"query"`
	CaseSensitive bool        `yaml:"case_sensitive"`
	WholeWord     bool        `yaml:"whole_word"`
	Regex         bool        `yaml:"regex"`
	Expect        Expectation `yaml:"expect"`
	Notes         string      `yaml:"notes"`
}

// Expectation lists what a case must produce. Slices are compared result by
// result; a nil slice is not checked.
type Expectation struct {
	Count      *int              `yaml:"count"`
	Pages      []int             `yaml:"pages"`
	Offsets    []int             `yaml:"offsets"`
	Highlights []string          `yaml:"highlights"`
	Positions  []search.Position `yaml:"positions"`
	// ErrorCode is the MCP error code a negative case must fail with.
	ErrorCode int `yaml:"error_code"`
}

// QueryConfig holds every case from a queries file.
type QueryConfig struct {
	Queries  []QuerySpec `yaml:"queries"`
	Negative []QuerySpec `yaml:"negative"`
}

// TestDataDir returns the testdata directory shipped with this package.
func TestDataDir() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "testdata"
	}
	return filepath.Join(filepath.Dir(filename), "testdata")
}

// LoadQueries reads a queries file.
func LoadQueries(path string) (*QueryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read queries file %s: %w", path, err)
	}
	var cfg QueryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse queries YAML: %w", err)
	}
	return &cfg, nil
}

// TestResult is the outcome of one case.
type TestResult struct {
	Spec     QuerySpec     `json:"spec"`
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"duration_ms"`
	Got      int           `json:"got"`
	Failures []string      `json:"failures,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// ValidationResult is the outcome of a full run.
type ValidationResult struct {
	Timestamp  time.Time    `json:"timestamp"`
	Queries    []TestResult `json:"queries"`
	Negative   []TestResult `json:"negative"`
	QueryPass  int          `json:"query_pass"`
	QueryTotal int          `json:"query_total"`
	NegPass    int          `json:"negative_pass"`
	NegTotal   int          `json:"negative_total"`
}

// Passed reports whether every case passed.
func (r *ValidationResult) Passed() bool {
	return r.QueryPass == r.QueryTotal && r.NegPass == r.NegTotal
}

// Summary returns a one-line pass count.
func (r *ValidationResult) Summary() string {
	return fmt.Sprintf("queries %d/%d, negative %d/%d", r.QueryPass, r.QueryTotal, r.NegPass, r.NegTotal)
}

// Validator runs cases against an MCP server.
type Validator struct {
	server *mcp.Server
	docs   string
	ids    map[string]string
}

// NewValidator creates a validator that resolves fixture names in docsDir.
func NewValidator(server *mcp.Server, docsDir string) *Validator {
	return &Validator{server: server, docs: docsDir, ids: make(map[string]string)}
}

// documentID extracts a fixture once and returns its stored id.
func (v *Validator) documentID(ctx context.Context, spec QuerySpec) (string, error) {
	if spec.DocumentID != "" {
		return spec.DocumentID, nil
	}
	if id, ok := v.ids[spec.Document]; ok {
		return id, nil
	}
	out, err := v.server.CallTool(ctx, "extract_document", map[string]any{
		"path": filepath.Join(v.docs, spec.Document),
	})
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", spec.Document, err)
	}
	doc, ok := out.(mcp.DocumentOutput)
	if !ok {
		return "", fmt.Errorf("extract %s: unexpected output %T", spec.Document, out)
	}
	v.ids[spec.Document] = doc.ID
	return doc.ID, nil
}

// RunQuery executes one case.
func (v *Validator) RunQuery(ctx context.Context, spec QuerySpec) TestResult {
	start := time.Now()
	result := TestResult{Spec: spec}

	id, err := v.documentID(ctx, spec)
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	out, err := v.server.CallTool(ctx, "search_document", map[string]any{
		"document_id":    id,
		"query":          spec.Query,
		"case_sensitive": spec.CaseSensitive,
		"whole_word":     spec.WholeWord,
		"regex":          spec.Regex,
		"limit":          resultLimit,
	})
	result.Duration = time.Since(start)

	if spec.Expect.ErrorCode != 0 {
		result.Passed, result.Error = checkError(err, spec.Expect.ErrorCode)
		return result
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	res, ok := out.(mcp.SearchOutput)
	if !ok {
		result.Error = fmt.Sprintf("unexpected output %T", out)
		return result
	}

	result.Got = res.TotalResults
	result.Failures = compare(spec.Expect, res)
	result.Passed = len(result.Failures) == 0
	return result
}

func checkError(err error, want int) (bool, string) {
	if err == nil {
		return false, fmt.Sprintf("expected error code %d, search succeeded", want)
	}
	var me *mcp.MCPError
	if !errors.As(err, &me) {
		return false, fmt.Sprintf("expected error code %d, got %v", want, err)
	}
	if me.Code != want {
		return false, fmt.Sprintf("expected error code %d, got %d", want, me.Code)
	}
	return true, ""
}

func compare(want Expectation, got mcp.SearchOutput) []string {
	var failures []string
	if want.Count != nil && *want.Count != got.TotalResults {
		failures = append(failures, fmt.Sprintf("count: want %d, got %d", *want.Count, got.TotalResults))
	}

	pages := make([]int, len(got.Results))
	offsets := make([]int, len(got.Results))
	highlights := make([]string, len(got.Results))
	positions := make([]search.Position, len(got.Results))
	for i, r := range got.Results {
		pages[i] = r.Page
		offsets[i] = r.Offset
		highlights[i] = r.Highlight
		if r.Position != nil {
			positions[i] = *r.Position
		} else {
			positions[i] = search.Position{X: -1, Y: -1}
		}
	}

	failures = appendMismatch(failures, "pages", want.Pages, pages)
	failures = appendMismatch(failures, "offsets", want.Offsets, offsets)
	failures = appendMismatch(failures, "highlights", want.Highlights, highlights)
	failures = appendMismatch(failures, "positions", want.Positions, positions)
	return failures
}

func appendMismatch[T comparable](failures []string, field string, want, got []T) []string {
	if want == nil {
		return failures
	}
	if !slices.Equal(want, got) {
		failures = append(failures, fmt.Sprintf("%s: want %v, got %v", field, want, got))
	}
	return failures
}

// RunAll executes every case in cfg.
func (v *Validator) RunAll(ctx context.Context, cfg *QueryConfig) *ValidationResult {
	result := &ValidationResult{Timestamp: time.Now()}

	for _, spec := range cfg.Queries {
		tr := v.RunQuery(ctx, spec)
		result.Queries = append(result.Queries, tr)
		result.QueryTotal++
		if tr.Passed {
			result.QueryPass++
		}
	}

	for _, spec := range cfg.Negative {
		tr := v.RunQuery(ctx, spec)
		result.Negative = append(result.Negative, tr)
		result.NegTotal++
		if tr.Passed {
			result.NegPass++
		}
	}

	return result
}

// Describe formats a failed result for test logs.
func Describe(tr TestResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s (query %q)", tr.Spec.ID, tr.Spec.Name, tr.Spec.Query)
	if tr.Error != "" {
		fmt.Fprintf(&sb, ": %s", tr.Error)
	}
	for _, f := range tr.Failures {
		fmt.Fprintf(&sb, "\n  %s", f)
	}
	return sb.String()
}
