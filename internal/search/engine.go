// Package search finds query matches in extracted documents and maps each
// match back to a page coordinate.
package search

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/docfind/internal/document"
	dferrors "github.com/Aman-CERP/docfind/internal/errors"
	"github.com/Aman-CERP/docfind/internal/telemetry"
)

// DefaultContextRadius is how many characters of surrounding text a result
// carries on each side of the match.
const DefaultContextRadius = 50

// Result is one match.
type Result struct {
	Page int `json:"page"`
	// Offset is the byte offset of the match in the page content.
	Offset    int       `json:"offset"`
	Context   string    `json:"context"`
	Highlight string    `json:"highlight"`
	Position  *Position `json:"position,omitempty"`
}

// Config tunes an Engine.
type Config struct {
	ContextRadius    int
	MaxResults       int // 0 means unlimited
	PatternCacheSize int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ContextRadius:    DefaultContextRadius,
		PatternCacheSize: DefaultPatternCacheSize,
	}
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithMetrics records every search in the given collector.
func WithMetrics(m *telemetry.Collector) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine runs queries against ProcessedDocuments. Documents are only read,
// so one Engine can serve concurrent searches over shared documents.
type Engine struct {
	compiler *CachedCompiler
	config   Config
	metrics  *telemetry.Collector
	logger   *slog.Logger
}

// NewEngine creates an engine.
func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	if cfg.ContextRadius < 0 {
		cfg.ContextRadius = 0
	}
	e := &Engine{
		compiler: NewCachedCompiler(cfg.PatternCacheSize),
		config:   cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search scans doc page by page and returns matches in page order, then
// match order within the page. No matches yields an empty slice.
// Cancellation is checked between pages.
func (e *Engine) Search(ctx context.Context, doc *document.ProcessedDocument, query string, f Filters) ([]Result, error) {
	if query == "" {
		return nil, dferrors.New(dferrors.ErrCodeQueryEmpty, "Search query is required", nil)
	}
	if doc == nil {
		return nil, dferrors.New(dferrors.ErrCodeInvalidInput, "document is required", nil)
	}
	start := time.Now()
	pattern := e.compiler.Compile(query, f)

	results := []Result{}
	scanned := 0
	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scanned++
		results = e.searchPage(results, pattern, page)
		if e.config.MaxResults > 0 && len(results) >= e.config.MaxResults {
			results = results[:e.config.MaxResults]
			break
		}
	}

	latency := time.Since(start)
	if e.metrics != nil {
		e.metrics.Record(telemetry.QueryEvent{
			Query:        query,
			Mode:         pattern.Mode,
			ResultCount:  len(results),
			PagesScanned: scanned,
			Latency:      latency,
		})
	}
	e.logger.Debug("search completed",
		slog.String("query", query),
		slog.String("mode", string(pattern.Mode)),
		slog.Int("result_count", len(results)),
		slog.Int("pages_scanned", scanned),
		slog.Duration("duration", latency))

	return results, nil
}

func (e *Engine) searchPage(results []Result, p *Pattern, page document.PageContent) []Result {
	content := page.Content
	spans := FindMatches(p, content)
	if len(spans) == 0 {
		return results
	}

	// Content had its leading whitespace trimmed; fragment walking works
	// on the untrimmed join.
	shift := page.LeadingTrim()
	for _, span := range spans {
		r := Result{
			Page:      page.PageNumber,
			Offset:    span.Start,
			Context:   contextWindow(content, span.Start, span.End(), e.config.ContextRadius),
			Highlight: content[span.Start:span.End()],
		}
		if pos, ok := Resolve(page.Fragments, span.Start+shift); ok {
			r.Position = &pos
		}
		results = append(results, r)
	}
	return results
}

// contextWindow returns s[start:end] extended by up to radius characters on
// each side, clamped to s.
func contextWindow(s string, start, end, radius int) string {
	from := start
	for i := 0; i < radius && from > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:from])
		from -= size
	}
	to := end
	for i := 0; i < radius && to < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[to:])
		to += size
	}
	return s[from:to]
}
