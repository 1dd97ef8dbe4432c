package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// ExtractionError reports the first run that could not be decoded.
// Page and Run are 1-based positions in the raw input.
type ExtractionError struct {
	Page   int
	Run    int
	Reason string
	Cause  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("page %d, run %d: %s", e.Page, e.Run, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// Location renders the failing position for logs and API details.
func (e *ExtractionError) Location() string {
	return fmt.Sprintf("page %d run %d", e.Page, e.Run)
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithWorkers bounds the number of pages decoded concurrently.
func WithWorkers(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger used for extraction summaries.
func WithLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Extractor turns raw pages into a ProcessedDocument. It holds no mutable
// state and is safe for concurrent use.
type Extractor struct {
	workers int
	logger  *slog.Logger
}

// NewExtractor creates an Extractor. Workers default to GOMAXPROCS.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract decodes every page and returns the complete document, or an
// *ExtractionError for the earliest undecodable run in page order. No
// partial document is ever returned.
func (e *Extractor) Extract(ctx context.Context, raw []RawPage) (*ProcessedDocument, error) {
	start := time.Now()
	pages := make([]PageContent, len(raw))
	errs := make([]error, len(raw))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range raw {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Decode errors are collected per page so the reported one does
			// not depend on goroutine scheduling.
			pages[i], errs[i] = buildPage(i+1, raw[i].Runs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	doc := &ProcessedDocument{TotalPages: len(pages), Pages: pages}
	e.logger.Debug("document extracted",
		slog.Int("page_count", doc.TotalPages),
		slog.Int("fragment_count", doc.FragmentCount()),
		slog.Duration("duration", time.Since(start)))
	return doc, nil
}

// Extract runs a default Extractor over raw.
func Extract(ctx context.Context, raw []RawPage) (*ProcessedDocument, error) {
	return NewExtractor().Extract(ctx, raw)
}

func buildPage(number int, runs []RawTextRun) (PageContent, error) {
	page := PageContent{PageNumber: number, Fragments: make([]TextFragment, 0, len(runs))}

	var sb strings.Builder
	for j, run := range runs {
		text, err := decodeRun(run)
		if err != nil {
			pos := run.Index
			if pos == 0 {
				pos = j + 1
			}
			return PageContent{}, &ExtractionError{
				Page:   number,
				Run:    pos,
				Reason: err.Error(),
				Cause:  err,
			}
		}
		if text == "" {
			continue
		}
		if len(page.Fragments) > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
		page.Fragments = append(page.Fragments, TextFragment{
			Text:   text,
			X:      run.X,
			Y:      run.Y,
			Width:  run.Width,
			Height: run.Height,
		})
	}
	page.Content = strings.TrimSpace(sb.String())
	return page, nil
}

// decodeRun applies URI component decoding: %XX escapes are resolved, '+'
// stays literal, and the result must be valid UTF-8.
func decodeRun(run RawTextRun) (string, error) {
	switch run.Encoding {
	case EncodingPlain:
		if !utf8.ValidString(run.Text) {
			return "", errors.New("text is not valid UTF-8")
		}
		return run.Text, nil
	case EncodingPercent:
		text, err := url.PathUnescape(run.Text)
		if err != nil {
			return "", fmt.Errorf("malformed percent-encoding: %w", err)
		}
		if !utf8.ValidString(text) {
			return "", errors.New("percent-decoded bytes are not valid UTF-8")
		}
		return text, nil
	default:
		return "", fmt.Errorf("unknown encoding %d", run.Encoding)
	}
}
