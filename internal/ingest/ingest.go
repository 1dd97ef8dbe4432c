// Package ingest turns uploaded bytes into stored, searchable documents and
// answers searches against them. HTTP, MCP, the CLI and the inbox watcher
// all go through a Service.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/docfind/internal/document"
	dferrors "github.com/Aman-CERP/docfind/internal/errors"
	"github.com/Aman-CERP/docfind/internal/loader"
	"github.com/Aman-CERP/docfind/internal/search"
	"github.com/Aman-CERP/docfind/internal/store"
)

// MaxQueryLength bounds a search query in characters.
const MaxQueryLength = 1000

// Limits restrict what Ingest accepts.
type Limits struct {
	MaxBytes     int64
	AllowedTypes []string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLimits overrides the upload limits.
func WithLimits(l Limits) Option {
	return func(s *Service) {
		s.limits = l
	}
}

// Service wires loader, extractor, repository and engine together.
type Service struct {
	repo      store.Repository
	loader    *loader.Loader
	extractor *document.Extractor
	engine    *search.Engine
	limits    Limits
	logger    *slog.Logger
}

// New creates a Service. The default limits are 10 MiB and PDF or JSON.
func New(repo store.Repository, ld *loader.Loader, ex *document.Extractor, engine *search.Engine, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		loader:    ld,
		extractor: ex,
		engine:    engine,
		limits: Limits{
			MaxBytes:     10 << 20,
			AllowedTypes: []string{"application/pdf", "application/json"},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckUpload validates an upload's declared type and size before its body
// is read. An empty content type is accepted and left to format detection.
func (s *Service) CheckUpload(contentType string, size int64) error {
	if contentType != "" && !s.allowsType(contentType) {
		return dferrors.New(dferrors.ErrCodeUnsupportedType, "Only PDF files are allowed", nil).
			WithDetail("content_type", contentType)
	}
	if s.limits.MaxBytes > 0 && size > s.limits.MaxBytes {
		return tooLarge(size, s.limits.MaxBytes)
	}
	return nil
}

func (s *Service) allowsType(contentType string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	base = strings.TrimSpace(base)
	for _, t := range s.limits.AllowedTypes {
		if strings.EqualFold(t, base) {
			return true
		}
	}
	return false
}

// MaxBytes returns the configured size limit.
func (s *Service) MaxBytes() int64 {
	return s.limits.MaxBytes
}

// Ingest loads, extracts and stores a document.
func (s *Service) Ingest(ctx context.Context, name string, data []byte) (*store.Record, error) {
	start := time.Now()
	if err := s.CheckUpload("", int64(len(data))); err != nil {
		return nil, err
	}

	raw, format, err := s.loader.Load(data)
	if err != nil {
		return nil, err
	}
	if !s.allowsType(format.ContentType()) {
		return nil, dferrors.New(dferrors.ErrCodeUnsupportedType,
			fmt.Sprintf("%s documents are not accepted", format), nil)
	}

	doc, err := s.extractor.Extract(ctx, raw)
	if err != nil {
		return nil, extractionFailed(err)
	}

	rec, err := s.repo.Save(ctx, store.Record{
		Name:     name,
		Size:     int64(len(data)),
		Format:   string(format),
		Document: doc,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document ingested",
		slog.String("document_id", rec.ID),
		slog.String("name", name),
		slog.String("format", string(format)),
		slog.Int("pages", doc.TotalPages),
		slog.Int("fragments", doc.FragmentCount()),
		slog.Duration("duration", time.Since(start)))
	return rec, nil
}

// IngestFile reads path and ingests it under its base name.
func (s *Service) IngestFile(ctx context.Context, path string) (*store.Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fileError(path, err)
	}
	if info.IsDir() {
		return nil, dferrors.New(dferrors.ErrCodeInvalidPath, "path is a directory", nil).WithDetail("path", path)
	}
	if s.limits.MaxBytes > 0 && info.Size() > s.limits.MaxBytes {
		return nil, tooLarge(info.Size(), s.limits.MaxBytes).WithDetail("path", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileError(path, err)
	}
	return s.Ingest(ctx, filepath.Base(path), data)
}

// Get returns a stored record.
func (s *Service) Get(ctx context.Context, id string) (*store.Record, error) {
	return s.repo.Get(ctx, id)
}

// List returns stored records, newest first.
func (s *Service) List(ctx context.Context) ([]*store.Record, error) {
	return s.repo.List(ctx)
}

// Delete removes a stored record.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// ValidateQuery rejects empty and oversized queries. A query of only
// whitespace is a valid query for the spaces between words.
func ValidateQuery(query string) error {
	if query == "" {
		return dferrors.New(dferrors.ErrCodeQueryEmpty, "Search query is required", nil)
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return dferrors.New(dferrors.ErrCodeQueryTooLong,
			fmt.Sprintf("query is %d characters, limit is %d", n, MaxQueryLength), nil)
	}
	return nil
}

// Search runs query against the stored document id.
func (s *Service) Search(ctx context.Context, id, query string, f search.Filters) (*store.Record, []search.Result, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, nil, err
	}
	if id == "" {
		return nil, nil, dferrors.New(dferrors.ErrCodeMissingDocument, "File ID is required", nil)
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	results, err := s.SearchDocument(ctx, rec.Document, query, f)
	if err != nil {
		return nil, nil, err
	}
	return rec, results, nil
}

// SearchDocument runs query against a document that is not stored.
func (s *Service) SearchDocument(ctx context.Context, doc *document.ProcessedDocument, query string, f search.Filters) ([]search.Result, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}
	results, err := s.engine.Search(ctx, doc, query, f)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if _, ok := dferrors.As(err); ok {
			return nil, err
		}
		return nil, dferrors.New(dferrors.ErrCodeSearchFailed, "search failed", err)
	}
	return results, nil
}

// Extract loads and extracts data without storing it.
func (s *Service) Extract(ctx context.Context, data []byte) (*document.ProcessedDocument, error) {
	raw, _, err := s.loader.Load(data)
	if err != nil {
		return nil, err
	}
	doc, err := s.extractor.Extract(ctx, raw)
	if err != nil {
		return nil, extractionFailed(err)
	}
	return doc, nil
}

func extractionFailed(err error) error {
	var ee *document.ExtractionError
	if !errors.As(err, &ee) {
		// Cancellation passes through untouched.
		return err
	}
	return dferrors.New(dferrors.ErrCodeExtractionFailed, "Failed to extract text: "+ee.Error(), err).
		WithDetail("page", strconv.Itoa(ee.Page)).
		WithDetail("run", strconv.Itoa(ee.Run))
}

func tooLarge(size, limit int64) *dferrors.AppError {
	return dferrors.New(dferrors.ErrCodeFileTooLarge,
		fmt.Sprintf("file is %d bytes, limit is %d", size, limit), nil).
		WithSuggestion("Raise upload.max_bytes or split the document")
}

func fileError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return dferrors.New(dferrors.ErrCodeFileNotFound, "file not found", err).WithDetail("path", path)
	case errors.Is(err, fs.ErrPermission):
		return dferrors.New(dferrors.ErrCodeFilePermission, "permission denied", err).WithDetail("path", path)
	default:
		return dferrors.New(dferrors.ErrCodeInvalidPath, err.Error(), err).WithDetail("path", path)
	}
}
