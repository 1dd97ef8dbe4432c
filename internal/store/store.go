// Package store keeps processed documents addressable by identifier.
package store

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/docfind/internal/document"
	dferrors "github.com/Aman-CERP/docfind/internal/errors"
)

// DefaultMaxDocuments bounds a MemoryRepository when no size is given.
const DefaultMaxDocuments = 100

// Record is a stored document with its upload metadata. Records are
// immutable once saved.
type Record struct {
	ID         string
	Name       string
	UploadedAt time.Time
	Size       int64
	Format     string
	Document   *document.ProcessedDocument

	// seq orders records saved within one clock tick.
	seq uint64
}

// Info is the public summary of a record.
type Info struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	UploadDate time.Time `json:"uploadDate"`
	PageCount  int       `json:"pageCount"`
}

// Info summarizes the record.
func (r *Record) Info() Info {
	pages := 0
	if r.Document != nil {
		pages = r.Document.TotalPages
	}
	return Info{ID: r.ID, Name: r.Name, UploadDate: r.UploadedAt, PageCount: pages}
}

// Repository stores processed documents.
type Repository interface {
	// Save assigns an identifier and upload time, then publishes the record.
	Save(ctx context.Context, rec Record) (*Record, error)
	// Get returns the record or an ERR_208_DOCUMENT_NOT_FOUND error.
	Get(ctx context.Context, id string) (*Record, error)
	// List returns all records, newest first.
	List(ctx context.Context) ([]*Record, error)
	Delete(ctx context.Context, id string) error
}

// MemoryRepository is an in-memory Repository that evicts the least
// recently used record once full.
type MemoryRepository struct {
	cache  *lru.Cache[string, *Record]
	logger *slog.Logger
	now    func() time.Time
	seq    atomic.Uint64
}

// Option configures a MemoryRepository.
type Option func(*MemoryRepository)

// WithLogger sets the repository logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *MemoryRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the upload timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *MemoryRepository) {
		r.now = now
	}
}

// NewMemoryRepository creates a repository holding up to maxDocuments records.
func NewMemoryRepository(maxDocuments int, opts ...Option) (*MemoryRepository, error) {
	if maxDocuments <= 0 {
		maxDocuments = DefaultMaxDocuments
	}
	r := &MemoryRepository{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}

	cache, err := lru.NewWithEvict(maxDocuments, func(id string, rec *Record) {
		r.logger.Info("document evicted", slog.String("document_id", id), slog.String("name", rec.Name))
	})
	if err != nil {
		return nil, dferrors.Wrap(dferrors.ErrCodeInternal, err)
	}
	r.cache = cache
	return r, nil
}

// Save implements Repository.
func (r *MemoryRepository) Save(ctx context.Context, rec Record) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rec.Document == nil {
		return nil, dferrors.ValidationError("record has no document", nil)
	}

	rec.ID = uuid.NewString()
	rec.UploadedAt = r.now()
	rec.seq = r.seq.Add(1)

	r.cache.Add(rec.ID, &rec)

	r.logger.Debug("document saved",
		slog.String("document_id", rec.ID),
		slog.Int("pages", rec.Document.TotalPages))
	return &rec, nil
}

// Get implements Repository. A hit marks the record as recently used.
func (r *MemoryRepository) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, dferrors.New(dferrors.ErrCodeMissingDocument, "File ID is required", nil)
	}
	rec, ok := r.cache.Get(id)
	if !ok {
		return nil, dferrors.NotFound(id)
	}
	return rec, nil
}

// List implements Repository.
func (r *MemoryRepository) List(ctx context.Context) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs := r.cache.Values()

	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.UploadedAt.Equal(b.UploadedAt) {
			return a.UploadedAt.After(b.UploadedAt)
		}
		return a.seq > b.seq
	})
	return recs, nil
}

// Delete implements Repository.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !r.cache.Remove(id) {
		return dferrors.NotFound(id)
	}
	return nil
}

// Len returns the number of stored records.
func (r *MemoryRepository) Len() int {
	return r.cache.Len()
}
