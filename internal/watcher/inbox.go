package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/panjf2000/ants/v2"

	dferrors "github.com/Aman-CERP/docfind/internal/errors"
	"github.com/Aman-CERP/docfind/internal/store"
)

// Ingester stores a document read from disk.
type Ingester interface {
	IngestFile(ctx context.Context, path string) (*store.Record, error)
}

// Options configures an Inbox.
type Options struct {
	DebounceWindow time.Duration
	Workers        int
	// Extensions lists the lowercase suffixes that are ingested.
	Extensions []string
	// Settle controls how long a growing file is waited on.
	Settle dferrors.RetryConfig
	Logger *slog.Logger
	// OnIngest is called after every attempt, with either a record or an error.
	OnIngest func(path string, rec *store.Record, err error)
}

// DefaultOptions returns the inbox defaults.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 200 * time.Millisecond,
		Workers:        2,
		Extensions:     []string{".pdf", ".json"},
		Settle:         dferrors.DefaultRetryConfig(),
	}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = d.DebounceWindow
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if len(o.Extensions) == 0 {
		o.Extensions = d.Extensions
	}
	if o.Settle.MaxRetries == 0 && o.Settle.InitialDelay == 0 {
		o.Settle = d.Settle
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Inbox watches one directory and ingests every new document placed in it.
type Inbox struct {
	dir      string
	ingester Ingester
	opts     Options
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInbox creates an inbox for dir. The directory is created on Run.
func NewInbox(dir string, ingester Ingester, opts Options) *Inbox {
	opts = opts.WithDefaults()
	return &Inbox{
		dir:      dir,
		ingester: ingester,
		opts:     opts,
		logger:   opts.Logger.With(slog.String("component", "watcher")),
		seen:     make(map[string]struct{}),
	}
}

// Dir returns the watched directory.
func (in *Inbox) Dir() string {
	return in.dir
}

// Run ingests files already present in the directory, then watches it until
// ctx is cancelled. In-flight ingestions finish before Run returns.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return dferrors.New(dferrors.ErrCodeInvalidPath, "cannot create watch directory", err).
			WithDetail("path", in.dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()
	if err := fw.Add(in.dir); err != nil {
		return fmt.Errorf("watch %s: %w", in.dir, err)
	}

	pool, err := ants.NewPool(in.opts.Workers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	defer wg.Wait()

	in.logger.Info("watching inbox",
		slog.String("dir", in.dir),
		slog.Int("workers", in.opts.Workers))

	if err := in.scan(ctx, pool, &wg); err != nil {
		return err
	}

	debouncer := NewDebouncer(in.opts.DebounceWindow, in.logger)
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("inbox stopped", slog.String("dir", in.dir))
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if fe, keep := fromFsnotify(ev); keep {
				debouncer.Add(fe)
			}
		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			in.logger.Warn("fsnotify error", slog.String("error", werr.Error()))
		case batch := <-debouncer.Output():
			for _, fe := range batch {
				if fe.Operation == OpCreate || fe.Operation == OpModify {
					in.submit(ctx, pool, &wg, fe.Path)
				}
			}
		}
	}
}

func (in *Inbox) scan(ctx context.Context, pool *ants.Pool, wg *sync.WaitGroup) error {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return dferrors.New(dferrors.ErrCodeInvalidPath, "cannot read watch directory", err).
			WithDetail("path", in.dir)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		in.submit(ctx, pool, wg, filepath.Join(in.dir, e.Name()))
	}
	return nil
}

// submit queues path unless it is filtered out or already taken.
func (in *Inbox) submit(ctx context.Context, pool *ants.Pool, wg *sync.WaitGroup, path string) {
	if !in.accepts(path) || !in.claim(path) {
		return
	}
	wg.Add(1)
	err := pool.Submit(func() {
		defer wg.Done()
		in.ingest(ctx, path)
	})
	if err != nil {
		wg.Done()
		in.release(path)
		in.logger.Warn("ingest not scheduled",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func (in *Inbox) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, want := range in.opts.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// claim marks path as handled. Each file is ingested once per Run.
func (in *Inbox) claim(path string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.seen[path]; ok {
		return false
	}
	in.seen[path] = struct{}{}
	return true
}

func (in *Inbox) release(path string) {
	in.mu.Lock()
	delete(in.seen, path)
	in.mu.Unlock()
}

func (in *Inbox) ingest(ctx context.Context, path string) {
	if _, err := waitForStable(ctx, path, in.opts.Settle); err != nil {
		in.report(path, nil, err)
		return
	}
	rec, err := in.ingester.IngestFile(ctx, path)
	in.report(path, rec, err)
}

func (in *Inbox) report(path string, rec *store.Record, err error) {
	if err != nil {
		in.logger.Warn("ingest failed",
			append([]any{slog.String("path", path)}, dferrors.LogAttrs(err)...)...)
	} else {
		in.logger.Info("ingested",
			slog.String("path", path),
			slog.String("id", rec.ID),
			slog.Int("page_count", rec.Document.TotalPages))
	}
	if in.opts.OnIngest != nil {
		in.opts.OnIngest(path, rec, err)
	}
}

// waitForStable polls the file size until two consecutive reads agree.
func waitForStable(ctx context.Context, path string, cfg dferrors.RetryConfig) (int64, error) {
	last := int64(-1)
	cfg.ShouldRetry = dferrors.IsRetryable
	return dferrors.RetryWithResult(ctx, cfg, func() (int64, error) {
		info, err := os.Stat(path)
		if err != nil {
			return 0, dferrors.New(dferrors.ErrCodeFileNotFound, "file disappeared", err).
				WithDetail("path", path)
		}
		size := info.Size()
		if size != last || size == 0 {
			last = size
			return 0, dferrors.New(dferrors.ErrCodeFileUnstable, "file is still being written", nil).
				WithDetail("path", path)
		}
		return size, nil
	})
}
