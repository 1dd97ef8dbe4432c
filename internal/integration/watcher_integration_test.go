package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dferrors "github.com/Aman-CERP/docfind/internal/errors"
	"github.com/Aman-CERP/docfind/internal/search"
	"github.com/Aman-CERP/docfind/internal/store"
	"github.com/Aman-CERP/docfind/internal/watcher"
)

type ingested struct {
	path string
	rec  *store.Record
	err  error
}

// dropFile writes data under a dotfile name and renames it into place, so the
// inbox only ever sees the complete file.
func dropFile(t *testing.T, dir, name, data string) {
	t.Helper()
	tmp := filepath.Join(dir, "."+name+".tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(data), 0o644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, name)))
}

func next(t *testing.T, ch <-chan ingested) ingested {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the inbox")
		return ingested{}
	}
}

// =============================================================================
// Inbox to search
// =============================================================================

func TestInbox_DroppedDocumentBecomesSearchable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Given: an inbox feeding the real ingest service
	svc := newService(t)
	dir := t.TempDir()
	done := make(chan ingested, 4)
	inbox := watcher.NewInbox(dir, svc, watcher.Options{
		DebounceWindow: 50 * time.Millisecond,
		Settle: dferrors.RetryConfig{
			MaxRetries:   5,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     50 * time.Millisecond,
			Multiplier:   2,
		},
		OnIngest: func(path string, rec *store.Record, err error) {
			done <- ingested{path: path, rec: rec, err: err}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- inbox.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-errCh)
	}()

	// When: a document is dropped into the directory
	time.Sleep(100 * time.Millisecond)
	dropFile(t, dir, "report.json", reportDoc)
	got := next(t, done)

	// Then: it is stored under its file name and can be searched
	require.NoError(t, got.err)
	assert.Equal(t, "report.json", filepath.Base(got.path))
	assert.Equal(t, "report.json", got.rec.Name)

	rec, results, err := svc.Search(ctx, got.rec.ID, "appendix", search.Filters{})
	require.NoError(t, err)
	assert.Equal(t, got.rec.ID, rec.ID)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Page)

	recs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestInbox_CorruptDocumentIsReportedNotFatal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Given: a running inbox
	svc := newService(t)
	dir := t.TempDir()
	done := make(chan ingested, 4)
	inbox := watcher.NewInbox(dir, svc, watcher.Options{
		DebounceWindow: 50 * time.Millisecond,
		OnIngest: func(path string, rec *store.Record, err error) {
			done <- ingested{path: path, rec: rec, err: err}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- inbox.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-errCh)
	}()
	time.Sleep(100 * time.Millisecond)

	// When: an unreadable file arrives, followed by a good one
	dropFile(t, dir, "broken.json", `{"Pages": [`)
	bad := next(t, done)
	dropFile(t, dir, "report.json", reportDoc)
	good := next(t, done)

	// Then: the failure is reported and the inbox keeps going
	require.Error(t, bad.err)
	assert.Equal(t, "broken.json", filepath.Base(bad.path))
	require.NoError(t, good.err)
	assert.Equal(t, "report.json", good.rec.Name)
}
