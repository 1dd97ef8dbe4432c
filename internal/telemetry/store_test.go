package telemetry

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return store
}

func TestNewSQLiteStore_NilDB(t *testing.T) {
	_, err := NewSQLiteStore(nil)
	assert.Error(t, err)
}

func TestSQLiteStore_ModeCounts_AreAdditive(t *testing.T) {
	store := setupTestStore(t)

	// Given: two flushes on the same day
	require.NoError(t, store.AddModeCounts("2026-10-01", map[QueryMode]int64{ModeLiteral: 10, ModeRegex: 2}))
	require.NoError(t, store.AddModeCounts("2026-10-01", map[QueryMode]int64{ModeLiteral: 5}))
	require.NoError(t, store.AddModeCounts("2026-10-03", map[QueryMode]int64{ModeRegexFallback: 1}))

	// When: reading one day and a range
	day, err := store.GetModeCounts("2026-10-01", "2026-10-01")
	require.NoError(t, err)
	all, err := store.GetModeCounts("2026-10-01", "2026-10-31")
	require.NoError(t, err)

	// Then: counts are summed
	assert.Equal(t, int64(15), day[ModeLiteral])
	assert.Equal(t, int64(2), day[ModeRegex])
	assert.Equal(t, int64(0), day[ModeRegexFallback])
	assert.Equal(t, int64(1), all[ModeRegexFallback])
}

func TestSQLiteStore_TopTerms(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.AddTermCounts(map[string]int64{"invoice": 3, "total": 1}))
	require.NoError(t, store.AddTermCounts(map[string]int64{"total": 4, "date": 2}))

	terms, err := store.GetTopTerms(2)
	require.NoError(t, err)

	assert.Equal(t, []TermCount{{Term: "total", Count: 5}, {Term: "invoice", Count: 3}}, terms)
}

func TestSQLiteStore_ZeroResultQueries_Trimmed(t *testing.T) {
	store := setupTestStore(t)

	// Given: more zero-result queries than the history keeps
	for i := 0; i < maxZeroResultRows+5; i++ {
		require.NoError(t, store.AddZeroResultQuery(fmt.Sprintf("q%d", i), time.Now()))
	}

	// When: reading everything
	queries, err := store.GetZeroResultQueries(1000)
	require.NoError(t, err)

	// Then: only the newest rows remain, newest first
	assert.Len(t, queries, maxZeroResultRows)
	assert.Equal(t, fmt.Sprintf("q%d", maxZeroResultRows+4), queries[0])
}

func TestSQLiteStore_LatencyCounts(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.AddLatencyCounts("2026-10-01", map[LatencyBucket]int64{BucketP1: 7, BucketSlow: 1}))
	require.NoError(t, store.AddLatencyCounts("2026-10-02", map[LatencyBucket]int64{BucketP1: 3}))

	counts, err := store.GetLatencyCounts("2026-10-01", "2026-10-02")
	require.NoError(t, err)

	assert.Equal(t, int64(10), counts[BucketP1])
	assert.Equal(t, int64(1), counts[BucketSlow])
}

func TestOpenSQLiteStore_CreatesFile(t *testing.T) {
	// Given: a path in a directory that does not exist yet
	path := filepath.Join(t.TempDir(), "nested", "telemetry.db")

	// When: opening with the pure-Go driver
	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)

	// Then: it is usable and closes its own connection
	require.NoError(t, store.AddTermCounts(map[string]int64{"abc": 1}))
	terms, err := store.GetTopTerms(10)
	require.NoError(t, err)
	assert.Len(t, terms, 1)
	assert.NoError(t, store.Close())
	assert.FileExists(t, path)
}

func TestLoadSnapshot_SumsWindow(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2026, 10, 7, 15, 0, 0, 0, time.UTC)

	// Given: aggregates inside and outside a 7-day window
	require.NoError(t, store.AddModeCounts("2026-10-01", map[QueryMode]int64{ModeLiteral: 4}))
	require.NoError(t, store.AddModeCounts("2026-10-07", map[QueryMode]int64{ModeRegex: 2}))
	require.NoError(t, store.AddModeCounts("2026-09-30", map[QueryMode]int64{ModeLiteral: 100}))
	require.NoError(t, store.AddLatencyCounts("2026-10-05", map[LatencyBucket]int64{BucketP5: 6}))
	require.NoError(t, store.AddTermCounts(map[string]int64{"invoice": 3}))
	require.NoError(t, store.AddZeroResultQuery("nothing", now))

	// When: loading the window
	snap, err := LoadSnapshot(store, 7, now)
	require.NoError(t, err)

	// Then: only days in range are counted
	assert.Equal(t, int64(6), snap.TotalQueries)
	assert.Equal(t, int64(4), snap.ModeCounts[ModeLiteral])
	assert.Equal(t, int64(6), snap.LatencyDistribution[BucketP5])
	assert.Equal(t, []TermCount{{Term: "invoice", Count: 3}}, snap.TopTerms)
	assert.Equal(t, []string{"nothing"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), snap.Since)
}

func TestLoadSnapshot_MinimumOneDay(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2026, 10, 7, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AddModeCounts("2026-10-06", map[QueryMode]int64{ModeLiteral: 1}))

	snap, err := LoadSnapshot(store, 0, now)
	require.NoError(t, err)

	assert.Zero(t, snap.TotalQueries)
	assert.Empty(t, snap.ZeroResultQueries)
}
