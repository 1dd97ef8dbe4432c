// Package telemetry records local query statistics for docfind searches.
// Nothing leaves the machine: aggregates live in memory and are flushed
// to a SQLite file.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Query Modes
// =============================================================================

// QueryMode is the matching mode a query was executed in.
type QueryMode string

const (
	ModeLiteral       QueryMode = "literal"
	ModeRegex         QueryMode = "regex"
	ModeRegexFallback QueryMode = "regex_fallback"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP1   LatencyBucket = "p1"   // <1ms
	BucketP5   LatencyBucket = "p5"   // 1-5ms
	BucketP20  LatencyBucket = "p20"  // 5-20ms
	BucketP100 LatencyBucket = "p100" // 20-100ms
	BucketSlow LatencyBucket = "slow" // >=100ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < time.Millisecond:
		return BucketP1
	case d < 5*time.Millisecond:
		return BucketP5
	case d < 20*time.Millisecond:
		return BucketP20
	case d < 100*time.Millisecond:
		return BucketP100
	default:
		return BucketSlow
	}
}

// QueryEvent is one executed search.
type QueryEvent struct {
	Query        string
	Mode         QueryMode
	ResultCount  int
	PagesScanned int
	Latency      time.Duration
	Timestamp    time.Time
}

// =============================================================================
// Ring
// =============================================================================

// Ring is a fixed-capacity buffer that keeps the most recent items.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	full  bool
}

// NewRing creates a ring holding up to capacity items (default 100).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Add appends an item, overwriting the oldest when full.
func (r *Ring[T]) Add(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[r.next] = item
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

// Items returns the buffered items oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		return append([]T(nil), r.items[:r.next]...)
	}
	out := make([]T, 0, len(r.items))
	out = append(out, r.items[r.next:]...)
	return append(out, r.items[:r.next]...)
}

// Len returns the number of buffered items.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.items)
	}
	return r.next
}

// =============================================================================
// Terms
// =============================================================================

// TermCount is a term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// QueryTerms returns the terms a query contributes to the top-terms table.
// Regex queries count as a single term; literal queries are split on
// whitespace and lowercased, dropping one-character words.
func QueryTerms(query string, mode QueryMode) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if mode == ModeRegex {
		return []string{query}
	}
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 2 {
			terms = append(terms, w)
		}
	}
	return terms
}

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	ModeCounts          map[QueryMode]int64     `json:"mode_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	TotalMatches        int64                   `json:"total_matches"`
	PagesScanned        int64                   `json:"pages_scanned"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of queries that matched nothing.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// =============================================================================
// Store
// =============================================================================

// Store persists flushed metric deltas.
type Store interface {
	// AddModeCounts adds per-mode query counts to the given day.
	AddModeCounts(date string, counts map[QueryMode]int64) error
	GetModeCounts(from, to string) (map[QueryMode]int64, error)

	// AddTermCounts adds to the running term frequencies.
	AddTermCounts(terms map[string]int64) error
	GetTopTerms(limit int) ([]TermCount, error)

	AddZeroResultQuery(query string, at time.Time) error
	GetZeroResultQueries(limit int) ([]string, error)

	AddLatencyCounts(date string, counts map[LatencyBucket]int64) error
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	Close() error
}

// =============================================================================
// Collector
// =============================================================================

// Config configures a Collector.
type Config struct {
	TopTermsCapacity    int
	ZeroResultsCapacity int
	// FlushInterval of 0 disables the background flush.
	FlushInterval time.Duration
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 100,
		FlushInterval:       time.Minute,
	}
}

// pending holds counts recorded since the last flush.
type pending struct {
	modes     map[QueryMode]int64
	terms     map[string]int64
	latencies map[LatencyBucket]int64
	zero      []QueryEvent
}

func newPending() pending {
	return pending{
		modes:     make(map[QueryMode]int64),
		terms:     make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
	}
}

// Collector aggregates QueryEvents. Safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	modes           map[QueryMode]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *Ring[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	totalMatches    int64
	pagesScanned    int64
	start           time.Time

	delta  pending
	store  Store
	stopCh chan struct{}
	done   chan struct{}
	closed bool
}

// NewCollector creates a collector. A nil store keeps metrics in memory only.
func NewCollector(store Store, cfg Config) *Collector {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)

	c := &Collector{
		modes:       make(map[QueryMode]int64),
		topTerms:    topTerms,
		zeroResults: NewRing[string](cfg.ZeroResultsCapacity),
		latencies:   make(map[LatencyBucket]int64),
		start:       time.Now(),
		delta:       newPending(),
		store:       store,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		go c.flushLoop(cfg.FlushInterval)
	} else {
		close(c.done)
	}
	return c
}

func (c *Collector) flushLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = c.Flush()
		case <-c.stopCh:
			return
		}
	}
}

// Record adds one query to the aggregates.
func (c *Collector) Record(ev QueryEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.modes[ev.Mode]++
	c.delta.modes[ev.Mode]++
	c.totalQueries++
	c.totalMatches += int64(ev.ResultCount)
	c.pagesScanned += int64(ev.PagesScanned)

	for _, term := range QueryTerms(ev.Query, ev.Mode) {
		n, _ := c.topTerms.Get(term)
		c.topTerms.Add(term, n+1)
		c.delta.terms[term]++
	}

	if ev.ResultCount == 0 {
		c.zeroResults.Add(ev.Query)
		c.zeroResultCount++
		c.delta.zero = append(c.delta.zero, ev)
	}

	b := LatencyToBucket(ev.Latency)
	c.latencies[b]++
	c.delta.latencies[b]++
}

// Snapshot returns a copy of the in-memory aggregates.
func (c *Collector) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	modes := make(map[QueryMode]int64, len(c.modes))
	for k, v := range c.modes {
		modes[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(c.latencies))
	for k, v := range c.latencies {
		latencies[k] = v
	}

	terms := make([]TermCount, 0, c.topTerms.Len())
	for _, k := range c.topTerms.Keys() {
		if n, ok := c.topTerms.Peek(k); ok {
			terms = append(terms, TermCount{Term: k, Count: n})
		}
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})

	return &Snapshot{
		ModeCounts:          modes,
		TopTerms:            terms,
		ZeroResultQueries:   c.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        c.totalQueries,
		ZeroResultCount:     c.zeroResultCount,
		TotalMatches:        c.totalMatches,
		PagesScanned:        c.pagesScanned,
		Since:               c.start,
	}
}

// Flush writes everything recorded since the previous flush to the store.
// On failure the unflushed counts are kept for the next attempt.
func (c *Collector) Flush() error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	d := c.delta
	c.delta = newPending()
	c.mu.Unlock()

	if err := c.write(&d); err != nil {
		c.mu.Lock()
		c.merge(d)
		c.mu.Unlock()
		return err
	}
	return nil
}

// write sends d to the store, clearing each part once it is persisted.
func (c *Collector) write(d *pending) error {
	today := time.Now().Format(dateFormat)
	if len(d.modes) > 0 {
		if err := c.store.AddModeCounts(today, d.modes); err != nil {
			return err
		}
		d.modes = nil
	}
	if len(d.terms) > 0 {
		if err := c.store.AddTermCounts(d.terms); err != nil {
			return err
		}
		d.terms = nil
	}
	if len(d.latencies) > 0 {
		if err := c.store.AddLatencyCounts(today, d.latencies); err != nil {
			return err
		}
		d.latencies = nil
	}
	for len(d.zero) > 0 {
		ev := d.zero[0]
		if err := c.store.AddZeroResultQuery(ev.Query, ev.Timestamp); err != nil {
			return err
		}
		d.zero = d.zero[1:]
	}
	return nil
}

// merge folds an unflushed delta back into the pending counts.
func (c *Collector) merge(d pending) {
	for k, v := range d.modes {
		c.delta.modes[k] += v
	}
	for k, v := range d.terms {
		c.delta.terms[k] += v
	}
	for k, v := range d.latencies {
		c.delta.latencies[k] += v
	}
	c.delta.zero = append(d.zero, c.delta.zero...)
}

// Close stops the background flush, flushes once more and closes the store.
func (c *Collector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stopCh)
	<-c.done

	if c.store == nil {
		return nil
	}
	err := c.Flush()
	if cerr := c.store.Close(); err == nil {
		err = cerr
	}
	return err
}
