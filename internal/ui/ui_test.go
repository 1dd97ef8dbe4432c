package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docfind/internal/search"
	"github.com/Aman-CERP/docfind/internal/telemetry"
)

// =============================================================================
// Environment
// =============================================================================

func TestStage_Names(t *testing.T) {
	assert.Equal(t, "Extracting", StageExtracting.String())
	assert.Equal(t, "LOAD", StageLoading.Icon())
	assert.Equal(t, "DONE", StageComplete.Icon())
	assert.Equal(t, "Unknown", Stage(99).String())
}

func TestNewRenderer_PlainForNonTerminal(t *testing.T) {
	var buf bytes.Buffer

	r := NewRenderer(NewConfig(&buf))

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
	assert.False(t, IsTTY(&buf))
	assert.False(t, IsTTY(nil))
}

func TestNewConfig_HonorsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	cfg := NewConfig(&bytes.Buffer{}, WithForcePlain(true))

	assert.True(t, cfg.NoColor)
	assert.True(t, cfg.ForcePlain)
	assert.False(t, NewConfig(nil, WithNoColor(false)).NoColor)
}

// =============================================================================
// Plain renderer
// =============================================================================

func TestPlainRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(Config{Output: &buf})
	require.NoError(t, r.Start(context.Background()))

	r.UpdateProgress(ProgressEvent{Stage: StageExtracting, Current: 1, Total: 3, CurrentFile: "a.pdf"})
	r.UpdateProgress(ProgressEvent{Stage: StageLoading, Message: "reading"})
	r.AddError(ErrorEvent{File: "b.pdf", Err: errors.New("corrupt")})
	r.AddError(ErrorEvent{Err: errors.New("skipped"), IsWarn: true})
	r.Complete(CompletionStats{Files: 2, Pages: 5, Fragments: 40, Duration: 1500 * time.Millisecond, Errors: 1})
	require.NoError(t, r.Stop())

	out := buf.String()
	assert.Contains(t, out, "[EXTRACT] 1/3 - a.pdf")
	assert.Contains(t, out, "[LOAD] reading")
	assert.Contains(t, out, "ERROR: b.pdf: corrupt")
	assert.Contains(t, out, "WARN: skipped")
	assert.Contains(t, out, "Complete: 2 files, 5 pages, 40 fragments in 1.5s (1 errors)")
}

// =============================================================================
// Progress tracking
// =============================================================================

func TestProgressTracker_Stats(t *testing.T) {
	// Given: a tracker with a controlled clock
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	p := NewProgressTracker()
	p.start = start
	p.now = func() time.Time { return now }

	// When: a quarter of the files are done after 10s
	now = start.Add(10 * time.Second)
	p.Update(ProgressEvent{Stage: StageExtracting, Current: 1, Total: 4, CurrentFile: "a.pdf"})
	p.AddError(ErrorEvent{File: "x.pdf", Err: errors.New("bad")})
	p.AddError(ErrorEvent{File: "y.pdf", Err: errors.New("odd"), IsWarn: true})
	st := p.Stats()

	// Then: progress and ETA follow the average per-file time
	assert.Equal(t, 0.25, st.Progress)
	assert.Equal(t, 30*time.Second, st.ETA)
	assert.Equal(t, "a.pdf", st.CurrentFile)
	assert.Equal(t, 1, st.ErrorCount)
	assert.Equal(t, 1, st.WarnCount)
	assert.Len(t, p.Errors(), 1)
}

func TestProgressTracker_NoETAWhenDone(t *testing.T) {
	p := NewProgressTracker()
	p.Update(ProgressEvent{Stage: StageExtracting, Current: 2, Total: 2})

	st := p.Stats()

	assert.Equal(t, 1.0, st.Progress)
	assert.Zero(t, st.ETA)
}

// =============================================================================
// Sparkline
// =============================================================================

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", Sparkline(nil))
	assert.Equal(t, "▁▁", Sparkline([]float64{0, 0}))
	assert.Equal(t, "▁█", Sparkline([]float64{0, 10}))
	assert.Equal(t, "▁▄█", Sparkline([]float64{-1, 5, 10}))
}

// =============================================================================
// Results
// =============================================================================

func TestResultsRenderer_Render(t *testing.T) {
	var buf bytes.Buffer
	r := NewResultsRenderer(&buf, true)

	r.Render("world", "doc.pdf", []search.Result{
		{Page: 1, Context: "Hello World", Highlight: "World", Position: &search.Position{X: 10, Y: 0}},
		{Page: 2, Context: "other world", Highlight: "world"},
	})

	out := buf.String()
	assert.Contains(t, out, `2 matches for "world" in doc.pdf`)
	assert.Contains(t, out, "Hello [World] (x=10, y=0)")
	assert.Contains(t, out, "p.2   other [world]")
}

func TestResultsRenderer_NoResults(t *testing.T) {
	var buf bytes.Buffer
	NewResultsRenderer(&buf, true).Render("zzz", "doc.pdf", nil)

	assert.Equal(t, "No matches for \"zzz\" in doc.pdf\n", buf.String())
}

func TestResultsRenderer_Highlight(t *testing.T) {
	r := NewResultsRenderer(&bytes.Buffer{}, true)

	assert.Equal(t, "a [b] c", r.Highlight("a b c", "b"))
	assert.Equal(t, "line one", r.Highlight("line\none", "missing"))
	assert.Equal(t, "abc", r.Highlight("abc", ""))
}

func TestResultsRenderer_RenderStats(t *testing.T) {
	var buf bytes.Buffer
	r := NewResultsRenderer(&buf, true)

	r.RenderStats(&telemetry.Snapshot{
		TotalQueries:        4,
		ZeroResultCount:     1,
		TotalMatches:        12,
		PagesScanned:        9,
		ModeCounts:          map[telemetry.QueryMode]int64{telemetry.ModeRegex: 1, telemetry.ModeLiteral: 3},
		LatencyDistribution: map[telemetry.LatencyBucket]int64{telemetry.BucketP1: 4},
		TopTerms:            []telemetry.TermCount{{Term: "invoice", Count: 3}},
		ZeroResultQueries:   []string{"nothing"},
	})

	out := buf.String()
	assert.Contains(t, out, "Queries:     4")
	assert.Contains(t, out, "Zero-result: 1 (25.0%)")
	assert.Contains(t, out, "literal=3 regex=1")
	assert.Contains(t, out, "█▁▁▁▁")
	assert.Contains(t, out, "invoice")
	assert.Contains(t, out, "nothing")
}

// =============================================================================
// TUI model
// =============================================================================

func TestExtractModel_ProgressAndComplete(t *testing.T) {
	tracker := NewProgressTracker()
	m := newExtractModel(tracker, NoColorStyles())
	require.NotNil(t, m.Init())

	tracker.Update(ProgressEvent{Stage: StageExtracting, Current: 1, Total: 2, CurrentFile: "a.pdf"})
	_, cmd := m.Update(progressMsg{})
	assert.Nil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "Extracting")
	assert.Contains(t, view, "1/2")
	assert.Contains(t, view, "a.pdf")

	_, cmd = m.Update(completeMsg(CompletionStats{Files: 2, Pages: 3}))
	require.NotNil(t, cmd)
	assert.True(t, strings.HasPrefix(m.View(), "✓ Complete: 2 files, 3 pages"))
}

func TestExtractModel_CtrlCQuits(t *testing.T) {
	m := newExtractModel(NewProgressTracker(), NoColorStyles())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", m.View())
}

func TestExtractModel_ResizesBar(t *testing.T) {
	m := newExtractModel(NewProgressTracker(), NoColorStyles())

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	assert.Equal(t, 70, m.bar.Width)

	m.Update(tea.WindowSizeMsg{Width: 10, Height: 30})
	assert.Equal(t, 20, m.bar.Width)
}

func TestTUIRenderer_StopWithoutStart(t *testing.T) {
	r := NewTUIRenderer(Config{Output: &bytes.Buffer{}})

	r.UpdateProgress(ProgressEvent{Stage: StageExtracting, Current: 1, Total: 1})
	r.AddError(ErrorEvent{File: "a.pdf", Err: errors.New("x")})

	assert.NoError(t, r.Stop())
	assert.Equal(t, 1, r.tracker.Stats().ErrorCount)
}
