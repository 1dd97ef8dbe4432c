package ui

import (
	"sync"
	"time"
)

// ProgressTracker holds batch progress. It is safe for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	current     int
	total       int
	currentFile string
	start       time.Time
	errors      []ErrorEvent
	warnings    []ErrorEvent
	lastETA     time.Duration
	now         func() time.Time
}

// ProgressStats is a snapshot of a ProgressTracker.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	Elapsed     time.Duration
	CurrentFile string
	ErrorCount  int
	WarnCount   int
}

// NewProgressTracker creates a tracker starting now.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{start: time.Now(), now: time.Now}
}

// Update records an event.
func (p *ProgressTracker) Update(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Stage != p.stage {
		p.lastETA = 0
	}
	p.stage = event.Stage
	p.current = event.Current
	if event.Total > 0 {
		p.total = event.Total
	}
	if event.CurrentFile != "" {
		p.currentFile = event.CurrentFile
	}
}

// AddError records a failed or skipped file.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Errors returns a copy of the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.errors...)
}

// Stats returns a snapshot. ETA is smoothed so it does not jump between
// files of very different sizes.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.now().Sub(p.start)
	stats := ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Elapsed:     elapsed,
		CurrentFile: p.currentFile,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
	}
	if p.total > 0 {
		stats.Progress = float64(p.current) / float64(p.total)
		if stats.Progress > 1 {
			stats.Progress = 1
		}
	}
	if p.current > 0 && p.current < p.total {
		perItem := elapsed / time.Duration(p.current)
		eta := perItem * time.Duration(p.total-p.current)
		if p.lastETA > 0 {
			eta = time.Duration(0.3*float64(eta) + 0.7*float64(p.lastETA))
		}
		p.lastETA = eta
		stats.ETA = eta
	}
	return stats
}
