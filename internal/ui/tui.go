package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer draws a live spinner and progress bar with bubbletea.
type TUIRenderer struct {
	cfg     Config
	tracker *ProgressTracker
	model   *extractModel

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. Nothing is drawn until Start.
func NewTUIRenderer(cfg Config) *TUIRenderer {
	tracker := NewProgressTracker()
	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   newExtractModel(tracker, GetStyles(cfg.NoColor)),
	}
}

// Start runs the bubbletea program in the background.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		return nil
	}

	r.program = tea.NewProgram(r.model, tea.WithOutput(r.cfg.Output), tea.WithContext(ctx))
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.Update(event)
	r.send(progressMsg(event))
}

func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)
	r.send(errorMsg(event))
}

// Complete shows the summary and ends the program.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.send(completeMsg(stats))
}

// Stop waits for the program to exit, forcing it after a short grace period.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p, done := r.program, r.done
	r.mu.Unlock()
	if p == nil {
		return nil
	}
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		p.Quit()
		<-done
	}
	return nil
}

type progressMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats

type extractModel struct {
	tracker  *ProgressTracker
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
	complete bool
	quitting bool
	stats    CompletionStats
}

func newExtractModel(tracker *ProgressTracker, styles Styles) *extractModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &extractModel{
		tracker: tracker,
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorLime),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		styles: styles,
	}
}

func (m *extractModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *extractModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = max(msg.Width-30, 20)
	case progressMsg, errorMsg:
		return m, nil
	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *extractModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.styles.Success.Render("✓ "+completionLine(m.stats)) + "\n"
	}

	st := m.tracker.Stats()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s %s\n",
		m.spinner.View(),
		m.styles.Active.Render(st.Stage.String()),
		m.bar.ViewAs(st.Progress),
		m.styles.Label.Render(fmt.Sprintf("%d/%d", st.Current, st.Total)))
	if st.CurrentFile != "" {
		sb.WriteString(m.styles.Dim.Render("  "+st.CurrentFile) + "\n")
	}
	if st.ETA > 0 {
		sb.WriteString(m.styles.Label.Render("  eta "+st.ETA.Round(time.Second).String()) + "\n")
	}
	if st.ErrorCount > 0 {
		sb.WriteString(m.styles.Error.Render(fmt.Sprintf("  %d failed", st.ErrorCount)) + "\n")
	}
	return sb.String()
}
