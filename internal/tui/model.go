package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-node-harness/internal/metrics"
	"github.com/randomizedcoder/go-node-harness/internal/supervisor"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatusMsg carries an updated node snapshot.
type StatusMsg struct {
	Status  supervisor.Status
	Summary *metrics.Summary
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// defaultOutputLines is how many console lines the output pane shows.
const defaultOutputLines = 10

// Model represents the TUI state.
type Model struct {
	// Configuration
	readyPattern string
	readyTimeout time.Duration
	metricsAddr  string
	outputLines  int

	// Current state
	status     *supervisor.Status
	summary    *metrics.Summary
	stdout     []string
	stderr     []string
	startTime  time.Time
	lastUpdate time.Time
	showOutput bool

	// Display options
	width  int
	height int

	// Sources polled on every tick
	nodeSource    NodeSource
	summarySource SummarySource

	// Quit flag
	quitting bool
}

// NodeSource provides snapshots of a supervised node. *supervisor.Node
// implements it.
type NodeSource interface {
	Status() supervisor.Status
	RecentOutput(lines int) (stdout, stderr []string)
}

// SummarySource provides the harness metrics summary. *metrics.Collector
// implements it.
type SummarySource interface {
	GenerateSummary() *metrics.Summary
}

// Config holds TUI configuration.
type Config struct {
	ReadyPattern  string
	ReadyTimeout  time.Duration
	MetricsAddr   string
	OutputLines   int
	NodeSource    NodeSource
	SummarySource SummarySource
}

// New creates a new TUI model.
func New(cfg Config) Model {
	lines := cfg.OutputLines
	if lines <= 0 {
		lines = defaultOutputLines
	}
	return Model{
		readyPattern:  cfg.ReadyPattern,
		readyTimeout:  cfg.ReadyTimeout,
		metricsAddr:   cfg.MetricsAddr,
		outputLines:   lines,
		nodeSource:    cfg.NodeSource,
		summarySource: cfg.SummarySource,
		startTime:     time.Now(),
		lastUpdate:    time.Now(),
		showOutput:    true,
		width:         80,
		height:        24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	// tea.WithAltScreen() is passed when creating the program.
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "o":
			m.showOutput = !m.showOutput
			return m, nil
		case "r":
			return m.refresh(), nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		return m.refresh(), tickCmd()

	case StatusMsg:
		status := msg.Status
		m.status = &status
		if msg.Summary != nil {
			m.summary = msg.Summary
		}
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// refresh polls the configured sources.
func (m Model) refresh() Model {
	if m.nodeSource != nil {
		status := m.nodeSource.Status()
		m.status = &status
		m.stdout, m.stderr = m.nodeSource.RecentOutput(m.outputLines)
	}
	if m.summarySource != nil {
		m.summary = m.summarySource.GenerateSummary()
	}
	m.lastUpdate = time.Now()
	return m
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the dashboard started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// State returns the last observed node state.
func (m Model) State() supervisor.State {
	if m.status == nil {
		return supervisor.StateCreated
	}
	return m.status.State
}

// ReadinessProgress returns how far the readiness wait has run (0.0 to 1.0).
// A ready node is complete; without a timeout progress is unknown.
func (m Model) ReadinessProgress() float64 {
	if m.status == nil {
		return 0
	}
	if m.status.State == supervisor.StateReady || m.status.ReadyAfter > 0 {
		return 1
	}
	if m.readyTimeout <= 0 {
		return 0
	}
	p := float64(m.status.Uptime) / float64(m.readyTimeout)
	if p > 1 {
		p = 1
	}
	return p
}

// ErrorTotal returns the number of console lines matching an error pattern.
func (m Model) ErrorTotal() int {
	if m.status == nil {
		return 0
	}
	total := 0
	for _, n := range m.status.ErrorCounts {
		total += n
	}
	return total
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendStatus sends a node snapshot to the TUI.
func SendStatus(p *tea.Program, status supervisor.Status) {
	if p != nil {
		p.Send(StatusMsg{Status: status})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatNumber formats a number with K/M suffixes.
func formatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// formatBytes formats bytes with KB/MB/GB suffixes.
func formatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// formatMs formats a duration as milliseconds.
func formatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// formatExitCode renders an exit code, or "signal" when the process was
// terminated abnormally.
func formatExitCode(code *int) string {
	if code == nil {
		return "signal"
	}
	return fmt.Sprintf("%d", *code)
}
