package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderDashboard renders the node dashboard.
func (m Model) renderDashboard() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderReadiness())

	// Node sections (only once a snapshot arrived)
	if m.status != nil {
		sections = append(sections, m.renderProcess())
		sections = append(sections, m.renderConsole())
	}

	if m.summary != nil && m.summary.TotalLaunches > 0 {
		sections = append(sections, m.renderHarnessStats())
	}

	if m.showOutput && (len(m.stdout) > 0 || len(m.stderr) > 0) {
		sections = append(sections, m.renderOutput())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	pid := "-"
	uptime := formatDuration(0)
	if m.status != nil {
		if m.status.PID > 0 {
			pid = fmt.Sprintf("%d", m.status.PID)
		}
		uptime = formatDuration(m.status.Uptime)
	}

	header := fmt.Sprintf(
		" nodeharness │ %s │ PID: %s │ Uptime: %s ",
		GetStateLabel(m.State()),
		pid,
		uptime,
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Readiness Section
// =============================================================================

func (m Model) renderReadiness() string {
	progress := m.ReadinessProgress()

	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(progress, barWidth)

	var status string
	switch {
	case m.status != nil && m.status.ReadyAfter > 0:
		status = statusOK.Render("✓ Ready after " + formatMs(m.status.ReadyAfter))
	case m.status != nil && m.status.State.IsTerminal():
		status = statusError.Render("✗ Exited before becoming ready")
	case m.readyPattern == "":
		status = mutedStyle.Render("No readiness pattern configured")
	default:
		status = statusInfo.Render(fmt.Sprintf("Waiting for /%s/", m.readyPattern))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Readiness"),
		progressBar,
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Process Section
// =============================================================================

func (m Model) renderProcess() string {
	s := m.status

	exit := dimStyle.Render("running")
	if s.State.IsTerminal() {
		exit = GetExitCodeStyle(s.ExitCode).Render(formatExitCode(s.ExitCode))
	}

	rows := []string{
		RenderKeyValue("Run ID", s.RunID),
		RenderKeyValue("Binary", truncate(s.Binary, m.width-26)),
		RenderKeyValue("Arguments", truncate(strings.Join(s.Args, " "), m.width-26)),
		lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render("Exit code:"), exit),
		RenderKeyValue("Log snapshot", formatBytes(int64(s.LogBytes))),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Process")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Console Statistics
// =============================================================================

func (m Model) renderConsole() string {
	s := m.status

	left := []string{
		RenderKeyValue("Stdout lines", formatNumber(int64(s.StdoutLines))),
		RenderKeyValue("Stderr lines", formatNumber(int64(s.StderrLines))),
	}

	total := m.ErrorTotal()
	right := []string{
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Error lines:"),
			GetErrorCountStyle(total).Render(fmt.Sprintf("%d", total)),
		),
	}
	for _, name := range sortedKeys(s.ErrorCounts) {
		if s.ErrorCounts[name] == 0 {
			continue
		}
		right = append(right, dimStyle.Render(fmt.Sprintf("  %-20s %d", name, s.ErrorCounts[name])))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Console"),
		renderTwoColumns(left, right, m.width-2),
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Harness Statistics
// =============================================================================

func (m Model) renderHarnessStats() string {
	s := m.summary

	rows := []string{
		RenderKeyValueWide("Launches", formatNumber(s.TotalLaunches)),
		RenderKeyValueWide("Signaled exits", formatNumber(s.Signaled)),
	}
	for _, code := range sortedCodes(s.ExitCodes) {
		rows = append(rows, RenderKeyValueWide(fmt.Sprintf("Exit code %d", code), formatNumber(s.ExitCodes[code])))
	}
	if s.ReadinessCount > 0 {
		rows = append(rows,
			RenderKeyValueWide("Readiness P50", formatMs(s.ReadinessP50)),
			RenderKeyValueWide("Readiness P95", formatMs(s.ReadinessP95)),
			RenderKeyValueWide("Readiness P99", formatMs(s.ReadinessP99)),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Harness")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Output Pane
// =============================================================================

func (m Model) renderOutput() string {
	lineWidth := m.width - 12
	var lines []string
	for _, l := range m.stdout {
		lines = append(lines, dimStyle.Render("out │ ")+stdoutLineStyle.Render(truncate(l, lineWidth)))
	}
	for _, l := range m.stderr {
		lines = append(lines, dimStyle.Render("err │ ")+stderrLineStyle.Render(truncate(l, lineWidth)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Recent Output")}, lines...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"o: toggle output",
		"r: refresh",
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := ""
	if m.metricsAddr != "" {
		right = dimStyle.Render("Metrics: " + m.metricsAddr)
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}

// =============================================================================
// Layout Helpers
// =============================================================================

// renderTwoColumns renders two columns side-by-side with a separator.
func renderTwoColumns(left, right []string, totalWidth int) string {
	colWidth := (totalWidth - 3 - 4) / 2
	if colWidth < 20 {
		colWidth = 20
	}

	leftContent := lipgloss.NewStyle().Width(colWidth).Render(lipgloss.JoinVertical(lipgloss.Left, left...))
	rightContent := lipgloss.JoinVertical(lipgloss.Left, right...)

	separator := mutedStyle.Render(" │ ")
	return lipgloss.JoinHorizontal(lipgloss.Top, leftContent, separator, rightContent)
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if max < 10 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCodes(m map[int]int64) []int {
	codes := make([]int, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}
