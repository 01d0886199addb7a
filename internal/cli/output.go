package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/randalmurphal/taskgraph/internal/notify"
	"github.com/randalmurphal/taskgraph/internal/risk"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// defaultWidth is used when stdout is not a terminal.
const defaultWidth = 100

var (
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	mediumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	lowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// useColor reports whether styled output should be emitted.
func useColor() bool {
	return !noColor && !jsonOut && isatty.IsTerminal(os.Stdout.Fd())
}

// terminalWidth returns the width of stdout, or defaultWidth.
func terminalWidth() int {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

func style(s lipgloss.Style, text string) string {
	if !useColor() {
		return text
	}
	return s.Render(text)
}

func riskLevel(l risk.Level) string {
	switch l {
	case risk.LevelCritical:
		return style(criticalStyle, string(l))
	case risk.LevelHigh:
		return style(highStyle, string(l))
	case risk.LevelMedium:
		return style(mediumStyle, string(l))
	default:
		return style(lowStyle, string(l))
	}
}

func statusLabel(s task.Status) string {
	switch s {
	case task.StatusDone:
		return style(doneStyle, string(s))
	case task.StatusInProgress:
		return style(progressStyle, string(s))
	default:
		return string(s)
	}
}

func priorityLabel(p task.Priority) string {
	if p == task.PriorityHigh {
		return style(highStyle, string(p))
	}
	return string(p)
}

func severityLabel(s notify.Severity) string {
	switch s {
	case notify.SeverityCritical:
		return style(criticalStyle, string(s))
	case notify.SeverityWarning:
		return style(highStyle, string(s))
	case notify.SeveritySuccess:
		return style(doneStyle, string(s))
	default:
		return string(s)
	}
}

// truncate shortens s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 3 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// info prints a line unless --quiet is set.
func info(w io.Writer, format string, args ...any) {
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
