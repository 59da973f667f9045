// Package tui provides the terminal dashboard for the BuildMaster console.
// The dashboard is a thin presentation layer: it re-reads the controller's
// observable state on every tick and issues operator commands, but holds no
// lifecycle state of its own.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"buildmaster-console/src/build"
	"buildmaster-console/src/config"
	"buildmaster-console/src/controller"
	"buildmaster-console/src/sanitize"
)

const (
	// refreshInterval is how often the dashboard re-reads controller state.
	refreshInterval = 500 * time.Millisecond

	// logsInterval is how often the log tail is refreshed while visible.
	logsInterval = 2 * time.Second

	// logTailLines is how many log lines are requested per refresh.
	logTailLines = 200
)

// Supervisor is the controller surface the dashboard drives.
type Supervisor interface {
	View() controller.View
	Start(ctx context.Context, cfg build.Config) error
	Cancel(ctx context.Context) error
	Reset(ctx context.Context) error
}

// LogSource fetches the tail of a build's log file.
type LogSource interface {
	BuildLogs(ctx context.Context, buildID string, lines int) (string, error)
}

// refreshMsg triggers a controller state re-read.
type refreshMsg time.Time

// logsTickMsg triggers a log tail fetch.
type logsTickMsg time.Time

// logsMsg carries a fetched log tail.
type logsMsg struct {
	buildID string
	text    string
	err     error
}

// commandMsg carries the outcome of an operator command.
type commandMsg struct {
	action string
	err    error
}

// DashboardModel is the Bubble Tea model for the build dashboard.
type DashboardModel struct {
	supervisor Supervisor
	logSource  LogSource
	presets    []config.Preset
	styles     *StyleConfig

	spinner  spinner.Model
	progress progress.Model

	view      controller.View
	logLines  []string
	showLogs  bool
	presetIdx int
	lastError string

	width  int
	height int
}

// NewDashboardModel creates the dashboard. presets may be empty; the default
// build configuration is always selectable.
func NewDashboardModel(supervisor Supervisor, logSource LogSource, presets []config.Preset) DashboardModel {
	styles := DefaultStyles()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.AccentBlue)

	return DashboardModel{
		supervisor: supervisor,
		logSource:  logSource,
		presets:    presets,
		styles:     styles,
		spinner:    sp,
		progress:   progress.New(progress.WithDefaultGradient()),
		view:       supervisor.View(),
	}
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(refreshTick(), m.spinner.Tick)
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func logsTick() tea.Cmd {
	return tea.Tick(logsInterval, func(t time.Time) tea.Msg {
		return logsTickMsg(t)
	})
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(msg.Width-20, 60)

	case refreshMsg:
		m.view = m.supervisor.View()
		return m, refreshTick()

	case logsTickMsg:
		if !m.showLogs {
			return m, nil
		}
		return m, tea.Batch(m.fetchLogs(), logsTick())

	case logsMsg:
		if msg.err == nil && msg.buildID == m.view.BuildID {
			m.logLines = sanitize.CleanLines(TailLines(msg.text, logTailLines))
		}

	case commandMsg:
		if msg.err != nil {
			m.lastError = fmt.Sprintf("%s: %s", msg.action, msg.err.Error())
		} else {
			m.lastError = ""
		}
		m.view = m.supervisor.View()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m DashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "s":
		cfg := m.selectedConfig()
		return m, m.command("start", func(ctx context.Context) error {
			return m.supervisor.Start(ctx, cfg)
		})

	case "c":
		return m, m.command("cancel", func(ctx context.Context) error {
			return m.supervisor.Cancel(ctx)
		})

	case "r":
		return m, m.command("reset", func(ctx context.Context) error {
			return m.supervisor.Reset(ctx)
		})

	case "p":
		if len(m.presets) > 0 {
			// Index 0 is the built-in default config.
			m.presetIdx = (m.presetIdx + 1) % (len(m.presets) + 1)
		}

	case "l":
		m.showLogs = !m.showLogs
		if m.showLogs {
			return m, tea.Batch(m.fetchLogs(), logsTick())
		}
		m.logLines = nil
	}

	return m, nil
}

// command runs an operator command off the UI goroutine.
func (m DashboardModel) command(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), controller.DefaultStartTimeout)
		defer cancel()
		return commandMsg{action: action, err: fn(ctx)}
	}
}

func (m DashboardModel) fetchLogs() tea.Cmd {
	buildID := m.view.BuildID
	if buildID == "" || m.logSource == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), controller.DefaultRequestTimeout)
		defer cancel()
		text, err := m.logSource.BuildLogs(ctx, buildID, logTailLines)
		return logsMsg{buildID: buildID, text: text, err: err}
	}
}

// selectedConfig returns the config for the active preset slot. Slot 0 is the
// built-in default.
func (m DashboardModel) selectedConfig() build.Config {
	if m.presetIdx == 0 || m.presetIdx > len(m.presets) {
		return build.DefaultConfig()
	}
	return m.presets[m.presetIdx-1].Config
}

func (m DashboardModel) selectedPresetName() string {
	if m.presetIdx == 0 || m.presetIdx > len(m.presets) {
		return "default"
	}
	return m.presets[m.presetIdx-1].Name
}

func (m DashboardModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.TitleStyle().Render("BuildMaster Console"))
	b.WriteString("\n\n")

	b.WriteString(m.styles.PanelStyle().Render(m.renderStatus()))
	b.WriteString("\n")

	if m.view.Stalled {
		b.WriteString(m.renderStallBanner())
		b.WriteString("\n")
	}

	if m.view.Degraded {
		b.WriteString(m.styles.NoticeStyle().Render("⚠ status updates are failing; displayed state may be out of date"))
		b.WriteString("\n")
	}
	if m.view.Notice != "" {
		b.WriteString(m.styles.NoticeStyle().Render(m.view.Notice))
		b.WriteString("\n")
	}
	if m.lastError != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(m.styles.ErrorRed).Padding(0, 1).Render(m.lastError))
		b.WriteString("\n")
	}

	if m.showLogs {
		b.WriteString(m.styles.PanelStyle().Render(m.renderLogs()))
		b.WriteString("\n")
	}

	help := "s start • c cancel • r reset • p preset • l logs • q quit"
	b.WriteString(m.styles.HelpStyle().Render(help))

	return b.String()
}

func (m DashboardModel) renderStatus() string {
	var b strings.Builder
	label := func(s string) string { return TruncateAndPad(s, 10, false) }

	state := string(m.view.State)
	stateLine := m.styles.StateStyle(state).Render(strings.ToUpper(state))
	if m.view.State == controller.StateRunning || m.view.State == controller.StateStarting {
		stateLine = m.spinner.View() + " " + stateLine
	}
	b.WriteString(label("State"))
	b.WriteString(stateLine)
	b.WriteString("\n")

	b.WriteString(label("Preset"))
	b.WriteString(m.selectedPresetName())
	b.WriteString("\n")

	if m.view.BuildID != "" {
		b.WriteString(label("Build"))
		b.WriteString(m.view.BuildID)
		b.WriteString("\n")
	}

	if !m.view.StartedAt.IsZero() && !m.view.State.Terminal() && m.view.State != controller.StateIdle {
		b.WriteString(label("Elapsed"))
		b.WriteString(formatElapsed(time.Since(m.view.StartedAt)))
		b.WriteString("\n")
	}

	if snap := m.view.Last; snap != nil {
		if snap.CurrentStep != "" {
			b.WriteString(label("Step"))
			b.WriteString(Truncate(snap.CurrentStep, maxLineWidth(m.width), true))
			b.WriteString("\n")
		}
		if m.view.State == controller.StateRunning || snap.Progress > 0 {
			b.WriteString(label("Progress"))
			b.WriteString(m.progress.ViewAs(snap.Progress / 100))
			b.WriteString("\n")
		}
		if snap.Message != "" {
			b.WriteString(label("Message"))
			b.WriteString(Truncate(snap.Message, maxLineWidth(m.width), true))
			b.WriteString("\n")
		}
		if snap.Error != "" {
			b.WriteString(label("Error"))
			b.WriteString(lipgloss.NewStyle().Foreground(m.styles.ErrorRed).Render(Truncate(snap.Error, maxLineWidth(m.width), true)))
			b.WriteString("\n")
		}
		if snap.DurationSeconds > 0 && m.view.State.Terminal() {
			b.WriteString(label("Duration"))
			b.WriteString(formatElapsed(time.Duration(snap.DurationSeconds * float64(time.Second))))
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m DashboardModel) renderStallBanner() string {
	var b strings.Builder
	elapsed := formatElapsed(time.Since(m.view.StartedAt))
	b.WriteString(fmt.Sprintf("Build may be stalled (running for %s)\n", elapsed))
	for _, hint := range build.StallHints {
		b.WriteString("  • ")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	return m.styles.StallBannerStyle().Render(strings.TrimRight(b.String(), "\n"))
}

func (m DashboardModel) renderLogs() string {
	if len(m.logLines) == 0 {
		return "waiting for log output..."
	}

	height := m.logPaneHeight()
	lines := m.logLines
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}

	width := maxLineWidth(m.width)
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = Truncate(line, width, true)
	}
	return strings.Join(out, "\n")
}

func (m DashboardModel) logPaneHeight() int {
	// Status panel plus chrome takes roughly 14 rows.
	h := m.height - 14
	if h < 5 {
		h = 5
	}
	return h
}

func maxLineWidth(termWidth int) int {
	if termWidth == 0 {
		return 76
	}
	w := termWidth - 16
	if w < 20 {
		w = 20
	}
	return w
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
