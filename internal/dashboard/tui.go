package dashboard

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"crewcall-sim/internal/device"
	"crewcall-sim/internal/fleet"
	"crewcall-sim/internal/metrics"
)

const (
	colorReset   = "\033[0m"
	colorGray    = "\033[90m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"

	maxEventLines = 1000
	maxAlertLines = 100
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// eventMsg carries a formatted device event line.
type eventMsg struct{ line string }

// alertMsg carries a formatted collector alert line.
type alertMsg struct{ line string }

// statsMsg refreshes the device table and footer aggregates.
type statsMsg struct {
	devices []fleet.Summary
	stats   fleet.FleetStatistics
}

// TUI renders the live fleet using a bubbletea program. It doubles as a
// device event sink and a metrics alert receiver.
type TUI struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUI starts the bubbletea program and returns the dashboard.
func NewTUI() *TUI {
	t := &TUI{done: make(chan struct{})}
	t.sendSignal.Store(true)
	p := tea.NewProgram(newModel(), tea.WithAltScreen())
	t.program = p
	go func() {
		_, _ = p.Run()
		close(t.done)
		if t.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return t
}

func priorityColor(p device.Priority) string {
	switch p {
	case device.PriorityCritical:
		return colorRed
	case device.PriorityHigh:
		return colorYellow
	case device.PriorityLow:
		return colorGray
	default:
		return colorGreen
	}
}

// WriteEvent implements device.EventSink.
func (t *TUI) WriteEvent(e device.Event) error {
	line := fmt.Sprintf("%s[%s]%s %s%-14s%s %sdevice=%s%s %sprio=%s%s",
		colorGray, e.Timestamp.Format(time.RFC3339), colorReset,
		colorCyan, e.Kind, colorReset,
		colorBlue, e.DeviceID, colorReset,
		priorityColor(e.Priority), e.Priority, colorReset)
	t.program.Send(eventMsg{line: line})
	return nil
}

// Alert feeds a collector alert into the alert section. Satisfies
// metrics.AlertFunc via method value.
func (t *TUI) Alert(a metrics.Alert) {
	col := colorYellow
	if a.Severity == metrics.SeverityCritical {
		col = colorRed
	}
	line := fmt.Sprintf("%s[%s]%s %s%s%s %s",
		colorGray, a.Timestamp.Format(time.RFC3339), colorReset,
		col, strings.ToUpper(string(a.Severity)), colorReset,
		a.Message)
	t.program.Send(alertMsg{line: line})
}

// UpdateStats refreshes the device table. Call it on a timer from the
// owner of the registry.
func (t *TUI) UpdateStats(devices []fleet.Summary, stats fleet.FleetStatistics) {
	t.program.Send(statsMsg{devices: devices, stats: stats})
}

// Close shuts down the TUI program and waits for cleanup.
func (t *TUI) Close() error {
	t.sendSignal.Store(false)
	if t.program != nil {
		t.program.Send(tea.Quit())
	}
	if t.done != nil {
		<-t.done
	}
	return nil
}

type model struct {
	table      table.Model
	vp         viewport.Model
	events     []string
	alerts     []string
	stats      fleet.FleetStatistics
	wrap       bool
	autoscroll bool
	height     int
}

func newModel() model {
	cols := []table.Column{
		{Title: "Device", Width: 28},
		{Title: "Type", Width: 10},
		{Title: "Room", Width: 14},
		{Title: "State", Width: 9},
		{Title: "Batt", Width: 6},
		{Title: "Sig", Width: 6},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(10))
	return model{
		table:      t,
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.height = msg.Height
		m.resize()
		m.refresh()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refresh()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.vp.LineDown(1)
			case "k", "up":
				m.vp.LineUp(1)
			case "pgdown":
				m.vp.LineDown(10)
			case "pgup":
				m.vp.LineUp(10)
			}
		}
		return m, nil
	case eventMsg:
		m.events = append(m.events, msg.line)
		if len(m.events) > maxEventLines {
			m.events = m.events[len(m.events)-maxEventLines:]
		}
		m.refresh()
	case alertMsg:
		m.alerts = append(m.alerts, msg.line)
		if len(m.alerts) > maxAlertLines {
			m.alerts = m.alerts[len(m.alerts)-maxAlertLines:]
		}
		m.resize()
	case statsMsg:
		rows := make([]table.Row, 0, len(msg.devices))
		for _, d := range msg.devices {
			rows = append(rows, table.Row{
				d.UID, string(d.Type), d.Room, string(d.State),
				fmt.Sprintf("%.0f%%", d.Status.Battery),
				fmt.Sprintf("%.0f%%", d.Status.Signal),
			})
		}
		m.table.SetRows(rows)
		m.stats = msg.stats
	}
	return m, nil
}

func (m *model) resize() {
	alertLines := len(m.recentAlerts())
	h := m.height - m.table.Height() - alertLines - 6
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
}

func (m *model) refresh() {
	var lines []string
	for _, l := range m.events {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

// recentAlerts caps the alert section at a fifth of the screen.
func (m model) recentAlerts() []string {
	max := m.height / 5
	if max < 1 {
		max = 1
	}
	if len(m.alerts) <= max {
		return m.alerts
	}
	return m.alerts[len(m.alerts)-max:]
}

func (m model) View() string {
	divider := strings.Repeat("─", m.vp.Width)
	alerts := "none"
	if recent := m.recentAlerts(); len(recent) > 0 {
		alerts = strings.Join(recent, "\n")
	}
	sections := []string{
		m.table.View(),
		divider,
		m.vp.View(),
		divider,
		"Alerts:",
		alerts,
		divider,
		m.renderFooter(),
	}
	return strings.Join(sections, "\n")
}

func (m model) renderFooter() string {
	scrollColor := lipgloss.Color("10")
	if !m.autoscroll {
		scrollColor = lipgloss.Color("9")
	}
	wrapColor := lipgloss.Color("9")
	if m.wrap {
		wrapColor = lipgloss.Color("10")
	}
	scrollIndicator := lipgloss.NewStyle().Foreground(scrollColor).Render("●")
	wrapIndicator := lipgloss.NewStyle().Foreground(wrapColor).Render("●")
	summary := fmt.Sprintf("%sFLEET%s %sdevices=%d%s %sonline=%d%s %savg_batt=%.1f%s %savg_sig=%.1f%s",
		colorBlue, colorReset,
		colorGreen, m.stats.Total, colorReset,
		colorCyan, m.stats.Online, colorReset,
		colorYellow, m.stats.AvgBattery, colorReset,
		colorMagenta, m.stats.AvgSignal, colorReset)
	return fmt.Sprintf("%s | Scroll %s | Wrap %s | q quits", summary, scrollIndicator, wrapIndicator)
}
