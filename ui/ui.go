// Package ui provides the live dashboard shown by serve --tui.
package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/bridge"
	"github.com/dgnsrekt/subvoice/internal/session"
	"github.com/muesli/reflow/indent"
)

const ellipsis = "…"

// StatusFunc reports the bridge status.
type StatusFunc func() bridge.StatusResponse

type (
	eventMsg   session.Event
	statusMsg  bridge.StatusResponse
	feedClosed struct{}
	refreshMsg time.Time
)

var (
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Bold(true)
)

type model struct {
	cfg     Config
	status  StatusFunc
	events  <-chan session.Event
	current bridge.StatusResponse
	feed    feed
	spinner spinner.Model
	width   int
	height  int
	closed  bool
}

// NewProgram returns a Tea program that renders status and the events
// published on hub until the user quits.
func NewProgram(cfg Config, status StatusFunc, hub *session.Hub) (*tea.Program, func()) {
	cfg = cfg.withDefaults()
	log.Debug("starting dashboard", "addr", cfg.Addr, "refresh", cfg.RefreshInterval)

	ch, unsubscribe := hub.Subscribe()
	m := newModel(cfg, status, ch)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(m, opts...), unsubscribe
}

func newModel(cfg Config, status StatusFunc, events <-chan session.Event) model {
	cfg = cfg.withDefaults()
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF"))

	m := model{
		cfg:     cfg,
		status:  status,
		events:  events,
		feed:    feed{limit: cfg.EventLimit},
		spinner: sp,
		width:   cfg.Width,
	}
	if status != nil {
		m.current = status()
	}
	return m
}

func waitForEvent(ch <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return feedClosed{}
		}
		return eventMsg(ev)
	}
}

func (m model) fetchStatus() tea.Cmd {
	if m.status == nil {
		return nil
	}
	status := m.status
	return func() tea.Msg { return statusMsg(status()) }
}

func (m model) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.cfg.RefreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.scheduleRefresh()}
	if m.events != nil {
		cmds = append(cmds, waitForEvent(m.events))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "c":
			m.feed.clear()
			return m, nil
		case "r":
			return m, m.fetchStatus()
		case "ctrl+z":
			return m, tea.Suspend
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		m.feed.add(session.Event(msg))
		// Refresh right away so the panel follows the feed.
		return m, tea.Batch(waitForEvent(m.events), m.fetchStatus())

	case feedClosed:
		m.closed = true
		return m, nil

	case statusMsg:
		m.current = bridge.StatusResponse(msg)
		return m, nil

	case refreshMsg:
		return m, tea.Batch(m.fetchStatus(), m.scheduleRefresh())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	width := m.width - 2
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	b.WriteString(detailedStatus(m.current, m.spinner.View(), width, time.Now()))
	b.WriteString("\n\n")
	b.WriteString(sectionStyle.Render("activity"))
	b.WriteString("\n")
	b.WriteString(m.feed.view(width))
	b.WriteString("\n\n")

	help := "q quit • c clear • r refresh"
	if m.cfg.Addr != "" {
		help = "ws://" + m.cfg.Addr + "/ws • " + help
	}
	if m.closed {
		help = "event feed closed • " + help
	}
	b.WriteString(helpStyle.Render(help))

	return indent.String(b.String(), 1)
}
