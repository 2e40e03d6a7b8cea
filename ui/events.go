package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/subvoice/internal/session"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

const kindWidth = 10

var kindColors = map[string]lipgloss.Color{
	session.KindCaption:    "#DDDDDD",
	session.KindTranslated: "#00AAFF",
	session.KindEnqueued:   "#888888",
	session.KindPlayed:     "#04B575",
	session.KindSkipped:    "#888888",
	session.KindDiscarded:  "#FF8800",
	session.KindFailed:     "#FF0000",
	session.KindNavigate:   "#FFFF00",
	session.KindReset:      "#FFFF00",
	session.KindSettings:   "#FFFF00",
	session.KindCues:       "#00AAFF",
	session.KindCleared:    "#FF8800",
}

// feed keeps the most recent events, oldest first.
type feed struct {
	limit  int
	events []session.Event
}

func (f *feed) add(ev session.Event) {
	f.events = append(f.events, ev)
	if over := len(f.events) - f.limit; over > 0 {
		f.events = append(f.events[:0], f.events[over:]...)
	}
}

func (f *feed) clear() { f.events = nil }

// eventLine renders one event as "15:04:05 kind      text", fitted to width.
func eventLine(ev session.Event, width int) string {
	text := ev.Text
	if ev.Detail != "" {
		text += " (" + ev.Detail + ")"
	}
	if ev.Err != "" {
		text += ": " + ev.Err
	}
	text = strings.Join(strings.Fields(text), " ")

	stamp := ev.At.Format("15:04:05")
	kind := runewidth.Truncate(ev.Kind, kindWidth, "")
	pad := strings.Repeat(" ", kindWidth-runewidth.StringWidth(kind))
	prefixWidth := runewidth.StringWidth(stamp) + 1 + kindWidth + 1

	room := width - prefixWidth
	if room < 1 {
		room = 1
	}
	text = truncate.StringWithTail(text, uint(room), ellipsis) //nolint:gosec

	color, ok := kindColors[ev.Kind]
	if !ok {
		color = "#888888"
	}
	return labelStyle.Render(stamp) + " " +
		lipgloss.NewStyle().Foreground(color).Render(kind) + pad + " " + text
}

func (f *feed) view(width int) string {
	if len(f.events) == 0 {
		return labelStyle.Render("no activity yet")
	}
	lines := make([]string, 0, len(f.events))
	for i := len(f.events) - 1; i >= 0; i-- {
		lines = append(lines, eventLine(f.events[i], width))
	}
	return strings.Join(lines, "\n")
}
