package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/subvoice/internal/bridge"
	"github.com/dgnsrekt/subvoice/internal/cache"
	"github.com/dgnsrekt/subvoice/internal/langs"
	"github.com/dgnsrekt/subvoice/internal/queue"
	"github.com/dgnsrekt/subvoice/internal/settings"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

var (
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
	captionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#DDDDDD"))
	speechStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
)

// stateBadge returns the icon and color for a session state.
func stateBadge(active bool, state string) (string, lipgloss.Color) {
	switch {
	case !active:
		return "○", lipgloss.Color("#888888")
	case state == "processing":
		return "⟳", lipgloss.Color("#00AAFF")
	default:
		return "▶", lipgloss.Color("#00FF00")
	}
}

// compactStatus is the one-line header: icon, host and state.
func compactStatus(st bridge.StatusResponse, spin string) string {
	state := "waiting for page"
	host := ""
	if st.Session != nil {
		state = st.Session.State
		host = st.Session.Host
	}
	icon, color := stateBadge(st.Active, state)
	if st.Active && state == "processing" && spin != "" {
		icon = spin
	}

	out := lipgloss.NewStyle().Foreground(color).Render(icon + " " + state)
	if host != "" {
		out += labelStyle.Render("  " + host)
	}
	if st.Session != nil && st.Session.HasSubtitles {
		out += labelStyle.Render(fmt.Sprintf("  vtt:%d", st.Session.Cues))
	}
	return out
}

func settingsLine(c settings.Config) string {
	enabled := "on"
	if !c.IsEnabled {
		enabled = "off"
	}
	return fmt.Sprintf("%s %s  %s %d%%  %s %d%%  %s %s",
		labelStyle.Render("lang"), langs.Name(c.TargetLanguage),
		labelStyle.Render("vol"), c.Volume,
		labelStyle.Render("speed"), c.Speed,
		labelStyle.Render("speech"), enabled,
	)
}

func queueLine(q queue.Stats) string {
	playing := "idle"
	if q.Playing {
		playing = "playing"
	}
	line := fmt.Sprintf("%s %d pending, %s  %s %s  %s %s",
		labelStyle.Render("queue"), q.Pending, playing,
		labelStyle.Render("played"), humanize.Comma(q.Played),
		labelStyle.Render("dropped"), humanize.Comma(q.Skipped+q.Discarded),
	)
	if !q.LastPlay.IsZero() {
		line += labelStyle.Render("  last " + humanize.Time(q.LastPlay))
	}
	return line
}

func cacheLine(c cache.Stats) string {
	line := fmt.Sprintf("%s %d/%d  %s  %s %.0f%%",
		labelStyle.Render("cache"), c.Entries, c.Capacity,
		humanize.Bytes(uint64(max(c.Bytes, 0))), //nolint:gosec
		labelStyle.Render("hits"), c.HitRate*100,
	)
	if c.Evictions > 0 {
		line += fmt.Sprintf("  %s %s", labelStyle.Render("evicted"), humanize.Comma(c.Evictions))
	}
	return line
}

// detailedStatus renders the status panel fitted to width.
func detailedStatus(st bridge.StatusResponse, spin string, width int, now time.Time) string {
	lines := []string{
		headerStyle.Render("subvoice") + "  " + compactStatus(st, spin),
		settingsLine(st.Settings),
	}
	if st.Session != nil {
		lines = append(lines, queueLine(st.Session.Queue))
		if !st.Session.StartedAt.IsZero() {
			lines = append(lines, labelStyle.Render("session started "+humanize.RelTime(st.Session.StartedAt, now, "ago", "from now")))
		}
	}
	lines = append(lines, cacheLine(st.Cache))

	for i, l := range lines {
		lines[i] = truncate.StringWithTail(l, uint(max(width, 1)), ellipsis) //nolint:gosec
	}

	if st.Session != nil && st.Session.LastCaption != "" {
		lines = append(lines, "",
			captionStyle.Render(wordwrap.String(st.Session.LastCaption, width)),
			speechStyle.Render(wordwrap.String(st.Session.LastTranslation, width)),
		)
	}
	return strings.Join(lines, "\n")
}
