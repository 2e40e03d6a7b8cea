package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/subvoice/internal/bridge"
	"github.com/dgnsrekt/subvoice/internal/cache"
	"github.com/dgnsrekt/subvoice/internal/queue"
	"github.com/dgnsrekt/subvoice/internal/session"
	"github.com/dgnsrekt/subvoice/internal/settings"
	"github.com/mattn/go-runewidth"
)

func activeStatus() bridge.StatusResponse {
	cfg := settings.Defaults()
	return bridge.StatusResponse{
		Active: true,
		Session: &session.Status{
			Host:            "www.youtube.com",
			State:           "processing",
			Queue:           queue.Stats{Pending: 2, Played: 1500},
			LastCaption:     "hello world",
			LastTranslation: "hola mundo",
		},
		Settings: cfg,
		Cache:    cache.Stats{Capacity: 100, Entries: 3, Bytes: 2048, HitRate: 0.5},
	}
}

func TestModel_EventsFeed(t *testing.T) {
	ch := make(chan session.Event, 1)
	m := newModel(Config{EventLimit: 2}, nil, ch)

	for _, text := range []string{"one", "two", "three"} {
		next, _ := m.Update(eventMsg(session.Event{Kind: session.KindCaption, Text: text, At: time.Now()}))
		m = next.(model)
	}

	if got := len(m.feed.events); got != 2 {
		t.Fatalf("feed holds %d events, want 2", got)
	}
	if m.feed.events[0].Text != "two" || m.feed.events[1].Text != "three" {
		t.Errorf("feed = %+v, want two then three", m.feed.events)
	}

	view := m.View()
	if strings.Contains(view, "one") {
		t.Error("oldest event should have been dropped")
	}
	if strings.Index(view, "three") > strings.Index(view, "two") {
		t.Error("newest event should be listed first")
	}
}

func TestModel_Keys(t *testing.T) {
	m := newModel(Config{}, nil, nil)
	m.feed.add(session.Event{Kind: session.KindPlayed, Text: "hola"})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	m = next.(model)
	if len(m.feed.events) != 0 {
		t.Error("c should clear the feed")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestModel_StatusRefresh(t *testing.T) {
	calls := 0
	status := func() bridge.StatusResponse {
		calls++
		return activeStatus()
	}
	m := newModel(Config{}, status, nil)
	if calls != 1 {
		t.Fatalf("status called %d times on start, want 1", calls)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	msg := cmd()
	next, _ := m.Update(msg)
	m = next.(model)
	if calls != 2 {
		t.Errorf("status called %d times, want 2", calls)
	}
	if !m.current.Active {
		t.Error("status was not applied")
	}
}

func TestModel_FeedClosed(t *testing.T) {
	ch := make(chan session.Event)
	close(ch)
	m := newModel(Config{}, nil, ch)

	msg := waitForEvent(ch)()
	next, _ := m.Update(msg)
	if !next.(model).closed {
		t.Error("model should note the closed feed")
	}
}

func TestDetailedStatus(t *testing.T) {
	view := detailedStatus(activeStatus(), "", 80, time.Now())
	for _, want := range []string{
		"www.youtube.com",
		"processing",
		"Spanish",
		"2 pending",
		"1,500",
		"2.0 kB",
		"50%",
		"hello world",
		"hola mundo",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("status view missing %q:\n%s", want, view)
		}
	}
}

func TestDetailedStatus_Inactive(t *testing.T) {
	view := detailedStatus(bridge.StatusResponse{Settings: settings.Defaults()}, "", 80, time.Now())
	if !strings.Contains(view, "waiting for page") {
		t.Errorf("inactive view = %q", view)
	}
	if strings.Contains(view, "queue") {
		t.Error("inactive view should not show a queue line")
	}
}

func TestEventLine_FitsWidth(t *testing.T) {
	ev := session.Event{
		Kind: session.KindFailed,
		Text: strings.Repeat("palabra ", 40),
		Err:  "boom",
		At:   time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC),
	}

	for _, width := range []int{30, 60, 120} {
		line := eventLine(ev, width)
		if w := runewidth.StringWidth(line); w > width {
			t.Errorf("width %d: line is %d cells: %q", width, w, line)
		}
		if !strings.HasPrefix(line, "12:30:00 failed") {
			t.Errorf("width %d: line = %q", width, line)
		}
	}
}
