package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/subvoice/internal/audio"
	"github.com/dgnsrekt/subvoice/internal/cache"
	"github.com/dgnsrekt/subvoice/internal/caption"
	"github.com/dgnsrekt/subvoice/internal/datauri"
	"github.com/dgnsrekt/subvoice/internal/queue"
	"github.com/dgnsrekt/subvoice/internal/retry"
	"github.com/dgnsrekt/subvoice/internal/session"
	"github.com/dgnsrekt/subvoice/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBackend struct {
	err error
}

func (f *fakeBackend) Translate(_ context.Context, text, lang string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "[" + lang + "] " + text, nil
}

func (f *fakeBackend) Synthesize(_ context.Context, text, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return datauri.Encode(datauri.DefaultMIME, []byte(text)), nil
}

func (f *fakeBackend) CacheStats() cache.Stats { return cache.Stats{Capacity: 100} }

type clearableBackend struct {
	fakeBackend
	cleared int
}

func (c *clearableBackend) ClearCache() { c.cleared++ }

func newTestServer(t *testing.T) (*Server, *httptest.Server, *settings.Store) {
	t.Helper()

	store := settings.NewStore(nil)
	_ = store.Load()

	s := NewServer(session.Deps{
		Backend:  &fakeBackend{},
		Player:   audio.NewMockPlayer(time.Millisecond, audio.MockCallbacks{}),
		Settings: store,
		Queue:    queue.Config{Gap: time.Millisecond, Retry: retry.LinearBackoff(1, time.Millisecond)},
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return s, srv, store
}

func TestRouter_Handle(t *testing.T) {
	store := settings.NewStore(nil)
	_ = store.Load()
	r := NewRouter(&fakeBackend{}, store, func() bool { return true })
	ctx := context.Background()

	resp := r.Handle(ctx, Request{ID: "1", Action: ActionTranslate, Text: "hello", TargetLang: "fr"})
	if !resp.Success || resp.Text != "[fr] hello" || resp.ID != "1" {
		t.Errorf("translate = %+v", resp)
	}

	resp = r.Handle(ctx, Request{Action: ActionTranslate, Text: "hello"})
	if resp.Text != "[es] hello" {
		t.Errorf("translate without language = %+v, want default es", resp)
	}

	resp = r.Handle(ctx, Request{Action: ActionSynthesize, Text: "hola", TargetLang: "es"})
	if !resp.Success || !strings.HasPrefix(resp.AudioData, "data:audio/mpeg;base64,") {
		t.Errorf("synthesize = %+v", resp)
	}

	resp = r.Handle(ctx, Request{Action: ActionCheckSubtitles})
	if !resp.Success || resp.HasSubtitles == nil || !*resp.HasSubtitles {
		t.Errorf("checkSubtitles = %+v", resp)
	}

	resp = r.Handle(ctx, Request{Action: "explode"})
	if resp.Success || !strings.Contains(resp.Error, "unknown action") {
		t.Errorf("unknown action = %+v", resp)
	}

	resp = r.Handle(ctx, Request{Action: ActionTranslate, Text: "x", TargetLang: "not a language"})
	if resp.Success {
		t.Error("invalid language should fail")
	}
}

func TestRouter_BackendError(t *testing.T) {
	r := NewRouter(&fakeBackend{err: errors.New("offline")}, nil, nil)

	resp := r.Handle(context.Background(), Request{Action: ActionSynthesize, Text: "x"})
	if resp.Success || resp.Error != "offline" {
		t.Errorf("resp = %+v", resp)
	}

	resp = r.Handle(context.Background(), Request{Action: ActionCheckSubtitles})
	if resp.HasSubtitles == nil || *resp.HasSubtitles {
		t.Errorf("checkSubtitles without session = %+v", resp)
	}
}

func TestResponseJSON_HasSubtitlesFalse(t *testing.T) {
	has := false
	b, err := json.Marshal(Response{Success: true, HasSubtitles: &has})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(b) != `{"success":true,"hasSubtitles":false}` {
		t.Errorf("json = %s", b)
	}
}

func TestServer_HTTP(t *testing.T) {
	_, srv, store := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	body := `{"action":"translate","text":"hello","targetLang":"de"}`
	resp, err = http.Post(srv.URL+"/api/message", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("message failed: %v", err)
	}
	var msg Response
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	_ = resp.Body.Close()
	if !msg.Success || msg.Text != "[de] hello" {
		t.Errorf("message response = %+v", msg)
	}

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/settings", bytes.NewBufferString(`{"volume":40,"targetLanguage":"it"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("settings status = %d", resp.StatusCode)
	}
	if got := store.Config(); got.Volume != 40 || got.TargetLanguage != "it" || got.Speed != 100 {
		t.Errorf("settings = %+v", got)
	}

	req, _ = http.NewRequest(http.MethodPut, srv.URL+"/api/settings", bytes.NewBufferString(`{"targetLanguage":"??"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid settings status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	var st StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	_ = resp.Body.Close()
	if st.Active || st.Settings.TargetLanguage != "it" || st.Cache.Capacity != 100 {
		t.Errorf("status = %+v", st)
	}
}

func deleteStatus(t *testing.T, url string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE %s failed: %v", url, err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestServer_ClearEndpoints(t *testing.T) {
	t.Run("cache without support", func(t *testing.T) {
		_, srv, _ := newTestServer(t)
		if got := deleteStatus(t, srv.URL+"/api/cache"); got != http.StatusNotImplemented {
			t.Errorf("status = %d, want 501", got)
		}
	})

	t.Run("cache", func(t *testing.T) {
		backend := &clearableBackend{}
		s := NewServer(session.Deps{
			Backend: backend,
			Player:  audio.NewMockPlayer(time.Millisecond, audio.MockCallbacks{}),
		})
		srv := httptest.NewServer(s.Handler())
		t.Cleanup(func() {
			srv.Close()
			s.Close()
		})

		if got := deleteStatus(t, srv.URL+"/api/cache"); got != http.StatusOK {
			t.Errorf("status = %d, want 200", got)
		}
		if backend.cleared != 1 {
			t.Errorf("cleared %d times, want 1", backend.cleared)
		}
	})

	t.Run("queue without a page", func(t *testing.T) {
		_, srv, _ := newTestServer(t)
		if got := deleteStatus(t, srv.URL+"/api/queue"); got != http.StatusConflict {
			t.Errorf("status = %d, want 409", got)
		}
	})
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, in Inbound) Outbound {
	t.Helper()
	if err := conn.WriteJSON(in); err != nil {
		t.Fatalf("write %s: %v", in.Type, err)
	}
	return read(t, conn)
}

func read(t *testing.T, conn *websocket.Conn) Outbound {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out Outbound
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

func TestServer_WebSocketSession(t *testing.T) {
	s, srv, _ := newTestServer(t)
	events, unsubscribe := s.Events().Subscribe()
	defer unsubscribe()

	conn := dial(t, srv)

	if out := roundTrip(t, conn, Inbound{Type: MsgPing}); out.Type != MsgPong {
		t.Errorf("ping reply = %+v", out)
	}

	if out := roundTrip(t, conn, Inbound{Type: MsgSnapshot}); out.Type != MsgError {
		t.Errorf("snapshot before hello = %+v, want error", out)
	}

	out := roundTrip(t, conn, Inbound{Type: MsgHello, URL: "https://www.udemy.com/course/x/learn/lecture/1"})
	if out.Type != MsgWatch || out.Session == "" || len(out.Selectors) != 1 {
		t.Fatalf("hello reply = %+v", out)
	}

	err := conn.WriteJSON(Inbound{
		Type:     MsgSnapshot,
		Elements: []caption.Element{{Selector: out.Selectors[0], Text: "Good morning", Visible: true}},
	})
	if err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	timeout := time.After(2 * time.Second)
	for played := false; !played; {
		select {
		case ev := <-events:
			if ev.Kind == session.KindPlayed {
				played = true
				if ev.Text != "[es] Good morning" {
					t.Errorf("played %q", ev.Text)
				}
			}
		case <-timeout:
			t.Fatal("caption was never played")
		}
	}

	reply := roundTrip(t, conn, Inbound{Type: MsgRequest, Request: &Request{ID: "r1", Action: ActionCheckSubtitles}})
	if reply.Type != MsgResponse || reply.Response == nil || reply.Response.ID != "r1" {
		t.Fatalf("request reply = %+v", reply)
	}
	if reply.Response.HasSubtitles == nil || !*reply.Response.HasSubtitles {
		t.Errorf("hasSubtitles = %v, want true", reply.Response.HasSubtitles)
	}

	if s.Active() == nil {
		t.Error("expected an active session")
	}
}

func TestServer_WebSocketCues(t *testing.T) {
	_, srv, _ := newTestServer(t)
	conn := dial(t, srv)

	roundTrip(t, conn, Inbound{Type: MsgHello, URL: "https://www.udemy.com/lecture/2"})

	out := roundTrip(t, conn, Inbound{Type: MsgCues, VTT: "WEBVTT\n\n00:00.000 --> 00:01.000\nHi\n"})
	if out.Type != MsgCues || out.Cues != 1 {
		t.Errorf("cues reply = %+v", out)
	}
}

func TestServer_HelloUnsupportedHost(t *testing.T) {
	_, srv, _ := newTestServer(t)
	conn := dial(t, srv)

	out := roundTrip(t, conn, Inbound{Type: MsgHello, URL: "https://example.com/"})
	if out.Type != MsgError || !strings.Contains(out.Error, "unsupported host") {
		t.Errorf("reply = %+v", out)
	}
}

func TestServer_NewHelloReplacesSession(t *testing.T) {
	s, srv, _ := newTestServer(t)

	first := dial(t, srv)
	a := roundTrip(t, first, Inbound{Type: MsgHello, URL: "https://www.udemy.com/lecture/1"})

	second := dial(t, srv)
	b := roundTrip(t, second, Inbound{Type: MsgHello, URL: "https://www.youtube.com/watch?v=1"})

	if a.Session == b.Session {
		t.Fatal("expected a new session id")
	}
	if got := s.Active().ID(); got != b.Session {
		t.Errorf("active = %s, want %s", got, b.Session)
	}

	// The replaced page no longer owns a session.
	if out := roundTrip(t, first, Inbound{Type: MsgTime, Position: 1}); out.Type != MsgError {
		t.Errorf("old connection reply = %+v, want error", out)
	}
}
