package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dgnsrekt/subvoice/internal/remote"
	"github.com/dgnsrekt/subvoice/internal/retry"
)

func newRemoteService(t *testing.T, calls *atomic.Int32) *Service {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tts":
			calls.Add(1)
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3fake-mp3"))
		case "/translate":
			_, _ = w.Write([]byte(`[[["hola","hello",null,null,1]],null,"en"]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := remote.DefaultConfig()
	cfg.TranslateURL = srv.URL + "/translate"
	cfg.SpeechURL = srv.URL + "/tts"
	cfg.RequestInterval = 0
	cfg.Retry = retry.FlatDelay(1, 0)
	return NewRemote(cfg, 0)
}

func TestService_SynthesizeIsCached(t *testing.T) {
	var calls atomic.Int32
	s := newRemoteService(t, &calls)
	ctx := context.Background()

	first, err := s.Synthesize(ctx, "hola", "es")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	second, err := s.Synthesize(ctx, "hola", "es")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if first != second {
		t.Error("cached audio differs from the first result")
	}
	if calls.Load() != 1 {
		t.Errorf("network calls = %d, want 1", calls.Load())
	}

	if _, err := s.Synthesize(ctx, "hola", "fr"); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("a different language should miss the cache, calls = %d", calls.Load())
	}

	stats := s.CacheStats()
	if stats.Hits != 1 || stats.Entries != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestService_ClearCache(t *testing.T) {
	var calls atomic.Int32
	s := newRemoteService(t, &calls)
	ctx := context.Background()

	if _, err := s.Synthesize(ctx, "hola", "es"); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	s.ClearCache()
	if st := s.CacheStats(); st.Entries != 0 || st.Bytes != 0 {
		t.Errorf("stats after clear = %+v", st)
	}

	if _, err := s.Synthesize(ctx, "hola", "es"); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("network calls = %d, want 2 after clearing", calls.Load())
	}
}

func TestService_Translate(t *testing.T) {
	var calls atomic.Int32
	s := newRemoteService(t, &calls)

	got, err := s.Translate(context.Background(), "hello", "es")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "hola" {
		t.Errorf("Translate = %q, want hola", got)
	}
}

type countingSynth struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (c *countingSynth) Synthesize(context.Context, string, string) (string, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.err != nil {
		return "", c.err
	}
	return "data:audio/mpeg;base64,AA==", nil
}

func TestCachedSynthesizer_ConcurrentMissesShareCall(t *testing.T) {
	next := &countingSynth{gate: make(chan struct{})}
	s := New(nil, next, 10)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Synthesize(context.Background(), "same", "es"); err != nil {
				t.Errorf("Synthesize failed: %v", err)
			}
		}()
	}

	// Let the callers pile up on the shared call before releasing it.
	for next.calls.Load() == 0 {
		runtime.Gosched()
	}
	close(next.gate)
	wg.Wait()

	if n := next.calls.Load(); n != 1 {
		t.Errorf("underlying calls = %d, want 1", n)
	}
}

func TestCachedSynthesizer_ErrorsAreNotCached(t *testing.T) {
	next := &countingSynth{err: errors.New("boom")}
	s := New(nil, next, 10)

	for i := 0; i < 2; i++ {
		if _, err := s.Synthesize(context.Background(), "x", "es"); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", next.calls.Load())
	}
	if s.CacheStats().Entries != 0 {
		t.Error("failed synthesis should not be cached")
	}
}

func TestCachedSynthesizer_EmptyText(t *testing.T) {
	s := New(nil, &countingSynth{}, 10)
	if _, err := s.Synthesize(context.Background(), " ", "es"); !errors.Is(err, remote.ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
}
