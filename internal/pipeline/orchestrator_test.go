package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/subvoice/internal/queue"
	"github.com/dgnsrekt/subvoice/internal/settings"
)

type fakeTranslator struct {
	mu    sync.Mutex
	calls []string
	err   error
	block chan struct{}
	out   func(text, lang string) string
}

func (f *fakeTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text+"|"+lang)
	block, err := f.block, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if f.out != nil {
		return f.out(text, lang), nil
	}
	return "[" + lang + "] " + text, nil
}

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, text, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.texts = append(f.texts, text)
	return "data:audio/mpeg;base64,AA==", nil
}

type sliceSink struct {
	mu     sync.Mutex
	chunks []queue.Chunk
}

func (s *sliceSink) Enqueue(c queue.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, c)
	return nil
}

func (s *sliceSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.chunks))
	for i, c := range s.chunks {
		out[i] = c.Text
	}
	return out
}

func newTestOrchestrator(tr *fakeTranslator, sy *fakeSynth, sink *sliceSink, cfg *settings.Config) (*Orchestrator, *[]string) {
	var failures []string
	var mu sync.Mutex
	o := New(Options{
		Translator:  tr,
		Synthesizer: sy,
		Sink:        sink,
		Settings: func() settings.Config {
			mu.Lock()
			defer mu.Unlock()
			return *cfg
		},
		OnFailure: func(text string, err error) {
			mu.Lock()
			defer mu.Unlock()
			failures = append(failures, text)
		},
	})
	return o, &failures
}

func TestOrchestrator_ProcessEnqueuesChunks(t *testing.T) {
	cfg := settings.Defaults()
	long := strings.Repeat("palabra ", 30) // 240 runes
	tr := &fakeTranslator{out: func(string, string) string { return long }}
	sy := &fakeSynth{}
	sink := &sliceSink{}
	o, _ := newTestOrchestrator(tr, sy, sink, &cfg)

	if !o.Process(context.Background(), "hello") {
		t.Fatal("Process returned false")
	}

	got := sink.texts()
	if len(got) != 3 {
		t.Fatalf("enqueued %d chunks, want 3", len(got))
	}
	if strings.Join(got, "") != long {
		t.Error("enqueued chunks do not rebuild the translation")
	}
	if o.State() != Idle {
		t.Errorf("State = %s, want idle", o.State())
	}
	if o.LastProcessed() != "hello" {
		t.Errorf("LastProcessed = %q", o.LastProcessed())
	}
}

func TestOrchestrator_UsesTargetLanguage(t *testing.T) {
	cfg := settings.Defaults()
	cfg.TargetLanguage = "fr"
	tr := &fakeTranslator{}
	o, _ := newTestOrchestrator(tr, &fakeSynth{}, &sliceSink{}, &cfg)

	o.Process(context.Background(), "hello")
	if len(tr.calls) != 1 || tr.calls[0] != "hello|fr" {
		t.Errorf("translator calls = %q", tr.calls)
	}
}

func TestOrchestrator_NoOps(t *testing.T) {
	cfg := settings.Defaults()
	tr := &fakeTranslator{}
	o, _ := newTestOrchestrator(tr, &fakeSynth{}, &sliceSink{}, &cfg)

	if o.Process(context.Background(), "   ") {
		t.Error("blank text should be ignored")
	}
	if !o.Process(context.Background(), "same") {
		t.Fatal("first caption should be processed")
	}
	if o.Process(context.Background(), "same") {
		t.Error("repeated caption should be ignored")
	}

	cfg.IsEnabled = false
	if o.Process(context.Background(), "other") {
		t.Error("disabled pipeline should ignore captions")
	}
	if len(tr.calls) != 1 {
		t.Errorf("translator called %d times, want 1", len(tr.calls))
	}
}

func TestOrchestrator_SingleFlight(t *testing.T) {
	cfg := settings.Defaults()
	tr := &fakeTranslator{block: make(chan struct{})}
	sink := &sliceSink{}
	o, _ := newTestOrchestrator(tr, &fakeSynth{}, sink, &cfg)

	done := make(chan bool)
	go func() { done <- o.Process(context.Background(), "first") }()

	deadline := time.Now().Add(time.Second)
	for o.State() != Processing {
		if time.Now().After(deadline) {
			t.Fatal("first caption never started processing")
		}
		time.Sleep(time.Millisecond)
	}

	if o.Process(context.Background(), "second") {
		t.Error("second caption should be dropped while processing")
	}
	if o.LastProcessed() != "first" {
		t.Errorf("LastProcessed = %q, want first", o.LastProcessed())
	}

	close(tr.block)
	if !<-done {
		t.Error("first Process returned false")
	}
	if got := sink.texts(); len(got) != 1 || got[0] != "[es] first" {
		t.Errorf("enqueued %q", got)
	}
}

func TestOrchestrator_FailureClearsMemo(t *testing.T) {
	cfg := settings.Defaults()
	tr := &fakeTranslator{err: errors.New("network down")}
	o, failures := newTestOrchestrator(tr, &fakeSynth{}, &sliceSink{}, &cfg)

	o.Process(context.Background(), "caption")
	if o.LastProcessed() != "" {
		t.Errorf("LastProcessed = %q, want empty after failure", o.LastProcessed())
	}
	if len(*failures) != 1 || (*failures)[0] != "caption" {
		t.Errorf("failures = %q", *failures)
	}
	if o.State() != Idle {
		t.Errorf("State = %s, want idle", o.State())
	}

	// The same caption can be retried.
	tr.mu.Lock()
	tr.err = nil
	tr.mu.Unlock()
	if !o.Process(context.Background(), "caption") {
		t.Error("retry of failed caption should be processed")
	}
}

func TestOrchestrator_EmptyTranslationFails(t *testing.T) {
	cfg := settings.Defaults()
	tr := &fakeTranslator{out: func(string, string) string { return "  " }}
	sink := &sliceSink{}
	var events []Event
	o := New(Options{
		Translator:  tr,
		Synthesizer: &fakeSynth{},
		Sink:        sink,
		Settings:    func() settings.Config { return cfg },
		OnEvent:     func(ev Event) { events = append(events, ev) },
	})

	o.Process(context.Background(), "x")
	if len(sink.texts()) != 0 {
		t.Error("nothing should be enqueued")
	}
	if len(events) != 1 || events[0].Kind != EventFailed || !errors.Is(events[0].Err, ErrEmptyTranslation) {
		t.Errorf("events = %+v", events)
	}
}

func TestOrchestrator_ResetAbandonsRun(t *testing.T) {
	cfg := settings.Defaults()
	tr := &fakeTranslator{block: make(chan struct{})}
	sink := &sliceSink{}
	o, _ := newTestOrchestrator(tr, &fakeSynth{}, sink, &cfg)

	done := make(chan struct{})
	go func() {
		o.Process(context.Background(), "old")
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for o.State() != Processing {
		if time.Now().After(deadline) {
			t.Fatal("caption never started processing")
		}
		time.Sleep(time.Millisecond)
	}

	o.Reset()
	if o.State() != Idle || o.LastProcessed() != "" {
		t.Errorf("after Reset: state %s, last %q", o.State(), o.LastProcessed())
	}

	close(tr.block)
	<-done

	if got := sink.texts(); len(got) != 0 {
		t.Errorf("abandoned run enqueued %q", got)
	}
}

func TestOrchestrator_BeginClaimsBeforeRunning(t *testing.T) {
	cfg := settings.Defaults()
	tr := &fakeTranslator{}
	sink := &sliceSink{}
	o, _ := newTestOrchestrator(tr, &fakeSynth{}, sink, &cfg)

	run, ok := o.Begin("first")
	if !ok {
		t.Fatal("first caption should be claimed")
	}
	if o.State() != Processing {
		t.Errorf("State = %s, want processing before run", o.State())
	}
	if _, ok := o.Begin("second"); ok {
		t.Error("second caption should be refused while the first is claimed")
	}

	run(context.Background())
	if got := sink.texts(); len(got) != 1 || got[0] != "[es] first" {
		t.Errorf("enqueued %q", got)
	}
	if len(tr.calls) != 1 {
		t.Errorf("translator calls = %q", tr.calls)
	}
	if o.State() != Idle {
		t.Errorf("State = %s, want idle", o.State())
	}
}

// gateSink blocks inside Enqueue until released.
type gateSink struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gateSink) Enqueue(queue.Chunk) error {
	close(g.entered)
	<-g.release
	return nil
}

func TestOrchestrator_ResetWaitsForEnqueue(t *testing.T) {
	cfg := settings.Defaults()
	sink := &gateSink{entered: make(chan struct{}), release: make(chan struct{})}
	o := New(Options{
		Translator:  &fakeTranslator{},
		Synthesizer: &fakeSynth{},
		Sink:        sink,
		Settings:    func() settings.Config { return cfg },
	})

	done := make(chan struct{})
	go func() {
		o.Process(context.Background(), "caption")
		close(done)
	}()
	<-sink.entered

	reset := make(chan struct{})
	go func() {
		o.Reset()
		close(reset)
	}()

	select {
	case <-reset:
		t.Fatal("Reset returned while a chunk was being enqueued")
	case <-time.After(20 * time.Millisecond):
	}

	close(sink.release)
	<-reset
	<-done
	if o.State() != Idle || o.LastProcessed() != "" {
		t.Errorf("after Reset: state %s, last %q", o.State(), o.LastProcessed())
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Processing.String() != "processing" {
		t.Errorf("unexpected state names %q %q", Idle, Processing)
	}
}
