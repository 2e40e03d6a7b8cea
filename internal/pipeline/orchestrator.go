// Package pipeline turns detected captions into queued speech: translate,
// chunk, synthesize, enqueue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/queue"
	"github.com/dgnsrekt/subvoice/internal/settings"
)

// ErrEmptyTranslation is reported when the translator returns no text.
var ErrEmptyTranslation = errors.New("empty translation")

// State is the orchestrator's processing state.
type State int

const (
	Idle State = iota
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// Translator translates text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, lang string) (string, error)
}

// Synthesizer returns speech for text as a data URI.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// Sink receives synthesized chunks in order.
type Sink interface {
	Enqueue(c queue.Chunk) error
}

// EventKind identifies a pipeline event.
type EventKind int

const (
	EventTranslated EventKind = iota
	EventEnqueued
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventTranslated:
		return "translated"
	case EventEnqueued:
		return "enqueued"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports pipeline progress for one caption.
type Event struct {
	Kind        EventKind
	Source      string
	Translation string
	Chunk       string
	Lang        string
	Err         error
	At          time.Time
}

// Options wires an Orchestrator.
type Options struct {
	Translator  Translator
	Synthesizer Synthesizer
	Sink        Sink

	// Settings returns the current settings. Language and the enabled flag
	// are read once per caption.
	Settings func() settings.Config

	ChunkSize int

	// OnFailure is called after a caption could not be processed.
	OnFailure func(text string, err error)
	OnEvent   func(Event)
}

// Orchestrator processes one caption at a time. Captions that arrive while
// one is in flight are dropped.
type Orchestrator struct {
	opts Options

	mu            sync.Mutex
	state         State
	lastProcessed string
	gen           uint64

	logger *log.Logger
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Settings == nil {
		opts.Settings = settings.Defaults
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Orchestrator{
		opts:   opts,
		logger: log.WithPrefix("pipeline"),
	}
}

// State returns the current processing state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastProcessed returns the last caption accepted for processing.
func (o *Orchestrator) LastProcessed() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastProcessed
}

// Process translates, synthesizes and enqueues text. It returns false
// without doing anything when the pipeline is disabled, text is blank,
// another caption is in flight, or text was the last caption processed.
func (o *Orchestrator) Process(ctx context.Context, text string) bool {
	run, ok := o.Begin(text)
	if !ok {
		return false
	}
	run(ctx)
	return true
}

// Begin claims the pipeline for text without blocking. When it returns true
// the caption is recorded and the state is Processing; the returned run
// performs the translation and enqueueing and must be called exactly once.
// Captions offered while a claim is held are refused, so callers that hand
// run to a goroutine keep arrival order.
func (o *Orchestrator) Begin(text string) (run func(context.Context), ok bool) {
	cfg := o.opts.Settings()
	if !cfg.IsEnabled || strings.TrimSpace(text) == "" {
		return nil, false
	}

	o.mu.Lock()
	if o.state == Processing || text == o.lastProcessed {
		o.mu.Unlock()
		return nil, false
	}
	o.lastProcessed = text
	o.state = Processing
	gen := o.gen
	o.mu.Unlock()

	lang := cfg.TargetLanguage
	return func(ctx context.Context) {
		defer func() {
			o.mu.Lock()
			if o.gen == gen {
				o.state = Idle
			}
			o.mu.Unlock()
		}()

		if err := o.run(ctx, gen, text, lang); err != nil {
			o.fail(gen, text, lang, err)
		}
	}, true
}

func (o *Orchestrator) run(ctx context.Context, gen uint64, text, lang string) error {
	translated, err := o.opts.Translator.Translate(ctx, text, lang)
	if err != nil {
		return fmt.Errorf("translate: %w", err)
	}
	if strings.TrimSpace(translated) == "" {
		return ErrEmptyTranslation
	}
	o.emit(Event{Kind: EventTranslated, Source: text, Translation: translated, Lang: lang})

	for _, part := range Chunk(translated, o.opts.ChunkSize) {
		if strings.TrimSpace(part) == "" {
			continue
		}

		audio, err := o.opts.Synthesizer.Synthesize(ctx, part, lang)
		if err != nil {
			return fmt.Errorf("synthesize: %w", err)
		}

		stale, err := o.enqueue(gen, queue.Chunk{Text: part, Audio: audio})
		if stale {
			o.logger.Debug("dropping chunk from a reset run", "chunk", part)
			return nil
		}
		if err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}
		o.emit(Event{Kind: EventEnqueued, Source: text, Chunk: part, Lang: lang})
	}
	return nil
}

// enqueue hands c to the sink unless the run gen was reset. The check and
// the hand-off share one critical section so a Reset cannot land between
// them.
func (o *Orchestrator) enqueue(gen uint64, c queue.Chunk) (stale bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return true, nil
	}
	return false, o.opts.Sink.Enqueue(c)
}

func (o *Orchestrator) fail(gen uint64, text, lang string, err error) {
	o.mu.Lock()
	if o.gen == gen && o.lastProcessed == text {
		o.lastProcessed = ""
	}
	o.mu.Unlock()

	o.logger.Error("caption processing failed", "text", text, "lang", lang, "error", err)
	o.emit(Event{Kind: EventFailed, Source: text, Lang: lang, Err: err})
	if o.opts.OnFailure != nil {
		o.opts.OnFailure(text, err)
	}
}

func (o *Orchestrator) emit(ev Event) {
	if o.opts.OnEvent == nil {
		return
	}
	ev.At = time.Now()
	o.opts.OnEvent(ev)
}

// Reset forgets the last caption and abandons the run in flight. The
// abandoned run enqueues nothing further.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gen++
	o.lastProcessed = ""
	o.state = Idle
}
