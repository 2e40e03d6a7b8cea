// Package session ties the caption detector, the translation pipeline, the
// playback queue and subtitle sync together for one open video page.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/audio"
	"github.com/dgnsrekt/subvoice/internal/cache"
	"github.com/dgnsrekt/subvoice/internal/caption"
	"github.com/dgnsrekt/subvoice/internal/pipeline"
	"github.com/dgnsrekt/subvoice/internal/queue"
	"github.com/dgnsrekt/subvoice/internal/settings"
	"github.com/dgnsrekt/subvoice/internal/vtt"
	"github.com/google/uuid"
)

// DefaultReinitDelay is how long a session waits after an in-page
// navigation before it re-reads the page.
const DefaultReinitDelay = 1500 * time.Millisecond

// Backend translates and synthesizes speech.
type Backend interface {
	Translate(ctx context.Context, text, lang string) (string, error)
	Synthesize(ctx context.Context, text, lang string) (string, error)
	CacheStats() cache.Stats
}

// Deps are the shared components a session is built from.
type Deps struct {
	Backend  Backend
	Player   audio.Player
	Settings *settings.Store
	Events   *Hub

	Queue         queue.Config
	FlushInterval time.Duration
	ReinitDelay   time.Duration
	HTTPClient    *http.Client
}

// Status is a snapshot of a session for the status endpoint and dashboard.
type Status struct {
	ID              string          `json:"id"`
	URL             string          `json:"url"`
	Host            string          `json:"host"`
	Source          string          `json:"source"`
	HasSubtitles    bool            `json:"hasSubtitles"`
	State           string          `json:"state"`
	Queue           queue.Stats     `json:"queue"`
	Cache           cache.Stats     `json:"cache"`
	Settings        settings.Config `json:"settings"`
	Cues            int             `json:"cues"`
	LastCaption     string          `json:"lastCaption"`
	LastTranslation string          `json:"lastTranslation"`
	StartedAt       time.Time       `json:"startedAt"`
}

// Session is the state kept for one video page.
type Session struct {
	id        string
	deps      Deps
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	page     *caption.Snapshot
	detector *caption.Detector
	orch     *pipeline.Orchestrator
	queue    *queue.Queue

	mu              sync.Mutex
	url             string
	host            string
	syncer          *vtt.Syncer
	cueAudio        map[int]queue.Chunk
	reinit          *time.Timer
	lastCaption     string
	lastTranslation string
	closed          bool

	unsubscribe func()
	wg          sync.WaitGroup
	logger      *log.Logger
}

// New opens a session for the page at rawURL. It fails with
// caption.ErrUnsupportedHost for sites without a caption source.
func New(deps Deps, rawURL string) (*Session, error) {
	host, err := hostOf(rawURL)
	if err != nil {
		return nil, err
	}
	if deps.Settings == nil {
		deps.Settings = settings.NewStore(nil)
	}
	if deps.Events == nil {
		deps.Events = NewHub()
	}
	if deps.ReinitDelay <= 0 {
		deps.ReinitDelay = DefaultReinitDelay
	}

	source, err := caption.ForHost(host, caption.Options{FlushInterval: deps.FlushInterval})
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		id:        id,
		deps:      deps,
		startedAt: time.Now(),
		page:      caption.NewSnapshot(),
		url:       rawURL,
		host:      host,
		logger:    log.WithPrefix("session").With("id", id[:8]),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	qcfg := deps.Queue
	qcfg.OnEvent = s.onQueueEvent
	s.queue = queue.New(deps.Player, queue.LevelsFunc(s.levels), qcfg)

	s.detector = caption.NewDetector(source, s.onCaption)
	s.detector.SetEnabled(deps.Settings.Config().IsEnabled)

	s.orch = pipeline.New(pipeline.Options{
		Translator:  deps.Backend,
		Synthesizer: deps.Backend,
		Sink:        s.queue,
		Settings:    deps.Settings.Config,
		OnFailure:   func(text string, _ error) { s.detector.Forget(text) },
		OnEvent:     s.onPipelineEvent,
	})

	s.unsubscribe = deps.Settings.Subscribe(s.applySettings)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.detector.Run(s.ctx, deps.FlushInterval)
	}()

	s.logger.Info("session opened", "host", host, "source", source.Name())
	return s, nil
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid page url %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid page url %q: missing host", rawURL)
	}
	return u.Hostname(), nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Selectors returns the caption selectors the page should report.
func (s *Session) Selectors() []string {
	if src := s.detector.Source(); src != nil {
		return src.Selectors()
	}
	return nil
}

func (s *Session) levels() (float64, float64) {
	cfg := s.deps.Settings.Config()
	return cfg.VolumeLevel(), cfg.PlaybackRate()
}

// Observe feeds a new page snapshot to the caption detector.
func (s *Session) Observe(elements []caption.Element, video *caption.Rect) {
	s.page.Update(elements, video)
	s.detector.Observe(s.page)
}

func (s *Session) onCaption(ev caption.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.lastCaption = ev.Text
	s.mu.Unlock()

	s.publish(Event{Kind: KindCaption, Text: ev.Text, Detail: ev.Source})

	// Claimed here, on the detector's goroutine, so a caption arriving
	// while this one is in flight is the one refused.
	run, ok := s.orch.Begin(ev.Text)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.orch.Reset()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		run(s.ctx)
	}()
}

func (s *Session) onPipelineEvent(ev pipeline.Event) {
	switch ev.Kind {
	case pipeline.EventTranslated:
		s.mu.Lock()
		s.lastTranslation = ev.Translation
		s.mu.Unlock()
		s.publish(Event{Kind: KindTranslated, Text: ev.Translation, Detail: ev.Lang})
	case pipeline.EventEnqueued:
		s.publish(Event{Kind: KindEnqueued, Text: ev.Chunk})
	case pipeline.EventFailed:
		s.publish(Event{Kind: KindFailed, Text: ev.Source, Err: errString(ev.Err)})
	}
}

func (s *Session) onQueueEvent(ev queue.Event) {
	kind := KindPlayed
	switch ev.Kind {
	case queue.EventSkipped:
		kind = KindSkipped
	case queue.EventDiscarded:
		kind = KindDiscarded
	}
	s.publish(Event{Kind: kind, Text: ev.Text, Err: errString(ev.Err)})
}

func (s *Session) publish(ev Event) {
	ev.Session = s.id
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	s.deps.Events.Publish(ev)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// applySettings reacts to a settings change. A language or enabled change
// drops everything in flight; a volume or speed change only retunes the
// player.
func (s *Session) applySettings(c settings.Change) {
	if c.NeedsReset() {
		s.Reset()
		s.detector.SetEnabled(c.New.IsEnabled)
		s.mu.Lock()
		s.cueAudio = nil
		s.syncer = nil
		s.mu.Unlock()
	}
	if c.LevelsChanged() {
		if err := s.deps.Player.SetVolume(c.New.VolumeLevel()); err != nil {
			s.logger.Warn("could not apply volume", "error", err)
		}
		if err := s.deps.Player.SetSpeed(c.New.PlaybackRate()); err != nil {
			s.logger.Warn("could not apply speed", "error", err)
		}
	}
	s.publish(Event{
		Kind:   KindSettings,
		Detail: fmt.Sprintf("lang=%s volume=%d speed=%d enabled=%t", c.New.TargetLanguage, c.New.Volume, c.New.Speed, c.New.IsEnabled),
	})
}

// Navigate records an in-page navigation. After the reinit delay the session
// picks the source for the new host and forgets everything in flight.
func (s *Session) Navigate(rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.url, s.host = rawURL, host
	if s.reinit != nil {
		s.reinit.Stop()
	}
	s.reinit = time.AfterFunc(s.deps.ReinitDelay, func() { s.reinitialize(host) })
	return nil
}

func (s *Session) reinitialize(host string) {
	source, err := caption.ForHost(host, caption.Options{FlushInterval: s.deps.FlushInterval})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.syncer = nil
	s.cueAudio = nil
	s.mu.Unlock()

	s.orch.Reset()
	s.queue.Reset()

	if err != nil {
		s.logger.Warn("no caption source after navigation", "host", host, "error", err)
		s.detector.SetEnabled(false)
		s.publish(Event{Kind: KindNavigate, Detail: host, Err: err.Error()})
		return
	}

	s.detector.SetSource(source)
	s.detector.SetEnabled(s.deps.Settings.Config().IsEnabled)
	s.logger.Info("reinitialized after navigation", "host", host, "source", source.Name())
	s.publish(Event{Kind: KindNavigate, Detail: host})
}

// LoadCues translates and synthesizes every cue up front, then plays each
// one as TimeUpdate reaches it. Cues that fail to process are skipped.
func (s *Session) LoadCues(ctx context.Context, cues []vtt.Cue) (int, error) {
	if len(cues) == 0 {
		return 0, errors.New("no cues to load")
	}

	lang := s.deps.Settings.Config().TargetLanguage
	prepared, err := PrepareCues(ctx, s.deps.Backend, cues, lang)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.cueAudio = prepared
	s.syncer = vtt.NewSyncer(cues, s.playCue)
	s.mu.Unlock()

	s.logger.Info("subtitles loaded", "cues", len(cues), "prepared", len(prepared), "lang", lang)
	s.publish(Event{Kind: KindCues, Detail: fmt.Sprintf("%d of %d cues ready", len(prepared), len(cues))})
	return len(prepared), nil
}

// PrepareCues translates and synthesizes each cue into lang, keyed by cue
// index. Cues that fail are logged and left out; an error is returned only
// when ctx ends or no cue could be prepared.
func PrepareCues(ctx context.Context, backend Backend, cues []vtt.Cue, lang string) (map[int]queue.Chunk, error) {
	logger := log.WithPrefix("cues")
	prepared := make(map[int]queue.Chunk, len(cues))
	for _, cue := range cues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		translated, err := backend.Translate(ctx, cue.Text, lang)
		if err != nil {
			logger.Warn("could not translate cue", "index", cue.Index, "error", err)
			continue
		}
		audio, err := backend.Synthesize(ctx, translated, lang)
		if err != nil {
			logger.Warn("could not synthesize cue", "index", cue.Index, "error", err)
			continue
		}
		prepared[cue.Index] = queue.Chunk{Text: translated, Audio: audio}
	}
	if len(prepared) == 0 {
		return nil, errors.New("no cue could be prepared")
	}
	return prepared, nil
}

// LoadDocument finds the subtitle file referenced by doc, downloads it and
// loads its cues.
func (s *Session) LoadDocument(ctx context.Context, doc vtt.Document) (int, error) {
	ref, ok := vtt.FindURL(doc)
	if !ok {
		return 0, errors.New("no subtitle file found on page")
	}

	s.mu.Lock()
	base := s.url
	s.mu.Unlock()

	cues, err := vtt.Fetch(ctx, s.deps.HTTPClient, base, ref)
	if err != nil {
		return 0, err
	}
	return s.LoadCues(ctx, cues)
}

func (s *Session) playCue(cue vtt.Cue) {
	if !s.deps.Settings.Config().IsEnabled {
		return
	}

	s.mu.Lock()
	chunk, ok := s.cueAudio[cue.Index]
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.queue.Enqueue(chunk); err != nil {
		s.logger.Debug("could not enqueue cue", "index", cue.Index, "error", err)
	}
}

// TimeUpdate moves the subtitle position to pos.
func (s *Session) TimeUpdate(pos time.Duration) {
	s.mu.Lock()
	syncer := s.syncer
	s.mu.Unlock()

	if syncer != nil {
		syncer.Update(pos)
	}
}

// HasSubtitles reports whether captions are on the page or cues are loaded.
func (s *Session) HasSubtitles() bool {
	s.mu.Lock()
	loaded := s.syncer != nil
	s.mu.Unlock()
	return loaded || s.detector.Check(s.page)
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	st := Status{
		ID:           s.id,
		HasSubtitles: s.HasSubtitles(),
		State:        s.orch.State().String(),
		Queue:        s.queue.Stats(),
		Settings:     s.deps.Settings.Config(),
		StartedAt:    s.startedAt,
	}
	if s.deps.Backend != nil {
		st.Cache = s.deps.Backend.CacheStats()
	}
	if src := s.detector.Source(); src != nil {
		st.Source = src.Name()
	}

	s.mu.Lock()
	st.URL, st.Host = s.url, s.host
	st.LastCaption, st.LastTranslation = s.lastCaption, s.lastTranslation
	if s.syncer != nil {
		st.Cues = len(s.syncer.Track())
	}
	s.mu.Unlock()
	return st
}

// ClearQueue drops the phrases waiting to play and lets the current one
// finish. It returns how many were dropped.
func (s *Session) ClearQueue() int {
	n := s.queue.Clear()
	s.publish(Event{Kind: KindCleared, Detail: fmt.Sprintf("%d queued", n)})
	return n
}

// Reset drops the caption in flight, stops playback, empties the queue and
// clears every duplicate memo.
func (s *Session) Reset() {
	s.orch.Reset()
	s.queue.Reset()
	s.detector.Reset()

	s.mu.Lock()
	syncer := s.syncer
	s.mu.Unlock()
	if syncer != nil {
		syncer.Reset()
	}

	s.logger.Debug("session reset")
	s.publish(Event{Kind: KindReset})
}

// Close stops the session and waits for its goroutines.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.reinit != nil {
		s.reinit.Stop()
	}
	s.mu.Unlock()

	s.unsubscribe()
	s.cancel()
	err := s.queue.Close()
	s.wg.Wait()

	s.logger.Info("session closed")
	return err
}
