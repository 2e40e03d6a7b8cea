package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/audio"
	"github.com/dgnsrekt/subvoice/internal/datauri"
	"github.com/dgnsrekt/subvoice/internal/retry"
)

// ErrQueueClosed is returned when operations are attempted on a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

// DefaultGap is the pause between two chunks.
const DefaultGap = 50 * time.Millisecond

// Chunk is one piece of translated text with its synthesized audio.
type Chunk struct {
	Text  string
	Audio string // data URI
}

// Levels provides the volume (0 to 1) and playback rate read before each
// clip starts.
type Levels interface {
	Levels() (volume, rate float64)
}

// LevelsFunc adapts a function to Levels.
type LevelsFunc func() (volume, rate float64)

// Levels calls f.
func (f LevelsFunc) Levels() (float64, float64) { return f() }

// EventKind identifies a queue event.
type EventKind int

const (
	EventPlayed EventKind = iota
	EventSkipped
	EventDiscarded
)

// String returns the name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventPlayed:
		return "played"
	case EventSkipped:
		return "skipped"
	case EventDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Event reports what happened to a chunk.
type Event struct {
	Kind EventKind
	Text string
	Err  error
	At   time.Time
}

// Config controls playback pacing and failure handling.
type Config struct {
	Gap     time.Duration // pause after each chunk
	Retry   retry.Policy  // playback retries before a chunk is discarded
	Timeout time.Duration // per clip limit, zero disables it
	OnEvent func(Event)
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		Gap:   DefaultGap,
		Retry: retry.LinearBackoff(retry.DefaultAttempts, retry.DefaultBackoffBase),
	}
}

// Stats tracks queue activity.
type Stats struct {
	Enqueued  int64
	Played    int64
	Skipped   int64
	Discarded int64
	Pending   int
	Playing   bool
	LastPlay  time.Time
}

// Queue is a FIFO of chunks drained by a single consumer goroutine.
type Queue struct {
	player audio.Player
	levels Levels
	config Config

	mu         sync.Mutex
	items      []Chunk
	playing    bool
	inFlight   bool
	lastPlayed string
	gen        uint64
	genCtx     context.Context
	genCancel  context.CancelFunc
	closed     bool
	stats      Stats

	wg     sync.WaitGroup
	logger *log.Logger
}

// New creates a queue that plays through player. levels may be nil, in which
// case clips play at full volume and normal speed.
func New(player audio.Player, levels Levels, config Config) *Queue {
	if levels == nil {
		levels = LevelsFunc(func() (float64, float64) { return 1, 1 })
	}
	q := &Queue{
		player: player,
		levels: levels,
		config: config,
		logger: log.WithPrefix("queue"),
	}
	q.genCtx, q.genCancel = context.WithCancel(context.Background())
	return q
}

// Enqueue appends c and starts the consumer if it is idle.
func (q *Queue) Enqueue(c Chunk) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, c)
	q.stats.Enqueued++

	if !q.playing {
		q.playing = true
		q.wg.Add(1)
		go q.consume(q.genCtx, q.gen)
	}
	return nil
}

func (q *Queue) consume(ctx context.Context, gen uint64) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if q.gen != gen {
			q.mu.Unlock()
			return
		}
		if q.closed || len(q.items) == 0 {
			q.playing = false
			q.mu.Unlock()
			return
		}

		head := q.items[0]
		if head.Text == q.lastPlayed {
			q.items = q.items[1:]
			q.stats.Skipped++
			q.mu.Unlock()
			q.logger.Debug("skipping repeated chunk", "text", head.Text)
			q.emit(Event{Kind: EventSkipped, Text: head.Text})
			continue
		}
		q.inFlight = true
		q.mu.Unlock()

		err := q.play(ctx, head)

		q.mu.Lock()
		if q.gen != gen {
			q.mu.Unlock()
			return
		}
		q.inFlight = false
		if q.closed {
			q.playing = false
			q.mu.Unlock()
			return
		}
		q.items = q.items[1:]
		ev := Event{Kind: EventPlayed, Text: head.Text}
		if err != nil {
			q.stats.Discarded++
			ev.Kind, ev.Err = EventDiscarded, err
		} else {
			q.lastPlayed = head.Text
			q.stats.Played++
			q.stats.LastPlay = time.Now()
		}
		q.mu.Unlock()

		if err != nil {
			q.logger.Warn("discarding chunk", "text", head.Text, "error", err)
		}
		q.emit(ev)

		if !sleep(ctx, q.config.Gap) {
			return
		}
	}
}

// play decodes the chunk and plays it, retrying device failures.
func (q *Queue) play(ctx context.Context, c Chunk) error {
	_, data, err := datauri.Decode(c.Audio)
	if err != nil {
		return fmt.Errorf("unable to decode chunk audio: %w", err)
	}

	return retry.Run(ctx, q.config.Retry, func(ctx context.Context) error {
		if err := q.player.Stop(); err != nil {
			q.logger.Debug("could not stop previous clip", "error", err)
		}

		volume, rate := q.levels.Levels()
		if err := q.player.SetVolume(volume); err != nil {
			q.logger.Debug("could not set volume", "volume", volume, "error", err)
		}
		if err := q.player.SetSpeed(rate); err != nil {
			q.logger.Debug("could not set speed", "rate", rate, "error", err)
		}

		return q.playOnce(ctx, data)
	})
}

func (q *Queue) playOnce(ctx context.Context, data []byte) error {
	if q.config.Timeout <= 0 {
		return q.player.Play(ctx, data)
	}

	playCtx, cancel := context.WithTimeout(ctx, q.config.Timeout)
	defer cancel()

	err := q.player.Play(playCtx, data)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		_ = q.player.Stop()
		return audio.ErrPlaybackTimeout
	}
	return err
}

func (q *Queue) emit(ev Event) {
	if q.config.OnEvent == nil {
		return
	}
	ev.At = time.Now()
	q.config.OnEvent(ev)
}

// Clear drops every chunk that has not started playing and returns how many
// were dropped. The clip that is playing finishes.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight && len(q.items) > 0 {
		// The consumer pops the head when its clip ends.
		n := len(q.items) - 1
		q.items = q.items[:1]
		return n
	}
	n := len(q.items)
	q.items = nil
	return n
}

// Stop interrupts the clip that is playing.
func (q *Queue) Stop() error {
	return q.player.Stop()
}

// Reset stops playback, empties the queue and forgets the last played text.
// A consumer running when Reset is called exits without touching chunks
// enqueued afterwards.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.gen++
	q.genCancel()
	q.genCtx, q.genCancel = context.WithCancel(context.Background())
	q.items = nil
	q.playing = false
	q.inFlight = false
	q.lastPlayed = ""
	q.mu.Unlock()

	if err := q.player.Stop(); err != nil {
		q.logger.Debug("could not stop clip", "error", err)
	}
	q.logger.Debug("queue reset")
}

// Len returns the number of chunks waiting or playing.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.stats
	s.Pending = len(q.items)
	s.Playing = q.playing
	return s
}

// Close stops playback and waits for the consumer to exit.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.items = nil
	q.genCancel()
	q.mu.Unlock()

	err := q.player.Stop()
	q.wg.Wait()
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
