package vtt

import (
	"context"
	"sync"
	"time"
)

// Track is a list of cues in file order.
type Track []Cue

// At returns the first cue with Start <= pos < End.
func (t Track) At(pos time.Duration) (Cue, bool) {
	for _, c := range t {
		if pos >= c.Start && pos < c.End {
			return c, true
		}
	}
	return Cue{}, false
}

// End returns the end time of the last cue.
func (t Track) End() time.Duration {
	var end time.Duration
	for _, c := range t {
		end = max(end, c.End)
	}
	return end
}

// Syncer reports each cue once as the playback position moves through it.
type Syncer struct {
	mu      sync.Mutex
	track   Track
	current int
	onCue   func(Cue)
}

// NewSyncer creates a syncer that calls onCue when the position enters a new
// cue.
func NewSyncer(track Track, onCue func(Cue)) *Syncer {
	return &Syncer{track: track, current: -1, onCue: onCue}
}

// Track returns the cues being followed.
func (s *Syncer) Track() Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

// Update moves the position to pos.
func (s *Syncer) Update(pos time.Duration) {
	s.mu.Lock()
	cue, ok := s.track.At(pos)
	if !ok || cue.Index == s.current {
		s.mu.Unlock()
		return
	}
	s.current = cue.Index
	onCue := s.onCue
	s.mu.Unlock()

	if onCue != nil {
		onCue(cue)
	}
}

// Reset forgets the current cue so it fires again.
func (s *Syncer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = -1
}

// RunClock drives Update from the wall clock, starting at start, until the
// last cue ends or ctx is done.
func (s *Syncer) RunClock(ctx context.Context, start, tick time.Duration) error {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	end := s.Track().End()
	began := time.Now()

	s.Update(start)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pos := start + time.Since(began)
			s.Update(pos)
			if pos >= end {
				return nil
			}
		}
	}
}
