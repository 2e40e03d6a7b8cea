package audio

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSimulated is returned by MockPlayer for injected failures.
var ErrSimulated = errors.New("simulated playback error")

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay func(audio []byte)
	OnStop func()
}

// MockPlayer simulates playback without producing sound. Each Play blocks
// for Duration unless stopped or cancelled.
type MockPlayer struct {
	mu        sync.Mutex
	duration  time.Duration
	failFirst int
	callbacks MockCallbacks

	played   [][]byte
	attempts int
	stopCh   chan struct{}
	volume   float64
	speed    float64
	closed   bool
}

// NewMockPlayer creates a mock player whose clips last duration.
func NewMockPlayer(duration time.Duration, callbacks MockCallbacks) *MockPlayer {
	return &MockPlayer{
		duration:  duration,
		callbacks: callbacks,
		volume:    1,
		speed:     1,
	}
}

// FailFirst makes the next n calls to Play fail with ErrSimulated.
func (mp *MockPlayer) FailFirst(n int) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.failFirst = n
}

// Play records audio and waits for the simulated duration, scaled by speed.
func (mp *MockPlayer) Play(ctx context.Context, audio []byte) error {
	mp.mu.Lock()
	if mp.closed {
		mp.mu.Unlock()
		return ErrClosed
	}
	mp.attempts++
	if mp.failFirst > 0 {
		mp.failFirst--
		mp.mu.Unlock()
		return &PlaybackError{Op: "device", Err: ErrSimulated}
	}
	if len(audio) == 0 {
		mp.mu.Unlock()
		return &PlaybackError{Op: "decode", Err: ErrEmptyAudio}
	}

	if mp.stopCh != nil {
		close(mp.stopCh)
	}
	stopCh := make(chan struct{})
	mp.stopCh = stopCh
	mp.played = append(mp.played, append([]byte(nil), audio...))
	d := time.Duration(float64(mp.duration) / mp.speed)
	onPlay := mp.callbacks.OnPlay
	mp.mu.Unlock()

	if onPlay != nil {
		onPlay(audio)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	var err error
	select {
	case <-timer.C:
	case <-stopCh:
	case <-ctx.Done():
		err = ctx.Err()
	}

	mp.mu.Lock()
	if mp.stopCh == stopCh {
		mp.stopCh = nil
	}
	mp.mu.Unlock()
	return err
}

// Stop ends the current simulated clip.
func (mp *MockPlayer) Stop() error {
	mp.mu.Lock()
	wasPlaying := mp.stopCh != nil
	if wasPlaying {
		close(mp.stopCh)
		mp.stopCh = nil
	}
	onStop := mp.callbacks.OnStop
	mp.mu.Unlock()

	if wasPlaying && onStop != nil {
		onStop()
	}
	return nil
}

// SetVolume records the volume.
func (mp *MockPlayer) SetVolume(volume float64) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.volume = volume
	return nil
}

// SetSpeed records the playback rate.
func (mp *MockPlayer) SetSpeed(rate float64) error {
	if rate <= 0 {
		return errors.New("speed must be positive")
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.speed = rate
	return nil
}

// Close stops playback and rejects further clips.
func (mp *MockPlayer) Close() error {
	_ = mp.Stop()
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.closed = true
	return nil
}

// Played returns copies of the clips played so far, in order.
func (mp *MockPlayer) Played() [][]byte {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	out := make([][]byte, len(mp.played))
	copy(out, mp.played)
	return out
}

// Attempts returns how many times Play was called on an open player.
func (mp *MockPlayer) Attempts() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.attempts
}

// Levels returns the last volume and speed that were set.
func (mp *MockPlayer) Levels() (volume, speed float64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.volume, mp.speed
}

// IsPlaying reports whether a simulated clip is in progress.
func (mp *MockPlayer) IsPlaying() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.stopCh != nil
}
