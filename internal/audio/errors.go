package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrPlaybackTimeout is returned when a clip plays longer than the
	// configured limit.
	ErrPlaybackTimeout = errors.New("playback timed out")

	// ErrClosed is returned by a player that has been closed.
	ErrClosed = errors.New("player is closed")

	// ErrEmptyAudio is returned when asked to play zero bytes.
	ErrEmptyAudio = errors.New("audio data is empty")

	// ErrUnavailable is returned by builds without a sound device backend.
	ErrUnavailable = errors.New("audio output is not available in this build")
)

// PlaybackError records a failed playback step.
type PlaybackError struct {
	Op  string // decode, device or stream
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback %s: %v", e.Op, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
