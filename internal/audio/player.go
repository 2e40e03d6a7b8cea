package audio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Player plays encoded audio clips one at a time.
type Player interface {
	// Play blocks until the clip ends, Stop is called, ctx is done or an
	// error occurs. A stopped clip returns nil.
	Play(ctx context.Context, audio []byte) error
	Stop() error
	SetVolume(volume float64) error
	SetSpeed(rate float64) error
	Close() error
}

const (
	channels       = 2
	bytesPerSample = 2
)

// PlayerConfig contains configuration for the oto player.
type PlayerConfig struct {
	SampleRate int           // 44100 or 48000 Hz only
	BufferSize time.Duration // device buffer
	Quality    int           // resampling quality, 1 to 64
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		BufferSize: 100 * time.Millisecond,
		Quality:    4,
	}
}

func validateConfig(config PlayerConfig) error {
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	if config.Quality < 1 || config.Quality > 64 {
		return fmt.Errorf("resample quality must be between 1 and 64, got %d", config.Quality)
	}
	return nil
}

