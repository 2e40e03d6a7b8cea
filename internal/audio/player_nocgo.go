//go:build nocgo
// +build nocgo

package audio

import (
	"context"
	"fmt"
)

// Stub for builds without cgo, where no sound device can be opened.

// OtoPlayer is unavailable in nocgo builds.
type OtoPlayer struct{}

// NewOtoPlayer validates config and reports that no device is available.
func NewOtoPlayer(config PlayerConfig) (*OtoPlayer, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return nil, &PlaybackError{Op: "device", Err: ErrUnavailable}
}

func (p *OtoPlayer) Play(context.Context, []byte) error { return ErrUnavailable }
func (p *OtoPlayer) Stop() error { return nil }
func (p *OtoPlayer) SetVolume(float64) error { return ErrUnavailable }
func (p *OtoPlayer) SetSpeed(float64) error { return ErrUnavailable }
func (p *OtoPlayer) Close() error { return nil }
