//go:build !nocgo
// +build !nocgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
)

const pollInterval = 10 * time.Millisecond

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func sharedContext(config PlayerConfig) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   config.SampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   config.BufferSize,
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// OtoPlayer plays MP3 clips on the default sound device.
type OtoPlayer struct {
	context *oto.Context
	config  PlayerConfig

	mu      sync.Mutex
	current *playback
	volume  float64
	speed   float64
	closed  bool

	logger *log.Logger
}

// playback is one clip in flight. The decoded stream must stay referenced
// until oto is done reading from it.
type playback struct {
	stream beep.StreamSeekCloser
	pcm    *pcmReader
	player *oto.Player
	sample beep.SampleRate

	stopped  chan struct{}
	stopOnce sync.Once
}

func (pb *playback) stop() {
	pb.stopOnce.Do(func() { close(pb.stopped) })
}

// NewOtoPlayer opens the sound device.
func NewOtoPlayer(config PlayerConfig) (*OtoPlayer, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, err := sharedContext(config)
	if err != nil {
		return nil, &PlaybackError{Op: "device", Err: err}
	}

	return &OtoPlayer{
		context: ctx,
		config:  config,
		volume:  1,
		speed:   1,
		logger:  log.WithPrefix("audio"),
	}, nil
}

// Play decodes audio as MP3 and plays it to the end.
func (p *OtoPlayer) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return &PlaybackError{Op: "decode", Err: ErrEmptyAudio}
	}

	stream, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(audio)))
	if err != nil {
		return &PlaybackError{Op: "decode", Err: err}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = stream.Close()
		return ErrClosed
	}
	p.stopLocked()

	pb := &playback{
		stream:  stream,
		sample:  format.SampleRate,
		stopped: make(chan struct{}),
	}
	resampler := beep.ResampleRatio(p.config.Quality, p.ratio(format.SampleRate, p.speed), stream)
	pb.pcm = newPCMReader(resampler, resampler)
	pb.player = p.context.NewPlayer(pb.pcm)
	pb.player.SetVolume(p.volume)
	p.current = pb
	p.mu.Unlock()

	p.logger.Debug("playing clip", "bytes", len(audio), "rate", format.SampleRate, "len", format.SampleRate.D(stream.Len()))
	pb.player.Play()

	err = p.wait(ctx, pb)

	p.mu.Lock()
	if p.current == pb {
		p.current = nil
	}
	p.mu.Unlock()

	_ = pb.player.Close()
	_ = stream.Close()
	return err
}

func (p *OtoPlayer) wait(ctx context.Context, pb *playback) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pb.player.Pause()
			return ctx.Err()
		case <-pb.stopped:
			pb.player.Pause()
			return nil
		case <-ticker.C:
			if err := pb.player.Err(); err != nil {
				return &PlaybackError{Op: "device", Err: err}
			}
			if err := pb.pcm.Err(); err != nil {
				return &PlaybackError{Op: "stream", Err: err}
			}
			if !pb.player.IsPlaying() {
				return nil
			}
		}
	}
}

// ratio folds the playback rate into the resampling ratio.
func (p *OtoPlayer) ratio(source beep.SampleRate, speed float64) float64 {
	return float64(source) / float64(p.config.SampleRate) * speed
}

// Stop interrupts the current clip. Its Play call returns nil.
func (p *OtoPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *OtoPlayer) stopLocked() {
	if p.current != nil {
		p.current.stop()
		p.current = nil
	}
}

// SetVolume sets the gain between 0 and 1. It applies to the current clip.
func (p *OtoPlayer) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = volume
	if p.current != nil {
		p.current.player.SetVolume(volume)
	}
	return nil
}

// SetSpeed sets the playback rate, where 1 is normal speed. It applies to the
// current clip.
func (p *OtoPlayer) SetSpeed(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("speed must be positive, got %f", rate)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.speed = rate
	if p.current != nil {
		p.current.pcm.SetRatio(p.ratio(p.current.sample, rate))
	}
	return nil
}

// Close stops playback. The oto context stays open for the process.
func (p *OtoPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.closed = true
	return nil
}
