package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/faiface/beep"
)

func TestPlayerConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    PlayerConfig
		expectErr bool
	}{
		{"default", DefaultPlayerConfig(), false},
		{"48000Hz", PlayerConfig{SampleRate: 48000, BufferSize: 50 * time.Millisecond, Quality: 1}, false},
		{"invalid sample rate", PlayerConfig{SampleRate: 22050, BufferSize: time.Millisecond, Quality: 4}, true},
		{"zero buffer", PlayerConfig{SampleRate: 44100, Quality: 4}, true},
		{"quality too high", PlayerConfig{SampleRate: 44100, BufferSize: time.Millisecond, Quality: 65}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.config)
			if tt.expectErr && err == nil {
				t.Errorf("validateConfig() expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("validateConfig() unexpected error: %v", err)
			}
		})
	}
}

// constant streams n frames with a fixed value on both channels.
func constant(n int, v float64) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if n <= 0 {
			return 0, false
		}
		k := len(samples)
		if k > n {
			k = n
		}
		for i := 0; i < k; i++ {
			samples[i] = [2]float64{v, -v}
		}
		n -= k
		return k, true
	})
}

func TestPCMReader(t *testing.T) {
	r := newPCMReader(constant(1000, 0.5), nil)

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(data) != 1000*channels*bytesPerSample {
		t.Fatalf("got %d bytes, want %d", len(data), 1000*channels*bytesPerSample)
	}

	left := int16(binary.LittleEndian.Uint16(data[0:]))
	right := int16(binary.LittleEndian.Uint16(data[2:]))
	if left != toInt16(0.5) || right != toInt16(-0.5) {
		t.Errorf("first frame = (%d, %d), want (%d, %d)", left, right, toInt16(0.5), toInt16(-0.5))
	}
}

type ratioRecorder struct{ got float64 }

func (r *ratioRecorder) SetRatio(ratio float64) { r.got = ratio }

func TestPCMReader_SetRatio(t *testing.T) {
	rec := &ratioRecorder{}
	r := newPCMReader(constant(1, 0), rec)
	r.SetRatio(1.25)
	if rec.got != 1.25 {
		t.Errorf("ratio = %v, want 1.25", rec.got)
	}
}

func TestToInt16Clamps(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{1, 32767},
		{2, 32767},
		{-2, -32767},
	}
	for _, tt := range tests {
		if got := toInt16(tt.in); got != tt.want {
			t.Errorf("toInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPlaybackErrorUnwrap(t *testing.T) {
	err := error(&PlaybackError{Op: "decode", Err: ErrEmptyAudio})
	if !errors.Is(err, ErrEmptyAudio) {
		t.Error("PlaybackError should unwrap to its cause")
	}
	if err.Error() != "playback decode: audio data is empty" {
		t.Errorf("Error() = %q", err.Error())
	}
}
