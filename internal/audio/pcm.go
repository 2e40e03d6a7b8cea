package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/faiface/beep"
)

// ratioSetter is implemented by *beep.Resampler.
type ratioSetter interface {
	SetRatio(ratio float64)
}

// pcmReader adapts a beep streamer to the signed 16-bit little endian
// stereo byte stream oto reads.
type pcmReader struct {
	mu       sync.Mutex
	streamer beep.Streamer
	ratio    ratioSetter
	samples  [][2]float64
	pending  []byte
	done     bool
	err      error
}

func newPCMReader(s beep.Streamer, ratio ratioSetter) *pcmReader {
	return &pcmReader{
		streamer: s,
		ratio:    ratio,
		samples:  make([][2]float64, 512),
	}
}

// SetRatio changes the resampling ratio between reads.
func (r *pcmReader) SetRatio(ratio float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ratio != nil {
		r.ratio.SetRatio(ratio)
	}
}

// Err returns the error reported by the underlying streamer.
func (r *pcmReader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *pcmReader) Read(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		if r.done {
			return 0, io.EOF
		}
		r.fill(len(buf))
		if len(r.pending) == 0 {
			return 0, io.EOF
		}
	}

	n := copy(buf, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// fill streams up to want bytes worth of frames into pending.
func (r *pcmReader) fill(want int) {
	frames := want / (channels * bytesPerSample)
	if frames < 1 {
		frames = 1
	}
	if frames > len(r.samples) {
		frames = len(r.samples)
	}

	n, ok := r.streamer.Stream(r.samples[:frames])
	if !ok {
		r.done = true
		r.err = r.streamer.Err()
	}

	out := make([]byte, n*channels*bytesPerSample)
	for i := 0; i < n; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * bytesPerSample
			binary.LittleEndian.PutUint16(out[off:], uint16(toInt16(r.samples[i][c])))
		}
	}
	r.pending = out
}

func toInt16(v float64) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(v * math.MaxInt16)
}
