package audio

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var _ Player = (*MockPlayer)(nil)
var _ Player = (*OtoPlayer)(nil)

func TestMockPlayer_PlayRecords(t *testing.T) {
	var plays atomic.Int32
	mp := NewMockPlayer(5*time.Millisecond, MockCallbacks{
		OnPlay: func([]byte) { plays.Add(1) },
	})

	for _, clip := range []string{"a", "b"} {
		if err := mp.Play(context.Background(), []byte(clip)); err != nil {
			t.Fatalf("Play(%q) failed: %v", clip, err)
		}
	}

	played := mp.Played()
	if len(played) != 2 || string(played[0]) != "a" || string(played[1]) != "b" {
		t.Errorf("Played = %q, want [a b]", played)
	}
	if plays.Load() != 2 {
		t.Errorf("OnPlay called %d times, want 2", plays.Load())
	}
}

func TestMockPlayer_FailFirst(t *testing.T) {
	mp := NewMockPlayer(time.Millisecond, MockCallbacks{})
	mp.FailFirst(2)

	for i := 0; i < 2; i++ {
		err := mp.Play(context.Background(), []byte("x"))
		if !errors.Is(err, ErrSimulated) {
			t.Fatalf("attempt %d: err = %v, want ErrSimulated", i+1, err)
		}
		var pe *PlaybackError
		if !errors.As(err, &pe) {
			t.Fatalf("attempt %d: expected *PlaybackError, got %T", i+1, err)
		}
	}
	if err := mp.Play(context.Background(), []byte("x")); err != nil {
		t.Fatalf("third attempt failed: %v", err)
	}
	if mp.Attempts() != 3 {
		t.Errorf("Attempts = %d, want 3", mp.Attempts())
	}
}

func TestMockPlayer_StopInterruptsPlay(t *testing.T) {
	var stops atomic.Int32
	mp := NewMockPlayer(time.Minute, MockCallbacks{OnStop: func() { stops.Add(1) }})

	done := make(chan error, 1)
	go func() { done <- mp.Play(context.Background(), []byte("long")) }()

	deadline := time.Now().Add(time.Second)
	for !mp.IsPlaying() {
		if time.Now().After(deadline) {
			t.Fatal("clip never started")
		}
		time.Sleep(time.Millisecond)
	}
	_ = mp.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("stopped Play returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Play did not return after Stop")
	}
	if stops.Load() != 1 {
		t.Errorf("OnStop called %d times, want 1", stops.Load())
	}
}

func TestMockPlayer_ContextCancel(t *testing.T) {
	mp := NewMockPlayer(time.Minute, MockCallbacks{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := mp.Play(ctx, []byte("x")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestMockPlayer_Closed(t *testing.T) {
	mp := NewMockPlayer(time.Millisecond, MockCallbacks{})
	_ = mp.Close()

	if err := mp.Play(context.Background(), []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestMockPlayer_Levels(t *testing.T) {
	mp := NewMockPlayer(time.Millisecond, MockCallbacks{})
	_ = mp.SetVolume(0.4)
	_ = mp.SetSpeed(1.5)

	v, s := mp.Levels()
	if v != 0.4 || s != 1.5 {
		t.Errorf("Levels = %v, %v; want 0.4, 1.5", v, s)
	}
	if err := mp.SetSpeed(0); err == nil {
		t.Error("expected error for zero speed")
	}
}
