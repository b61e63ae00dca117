package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tdoa-tracker/internal/tdoa"
)

// fakeClock fires immediately and records the requested waits
type fakeClock struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type recordingSink struct {
	frames []Frame
	err    error
}

func (s *recordingSink) Publish(_ context.Context, f Frame) error {
	s.frames = append(s.frames, f)
	return s.err
}

var path = []tdoa.EstimatedPoint{
	{X: 1, Y: 1, Fault: 0.1},
	{X: 2, Y: 3, Fault: 0.2},
	{X: 4, Y: 9, Fault: 0.3},
}

func TestPlayRevealsInOrder(t *testing.T) {
	clock := &fakeClock{}
	sink := &recordingSink{}
	p := &Player{Interval: time.Second, Clock: clock, Sinks: []Sink{sink}}

	var seen []Frame
	err := p.Play(context.Background(), path, func(f Frame) error {
		seen = append(seen, f)
		return nil
	})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	if len(seen) != len(path) {
		t.Fatalf("Expected %d frames, got %d", len(path), len(seen))
	}
	for i, f := range seen {
		if f.Index != i || f.Point != path[i] {
			t.Errorf("frame %d = %+v", i, f)
		}
	}
	if seen[0].Previous != nil {
		t.Errorf("first frame should have no previous point")
	}
	if seen[2].Previous == nil || *seen[2].Previous != path[1] {
		t.Errorf("frame 2 previous = %v, want %v", seen[2].Previous, path[1])
	}

	// first point is shown immediately, then one wait per point
	if len(clock.waits) != len(path)-1 {
		t.Fatalf("Expected %d waits, got %d", len(path)-1, len(clock.waits))
	}
	for _, w := range clock.waits {
		if w != time.Second {
			t.Errorf("Expected 1s wait, got %v", w)
		}
	}
	if len(sink.frames) != len(path) {
		t.Errorf("sink saw %d frames, want %d", len(sink.frames), len(path))
	}
}

func TestPlayEmptyPath(t *testing.T) {
	p := &Player{Clock: &fakeClock{}}
	err := p.Play(context.Background(), nil, nil)
	if !errors.Is(err, tdoa.ErrEmptyInput) {
		t.Fatalf("Expected ErrEmptyInput, got %v", err)
	}
}

func TestPlayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{Interval: time.Hour, Clock: RealClock{}}

	count := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Play(ctx, path, func(Frame) error {
			count++
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after cancel")
	}
	if count != 1 {
		t.Fatalf("Expected only the first point before cancel, got %d", count)
	}
}

func TestPlaySinkErrorsDoNotStopPlayback(t *testing.T) {
	sink := &recordingSink{err: errors.New("redis down")}
	failures := 0
	p := &Player{
		Clock:          &fakeClock{},
		Sinks:          []Sink{sink},
		OnPublishError: func(Frame, error) { failures++ },
	}

	if err := p.Play(context.Background(), path, nil); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if failures != len(path) {
		t.Fatalf("Expected %d publish failures, got %d", len(path), failures)
	}
}

func TestPlayCallbackErrorStops(t *testing.T) {
	boom := errors.New("render failed")
	p := &Player{Clock: &fakeClock{}}
	err := p.Play(context.Background(), path, func(f Frame) error {
		if f.Index == 1 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected callback error, got %v", err)
	}
}
