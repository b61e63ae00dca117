// Package playback reveals a precomputed path one point at a time. Pacing is
// driven by an injected Clock so it never touches the computed values.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tdoa-tracker/internal/tdoa"
)

// Clock abstracts waiting so tests can run playback instantly
type Clock interface {
	// After delivers the current time once d has elapsed
	After(d time.Duration) <-chan time.Time
}

// RealClock waits on wall-clock time
type RealClock struct{}

// After implements Clock
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Frame is one revealed step of the path
type Frame struct {
	Index    int                  // 0-based position in the path
	Point    tdoa.EstimatedPoint  // estimate revealed at this step
	Previous *tdoa.EstimatedPoint // estimate of the previous step, nil for the first
}

// Sink receives each revealed frame, e.g. a publisher
type Sink interface {
	Publish(ctx context.Context, f Frame) error
}

// Player reveals path points at a fixed interval
type Player struct {
	Interval time.Duration
	Clock    Clock
	Sinks    []Sink
	Logger   *slog.Logger

	// OnPublishError is called when a sink fails; playback continues
	OnPublishError func(Frame, error)
}

// NewPlayer creates a player on the wall clock
func NewPlayer(interval time.Duration, logger *slog.Logger, sinks ...Sink) *Player {
	return &Player{
		Interval: interval,
		Clock:    RealClock{},
		Sinks:    sinks,
		Logger:   logger,
	}
}

// Play reveals point i at i*Interval from the start, calling fn for each one.
// It returns tdoa.ErrEmptyInput for an empty path and ctx.Err() when cancelled.
func (p *Player) Play(ctx context.Context, path []tdoa.EstimatedPoint, fn func(Frame) error) error {
	if len(path) == 0 {
		return fmt.Errorf("nothing to play: %w", tdoa.ErrEmptyInput)
	}
	clock := p.Clock
	if clock == nil {
		clock = RealClock{}
	}

	for i := range path {
		if i > 0 && p.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clock.After(p.Interval):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		frame := Frame{Index: i, Point: path[i]}
		if i > 0 {
			prev := path[i-1]
			frame.Previous = &prev
		}

		if fn != nil {
			if err := fn(frame); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
		p.publish(ctx, frame)
	}
	return nil
}

func (p *Player) publish(ctx context.Context, f Frame) {
	for _, s := range p.Sinks {
		if err := s.Publish(ctx, f); err != nil {
			if p.Logger != nil {
				p.Logger.Warn("failed to publish point", "index", f.Index, "error", err)
			}
			if p.OnPublishError != nil {
				p.OnPublishError(f, err)
			}
		}
	}
}
