package frame

import (
	"context"
	"fmt"
	"time"
)

// Scheduler hands out frame callbacks, one at a time.
type Scheduler interface {
	// Next blocks until the next display frame and returns its timestamp
	// in milliseconds since the scheduler's origin.
	Next(ctx context.Context) (float64, error)
}

// Ticker schedules frames at a fixed refresh rate.
// The first frame fires immediately with timestamp 0. Ticks missed while a
// frame runs long are dropped rather than queued.
type Ticker struct {
	interval time.Duration
	origin   time.Time
	ticker   *time.Ticker
}

// NewTicker creates a scheduler firing rate times per second.
func NewTicker(rate float64) (*Ticker, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("refresh rate must be positive, got %v", rate)
	}
	return &Ticker{interval: time.Duration(float64(time.Second) / rate)}, nil
}

// Interval returns the time between frames.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Next implements Scheduler.
func (t *Ticker) Next(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if t.ticker == nil {
		t.origin = time.Now()
		t.ticker = time.NewTicker(t.interval)
		return 0, nil
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case tick := <-t.ticker.C:
		return float64(tick.Sub(t.origin)) / float64(time.Millisecond), nil
	}
}

// Stop releases the underlying timer.
func (t *Ticker) Stop() {
	if t.ticker != nil {
		t.ticker.Stop()
	}
}
