package frame

import (
	"context"
	"testing"
	"time"
)

func TestNewTickerRejectsRate(t *testing.T) {
	for _, rate := range []float64{0, -60} {
		if _, err := NewTicker(rate); err == nil {
			t.Errorf("NewTicker(%v) should fail", rate)
		}
	}
}

func TestTickerInterval(t *testing.T) {
	ticker, err := NewTicker(50)
	if err != nil {
		t.Fatal(err)
	}
	if got := ticker.Interval(); got != 20*time.Millisecond {
		t.Errorf("Interval() = %v, want 20ms", got)
	}
}

func TestTickerTimestamps(t *testing.T) {
	ticker, err := NewTicker(200)
	if err != nil {
		t.Fatal(err)
	}
	defer ticker.Stop()

	ctx := context.Background()
	first, err := ticker.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first != 0 {
		t.Errorf("first timestamp = %v, want 0", first)
	}

	prev := first
	for i := 0; i < 3; i++ {
		ts, err := ticker.Next(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if ts <= prev {
			t.Errorf("timestamp %v did not advance past %v", ts, prev)
		}
		prev = ts
	}
}

func TestTickerCancelled(t *testing.T) {
	ticker, err := NewTicker(1)
	if err != nil {
		t.Fatal(err)
	}
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := ticker.Next(ctx); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := ticker.Next(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Next() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not return after cancel")
	}
}
