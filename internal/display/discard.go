package display

import (
	"context"
	"image"
	"sync/atomic"
)

// Discard drops every frame. It is the presenter for headless runs.
type Discard struct {
	frames atomic.Uint64
}

// Present counts the frame.
func (d *Discard) Present(context.Context, *image.RGBA) error {
	d.frames.Add(1)
	return nil
}

// Frames returns how many frames were dropped.
func (d *Discard) Frames() uint64 {
	return d.frames.Load()
}

// Run waits for ctx.
func (d *Discard) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
