// Package frame drives a started module at display refresh rate and hands
// each rendered pixel buffer to a presenter.
package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-canvas/internal/wasm"
	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

// ErrDriverRunning is returned when Run is called while a loop is active.
var ErrDriverRunning = errors.New("frame driver already running")

// Module is the capability set the driver needs from a started module.
// *wasm.Runner satisfies it; tests substitute their own.
type Module interface {
	Layout() wasm.Layout
	Update(ctx context.Context, seconds float64) error
	Render(ctx context.Context, call wasm.RenderCall) error
	Read(region wasm.Region) ([]byte, error)
}

// Presenter puts a finished frame on screen. The image is owned by the
// driver and is overwritten by the next frame.
type Presenter interface {
	Present(ctx context.Context, img *image.RGBA) error
}

// PresenterFunc adapts an ordinary function to Presenter.
type PresenterFunc func(ctx context.Context, img *image.RGBA) error

// Present calls f.
func (f PresenterFunc) Present(ctx context.Context, img *image.RGBA) error {
	return f(ctx, img)
}

// Config holds driver settings.
type Config struct {
	// Resolution is the fixed logical size passed to render.
	Resolution abi.Resolution

	// MaxFrames stops the loop after that many frames; zero runs until the
	// context is cancelled.
	MaxFrames uint64
}

// Stats is a snapshot of loop progress.
type Stats struct {
	Frames    uint64
	Sample    uint32
	LastFrame time.Duration
}

// Driver owns the animation loop for one started module.
type Driver struct {
	module    Module
	scheduler Scheduler
	presenter Presenter
	config    Config
	surface   Surface
	logger    *zap.Logger

	running atomic.Bool

	// sample is the frame index passed to render. Only the loop writes it.
	sample    atomic.Uint32
	frames    atomic.Uint64
	lastFrame atomic.Int64
}

// NewDriver creates a driver. The module must already be started.
func NewDriver(module Module, scheduler Scheduler, presenter Presenter, config Config, logger *zap.Logger) (*Driver, error) {
	if config.Resolution.Width == 0 || config.Resolution.Height == 0 {
		return nil, fmt.Errorf("invalid resolution %dx%d", config.Resolution.Width, config.Resolution.Height)
	}
	if pixels := module.Layout().Pixels; pixels.Length < config.Resolution.PixelBytes() {
		return nil, fmt.Errorf("pixel region %s is smaller than %dx%d frame", pixels, config.Resolution.Width, config.Resolution.Height)
	}

	return &Driver{
		module:    module,
		scheduler: scheduler,
		presenter: presenter,
		config:    config,
		logger:    logger.With(zap.String("component", "frame-driver")),
	}, nil
}

// Run executes frames until the context is cancelled, MaxFrames is reached
// or a frame fails. A requested stop returns nil, including one that aborts a
// module call in flight; any other failure from the module, the copy or the
// presenter ends the loop and is returned as is.
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrDriverRunning
	}
	defer d.running.Store(false)

	d.logger.Info("Frame loop started",
		zap.Uint32("width", d.config.Resolution.Width),
		zap.Uint32("height", d.config.Resolution.Height),
		zap.Uint64("max_frames", d.config.MaxFrames),
	)

	for {
		ts, err := d.scheduler.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Info("Frame loop stopped", zap.Uint64("frames", d.frames.Load()))
				return nil
			}
			return fmt.Errorf("scheduler failed: %w", err)
		}

		if err := d.step(ctx, ts); err != nil {
			// A call aborted by the stop signal is a stop, not a fault.
			if ctx.Err() != nil {
				d.logger.Info("Frame loop stopped", zap.Uint64("frames", d.frames.Load()))
				return nil
			}
			d.logger.Error("Frame failed",
				zap.Uint32("sample", d.sample.Load()),
				zap.Error(err),
			)
			return err
		}

		if d.config.MaxFrames > 0 && d.frames.Load() >= d.config.MaxFrames {
			d.logger.Info("Frame loop reached frame limit", zap.Uint64("frames", d.frames.Load()))
			return nil
		}
		if ctx.Err() != nil {
			d.logger.Info("Frame loop stopped", zap.Uint64("frames", d.frames.Load()))
			return nil
		}
	}
}

// step runs one frame: advance time, render, copy, present, count.
func (d *Driver) step(ctx context.Context, tsMillis float64) error {
	start := time.Now()
	sample := d.sample.Load()

	if err := d.module.Update(ctx, tsMillis/1000); err != nil {
		return fmt.Errorf("frame %d: update: %w", sample, err)
	}

	width, height := d.config.Resolution.Width, d.config.Resolution.Height
	img := d.surface.Acquire(int(width), int(height))

	layout := d.module.Layout()
	pixels := wasm.Region{Offset: layout.Pixels.Offset, Length: width * height * abi.BytesPerPixel}

	if ce := d.logger.Check(zap.DebugLevel, "Render sample"); ce != nil {
		ce.Write(zap.Uint32("sample", sample), zap.Float64("timestamp_ms", tsMillis))
	}

	err := d.module.Render(ctx, wasm.RenderCall{
		World:   layout.World.Offset,
		Width:   width,
		Height:  height,
		Frame:   sample,
		Pixels:  pixels.Offset,
		Scratch: layout.Scratch.Offset,
	})
	if err != nil {
		return fmt.Errorf("frame %d: render: %w", sample, err)
	}

	if err := d.surface.CopyFrom(d.module, pixels); err != nil {
		return fmt.Errorf("frame %d: %w", sample, err)
	}

	if err := d.presenter.Present(ctx, img); err != nil {
		return fmt.Errorf("frame %d: present: %w", sample, err)
	}

	d.sample.Store(sample + 1)
	d.frames.Add(1)
	d.lastFrame.Store(int64(time.Since(start)))
	return nil
}

// Stats returns loop progress. It is safe to call from any goroutine.
func (d *Driver) Stats() Stats {
	return Stats{
		Frames:    d.frames.Load(),
		Sample:    d.sample.Load(),
		LastFrame: time.Duration(d.lastFrame.Load()),
	}
}
