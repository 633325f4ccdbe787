package wasm

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

// Module is an instantiated frame module whose startup sequence has not run.
// It cannot advance or render; Start turns it into a Runner.
type Module struct {
	name     string
	module   api.Module
	memory   *Memory
	heapBase uint32

	initialize  api.Function
	createWorld api.Function
	update      api.Function
	render      api.Function

	started atomic.Bool
	release func()
	logger  *zap.Logger
}

// StartOptions configures the layout computed by Start.
type StartOptions struct {
	Resolution           abi.Resolution
	ScratchBytesPerPixel uint32
	ArgOrder             abi.ArgOrder
}

// DefaultStartOptions returns the 320x240 layout with the default scratch reserve.
func DefaultStartOptions() StartOptions {
	return StartOptions{
		Resolution:           abi.Resolution{Width: abi.DefaultWidth, Height: abi.DefaultHeight},
		ScratchBytesPerPixel: abi.DefaultScratchBytesPerPixel,
		ArgOrder:             abi.PixelsFirst,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// HeapBase returns the first free byte after the module's static data.
func (m *Module) HeapBase() uint32 {
	return m.heapBase
}

// MemorySize returns the current linear memory size in bytes.
func (m *Module) MemorySize() uint32 {
	return m.memory.Size()
}

// Close closes the instance.
func (m *Module) Close(ctx context.Context) error {
	if m.release != nil {
		m.release()
	}
	return m.module.Close(ctx)
}

// Start runs initialize followed by create_world at the heap base, places the
// pixel and scratch regions after the world and grows memory to hold them.
// It succeeds at most once per module.
func (m *Module) Start(ctx context.Context, opts StartOptions) (*Runner, error) {
	if opts.Resolution.Width == 0 || opts.Resolution.Height == 0 {
		return nil, fmt.Errorf("invalid resolution %dx%d", opts.Resolution.Width, opts.Resolution.Height)
	}
	pixelBytes := uint64(opts.Resolution.Width) * uint64(opts.Resolution.Height) * abi.BytesPerPixel
	scratchBytes := uint64(opts.Resolution.Width) * uint64(opts.Resolution.Height) * uint64(opts.ScratchBytesPerPixel)
	if pixelBytes > math.MaxUint32 || scratchBytes > math.MaxUint32 {
		return nil, fmt.Errorf("resolution %dx%d does not fit in linear memory", opts.Resolution.Width, opts.Resolution.Height)
	}
	if !m.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	if _, err := m.initialize.Call(ctx); err != nil {
		return nil, &TrapError{Export: abi.ExportInitialize, Err: err}
	}

	results, err := m.createWorld.Call(ctx, api.EncodeU32(m.heapBase))
	if err != nil {
		return nil, &TrapError{Export: abi.ExportCreateWorld, Err: err}
	}
	worldSize := api.DecodeU32(results[0])

	layout, err := NewLayout(m.heapBase, worldSize, uint32(pixelBytes), uint32(scratchBytes))
	if err != nil {
		return nil, err
	}
	if err := layout.World.Validate(m.memory.Size()); err != nil {
		return nil, &MemoryAccessError{Operation: "create_world", Address: layout.World.Offset, Length: layout.World.Length, Err: err}
	}

	grown, err := m.memory.EnsureCapacity(layout.Scratch.End())
	if err != nil {
		return nil, err
	}

	m.logger.Info("Module started",
		zap.Uint32("heap_base", layout.HeapBase),
		zap.Uint32("world_bytes", layout.World.Length),
		zap.Uint32("pixel_addr", layout.Pixels.Offset),
		zap.Uint32("scratch_addr", layout.Scratch.Offset),
		zap.Uint32("pages_grown", grown),
		zap.Uint32("memory_bytes", m.memory.Size()),
	)

	return &Runner{
		module:     m,
		layout:     layout,
		resolution: opts.Resolution,
		order:      opts.ArgOrder,
		stack:      make([]uint64, 6),

		scratchPerPixel: opts.ScratchBytesPerPixel,
	}, nil
}

// RenderCall is one invocation of render.
type RenderCall struct {
	World  uint32
	Width  uint32
	Height uint32
	Frame  uint32
	Pixels uint32
	// Scratch is the start of the module's transient render storage.
	Scratch uint32
}

// Runner is a started module. It is the only handle that can advance
// simulation time or render, and it must be used from one goroutine.
type Runner struct {
	module     *Module
	layout     Layout
	resolution abi.Resolution
	order      abi.ArgOrder
	stack      []uint64

	scratchPerPixel uint32
}

// Layout returns the regions placed by Start.
func (r *Runner) Layout() Layout {
	return r.layout
}

// Resolution returns the logical render resolution.
func (r *Runner) Resolution() abi.Resolution {
	return r.resolution
}

// Update passes elapsed wall-clock seconds to the module.
func (r *Runner) Update(ctx context.Context, seconds float64) error {
	r.stack[0] = api.EncodeF64(seconds)
	if err := r.module.update.CallWithStack(ctx, r.stack[:1]); err != nil {
		return &TrapError{Export: abi.ExportUpdate, Err: err}
	}
	return nil
}

// Render asks the module to draw one frame.
func (r *Runner) Render(ctx context.Context, call RenderCall) error {
	pixels := Region{Offset: call.Pixels, Length: call.Width * call.Height * abi.BytesPerPixel}
	scratch := Region{Offset: call.Scratch, Length: call.Width * call.Height * r.scratchPerPixel}
	if err := r.validate(pixels); err != nil {
		return err
	}
	if err := r.validate(scratch); err != nil {
		return err
	}

	fifth, sixth := call.Pixels, call.Scratch
	if r.order == abi.ScratchFirst {
		fifth, sixth = call.Scratch, call.Pixels
	}

	r.stack[0] = api.EncodeU32(call.World)
	r.stack[1] = api.EncodeU32(call.Width)
	r.stack[2] = api.EncodeU32(call.Height)
	r.stack[3] = api.EncodeU32(call.Frame)
	r.stack[4] = api.EncodeU32(fifth)
	r.stack[5] = api.EncodeU32(sixth)

	if err := r.module.render.CallWithStack(ctx, r.stack); err != nil {
		return &TrapError{Export: abi.ExportRender, Err: err}
	}
	return nil
}

func (r *Runner) validate(region Region) error {
	if err := region.Validate(r.module.memory.Size()); err != nil {
		return &MemoryAccessError{Operation: "render", Address: region.Offset, Length: region.Length, Err: err}
	}
	return nil
}

// Read returns a bounds checked view of region.
func (r *Runner) Read(region Region) ([]byte, error) {
	return r.module.memory.Read(region)
}

// Close closes the underlying module.
func (r *Runner) Close(ctx context.Context) error {
	return r.module.Close(ctx)
}
