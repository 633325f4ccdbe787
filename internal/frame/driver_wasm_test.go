package frame

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wasm-canvas/internal/wasm"
	"github.com/woxQAQ/wasm-canvas/internal/wasm/wasmtest"
	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

func startStub(t *testing.T, stub wasmtest.Stub) *wasm.Runner {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	runtime, err := wasm.NewRuntime(ctx, logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { runtime.Close(ctx) })

	loader := wasm.NewModuleLoader(runtime, logger)
	_, err = loader.LoadModuleFromMemory(ctx, "stub", stub.Build(t))
	require.NoError(t, err)

	module, err := wasm.NewInstanceManager(runtime, wasm.NewHostFunctions(logger), logger).
		Instantiate(ctx, &wasm.InstanceConfig{ModuleName: "stub"})
	require.NoError(t, err)

	runner, err := module.Start(ctx, wasm.DefaultStartOptions())
	require.NoError(t, err)
	return runner
}

func TestDriverWithModuleOpaqueWhite(t *testing.T) {
	runner := startStub(t, wasmtest.Default())

	var last *image.RGBA
	presenter := PresenterFunc(func(_ context.Context, img *image.RGBA) error {
		last = img
		return nil
	})

	res := abi.Resolution{Width: abi.DefaultWidth, Height: abi.DefaultHeight}
	d, err := NewDriver(runner, &scriptScheduler{timestamps: []float64{0, 16, 33}}, presenter,
		Config{Resolution: res, MaxFrames: 3}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))

	require.NotNil(t, last)
	assert.Equal(t, image.Rect(0, 0, 320, 240), last.Bounds())
	white := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	for _, p := range []image.Point{{0, 0}, {319, 0}, {0, 239}, {319, 239}, {160, 120}} {
		assert.Equal(t, white, last.RGBAAt(p.X, p.Y), "pixel %v", p)
	}
	assert.Equal(t, uint64(3), d.Stats().Frames)
}

func TestDriverWithModulePattern(t *testing.T) {
	stub := wasmtest.Default()
	stub.Fill = wasmtest.FillPattern
	runner := startStub(t, stub)

	var frames [][]byte
	presenter := PresenterFunc(func(_ context.Context, img *image.RGBA) error {
		frames = append(frames, append([]byte(nil), img.Pix...))
		return nil
	})

	res := abi.Resolution{Width: abi.DefaultWidth, Height: abi.DefaultHeight}
	d, err := NewDriver(runner, &scriptScheduler{timestamps: []float64{0, 16}}, presenter,
		Config{Resolution: res, MaxFrames: 2}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))

	require.Len(t, frames, 2)
	for frame, pix := range frames {
		for i, b := range pix {
			if want := wasmtest.PatternAt(i, uint32(frame)); b != want {
				t.Fatalf("frame %d byte %d = %d, want %d", frame, i, b, want)
			}
		}
	}
}

func TestDriverWithModuleTrap(t *testing.T) {
	stub := wasmtest.Default()
	stub.Fill = wasmtest.FillTrap
	runner := startStub(t, stub)

	presented := 0
	presenter := PresenterFunc(func(context.Context, *image.RGBA) error {
		presented++
		return nil
	})

	res := abi.Resolution{Width: abi.DefaultWidth, Height: abi.DefaultHeight}
	d, err := NewDriver(runner, &scriptScheduler{timestamps: []float64{0, 16}}, presenter,
		Config{Resolution: res}, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = d.Run(context.Background())
	var trap *wasm.TrapError
	require.ErrorAs(t, err, &trap)
	assert.Equal(t, abi.ExportRender, trap.Export)
	assert.Zero(t, presented)
}

func TestDriverWithModuleCancelAbortsRender(t *testing.T) {
	stub := wasmtest.Default()
	stub.Fill = wasmtest.FillSpin
	runner := startStub(t, stub)

	res := abi.Resolution{Width: abi.DefaultWidth, Height: abi.DefaultHeight}
	d, err := NewDriver(runner, &scriptScheduler{timestamps: []float64{0}}, &recordingPresenter{},
		Config{Resolution: res}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("frame loop did not stop while render was spinning")
	}
	assert.Equal(t, uint64(0), d.Stats().Frames)
}
