// Package host ties the module loader, the frame driver and a presenter
// together for one session.
package host

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/woxQAQ/wasm-canvas/internal/config"
	"github.com/woxQAQ/wasm-canvas/internal/display"
	"github.com/woxQAQ/wasm-canvas/internal/frame"
	"github.com/woxQAQ/wasm-canvas/internal/manifest"
	"github.com/woxQAQ/wasm-canvas/internal/wasm"
	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

// PresenterFactory builds the presenter once the render resolution is known.
type PresenterFactory func(res abi.Resolution) (display.Presenter, error)

type Host struct {
	cfg         *config.Config
	logger      *zap.Logger
	wasmRuntime *wasm.Runtime
	modules     *wasm.ModuleLoader
	manifests   *manifest.Loader
	instances   *wasm.InstanceManager
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Host, error) {
	// Initialize Wasm runtime.
	wasmConfig := &wasm.RuntimeConfig{
		MemoryLimitPages: cfg.Wasm.MemoryLimitPages,
		DebugEnabled:     cfg.Wasm.Debug,
		CacheDir:         cfg.Wasm.CacheDir,
	}

	wasmRuntime, err := wasm.NewRuntime(ctx, logger, wasmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	logger.Info("Host initialized",
		zap.Uint32("wasm_memory_limit_pages", cfg.Wasm.MemoryLimitPages),
		zap.String("wasm_cache_dir", cfg.Wasm.CacheDir),
	)

	return &Host{
		cfg:         cfg,
		logger:      logger,
		wasmRuntime: wasmRuntime,
		modules:     wasm.NewModuleLoader(wasmRuntime, logger),
		manifests:   manifest.NewLoader(wasmRuntime, logger),
		instances:   wasm.NewInstanceManager(wasmRuntime, wasm.NewHostFunctions(logger), logger),
	}, nil
}

// Start loads, instantiates and starts the configured module. A failure is
// final for the session; nothing is retried.
func (h *Host) Start(ctx context.Context) (*wasm.Runner, error) {
	runner, err := h.start(ctx)
	if err != nil {
		h.logger.Error("Failed to start module", zap.Error(err))
		return nil, err
	}
	return runner, nil
}

func (h *Host) start(ctx context.Context) (*wasm.Runner, error) {
	var (
		name string
		desc *manifest.Manifest
	)

	if h.cfg.Module.Manifest != "" {
		bundle, err := h.manifests.Load(ctx, h.cfg.Module.Manifest)
		if err != nil {
			return nil, err
		}
		name, desc = bundle.Compiled.Name, bundle.Manifest
	} else {
		compiled, err := h.modules.LoadModuleFromURL(ctx, h.cfg.Module.URL)
		if err != nil {
			return nil, err
		}
		name = compiled.Name
	}

	opts, err := StartOptions(h.cfg, desc)
	if err != nil {
		return nil, err
	}

	module, err := h.instances.Instantiate(ctx, &wasm.InstanceConfig{ModuleName: name})
	if err != nil {
		return nil, err
	}

	runner, err := module.Start(ctx, opts)
	if err != nil {
		_ = module.Close(ctx)
		return nil, err
	}
	return runner, nil
}

// StartOptions merges the render configuration with the manifest's
// overrides. desc may be nil.
func StartOptions(cfg *config.Config, desc *manifest.Manifest) (wasm.StartOptions, error) {
	order, ok := abi.ParseArgOrder(cfg.Render.ArgOrder)
	if !ok {
		return wasm.StartOptions{}, fmt.Errorf("unknown render arg order %q", cfg.Render.ArgOrder)
	}
	opts := wasm.StartOptions{
		Resolution:           cfg.Resolution(),
		ScratchBytesPerPixel: cfg.Render.ScratchBytesPerPixel,
		ArgOrder:             order,
	}
	if desc == nil {
		return opts, nil
	}

	if res, ok := desc.Resolution(); ok {
		opts.Resolution = res
	}
	if order, ok := desc.ArgOrder(); ok {
		opts.ArgOrder = order
	}
	if desc.Render.ScratchBytesPerPixel != 0 {
		opts.ScratchBytesPerPixel = desc.Render.ScratchBytesPerPixel
	}
	return opts, nil
}

// Run starts the module and drives frames into the presenter until ctx is
// cancelled, the frame limit is reached, the viewer leaves or a frame fails.
func (h *Host) Run(ctx context.Context, newPresenter PresenterFactory) error {
	runner, err := h.Start(ctx)
	if err != nil {
		return err
	}
	defer runner.Close(context.Background())

	presenter, err := newPresenter(runner.Resolution())
	if err != nil {
		return fmt.Errorf("failed to create presenter: %w", err)
	}

	ticker, err := frame.NewTicker(h.cfg.Frame.RefreshRate)
	if err != nil {
		return err
	}
	defer ticker.Stop()

	driver, err := frame.NewDriver(runner, ticker, presenter, frame.Config{
		Resolution: runner.Resolution(),
		MaxFrames:  h.cfg.Frame.MaxFrames,
	}, h.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Whichever side finishes first stops the other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return presenter.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return driver.Run(gctx)
	})

	err = g.Wait()
	stats := driver.Stats()
	h.logger.Info("Session ended",
		zap.Uint64("frames", stats.Frames),
		zap.Duration("last_frame", stats.LastFrame),
		zap.Error(err),
	)
	return err
}

// Close gracefully shuts down the host.
func (h *Host) Close(ctx context.Context) error {
	h.logger.Info("Shutting down host")

	// Shutdown Wasm runtime.
	if err := h.wasmRuntime.Close(ctx); err != nil {
		h.logger.Error("Failed to shutdown Wasm runtime", zap.Error(err))
		return err
	}

	h.logger.Info("Host shutdown complete")
	return nil
}
