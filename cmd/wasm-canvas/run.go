package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-canvas/internal/display"
	"github.com/woxQAQ/wasm-canvas/internal/host"
	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [module-url]",
		Short: "Load a frame module and drive it at display refresh rate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.cfg.Module.URL = args[0]
			}
			mode, err := display.ParseMode(a.cfg.Display.Mode)
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), mode)
		},
	}

	flags := cmd.Flags()
	flags.String("module", "./public/lib.wasm", "Module location: path, file:// or http(s):// URL")
	flags.String("manifest", "", "module.yaml (or its directory) describing the module")
	flags.Uint32("width", abi.DefaultWidth, "Logical render width")
	flags.Uint32("height", abi.DefaultHeight, "Logical render height")
	flags.String("arg-order", abi.PixelsFirst.String(), "Render address order: pixels-first or scratch-first")
	flags.Uint32("scratch", abi.DefaultScratchBytesPerPixel, "Scratch bytes reserved per pixel")
	flags.Float64("fps", 60, "Frames per second")
	flags.Uint64("frames", 0, "Stop after this many frames (0 runs until interrupted)")
	flags.String("display", "auto", "Display: auto, terminal, png or none")
	flags.Float64("pixel-ratio", 1, "Device pixel ratio applied to the displayed size")
	flags.String("snapshot", "frame.png", "PNG file written in png display mode")
	flags.Uint64("snapshot-every", 1, "Write every n-th frame in png display mode")
	flags.Uint32("memory-limit-pages", 256, "Upper bound for module memory in 64KiB pages")
	flags.String("cache-dir", "", "Compilation cache directory (empty disables)")
	flags.Bool("trace", false, "Log every module and host function call (shown at --log-level debug)")
	a.bind(flags, map[string]string{
		"module.url":                     "module",
		"module.manifest":                "manifest",
		"render.width":                   "width",
		"render.height":                  "height",
		"render.arg_order":               "arg-order",
		"render.scratch_bytes_per_pixel": "scratch",
		"frame.refresh_rate":             "fps",
		"frame.max_frames":               "frames",
		"display.mode":                   "display",
		"display.pixel_ratio":            "pixel-ratio",
		"display.snapshot_path":          "snapshot",
		"display.snapshot_every":         "snapshot-every",
		"wasm.memory_limit_pages":        "memory-limit-pages",
		"wasm.cache_dir":                 "cache-dir",
		"wasm.debug":                     "trace",
	})
	return cmd
}

func (a *app) run(ctx context.Context, mode display.Mode) error {
	h, err := host.New(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(context.Background()); err != nil {
			a.logger.Error("Failed to close host", zap.Error(err))
		}
	}()

	if mode.Resolve(os.Stdout) == display.ModeTerminal && a.cfg.LogFile == "" {
		a.logger.Warn("Terminal display shares the screen with logs; set --log-file to keep them apart")
	}

	err = h.Run(ctx, func(res abi.Resolution) (display.Presenter, error) {
		return display.New(display.Options{
			Mode:          mode,
			PixelRatio:    a.cfg.Display.PixelRatio,
			Width:         a.cfg.Display.Width,
			Height:        a.cfg.Display.Height,
			SnapshotPath:  a.cfg.Display.SnapshotPath,
			SnapshotEvery: a.cfg.Display.SnapshotEvery,
		}, res, a.logger)
	})
	if err != nil {
		return fmt.Errorf("session failed: %w", err)
	}
	return nil
}
