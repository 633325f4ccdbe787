// Package display puts rendered frames in front of a viewer.
package display

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/woxQAQ/wasm-canvas/internal/canvas"
	"github.com/woxQAQ/wasm-canvas/internal/frame"
	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

// Presenter is a frame sink with its own lifetime.
type Presenter interface {
	frame.Presenter

	// Run blocks until ctx is done or the viewer goes away. A viewer
	// leaving on its own is not an error.
	Run(ctx context.Context) error
}

// Mode names a presenter kind.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeTerminal Mode = "terminal"
	ModePNG      Mode = "png"
	ModeNone     Mode = "none"
)

// ParseMode validates a configured mode. The empty string means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeTerminal, ModePNG, ModeNone:
		return m, nil
	default:
		return "", fmt.Errorf("unknown display mode %q", s)
	}
}

// Resolve turns auto into terminal when out is a terminal and none otherwise.
func (m Mode) Resolve(out io.Writer) Mode {
	if m != ModeAuto {
		return m
	}
	if f, ok := out.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		return ModeTerminal
	}
	return ModeNone
}

// Options configures New.
type Options struct {
	Mode       Mode
	PixelRatio float64

	// Width and Height are the displayed size for the png presenter. Zero
	// uses the logical resolution.
	Width  int
	Height int

	SnapshotPath  string
	SnapshotEvery uint64

	Input  io.Reader
	Output io.Writer
}

// New builds the presenter selected by opts.Mode for frames of the given
// logical resolution.
func New(opts Options, logical abi.Resolution, logger *zap.Logger) (Presenter, error) {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.PixelRatio <= 0 {
		opts.PixelRatio = 1
	}

	mode := opts.Mode.Resolve(opts.Output)
	logger.Info("Display selected",
		zap.String("mode", string(mode)),
		zap.Float64("pixel_ratio", opts.PixelRatio),
	)

	switch mode {
	case ModeTerminal:
		return NewTerminal(canvas.New(logical, logger), TerminalOptions{
			PixelRatio: opts.PixelRatio,
			Input:      opts.Input,
			Output:     opts.Output,
		}, logger), nil

	case ModePNG:
		c := canvas.New(logical, logger)
		w, h := opts.Width, opts.Height
		if w <= 0 || h <= 0 {
			w, h = int(logical.Width), int(logical.Height)
		}
		c.Resize(float64(w), float64(h), opts.PixelRatio)
		return NewSnapshot(c, opts.SnapshotPath, opts.SnapshotEvery, logger)

	case ModeNone:
		return &Discard{}, nil

	default:
		return nil, fmt.Errorf("unknown display mode %q", opts.Mode)
	}
}
