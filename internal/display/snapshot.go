package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-canvas/internal/canvas"
)

// Snapshot writes every n-th frame, upscaled to the canvas, as a PNG file.
// The file is replaced atomically so readers never see a partial image.
type Snapshot struct {
	canvas *canvas.Canvas
	path   string
	every  uint64
	seen   uint64
	logger *zap.Logger
}

// NewSnapshot creates a snapshot presenter. every == 0 means every frame.
func NewSnapshot(c *canvas.Canvas, path string, every uint64, logger *zap.Logger) (*Snapshot, error) {
	if path == "" {
		return nil, errors.New("snapshot path is required")
	}
	if every == 0 {
		every = 1
	}
	return &Snapshot{
		canvas: c,
		path:   path,
		every:  every,
		logger: logger.With(zap.String("component", "snapshot")),
	}, nil
}

// Present implements frame.Presenter.
func (s *Snapshot) Present(_ context.Context, img *image.RGBA) error {
	n := s.seen
	s.seen++
	if n%s.every != 0 {
		return nil
	}

	if err := s.write(s.canvas.Blit(img)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.logger.Debug("Snapshot written", zap.String("path", s.path), zap.Uint64("frame", n))
	return nil
}

func (s *Snapshot) write(img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Run waits for ctx.
func (s *Snapshot) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
