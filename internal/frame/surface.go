package frame

import (
	"fmt"
	"image"

	"github.com/woxQAQ/wasm-canvas/internal/wasm"
)

// Surface is the transfer surface between module memory and the presenter.
// It keeps one RGBA image and reuses it while the dimensions stay the same.
type Surface struct {
	img *image.RGBA
}

// Acquire returns an image of width x height, allocating only on a size change.
func (s *Surface) Acquire(width, height int) *image.RGBA {
	if s.img == nil || s.img.Rect.Dx() != width || s.img.Rect.Dy() != height {
		s.img = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return s.img
}

// Image returns the last acquired image, or nil.
func (s *Surface) Image() *image.RGBA {
	return s.img
}

type reader interface {
	Read(region wasm.Region) ([]byte, error)
}

// CopyFrom copies region byte for byte into the image's pixel storage.
// The region must be exactly as large as the image.
func (s *Surface) CopyFrom(mem reader, region wasm.Region) error {
	if s.img == nil {
		return fmt.Errorf("copy into unacquired surface")
	}
	if int(region.Length) != len(s.img.Pix) {
		return fmt.Errorf("pixel region %s does not match surface of %d bytes", region, len(s.img.Pix))
	}

	view, err := mem.Read(region)
	if err != nil {
		return fmt.Errorf("read pixels: %w", err)
	}
	copy(s.img.Pix, view)
	return nil
}
