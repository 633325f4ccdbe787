// Package canvas keeps the physical drawing surface in step with the
// displayed size and the device pixel ratio. The logical render resolution
// never changes; frames are upscaled onto whatever the surface currently is.
package canvas

import (
	"image"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

// Size is a displayed size in layout units.
type Size struct {
	Width  float64
	Height float64
}

// Canvas is the on-screen surface a presenter draws into.
type Canvas struct {
	mu sync.Mutex

	logical   abi.Resolution
	displayed Size
	ratio     float64
	physical  *image.RGBA

	logger *zap.Logger
}

// New creates a canvas for frames of the given logical resolution. Until
// the first Resize the physical surface equals the logical one.
func New(logical abi.Resolution, logger *zap.Logger) *Canvas {
	return &Canvas{
		logical:   logical,
		displayed: Size{Width: float64(logical.Width), Height: float64(logical.Height)},
		ratio:     1,
		physical:  image.NewRGBA(image.Rect(0, 0, int(logical.Width), int(logical.Height))),
		logger:    logger.With(zap.String("component", "canvas")),
	}
}

// Resize applies a layout notification: the displayed size becomes (w, h)
// and the physical surface (round(w*ratio), round(h*ratio)). Non-positive
// input leaves the canvas unchanged and reports false.
func (c *Canvas) Resize(w, h, ratio float64) bool {
	if !(w > 0) || !(h > 0) || !(ratio > 0) {
		return false
	}
	pw := int(math.Round(w * ratio))
	ph := int(math.Round(h * ratio))
	if pw < 1 || ph < 1 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.displayed = Size{Width: w, Height: h}
	c.ratio = ratio
	if c.physical.Rect.Dx() != pw || c.physical.Rect.Dy() != ph {
		c.physical = image.NewRGBA(image.Rect(0, 0, pw, ph))
	}

	c.logger.Debug("Canvas resized",
		zap.Float64("display_width", w),
		zap.Float64("display_height", h),
		zap.Float64("pixel_ratio", ratio),
		zap.Int("physical_width", pw),
		zap.Int("physical_height", ph),
	)
	return true
}

// Logical returns the fixed render resolution.
func (c *Canvas) Logical() abi.Resolution {
	return c.logical
}

// Displayed returns the displayed size.
func (c *Canvas) Displayed() Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayed
}

// Physical returns the backing surface dimensions in device pixels.
func (c *Canvas) Physical() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.physical.Rect.Dx(), c.physical.Rect.Dy()
}

// Ratio returns the device pixel ratio of the last resize.
func (c *Canvas) Ratio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ratio
}

// Blit scales src onto the physical surface with nearest-neighbour sampling
// and returns the surface. The result is overwritten by the next Blit or
// replaced by the next Resize.
func (c *Canvas) Blit(src *image.RGBA) *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	Scale(c.physical, src)
	return c.physical
}

// Scale fills dst from src with nearest-neighbour sampling.
func Scale(dst, src *image.RGBA) {
	dw, dh := dst.Rect.Dx(), dst.Rect.Dy()
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	if dw == 0 || dh == 0 || sw == 0 || sh == 0 {
		return
	}

	if dw == sw && dh == sh {
		for y := 0; y < dh; y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+dw*4], src.Pix[y*src.Stride:y*src.Stride+sw*4])
		}
		return
	}

	for y := 0; y < dh; y++ {
		sy := y * sh / dh
		drow := dst.Pix[y*dst.Stride:]
		srow := src.Pix[sy*src.Stride:]
		for x := 0; x < dw; x++ {
			sx := x * sw / dw
			copy(drow[x*4:x*4+4], srow[sx*4:sx*4+4])
		}
	}
}
