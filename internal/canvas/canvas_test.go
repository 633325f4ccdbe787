package canvas

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

var logical = abi.Resolution{Width: abi.DefaultWidth, Height: abi.DefaultHeight}

func TestNewMatchesLogical(t *testing.T) {
	c := New(logical, zaptest.NewLogger(t))

	w, h := c.Physical()
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, h)
	assert.Equal(t, Size{Width: 320, Height: 240}, c.Displayed())
	assert.Equal(t, 1.0, c.Ratio())
}

func TestResize(t *testing.T) {
	tests := []struct {
		w, h, s float64
		wantW   int
		wantH   int
	}{
		{640, 480, 1, 640, 480},
		{640, 480, 2, 1280, 960},
		{800, 600, 1.5, 1200, 900},
		{333, 111, 1.25, 416, 139},
		{1, 1, 3, 3, 3},
		{100, 50, 0.5, 50, 25},
	}

	for _, tt := range tests {
		c := New(logical, zaptest.NewLogger(t))
		require.True(t, c.Resize(tt.w, tt.h, tt.s))

		w, h := c.Physical()
		assert.Equal(t, tt.wantW, w, "physical width for %vx%v@%v", tt.w, tt.h, tt.s)
		assert.Equal(t, tt.wantH, h, "physical height for %vx%v@%v", tt.w, tt.h, tt.s)
		assert.Equal(t, Size{Width: tt.w, Height: tt.h}, c.Displayed())
		assert.Equal(t, logical, c.Logical(), "resizing must not touch the render resolution")
	}
}

func TestResizeIgnoresInvalid(t *testing.T) {
	c := New(logical, zaptest.NewLogger(t))
	require.True(t, c.Resize(100, 100, 2))

	for _, in := range [][3]float64{{0, 100, 1}, {100, -1, 1}, {100, 100, 0}, {0.1, 0.1, 1}} {
		assert.False(t, c.Resize(in[0], in[1], in[2]), "Resize(%v)", in)
	}

	w, h := c.Physical()
	assert.Equal(t, 200, w)
	assert.Equal(t, 200, h)
}

func TestBlitUpscale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	red := color.RGBA{R: 0xFF, A: 0xFF}
	green := color.RGBA{G: 0xFF, A: 0xFF}
	blue := color.RGBA{B: 0xFF, A: 0xFF}
	white := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	src.SetRGBA(0, 0, red)
	src.SetRGBA(1, 0, green)
	src.SetRGBA(0, 1, blue)
	src.SetRGBA(1, 1, white)

	c := New(abi.Resolution{Width: 2, Height: 2}, zaptest.NewLogger(t))
	require.True(t, c.Resize(2, 2, 2))

	out := c.Blit(src)
	require.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())

	want := [4][4]color.RGBA{
		{red, red, green, green},
		{red, red, green, green},
		{blue, blue, white, white},
		{blue, blue, white, white},
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Equal(t, want[y][x], out.RGBAAt(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestBlitSameSizeCopies(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = byte(i)
	}

	c := New(abi.Resolution{Width: 3, Height: 2}, zaptest.NewLogger(t))
	out := c.Blit(src)
	assert.Equal(t, src.Pix, out.Pix)
}
