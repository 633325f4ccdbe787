package display

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wasm-canvas/internal/canvas"
	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":         ModeAuto,
		"auto":     ModeAuto,
		"terminal": ModeTerminal,
		"png":      ModePNG,
		"none":     ModeNone,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("x11")
	assert.Error(t, err)
}

func TestResolveAutoWithoutTerminal(t *testing.T) {
	assert.Equal(t, ModeNone, ModeAuto.Resolve(&bytes.Buffer{}))
	assert.Equal(t, ModePNG, ModePNG.Resolve(&bytes.Buffer{}))
}

func TestNewSelectsPresenter(t *testing.T) {
	logger := zaptest.NewLogger(t)
	res := abi.Resolution{Width: 4, Height: 2}

	p, err := New(Options{Mode: ModeNone}, res, logger)
	require.NoError(t, err)
	assert.IsType(t, &Discard{}, p)

	p, err = New(Options{Mode: ModeAuto, Output: &bytes.Buffer{}}, res, logger)
	require.NoError(t, err)
	assert.IsType(t, &Discard{}, p)

	p, err = New(Options{Mode: ModePNG, SnapshotPath: filepath.Join(t.TempDir(), "f.png")}, res, logger)
	require.NoError(t, err)
	assert.IsType(t, &Snapshot{}, p)

	_, err = New(Options{Mode: ModePNG}, res, logger)
	assert.Error(t, err, "png mode needs a path")

	_, err = New(Options{Mode: "x11"}, res, logger)
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	d := &Discard{}
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Present(context.Background(), solid(1, 1, color.RGBA{})))
	}
	assert.Equal(t, uint64(3), d.Frames())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, d.Run(ctx))
}

func TestSnapshotWritesUpscaledFrame(t *testing.T) {
	logger := zaptest.NewLogger(t)
	c := canvas.New(abi.Resolution{Width: 2, Height: 2}, logger)
	require.True(t, c.Resize(4, 3, 2))

	path := filepath.Join(t.TempDir(), "frame.png")
	s, err := NewSnapshot(c, path, 2, logger)
	require.NoError(t, err)

	white := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	require.NoError(t, s.Present(context.Background(), solid(2, 2, white)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
	r, g, b, a := img.At(7, 5).RGBA()
	assert.Equal(t, [4]uint32{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF}, [4]uint32{r, g, b, a})

	// Frame 1 is skipped, frame 2 replaces the file.
	require.NoError(t, os.Remove(path))
	require.NoError(t, s.Present(context.Background(), solid(2, 2, white)))
	assert.NoFileExists(t, path)
	require.NoError(t, s.Present(context.Background(), solid(2, 2, white)))
	assert.FileExists(t, path)
}

func TestTerminalModelResize(t *testing.T) {
	c := canvas.New(abi.Resolution{Width: 320, Height: 240}, zaptest.NewLogger(t))
	m := &terminalModel{canvas: c, ratio: 2}

	m.Update(tea.WindowSizeMsg{Width: 80, Height: 25})

	w, h := c.Physical()
	assert.Equal(t, 160, w)
	assert.Equal(t, 96, h)
	assert.Equal(t, canvas.Size{Width: 80, Height: 48}, c.Displayed())
	assert.Equal(t, abi.Resolution{Width: 320, Height: 240}, c.Logical())
}

func TestTerminalModelDrawsFrames(t *testing.T) {
	c := canvas.New(abi.Resolution{Width: 4, Height: 4}, zaptest.NewLogger(t))
	m := &terminalModel{canvas: c, ratio: 1}

	assert.Contains(t, m.View(), "waiting")

	m.Update(tea.WindowSizeMsg{Width: 4, Height: 3})
	m.Update(frameMsg{img: solid(4, 4, color.RGBA{R: 0xFF, A: 0xFF})})

	view := m.View()
	assert.Equal(t, 2*4, strings.Count(view, upperHalf))
	assert.Contains(t, view, "frame 1")
	assert.Contains(t, view, "q quit")
}

func TestTerminalModelQuit(t *testing.T) {
	c := canvas.New(abi.Resolution{Width: 4, Height: 4}, zaptest.NewLogger(t))
	m := &terminalModel{canvas: c, ratio: 1}

	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
	} {
		_, cmd := m.Update(msg)
		require.NotNil(t, cmd, "key %s", msg)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	assert.Nil(t, cmd)
}

func TestRenderCellsRuns(t *testing.T) {
	img := solid(3, 2, color.RGBA{G: 0xFF, A: 0xFF})
	img.SetRGBA(2, 1, color.RGBA{B: 0xFF, A: 0xFF})

	out := renderCells(img)
	assert.Equal(t, 3, strings.Count(out, upperHalf))
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestTerminalStopsOnCancel(t *testing.T) {
	c := canvas.New(abi.Resolution{Width: 2, Height: 2}, zaptest.NewLogger(t))
	term := NewTerminal(c, TerminalOptions{Output: &bytes.Buffer{}}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- term.Run(ctx) }()

	require.NoError(t, term.Present(ctx, solid(2, 2, color.RGBA{A: 0xFF})))
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("terminal did not stop after cancel")
	}
}
