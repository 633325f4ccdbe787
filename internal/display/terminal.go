package display

import (
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-canvas/internal/canvas"
)

// upperHalf draws the top pixel in the foreground and the bottom pixel in
// the background, so one cell shows two vertical pixels.
const upperHalf = "▀"

var statusStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#666666"))

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// frameMsg carries a private copy of a logical frame into the program.
type frameMsg struct {
	img *image.RGBA
}

// TerminalOptions configures a Terminal.
type TerminalOptions struct {
	PixelRatio float64
	Input      io.Reader
	Output     io.Writer
}

// Terminal shows frames in the terminal with half-block characters.
type Terminal struct {
	program *tea.Program
	logger  *zap.Logger
}

// NewTerminal creates a terminal presenter drawing through c.
func NewTerminal(c *canvas.Canvas, opts TerminalOptions, logger *zap.Logger) *Terminal {
	logger = logger.With(zap.String("component", "terminal"))
	m := &terminalModel{canvas: c, ratio: opts.PixelRatio}
	if m.ratio <= 0 {
		m.ratio = 1
	}

	return &Terminal{
		program: tea.NewProgram(m,
			tea.WithAltScreen(),
			tea.WithInput(opts.Input),
			tea.WithOutput(opts.Output),
		),
		logger: logger,
	}
}

// Present hands a copy of img to the program. It returns once the program
// has taken the frame or has exited.
func (t *Terminal) Present(_ context.Context, img *image.RGBA) error {
	clone := &image.RGBA{
		Pix:    append([]byte(nil), img.Pix...),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	t.program.Send(frameMsg{img: clone})
	return nil
}

// Run runs the program until the viewer quits or ctx is done.
func (t *Terminal) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, t.program.Quit)
	defer stop()

	if _, err := t.program.Run(); err != nil {
		return fmt.Errorf("terminal display: %w", err)
	}
	t.logger.Info("Terminal display closed")
	return nil
}

type terminalModel struct {
	canvas *canvas.Canvas
	ratio  float64

	cols, rows int
	frames     uint64
	last       *image.RGBA
	cells      *image.RGBA
	body       string
}

func (m *terminalModel) Init() tea.Cmd {
	return nil
}

func (m *terminalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.cols, m.rows = msg.Width, msg.Height-1
		if m.cols > 0 && m.rows > 0 {
			m.canvas.Resize(float64(m.cols), float64(m.rows*2), m.ratio)
			m.cells = image.NewRGBA(image.Rect(0, 0, m.cols, m.rows*2))
		}
		if m.last != nil {
			m.draw()
		}

	case frameMsg:
		m.last = msg.img
		m.frames++
		m.draw()
	}
	return m, nil
}

// draw upscales the last frame to the canvas and samples the canvas back
// down to the cell grid.
func (m *terminalModel) draw() {
	if m.cells == nil {
		return
	}
	canvas.Scale(m.cells, m.canvas.Blit(m.last))
	m.body = renderCells(m.cells)
}

func (m *terminalModel) View() string {
	if m.cells == nil {
		return "waiting for terminal size\n"
	}

	pw, ph := m.canvas.Physical()
	logical := m.canvas.Logical()
	status := statusStyle.Render(fmt.Sprintf("frame %d  %dx%d → %dx%d  %s %s",
		m.frames, logical.Width, logical.Height, pw, ph,
		keys.Quit.Help().Key, keys.Quit.Help().Desc))
	return m.body + status
}

// renderCells turns an image with an even number of rows into lines of
// half-block cells, styling runs of identical cells together.
func renderCells(img *image.RGBA) string {
	var b strings.Builder
	w, h := img.Rect.Dx(), img.Rect.Dy()

	for y := 0; y+1 < h; y += 2 {
		runStart := 0
		for x := 1; x <= w; x++ {
			if x < w && sameCell(img, x, runStart, y) {
				continue
			}
			top := img.RGBAAt(runStart, y)
			bottom := img.RGBAAt(runStart, y+1)
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", top.R, top.G, top.B))).
				Background(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", bottom.R, bottom.G, bottom.B)))
			b.WriteString(style.Render(strings.Repeat(upperHalf, x-runStart)))
			runStart = x
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func sameCell(img *image.RGBA, x, ref, y int) bool {
	return img.RGBAAt(x, y) == img.RGBAAt(ref, y) && img.RGBAAt(x, y+1) == img.RGBAAt(ref, y+1)
}
