package abi

// Names shared between the host and a frame module.
// A module links against ImportModule and exports the entry points below.

const (
	// ImportModule is the import namespace the host fills with numeric helpers.
	ImportModule = "env"

	// Host-provided single precision trigonometry.
	ImportTan = "tanf"
	ImportSin = "sinf"
	ImportCos = "cosf"
)

const (
	ExportMemory      = "memory"
	ExportHeapBase    = "__heap_base"
	ExportInitialize  = "initialize"
	ExportCreateWorld = "create_world"
	ExportUpdate      = "update"
	ExportRender      = "render"
)

// BytesPerPixel is the size of one RGBA quad in the pixel buffer.
const BytesPerPixel = 4

// DefaultScratchBytesPerPixel reserves three float32 accumulators per pixel
// after the pixel buffer for the module's transient render state.
const DefaultScratchBytesPerPixel = 12

// Default logical render resolution.
const (
	DefaultWidth  = 320
	DefaultHeight = 240
)

// ArgOrder selects where the pixel and scratch addresses go in a render call.
type ArgOrder int

const (
	// PixelsFirst calls render(world, w, h, frame, pixels, scratch).
	PixelsFirst ArgOrder = iota
	// ScratchFirst calls render(world, w, h, frame, scratch, pixels).
	ScratchFirst
)

// String returns the configuration spelling of the order.
func (o ArgOrder) String() string {
	switch o {
	case PixelsFirst:
		return "pixels-first"
	case ScratchFirst:
		return "scratch-first"
	default:
		return "unknown"
	}
}

// ParseArgOrder converts a configuration value into an ArgOrder.
func ParseArgOrder(s string) (ArgOrder, bool) {
	switch s {
	case "", "pixels-first":
		return PixelsFirst, true
	case "scratch-first":
		return ScratchFirst, true
	default:
		return PixelsFirst, false
	}
}

// Resolution is the fixed logical size the module renders at.
type Resolution struct {
	Width  uint32
	Height uint32
}

// PixelBytes returns width*height*BytesPerPixel.
func (r Resolution) PixelBytes() uint32 {
	return r.Width * r.Height * BytesPerPixel
}
