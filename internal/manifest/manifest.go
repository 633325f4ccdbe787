// Package manifest reads module.yaml, the optional descriptor shipped next
// to a frame module binary.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

// FileName is the descriptor name looked up in a module directory.
const FileName = "module.yaml"

// Manifest represents the module.yaml structure.
type Manifest struct {
	Name    string       `yaml:"name"`
	Version string       `yaml:"version"`
	Wasm    WasmConfig   `yaml:"wasm"`
	Render  RenderConfig `yaml:"render"`

	// Internal fields
	path string // Manifest file
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file"`
}

// RenderConfig overrides the host's render settings. Zero values keep the
// host configuration.
type RenderConfig struct {
	Width                uint32 `yaml:"width"`
	Height               uint32 `yaml:"height"`
	ArgOrder             string `yaml:"arg_order"`
	ScratchBytesPerPixel uint32 `yaml:"scratch_bytes_per_pixel"`
}

// Parse reads and validates a manifest. path may name the file or the
// directory holding module.yaml.
func Parse(path string) (*Manifest, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: path,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: path,
			Err:  err,
		}
	}

	m.path = path

	// Validate manifest
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "name",
			Message: "name is required",
		}
	}

	if m.Version == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "version",
			Message: "version is required",
		}
	}

	if m.Wasm.File == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "wasm.file",
			Message: "wasm.file is required",
		}
	}

	if (m.Render.Width == 0) != (m.Render.Height == 0) {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "render",
			Message: "render.width and render.height must be set together",
		}
	}

	if _, ok := abi.ParseArgOrder(m.Render.ArgOrder); !ok {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "render.arg_order",
			Message: fmt.Sprintf("unknown arg order: %s (must be one of: pixels-first, scratch-first)", m.Render.ArgOrder),
		}
	}

	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return m.path
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.path)
}

// WasmPath returns the path to the Wasm file, resolved against Dir.
func (m *Manifest) WasmPath() string {
	if filepath.IsAbs(m.Wasm.File) {
		return m.Wasm.File
	}
	return filepath.Join(m.Dir(), m.Wasm.File)
}

// Resolution returns the manifest's render size and whether it sets one.
func (m *Manifest) Resolution() (abi.Resolution, bool) {
	if m.Render.Width == 0 {
		return abi.Resolution{}, false
	}
	return abi.Resolution{Width: m.Render.Width, Height: m.Render.Height}, true
}

// ArgOrder returns the manifest's render argument order and whether it sets one.
func (m *Manifest) ArgOrder() (abi.ArgOrder, bool) {
	if m.Render.ArgOrder == "" {
		return abi.PixelsFirst, false
	}
	order, _ := abi.ParseArgOrder(m.Render.ArgOrder)
	return order, true
}
