package manifest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-canvas/internal/wasm"
)

// Bundle is a parsed manifest together with its compiled module.
type Bundle struct {
	// Manifest is the parsed module metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the bundle was loaded
	LoadedAt time.Time
}

// Loader handles loading described modules from disk.
type Loader struct {
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new manifest loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "manifest-loader")),
	}
}

// Load parses the manifest at path and compiles the binary it names.
func (l *Loader) Load(ctx context.Context, path string) (*Bundle, error) {
	l.logger.Debug("Loading manifest", zap.String("path", path))

	manifest, err := Parse(path)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading module",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("wasm", manifest.WasmPath()),
	)

	// Compile Wasm module (uses internal caching)
	compiled, err := l.moduleLoader.LoadModuleFromFile(ctx, manifest.WasmPath())
	if err != nil {
		return nil, &ModuleLoadError{
			ModuleName: manifest.Name,
			Err:        err,
		}
	}

	l.logger.Info("Module loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
	)

	return &Bundle{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}, nil
}
