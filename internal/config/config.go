package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

// EnvPrefix prefixes every environment override, e.g. WASM_CANVAS_RENDER_WIDTH.
const EnvPrefix = "WASM_CANVAS"

// PortEnv is the conventional port variable honoured by the static server.
const PortEnv = "PORT"

type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	LogFile  string        `mapstructure:"log_file"`
	Module   ModuleConfig  `mapstructure:"module"`
	Server   ServerConfig  `mapstructure:"server"`
	Render   RenderConfig  `mapstructure:"render"`
	Frame    FrameConfig   `mapstructure:"frame"`
	Wasm     WasmConfig    `mapstructure:"wasm"`
	Display  DisplayConfig `mapstructure:"display"`
}

// ModuleConfig locates the frame module.
type ModuleConfig struct {
	// URL of the binary: a path, file:// or http(s)://.
	URL string `mapstructure:"url"`
	// Optional module.yaml overriding render settings.
	Manifest string `mapstructure:"manifest"`
}

// ServerConfig holds static server settings.
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AssetRoot string `mapstructure:"asset_root"`
}

// RenderConfig describes the render call.
type RenderConfig struct {
	Width  uint32 `mapstructure:"width"`
	Height uint32 `mapstructure:"height"`
	// pixels-first or scratch-first.
	ArgOrder             string `mapstructure:"arg_order"`
	ScratchBytesPerPixel uint32 `mapstructure:"scratch_bytes_per_pixel"`
}

// FrameConfig holds frame loop settings.
type FrameConfig struct {
	// Frames per second.
	RefreshRate float64 `mapstructure:"refresh_rate"`
	// Zero runs until stopped.
	MaxFrames uint64 `mapstructure:"max_frames"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages"`
	// Trace module and host function calls at debug level.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory, empty disables the cache.
	CacheDir string `mapstructure:"cache_dir"`
}

// DisplayConfig selects and sizes the presenter.
type DisplayConfig struct {
	Mode          string  `mapstructure:"mode"`
	PixelRatio    float64 `mapstructure:"pixel_ratio"`
	Width         int     `mapstructure:"width"`
	Height        int     `mapstructure:"height"`
	SnapshotPath  string  `mapstructure:"snapshot_path"`
	SnapshotEvery uint64  `mapstructure:"snapshot_every"`
}

// New returns a viper instance carrying the defaults and environment
// bindings. Callers may bind flags to it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetDefault("module.url", "./public/lib.wasm")
	v.SetDefault("module.manifest", "")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.asset_root", "./public")

	v.SetDefault("render.width", abi.DefaultWidth)
	v.SetDefault("render.height", abi.DefaultHeight)
	v.SetDefault("render.arg_order", abi.PixelsFirst.String())
	v.SetDefault("render.scratch_bytes_per_pixel", abi.DefaultScratchBytesPerPixel)

	v.SetDefault("frame.refresh_rate", 60.0)
	v.SetDefault("frame.max_frames", 0)

	// Wasm defaults
	v.SetDefault("wasm.memory_limit_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")

	v.SetDefault("display.mode", "auto")
	v.SetDefault("display.pixel_ratio", 1.0)
	v.SetDefault("display.width", 0)
	v.SetDefault("display.height", 0)
	v.SetDefault("display.snapshot_path", "frame.png")
	v.SetDefault("display.snapshot_every", 1)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The prefixed name wins over the bare one.
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", PortEnv)

	return v
}

// Load reads configPath, if set, into v and decodes the result.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfig loads configuration from defaults, the environment and an
// optional file.
func LoadConfig(configPath string) (*Config, error) {
	return Load(New(), configPath)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Module.URL == "" {
		errs = append(errs, errors.New("module.url is required"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Render.Width == 0 || c.Render.Height == 0 {
		errs = append(errs, fmt.Errorf("render size %dx%d must be positive", c.Render.Width, c.Render.Height))
	}
	if _, ok := abi.ParseArgOrder(c.Render.ArgOrder); !ok {
		errs = append(errs, fmt.Errorf("render.arg_order %q is not pixels-first or scratch-first", c.Render.ArgOrder))
	}
	if c.Frame.RefreshRate <= 0 {
		errs = append(errs, fmt.Errorf("frame.refresh_rate must be positive, got %v", c.Frame.RefreshRate))
	}
	if c.Wasm.MemoryLimitPages == 0 || c.Wasm.MemoryLimitPages > 65536 {
		errs = append(errs, fmt.Errorf("wasm.memory_limit_pages %d out of range", c.Wasm.MemoryLimitPages))
	}
	if c.Display.PixelRatio <= 0 {
		errs = append(errs, fmt.Errorf("display.pixel_ratio must be positive, got %v", c.Display.PixelRatio))
	}

	return errors.Join(errs...)
}

// Resolution returns the configured logical render size.
func (c *Config) Resolution() abi.Resolution {
	return abi.Resolution{Width: c.Render.Width, Height: c.Render.Height}
}
