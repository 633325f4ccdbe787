package wasm

import (
	"context"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

// HostFunctionsImpl implements the numeric table a frame module imports.
// Modules are built without a math runtime and call back into the host for
// trigonometry.
type HostFunctionsImpl struct {
	logger *zap.Logger
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
	}
}

func (h *HostFunctionsImpl) tan(_ context.Context, x float32) float32 {
	return float32(math.Tan(float64(x)))
}

func (h *HostFunctionsImpl) sin(_ context.Context, x float32) float32 {
	return float32(math.Sin(float64(x)))
}

func (h *HostFunctionsImpl) cos(_ context.Context, x float32) float32 {
	return float32(math.Cos(float64(x)))
}

// export registers the table on builder.
func (h *HostFunctionsImpl) export(builder wazero.HostModuleBuilder) {
	builder.NewFunctionBuilder().
		WithFunc(h.tan).
		WithParameterNames("x").
		Export(abi.ImportTan)

	builder.NewFunctionBuilder().
		WithFunc(h.sin).
		WithParameterNames("x").
		Export(abi.ImportSin)

	builder.NewFunctionBuilder().
		WithFunc(h.cos).
		WithParameterNames("x").
		Export(abi.ImportCos)
}

// instantiate links the table into runtime under abi.ImportModule.
// It is a no-op when the host module already exists.
func (h *HostFunctionsImpl) instantiate(ctx context.Context, runtime wazero.Runtime) error {
	if runtime.Module(abi.ImportModule) != nil {
		return nil
	}

	builder := runtime.NewHostModuleBuilder(abi.ImportModule)
	h.export(builder)

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("failed to instantiate host module '%s': %w", abi.ImportModule, err)
	}

	h.logger.Debug("Host module instantiated",
		zap.String("module", abi.ImportModule),
		zap.Strings("functions", []string{abi.ImportTan, abi.ImportSin, abi.ImportCos}),
	)
	return nil
}
