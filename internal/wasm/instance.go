package wasm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

// InstanceManager creates frame module instances linked against the host table.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, hostFuncs *HostFunctionsImpl, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: hostFuncs,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, one is generated).
	InstanceID string
}

// signature is the expected shape of one entry point.
type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

func (s signature) String() string {
	return formatTypes(s.params) + " -> " + formatTypes(s.results)
}

func formatTypes(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return "(" + strings.Join(names, ", ") + ")"
}

var (
	i32 = api.ValueTypeI32
	f64 = api.ValueTypeF64

	entryPoints = map[string]signature{
		abi.ExportInitialize:  {},
		abi.ExportCreateWorld: {params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		abi.ExportUpdate:      {params: []api.ValueType{f64}},
		abi.ExportRender:      {params: []api.ValueType{i32, i32, i32, i32, i32, i32}},
	}
)

// Instantiate creates a new instance from a compiled module and binds its
// entry points. The returned handle has not run its startup sequence yet.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Module, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateInstanceID()
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	if err := m.hostFuncs.instantiate(m.runtime.compileContext(ctx), m.runtime.runtime); err != nil {
		return nil, &InstantiationError{ModuleName: config.ModuleName, InstanceID: instanceID, Err: err}
	}

	moduleConfig := wazero.NewModuleConfig().WithName(instanceID)

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	handle, err := bindModule(ctx, config.ModuleName, module, m.logger)
	if err != nil {
		_ = module.Close(ctx)
		return nil, err
	}

	m.runtime.StoreInstance(instanceID, module)
	handle.release = func() { m.runtime.DeleteInstance(instanceID) }

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Uint32("heap_base", handle.heapBase),
		zap.Uint32("memory_bytes", handle.memory.Size()),
	)

	return handle, nil
}

// bindModule resolves and checks every export the host relies on.
func bindModule(ctx context.Context, name string, module api.Module, logger *zap.Logger) (*Module, error) {
	if module.Memory() == nil || module.ExportedMemory(abi.ExportMemory) == nil {
		return nil, &FunctionNotFoundError{ModuleName: name, FunctionName: abi.ExportMemory}
	}

	exports := make(map[string]api.Function, len(entryPoints))
	for export, want := range entryPoints {
		fn := module.ExportedFunction(export)
		if fn == nil {
			return nil, &FunctionNotFoundError{ModuleName: name, FunctionName: export}
		}
		def := fn.Definition()
		got := signature{params: def.ParamTypes(), results: def.ResultTypes()}
		if !sameTypes(got.params, want.params) || !sameTypes(got.results, want.results) {
			return nil, &SignatureError{ModuleName: name, FunctionName: export, Want: want.String(), Got: got.String()}
		}
		exports[export] = fn
	}

	heapBase, err := readHeapBase(ctx, name, module)
	if err != nil {
		return nil, err
	}

	return &Module{
		name:        name,
		module:      module,
		memory:      NewMemory(module),
		heapBase:    heapBase,
		initialize:  exports[abi.ExportInitialize],
		createWorld: exports[abi.ExportCreateWorld],
		update:      exports[abi.ExportUpdate],
		render:      exports[abi.ExportRender],
		logger:      logger.With(zap.String("module", name)),
	}, nil
}

// readHeapBase reads __heap_base from a global, falling back to a zero-arg
// function for toolchains that export it that way.
func readHeapBase(ctx context.Context, name string, module api.Module) (uint32, error) {
	if global := module.ExportedGlobal(abi.ExportHeapBase); global != nil {
		if global.Type() != i32 {
			return 0, &SignatureError{ModuleName: name, FunctionName: abi.ExportHeapBase,
				Want: api.ValueTypeName(i32), Got: api.ValueTypeName(global.Type())}
		}
		return api.DecodeU32(global.Get()), nil
	}

	if fn := module.ExportedFunction(abi.ExportHeapBase); fn != nil {
		results, err := fn.Call(ctx)
		if err != nil {
			return 0, &TrapError{Export: abi.ExportHeapBase, Err: err}
		}
		if len(results) != 1 {
			return 0, &SignatureError{ModuleName: name, FunctionName: abi.ExportHeapBase,
				Want: "() -> (i32)", Got: signature{results: fn.Definition().ResultTypes()}.String()}
		}
		return api.DecodeU32(results[0]), nil
	}

	return 0, &FunctionNotFoundError{ModuleName: name, FunctionName: abi.ExportHeapBase}
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// generateInstanceID generates a unique instance ID.
func generateInstanceID() string {
	return fmt.Sprintf("inst-%d", time.Now().UnixNano())
}
