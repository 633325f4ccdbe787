// Package wasmtest builds small frame modules for tests.
//
// A stub imports the host trigonometry table, exports the frame entry points
// and keeps call counters in exported mutable globals so tests can check
// what the host did without a compiled renderer.
package wasmtest

import (
	"strings"
	"testing"
	"text/template"

	"github.com/wippyai/wasm-runtime/wat"

	"github.com/woxQAQ/wasm-canvas/pkg/abi"
)

// Exported globals a stub maintains.
const (
	GlobalInitializeCalls  = "initialize_calls"
	GlobalCreateWorldCalls = "create_world_calls"
	GlobalUpdateCalls      = "update_calls"
	GlobalRenderCalls      = "render_calls"
	GlobalLastFrame        = "last_frame"
	GlobalLastSeconds      = "last_seconds"
	GlobalSinResult        = "sin_result"
	GlobalOrderViolations  = "order_violations"
	GlobalWorldAddr        = "world_addr"
)

// Fill selects what render writes into the pixel buffer.
type Fill int

const (
	// FillConstant writes FillByte to every byte.
	FillConstant Fill = iota
	// FillPattern writes byte(i + frame) at pixel offset i.
	FillPattern
	// FillTrap executes unreachable.
	FillTrap
	// FillSpin never returns.
	FillSpin
)

// Stub describes a module to build.
type Stub struct {
	HeapBase    uint32
	WorldSize   uint32
	MemoryPages uint32
	Fill        Fill
	FillByte    byte
	ArgOrder    abi.ArgOrder

	// Omit lists exports left out of the module.
	Omit []string
}

// Default returns the stub described by the reference scenario: heap base
// 1024, a 76800 byte world and a constant 0xFF fill.
func Default() Stub {
	return Stub{
		HeapBase:    1024,
		WorldSize:   abi.DefaultWidth * abi.DefaultHeight,
		MemoryPages: 2,
		Fill:        FillConstant,
		FillByte:    0xFF,
	}
}

// PatternAt returns the byte a FillPattern stub writes at offset i of frame.
func PatternAt(i int, frame uint32) byte {
	return byte(uint32(i) + frame)
}

var stubTemplate = template.Must(template.New("stub").Funcs(template.FuncMap{
	"export": func(s Stub, name string) string {
		if s.omitted(name) {
			return ""
		}
		return `(export "` + name + `")`
	},
}).Parse(`(module
  (import "{{.Abi.ImportModule}}" "{{.Abi.ImportTan}}" (func $tanf (param f32) (result f32)))
  (import "{{.Abi.ImportModule}}" "{{.Abi.ImportSin}}" (func $sinf (param f32) (result f32)))
  (import "{{.Abi.ImportModule}}" "{{.Abi.ImportCos}}" (func $cosf (param f32) (result f32)))

  (memory {{export .Stub "memory"}} {{.Pages}})

  (global $heap_base {{export .Stub "__heap_base"}} i32 (i32.const {{.Stub.HeapBase}}))
  (global $initialize_calls {{export .Stub "initialize_calls"}} (mut i32) (i32.const 0))
  (global $create_world_calls {{export .Stub "create_world_calls"}} (mut i32) (i32.const 0))
  (global $update_calls {{export .Stub "update_calls"}} (mut i32) (i32.const 0))
  (global $render_calls {{export .Stub "render_calls"}} (mut i32) (i32.const 0))
  (global $last_frame {{export .Stub "last_frame"}} (mut i32) (i32.const -1))
  (global $last_seconds {{export .Stub "last_seconds"}} (mut f64) (f64.const 0))
  (global $sin_result {{export .Stub "sin_result"}} (mut f32) (f32.const 0))
  (global $order_violations {{export .Stub "order_violations"}} (mut i32) (i32.const 0))
  (global $world_addr {{export .Stub "world_addr"}} (mut i32) (i32.const 0))

  (func $initialize {{export .Stub "initialize"}}
    (global.set $initialize_calls (i32.add (global.get $initialize_calls) (i32.const 1)))
    (global.set $sin_result (call $sinf (f32.const 0.5))))

  (func $create_world {{export .Stub "create_world"}} (param $addr i32) (result i32)
    (if (i32.eqz (global.get $initialize_calls))
      (then (global.set $order_violations (i32.add (global.get $order_violations) (i32.const 1)))))
    (global.set $create_world_calls (i32.add (global.get $create_world_calls) (i32.const 1)))
    (global.set $world_addr (local.get $addr))
    (i32.const {{.Stub.WorldSize}}))

  (func $update {{export .Stub "update"}} (param $seconds f64)
    (if (i32.eqz (global.get $create_world_calls))
      (then (global.set $order_violations (i32.add (global.get $order_violations) (i32.const 1)))))
    (global.set $update_calls (i32.add (global.get $update_calls) (i32.const 1)))
    (global.set $last_seconds (local.get $seconds)))

  (func $render {{export .Stub "render"}}
    (param $world i32) (param $width i32) (param $height i32) (param $frame i32)
    (param $first i32) (param $second i32)
    (local $i i32)
    (if (i32.eqz (global.get $create_world_calls))
      (then (global.set $order_violations (i32.add (global.get $order_violations) (i32.const 1)))))
    (global.set $render_calls (i32.add (global.get $render_calls) (i32.const 1)))
    (global.set $last_frame (local.get $frame))
{{- if eq .Stub.Fill 0}}
    (memory.fill (local.get {{.Pixels}}) (i32.const {{.Stub.FillByte}})
      (i32.mul (i32.mul (local.get $width) (local.get $height)) (i32.const 4)))
{{- else if eq .Stub.Fill 1}}
    (block $done
      (loop $next
        (br_if $done (i32.ge_u (local.get $i)
          (i32.mul (i32.mul (local.get $width) (local.get $height)) (i32.const 4))))
        (i32.store8 (i32.add (local.get {{.Pixels}}) (local.get $i))
          (i32.add (local.get $i) (local.get $frame)))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $next)))
{{- else if eq .Stub.Fill 2}}
    (unreachable)
{{- else}}
    (loop $spin (br $spin))
{{- end}}
  )
)
`))

type abiNames struct {
	ImportModule, ImportTan, ImportSin, ImportCos string
}

// Source returns the stub as WebAssembly text.
func (s Stub) Source() string {
	pages := s.MemoryPages
	if pages == 0 {
		pages = 1
	}
	pixels := "$first"
	if s.ArgOrder == abi.ScratchFirst {
		pixels = "$second"
	}

	var b strings.Builder
	err := stubTemplate.Execute(&b, struct {
		Stub   Stub
		Abi    abiNames
		Pages  uint32
		Pixels string
	}{
		Stub:   s,
		Abi:    abiNames{abi.ImportModule, abi.ImportTan, abi.ImportSin, abi.ImportCos},
		Pages:  pages,
		Pixels: pixels,
	})
	if err != nil {
		panic(err)
	}
	return b.String()
}

// Compile compiles the stub to a binary module.
func (s Stub) Compile() ([]byte, error) {
	return wat.Compile(s.Source())
}

// Build compiles the stub and fails tb on error.
func (s Stub) Build(tb testing.TB) []byte {
	tb.Helper()
	bin, err := s.Compile()
	if err != nil {
		tb.Fatalf("compile stub module: %v", err)
	}
	return bin
}

func (s Stub) omitted(name string) bool {
	for _, o := range s.Omit {
		if o == name {
			return true
		}
	}
	return false
}
