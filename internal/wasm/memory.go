package wasm

import (
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

const (
	// PageSize is the unit of memory length in WebAssembly, 2^16 bytes.
	PageSize = 65536

	// maxMemoryPages is the 32-bit address space limit, 2^16 pages.
	maxMemoryPages = 65536
)

var errOutOfBounds = errors.New("region exceeds linear memory")

// Region is a byte range of linear memory tracked by offset and length.
// The host never mirrors what a region holds; it only checks where it lies.
type Region struct {
	Offset uint32
	Length uint32
}

// End returns the first offset past the region.
func (r Region) End() uint64 {
	return uint64(r.Offset) + uint64(r.Length)
}

// Validate reports an error unless the region fits into memSize bytes.
func (r Region) Validate(memSize uint32) error {
	if r.End() > uint64(memSize) {
		return fmt.Errorf("%w: [%d, %d) with memory size %d", errOutOfBounds, r.Offset, r.End(), memSize)
	}
	return nil
}

func (r Region) String() string {
	return fmt.Sprintf("[%d, %d)", r.Offset, r.End())
}

// Layout is where the host placed the module's regions.
// Pixels follows World and Scratch follows Pixels with no gaps.
type Layout struct {
	HeapBase uint32
	World    Region
	Pixels   Region
	Scratch  Region
}

// NewLayout places the regions for a world of worldSize bytes at heapBase.
func NewLayout(heapBase, worldSize, pixelBytes, scratchBytes uint32) (Layout, error) {
	world := Region{Offset: heapBase, Length: worldSize}
	if world.End() > maxAddress {
		return Layout{}, fmt.Errorf("world region %s overflows the address space", world)
	}
	pixels := Region{Offset: uint32(world.End()), Length: pixelBytes}
	if pixels.End() > maxAddress {
		return Layout{}, fmt.Errorf("pixel region %s overflows the address space", pixels)
	}
	scratch := Region{Offset: uint32(pixels.End()), Length: scratchBytes}
	if scratch.End() > maxAddress {
		return Layout{}, fmt.Errorf("scratch region %s overflows the address space", scratch)
	}

	return Layout{
		HeapBase: heapBase,
		World:    world,
		Pixels:   pixels,
		Scratch:  scratch,
	}, nil
}

const maxAddress = uint64(maxMemoryPages) * PageSize

// Memory provides bounds checked access to a module's linear memory.
//
// Every read validates the region against the current memory size, so a view
// is never taken across a range that growth or a bad offset would invalidate.
type Memory struct {
	mem api.Memory
}

// NewMemory creates a memory helper.
func NewMemory(module api.Module) *Memory {
	return &Memory{mem: module.Memory()}
}

// Size returns the current size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// Read returns a view of region. The view aliases module memory and is only
// valid until the next call into the module.
func (m *Memory) Read(region Region) ([]byte, error) {
	if err := region.Validate(m.mem.Size()); err != nil {
		return nil, &MemoryAccessError{Operation: "read", Address: region.Offset, Length: region.Length, Err: err}
	}
	buf, ok := m.mem.Read(region.Offset, region.Length)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read", Address: region.Offset, Length: region.Length, Err: errOutOfBounds}
	}
	return buf, nil
}

// Write copies data into memory at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	region := Region{Offset: offset, Length: uint32(len(data))}
	if err := region.Validate(m.mem.Size()); err != nil {
		return &MemoryAccessError{Operation: "write", Address: offset, Length: region.Length, Err: err}
	}
	if !m.mem.Write(offset, data) {
		return &MemoryAccessError{Operation: "write", Address: offset, Length: region.Length, Err: errOutOfBounds}
	}
	return nil
}

// EnsureCapacity grows memory by whole pages until end bytes are addressable.
// It returns the number of pages added.
func (m *Memory) EnsureCapacity(end uint64) (uint32, error) {
	size := uint64(m.mem.Size())
	if end <= size {
		return 0, nil
	}

	delta := uint32((end - size + PageSize - 1) / PageSize)
	if _, ok := m.mem.Grow(delta); !ok {
		return 0, &MemoryAccessError{
			Operation: "grow",
			Address:   uint32(size),
			Length:    uint32(end - size),
			Err:       fmt.Errorf("cannot grow memory by %d pages", delta),
		}
	}
	return delta, nil
}
