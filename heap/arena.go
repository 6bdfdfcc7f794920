// Package heap provides a native address space backed by a wazero linear
// memory.
//
// An Arena instantiates a minimal wasm module that exports one memory and
// hands out blocks of it. Addresses are offsets into that memory; address 0
// is never allocated so that it can stand for NULL.
package heap

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fortio.org/safecast"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/errors"
)

// PageSize is the wasm page size.
const PageSize = 65536

// reserved is the low region that is never handed out.
const reserved = 16

// Config configures an Arena.
type Config struct {
	// InitialPages is the initial memory size in pages. Zero means one.
	InitialPages uint32
	// MaxPages caps growth. Zero means the wasm limit.
	MaxPages uint32
}

// Arena is a wazero linear memory with a first-fit allocator. It implements
// nativeabi.Memory, nativeabi.MemorySizer and nativeabi.Allocator and is
// safe for concurrent use.
type Arena struct {
	runtime wazero.Runtime
	mem     api.Memory
	free    []block
	mu      sync.Mutex
	next    uint64
	top     uint64 // high-water mark; memory above it is still zero
	live    int
}

type block struct {
	addr uint64
	size uint64
}

var (
	_ nativeabi.Memory      = (*Arena)(nil)
	_ nativeabi.MemorySizer = (*Arena)(nil)
	_ nativeabi.Allocator   = (*Arena)(nil)
)

// New creates an arena with one page of memory.
func New(ctx context.Context) (*Arena, error) {
	return NewWithConfig(ctx, Config{})
}

// NewWithConfig creates an arena with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config) (*Arena, error) {
	pages := cfg.InitialPages
	if pages == 0 {
		pages = 1
	}
	rcfg := wazero.NewRuntimeConfig()
	if cfg.MaxPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.MaxPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rcfg)

	mod, err := r.Instantiate(ctx, memoryModule(pages))
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.Wrap(errors.PhaseMemory, errors.KindAllocation, err, "instantiate memory module")
	}
	mem := mod.ExportedMemory(memoryExport)
	if mem == nil {
		_ = r.Close(ctx)
		return nil, errors.NotFound(errors.PhaseMemory, "memory export", memoryExport)
	}
	return &Arena{runtime: r, mem: mem, next: reserved}, nil
}

// Close releases the wazero runtime. The arena must not be used afterwards.
func (a *Arena) Close(ctx context.Context) error {
	return a.runtime.Close(ctx)
}

// Size returns the current memory size in bytes.
func (a *Arena) Size() uint64 {
	return uint64(a.mem.Size())
}

// Live returns the number of blocks allocated and not yet freed.
func (a *Arena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// Alloc returns the address of a zeroed block of size bytes aligned to align.
func (a *Arena) Alloc(size, align uint64) (uint64, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseMemory, fmt.Sprintf("alignment %d is not a power of two", align))
	}
	if size == 0 {
		size = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if addr, ok := a.reuse(size, align); ok {
		a.live++
		return addr, a.zero(addr, size)
	}

	addr := alignUp(a.next, align)
	end := addr + size
	if end < addr {
		return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
	}
	if err := a.ensure(end); err != nil {
		return 0, err
	}
	if addr < a.top {
		if err := a.zero(addr, min(end, a.top)-addr); err != nil {
			return 0, err
		}
	}
	if addr > a.next {
		a.release(a.next, addr-a.next)
	}
	a.next = end
	a.top = max(a.top, end)
	a.live++
	return addr, nil
}

// Free returns a block obtained from Alloc.
func (a *Arena) Free(addr, size, align uint64) {
	if addr < reserved {
		return
	}
	if size == 0 {
		size = 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.live--
	a.release(addr, size)

	// Hand the top of the heap back to the bump pointer.
	if n := len(a.free); n > 0 && a.free[n-1].addr+a.free[n-1].size == a.next {
		a.next = a.free[n-1].addr
		a.free = a.free[:n-1]
	}
}

// AllocSegment allocates a block and returns it as a native segment.
func (a *Arena) AllocSegment(size, align uint64) (nativeabi.Segment, error) {
	addr, err := a.Alloc(size, align)
	if err != nil {
		return nativeabi.Segment{}, err
	}
	return nativeabi.OfAddress(addr, size), nil
}

// reuse takes the first free block that can hold size bytes at align.
func (a *Arena) reuse(size, align uint64) (uint64, bool) {
	for i, b := range a.free {
		addr := alignUp(b.addr, align)
		if addr+size > b.addr+b.size {
			continue
		}
		a.free = append(a.free[:i], a.free[i+1:]...)
		if addr > b.addr {
			a.release(b.addr, addr-b.addr)
		}
		if tail := b.addr + b.size - (addr + size); tail > 0 {
			a.release(addr+size, tail)
		}
		return addr, true
	}
	return 0, false
}

// release adds a block to the free list, merging it with its neighbours.
func (a *Arena) release(addr, size uint64) {
	a.free = append(a.free, block{addr: addr, size: size})
	sort.Slice(a.free, func(i, j int) bool { return a.free[i].addr < a.free[j].addr })

	merged := a.free[:0]
	for _, b := range a.free {
		if n := len(merged); n > 0 && merged[n-1].addr+merged[n-1].size == b.addr {
			merged[n-1].size += b.size
			continue
		}
		merged = append(merged, b)
	}
	a.free = merged
}

// ensure grows the memory so that end is addressable.
func (a *Arena) ensure(end uint64) error {
	size := uint64(a.mem.Size())
	if end <= size {
		return nil
	}
	pages, err := safecast.Conv[uint32]((end - size + PageSize - 1) / PageSize)
	if err != nil {
		return errors.AllocationFailed(errors.PhaseMemory, end-size, 1)
	}
	if _, ok := a.mem.Grow(pages); !ok {
		return errors.AllocationFailed(errors.PhaseMemory, end-size, 1)
	}
	return nil
}

func (a *Arena) zero(addr, size uint64) error {
	return a.Write(addr, make([]byte, size))
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
