package nativeabi

import (
	"fmt"

	"github.com/wippyai/native-abi/errors"
)

// Segment is a bounds-checked view of memory. A heap segment is backed by a
// Go byte slice and has no native address; a native segment is an address
// range in a Memory.
type Segment struct {
	heap []byte
	off  uint64 // heap: start within heap; native: absolute address
	size uint64
}

// Null is the zero-length native segment at address 0.
var Null = Segment{}

// OfHeap returns a heap segment covering all of b.
func OfHeap(b []byte) Segment {
	if b == nil {
		b = []byte{}
	}
	return Segment{heap: b, size: uint64(len(b))}
}

// OfAddress returns a native segment of size bytes at addr.
func OfAddress(addr, size uint64) Segment {
	return Segment{off: addr, size: size}
}

// IsNative reports whether the segment lives in native memory.
func (s Segment) IsNative() bool {
	return s.heap == nil
}

// Size returns the segment length in bytes.
func (s Segment) Size() uint64 {
	return s.size
}

// Address returns the native address of the first byte. It is only
// meaningful for native segments.
func (s Segment) Address() uint64 {
	if s.heap != nil {
		return 0
	}
	return s.off
}

// Base returns the backing object: the heap array for heap segments, nil for
// native ones.
func (s Segment) Base() []byte {
	return s.heap
}

// Offset returns the displacement from Base. For native segments, whose base
// is nil, it is the absolute address.
func (s Segment) Offset() uint64 {
	return s.off
}

// Slice returns the sub-segment [off, off+n).
func (s Segment) Slice(off, n uint64) (Segment, error) {
	if err := s.check(off, n); err != nil {
		return Segment{}, err
	}
	return Segment{heap: s.heap, off: s.off + off, size: n}, nil
}

// Load copies n bytes starting at off out of the segment.
func (s Segment) Load(mem Memory, off, n uint64) ([]byte, error) {
	if err := s.check(off, n); err != nil {
		return nil, err
	}
	if s.heap != nil {
		out := make([]byte, n)
		copy(out, s.heap[s.off+off:s.off+off+n])
		return out, nil
	}
	if n == 0 {
		return []byte{}, nil
	}
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseMemory, "native segment read without memory")
	}
	data, err := mem.Read(s.off+off, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, data)
	return out, nil
}

// Store copies data into the segment starting at off.
func (s Segment) Store(mem Memory, off uint64, data []byte) error {
	n := uint64(len(data))
	if err := s.check(off, n); err != nil {
		return err
	}
	if s.heap != nil {
		copy(s.heap[s.off+off:], data)
		return nil
	}
	if n == 0 {
		return nil
	}
	if mem == nil {
		return errors.InvalidInput(errors.PhaseMemory, "native segment write without memory")
	}
	return mem.Write(s.off+off, data)
}

// Bytes returns a copy of the whole segment contents.
func (s Segment) Bytes(mem Memory) ([]byte, error) {
	return s.Load(mem, 0, s.size)
}

func (s Segment) check(off, n uint64) error {
	if off > s.size || n > s.size-off {
		return errors.OutOfBounds(errors.PhaseMemory, nil, off, n, s.size)
	}
	return nil
}

// String implements fmt.Stringer.
func (s Segment) String() string {
	if s.heap != nil {
		return fmt.Sprintf("heap[%d:%d]", s.off, s.off+s.size)
	}
	return fmt.Sprintf("native[0x%x, %d]", s.off, s.size)
}
