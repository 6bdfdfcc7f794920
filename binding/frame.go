package binding

import (
	"cmp"
	"encoding/binary"
	"maps"
	"math"
	"slices"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
)

// NumRegisters is the size of each register file in a Frame.
const NumRegisters = 16

// Frame is the native side of one call: the integer and vector register
// files and the stack argument area. Vector registers hold their low 64
// bits.
type Frame struct {
	objects map[abi.VMStorage][]byte
	stack   []byte
	pins    []pin
	ints    [NumRegisters]uint64
	vecs    [NumRegisters]uint64
}

// pin is a heap region staged in native memory for the duration of a call.
type pin struct {
	base []byte
	addr uint64
}

// span is the part of one backing array reached by the heap bases of a
// call. start and end count bytes back from the end of the array.
type span struct {
	ref        []byte
	start, end int
	addr       uint64
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{}
}

// Int returns integer register i.
func (f *Frame) Int(i int) uint64 { return f.ints[i] }

// SetInt sets integer register i.
func (f *Frame) SetInt(i int, v uint64) { f.ints[i] = v }

// Vec returns the low 64 bits of vector register i.
func (f *Frame) Vec(i int) uint64 { return f.vecs[i] }

// SetVec sets the low 64 bits of vector register i.
func (f *Frame) SetVec(i int, v uint64) { f.vecs[i] = v }

// Float64 returns vector register i as a double.
func (f *Frame) Float64(i int) float64 { return math.Float64frombits(f.vecs[i]) }

// SetFloat64 stores a double in vector register i.
func (f *Frame) SetFloat64(i int, v float64) { f.vecs[i] = math.Float64bits(v) }

// Stack returns the stack argument area.
func (f *Frame) Stack() []byte { return f.stack }

// StackU64 returns the eight bytes at offset of the stack argument area.
func (f *Frame) StackU64(offset int64) uint64 {
	if offset < 0 || offset+8 > int64(len(f.stack)) {
		return 0
	}
	return binary.LittleEndian.Uint64(f.stack[offset:])
}

// SetStackU64 writes eight bytes at offset of the stack argument area.
func (f *Frame) SetStackU64(offset int64, v uint64) {
	f.growStack(offset + 8)
	binary.LittleEndian.PutUint64(f.stack[offset:], v)
}

func (f *Frame) growStack(n int64) {
	if n > int64(len(f.stack)) {
		f.stack = append(f.stack, make([]byte, n-int64(len(f.stack)))...)
	}
}

// raw returns the 64 bits held by s.
func (f *Frame) raw(s abi.VMStorage) (uint64, error) {
	switch s.Kind {
	case abi.StorageInteger:
		if int(s.Index) >= NumRegisters {
			return 0, f.badStorage(s)
		}
		return f.ints[s.Index], nil
	case abi.StorageVector:
		if int(s.Index) >= NumRegisters {
			return 0, f.badStorage(s)
		}
		return f.vecs[s.Index], nil
	case abi.StorageStack:
		if s.Offset < 0 {
			return 0, f.badStorage(s)
		}
		return f.StackU64(s.Offset), nil
	}
	return 0, f.badStorage(s)
}

func (f *Frame) setRaw(s abi.VMStorage, v uint64) error {
	switch s.Kind {
	case abi.StorageInteger:
		if int(s.Index) >= NumRegisters {
			return f.badStorage(s)
		}
		f.ints[s.Index] = v
	case abi.StorageVector:
		if int(s.Index) >= NumRegisters {
			return f.badStorage(s)
		}
		f.vecs[s.Index] = v
	case abi.StorageStack:
		if s.Offset < 0 {
			return f.badStorage(s)
		}
		f.SetStackU64(s.Offset, v)
	default:
		return f.badStorage(s)
	}
	return nil
}

func (f *Frame) badStorage(s abi.VMStorage) error {
	return errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
		Detail("invalid storage %s", s).
		Build()
}

// Store writes a managed value of carrier typ to s. An object carrier
// records a heap base for s, to be combined with the offset stored in the
// same location.
func (f *Frame) Store(s abi.VMStorage, typ abi.Carrier, v any) error {
	if typ == abi.CarrierObject {
		base, ok := v.([]byte)
		if !ok && v != nil {
			return errors.TypeMismatch(errors.PhaseInvoke, []string{s.String()}, typ.String(), typeName(v))
		}
		if base == nil {
			delete(f.objects, s)
			return nil
		}
		if f.objects == nil {
			f.objects = make(map[abi.VMStorage][]byte)
		}
		f.objects[s] = base
		return nil
	}
	bits, err := toBits(typ, v)
	if err != nil {
		return err
	}
	return f.setRaw(s, bits)
}

// Load reads s as a managed value of carrier typ.
func (f *Frame) Load(s abi.VMStorage, typ abi.Carrier) (any, error) {
	bits, err := f.raw(s)
	if err != nil {
		return nil, err
	}
	return fromBits(typ, bits)
}

// Pin copies every heap base recorded by Store into native memory and
// rewrites the paired offset into an absolute address. Bases that share a
// backing array are staged as one region, so aliased arguments see each
// other's writes.
func (f *Frame) Pin(mem nativeabi.Memory, alloc nativeabi.Allocator) error {
	if len(f.objects) == 0 {
		return nil
	}
	if mem == nil || alloc == nil {
		return errors.New(errors.PhaseInvoke, errors.KindHeapAccess).
			Detail("heap segment argument needs native memory to stage it").
			Build()
	}

	storages := slices.SortedFunc(maps.Keys(f.objects), compareStorage)
	spans := make([]*span, 0, len(storages))
	owner := make(map[abi.VMStorage]*span, len(storages))
	byArray := make(map[*byte]*span)
	for _, s := range storages {
		base := f.objects[s]
		c := cap(base)
		if c == 0 {
			sp := &span{ref: base}
			spans = append(spans, sp)
			owner[s] = sp
			continue
		}
		last := &base[:c][c-1]
		sp, ok := byArray[last]
		if !ok {
			sp = &span{ref: base, start: c, end: c - len(base)}
			byArray[last] = sp
			spans = append(spans, sp)
		}
		if c > sp.start {
			sp.ref, sp.start = base, c
		}
		sp.end = min(sp.end, c-len(base))
		owner[s] = sp
	}

	for _, sp := range spans {
		region := sp.ref[:sp.start-sp.end]
		size := uint64(len(region))
		addr, err := alloc.Alloc(max(size, 1), 16)
		if err != nil {
			return err
		}
		f.pins = append(f.pins, pin{base: region, addr: addr})
		if err := mem.Write(addr, region); err != nil {
			return err
		}
		sp.addr = addr
	}

	for _, s := range storages {
		sp := owner[s]
		off, err := f.raw(s)
		if err != nil {
			return err
		}
		skip := uint64(sp.start - cap(f.objects[s]))
		if err := f.setRaw(s, sp.addr+skip+off); err != nil {
			return err
		}
	}
	clear(f.objects)
	return nil
}

func compareStorage(a, b abi.VMStorage) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Index, b.Index); c != 0 {
		return c
	}
	return cmp.Compare(a.Offset, b.Offset)
}

// Unpin copies staged heap bases back and releases their native memory.
func (f *Frame) Unpin(mem nativeabi.Memory, alloc nativeabi.Allocator) error {
	var first error
	for _, p := range f.pins {
		size := uint64(len(p.base))
		if size > 0 {
			data, err := mem.Read(p.addr, size)
			if err != nil && first == nil {
				first = err
			}
			copy(p.base, data)
		}
		alloc.Free(p.addr, max(size, 1), 16)
	}
	f.pins = nil
	return first
}

func toBits(typ abi.Carrier, v any) (uint64, error) {
	switch typ {
	case abi.CarrierByte:
		if x, ok := v.(int8); ok {
			return uint64(int64(x)), nil
		}
	case abi.CarrierShort:
		if x, ok := v.(int16); ok {
			return uint64(int64(x)), nil
		}
	case abi.CarrierInt:
		if x, ok := v.(int32); ok {
			return uint64(int64(x)), nil
		}
	case abi.CarrierLong:
		if x, ok := v.(int64); ok {
			return uint64(x), nil
		}
	case abi.CarrierFloat:
		if x, ok := v.(float32); ok {
			return uint64(math.Float32bits(x)), nil
		}
	case abi.CarrierDouble:
		if x, ok := v.(float64); ok {
			return math.Float64bits(x), nil
		}
	}
	return 0, errors.TypeMismatch(errors.PhaseInvoke, nil, typ.String(), typeName(v))
}

func fromBits(typ abi.Carrier, bits uint64) (any, error) {
	switch typ {
	case abi.CarrierByte:
		return int8(bits), nil
	case abi.CarrierShort:
		return int16(bits), nil
	case abi.CarrierInt:
		return int32(bits), nil
	case abi.CarrierLong:
		return int64(bits), nil
	case abi.CarrierFloat:
		return math.Float32frombits(uint32(bits)), nil
	case abi.CarrierDouble:
		return math.Float64frombits(bits), nil
	}
	return nil, errors.New(errors.PhaseInvoke, errors.KindTypeMismatch).
		Carrier(typ.String()).
		Detail("carrier cannot be read from a register").
		Build()
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case int8:
		return "int8"
	case int16:
		return "int16"
	case int32:
		return "int32"
	case int64:
		return "int64"
	case float32:
		return "float32"
	case float64:
		return "float64"
	case nativeabi.Segment:
		return "segment"
	case []byte:
		return "[]byte"
	}
	return "unknown"
}
