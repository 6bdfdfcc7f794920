// Package binding defines the marshalling program produced for a native call
// and the machinery that executes it.
//
// A binding list is a small stack program. Unbox lists consume one managed
// value and leave native state in registers and stack slots; Box lists read
// native state and leave exactly one managed value. A CallingSequence
// groups the lists for every argument and the return value of one call.
package binding

import (
	"fmt"

	"github.com/wippyai/native-abi/abi"
)

// Op is the operation of a Binding.
type Op uint8

const (
	OpVMStore Op = iota + 1
	OpVMLoad
	OpBufferLoad
	OpBufferStore
	OpDup
	OpAllocate
	OpUnboxAddress
	OpBoxAddress
	OpSegmentBase
	OpSegmentOffset
)

var opNames = [...]string{
	OpVMStore:       "vmstore",
	OpVMLoad:        "vmload",
	OpBufferLoad:    "bufferload",
	OpBufferStore:   "bufferstore",
	OpDup:           "dup",
	OpAllocate:      "allocate",
	OpUnboxAddress:  "unboxaddress",
	OpBoxAddress:    "boxaddress",
	OpSegmentBase:   "segmentbase",
	OpSegmentOffset: "segmentoffset",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Direction says which way values flow through a binding list.
type Direction uint8

const (
	// DirectionUnbox turns a managed value into native storage contents.
	DirectionUnbox Direction = iota
	// DirectionBox turns native storage contents into a managed value.
	DirectionBox
)

func (d Direction) String() string {
	if d == DirectionBox {
		return "box"
	}
	return "unbox"
}

// Allows reports whether op may appear in a list of direction d.
func (d Direction) Allows(op Op) bool {
	switch op {
	case OpDup:
		return true
	case OpVMStore, OpBufferLoad, OpUnboxAddress, OpSegmentBase, OpSegmentOffset:
		return d == DirectionUnbox
	case OpVMLoad, OpBufferStore, OpAllocate, OpBoxAddress:
		return d == DirectionBox
	}
	return false
}

// Binding is one instruction. Only the fields relevant to Op are set.
type Binding struct {
	Storage abi.VMStorage `msgpack:"st,omitempty"`
	Offset  int64         `msgpack:"off,omitempty"`
	Size    int64         `msgpack:"sz,omitempty"`
	Align   int64         `msgpack:"al,omitempty"`
	Type    abi.Carrier   `msgpack:"ty,omitempty"`
	Op      Op            `msgpack:"op"`
}

// VMStore pops a value and writes it to storage.
func VMStore(storage abi.VMStorage, typ abi.Carrier) Binding {
	return Binding{Op: OpVMStore, Storage: storage, Type: typ}
}

// VMLoad reads storage and pushes the value.
func VMLoad(storage abi.VMStorage, typ abi.Carrier) Binding {
	return Binding{Op: OpVMLoad, Storage: storage, Type: typ}
}

// BufferLoad pops a segment and pushes size bytes read at offset as typ.
func BufferLoad(offset int64, typ abi.Carrier, size int64) Binding {
	return Binding{Op: OpBufferLoad, Offset: offset, Type: typ, Size: size}
}

// BufferStore pops a value and a segment and writes size bytes of the value
// at offset.
func BufferStore(offset int64, typ abi.Carrier, size int64) Binding {
	return Binding{Op: OpBufferStore, Offset: offset, Type: typ, Size: size}
}

// Dup duplicates the top of the operand stack.
func Dup() Binding {
	return Binding{Op: OpDup}
}

// Allocate pushes a fresh zeroed segment of the given size and alignment.
func Allocate(size, align int64) Binding {
	return Binding{Op: OpAllocate, Size: size, Align: align}
}

// UnboxAddress pops a native segment and pushes its address as a long.
func UnboxAddress() Binding {
	return Binding{Op: OpUnboxAddress, Type: abi.CarrierLong}
}

// BoxAddress pops a long and pushes a native segment of size bytes at that
// address. A non-zero address must be aligned to align.
func BoxAddress(size, align int64) Binding {
	return Binding{Op: OpBoxAddress, Size: size, Align: align}
}

// SegmentBase pops a segment and pushes its backing object.
func SegmentBase() Binding {
	return Binding{Op: OpSegmentBase, Type: abi.CarrierObject}
}

// SegmentOffset pops a segment and pushes its offset from the base.
func SegmentOffset() Binding {
	return Binding{Op: OpSegmentOffset, Type: abi.CarrierLong}
}

func (b Binding) String() string {
	switch b.Op {
	case OpVMStore, OpVMLoad:
		return fmt.Sprintf("%s(%s, %s)", b.Op, b.Storage, b.Type)
	case OpBufferLoad, OpBufferStore:
		return fmt.Sprintf("%s(%d, %s, %d)", b.Op, b.Offset, b.Type, b.Size)
	case OpAllocate, OpBoxAddress:
		return fmt.Sprintf("%s(%d, %d)", b.Op, b.Size, b.Align)
	}
	return b.Op.String()
}
