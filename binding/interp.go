package binding

import (
	"encoding/binary"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
)

// Interpreter executes binding lists against a Frame. Mem backs native
// segments; Alloc is only needed to stage heap segments.
type Interpreter struct {
	Mem   nativeabi.Memory
	Alloc nativeabi.Allocator
}

type operandStack []any

func (s *operandStack) push(v any) { *s = append(*s, v) }

func (s *operandStack) pop() any {
	old := *s
	v := old[len(old)-1]
	*s = old[:len(old)-1]
	return v
}

func (s *operandStack) peek() any { return (*s)[len(*s)-1] }

// Unbox runs an Unbox list with v as its input, leaving the native side of
// the value in f. Operands left on the stack are discarded.
func (in *Interpreter) Unbox(f *Frame, bindings []Binding, v any) error {
	stack := operandStack{v}
	return in.run(f, bindings, &stack)
}

// Box runs a Box list and returns the managed value it produces.
func (in *Interpreter) Box(f *Frame, bindings []Binding) (any, error) {
	var stack operandStack
	if err := in.run(f, bindings, &stack); err != nil {
		return nil, err
	}
	if len(stack) != 1 {
		return nil, errors.New(errors.PhaseInvoke, errors.KindStackMismatch).
			Detail("box produced %d values", len(stack)).
			Build()
	}
	return stack[0], nil
}

func (in *Interpreter) run(f *Frame, bindings []Binding, stack *operandStack) error {
	for i, b := range bindings {
		need, _ := stackEffect(b.Op)
		if len(*stack) < need {
			return errors.New(errors.PhaseInvoke, errors.KindStackMismatch).
				Detail("binding %d %s: stack has %d operands", i, b, len(*stack)).
				Build()
		}
		if (b.Op == OpBufferLoad || b.Op == OpBufferStore) && (b.Size <= 0 || b.Size > 8) {
			return errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
				Detail("binding %d %s: chunk size out of range", i, b).
				Build()
		}
		if err := in.step(f, b, stack); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) step(f *Frame, b Binding, stack *operandStack) error {
	switch b.Op {
	case OpVMStore:
		return f.Store(b.Storage, b.Type, stack.pop())

	case OpVMLoad:
		v, err := f.Load(b.Storage, b.Type)
		if err != nil {
			return err
		}
		stack.push(v)

	case OpDup:
		stack.push(stack.peek())

	case OpBufferLoad:
		seg, err := segmentOperand(stack.pop(), b)
		if err != nil {
			return err
		}
		data, err := seg.Load(in.Mem, uint64(b.Offset), uint64(b.Size))
		if err != nil {
			return err
		}
		var word [8]byte
		copy(word[:], data)
		v, err := fromBits(b.Type, binary.LittleEndian.Uint64(word[:]))
		if err != nil {
			return err
		}
		stack.push(v)

	case OpBufferStore:
		v := stack.pop()
		seg, err := segmentOperand(stack.pop(), b)
		if err != nil {
			return err
		}
		bits, err := toBits(b.Type, v)
		if err != nil {
			return err
		}
		var word [8]byte
		binary.LittleEndian.PutUint64(word[:], bits)
		return seg.Store(in.Mem, uint64(b.Offset), word[:b.Size])

	case OpAllocate:
		stack.push(nativeabi.OfHeap(make([]byte, b.Size)))

	case OpUnboxAddress:
		seg, err := segmentOperand(stack.pop(), b)
		if err != nil {
			return err
		}
		if !seg.IsNative() {
			return errors.New(errors.PhaseInvoke, errors.KindHeapAccess).
				Detail("heap segment %s passed by address", seg).
				Build()
		}
		stack.push(int64(seg.Address()))

	case OpBoxAddress:
		addr, ok := stack.pop().(int64)
		if !ok {
			return errors.TypeMismatch(errors.PhaseInvoke, nil, abi.CarrierLong.String(), "non-address operand")
		}
		if addr != 0 && b.Align > 1 && uint64(addr)%uint64(b.Align) != 0 {
			return errors.Misaligned(errors.PhaseInvoke, uint64(addr), uint64(b.Align))
		}
		stack.push(nativeabi.OfAddress(uint64(addr), uint64(b.Size)))

	case OpSegmentBase:
		seg, err := segmentOperand(stack.pop(), b)
		if err != nil {
			return err
		}
		if base := seg.Base(); base != nil {
			stack.push(base)
		} else {
			stack.push(nil)
		}

	case OpSegmentOffset:
		seg, err := segmentOperand(stack.pop(), b)
		if err != nil {
			return err
		}
		stack.push(int64(seg.Offset()))

	default:
		return errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Detail("unknown binding %s", b.Op).
			Build()
	}
	return nil
}

func segmentOperand(v any, b Binding) (nativeabi.Segment, error) {
	seg, ok := v.(nativeabi.Segment)
	if !ok {
		return nativeabi.Segment{}, errors.TypeMismatch(errors.PhaseInvoke, []string{b.Op.String()}, abi.CarrierSegment.String(), typeName(v))
	}
	return seg, nil
}
