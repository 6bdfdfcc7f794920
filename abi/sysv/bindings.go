package sysv

import (
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/binding"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// bindingCalculator emits the binding list for one value at a time. The
// traversal is shared; dir selects the load or store side at each step.
type bindingCalculator struct {
	storage *storageCalculator
	dir     binding.Direction

	// useAddressPairs passes pointers as a base object plus offset so that
	// heap segments can reach native code. Only downcall arguments use it.
	useAddressPairs bool
}

func newBindingCalculator(forArguments bool, dir binding.Direction, useAddressPairs bool) *bindingCalculator {
	return &bindingCalculator{
		storage:         newStorageCalculator(ABI, forArguments),
		dir:             dir,
		useAddressPairs: useAddressPairs,
	}
}

func (c *bindingCalculator) bindings(carrier abi.Carrier, l layout.Layout) ([]binding.Binding, error) {
	tc, err := Classify(l)
	if err != nil {
		return nil, err
	}

	switch tc.Kind {
	case TypeStruct:
		return c.structBindings(l, tc)
	case TypePointer:
		return c.pointerBindings(l.(layout.Value))
	case TypeInteger:
		return c.scalarBindings(abi.StorageInteger, carrier)
	case TypeFloat:
		return c.scalarBindings(abi.StorageVector, carrier)
	}
	return nil, errors.Unsupported(errors.PhaseBind, l.String(), "unknown argument class "+tc.Kind.String())
}

func (c *bindingCalculator) scalarBindings(kind abi.StorageKind, carrier abi.Carrier) ([]binding.Binding, error) {
	st, err := c.storage.nextStorage(kind)
	if err != nil {
		return nil, err
	}
	if c.dir == binding.DirectionBox {
		return []binding.Binding{binding.VMLoad(st, carrier)}, nil
	}
	return []binding.Binding{binding.VMStore(st, carrier)}, nil
}

func (c *bindingCalculator) pointerBindings(ptr layout.Value) ([]binding.Binding, error) {
	st, err := c.storage.nextStorage(abi.StorageInteger)
	if err != nil {
		return nil, err
	}

	if c.dir == binding.DirectionBox {
		size, align := pointee(ptr)
		return []binding.Binding{
			binding.VMLoad(st, abi.CarrierLong),
			binding.BoxAddress(size, align),
		}, nil
	}

	if c.useAddressPairs {
		return []binding.Binding{
			binding.Dup(),
			binding.SegmentBase(),
			binding.VMStore(st, abi.CarrierObject),
			binding.SegmentOffset(),
			binding.VMStore(st, abi.CarrierLong),
		}, nil
	}
	return []binding.Binding{
		binding.UnboxAddress(),
		binding.VMStore(st, abi.CarrierLong),
	}, nil
}

// indirectBindings passes the in-memory return buffer. It never uses
// address pairs: the buffer is always native.
func (c *bindingCalculator) indirectBindings(ptr layout.Value) ([]binding.Binding, error) {
	pairs := c.useAddressPairs
	c.useAddressPairs = false
	defer func() { c.useAddressPairs = pairs }()
	return c.pointerBindings(ptr)
}

func (c *bindingCalculator) structBindings(l layout.Layout, tc TypeClass) ([]binding.Binding, error) {
	regs, err := c.storage.structStorages(tc)
	if err != nil {
		return nil, err
	}

	size := l.Size()
	var bs []binding.Binding
	if c.dir == binding.DirectionBox {
		bs = append(bs, binding.Allocate(size, l.Align()))
	}

	next := 0
	for offset := int64(0); offset < size; offset += 8 {
		chunk := min(size-offset, 8)
		if next >= len(regs) {
			return nil, errors.Invariant(errors.PhaseBind, "%s needs more than the %d storages allocated", l, len(regs))
		}
		st := regs[next]
		next++
		if st.Kind == 0 {
			// padding word
			continue
		}

		typ, err := abi.PrimitiveCarrierForSize(chunk, st.Kind == abi.StorageVector)
		if err != nil {
			return nil, err
		}
		if c.dir == binding.DirectionBox {
			bs = append(bs,
				binding.Dup(),
				binding.VMLoad(st, typ),
				binding.BufferStore(offset, typ, chunk))
		} else {
			bs = append(bs,
				binding.Dup(),
				binding.BufferLoad(offset, typ, chunk),
				binding.VMStore(st, typ))
		}
	}
	if next != len(regs) {
		return nil, errors.Invariant(errors.PhaseBind, "%s used %d of %d storages", l, next, len(regs))
	}
	if bs == nil {
		bs = []binding.Binding{}
	}
	return bs, nil
}

// pointee returns the size and alignment of the target of ptr. Untyped
// pointers address zero bytes.
func pointee(ptr layout.Value) (size, align int64) {
	if t := ptr.Target(); t != nil {
		return t.Size(), t.Align()
	}
	return 0, 1
}
