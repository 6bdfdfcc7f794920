package linker

import (
	"context"

	"go.uber.org/zap"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/binding"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// NativeFunc is a native function. It reads its arguments from f and
// leaves its result in f's return registers.
type NativeFunc func(ctx context.Context, f *binding.Frame) error

// DowncallHandle calls native functions of one shape.
type DowncallHandle struct {
	cs      *binding.CallingSequence
	desc    *layout.FunctionDescriptor
	interp  *binding.Interpreter
	nParams int
}

// CallingSequence returns the plan the handle executes.
func (h *DowncallHandle) CallingSequence() *binding.CallingSequence {
	return h.cs
}

// Descriptor returns the native shape the handle was arranged for.
func (h *DowncallHandle) Descriptor() *layout.FunctionDescriptor {
	return h.desc
}

// Invoke calls target with args. Arguments are managed values of the
// carrier types of the arranged method type: int8, int16, int32, int64,
// float32, float64 or nativeabi.Segment. The result is nil for void
// functions.
func (h *DowncallHandle) Invoke(ctx context.Context, target NativeFunc, args ...any) (any, error) {
	if len(args) != h.nParams {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Detail("got %d arguments, want %d", len(args), h.nParams).
			Build()
	}

	values := make([]any, 0, len(h.cs.Args))
	var buf nativeabi.Segment
	if h.cs.IsInMemoryReturn {
		var err error
		buf, err = h.returnBuffer()
		if err != nil {
			return nil, err
		}
		defer h.interp.Alloc.Free(buf.Address(), bufSize(buf), uint64(h.desc.Return.Align()))
		values = append(values, buf)
	}
	values = append(values, args...)
	if h.cs.Variadic {
		values = append(values, int64(h.cs.NVectorArgs))
	}

	f := binding.NewFrame()
	for i, arg := range h.cs.Args {
		if err := h.interp.Unbox(f, arg.Bindings, values[i]); err != nil {
			return nil, err
		}
	}

	if err := f.Pin(h.interp.Mem, h.interp.Alloc); err != nil {
		_ = f.Unpin(h.interp.Mem, h.interp.Alloc)
		return nil, err
	}
	callErr := target(ctx, f)
	if err := f.Unpin(h.interp.Mem, h.interp.Alloc); err != nil && callErr == nil {
		callErr = err
	}
	if callErr != nil {
		Logger().Debug("downcall failed", zap.Stringer("signature", h.desc), zap.Error(callErr))
		return nil, callErr
	}

	switch {
	case h.cs.IsInMemoryReturn:
		data, err := buf.Bytes(h.interp.Mem)
		if err != nil {
			return nil, err
		}
		return nativeabi.OfHeap(data), nil
	case h.cs.Return != nil:
		return h.interp.Box(f, h.cs.Return.Bindings)
	default:
		return nil, nil
	}
}

// returnBuffer allocates native memory for an in-memory return.
func (h *DowncallHandle) returnBuffer() (nativeabi.Segment, error) {
	if h.interp.Mem == nil || h.interp.Alloc == nil {
		return nativeabi.Segment{}, errors.New(errors.PhaseInvoke, errors.KindAllocation).
			Path("return").
			Detail("in-memory return of %s needs native memory", h.desc.Return).
			Build()
	}
	ret := h.desc.Return
	size := uint64(ret.Size())
	addr, err := h.interp.Alloc.Alloc(max(size, 1), uint64(ret.Align()))
	if err != nil {
		return nativeabi.Segment{}, err
	}
	return nativeabi.OfAddress(addr, size), nil
}

func bufSize(s nativeabi.Segment) uint64 {
	return max(s.Size(), 1)
}
