package linker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/abi/sysv"
	"github.com/wippyai/native-abi/binding"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// ManagedFunc is the managed target of an upcall.
type ManagedFunc func(ctx context.Context, args ...any) (any, error)

// UpcallStubFactory makes native entry points of one shape.
type UpcallStubFactory struct {
	cs     *binding.CallingSequence
	desc   *layout.FunctionDescriptor
	interp *binding.Interpreter
}

// CallingSequence returns the plan stubs execute.
func (sf *UpcallStubFactory) CallingSequence() *binding.CallingSequence {
	return sf.cs
}

// Make returns a stub that calls target.
func (sf *UpcallStubFactory) Make(target ManagedFunc) *UpcallStub {
	return &UpcallStub{factory: sf, target: target}
}

// UpcallStub is a native entry point bound to a managed function.
type UpcallStub struct {
	factory *UpcallStubFactory
	target  ManagedFunc
}

// Enter runs the stub on a frame set up by native code: it boxes the
// arguments, calls the target and unboxes its result into the frame.
func (s *UpcallStub) Enter(ctx context.Context, f *binding.Frame) error {
	sf := s.factory
	cs := sf.cs

	args := make([]any, 0, len(cs.Args))
	for i, arg := range cs.Args {
		v, err := sf.interp.Box(f, arg.Bindings)
		if err != nil {
			return atPath(err, argPath(cs, i))
		}
		args = append(args, v)
	}

	var buf nativeabi.Segment
	if cs.IsInMemoryReturn {
		buf = args[0].(nativeabi.Segment)
		args = args[1:]
	}

	result, err := s.target(ctx, args...)
	if err != nil {
		Logger().Debug("upcall target failed", zap.Stringer("signature", sf.desc), zap.Error(err))
		return err
	}

	switch {
	case cs.IsInMemoryReturn:
		return s.storeInMemory(f, buf, result)
	case cs.Return != nil:
		return sf.interp.Unbox(f, cs.Return.Bindings, result)
	default:
		return nil
	}
}

// storeInMemory copies result into the caller's return buffer and returns
// the buffer address the way the ABI requires.
func (s *UpcallStub) storeInMemory(f *binding.Frame, buf nativeabi.Segment, result any) error {
	seg, ok := result.(nativeabi.Segment)
	if !ok {
		return errors.TypeMismatch(errors.PhaseInvoke, []string{"return"}, abi.CarrierSegment.String(), fmt.Sprintf("%T", result))
	}
	mem := s.factory.interp.Mem
	data, err := seg.Bytes(mem)
	if err != nil {
		return err
	}
	if uint64(len(data)) != buf.Size() {
		return errors.New(errors.PhaseInvoke, errors.KindTypeMismatch).
			Path("return").
			Detail("result has %d bytes, return buffer has %d", len(data), buf.Size()).
			Build()
	}
	if err := buf.Store(mem, 0, data); err != nil {
		return err
	}
	return f.Store(sysv.RAX, abi.CarrierLong, int64(buf.Address()))
}

func argPath(cs *binding.CallingSequence, i int) string {
	if cs.IsInMemoryReturn {
		if i == 0 {
			return "return"
		}
		i--
	}
	return fmt.Sprintf("arg%d", i)
}

// atPath records where an error happened unless it already says.
func atPath(err error, path string) error {
	if e, ok := err.(*errors.Error); ok && len(e.Path) == 0 {
		e.Path = []string{path}
	}
	return err
}
