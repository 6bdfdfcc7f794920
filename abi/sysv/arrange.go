package sysv

import (
	"fmt"

	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/binding"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// Options are the per-call linker options the arrangement depends on.
type Options struct {
	// Variadic marks a variadic function. Arguments from FirstVariadicArg
	// on are the variadic ones.
	Variadic         bool
	FirstVariadicArg int

	// AllowHeapAccess lets downcall pointer arguments be heap segments.
	AllowHeapAccess bool
}

// Bindings is the result of an arrangement.
type Bindings struct {
	CallingSequence  *binding.CallingSequence
	IsInMemoryReturn bool
}

// Arrange computes the calling sequence of a downcall or an upcall with the
// managed shape mt and the native shape desc.
func Arrange(mt abi.MethodType, desc *layout.FunctionDescriptor, opts Options, forUpcall bool) (*Bindings, error) {
	if err := validate(mt, desc, opts); err != nil {
		return nil, err
	}

	argDir, retDir := binding.DirectionUnbox, binding.DirectionBox
	if forUpcall {
		argDir, retDir = retDir, argDir
	}
	argCalc := newBindingCalculator(true, argDir, !forUpcall && opts.AllowHeapAccess)
	retCalc := newBindingCalculator(false, retDir, false)

	b := binding.NewBuilder(forUpcall)

	returnInMemory, err := isInMemoryReturn(desc.Return)
	if err != nil {
		return nil, atPath(err, "return")
	}
	if returnInMemory {
		ptr := layout.PointerTo(desc.Return)
		bs, err := argCalc.indirectBindings(ptr)
		if err != nil {
			return nil, atPath(err, "return")
		}
		if err := b.AddArgument(abi.CarrierSegment, ptr, bs); err != nil {
			return nil, err
		}
	} else if desc.Return != nil {
		bs, err := retCalc.bindings(mt.Return, desc.Return)
		if err != nil {
			return nil, atPath(err, "return")
		}
		if err := b.SetReturn(mt.Return, desc.Return, bs); err != nil {
			return nil, err
		}
	}

	for i, arg := range desc.Args {
		bs, err := argCalc.bindings(mt.Params[i], arg)
		if err != nil {
			return nil, atPath(err, argName(i))
		}
		if err := b.AddArgument(mt.Params[i], arg, bs); err != nil {
			return nil, err
		}
	}

	if !forUpcall && opts.Variadic {
		count := []binding.Binding{binding.VMStore(ABI.VarargsCount, abi.CarrierLong)}
		if err := b.AddArgument(abi.CarrierLong, layout.Int64, count); err != nil {
			return nil, err
		}
	}

	cs := b.SetInMemoryReturn(returnInMemory).
		SetVariadic(opts.Variadic).
		SetStack(argCalc.storage.stackOffset, ABI.StackAlign).
		SetVectorArgs(argCalc.storage.nVectorReg).
		Build()

	return &Bindings{CallingSequence: cs, IsInMemoryReturn: returnInMemory}, nil
}

func isInMemoryReturn(ret layout.Layout) (bool, error) {
	g, ok := ret.(*layout.Group)
	if !ok {
		return false, nil
	}
	tc, err := Classify(g)
	if err != nil {
		return false, err
	}
	return tc.InMemory, nil
}

// validate rejects malformed descriptors before any binding work.
func validate(mt abi.MethodType, desc *layout.FunctionDescriptor, opts Options) error {
	if desc == nil {
		return errors.Malformed(nil, "missing function descriptor")
	}
	if len(mt.Params) != len(desc.Args) {
		return errors.Malformed(nil, "method type has %d parameters, descriptor has %d", len(mt.Params), len(desc.Args))
	}

	if err := checkCarrier(mt.Return, desc.Return, "return"); err != nil {
		return err
	}
	for i, arg := range desc.Args {
		if err := checkCarrier(mt.Params[i], arg, argName(i)); err != nil {
			return err
		}
	}

	if !opts.Variadic {
		return nil
	}
	if opts.FirstVariadicArg < 0 || opts.FirstVariadicArg > len(desc.Args) {
		return errors.Malformed(nil, "first variadic argument %d out of range [0, %d]", opts.FirstVariadicArg, len(desc.Args))
	}
	for i := opts.FirstVariadicArg; i < len(desc.Args); i++ {
		v, ok := desc.Args[i].(layout.Value)
		if !ok {
			continue
		}
		switch {
		case v.Kind() == layout.KindFloat && v.Size() < 8:
			return errors.Malformed([]string{argName(i)}, "variadic %s must be promoted to f64", v)
		case v.Kind() == layout.KindInteger && v.Size() < 4:
			return errors.Malformed([]string{argName(i)}, "variadic %s must be promoted to i32", v)
		}
	}
	return nil
}

func checkCarrier(c abi.Carrier, l layout.Layout, path string) error {
	want, err := abi.CarrierFor(l)
	if err != nil {
		return atPath(err, path)
	}
	if c != want {
		return errors.Malformed([]string{path}, "carrier %s does not match layout %s (want %s)", c, layoutName(l), want)
	}
	return nil
}

func layoutName(l layout.Layout) string {
	if l == nil {
		return "void"
	}
	return l.String()
}

func argName(i int) string {
	return fmt.Sprintf("arg%d", i)
}

// atPath records where an error happened unless it already says.
func atPath(err error, path string) error {
	if e, ok := err.(*errors.Error); ok && len(e.Path) == 0 {
		e.Path = []string{path}
	}
	return err
}
