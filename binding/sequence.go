package binding

import (
	"fmt"
	"strings"

	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// ArgumentBindings is the binding list of one argument or return value.
type ArgumentBindings struct {
	Layout   layout.Layout
	Bindings []Binding
	Carrier  abi.Carrier
}

// CallingSequence is the complete plan for one call shape. It is immutable
// once built.
type CallingSequence struct {
	// Return is nil for void functions and for in-memory returns.
	Return *ArgumentBindings

	// Args includes synthetic arguments: the return buffer pointer first
	// for in-memory returns and the vector register count last for
	// variadic downcalls.
	Args []ArgumentBindings

	// StackBytes is the size of the outgoing stack argument area.
	StackBytes int64
	// FrameSize is StackBytes rounded up to the ABI stack alignment.
	FrameSize int64

	// NVectorArgs is the number of vector registers used by arguments.
	NVectorArgs int

	ForUpcall        bool
	IsInMemoryReturn bool
	Variadic         bool
}

// ArgumentDirection returns the direction of argument lists.
func (cs *CallingSequence) ArgumentDirection() Direction {
	if cs.ForUpcall {
		return DirectionBox
	}
	return DirectionUnbox
}

// ReturnDirection returns the direction of the return list.
func (cs *CallingSequence) ReturnDirection() Direction {
	if cs.ForUpcall {
		return DirectionUnbox
	}
	return DirectionBox
}

// HasReturn reports whether the call produces a value in registers.
func (cs *CallingSequence) HasReturn() bool {
	return cs.Return != nil
}

// MethodType returns the carrier view of the sequence, synthetic arguments
// included.
func (cs *CallingSequence) MethodType() abi.MethodType {
	mt := abi.MethodType{Params: make([]abi.Carrier, len(cs.Args))}
	for i, a := range cs.Args {
		mt.Params[i] = a.Carrier
	}
	if cs.Return != nil {
		mt.Return = cs.Return.Carrier
	}
	return mt
}

// String renders the sequence one binding per line.
func (cs *CallingSequence) String() string {
	var b strings.Builder
	kind := "downcall"
	if cs.ForUpcall {
		kind = "upcall"
	}
	fmt.Fprintf(&b, "%s %s\n", kind, cs.MethodType())
	for i, a := range cs.Args {
		fmt.Fprintf(&b, "  arg %d %s %s\n", i, a.Carrier, layoutString(a.Layout))
		for _, bd := range a.Bindings {
			fmt.Fprintf(&b, "    %s\n", bd)
		}
	}
	if cs.Return != nil {
		fmt.Fprintf(&b, "  ret %s %s\n", cs.Return.Carrier, layoutString(cs.Return.Layout))
		for _, bd := range cs.Return.Bindings {
			fmt.Fprintf(&b, "    %s\n", bd)
		}
	}
	fmt.Fprintf(&b, "  in-memory return: %t\n", cs.IsInMemoryReturn)
	fmt.Fprintf(&b, "  stack: %d bytes, frame: %d bytes\n", cs.StackBytes, cs.FrameSize)
	fmt.Fprintf(&b, "  vector args: %d", cs.NVectorArgs)
	return b.String()
}

func layoutString(l layout.Layout) string {
	if l == nil {
		return "void"
	}
	return l.String()
}

// Builder assembles a CallingSequence and checks every binding list against
// the direction it will run in.
type Builder struct {
	cs CallingSequence
}

// NewBuilder returns a builder for a downcall or an upcall sequence.
func NewBuilder(forUpcall bool) *Builder {
	return &Builder{cs: CallingSequence{ForUpcall: forUpcall}}
}

// AddArgument appends the bindings of the next argument.
func (b *Builder) AddArgument(c abi.Carrier, l layout.Layout, bindings []Binding) error {
	path := []string{fmt.Sprintf("arg%d", len(b.cs.Args))}
	if err := Verify(b.cs.ArgumentDirection(), bindings, path); err != nil {
		return err
	}
	b.cs.Args = append(b.cs.Args, ArgumentBindings{Carrier: c, Layout: l, Bindings: bindings})
	return nil
}

// SetReturn sets the bindings of the return value. Return values never
// live on the stack.
func (b *Builder) SetReturn(c abi.Carrier, l layout.Layout, bindings []Binding) error {
	path := []string{"return"}
	if err := Verify(b.cs.ReturnDirection(), bindings, path); err != nil {
		return err
	}
	for _, bd := range bindings {
		if (bd.Op == OpVMStore || bd.Op == OpVMLoad) && bd.Storage.Kind == abi.StorageStack {
			return errors.New(errors.PhaseArrange, errors.KindInvariant).
				Path(path...).
				Detail("return binding %s uses the stack", bd).
				Build()
		}
	}
	b.cs.Return = &ArgumentBindings{Carrier: c, Layout: l, Bindings: bindings}
	return nil
}

// SetInMemoryReturn marks the sequence as returning through a buffer.
func (b *Builder) SetInMemoryReturn(v bool) *Builder {
	b.cs.IsInMemoryReturn = v
	return b
}

// SetVariadic marks the sequence as a variadic call.
func (b *Builder) SetVariadic(v bool) *Builder {
	b.cs.Variadic = v
	return b
}

// SetStack records the stack argument area and the ABI stack alignment.
func (b *Builder) SetStack(bytes, align int64) *Builder {
	b.cs.StackBytes = bytes
	b.cs.FrameSize = layout.AlignUp(bytes, align)
	return b
}

// SetVectorArgs records the number of vector registers used by arguments.
func (b *Builder) SetVectorArgs(n int) *Builder {
	b.cs.NVectorArgs = n
	return b
}

// Build returns the finished sequence. The builder must not be used
// afterwards.
func (b *Builder) Build() *CallingSequence {
	cs := b.cs
	return &cs
}

// Verify checks that every op of bindings belongs to direction d and that
// the list is balanced: an Unbox list consumes its input value, leaving at
// most that value behind, and a Box list leaves exactly one value.
func Verify(d Direction, bindings []Binding, path []string) error {
	depth := 0
	if d == DirectionUnbox {
		depth = 1
	}
	for i, bd := range bindings {
		if !d.Allows(bd.Op) {
			return errors.New(errors.PhaseArrange, errors.KindInvariant).
				Path(path...).
				Detail("%s binding %d: %s not allowed", d, i, bd.Op).
				Build()
		}
		need, delta := stackEffect(bd.Op)
		if depth < need {
			return errors.New(errors.PhaseArrange, errors.KindStackMismatch).
				Path(path...).
				Detail("%s binding %d: %s needs %d operands, have %d", d, i, bd.Op, need, depth).
				Build()
		}
		depth += delta
	}
	if d == DirectionBox && depth != 1 {
		return errors.New(errors.PhaseArrange, errors.KindStackMismatch).
			Path(path...).
			Detail("box list leaves %d values, want 1", depth).
			Build()
	}
	if d == DirectionUnbox && depth > 1 {
		return errors.New(errors.PhaseArrange, errors.KindStackMismatch).
			Path(path...).
			Detail("unbox list leaves %d values", depth).
			Build()
	}
	return nil
}

// stackEffect returns the operands op consumes and the net change in depth.
func stackEffect(op Op) (need, delta int) {
	switch op {
	case OpVMStore:
		return 1, -1
	case OpVMLoad, OpAllocate:
		return 0, 1
	case OpBufferStore:
		return 2, -2
	case OpDup:
		return 1, 1
	case OpBufferLoad, OpUnboxAddress, OpBoxAddress, OpSegmentBase, OpSegmentOffset:
		return 1, 0
	}
	return 0, 0
}
