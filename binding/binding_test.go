package binding

import (
	"errors"
	"testing"

	"github.com/wippyai/native-abi/abi"
	abierrors "github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

var (
	rdi  = abi.IntegerReg(7, "rdi")
	rsi  = abi.IntegerReg(6, "rsi")
	rax  = abi.IntegerReg(0, "rax")
	xmm0 = abi.VectorReg(0, "xmm0")
)

func TestBindingString(t *testing.T) {
	tests := []struct {
		b    Binding
		want string
	}{
		{VMStore(rdi, abi.CarrierInt), "vmstore(rdi, int)"},
		{VMLoad(xmm0, abi.CarrierDouble), "vmload(xmm0, double)"},
		{VMStore(abi.StackSlot(8, 8), abi.CarrierLong), "vmstore(stack[8:8], long)"},
		{BufferLoad(8, abi.CarrierLong, 8), "bufferload(8, long, 8)"},
		{BufferStore(0, abi.CarrierFloat, 4), "bufferstore(0, float, 4)"},
		{Dup(), "dup"},
		{Allocate(16, 8), "allocate(16, 8)"},
		{UnboxAddress(), "unboxaddress"},
		{BoxAddress(32, 8), "boxaddress(32, 8)"},
		{SegmentBase(), "segmentbase"},
		{SegmentOffset(), "segmentoffset"},
	}
	for _, tc := range tests {
		if got := tc.b.String(); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}

func TestDirectionAllows(t *testing.T) {
	unboxOnly := []Op{OpVMStore, OpBufferLoad, OpUnboxAddress, OpSegmentBase, OpSegmentOffset}
	boxOnly := []Op{OpVMLoad, OpBufferStore, OpAllocate, OpBoxAddress}

	for _, op := range unboxOnly {
		if !DirectionUnbox.Allows(op) || DirectionBox.Allows(op) {
			t.Errorf("%s should be unbox only", op)
		}
	}
	for _, op := range boxOnly {
		if !DirectionBox.Allows(op) || DirectionUnbox.Allows(op) {
			t.Errorf("%s should be box only", op)
		}
	}
	if !DirectionUnbox.Allows(OpDup) || !DirectionBox.Allows(OpDup) {
		t.Error("dup is allowed both ways")
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name     string
		dir      Direction
		bindings []Binding
		kind     abierrors.Kind
	}{
		{"unbox scalar", DirectionUnbox, []Binding{VMStore(rdi, abi.CarrierInt)}, ""},
		{"unbox struct leaves base", DirectionUnbox, []Binding{
			Dup(), BufferLoad(0, abi.CarrierLong, 8), VMStore(rdi, abi.CarrierLong),
			Dup(), BufferLoad(8, abi.CarrierLong, 8), VMStore(rsi, abi.CarrierLong),
		}, ""},
		{"unbox pointer pair", DirectionUnbox, []Binding{
			Dup(), SegmentBase(), VMStore(rdi, abi.CarrierObject), SegmentOffset(), VMStore(rdi, abi.CarrierLong),
		}, ""},
		{"box struct", DirectionBox, []Binding{
			Allocate(8, 8), Dup(), VMLoad(xmm0, abi.CarrierDouble), BufferStore(0, abi.CarrierDouble, 8),
		}, ""},
		{"empty unbox", DirectionUnbox, nil, ""},
		{"box op in unbox list", DirectionUnbox, []Binding{VMLoad(rdi, abi.CarrierInt)}, abierrors.KindInvariant},
		{"unbox op in box list", DirectionBox, []Binding{VMStore(rdi, abi.CarrierInt)}, abierrors.KindInvariant},
		{"underflow", DirectionUnbox, []Binding{VMStore(rdi, abi.CarrierInt), VMStore(rsi, abi.CarrierInt)}, abierrors.KindStackMismatch},
		{"box leaves nothing", DirectionBox, nil, abierrors.KindStackMismatch},
		{"box leaves two", DirectionBox, []Binding{VMLoad(rdi, abi.CarrierInt), VMLoad(rsi, abi.CarrierInt)}, abierrors.KindStackMismatch},
		{"unbox leaves two", DirectionUnbox, []Binding{Dup(), Dup()}, abierrors.KindStackMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Verify(tc.dir, tc.bindings, []string{"arg0"})
			if tc.kind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			target := &abierrors.Error{Phase: abierrors.PhaseArrange, Kind: tc.kind}
			if !errors.Is(err, target) {
				t.Errorf("got %v, want %s", err, tc.kind)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(false)
	if err := b.AddArgument(abi.CarrierInt, layout.Int32, []Binding{VMStore(rdi, abi.CarrierInt)}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddArgument(abi.CarrierInt, layout.Int32, []Binding{VMLoad(rsi, abi.CarrierInt)}); err == nil {
		t.Fatal("box binding accepted for a downcall argument")
	}
	if err := b.SetReturn(abi.CarrierInt, layout.Int32, []Binding{VMLoad(rax, abi.CarrierInt)}); err != nil {
		t.Fatal(err)
	}
	cs := b.SetStack(24, 16).SetVectorArgs(2).Build()

	if len(cs.Args) != 1 {
		t.Fatalf("args: got %d, want 1", len(cs.Args))
	}
	if cs.StackBytes != 24 || cs.FrameSize != 32 {
		t.Errorf("stack: got %d/%d, want 24/32", cs.StackBytes, cs.FrameSize)
	}
	if cs.NVectorArgs != 2 {
		t.Errorf("vector args: got %d", cs.NVectorArgs)
	}
	if got := cs.MethodType().String(); got != "(int)int" {
		t.Errorf("method type: got %q", got)
	}
	if cs.ArgumentDirection() != DirectionUnbox || cs.ReturnDirection() != DirectionBox {
		t.Error("downcall directions")
	}
}

func TestBuilderRejectsStackReturn(t *testing.T) {
	b := NewBuilder(false)
	err := b.SetReturn(abi.CarrierInt, layout.Int32, []Binding{VMLoad(abi.StackSlot(8, 0), abi.CarrierInt)})
	target := &abierrors.Error{Phase: abierrors.PhaseArrange, Kind: abierrors.KindInvariant}
	if !errors.Is(err, target) {
		t.Errorf("got %v, want invariant", err)
	}
}

func TestUpcallBuilderDirections(t *testing.T) {
	b := NewBuilder(true)
	if err := b.AddArgument(abi.CarrierDouble, layout.Float64, []Binding{VMLoad(xmm0, abi.CarrierDouble)}); err != nil {
		t.Fatal(err)
	}
	if err := b.SetReturn(abi.CarrierLong, layout.Int64, []Binding{VMStore(rax, abi.CarrierLong)}); err != nil {
		t.Fatal(err)
	}
	cs := b.Build()
	if !cs.ForUpcall || cs.ArgumentDirection() != DirectionBox {
		t.Error("upcall directions")
	}
}
