package sysv

import (
	"errors"
	"testing"

	"github.com/wippyai/native-abi/abi"
	abierrors "github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

func TestNextStorageOrder(t *testing.T) {
	s := newStorageCalculator(ABI, true)
	want := []abi.VMStorage{RDI, RSI, RDX, RCX, R8, R9}
	for i, w := range want {
		got, err := s.nextStorage(abi.StorageInteger)
		if err != nil {
			t.Fatal(err)
		}
		if got != w {
			t.Errorf("integer %d: got %v, want %v", i, got, w)
		}
	}
	for i := 0; i < 8; i++ {
		got, _ := s.nextStorage(abi.StorageVector)
		if got.Kind != abi.StorageVector || int(got.Index) != i {
			t.Errorf("vector %d: got %v", i, got)
		}
	}

	// Both budgets are exhausted: each value spills on its own.
	for i := 0; i < 3; i++ {
		kind := abi.StorageInteger
		if i%2 == 1 {
			kind = abi.StorageVector
		}
		got, _ := s.nextStorage(kind)
		if got.Kind != abi.StorageStack || got.Offset != int64(8*i) || got.Size != 8 {
			t.Errorf("spill %d: got %v, want stack[%d:8]", i, got, 8*i)
		}
	}
}

func TestReturnStorage(t *testing.T) {
	s := newStorageCalculator(ABI, false)
	a, _ := s.nextStorage(abi.StorageInteger)
	b, _ := s.nextStorage(abi.StorageInteger)
	if a != RAX || b != RDX {
		t.Errorf("got %v %v, want rax rdx", a, b)
	}
	x, _ := s.nextStorage(abi.StorageVector)
	y, _ := s.nextStorage(abi.StorageVector)
	if x != XMM0 || y != XMM1 {
		t.Errorf("got %v %v, want xmm0 xmm1", x, y)
	}

	_, err := s.nextStorage(abi.StorageInteger)
	target := &abierrors.Error{Phase: abierrors.PhaseAllocate, Kind: abierrors.KindInvariant}
	if !errors.Is(err, target) {
		t.Errorf("got %v, want invariant", err)
	}
}

func TestStructStoragesCount(t *testing.T) {
	for size := int64(1); size <= 16; size++ {
		l := layout.Struct(layout.SequenceOf(size, layout.Int8))
		tc, err := Classify(l)
		if err != nil {
			t.Fatal(err)
		}
		s := newStorageCalculator(ABI, true)
		regs, err := s.structStorages(tc)
		if err != nil {
			t.Fatal(err)
		}
		want := int((size + 7) / 8)
		if len(regs) != want {
			t.Errorf("size %d: got %d storages, want %d", size, len(regs), want)
		}
		for _, r := range regs {
			if !r.IsRegister() {
				t.Errorf("size %d: got %v, want registers only", size, r)
			}
		}
	}
}

func TestStructStoragesAllOrNothing(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		usedInt int
		usedVec int
		stack   bool
	}{
		{"fits", "{i64, i64}", 4, 0, false},
		{"one int left", "{i64, i64}", 5, 0, true},
		{"one int left mixed", "{i64, f64}", 5, 0, false},
		{"no vector left", "{f64, i64}", 0, 8, true},
		{"one vector left", "{f64, f64}", 0, 7, true},
		{"in memory", "{i64, i64, i64}", 0, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStorageCalculator(ABI, true)
			s.nIntegerReg = tc.usedInt
			s.nVectorReg = tc.usedVec

			l := layout.MustParse(tc.src)
			class, err := Classify(l)
			if err != nil {
				t.Fatal(err)
			}
			regs, err := s.structStorages(class)
			if err != nil {
				t.Fatal(err)
			}
			if len(regs) != int((l.Size()+7)/8) {
				t.Fatalf("got %d storages for %d bytes", len(regs), l.Size())
			}

			prev := int64(-1)
			for _, r := range regs {
				if tc.stack {
					if r.Kind != abi.StorageStack {
						t.Fatalf("got %v, want every eightbyte on the stack", regs)
					}
					if r.Offset <= prev {
						t.Errorf("stack offsets not increasing: %v", regs)
					}
					prev = r.Offset
				} else if !r.IsRegister() {
					t.Fatalf("got %v, want every eightbyte in registers", regs)
				}
			}
			if tc.stack && (s.nIntegerReg != tc.usedInt || s.nVectorReg != tc.usedVec) {
				t.Error("stack allocation consumed registers")
			}
		})
	}
}
