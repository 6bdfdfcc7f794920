package nativeabi

import (
	"bytes"
	"errors"
	"testing"

	abierrors "github.com/wippyai/native-abi/errors"
)

func TestHeapSegment(t *testing.T) {
	backing := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	seg := OfHeap(backing)

	if seg.IsNative() {
		t.Fatal("heap segment reported native")
	}
	if seg.Size() != 8 {
		t.Errorf("size: got %d, want 8", seg.Size())
	}
	if seg.Address() != 0 {
		t.Errorf("heap segment address: got %d, want 0", seg.Address())
	}

	sub, err := seg.Slice(2, 4)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if sub.Offset() != 2 {
		t.Errorf("offset: got %d, want 2", sub.Offset())
	}
	if &sub.Base()[0] != &backing[0] {
		t.Error("slice should share the backing array")
	}

	got, err := sub.Load(nil, 1, 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, []byte{4, 5}) {
		t.Errorf("Load: got %v, want [4 5]", got)
	}

	if err := sub.Store(nil, 0, []byte{9, 9}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if backing[2] != 9 || backing[3] != 9 {
		t.Errorf("store did not reach backing array: %v", backing)
	}
}

func TestSegmentBounds(t *testing.T) {
	seg := OfHeap(make([]byte, 4))
	target := &abierrors.Error{Phase: abierrors.PhaseMemory, Kind: abierrors.KindOutOfBounds}

	tests := []struct {
		name string
		off  uint64
		n    uint64
	}{
		{"past end", 2, 3},
		{"offset beyond size", 5, 0},
		{"wraparound", 1, ^uint64(0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := seg.Load(nil, tc.off, tc.n); !errors.Is(err, target) {
				t.Errorf("got %v, want out_of_bounds", err)
			}
		})
	}

	if _, err := seg.Load(nil, 4, 0); err != nil {
		t.Errorf("empty read at end should succeed: %v", err)
	}
}

func TestNativeSegmentWithoutMemory(t *testing.T) {
	seg := OfAddress(0x1000, 8)
	if !seg.IsNative() {
		t.Fatal("native segment reported heap")
	}
	if seg.Base() != nil {
		t.Error("native segment should have nil base")
	}
	if seg.Offset() != 0x1000 {
		t.Errorf("offset: got 0x%x, want 0x1000", seg.Offset())
	}
	if _, err := seg.Load(nil, 0, 8); err == nil {
		t.Error("expected error reading native segment without memory")
	}
	if got, err := Null.Bytes(nil); err != nil || len(got) != 0 {
		t.Errorf("Null.Bytes: got %v, %v", got, err)
	}
}
