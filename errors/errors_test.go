package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseArrange,
				Kind:    KindTypeMismatch,
				Path:    []string{"args", "2"},
				Carrier: "float",
				Layout:  "i32",
				Detail:  "carrier does not match layout",
			},
			contains: []string{"[arrange]", "type_mismatch", "args.2", "float", "i32", "carrier does not match"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseClassify,
				Kind:  KindUnsupported,
			},
			contains: []string{"[classify]", "unsupported"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseMemory,
				Kind:   KindAllocation,
				Detail: "arena exhausted",
				Cause:  errors.New("grow refused"),
			},
			contains: []string{"[memory]", "allocation", "arena exhausted", "caused by", "grow refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseInvoke,
		Kind:  KindInvalidInput,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseBind,
		Kind:  KindUnsupported,
		Path:  []string{"ret"},
	}

	if !err.Is(&Error{Phase: PhaseBind, Kind: KindUnsupported}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseClassify, Kind: KindUnsupported}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseBind, Kind: KindInvariant}) {
		t.Error("Is should not match different kind")
	}

	wrapped := fmt.Errorf("arrange foo: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseBind, Kind: KindUnsupported}) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseArrange, KindMalformed).
		Path("args", "0").
		Carrier("long").
		Layout("f64").
		Value(7).
		Cause(cause).
		Detail("expected %d arguments, got %d", 2, 3).
		Build()

	if err.Phase != PhaseArrange {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseArrange)
	}
	if err.Kind != KindMalformed {
		t.Errorf("Kind = %v, want %v", err.Kind, KindMalformed)
	}
	if len(err.Path) != 2 || err.Path[0] != "args" || err.Path[1] != "0" {
		t.Errorf("Path = %v, want [args 0]", err.Path)
	}
	if err.Carrier != "long" || err.Layout != "f64" {
		t.Errorf("Carrier=%v Layout=%v", err.Carrier, err.Layout)
	}
	if err.Value != 7 {
		t.Errorf("Value = %v, want 7", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected 2 arguments, got 3" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseClassify, "[4]i32", "sequence layouts cannot be passed by value")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
		if err.Layout != "[4]i32" {
			t.Errorf("Layout = %q", err.Layout)
		}
	})

	t.Run("Invariant", func(t *testing.T) {
		err := Invariant(PhaseBind, "storage %d of %d", 3, 2)
		if err.Kind != KindInvariant {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvariant)
		}
		if err.Detail != "storage 3 of 2" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		err := Malformed([]string{"args"}, "count %d != %d", 1, 2)
		if err.Phase != PhaseArrange || err.Kind != KindMalformed {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseMemory, 1024, 8)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseMemory, []string{"seg"}, 10, 8, 16)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != uint64(10) {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("Misaligned", func(t *testing.T) {
		err := Misaligned(PhaseInvoke, 0x1003, 4)
		if err.Kind != KindAlignment {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAlignment)
		}
		if !strings.Contains(err.Detail, "0x1003") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("ParseFailed", func(t *testing.T) {
		err := ParseFailed("signature", 5, errors.New("unexpected ')'"))
		if err.Phase != PhaseParse {
			t.Errorf("Phase = %v", err.Phase)
		}
		if err.Value != 5 {
			t.Errorf("Value = %v, want 5", err.Value)
		}
	})
}

func TestBatchError(t *testing.T) {
	t.Run("grouped by kind", func(t *testing.T) {
		err := NewBatchError([]Failure{
			{Name: "qsort", Err: Unsupported(PhaseClassify, "[2]i32", "array")},
			{Name: "printf", Err: Malformed(nil, "float variadic")},
			{Name: "memcpy", Err: fmt.Errorf("wrapped: %w", Unsupported(PhaseBind, "pad(4)", "padding"))},
		})
		msg := err.Error()
		if !strings.Contains(msg, "3 arrangement(s) failed") {
			t.Errorf("missing count in %q", msg)
		}
		if !strings.Contains(msg, "unsupported:") || !strings.Contains(msg, "malformed_descriptor:") {
			t.Errorf("missing kind groups in %q", msg)
		}
		if strings.Count(msg, "unsupported:") != 1 {
			t.Errorf("kinds should be grouped once: %q", msg)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := NewBatchError([]Failure{{Name: "x", Err: errors.New("plain")}})
		if !strings.Contains(err.Error(), "other:") {
			t.Errorf("plain errors should group under other: %q", err.Error())
		}
	})

	t.Run("empty", func(t *testing.T) {
		err := NewBatchError(nil)
		if !strings.Contains(err.Error(), "no failures") {
			t.Errorf("got %q", err.Error())
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := NewBatchError([]Failure{{Name: "x", Err: errors.New("y")}})
		if !errors.Is(err, &BatchError{}) {
			t.Error("errors.Is should match BatchError")
		}
	})
}
