package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	abierrors "github.com/wippyai/native-abi/errors"
)

const catalogue = `
[defaults]
allow_heap_access = true

[[signature]]
name = "printf"
signature = "(ptr, ...) -> i32"

[[signature]]
name = "compare"
signature = "(ptr, ptr) -> i32"
direction = "upcall"

[[signature]]
name = "strict"
signature = "(ptr) -> void"
allow_heap_access = false
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abi.toml")
	if err := os.WriteFile(path, []byte(catalogue), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	plans, err := cfg.Plans()
	if err != nil {
		t.Fatalf("Plans: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("got %d plans, want 3", len(plans))
	}

	tests := []struct {
		name      string
		direction Direction
		variadic  bool
		first     int
		heap      bool
	}{
		{"printf", Downcall, true, 1, true},
		{"compare", Upcall, false, 0, true},
		{"strict", Downcall, false, 0, false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := plans[i]
			if p.Name != tt.name {
				t.Fatalf("got %s, want %s", p.Name, tt.name)
			}
			if p.Direction != tt.direction {
				t.Errorf("direction: got %s, want %s", p.Direction, tt.direction)
			}
			if p.Upcall() != (tt.direction == Upcall) {
				t.Errorf("Upcall() = %v", p.Upcall())
			}
			if p.Options.Variadic != tt.variadic || p.Options.FirstVariadicArg != tt.first {
				t.Errorf("got variadic %v from %d, want %v from %d",
					p.Options.Variadic, p.Options.FirstVariadicArg, tt.variadic, tt.first)
			}
			if p.Options.AllowHeapAccess != tt.heap {
				t.Errorf("allow heap access: got %v, want %v", p.Options.AllowHeapAccess, tt.heap)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	cfg, err := Parse(catalogue)
	if err != nil {
		t.Fatal(err)
	}
	p, err := cfg.Lookup("compare")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Signature.String(); got != "(ptr, ptr) -> i32" {
		t.Errorf("got %s", got)
	}

	_, err = cfg.Lookup("missing")
	if !errors.Is(err, &abierrors.Error{Phase: abierrors.PhaseConfig, Kind: abierrors.KindNotFound}) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, &abierrors.Error{Phase: abierrors.PhaseConfig, Kind: abierrors.KindInvalidInput}) {
		t.Errorf("missing file: got %v", err)
	}

	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "[[signature]\nname = 1"},
		{"unknown key", "[[signature]]\nname = \"a\"\nsignature = \"()\"\nvariadic = true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if !errors.Is(err, &abierrors.Error{Phase: abierrors.PhaseConfig, Kind: abierrors.KindInvalidInput}) {
				t.Errorf("got %v, want config error", err)
			}
		})
	}
}

func TestPlansErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		path string
	}{
		{"missing name", "[[signature]]\nsignature = \"()\"", "signature[0]"},
		{"duplicate", "[[signature]]\nname = \"a\"\nsignature = \"()\"\n[[signature]]\nname = \"a\"\nsignature = \"()\"", "a"},
		{"missing signature", "[[signature]]\nname = \"a\"", "a"},
		{"bad signature", "[[signature]]\nname = \"a\"\nsignature = \"(i33)\"", "a"},
		{"bad direction", "[[signature]]\nname = \"a\"\nsignature = \"()\"\ndirection = \"sideways\"", "a"},
		{"bad default direction", "[defaults]\ndirection = \"up\"", "defaults"},
		{"parent directory", "[[signature]]\nname = \"../x\"\nsignature = \"()\"", "../x"},
		{"dot dot", "[[signature]]\nname = \"..\"\nsignature = \"()\"", ".."},
		{"backslash", "[[signature]]\nname = 'a\\b'\nsignature = \"()\"", "a\\b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			_, err = cfg.Plans()
			var e *abierrors.Error
			if !errors.As(err, &e) {
				t.Fatalf("got %v, want structured error", err)
			}
			if e.Phase != abierrors.PhaseConfig || e.Kind != abierrors.KindInvalidInput {
				t.Errorf("got %s/%s, want config/invalid_input", e.Phase, e.Kind)
			}
			if len(e.Path) == 0 || e.Path[0] != tt.path {
				t.Errorf("got path %v, want %s", e.Path, tt.path)
			}
		})
	}
}
