package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/wippyai/native-abi/binding"
	"github.com/wippyai/native-abi/config"
	abierrors "github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/linker"
)

const catalogue = `
[defaults]
direction = "downcall"

[[signature]]
name = "add"
signature = "(i32, i32) -> i32"

[[signature]]
name = "compare"
signature = "(ptr, ptr) -> i32"
direction = "upcall"

[[signature]]
name = "sum"
signature = "([2]i32) -> void"
`

func writeCatalogue(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signatures.toml")
	if err := os.WriteFile(path, []byte(catalogue), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--color", "off"}, args...))
	err := root.Execute()
	return out.String(), err
}

func plan(t *testing.T, src string) *config.Plan {
	t.Helper()
	sig, err := layout.ParseSignature(src)
	if err != nil {
		t.Fatalf("ParseSignature(%q): %v", src, err)
	}
	return &config.Plan{Name: "signature", Signature: sig, Direction: config.Downcall}
}

func TestRenderPlain(t *testing.T) {
	p := plan(t, "(i32, f64) -> i64")
	cs, err := arrange(linker.New(nil, nil), p)
	if err != nil {
		t.Fatal(err)
	}

	got := renderPlan("add", p, cs, false)
	for _, want := range []string{
		"add downcall (i32, f64) -> i64\n",
		"vmstore(rdi, int)",
		"vmstore(xmm0, double)",
		"vmload(rax, long)",
		"in-memory return: false",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in\n%s", want, got)
		}
	}
}

func TestRenderStyled(t *testing.T) {
	p := plan(t, "(i64, ...) -> {i64, i64, i64}")
	p.Options.Variadic = true
	p.Options.FirstVariadicArg = p.Signature.FirstVariadic
	cs, err := arrange(linker.New(nil, nil), p)
	if err != nil {
		t.Fatal(err)
	}

	got := renderPlan("wide", p, cs, true)
	for _, want := range []string{"wide", "in-memory return", "variadic, 0 vector args", "retbuf", "arg0", "nvec"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in\n%s", want, got)
		}
	}
}

func TestArgLabel(t *testing.T) {
	tests := []struct {
		name string
		cs   binding.CallingSequence
		want []string
	}{
		{"plain", binding.CallingSequence{Args: make([]binding.ArgumentBindings, 2)}, []string{"arg0", "arg1"}},
		{"in memory", binding.CallingSequence{Args: make([]binding.ArgumentBindings, 2), IsInMemoryReturn: true}, []string{"retbuf", "arg0"}},
		{"variadic", binding.CallingSequence{Args: make([]binding.ArgumentBindings, 2), Variadic: true}, []string{"arg0", "nvec"}},
		{"variadic upcall", binding.CallingSequence{Args: make([]binding.ArgumentBindings, 2), Variadic: true, ForUpcall: true}, []string{"arg0", "arg1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.want {
				if got := argLabel(&tt.cs, i); got != want {
					t.Errorf("argLabel(%d) = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestResolvePlan(t *testing.T) {
	cfg, err := config.Load(writeCatalogue(t))
	if err != nil {
		t.Fatal(err)
	}

	cmd := newPlanCmd()
	p, err := resolvePlan(cmd, cfg, "compare")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "compare" || !p.Upcall() {
		t.Errorf("compare = %s %s, want upcall", p.Name, p.Direction)
	}

	p, err = resolvePlan(cmd, cfg, "(f32, ...) -> void")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "signature" || p.Upcall() {
		t.Errorf("inline = %s %s, want downcall", p.Name, p.Direction)
	}
	if !p.Options.Variadic || p.Options.FirstVariadicArg != 1 {
		t.Errorf("options = %+v, want variadic from 1", p.Options)
	}

	cmd = newPlanCmd()
	if err := cmd.Flags().Set("heap-access", "true"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("upcall", "false"); err != nil {
		t.Fatal(err)
	}
	p, err = resolvePlan(cmd, cfg, "compare")
	if err != nil {
		t.Fatal(err)
	}
	if p.Upcall() || !p.Options.AllowHeapAccess {
		t.Errorf("flags not applied: %s %+v", p.Direction, p.Options)
	}

	if _, err := resolvePlan(newPlanCmd(), nil, "(i33) -> void"); err == nil {
		t.Error("expected parse error")
	}
}

func TestArrangeAll(t *testing.T) {
	cfg, err := config.Load(writeCatalogue(t))
	if err != nil {
		t.Fatal(err)
	}
	plans, err := cfg.Plans()
	if err != nil {
		t.Fatal(err)
	}

	results, err := arrangeAll(context.Background(), linker.New(nil, nil), plans, 2)
	var batch *abierrors.BatchError
	if !errors.As(err, &batch) {
		t.Fatalf("err = %v, want BatchError", err)
	}
	if len(batch.Failures) != 1 || batch.Failures[0].Name != "sum" {
		t.Errorf("failures = %+v, want only sum", batch.Failures)
	}
	if len(results) != 3 || results[0] == nil || results[1] == nil || results[2] != nil {
		t.Fatalf("results = %v", results)
	}
	if !results[1].ForUpcall {
		t.Error("compare should be arranged as an upcall")
	}
}

func TestArrangeAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := arrangeAll(ctx, linker.New(nil, nil), []*config.Plan{plan(t, "() -> void")}, 1)
	if !errors.Is(err, context.Canceled) || results != nil {
		t.Errorf("arrangeAll = %v, %v; want canceled", results, err)
	}
}

func TestPlanCommand(t *testing.T) {
	out, err := execute(t, "plan", "(i32) -> i32")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "signature downcall (i32) -> i32\ndowncall ") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = execute(t, "--config", writeCatalogue(t), "plan", "compare")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "compare upcall (ptr, ptr) -> i32\nupcall ") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := execute(t, "plan", "([2]i32) -> void"); err == nil {
		t.Error("expected arrangement error")
	}
}

func TestPlanOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.plan")
	if _, err := execute(t, "plan", "--out", path, "(i64, f32) -> {f64, f64}"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	cs, err := binding.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(cs.Args) != 2 || cs.Return == nil || cs.ForUpcall {
		t.Errorf("decoded sequence:\n%s", cs)
	}
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "--config", writeCatalogue(t), "batch", "--out-dir", dir)
	var batch *abierrors.BatchError
	if !errors.As(err, &batch) {
		t.Fatalf("err = %v, want BatchError", err)
	}
	if !strings.Contains(out, "add downcall") || !strings.Contains(out, "compare upcall") {
		t.Errorf("unexpected output:\n%s", out)
	}
	for _, name := range []string{"add.plan", "compare.plan"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Error(err)
		}
	}

	_, err = execute(t, "batch")
	if !errors.Is(err, &abierrors.Error{Phase: abierrors.PhaseConfig, Kind: abierrors.KindInvalidInput}) {
		t.Errorf("batch without --config: got %v", err)
	}
}

func TestBatchRejectsEscapingNames(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	if err := os.Mkdir(out, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "escape.toml")
	src := "[[signature]]\nname = \"../escape\"\nsignature = \"(i32) -> i32\"\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "--config", path, "batch", "--out-dir", out)
	if !errors.Is(err, &abierrors.Error{Phase: abierrors.PhaseConfig, Kind: abierrors.KindInvalidInput}) {
		t.Errorf("got %v, want config error", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.plan")); !os.IsNotExist(err) {
		t.Errorf("plan written outside --out-dir: %v", err)
	}
}

func TestWitCommand(t *testing.T) {
	out, err := execute(t, "wit", "func(a: u32, b: f64) -> u64")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "vmstore(rdi, int)") || !strings.Contains(out, "vmstore(xmm0, double)") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = execute(t, "wit", "--upcall", "func(s: string) -> result<u64, string>")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "upcall") || !strings.Contains(out, "in-memory return: true") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := execute(t, "wit", "func(a: bogus)"); err == nil {
		t.Error("expected parse error")
	}
}

func TestCommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"plan", "batch", "wit", "interactive"} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}

	var _ *cobra.Command = newInteractiveCmd()
}
