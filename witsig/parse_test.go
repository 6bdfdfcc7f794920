package witsig

import (
	"errors"
	"testing"

	abierrors "github.com/wippyai/native-abi/errors"
)

func TestParseFunc(t *testing.T) {
	tests := []struct {
		src  string
		want string
		desc string
	}{
		{"func()", "func()", "() -> void"},
		{"func(a: u32) -> u64", "func(a: u32) -> u64", "(i32) -> i64"},
		{"func(name: string, tags: list<u8>)", "func(name: string, tags: list<u8>)", "({ptr<i8>, i64}, {ptr<i8>, i64}) -> void"},
		{"func(x: f32,y: f64)->tuple<f64, f64>", "func(x: f32, y: f64) -> tuple<f64, f64>", "(f32, f64) -> {f64, f64}"},
		{"func(v: option<s16>) -> bool", "func(v: option<s16>) -> bool", "({i8, pad(1), union{i16}}) -> i8"},
		{"func() -> result<u64, string>", "func() -> result<u64, string>", "() -> {i8, pad(7), union{i64, {ptr<i8>, i64}}}"},
		{"func() -> result<_, u32>", "func() -> result<_, u32>", "() -> {i8, pad(3), union{i32}}"},
		{"func() -> result<char>", "func() -> result<char>", "() -> {i8, pad(3), union{i32}}"},
		{"func() -> result", "func() -> result", "() -> {i8}"},
		{"func(my-arg: list<list<u32>>)", "func(my-arg: list<list<u32>>)", "({ptr<{ptr<i32>, i64}>, i64}) -> void"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			f, err := ParseFunc(tt.src)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.String(); got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
			desc, err := NewConverter().Descriptor(f)
			if err != nil {
				t.Fatal(err)
			}
			if got := desc.String(); got != tt.desc {
				t.Errorf("descriptor = %s, want %s", got, tt.desc)
			}
		})
	}
}

func TestParseFuncErrors(t *testing.T) {
	tests := []string{
		"",
		"fn(a: u32)",
		"func(a u32)",
		"func(a: u128)",
		"func(a: u32",
		"func(a: list<u8, u8>)",
		"func(a: list<_>)",
		"func(a: tuple<>)",
		"func() -> _",
		"func() -> u32 extra",
		"func(: u32)",
	}

	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := ParseFunc(src)
			if !errors.Is(err, &abierrors.Error{Phase: abierrors.PhaseParse, Kind: abierrors.KindInvalidInput}) {
				t.Errorf("got %v, want parse error", err)
			}
		})
	}
}
