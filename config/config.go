// Package config loads signature catalogues from TOML.
//
// A catalogue has optional defaults and any number of named signatures:
//
//	[defaults]
//	direction = "downcall"
//	allow_heap_access = false
//
//	[[signature]]
//	name = "printf"
//	signature = "(ptr, ...) -> i32"
//
//	[[signature]]
//	name = "compare"
//	signature = "(ptr, ptr) -> i32"
//	direction = "upcall"
//
// A signature is variadic when its text contains "...".
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
	"github.com/wippyai/native-abi/linker"
)

// Direction says which way a signature is called.
type Direction string

const (
	Downcall Direction = "downcall"
	Upcall   Direction = "upcall"
)

// Config is a decoded catalogue.
type Config struct {
	Defaults   Defaults `toml:"defaults"`
	Signatures []Entry  `toml:"signature"`
}

// Defaults apply to every entry that does not override them.
type Defaults struct {
	Direction       Direction `toml:"direction"`
	AllowHeapAccess bool      `toml:"allow_heap_access"`
}

// Entry is one named signature.
type Entry struct {
	AllowHeapAccess *bool     `toml:"allow_heap_access"`
	Name            string    `toml:"name"`
	Signature       string    `toml:"signature"`
	Direction       Direction `toml:"direction"`
}

// Plan is an entry with defaults applied and its signature parsed.
type Plan struct {
	Signature *layout.Signature
	Name      string
	Direction Direction
	Options   linker.Options
}

// Upcall reports whether the plan is for an upcall.
func (p *Plan) Upcall() bool {
	return p.Direction == Upcall
}

// Load decodes the catalogue at path.
func Load(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, path+": failed to parse TOML")
	}
	if err := checkUndecoded(meta); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes a catalogue from TOML text.
func Parse(data string) (*Config, error) {
	var cfg Config
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "failed to parse TOML")
	}
	if err := checkUndecoded(meta); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func checkUndecoded(meta toml.MetaData) error {
	keys := meta.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	sort.Strings(names)
	return errors.InvalidInput(errors.PhaseConfig, "unknown keys: "+strings.Join(names, ", "))
}

// Plans resolves every entry in declaration order.
func (c *Config) Plans() ([]*Plan, error) {
	defaultDir := c.Defaults.Direction
	if defaultDir == "" {
		defaultDir = Downcall
	}
	if err := checkDirection(defaultDir, []string{"defaults"}); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(c.Signatures))
	plans := make([]*Plan, 0, len(c.Signatures))
	for i, e := range c.Signatures {
		path := []string{fmt.Sprintf("signature[%d]", i)}
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, invalid(path, "missing name")
		}
		path = []string{name}
		if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return nil, invalid(path, "name must not contain path separators")
		}
		if seen[name] {
			return nil, invalid(path, "duplicate name")
		}
		seen[name] = true

		p, err := c.resolve(name, e, defaultDir)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// Lookup resolves the entry called name.
func (c *Config) Lookup(name string) (*Plan, error) {
	plans, err := c.Plans()
	if err != nil {
		return nil, err
	}
	for _, p := range plans {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, errors.NotFound(errors.PhaseConfig, "signature", name)
}

func (c *Config) resolve(name string, e Entry, defaultDir Direction) (*Plan, error) {
	path := []string{name}

	dir := e.Direction
	if dir == "" {
		dir = defaultDir
	}
	if err := checkDirection(dir, path); err != nil {
		return nil, err
	}

	if strings.TrimSpace(e.Signature) == "" {
		return nil, invalid(path, "missing signature")
	}
	sig, err := layout.ParseSignature(e.Signature)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(path...).
			Detail("bad signature %q", e.Signature).
			Cause(err).
			Build()
	}

	opts := linker.Options{AllowHeapAccess: c.Defaults.AllowHeapAccess}
	if e.AllowHeapAccess != nil {
		opts.AllowHeapAccess = *e.AllowHeapAccess
	}
	if sig.Variadic() {
		opts.Variadic = true
		opts.FirstVariadicArg = sig.FirstVariadic
	}

	return &Plan{Name: name, Signature: sig, Direction: dir, Options: opts}, nil
}

func checkDirection(d Direction, path []string) error {
	switch d {
	case Downcall, Upcall:
		return nil
	}
	return invalid(path, fmt.Sprintf("direction %q is not %q or %q", d, Downcall, Upcall))
}

func invalid(path []string, detail string) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(path...).
		Detail("%s", detail).
		Build()
}
