package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/native-abi/errors"
)

// Signature is a parsed signature text: the descriptor plus the position of
// the variadic marker.
type Signature struct {
	Descriptor    *FunctionDescriptor
	FirstVariadic int // -1 when the signature is not variadic
}

// Variadic reports whether the signature contained "...".
func (s *Signature) Variadic() bool {
	return s.FirstVariadic >= 0
}

func (s *Signature) String() string {
	if !s.Variadic() {
		return s.Descriptor.String()
	}
	d := s.Descriptor
	parts := make([]string, 0, len(d.Args)+1)
	for i, a := range d.Args {
		if i == s.FirstVariadic {
			parts = append(parts, "...")
		}
		parts = append(parts, a.String())
	}
	if s.FirstVariadic == len(d.Args) {
		parts = append(parts, "...")
	}
	ret := "void"
	if d.Return != nil {
		ret = d.Return.String()
	}
	return "(" + strings.Join(parts, ", ") + ") -> " + ret
}

// ParseSignature parses a signature such as
//
//	(i32, ptr<{i64, f64}>, ...) -> {f64, f64}
//
// Scalars are i8 i16 i32 i64 f32 f64 and ptr, with the C aliases char short
// int long float double. "{...}" is a C struct, "packed{...}" a struct
// without implicit padding, "union{...}" a union, "[N]T" an array and
// "pad(N)" explicit padding. "T@N" overrides alignment. A missing "-> T"
// means void.
func ParseSignature(src string) (*Signature, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: toks}
	sig, err := p.parseSignature()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.typ != tokEOF {
		return nil, p.errorf(t, "trailing input %q", t.val)
	}
	return sig, nil
}

// Parse parses a single layout.
func Parse(src string) (Layout, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: toks}
	l, err := p.parseChecked()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.typ != tokEOF {
		return nil, p.errorf(t, "trailing input %q", t.val)
	}
	return l, nil
}

// MustParse is like Parse but panics on error. It is meant for tests and
// package-level tables.
func MustParse(src string) Layout {
	l, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return l
}

type tokType uint8

const (
	tokEOF tokType = iota
	tokIdent
	tokNumber
	tokPunct
	tokEllipsis
	tokArrow
)

type token struct {
	val string
	typ tokType
	pos int
}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.HasPrefix(src[i:], "..."):
			toks = append(toks, token{typ: tokEllipsis, val: "...", pos: i})
			i += 3
		case strings.HasPrefix(src[i:], "->"):
			toks = append(toks, token{typ: tokArrow, val: "->", pos: i})
			i += 2
		case strings.IndexByte("(){}[]<>,@", c) >= 0:
			toks = append(toks, token{typ: tokPunct, val: string(c), pos: i})
			i++
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			toks = append(toks, token{typ: tokNumber, val: src[start:i], pos: start})
		case isIdentByte(c):
			start := i
			for i < len(src) && (isIdentByte(src[i]) || (src[i] >= '0' && src[i] <= '9')) {
				i++
			}
			toks = append(toks, token{typ: tokIdent, val: src[start:i], pos: start})
		default:
			return nil, errors.ParseFailed("signature", i, fmt.Errorf("unexpected character %q", c))
		}
	}
	toks = append(toks, token{typ: tokEOF, pos: len(src)})
	return toks, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(val string) bool {
	t := p.peek()
	if t.typ == tokPunct && t.val == val {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(val string) error {
	t := p.next()
	if t.typ != tokPunct || t.val != val {
		return p.errorf(t, "expected %q, got %q", val, t.val)
	}
	return nil
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return errors.ParseFailed("signature", t.pos, fmt.Errorf(format, args...))
}

func (p *parser) number() (int64, error) {
	t := p.next()
	if t.typ != tokNumber {
		return 0, p.errorf(t, "expected number, got %q", t.val)
	}
	n, err := strconv.ParseInt(t.val, 10, 64)
	if err != nil {
		return 0, p.errorf(t, "bad number %q", t.val)
	}
	return n, nil
}

func (p *parser) parseSignature() (*Signature, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	sig := &Signature{Descriptor: &FunctionDescriptor{}, FirstVariadic: -1}
	if !p.accept(")") {
		for {
			if t := p.peek(); t.typ == tokEllipsis {
				p.next()
				if sig.Variadic() {
					return nil, p.errorf(t, "duplicate variadic marker")
				}
				sig.FirstVariadic = len(sig.Descriptor.Args)
			} else {
				arg, err := p.parseChecked()
				if err != nil {
					return nil, err
				}
				sig.Descriptor.Args = append(sig.Descriptor.Args, arg)
			}
			if p.accept(")") {
				break
			}
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}

	if t := p.peek(); t.typ == tokArrow {
		p.next()
		if r := p.peek(); r.typ == tokIdent && r.val == "void" {
			p.next()
			return sig, nil
		}
		ret, err := p.parseChecked()
		if err != nil {
			return nil, err
		}
		sig.Descriptor.Return = ret
	}
	return sig, nil
}

// parseChecked parses a complete layout and rejects sizes that overflow.
func (p *parser) parseChecked() (Layout, error) {
	start := p.peek()
	l, err := p.parseLayout()
	if err != nil {
		return nil, err
	}
	if err := Check(errors.PhaseParse, l); err != nil {
		return nil, errors.ParseFailed("signature", start.pos, err)
	}
	return l, nil
}

func (p *parser) parseLayout() (Layout, error) {
	l, err := p.parseBase()
	if err != nil {
		return nil, err
	}
	if !p.accept("@") {
		return l, nil
	}
	at := p.peek()
	align, err := p.number()
	if err != nil {
		return nil, err
	}
	v, ok := l.(Value)
	if !ok {
		return nil, p.errorf(at, "alignment override only applies to scalars")
	}
	if align <= 0 || align&(align-1) != 0 {
		return nil, p.errorf(at, "alignment %d is not a power of two", align)
	}
	return v.WithAlign(align), nil
}

func (p *parser) parseBase() (Layout, error) {
	t := p.next()
	switch t.typ {
	case tokPunct:
		switch t.val {
		case "{":
			members, err := p.parseMembers()
			if err != nil {
				return nil, err
			}
			return CStruct(members...), nil
		case "[":
			n, err := p.number()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			elem, err := p.parseLayout()
			if err != nil {
				return nil, err
			}
			return SequenceOf(n, elem), nil
		}
	case tokIdent:
		if v, ok := scalarNames[t.val]; ok {
			return v, nil
		}
		switch t.val {
		case "ptr":
			if !p.accept("<") {
				return Pointer, nil
			}
			target, err := p.parseLayout()
			if err != nil {
				return nil, err
			}
			if err := p.expect(">"); err != nil {
				return nil, err
			}
			return PointerTo(target), nil
		case "packed", "union":
			if err := p.expect("{"); err != nil {
				return nil, err
			}
			members, err := p.parseMembers()
			if err != nil {
				return nil, err
			}
			if t.val == "union" {
				return CUnion(members...), nil
			}
			return Struct(members...), nil
		case "pad":
			if err := p.expect("("); err != nil {
				return nil, err
			}
			n, err := p.number()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return PaddingOf(n), nil
		}
		return nil, p.errorf(t, "unknown type %q", t.val)
	}
	return nil, p.errorf(t, "expected layout, got %q", t.val)
}

// parseMembers parses the member list after an opening brace.
func (p *parser) parseMembers() ([]Layout, error) {
	var members []Layout
	if p.accept("}") {
		return members, nil
	}
	for {
		m, err := p.parseLayout()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
		if p.accept("}") {
			return members, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

var scalarNames = map[string]Value{
	"i8":     Int8,
	"i16":    Int16,
	"i32":    Int32,
	"i64":    Int64,
	"f32":    Float32,
	"f64":    Float64,
	"char":   Int8,
	"short":  Int16,
	"int":    Int32,
	"long":   Int64,
	"float":  Float32,
	"double": Float64,
}
