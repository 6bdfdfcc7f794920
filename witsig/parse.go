package witsig

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// Func is a WIT function type.
type Func struct {
	Result wit.Type // nil when the function returns nothing
	Params []Param
}

// Param is a named function parameter.
type Param struct {
	Type wit.Type
	Name string
}

// ParseFunc parses a WIT function type such as
//
//	func(name: string, tags: list<u32>) -> result<u64, string>
//
// Supported types are the primitives, string, list, option, result and
// tuple.
func ParseFunc(src string) (*Func, error) {
	p := &funcParser{toks: tokenizeWIT(src)}
	f, err := p.function()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.text != "" {
		return nil, p.errorf(t, "unexpected %q after function type", t.text)
	}
	return f, nil
}

// Descriptor converts a function type to its native descriptor.
func (c *Converter) Descriptor(f *Func) (*layout.FunctionDescriptor, error) {
	params := make([]wit.Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type
	}
	var results []wit.Type
	if f.Result != nil {
		results = []wit.Type{f.Result}
	}
	return c.Function(params, results)
}

func (f *Func) String() string {
	var b strings.Builder
	b.WriteString("func(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(TypeString(p.Type))
	}
	b.WriteByte(')')
	if f.Result != nil {
		b.WriteString(" -> ")
		b.WriteString(TypeString(f.Result))
	}
	return b.String()
}

// TypeString renders t in WIT syntax.
func TypeString(t wit.Type) string {
	switch v := t.(type) {
	case nil:
		return "_"
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		return typeDefString(v)
	default:
		return fmt.Sprintf("%T", t)
	}
}

func typeDefString(t *wit.TypeDef) string {
	switch k := t.Kind.(type) {
	case *wit.List:
		return "list<" + TypeString(k.Type) + ">"
	case *wit.Option:
		return "option<" + TypeString(k.Type) + ">"
	case *wit.Result:
		switch {
		case k.OK == nil && k.Err == nil:
			return "result"
		case k.Err == nil:
			return "result<" + TypeString(k.OK) + ">"
		default:
			return "result<" + TypeString(k.OK) + ", " + TypeString(k.Err) + ">"
		}
	case *wit.Tuple:
		parts := make([]string, len(k.Types))
		for i, e := range k.Types {
			parts[i] = TypeString(e)
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	default:
		return "typedef"
	}
}

var primitives = map[string]wit.Type{
	"bool":   wit.Bool{},
	"u8":     wit.U8{},
	"s8":     wit.S8{},
	"u16":    wit.U16{},
	"s16":    wit.S16{},
	"u32":    wit.U32{},
	"s32":    wit.S32{},
	"u64":    wit.U64{},
	"s64":    wit.S64{},
	"f32":    wit.F32{},
	"f64":    wit.F64{},
	"char":   wit.Char{},
	"string": wit.String{},
}

type witToken struct {
	text string
	pos  int
}

func tokenizeWIT(src string) []witToken {
	var toks []witToken
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.HasPrefix(src[i:], "->"):
			toks = append(toks, witToken{text: "->", pos: i})
			i += 2
		case isWITIdent(c):
			start := i
			for i < len(src) && isWITIdent(src[i]) && !strings.HasPrefix(src[i:], "->") {
				i++
			}
			toks = append(toks, witToken{text: src[start:i], pos: start})
		default:
			toks = append(toks, witToken{text: src[i : i+1], pos: i})
			i++
		}
	}
	return toks
}

func isWITIdent(c byte) bool {
	return c == '_' || c == '-' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

type funcParser struct {
	toks []witToken
	pos  int
}

func (p *funcParser) peek() witToken {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	end := 0
	if n := len(p.toks); n > 0 {
		end = p.toks[n-1].pos + len(p.toks[n-1].text)
	}
	return witToken{pos: end}
}

func (p *funcParser) next() witToken {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *funcParser) accept(text string) bool {
	if p.peek().text == text {
		p.pos++
		return true
	}
	return false
}

func (p *funcParser) expect(text string) error {
	if t := p.next(); t.text != text {
		return p.errorf(t, "expected %q, got %q", text, t.text)
	}
	return nil
}

func (p *funcParser) errorf(t witToken, format string, args ...any) error {
	return errors.ParseFailed("wit function", t.pos, fmt.Errorf(format, args...))
}

func (p *funcParser) function() (*Func, error) {
	if err := p.expect("func"); err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}

	f := &Func{}
	for !p.accept(")") {
		if len(f.Params) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		name := p.next()
		if name.text == "" || !isWITIdent(name.text[0]) {
			return nil, p.errorf(name, "expected parameter name, got %q", name.text)
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		t, err := p.typ()
		if err != nil {
			return nil, err
		}
		f.Params = append(f.Params, Param{Name: name.text, Type: t})
	}

	if p.accept("->") {
		t, err := p.typ()
		if err != nil {
			return nil, err
		}
		f.Result = t
	}
	return f, nil
}

func (p *funcParser) typ() (wit.Type, error) {
	t := p.next()
	if prim, ok := primitives[t.text]; ok {
		return prim, nil
	}

	switch t.text {
	case "list", "option":
		elem, err := p.params(1, 1)
		if err != nil {
			return nil, err
		}
		if elem[0] == nil {
			return nil, p.errorf(t, "_ is only allowed in result")
		}
		if t.text == "list" {
			return &wit.TypeDef{Kind: &wit.List{Type: elem[0]}}, nil
		}
		return &wit.TypeDef{Kind: &wit.Option{Type: elem[0]}}, nil

	case "tuple":
		elems, err := p.params(1, -1)
		if err != nil {
			return nil, err
		}
		for _, e := range elems {
			if e == nil {
				return nil, p.errorf(t, "_ is only allowed in result")
			}
		}
		return &wit.TypeDef{Kind: &wit.Tuple{Types: elems}}, nil

	case "result":
		r := &wit.Result{}
		if p.peek().text == "<" {
			parts, err := p.params(1, 2)
			if err != nil {
				return nil, err
			}
			r.OK = parts[0]
			if len(parts) == 2 {
				r.Err = parts[1]
			}
		}
		return &wit.TypeDef{Kind: r}, nil

	case "_":
		return nil, p.errorf(t, "_ is only allowed in result")
	}
	return nil, p.errorf(t, "unknown type %q", t.text)
}

// params parses <T, ...> with between lo and hi entries; hi < 0 means
// unbounded. _ stands for an absent type.
func (p *funcParser) params(lo, hi int) ([]wit.Type, error) {
	open := p.peek()
	if err := p.expect("<"); err != nil {
		return nil, err
	}
	var types []wit.Type
	for !p.accept(">") {
		if len(types) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		if p.accept("_") {
			types = append(types, nil)
			continue
		}
		t, err := p.typ()
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	if len(types) < lo || hi >= 0 && len(types) > hi {
		return nil, p.errorf(open, "got %d type parameters", len(types))
	}
	return types, nil
}
