// Package witsig derives native C layouts from WIT types.
//
// The mapping is the one a host uses when it exposes component-model
// values to C code on a 64-bit target:
//
//	bool, u8, s8         i8
//	u16, s16             i16
//	u32, s32, char       i32
//	u64, s64             i64
//	f32, f64             f32, f64
//	string               {ptr<i8>, i64}
//	list<T>              {ptr<T>, i64}
//	record, tuple        natural C struct of the fields
//	enum                 integer of the discriminant width
//	flags                integer wide enough for every flag, or [N]i32
//	variant, option,
//	result               {tag, union{payloads}}
//	own, borrow          i32 handle
package witsig

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// Converter maps WIT types to layouts. Results for type definitions are
// cached. Not safe for concurrent use.
type Converter struct {
	cache map[*wit.TypeDef]layout.Layout
}

// NewConverter creates a Converter.
func NewConverter() *Converter {
	return &Converter{
		cache: make(map[*wit.TypeDef]layout.Layout),
	}
}

// Layout returns the native layout of t.
func (c *Converter) Layout(t wit.Type) (layout.Layout, error) {
	switch typ := t.(type) {
	case wit.Bool, wit.U8, wit.S8:
		return layout.Int8, nil
	case wit.U16, wit.S16:
		return layout.Int16, nil
	case wit.U32, wit.S32, wit.Char:
		return layout.Int32, nil
	case wit.U64, wit.S64:
		return layout.Int64, nil
	case wit.F32:
		return layout.Float32, nil
	case wit.F64:
		return layout.Float64, nil
	case wit.String:
		return layout.CStruct(layout.PointerTo(layout.Int8), layout.Int64), nil
	case *wit.TypeDef:
		return c.typeDef(typ)
	default:
		return nil, unsupported(t, "type")
	}
}

// Function returns the descriptor of a function with the given parameter
// and result types. Several results are returned as one struct.
func (c *Converter) Function(params, results []wit.Type) (*layout.FunctionDescriptor, error) {
	desc := &layout.FunctionDescriptor{Args: make([]layout.Layout, 0, len(params))}
	for i, p := range params {
		l, err := c.Layout(p)
		if err != nil {
			return nil, atPath(err, fmt.Sprintf("arg%d", i))
		}
		desc.Args = append(desc.Args, l)
	}

	switch len(results) {
	case 0:
	case 1:
		l, err := c.Layout(results[0])
		if err != nil {
			return nil, atPath(err, "return")
		}
		desc.Return = l
	default:
		l, err := c.aggregate(results)
		if err != nil {
			return nil, atPath(err, "return")
		}
		desc.Return = l
	}
	return desc, nil
}

func (c *Converter) typeDef(t *wit.TypeDef) (layout.Layout, error) {
	if cached, ok := c.cache[t]; ok {
		return cached, nil
	}

	var (
		l   layout.Layout
		err error
	)
	switch kind := t.Kind.(type) {
	case *wit.Record:
		types := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			types[i] = f.Type
		}
		l, err = c.aggregate(types)
	case *wit.Tuple:
		l, err = c.aggregate(kind.Types)
	case *wit.List:
		var elem layout.Layout
		elem, err = c.Layout(kind.Type)
		if err == nil {
			l = layout.CStruct(layout.PointerTo(elem), layout.Int64)
		}
	case *wit.Enum:
		l = discriminant(len(kind.Cases))
	case *wit.Flags:
		l, err = flags(len(kind.Flags))
	case *wit.Variant:
		payloads := make([]wit.Type, len(kind.Cases))
		for i, cs := range kind.Cases {
			payloads[i] = cs.Type
		}
		l, err = c.tagged(payloads)
	case *wit.Option:
		l, err = c.tagged([]wit.Type{nil, kind.Type})
	case *wit.Result:
		l, err = c.tagged([]wit.Type{kind.OK, kind.Err})
	case *wit.Own, *wit.Borrow:
		l = layout.Int32
	case wit.Type:
		l, err = c.Layout(kind)
	default:
		err = unsupported(t, "type definition")
	}
	if err != nil {
		if t.Name != nil {
			err = atPath(err, *t.Name)
		}
		return nil, err
	}

	c.cache[t] = l
	return l, nil
}

// aggregate lays types out as a natural C struct.
func (c *Converter) aggregate(types []wit.Type) (layout.Layout, error) {
	if len(types) == 0 {
		return nil, errors.Unsupported(errors.PhaseClassify, "{}", "empty aggregate")
	}
	members := make([]layout.Layout, len(types))
	for i, t := range types {
		l, err := c.Layout(t)
		if err != nil {
			return nil, err
		}
		members[i] = l
	}
	return layout.CStruct(members...), nil
}

// tagged lays out a discriminated union of payloads, some of which may be
// absent.
func (c *Converter) tagged(payloads []wit.Type) (layout.Layout, error) {
	var members []layout.Layout
	for _, p := range payloads {
		if p == nil {
			continue
		}
		l, err := c.Layout(p)
		if err != nil {
			return nil, err
		}
		members = append(members, l)
	}
	tag := discriminant(len(payloads))
	if len(members) == 0 {
		return layout.CStruct(tag), nil
	}
	return layout.CStruct(tag, layout.CUnion(members...)), nil
}

// discriminant returns the smallest integer able to index n cases.
func discriminant(n int) layout.Value {
	switch {
	case n <= 1<<8:
		return layout.Int8
	case n <= 1<<16:
		return layout.Int16
	default:
		return layout.Int32
	}
}

func flags(n int) (layout.Layout, error) {
	switch {
	case n == 0:
		return nil, errors.Unsupported(errors.PhaseClassify, "flags", "flags without members")
	case n <= 8:
		return layout.Int8, nil
	case n <= 16:
		return layout.Int16, nil
	case n <= 32:
		return layout.Int32, nil
	case n <= 64:
		return layout.Int64, nil
	}
	words := int64(n+31) / 32
	return layout.CStruct(layout.SequenceOf(words, layout.Int32)), nil
}

func unsupported(t wit.Type, what string) error {
	return errors.Unsupported(errors.PhaseClassify, fmt.Sprintf("%T", t), what)
}

func atPath(err error, path string) error {
	if e, ok := err.(*errors.Error); ok && len(e.Path) == 0 {
		e.Path = []string{path}
	}
	return err
}
