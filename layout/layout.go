// Package layout describes native memory layouts and function signatures.
//
// Layouts are immutable trees: scalar values, groups (structs and unions),
// fixed-length sequences and explicit padding. Every layout has a byte size
// and a byte alignment; nothing is inferred from a host language.
package layout

import (
	"strconv"
	"strings"
)

// Layout is a node of a layout tree.
type Layout interface {
	// Size returns the size in bytes.
	Size() int64
	// Align returns the alignment in bytes, always a power of two.
	Align() int64
	String() string

	isLayout()
}

// ValueKind classifies scalar layouts.
type ValueKind uint8

const (
	KindInteger ValueKind = iota + 1
	KindFloat
	KindPointer
)

var valueKindNames = [...]string{
	KindInteger: "integer",
	KindFloat:   "float",
	KindPointer: "pointer",
}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) && valueKindNames[k] != "" {
		return valueKindNames[k]
	}
	return "unknown"
}

// PointerSize is the size and natural alignment of an address.
const PointerSize = 8

// Value is a scalar layout.
type Value struct {
	target Layout
	kind   ValueKind
	size   int64
	align  int64
}

var (
	Int8    = Value{kind: KindInteger, size: 1, align: 1}
	Int16   = Value{kind: KindInteger, size: 2, align: 2}
	Int32   = Value{kind: KindInteger, size: 4, align: 4}
	Int64   = Value{kind: KindInteger, size: 8, align: 8}
	Float32 = Value{kind: KindFloat, size: 4, align: 4}
	Float64 = Value{kind: KindFloat, size: 8, align: 8}
	Pointer = Value{kind: KindPointer, size: PointerSize, align: PointerSize}
)

// IntegerOf returns an integer layout of the given width with natural
// alignment.
func IntegerOf(size int64) Value {
	return Value{kind: KindInteger, size: size, align: naturalAlign(size)}
}

// FloatOf returns a floating point layout of the given width with natural
// alignment.
func FloatOf(size int64) Value {
	return Value{kind: KindFloat, size: size, align: naturalAlign(size)}
}

// PointerTo returns an address layout whose pointee is target.
func PointerTo(target Layout) Value {
	p := Pointer
	p.target = target
	return p
}

func (v Value) Size() int64  { return v.size }
func (v Value) Align() int64 { return v.align }
func (Value) isLayout()      {}

// Kind returns the scalar class.
func (v Value) Kind() ValueKind { return v.kind }

// Target returns the pointee layout of a pointer, or nil.
func (v Value) Target() Layout { return v.target }

// WithAlign returns a copy of v with the given alignment. Alignments below
// the natural one describe packed members.
func (v Value) WithAlign(align int64) Value {
	v.align = align
	return v
}

func (v Value) String() string {
	var b strings.Builder
	switch v.kind {
	case KindInteger:
		b.WriteByte('i')
		b.WriteString(strconv.FormatInt(v.size*8, 10))
	case KindFloat:
		b.WriteByte('f')
		b.WriteString(strconv.FormatInt(v.size*8, 10))
	case KindPointer:
		b.WriteString("ptr")
		if v.target != nil {
			b.WriteByte('<')
			b.WriteString(v.target.String())
			b.WriteByte('>')
		}
	default:
		b.WriteString("?")
	}
	if v.align != naturalAlign(v.size) {
		b.WriteByte('@')
		b.WriteString(strconv.FormatInt(v.align, 10))
	}
	return b.String()
}

// GroupKind distinguishes structs from unions.
type GroupKind uint8

const (
	KindStruct GroupKind = iota + 1
	KindUnion
)

// Group is an aggregate. Struct members are laid out back to back with no
// implicit padding; union members all start at offset 0.
type Group struct {
	members []Layout
	kind    GroupKind
	size    int64
	align   int64
}

// Struct returns a struct of the given members. Padding must be explicit;
// see CStruct for C layout rules.
func Struct(members ...Layout) *Group {
	g := &Group{kind: KindStruct, members: members, align: 1}
	for _, m := range members {
		g.size += m.Size()
		if m.Align() > g.align {
			g.align = m.Align()
		}
	}
	return g
}

// Union returns a union of the given members.
func Union(members ...Layout) *Group {
	g := &Group{kind: KindUnion, members: members, align: 1}
	for _, m := range members {
		if m.Size() > g.size {
			g.size = m.Size()
		}
		if m.Align() > g.align {
			g.align = m.Align()
		}
	}
	return g
}

func (g *Group) Size() int64  { return g.size }
func (g *Group) Align() int64 { return g.align }
func (*Group) isLayout()      {}

// Kind returns whether g is a struct or a union.
func (g *Group) Kind() GroupKind { return g.kind }

// IsStruct reports whether g is a struct.
func (g *Group) IsStruct() bool { return g.kind == KindStruct }

// Members returns the member layouts in declaration order.
func (g *Group) Members() []Layout { return g.members }

// Offsets returns the byte offset of each member.
func (g *Group) Offsets() []int64 {
	offs := make([]int64, len(g.members))
	if g.kind == KindUnion {
		return offs
	}
	var off int64
	for i, m := range g.members {
		offs[i] = off
		off += m.Size()
	}
	return offs
}

func (g *Group) String() string {
	var b strings.Builder
	if g.kind == KindUnion {
		b.WriteString("union")
	} else if !g.natural() {
		b.WriteString("packed")
	}
	b.WriteByte('{')
	for i, m := range g.members {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(m.String())
	}
	b.WriteByte('}')
	return b.String()
}

// natural reports whether the struct already satisfies C layout rules, so
// that its text form re-parses to the same layout.
func (g *Group) natural() bool {
	var off int64
	for _, m := range g.members {
		if AlignUp(off, m.Align()) != off {
			return false
		}
		off += m.Size()
	}
	return AlignUp(off, g.align) == off
}

// Sequence is a fixed-length array of one element layout.
type Sequence struct {
	elem  Layout
	count int64
}

// SequenceOf returns an array of count elements.
func SequenceOf(count int64, elem Layout) Sequence {
	return Sequence{elem: elem, count: count}
}

func (s Sequence) Size() int64  { return s.count * s.elem.Size() }
func (s Sequence) Align() int64 { return s.elem.Align() }
func (Sequence) isLayout()      {}

// Element returns the element layout.
func (s Sequence) Element() Layout { return s.elem }

// Count returns the number of elements.
func (s Sequence) Count() int64 { return s.count }

func (s Sequence) String() string {
	return "[" + strconv.FormatInt(s.count, 10) + "]" + s.elem.String()
}

// Padding is unused space inside an aggregate.
type Padding struct {
	size int64
}

// PaddingOf returns size bytes of padding.
func PaddingOf(size int64) Padding {
	return Padding{size: size}
}

func (p Padding) Size() int64 { return p.size }
func (Padding) Align() int64  { return 1 }
func (Padding) isLayout()     {}

func (p Padding) String() string {
	return "pad(" + strconv.FormatInt(p.size, 10) + ")"
}

func naturalAlign(size int64) int64 {
	if size <= 0 {
		return 1
	}
	a := int64(1)
	for a < size && a < 16 {
		a <<= 1
	}
	return a
}
