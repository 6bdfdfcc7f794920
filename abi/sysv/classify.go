package sysv

import (
	"strings"

	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// ArgumentClass is the class of one eightbyte.
type ArgumentClass uint8

const (
	ClassNone ArgumentClass = iota
	ClassInteger
	ClassSSE
	ClassPointer
	ClassMemory
)

var argumentClassNames = [...]string{
	ClassNone:    "NO_CLASS",
	ClassInteger: "INTEGER",
	ClassSSE:     "SSE",
	ClassPointer: "POINTER",
	ClassMemory:  "MEMORY",
}

func (c ArgumentClass) String() string {
	if int(c) < len(argumentClassNames) {
		return argumentClassNames[c]
	}
	return "UNKNOWN"
}

// merge combines the classes of two values sharing an eightbyte.
func (c ArgumentClass) merge(other ArgumentClass) ArgumentClass {
	switch {
	case c == other:
		return c
	case c == ClassNone:
		return other
	case other == ClassNone:
		return c
	case c == ClassMemory || other == ClassMemory:
		return ClassMemory
	case c == ClassPointer || other == ClassPointer:
		return ClassPointer
	case c == ClassInteger || other == ClassInteger:
		return ClassInteger
	}
	return ClassSSE
}

// TypeKind is the top-level class of a layout.
type TypeKind uint8

const (
	TypeInteger TypeKind = iota + 1
	TypeFloat
	TypePointer
	TypeStruct
)

var typeKindNames = [...]string{
	TypeInteger: "INTEGER",
	TypeFloat:   "FLOAT",
	TypePointer: "POINTER",
	TypeStruct:  "STRUCT",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) && typeKindNames[k] != "" {
		return typeKindNames[k]
	}
	return "UNKNOWN"
}

// TypeClass is the classification of one argument or return layout.
// Scalars carry a single class; structs carry one class per eightbyte.
type TypeClass struct {
	Classes  []ArgumentClass
	Kind     TypeKind
	InMemory bool
}

// NIntegerRegs returns the number of integer registers the value needs.
func (tc TypeClass) NIntegerRegs() int {
	n := 0
	for _, c := range tc.Classes {
		if c == ClassInteger || c == ClassPointer {
			n++
		}
	}
	return n
}

// NVectorRegs returns the number of vector registers the value needs.
func (tc TypeClass) NVectorRegs() int {
	n := 0
	for _, c := range tc.Classes {
		if c == ClassSSE {
			n++
		}
	}
	return n
}

func (tc TypeClass) String() string {
	if tc.Kind != TypeStruct {
		return tc.Kind.String()
	}
	parts := make([]string, len(tc.Classes))
	for i, c := range tc.Classes {
		parts[i] = c.String()
	}
	s := "STRUCT[" + strings.Join(parts, ", ") + "]"
	if tc.InMemory {
		s += " in memory"
	}
	return s
}

// Classify computes the class of a top-level argument or return layout.
func Classify(l layout.Layout) (TypeClass, error) {
	if l != nil {
		if err := layout.Check(errors.PhaseClassify, l); err != nil {
			return TypeClass{}, err
		}
	}
	switch v := l.(type) {
	case layout.Value:
		switch v.Kind() {
		case layout.KindInteger:
			switch v.Size() {
			case 1, 2, 4, 8:
				return TypeClass{Kind: TypeInteger, Classes: []ArgumentClass{ClassInteger}}, nil
			}
		case layout.KindFloat:
			switch v.Size() {
			case 4, 8:
				return TypeClass{Kind: TypeFloat, Classes: []ArgumentClass{ClassSSE}}, nil
			}
		case layout.KindPointer:
			return TypeClass{Kind: TypePointer, Classes: []ArgumentClass{ClassPointer}}, nil
		}
		return TypeClass{}, errors.Unsupported(errors.PhaseClassify, v.String(), "scalar width not supported")
	case *layout.Group:
		return classifyStruct(v)
	case nil:
		return TypeClass{}, errors.InvalidInput(errors.PhaseClassify, "nil layout")
	}
	return TypeClass{}, errors.Unsupported(errors.PhaseClassify, l.String(), "not an argument layout")
}

func classifyStruct(g *layout.Group) (TypeClass, error) {
	if g.Size() > maxValueSize {
		return TypeClass{}, errors.Unsupported(errors.PhaseClassify, g.String(), "too large to pass by value")
	}
	words := int((g.Size() + 7) / 8)
	if words > maxAggregateWords {
		return inMemory(words), nil
	}

	classes := make([]ArgumentClass, words)
	if err := groupByEightbytes(g, 0, classes); err != nil {
		return TypeClass{}, err
	}

	// Words that hold only padding stay NO_CLASS and are not passed.
	for _, c := range classes {
		if c == ClassMemory {
			return inMemory(words), nil
		}
	}
	return TypeClass{Kind: TypeStruct, Classes: classes}, nil
}

func inMemory(words int) TypeClass {
	classes := make([]ArgumentClass, words)
	for i := range classes {
		classes[i] = ClassMemory
	}
	return TypeClass{Kind: TypeStruct, Classes: classes, InMemory: true}
}

// groupByEightbytes merges the class of every scalar reachable from l,
// placed at offset, into the eightbyte that contains it.
func groupByEightbytes(l layout.Layout, offset int64, classes []ArgumentClass) error {
	switch v := l.(type) {
	case *layout.Group:
		off := offset
		for _, m := range v.Members() {
			if err := groupByEightbytes(m, off, classes); err != nil {
				return err
			}
			if v.IsStruct() {
				off += m.Size()
			}
		}
	case layout.Sequence:
		elem := v.Element()
		if elem.Size() == 0 {
			return nil
		}
		for i := int64(0); i < v.Count(); i++ {
			if err := groupByEightbytes(elem, offset+i*elem.Size(), classes); err != nil {
				return err
			}
		}
	case layout.Padding:
	case layout.Value:
		if v.Size() == 0 {
			return nil
		}
		first := offset / 8
		last := (offset + v.Size() - 1) / 8
		if last >= int64(len(classes)) {
			return errors.Invariant(errors.PhaseClassify, "member %s at offset %d lies outside the aggregate", v, offset)
		}
		class := scalarClass(v)
		if offset%v.Align() != 0 || (first != last && (v.Kind() != layout.KindInteger || offset%8 != 0)) {
			class = ClassMemory
		}
		for i := first; i <= last; i++ {
			classes[i] = classes[i].merge(class)
		}
	default:
		return errors.Unsupported(errors.PhaseClassify, l.String(), "unknown member layout")
	}
	return nil
}

func scalarClass(v layout.Value) ArgumentClass {
	switch v.Kind() {
	case layout.KindFloat:
		return ClassSSE
	case layout.KindPointer:
		return ClassPointer
	}
	return ClassInteger
}
