package layout

import "strings"

// FunctionDescriptor is the native shape of a function: an optional return
// layout and the ordered argument layouts.
type FunctionDescriptor struct {
	Return Layout // nil for void
	Args   []Layout
}

// Of returns a descriptor for a function returning ret.
func Of(ret Layout, args ...Layout) *FunctionDescriptor {
	return &FunctionDescriptor{Return: ret, Args: args}
}

// Void returns a descriptor for a function without a return value.
func Void(args ...Layout) *FunctionDescriptor {
	return &FunctionDescriptor{Args: args}
}

// HasReturn reports whether the function returns a value.
func (d *FunctionDescriptor) HasReturn() bool {
	return d.Return != nil
}

// WithPrependedArg returns a copy of d with l inserted as the first argument.
func (d *FunctionDescriptor) WithPrependedArg(l Layout) *FunctionDescriptor {
	args := make([]Layout, 0, len(d.Args)+1)
	args = append(args, l)
	args = append(args, d.Args...)
	return &FunctionDescriptor{Return: d.Return, Args: args}
}

// DropReturn returns a copy of d without a return layout.
func (d *FunctionDescriptor) DropReturn() *FunctionDescriptor {
	return &FunctionDescriptor{Args: d.Args}
}

func (d *FunctionDescriptor) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, a := range d.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteString(") -> ")
	if d.Return == nil {
		b.WriteString("void")
	} else {
		b.WriteString(d.Return.String())
	}
	return b.String()
}
