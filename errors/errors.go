package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseClassify Phase = "classify" // eightbyte classification
	PhaseAllocate Phase = "allocate" // register/stack assignment
	PhaseBind     Phase = "bind"     // binding emission
	PhaseArrange  Phase = "arrange"  // calling sequence assembly
	PhaseInvoke   Phase = "invoke"   // executing a compiled binding
	PhaseMemory   Phase = "memory"   // native memory access
	PhaseParse    Phase = "parse"    // signature text parsing
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupported   Kind = "unsupported"
	KindInvariant     Kind = "invariant"
	KindMalformed     Kind = "malformed_descriptor"
	KindTypeMismatch  Kind = "type_mismatch"
	KindOutOfBounds   Kind = "out_of_bounds"
	KindAlignment     Kind = "alignment"
	KindAllocation    Kind = "allocation"
	KindInvalidInput  Kind = "invalid_input"
	KindNotFound      Kind = "not_found"
	KindHeapAccess    Kind = "heap_access"
	KindStackMismatch Kind = "stack_mismatch"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Carrier string
	Layout  string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Carrier != "" || e.Layout != "" {
		b.WriteString(": ")
		if e.Carrier != "" && e.Layout != "" {
			b.WriteString("carrier ")
			b.WriteString(e.Carrier)
			b.WriteString(", layout ")
			b.WriteString(e.Layout)
		} else if e.Carrier != "" {
			b.WriteString("carrier ")
			b.WriteString(e.Carrier)
		} else {
			b.WriteString("layout ")
			b.WriteString(e.Layout)
		}
	}

	if e.Detail != "" {
		if e.Carrier != "" || e.Layout != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the argument path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Carrier sets the managed carrier type name
func (b *Builder) Carrier(t string) *Builder {
	b.err.Carrier = t
	return b
}

// Layout sets the native layout description
func (b *Builder) Layout(l string) *Builder {
	b.err.Layout = l
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Unsupported creates an unsupported-shape error. Arrangements that hit it
// fail as a whole.
func Unsupported(phase Phase, layout, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Layout: layout,
		Detail: what,
	}
}

// Invariant creates an internal consistency error: the classifier and the
// calculators disagree.
func Invariant(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvariant,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Malformed creates a malformed descriptor error
func Malformed(path []string, format string, args ...any) *Error {
	return &Error{
		Phase:  PhaseArrange,
		Kind:   KindMalformed,
		Path:   path,
		Detail: fmt.Sprintf(format, args...),
	}
}

// TypeMismatch creates a carrier/layout mismatch error
func TypeMismatch(phase Phase, path []string, carrier, layout string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		Carrier: carrier,
		Layout:  layout,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, offset, length, size uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("access [%d, %d) out of bounds (size %d)", offset, offset+length, size),
		Value:  offset,
	}
}

// Misaligned creates an alignment error for a boxed address
func Misaligned(phase Phase, addr, align uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlignment,
		Detail: fmt.Sprintf("address 0x%x is not aligned to %d", addr, align),
		Value:  addr,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, pos int, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("parse %s at offset %d", what, pos),
		Value:  pos,
		Cause:  cause,
	}
}

// Failure is a single failed arrangement in a batch
type Failure struct {
	Err  error
	Name string // catalogue entry name
}

// BatchError is returned when one or more arrangements of a batch fail
type BatchError struct {
	Failures []Failure
}

// NewBatchError creates a batch error from the collected failures
func NewBatchError(failures []Failure) *BatchError {
	return &BatchError{Failures: failures}
}

func (e *BatchError) Error() string {
	if len(e.Failures) == 0 {
		return "[arrange] batch: no failures recorded"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d arrangement(s) failed:\n", len(e.Failures)))

	// Group by kind for cleaner output
	byKind := make(map[Kind][]string)
	var kindOrder []Kind
	for _, f := range e.Failures {
		k := kindOf(f.Err)
		if _, exists := byKind[k]; !exists {
			kindOrder = append(kindOrder, k)
		}
		byKind[k] = append(byKind[k], f.Name+": "+f.Err.Error())
	}

	for _, k := range kindOrder {
		b.WriteString("\n  ")
		b.WriteString(string(k))
		b.WriteString(":\n")
		for _, line := range byKind[k] {
			b.WriteString("    - ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *BatchError) Is(target error) bool {
	_, ok := target.(*BatchError)
	return ok
}

func kindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return "other"
}
