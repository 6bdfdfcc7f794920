// Package errors provides structured error types for the native ABI compiler.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: binding path, carrier and layout names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseInvoke, errors.KindTypeMismatch).
//		Path("arg2").
//		Carrier("int").
//		Layout("{i64, f64}").
//		Detail("cannot unbox int32 as a struct").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseInvoke, path, "int", "{i64, f64}")
//	err := errors.OutOfBounds(errors.PhaseMemory, path, 16, 8, 4)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
