// Package linker turns function signatures into callable handles.
//
// # Main Types
//
//   - Linker: arranges downcalls and upcalls and memoizes the results
//   - DowncallHandle: calls a native function with managed arguments
//   - UpcallStubFactory: binds managed targets to a native entry point
//   - UpcallStub: the native entry point itself
//
// Native code is modelled as a function over a binding.Frame: it reads its
// arguments from the frame's registers and stack area and leaves its
// result in the return registers.
//
// # In-Memory Returns
//
// A struct returned in memory is hidden from both sides. A downcall handle
// allocates the return buffer, passes its address as the first argument
// and returns the buffer contents. An upcall stub copies the target's
// result into the buffer supplied by the caller and returns its address in
// rax.
//
// # Thread Safety
//
// Linker, DowncallHandle and UpcallStub are safe for concurrent use when
// the Memory and Allocator they were created with are.
//
// # Example
//
//	arena, _ := heap.New(ctx)
//	l := linker.New(arena, arena)
//	sig, _ := layout.ParseSignature("(i32, f64) -> i64")
//	h, _ := l.ArrangeDowncall(abi.MethodTypeOf(sig.Descriptor), sig.Descriptor, linker.Options{})
//	result, _ := h.Invoke(ctx, target, int32(1), 2.5)
package linker
