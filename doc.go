// Package nativeabi compiles platform-independent native function signatures
// into ABI-exact calling sequences.
//
// A signature is described by layouts: scalar values (integers, floats,
// pointers) and aggregates (structs, unions, fixed arrays) with explicit
// sizes and alignments. The compiler turns a signature into a flat program of
// bindings that move every value between a managed carrier and the registers
// and stack slots mandated by the platform ABI (x86-64 System V here).
//
// # Architecture Overview
//
//	nativeabi/          Root package with Memory, Allocator and Segment
//	├── layout/         Layout model, function descriptors, signature text
//	├── abi/            Storage locations, carriers, ABI descriptor tables
//	│   └── sysv/       x86-64 SysV classifier, storage and binding calculators
//	├── binding/        Binding ops, calling sequences, interpreter, codec
//	├── linker/         Downcall handles and upcall stub factories
//	├── heap/           wazero-backed native address space
//	├── witsig/         WIT types to C layouts
//	├── config/         TOML configuration for the CLI
//	├── errors/         Structured error types
//	└── cmd/abiplan/    Command line planner
//
// # Quick Start
//
//	sig, err := layout.ParseSignature("(i32, i32, {f64, f64}) -> i64")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	desc := sig.Descriptor
//
//	arena, err := heap.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer arena.Close(ctx)
//
//	l := linker.New(arena, arena)
//	h, err := l.ArrangeDowncall(abi.MethodTypeOf(desc), desc, linker.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(h.CallingSequence())
//
// # Thread Safety
//
// Arrangement is pure computation: each call owns its storage calculators
// and shares only the immutable ABI tables, so any number of arrangements may
// run concurrently. The sysv package does not memoize; linker.Linker caches
// arrangements by method type, descriptor and options.
package nativeabi
