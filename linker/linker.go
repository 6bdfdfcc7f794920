package linker

import (
	"sync"

	"go.uber.org/zap"

	nativeabi "github.com/wippyai/native-abi"
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/abi/sysv"
	"github.com/wippyai/native-abi/binding"
	"github.com/wippyai/native-abi/layout"
)

// Options configures one arrangement.
type Options = sysv.Options

// Linker arranges calls for the SysV x86-64 ABI against one native memory.
// Thread-safe.
type Linker struct {
	mem    nativeabi.Memory
	alloc  nativeabi.Allocator
	cache  map[arrangeKey]*sysv.Bindings
	hits   int
	misses int
	mu     sync.RWMutex
}

type arrangeKey struct {
	mt        string
	desc      string
	opts      Options
	forUpcall bool
}

// New creates a Linker. mem and alloc back in-memory returns and heap
// segment staging; both may be nil when no signature needs them.
func New(mem nativeabi.Memory, alloc nativeabi.Allocator) *Linker {
	return &Linker{
		mem:   mem,
		alloc: alloc,
		cache: make(map[arrangeKey]*sysv.Bindings),
	}
}

// Memory returns the native memory.
func (l *Linker) Memory() nativeabi.Memory {
	return l.mem
}

// Stats returns the number of memoized and computed arrangements.
func (l *Linker) Stats() (hits, misses int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hits, l.misses
}

// ArrangeDowncall computes the calling sequence for calling a native
// function with shape desc and returns a handle that performs such calls.
func (l *Linker) ArrangeDowncall(mt abi.MethodType, desc *layout.FunctionDescriptor, opts Options) (*DowncallHandle, error) {
	b, err := l.arrange(mt, desc, opts, false)
	if err != nil {
		return nil, err
	}
	return &DowncallHandle{
		cs:      b.CallingSequence,
		desc:    desc,
		interp:  l.interpreter(),
		nParams: len(mt.Params),
	}, nil
}

// ArrangeUpcall computes the calling sequence for native code calling into
// a managed function with shape desc.
func (l *Linker) ArrangeUpcall(mt abi.MethodType, desc *layout.FunctionDescriptor, opts Options) (*UpcallStubFactory, error) {
	b, err := l.arrange(mt, desc, opts, true)
	if err != nil {
		return nil, err
	}
	return &UpcallStubFactory{
		cs:     b.CallingSequence,
		desc:   desc,
		interp: l.interpreter(),
	}, nil
}

func (l *Linker) interpreter() *binding.Interpreter {
	return &binding.Interpreter{Mem: l.mem, Alloc: l.alloc}
}

func (l *Linker) arrange(mt abi.MethodType, desc *layout.FunctionDescriptor, opts Options, forUpcall bool) (*sysv.Bindings, error) {
	key := arrangeKey{
		mt:        mt.String(),
		desc:      signature(desc),
		opts:      opts,
		forUpcall: forUpcall,
	}

	l.mu.RLock()
	b, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		l.mu.Lock()
		l.hits++
		l.mu.Unlock()
		return b, nil
	}

	kind := "downcall"
	if forUpcall {
		kind = "upcall"
	}

	b, err := sysv.Arrange(mt, desc, opts, forUpcall)
	if err != nil {
		Logger().Warn("arrangement failed",
			zap.String("kind", kind),
			zap.String("signature", key.desc),
			zap.Error(err))
		return nil, err
	}

	cs := b.CallingSequence
	Logger().Debug("arranged call",
		zap.String("kind", kind),
		zap.String("signature", key.desc),
		zap.Bool("in_memory_return", b.IsInMemoryReturn),
		zap.Int64("frame_size", cs.FrameSize),
		zap.Int("vector_args", cs.NVectorArgs),
		zap.Int("args", len(cs.Args)))

	l.mu.Lock()
	if prev, ok := l.cache[key]; ok {
		b = prev
	} else {
		l.cache[key] = b
	}
	l.misses++
	l.mu.Unlock()
	return b, nil
}

func signature(desc *layout.FunctionDescriptor) string {
	if desc == nil {
		return "<nil>"
	}
	return desc.String()
}
