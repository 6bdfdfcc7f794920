package binding

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// wireVersion is bumped whenever the encoded shape changes.
const wireVersion = 1

type wireArgument struct {
	Layout   string      `msgpack:"layout"`
	Bindings []Binding   `msgpack:"bindings"`
	Carrier  abi.Carrier `msgpack:"carrier"`
}

type wireSequence struct {
	Return           *wireArgument  `msgpack:"return,omitempty"`
	Args             []wireArgument `msgpack:"args"`
	StackBytes       int64          `msgpack:"stack_bytes"`
	FrameSize        int64          `msgpack:"frame_size"`
	NVectorArgs      int            `msgpack:"n_vector_args"`
	Version          int            `msgpack:"v"`
	ForUpcall        bool           `msgpack:"upcall"`
	IsInMemoryReturn bool           `msgpack:"imr"`
	Variadic         bool           `msgpack:"variadic"`
}

// Marshal encodes cs with msgpack. Layouts are carried in their text form.
func Marshal(cs *CallingSequence) ([]byte, error) {
	w := wireSequence{
		Version:          wireVersion,
		Args:             make([]wireArgument, len(cs.Args)),
		StackBytes:       cs.StackBytes,
		FrameSize:        cs.FrameSize,
		NVectorArgs:      cs.NVectorArgs,
		ForUpcall:        cs.ForUpcall,
		IsInMemoryReturn: cs.IsInMemoryReturn,
		Variadic:         cs.Variadic,
	}
	for i, a := range cs.Args {
		w.Args[i] = toWire(a)
	}
	if cs.Return != nil {
		r := toWire(*cs.Return)
		w.Return = &r
	}
	data, err := msgpack.Marshal(&w)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseArrange, errors.KindInvalidInput, err, "encode calling sequence")
	}
	return data, nil
}

// Unmarshal decodes a sequence produced by Marshal and re-verifies every
// binding list.
func Unmarshal(data []byte) (*CallingSequence, error) {
	var w wireSequence
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "decode calling sequence")
	}
	if w.Version != wireVersion {
		return nil, errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Value(w.Version).
			Detail("unsupported calling sequence version %d", w.Version).
			Build()
	}

	b := NewBuilder(w.ForUpcall)
	for _, a := range w.Args {
		arg, err := fromWire(a)
		if err != nil {
			return nil, err
		}
		if err := b.AddArgument(arg.Carrier, arg.Layout, arg.Bindings); err != nil {
			return nil, err
		}
	}
	if w.Return != nil {
		ret, err := fromWire(*w.Return)
		if err != nil {
			return nil, err
		}
		if err := b.SetReturn(ret.Carrier, ret.Layout, ret.Bindings); err != nil {
			return nil, err
		}
	}
	cs := b.SetInMemoryReturn(w.IsInMemoryReturn).
		SetVariadic(w.Variadic).
		SetVectorArgs(w.NVectorArgs).
		Build()
	cs.StackBytes = w.StackBytes
	cs.FrameSize = w.FrameSize
	return cs, nil
}

func toWire(a ArgumentBindings) wireArgument {
	w := wireArgument{Carrier: a.Carrier, Bindings: a.Bindings}
	if a.Layout != nil {
		w.Layout = a.Layout.String()
	}
	return w
}

func fromWire(w wireArgument) (ArgumentBindings, error) {
	a := ArgumentBindings{Carrier: w.Carrier, Bindings: w.Bindings}
	if w.Layout != "" {
		l, err := layout.Parse(w.Layout)
		if err != nil {
			return ArgumentBindings{}, err
		}
		a.Layout = l
	}
	return a, nil
}
