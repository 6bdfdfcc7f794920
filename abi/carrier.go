package abi

import (
	"strings"

	"github.com/wippyai/native-abi/errors"
	"github.com/wippyai/native-abi/layout"
)

// Carrier is the managed type that holds a value on the generic side of a
// call. Scalars travel as fixed-width Go numbers; pointers and aggregates
// travel as segments.
type Carrier uint8

const (
	CarrierVoid Carrier = iota
	CarrierByte
	CarrierShort
	CarrierInt
	CarrierLong
	CarrierFloat
	CarrierDouble
	CarrierSegment
	CarrierObject
)

var carrierNames = [...]string{
	CarrierVoid:    "void",
	CarrierByte:    "byte",
	CarrierShort:   "short",
	CarrierInt:     "int",
	CarrierLong:    "long",
	CarrierFloat:   "float",
	CarrierDouble:  "double",
	CarrierSegment: "segment",
	CarrierObject:  "object",
}

func (c Carrier) String() string {
	if int(c) < len(carrierNames) {
		return carrierNames[c]
	}
	return "unknown"
}

// Size returns the width of a primitive carrier in bytes, 0 for reference
// carriers and void.
func (c Carrier) Size() int64 {
	switch c {
	case CarrierByte:
		return 1
	case CarrierShort:
		return 2
	case CarrierInt, CarrierFloat:
		return 4
	case CarrierLong, CarrierDouble:
		return 8
	}
	return 0
}

// IsFloat reports whether c is float or double.
func (c Carrier) IsFloat() bool {
	return c == CarrierFloat || c == CarrierDouble
}

// CarrierFor returns the carrier a top-level argument or return of layout l
// must use.
func CarrierFor(l layout.Layout) (Carrier, error) {
	switch v := l.(type) {
	case nil:
		return CarrierVoid, nil
	case layout.Value:
		switch v.Kind() {
		case layout.KindInteger:
			switch v.Size() {
			case 1:
				return CarrierByte, nil
			case 2:
				return CarrierShort, nil
			case 4:
				return CarrierInt, nil
			case 8:
				return CarrierLong, nil
			}
		case layout.KindFloat:
			switch v.Size() {
			case 4:
				return CarrierFloat, nil
			case 8:
				return CarrierDouble, nil
			}
		case layout.KindPointer:
			return CarrierSegment, nil
		}
	case *layout.Group:
		return CarrierSegment, nil
	}
	return CarrierVoid, errors.Unsupported(errors.PhaseClassify, l.String(), "no carrier for layout")
}

// PrimitiveCarrierForSize returns the carrier used to move a chunk of an
// aggregate of the given size through a register. Float chunks shorter than
// a full float or double are moved as raw bits.
func PrimitiveCarrierForSize(size int64, useFloat bool) (Carrier, error) {
	if useFloat {
		switch {
		case size > 0 && size <= 4:
			return CarrierFloat, nil
		case size > 4 && size <= 8:
			return CarrierDouble, nil
		}
	} else {
		switch {
		case size == 1:
			return CarrierByte, nil
		case size == 2:
			return CarrierShort, nil
		case size > 2 && size <= 4:
			return CarrierInt, nil
		case size > 4 && size <= 8:
			return CarrierLong, nil
		}
	}
	return CarrierVoid, errors.Invariant(errors.PhaseBind, "no carrier for %d byte chunk (float=%t)", size, useFloat)
}

// MethodType is the managed side of a signature.
type MethodType struct {
	Params []Carrier `msgpack:"params"`
	Return Carrier   `msgpack:"return"`
}

// MethodTypeOf derives the method type implied by desc. Layouts without a
// carrier map to CarrierVoid; arrangement rejects them later.
func MethodTypeOf(desc *layout.FunctionDescriptor) MethodType {
	mt := MethodType{Params: make([]Carrier, len(desc.Args))}
	for i, a := range desc.Args {
		mt.Params[i], _ = CarrierFor(a)
	}
	if desc.Return != nil {
		mt.Return, _ = CarrierFor(desc.Return)
	}
	return mt
}

// InsertParam returns a copy of mt with c inserted at index i.
func (mt MethodType) InsertParam(i int, c Carrier) MethodType {
	params := make([]Carrier, 0, len(mt.Params)+1)
	params = append(params, mt.Params[:i]...)
	params = append(params, c)
	params = append(params, mt.Params[i:]...)
	return MethodType{Params: params, Return: mt.Return}
}

// WithReturn returns a copy of mt with the given return carrier.
func (mt MethodType) WithReturn(c Carrier) MethodType {
	return MethodType{Params: append([]Carrier(nil), mt.Params...), Return: c}
}

func (mt MethodType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range mt.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	b.WriteString(mt.Return.String())
	return b.String()
}
