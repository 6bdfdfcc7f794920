// Package abi holds the platform-neutral vocabulary of calling conventions:
// storage locations, managed carrier types, method types and the constant
// tables that describe one concrete ABI.
package abi

import "strconv"

// StorageKind is the class of a storage location.
type StorageKind uint8

const (
	StorageInteger StorageKind = iota + 1
	StorageVector
	StorageStack
)

var storageKindNames = [...]string{
	StorageInteger: "integer",
	StorageVector:  "vector",
	StorageStack:   "stack",
}

func (k StorageKind) String() string {
	if int(k) < len(storageKindNames) && storageKindNames[k] != "" {
		return storageKindNames[k]
	}
	return "unknown"
}

// VMStorage is a register or a stack slot. Registers are identified by their
// architectural number; stack slots by their byte offset from the start of
// the outgoing argument area.
type VMStorage struct {
	Name   string      `msgpack:"n,omitempty"`
	Offset int64       `msgpack:"o,omitempty"`
	Index  uint16      `msgpack:"i,omitempty"`
	Size   uint16      `msgpack:"s,omitempty"`
	Kind   StorageKind `msgpack:"k"`
}

// IntegerReg returns a general purpose register.
func IntegerReg(index uint16, name string) VMStorage {
	return VMStorage{Kind: StorageInteger, Index: index, Size: 8, Name: name}
}

// VectorReg returns a vector register.
func VectorReg(index uint16, name string) VMStorage {
	return VMStorage{Kind: StorageVector, Index: index, Size: 16, Name: name}
}

// StackSlot returns a stack slot of size bytes at offset.
func StackSlot(size uint16, offset int64) VMStorage {
	return VMStorage{Kind: StorageStack, Size: size, Offset: offset}
}

// IsRegister reports whether s is a register.
func (s VMStorage) IsRegister() bool {
	return s.Kind == StorageInteger || s.Kind == StorageVector
}

func (s VMStorage) String() string {
	if s.Kind == StorageStack {
		return "stack[" + strconv.FormatInt(s.Offset, 10) + ":" + strconv.Itoa(int(s.Size)) + "]"
	}
	if s.Name != "" {
		return s.Name
	}
	return s.Kind.String() + strconv.Itoa(int(s.Index))
}
