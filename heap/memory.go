package heap

import (
	"fortio.org/safecast"

	"github.com/wippyai/native-abi/errors"
)

// offset narrows a native address to a wasm memory offset.
func (a *Arena) offset(addr, n uint64) (uint32, error) {
	off, err := safecast.Conv[uint32](addr)
	if err != nil || addr+n < addr || addr+n > uint64(a.mem.Size()) {
		return 0, errors.OutOfBounds(errors.PhaseMemory, nil, addr, n, uint64(a.mem.Size()))
	}
	return off, nil
}

// Read returns a view of length bytes at addr. The view is only valid until
// the memory grows.
func (a *Arena) Read(addr, length uint64) ([]byte, error) {
	off, err := a.offset(addr, length)
	if err != nil {
		return nil, err
	}
	n, err := safecast.Conv[uint32](length)
	if err != nil {
		return nil, errors.OutOfBounds(errors.PhaseMemory, nil, addr, length, uint64(a.mem.Size()))
	}
	data, ok := a.mem.Read(off, n)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, nil, addr, length, uint64(a.mem.Size()))
	}
	return data, nil
}

// Write copies data to addr.
func (a *Arena) Write(addr uint64, data []byte) error {
	off, err := a.offset(addr, uint64(len(data)))
	if err != nil {
		return err
	}
	if !a.mem.Write(off, data) {
		return errors.OutOfBounds(errors.PhaseMemory, nil, addr, uint64(len(data)), uint64(a.mem.Size()))
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (a *Arena) ReadU8(addr uint64) (uint8, error) {
	off, err := a.offset(addr, 1)
	if err != nil {
		return 0, err
	}
	v, _ := a.mem.ReadByte(off)
	return v, nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (a *Arena) ReadU16(addr uint64) (uint16, error) {
	off, err := a.offset(addr, 2)
	if err != nil {
		return 0, err
	}
	v, _ := a.mem.ReadUint16Le(off)
	return v, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (a *Arena) ReadU32(addr uint64) (uint32, error) {
	off, err := a.offset(addr, 4)
	if err != nil {
		return 0, err
	}
	v, _ := a.mem.ReadUint32Le(off)
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (a *Arena) ReadU64(addr uint64) (uint64, error) {
	off, err := a.offset(addr, 8)
	if err != nil {
		return 0, err
	}
	v, _ := a.mem.ReadUint64Le(off)
	return v, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (a *Arena) WriteU8(addr uint64, value uint8) error {
	off, err := a.offset(addr, 1)
	if err != nil {
		return err
	}
	a.mem.WriteByte(off, value)
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (a *Arena) WriteU16(addr uint64, value uint16) error {
	off, err := a.offset(addr, 2)
	if err != nil {
		return err
	}
	a.mem.WriteUint16Le(off, value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (a *Arena) WriteU32(addr uint64, value uint32) error {
	off, err := a.offset(addr, 4)
	if err != nil {
		return err
	}
	a.mem.WriteUint32Le(off, value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (a *Arena) WriteU64(addr uint64, value uint64) error {
	off, err := a.offset(addr, 8)
	if err != nil {
		return err
	}
	a.mem.WriteUint64Le(off, value)
	return nil
}
