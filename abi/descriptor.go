package abi

// Descriptor is the constant table of one platform calling convention.
// Register lists are in the order the ABI assigns them. A Descriptor is
// never modified after construction and may be shared freely.
type Descriptor struct {
	Name string

	IntArgRegs []VMStorage
	VecArgRegs []VMStorage
	IntRetRegs []VMStorage
	VecRetRegs []VMStorage

	// ScratchRegs may be clobbered by call stubs and patch sequences.
	ScratchRegs []VMStorage

	// VarargsCount receives the number of vector registers used by a
	// variadic call. Its Kind is zero when the ABI has no such register.
	VarargsCount VMStorage

	StackSlotSize int64
	StackAlign    int64
}

// MaxArgRegs returns the argument register budget for kind.
func (d *Descriptor) MaxArgRegs(kind StorageKind) int {
	switch kind {
	case StorageInteger:
		return len(d.IntArgRegs)
	case StorageVector:
		return len(d.VecArgRegs)
	}
	return 0
}

// MaxRetRegs returns the return register budget for kind.
func (d *Descriptor) MaxRetRegs(kind StorageKind) int {
	switch kind {
	case StorageInteger:
		return len(d.IntRetRegs)
	case StorageVector:
		return len(d.VecRetRegs)
	}
	return 0
}

// Registers returns the register list for kind on the argument or the
// return side.
func (d *Descriptor) Registers(kind StorageKind, forArguments bool) []VMStorage {
	switch {
	case kind == StorageInteger && forArguments:
		return d.IntArgRegs
	case kind == StorageVector && forArguments:
		return d.VecArgRegs
	case kind == StorageInteger:
		return d.IntRetRegs
	case kind == StorageVector:
		return d.VecRetRegs
	}
	return nil
}
