package sysv

import (
	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/errors"
)

// storageCalculator hands out storage locations in ABI order. One instance
// serves the arguments of one arrangement and another its return value;
// they never share counters.
type storageCalculator struct {
	desc         *abi.Descriptor
	nIntegerReg  int
	nVectorReg   int
	stackOffset  int64
	forArguments bool
}

func newStorageCalculator(desc *abi.Descriptor, forArguments bool) *storageCalculator {
	return &storageCalculator{desc: desc, forArguments: forArguments}
}

func (s *storageCalculator) budget(kind abi.StorageKind) int {
	if s.forArguments {
		return s.desc.MaxArgRegs(kind)
	}
	return s.desc.MaxRetRegs(kind)
}

// nextStorage returns the next register of kind, or a stack slot once the
// register budget for kind is exhausted.
func (s *storageCalculator) nextStorage(kind abi.StorageKind) (abi.VMStorage, error) {
	regs := s.desc.Registers(kind, s.forArguments)
	switch kind {
	case abi.StorageInteger:
		if s.nIntegerReg < len(regs) {
			r := regs[s.nIntegerReg]
			s.nIntegerReg++
			return r, nil
		}
	case abi.StorageVector:
		if s.nVectorReg < len(regs) {
			r := regs[s.nVectorReg]
			s.nVectorReg++
			return r, nil
		}
	default:
		return abi.VMStorage{}, errors.Invariant(errors.PhaseAllocate, "no registers of kind %s", kind)
	}
	return s.stackAlloc()
}

// stackAlloc returns the next stack slot.
func (s *storageCalculator) stackAlloc() (abi.VMStorage, error) {
	if !s.forArguments {
		return abi.VMStorage{}, errors.Invariant(errors.PhaseAllocate, "return value does not fit the return registers")
	}
	slot := s.desc.StackSlotSize
	st := abi.StackSlot(uint16(slot), s.stackOffset)
	s.stackOffset += slot
	return st, nil
}

// structStorages returns one storage per eightbyte of tc. A struct that does
// not fit the remaining register budget goes to the stack as a whole.
// NO_CLASS words passed in registers get the zero VMStorage.
func (s *storageCalculator) structStorages(tc TypeClass) ([]abi.VMStorage, error) {
	storages := make([]abi.VMStorage, 0, len(tc.Classes))

	if !tc.InMemory &&
		s.nIntegerReg+tc.NIntegerRegs() <= s.budget(abi.StorageInteger) &&
		s.nVectorReg+tc.NVectorRegs() <= s.budget(abi.StorageVector) {
		for _, c := range tc.Classes {
			if c == ClassNone {
				storages = append(storages, abi.VMStorage{})
				continue
			}
			kind := abi.StorageInteger
			if c == ClassSSE {
				kind = abi.StorageVector
			}
			st, err := s.nextStorage(kind)
			if err != nil {
				return nil, err
			}
			storages = append(storages, st)
		}
		return storages, nil
	}

	for range tc.Classes {
		st, err := s.stackAlloc()
		if err != nil {
			return nil, err
		}
		storages = append(storages, st)
	}
	return storages, nil
}
