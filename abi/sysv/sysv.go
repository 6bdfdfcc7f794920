// Package sysv implements the x86-64 System V calling convention used by
// Linux, macOS and the BSDs.
//
// Arrange turns a function descriptor into a binding.CallingSequence:
// Classify computes the eightbyte classes of each layout, a storage
// calculator hands out registers and stack slots in ABI order, and a binding
// calculator emits the Unbox or Box program that moves the value.
package sysv

import "github.com/wippyai/native-abi/abi"

// General purpose registers by architectural number.
var (
	RAX = abi.IntegerReg(0, "rax")
	RCX = abi.IntegerReg(1, "rcx")
	RDX = abi.IntegerReg(2, "rdx")
	RBX = abi.IntegerReg(3, "rbx")
	RSP = abi.IntegerReg(4, "rsp")
	RBP = abi.IntegerReg(5, "rbp")
	RSI = abi.IntegerReg(6, "rsi")
	RDI = abi.IntegerReg(7, "rdi")
	R8  = abi.IntegerReg(8, "r8")
	R9  = abi.IntegerReg(9, "r9")
	R10 = abi.IntegerReg(10, "r10")
	R11 = abi.IntegerReg(11, "r11")
	R12 = abi.IntegerReg(12, "r12")
	R13 = abi.IntegerReg(13, "r13")
	R14 = abi.IntegerReg(14, "r14")
	R15 = abi.IntegerReg(15, "r15")
)

// Vector registers used by the convention.
var (
	XMM0 = abi.VectorReg(0, "xmm0")
	XMM1 = abi.VectorReg(1, "xmm1")
	XMM2 = abi.VectorReg(2, "xmm2")
	XMM3 = abi.VectorReg(3, "xmm3")
	XMM4 = abi.VectorReg(4, "xmm4")
	XMM5 = abi.VectorReg(5, "xmm5")
	XMM6 = abi.VectorReg(6, "xmm6")
	XMM7 = abi.VectorReg(7, "xmm7")
)

const (
	// MaxIntegerArgs is the integer argument register budget.
	MaxIntegerArgs = 6
	// MaxVectorArgs is the vector argument register budget.
	MaxVectorArgs = 8
	// StackSlotSize is the size of one stack argument slot.
	StackSlotSize = 8
	// StackAlign is the alignment of the stack at a call.
	StackAlign = 16

	// maxAggregateWords is the largest aggregate, in eightbytes, that can
	// travel in registers.
	maxAggregateWords = 2

	// maxValueSize bounds aggregates passed or returned by value.
	maxValueSize = 1 << 20
)

// ABI is the constant table of the convention.
var ABI = &abi.Descriptor{
	Name:          "sysv-x86_64",
	IntArgRegs:    []abi.VMStorage{RDI, RSI, RDX, RCX, R8, R9},
	VecArgRegs:    []abi.VMStorage{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7},
	IntRetRegs:    []abi.VMStorage{RAX, RDX},
	VecRetRegs:    []abi.VMStorage{XMM0, XMM1},
	ScratchRegs:   []abi.VMStorage{R10, R11},
	VarargsCount:  RAX,
	StackSlotSize: StackSlotSize,
	StackAlign:    StackAlign,
}
