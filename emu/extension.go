package emu

import "github.com/sarchlab/rvsim/insts"

// ExtensionUnit executes the instruction classes whose semantics are not
// modeled here (FPU and VECTOR). It receives the source operand values in
// rs1, rs2, rs3 order and returns the value written to the destination
// register, if the instruction has one.
type ExtensionUnit interface {
	Execute(inst *insts.Instruction, srcs []uint64) uint64
}

// StubExtensionUnit writes 0 to every destination and has no other effect.
type StubExtensionUnit struct{}

// Execute returns 0.
func (StubExtensionUnit) Execute(*insts.Instruction, []uint64) uint64 {
	return 0
}
