// Package emu provides functional RISC-V emulation. Its execution units are
// shared by the timing pipeline, so both produce the same architectural state.
package emu

import "github.com/sarchlab/rvsim/insts"

// RegFile represents the architectural register state: 32 integer registers
// (x0 hard-wired to zero), 32 floating-point registers, 32 vector registers
// and the program counter. Floating-point and vector registers hold a single
// 64-bit value because their execution is delegated to an ExtensionUnit.
type RegFile struct {
	// X holds integer registers x0-x31. X[0] always reads as 0.
	X [32]uint64

	// F holds floating-point registers f0-f31.
	F [32]uint64

	// V holds vector registers v0-v31.
	V [32]uint64

	// PC is the program counter.
	PC uint64
}

// ReadReg reads integer register reg. Register 0 and out-of-range indices
// read as 0.
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes integer register reg. Writes to x0 are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}

// Read reads an operand of any register class. An absent operand reads as 0.
func (r *RegFile) Read(reg insts.Reg) uint64 {
	switch reg.Class {
	case insts.RegInt:
		return r.ReadReg(reg.Num)
	case insts.RegFloat:
		return r.F[reg.Num&31]
	case insts.RegVector:
		return r.V[reg.Num&31]
	}
	return 0
}

// Write writes an operand of any register class.
func (r *RegFile) Write(reg insts.Reg, value uint64) {
	switch reg.Class {
	case insts.RegInt:
		r.WriteReg(reg.Num, value)
	case insts.RegFloat:
		r.F[reg.Num&31] = value
	case insts.RegVector:
		r.V[reg.Num&31] = value
	}
}
