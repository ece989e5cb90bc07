package emu

import "github.com/sarchlab/rvsim/insts"

// LoadStoreUnit implements loads, stores and the A extension's LR/SC and
// AMO operations.
type LoadStoreUnit struct {
	memory *Memory
	alu    *ALU

	reserved    bool
	reservation uint64
}

// NewLoadStoreUnit creates a LoadStoreUnit connected to the given memory.
func NewLoadStoreUnit(memory *Memory, xlen int) *LoadStoreUnit {
	return &LoadStoreUnit{
		memory: memory,
		alu:    NewALU(xlen),
	}
}

// Address returns the effective address of a memory instruction. Atomics
// carry no offset.
func (lsu *LoadStoreUnit) Address(inst *insts.Instruction, rs1 uint64) uint64 {
	return lsu.alu.mask(rs1 + uint64(inst.Offset))
}

// Execute performs the memory access of a LOAD- or STORE-class instruction
// and returns the value destined for rd. Plain stores return 0.
func (lsu *LoadStoreUnit) Execute(inst *insts.Instruction, rs1, rs2 uint64) uint64 {
	addr := lsu.Address(inst, rs1)

	switch {
	case inst.Op == insts.OpLR:
		lsu.reserved = true
		lsu.reservation = addr
		return lsu.load(addr, inst.MemWidth, false)
	case inst.Op == insts.OpSC:
		return lsu.storeConditional(addr, inst.MemWidth, rs2)
	case inst.IsAtomic():
		return lsu.amo(inst, addr, rs2)
	case inst.Class == insts.ClassLoad:
		return lsu.load(addr, inst.MemWidth, inst.MemUnsigned)
	default:
		lsu.store(addr, inst.MemWidth, rs2)
		return 0
	}
}

// load reads width bytes and extends them to XLEN.
func (lsu *LoadStoreUnit) load(addr uint64, width uint8, unsigned bool) uint64 {
	v := lsu.memory.ReadN(addr, int(width))
	if !unsigned && width < 8 {
		shift := 64 - 8*uint(width)
		v = uint64(int64(v<<shift) >> shift)
	}
	return lsu.alu.mask(v)
}

func (lsu *LoadStoreUnit) store(addr uint64, width uint8, value uint64) {
	if lsu.reserved && addr < lsu.reservation+8 && lsu.reservation < addr+uint64(width) {
		lsu.reserved = false
	}
	lsu.memory.WriteN(addr, value, int(width))
}

// storeConditional writes only while the reservation taken by LR at the same
// address is still held. It returns 0 on success and 1 on failure; either
// way the reservation is released.
func (lsu *LoadStoreUnit) storeConditional(addr uint64, width uint8, value uint64) uint64 {
	held := lsu.reserved && lsu.reservation == addr
	lsu.reserved = false
	if !held {
		return 1
	}
	lsu.memory.WriteN(addr, value, int(width))
	return 0
}

// amo performs a read-modify-write and returns the original memory value.
func (lsu *LoadStoreUnit) amo(inst *insts.Instruction, addr, src uint64) uint64 {
	old := lsu.load(addr, inst.MemWidth, false)

	a, b := old, src
	if inst.MemWidth == 4 {
		a, b = uint64(int64(int32(a))), uint64(int64(int32(b)))
	}

	var result uint64
	switch inst.Op {
	case insts.OpAMOSWAP:
		result = b
	case insts.OpAMOADD:
		result = a + b
	case insts.OpAMOXOR:
		result = a ^ b
	case insts.OpAMOAND:
		result = a & b
	case insts.OpAMOOR:
		result = a | b
	case insts.OpAMOMIN:
		result = pick(int64(a) < int64(b), a, b)
	case insts.OpAMOMAX:
		result = pick(int64(a) > int64(b), a, b)
	case insts.OpAMOMINU:
		result = pick(lsu.unsigned(a, inst.MemWidth) < lsu.unsigned(b, inst.MemWidth), a, b)
	case insts.OpAMOMAXU:
		result = pick(lsu.unsigned(a, inst.MemWidth) > lsu.unsigned(b, inst.MemWidth), a, b)
	}

	lsu.store(addr, inst.MemWidth, result)
	return old
}

func (lsu *LoadStoreUnit) unsigned(v uint64, width uint8) uint64 {
	if width == 4 {
		return uint64(uint32(v))
	}
	return v
}

func pick(cond bool, a, b uint64) uint64 {
	if cond {
		return a
	}
	return b
}

// Reset drops any outstanding reservation.
func (lsu *LoadStoreUnit) Reset() {
	lsu.reserved = false
}
