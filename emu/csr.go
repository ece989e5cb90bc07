package emu

import "github.com/sarchlab/rvsim/insts"

// vlenBytes is the vector register length reported by vlenb.
const vlenBytes = 16

// CSRFile holds the control and status registers. The cycle, time and
// instret counters are read-only and supplied by the owner through
// SetCounters before each access.
type CSRFile struct {
	regs    map[uint16]uint64
	cycle   uint64
	instret uint64
}

// NewCSRFile creates a CSR file with every writable register zeroed.
func NewCSRFile() *CSRFile {
	return &CSRFile{regs: make(map[uint16]uint64)}
}

// SetCounters updates the values returned by the counter CSRs.
func (c *CSRFile) SetCounters(cycle, instret uint64) {
	c.cycle = cycle
	c.instret = instret
}

func readOnly(csr uint16) bool {
	return csr>>10 == 0b11
}

// Read returns the current value of csr.
func (c *CSRFile) Read(csr uint16) uint64 {
	switch csr {
	case insts.CSRCycle, insts.CSRTime:
		return c.cycle
	case insts.CSRInstret:
		return c.instret
	case insts.CSRVlenb:
		return vlenBytes
	case insts.CSRMhartid:
		return 0
	}
	return c.regs[csr]
}

// Write sets csr. Writes to read-only registers are ignored.
func (c *CSRFile) Write(csr uint16, value uint64) {
	if readOnly(csr) {
		return
	}
	c.regs[csr] = value
}

// Execute performs a Zicsr instruction and returns the old CSR value for rd.
// src is the rs1 value, or the zero-extended immediate for the I forms.
// Set and clear forms with a zero source register or immediate do not write.
func (c *CSRFile) Execute(inst *insts.Instruction, src uint64) uint64 {
	old := c.Read(inst.CSR)

	noWrite := inst.Rs1.IsZero() || (!inst.Rs1.Valid() && inst.Imm == 0)
	switch inst.Op {
	case insts.OpCSRRW, insts.OpCSRRWI:
		c.Write(inst.CSR, src)
	case insts.OpCSRRS, insts.OpCSRRSI:
		if !noWrite {
			c.Write(inst.CSR, old|src)
		}
	case insts.OpCSRRC, insts.OpCSRRCI:
		if !noWrite {
			c.Write(inst.CSR, old&^src)
		}
	}
	return old
}

// CSRSource returns the operand a CSR instruction combines with the register:
// the rs1 value for register forms and the immediate otherwise.
func CSRSource(inst *insts.Instruction, rs1 uint64) uint64 {
	if inst.Rs1.Valid() {
		return rs1
	}
	return uint64(inst.Imm)
}
