package emu

import "github.com/sarchlab/rvsim/insts"

// ALU implements the RISC-V integer datapath. It is stateless: results depend
// only on the instruction and the operand values supplied.
type ALU struct {
	xlen int
}

// NewALU creates an ALU for the given register width (32 or 64).
func NewALU(xlen int) *ALU {
	if xlen != 32 {
		xlen = 64
	}
	return &ALU{xlen: xlen}
}

// ALUResult is the output of one ALU operation.
type ALUResult struct {
	// Value is the primary result, masked to XLEN.
	Value uint64

	// Redirect is true when a control-flow instruction transfers control to
	// Target instead of falling through.
	Redirect bool

	// Target is base+offset for control-flow instructions.
	Target uint64
}

// NextPC returns the address of the instruction that follows inst at pc.
func (r ALUResult) NextPC(inst *insts.Instruction, pc uint64) uint64 {
	if r.Redirect {
		return r.Target
	}
	return pc + uint64(inst.Length)
}

func (a *ALU) mask(v uint64) uint64 {
	if a.xlen == 32 {
		return v & 0xFFFF_FFFF
	}
	return v
}

// signed interprets an XLEN-wide value as a signed integer.
func (a *ALU) signed(v uint64) int64 {
	if a.xlen == 32 {
		return int64(int32(v))
	}
	return int64(v)
}

// Operands applies the instruction's operand multiplexers.
func (a *ALU) Operands(inst *insts.Instruction, rs1, rs2, pc uint64) (uint64, uint64) {
	var opA, opB uint64

	switch inst.PortA {
	case insts.PortARS1:
		opA = rs1
	case insts.PortAPC:
		opA = pc
	case insts.PortAImm:
		opA = uint64(inst.DatapathImm())
	}

	switch inst.PortB {
	case insts.PortBRS2:
		opB = rs2
	case insts.PortBImm:
		opB = uint64(inst.DatapathImm())
	}

	return opA, opB
}

// Compute performs op on two operands. Word operations compute on the low 32
// bits and sign-extend the result.
func (a *ALU) Compute(op insts.ALUOp, opA, opB uint64, word bool) uint64 {
	if word {
		return a.mask(uint64(int64(int32(compute32(op, uint32(opA), uint32(opB))))))
	}
	if a.xlen == 32 {
		return uint64(compute32(op, uint32(opA), uint32(opB)))
	}

	shamt := opB & 63
	switch op {
	case insts.ALUAdd:
		return opA + opB
	case insts.ALUSub:
		return opA - opB
	case insts.ALUSll:
		return opA << shamt
	case insts.ALUSrl:
		return opA >> shamt
	case insts.ALUSra:
		return uint64(int64(opA) >> shamt)
	case insts.ALUAnd:
		return opA & opB
	case insts.ALUOr:
		return opA | opB
	case insts.ALUXor:
		return opA ^ opB
	case insts.ALUSlt:
		return boolToUint(int64(opA) < int64(opB))
	case insts.ALUSltu:
		return boolToUint(opA < opB)
	case insts.ALUBypass:
		return opA
	}
	return 0
}

func compute32(op insts.ALUOp, opA, opB uint32) uint32 {
	shamt := opB & 31
	switch op {
	case insts.ALUAdd:
		return opA + opB
	case insts.ALUSub:
		return opA - opB
	case insts.ALUSll:
		return opA << shamt
	case insts.ALUSrl:
		return opA >> shamt
	case insts.ALUSra:
		return uint32(int32(opA) >> shamt)
	case insts.ALUAnd:
		return opA & opB
	case insts.ALUOr:
		return opA | opB
	case insts.ALUXor:
		return opA ^ opB
	case insts.ALUSlt:
		return uint32(boolToUint(int32(opA) < int32(opB)))
	case insts.ALUSltu:
		return uint32(boolToUint(opA < opB))
	case insts.ALUBypass:
		return opA
	}
	return 0
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Execute runs an ALU-class or control-flow instruction. rs1 and rs2 are the
// source operand values and pc is the instruction's address.
func (a *ALU) Execute(inst *insts.Instruction, rs1, rs2, pc uint64) ALUResult {
	opA, opB := a.Operands(inst, rs1, rs2, pc)
	result := ALUResult{Value: a.mask(a.Compute(inst.ALUOp, opA, opB, inst.Word))}

	switch inst.TargetBase {
	case insts.TargetPC:
		result.Target = a.mask(pc + uint64(inst.Offset))
	case insts.TargetRS1:
		result.Target = a.mask(rs1+uint64(inst.Offset)) &^ 1
	default:
		return result
	}

	if inst.IsConditional() {
		result.Redirect = a.EvaluateBranch(inst.Cond, rs1, rs2)
	} else {
		result.Redirect = true
	}
	return result
}
