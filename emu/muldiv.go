package emu

import (
	"github.com/holiman/uint256"

	"github.com/sarchlab/rvsim/insts"
)

// MulDiv implements the M extension. Division by zero and signed overflow
// produce the architecturally defined results; nothing here traps.
type MulDiv struct {
	alu *ALU
}

// NewMulDiv creates a multiply/divide unit for the given register width.
func NewMulDiv(xlen int) *MulDiv {
	return &MulDiv{alu: NewALU(xlen)}
}

// Execute runs an MDU-class instruction on the source values rs1 and rs2.
func (m *MulDiv) Execute(inst *insts.Instruction, rs1, rs2 uint64) uint64 {
	return m.Compute(inst.MDUOp, rs1, rs2, inst.Word)
}

// Compute performs op. Word forms operate on the low 32 bits and sign-extend
// the 32-bit result.
func (m *MulDiv) Compute(op insts.MDUOp, a, b uint64, word bool) uint64 {
	if word {
		return m.alu.mask(uint64(int64(int32(compute32MulDiv(op, uint32(a), uint32(b))))))
	}
	if m.alu.xlen == 32 {
		return uint64(compute32MulDiv(op, uint32(a), uint32(b)))
	}
	return compute64MulDiv(op, a, b)
}

func compute64MulDiv(op insts.MDUOp, a, b uint64) uint64 {
	switch op {
	case insts.MDUMul:
		return a * b
	case insts.MDUMulh:
		return mulHigh(int64(a), true, int64(b), true, 64)
	case insts.MDUMulhsu:
		return mulHigh(int64(a), true, int64(b), false, 64)
	case insts.MDUMulhu:
		return mulHigh(int64(a), false, int64(b), false, 64)
	}

	sa, sb := int64(a), int64(b)
	switch op {
	case insts.MDUDiv:
		switch {
		case b == 0:
			return ^uint64(0)
		case sa == minInt64 && sb == -1:
			return a
		}
		return uint64(sa / sb)
	case insts.MDUDivu:
		if b == 0 {
			return ^uint64(0)
		}
		return a / b
	case insts.MDURem:
		switch {
		case b == 0:
			return a
		case sa == minInt64 && sb == -1:
			return 0
		}
		return uint64(sa % sb)
	case insts.MDURemu:
		if b == 0 {
			return a
		}
		return a % b
	}
	return 0
}

const (
	minInt64 = -1 << 63
	minInt32 = -1 << 31
)

func compute32MulDiv(op insts.MDUOp, a, b uint32) uint32 {
	switch op {
	case insts.MDUMul:
		return a * b
	case insts.MDUMulh:
		return uint32(mulHigh(int64(int32(a)), true, int64(int32(b)), true, 32))
	case insts.MDUMulhsu:
		return uint32(mulHigh(int64(int32(a)), true, int64(b), false, 32))
	case insts.MDUMulhu:
		return uint32(mulHigh(int64(a), false, int64(b), false, 32))
	}

	sa, sb := int32(a), int32(b)
	switch op {
	case insts.MDUDiv:
		switch {
		case b == 0:
			return ^uint32(0)
		case sa == minInt32 && sb == -1:
			return a
		}
		return uint32(sa / sb)
	case insts.MDUDivu:
		if b == 0 {
			return ^uint32(0)
		}
		return a / b
	case insts.MDURem:
		switch {
		case b == 0:
			return a
		case sa == minInt32 && sb == -1:
			return 0
		}
		return uint32(sa % sb)
	case insts.MDURemu:
		if b == 0 {
			return a
		}
		return a % b
	}
	return 0
}

// operand256 widens v to 256 bits, sign-extending when signed is set and v
// is negative.
func operand256(v int64, signed bool) *uint256.Int {
	if !signed || v >= 0 {
		return uint256.NewInt(uint64(v))
	}
	z := uint256.NewInt(uint64(-v))
	return z.Neg(z)
}

// mulHigh returns the upper xlen bits of the 2*xlen-bit product of a and b.
// Operands narrower than 64 bits must already be sign- or zero-extended.
func mulHigh(a int64, aSigned bool, b int64, bSigned bool, xlen uint) uint64 {
	product := new(uint256.Int).Mul(operand256(a, aSigned), operand256(b, bSigned))
	return product.Rsh(product, xlen).Uint64()
}
