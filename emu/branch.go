package emu

import "github.com/sarchlab/rvsim/insts"

// EvaluateBranch reports whether a conditional branch with condition cond is
// taken for the source values rs1 and rs2.
func (a *ALU) EvaluateBranch(cond insts.BranchCond, rs1, rs2 uint64) bool {
	rs1, rs2 = a.mask(rs1), a.mask(rs2)

	switch cond {
	case insts.CondEQ:
		return rs1 == rs2
	case insts.CondNE:
		return rs1 != rs2
	case insts.CondLT:
		return a.signed(rs1) < a.signed(rs2)
	case insts.CondGE:
		return a.signed(rs1) >= a.signed(rs2)
	case insts.CondLTU:
		return rs1 < rs2
	case insts.CondGEU:
		return rs1 >= rs2
	}
	return false
}
