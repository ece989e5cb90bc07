package pipeline

import (
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/rename"
)

// FetchedInstruction is an instruction word on its way from fetch to
// rename.
type FetchedInstruction struct {
	Word insts.InstructionWord

	// Tag is the program-order tag assigned at fetch.
	Tag uint64

	// Epoch is the speculation epoch current when the word was fetched.
	Epoch uint64

	// OpensEpoch is the epoch opened by a control-flow instruction, or 0.
	OpensEpoch uint64

	// PredictedNext is the address fetch continued from after this word.
	PredictedNext uint64

	// Inst and Fault are filled in by the decode stage.
	Inst  *insts.Instruction
	Fault error
}

// PhysOperand names a physical register of one class.
type PhysOperand struct {
	Class insts.RegClass
	Reg   rename.PhysReg
}

// Valid reports whether the operand is present.
func (o PhysOperand) Valid() bool {
	return o.Class != insts.RegNone
}

// MicroOp is a renamed instruction.
type MicroOp struct {
	Inst  *insts.Instruction
	Fault error

	Tag           uint64
	Epoch         uint64
	OpensEpoch    uint64
	PredictedNext uint64

	// Srcs are the physical sources of rs1, rs2 and rs3.
	Srcs [3]PhysOperand

	// Dest is the newly allocated destination and Displaced the register
	// it replaces in the map table.
	Dest      PhysOperand
	Displaced rename.PhysReg
}

// Flushed reports whether a flush of epochs at or after epoch removes the
// micro-op.
func (u *MicroOp) Flushed(epoch uint64) bool {
	return u.Epoch >= epoch
}

// Exit describes a halt requested by a retiring instruction.
type Exit struct {
	Code int64
	Err  error
}

// ExecutionResult is produced by a functional unit for one micro-op.
type ExecutionResult struct {
	Tag   uint64
	Dest  PhysOperand
	Value uint64

	// NextPC is the resolved address of the next instruction.
	NextPC uint64

	// Mispredicted is set when NextPC differs from the address fetch
	// continued from.
	Mispredicted bool

	// Exit is set by instructions that halt the core when they retire.
	Exit *Exit
}

// Status is the completion state of a reorder buffer entry.
type Status uint8

// Entry states.
const (
	StatusPending Status = iota
	StatusCompleted
)

// ROBEntry is one reorder buffer slot.
type ROBEntry struct {
	Uop    *MicroOp
	Status Status
	Result ExecutionResult
}
