// Package insts provides RISC-V instruction definitions and decoding.
//
// This package decodes RV32/RV64 machine code into structured instruction
// records. It supports:
//   - Base integer ISA: LUI, AUIPC, JAL, JALR, branches, loads, stores,
//     OP-IMM(-32), OP(-32), FENCE, SYSTEM and CSR instructions
//   - M, A, F and D extensions
//   - C (compressed) extension, all three quadrants
//   - V extension: configuration, arithmetic and vector loads/stores
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x00A00293, 0x1000) // addi x5, x0, 10
//	fmt.Printf("%s rd=%v imm=%d\n", inst.Mnemonic, inst.Rd, inst.Imm)
package insts

import "fmt"

// Class is the operation class of a decoded instruction. Execution
// dispatches on the class.
type Class uint8

// Operation classes.
const (
	ClassUnknown Class = iota
	ClassALU
	ClassBranch
	ClassLoad
	ClassStore
	ClassMDU
	ClassCSR
	ClassFPU
	ClassVector
	ClassSystem
)

var classNames = [...]string{
	ClassUnknown: "UNKNOWN",
	ClassALU:     "ALU",
	ClassBranch:  "BRANCH",
	ClassLoad:    "LOAD",
	ClassStore:   "STORE",
	ClassMDU:     "MDU",
	ClassCSR:     "CSR",
	ClassFPU:     "FPU",
	ClassVector:  "VECTOR",
	ClassSystem:  "SYSTEM",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// Op represents a RISC-V operation.
type Op uint16

// RISC-V operations. Floating-point and vector instructions share OpFPU and
// OpVector; their exact form is kept in the mnemonic.
const (
	OpUnknown Op = iota

	OpLUI
	OpAUIPC
	OpJAL
	OpJALR

	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU

	OpSB
	OpSH
	OpSW
	OpSD

	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW

	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	OpLR
	OpSC
	OpAMOSWAP
	OpAMOADD
	OpAMOXOR
	OpAMOAND
	OpAMOOR
	OpAMOMIN
	OpAMOMAX
	OpAMOMINU
	OpAMOMAXU

	OpFENCE
	OpFENCEI
	OpFENCETSO
	OpECALL
	OpEBREAK
	OpMRET
	OpSRET
	OpWFI

	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	OpFPU
	OpVector
)

var opNames = map[Op]string{
	OpUnknown: "unknown",
	OpLUI:     "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLD: "ld", OpLBU: "lbu", OpLHU: "lhu", OpLWU: "lwu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw", OpSD: "sd",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori", OpORI: "ori",
	OpANDI: "andi", OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
	OpADDIW: "addiw", OpSLLIW: "slliw", OpSRLIW: "srliw", OpSRAIW: "sraiw",
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu", OpXOR: "xor",
	OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpADDW: "addw", OpSUBW: "subw", OpSLLW: "sllw", OpSRLW: "srlw", OpSRAW: "sraw",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpMULW: "mulw", OpDIVW: "divw", OpDIVUW: "divuw", OpREMW: "remw", OpREMUW: "remuw",
	OpLR: "lr", OpSC: "sc", OpAMOSWAP: "amoswap", OpAMOADD: "amoadd", OpAMOXOR: "amoxor",
	OpAMOAND: "amoand", OpAMOOR: "amoor", OpAMOMIN: "amomin", OpAMOMAX: "amomax",
	OpAMOMINU: "amominu", OpAMOMAXU: "amomaxu",
	OpFENCE: "fence", OpFENCEI: "fence.i", OpFENCETSO: "fence.tso",
	OpECALL: "ecall", OpEBREAK: "ebreak", OpMRET: "mret", OpSRET: "sret", OpWFI: "wfi",
	OpCSRRW: "csrrw", OpCSRRS: "csrrs", OpCSRRC: "csrrc",
	OpCSRRWI: "csrrwi", OpCSRRSI: "csrrsi", OpCSRRCI: "csrrci",
	OpFPU: "fp", OpVector: "vector",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint16(op))
}

// RegClass identifies a register file.
type RegClass uint8

// Register classes.
const (
	RegNone RegClass = iota
	RegInt
	RegFloat
	RegVector
)

func (c RegClass) String() string {
	switch c {
	case RegInt:
		return "int"
	case RegFloat:
		return "float"
	case RegVector:
		return "vector"
	}
	return "none"
}

// NumRegClasses is the number of register files that take part in renaming.
const NumRegClasses = 3

// Index returns the zero-based index of a real register class (int, float,
// vector).
func (c RegClass) Index() int {
	return int(c) - 1
}

// Reg is an architectural register operand.
type Reg struct {
	Class RegClass
	Num   uint8
}

// X returns integer register n.
func X(n uint8) Reg { return Reg{Class: RegInt, Num: n} }

// F returns floating-point register n.
func F(n uint8) Reg { return Reg{Class: RegFloat, Num: n} }

// V returns vector register n.
func V(n uint8) Reg { return Reg{Class: RegVector, Num: n} }

// Valid reports whether the operand is present.
func (r Reg) Valid() bool { return r.Class != RegNone }

// IsZero reports whether the operand is the hard-wired integer zero register.
func (r Reg) IsZero() bool { return r.Class == RegInt && r.Num == 0 }

func (r Reg) String() string {
	switch r.Class {
	case RegInt:
		return fmt.Sprintf("x%d", r.Num)
	case RegFloat:
		return fmt.Sprintf("f%d", r.Num)
	case RegVector:
		return fmt.Sprintf("v%d", r.Num)
	default:
		return "-"
	}
}

// PortA selects the ALU's first operand.
type PortA uint8

// Port A sources.
const (
	PortANone PortA = iota
	PortARS1
	PortAPC
	PortAImm
)

// PortB selects the ALU's second operand.
type PortB uint8

// Port B sources.
const (
	PortBZero PortB = iota
	PortBRS2
	PortBImm
)

// TargetBase selects the base of a control-flow redirect target.
type TargetBase uint8

// Redirect bases.
const (
	TargetNone TargetBase = iota
	TargetRS1
	TargetPC
)

// ALUOp is the operation performed by the ALU.
type ALUOp uint8

// ALU operations.
const (
	ALUAdd ALUOp = iota
	ALUSub
	ALUSll
	ALUSrl
	ALUSra
	ALUAnd
	ALUOr
	ALUXor
	ALUSlt
	ALUSltu
	ALUBypass
)

// BranchCond is a conditional branch comparison.
type BranchCond uint8

// Branch conditions, numbered by their funct3 encoding.
const (
	CondEQ  BranchCond = 0b000
	CondNE  BranchCond = 0b001
	CondLT  BranchCond = 0b100
	CondGE  BranchCond = 0b101
	CondLTU BranchCond = 0b110
	CondGEU BranchCond = 0b111
)

// MDUOp is a multiply/divide operation, numbered by its funct3 encoding.
type MDUOp uint8

// Multiply/divide operations.
const (
	MDUMul    MDUOp = 0b000
	MDUMulh   MDUOp = 0b001
	MDUMulhsu MDUOp = 0b010
	MDUMulhu  MDUOp = 0b011
	MDUDiv    MDUOp = 0b100
	MDUDivu   MDUOp = 0b101
	MDURem    MDUOp = 0b110
	MDURemu   MDUOp = 0b111
)

// IsDivide reports whether the operation belongs to the divide/remainder
// class.
func (op MDUOp) IsDivide() bool {
	return op >= MDUDiv
}

// VectorMode is the addressing mode of a vector memory access.
type VectorMode uint8

// Vector addressing modes, numbered by their mop encoding.
const (
	VecUnitStride       VectorMode = 0b00
	VecIndexedUnordered VectorMode = 0b01
	VecStrided          VectorMode = 0b10
	VecIndexedOrdered   VectorMode = 0b11
)

// VectorInfo holds vector-specific fields.
type VectorInfo struct {
	Masked   bool       // vm=0: operation is masked by v0
	Funct6   uint8      // arithmetic funct6
	Category uint8      // arithmetic funct3 (OPIVV..OPCFG)
	Mode     VectorMode // memory addressing mode
	EEW      uint16     // effective element width in bits
	Fields   uint8      // segment field count (nf+1)
	VType    uint32     // vtype immediate for vsetvli/vsetivli
}

// Syntax describes how the operands of an instruction are printed.
type Syntax uint8

// Operand syntaxes.
const (
	SyntaxNone    Syntax = iota
	SyntaxR              // rd, rs1, rs2
	SyntaxR2             // rd, rs1
	SyntaxR4             // rd, rs1, rs2, rs3
	SyntaxI              // rd, rs1, imm
	SyntaxShift          // rd, rs1, shamt
	SyntaxU              // rd, imm>>12
	SyntaxJ              // rd, offset
	SyntaxB              // rs1, rs2, offset
	SyntaxLoad           // rd, offset(rs1)
	SyntaxStore          // rs2, offset(rs1)
	SyntaxJALR           // rd, offset(rs1)
	SyntaxCSR            // rd, csr, rs1
	SyntaxCSRI           // rd, csr, uimm
	SyntaxAMO            // rd, rs2, (rs1)
	SyntaxLR             // rd, (rs1)
	SyntaxFence          // pred, succ
	SyntaxCustom         // pre-rendered operand text
)

// Instruction represents a decoded RISC-V instruction.
type Instruction struct {
	Op       Op
	Class    Class
	Mnemonic string
	Syntax   Syntax

	Raw     uint32 // raw encoding; compressed encodings occupy the low 16 bits
	Length  uint8  // 2 or 4 bytes
	Address uint64 // fetch address

	Rd  Reg
	Rs1 Reg
	Rs2 Reg
	Rs3 Reg

	Imm    int64 // operand immediate
	Offset int64 // control-flow or memory displacement

	PortA      PortA
	PortB      PortB
	TargetBase TargetBase

	ALUOp ALUOp
	Word  bool // 32-bit word variant, result sign-extended
	Cond  BranchCond
	MDUOp MDUOp

	MemWidth    uint8 // access size in bytes
	MemUnsigned bool  // zero-extend loaded value

	Aq bool
	Rl bool

	CSR uint16

	FPFormat     uint8 // 0=s 1=d 2=h 3=q
	RoundingMode uint8

	Vector VectorInfo

	operands string
}

// IsCompressed reports whether the instruction came from a 16-bit encoding.
func (inst *Instruction) IsCompressed() bool {
	return inst.Length == 2
}

// IsControlFlow reports whether the instruction may redirect the program
// counter.
func (inst *Instruction) IsControlFlow() bool {
	return inst.TargetBase != TargetNone
}

// IsConditional reports whether the instruction is a conditional branch.
func (inst *Instruction) IsConditional() bool {
	return inst.Class == ClassBranch && inst.Op != OpJAL && inst.Op != OpJALR
}

// WritesRd reports whether the instruction produces a register result that
// must be renamed. Writes to x0 are discarded.
func (inst *Instruction) WritesRd() bool {
	return inst.Rd.Valid() && !inst.Rd.IsZero()
}

// Sources returns the valid source operands in rs1, rs2, rs3 order.
func (inst *Instruction) Sources() []Reg {
	srcs := make([]Reg, 0, 3)
	for _, r := range [...]Reg{inst.Rs1, inst.Rs2, inst.Rs3} {
		if r.Valid() {
			srcs = append(srcs, r)
		}
	}
	return srcs
}

// IsAtomic reports whether the instruction is an LR/SC/AMO.
func (inst *Instruction) IsAtomic() bool {
	return inst.Op >= OpLR && inst.Op <= OpAMOMAXU
}

// IsSerializing reports whether younger instructions must be refetched after
// this one retires.
func (inst *Instruction) IsSerializing() bool {
	switch inst.Op {
	case OpECALL, OpFENCEI, OpMRET, OpSRET:
		return true
	}
	return false
}

// IsUnknown reports whether the instruction is the unknown-instruction
// sentinel.
func (inst *Instruction) IsUnknown() bool {
	return inst.Class == ClassUnknown
}
