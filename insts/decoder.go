package insts

import (
	"errors"
	"fmt"
)

// ErrDecodeFault is wrapped by every DecodeFault.
var ErrDecodeFault = errors.New("decode fault")

// DecodeFault reports an encoding that belongs to a known instruction family
// but violates one of its structural constraints. Such an instruction must
// not execute.
type DecodeFault struct {
	Raw     uint32
	Address uint64
	Reason  string
}

func (f *DecodeFault) Error() string {
	return fmt.Sprintf("decode fault at 0x%08x (0x%08x): %s", f.Address, f.Raw, f.Reason)
}

// Unwrap returns ErrDecodeFault.
func (f *DecodeFault) Unwrap() error {
	return ErrDecodeFault
}

// Decoder decodes RISC-V machine code.
type Decoder struct {
	xlen int
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithXLEN sets the register width (32 or 64). It selects between the RV32
// and RV64 interpretation of XLEN-dependent encodings.
func WithXLEN(xlen int) DecoderOption {
	return func(d *Decoder) {
		d.xlen = xlen
	}
}

// NewDecoder creates a new RV64 decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{xlen: 64}
	for _, opt := range opts {
		opt(d)
	}
	if d.xlen != 32 {
		d.xlen = 64
	}
	return d
}

// XLEN returns the configured register width.
func (d *Decoder) XLEN() int {
	return d.xlen
}

func (d *Decoder) rv64() bool {
	return d.xlen == 64
}

// InstructionLength returns the encoded length in bytes implied by the low
// bits of an instruction.
func InstructionLength(bits uint32) uint8 {
	if bits&compressedMask != compressedMask {
		return 2
	}
	return 4
}

// InstructionWord is a fetched encoding with its length and address.
type InstructionWord struct {
	Bits    uint32
	Length  uint8
	Address uint64
}

// NewInstructionWord builds the word fetched at addr. The upper halfword of
// a compressed encoding is dropped.
func NewInstructionWord(bits uint32, addr uint64) InstructionWord {
	length := InstructionLength(bits)
	if length == 2 {
		bits &= 0xFFFF
	}
	return InstructionWord{Bits: bits, Length: length, Address: addr}
}

// DecodeWord decodes a fetched instruction word.
func (d *Decoder) DecodeWord(w InstructionWord) (*Instruction, error) {
	return d.Decode(w.Bits, w.Address)
}

// Decode decodes the instruction whose encoding starts with bits and which
// was fetched from addr. Only the low 16 bits are consulted for compressed
// encodings.
//
// Encodings that match no known family decode to an instruction of class
// ClassUnknown with a nil error. Malformed encodings of a known family
// return a *DecodeFault.
func (d *Decoder) Decode(bits uint32, addr uint64) (*Instruction, error) {
	if InstructionLength(bits) == 2 {
		return d.decodeCompressed(uint16(bits), addr)
	}

	inst := &Instruction{Raw: bits, Length: 4, Address: addr}

	var err error
	switch opcode(bits) {
	case OpcodeLUI, OpcodeAUIPC:
		d.decodeUpper(inst)
	case OpcodeJAL:
		d.decodeJAL(inst)
	case OpcodeJALR:
		err = d.decodeJALR(inst)
	case OpcodeBranch:
		d.decodeBranch(inst)
	case OpcodeLoad:
		err = d.decodeLoad(inst)
	case OpcodeStore:
		d.decodeStore(inst)
	case OpcodeOpImm:
		err = d.decodeOpImm(inst)
	case OpcodeOpImm32:
		err = d.decodeOpImm32(inst)
	case OpcodeOp:
		d.decodeOp(inst)
	case OpcodeOp32:
		d.decodeOp32(inst)
	case OpcodeMiscMem:
		d.decodeMiscMem(inst)
	case OpcodeSystem:
		d.decodeSystem(inst)
	case OpcodeAMO:
		err = d.decodeAMO(inst)
	case OpcodeLoadFP, OpcodeStoreFP:
		err = d.decodeFPMemory(inst)
	case OpcodeMAdd, OpcodeMSub, OpcodeNMSub, OpcodeNMAdd:
		d.decodeFMA(inst)
	case OpcodeOpFP:
		d.decodeOpFP(inst)
	case OpcodeOpV:
		err = d.decodeOpV(inst)
	}

	return inst, err
}

func fault(inst *Instruction, format string, args ...any) error {
	return &DecodeFault{
		Raw:     inst.Raw,
		Address: inst.Address,
		Reason:  fmt.Sprintf(format, args...),
	}
}

// setUnknown turns inst into the unknown-instruction sentinel.
func setUnknown(inst *Instruction) {
	*inst = Instruction{Raw: inst.Raw, Length: inst.Length, Address: inst.Address}
}

func (inst *Instruction) setALU(op Op, aluOp ALUOp, syntax Syntax) {
	inst.Op = op
	inst.Class = ClassALU
	inst.ALUOp = aluOp
	inst.Mnemonic = op.String()
	inst.Syntax = syntax
}

func (d *Decoder) decodeUpper(inst *Instruction) {
	bits := inst.Raw
	inst.Rd = X(rd(bits))
	inst.Imm = immU(bits)

	if opcode(bits) == OpcodeLUI {
		inst.setALU(OpLUI, ALUBypass, SyntaxU)
		inst.PortA = PortAImm
		inst.PortB = PortBZero
		return
	}

	inst.setALU(OpAUIPC, ALUAdd, SyntaxU)
	inst.PortA = PortAPC
	inst.PortB = PortBImm
}

// Jumps write the link address PC+length through the ALU and redirect to
// base+offset.
func (inst *Instruction) setLink(op Op, base TargetBase) {
	inst.Op = op
	inst.Class = ClassBranch
	inst.Mnemonic = op.String()
	inst.ALUOp = ALUAdd
	inst.PortA = PortAPC
	inst.PortB = PortBImm
	inst.Imm = int64(inst.Length)
	inst.TargetBase = base
}

func (d *Decoder) decodeJAL(inst *Instruction) {
	inst.Rd = X(rd(inst.Raw))
	inst.Offset = immJ(inst.Raw)
	inst.setLink(OpJAL, TargetPC)
	inst.Syntax = SyntaxJ
}

func (d *Decoder) decodeJALR(inst *Instruction) error {
	bits := inst.Raw
	inst.Rd = X(rd(bits))
	inst.Rs1 = X(rs1(bits))
	inst.Offset = immI(bits)
	inst.setLink(OpJALR, TargetRS1)
	inst.Syntax = SyntaxJALR

	if funct3(bits) != 0 {
		return fault(inst, "jalr funct3 %d is reserved", funct3(bits))
	}
	return nil
}

var branchOps = map[uint32]Op{
	0b000: OpBEQ, 0b001: OpBNE, 0b100: OpBLT,
	0b101: OpBGE, 0b110: OpBLTU, 0b111: OpBGEU,
}

func (d *Decoder) decodeBranch(inst *Instruction) {
	bits := inst.Raw
	op, ok := branchOps[funct3(bits)]
	if !ok {
		return
	}

	inst.Op = op
	inst.Class = ClassBranch
	inst.Mnemonic = op.String()
	inst.Syntax = SyntaxB
	inst.Cond = BranchCond(funct3(bits))
	inst.Rs1 = X(rs1(bits))
	inst.Rs2 = X(rs2(bits))
	inst.Offset = immB(bits)
	inst.PortA = PortARS1
	inst.PortB = PortBRS2
	inst.ALUOp = ALUSub
	inst.TargetBase = TargetPC
}

type memOp struct {
	op       Op
	width    uint8
	unsigned bool
	rv64     bool
}

var loadOps = map[uint32]memOp{
	0b000: {OpLB, 1, false, false},
	0b001: {OpLH, 2, false, false},
	0b010: {OpLW, 4, false, false},
	0b011: {OpLD, 8, false, true},
	0b100: {OpLBU, 1, true, false},
	0b101: {OpLHU, 2, true, false},
	0b110: {OpLWU, 4, true, true},
}

var storeOps = map[uint32]memOp{
	0b000: {OpSB, 1, false, false},
	0b001: {OpSH, 2, false, false},
	0b010: {OpSW, 4, false, false},
	0b011: {OpSD, 8, false, true},
}

func (inst *Instruction) setMemory(class Class, m memOp, offset int64) {
	inst.Op = m.op
	inst.Class = class
	inst.Mnemonic = m.op.String()
	inst.MemWidth = m.width
	inst.MemUnsigned = m.unsigned
	inst.Offset = offset
	inst.Imm = offset
	inst.PortA = PortARS1
	inst.PortB = PortBImm
	inst.ALUOp = ALUAdd
}

func (d *Decoder) decodeLoad(inst *Instruction) error {
	bits := inst.Raw
	if funct3(bits) == 0b111 {
		return fault(inst, "load width 7 is reserved")
	}

	m := loadOps[funct3(bits)]
	if m.rv64 && !d.rv64() {
		return nil
	}

	inst.Rd = X(rd(bits))
	inst.Rs1 = X(rs1(bits))
	inst.setMemory(ClassLoad, m, immI(bits))
	inst.Syntax = SyntaxLoad
	return nil
}

func (d *Decoder) decodeStore(inst *Instruction) {
	bits := inst.Raw
	m, ok := storeOps[funct3(bits)]
	if !ok || (m.rv64 && !d.rv64()) {
		return
	}

	inst.Rs1 = X(rs1(bits))
	inst.Rs2 = X(rs2(bits))
	inst.setMemory(ClassStore, m, immS(bits))
	inst.Syntax = SyntaxStore
}

func (d *Decoder) decodeOpImm(inst *Instruction) error {
	bits := inst.Raw
	inst.Rd = X(rd(bits))
	inst.Rs1 = X(rs1(bits))
	inst.PortA = PortARS1
	inst.PortB = PortBImm
	inst.Imm = immI(bits)

	switch funct3(bits) {
	case 0b000:
		inst.setALU(OpADDI, ALUAdd, SyntaxI)
	case 0b010:
		inst.setALU(OpSLTI, ALUSlt, SyntaxI)
	case 0b011:
		inst.setALU(OpSLTIU, ALUSltu, SyntaxI)
	case 0b100:
		inst.setALU(OpXORI, ALUXor, SyntaxI)
	case 0b110:
		inst.setALU(OpORI, ALUOr, SyntaxI)
	case 0b111:
		inst.setALU(OpANDI, ALUAnd, SyntaxI)
	case 0b001, 0b101:
		return d.decodeShiftImm(inst)
	}
	return nil
}

// decodeShiftImm handles slli/srli/srai. Bit 30 selects the arithmetic
// shift; every other bit above the shift amount is reserved.
func (d *Decoder) decodeShiftImm(inst *Instruction) error {
	bits := inst.Raw
	shamtBits := uint(5)
	if d.rv64() {
		shamtBits = 6
	}
	inst.Imm = int64(field(bits, 20+shamtBits-1, 20))

	reserved := field(bits, 31, 20+shamtBits) &^ (1 << (30 - 20 - shamtBits))
	arith := bit(bits, 30) == 1

	switch {
	case funct3(bits) == 0b001:
		inst.setALU(OpSLLI, ALUSll, SyntaxShift)
		reserved = field(bits, 31, 20+shamtBits)
	case arith:
		inst.setALU(OpSRAI, ALUSra, SyntaxShift)
	default:
		inst.setALU(OpSRLI, ALUSrl, SyntaxShift)
	}

	if reserved != 0 {
		return fault(inst, "%s has non-zero reserved bits", inst.Mnemonic)
	}
	return nil
}

func (d *Decoder) decodeOpImm32(inst *Instruction) error {
	if !d.rv64() {
		return nil
	}

	bits := inst.Raw
	inst.Rd = X(rd(bits))
	inst.Rs1 = X(rs1(bits))
	inst.PortA = PortARS1
	inst.PortB = PortBImm
	inst.Word = true

	switch funct3(bits) {
	case 0b000:
		inst.Imm = immI(bits)
		inst.setALU(OpADDIW, ALUAdd, SyntaxI)
		return nil
	case 0b001:
		inst.Imm = int64(field(bits, 24, 20))
		inst.setALU(OpSLLIW, ALUSll, SyntaxShift)
		if funct7(bits) != 0 {
			return fault(inst, "slliw has non-zero reserved bits")
		}
		return nil
	case 0b101:
		inst.Imm = int64(field(bits, 24, 20))
		if bit(bits, 30) == 1 {
			inst.setALU(OpSRAIW, ALUSra, SyntaxShift)
		} else {
			inst.setALU(OpSRLIW, ALUSrl, SyntaxShift)
		}
		if funct7(bits)&^0x20 != 0 {
			return fault(inst, "%s has non-zero reserved bits", inst.Mnemonic)
		}
		return nil
	}

	return fault(inst, "OP-IMM-32 funct3 %d is reserved", funct3(bits))
}

type rOp struct {
	op    Op
	aluOp ALUOp
}

// OP encodings keyed by funct7<<3 | funct3.
var opRegOps = map[uint32]rOp{
	0x00<<3 | 0b000: {OpADD, ALUAdd},
	0x20<<3 | 0b000: {OpSUB, ALUSub},
	0x00<<3 | 0b001: {OpSLL, ALUSll},
	0x00<<3 | 0b010: {OpSLT, ALUSlt},
	0x00<<3 | 0b011: {OpSLTU, ALUSltu},
	0x00<<3 | 0b100: {OpXOR, ALUXor},
	0x00<<3 | 0b101: {OpSRL, ALUSrl},
	0x20<<3 | 0b101: {OpSRA, ALUSra},
	0x00<<3 | 0b110: {OpOR, ALUOr},
	0x00<<3 | 0b111: {OpAND, ALUAnd},
}

var op32RegOps = map[uint32]rOp{
	0x00<<3 | 0b000: {OpADDW, ALUAdd},
	0x20<<3 | 0b000: {OpSUBW, ALUSub},
	0x00<<3 | 0b001: {OpSLLW, ALUSll},
	0x00<<3 | 0b101: {OpSRLW, ALUSrl},
	0x20<<3 | 0b101: {OpSRAW, ALUSra},
}

var mduOps = [8]Op{OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU}

var mduWordOps = map[uint32]Op{
	0b000: OpMULW, 0b100: OpDIVW, 0b101: OpDIVUW, 0b110: OpREMW, 0b111: OpREMUW,
}

func (inst *Instruction) setRegisterOperands() {
	bits := inst.Raw
	inst.Rd = X(rd(bits))
	inst.Rs1 = X(rs1(bits))
	inst.Rs2 = X(rs2(bits))
	inst.PortA = PortARS1
	inst.PortB = PortBRS2
	inst.Syntax = SyntaxR
}

func (inst *Instruction) setMDU(op Op) {
	inst.Op = op
	inst.Class = ClassMDU
	inst.MDUOp = MDUOp(funct3(inst.Raw))
	inst.Mnemonic = op.String()
}

func (d *Decoder) decodeOp(inst *Instruction) {
	bits := inst.Raw
	if funct7(bits) == 0x01 {
		inst.setRegisterOperands()
		inst.setMDU(mduOps[funct3(bits)])
		return
	}

	r, ok := opRegOps[funct7(bits)<<3|funct3(bits)]
	if !ok {
		return
	}
	inst.setRegisterOperands()
	inst.setALU(r.op, r.aluOp, SyntaxR)
}

func (d *Decoder) decodeOp32(inst *Instruction) {
	if !d.rv64() {
		return
	}

	bits := inst.Raw
	if funct7(bits) == 0x01 {
		op, ok := mduWordOps[funct3(bits)]
		if !ok {
			return
		}
		inst.setRegisterOperands()
		inst.setMDU(op)
		inst.Word = true
		return
	}

	r, ok := op32RegOps[funct7(bits)<<3|funct3(bits)]
	if !ok {
		return
	}
	inst.setRegisterOperands()
	inst.setALU(r.op, r.aluOp, SyntaxR)
	inst.Word = true
}

func (inst *Instruction) setSystem(op Op, syntax Syntax) {
	inst.Op = op
	inst.Class = ClassSystem
	inst.Mnemonic = op.String()
	inst.Syntax = syntax
}

func (d *Decoder) decodeMiscMem(inst *Instruction) {
	bits := inst.Raw
	switch funct3(bits) {
	case 0b000:
		inst.Imm = int64(field(bits, 27, 20))
		if field(bits, 31, 28) == 0b1000 && field(bits, 27, 20) == 0x33 {
			inst.setSystem(OpFENCETSO, SyntaxNone)
			return
		}
		inst.setSystem(OpFENCE, SyntaxFence)
	case 0b001:
		inst.setSystem(OpFENCEI, SyntaxNone)
	}
}

var privilegedOps = map[uint32]Op{
	0x00000073: OpECALL,
	0x00100073: OpEBREAK,
	0x30200073: OpMRET,
	0x10200073: OpSRET,
	0x10500073: OpWFI,
}

var csrOps = [8]Op{0, OpCSRRW, OpCSRRS, OpCSRRC, 0, OpCSRRWI, OpCSRRSI, OpCSRRCI}

func (d *Decoder) decodeSystem(inst *Instruction) {
	bits := inst.Raw
	f3 := funct3(bits)

	if f3 == 0 {
		if op, ok := privilegedOps[bits]; ok {
			inst.setSystem(op, SyntaxNone)
		}
		return
	}

	op := csrOps[f3]
	if op == 0 {
		return
	}

	inst.Op = op
	inst.Class = ClassCSR
	inst.Mnemonic = op.String()
	inst.Rd = X(rd(bits))
	inst.CSR = uint16(field(bits, 31, 20))

	if f3 >= 0b101 {
		inst.Imm = int64(rs1(bits))
		inst.Syntax = SyntaxCSRI
		return
	}
	inst.Rs1 = X(rs1(bits))
	inst.Syntax = SyntaxCSR
}

var amoOps = map[uint32]Op{
	0b00010: OpLR,
	0b00011: OpSC,
	0b00001: OpAMOSWAP,
	0b00000: OpAMOADD,
	0b00100: OpAMOXOR,
	0b01100: OpAMOAND,
	0b01000: OpAMOOR,
	0b10000: OpAMOMIN,
	0b10100: OpAMOMAX,
	0b11000: OpAMOMINU,
	0b11100: OpAMOMAXU,
}

// orderingSuffix composes the acquire/release suffix. Each flag contributes
// independently.
func orderingSuffix(aq, rl bool) string {
	s := ""
	if aq {
		s += "aq"
	}
	if rl {
		s += "rl"
	}
	if s == "" {
		return ""
	}
	return "." + s
}

func (d *Decoder) decodeAMO(inst *Instruction) error {
	bits := inst.Raw

	var width uint8
	switch funct3(bits) {
	case 0b010:
		width = 4
	case 0b011:
		if !d.rv64() {
			return nil
		}
		width = 8
	default:
		return nil
	}

	op, ok := amoOps[field(bits, 31, 27)]
	if !ok {
		return nil
	}

	inst.Op = op
	inst.Class = ClassStore
	inst.Rd = X(rd(bits))
	inst.Rs1 = X(rs1(bits))
	inst.MemWidth = width
	inst.Aq = bit(bits, 26) == 1
	inst.Rl = bit(bits, 25) == 1
	inst.PortA = PortARS1
	inst.PortB = PortBZero
	inst.Syntax = SyntaxAMO

	suffix := ".w"
	if width == 8 {
		suffix = ".d"
	}
	inst.Mnemonic = op.String() + suffix + orderingSuffix(inst.Aq, inst.Rl)

	if op == OpLR {
		inst.Class = ClassLoad
		inst.Syntax = SyntaxLR
		if rs2(bits) != 0 {
			return fault(inst, "lr with non-zero rs2")
		}
		return nil
	}

	inst.Rs2 = X(rs2(bits))
	return nil
}
