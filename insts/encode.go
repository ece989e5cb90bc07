package insts

// Encoders for the standard 32-bit formats. They are the inverse of the
// decoder's field extraction and are used to build test programs.

// EncodeR encodes an R-type instruction.
func EncodeR(opcode, funct3, funct7 uint32, rd, rs1, rs2 uint8) uint32 {
	return funct7<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		funct3<<12 | uint32(rd&0x1F)<<7 | opcode
}

// EncodeI encodes an I-type instruction. imm must fit in 12 signed bits.
func EncodeI(opcode, funct3 uint32, rd, rs1 uint8, imm int64) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1&0x1F)<<15 |
		funct3<<12 | uint32(rd&0x1F)<<7 | opcode
}

// EncodeS encodes an S-type instruction.
func EncodeS(opcode, funct3 uint32, rs1, rs2 uint8, imm int64) uint32 {
	u := uint32(imm)
	return field(u, 11, 5)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		funct3<<12 | field(u, 4, 0)<<7 | opcode
}

// EncodeB encodes a conditional branch. imm is the byte offset and must be
// even.
func EncodeB(cond BranchCond, rs1, rs2 uint8, imm int64) uint32 {
	u := uint32(imm)
	return bit(u, 12)<<31 | field(u, 10, 5)<<25 | uint32(rs2&0x1F)<<20 |
		uint32(rs1&0x1F)<<15 | uint32(cond)<<12 | field(u, 4, 1)<<8 |
		bit(u, 11)<<7 | OpcodeBranch
}

// EncodeU encodes LUI or AUIPC. imm is the already-shifted upper immediate.
func EncodeU(opcode uint32, rd uint8, imm int64) uint32 {
	return uint32(imm)&0xFFFFF000 | uint32(rd&0x1F)<<7 | opcode
}

// EncodeJ encodes JAL. imm is the byte offset and must be even.
func EncodeJ(rd uint8, imm int64) uint32 {
	u := uint32(imm)
	return bit(u, 20)<<31 | field(u, 10, 1)<<21 | bit(u, 11)<<20 |
		field(u, 19, 12)<<12 | uint32(rd&0x1F)<<7 | OpcodeJAL
}

// Convenience encoders for common instructions.

// ADDI encodes addi rd, rs1, imm.
func ADDI(rd, rs1 uint8, imm int64) uint32 { return EncodeI(OpcodeOpImm, 0, rd, rs1, imm) }

// ADD encodes add rd, rs1, rs2.
func ADD(rd, rs1, rs2 uint8) uint32 { return EncodeR(OpcodeOp, 0, 0, rd, rs1, rs2) }

// SUB encodes sub rd, rs1, rs2.
func SUB(rd, rs1, rs2 uint8) uint32 { return EncodeR(OpcodeOp, 0, 0x20, rd, rs1, rs2) }

// MUL encodes a multiply/divide operation.
func MUL(op MDUOp, rd, rs1, rs2 uint8) uint32 {
	return EncodeR(OpcodeOp, uint32(op), 0x01, rd, rs1, rs2)
}

// LD encodes ld rd, imm(rs1).
func LD(rd, rs1 uint8, imm int64) uint32 { return EncodeI(OpcodeLoad, 3, rd, rs1, imm) }

// SD encodes sd rs2, imm(rs1).
func SD(rs2, rs1 uint8, imm int64) uint32 { return EncodeS(OpcodeStore, 3, rs1, rs2, imm) }

// JALR encodes jalr rd, imm(rs1).
func JALR(rd, rs1 uint8, imm int64) uint32 { return EncodeI(OpcodeJALR, 0, rd, rs1, imm) }

// ECALL encodes ecall.
func ECALL() uint32 { return OpcodeSystem }

// EBREAK encodes ebreak.
func EBREAK() uint32 { return 1<<20 | OpcodeSystem }
