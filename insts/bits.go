package insts

// Major opcodes of the 32-bit encoding space (bits [6:0]).
const (
	OpcodeLoad     uint32 = 0x03
	OpcodeLoadFP   uint32 = 0x07
	OpcodeMiscMem  uint32 = 0x0F
	OpcodeOpImm    uint32 = 0x13
	OpcodeAUIPC    uint32 = 0x17
	OpcodeOpImm32  uint32 = 0x1B
	OpcodeStore    uint32 = 0x23
	OpcodeStoreFP  uint32 = 0x27
	OpcodeAMO      uint32 = 0x2F
	OpcodeOp       uint32 = 0x33
	OpcodeLUI      uint32 = 0x37
	OpcodeOp32     uint32 = 0x3B
	OpcodeMAdd     uint32 = 0x43
	OpcodeMSub     uint32 = 0x47
	OpcodeNMSub    uint32 = 0x4B
	OpcodeNMAdd    uint32 = 0x4F
	OpcodeOpFP     uint32 = 0x53
	OpcodeOpV      uint32 = 0x57
	OpcodeBranch   uint32 = 0x63
	OpcodeJALR     uint32 = 0x67
	OpcodeJAL      uint32 = 0x6F
	OpcodeSystem   uint32 = 0x73
	compressedMask uint32 = 0b11
)

// field extracts bits [hi:lo] of inst.
func field(inst uint32, hi, lo uint) uint32 {
	return (inst >> lo) & (1<<(hi-lo+1) - 1)
}

func bit(inst uint32, n uint) uint32 {
	return (inst >> n) & 1
}

// signExtend interprets the low width bits of v as a two's complement value.
func signExtend(v uint64, width uint) int64 {
	shift := 64 - width
	return int64(v<<shift) >> shift
}

func opcode(inst uint32) uint32 { return inst & 0x7F }
func rd(inst uint32) uint8      { return uint8(field(inst, 11, 7)) }
func funct3(inst uint32) uint32 { return field(inst, 14, 12) }
func rs1(inst uint32) uint8     { return uint8(field(inst, 19, 15)) }
func rs2(inst uint32) uint8     { return uint8(field(inst, 24, 20)) }
func rs3(inst uint32) uint8     { return uint8(field(inst, 31, 27)) }
func funct7(inst uint32) uint32 { return field(inst, 31, 25) }

func immI(inst uint32) int64 {
	return signExtend(uint64(inst>>20), 12)
}

func immS(inst uint32) int64 {
	v := field(inst, 31, 25)<<5 | field(inst, 11, 7)
	return signExtend(uint64(v), 12)
}

func immB(inst uint32) int64 {
	v := bit(inst, 31)<<12 | bit(inst, 7)<<11 | field(inst, 30, 25)<<5 | field(inst, 11, 8)<<1
	return signExtend(uint64(v), 13)
}

// immU is the upper immediate already shifted into place. It is not
// sign-extended.
func immU(inst uint32) int64 {
	return int64(inst & 0xFFFFF000)
}

func immJ(inst uint32) int64 {
	v := bit(inst, 31)<<20 | field(inst, 19, 12)<<12 | bit(inst, 20)<<11 | field(inst, 30, 21)<<1
	return signExtend(uint64(v), 21)
}
