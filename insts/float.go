package insts

// F/D (and Zfh/Q format) decoding. Floating-point execution is not modeled;
// these instructions decode into ClassFPU and run on the extension unit.

var fpFormatSuffix = [4]string{"s", "d", "h", "q"}

// FP load/store widths keyed by funct3. Widths 0, 5, 6 and 7 select vector
// memory accesses.
var fpMemWidths = map[uint32]struct {
	width  uint8
	suffix string
}{
	0b001: {2, "h"},
	0b010: {4, "w"},
	0b011: {8, "d"},
	0b100: {16, "q"},
}

func (inst *Instruction) setFPU(mnemonic string, syntax Syntax) {
	inst.Op = OpFPU
	inst.Class = ClassFPU
	inst.Mnemonic = mnemonic
	inst.Syntax = syntax
}

func (d *Decoder) decodeFPMemory(inst *Instruction) error {
	bits := inst.Raw
	w, ok := fpMemWidths[funct3(bits)]
	if !ok {
		return d.decodeVectorMemory(inst)
	}

	inst.Rs1 = X(rs1(bits))
	inst.MemWidth = w.width

	if opcode(bits) == OpcodeLoadFP {
		inst.Rd = F(rd(bits))
		inst.Offset = immI(bits)
		inst.setFPU("fl"+w.suffix, SyntaxLoad)
		return nil
	}

	inst.Rs2 = F(rs2(bits))
	inst.Offset = immS(bits)
	inst.setFPU("fs"+w.suffix, SyntaxStore)
	return nil
}

var fmaNames = map[uint32]string{
	OpcodeMAdd:  "fmadd",
	OpcodeMSub:  "fmsub",
	OpcodeNMSub: "fnmsub",
	OpcodeNMAdd: "fnmadd",
}

func (d *Decoder) decodeFMA(inst *Instruction) {
	bits := inst.Raw
	inst.FPFormat = uint8(field(bits, 26, 25))
	inst.RoundingMode = uint8(funct3(bits))
	inst.Rd = F(rd(bits))
	inst.Rs1 = F(rs1(bits))
	inst.Rs2 = F(rs2(bits))
	inst.Rs3 = F(rs3(bits))
	inst.setFPU(fmaNames[opcode(bits)]+"."+fpFormatSuffix[inst.FPFormat], SyntaxR4)
}

var fpArith = map[uint32]string{
	0b00000: "fadd",
	0b00001: "fsub",
	0b00010: "fmul",
	0b00011: "fdiv",
}

var fpIntSuffix = [4]string{"w", "wu", "l", "lu"}

// fpMoveSuffix is the integer-side name used by fmv.x.<fmt> and
// fmv.<fmt>.x.
var fpMoveSuffix = [4]string{"w", "d", "h", "q"}

func (d *Decoder) decodeOpFP(inst *Instruction) {
	bits := inst.Raw
	funct5 := field(bits, 31, 27)
	format := field(bits, 26, 25)
	rm := funct3(bits)
	src2 := rs2(bits)
	suffix := "." + fpFormatSuffix[format]

	inst.FPFormat = uint8(format)
	inst.RoundingMode = uint8(rm)
	inst.Rd = F(rd(bits))
	inst.Rs1 = F(rs1(bits))

	if name, ok := fpArith[funct5]; ok {
		inst.Rs2 = F(src2)
		inst.setFPU(name+suffix, SyntaxR)
		return
	}

	switch funct5 {
	case 0b01011:
		if src2 == 0 {
			inst.setFPU("fsqrt"+suffix, SyntaxR2)
			return
		}
	case 0b00100:
		if rm <= 2 {
			inst.Rs2 = F(src2)
			inst.setFPU([]string{"fsgnj", "fsgnjn", "fsgnjx"}[rm]+suffix, SyntaxR)
			return
		}
	case 0b00101:
		if rm <= 1 {
			inst.Rs2 = F(src2)
			inst.setFPU([]string{"fmin", "fmax"}[rm]+suffix, SyntaxR)
			return
		}
	case 0b01000:
		if src2 < 4 && uint32(src2) != format {
			inst.setFPU("fcvt"+suffix+"."+fpFormatSuffix[src2], SyntaxR2)
			return
		}
	case 0b10100:
		if rm <= 2 {
			inst.Rd = X(rd(bits))
			inst.Rs2 = F(src2)
			inst.setFPU([]string{"fle", "flt", "feq"}[rm]+suffix, SyntaxR)
			return
		}
	case 0b11100:
		if src2 == 0 && rm <= 1 {
			inst.Rd = X(rd(bits))
			if rm == 0 {
				inst.setFPU("fmv.x."+fpMoveSuffix[format], SyntaxR2)
			} else {
				inst.setFPU("fclass"+suffix, SyntaxR2)
			}
			return
		}
	case 0b11000:
		if src2 < 4 {
			inst.Rd = X(rd(bits))
			inst.setFPU("fcvt."+fpIntSuffix[src2]+suffix, SyntaxR2)
			return
		}
	case 0b11010:
		if src2 < 4 {
			inst.Rs1 = X(rs1(bits))
			inst.setFPU("fcvt"+suffix+"."+fpIntSuffix[src2], SyntaxR2)
			return
		}
	case 0b11110:
		if src2 == 0 && rm == 0 {
			inst.Rs1 = X(rs1(bits))
			inst.setFPU("fmv."+fpMoveSuffix[format]+".x", SyntaxR2)
			return
		}
	}

	setUnknown(inst)
}
