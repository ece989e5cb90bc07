package insts

// Compressed (RVC) decoding. Every valid 16-bit form is expanded into the
// 32-bit encoding it abbreviates and decoded through the standard path, so a
// compressed instruction has exactly the shape of its expansion. Reserved
// forms decode to the unknown-instruction sentinel.

// cReg maps a 3-bit compressed register field to x8..x15.
func cReg(v uint32) uint8 {
	return uint8(v) + 8
}

func (d *Decoder) decodeCompressed(half uint16, addr uint64) (*Instruction, error) {
	c := uint32(half)

	var expanded uint32
	var ok bool
	switch c & 0b11 {
	case 0b00:
		expanded, ok = d.expandQuadrant0(c)
	case 0b01:
		expanded, ok = d.expandQuadrant1(c)
	case 0b10:
		expanded, ok = d.expandQuadrant2(c)
	}

	if !ok {
		return &Instruction{Raw: c, Length: 2, Address: addr}, nil
	}

	inst, err := d.Decode(expanded, addr)
	inst.Raw = c
	inst.Length = 2
	if inst.Op == OpJAL || inst.Op == OpJALR {
		inst.Imm = 2
	}
	if f, isFault := err.(*DecodeFault); isFault {
		f.Raw = c
	}
	if inst.IsUnknown() {
		return &Instruction{Raw: c, Length: 2, Address: addr}, nil
	}
	return inst, err
}

// Quadrant 0: stack-pointer-based addi and register-based loads/stores.
func (d *Decoder) expandQuadrant0(c uint32) (uint32, bool) {
	rdp := cReg(field(c, 4, 2))
	rs1p := cReg(field(c, 9, 7))
	// offset scaled by 8: uimm[5:3|7:6]
	off8 := int64(field(c, 12, 10)<<3 | field(c, 6, 5)<<6)
	// offset scaled by 4: uimm[5:3|2|6]
	off4 := int64(field(c, 12, 10)<<3 | bit(c, 6)<<2 | bit(c, 5)<<6)

	switch field(c, 15, 13) {
	case 0b000: // c.addi4spn
		nzuimm := int64(field(c, 12, 11)<<4 | field(c, 10, 7)<<6 | bit(c, 6)<<2 | bit(c, 5)<<3)
		if nzuimm == 0 {
			return 0, false
		}
		return EncodeI(OpcodeOpImm, 0, rdp, 2, nzuimm), true
	case 0b001: // c.fld
		return EncodeI(OpcodeLoadFP, 3, rdp, rs1p, off8), true
	case 0b010: // c.lw
		return EncodeI(OpcodeLoad, 2, rdp, rs1p, off4), true
	case 0b011:
		if d.rv64() { // c.ld
			return EncodeI(OpcodeLoad, 3, rdp, rs1p, off8), true
		}
		return EncodeI(OpcodeLoadFP, 2, rdp, rs1p, off4), true // c.flw
	case 0b101: // c.fsd
		return EncodeS(OpcodeStoreFP, 3, rs1p, rdp, off8), true
	case 0b110: // c.sw
		return EncodeS(OpcodeStore, 2, rs1p, rdp, off4), true
	case 0b111:
		if d.rv64() { // c.sd
			return EncodeS(OpcodeStore, 3, rs1p, rdp, off8), true
		}
		return EncodeS(OpcodeStoreFP, 2, rs1p, rdp, off4), true // c.fsw
	}
	return 0, false
}

// cImm6 is the sign-extended imm[5|4:0] of CI-format instructions.
func cImm6(c uint32) int64 {
	return signExtend(uint64(bit(c, 12)<<5|field(c, 6, 2)), 6)
}

// cJumpOffset is the offset[11|4|9:8|10|6|7|3:1|5] of c.j and c.jal.
func cJumpOffset(c uint32) int64 {
	v := bit(c, 12)<<11 | bit(c, 11)<<4 | field(c, 10, 9)<<8 | bit(c, 8)<<10 |
		bit(c, 7)<<6 | bit(c, 6)<<7 | field(c, 5, 3)<<1 | bit(c, 2)<<5
	return signExtend(uint64(v), 12)
}

// cBranchOffset is the offset[8|4:3|7:6|2:1|5] of c.beqz and c.bnez.
func cBranchOffset(c uint32) int64 {
	v := bit(c, 12)<<8 | field(c, 11, 10)<<3 | field(c, 6, 5)<<6 |
		field(c, 4, 3)<<1 | bit(c, 2)<<5
	return signExtend(uint64(v), 9)
}

// Quadrant 1: immediate arithmetic, jumps and branches.
func (d *Decoder) expandQuadrant1(c uint32) (uint32, bool) {
	rdFull := rd(c)
	rdp := cReg(field(c, 9, 7))
	rs2p := cReg(field(c, 4, 2))

	switch field(c, 15, 13) {
	case 0b000: // c.addi, c.nop
		return EncodeI(OpcodeOpImm, 0, rdFull, rdFull, cImm6(c)), true
	case 0b001:
		if !d.rv64() { // c.jal
			return EncodeJ(1, cJumpOffset(c)), true
		}
		if rdFull == 0 { // c.addiw
			return 0, false
		}
		return EncodeI(OpcodeOpImm32, 0, rdFull, rdFull, cImm6(c)), true
	case 0b010: // c.li
		return EncodeI(OpcodeOpImm, 0, rdFull, 0, cImm6(c)), true
	case 0b011:
		if rdFull == 2 { // c.addi16sp
			v := bit(c, 12)<<9 | bit(c, 6)<<4 | bit(c, 5)<<6 | field(c, 4, 3)<<7 | bit(c, 2)<<5
			if v == 0 {
				return 0, false
			}
			return EncodeI(OpcodeOpImm, 0, 2, 2, signExtend(uint64(v), 10)), true
		}
		// c.lui
		imm := signExtend(uint64(bit(c, 12)<<17|field(c, 6, 2)<<12), 18)
		if imm == 0 {
			return 0, false
		}
		return EncodeU(OpcodeLUI, rdFull, int64(uint32(imm))), true
	case 0b100:
		return d.expandMiscALU(c, rdp, rs2p)
	case 0b101: // c.j
		return EncodeJ(0, cJumpOffset(c)), true
	case 0b110: // c.beqz
		return EncodeB(CondEQ, rdp, 0, cBranchOffset(c)), true
	case 0b111: // c.bnez
		return EncodeB(CondNE, rdp, 0, cBranchOffset(c)), true
	}
	return 0, false
}

func (d *Decoder) expandMiscALU(c uint32, rdp, rs2p uint8) (uint32, bool) {
	shamt := int64(bit(c, 12)<<5 | field(c, 6, 2))
	if !d.rv64() && bit(c, 12) == 1 && field(c, 11, 10) != 0b10 {
		return 0, false
	}

	switch field(c, 11, 10) {
	case 0b00: // c.srli
		return EncodeI(OpcodeOpImm, 5, rdp, rdp, shamt), true
	case 0b01: // c.srai
		return EncodeI(OpcodeOpImm, 5, rdp, rdp, 0x400|shamt), true
	case 0b10: // c.andi
		return EncodeI(OpcodeOpImm, 7, rdp, rdp, cImm6(c)), true
	}

	sub := field(c, 6, 5)
	if bit(c, 12) == 0 {
		switch sub {
		case 0b00: // c.sub
			return EncodeR(OpcodeOp, 0, 0x20, rdp, rdp, rs2p), true
		case 0b01: // c.xor
			return EncodeR(OpcodeOp, 4, 0, rdp, rdp, rs2p), true
		case 0b10: // c.or
			return EncodeR(OpcodeOp, 6, 0, rdp, rdp, rs2p), true
		default: // c.and
			return EncodeR(OpcodeOp, 7, 0, rdp, rdp, rs2p), true
		}
	}

	if !d.rv64() {
		return 0, false
	}
	switch sub {
	case 0b00: // c.subw
		return EncodeR(OpcodeOp32, 0, 0x20, rdp, rdp, rs2p), true
	case 0b01: // c.addw
		return EncodeR(OpcodeOp32, 0, 0, rdp, rdp, rs2p), true
	}
	return 0, false
}

// Quadrant 2: stack-pointer-relative loads/stores, register moves and
// indirect jumps.
func (d *Decoder) expandQuadrant2(c uint32) (uint32, bool) {
	rdFull := rd(c)
	rs2Full := uint8(field(c, 6, 2))
	// load offsets: uimm[5|4:3|8:6] and uimm[5|4:2|7:6]
	ldsp8 := int64(bit(c, 12)<<5 | field(c, 6, 5)<<3 | field(c, 4, 2)<<6)
	ldsp4 := int64(bit(c, 12)<<5 | field(c, 6, 4)<<2 | field(c, 3, 2)<<6)
	// store offsets: uimm[5:3|8:6] and uimm[5:2|7:6]
	sdsp8 := int64(field(c, 12, 10)<<3 | field(c, 9, 7)<<6)
	sdsp4 := int64(field(c, 12, 9)<<2 | field(c, 8, 7)<<6)

	switch field(c, 15, 13) {
	case 0b000: // c.slli
		if !d.rv64() && bit(c, 12) == 1 {
			return 0, false
		}
		return EncodeI(OpcodeOpImm, 1, rdFull, rdFull, int64(bit(c, 12)<<5|field(c, 6, 2))), true
	case 0b001: // c.fldsp
		return EncodeI(OpcodeLoadFP, 3, rdFull, 2, ldsp8), true
	case 0b010: // c.lwsp
		if rdFull == 0 {
			return 0, false
		}
		return EncodeI(OpcodeLoad, 2, rdFull, 2, ldsp4), true
	case 0b011:
		if !d.rv64() { // c.flwsp
			return EncodeI(OpcodeLoadFP, 2, rdFull, 2, ldsp4), true
		}
		if rdFull == 0 { // c.ldsp
			return 0, false
		}
		return EncodeI(OpcodeLoad, 3, rdFull, 2, ldsp8), true
	case 0b100:
		return expandJumpMove(c, rdFull, rs2Full)
	case 0b101: // c.fsdsp
		return EncodeS(OpcodeStoreFP, 3, 2, rs2Full, sdsp8), true
	case 0b110: // c.swsp
		return EncodeS(OpcodeStore, 2, 2, rs2Full, sdsp4), true
	case 0b111:
		if d.rv64() { // c.sdsp
			return EncodeS(OpcodeStore, 3, 2, rs2Full, sdsp8), true
		}
		return EncodeS(OpcodeStoreFP, 2, 2, rs2Full, sdsp4), true // c.fswsp
	}
	return 0, false
}

// expandJumpMove handles c.jr, c.mv, c.ebreak, c.jalr and c.add, which are
// told apart by bit 12 and whether rs1/rs2 are zero.
func expandJumpMove(c uint32, rs1Full, rs2Full uint8) (uint32, bool) {
	if bit(c, 12) == 0 {
		if rs2Full == 0 {
			if rs1Full == 0 { // c.jr x0 is reserved
				return 0, false
			}
			return EncodeI(OpcodeJALR, 0, 0, rs1Full, 0), true
		}
		return EncodeR(OpcodeOp, 0, 0, rs1Full, 0, rs2Full), true // c.mv
	}

	switch {
	case rs1Full == 0 && rs2Full == 0:
		return EBREAK(), true
	case rs2Full == 0: // c.jalr
		return EncodeI(OpcodeJALR, 0, 1, rs1Full, 0), true
	default: // c.add
		return EncodeR(OpcodeOp, 0, 0, rs1Full, rs1Full, rs2Full), true
	}
}
