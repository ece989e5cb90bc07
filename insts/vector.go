package insts

import (
	"fmt"
	"strings"
)

// Vector arithmetic categories (funct3 of OP-V).
const (
	opIVV = 0b000
	opFVV = 0b001
	opMVV = 0b010
	opIVI = 0b011
	opIVX = 0b100
	opFVF = 0b101
	opMVX = 0b110
	opCFG = 0b111
)

// Source-operand forms an arithmetic funct6 accepts.
const (
	formV uint8 = 1 << iota
	formX
	formI
	formF
)

type vopKind uint8

const (
	kindNormal   vopKind = iota // .vv .vx .vi .vf
	kindWide                    // .wv .wx .wi .wf
	kindReduce                  // .vs
	kindMask                    // .mm
	kindCarry                   // .vvm .vxm .vim, v0 explicit
	kindCarryOut                // like kindCarry, or unmasked without carry-in
	kindFMA                     // vd, vs1, vs2 order, vd also read
	kindFMAWide                 // widening multiply-add
	kindUImm                    // .vi takes an unsigned immediate
	kindCompress                // .vm
)

type vop struct {
	name  string
	forms uint8
	kind  vopKind
}

// Integer arithmetic (OPIVV, OPIVX, OPIVI).
var opiTable = map[uint32]vop{
	0b000000: {"vadd", formV | formX | formI, kindNormal},
	0b000010: {"vsub", formV | formX, kindNormal},
	0b000011: {"vrsub", formX | formI, kindNormal},
	0b000100: {"vminu", formV | formX, kindNormal},
	0b000101: {"vmin", formV | formX, kindNormal},
	0b000110: {"vmaxu", formV | formX, kindNormal},
	0b000111: {"vmax", formV | formX, kindNormal},
	0b001001: {"vand", formV | formX | formI, kindNormal},
	0b001010: {"vor", formV | formX | formI, kindNormal},
	0b001011: {"vxor", formV | formX | formI, kindNormal},
	0b001100: {"vrgather", formV | formX | formI, kindUImm},
	0b001110: {"vslideup", formX | formI, kindUImm},
	0b001111: {"vslidedown", formX | formI, kindUImm},
	0b010000: {"vadc", formV | formX | formI, kindCarry},
	0b010001: {"vmadc", formV | formX | formI, kindCarryOut},
	0b010010: {"vsbc", formV | formX, kindCarry},
	0b010011: {"vmsbc", formV | formX, kindCarryOut},
	0b011000: {"vmseq", formV | formX | formI, kindNormal},
	0b011001: {"vmsne", formV | formX | formI, kindNormal},
	0b011010: {"vmsltu", formV | formX, kindNormal},
	0b011011: {"vmslt", formV | formX, kindNormal},
	0b011100: {"vmsleu", formV | formX | formI, kindNormal},
	0b011101: {"vmsle", formV | formX | formI, kindNormal},
	0b011110: {"vmsgtu", formX | formI, kindNormal},
	0b011111: {"vmsgt", formX | formI, kindNormal},
	0b100000: {"vsaddu", formV | formX | formI, kindNormal},
	0b100001: {"vsadd", formV | formX | formI, kindNormal},
	0b100010: {"vssubu", formV | formX, kindNormal},
	0b100011: {"vssub", formV | formX, kindNormal},
	0b100101: {"vsll", formV | formX | formI, kindUImm},
	0b100111: {"vsmul", formV | formX, kindNormal},
	0b101000: {"vsrl", formV | formX | formI, kindUImm},
	0b101001: {"vsra", formV | formX | formI, kindUImm},
	0b101010: {"vssrl", formV | formX | formI, kindUImm},
	0b101011: {"vssra", formV | formX | formI, kindUImm},
	0b101100: {"vnsrl", formV | formX | formI, kindWide},
	0b101101: {"vnsra", formV | formX | formI, kindWide},
	0b101110: {"vnclipu", formV | formX | formI, kindWide},
	0b101111: {"vnclip", formV | formX | formI, kindWide},
	0b110000: {"vwredsumu", formV, kindReduce},
	0b110001: {"vwredsum", formV, kindReduce},
}

// Integer multiply, reduction and mask arithmetic (OPMVV, OPMVX).
var opmTable = map[uint32]vop{
	0b000000: {"vredsum", formV, kindReduce},
	0b000001: {"vredand", formV, kindReduce},
	0b000010: {"vredor", formV, kindReduce},
	0b000011: {"vredxor", formV, kindReduce},
	0b000100: {"vredminu", formV, kindReduce},
	0b000101: {"vredmin", formV, kindReduce},
	0b000110: {"vredmaxu", formV, kindReduce},
	0b000111: {"vredmax", formV, kindReduce},
	0b001000: {"vaaddu", formV | formX, kindNormal},
	0b001001: {"vaadd", formV | formX, kindNormal},
	0b001010: {"vasubu", formV | formX, kindNormal},
	0b001011: {"vasub", formV | formX, kindNormal},
	0b001110: {"vslide1up", formX, kindNormal},
	0b001111: {"vslide1down", formX, kindNormal},
	0b010111: {"vcompress", formV, kindCompress},
	0b011000: {"vmandn", formV, kindMask},
	0b011001: {"vmand", formV, kindMask},
	0b011010: {"vmor", formV, kindMask},
	0b011011: {"vmxor", formV, kindMask},
	0b011100: {"vmorn", formV, kindMask},
	0b011101: {"vmnand", formV, kindMask},
	0b011110: {"vmnor", formV, kindMask},
	0b011111: {"vmxnor", formV, kindMask},
	0b100000: {"vdivu", formV | formX, kindNormal},
	0b100001: {"vdiv", formV | formX, kindNormal},
	0b100010: {"vremu", formV | formX, kindNormal},
	0b100011: {"vrem", formV | formX, kindNormal},
	0b100100: {"vmulhu", formV | formX, kindNormal},
	0b100101: {"vmul", formV | formX, kindNormal},
	0b100110: {"vmulhsu", formV | formX, kindNormal},
	0b100111: {"vmulh", formV | formX, kindNormal},
	0b101001: {"vmadd", formV | formX, kindFMA},
	0b101011: {"vnmsub", formV | formX, kindFMA},
	0b101101: {"vmacc", formV | formX, kindFMA},
	0b101111: {"vnmsac", formV | formX, kindFMA},
	0b110000: {"vwaddu", formV | formX, kindNormal},
	0b110001: {"vwadd", formV | formX, kindNormal},
	0b110010: {"vwsubu", formV | formX, kindNormal},
	0b110011: {"vwsub", formV | formX, kindNormal},
	0b110100: {"vwaddu", formV | formX, kindWide},
	0b110101: {"vwadd", formV | formX, kindWide},
	0b110110: {"vwsubu", formV | formX, kindWide},
	0b110111: {"vwsub", formV | formX, kindWide},
	0b111000: {"vwmulu", formV | formX, kindNormal},
	0b111010: {"vwmulsu", formV | formX, kindNormal},
	0b111011: {"vwmul", formV | formX, kindNormal},
	0b111100: {"vwmaccu", formV | formX, kindFMAWide},
	0b111101: {"vwmacc", formV | formX, kindFMAWide},
	0b111110: {"vwmaccus", formX, kindFMAWide},
	0b111111: {"vwmaccsu", formV | formX, kindFMAWide},
}

// Floating-point arithmetic (OPFVV, OPFVF).
var opfTable = map[uint32]vop{
	0b000000: {"vfadd", formV | formF, kindNormal},
	0b000001: {"vfredusum", formV, kindReduce},
	0b000010: {"vfsub", formV | formF, kindNormal},
	0b000011: {"vfredosum", formV, kindReduce},
	0b000100: {"vfmin", formV | formF, kindNormal},
	0b000101: {"vfredmin", formV, kindReduce},
	0b000110: {"vfmax", formV | formF, kindNormal},
	0b000111: {"vfredmax", formV, kindReduce},
	0b001000: {"vfsgnj", formV | formF, kindNormal},
	0b001001: {"vfsgnjn", formV | formF, kindNormal},
	0b001010: {"vfsgnjx", formV | formF, kindNormal},
	0b001110: {"vfslide1up", formF, kindNormal},
	0b001111: {"vfslide1down", formF, kindNormal},
	0b011000: {"vmfeq", formV | formF, kindNormal},
	0b011001: {"vmfle", formV | formF, kindNormal},
	0b011011: {"vmflt", formV | formF, kindNormal},
	0b011100: {"vmfne", formV | formF, kindNormal},
	0b011101: {"vmfgt", formF, kindNormal},
	0b011111: {"vmfge", formF, kindNormal},
	0b100000: {"vfdiv", formV | formF, kindNormal},
	0b100001: {"vfrdiv", formF, kindNormal},
	0b100100: {"vfmul", formV | formF, kindNormal},
	0b100111: {"vfrsub", formF, kindNormal},
	0b101000: {"vfmadd", formV | formF, kindFMA},
	0b101001: {"vfnmadd", formV | formF, kindFMA},
	0b101010: {"vfmsub", formV | formF, kindFMA},
	0b101011: {"vfnmsub", formV | formF, kindFMA},
	0b101100: {"vfmacc", formV | formF, kindFMA},
	0b101101: {"vfnmacc", formV | formF, kindFMA},
	0b101110: {"vfmsac", formV | formF, kindFMA},
	0b101111: {"vfnmsac", formV | formF, kindFMA},
	0b110000: {"vfwadd", formV | formF, kindNormal},
	0b110001: {"vfwredusum", formV, kindReduce},
	0b110010: {"vfwsub", formV | formF, kindNormal},
	0b110011: {"vfwredosum", formV, kindReduce},
	0b110100: {"vfwadd", formV | formF, kindWide},
	0b110110: {"vfwsub", formV | formF, kindWide},
	0b111000: {"vfwmul", formV | formF, kindNormal},
	0b111100: {"vfwmacc", formV | formF, kindFMAWide},
	0b111101: {"vfwnmacc", formV | formF, kindFMAWide},
	0b111110: {"vfwmsac", formV | formF, kindFMAWide},
	0b111111: {"vfwnmsac", formV | formF, kindFMAWide},
}

// Unary sub-tables keyed by the vs1 field.
var (
	vxunary0 = map[uint8]string{
		0b00010: "vzext.vf8", 0b00011: "vsext.vf8",
		0b00100: "vzext.vf4", 0b00101: "vsext.vf4",
		0b00110: "vzext.vf2", 0b00111: "vsext.vf2",
	}
	vmunary0 = map[uint8]string{
		0b00001: "vmsbf.m", 0b00010: "vmsof.m", 0b00011: "vmsif.m",
		0b10000: "viota.m", 0b10001: "vid.v",
	}
	vfunary0 = map[uint8]string{
		0b00000: "vfcvt.xu.f.v", 0b00001: "vfcvt.x.f.v",
		0b00010: "vfcvt.f.xu.v", 0b00011: "vfcvt.f.x.v",
		0b00110: "vfcvt.rtz.xu.f.v", 0b00111: "vfcvt.rtz.x.f.v",
		0b01000: "vfwcvt.xu.f.v", 0b01001: "vfwcvt.x.f.v",
		0b01010: "vfwcvt.f.xu.v", 0b01011: "vfwcvt.f.x.v",
		0b01100: "vfwcvt.f.f.v",
		0b01110: "vfwcvt.rtz.xu.f.v", 0b01111: "vfwcvt.rtz.x.f.v",
		0b10000: "vfncvt.xu.f.w", 0b10001: "vfncvt.x.f.w",
		0b10010: "vfncvt.f.xu.w", 0b10011: "vfncvt.f.x.w",
		0b10100: "vfncvt.f.f.w", 0b10101: "vfncvt.rod.f.f.w",
		0b10110: "vfncvt.rtz.xu.f.w", 0b10111: "vfncvt.rtz.x.f.w",
	}
	vfunary1 = map[uint8]string{
		0b00000: "vfsqrt.v", 0b00100: "vfrsqrt7.v",
		0b00101: "vfrec7.v", 0b10000: "vfclass.v",
	}
)

// vectorEEW maps mew<<3 | width to the effective element width.
var vectorEEW = map[uint32]uint16{
	0b0000: 8,
	0b0101: 16,
	0b0110: 32,
	0b0111: 64,
}

func (inst *Instruction) setVector(mnemonic string, operands string) {
	inst.Op = OpVector
	inst.Class = ClassVector
	inst.Mnemonic = mnemonic
	inst.Syntax = SyntaxCustom
	inst.operands = operands
}

func maskSuffix(masked bool) string {
	if masked {
		return ", v0.t"
	}
	return ""
}

func (d *Decoder) decodeOpV(inst *Instruction) error {
	bits := inst.Raw
	category := funct3(bits)
	inst.Vector.Category = uint8(category)
	inst.Vector.Funct6 = uint8(field(bits, 31, 26))
	inst.Vector.Masked = bit(bits, 25) == 0

	switch category {
	case opCFG:
		d.decodeVectorConfig(inst)
		return nil
	case opIVV, opIVX, opIVI:
		return d.decodeVectorArith(inst, opiTable)
	case opMVV, opMVX:
		return d.decodeVectorArith(inst, opmTable)
	default:
		return d.decodeVectorArith(inst, opfTable)
	}
}

var (
	vsewNames  = [8]string{"e8", "e16", "e32", "e64", "e128", "e256", "e512", "e1024"}
	vlmulNames = [8]string{"m1", "m2", "m4", "m8", "", "mf8", "mf4", "mf2"}
)

// FormatVType renders a vtype immediate as "e32, m1, ta, ma".
func FormatVType(vtype uint32) string {
	parts := []string{vsewNames[field(vtype, 5, 3)]}
	if lmul := vlmulNames[field(vtype, 2, 0)]; lmul != "" {
		parts = append(parts, lmul)
	}
	if bit(vtype, 6) == 1 {
		parts = append(parts, "ta")
	} else {
		parts = append(parts, "tu")
	}
	if bit(vtype, 7) == 1 {
		parts = append(parts, "ma")
	} else {
		parts = append(parts, "mu")
	}
	return strings.Join(parts, ", ")
}

// decodeVectorConfig distinguishes the three vset forms by bits 31 and 30,
// and by bits 31:25 for vsetvl.
func (d *Decoder) decodeVectorConfig(inst *Instruction) {
	bits := inst.Raw
	inst.Vector.Masked = false
	inst.Rd = X(rd(bits))

	switch {
	case bit(bits, 31) == 0:
		inst.Rs1 = X(rs1(bits))
		inst.Vector.VType = field(bits, 30, 20)
		inst.setVector("vsetvli", fmt.Sprintf("%v, %v, %s",
			inst.Rd, inst.Rs1, FormatVType(inst.Vector.VType)))
	case field(bits, 31, 30) == 0b11:
		inst.Imm = int64(rs1(bits))
		inst.Vector.VType = field(bits, 29, 20)
		inst.setVector("vsetivli", fmt.Sprintf("%v, %d, %s",
			inst.Rd, inst.Imm, FormatVType(inst.Vector.VType)))
	case funct7(bits) == 0b1000000:
		inst.Rs1 = X(rs1(bits))
		inst.Rs2 = X(rs2(bits))
		inst.setVector("vsetvl", fmt.Sprintf("%v, %v, %v", inst.Rd, inst.Rs1, inst.Rs2))
	default:
		setUnknown(inst)
	}
}

func (d *Decoder) decodeVectorArith(inst *Instruction, table map[uint32]vop) error {
	bits := inst.Raw
	category := uint32(inst.Vector.Category)
	funct6 := uint32(inst.Vector.Funct6)
	vd := uint8(field(bits, 11, 7))
	vs1 := rs1(bits)
	vs2 := rs2(bits)

	if done, err := d.decodeVectorSpecial(inst, category, funct6, vd, vs1, vs2); done {
		return err
	}

	op, ok := table[funct6]
	if !ok {
		setUnknown(inst)
		return nil
	}

	var form uint8
	var src Reg
	var srcText string
	switch category {
	case opIVV, opMVV, opFVV:
		form, src = formV, V(vs1)
	case opIVX, opMVX:
		form, src = formX, X(vs1)
	case opFVF:
		form, src = formF, F(vs1)
	case opIVI:
		form = formI
		if op.kind == kindUImm || op.kind == kindWide {
			srcText = fmt.Sprintf("%d", vs1)
			inst.Imm = int64(vs1)
		} else {
			inst.Imm = signExtend(uint64(vs1), 5)
			srcText = fmt.Sprintf("%d", inst.Imm)
		}
	}
	if op.forms&form == 0 {
		setUnknown(inst)
		return nil
	}
	if src.Valid() {
		inst.Rs1 = src
		srcText = src.String()
	}

	letter := map[uint8]string{formV: "v", formX: "x", formI: "i", formF: "f"}[form]
	inst.Rd = V(vd)
	inst.Rs2 = V(vs2)
	masked := inst.Vector.Masked
	name := op.name

	switch op.kind {
	case kindReduce:
		name += ".vs"
	case kindMask:
		name += ".mm"
		masked = false
	case kindCompress:
		name += ".vm"
		masked = false
	case kindWide:
		name += ".w" + letter
	case kindCarry:
		if !masked {
			setUnknown(inst)
			return nil
		}
		inst.Rs3 = V(0)
		inst.setVector(name+".v"+letter+"m", fmt.Sprintf("%v, %v, %s, v0", inst.Rd, inst.Rs2, srcText))
		return nil
	case kindCarryOut:
		if masked {
			inst.Rs3 = V(0)
			inst.setVector(name+".v"+letter+"m", fmt.Sprintf("%v, %v, %s, v0", inst.Rd, inst.Rs2, srcText))
			return nil
		}
		name += ".v" + letter
	default:
		name += ".v" + letter
	}

	if op.kind == kindFMA || op.kind == kindFMAWide {
		inst.Rs3 = V(vd)
		inst.setVector(name, fmt.Sprintf("%v, %s, %v%s", inst.Rd, srcText, inst.Rs2, maskSuffix(masked)))
		return nil
	}

	if masked {
		inst.Rs3 = V(0)
	}
	inst.setVector(name, fmt.Sprintf("%v, %v, %s%s", inst.Rd, inst.Rs2, srcText, maskSuffix(masked)))
	return nil
}

// decodeVectorSpecial handles funct6 values whose meaning depends on more
// than the category: unary groups, merges and moves, vrgatherei16 and the
// whole-register moves.
func (d *Decoder) decodeVectorSpecial(
	inst *Instruction, category, funct6 uint32, vd, vs1, vs2 uint8,
) (bool, error) {
	masked := inst.Vector.Masked

	unary := func(table map[uint8]string, rdReg Reg) bool {
		name, ok := table[vs1]
		if !ok {
			setUnknown(inst)
			return true
		}
		inst.Rd = rdReg
		if name == "vid.v" {
			inst.setVector(name, fmt.Sprintf("%v%s", inst.Rd, maskSuffix(masked)))
			return true
		}
		inst.Rs2 = V(vs2)
		inst.setVector(name, fmt.Sprintf("%v, %v%s", inst.Rd, inst.Rs2, maskSuffix(masked)))
		return true
	}

	switch {
	case category == opIVV && funct6 == 0b001110:
		inst.Rd, inst.Rs1, inst.Rs2 = V(vd), V(vs1), V(vs2)
		inst.setVector("vrgatherei16.vv", fmt.Sprintf("%v, %v, %v%s",
			inst.Rd, inst.Rs2, inst.Rs1, maskSuffix(masked)))
		return true, nil

	case category == opIVI && funct6 == 0b100111:
		inst.Rd, inst.Rs2 = V(vd), V(vs2)
		inst.setVector("vmvr.v", fmt.Sprintf("%v, %v", inst.Rd, inst.Rs2))
		switch vs1 {
		case 0, 1, 3, 7:
			inst.setVector(fmt.Sprintf("vmv%dr.v", vs1+1), fmt.Sprintf("%v, %v", inst.Rd, inst.Rs2))
			return true, nil
		}
		return true, fault(inst, "whole-register move count %d is reserved", vs1+1)

	case funct6 == 0b010111 && (category == opIVV || category == opIVX || category == opIVI || category == opFVF):
		return true, d.decodeVectorMerge(inst, category, vd, vs1, vs2)

	case category == opMVV && funct6 == 0b010000:
		switch vs1 {
		case 0b00000:
			inst.Rd, inst.Rs2 = X(vd), V(vs2)
			inst.setVector("vmv.x.s", fmt.Sprintf("%v, %v", inst.Rd, inst.Rs2))
		case 0b10000, 0b10001:
			inst.Rd, inst.Rs2 = X(vd), V(vs2)
			name := map[uint8]string{0b10000: "vcpop.m", 0b10001: "vfirst.m"}[vs1]
			inst.setVector(name, fmt.Sprintf("%v, %v%s", inst.Rd, inst.Rs2, maskSuffix(masked)))
		default:
			setUnknown(inst)
		}
		return true, nil

	case category == opMVX && funct6 == 0b010000:
		if vs2 != 0 {
			setUnknown(inst)
			return true, nil
		}
		inst.Rd, inst.Rs1 = V(vd), X(vs1)
		inst.setVector("vmv.s.x", fmt.Sprintf("%v, %v", inst.Rd, inst.Rs1))
		return true, nil

	case category == opMVV && funct6 == 0b010010:
		return unary(vxunary0, V(vd)), nil

	case category == opMVV && funct6 == 0b010100:
		return unary(vmunary0, V(vd)), nil

	case category == opFVV && funct6 == 0b010000:
		if vs1 != 0 {
			setUnknown(inst)
			return true, nil
		}
		inst.Rd, inst.Rs2 = F(vd), V(vs2)
		inst.setVector("vfmv.f.s", fmt.Sprintf("%v, %v", inst.Rd, inst.Rs2))
		return true, nil

	case category == opFVF && funct6 == 0b010000:
		if vs2 != 0 {
			setUnknown(inst)
			return true, nil
		}
		inst.Rd, inst.Rs1 = V(vd), F(vs1)
		inst.setVector("vfmv.s.f", fmt.Sprintf("%v, %v", inst.Rd, inst.Rs1))
		return true, nil

	case category == opFVV && funct6 == 0b010010:
		return unary(vfunary0, V(vd)), nil

	case category == opFVV && funct6 == 0b010011:
		return unary(vfunary1, V(vd)), nil
	}

	return false, nil
}

// decodeVectorMerge handles vmerge/vmv.v and vfmerge/vfmv.v.f. The unmasked
// form is a move and requires vs2 to be zero.
func (d *Decoder) decodeVectorMerge(inst *Instruction, category uint32, vd, vs1, vs2 uint8) error {
	prefix, letter := "v", "v"
	var srcText string
	switch category {
	case opIVV:
		inst.Rs1 = V(vs1)
		srcText = inst.Rs1.String()
	case opIVX:
		letter = "x"
		inst.Rs1 = X(vs1)
		srcText = inst.Rs1.String()
	case opIVI:
		letter = "i"
		inst.Imm = signExtend(uint64(vs1), 5)
		srcText = fmt.Sprintf("%d", inst.Imm)
	case opFVF:
		prefix, letter = "vf", "f"
		inst.Rs1 = F(vs1)
		srcText = inst.Rs1.String()
	}
	inst.Rd = V(vd)

	if inst.Vector.Masked {
		inst.Rs2 = V(vs2)
		inst.Rs3 = V(0)
		inst.setVector(prefix+"merge.v"+letter+"m",
			fmt.Sprintf("%v, %v, %s, v0", inst.Rd, inst.Rs2, srcText))
		return nil
	}

	inst.setVector(prefix+"mv.v."+letter, fmt.Sprintf("%v, %s", inst.Rd, srcText))
	if vs2 != 0 {
		return fault(inst, "%s with non-zero vs2", inst.Mnemonic)
	}
	return nil
}

// decodeVectorMemory decodes vector loads and stores (LOAD-FP/STORE-FP with
// a vector width).
func (d *Decoder) decodeVectorMemory(inst *Instruction) error {
	bits := inst.Raw
	load := opcode(bits) == OpcodeLoadFP
	nf := uint8(field(bits, 31, 29))
	mew := bit(bits, 28)
	mode := VectorMode(field(bits, 27, 26))
	masked := bit(bits, 25) == 0
	umop := field(bits, 24, 20)
	vreg := uint8(field(bits, 11, 7))

	inst.Vector.Masked = masked
	inst.Vector.Mode = mode
	inst.Vector.Fields = nf + 1
	inst.Rs1 = X(rs1(bits))
	if load {
		inst.Rd = V(vreg)
	} else {
		inst.Rs3 = V(vreg)
	}

	dir := "l"
	if !load {
		dir = "s"
	}
	seg := ""
	if nf > 0 {
		seg = fmt.Sprintf("seg%d", nf+1)
	}
	dataReg := V(vreg)
	base := fmt.Sprintf("(%v)", inst.Rs1)

	eew, ok := vectorEEW[mew<<3|funct3(bits)]
	if !ok {
		inst.setVector("v"+dir+"e.v", "")
		return fault(inst, "reserved vector element width")
	}
	inst.Vector.EEW = eew
	inst.MemWidth = uint8(eew / 8)

	switch mode {
	case VecUnitStride:
		return d.decodeVectorUnitStride(inst, load, umop, seg, eew, dataReg, base)
	case VecStrided:
		inst.Rs2 = X(rs2(bits))
		inst.setVector(fmt.Sprintf("v%ss%se%d.v", dir, seg, eew),
			fmt.Sprintf("%v, %s, %v%s", dataReg, base, inst.Rs2, maskSuffix(masked)))
	default:
		order := "u"
		if mode == VecIndexedOrdered {
			order = "o"
		}
		inst.Rs2 = V(rs2(bits))
		inst.setVector(fmt.Sprintf("v%s%sx%sei%d.v", dir, order, seg, eew),
			fmt.Sprintf("%v, %s, %v%s", dataReg, base, inst.Rs2, maskSuffix(masked)))
	}
	return nil
}

func (d *Decoder) decodeVectorUnitStride(
	inst *Instruction, load bool, umop uint32, seg string, eew uint16, dataReg Reg, base string,
) error {
	masked := inst.Vector.Masked
	dir := "l"
	if !load {
		dir = "s"
	}
	fields := inst.Vector.Fields

	switch {
	case umop == 0b00000:
		inst.setVector(fmt.Sprintf("v%s%se%d.v", dir, seg, eew),
			fmt.Sprintf("%v, %s%s", dataReg, base, maskSuffix(masked)))

	case umop == 0b01000:
		if load {
			inst.setVector(fmt.Sprintf("vl%dre%d.v", fields, eew), fmt.Sprintf("%v, %s", dataReg, base))
		} else {
			inst.setVector(fmt.Sprintf("vs%dr.v", fields), fmt.Sprintf("%v, %s", dataReg, base))
		}
		switch {
		case fields != 1 && fields != 2 && fields != 4 && fields != 8:
			return fault(inst, "whole-register count %d is reserved", fields)
		case masked:
			return fault(inst, "whole-register access cannot be masked")
		case !load && eew != 8:
			return fault(inst, "whole-register store requires width 8")
		}

	case umop == 0b01011:
		inst.setVector(fmt.Sprintf("v%sm.v", dir), fmt.Sprintf("%v, %s", dataReg, base))
		if eew != 8 || fields != 1 || masked {
			return fault(inst, "mask access requires eew 8, nf 0 and vm 1")
		}

	case umop == 0b10000 && load:
		inst.setVector(fmt.Sprintf("vl%se%dff.v", seg, eew),
			fmt.Sprintf("%v, %s%s", dataReg, base, maskSuffix(masked)))

	default:
		setUnknown(inst)
	}
	return nil
}
