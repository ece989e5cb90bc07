package insts

import (
	"errors"
	"fmt"
	"strings"
)

// Well-known CSR numbers.
const (
	CSRFflags   uint16 = 0x001
	CSRFrm      uint16 = 0x002
	CSRFcsr     uint16 = 0x003
	CSRVstart   uint16 = 0x008
	CSRMstatus  uint16 = 0x300
	CSRMtvec    uint16 = 0x305
	CSRMscratch uint16 = 0x340
	CSRMepc     uint16 = 0x341
	CSRMcause   uint16 = 0x342
	CSRCycle    uint16 = 0xC00
	CSRTime     uint16 = 0xC01
	CSRInstret  uint16 = 0xC02
	CSRVl       uint16 = 0xC20
	CSRVtype    uint16 = 0xC21
	CSRVlenb    uint16 = 0xC22
	CSRMhartid  uint16 = 0xF14
)

var csrNames = map[uint16]string{
	CSRFflags: "fflags", CSRFrm: "frm", CSRFcsr: "fcsr", CSRVstart: "vstart",
	CSRMstatus: "mstatus", CSRMtvec: "mtvec", CSRMscratch: "mscratch",
	CSRMepc: "mepc", CSRMcause: "mcause",
	CSRCycle: "cycle", CSRTime: "time", CSRInstret: "instret",
	CSRVl: "vl", CSRVtype: "vtype", CSRVlenb: "vlenb", CSRMhartid: "mhartid",
}

// CSRName returns the assembler name of a CSR, or its number in hex.
func CSRName(csr uint16) string {
	if name, ok := csrNames[csr]; ok {
		return name
	}
	return fmt.Sprintf("0x%03x", csr)
}

// DatapathImm returns the immediate as the ALU consumes it. Upper
// immediates are held unsigned in Imm and enter the datapath sign-extended
// from bit 31.
func (inst *Instruction) DatapathImm() int64 {
	if inst.Op == OpLUI || inst.Op == OpAUIPC {
		return int64(int32(uint32(inst.Imm)))
	}
	return inst.Imm
}

// signedHex renders v as 0x8 or -0x8.
func signedHex(v int64) string {
	if v < 0 {
		return fmt.Sprintf("-0x%x", uint64(-v))
	}
	return fmt.Sprintf("0x%x", v)
}

func fenceSet(v uint32) string {
	var sb strings.Builder
	for i, c := range "iorw" {
		if v&(1<<(3-i)) != 0 {
			sb.WriteRune(c)
		}
	}
	if sb.Len() == 0 {
		return "0"
	}
	return sb.String()
}

// UnknownText is the disassembly of an unknown-instruction sentinel.
func UnknownText(raw uint32) string {
	return fmt.Sprintf(".instr {0x%x}", raw)
}

// IllegalText is the disassembly of an encoding that raised a decode
// fault.
func IllegalText(raw uint32) string {
	return fmt.Sprintf(".illegal {0x%x}", raw)
}

// Operands renders the operand list of the instruction.
func (inst *Instruction) Operands() string {
	switch inst.Syntax {
	case SyntaxR:
		return fmt.Sprintf("%v, %v, %v", inst.Rd, inst.Rs1, inst.Rs2)
	case SyntaxR2:
		return fmt.Sprintf("%v, %v", inst.Rd, inst.Rs1)
	case SyntaxR4:
		return fmt.Sprintf("%v, %v, %v, %v", inst.Rd, inst.Rs1, inst.Rs2, inst.Rs3)
	case SyntaxI, SyntaxShift:
		return fmt.Sprintf("%v, %v, %d", inst.Rd, inst.Rs1, inst.Imm)
	case SyntaxU:
		return fmt.Sprintf("%v, 0x%x", inst.Rd, uint64(inst.Imm)>>12)
	case SyntaxJ:
		return fmt.Sprintf("%v, %s", inst.Rd, signedHex(inst.Offset))
	case SyntaxB:
		return fmt.Sprintf("%v, %v, %s", inst.Rs1, inst.Rs2, signedHex(inst.Offset))
	case SyntaxLoad, SyntaxJALR:
		return fmt.Sprintf("%v, %d(%v)", inst.Rd, inst.Offset, inst.Rs1)
	case SyntaxStore:
		return fmt.Sprintf("%v, %d(%v)", inst.Rs2, inst.Offset, inst.Rs1)
	case SyntaxCSR:
		return fmt.Sprintf("%v, %s, %v", inst.Rd, CSRName(inst.CSR), inst.Rs1)
	case SyntaxCSRI:
		return fmt.Sprintf("%v, %s, %d", inst.Rd, CSRName(inst.CSR), inst.Imm)
	case SyntaxAMO:
		return fmt.Sprintf("%v, %v, (%v)", inst.Rd, inst.Rs2, inst.Rs1)
	case SyntaxLR:
		return fmt.Sprintf("%v, (%v)", inst.Rd, inst.Rs1)
	case SyntaxFence:
		return fenceSet(uint32(inst.Imm)>>4) + ", " + fenceSet(uint32(inst.Imm)&0xF)
	case SyntaxCustom:
		return inst.operands
	default:
		return ""
	}
}

// Text renders the instruction in assembler syntax.
func (inst *Instruction) Text() string {
	if inst.IsUnknown() {
		return UnknownText(inst.Raw)
	}
	ops := inst.Operands()
	if ops == "" {
		return inst.Mnemonic
	}
	return inst.Mnemonic + " " + ops
}

func (inst *Instruction) String() string {
	return inst.Text()
}

// DecodeToHuman decodes bits and renders them for a disassembly listing.
// It never fails: unknown encodings and decode faults render as
// placeholders so a linear sweep can continue past them.
func (d *Decoder) DecodeToHuman(bits uint32) (compressed bool, text string) {
	inst, err := d.Decode(bits, 0)
	compressed = inst.IsCompressed()

	if errors.Is(err, ErrDecodeFault) {
		return compressed, IllegalText(inst.Raw)
	}
	return compressed, inst.Text()
}
