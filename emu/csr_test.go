package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("CSRFile", func() {
	var (
		csrs    *emu.CSRFile
		decoder *insts.Decoder
	)

	BeforeEach(func() {
		csrs = emu.NewCSRFile()
		decoder = insts.NewDecoder()
	})

	csrInst := func(funct3 uint32, rd, rs1 uint8, csr uint16) *insts.Instruction {
		bits := uint32(csr)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | insts.OpcodeSystem
		inst, err := decoder.Decode(bits, 0)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return inst
	}

	It("should swap with csrrw", func() {
		csrs.Write(insts.CSRMscratch, 5)
		inst := csrInst(1, 5, 6, insts.CSRMscratch)

		Expect(csrs.Execute(inst, 9)).To(Equal(uint64(5)))
		Expect(csrs.Read(insts.CSRMscratch)).To(Equal(uint64(9)))
	})

	It("should set and clear bits", func() {
		csrs.Write(insts.CSRMscratch, 0b1010)

		csrs.Execute(csrInst(2, 0, 6, insts.CSRMscratch), 0b0101)
		Expect(csrs.Read(insts.CSRMscratch)).To(Equal(uint64(0b1111)))

		csrs.Execute(csrInst(3, 0, 6, insts.CSRMscratch), 0b0011)
		Expect(csrs.Read(insts.CSRMscratch)).To(Equal(uint64(0b1100)))
	})

	It("should not write when csrrs reads through x0", func() {
		csrs.Write(insts.CSRMscratch, 3)

		old := csrs.Execute(csrInst(2, 5, 0, insts.CSRMscratch), 0xFF)

		Expect(old).To(Equal(uint64(3)))
		Expect(csrs.Read(insts.CSRMscratch)).To(Equal(uint64(3)))
	})

	It("should use the immediate for the I forms", func() {
		inst := csrInst(5, 0, 7, insts.CSRMscratch) // csrrwi x0, mscratch, 7

		csrs.Execute(inst, emu.CSRSource(inst, 0))

		Expect(csrs.Read(insts.CSRMscratch)).To(Equal(uint64(7)))
	})

	It("should report counters and ignore writes to them", func() {
		csrs.SetCounters(100, 40)
		inst := csrInst(1, 5, 6, insts.CSRCycle)

		Expect(csrs.Execute(inst, 1)).To(Equal(uint64(100)))
		Expect(csrs.Read(insts.CSRCycle)).To(Equal(uint64(100)))
		Expect(csrs.Read(insts.CSRInstret)).To(Equal(uint64(40)))
	})
})
