package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("ALU", func() {
	var (
		alu     *emu.ALU
		decoder *insts.Decoder
	)

	BeforeEach(func() {
		alu = emu.NewALU(64)
		decoder = insts.NewDecoder()
	})

	decode := func(bits uint32, pc uint64) *insts.Instruction {
		inst, err := decoder.Decode(bits, pc)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return inst
	}

	// addi x5, x0, 10
	It("should add an immediate through port B", func() {
		inst := decode(0x00A00293, 0x1000)

		r := alu.Execute(inst, 0, 0, 0x1000)

		Expect(r.Value).To(Equal(uint64(10)))
		Expect(r.Redirect).To(BeFalse())
		Expect(r.NextPC(inst, 0x1000)).To(Equal(uint64(0x1004)))
	})

	DescribeTable("64-bit operations",
		func(op insts.ALUOp, a, b, want uint64) {
			Expect(alu.Compute(op, a, b, false)).To(Equal(want))
		},
		Entry("add wraps", insts.ALUAdd, ^uint64(0), uint64(2), uint64(1)),
		Entry("sub", insts.ALUSub, uint64(3), uint64(5), ^uint64(1)),
		Entry("sll masks to 6 bits", insts.ALUSll, uint64(1), uint64(65), uint64(2)),
		Entry("srl", insts.ALUSrl, uint64(1)<<63, uint64(63), uint64(1)),
		Entry("sra", insts.ALUSra, uint64(1)<<63, uint64(63), ^uint64(0)),
		Entry("and", insts.ALUAnd, uint64(0b1100), uint64(0b1010), uint64(0b1000)),
		Entry("or", insts.ALUOr, uint64(0b1100), uint64(0b1010), uint64(0b1110)),
		Entry("xor", insts.ALUXor, uint64(0b1100), uint64(0b1010), uint64(0b0110)),
		Entry("slt signed", insts.ALUSlt, ^uint64(0), uint64(1), uint64(1)),
		Entry("sltu unsigned", insts.ALUSltu, ^uint64(0), uint64(1), uint64(0)),
		Entry("bypass", insts.ALUBypass, uint64(42), uint64(7), uint64(42)),
	)

	DescribeTable("word operations sign-extend",
		func(op insts.ALUOp, a, b, want uint64) {
			Expect(alu.Compute(op, a, b, true)).To(Equal(want))
		},
		Entry("addw overflow", insts.ALUAdd, uint64(0x7FFFFFFF), uint64(1), uint64(0xFFFFFFFF80000000)),
		Entry("sllw masks to 5 bits", insts.ALUSll, uint64(1), uint64(33), uint64(2)),
		Entry("srlw ignores upper bits", insts.ALUSrl, uint64(0xFFFFFFFF00000010), uint64(4), uint64(1)),
		Entry("sraw", insts.ALUSra, uint64(0x80000000), uint64(4), uint64(0xFFFFFFFFF8000000)),
	)

	It("should sign-extend LUI immediates on RV64", func() {
		inst := decode(insts.EncodeU(insts.OpcodeLUI, 5, 0x80000000), 0)

		Expect(alu.Execute(inst, 0, 0, 0).Value).To(Equal(uint64(0xFFFFFFFF80000000)))
	})

	It("should add the PC for AUIPC", func() {
		inst := decode(insts.EncodeU(insts.OpcodeAUIPC, 5, 0x1000), 0x2000)

		Expect(alu.Execute(inst, 0, 0, 0x2000).Value).To(Equal(uint64(0x3000)))
	})

	Describe("Control flow", func() {
		// beq x1, x2, +8
		It("should redirect a taken beq to PC+8", func() {
			inst := decode(0x00208463, 0x400)

			r := alu.Execute(inst, 7, 7, 0x400)

			Expect(r.Redirect).To(BeTrue())
			Expect(r.Target).To(Equal(uint64(0x408)))
			Expect(r.NextPC(inst, 0x400)).To(Equal(uint64(0x408)))
		})

		It("should fall through a not-taken beq", func() {
			inst := decode(0x00208463, 0x400)

			r := alu.Execute(inst, 7, 8, 0x400)

			Expect(r.Redirect).To(BeFalse())
			Expect(r.NextPC(inst, 0x400)).To(Equal(uint64(0x404)))
		})

		It("should link and jump for jal", func() {
			inst := decode(0x008000EF, 0x100)

			r := alu.Execute(inst, 0, 0, 0x100)

			Expect(r.Value).To(Equal(uint64(0x104)))
			Expect(r.Target).To(Equal(uint64(0x108)))
			Expect(r.Redirect).To(BeTrue())
		})

		It("should clear bit 0 of a jalr target", func() {
			inst := decode(insts.JALR(1, 5, 3), 0x100)

			r := alu.Execute(inst, 0x2000, 0, 0x100)

			Expect(r.Target).To(Equal(uint64(0x2002)))
			Expect(r.Value).To(Equal(uint64(0x104)))
		})

		It("should link past a compressed jump", func() {
			inst := decode(0x8082, 0x100) // ret

			r := alu.Execute(inst, 0x3000, 0, 0x100)

			Expect(r.Value).To(Equal(uint64(0x102)))
			Expect(r.Target).To(Equal(uint64(0x3000)))
		})

		DescribeTable("branch conditions",
			func(cond insts.BranchCond, a, b uint64, taken bool) {
				Expect(alu.EvaluateBranch(cond, a, b)).To(Equal(taken))
			},
			Entry("bne", insts.CondNE, uint64(1), uint64(2), true),
			Entry("blt signed", insts.CondLT, ^uint64(0), uint64(0), true),
			Entry("bge signed", insts.CondGE, uint64(0), ^uint64(0), true),
			Entry("bltu unsigned", insts.CondLTU, ^uint64(0), uint64(0), false),
			Entry("bgeu unsigned", insts.CondGEU, ^uint64(0), uint64(0), true),
		)
	})

	Context("with XLEN 32", func() {
		BeforeEach(func() {
			alu = emu.NewALU(32)
		})

		It("should mask results to 32 bits", func() {
			Expect(alu.Compute(insts.ALUAdd, 0xFFFFFFFF, 1, false)).To(BeZero())
		})

		It("should mask shift amounts to 5 bits", func() {
			Expect(alu.Compute(insts.ALUSll, 1, 33, false)).To(Equal(uint64(2)))
		})

		It("should compare as 32-bit signed values", func() {
			Expect(alu.Compute(insts.ALUSlt, 0xFFFFFFFF, 0, false)).To(Equal(uint64(1)))
			Expect(alu.EvaluateBranch(insts.CondLT, 0x80000000, 1)).To(BeTrue())
		})
	})
})
