package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("Compressed decoding", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	DescribeTable("expands to the 32-bit form",
		func(half uint32, text string) {
			inst, err := decoder.Decode(half, 0x100)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Length).To(Equal(uint8(2)))
			Expect(inst.IsCompressed()).To(BeTrue())
			Expect(inst.Raw).To(Equal(half))
			Expect(inst.Address).To(Equal(uint64(0x100)))
			Expect(inst.Text()).To(Equal(text))
		},
		Entry("c.addi", uint32(0x1101), "addi x2, x2, -32"),
		Entry("c.addi4spn", uint32(0x1000), "addi x8, x2, 32"),
		Entry("c.addi16sp", uint32(0x6105), "addi x2, x2, 32"),
		Entry("c.li", uint32(0x4501), "addi x10, x0, 0"),
		Entry("c.lui", uint32(0x6505), "lui x10, 0x1"),
		Entry("c.mv", uint32(0x852E), "add x10, x0, x11"),
		Entry("c.sdsp", uint32(0xEC06), "sd x1, 24(x2)"),
		Entry("c.ldsp", uint32(0x60E2), "ld x1, 24(x2)"),
		Entry("c.swsp", uint32(0xC602), "sw x0, 12(x2)"),
		Entry("c.lwsp", uint32(0x4632), "lw x12, 12(x2)"),
		Entry("c.ld", uint32(0x6588), "ld x10, 8(x11)"),
		Entry("c.j", uint32(0xA021), "jal x0, 0x8"),
		Entry("c.beqz", uint32(0xC111), "beq x10, x0, 0x4"),
		Entry("c.jr", uint32(0x8082), "jalr x0, 0(x1)"),
		Entry("c.ebreak", uint32(0x9002), "ebreak"),
	)

	It("should link past a 2-byte jump", func() {
		inst, err := decoder.Decode(0x8082, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Op).To(Equal(insts.OpJALR))
		Expect(inst.Imm).To(Equal(int64(2)))
		Expect(inst.TargetBase).To(Equal(insts.TargetRS1))
	})

	It("should keep the c.lui immediate in upper-immediate form", func() {
		inst, _ := decoder.Decode(0x6505, 0)
		Expect(inst.Imm).To(Equal(int64(4096)))
	})

	It("should only consult the low 16 bits", func() {
		inst, err := decoder.Decode(0xFFFF1101, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Raw).To(Equal(uint32(0x1101)))
		Expect(inst.Op).To(Equal(insts.OpADDI))
	})

	DescribeTable("reserved forms decode to the unknown sentinel",
		func(half uint32) {
			inst, err := decoder.Decode(half, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.IsUnknown()).To(BeTrue())
			Expect(inst.Length).To(Equal(uint8(2)))
			Expect(inst.Raw).To(Equal(half))
		},
		Entry("c.addi4spn with zero immediate", uint32(0x0004)),
		Entry("all-zero halfword", uint32(0x0000)),
		Entry("c.jr x0", uint32(0x8002)),
		Entry("c.addiw x0", uint32(0x2001)),
		Entry("c.lwsp x0", uint32(0x4002)),
		Entry("c.addi16sp zero", uint32(0x6101)),
		Entry("quadrant 0 funct3 100", uint32(0x8000)),
	)

	Context("on RV32", func() {
		BeforeEach(func() {
			decoder = insts.NewDecoder(insts.WithXLEN(32))
		})

		It("should decode c.jal instead of c.addiw", func() {
			inst, err := decoder.Decode(0x2001, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Text()).To(Equal("jal x1, 0x0"))
		})

		It("should decode c.flw instead of c.ld", func() {
			inst, err := decoder.Decode(0x6588, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Text()).To(Equal("flw f10, 8(x11)"))
			Expect(inst.Class).To(Equal(insts.ClassFPU))
		})

		It("should reject shift amounts of 32 or more", func() {
			inst, err := decoder.Decode(0x1006, 0) // c.slli x0 with shamt[5] set

			Expect(err).NotTo(HaveOccurred())
			Expect(inst.IsUnknown()).To(BeTrue())
		})
	})
})
