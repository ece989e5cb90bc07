package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("MulDiv", func() {
	var md *emu.MulDiv

	const minInt64 = uint64(1) << 63

	BeforeEach(func() {
		md = emu.NewMulDiv(64)
	})

	DescribeTable("64-bit results",
		func(op insts.MDUOp, a, b, want uint64) {
			Expect(md.Compute(op, a, b, false)).To(Equal(want))
		},
		Entry("mul", insts.MDUMul, uint64(6), uint64(7), uint64(42)),
		Entry("mul wraps", insts.MDUMul, ^uint64(0), uint64(2), ^uint64(1)),
		Entry("mulh -1*-1", insts.MDUMulh, ^uint64(0), ^uint64(0), uint64(0)),
		Entry("mulh MIN*MIN", insts.MDUMulh, minInt64, minInt64, uint64(1)<<62),
		Entry("mulh -1*1", insts.MDUMulh, ^uint64(0), uint64(1), ^uint64(0)),
		Entry("mulhu max*max", insts.MDUMulhu, ^uint64(0), ^uint64(0), ^uint64(1)),
		Entry("mulhsu -1*max", insts.MDUMulhsu, ^uint64(0), ^uint64(0), ^uint64(0)),
		Entry("mulhsu 2^62*4", insts.MDUMulhsu, uint64(1)<<62, uint64(4), uint64(1)),
		Entry("div truncates toward zero", insts.MDUDiv, uint64(math.MaxUint64-6), uint64(2), uint64(math.MaxUint64-2)),
		Entry("rem takes the dividend's sign", insts.MDURem, uint64(math.MaxUint64-6), uint64(2), ^uint64(0)),
		Entry("divu", insts.MDUDivu, uint64(100), uint64(7), uint64(14)),
		Entry("remu", insts.MDURemu, uint64(100), uint64(7), uint64(2)),
	)

	Describe("defined edge cases", func() {
		It("should return all ones for divu by zero", func() {
			for _, a := range []uint64{0, 1, 12345, minInt64, math.MaxUint64} {
				Expect(md.Compute(insts.MDUDivu, a, 0, false)).To(Equal(uint64(math.MaxUint64)))
			}
		})

		It("should return the dividend for remu by zero", func() {
			for _, a := range []uint64{0, 1, 12345, minInt64, math.MaxUint64} {
				Expect(md.Compute(insts.MDURemu, a, 0, false)).To(Equal(a))
			}
		})

		It("should return all ones for div by zero and the dividend for rem", func() {
			Expect(md.Compute(insts.MDUDiv, 5, 0, false)).To(Equal(uint64(math.MaxUint64)))
			Expect(md.Compute(insts.MDURem, 5, 0, false)).To(Equal(uint64(5)))
		})

		It("should return MIN for div(MIN, -1) and 0 for rem(MIN, -1)", func() {
			Expect(md.Compute(insts.MDUDiv, minInt64, ^uint64(0), false)).To(Equal(minInt64))
			Expect(md.Compute(insts.MDURem, minInt64, ^uint64(0), false)).To(BeZero())
		})
	})

	Describe("word forms", func() {
		It("should sign-extend mulw", func() {
			Expect(md.Compute(insts.MDUMul, 0x10000, 0x8000, true)).To(Equal(uint64(0xFFFFFFFF80000000)))
		})

		It("should apply the 32-bit edge cases", func() {
			Expect(md.Compute(insts.MDUDiv, 0x80000000, 0xFFFFFFFF, true)).To(Equal(uint64(0xFFFFFFFF80000000)))
			Expect(md.Compute(insts.MDURem, 0x80000000, 0xFFFFFFFF, true)).To(BeZero())
			Expect(md.Compute(insts.MDUDivu, 9, 0, true)).To(Equal(uint64(math.MaxUint64)))
			Expect(md.Compute(insts.MDURemu, 0x80000001, 0, true)).To(Equal(uint64(0xFFFFFFFF80000001)))
		})

		It("should ignore the upper operand bits", func() {
			Expect(md.Compute(insts.MDUDivu, 0xFFFF_0000_0000_0010, 4, true)).To(Equal(uint64(4)))
		})
	})

	Context("with XLEN 32", func() {
		BeforeEach(func() {
			md = emu.NewMulDiv(32)
		})

		It("should yield 2^32-1 for divu by zero", func() {
			Expect(md.Compute(insts.MDUDivu, 77, 0, false)).To(Equal(uint64(0xFFFFFFFF)))
		})

		It("should compute the high word of a 64-bit product", func() {
			Expect(md.Compute(insts.MDUMulhu, 0xFFFFFFFF, 0xFFFFFFFF, false)).To(Equal(uint64(0xFFFFFFFE)))
			Expect(md.Compute(insts.MDUMulh, 0xFFFFFFFF, 0xFFFFFFFF, false)).To(BeZero())
			Expect(md.Compute(insts.MDUMulhsu, 0xFFFFFFFF, 0xFFFFFFFF, false)).To(Equal(uint64(0xFFFFFFFF)))
		})

		It("should handle signed overflow", func() {
			Expect(md.Compute(insts.MDUDiv, 0x80000000, 0xFFFFFFFF, false)).To(Equal(uint64(0x80000000)))
		})
	})
})
