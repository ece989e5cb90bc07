package disasm_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/disasm"
)

var _ = Describe("Sweep", func() {
	It("should walk mixed compressed and standard encodings", func() {
		halfwords := []uint16{
			0x4505,         // c.li a0, 1
			0x0293, 0x00A0, // addi t0, zero, 10
			0x0001, // c.nop
		}

		lines := disasm.Sweep(halfwords, 0x1000)

		Expect(lines).To(HaveLen(3))
		Expect(lines[0].Address).To(Equal(uint64(0x1000)))
		Expect(lines[0].Compressed).To(BeTrue())
		Expect(lines[1].Address).To(Equal(uint64(0x1002)))
		Expect(lines[1].Bits).To(Equal(uint32(0x00A00293)))
		Expect(lines[1].Text).To(HavePrefix("addi"))
		Expect(lines[2].Address).To(Equal(uint64(0x1006)))
	})

	It("should continue past unknown encodings", func() {
		lines := disasm.Sweep([]uint16{0x007F, 0x0000, 0x4505}, 0)

		Expect(lines).To(HaveLen(2))
		Expect(lines[0].Text).To(Equal(".instr {0x7f}"))
		Expect(lines[1].Compressed).To(BeTrue())
	})

	It("should mark decode faults as illegal", func() {
		lines := disasm.Sweep([]uint16{0x7283, 0x0085}, 0)

		Expect(lines[0].Text).To(Equal(".illegal {0x857283}"))
	})

	It("should render a truncated final word", func() {
		lines := disasm.Sweep([]uint16{0x0293}, 0)

		Expect(lines).To(HaveLen(1))
		Expect(lines[0].Bits).To(Equal(uint32(0x0293)))
	})
})

var _ = Describe("Write", func() {
	It("should print addresses and encodings of the right width", func() {
		var buf bytes.Buffer
		lines := disasm.Sweep([]uint16{0x4505, 0x0293, 0x00A0}, 0x80)

		Expect(disasm.Write(&buf, lines)).To(Succeed())

		out := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(out).To(HaveLen(2))
		Expect(out[0]).To(HavePrefix("00000080: 4505      "))
		Expect(out[1]).To(HavePrefix("00000082: 00a00293  addi"))
	})

	It("should pad the encoding column to eight characters", func() {
		lines := disasm.Sweep([]uint16{0x4505, 0x0293, 0x00A0}, 0x80)

		for _, line := range lines {
			text := line.String()
			Expect(text[8:10]).To(Equal(": "))
			Expect(text[18:20]).To(Equal("  "))
			Expect(text[20:]).NotTo(HavePrefix(" "))
		}
	})
})
