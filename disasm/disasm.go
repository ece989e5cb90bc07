// Package disasm renders instruction halfwords as an assembler listing.
package disasm

import (
	"bufio"
	"fmt"
	"io"

	"github.com/sarchlab/rvsim/insts"
)

// Line is one disassembled instruction.
type Line struct {
	Address    uint64
	Bits       uint32
	Compressed bool
	Text       string
}

func (l Line) String() string {
	code := fmt.Sprintf("%08x", l.Bits)
	if l.Compressed {
		code = fmt.Sprintf("%04x", l.Bits)
	}
	return fmt.Sprintf("%08x: %-8s  %s", l.Address, code, l.Text)
}

// Sweep disassembles halfwords linearly from base. Encodings that do not
// decode are rendered as placeholders and the sweep continues with the
// next instruction. A 32-bit encoding cut off by the end of the input is
// rendered from the halfword that is present.
func Sweep(halfwords []uint16, base uint64, opts ...insts.DecoderOption) []Line {
	d := insts.NewDecoder(opts...)

	var lines []Line
	for i := 0; i < len(halfwords); {
		bits := uint32(halfwords[i])
		size := 1
		if insts.InstructionLength(bits) == 4 {
			size = 2
			if i+1 < len(halfwords) {
				bits |= uint32(halfwords[i+1]) << 16
			}
		}

		compressed, text := d.DecodeToHuman(bits)
		lines = append(lines, Line{
			Address:    base + uint64(2*i),
			Bits:       bits,
			Compressed: compressed,
			Text:       text,
		})
		i += size
	}

	return lines
}

// Write prints one line per instruction.
func Write(w io.Writer, lines []Line) error {
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if _, err := fmt.Fprintln(bw, l); err != nil {
			return err
		}
	}
	return bw.Flush()
}
