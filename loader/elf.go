// Package loader reads RISC-V programs into simulator memory, either from
// ELF executables or from hex images of instruction halfwords.
package loader

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/sarchlab/rvsim/emu"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Default stack tops for RV64 and RV32 Linux user space.
const (
	DefaultStackTop   = 0x7ffffffff000
	DefaultStackTop32 = 0x7ffff000
)

// DefaultStackSize is the default stack size (8MB).
const DefaultStackSize = 8 * 1024 * 1024

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint64
	// XLEN is 32 for ELF32 files and 64 for ELF64 files.
	XLEN int
}

// Load parses a little-endian RISC-V ELF executable.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("not a little-endian ELF file")
	}

	prog := &Program{EntryPoint: f.Entry}
	switch f.Class {
	case elf.ELFCLASS64:
		prog.XLEN = 64
		prog.InitialSP = DefaultStackTop
	case elf.ELFCLASS32:
		prog.XLEN = 32
		prog.InitialSP = DefaultStackTop32
	default:
		return nil, fmt.Errorf("unsupported ELF class %v", f.Class)
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	return prog, nil
}

// LoadInto copies every segment into memory and zero-fills the BSS tail.
func (p *Program) LoadInto(memory *emu.Memory) {
	for _, seg := range p.Segments {
		memory.LoadProgram(seg.VirtAddr, seg.Data)
		for addr := seg.VirtAddr + uint64(len(seg.Data)); addr < seg.VirtAddr+seg.MemSize; addr++ {
			memory.Write8(addr, 0)
		}
	}
}
