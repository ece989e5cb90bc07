package emu

const pageBits = 12

const pageSize = 1 << pageBits

// Memory is a sparse, byte-addressable, little-endian memory. Pages are
// allocated on first write; unwritten bytes read as zero.
type Memory struct {
	pages map[uint64]*[pageSize]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64]*[pageSize]byte)}
}

func (m *Memory) page(addr uint64, create bool) *[pageSize]byte {
	p, ok := m.pages[addr>>pageBits]
	if !ok && create {
		p = new([pageSize]byte)
		m.pages[addr>>pageBits] = p
	}
	return p
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) uint8 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr&(pageSize-1)]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint64, value uint8) {
	m.page(addr, true)[addr&(pageSize-1)] = value
}

// ReadN reads an n-byte little-endian value, n <= 8.
func (m *Memory) ReadN(addr uint64, n int) uint64 {
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(m.Read8(addr+uint64(i)))
	}
	return v
}

// WriteN writes the low n bytes of value in little-endian order, n <= 8.
func (m *Memory) WriteN(addr uint64, value uint64, n int) {
	for i := 0; i < n; i++ {
		m.Write8(addr+uint64(i), uint8(value>>(8*i)))
	}
}

// Read16 reads a halfword.
func (m *Memory) Read16(addr uint64) uint16 { return uint16(m.ReadN(addr, 2)) }

// Read32 reads a word.
func (m *Memory) Read32(addr uint64) uint32 { return uint32(m.ReadN(addr, 4)) }

// Read64 reads a doubleword.
func (m *Memory) Read64(addr uint64) uint64 { return m.ReadN(addr, 8) }

// Write16 writes a halfword.
func (m *Memory) Write16(addr uint64, value uint16) { m.WriteN(addr, uint64(value), 2) }

// Write32 writes a word.
func (m *Memory) Write32(addr uint64, value uint32) { m.WriteN(addr, uint64(value), 4) }

// Write64 writes a doubleword.
func (m *Memory) Write64(addr uint64, value uint64) { m.WriteN(addr, value, 8) }

// LoadProgram copies program into memory starting at addr.
func (m *Memory) LoadProgram(addr uint64, program []byte) {
	for i, b := range program {
		m.Write8(addr+uint64(i), b)
	}
}

// LoadHalfwords stores halfwords consecutively starting at addr.
func (m *Memory) LoadHalfwords(addr uint64, halfwords []uint16) {
	for i, h := range halfwords {
		m.Write16(addr+2*uint64(i), h)
	}
}

// Fetch returns the instruction bits at addr. A compressed instruction
// occupies only the low halfword of the result; the upper halfword is read
// only when the low bits mark a 32-bit encoding.
func (m *Memory) Fetch(addr uint64) uint32 {
	lo := uint32(m.Read16(addr))
	if lo&0b11 != 0b11 {
		return lo
	}
	return lo | uint32(m.Read16(addr+2))<<16
}
