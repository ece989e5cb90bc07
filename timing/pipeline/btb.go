package pipeline

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// btbBlockSize is the instruction alignment. Each BTB way tracks one
// halfword-aligned branch address.
const btbBlockSize = 2

// BTB is a set-associative branch target buffer with LRU replacement,
// built on the Akita cache directory.
type BTB struct {
	directory *akitacache.DirectoryImpl
	targets   []uint64
	ways      int
}

// NewBTB creates a BTB with the given number of sets and ways.
func NewBTB(sets, ways int) *BTB {
	return &BTB{
		directory: akitacache.NewDirectory(
			sets,
			ways,
			btbBlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		targets: make([]uint64, sets*ways),
		ways:    ways,
	}
}

func (b *BTB) index(block *akitacache.Block) int {
	return block.SetID*b.ways + block.WayID
}

// Lookup returns the recorded target of the branch at pc.
func (b *BTB) Lookup(pc uint64) (uint64, bool) {
	block := b.directory.Lookup(0, pc)
	if block == nil || !block.IsValid {
		return 0, false
	}

	b.directory.Visit(block)
	return b.targets[b.index(block)], true
}

// Insert records the target of the branch at pc, evicting the least
// recently used way of its set when needed.
func (b *BTB) Insert(pc, target uint64) {
	block := b.directory.Lookup(0, pc)
	if block == nil {
		block = b.directory.FindVictim(pc)
		block.Tag = pc
		block.IsValid = true
	}

	b.targets[b.index(block)] = target
	b.directory.Visit(block)
}

// Reset invalidates every entry.
func (b *BTB) Reset() {
	b.directory.Reset()
	clear(b.targets)
}
