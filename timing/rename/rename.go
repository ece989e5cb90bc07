// Package rename implements register renaming for the timing pipeline.
//
// A Renamer owns, per register class, the rename map table, the retirement
// map, the free list and the physical register file with its busy bits.
// Displaced physical registers are released at retirement, never at rename,
// so an instruction that still has to read the old mapping can do so until
// the renaming instruction commits.
package rename

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sarchlab/rvsim/insts"
)

// NumArchRegs is the number of architectural registers in each class.
const NumArchRegs = 32

// ErrRenameExhausted is returned by Allocate when the free list is empty.
// The caller should retry in a later cycle.
var ErrRenameExhausted = errors.New("rename: free list exhausted")

// PhysReg is a physical register index within one register class.
type PhysReg uint16

// State is the pool a physical register belongs to.
type State uint8

// Physical register states.
const (
	StateFree State = iota
	StateMapped
	StateAwaiting
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateMapped:
		return "mapped"
	case StateAwaiting:
		return "awaiting"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Pools is a snapshot of a register class's physical registers grouped by
// state. Each slice is in ascending order.
type Pools struct {
	Free     []PhysReg
	Mapped   []PhysReg
	Awaiting []PhysReg
}

type classFile struct {
	mapTable  [NumArchRegs]PhysReg
	retireMap [NumArchRegs]PhysReg
	free      []PhysReg
	state     []State
	busy      []bool
	values    []uint64
}

// Renamer holds the renaming state of all register classes.
type Renamer struct {
	numPhys int
	files   [insts.NumRegClasses]*classFile
}

// NewRenamer creates a Renamer with numPhys physical registers per class.
// Architectural register a starts mapped to physical register a and the
// remaining registers start on the free list in ascending order.
func NewRenamer(numPhys int) *Renamer {
	if numPhys <= NumArchRegs {
		panic(fmt.Sprintf("rename: %d physical registers, need more than %d", numPhys, NumArchRegs))
	}

	r := &Renamer{numPhys: numPhys}
	for i := range r.files {
		r.files[i] = newClassFile(numPhys)
	}
	return r
}

func newClassFile(numPhys int) *classFile {
	f := &classFile{
		free:   make([]PhysReg, 0, numPhys),
		state:  make([]State, numPhys),
		busy:   make([]bool, numPhys),
		values: make([]uint64, numPhys),
	}
	for a := range NumArchRegs {
		f.mapTable[a] = PhysReg(a)
		f.retireMap[a] = PhysReg(a)
		f.state[a] = StateMapped
	}
	for p := NumArchRegs; p < numPhys; p++ {
		f.free = append(f.free, PhysReg(p))
	}
	return f
}

func (r *Renamer) file(class insts.RegClass) *classFile {
	if class == insts.RegNone {
		panic("rename: register class none")
	}
	return r.files[class.Index()]
}

// NumPhys returns the number of physical registers per class.
func (r *Renamer) NumPhys() int {
	return r.numPhys
}

// FreeCount returns the number of registers on the free list of a class.
func (r *Renamer) FreeCount(class insts.RegClass) int {
	return len(r.file(class).free)
}

// Allocate pops the oldest register off the free list.
func (r *Renamer) Allocate(class insts.RegClass) (PhysReg, error) {
	f := r.file(class)
	if len(f.free) == 0 {
		return 0, ErrRenameExhausted
	}

	p := f.free[0]
	f.free = f.free[1:]
	f.state[p] = StateMapped
	return p, nil
}

// Lookup returns the speculative mapping of an architectural register.
func (r *Renamer) Lookup(class insts.RegClass, arch uint8) PhysReg {
	return r.file(class).mapTable[arch]
}

// Committed returns the retired mapping of an architectural register.
func (r *Renamer) Committed(class insts.RegClass, arch uint8) PhysReg {
	return r.file(class).retireMap[arch]
}

// Rename maps arch to newPhys and returns the displaced register. The
// displaced register waits for retirement; it is not freed here.
func (r *Renamer) Rename(class insts.RegClass, arch uint8, newPhys PhysReg) PhysReg {
	if class == insts.RegInt && arch == 0 {
		panic("rename: x0 is never renamed")
	}

	f := r.file(class)
	displaced := f.mapTable[arch]
	f.mapTable[arch] = newPhys
	f.state[displaced] = StateAwaiting
	return displaced
}

// Retire commits a rename: the displaced register returns to the free list
// and the retirement map points at newPhys.
func (r *Renamer) Retire(class insts.RegClass, arch uint8, newPhys, displaced PhysReg) {
	f := r.file(class)
	if f.state[displaced] != StateAwaiting {
		panic(fmt.Sprintf("rename: retiring %v p%d whose displaced p%d is %v",
			class, newPhys, displaced, f.state[displaced]))
	}
	if f.retireMap[arch] != displaced {
		panic(fmt.Sprintf("rename: out-of-order retirement of arch %d (committed p%d, displaced p%d)",
			arch, f.retireMap[arch], displaced))
	}

	f.retireMap[arch] = newPhys
	f.state[displaced] = StateFree
	f.busy[displaced] = false
	f.free = append(f.free, displaced)
}

// Rollback undoes a rename during a flush. Renames must be rolled back
// youngest first.
func (r *Renamer) Rollback(class insts.RegClass, arch uint8, newPhys, displaced PhysReg) {
	f := r.file(class)
	if f.mapTable[arch] != newPhys {
		panic(fmt.Sprintf("rename: rollback of arch %d to p%d but it maps to p%d",
			arch, displaced, f.mapTable[arch]))
	}

	f.mapTable[arch] = displaced
	f.state[displaced] = StateMapped
	f.state[newPhys] = StateFree
	f.busy[newPhys] = false
	f.free = append(f.free, newPhys)
}

// SetBusy marks a register as awaiting its producer.
func (r *Renamer) SetBusy(class insts.RegClass, p PhysReg) {
	r.file(class).busy[p] = true
}

// ReleaseBusy marks a register's value as available.
func (r *Renamer) ReleaseBusy(class insts.RegClass, p PhysReg) {
	r.file(class).busy[p] = false
}

// ReadBusy reports whether a register is awaiting its producer.
func (r *Renamer) ReadBusy(class insts.RegClass, p PhysReg) bool {
	return r.file(class).busy[p]
}

// Read returns the value held by a physical register.
func (r *Renamer) Read(class insts.RegClass, p PhysReg) uint64 {
	return r.file(class).values[p]
}

// Write stores a value in a physical register. Physical register 0 of the
// integer class backs x0 and ignores writes.
func (r *Renamer) Write(class insts.RegClass, p PhysReg, v uint64) {
	if class == insts.RegInt && p == 0 {
		return
	}
	r.file(class).values[p] = v
}

// ReadArch returns the committed value of an architectural register.
func (r *Renamer) ReadArch(class insts.RegClass, arch uint8) uint64 {
	f := r.file(class)
	return f.values[f.retireMap[arch]]
}

// WriteArch overwrites the committed value of an architectural register.
// It is only valid when no instruction is in flight.
func (r *Renamer) WriteArch(class insts.RegClass, arch uint8, v uint64) {
	r.Write(class, r.file(class).retireMap[arch], v)
}

// State returns the pool a physical register belongs to.
func (r *Renamer) State(class insts.RegClass, p PhysReg) State {
	return r.file(class).state[p]
}

// Pools returns the registers of a class grouped by state.
func (r *Renamer) Pools(class insts.RegClass) Pools {
	f := r.file(class)
	var pools Pools
	for i, s := range f.state {
		p := PhysReg(i)
		switch s {
		case StateFree:
			pools.Free = append(pools.Free, p)
		case StateMapped:
			pools.Mapped = append(pools.Mapped, p)
		case StateAwaiting:
			pools.Awaiting = append(pools.Awaiting, p)
		}
	}
	return pools
}

// CheckConservation verifies that every physical register is in exactly one
// of the free, mapped and awaiting pools, that the free list agrees with the
// register states and that every map table entry is mapped.
func (r *Renamer) CheckConservation() error {
	for i, f := range r.files {
		class := insts.RegClass(i + 1)

		seen := make([]bool, r.numPhys)
		for _, p := range f.free {
			if seen[p] {
				return fmt.Errorf("%v: p%d appears twice on the free list", class, p)
			}
			seen[p] = true
			if f.state[p] != StateFree {
				return fmt.Errorf("%v: p%d is on the free list but %v", class, p, f.state[p])
			}
		}

		pools := r.Pools(class)
		if len(pools.Free) != len(f.free) {
			return fmt.Errorf("%v: %d registers free but %d on the free list",
				class, len(pools.Free), len(f.free))
		}

		total := len(pools.Free) + len(pools.Mapped) + len(pools.Awaiting)
		if total != r.numPhys {
			return fmt.Errorf("%v: pools hold %d registers, want %d", class, total, r.numPhys)
		}

		for a, p := range f.mapTable {
			if f.state[p] != StateMapped {
				return fmt.Errorf("%v: arch %d maps to p%d which is %v", class, a, p, f.state[p])
			}
			if slices.Index(f.mapTable[:], p) != a {
				return fmt.Errorf("%v: p%d is mapped twice", class, p)
			}
		}
	}
	return nil
}
