package pipeline

import (
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/rename"
)

// RenameStall is the reason an instruction could not be renamed this cycle.
type RenameStall uint8

// Rename stall reasons.
const (
	StallNone RenameStall = iota
	StallROBFull
	StallIssueQueueFull
	StallFreeList
)

func (s RenameStall) String() string {
	switch s {
	case StallROBFull:
		return "rob full"
	case StallIssueQueueFull:
		return "issue queue full"
	case StallFreeList:
		return "free list exhausted"
	}
	return "none"
}

// HazardUnit decides whether instructions may rename and issue.
type HazardUnit struct {
	renamer *rename.Renamer
}

// NewHazardUnit creates a hazard unit over the renamer's busy bits.
func NewHazardUnit(renamer *rename.Renamer) *HazardUnit {
	return &HazardUnit{renamer: renamer}
}

// CheckRename reports the structural hazard that keeps inst from renaming.
// Faulting and unknown instructions only need a reorder buffer entry.
func (h *HazardUnit) CheckRename(inst *insts.Instruction, executable bool, rob *ReorderBuffer, iqLen, iqSize int) RenameStall {
	if rob.Full() {
		return StallROBFull
	}
	if !executable {
		return StallNone
	}
	if iqLen >= iqSize {
		return StallIssueQueueFull
	}
	if inst.WritesRd() && h.renamer.FreeCount(inst.Rd.Class) == 0 {
		return StallFreeList
	}
	return StallNone
}

// SourcesReady reports whether every physical source of uop holds its
// value.
func (h *HazardUnit) SourcesReady(uop *MicroOp) bool {
	for _, src := range uop.Srcs {
		if src.Valid() && h.renamer.ReadBusy(src.Class, src.Reg) {
			return false
		}
	}
	return true
}
