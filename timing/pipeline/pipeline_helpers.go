package pipeline

import (
	"fmt"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

var archClasses = [...]insts.RegClass{insts.RegInt, insts.RegFloat, insts.RegVector}

// syncArchState copies the architectural register file into the committed
// physical registers. The pipeline must hold no in-flight instructions.
func (p *Pipeline) syncArchState() {
	for _, class := range archClasses {
		for a := range uint8(32) {
			p.renamer.WriteArch(class, a, p.regFile.Read(insts.Reg{Class: class, Num: a}))
		}
	}
	p.synced = true
}

// readSources returns the physical source values of uop in rs1, rs2, rs3
// order. Unused slots read as 0.
func (p *Pipeline) readSources(uop *MicroOp) [3]uint64 {
	var vals [3]uint64
	for i, src := range uop.Srcs {
		if src.Valid() {
			vals[i] = p.renamer.Read(src.Class, src.Reg)
		}
	}
	return vals
}

// squash discards every in-flight instruction whose epoch is at least
// epoch, restores the rename map, and redirects fetch to target.
func (p *Pipeline) squash(epoch, target uint64, reason string) {
	squashed := p.rob.FlushFrom(epoch, func(e *ROBEntry) {
		if d := e.Uop.Dest; d.Valid() {
			p.renamer.Rollback(d.Class, e.Uop.Inst.Rd.Num, d.Reg, e.Uop.Displaced)
		}
	})

	kept := p.issueQueue[:0]
	for _, uop := range p.issueQueue {
		if !uop.Flushed(epoch) {
			kept = append(kept, uop)
		}
	}
	clear(p.issueQueue[len(kept):])
	p.issueQueue = kept

	p.mdu.Flush(epoch)
	p.lsu.Flush(epoch)
	p.ext.Flush(epoch)

	// Everything still in the front end is younger than any renamed
	// instruction.
	squashed += len(p.fetchQueue) + len(p.decodeQueue)
	p.fetchQueue = p.fetchQueue[:0]
	p.decodeQueue = p.decodeQueue[:0]

	p.epoch++
	p.pc = target

	p.stats.Flushes++
	p.stats.Squashed += uint64(squashed)

	p.log.V(1).Info("flush",
		"reason", reason,
		"cycle", p.stats.Cycles,
		"epoch", epoch,
		"target", hex(target),
		"squashed", squashed)
}

func (p *Pipeline) halt(code int64, err error) {
	p.halted = true
	p.exitCode = code
	p.err = err

	if err != nil {
		p.log.V(1).Info("halt", "cycle", p.stats.Cycles, "code", code, "error", err.Error())
		return
	}
	p.log.V(1).Info("halt", "cycle", p.stats.Cycles, "code", code)
}

// Reset clears all in-flight state and statistics and restarts the latency
// model. The architectural
// register file is left untouched and reloaded on the next Tick.
func (p *Pipeline) Reset() {
	p.buildBackend()
	p.branchPredictor.Reset()
	p.latencyTable.Reset()
	p.executeStage = NewExecuteStage(p.memory, p.config.XLEN, p.extension, p.syscallHandler)

	p.pc = p.regFile.PC
	p.nextTag = 0
	p.epoch = 0
	p.fetchStall = 0
	p.stats = Statistics{}
	p.halted = false
	p.exitCode = 0
	p.err = nil
}

func illegalInstruction(uop *MicroOp) error {
	if uop.Fault != nil {
		return fmt.Errorf("%w: %w", emu.ErrIllegalInstruction, uop.Fault)
	}
	return fmt.Errorf("%w: unknown encoding 0x%x at 0x%x",
		emu.ErrIllegalInstruction, uop.Inst.Raw, uop.Inst.Address)
}

func hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}
