package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/latency"
	"github.com/sarchlab/rvsim/timing/rename"
)

// ErrMaxCycles is reported when a run hits the configured cycle limit.
var ErrMaxCycles = errors.New("max cycles reached")

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of cycles in which rename stalled on a structural
	// hazard: a full reorder buffer, a full issue queue or an empty free
	// list. Operand waits in the issue queue are not counted.
	Stalls uint64
	// ROBFullStalls, IssueQueueStalls and FreeListStalls break Stalls down
	// by cause.
	ROBFullStalls    uint64
	IssueQueueStalls uint64
	FreeListStalls   uint64
	// Flushes is the number of pipeline flushes (mispredictions and
	// serializing instructions).
	Flushes uint64
	// Squashed is the number of in-flight instructions discarded by flushes.
	Squashed uint64
	// BranchPredictions is the number of retired conditional branches.
	BranchPredictions uint64
	// BranchCorrect is the number of those that were predicted correctly.
	BranchCorrect uint64
	// BranchMispredictions is the number of mispredicted control-flow
	// instructions that retired.
	BranchMispredictions uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler emu.SyscallHandler) PipelineOption {
	return func(p *Pipeline) {
		p.syscallHandler = handler
	}
}

// WithLatencyTable sets a custom latency table for instruction timing.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.latencyTable = table
	}
}

// WithLogger sets the logger for flushes, stalls and halts.
func WithLogger(log logr.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithExtensionUnit sets the unit that executes FPU and VECTOR
// instructions.
func WithExtensionUnit(unit emu.ExtensionUnit) PipelineOption {
	return func(p *Pipeline) {
		p.extension = unit
	}
}

// WithMaxCycles stops the pipeline with ErrMaxCycles after the given
// number of cycles. Zero means no limit.
func WithMaxCycles(cycles uint64) PipelineOption {
	return func(p *Pipeline) {
		p.maxCycles = cycles
	}
}

// Pipeline is an out-of-order core with in-order retirement.
//
// Each Tick runs the stages from the back of the pipeline to the front:
// retire, functional-unit writeback, issue, rename, decode and fetch.
// Results produced during a tick are applied at the end of the tick, after
// which the oldest mispredicted control-flow instruction, if any, flushes
// everything younger.
type Pipeline struct {
	config Config

	fetchStage   *FetchStage
	decodeStage  *DecodeStage
	executeStage *ExecuteStage

	hazardUnit      *HazardUnit
	branchPredictor *BranchPredictor
	latencyTable    *latency.Table
	renamer         *rename.Renamer
	rob             *ReorderBuffer

	fetchQueue  []*FetchedInstruction
	decodeQueue []*FetchedInstruction
	issueQueue  []*MicroOp

	mdu *UnitQueue
	lsu *UnitQueue
	ext *UnitQueue

	completions []ExecutionResult

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory

	syscallHandler emu.SyscallHandler
	extension      emu.ExtensionUnit
	log            logr.Logger

	pc         uint64
	nextTag    uint64
	epoch      uint64
	fetchStall uint64
	synced     bool

	maxCycles uint64
	stats     Statistics

	halted   bool
	exitCode int64
	err      error
}

// NewPipeline creates a pipeline that commits architectural state to
// regFile and runs out of memory. It panics if the configuration is
// invalid.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		config:    DefaultConfig(),
		regFile:   regFile,
		memory:    memory,
		extension: emu.StubExtensionUnit{},
		log:       logr.Discard(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.config.Validate(); err != nil {
		panic(fmt.Sprintf("pipeline: %v", err))
	}

	if p.latencyTable == nil {
		p.latencyTable = latency.NewTable()
	}
	if p.syscallHandler == nil {
		p.syscallHandler = emu.NewDefaultSyscallHandler(regFile, memory, os.Stdout, os.Stderr)
	}

	decoder := insts.NewDecoder(insts.WithXLEN(p.config.XLEN))
	p.branchPredictor = NewBranchPredictor(p.config.Predictor)
	p.fetchStage = NewFetchStage(memory, decoder, p.branchPredictor)
	p.decodeStage = NewDecodeStage(decoder)
	p.executeStage = NewExecuteStage(memory, p.config.XLEN, p.extension, p.syscallHandler)
	p.buildBackend()
	p.pc = regFile.PC

	return p
}

func (p *Pipeline) buildBackend() {
	p.renamer = rename.NewRenamer(p.config.PhysRegs)
	p.hazardUnit = NewHazardUnit(p.renamer)
	p.rob = NewReorderBuffer(p.config.ROBSize)
	p.mdu = NewUnitQueue("mdu", p.config.MDUQueueSize)
	p.lsu = NewUnitQueue("lsu", 1)
	p.ext = NewUnitQueue("extension", p.config.ExtensionQueueSize)
	p.fetchQueue = nil
	p.decodeQueue = nil
	p.issueQueue = nil
	p.completions = nil
	p.synced = false
}

// PC returns the next fetch address.
func (p *Pipeline) PC() uint64 {
	return p.pc
}

// SetPC sets the program counter. It must be called before the first Tick.
func (p *Pipeline) SetPC(pc uint64) {
	p.pc = pc
	p.regFile.PC = pc
	p.syncArchState()
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// BranchPredictorStats returns the predictor statistics, which include
// predictions made on the wrong path.
func (p *Pipeline) BranchPredictorStats() BranchPredictorStats {
	return p.branchPredictor.Stats()
}

// Renamer returns the register renaming state.
func (p *Pipeline) Renamer() *rename.Renamer {
	return p.renamer
}

// ROB returns the reorder buffer.
func (p *Pipeline) ROB() *ReorderBuffer {
	return p.rob
}

// CSRs returns the control and status registers.
func (p *Pipeline) CSRs() *emu.CSRFile {
	return p.executeStage.CSRs()
}

// Halted returns true if the pipeline has halted.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// ExitCode returns the exit code if the pipeline has halted.
func (p *Pipeline) ExitCode() int64 {
	return p.exitCode
}

// Err returns the error that halted the pipeline, if any.
func (p *Pipeline) Err() error {
	return p.err
}

// Run executes the pipeline until it halts.
// Returns the exit code.
func (p *Pipeline) Run() int64 {
	for !p.halted {
		p.Tick()
	}
	return p.exitCode
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Tick executes one pipeline cycle.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}
	if !p.synced {
		p.syncArchState()
	}

	p.stats.Cycles++
	p.completions = p.completions[:0]

	p.retire()
	if p.halted {
		return
	}

	p.tickUnits()
	p.issue()
	p.rename()
	p.decode()
	p.fetch()
	p.writeback()

	if p.maxCycles > 0 && p.stats.Cycles >= p.maxCycles && !p.halted {
		p.halt(-1, fmt.Errorf("%w: %d", ErrMaxCycles, p.maxCycles))
	}
}

// retire commits completed instructions from the head of the reorder
// buffer in program order.
func (p *Pipeline) retire() {
	for range p.config.RetireWidth {
		head := p.rob.Head()
		if head == nil || head.Status != StatusCompleted {
			return
		}

		entry := p.rob.Retire(head.Uop.Tag)
		uop := entry.Uop

		if uop.Fault != nil || uop.Inst.IsUnknown() {
			p.halt(-1, illegalInstruction(uop))
			return
		}

		p.commit(entry)

		if exit := entry.Result.Exit; exit != nil {
			p.halt(exit.Code, exit.Err)
			return
		}

		if uop.Inst.IsSerializing() {
			p.squash(0, entry.Result.NextPC, "serialize")
			if uop.Inst.Op == insts.OpECALL {
				p.syncArchState()
			}
			return
		}
	}
}

// commit releases the displaced register and writes the result to the
// architectural register file.
func (p *Pipeline) commit(entry ROBEntry) {
	uop := entry.Uop
	inst := uop.Inst

	if uop.Dest.Valid() {
		p.renamer.Retire(uop.Dest.Class, inst.Rd.Num, uop.Dest.Reg, uop.Displaced)
		p.regFile.Write(inst.Rd, p.renamer.Read(uop.Dest.Class, uop.Dest.Reg))
	}
	p.regFile.PC = entry.Result.NextPC

	p.stats.Instructions++
	if inst.IsConditional() {
		p.stats.BranchPredictions++
		if !entry.Result.Mispredicted {
			p.stats.BranchCorrect++
		}
	}
	if entry.Result.Mispredicted {
		p.stats.BranchMispredictions++
	}
}

// tickUnits advances the multi-cycle units and collects their writebacks.
func (p *Pipeline) tickUnits() {
	for _, unit := range [...]*UnitQueue{p.mdu, p.lsu, p.ext} {
		if result, ok := unit.Tick(); ok {
			p.completions = append(p.completions, result)
		}
	}
}

// issueSlots tracks the per-cycle issue limits of the functional units.
type issueSlots struct {
	alu int
	mdu bool
	lsu bool
	ext bool
}

// issue sends ready micro-ops to their units, oldest first.
func (p *Pipeline) issue() {
	var slots issueSlots

	kept := p.issueQueue[:0]
	for _, uop := range p.issueQueue {
		if !p.tryIssue(uop, &slots) {
			kept = append(kept, uop)
		}
	}
	clear(p.issueQueue[len(kept):])
	p.issueQueue = kept
}

func (p *Pipeline) tryIssue(uop *MicroOp, slots *issueSlots) bool {
	if !p.hazardUnit.SourcesReady(uop) {
		return false
	}

	inst := uop.Inst
	vals := p.readSources(uop)

	switch inst.Class {
	case insts.ClassALU, insts.ClassBranch:
		if slots.alu >= p.config.ALUCount {
			return false
		}
		slots.alu++
		result := p.executeStage.ExecuteALU(uop, vals)
		p.trainPredictor(inst, result)
		p.completions = append(p.completions, result)

	case insts.ClassMDU:
		if slots.mdu || !p.mdu.CanAccept() {
			return false
		}
		slots.mdu = true
		result := p.executeStage.ExecuteMDU(uop, vals)
		p.mdu.Accept(uop, result, p.latencyTable.GetLatency(inst, vals[0], p.config.XLEN))

	case insts.ClassLoad, insts.ClassStore, insts.ClassCSR, insts.ClassSystem:
		if slots.lsu || !p.lsu.CanAccept() || p.rob.Head().Uop != uop {
			return false
		}
		slots.lsu = true

		var result ExecutionResult
		switch inst.Class {
		case insts.ClassCSR:
			result = p.executeStage.ExecuteCSR(uop, vals, p.stats.Cycles, p.stats.Instructions)
		case insts.ClassSystem:
			result = p.executeStage.ExecuteSystem(uop)
		default:
			result = p.executeStage.ExecuteMemory(uop, vals)
		}
		p.lsu.Accept(uop, result, p.latencyTable.GetLatency(inst, vals[0], p.config.XLEN))

	case insts.ClassFPU, insts.ClassVector:
		if slots.ext || !p.ext.CanAccept() {
			return false
		}
		slots.ext = true
		result := p.executeStage.ExecuteExtension(uop, vals)
		p.ext.Accept(uop, result, p.latencyTable.GetLatency(inst, vals[0], p.config.XLEN))

	default:
		panic(fmt.Sprintf("pipeline: issuing %v instruction %q", inst.Class, inst.Mnemonic))
	}

	return true
}

// trainPredictor updates the predictor with a resolved control-flow
// outcome.
func (p *Pipeline) trainPredictor(inst *insts.Instruction, result ExecutionResult) {
	switch {
	case inst.IsConditional():
		taken := result.NextPC != inst.Address+uint64(inst.Length)
		p.branchPredictor.Update(inst.Address, taken, result.NextPC)
		p.branchPredictor.Record(!result.Mispredicted)
	case inst.Op == insts.OpJALR:
		p.branchPredictor.UpdateTarget(inst.Address, result.NextPC)
	}
}

// rename moves decoded instructions into the reorder buffer and the issue
// queue. An instruction that cannot rename stays in place and is retried
// next cycle together with everything behind it.
func (p *Pipeline) rename() {
	for range p.config.FetchWidth {
		if len(p.decodeQueue) == 0 {
			return
		}

		f := p.decodeQueue[0]
		executable := f.Fault == nil && !f.Inst.IsUnknown()

		stall := p.hazardUnit.CheckRename(f.Inst, executable, p.rob, len(p.issueQueue), p.config.IssueQueueSize)
		if stall != StallNone {
			p.recordStall(stall, f)
			return
		}

		uop := &MicroOp{
			Inst:          f.Inst,
			Fault:         f.Fault,
			Tag:           f.Tag,
			Epoch:         f.Epoch,
			OpensEpoch:    f.OpensEpoch,
			PredictedNext: f.PredictedNext,
		}

		if !executable {
			entry := p.rob.Push(uop)
			entry.Status = StatusCompleted
			entry.Result = ExecutionResult{Tag: uop.Tag, NextPC: f.PredictedNext}
			p.decodeQueue = p.decodeQueue[1:]
			continue
		}

		if err := p.renameOperands(uop); err != nil {
			p.recordStall(StallFreeList, f)
			return
		}

		p.rob.Push(uop)
		p.issueQueue = append(p.issueQueue, uop)
		p.decodeQueue = p.decodeQueue[1:]
	}
}

// renameOperands maps the sources through the current table, then
// allocates and maps the destination.
func (p *Pipeline) renameOperands(uop *MicroOp) error {
	inst := uop.Inst
	for i, r := range [...]insts.Reg{inst.Rs1, inst.Rs2, inst.Rs3} {
		if r.Valid() {
			uop.Srcs[i] = PhysOperand{Class: r.Class, Reg: p.renamer.Lookup(r.Class, r.Num)}
		}
	}

	if !inst.WritesRd() {
		return nil
	}

	phys, err := p.renamer.Allocate(inst.Rd.Class)
	if err != nil {
		return err
	}
	uop.Displaced = p.renamer.Rename(inst.Rd.Class, inst.Rd.Num, phys)
	uop.Dest = PhysOperand{Class: inst.Rd.Class, Reg: phys}
	p.renamer.SetBusy(inst.Rd.Class, phys)
	return nil
}

func (p *Pipeline) recordStall(stall RenameStall, f *FetchedInstruction) {
	p.stats.Stalls++
	switch stall {
	case StallROBFull:
		p.stats.ROBFullStalls++
	case StallIssueQueueFull:
		p.stats.IssueQueueStalls++
	case StallFreeList:
		p.stats.FreeListStalls++
	}
	p.log.V(1).Info("rename stall", "cycle", p.stats.Cycles, "tag", f.Tag, "reason", stall.String())
}

// decode moves fetched words into the decode queue.
func (p *Pipeline) decode() {
	for range p.config.FetchWidth {
		if len(p.fetchQueue) == 0 || len(p.decodeQueue) >= p.config.FetchWidth {
			return
		}

		f := p.fetchQueue[0]
		p.fetchQueue = p.fetchQueue[1:]
		p.decodeStage.Decode(f)
		if f.Fault != nil {
			p.log.V(1).Info("decode fault", "pc", hex(f.Word.Address), "tag", f.Tag, "error", f.Fault.Error())
		}
		p.decodeQueue = append(p.decodeQueue, f)
	}
}

// fetch reads up to FetchWidth words, stopping after a predicted-taken
// control-flow instruction.
func (p *Pipeline) fetch() {
	if p.fetchStall > 0 {
		p.fetchStall--
		return
	}

	for range p.config.FetchWidth {
		if len(p.fetchQueue) >= p.config.FetchWidth {
			return
		}

		w := p.fetchStage.Fetch(p.pc)
		next, controlFlow := p.fetchStage.Predict(w)

		p.nextTag++
		f := &FetchedInstruction{
			Word:          w,
			Tag:           p.nextTag,
			Epoch:         p.epoch,
			PredictedNext: next,
		}
		if controlFlow {
			p.epoch++
			f.OpensEpoch = p.epoch
		}
		p.fetchQueue = append(p.fetchQueue, f)

		p.pc = next
		if next != w.Address+uint64(w.Length) {
			return
		}
	}
}

// writeback applies this cycle's results and resolves the oldest
// misprediction.
func (p *Pipeline) writeback() {
	var oldest *ROBEntry
	for _, result := range p.completions {
		entry := p.rob.Find(result.Tag)
		if entry == nil {
			continue
		}

		if result.Dest.Valid() {
			p.renamer.Write(result.Dest.Class, result.Dest.Reg, result.Value)
			p.renamer.ReleaseBusy(result.Dest.Class, result.Dest.Reg)
		}
		entry.Status = StatusCompleted
		entry.Result = result

		if result.Mispredicted && (oldest == nil || result.Tag < oldest.Uop.Tag) {
			oldest = entry
		}
	}

	if oldest != nil {
		p.squash(oldest.Uop.OpensEpoch, oldest.Result.NextPC, "mispredict")
		p.fetchStall = p.latencyTable.Config().BranchMispredictPenalty
	}
}
