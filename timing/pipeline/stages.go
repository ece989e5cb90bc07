package pipeline

import (
	"fmt"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// FetchStage reads instruction words and predicts the next fetch address.
type FetchStage struct {
	memory    *emu.Memory
	decoder   *insts.Decoder
	predictor *BranchPredictor
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(memory *emu.Memory, decoder *insts.Decoder, predictor *BranchPredictor) *FetchStage {
	return &FetchStage{
		memory:    memory,
		decoder:   decoder,
		predictor: predictor,
	}
}

// Fetch reads the instruction at the given PC. Only a halfword is kept for
// compressed encodings.
func (s *FetchStage) Fetch(pc uint64) insts.InstructionWord {
	return insts.NewInstructionWord(s.memory.Fetch(pc), pc)
}

// Predict returns the address to fetch after w and whether w is a
// control-flow instruction. Direct jumps are resolved here; conditional
// branches follow the history table and indirect jumps the BTB.
func (s *FetchStage) Predict(w insts.InstructionWord) (next uint64, controlFlow bool) {
	seq := w.Address + uint64(w.Length)

	inst, err := s.decoder.DecodeWord(w)
	if err != nil || !inst.IsControlFlow() {
		return seq, false
	}

	switch {
	case inst.Op == insts.OpJAL:
		return uint64(int64(w.Address) + inst.Offset), true
	case inst.Op == insts.OpJALR:
		if target, ok := s.predictor.PredictTarget(w.Address); ok {
			return target, true
		}
		return seq, true
	default:
		if s.predictor.Predict(w.Address).Taken {
			return uint64(int64(w.Address) + inst.Offset), true
		}
		return seq, true
	}
}

// DecodeStage turns fetched words into instruction records.
type DecodeStage struct {
	decoder *insts.Decoder
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(decoder *insts.Decoder) *DecodeStage {
	return &DecodeStage{decoder: decoder}
}

// Decode fills in the instruction record and any decode fault.
func (s *DecodeStage) Decode(f *FetchedInstruction) {
	f.Inst, f.Fault = s.decoder.DecodeWord(f.Word)
}

// ExecuteStage computes micro-op results with the functional units shared
// with the reference emulator.
type ExecuteStage struct {
	alu       *emu.ALU
	mulDiv    *emu.MulDiv
	lsu       *emu.LoadStoreUnit
	csr       *emu.CSRFile
	extension emu.ExtensionUnit
	syscall   emu.SyscallHandler
}

// NewExecuteStage creates an execute stage for the given register width.
func NewExecuteStage(
	memory *emu.Memory,
	xlen int,
	extension emu.ExtensionUnit,
	syscall emu.SyscallHandler,
) *ExecuteStage {
	return &ExecuteStage{
		alu:       emu.NewALU(xlen),
		mulDiv:    emu.NewMulDiv(xlen),
		lsu:       emu.NewLoadStoreUnit(memory, xlen),
		csr:       emu.NewCSRFile(),
		extension: extension,
		syscall:   syscall,
	}
}

// CSRs returns the control and status registers.
func (s *ExecuteStage) CSRs() *emu.CSRFile {
	return s.csr
}

func baseResult(uop *MicroOp) ExecutionResult {
	inst := uop.Inst
	return ExecutionResult{
		Tag:    uop.Tag,
		Dest:   uop.Dest,
		NextPC: inst.Address + uint64(inst.Length),
	}
}

// ExecuteALU runs integer ALU and control-flow micro-ops.
func (s *ExecuteStage) ExecuteALU(uop *MicroOp, vals [3]uint64) ExecutionResult {
	inst := uop.Inst
	r := s.alu.Execute(inst, vals[0], vals[1], inst.Address)

	result := baseResult(uop)
	result.Value = r.Value
	result.NextPC = r.NextPC(inst, inst.Address)
	result.Mispredicted = inst.IsControlFlow() && result.NextPC != uop.PredictedNext
	return result
}

// ExecuteMDU runs multiply and divide micro-ops.
func (s *ExecuteStage) ExecuteMDU(uop *MicroOp, vals [3]uint64) ExecutionResult {
	result := baseResult(uop)
	result.Value = s.mulDiv.Execute(uop.Inst, vals[0], vals[1])
	return result
}

// ExecuteMemory performs a load, store or atomic. It must only be called
// for the oldest in-flight instruction.
func (s *ExecuteStage) ExecuteMemory(uop *MicroOp, vals [3]uint64) ExecutionResult {
	result := baseResult(uop)
	result.Value = s.lsu.Execute(uop.Inst, vals[0], vals[1])
	return result
}

// ExecuteCSR performs a CSR access with the given counter values.
func (s *ExecuteStage) ExecuteCSR(uop *MicroOp, vals [3]uint64, cycle, instret uint64) ExecutionResult {
	s.csr.SetCounters(cycle, instret)

	result := baseResult(uop)
	result.Value = s.csr.Execute(uop.Inst, emu.CSRSource(uop.Inst, vals[0]))
	return result
}

// ExecuteSystem handles ecall and ebreak. The architectural register file
// must be up to date, so it must only be called for the oldest in-flight
// instruction.
func (s *ExecuteStage) ExecuteSystem(uop *MicroOp) ExecutionResult {
	result := baseResult(uop)

	switch uop.Inst.Op {
	case insts.OpECALL:
		if r := s.syscall.Handle(); r.Exited {
			result.Exit = &Exit{Code: r.ExitCode}
		}
	case insts.OpEBREAK:
		result.Exit = &Exit{
			Code: -1,
			Err:  fmt.Errorf("%w at 0x%x", emu.ErrBreakpoint, uop.Inst.Address),
		}
	}

	return result
}

// ExecuteExtension runs floating-point and vector micro-ops.
func (s *ExecuteStage) ExecuteExtension(uop *MicroOp, vals [3]uint64) ExecutionResult {
	srcs := make([]uint64, 0, 3)
	for i, src := range uop.Srcs {
		if src.Valid() {
			srcs = append(srcs, vals[i])
		}
	}

	result := baseResult(uop)
	result.Value = s.extension.Execute(uop.Inst, srcs)
	return result
}
