package emu

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/rvsim/insts"
)

var (
	// ErrIllegalInstruction is returned when execution reaches an encoding
	// that raised a decode fault or that decodes to the unknown sentinel.
	ErrIllegalInstruction = errors.New("illegal instruction")

	// ErrBreakpoint is returned when ebreak executes.
	ErrBreakpoint = errors.New("breakpoint")

	// ErrMaxInstructions is returned once the instruction limit is reached.
	ErrMaxInstructions = errors.New("max instructions reached")
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated (via exit syscall or ebreak).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes RISC-V instructions one at a time, in program order.
type Emulator struct {
	regFile        *RegFile
	memory         *Memory
	decoder        *insts.Decoder
	syscallHandler SyscallHandler
	customSyscall  bool

	// Execution units
	alu       *ALU
	mulDiv    *MulDiv
	lsu       *LoadStoreUnit
	csr       *CSRFile
	extension ExtensionUnit

	// I/O
	stdout io.Writer
	stderr io.Writer

	xlen             int
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stderr = w
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) {
		e.syscallHandler = handler
		e.customSyscall = true
	}
}

// WithStackPointer sets the initial stack pointer (x2).
func WithStackPointer(sp uint64) EmulatorOption {
	return func(e *Emulator) {
		e.regFile.WriteReg(2, sp)
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(limit uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = limit
	}
}

// WithXLEN selects RV32 (32) or RV64 (64, the default).
func WithXLEN(xlen int) EmulatorOption {
	return func(e *Emulator) {
		e.xlen = xlen
	}
}

// WithExtensionUnit sets the unit that executes FPU and VECTOR instructions.
func WithExtensionUnit(unit ExtensionUnit) EmulatorOption {
	return func(e *Emulator) {
		e.extension = unit
	}
}

// NewEmulator creates a new RISC-V emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile:   &RegFile{},
		memory:    NewMemory(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		extension: StubExtensionUnit{},
		xlen:      64,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.decoder = insts.NewDecoder(insts.WithXLEN(e.xlen))
	e.xlen = e.decoder.XLEN()
	e.buildUnits()

	return e
}

func (e *Emulator) buildUnits() {
	e.alu = NewALU(e.xlen)
	e.mulDiv = NewMulDiv(e.xlen)
	e.lsu = NewLoadStoreUnit(e.memory, e.xlen)
	e.csr = NewCSRFile()

	if !e.customSyscall {
		e.syscallHandler = NewDefaultSyscallHandler(e.regFile, e.memory, e.stdout, e.stderr)
	}
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// CSRs returns the emulator's control and status registers.
func (e *Emulator) CSRs() *CSRFile {
	return e.csr
}

// XLEN returns the register width.
func (e *Emulator) XLEN() int {
	return e.xlen
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// LoadProgram loads a program into memory and sets the entry point.
// The program can be either a []byte or a *Memory.
func (e *Emulator) LoadProgram(entry uint64, program any) {
	switch p := program.(type) {
	case []byte:
		e.memory.LoadProgram(entry, p)
	case *Memory:
		e.memory = p
		e.buildUnits()
	}
	e.regFile.PC = entry
}

// Reset resets the emulator to its initial state.
func (e *Emulator) Reset() {
	e.regFile = &RegFile{}
	e.memory = NewMemory()
	e.instructionCount = 0
	e.buildUnits()
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := e.regFile.PC
	inst, err := e.decoder.Decode(e.memory.Fetch(pc), pc)
	if err != nil {
		return StepResult{Err: fmt.Errorf("%w: %w", ErrIllegalInstruction, err)}
	}
	if inst.IsUnknown() {
		return StepResult{Err: fmt.Errorf("%w: unknown encoding 0x%x at 0x%x",
			ErrIllegalInstruction, inst.Raw, pc)}
	}

	result := e.execute(inst)
	e.instructionCount++

	return result
}

// Run executes instructions until the program exits or an error occurs.
// Returns the exit code (-1 if error).
func (e *Emulator) Run() int64 {
	for {
		result := e.Step()
		if result.Err != nil {
			_, _ = fmt.Fprintf(e.stderr, "Emulation error: %v\n", result.Err)
			return -1
		}
		if result.Exited {
			return result.ExitCode
		}
	}
}

// execute dispatches a decoded instruction to its execution unit, writes
// the result and advances the PC.
func (e *Emulator) execute(inst *insts.Instruction) StepResult {
	pc := e.regFile.PC
	rs1 := e.regFile.Read(inst.Rs1)
	rs2 := e.regFile.Read(inst.Rs2)
	nextPC := pc + uint64(inst.Length)

	var value uint64
	switch inst.Class {
	case insts.ClassALU, insts.ClassBranch:
		r := e.alu.Execute(inst, rs1, rs2, pc)
		value = r.Value
		nextPC = r.NextPC(inst, pc)
	case insts.ClassMDU:
		value = e.mulDiv.Execute(inst, rs1, rs2)
	case insts.ClassLoad, insts.ClassStore:
		value = e.lsu.Execute(inst, rs1, rs2)
	case insts.ClassCSR:
		e.csr.SetCounters(e.instructionCount, e.instructionCount)
		value = e.csr.Execute(inst, CSRSource(inst, rs1))
	case insts.ClassFPU, insts.ClassVector:
		value = e.extension.Execute(inst, e.sources(inst))
	case insts.ClassSystem:
		e.regFile.PC = nextPC
		return e.executeSystem(inst)
	}

	if inst.WritesRd() {
		e.regFile.Write(inst.Rd, value)
	}
	e.regFile.PC = nextPC

	return StepResult{}
}

func (e *Emulator) sources(inst *insts.Instruction) []uint64 {
	regs := inst.Sources()
	vals := make([]uint64, len(regs))
	for i, r := range regs {
		vals[i] = e.regFile.Read(r)
	}
	return vals
}

// executeSystem handles ecall, ebreak and the ordering/privileged
// instructions, which have no architectural effect here.
func (e *Emulator) executeSystem(inst *insts.Instruction) StepResult {
	switch inst.Op {
	case insts.OpECALL:
		r := e.syscallHandler.Handle()
		return StepResult{Exited: r.Exited, ExitCode: r.ExitCode}
	case insts.OpEBREAK:
		return StepResult{
			Exited:   true,
			ExitCode: -1,
			Err:      fmt.Errorf("%w at 0x%x", ErrBreakpoint, inst.Address),
		}
	}
	return StepResult{}
}
