// Package benchmarks provides timing benchmark infrastructure for rvsim
// calibration.
package benchmarks

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

// Version is reported in JSON benchmark reports.
const Version = "0.1.0"

const (
	programAddr = uint64(0x1000)
	stackTop    = uint64(0x10000)
	regSP       = 2
)

// ErrMismatch reports a timing run that disagrees with the reference
// emulator.
var ErrMismatch = errors.New("timing run disagrees with emulator")

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// RunID identifies the harness invocation that produced the result.
	RunID string `json:"run_id"`

	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// StallCycles is the number of rename stall cycles
	StallCycles uint64 `json:"stall_cycles"`

	ROBFullStalls    uint64 `json:"rob_full_stalls"`
	IssueQueueStalls uint64 `json:"issue_queue_stalls"`
	FreeListStalls   uint64 `json:"free_list_stalls"`

	// PipelineFlushes is the number of speculation flushes
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// Squashed is the number of wrong-path instructions discarded
	Squashed uint64 `json:"squashed"`

	// Branch predictor stats
	BranchPredictions     uint64  `json:"branch_predictions,omitempty"`
	BranchCorrect         uint64  `json:"branch_correct,omitempty"`
	BranchMispredictions  uint64  `json:"branch_mispredictions,omitempty"`
	BranchAccuracyPercent float64 `json:"branch_accuracy_percent,omitempty"`

	// ExitCode is the program's exit code
	ExitCode int64 `json:"exit_code"`

	// EmulatorInstructions is the reference instruction count
	EmulatorInstructions uint64 `json:"emulator_instructions"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the initial state (e.g., initialize registers, memory)
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is the RISC-V machine code to execute
	Program []byte

	// ExpectedExit is the expected exit code (for validation)
	ExpectedExit int64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Core is the timing model configuration.
	Core core.Config

	// Parallel bounds the number of benchmarks simulated at once. Zero or
	// less runs them one at a time.
	Parallel int

	// MaxCycles stops a runaway benchmark (0 = unlimited).
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Core:      core.DefaultConfig(),
		Parallel:  1,
		MaxCycles: 10_000_000,
		Output:    os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
	runID      xid.ID
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Core.Timing == nil {
		config.Core = core.DefaultConfig()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
		runID:      xid.New(),
	}
}

// RunID returns the identifier stamped on every result of this harness.
func (h *Harness) RunID() string {
	return h.runID.String()
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results in registration order.
// Every benchmark runs even if an earlier one fails; the first failure is
// returned.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, len(h.benchmarks))

	var g errgroup.Group
	g.SetLimit(max(h.config.Parallel, 1))

	for i, bench := range h.benchmarks {
		g.Go(func() error {
			result, err := h.runBenchmark(bench)
			results[i] = result
			return err
		})
	}

	return results, g.Wait()
}

func newState(bench Benchmark) (*emu.RegFile, *emu.Memory) {
	regFile := &emu.RegFile{}
	memory := emu.NewMemory()

	regFile.WriteReg(regSP, stackTop)
	if bench.Setup != nil {
		bench.Setup(regFile, memory)
	}

	memory.LoadProgram(programAddr, bench.Program)
	regFile.PC = programAddr

	return regFile, memory
}

// runBenchmark executes a single benchmark on the timing core and checks
// it against the reference emulator.
func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	result := BenchmarkResult{
		RunID:       h.runID.String(),
		Name:        bench.Name,
		Description: bench.Description,
	}

	regFile, memory := newState(bench)
	handler := emu.NewDefaultSyscallHandler(regFile, memory, io.Discard, io.Discard)

	c, err := core.NewCoreWithConfig(regFile, memory, h.config.Core,
		withHarnessOptions(handler, h.config.MaxCycles)...)
	if err != nil {
		return result, fmt.Errorf("%s: %w", bench.Name, err)
	}
	c.SetPC(programAddr)

	start := time.Now()
	result.ExitCode = c.Run()
	result.WallTime = time.Since(start)

	stats := c.Pipeline.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.StallCycles = stats.Stalls
	result.ROBFullStalls = stats.ROBFullStalls
	result.IssueQueueStalls = stats.IssueQueueStalls
	result.FreeListStalls = stats.FreeListStalls
	result.PipelineFlushes = stats.Flushes
	result.Squashed = stats.Squashed

	bpStats := c.Pipeline.BranchPredictorStats()
	result.BranchPredictions = bpStats.Predictions
	result.BranchCorrect = bpStats.Correct
	result.BranchMispredictions = bpStats.Mispredictions
	result.BranchAccuracyPercent = bpStats.Accuracy()

	if err := c.Err(); err != nil {
		return result, fmt.Errorf("%s: %w", bench.Name, err)
	}

	return result, h.validate(bench, &result)
}

func withHarnessOptions(handler emu.SyscallHandler, maxCycles uint64) []pipeline.PipelineOption {
	opts := []pipeline.PipelineOption{pipeline.WithSyscallHandler(handler)}
	if maxCycles > 0 {
		opts = append(opts, pipeline.WithMaxCycles(maxCycles))
	}
	return opts
}

func (h *Harness) validate(bench Benchmark, result *BenchmarkResult) error {
	regFile, memory := newState(bench)

	e := emu.NewEmulator(
		emu.WithStdout(io.Discard),
		emu.WithStderr(io.Discard),
		emu.WithXLEN(h.config.Core.Pipeline.XLEN),
		emu.WithMaxInstructions(h.config.MaxCycles),
	)
	*e.RegFile() = *regFile
	e.LoadProgram(programAddr, memory)

	exit := e.Run()
	result.EmulatorInstructions = e.InstructionCount()

	switch {
	case exit != result.ExitCode:
		return fmt.Errorf("%w: %s exit code %d, emulator %d",
			ErrMismatch, bench.Name, result.ExitCode, exit)
	case exit != bench.ExpectedExit:
		return fmt.Errorf("%w: %s exit code %d, expected %d",
			ErrMismatch, bench.Name, exit, bench.ExpectedExit)
	case result.EmulatorInstructions != result.InstructionsRetired:
		return fmt.Errorf("%w: %s retired %d instructions, emulator %d",
			ErrMismatch, bench.Name, result.InstructionsRetired, result.EmulatorInstructions)
	}

	return nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	w := h.config.Output

	_, _ = fmt.Fprintln(w, "=== rvsim Timing Benchmark Results ===")
	_, _ = fmt.Fprintf(w, "Run: %s\n", h.RunID())
	_, _ = fmt.Fprintln(w, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(w, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(w, "  Exit Code: %d\n", r.ExitCode)
		_, _ = fmt.Fprintln(w, "  --- Timing ---")
		_, _ = fmt.Fprintf(w, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(w, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(w, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(w, "  Stall Cycles:         %d\n", r.StallCycles)
		if h.config.Verbose {
			_, _ = fmt.Fprintf(w, "    ROB Full:           %d\n", r.ROBFullStalls)
			_, _ = fmt.Fprintf(w, "    Issue Queue Full:   %d\n", r.IssueQueueStalls)
			_, _ = fmt.Fprintf(w, "    Free List Empty:    %d\n", r.FreeListStalls)
		}
		_, _ = fmt.Fprintf(w, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)
		if r.Squashed > 0 {
			_, _ = fmt.Fprintf(w, "  Squashed:             %d\n", r.Squashed)
		}

		if r.BranchPredictions > 0 {
			_, _ = fmt.Fprintln(w, "  --- Branch Predictor ---")
			_, _ = fmt.Fprintf(w, "  Predictions:     %d\n", r.BranchPredictions)
			_, _ = fmt.Fprintf(w, "  Correct:         %d\n", r.BranchCorrect)
			_, _ = fmt.Fprintf(w, "  Mispredictions:  %d\n", r.BranchMispredictions)
			_, _ = fmt.Fprintf(w, "  Accuracy:        %.1f%%\n", r.BranchAccuracyPercent)
		}

		_, _ = fmt.Fprintf(w, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"run_id,name,cycles,instructions,cpi,stalls,rob_full,iq_full,free_list,flushes,squashed,mispredictions,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.RunID,
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.ROBFullStalls,
			r.IssueQueueStalls,
			r.FreeListStalls,
			r.PipelineFlushes,
			r.Squashed,
			r.BranchMispredictions,
			r.ExitCode,
		)
	}
}

// BuildProgram assembles 32-bit instruction words into a byte slice.
func BuildProgram(instrs ...uint32) []byte {
	program := make([]byte, 0, len(instrs)*4)
	for _, inst := range instrs {
		program = binary.LittleEndian.AppendUint32(program, inst)
	}
	return program
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	RunID string `json:"run_id"`

	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config is the core configuration used
	Config core.Config `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the aggregate cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalInstructions += r.InstructionsRetired
		totalWallTime += r.WallTime
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			RunID:     h.RunID(),
			Timestamp: h.runID.Time().UTC().Format(time.RFC3339),
			Version:   Version,
			Config:    h.config.Core,
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
