// Package main provides the entry point for rvsim, a RISC-V core simulator
// with an out-of-order timing pipeline and a functional reference emulator.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/sarchlab/rvsim/disasm"
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	hex        bool
	hexWidth   int
	base       uint64
	disasm     bool
	emu        bool
	configPath string
	width      int
	maxCycles  uint64
	logLevel   int
	verbose    bool
}

// image is a program ready to be placed in memory.
type image struct {
	memory    *emu.Memory
	entry     uint64
	sp        uint64
	xlen      int
	halfwords []uint16
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rvsim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.BoolVar(&opts.hex, "hex", false, "Read the program as a hex image instead of an ELF file")
	fs.IntVar(&opts.hexWidth, "hex-width", loader.DefaultHexWidth, "Bits per hex image token")
	fs.Uint64Var(&opts.base, "base", 0, "Load and entry address of a hex image")
	fs.BoolVar(&opts.disasm, "disasm", false, "Print a disassembly listing and exit")
	fs.BoolVar(&opts.emu, "emu", false, "Run on the functional emulator instead of the pipeline")
	fs.StringVar(&opts.configPath, "config", "", "Path to a core configuration file (YAML or JSON)")
	fs.IntVar(&opts.width, "width", 0, "Override the fetch width")
	fs.Uint64Var(&opts.maxCycles, "max-cycles", 0, "Stop after this many cycles (0 = unlimited)")
	fs.IntVar(&opts.logLevel, "log-level", 0, "Pipeline log verbosity (1 logs flushes, stalls and halts)")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: rvsim [options] <program>\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	programPath := fs.Arg(0)
	img, err := loadImage(programPath, opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	if opts.verbose {
		_, _ = fmt.Fprintf(stdout, "Loaded: %s\n", programPath)
		_, _ = fmt.Fprintf(stdout, "Entry point: 0x%X\n", img.entry)
		_, _ = fmt.Fprintf(stdout, "XLEN: %d\n", img.xlen)
	}

	switch {
	case opts.disasm:
		if err := disasm.Write(stdout, disasm.Sweep(img.halfwords, img.entry)); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error writing listing: %v\n", err)
			return 1
		}
		return 0
	case opts.emu:
		return int(runEmulation(img, programPath, opts, stdout, stderr))
	default:
		return int(runTiming(img, programPath, opts, stdout, stderr))
	}
}

func loadImage(path string, opts options) (*image, error) {
	img := &image{memory: emu.NewMemory()}

	if opts.hex {
		halfwords, err := loader.LoadHex(path, opts.hexWidth)
		if err != nil {
			return nil, err
		}
		img.memory.LoadHalfwords(opts.base, halfwords)
		img.entry = opts.base
		img.sp = loader.DefaultStackTop
		img.xlen = 64
		img.halfwords = halfwords
		return img, nil
	}

	prog, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	prog.LoadInto(img.memory)
	img.entry = prog.EntryPoint
	img.sp = prog.InitialSP
	img.xlen = prog.XLEN

	for _, seg := range prog.Segments {
		if seg.Flags&loader.SegmentFlagExecute == 0 || seg.VirtAddr > img.entry ||
			img.entry >= seg.VirtAddr+uint64(len(seg.Data)) {
			continue
		}
		for off := img.entry - seg.VirtAddr; off+1 < uint64(len(seg.Data)); off += 2 {
			img.halfwords = append(img.halfwords, uint16(seg.Data[off])|uint16(seg.Data[off+1])<<8)
		}
	}

	return img, nil
}

// runEmulation runs the program in functional emulation mode.
func runEmulation(img *image, programPath string, opts options, stdout, stderr io.Writer) int64 {
	emulator := emu.NewEmulator(
		emu.WithXLEN(img.xlen),
		emu.WithStackPointer(img.sp),
		emu.WithStdout(stdout),
		emu.WithStderr(stderr),
	)
	emulator.LoadProgram(img.entry, img.memory)

	exitCode := emulator.Run()

	if opts.verbose {
		_, _ = fmt.Fprintf(stdout, "\nProgram: %s\n", programPath)
		_, _ = fmt.Fprintf(stdout, "Exit code: %d\n", exitCode)
		_, _ = fmt.Fprintf(stdout, "Instructions executed: %d\n", emulator.InstructionCount())
	}

	return exitCode
}

// runTiming runs the program on the out-of-order pipeline.
func runTiming(img *image, programPath string, opts options, stdout, stderr io.Writer) int64 {
	config := core.DefaultConfig()
	if opts.configPath != "" {
		var err error
		config, err = core.LoadConfig(opts.configPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error loading core config: %v\n", err)
			return 1
		}
	}
	config.Pipeline.XLEN = img.xlen
	if opts.width > 0 {
		config.Pipeline.FetchWidth = opts.width
	}

	regFile := &emu.RegFile{}
	regFile.WriteReg(2, img.sp)

	c, err := core.NewCoreWithConfig(regFile, img.memory, config,
		pipeline.WithSyscallHandler(emu.NewDefaultSyscallHandler(regFile, img.memory, stdout, stderr)),
		pipeline.WithLogger(newLogger(stderr, opts.logLevel)),
		pipeline.WithMaxCycles(opts.maxCycles),
	)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	c.SetPC(img.entry)

	exitCode := c.Run()
	if err := c.Err(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Simulation error: %v\n", err)
	}

	if opts.verbose {
		printStats(stdout, programPath, exitCode, c.Pipeline)
	}

	return exitCode
}

func newLogger(w io.Writer, level int) logr.Logger {
	if level <= 0 {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		_, _ = fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: level})
}

func printStats(w io.Writer, programPath string, exitCode int64, pipe *pipeline.Pipeline) {
	stats := pipe.Stats()
	bp := pipe.BranchPredictorStats()

	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Program: %s\n", programPath)
	_, _ = fmt.Fprintf(w, "Exit code: %d\n", exitCode)
	_, _ = fmt.Fprintf(w, "Total Instructions: %d\n", stats.Instructions)
	_, _ = fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	_, _ = fmt.Fprintf(w, "CPI: %.2f\n", stats.CPI())
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Rename stalls: %d\n", stats.Stalls)
	_, _ = fmt.Fprintf(w, "  ROB full:         %d\n", stats.ROBFullStalls)
	_, _ = fmt.Fprintf(w, "  Issue queue full: %d\n", stats.IssueQueueStalls)
	_, _ = fmt.Fprintf(w, "  Free list empty:  %d\n", stats.FreeListStalls)
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Pipeline Events:\n")
	_, _ = fmt.Fprintf(w, "  Flushes:  %d\n", stats.Flushes)
	_, _ = fmt.Fprintf(w, "  Squashed: %d\n", stats.Squashed)
	_, _ = fmt.Fprintf(w, "  Branches: %d (%d mispredicted)\n",
		stats.BranchPredictions, stats.BranchMispredictions)
	_, _ = fmt.Fprintf(w, "  Predictor accuracy: %.1f%%\n", bp.Accuracy())
}
