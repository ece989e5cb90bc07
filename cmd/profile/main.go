// Package main provides a profiling wrapper for rvsim to identify performance bottlenecks.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

var (
	timing      = flag.Bool("timing", false, "Enable timing simulation mode")
	configPath  = flag.String("config", "", "Core configuration file for timing mode (YAML or JSON)")
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile  = flag.String("memprofile", "", "write memory profile to file")
	duration    = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	instruction = flag.Int("max-instr", 1000000, "max instructions to execute, or cycles in timing mode (0 = unlimited)")
	quiet       = flag.Bool("quiet", false, "Discard program output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s (RV%d)\n", programPath, prog.XLEN)
	fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)

	start := time.Now()

	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", *duration)
		os.Exit(2)
	}()

	var out io.Writer = os.Stdout
	if *quiet {
		out = io.Discard
	}

	var exitCode int64
	var instrCount uint64

	if *timing {
		exitCode, instrCount, err = runTimingProfile(prog, out)
	} else {
		exitCode, instrCount = runEmulationProfile(prog, out)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Exit code: %d\n", exitCode)
	fmt.Printf("Instructions executed: %d\n", instrCount)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}
}

// runEmulationProfile runs the program in functional emulation mode.
func runEmulationProfile(prog *loader.Program, out io.Writer) (int64, uint64) {
	memory := emu.NewMemory()
	prog.LoadInto(memory)

	opts := []emu.EmulatorOption{
		emu.WithXLEN(prog.XLEN),
		emu.WithStackPointer(prog.InitialSP),
		emu.WithStdout(out),
	}
	if *instruction > 0 {
		opts = append(opts, emu.WithMaxInstructions(uint64(*instruction)))
	}

	emulator := emu.NewEmulator(opts...)
	emulator.LoadProgram(prog.EntryPoint, memory)

	exitCode := emulator.Run()
	return exitCode, emulator.InstructionCount()
}

// runTimingProfile runs the program on the out-of-order pipeline.
func runTimingProfile(prog *loader.Program, out io.Writer) (int64, uint64, error) {
	config := core.DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = core.LoadConfig(*configPath); err != nil {
			return 0, 0, err
		}
	}
	config.Pipeline.XLEN = prog.XLEN

	memory := emu.NewMemory()
	prog.LoadInto(memory)

	regFile := &emu.RegFile{}
	regFile.WriteReg(2, prog.InitialSP)

	opts := []pipeline.PipelineOption{
		pipeline.WithSyscallHandler(emu.NewDefaultSyscallHandler(regFile, memory, out, os.Stderr)),
	}
	if *instruction > 0 {
		opts = append(opts, pipeline.WithMaxCycles(uint64(*instruction)))
	}

	c, err := core.NewCoreWithConfig(regFile, memory, config, opts...)
	if err != nil {
		return 0, 0, err
	}
	c.SetPC(prog.EntryPoint)

	exitCode := c.Run()
	stats := c.Stats()
	fmt.Printf("Cycles: %d (CPI %.3f)\n", stats.Cycles, stats.CPI())
	if err := c.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Simulation stopped: %v\n", err)
	}

	return exitCode, stats.Instructions, nil
}
