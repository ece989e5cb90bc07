// Command benchmark runs the rvsim timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output results as a JSON report
//	-core       Run only the three core benchmarks
//	-config     Core configuration file (YAML or JSON)
//	-parallel   Number of benchmarks simulated at once
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
//
// Every timing run is cross-checked against the functional emulator; a
// disagreement exits with status 1.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/rvsim/benchmarks"
	"github.com/sarchlab/rvsim/timing/core"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as a JSON report")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	configPath := flag.String("config", "", "Path to a core configuration file (YAML or JSON)")
	parallel := flag.Int("parallel", 1, "Number of benchmarks simulated at once")
	verbose := flag.Bool("v", false, "Show the stall breakdown")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.Parallel = *parallel
	config.Verbose = *verbose
	config.Output = os.Stdout

	if *configPath != "" {
		coreConfig, err := core.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		config.Core = coreConfig
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	if !*csvOutput && !*jsonOutput {
		fmt.Println("rvsim Timing Benchmark Harness")
		fmt.Println("==============================")
		fmt.Printf("Fetch width: %d\n", config.Core.Pipeline.FetchWidth)
		fmt.Printf("ROB size:    %d\n", config.Core.Pipeline.ROBSize)
		fmt.Printf("Divide:      %s\n", config.Core.Timing.DivideModel)
		fmt.Println("")
	}

	results, runErr := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Println("Expected characteristics:")
		fmt.Println("- arithmetic_sequential: CPI near 1/fetch width")
		fmt.Println("- dependency_chain: One instruction per cycle at best")
		fmt.Println("- divide_chain: CPI dominated by divider latency")
		fmt.Println("- branch_taken: One flush per cold taken branch")
		fmt.Println("- loop_simulation: Flushes only while the history table warms up")
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
