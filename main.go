// Package main provides the entry point for rvsim.
// rvsim is a RISC-V core simulator with an out-of-order timing pipeline.
//
// For the full CLI, use: go run ./cmd/rvsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvsim - RISC-V Out-of-Order Core Simulator")
	fmt.Println("")
	fmt.Println("Usage: rvsim [options] <program>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -emu       Run on the functional emulator")
	fmt.Println("  -hex       Read a hex image instead of an ELF file")
	fmt.Println("  -disasm    Print a disassembly listing")
	fmt.Println("  -config    Path to a core configuration file (YAML or JSON)")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvsim' instead.")
	}
}
