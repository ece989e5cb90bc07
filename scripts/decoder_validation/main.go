// Measures decode throughput and allocations of the pipeline decode stage on
// a mix of 16- and 32-bit encodings.
package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

func main() {
	words := []insts.InstructionWord{
		insts.NewInstructionWord(insts.ADDI(10, 11, 42), 0x1000),
		insts.NewInstructionWord(insts.MUL(insts.MDUMul, 5, 6, 7), 0x1004),
		insts.NewInstructionWord(insts.LD(8, 2, -16), 0x1008),
		insts.NewInstructionWord(0x4501, 0x100C), // c.li a0, 0
		insts.NewInstructionWord(insts.EncodeB(insts.CondNE, 5, 0, -8), 0x100E),
	}

	decodeStage := pipeline.NewDecodeStage(insts.NewDecoder())
	f := &pipeline.FetchedInstruction{}

	// Warm up
	for range 1000 {
		for _, w := range words {
			f.Word = w
			decodeStage.Decode(f)
		}
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 100000

	for range iterations {
		for _, w := range words {
			f.Word = w
			decodeStage.Decode(f)
			if f.Fault != nil {
				fmt.Printf("unexpected decode fault at 0x%x: %v\n", w.Address, f.Fault)
				return
			}
		}
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	totalDecodes := iterations * len(words)
	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("Decoder Validation Results:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Total decode operations: %d\n", totalDecodes)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Decodes per second: %.0f\n", float64(totalDecodes)/elapsed.Seconds())
	fmt.Printf("Allocations: %d\n", allocations)
	fmt.Printf("Allocated bytes: %d\n", allocatedBytes)
	fmt.Printf("Allocations per decode: %.3f\n", float64(allocations)/float64(totalDecodes))
	fmt.Printf("Bytes per decode: %.1f\n", float64(allocatedBytes)/float64(totalDecodes))
}
