package benchmarks

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// Scratch registers used by the microbenchmarks. a0 carries the exit code.
const (
	t0 uint8 = 5
	t1 uint8 = 6
	t2 uint8 = 7
	s0 uint8 = 8
	s1 uint8 = 9
	a0       = emu.RegA0
	ra uint8 = 1
	sp uint8 = regSP
)

// matrixBase is where matrixMultiply2x2 keeps its operands and result.
const matrixBase = 0x8000

// exitWithA0 ends a program with exit(a0).
func exitWithA0() []uint32 {
	return []uint32{
		insts.ADDI(emu.RegA7, 0, int64(emu.SyscallExit)),
		insts.ECALL(),
	}
}

func program(parts ...[]uint32) []byte {
	var words []uint32
	for _, p := range parts {
		words = append(words, p...)
	}
	return BuildProgram(words...)
}

func andi(rd, rs1 uint8, imm int64) uint32 {
	return insts.EncodeI(insts.OpcodeOpImm, 0b111, rd, rs1, imm)
}

// GetMicrobenchmarks returns the standard set of microbenchmarks for
// calibration. Each benchmark targets a specific CPU characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		branchAlternating(),
		mulDivMix(),
		divideChain(),
		matrixMultiply2x2(),
		loopSimulation(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick
// validation: a loop, a matrix multiply and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSimulation(),
		matrixMultiply2x2(),
		branchTaken(),
	}
}

// 1. Arithmetic Sequential - Tests ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	regs := []uint8{t0, t1, t2, s0, s1}

	body := make([]uint32, 0, 20)
	for i := range 20 {
		r := regs[i%len(regs)]
		body = append(body, insts.ADDI(r, r, 1))
	}

	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "20 independent ADDI operations - measures ALU throughput",
		Program:      program(body, []uint32{insts.ADDI(a0, t0, 0)}, exitWithA0()),
		ExpectedExit: 4,
	}
}

// 2. Dependency Chain - Tests back-to-back dependent ALU operations
func dependencyChain() Benchmark {
	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDI operations - measures wakeup latency",
		Program:      buildDependencyChain(20),
		ExpectedExit: 20,
	}
}

func buildDependencyChain(n int) []byte {
	body := make([]uint32, 0, n+1)
	for range n {
		body = append(body, insts.ADDI(t0, t0, 1))
	}
	body = append(body, insts.ADDI(a0, t0, 0))
	return program(body, exitWithA0())
}

// 3. Memory Sequential - Tests store-to-load round trips through the stack
func memorySequential() Benchmark {
	body := []uint32{insts.ADDI(t0, 0, 42)}
	src := t0
	for i, dst := range []uint8{t1, t2, s0, s1, a0} {
		off := -8 * int64(i+1)
		body = append(body,
			insts.SD(src, sp, off),
			insts.LD(dst, sp, off),
		)
		src = dst
	}

	return Benchmark{
		Name:         "memory_sequential",
		Description:  "5 dependent store/load pairs - measures memory latency",
		Program:      program(body, exitWithA0()),
		ExpectedExit: 42,
	}
}

// 4. Function Calls - Tests JAL/JALR overhead and indirect target prediction
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "3 calls to a leaf function - measures call/return overhead",
		Program: program(
			[]uint32{
				insts.ADDI(a0, 0, 0),
				insts.EncodeJ(ra, 20),
				insts.EncodeJ(ra, 16),
				insts.EncodeJ(ra, 12),
			},
			exitWithA0(),
			[]uint32{
				insts.ADDI(a0, a0, 1),
				insts.JALR(0, ra, 0),
			},
		),
		ExpectedExit: 3,
	}
}

// 5. Branch Taken - Tests distinct forward branches that are always taken
func branchTaken() Benchmark {
	var body []uint32
	for range 5 {
		body = append(body,
			insts.ADDI(a0, a0, 1),
			insts.EncodeB(insts.CondEQ, 0, 0, 8),
			insts.ADDI(a0, a0, 100),
		)
	}

	return Benchmark{
		Name:         "branch_taken",
		Description:  "5 taken forward branches, each seen once - measures cold mispredictions",
		Program:      program(body, exitWithA0()),
		ExpectedExit: 5,
	}
}

// 6. Branch Alternating - Tests a branch whose direction flips every
// iteration.
func branchAlternating() Benchmark {
	return Benchmark{
		Name:        "branch_alternating",
		Description: "16-iteration loop with an alternating inner branch - measures predictor accuracy",
		Program: program(
			[]uint32{
				insts.ADDI(t0, 0, 16),
				insts.ADDI(a0, 0, 0),
				andi(t1, t0, 1),
				insts.EncodeB(insts.CondEQ, t1, 0, 8),
				insts.ADDI(a0, a0, 1),
				insts.ADDI(t0, t0, -1),
				insts.EncodeB(insts.CondNE, t0, 0, -16),
			},
			exitWithA0(),
		),
		ExpectedExit: 8,
	}
}

// 7. Mul/Div Mix - Tests arbitration between independent MDU operations
func mulDivMix() Benchmark {
	return Benchmark{
		Name:        "muldiv_mix",
		Description: "multiply, divide and remainder - measures MDU latency and arbitration",
		Program: program(
			[]uint32{
				insts.ADDI(t0, 0, 6),
				insts.ADDI(t1, 0, 7),
				insts.MUL(insts.MDUMul, t2, t0, t1),
				insts.ADDI(s0, 0, 3),
				insts.ADDI(s1, 0, 5),
				insts.MUL(insts.MDUDiv, 28, t2, s0),
				insts.MUL(insts.MDURemu, 29, t2, s1),
				insts.ADD(a0, 28, 29),
			},
			exitWithA0(),
		),
		ExpectedExit: 16,
	}
}

// 8. Divide Chain - Tests back-to-back dependent divides
func divideChain() Benchmark {
	body := []uint32{
		insts.EncodeU(insts.OpcodeLUI, t0, 1<<20),
		insts.ADDI(t1, 0, 2),
	}
	for range 8 {
		body = append(body, insts.MUL(insts.MDUDivu, t0, t0, t1))
	}
	body = append(body, insts.ADDI(a0, t0, 0))

	return Benchmark{
		Name:         "divide_chain",
		Description:  "8 dependent DIVU operations - measures divider latency",
		Program:      program(body, exitWithA0()),
		ExpectedExit: 1 << 12,
	}
}

// 9. Matrix Multiply 2x2 - Loads, multiplies and stores a small matrix
func matrixMultiply2x2() Benchmark {
	a10, a11 := uint8(28), uint8(29)
	b00, b01, b10, b11 := uint8(12), uint8(13), uint8(14), uint8(15)
	p, q := uint8(16), uint8(17)
	c00, c01, c10, c11 := uint8(18), uint8(19), uint8(20), uint8(21)
	base := uint8(30)

	return Benchmark{
		Name:        "matrix_multiply_2x2",
		Description: "2x2 matrix multiply from memory - measures mixed load/MDU/store traffic",
		Setup: func(_ *emu.RegFile, memory *emu.Memory) {
			for i, v := range []uint64{1, 2, 3, 4, 5, 6, 7, 8} {
				memory.Write64(matrixBase+uint64(8*i), v)
			}
		},
		Program: program(
			[]uint32{
				insts.EncodeU(insts.OpcodeLUI, base, matrixBase),
				insts.LD(t0, base, 0),
				insts.LD(t1, base, 8),
				insts.LD(a10, base, 16),
				insts.LD(a11, base, 24),
				insts.LD(b00, base, 32),
				insts.LD(b01, base, 40),
				insts.LD(b10, base, 48),
				insts.LD(b11, base, 56),

				insts.MUL(insts.MDUMul, p, t0, b00),
				insts.MUL(insts.MDUMul, q, t1, b10),
				insts.ADD(c00, p, q),
				insts.MUL(insts.MDUMul, p, t0, b01),
				insts.MUL(insts.MDUMul, q, t1, b11),
				insts.ADD(c01, p, q),
				insts.MUL(insts.MDUMul, p, a10, b00),
				insts.MUL(insts.MDUMul, q, a11, b10),
				insts.ADD(c10, p, q),
				insts.MUL(insts.MDUMul, p, a10, b01),
				insts.MUL(insts.MDUMul, q, a11, b11),
				insts.ADD(c11, p, q),

				insts.SD(c00, base, 64),
				insts.SD(c01, base, 72),
				insts.SD(c10, base, 80),
				insts.SD(c11, base, 88),

				insts.ADD(a0, c00, c01),
				insts.ADD(a0, a0, c10),
				insts.ADD(a0, a0, c11),
			},
			exitWithA0(),
		),
		ExpectedExit: 19 + 22 + 43 + 50,
	}
}

// 10. Loop Simulation - A counted loop closed by a backward branch
func loopSimulation() Benchmark {
	return Benchmark{
		Name:        "loop_simulation",
		Description: "sum 9..1 in a 9-iteration loop - measures loop-closing branch prediction",
		Program: program(
			[]uint32{
				insts.ADDI(t0, 0, 9),
				insts.ADDI(a0, 0, 0),
				insts.ADD(a0, a0, t0),
				insts.ADDI(t0, t0, -1),
				insts.EncodeB(insts.CondNE, t0, 0, -8),
			},
			exitWithA0(),
		),
		ExpectedExit: 45,
	}
}
