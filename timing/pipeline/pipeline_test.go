package pipeline_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/go-logr/logr/funcr"
	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/latency"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

const entry = 0x1000

func program(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

func exitWith(code int64) []uint32 {
	return []uint32{
		insts.ADDI(emu.RegA0, 0, code),
		insts.ADDI(emu.RegA7, 0, int64(emu.SyscallExit)),
		insts.ECALL(),
	}
}

// sumLoop adds 10 down to 1 into a0 and exits with the sum.
var sumLoop = []uint32{
	insts.ADDI(5, 0, 10),
	insts.ADDI(10, 0, 0),
	insts.ADD(10, 10, 5),
	insts.ADDI(5, 5, -1),
	insts.EncodeB(insts.CondNE, 5, 0, -8),
	insts.ADDI(emu.RegA7, 0, int64(emu.SyscallExit)),
	insts.ECALL(),
}

var _ = Describe("Pipeline", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		stdout  *bytes.Buffer
		pipe    *pipeline.Pipeline
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory()
		stdout = &bytes.Buffer{}
	})

	newPipeline := func(words []uint32, opts ...pipeline.PipelineOption) *pipeline.Pipeline {
		memory.LoadProgram(entry, program(words...))
		handler := emu.NewDefaultSyscallHandler(regFile, memory, stdout, io.Discard)
		opts = append([]pipeline.PipelineOption{pipeline.WithSyscallHandler(handler)}, opts...)
		p := pipeline.NewPipeline(regFile, memory, opts...)
		p.SetPC(entry)
		return p
	}

	Describe("NewPipeline", func() {
		It("should create a pipeline with the default configuration", func() {
			pipe = pipeline.NewPipeline(regFile, memory)

			Expect(pipe).NotTo(BeNil())
			Expect(pipe.Config()).To(Equal(pipeline.DefaultConfig()))
			Expect(pipe.Halted()).To(BeFalse())
		})

		It("should panic on an invalid configuration", func() {
			config := pipeline.DefaultConfig()
			config.FetchWidth = 0

			Expect(func() {
				pipeline.NewPipeline(regFile, memory, pipeline.WithConfig(config))
			}).To(Panic())
		})
	})

	Describe("SetPC / PC", func() {
		BeforeEach(func() {
			pipe = pipeline.NewPipeline(regFile, memory)
		})

		It("should set and get PC", func() {
			pipe.SetPC(0x1000)
			Expect(pipe.PC()).To(Equal(uint64(0x1000)))
		})

		It("should also update register file PC", func() {
			pipe.SetPC(0x2000)
			Expect(regFile.PC).To(Equal(uint64(0x2000)))
		})
	})

	Describe("Run", func() {
		It("should execute addi x5, x0, 10", func() {
			pipe = newPipeline(append([]uint32{0x00A00293}, exitWith(0)...))

			Expect(pipe.Run()).To(BeZero())
			Expect(pipe.Err()).NotTo(HaveOccurred())
			Expect(regFile.ReadReg(5)).To(Equal(uint64(10)))
		})

		It("should redirect a taken beq to PC+8", func() {
			regFile.WriteReg(1, 3)
			regFile.WriteReg(2, 3)
			words := []uint32{
				0x00208463,           // beq x1, x2, +8
				insts.ADDI(6, 0, 99), // skipped
			}
			pipe = newPipeline(append(words, exitWith(0)...))

			pipe.Run()

			Expect(regFile.ReadReg(6)).To(BeZero())
		})

		It("should give divu by zero all ones", func() {
			regFile.WriteReg(1, 1234)
			pipe = newPipeline(append([]uint32{0x0220D1B3}, exitWith(0)...))

			pipe.Run()

			Expect(regFile.ReadReg(3)).To(Equal(^uint64(0)))
		})

		It("should sum 1..10 in a loop", func() {
			pipe = newPipeline(sumLoop)

			Expect(pipe.Run()).To(Equal(int64(55)))
			Expect(pipe.Stats().Instructions).To(Equal(uint64(2 + 3*10 + 2)))
		})

		It("should write to stdout through ecall", func() {
			memory.LoadProgram(0x4000, []byte("hi"))
			words := []uint32{
				insts.ADDI(emu.RegA0, 0, 1),
				insts.EncodeU(insts.OpcodeLUI, emu.RegA1, 0x4000),
				insts.ADDI(emu.RegA2, 0, 2),
				insts.ADDI(emu.RegA7, 0, int64(emu.SyscallWrite)),
				insts.ECALL(),
				insts.ADDI(emu.RegA0, emu.RegA0, 40), // a0 is 2 after the write
				insts.ADDI(emu.RegA7, 0, int64(emu.SyscallExit)),
				insts.ECALL(),
			}
			pipe = newPipeline(words)

			Expect(pipe.Run()).To(Equal(int64(42)))
			Expect(stdout.String()).To(Equal("hi"))
		})

		It("should call and return through ra", func() {
			words := []uint32{
				insts.EncodeJ(1, 12),
				insts.ADDI(emu.RegA7, 0, int64(emu.SyscallExit)),
				insts.ECALL(),
				insts.ADDI(emu.RegA0, 0, 7),
				insts.JALR(0, 1, 0),
			}
			pipe = newPipeline(words)

			Expect(pipe.Run()).To(Equal(int64(7)))
		})

		It("should store and load through memory", func() {
			words := []uint32{
				insts.EncodeU(insts.OpcodeLUI, 6, 0x8000),
				insts.ADDI(7, 0, 123),
				insts.SD(7, 6, 8),
				insts.LD(emu.RegA0, 6, 8),
				insts.ADDI(emu.RegA7, 0, int64(emu.SyscallExit)),
				insts.ECALL(),
			}
			pipe = newPipeline(words)

			Expect(pipe.Run()).To(Equal(int64(123)))
			Expect(memory.Read64(0x8008)).To(Equal(uint64(123)))
		})

		It("should leave the rename state balanced after halting", func() {
			pipe = newPipeline(sumLoop)

			pipe.Run()

			Expect(pipe.Renamer().CheckConservation()).To(Succeed())
		})
	})

	Describe("Retirement", func() {
		It("should retire in program order behind a long divide", func() {
			config := latency.DefaultTimingConfig()
			config.DivideModel = latency.DivideFixed
			config.DivideLatency = 30
			words := []uint32{
				insts.MUL(insts.MDUDivu, 3, 1, 2),
				insts.ADDI(5, 0, 1),
			}
			pipe = newPipeline(append(words, exitWith(0)...),
				pipeline.WithLatencyTable(latency.NewTableWithConfig(config)))

			pipe.RunCycles(10)

			Expect(regFile.ReadReg(5)).To(BeZero())
			Expect(pipe.Stats().Instructions).To(BeZero())
			Expect(pipe.ROB().Len()).To(BeNumerically(">=", 2))

			pipe.Run()

			Expect(regFile.ReadReg(5)).To(Equal(uint64(1)))
			Expect(pipe.Stats().Cycles).To(BeNumerically(">", 30))
		})

		It("should not halt on a fault fetched down a wrong path", func() {
			words := []uint32{
				insts.EncodeB(insts.CondEQ, 0, 0, 8), // predicted not taken
				0x0000007F,
			}
			pipe = newPipeline(append(words, exitWith(3)...))

			Expect(pipe.Run()).To(Equal(int64(3)))
			Expect(pipe.Err()).NotTo(HaveOccurred())
			Expect(pipe.Stats().Flushes).To(BeNumerically(">=", 1))
		})

		It("should halt with an illegal instruction when a fault retires", func() {
			words := []uint32{
				insts.ADDI(5, 0, 1),
				0x00857283,
				insts.ADDI(6, 0, 1),
			}
			pipe = newPipeline(words)

			Expect(pipe.Run()).To(Equal(int64(-1)))
			Expect(errors.Is(pipe.Err(), emu.ErrIllegalInstruction)).To(BeTrue())
			Expect(errors.Is(pipe.Err(), insts.ErrDecodeFault)).To(BeTrue())
			Expect(regFile.ReadReg(5)).To(Equal(uint64(1)))
			Expect(regFile.ReadReg(6)).To(BeZero())
			Expect(regFile.PC).To(Equal(uint64(entry + 4)))
		})

		It("should halt at an unknown instruction", func() {
			pipe = newPipeline([]uint32{0x0000007F})

			pipe.Run()

			Expect(errors.Is(pipe.Err(), emu.ErrIllegalInstruction)).To(BeTrue())
		})

		It("should halt at ebreak", func() {
			pipe = newPipeline([]uint32{insts.EBREAK()})

			Expect(pipe.Run()).To(Equal(int64(-1)))
			Expect(errors.Is(pipe.Err(), emu.ErrBreakpoint)).To(BeTrue())
		})

		It("should stop at the cycle limit", func() {
			pipe = newPipeline([]uint32{insts.EncodeJ(0, 0)}, pipeline.WithMaxCycles(50))

			Expect(pipe.Run()).To(Equal(int64(-1)))
			Expect(errors.Is(pipe.Err(), pipeline.ErrMaxCycles)).To(BeTrue())
			Expect(pipe.Stats().Cycles).To(Equal(uint64(50)))
		})
	})

	Describe("Speculation", func() {
		It("should flush and recover from loop-exit mispredictions", func() {
			pipe = newPipeline(sumLoop)

			pipe.Run()

			stats := pipe.Stats()
			Expect(stats.Flushes).To(BeNumerically(">=", 2))
			Expect(stats.Squashed).To(BeNumerically(">", 0))
			Expect(stats.BranchPredictions).To(Equal(uint64(10)))
			Expect(stats.BranchMispredictions).To(BeNumerically(">=", 1))
			Expect(stats.BranchCorrect + stats.BranchMispredictions).To(Equal(uint64(10)))
		})

		It("should pay the configured misprediction penalty", func() {
			base := newPipeline(sumLoop)
			base.Run()

			config := latency.DefaultTimingConfig()
			config.BranchMispredictPenalty = 5
			regFile = &emu.RegFile{}
			memory = emu.NewMemory()
			pipe = newPipeline(sumLoop, pipeline.WithLatencyTable(latency.NewTableWithConfig(config)))
			pipe.Run()

			Expect(pipe.Stats().Cycles).To(BeNumerically(">", base.Stats().Cycles))
		})

		It("should log flushes at verbosity 1", func() {
			var lines []string
			log := funcr.New(func(prefix, args string) {
				lines = append(lines, args)
			}, funcr.Options{Verbosity: 1})
			pipe = newPipeline(sumLoop, pipeline.WithLogger(log))

			pipe.Run()

			Expect(lines).To(ContainElement(ContainSubstring(`"msg"="flush"`)))
			Expect(lines).To(ContainElement(ContainSubstring(`"msg"="halt"`)))
		})
	})

	Describe("Configuration", func() {
		It("should need at least one cycle per instruction at fetch width 1", func() {
			pipe = newPipeline(sumLoop, pipeline.WithFetchWidth(1))

			Expect(pipe.Run()).To(Equal(int64(55)))
			Expect(pipe.Stats().CPI()).To(BeNumerically(">=", 1.0))
		})

		It("should run faster with a wider front end", func() {
			words := make([]uint32, 0, 64)
			for i := range 40 {
				words = append(words, insts.ADDI(uint8(5+i%8), 0, int64(i)))
			}
			words = append(words, exitWith(0)...)

			narrow := newPipeline(words, pipeline.WithFetchWidth(1))
			narrow.Run()

			regFile = &emu.RegFile{}
			config := pipeline.DefaultConfig()
			config.ALUCount = 4
			pipe = newPipeline(words, pipeline.WithConfig(config))
			pipe.Run()

			Expect(pipe.Stats().Cycles).To(BeNumerically("<", narrow.Stats().Cycles))
		})

		It("should stall rename when the reorder buffer is full", func() {
			config := pipeline.DefaultConfig()
			config.ROBSize = 4
			timing := latency.DefaultTimingConfig()
			timing.DivideModel = latency.DivideFixed
			timing.DivideLatency = 20
			words := []uint32{insts.MUL(insts.MDUDiv, 3, 1, 2)}
			for range 8 {
				words = append(words, insts.ADDI(5, 5, 1))
			}
			pipe = newPipeline(append(words, exitWith(0)...),
				pipeline.WithConfig(config),
				pipeline.WithLatencyTable(latency.NewTableWithConfig(timing)))

			pipe.Run()

			stats := pipe.Stats()
			Expect(stats.ROBFullStalls).To(BeNumerically(">", 0))
			Expect(stats.Stalls).To(Equal(stats.ROBFullStalls + stats.IssueQueueStalls + stats.FreeListStalls))
			Expect(regFile.ReadReg(5)).To(Equal(uint64(8)))
		})

		It("should not count operand waits as rename stalls", func() {
			config := pipeline.DefaultConfig()
			config.ROBSize = 512
			timing := latency.DefaultTimingConfig()
			timing.DivideModel = latency.DivideFixed
			timing.DivideLatency = 20
			words := []uint32{
				insts.ADDI(1, 0, 40),
				insts.ADDI(2, 0, 5),
				insts.MUL(insts.MDUDiv, 3, 1, 2),
				insts.ADD(4, 3, 3),
			}
			pipe = newPipeline(append(words, exitWith(0)...),
				pipeline.WithConfig(config),
				pipeline.WithLatencyTable(latency.NewTableWithConfig(timing)))

			pipe.Run()

			Expect(pipe.Stats().Cycles).To(BeNumerically(">", 20))
			Expect(pipe.Stats().Stalls).To(BeZero())
			Expect(regFile.ReadReg(4)).To(Equal(uint64(16)))
		})

		It("should produce the same cycle count for the same divide seed", func() {
			timing := latency.DefaultTimingConfig()
			timing.DivideModel = latency.DivideSeeded
			timing.DivideSeed = 42
			words := []uint32{
				insts.ADDI(1, 0, 100),
				insts.ADDI(2, 0, 7),
				insts.MUL(insts.MDUDiv, 3, 1, 2),
				insts.MUL(insts.MDURem, 4, 1, 2),
				insts.MUL(insts.MDUDiv, 5, 3, 2),
			}
			words = append(words, exitWith(0)...)

			run := func() uint64 {
				regFile = &emu.RegFile{}
				memory = emu.NewMemory()
				p := newPipeline(words, pipeline.WithLatencyTable(latency.NewTableWithConfig(timing)))
				p.Run()
				return p.Stats().Cycles
			}

			Expect(run()).To(Equal(run()))
		})

		It("should wrap at 32 bits with XLEN 32", func() {
			config := pipeline.DefaultConfig()
			config.XLEN = 32
			regFile.WriteReg(1, 0xFFFFFFFF)
			words := []uint32{
				insts.ADDI(2, 1, 1),
				0x0220D1B3, // divu x3, x1, x2
			}
			pipe = newPipeline(append(words, exitWith(0)...), pipeline.WithConfig(config))

			pipe.Run()

			Expect(regFile.ReadReg(2)).To(BeZero())
			Expect(regFile.ReadReg(3)).To(Equal(uint64(0xFFFFFFFF)))
		})
	})

	Describe("Reset", func() {
		It("should clear statistics and allow a rerun", func() {
			pipe = newPipeline(sumLoop)
			pipe.Run()

			regFile.PC = entry
			pipe.Reset()

			Expect(pipe.Halted()).To(BeFalse())
			Expect(pipe.Stats()).To(Equal(pipeline.Statistics{}))
			Expect(pipe.Run()).To(Equal(int64(55)))
		})

		It("should replay seeded divide latencies after a reset", func() {
			timing := latency.DefaultTimingConfig()
			timing.DivideModel = latency.DivideSeeded
			timing.DivideSeed = 42
			words := []uint32{
				insts.ADDI(1, 0, 100),
				insts.ADDI(2, 0, 7),
			}
			for i := range uint8(8) {
				words = append(words, insts.MUL(insts.MDUDiv, 3+i, 1, 2))
			}
			words = append(words, exitWith(0)...)
			pipe = newPipeline(words, pipeline.WithLatencyTable(latency.NewTableWithConfig(timing)))

			pipe.Run()
			first := pipe.Stats().Cycles

			regFile.PC = entry
			pipe.Reset()
			pipe.Run()

			Expect(pipe.Stats().Cycles).To(Equal(first))
			Expect(regFile.ReadReg(3)).To(Equal(uint64(14)))
		})
	})

	Describe("Differential against the emulator", func() {
		DescribeTable("should end in the same architectural state",
			func(words []uint32) {
				e := emu.NewEmulator(emu.WithStdout(io.Discard), emu.WithStackPointer(0x7000))
				e.LoadProgram(entry, program(words...))
				*regFile = *e.RegFile()

				want := e.Run()
				pipe = newPipeline(words)
				got := pipe.Run()

				Expect(got).To(Equal(want))
				Expect(pipe.Stats().Instructions).To(Equal(e.InstructionCount()))
				Expect(cmp.Diff(*e.RegFile(), *regFile)).To(BeEmpty())
			},
			Entry("sum loop", sumLoop),
			Entry("multiply chain", []uint32{
				insts.ADDI(1, 0, 3),
				insts.MUL(insts.MDUMul, 2, 1, 1),
				insts.MUL(insts.MDUMul, 3, 2, 1),
				insts.MUL(insts.MDURem, 4, 3, 2),
				insts.SUB(emu.RegA0, 3, 4),
				insts.ADDI(emu.RegA7, 0, int64(emu.SyscallExit)),
				insts.ECALL(),
			}),
			Entry("stack traffic", []uint32{
				insts.ADDI(2, 2, -16),
				insts.ADDI(5, 0, 21),
				insts.SD(5, 2, 0),
				insts.LD(6, 2, 0),
				insts.ADD(emu.RegA0, 6, 6),
				insts.ADDI(2, 2, 16),
				insts.ADDI(emu.RegA7, 0, int64(emu.SyscallExit)),
				insts.ECALL(),
			}),
			Entry("nested branches", []uint32{
				insts.ADDI(5, 0, 6),
				insts.ADDI(10, 0, 0),
				insts.EncodeB(insts.CondLT, 5, 0, 12), // loop: never taken
				insts.ADDI(6, 5, -3),
				insts.EncodeB(insts.CondGE, 6, 0, 8),
				insts.ADDI(10, 10, 1),
				insts.ADDI(5, 5, -1),
				insts.EncodeB(insts.CondNE, 5, 0, -20),
				insts.ADDI(emu.RegA7, 0, int64(emu.SyscallExit)),
				insts.ECALL(),
			}),
		)
	})
})
