package core_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/latency"
)

func load(memory *emu.Memory, addr uint64, words ...uint32) {
	for i, w := range words {
		memory.Write32(addr+uint64(4*i), w)
	}
}

func exitWith(code int64) []uint32 {
	return []uint32{
		insts.ADDI(emu.RegA0, 0, code),
		insts.ADDI(emu.RegA7, 0, int64(emu.SyscallExit)),
		insts.ECALL(),
	}
}

var _ = Describe("Core", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		c       *core.Core
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory()
		c = core.NewCore(regFile, memory)
	})

	It("should create a core with pipeline", func() {
		Expect(c).NotTo(BeNil())
		Expect(c.Pipeline).NotTo(BeNil())
	})

	It("should set and get PC", func() {
		c.SetPC(0x1000)
		Expect(c.Pipeline.PC()).To(Equal(uint64(0x1000)))
	})

	It("should not be halted initially", func() {
		Expect(c.Halted()).To(BeFalse())
	})

	It("should execute instructions through tick", func() {
		load(memory, 0x1000, insts.ADDI(1, 0, 42), insts.EncodeJ(0, 0))
		c.SetPC(0x1000)

		for range 10 {
			c.Tick()
		}

		Expect(regFile.X[1]).To(Equal(uint64(42)))
	})

	It("should run until halt and return exit code", func() {
		load(memory, 0x1000, exitWith(10)...)
		c.SetPC(0x1000)

		exitCode := c.Run()

		Expect(c.Halted()).To(BeTrue())
		Expect(exitCode).To(Equal(int64(10)))
		Expect(c.ExitCode()).To(Equal(int64(10)))
		Expect(c.Err()).NotTo(HaveOccurred())
		Expect(c.Stats().Instructions).To(Equal(uint64(3)))
		Expect(c.Stats().CPI()).To(BeNumerically(">", 0))
	})

	It("should run for specified cycles and return running status", func() {
		load(memory, 0x1000, insts.ADDI(1, 1, 1), insts.EncodeJ(0, -4))
		c.SetPC(0x1000)

		running := c.RunCycles(5)

		Expect(running).To(BeTrue())
		Expect(c.Halted()).To(BeFalse())
		Expect(c.Stats().Cycles).To(Equal(uint64(5)))
	})

	It("should stop running cycles when halted", func() {
		load(memory, 0x1000, exitWith(0)...)
		c.SetPC(0x1000)

		running := c.RunCycles(100)

		Expect(running).To(BeFalse())
		Expect(c.Halted()).To(BeTrue())
	})

	It("should reset core state", func() {
		load(memory, 0x1000, insts.ADDI(1, 0, 1), insts.EncodeJ(0, 0))
		c.SetPC(0x1000)
		for range 10 {
			c.Tick()
		}
		Expect(c.Stats().Cycles).To(BeNumerically(">", 0))

		c.Reset()

		Expect(c.Stats().Cycles).To(BeZero())
		Expect(c.Stats().Instructions).To(BeZero())
		Expect(c.Halted()).To(BeFalse())
	})

	Describe("Config", func() {
		It("should build a core from a configuration", func() {
			config := core.DefaultConfig()
			config.Pipeline.FetchWidth = 2
			config.Timing.LoadLatency = 7

			c, err := core.NewCoreWithConfig(regFile, memory, config)

			Expect(err).NotTo(HaveOccurred())
			Expect(c.Pipeline.Config().FetchWidth).To(Equal(2))
		})

		It("should reject an invalid configuration", func() {
			config := core.DefaultConfig()
			config.Timing.LoadLatency = 0

			_, err := core.NewCoreWithConfig(regFile, memory, config)

			Expect(err).To(MatchError(ContainSubstring("load_latency")))
		})

		DescribeTable("should load partial files over the defaults",
			func(name, body string) {
				path := filepath.Join(GinkgoT().TempDir(), name)
				Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())

				config, err := core.LoadConfig(path)

				Expect(err).NotTo(HaveOccurred())
				Expect(config.Pipeline.ROBSize).To(Equal(16))
				Expect(config.Pipeline.FetchWidth).To(Equal(4))
				Expect(config.Timing.DivideModel).To(Equal(latency.DivideWidth))
				Expect(config.Timing.MultiplyLatency).To(Equal(uint64(5)))
			},
			Entry("yaml", "core.yaml", "pipeline:\n  rob_size: 16\ntiming:\n  divide_model: width\n"),
			Entry("json", "core.json", `{"pipeline": {"rob_size": 16}, "timing": {"divide_model": "width"}}`),
		)

		It("should reject an incompatible schema version", func() {
			path := filepath.Join(GinkgoT().TempDir(), "core.yaml")
			body := "timing:\n  schema_version: 2.0.0\n"
			Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())

			_, err := core.LoadConfig(path)

			Expect(err).To(HaveOccurred())
		})
	})
})
