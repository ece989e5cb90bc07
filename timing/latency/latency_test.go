package latency_test

import (
	"math"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/latency"
)

var _ = Describe("Latency", func() {
	var (
		table   *latency.Table
		decoder *insts.Decoder
	)

	BeforeEach(func() {
		table = latency.NewTable()
		decoder = insts.NewDecoder()
	})

	decode := func(bits uint32) *insts.Instruction {
		inst, err := decoder.Decode(bits, 0)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return inst
	}

	Describe("Default Timing Values", func() {
		It("should take 5 cycles for multiplies", func() {
			Expect(table.Config().MultiplyLatency).To(Equal(uint64(5)))
		})

		It("should use the fixed divide model", func() {
			Expect(table.Config().DivideModel).To(Equal(latency.DivideFixed))
		})

		It("should bound divides between 18 and 45 cycles", func() {
			Expect(table.Config().DivideLatencyMin).To(Equal(uint64(18)))
			Expect(table.Config().DivideLatencyMax).To(Equal(uint64(45)))
		})
	})

	DescribeTable("class latencies",
		func(bits uint32, want uint64) {
			Expect(table.GetLatency(decode(bits), 0, 64)).To(Equal(want))
		},
		Entry("addi completes in the same cycle", insts.ADDI(5, 0, 10), uint64(0)),
		Entry("beq completes in the same cycle", insts.EncodeB(insts.CondEQ, 1, 2, 8), uint64(0)),
		Entry("mul", insts.MUL(insts.MDUMul, 3, 1, 2), uint64(5)),
		Entry("mulhu", insts.MUL(insts.MDUMulhu, 3, 1, 2), uint64(5)),
		Entry("divu", insts.MUL(insts.MDUDivu, 3, 1, 2), uint64(18)),
		Entry("ld", insts.LD(5, 2, 0), uint64(2)),
		Entry("sd", insts.SD(5, 2, 0), uint64(1)),
		Entry("amoadd.w", uint32(0x0063A2AF), uint64(2)),
		Entry("sc.w", uint32(0x1863A2AF), uint64(1)),
		Entry("fadd.d", uint32(0x023170D3), uint64(1)),
		Entry("ecall", insts.ECALL(), uint64(1)),
	)

	It("should return 1 for a nil instruction", func() {
		Expect(table.GetLatency(nil, 0, 64)).To(Equal(uint64(1)))
		Expect(table.IsMemoryOp(nil)).To(BeFalse())
	})

	It("should detect memory operations", func() {
		Expect(table.IsMemoryOp(decode(insts.LD(5, 2, 0)))).To(BeTrue())
		Expect(table.IsMemoryOp(decode(insts.SD(5, 2, 0)))).To(BeTrue())
		Expect(table.IsMemoryOp(decode(insts.ADDI(5, 0, 1)))).To(BeFalse())
	})

	Describe("Divide models", func() {
		It("should key the width model on significant dividend bits", func() {
			config := latency.DefaultTimingConfig()
			config.DivideModel = latency.DivideWidth
			table = latency.NewTableWithConfig(config)
			div := decode(insts.MUL(insts.MDUDiv, 3, 1, 2))

			Expect(table.GetLatency(div, 0xFF, 64)).To(Equal(uint64(18)))
			Expect(table.GetLatency(div, 0x1FF, 64)).To(Equal(uint64(24)))
			Expect(table.GetLatency(div, 1<<40, 64)).To(Equal(uint64(45)))
		})

		It("should look only at the low word for word forms", func() {
			model := latency.NewWidthDivide([]latency.WidthLatency{
				{MaxBits: 32, Latency: 20},
				{MaxBits: 8, Latency: 10},
			}, 99)

			Expect(model.DivideLatency(0xFFFF_FFFF_0000_0001, 32)).To(Equal(uint64(10)))
			Expect(model.DivideLatency(0xFFFF_FFFF_0000_0001, 64)).To(Equal(uint64(99)))
		})

		It("should reproduce the seeded sequence", func() {
			a := latency.NewSeededDivide(7, 18, 45)
			b := latency.NewSeededDivide(7, 18, 45)

			first := make([]uint64, 32)
			for i := range first {
				first[i] = a.DivideLatency(0, 64)
				Expect(first[i]).To(BeNumerically(">=", 18))
				Expect(first[i]).To(BeNumerically("<=", 45))
				Expect(b.DivideLatency(0, 64)).To(Equal(first[i]))
			}

			a.Reset()
			for i := range first {
				Expect(a.DivideLatency(0, 64)).To(Equal(first[i]))
			}
		})

		It("should restart the seeded sequence on table reset", func() {
			config := latency.DefaultTimingConfig()
			config.DivideModel = latency.DivideSeeded
			config.DivideSeed = 42
			seeded := latency.NewTableWithConfig(config)
			div := decode(insts.MUL(insts.MDUDiv, 3, 1, 2))

			first := make([]uint64, 8)
			for i := range first {
				first[i] = seeded.GetLatency(div, 0, 64)
			}

			seeded.Reset()
			for i := range first {
				Expect(seeded.GetLatency(div, 0, 64)).To(Equal(first[i]))
			}
		})

		It("should ignore reset on a stateless model", func() {
			table.WithDivideModel(latency.FixedDivide{Latency: 3})
			table.Reset()

			Expect(table.GetLatency(decode(insts.MUL(insts.MDUDiv, 3, 1, 2)), 0, 64)).To(Equal(uint64(3)))
		})

		It("should draw from the full range without panicking", func() {
			model := latency.NewSeededDivide(1, 0, math.MaxUint64)

			Expect(func() {
				for i := 0; i < 16; i++ {
					model.DivideLatency(0, 64)
				}
			}).NotTo(Panic())
		})

		It("should accept swapped bounds", func() {
			model := latency.NewSeededDivide(1, 45, 18)

			for i := 0; i < 32; i++ {
				Expect(model.DivideLatency(0, 64)).To(And(
					BeNumerically(">=", 18), BeNumerically("<=", 45)))
			}
		})

		It("should accept an injected model", func() {
			table.WithDivideModel(latency.FixedDivide{Latency: 3})

			Expect(table.GetLatency(decode(insts.MUL(insts.MDURem, 3, 1, 2)), 0, 64)).To(Equal(uint64(3)))
		})
	})
})

var _ = Describe("TimingConfig", func() {
	It("should create valid default config", func() {
		Expect(latency.DefaultTimingConfig().Validate()).To(Succeed())
	})

	Describe("Validation", func() {
		var config *latency.TimingConfig

		BeforeEach(func() {
			config = latency.DefaultTimingConfig()
		})

		It("should reject zero multiply latency", func() {
			config.MultiplyLatency = 0
			Expect(config.Validate()).To(MatchError(ContainSubstring("multiply_latency")))
		})

		It("should reject zero load latency", func() {
			config.LoadLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject inverted divide latency range", func() {
			config.DivideModel = latency.DivideSeeded
			config.DivideLatencyMin = 50
			Expect(config.Validate()).To(MatchError(ContainSubstring("divide_latency_min")))
		})

		It("should reject unknown divide models", func() {
			config.DivideModel = "random"
			Expect(config.Validate()).To(MatchError(ContainSubstring("unknown divide_model")))
		})

		It("should reject an empty width table", func() {
			config.DivideModel = latency.DivideWidth
			config.DivideWidthTable = nil
			Expect(config.Validate()).To(HaveOccurred())
		})
	})

	It("should clone independently", func() {
		original := latency.DefaultTimingConfig()
		clone := original.Clone()
		clone.MultiplyLatency = 9
		clone.DivideWidthTable[0].Latency = 1

		Expect(original.MultiplyLatency).To(Equal(uint64(5)))
		Expect(original.DivideWidthTable[0].Latency).To(Equal(uint64(18)))
	})

	Describe("Schema", func() {
		It("should accept 1.x versions and an empty version", func() {
			Expect(latency.CheckSchema("")).To(Succeed())
			Expect(latency.CheckSchema("1.0.0")).To(Succeed())
			Expect(latency.CheckSchema(latency.SchemaVersion)).To(Succeed())
		})

		It("should reject other majors and malformed versions", func() {
			Expect(latency.CheckSchema("2.0.0")).To(MatchError(ContainSubstring("unsupported")))
			Expect(latency.CheckSchema("one")).To(HaveOccurred())
		})
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "latency-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		for _, name := range []string{"timing.json", "timing.yaml"} {
			It("should save and load "+name, func() {
				original := latency.DefaultTimingConfig()
				original.MultiplyLatency = 7
				original.DivideModel = latency.DivideSeeded
				original.DivideSeed = 42

				path := filepath.Join(tempDir, name)
				Expect(original.SaveConfig(path)).To(Succeed())

				loaded, err := latency.LoadConfig(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(loaded).To(Equal(original))
			})
		}

		It("should keep defaults for missing YAML fields", func() {
			path := filepath.Join(tempDir, "partial.yml")
			Expect(os.WriteFile(path, []byte("multiply_latency: 3\n"), 0644)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.MultiplyLatency).To(Equal(uint64(3)))
			Expect(loaded.LoadLatency).To(Equal(uint64(2)))
		})

		It("should reject an unsupported schema version", func() {
			path := filepath.Join(tempDir, "future.json")
			Expect(os.WriteFile(path, []byte(`{"schema_version": "2.0.0"}`), 0644)).To(Succeed())

			_, err := latency.LoadConfig(path)
			Expect(err).To(MatchError(ContainSubstring("unsupported schema_version")))
		})

		It("should return error for non-existent file", func() {
			_, err := latency.LoadConfig("/nonexistent/path/timing.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			Expect(os.WriteFile(path, []byte("not valid json"), 0644)).To(Succeed())

			_, err := latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
