// Package latency provides the deterministic latency model of the timing
// pipeline.
//
// Multiplies take a fixed number of cycles. Divides and remainders take a
// latency from a pluggable DivideModel so that every run with the same
// configuration produces the same cycle counts.
package latency

import (
	"math/bits"
	"math/rand/v2"
	"slices"

	"github.com/sarchlab/rvsim/insts"
)

// DivideModel produces the latency of a divide or remainder operation.
type DivideModel interface {
	// DivideLatency returns the latency for a dividend of the given
	// operand width in bits.
	DivideLatency(dividend uint64, width int) uint64
}

// FixedDivide gives every divide the same latency.
type FixedDivide struct {
	Latency uint64
}

// DivideLatency implements DivideModel.
func (m FixedDivide) DivideLatency(uint64, int) uint64 {
	return m.Latency
}

// WidthDivide keys the latency on the number of significant bits of the
// dividend.
type WidthDivide struct {
	rows     []WidthLatency
	fallback uint64
}

// NewWidthDivide creates a WidthDivide. Dividends wider than every row
// take the fallback latency.
func NewWidthDivide(rows []WidthLatency, fallback uint64) *WidthDivide {
	sorted := slices.Clone(rows)
	slices.SortFunc(sorted, func(a, b WidthLatency) int {
		return a.MaxBits - b.MaxBits
	})
	return &WidthDivide{rows: sorted, fallback: fallback}
}

// DivideLatency implements DivideModel.
func (m *WidthDivide) DivideLatency(dividend uint64, width int) uint64 {
	if width < 64 {
		dividend &= 1<<width - 1
	}
	n := bits.Len64(dividend)
	for _, row := range m.rows {
		if n <= row.MaxBits {
			return row.Latency
		}
	}
	return m.fallback
}

// SeededDivide draws latencies uniformly from [min, max] with a seeded
// generator.
type SeededDivide struct {
	seed     uint64
	min, max uint64
	rng      *rand.Rand
}

// NewSeededDivide creates a SeededDivide. The bounds may be given in
// either order.
func NewSeededDivide(seed, lo, hi uint64) *SeededDivide {
	if lo > hi {
		lo, hi = hi, lo
	}
	m := &SeededDivide{seed: seed, min: lo, max: hi}
	m.Reset()
	return m
}

// Reset restarts the latency sequence.
func (m *SeededDivide) Reset() {
	m.rng = rand.New(rand.NewPCG(m.seed, m.seed^0x9E3779B97F4A7C15))
}

// DivideLatency implements DivideModel.
func (m *SeededDivide) DivideLatency(uint64, int) uint64 {
	span := m.max - m.min + 1
	if span == 0 {
		// [0, MaxUint64] covers every value.
		return m.rng.Uint64()
	}
	return m.min + m.rng.Uint64N(span)
}

// NewDivideModel builds the divide model named by the configuration. An
// unknown model name falls back to the fixed model.
func NewDivideModel(config *TimingConfig) DivideModel {
	switch config.DivideModel {
	case DivideWidth:
		return NewWidthDivide(config.DivideWidthTable, config.DivideLatencyMax)
	case DivideSeeded:
		return NewSeededDivide(config.DivideSeed, config.DivideLatencyMin, config.DivideLatencyMax)
	default:
		return FixedDivide{Latency: config.DivideLatency}
	}
}

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
	divide DivideModel
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return NewTableWithConfig(DefaultTimingConfig())
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
		divide: NewDivideModel(config),
	}
}

// Reset restarts any stateful divide model, so a rerun reproduces the
// latencies of the first run.
func (t *Table) Reset() {
	if r, ok := t.divide.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// WithDivideModel replaces the divide model and returns the table.
func (t *Table) WithDivideModel(model DivideModel) *Table {
	t.divide = model
	return t
}

// GetLatency returns the execution latency in cycles for the given
// instruction. rs1 is the first source value, used as the dividend by
// divide models; xlen is the register width.
func (t *Table) GetLatency(inst *insts.Instruction, rs1 uint64, xlen int) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Class {
	case insts.ClassALU, insts.ClassBranch:
		return 0

	case insts.ClassMDU:
		if !inst.MDUOp.IsDivide() {
			return t.config.MultiplyLatency
		}
		width := xlen
		if inst.Word {
			width = 32
		}
		return t.divide.DivideLatency(rs1, width)

	case insts.ClassLoad:
		return t.config.LoadLatency

	case insts.ClassStore:
		// AMOs read memory before writing it.
		if inst.IsAtomic() && inst.Op != insts.OpSC {
			return t.config.LoadLatency
		}
		return t.config.StoreLatency

	case insts.ClassFPU, insts.ClassVector:
		return t.config.ExtensionLatency

	case insts.ClassCSR, insts.ClassSystem:
		return t.config.SystemLatency

	default:
		return 0
	}
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Class == insts.ClassLoad || inst.Class == insts.ClassStore
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
