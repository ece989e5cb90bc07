// Package core provides the cycle-level CPU core model.
// It wraps the pipeline implementation to provide a high-level interface.
package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/timing/latency"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

// Config bundles the pipeline geometry and the instruction latencies.
type Config struct {
	Pipeline pipeline.Config       `json:"pipeline" yaml:"pipeline"`
	Timing   *latency.TimingConfig `json:"timing" yaml:"timing"`
}

// DefaultConfig returns the default core configuration.
func DefaultConfig() Config {
	return Config{
		Pipeline: pipeline.DefaultConfig(),
		Timing:   latency.DefaultTimingConfig(),
	}
}

// LoadConfig reads a core configuration from a JSON or YAML file, chosen by
// the file extension. Fields missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read core config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse core config: %w", err)
	}

	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}
	if err := latency.CheckSchema(config.Timing.SchemaVersion); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks both halves of the configuration.
func (c Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.Timing == nil {
		return fmt.Errorf("timing: missing")
	}
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}
	return nil
}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of rename stall cycles.
	Stalls uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// BranchMispredictions is the number of retired mispredicted
	// control-flow instructions.
	BranchMispredictions uint64
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core represents a cycle-level CPU core model.
type Core struct {
	// Pipeline is the underlying out-of-order pipeline.
	Pipeline *pipeline.Pipeline

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory
}

// NewCore creates a new Core with the default configuration.
func NewCore(regFile *emu.RegFile, memory *emu.Memory, opts ...pipeline.PipelineOption) *Core {
	return &Core{
		Pipeline: pipeline.NewPipeline(regFile, memory, opts...),
		regFile:  regFile,
		memory:   memory,
	}
}

// NewCoreWithConfig creates a Core from a validated configuration. Options
// are applied after the configuration.
func NewCoreWithConfig(
	regFile *emu.RegFile,
	memory *emu.Memory,
	config Config,
	opts ...pipeline.PipelineOption,
) (*Core, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid core config: %w", err)
	}

	base := []pipeline.PipelineOption{
		pipeline.WithConfig(config.Pipeline),
		pipeline.WithLatencyTable(latency.NewTableWithConfig(config.Timing)),
	}

	return NewCore(regFile, memory, append(base, opts...)...), nil
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint64) {
	c.Pipeline.SetPC(pc)
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() {
	c.Pipeline.Tick()
}

// Halted returns true if the core has halted (e.g., due to exit syscall).
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// ExitCode returns the exit code if the core has halted.
func (c *Core) ExitCode() int64 {
	return c.Pipeline.ExitCode()
}

// Err returns the error that halted the core, if any.
func (c *Core) Err() error {
	return c.Pipeline.Err()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:               pipeStats.Cycles,
		Instructions:         pipeStats.Instructions,
		Stalls:               pipeStats.Stalls,
		Flushes:              pipeStats.Flushes,
		BranchMispredictions: pipeStats.BranchMispredictions,
	}
}

// Run executes the core until it halts.
// Returns the exit code.
func (c *Core) Run() int64 {
	return c.Pipeline.Run()
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.Pipeline.RunCycles(cycles)
}

// Reset clears all core state.
func (c *Core) Reset() {
	c.Pipeline.Reset()
}
