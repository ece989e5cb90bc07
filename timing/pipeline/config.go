// Package pipeline provides the out-of-order timing model: fetch, decode,
// rename, issue, execute and in-order retirement, driven one cycle per Tick.
package pipeline

import "fmt"

// Config controls the widths and sizes of the pipeline structures.
type Config struct {
	// FetchWidth is the number of instructions fetched, decoded and renamed
	// per cycle. Default is 4.
	FetchWidth int `json:"fetch_width" yaml:"fetch_width"`

	// RetireWidth is the number of instructions retired per cycle.
	// Default is 4.
	RetireWidth int `json:"retire_width" yaml:"retire_width"`

	// ROBSize is the number of reorder buffer entries. Default is 64.
	ROBSize int `json:"rob_size" yaml:"rob_size"`

	// IssueQueueSize is the number of renamed instructions waiting to issue.
	// Default is 32.
	IssueQueueSize int `json:"issue_queue_size" yaml:"issue_queue_size"`

	// PhysRegs is the number of physical registers per register class.
	// Must exceed 32. Default is 128.
	PhysRegs int `json:"phys_regs" yaml:"phys_regs"`

	// MDUQueueSize bounds the instructions resident in the multiply/divide
	// unit. Default is 4.
	MDUQueueSize int `json:"mdu_queue_size" yaml:"mdu_queue_size"`

	// ExtensionQueueSize bounds the instructions resident in the
	// floating-point/vector extension unit. Default is 4.
	ExtensionQueueSize int `json:"extension_queue_size" yaml:"extension_queue_size"`

	// ALUCount is the number of ALU and branch operations issued per cycle.
	// Default is 1.
	ALUCount int `json:"alu_count" yaml:"alu_count"`

	// XLEN is the integer register width, 32 or 64. Default is 64.
	XLEN int `json:"xlen" yaml:"xlen"`

	// Predictor configures the branch predictor.
	Predictor BranchPredictorConfig `json:"predictor" yaml:"predictor"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		FetchWidth:         4,
		RetireWidth:        4,
		ROBSize:            64,
		IssueQueueSize:     32,
		PhysRegs:           128,
		MDUQueueSize:       4,
		ExtensionQueueSize: 4,
		ALUCount:           1,
		XLEN:               64,
		Predictor:          DefaultBranchPredictorConfig(),
	}
}

// Validate checks that the configuration describes a buildable pipeline.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"fetch_width", c.FetchWidth},
		{"retire_width", c.RetireWidth},
		{"rob_size", c.ROBSize},
		{"issue_queue_size", c.IssueQueueSize},
		{"mdu_queue_size", c.MDUQueueSize},
		{"extension_queue_size", c.ExtensionQueueSize},
		{"alu_count", c.ALUCount},
	}
	for _, f := range positive {
		if f.value <= 0 {
			return fmt.Errorf("%s must be > 0", f.name)
		}
	}

	if c.PhysRegs <= 32 {
		return fmt.Errorf("phys_regs must be > 32, got %d", c.PhysRegs)
	}
	if c.XLEN != 32 && c.XLEN != 64 {
		return fmt.Errorf("xlen must be 32 or 64, got %d", c.XLEN)
	}

	return c.Predictor.Validate()
}

// WithConfig sets the pipeline configuration.
func WithConfig(config Config) PipelineOption {
	return func(p *Pipeline) {
		p.config = config
	}
}

// WithFetchWidth sets the fetch, decode and rename width.
func WithFetchWidth(width int) PipelineOption {
	return func(p *Pipeline) {
		p.config.FetchWidth = width
	}
}
