package latency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.yaml.in/yaml/v3"
)

// SchemaVersion is the configuration schema written by SaveConfig.
const SchemaVersion = "1.1.0"

// schemaConstraint accepts every configuration file this package can read.
const schemaConstraint = "^1.0.0"

// Divide latency models.
const (
	DivideFixed  = "fixed"
	DivideWidth  = "width"
	DivideSeeded = "seeded"
)

// WidthLatency maps dividends of at most MaxBits significant bits to a
// latency.
type WidthLatency struct {
	MaxBits int    `json:"max_bits" yaml:"max_bits"`
	Latency uint64 `json:"latency" yaml:"latency"`
}

// TimingConfig holds latency values for the functional units.
type TimingConfig struct {
	// SchemaVersion is the semantic version of the file layout. Empty means
	// the current version.
	SchemaVersion string `json:"schema_version" yaml:"schema_version"`

	// MultiplyLatency is the latency of mul, mulh, mulhsu, mulhu and mulw.
	// Default: 5 cycles.
	MultiplyLatency uint64 `json:"multiply_latency" yaml:"multiply_latency"`

	// DivideModel selects how divide and remainder latencies are produced:
	// "fixed", "width" or "seeded".
	DivideModel string `json:"divide_model" yaml:"divide_model"`

	// DivideLatency is the latency used by the fixed model. Default: 18.
	DivideLatency uint64 `json:"divide_latency" yaml:"divide_latency"`

	// DivideLatencyMin and DivideLatencyMax bound the seeded model.
	// Default: 18 to 45 cycles.
	DivideLatencyMin uint64 `json:"divide_latency_min" yaml:"divide_latency_min"`
	DivideLatencyMax uint64 `json:"divide_latency_max" yaml:"divide_latency_max"`

	// DivideSeed seeds the seeded model. The same seed reproduces the same
	// latency sequence.
	DivideSeed uint64 `json:"divide_seed" yaml:"divide_seed"`

	// DivideWidthTable is used by the width model. Rows are matched in
	// ascending MaxBits order; a dividend wider than every row takes
	// DivideLatencyMax.
	DivideWidthTable []WidthLatency `json:"divide_width_table" yaml:"divide_width_table"`

	// LoadLatency is the latency of loads, LR and AMOs. Default: 2 cycles.
	LoadLatency uint64 `json:"load_latency" yaml:"load_latency"`

	// StoreLatency is the latency of stores and SC. Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency" yaml:"store_latency"`

	// SystemLatency is the latency of CSR and system instructions.
	// Default: 1 cycle.
	SystemLatency uint64 `json:"system_latency" yaml:"system_latency"`

	// ExtensionLatency is the latency of floating-point and vector
	// instructions in the extension unit. Default: 1 cycle.
	ExtensionLatency uint64 `json:"extension_latency" yaml:"extension_latency"`

	// BranchMispredictPenalty is the number of cycles fetch stays idle after
	// a misprediction redirect. Default: 0.
	BranchMispredictPenalty uint64 `json:"branch_mispredict_penalty" yaml:"branch_mispredict_penalty"`
}

// DefaultTimingConfig returns a TimingConfig with default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		SchemaVersion:    SchemaVersion,
		MultiplyLatency:  5,
		DivideModel:      DivideFixed,
		DivideLatency:    18,
		DivideLatencyMin: 18,
		DivideLatencyMax: 45,
		DivideSeed:       1,
		DivideWidthTable: []WidthLatency{
			{MaxBits: 8, Latency: 18},
			{MaxBits: 16, Latency: 24},
			{MaxBits: 32, Latency: 33},
			{MaxBits: 64, Latency: 45},
		},
		LoadLatency:      2,
		StoreLatency:     1,
		SystemLatency:    1,
		ExtensionLatency: 1,
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig loads a TimingConfig from a JSON or YAML file, chosen by the
// file extension. Fields missing from the file keep their defaults.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	if err := CheckSchema(config.SchemaVersion); err != nil {
		return nil, err
	}

	return config, nil
}

// CheckSchema reports whether a configuration schema version can be read.
func CheckSchema(version string) error {
	if version == "" {
		return nil
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid schema_version %q: %w", version, err)
	}

	c, err := semver.NewConstraint(schemaConstraint)
	if err != nil {
		return fmt.Errorf("invalid schema constraint: %w", err)
	}

	if !c.Check(v) {
		return fmt.Errorf("unsupported schema_version %s (want %s)", v, schemaConstraint)
	}

	return nil
}

// SaveConfig writes a TimingConfig to a JSON or YAML file, chosen by the
// file extension.
func (c *TimingConfig) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that the latency values are consistent.
func (c *TimingConfig) Validate() error {
	if c.MultiplyLatency == 0 {
		return fmt.Errorf("multiply_latency must be > 0")
	}
	if c.LoadLatency == 0 {
		return fmt.Errorf("load_latency must be > 0")
	}
	if c.StoreLatency == 0 {
		return fmt.Errorf("store_latency must be > 0")
	}
	if c.SystemLatency == 0 {
		return fmt.Errorf("system_latency must be > 0")
	}
	if c.ExtensionLatency == 0 {
		return fmt.Errorf("extension_latency must be > 0")
	}

	switch c.DivideModel {
	case DivideFixed:
		if c.DivideLatency == 0 {
			return fmt.Errorf("divide_latency must be > 0")
		}
	case DivideSeeded:
		if c.DivideLatencyMin == 0 {
			return fmt.Errorf("divide_latency_min must be > 0")
		}
		if c.DivideLatencyMin > c.DivideLatencyMax {
			return fmt.Errorf("divide_latency_min must be <= divide_latency_max")
		}
	case DivideWidth:
		if len(c.DivideWidthTable) == 0 {
			return fmt.Errorf("divide_width_table must not be empty")
		}
		for _, row := range c.DivideWidthTable {
			if row.MaxBits <= 0 || row.Latency == 0 {
				return fmt.Errorf("divide_width_table row %+v must have max_bits > 0 and latency > 0", row)
			}
		}
	default:
		return fmt.Errorf("unknown divide_model %q", c.DivideModel)
	}

	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	clone.DivideWidthTable = slices.Clone(c.DivideWidthTable)
	return &clone
}
