package latency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// TimingConfig holds the tick counts of each core-loop phase and
// instruction class.
type TimingConfig struct {
	// ResetLatency is the settle delay after reset. Default: 17 cycles.
	ResetLatency uint64 `json:"reset_latency" yaml:"reset_latency"`

	// MemoryReadLatency is the wait for one bus read, including
	// instruction fetch and page-table reads. Default: 1 cycle.
	MemoryReadLatency uint64 `json:"memory_read_latency" yaml:"memory_read_latency"`

	// MemoryWriteLatency is the wait for one bus write. Default: 1 cycle.
	MemoryWriteLatency uint64 `json:"memory_write_latency" yaml:"memory_write_latency"`

	// DecodeLatency is the decode stage latency. Default: 1 cycle.
	DecodeLatency uint64 `json:"decode_latency" yaml:"decode_latency"`

	// LogicalLatency covers arithmetic, logical, shift and move
	// instructions. Default: 1 cycle.
	LogicalLatency uint64 `json:"logical_latency" yaml:"logical_latency"`

	// BranchLatency covers branches and jumps. Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency" yaml:"branch_latency"`

	// LoadStoreLatency is the address generation latency of loads and
	// stores, before the bus access. Default: 1 cycle.
	LoadStoreLatency uint64 `json:"load_store_latency" yaml:"load_store_latency"`

	// MultiplyLatency is the latency for MUL and MULH*. Default: 4 cycles.
	MultiplyLatency uint64 `json:"multiply_latency" yaml:"multiply_latency"`

	// DivideLatency is the latency for DIV* and REM*. Default: 32 cycles.
	DivideLatency uint64 `json:"divide_latency" yaml:"divide_latency"`

	// SystemLatency covers CSR access, fences and privileged
	// instructions. Default: 1 cycle.
	SystemLatency uint64 `json:"system_latency" yaml:"system_latency"`

	// TrapLatency is the cost of a trap entry. Default: 1 cycle.
	TrapLatency uint64 `json:"trap_latency" yaml:"trap_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the processing element's
// default wait counts.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ResetLatency:       17,
		MemoryReadLatency:  1,
		MemoryWriteLatency: 1,
		DecodeLatency:      1,
		LogicalLatency:     1,
		BranchLatency:      1,
		LoadStoreLatency:   1,
		MultiplyLatency:    4,
		DivideLatency:      32,
		SystemLatency:      1,
		TrapLatency:        1,
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig loads a TimingConfig from a JSON or YAML file, chosen by
// extension. Fields missing from the file keep their defaults.
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

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON or YAML file, chosen by
// extension.
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

// Validate checks that all latency values are valid. Only the memory
// latencies may be zero.
func (c *TimingConfig) Validate() error {
	if c.ResetLatency == 0 {
		return fmt.Errorf("reset_latency must be > 0")
	}
	if c.DecodeLatency == 0 {
		return fmt.Errorf("decode_latency must be > 0")
	}
	if c.LogicalLatency == 0 {
		return fmt.Errorf("logical_latency must be > 0")
	}
	if c.BranchLatency == 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.LoadStoreLatency == 0 {
		return fmt.Errorf("load_store_latency must be > 0")
	}
	if c.MultiplyLatency == 0 {
		return fmt.Errorf("multiply_latency must be > 0")
	}
	if c.DivideLatency < c.MultiplyLatency {
		return fmt.Errorf("divide_latency must be >= multiply_latency")
	}
	if c.SystemLatency == 0 {
		return fmt.Errorf("system_latency must be > 0")
	}
	if c.TrapLatency == 0 {
		return fmt.Errorf("trap_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
