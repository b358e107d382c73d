package platform

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/rvpe/timing/cache"
	"github.com/sarchlab/rvpe/timing/latency"
)

// Config is a platform testcase.
type Config struct {
	HW     HWConfig              `yaml:"hw"`
	Timing *latency.TimingConfig `yaml:"timing"`
	Cache  CacheConfig           `yaml:"cache"`

	// Kernel is an image loaded into every processing element. ELF files
	// are recognized by extension, anything else is a raw image at 0.
	Kernel string `yaml:"kernel,omitempty"`
}

// HWConfig describes the hardware of the many-core grid.
type HWConfig struct {
	// PageSizeKB is the size of one task page.
	PageSizeKB uint32 `yaml:"page_size_KB"`
	// TasksPerPE is the number of task pages of each element. One more
	// page holds the kernel.
	TasksPerPE uint32 `yaml:"tasks_per_PE"`
	// MPSoCDimension is the grid size as [x, y].
	MPSoCDimension [2]int `yaml:"mpsoc_dimension"`
	// FreqMHz is the clock of every element.
	FreqMHz float64 `yaml:"freq_MHz"`
	// MaxCycles bounds each element's run. 0 means no limit.
	MaxCycles uint64 `yaml:"max_cycles"`
}

// CacheConfig selects the optional L1 of each element.
type CacheConfig struct {
	Enabled      bool `yaml:"enabled"`
	cache.Config `yaml:",inline"`
}

// DefaultConfig returns a single-element platform with 32KB pages and
// one task page.
func DefaultConfig() *Config {
	return &Config{
		HW: HWConfig{
			PageSizeKB:     32,
			TasksPerPE:     1,
			MPSoCDimension: [2]int{1, 1},
			FreqMHz:        100,
		},
		Timing: latency.DefaultTimingConfig(),
		Cache:  CacheConfig{Config: cache.DefaultL1Config()},
	}
}

// LoadConfig reads a YAML testcase. Missing fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read platform config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse platform config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid platform config %s: %w", path, err)
	}

	return config, nil
}

// MemorySize returns the memory of one element in bytes: the task pages
// plus the kernel page.
func (c *Config) MemorySize() uint32 {
	return (c.HW.TasksPerPE + 1) * c.HW.PageSizeKB * 1024
}

// NumPEs returns the number of elements in the grid.
func (c *Config) NumPEs() int {
	return c.HW.MPSoCDimension[0] * c.HW.MPSoCDimension[1]
}

// Validate checks the hardware description and the timing section.
func (c *Config) Validate() error {
	if c.HW.PageSizeKB == 0 {
		return fmt.Errorf("page_size_KB must be > 0")
	}
	if c.HW.MPSoCDimension[0] <= 0 || c.HW.MPSoCDimension[1] <= 0 {
		return fmt.Errorf("mpsoc_dimension must be positive, got %v", c.HW.MPSoCDimension)
	}
	if c.HW.MPSoCDimension[0] > 256 || c.HW.MPSoCDimension[1] > 256 {
		return fmt.Errorf("mpsoc_dimension must fit 8-bit coordinates, got %v", c.HW.MPSoCDimension)
	}
	if c.HW.FreqMHz <= 0 {
		return fmt.Errorf("freq_MHz must be > 0")
	}
	pages := uint64(c.HW.TasksPerPE) + 1
	if pages*uint64(c.HW.PageSizeKB)*1024 >= 1<<32 {
		return fmt.Errorf("memory of %d pages of %dKB exceeds 4GB", pages, c.HW.PageSizeKB)
	}
	if c.Timing == nil {
		return fmt.Errorf("timing section is missing")
	}
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}
	if c.Cache.Enabled {
		cc := c.Cache.Config
		if cc.BlockSize <= 0 || cc.BlockSize%4 != 0 || cc.Associativity <= 0 ||
			cc.Size%(cc.BlockSize*cc.Associativity) != 0 || cc.Size == 0 {
			return fmt.Errorf("cache geometry %d/%d/%d is invalid",
				cc.Size, cc.Associativity, cc.BlockSize)
		}
	}
	return nil
}
