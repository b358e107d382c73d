// Package benchmarks provides timing benchmark infrastructure for the
// processing-element model.
package benchmarks

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/akita/v4/sim"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/rvpe/emu"
	"github.com/sarchlab/rvpe/timing/cache"
	"github.com/sarchlab/rvpe/timing/core"
	"github.com/sarchlab/rvpe/timing/latency"
)

// ProgramAddr is where benchmark programs are loaded and entered.
const ProgramAddr = 0x1000

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles counts cycles from the end of reset until the
	// program reached its final self loop.
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// ResetCycles is the reset sequence length
	ResetCycles uint64 `json:"reset_cycles"`

	// Traps is the number of traps taken
	Traps uint64 `json:"traps"`

	// CacheHits/Misses (if cache enabled)
	CacheHits   uint64 `json:"cache_hits,omitempty"`
	CacheMisses uint64 `json:"cache_misses,omitempty"`

	// Result is the final value of a0
	Result uint32 `json:"result"`

	// Passed reports whether Result matched the benchmark's expectation
	Passed bool `json:"passed"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the emulator state (e.g., initialize registers, memory)
	Setup func(e *emu.Emulator)

	// Program is the RV32IM machine code to execute
	Program []byte

	// ExpectedResult is the expected final value of a0
	ExpectedResult uint32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// EnableCache places an L1 between the core and memory
	EnableCache bool

	// Cache is the L1 geometry used when EnableCache is set
	Cache cache.Config

	// Timing prices each core phase; nil uses the defaults
	Timing *latency.TimingConfig

	// MaxCycles bounds each run
	MaxCycles uint64

	// Parallel is the number of benchmarks run at once; 0 means no limit
	Parallel int

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		EnableCache: true,
		Cache:       cache.DefaultL1Config(),
		MaxCycles:   1_000_000,
		Output:      os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks, each on its own engine, and returns the
// results in the order the benchmarks were added.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, len(h.benchmarks))

	var g errgroup.Group
	if h.config.Parallel > 0 {
		g.SetLimit(h.config.Parallel)
	}

	for i, bench := range h.benchmarks {
		g.Go(func() error {
			r, err := h.runBenchmark(i, bench)
			if err != nil {
				return fmt.Errorf("benchmark %s: %w", bench.Name, err)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// runBenchmark executes a single benchmark. The core is named by index;
// bench.Name is only reported.
func (h *Harness) runBenchmark(index int, bench Benchmark) (BenchmarkResult, error) {
	memory := emu.NewMemory()

	emuOpts := []emu.EmulatorOption{emu.WithMemory(memory)}
	coreOpts := []core.CoreOption{
		core.WithLatencyTable(latency.NewTableWithConfig(h.config.Timing)),
		core.WithMaxCycles(h.config.MaxCycles),
	}

	var bus *cache.CachedBus
	if h.config.EnableCache {
		bus = cache.NewCachedBus(h.config.Cache, memory)
		emuOpts = append(emuOpts, emu.WithBus(bus))
		coreOpts = append(coreOpts, core.WithMemoryLatency(bus))
	}

	e := emu.NewEmulator(emuOpts...)
	e.LoadProgram(ProgramAddr, bench.Program)
	if bench.Setup != nil {
		bench.Setup(e)
	}

	engine := sim.NewSerialEngine()
	name := fmt.Sprintf("Bench[%d].Core", index)
	c := core.NewCore(name, engine, 1*sim.GHz, e, coreOpts...)

	start := time.Now()
	if err := c.Run(); err != nil {
		return BenchmarkResult{}, err
	}
	wallTime := time.Since(start)

	if !c.Idle() {
		return BenchmarkResult{}, fmt.Errorf("did not finish within %d cycles", h.config.MaxCycles)
	}

	stats := c.Stats()
	active := stats.Cycles - stats.ResetCycles - stats.IdleCycles
	result := BenchmarkResult{
		Name:                bench.Name,
		Description:         bench.Description,
		SimulatedCycles:     active,
		InstructionsRetired: stats.Instructions,
		ResetCycles:         stats.ResetCycles,
		Traps:               stats.Traps,
		Result:              e.RegFile().ReadReg(10),
		WallTime:            wallTime,
	}
	result.Passed = result.Result == bench.ExpectedResult
	if stats.Instructions > 0 {
		result.CPI = float64(active) / float64(stats.Instructions)
	}

	if bus != nil {
		cs := bus.Cache().Stats()
		result.CacheHits = cs.Hits
		result.CacheMisses = cs.Misses
	}

	return result, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== rvpe Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Result: %d (passed: %v)\n", r.Result, r.Passed)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Reset Cycles:         %d\n", r.ResetCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Traps:                %d\n", r.Traps)

		if r.CacheHits > 0 || r.CacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- L1 ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.CacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.CacheMisses)
		}

		if h.config.Verbose {
			_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		}
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,reset_cycles,traps,cache_hits,cache_misses,result,passed")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%v\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.ResetCycles,
			r.Traps,
			r.CacheHits,
			r.CacheMisses,
			r.Result,
			r.Passed,
		)
	}
}

// PrintJSON outputs benchmark results as indented JSON.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	enc := json.NewEncoder(h.config.Output)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

// BuildProgram assembles instruction words into a byte slice.
func BuildProgram(instrs ...uint32) []byte {
	program := make([]byte, 0, len(instrs)*4)
	for _, inst := range instrs {
		program = binary.LittleEndian.AppendUint32(program, inst)
	}
	return program
}
