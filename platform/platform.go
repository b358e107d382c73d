// Package platform builds a grid of processing elements from a testcase
// and clocks them on one Akita engine.
package platform

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rvpe/emu"
	"github.com/sarchlab/rvpe/loader"
	"github.com/sarchlab/rvpe/timing/cache"
	"github.com/sarchlab/rvpe/timing/core"
	"github.com/sarchlab/rvpe/timing/latency"
)

// PE is one processing element of the grid.
type PE struct {
	X, Y int

	Memory   *emu.Memory
	Emulator *emu.Emulator
	Core     *core.Core

	// Cache is nil unless the testcase enables it.
	Cache *cache.CachedBus
}

// Address returns the element's network address, x in the high byte.
func (pe *PE) Address() uint32 {
	return uint32(pe.X)<<8 | uint32(pe.Y)
}

// Platform is a grid of independent processing elements.
type Platform struct {
	config *Config
	engine sim.Engine
	pes    []*PE
	log    logr.Logger
}

// Option is a functional option for configuring the Platform.
type Option func(*Platform)

// WithEngine runs the elements on engine instead of a new serial engine.
func WithEngine(engine sim.Engine) Option {
	return func(p *Platform) {
		p.engine = engine
	}
}

// WithLogger sets the logger. Each element logs under its own name.
func WithLogger(log logr.Logger) Option {
	return func(p *Platform) {
		p.log = log
	}
}

// New builds the grid described by config. Elements are numbered row by
// row starting at (0, 0).
func New(config *Config, opts ...Option) (*Platform, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build platform: %w", err)
	}

	p := &Platform{
		config: config,
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.engine == nil {
		p.engine = sim.NewSerialEngine()
	}

	table := latency.NewTableWithConfig(config.Timing)
	freq := sim.Freq(config.HW.FreqMHz) * sim.MHz
	dimX, dimY := config.HW.MPSoCDimension[0], config.HW.MPSoCDimension[1]

	for y := 0; y < dimY; y++ {
		for x := 0; x < dimX; x++ {
			p.pes = append(p.pes, p.buildPE(x, y, len(p.pes), freq, table))
		}
	}

	if config.Kernel != "" {
		prog, err := loadImage(config.Kernel)
		if err != nil {
			return nil, err
		}
		if err := p.LoadProgram(prog); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Platform) buildPE(x, y, index int, freq sim.Freq, table *latency.Table) *PE {
	name := fmt.Sprintf("PE[%d].Core", index)
	log := p.log.WithName(fmt.Sprintf("PE[%d]", index))

	pe := &PE{X: x, Y: y, Memory: emu.NewBoundedMemory(p.config.MemorySize())}

	emuOpts := []emu.EmulatorOption{
		emu.WithMemory(pe.Memory),
		emu.WithHartID(pe.Address()),
		emu.WithLogger(log),
	}
	coreOpts := []core.CoreOption{
		core.WithLatencyTable(table),
		core.WithMaxCycles(p.config.HW.MaxCycles),
		core.WithLogger(log),
	}

	if p.config.Cache.Enabled {
		pe.Cache = cache.NewCachedBus(p.config.Cache.Config, pe.Memory)
		emuOpts = append(emuOpts, emu.WithBus(pe.Cache))
		coreOpts = append(coreOpts, core.WithMemoryLatency(pe.Cache))
	}

	pe.Emulator = emu.NewEmulator(emuOpts...)
	pe.Core = core.NewCore(name, p.engine, freq, pe.Emulator, coreOpts...)

	return pe
}

func loadImage(path string) (*loader.Program, error) {
	if strings.EqualFold(filepath.Ext(path), ".elf") {
		return loader.Load(path)
	}
	return loader.LoadBinary(path, 0)
}

// Config returns the testcase the platform was built from.
func (p *Platform) Config() *Config {
	return p.config
}

// Engine returns the engine the elements run on.
func (p *Platform) Engine() sim.Engine {
	return p.engine
}

// PEs returns all elements, row by row.
func (p *Platform) PEs() []*PE {
	return p.pes
}

// PE returns the element at (x, y), or nil outside the grid.
func (p *Platform) PE(x, y int) *PE {
	dimX, dimY := p.config.HW.MPSoCDimension[0], p.config.HW.MPSoCDimension[1]
	if x < 0 || y < 0 || x >= dimX || y >= dimY {
		return nil
	}
	return p.pes[y*dimX+x]
}

// LoadProgram loads prog into every element.
func (p *Platform) LoadProgram(prog *loader.Program) error {
	for _, pe := range p.pes {
		if err := prog.LoadInto(pe.Emulator); err != nil {
			return fmt.Errorf("failed to load program into PE(%d,%d): %w", pe.X, pe.Y, err)
		}
	}
	return nil
}

// Run clocks every element until all of them are idle or reach the cycle
// limit.
func (p *Platform) Run() error {
	for _, pe := range p.pes {
		pe.Core.TickLater()
	}

	if err := p.engine.Run(); err != nil {
		return fmt.Errorf("failed to run platform: %w", err)
	}

	for _, pe := range p.pes {
		if pe.Cache != nil {
			pe.Cache.Flush()
		}
	}

	p.log.V(1).Info("platform idle", "time", p.engine.CurrentTime())
	return nil
}

// Stats returns the core statistics of every element, row by row.
func (p *Platform) Stats() []core.Stats {
	stats := make([]core.Stats, len(p.pes))
	for i, pe := range p.pes {
		stats[i] = pe.Core.Stats()
	}
	return stats
}
