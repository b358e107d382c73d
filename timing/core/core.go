// Package core provides the cycle-timed model of a processing element.
// It drives the functional emulator phase by phase on an Akita ticking
// component, charging each phase the cycles given by a latency table.
package core

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rvpe/emu"
	"github.com/sarchlab/rvpe/insts"
	"github.com/sarchlab/rvpe/timing/latency"
)

// Phase is a state of the core loop.
type Phase int

// Core loop phases.
const (
	PhaseReset Phase = iota
	PhaseInterruptCheck
	PhaseFetch
	PhaseDecode
	PhaseExecute
)

func (p Phase) String() string {
	switch p {
	case PhaseReset:
		return "RESET"
	case PhaseInterruptCheck:
		return "INTERRUPT_CHECK"
	case PhaseFetch:
		return "FETCH"
	case PhaseDecode:
		return "DECODE"
	case PhaseExecute:
		return "EXECUTE"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MemoryLatencySource reports the cycles spent on bus accesses since the
// previous call. The cache model implements it.
type MemoryLatencySource interface {
	DrainLatency() uint64
}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Traps is the number of traps taken.
	Traps uint64
	// StallCycles counts cycles held by the memory pause line.
	StallCycles uint64
	// IdleCycles counts cycles spent waiting for an interrupt.
	IdleCycles uint64
	// ResetCycles counts cycles spent in or held at reset.
	ResetCycles uint64
}

// CPI returns cycles per retired instruction, or 0 before the first
// instruction retires.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core is a clocked processing element.
type Core struct {
	*sim.TickingComponent

	engine     sim.Engine
	emu        *emu.Emulator
	latency    *latency.Table
	memLatency MemoryLatencySource

	// phase is the phase whose cycles are being spent; next starts at the
	// following boundary.
	phase     Phase
	next      Phase
	remaining uint64

	word uint32
	inst *insts.Instruction

	resetLine bool
	memPause  bool
	selfLoop  bool
	idle      bool

	maxCycles uint64
	stats     Stats

	log logr.Logger
}

// CoreOption is a functional option for configuring the Core.
type CoreOption func(*Core)

// WithLatencyTable sets the table that prices each phase.
func WithLatencyTable(t *latency.Table) CoreOption {
	return func(c *Core) {
		c.latency = t
	}
}

// WithMemoryLatency replaces the fixed per-access memory latencies with
// the cycles reported by src.
func WithMemoryLatency(src MemoryLatencySource) CoreOption {
	return func(c *Core) {
		c.memLatency = src
	}
}

// WithMaxCycles stops the core after the given number of cycles. A value
// of 0 means no limit.
func WithMaxCycles(n uint64) CoreOption {
	return func(c *Core) {
		c.maxCycles = n
	}
}

// WithLogger sets the logger for phase transitions.
func WithLogger(log logr.Logger) CoreOption {
	return func(c *Core) {
		c.log = log
	}
}

// NewCore creates a core that clocks e at freq. The core starts with a
// power-on reset sequence.
func NewCore(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	e *emu.Emulator,
	opts ...CoreOption,
) *Core {
	c := &Core{
		engine:  engine,
		emu:     e,
		latency: latency.NewTable(),
		phase:   PhaseReset,
		next:    PhaseReset,
		log:     logr.Discard(),
	}
	c.TickingComponent = sim.NewTickingComponent(name, engine, freq, c)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Emulator returns the functional state driven by the core.
func (c *Core) Emulator() *emu.Emulator {
	return c.emu
}

// Phase returns the phase currently in progress.
func (c *Core) Phase() Phase {
	return c.phase
}

// Idle reports whether the core is waiting for an interrupt.
func (c *Core) Idle() bool {
	return c.idle
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// SetReset drives the reset line. While asserted the core is held in
// reset; the reset sequence runs once the line is released.
func (c *Core) SetReset(level bool) {
	c.resetLine = level
	c.TickLater()
}

// SetInterrupt drives the external interrupt line.
func (c *Core) SetInterrupt(level bool) {
	c.emu.SetExternalInterrupt(level)
	c.TickLater()
}

// SetMemPause drives the memory pause line. While asserted the core does
// not start a new phase.
func (c *Core) SetMemPause(level bool) {
	c.memPause = level
	if !level {
		c.TickLater()
	}
}

// Tick advances the core by one clock cycle. It returns false when the
// core cannot progress until one of its lines changes.
func (c *Core) Tick() bool {
	if c.maxCycles > 0 && c.stats.Cycles >= c.maxCycles {
		return false
	}

	c.stats.Cycles++
	c.emu.AdvanceCycles(1)

	if c.resetLine {
		c.holdReset()
		return false
	}

	if c.remaining > 0 {
		c.remaining--
		if c.phase == PhaseReset {
			c.stats.ResetCycles++
		}
		return true
	}

	if c.memPause {
		c.stats.StallCycles++
		return false
	}

	return c.startPhase()
}

// RunCycles ticks the core n times without an engine. It returns false if
// the last tick made no progress.
func (c *Core) RunCycles(n uint64) bool {
	progress := true
	for i := uint64(0); i < n; i++ {
		progress = c.Tick()
	}
	return progress
}

// Run schedules the core and runs its engine until no events remain.
func (c *Core) Run() error {
	c.TickLater()
	if err := c.engine.Run(); err != nil {
		return fmt.Errorf("failed to run %s: %w", c.Name(), err)
	}
	return nil
}

func (c *Core) holdReset() {
	if c.phase != PhaseReset || c.next != PhaseReset {
		c.log.V(1).Info("reset asserted", "phase", c.phase.String())
	}
	c.phase = PhaseReset
	c.next = PhaseReset
	c.remaining = 0
	c.inst = nil
	c.selfLoop = false
	c.idle = false
	c.stats.ResetCycles++
}

func (c *Core) startPhase() bool {
	c.phase = c.next

	var cost uint64
	switch c.phase {
	case PhaseReset:
		c.emu.Reset()
		c.stats.ResetCycles++
		cost = c.latency.ResetLatency()
		c.next = PhaseInterruptCheck

	case PhaseInterruptCheck:
		r := c.emu.CheckInterrupts()
		if r.Trap == nil && (r.Waiting || c.selfLoop) {
			return c.enterIdle()
		}
		c.leaveIdle()
		cost = 1
		c.next = PhaseFetch
		if r.Trap != nil {
			c.selfLoop = false
			cost += c.trapTicks()
			c.next = PhaseInterruptCheck
		}

	case PhaseFetch:
		word, r := c.emu.Fetch()
		c.word = word
		cost = c.memoryTicks(r)
		c.next = PhaseDecode
		if r.Trap != nil {
			cost += c.trapTicks()
			c.next = PhaseInterruptCheck
		}

	case PhaseDecode:
		inst, r := c.emu.Decode(c.word)
		c.inst = inst
		cost = c.latency.DecodeLatency()
		c.next = PhaseExecute
		if r.Trap != nil {
			cost += c.trapTicks()
			c.next = PhaseInterruptCheck
		}

	case PhaseExecute:
		r := c.emu.Execute(c.inst)
		cost = c.latency.GetLatency(c.inst) + c.memoryTicks(r)
		if r.Trap != nil {
			cost += c.trapTicks()
		}
		if r.Retired {
			c.stats.Instructions++
		}
		c.selfLoop = r.SelfLoop
		c.next = PhaseInterruptCheck
	}

	if cost == 0 {
		cost = 1
	}
	c.remaining = cost - 1

	return true
}

func (c *Core) enterIdle() bool {
	if !c.idle {
		c.log.V(2).Info("idle", "pc", c.emu.RegFile().PC, "self_loop", c.selfLoop)
	}
	c.idle = true
	c.stats.IdleCycles++
	return false
}

func (c *Core) leaveIdle() {
	if c.idle {
		c.log.V(2).Info("wake", "pc", c.emu.RegFile().PC)
	}
	c.idle = false
}

func (c *Core) trapTicks() uint64 {
	c.stats.Traps++
	return c.latency.TrapLatency()
}

func (c *Core) memoryTicks(r emu.PhaseResult) uint64 {
	if c.memLatency != nil {
		return c.memLatency.DrainLatency()
	}
	return c.latency.MemoryLatency(r.MemReads, r.MemWrites)
}
