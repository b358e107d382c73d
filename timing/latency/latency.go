// Package latency provides the tick counts of the clocked core model.
//
// Every phase of the core loop consumes a fixed, named number of cycles:
// reset settle, bus reads and writes, decode, and an execute latency per
// instruction class. Values come from a TimingConfig.
package latency

import (
	"github.com/sarchlab/rvpe/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execute latency in cycles for the given
// instruction, excluding bus accesses.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Class {
	case insts.ClassArith, insts.ClassLogical, insts.ClassShift,
		insts.ClassMove, insts.ClassNop:
		return t.config.LogicalLatency

	case insts.ClassBranch, insts.ClassJump:
		return t.config.BranchLatency

	case insts.ClassLoad, insts.ClassStore:
		return t.config.LoadStoreLatency

	case insts.ClassMultDiv:
		if t.IsDivideOp(inst) {
			return t.config.DivideLatency
		}
		return t.config.MultiplyLatency

	case insts.ClassSystem:
		return t.config.SystemLatency

	default:
		return 1
	}
}

// MemoryLatency returns the bus wait for the given number of reads and
// writes.
func (t *Table) MemoryLatency(reads, writes int) uint64 {
	return uint64(reads)*t.config.MemoryReadLatency +
		uint64(writes)*t.config.MemoryWriteLatency
}

// ResetLatency returns the reset settle delay.
func (t *Table) ResetLatency() uint64 {
	return t.config.ResetLatency
}

// DecodeLatency returns the decode latency.
func (t *Table) DecodeLatency() uint64 {
	return t.config.DecodeLatency
}

// TrapLatency returns the trap entry latency.
func (t *Table) TrapLatency() uint64 {
	return t.config.TrapLatency
}

// IsDivideOp returns true if the instruction is a divide or remainder.
func (t *Table) IsDivideOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Op {
	case insts.OpDIV, insts.OpDIVU, insts.OpREM, insts.OpREMU:
		return true
	default:
		return false
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
