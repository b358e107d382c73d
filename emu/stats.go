package emu

import "github.com/sarchlab/rvpe/insts"

// Stats counts retired instructions per class, split between kernel code
// (privilege above user) and task code (user), plus delivered traps.
type Stats struct {
	Kernel     [insts.NumClasses]uint64
	Tasks      [insts.NumClasses]uint64
	Exceptions [16]uint64
	Interrupts [16]uint64
}

func (s *Stats) retire(class insts.Class, priv Privilege) {
	if priv == PrivUser {
		s.Tasks[class]++
	} else {
		s.Kernel[class]++
	}
}

// KernelInstructions returns the number of instructions retired above
// user mode.
func (s Stats) KernelInstructions() uint64 {
	return sum(s.Kernel[:])
}

// TaskInstructions returns the number of instructions retired in user mode.
func (s Stats) TaskInstructions() uint64 {
	return sum(s.Tasks[:])
}

// Retired returns the total number of retired instructions.
func (s Stats) Retired() uint64 {
	return s.KernelInstructions() + s.TaskInstructions()
}

// Class returns the retired count of one class in both modes.
func (s Stats) Class(c insts.Class) uint64 {
	return s.Kernel[c] + s.Tasks[c]
}

func sum(v []uint64) uint64 {
	var n uint64
	for _, x := range v {
		n += x
	}
	return n
}
