package emu

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/rvpe/insts"
)

// DefaultResetVector is the PC loaded on reset unless overridden.
const DefaultResetVector uint32 = 0

// PhaseResult describes one phase of an instruction iteration.
type PhaseResult struct {
	// Trap is set if the phase delivered a trap.
	Trap *Trap

	// Waiting is true while the hart is stopped in WFI.
	Waiting bool

	// Jumped is true if execution transferred control.
	Jumped bool

	// SelfLoop is true if a jump or branch targeted its own address.
	SelfLoop bool

	// Retired is true if an instruction completed.
	Retired bool

	// MemReads and MemWrites count bus accesses issued by the phase,
	// including page-table reads and accessed/dirty write-backs.
	MemReads  int
	MemWrites int
}

// StepResult represents the result of one full core-loop iteration.
type StepResult struct {
	PhaseResult

	// Inst is the decoded instruction, nil if none was decoded.
	Inst *insts.Instruction

	// Err is set if a host-side limit stopped execution.
	Err error
}

// PageContext identifies the active address space.
type PageContext struct {
	Mode    SatpMode
	ASID    uint32
	RootPPN uint32
}

// Emulator executes RV32IM instructions functionally.
type Emulator struct {
	regFile *RegFile
	csr     *CSRFile
	priv    Privilege

	memory  *Memory
	port    *busPort
	mmu     *MMU
	decoder *insts.Decoder

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	resetVector uint32
	extIRQ      bool
	waiting     bool

	stats            Stats
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit

	log logr.Logger
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMemory uses m as the emulator's memory and bus.
func WithMemory(m *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = m
		e.port.bus = m
	}
}

// WithBus routes all accesses through bus, for example a cache in front
// of the memory. Without WithMemory, an emulator built on a bus that is
// not a *Memory has no direct memory and loads programs through the bus.
func WithBus(bus Bus) EmulatorOption {
	return func(e *Emulator) {
		e.port.bus = bus
		if m, ok := bus.(*Memory); ok {
			e.memory = m
		}
	}
}

// WithResetVector sets the PC loaded on reset.
func WithResetVector(pc uint32) EmulatorOption {
	return func(e *Emulator) {
		e.resetVector = pc
	}
}

// WithHartID sets the value of mhartid.
func WithHartID(id uint32) EmulatorOption {
	return func(e *Emulator) {
		e.csr.HartID = id
	}
}

// WithLogger sets the logger for trap and reset events.
func WithLogger(log logr.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.log = log
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new RV32IM emulator in its reset state.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile:     &RegFile{},
		csr:         &CSRFile{},
		port:        &busPort{},
		decoder:     insts.NewDecoder(),
		resetVector: DefaultResetVector,
		log:         logr.Discard(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.port.bus == nil {
		e.memory = NewMemory()
		e.port.bus = e.memory
	}

	e.mmu = newMMU(e.csr, e.port)
	e.alu = NewALU(e.regFile)
	e.lsu = newLoadStoreUnit(e.regFile, e.port, e.mmu)
	e.branchUnit = NewBranchUnit(e.regFile)

	e.Reset()

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// CSR returns the emulator's CSR bank.
func (e *Emulator) CSR() *CSRFile {
	return e.csr
}

// Memory returns the emulator's backing memory. It is nil when the
// emulator was built only on a bus that is not a *Memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// MMU returns the emulator's address translator.
func (e *Emulator) MMU() *MMU {
	return e.mmu
}

// Privilege returns the current privilege level.
func (e *Emulator) Privilege() Privilege {
	return e.priv
}

// SetPrivilege forces the privilege level. It is meant for test and boot
// harnesses; guest code changes privilege only through traps.
func (e *Emulator) SetPrivilege(p Privilege) {
	e.priv = p.legal()
}

// PageContext returns the active translation context.
func (e *Emulator) PageContext() PageContext {
	return PageContext{
		Mode:    e.csr.Satp.MODE(),
		ASID:    e.csr.Satp.ASID(),
		RootPPN: e.csr.Satp.PPN(),
	}
}

// MemAddress returns the last address driven on the bus.
func (e *Emulator) MemAddress() uint32 {
	return e.port.addr
}

// Waiting reports whether the hart is stopped in WFI.
func (e *Emulator) Waiting() bool {
	return e.waiting
}

// Stats returns the retired-instruction and trap counters.
func (e *Emulator) Stats() Stats {
	return e.stats
}

// InstructionCount returns the number of instructions retired.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Cycles returns the value of mcycle.
func (e *Emulator) Cycles() uint64 {
	return e.csr.Cycle
}

// AdvanceCycles adds n to mcycle.
func (e *Emulator) AdvanceCycles(n uint64) {
	e.csr.Cycle += n
}

// SetExternalInterrupt drives the external interrupt line. The level is
// latched into mip.MEI at every interrupt check.
func (e *Emulator) SetExternalInterrupt(level bool) {
	e.extIRQ = level
	e.csr.Mip.Set(InterruptMEI, level)
}

// SetInterruptPending raises or clears a platform interrupt source such
// as the machine timer.
func (e *Emulator) SetInterruptPending(code InterruptCode, pending bool) {
	if code == InterruptMEI {
		e.SetExternalInterrupt(pending)
		return
	}
	e.csr.Mip.Set(code, pending)
}

// LoadProgram copies program into memory at addr and makes addr both the
// reset vector and the current PC.
func (e *Emulator) LoadProgram(addr uint32, program []byte) {
	if e.memory != nil {
		e.memory.LoadProgram(addr, program)
	} else {
		for i, b := range program {
			a := addr + uint32(i)
			e.port.bus.Write32(a, uint32(b)<<(8*(a&3)), 1<<(a&3))
		}
	}
	e.SetResetVector(addr)
}

// SetResetVector makes pc both the reset vector and the current PC.
func (e *Emulator) SetResetVector(pc uint32) {
	e.resetVector = pc
	e.regFile.PC = pc
}

// Reset puts the hart in its architectural reset state: machine mode,
// interrupts and MPRV disabled, mcause cleared, PC at the reset vector.
// General registers and the remaining CSRs keep their contents.
func (e *Emulator) Reset() {
	e.priv = PrivMachine
	e.csr.Mstatus.SetMIE(false)
	e.csr.Mstatus.SetMPRV(false)
	e.csr.Mcause.Write(0)
	e.regFile.X[0] = 0
	e.regFile.PC = e.resetVector
	e.waiting = false
	e.port.begin()

	e.log.V(1).Info("reset", "pc", e.resetVector)
}

// CheckInterrupts samples the interrupt lines and takes the highest
// priority enabled interrupt, if any. A pending interrupt wakes a hart
// stopped in WFI even when it is not taken.
func (e *Emulator) CheckInterrupts() PhaseResult {
	e.regFile.X[0] = 0
	e.port.begin()
	e.csr.Mip.Set(InterruptMEI, e.extIRQ)

	if e.waiting && e.csr.Mip.Read()&e.csr.Mie.Read() != 0 {
		e.waiting = false
		e.log.V(2).Info("wake", "pc", e.regFile.PC)
	}

	if code, to, ok := e.pendingInterrupt(); ok {
		e.waiting = false
		e.stats.Interrupts[code&0xF]++
		t := e.enterTrap(true, uint32(code), 0, to)
		return PhaseResult{Trap: t}
	}

	return PhaseResult{Waiting: e.waiting}
}

// Fetch reads the instruction word at the PC through the MMU.
func (e *Emulator) Fetch() (uint32, PhaseResult) {
	e.port.begin()
	pc := e.regFile.PC

	if pc&0x3 != 0 {
		t := e.handleException(&Fault{Code: ExcInstructionAddressMisaligned, Tval: pc})
		return 0, e.phaseResult(PhaseResult{Trap: t})
	}

	pa, f := e.mmu.Translate(pc, AccessFetch, e.priv)
	if f == nil && (pa > 0xFFFFFFFF || !e.port.mapped(uint32(pa))) {
		f = &Fault{Code: ExcInstructionAccessFault, Tval: pc}
	}
	if f != nil {
		t := e.handleException(f)
		return 0, e.phaseResult(PhaseResult{Trap: t})
	}

	word := e.port.read(uint32(pa))
	return word, e.phaseResult(PhaseResult{})
}

// Decode decodes word. An unknown encoding raises an illegal instruction
// exception without advancing the PC.
func (e *Emulator) Decode(word uint32) (*insts.Instruction, PhaseResult) {
	e.port.begin()
	inst := e.decoder.Decode(word)

	if inst.Op == insts.OpUnknown || executors[inst.Op] == nil {
		t := e.handleException(&Fault{Code: ExcIllegalInstruction, Tval: word})
		return inst, PhaseResult{Trap: t}
	}

	return inst, PhaseResult{}
}

// Execute runs a decoded instruction and advances the PC unless it
// transferred control.
func (e *Emulator) Execute(inst *insts.Instruction) PhaseResult {
	e.port.begin()
	pc := e.regFile.PC
	priv := e.priv

	out := executors[inst.Op](e, inst)
	if out.fault != nil {
		t := e.handleException(out.fault)
		return e.phaseResult(PhaseResult{Trap: t})
	}

	if !out.jumped {
		e.regFile.PC = pc + 4
	}
	if out.wait {
		e.waiting = true
		e.log.V(2).Info("wfi", "pc", pc)
	}

	e.stats.retire(inst.Class, priv)
	e.instructionCount++
	e.csr.Instret++

	selfLoop := out.jumped && e.regFile.PC == pc &&
		(inst.Class == insts.ClassJump || inst.Class == insts.ClassBranch)

	return e.phaseResult(PhaseResult{
		Jumped:   out.jumped,
		SelfLoop: selfLoop,
		Waiting:  e.waiting,
		Retired:  true,
	})
}

// Step executes one core-loop iteration: interrupt check, fetch, decode
// and execute. An iteration that takes an interrupt or faults before
// execution ends early with the PC at the trap handler.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{
			Err: fmt.Errorf("max instructions reached"),
		}
	}

	e.AdvanceCycles(1)

	res := StepResult{}
	res.PhaseResult = e.CheckInterrupts()
	if res.Trap != nil || res.Waiting {
		return res
	}

	word, fetch := e.Fetch()
	res.accumulate(fetch)
	if fetch.Trap != nil {
		return res
	}

	inst, dec := e.Decode(word)
	res.Inst = inst
	res.accumulate(dec)
	if dec.Trap != nil {
		return res
	}

	res.accumulate(e.Execute(inst))
	return res
}

// Run steps until the hart idles in WFI, jumps to itself, or a host limit
// is reached. It returns the number of instructions retired.
func (e *Emulator) Run() (uint64, error) {
	start := e.instructionCount
	for {
		res := e.Step()
		if res.Err != nil {
			return e.instructionCount - start, res.Err
		}
		if res.Waiting || res.SelfLoop {
			return e.instructionCount - start, nil
		}
	}
}

func (e *Emulator) phaseResult(r PhaseResult) PhaseResult {
	r.MemReads = e.port.reads
	r.MemWrites = e.port.writes
	return r
}

func (r *StepResult) accumulate(p PhaseResult) {
	r.MemReads += p.MemReads
	r.MemWrites += p.MemWrites
	if p.Trap != nil {
		r.Trap = p.Trap
	}
	r.Jumped = p.Jumped
	r.SelfLoop = p.SelfLoop
	r.Waiting = p.Waiting
	r.Retired = p.Retired
}

// dataPrivilege is the privilege used to translate loads and stores.
func (e *Emulator) dataPrivilege() Privilege {
	if e.priv == PrivMachine && e.csr.Mstatus.MPRV() {
		return e.csr.Mstatus.MPP().legal()
	}
	return e.priv
}
