package emu

import "fmt"

// ExceptionCode identifies a synchronous exception.
type ExceptionCode uint32

// Synchronous exception codes.
const (
	ExcInstructionAddressMisaligned ExceptionCode = 0
	ExcInstructionAccessFault       ExceptionCode = 1
	ExcIllegalInstruction           ExceptionCode = 2
	ExcBreakpoint                   ExceptionCode = 3
	ExcLoadAddressMisaligned        ExceptionCode = 4
	ExcLoadAccessFault              ExceptionCode = 5
	ExcStoreAddressMisaligned       ExceptionCode = 6
	ExcStoreAccessFault             ExceptionCode = 7
	ExcEcallFromUMode               ExceptionCode = 8
	ExcEcallFromSMode               ExceptionCode = 9
	ExcEcallFromMMode               ExceptionCode = 11
	ExcInstructionPageFault         ExceptionCode = 12
	ExcLoadPageFault                ExceptionCode = 13
	ExcStorePageFault               ExceptionCode = 15
)

var exceptionNames = map[ExceptionCode]string{
	ExcInstructionAddressMisaligned: "instruction address misaligned",
	ExcInstructionAccessFault:       "instruction access fault",
	ExcIllegalInstruction:           "illegal instruction",
	ExcBreakpoint:                   "breakpoint",
	ExcLoadAddressMisaligned:        "load address misaligned",
	ExcLoadAccessFault:              "load access fault",
	ExcStoreAddressMisaligned:       "store address misaligned",
	ExcStoreAccessFault:             "store access fault",
	ExcEcallFromUMode:               "ecall from U-mode",
	ExcEcallFromSMode:               "ecall from S-mode",
	ExcEcallFromMMode:               "ecall from M-mode",
	ExcInstructionPageFault:         "instruction page fault",
	ExcLoadPageFault:                "load page fault",
	ExcStorePageFault:               "store page fault",
}

func (c ExceptionCode) String() string {
	if s, ok := exceptionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("exception(%d)", uint32(c))
}

// InterruptCode identifies an interrupt source.
type InterruptCode uint32

// Interrupt codes.
const (
	InterruptSSI InterruptCode = 1
	InterruptMSI InterruptCode = 3
	InterruptSTI InterruptCode = 5
	InterruptMTI InterruptCode = 7
	InterruptSEI InterruptCode = 9
	InterruptMEI InterruptCode = 11
)

func (c InterruptCode) String() string {
	switch c {
	case InterruptSSI:
		return "SSI"
	case InterruptMSI:
		return "MSI"
	case InterruptSTI:
		return "STI"
	case InterruptMTI:
		return "MTI"
	case InterruptSEI:
		return "SEI"
	case InterruptMEI:
		return "MEI"
	default:
		return fmt.Sprintf("interrupt(%d)", uint32(c))
	}
}

// interruptPriority lists interrupt sources from highest to lowest.
var interruptPriority = [...]InterruptCode{
	InterruptMEI, InterruptMSI, InterruptMTI,
	InterruptSEI, InterruptSSI, InterruptSTI,
}

// Fault is a synchronous exception raised by translation or execution,
// before it has been delivered.
type Fault struct {
	Code ExceptionCode
	Tval uint32
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%v (tval=%#x)", f.Code, f.Tval)
}

// Trap describes a delivered trap.
type Trap struct {
	Interrupt bool
	Code      uint32
	Tval      uint32
	EPC       uint32
	From      Privilege
	To        Privilege
	Target    uint32
}

func (t *Trap) String() string {
	if t.Interrupt {
		return fmt.Sprintf("%v %v->%v epc=%#x", InterruptCode(t.Code), t.From, t.To, t.EPC)
	}
	return fmt.Sprintf("%v %v->%v epc=%#x tval=%#x",
		ExceptionCode(t.Code), t.From, t.To, t.EPC, t.Tval)
}

// selectInterrupt returns the highest-priority interrupt in bits.
func selectInterrupt(bits uint32) (InterruptCode, bool) {
	for _, code := range interruptPriority {
		if bits>>uint(code)&1 == 1 {
			return code, true
		}
	}
	return 0, false
}

// pendingInterrupt arbitrates mip & mie against delegation and the global
// enables of the current privilege.
func (e *Emulator) pendingInterrupt() (InterruptCode, Privilege, bool) {
	csr := e.csr
	pending := csr.Mip.Read() & csr.Mie.Read()
	deleg := csr.Mideleg.Read()

	if m := pending &^ deleg; m != 0 && (e.priv != PrivMachine || csr.Mstatus.MIE()) {
		code, _ := selectInterrupt(m)
		return code, PrivMachine, true
	}

	sEnabled := e.priv == PrivUser || (e.priv == PrivSupervisor && csr.Mstatus.SIE())
	if s := pending & deleg; s != 0 && sEnabled {
		code, _ := selectInterrupt(s)
		return code, PrivSupervisor, true
	}

	return 0, 0, false
}

// handleException delivers a synchronous exception for the instruction at
// the current PC.
func (e *Emulator) handleException(f *Fault) *Trap {
	target := PrivMachine
	if e.priv != PrivMachine && e.csr.Medeleg.Delegated(f.Code) {
		target = PrivSupervisor
	}
	e.stats.Exceptions[f.Code&0xF]++
	return e.enterTrap(false, uint32(f.Code), f.Tval, target)
}

// enterTrap pushes the privilege stack and redirects the PC.
func (e *Emulator) enterTrap(interrupt bool, code, tval uint32, to Privilege) *Trap {
	csr := e.csr
	t := &Trap{
		Interrupt: interrupt,
		Code:      code,
		Tval:      tval,
		EPC:       e.regFile.PC,
		From:      e.priv,
		To:        to,
	}

	if to == PrivMachine {
		csr.Mcause.Set(interrupt, code)
		csr.Mtval.Write(tval)
		csr.Mepc.Write(t.EPC)
		csr.Mstatus.SetMPP(e.priv)
		csr.Mstatus.SetMPIE(csr.Mstatus.MIE())
		csr.Mstatus.SetMIE(false)
		t.Target = csr.Mtvec.Target(interrupt, code)
	} else {
		csr.Scause.Set(interrupt, code)
		csr.Stval.Write(tval)
		csr.Sepc.Write(t.EPC)
		csr.Mstatus.SetSPP(e.priv)
		csr.Mstatus.SetSPIE(csr.Mstatus.SIE())
		csr.Mstatus.SetSIE(false)
		t.Target = csr.Stvec.Target(interrupt, code)
	}

	e.priv = to
	e.regFile.PC = t.Target

	e.log.V(1).Info("trap", "cause", t.String(), "epc", t.EPC, "priv", to.String())
	return t
}

// returnFromTrap pops the privilege stack for mret (from == PrivMachine)
// or sret (from == PrivSupervisor).
func (e *Emulator) returnFromTrap(from Privilege) {
	st := &e.csr.Mstatus
	var prev Privilege

	if from == PrivMachine {
		prev = st.MPP().legal()
		st.SetMIE(st.MPIE())
		st.SetMPIE(true)
		st.SetMPP(PrivUser)
		e.regFile.PC = e.csr.Mepc.Read()
	} else {
		prev = st.SPP()
		st.SetSIE(st.SPIE())
		st.SetSPIE(true)
		st.SetSPP(PrivUser)
		e.regFile.PC = e.csr.Sepc.Read()
	}

	if prev != PrivMachine {
		st.SetMPRV(false)
	}

	e.log.V(1).Info("trap return", "epc", e.regFile.PC, "priv", prev.String())
	e.priv = prev
}
