package emu

import "fmt"

// Privilege is a RISC-V privilege level.
type Privilege uint8

// Privilege levels. The encoding matches mstatus.MPP.
const (
	PrivUser       Privilege = 0
	PrivSupervisor Privilege = 1
	PrivMachine    Privilege = 3
)

func (p Privilege) String() string {
	switch p {
	case PrivUser:
		return "U"
	case PrivSupervisor:
		return "S"
	case PrivMachine:
		return "M"
	default:
		return fmt.Sprintf("priv(%d)", uint8(p))
	}
}

// legal maps the reserved encoding 2 to user mode.
func (p Privilege) legal() Privilege {
	if p == PrivSupervisor || p == PrivMachine {
		return p
	}
	return PrivUser
}

// CSR is a control and status register with a fixed WARL mask.
// Write stores value & Mask(); Read returns stored & Mask().
type CSR interface {
	Read() uint32
	Write(value uint32)
	Mask() uint32
}

// CSR masks.
const (
	MstatusMask   uint32 = 0x807FF9BB
	SstatusMask   uint32 = 0x800DE122
	MerMask       uint32 = 0xBFFF
	MirMask       uint32 = 0xAAA
	MtvecMask     uint32 = 0xFFFFFFFD
	EPCMask       uint32 = 0xFFFFFFFC
	McauseMask    uint32 = 0x8000000F
	SatpMask      uint32 = 0xFFFFFFFF
	CounterenMask uint32 = 0x7

	// MisaValue advertises RV32 (MXL=1) with I, M, S and U.
	MisaValue uint32 = 1<<30 | 1<<('I'-'A') | 1<<('M'-'A') | 1<<('S'-'A') | 1<<('U'-'A')
)

// Plain is an unmasked read/write CSR (mtval, mscratch, ...).
type Plain struct{ Register }

func (c *Plain) Read() uint32       { return uint32(c.Register) }
func (c *Plain) Write(value uint32) { c.Register = Register(value) }
func (c *Plain) Mask() uint32       { return 0xFFFFFFFF }

// Mstatus is the machine status register. Sstatus is a restricted view.
type Mstatus struct{ Register }

func (c *Mstatus) Read() uint32       { return uint32(c.Register) & MstatusMask }
func (c *Mstatus) Write(value uint32) { c.Register = Register(value & MstatusMask) }
func (c *Mstatus) Mask() uint32       { return MstatusMask }

func (c *Mstatus) SIE() bool            { return c.Bit(1) }
func (c *Mstatus) SetSIE(v bool)        { c.SetBit(1, v) }
func (c *Mstatus) MIE() bool            { return c.Bit(3) }
func (c *Mstatus) SetMIE(v bool)        { c.SetBit(3, v) }
func (c *Mstatus) SPIE() bool           { return c.Bit(5) }
func (c *Mstatus) SetSPIE(v bool)       { c.SetBit(5, v) }
func (c *Mstatus) MPIE() bool           { return c.Bit(7) }
func (c *Mstatus) SetMPIE(v bool)       { c.SetBit(7, v) }
func (c *Mstatus) MPRV() bool           { return c.Bit(17) }
func (c *Mstatus) SetMPRV(v bool)       { c.SetBit(17, v) }
func (c *Mstatus) SUM() bool            { return c.Bit(18) }
func (c *Mstatus) MXR() bool            { return c.Bit(19) }
func (c *Mstatus) TVM() bool            { return c.Bit(20) }
func (c *Mstatus) TW() bool             { return c.Bit(21) }
func (c *Mstatus) TSR() bool            { return c.Bit(22) }
func (c *Mstatus) MPP() Privilege       { return Privilege(c.Bits(12, 11)) }
func (c *Mstatus) SetMPP(p Privilege)   { c.SetBits(12, 11, uint32(p)) }
func (c *Mstatus) SetSPP(p Privilege)   { c.SetBit(8, p != PrivUser) }
func (c *Mstatus) SPP() Privilege {
	if c.Bit(8) {
		return PrivSupervisor
	}
	return PrivUser
}

// Misa reports the ISA capabilities. Writes are ignored.
type Misa struct{}

func (Misa) Read() uint32  { return MisaValue }
func (Misa) Write(uint32)  {}
func (Misa) Mask() uint32  { return 0 }

// Mer is an exception-indexed register (medeleg).
type Mer struct{ Register }

func (c *Mer) Read() uint32       { return uint32(c.Register) & MerMask }
func (c *Mer) Write(value uint32) { c.Register = Register(value & MerMask) }
func (c *Mer) Mask() uint32       { return MerMask }

// Delegated reports whether the exception code is delegated.
func (c *Mer) Delegated(code ExceptionCode) bool {
	return c.Read()>>uint(code)&1 == 1
}

// Mir is an interrupt-indexed register (mideleg, mie, mip).
type Mir struct{ Register }

func (c *Mir) Read() uint32       { return uint32(c.Register) & MirMask }
func (c *Mir) Write(value uint32) { c.Register = Register(value & MirMask) }
func (c *Mir) Mask() uint32       { return MirMask }

func (c *Mir) SSI() bool { return c.Bit(uint(InterruptSSI)) }
func (c *Mir) MSI() bool { return c.Bit(uint(InterruptMSI)) }
func (c *Mir) STI() bool { return c.Bit(uint(InterruptSTI)) }
func (c *Mir) MTI() bool { return c.Bit(uint(InterruptMTI)) }
func (c *Mir) SEI() bool { return c.Bit(uint(InterruptSEI)) }
func (c *Mir) MEI() bool { return c.Bit(uint(InterruptMEI)) }

// Set sets or clears the bit of an interrupt code.
func (c *Mir) Set(code InterruptCode, v bool) { c.SetBit(uint(code), v) }

// TvecMode is the trap vector mode.
type TvecMode uint32

// Trap vector modes.
const (
	TvecDirect   TvecMode = 0
	TvecVectored TvecMode = 1
)

// Mtvec is a trap vector base register (mtvec, stvec).
type Mtvec struct{ Register }

func (c *Mtvec) Read() uint32       { return uint32(c.Register) & MtvecMask }
func (c *Mtvec) Write(value uint32) { c.Register = Register(value & MtvecMask) }
func (c *Mtvec) Mask() uint32       { return MtvecMask }
func (c *Mtvec) BASE() uint32       { return c.Read() &^ 0x3 }
func (c *Mtvec) MODE() TvecMode     { return TvecMode(c.Read() & 0x3) }

// Target returns the handler address for a trap. Synchronous exceptions
// always use the base address.
func (c *Mtvec) Target(interrupt bool, code uint32) uint32 {
	if interrupt && c.MODE() == TvecVectored {
		return c.BASE() + 4*code
	}
	return c.BASE()
}

// EPC is an exception program counter (mepc, sepc). IALIGN is 32.
type EPC struct{ Register }

func (c *EPC) Read() uint32       { return uint32(c.Register) & EPCMask }
func (c *EPC) Write(value uint32) { c.Register = Register(value & EPCMask) }
func (c *EPC) Mask() uint32       { return EPCMask }

// Mcause is a trap cause register (mcause, scause).
type Mcause struct{ Register }

func (c *Mcause) Read() uint32          { return uint32(c.Register) & McauseMask }
func (c *Mcause) Write(value uint32)    { c.Register = Register(value & McauseMask) }
func (c *Mcause) Mask() uint32          { return McauseMask }
func (c *Mcause) Interrupt() bool       { return c.Bit(31) }
func (c *Mcause) ExceptionCode() uint32 { return c.Read() & 0x7FFFFFFF }

// Set records a trap cause.
func (c *Mcause) Set(interrupt bool, code uint32) {
	v := code
	if interrupt {
		v |= 1 << 31
	}
	c.Write(v)
}

// SatpMode is the address translation mode.
type SatpMode uint32

// Translation modes.
const (
	SatpBare SatpMode = 0
	SatpSv32 SatpMode = 1
)

// Satp is the supervisor address translation and protection register.
type Satp struct{ Register }

func (c *Satp) Read() uint32       { return uint32(c.Register) & SatpMask }
func (c *Satp) Write(value uint32) { c.Register = Register(value & SatpMask) }
func (c *Satp) Mask() uint32       { return SatpMask }
func (c *Satp) MODE() SatpMode     { return SatpMode(c.Bits(31, 31)) }
func (c *Satp) ASID() uint32       { return c.Bits(30, 22) }
func (c *Satp) PPN() uint32        { return c.Bits(21, 0) }

// Counteren gates lower-privilege access to cycle, time and instret.
type Counteren struct{ Register }

func (c *Counteren) Read() uint32       { return uint32(c.Register) & CounterenMask }
func (c *Counteren) Write(value uint32) { c.Register = Register(value & CounterenMask) }
func (c *Counteren) Mask() uint32       { return CounterenMask }

// CSR numbers.
const (
	CSRSstatus    uint16 = 0x100
	CSRSie        uint16 = 0x104
	CSRStvec      uint16 = 0x105
	CSRScounteren uint16 = 0x106
	CSRSscratch   uint16 = 0x140
	CSRSepc       uint16 = 0x141
	CSRScause     uint16 = 0x142
	CSRStval      uint16 = 0x143
	CSRSip        uint16 = 0x144
	CSRSatp       uint16 = 0x180

	CSRMstatus    uint16 = 0x300
	CSRMisa       uint16 = 0x301
	CSRMedeleg    uint16 = 0x302
	CSRMideleg    uint16 = 0x303
	CSRMie        uint16 = 0x304
	CSRMtvec      uint16 = 0x305
	CSRMcounteren uint16 = 0x306
	CSRMscratch   uint16 = 0x340
	CSRMepc       uint16 = 0x341
	CSRMcause     uint16 = 0x342
	CSRMtval      uint16 = 0x343
	CSRMip        uint16 = 0x344

	CSRMcycle    uint16 = 0xB00
	CSRMinstret  uint16 = 0xB02
	CSRMcycleh   uint16 = 0xB80
	CSRMinstreth uint16 = 0xB82

	CSRCycle    uint16 = 0xC00
	CSRInstret  uint16 = 0xC02
	CSRCycleh   uint16 = 0xC80
	CSRInstreth uint16 = 0xC82

	CSRMvendorid uint16 = 0xF11
	CSRMarchid   uint16 = 0xF12
	CSRMimpid    uint16 = 0xF13
	CSRMhartid   uint16 = 0xF14
)

// mip bits software may write; MEI follows the external line and the
// machine timer/software bits belong to the platform.
const mipWritable = 1<<InterruptSSI | 1<<InterruptSTI | 1<<InterruptSEI

// CSRFile holds the machine- and supervisor-level CSRs of one hart.
type CSRFile struct {
	Mstatus    Mstatus
	Misa       Misa
	Medeleg    Mer
	Mideleg    Mir
	Mie        Mir
	Mip        Mir
	Mtvec      Mtvec
	Mcounteren Counteren
	Mscratch   Plain
	Mepc       EPC
	Mcause     Mcause
	Mtval      Plain

	Stvec      Mtvec
	Scounteren Counteren
	Sscratch   Plain
	Sepc       EPC
	Scause     Mcause
	Stval      Plain
	Satp       Satp

	HartID  uint32
	Cycle   uint64
	Instret uint64
}

// accessible checks the privilege and read-only encoding of a CSR number.
func (f *CSRFile) accessible(addr uint16, priv Privilege, write bool) bool {
	if Privilege(addr>>8&0x3) > priv {
		return false
	}
	if write && addr>>10&0x3 == 0x3 {
		return false
	}
	if addr == CSRSatp && priv == PrivSupervisor && f.Mstatus.TVM() {
		return false
	}
	return true
}

// counterVisible applies mcounteren/scounteren to user-level counters.
func (f *CSRFile) counterVisible(addr uint16, priv Privilege) bool {
	bit := uint(addr & 0x1F)
	if priv < PrivMachine && !f.Mcounteren.Bit(bit) {
		return false
	}
	if priv == PrivUser && !f.Scounteren.Bit(bit) {
		return false
	}
	return true
}

// Read reads a CSR by number at the given privilege. It returns false if
// the CSR does not exist or is not accessible.
func (f *CSRFile) Read(addr uint16, priv Privilege) (uint32, bool) {
	if !f.accessible(addr, priv, false) {
		return 0, false
	}

	switch addr {
	case CSRSstatus:
		return f.Mstatus.Read() & SstatusMask, true
	case CSRSie:
		return f.Mie.Read() & f.Mideleg.Read(), true
	case CSRSip:
		return f.Mip.Read() & f.Mideleg.Read(), true
	case CSRCycle, CSRInstret, CSRCycleh, CSRInstreth:
		if !f.counterVisible(addr, priv) {
			return 0, false
		}
		return f.counter(addr), true
	case CSRMcycle, CSRMinstret, CSRMcycleh, CSRMinstreth:
		return f.counter(addr), true
	case CSRMvendorid, CSRMarchid, CSRMimpid:
		return 0, true
	case CSRMhartid:
		return f.HartID, true
	}

	if c := f.lookup(addr); c != nil {
		return c.Read(), true
	}
	return 0, false
}

// Write writes a CSR by number at the given privilege. It returns false if
// the CSR does not exist, is read-only or is not accessible.
func (f *CSRFile) Write(addr uint16, value uint32, priv Privilege) bool {
	if !f.accessible(addr, priv, true) {
		return false
	}

	switch addr {
	case CSRSstatus:
		v := f.Mstatus.Read()&^SstatusMask | value&SstatusMask
		f.Mstatus.Write(v)
		return true
	case CSRSie:
		d := f.Mideleg.Read()
		f.Mie.Write(f.Mie.Read()&^d | value&d)
		return true
	case CSRSip:
		d := f.Mideleg.Read() & mipWritable
		f.Mip.Write(f.Mip.Read()&^d | value&d)
		return true
	case CSRMip:
		f.Mip.Write(f.Mip.Read()&^mipWritable | value&mipWritable)
		return true
	case CSRMcycle:
		f.Cycle = f.Cycle&^0xFFFFFFFF | uint64(value)
		return true
	case CSRMcycleh:
		f.Cycle = f.Cycle&0xFFFFFFFF | uint64(value)<<32
		return true
	case CSRMinstret:
		f.Instret = f.Instret&^0xFFFFFFFF | uint64(value)
		return true
	case CSRMinstreth:
		f.Instret = f.Instret&0xFFFFFFFF | uint64(value)<<32
		return true
	}

	if c := f.lookup(addr); c != nil {
		c.Write(value)
		return true
	}
	return false
}

func (f *CSRFile) counter(addr uint16) uint32 {
	switch addr & 0xFF {
	case 0x00:
		return uint32(f.Cycle)
	case 0x02:
		return uint32(f.Instret)
	case 0x80:
		return uint32(f.Cycle >> 32)
	default:
		return uint32(f.Instret >> 32)
	}
}

func (f *CSRFile) lookup(addr uint16) CSR {
	switch addr {
	case CSRStvec:
		return &f.Stvec
	case CSRScounteren:
		return &f.Scounteren
	case CSRSscratch:
		return &f.Sscratch
	case CSRSepc:
		return &f.Sepc
	case CSRScause:
		return &f.Scause
	case CSRStval:
		return &f.Stval
	case CSRSatp:
		return &f.Satp
	case CSRMstatus:
		return &f.Mstatus
	case CSRMisa:
		return f.Misa
	case CSRMedeleg:
		return &f.Medeleg
	case CSRMideleg:
		return &f.Mideleg
	case CSRMie:
		return &f.Mie
	case CSRMtvec:
		return &f.Mtvec
	case CSRMcounteren:
		return &f.Mcounteren
	case CSRMscratch:
		return &f.Mscratch
	case CSRMepc:
		return &f.Mepc
	case CSRMcause:
		return &f.Mcause
	case CSRMtval:
		return &f.Mtval
	}
	return nil
}
