package emu

// Sv32 parameters.
const (
	Levels   = 2
	PTESize  = 4
	PageSize = 4096
)

// AccessType is the kind of memory access being translated.
type AccessType uint8

// Access types.
const (
	AccessFetch AccessType = iota
	AccessLoad
	AccessStore
)

func (a AccessType) pageFault() ExceptionCode {
	switch a {
	case AccessLoad:
		return ExcLoadPageFault
	case AccessStore:
		return ExcStorePageFault
	default:
		return ExcInstructionPageFault
	}
}

func (a AccessType) accessFault() ExceptionCode {
	switch a {
	case AccessLoad:
		return ExcLoadAccessFault
	case AccessStore:
		return ExcStoreAccessFault
	default:
		return ExcInstructionAccessFault
	}
}

// VirtualAddress is an Sv32 virtual address.
type VirtualAddress struct{ Register }

// VPN returns the virtual page number field of level i.
func (a VirtualAddress) VPN(i int) uint32 {
	if i == 1 {
		return a.Bits(31, 22)
	}
	return a.Bits(21, 12)
}

// PageOffset returns bits [11:0].
func (a VirtualAddress) PageOffset() uint32 { return a.Bits(11, 0) }

// PhysicalAddress is a 34-bit Sv32 physical address.
type PhysicalAddress uint64

// PPN returns the physical page number field of level i.
func (a PhysicalAddress) PPN(i int) uint32 {
	if i == 1 {
		return uint32(a>>22) & 0xFFF
	}
	return uint32(a>>12) & 0x3FF
}

// PageOffset returns bits [11:0].
func (a PhysicalAddress) PageOffset() uint32 { return uint32(a) & 0xFFF }

// PageTableEntry is an Sv32 page-table entry.
type PageTableEntry struct{ Register }

// PTE bits.
const (
	PTEValid    uint = 0
	PTERead     uint = 1
	PTEWrite    uint = 2
	PTEExecute  uint = 3
	PTEUser     uint = 4
	PTEGlobal   uint = 5
	PTEAccessed uint = 6
	PTEDirty    uint = 7
)

func (p PageTableEntry) V() bool { return p.Bit(PTEValid) }
func (p PageTableEntry) R() bool { return p.Bit(PTERead) }
func (p PageTableEntry) W() bool { return p.Bit(PTEWrite) }
func (p PageTableEntry) X() bool { return p.Bit(PTEExecute) }
func (p PageTableEntry) U() bool { return p.Bit(PTEUser) }
func (p PageTableEntry) G() bool { return p.Bit(PTEGlobal) }
func (p PageTableEntry) A() bool { return p.Bit(PTEAccessed) }
func (p PageTableEntry) D() bool { return p.Bit(PTEDirty) }

// PPN returns the full 22-bit physical page number.
func (p PageTableEntry) PPN() uint32 { return p.Bits(31, 10) }

// PPNLevel returns the PPN field of level i.
func (p PageTableEntry) PPNLevel(i int) uint32 {
	if i == 1 {
		return p.Bits(31, 20)
	}
	return p.Bits(19, 10)
}

// MakePTE builds a page-table entry from a PPN and flag bits.
func MakePTE(ppn uint32, flags ...uint) uint32 {
	pte := Register(ppn << 10)
	for _, f := range flags {
		pte.SetBit(f, true)
	}
	return uint32(pte)
}

// MMU translates virtual addresses through the Sv32 page table. There is
// no TLB; every translated access walks the table.
type MMU struct {
	csr  *CSRFile
	port *busPort
}

// newMMU creates an MMU reading satp from csr and PTEs through port.
func newMMU(csr *CSRFile, port *busPort) *MMU {
	return &MMU{csr: csr, port: port}
}

// Translate maps va for the given access at effective privilege priv.
func (m *MMU) Translate(va uint32, access AccessType, priv Privilege) (PhysicalAddress, *Fault) {
	if priv == PrivMachine || m.csr.Satp.MODE() == SatpBare {
		return PhysicalAddress(va), nil
	}

	vaddr := VirtualAddress{Register(va)}
	base := uint64(m.csr.Satp.PPN()) * PageSize

	for i := Levels - 1; i >= 0; i-- {
		pteAddr := base + uint64(vaddr.VPN(i))*PTESize
		if pteAddr > 0xFFFFFFFF || !m.port.mapped(uint32(pteAddr)) {
			return 0, &Fault{Code: access.accessFault(), Tval: va}
		}

		pte := PageTableEntry{Register(m.port.read(uint32(pteAddr)))}

		if !pte.V() || (!pte.R() && pte.W()) {
			return 0, &Fault{Code: access.pageFault(), Tval: va}
		}

		if !pte.R() && !pte.X() {
			base = uint64(pte.PPN()) * PageSize
			continue
		}

		if !m.permitted(pte, access, priv) {
			return 0, &Fault{Code: access.pageFault(), Tval: va}
		}

		if i > 0 && pte.PPNLevel(0) != 0 {
			return 0, &Fault{Code: access.pageFault(), Tval: va}
		}

		updated := pte
		updated.SetBit(PTEAccessed, true)
		if access == AccessStore {
			updated.SetBit(PTEDirty, true)
		}
		if updated != pte {
			m.port.write(uint32(pteAddr), uint32(updated.Register), 0xF)
		}

		ppn0 := pte.PPNLevel(0)
		if i > 0 {
			ppn0 = vaddr.VPN(0)
		}
		pa := uint64(pte.PPNLevel(1))<<22 | uint64(ppn0)<<12 | uint64(vaddr.PageOffset())
		return PhysicalAddress(pa), nil
	}

	return 0, &Fault{Code: access.pageFault(), Tval: va}
}

func (m *MMU) permitted(pte PageTableEntry, access AccessType, priv Privilege) bool {
	st := &m.csr.Mstatus

	if priv == PrivUser && !pte.U() {
		return false
	}
	if priv == PrivSupervisor && pte.U() {
		if access == AccessFetch || !st.SUM() {
			return false
		}
	}

	switch access {
	case AccessFetch:
		return pte.X()
	case AccessLoad:
		return pte.R() || (st.MXR() && pte.X())
	default:
		return pte.W()
	}
}
