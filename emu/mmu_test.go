package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvpe/emu"
	"github.com/sarchlab/rvpe/insts"
)

var _ = Describe("MMU", func() {
	const (
		rootPPN = 0x1
		l0PPN   = 0x2
	)

	var (
		e   *emu.Emulator
		mem *emu.Memory
		mmu *emu.MMU
	)

	pte := func(ppn uint32, flags ...uint) uint32 {
		return emu.MakePTE(ppn, flags...)
	}

	setRoot := func(vpn1 uint32, value uint32) {
		mem.Write32(rootPPN*emu.PageSize+vpn1*4, value, 0xF)
	}

	setLeaf := func(vpn0 uint32, value uint32) {
		mem.Write32(l0PPN*emu.PageSize+vpn0*4, value, 0xF)
	}

	BeforeEach(func() {
		mem = emu.NewMemory()
		e = emu.NewEmulator(emu.WithMemory(mem))
		e.CSR().Satp.Write(1<<31 | rootPPN)
		mmu = e.MMU()

		// 0x00400000 -> 0x00010000 through a level-0 table.
		setRoot(1, pte(l0PPN, emu.PTEValid))
		setLeaf(0, pte(0x10, emu.PTEValid, emu.PTERead, emu.PTEExecute, emu.PTEUser))
	})

	It("should use the identity map in machine mode", func() {
		pa, f := mmu.Translate(0x00400123, emu.AccessFetch, emu.PrivMachine)
		Expect(f).To(BeNil())
		Expect(pa).To(Equal(emu.PhysicalAddress(0x00400123)))
	})

	It("should use the identity map when satp is bare", func() {
		e.CSR().Satp.Write(0)
		pa, f := mmu.Translate(0x00400123, emu.AccessFetch, emu.PrivUser)
		Expect(f).To(BeNil())
		Expect(pa).To(Equal(emu.PhysicalAddress(0x00400123)))
	})

	It("should walk two levels to a 4 KiB page", func() {
		pa, f := mmu.Translate(0x00400123, emu.AccessFetch, emu.PrivUser)
		Expect(f).To(BeNil())
		Expect(pa).To(Equal(emu.PhysicalAddress(0x00010123)))
	})

	It("should set the accessed bit on the leaf", func() {
		_, f := mmu.Translate(0x00400000, emu.AccessFetch, emu.PrivUser)
		Expect(f).To(BeNil())

		leaf := emu.PageTableEntry{Register: emu.Register(mem.Read32(l0PPN*emu.PageSize))}
		Expect(leaf.A()).To(BeTrue())
		Expect(leaf.D()).To(BeFalse())
	})

	It("should set the dirty bit on stores", func() {
		setLeaf(1, pte(0x11, emu.PTEValid, emu.PTERead, emu.PTEWrite, emu.PTEUser))

		pa, f := mmu.Translate(0x00401008, emu.AccessStore, emu.PrivUser)
		Expect(f).To(BeNil())
		Expect(pa).To(Equal(emu.PhysicalAddress(0x00011008)))

		leaf := emu.PageTableEntry{Register: emu.Register(mem.Read32(l0PPN*emu.PageSize + 4))}
		Expect(leaf.A()).To(BeTrue())
		Expect(leaf.D()).To(BeTrue())
	})

	It("should map a 4 MiB superpage", func() {
		setRoot(2, pte(0x400, emu.PTEValid, emu.PTERead, emu.PTEExecute, emu.PTEUser))

		pa, f := mmu.Translate(0x00812345, emu.AccessFetch, emu.PrivUser)
		Expect(f).To(BeNil())
		Expect(pa).To(Equal(emu.PhysicalAddress(0x00412345)))
	})

	It("should reject a misaligned superpage", func() {
		setRoot(2, pte(0x401, emu.PTEValid, emu.PTERead, emu.PTEExecute, emu.PTEUser))

		_, f := mmu.Translate(0x00812345, emu.AccessFetch, emu.PrivUser)
		Expect(f).NotTo(BeNil())
		Expect(f.Code).To(Equal(emu.ExcInstructionPageFault))
	})

	It("should fault on a pointer at level 0", func() {
		setLeaf(3, pte(0x3, emu.PTEValid))

		_, f := mmu.Translate(0x00403000, emu.AccessFetch, emu.PrivUser)
		Expect(f).NotTo(BeNil())
		Expect(f.Code).To(Equal(emu.ExcInstructionPageFault))
		Expect(f.Tval).To(Equal(uint32(0x00403000)))
	})

	DescribeTable("page faults",
		func(leaf uint32, access emu.AccessType, priv emu.Privilege, code emu.ExceptionCode) {
			setLeaf(5, leaf)
			_, f := mmu.Translate(0x00405000, access, priv)
			Expect(f).NotTo(BeNil())
			Expect(f.Code).To(Equal(code))
		},
		Entry("invalid entry", pte(0x20), emu.AccessFetch, emu.PrivUser,
			emu.ExcInstructionPageFault),
		Entry("write without read", pte(0x20, emu.PTEValid, emu.PTEWrite), emu.AccessLoad,
			emu.PrivSupervisor, emu.ExcLoadPageFault),
		Entry("no execute permission", pte(0x20, emu.PTEValid, emu.PTERead, emu.PTEUser),
			emu.AccessFetch, emu.PrivUser, emu.ExcInstructionPageFault),
		Entry("user access to a supervisor page", pte(0x20, emu.PTEValid, emu.PTERead, emu.PTEExecute),
			emu.AccessFetch, emu.PrivUser, emu.ExcInstructionPageFault),
		Entry("supervisor fetch from a user page", pte(0x20, emu.PTEValid, emu.PTEExecute, emu.PTEUser),
			emu.AccessFetch, emu.PrivSupervisor, emu.ExcInstructionPageFault),
		Entry("supervisor load from a user page without SUM", pte(0x20, emu.PTEValid, emu.PTERead, emu.PTEUser),
			emu.AccessLoad, emu.PrivSupervisor, emu.ExcLoadPageFault),
		Entry("store to a read-only page", pte(0x20, emu.PTEValid, emu.PTERead, emu.PTEUser),
			emu.AccessStore, emu.PrivUser, emu.ExcStorePageFault),
	)

	It("should let supervisor mode read user pages with SUM", func() {
		setLeaf(5, pte(0x20, emu.PTEValid, emu.PTERead, emu.PTEUser))
		e.CSR().Mstatus.Write(1 << 18)

		_, f := mmu.Translate(0x00405000, emu.AccessLoad, emu.PrivSupervisor)
		Expect(f).To(BeNil())
	})

	It("should let loads use execute-only pages with MXR", func() {
		setLeaf(5, pte(0x20, emu.PTEValid, emu.PTEExecute, emu.PTEUser))
		e.CSR().Mstatus.Write(1 << 19)

		_, f := mmu.Translate(0x00405000, emu.AccessLoad, emu.PrivUser)
		Expect(f).To(BeNil())
	})

	It("should raise an access fault when the table is unmapped", func() {
		e = emu.NewEmulator(emu.WithMemory(emu.NewBoundedMemory(0x1000)))
		e.CSR().Satp.Write(1<<31 | 0x10)

		_, f := e.MMU().Translate(0x0, emu.AccessLoad, emu.PrivUser)
		Expect(f).NotTo(BeNil())
		Expect(f.Code).To(Equal(emu.ExcLoadAccessFault))
	})

	Describe("translated execution", func() {
		BeforeEach(func() {
			mem.Write32(0x00010000, insts.Encode(insts.OpADDI, 1, 0, 0, 7), 0xF)
			mem.Write32(0x00010004, insts.Encode(insts.OpSW, 0, 0, 1, 0x100), 0xF)
			setLeaf(0, pte(0x10, emu.PTEValid, emu.PTERead, emu.PTEWrite,
				emu.PTEExecute, emu.PTEUser))
			e.CSR().Mtvec.Write(handler)
			e.SetPrivilege(emu.PrivUser)
			e.RegFile().PC = 0x00400000
		})

		It("should fetch and store through the page table", func() {
			res := e.Step()
			Expect(res.Trap).To(BeNil())
			Expect(res.MemReads).To(Equal(3))
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(7)))

			// x0 + 0x100 is not mapped for user mode
			res = e.Step()
			Expect(res.Trap).NotTo(BeNil())
			Expect(res.Trap.Code).To(Equal(uint32(emu.ExcStorePageFault)))
			Expect(e.CSR().Mepc.Read()).To(Equal(uint32(0x00400004)))
		})

		It("should report the page context", func() {
			Expect(e.PageContext()).To(Equal(emu.PageContext{
				Mode: emu.SatpSv32, RootPPN: rootPPN,
			}))
		})

		It("should trap on a fetch page fault", func() {
			e.RegFile().PC = 0x00C00000

			res := e.Step()

			Expect(res.Trap.Code).To(Equal(uint32(emu.ExcInstructionPageFault)))
			Expect(e.CSR().Mtval.Read()).To(Equal(uint32(0x00C00000)))
			Expect(e.RegFile().PC).To(Equal(handler))
		})
	})
})
