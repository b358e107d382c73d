package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvpe/emu"
)

var _ = Describe("CSR", func() {
	values := []uint32{
		0, 0xFFFFFFFF, 0xAAAAAAAA, 0x55555555, 0x12345678, 0x80000001, 0x7FFFFFFE,
	}

	DescribeTable("masks every write and read",
		func(c emu.CSR, mask uint32) {
			Expect(c.Mask()).To(Equal(mask))
			for _, v := range values {
				c.Write(v)
				Expect(c.Read()).To(Equal(v & mask))
				Expect(c.Read() &^ mask).To(BeZero())
			}
		},
		Entry("mstatus", &emu.Mstatus{}, emu.MstatusMask),
		Entry("medeleg", &emu.Mer{}, emu.MerMask),
		Entry("mie/mip/mideleg", &emu.Mir{}, emu.MirMask),
		Entry("mtvec", &emu.Mtvec{}, emu.MtvecMask),
		Entry("mepc", &emu.EPC{}, emu.EPCMask),
		Entry("mcause", &emu.Mcause{}, emu.McauseMask),
		Entry("satp", &emu.Satp{}, emu.SatpMask),
		Entry("mcounteren", &emu.Counteren{}, emu.CounterenMask),
		Entry("mscratch", &emu.Plain{}, uint32(0xFFFFFFFF)),
	)

	It("should report a fixed misa", func() {
		var m emu.Misa
		m.Write(0)
		Expect(m.Read()).To(Equal(uint32(0x40141100)))
	})

	Describe("named accessors", func() {
		It("should expose mstatus fields", func() {
			var s emu.Mstatus
			s.SetMPP(emu.PrivSupervisor)
			s.SetMIE(true)
			s.SetSPIE(true)
			Expect(s.MPP()).To(Equal(emu.PrivSupervisor))
			Expect(s.MIE()).To(BeTrue())
			Expect(s.SPIE()).To(BeTrue())
			Expect(s.Read()).To(Equal(uint32(1<<11 | 1<<3 | 1<<5)))
		})

		It("should split mcause into interrupt and code", func() {
			var c emu.Mcause
			c.Set(true, 7)
			Expect(c.Interrupt()).To(BeTrue())
			Expect(c.ExceptionCode()).To(Equal(uint32(7)))
			Expect(c.Read()).To(Equal(uint32(0x80000007)))
		})

		It("should compute vectored trap targets for interrupts only", func() {
			var v emu.Mtvec
			v.Write(0x1001)
			Expect(v.MODE()).To(Equal(emu.TvecVectored))
			Expect(v.BASE()).To(Equal(uint32(0x1000)))
			Expect(v.Target(true, 11)).To(Equal(uint32(0x102C)))
			Expect(v.Target(false, 11)).To(Equal(uint32(0x1000)))
		})

		It("should decode satp", func() {
			var s emu.Satp
			s.Write(1<<31 | 5<<22 | 0x123)
			Expect(s.MODE()).To(Equal(emu.SatpSv32))
			Expect(s.ASID()).To(Equal(uint32(5)))
			Expect(s.PPN()).To(Equal(uint32(0x123)))
		})
	})

	Describe("CSRFile", func() {
		var f *emu.CSRFile

		BeforeEach(func() {
			f = &emu.CSRFile{HartID: 0x0102}
		})

		It("should read mhartid", func() {
			v, ok := f.Read(emu.CSRMhartid, emu.PrivMachine)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(uint32(0x0102)))
		})

		It("should reject writes to read-only CSRs", func() {
			Expect(f.Write(emu.CSRMhartid, 1, emu.PrivMachine)).To(BeFalse())
			Expect(f.Write(emu.CSRCycle, 1, emu.PrivMachine)).To(BeFalse())
		})

		It("should reject unknown CSRs", func() {
			_, ok := f.Read(0x7C0, emu.PrivMachine)
			Expect(ok).To(BeFalse())
		})

		It("should reject access above the current privilege", func() {
			_, ok := f.Read(emu.CSRMstatus, emu.PrivSupervisor)
			Expect(ok).To(BeFalse())
			_, ok = f.Read(emu.CSRSstatus, emu.PrivUser)
			Expect(ok).To(BeFalse())
			_, ok = f.Read(emu.CSRSstatus, emu.PrivSupervisor)
			Expect(ok).To(BeTrue())
		})

		It("should restrict sstatus to its view", func() {
			Expect(f.Write(emu.CSRSstatus, 0xFFFFFFFF, emu.PrivSupervisor)).To(BeTrue())
			Expect(f.Mstatus.Read()).To(Equal(emu.SstatusMask))
			Expect(f.Mstatus.MIE()).To(BeFalse())
		})

		It("should restrict sie and sip to delegated interrupts", func() {
			f.Mideleg.Write(1<<emu.InterruptSTI | 1<<emu.InterruptSSI)
			Expect(f.Write(emu.CSRSie, 0xFFFFFFFF, emu.PrivSupervisor)).To(BeTrue())
			Expect(f.Mie.Read()).To(Equal(uint32(1<<5 | 1<<1)))

			Expect(f.Write(emu.CSRSip, 0xFFFFFFFF, emu.PrivSupervisor)).To(BeTrue())
			Expect(f.Mip.Read()).To(Equal(uint32(1<<5 | 1<<1)))
		})

		It("should not let software raise machine interrupts in mip", func() {
			Expect(f.Write(emu.CSRMip, 0xFFFFFFFF, emu.PrivMachine)).To(BeTrue())
			Expect(f.Mip.Read()).To(Equal(uint32(0x222)))
		})

		It("should trap satp access from S-mode under TVM", func() {
			_, ok := f.Read(emu.CSRSatp, emu.PrivSupervisor)
			Expect(ok).To(BeTrue())
			f.Mstatus.Write(1 << 20)
			_, ok = f.Read(emu.CSRSatp, emu.PrivSupervisor)
			Expect(ok).To(BeFalse())
			_, ok = f.Read(emu.CSRSatp, emu.PrivMachine)
			Expect(ok).To(BeTrue())
		})

		It("should gate user counters on counteren", func() {
			f.Cycle = 0x1_0000_0002
			_, ok := f.Read(emu.CSRCycle, emu.PrivUser)
			Expect(ok).To(BeFalse())

			f.Mcounteren.Write(1)
			f.Scounteren.Write(1)
			v, ok := f.Read(emu.CSRCycle, emu.PrivUser)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(uint32(2)))

			_, ok = f.Read(emu.CSRInstret, emu.PrivUser)
			Expect(ok).To(BeFalse())
		})

		It("should write the halves of mcycle", func() {
			Expect(f.Write(emu.CSRMcycleh, 3, emu.PrivMachine)).To(BeTrue())
			Expect(f.Write(emu.CSRMcycle, 4, emu.PrivMachine)).To(BeTrue())
			Expect(f.Cycle).To(Equal(uint64(3<<32 | 4)))
			v, _ := f.Read(emu.CSRMcycleh, emu.PrivMachine)
			Expect(v).To(Equal(uint32(3)))
		})
	})
})
