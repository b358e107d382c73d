package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvpe/emu"
	"github.com/sarchlab/rvpe/insts"
)

const handler = uint32(0x800)

var _ = Describe("Emulator", func() {
	var e *emu.Emulator

	BeforeEach(func() {
		e = emu.NewEmulator()
		e.CSR().Mtvec.Write(handler)
	})

	Describe("Reset", func() {
		It("should start in machine mode at the reset vector", func() {
			e = emu.NewEmulator(emu.WithResetVector(0x400))
			Expect(e.Privilege()).To(Equal(emu.PrivMachine))
			Expect(e.RegFile().PC).To(Equal(uint32(0x400)))
			Expect(e.PageContext().Mode).To(Equal(emu.SatpBare))
		})

		It("should clear MIE, MPRV and mcause", func() {
			e.CSR().Mstatus.SetMIE(true)
			e.CSR().Mstatus.SetMPRV(true)
			e.CSR().Mcause.Write(5)
			e.SetPrivilege(emu.PrivUser)

			e.Reset()

			Expect(e.CSR().Mstatus.MIE()).To(BeFalse())
			Expect(e.CSR().Mstatus.MPRV()).To(BeFalse())
			Expect(e.CSR().Mcause.Read()).To(BeZero())
			Expect(e.Privilege()).To(Equal(emu.PrivMachine))
		})
	})

	Describe("Step", func() {
		It("should execute ADDI after reset", func() {
			e.LoadProgram(0, program(insts.Encode(insts.OpADDI, 1, 0, 0, 5)))

			result := e.Step()

			Expect(result.Err).To(BeNil())
			Expect(result.Trap).To(BeNil())
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(5)))
			Expect(e.RegFile().PC).To(Equal(uint32(4)))
		})

		It("should execute JAL with a link", func() {
			e.LoadProgram(0x100, program(insts.Encode(insts.OpJAL, 1, 0, 0, 8)))

			result := e.Step()

			Expect(result.Jumped).To(BeTrue())
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(0x104)))
			Expect(e.RegFile().PC).To(Equal(uint32(0x108)))
		})

		It("should keep x0 at zero", func() {
			e.LoadProgram(0, program(
				insts.Encode(insts.OpADDI, 0, 0, 0, 99),
				insts.Encode(insts.OpLUI, 0, 0, 0, 0x12345000),
				insts.Encode(insts.OpJAL, 0, 0, 0, 4),
			))

			for i := 0; i < 3; i++ {
				e.Step()
				Expect(e.RegFile().ReadReg(0)).To(BeZero())
				Expect(e.RegFile().X[0]).To(BeZero())
			}
		})

		It("should compute AUIPC relative to its own address", func() {
			e.LoadProgram(0x200, program(insts.Encode(insts.OpAUIPC, 3, 0, 0, 0x1000)))
			e.Step()
			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(0x1200)))
		})

		It("should take a backward branch", func() {
			e.LoadProgram(0x100, program(
				insts.Encode(insts.OpADDI, 1, 1, 0, 1),
				insts.Encode(insts.OpBLT, 0, 1, 2, -4),
			))
			e.RegFile().WriteReg(2, 3)

			for i := 0; i < 6; i++ {
				e.Step()
			}

			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(3)))
			Expect(e.RegFile().PC).To(Equal(uint32(0x108)))
		})

		It("should report a jump to itself as a self loop", func() {
			e.LoadProgram(0x40, program(insts.Encode(insts.OpJAL, 0, 0, 0, 0)))

			result := e.Step()

			Expect(result.SelfLoop).To(BeTrue())
			Expect(e.RegFile().PC).To(Equal(uint32(0x40)))
		})

		It("should stop at the instruction limit", func() {
			e = emu.NewEmulator(emu.WithMaxInstructions(1))
			e.LoadProgram(0, program(insts.NOP(), insts.NOP()))

			Expect(e.Step().Err).To(BeNil())
			Expect(e.Step().Err).To(HaveOccurred())
		})
	})

	Describe("Exceptions", func() {
		It("should trap on an illegal instruction without advancing", func() {
			e.LoadProgram(0x100, program(0xFFFFFFFF))

			result := e.Step()

			Expect(result.Trap).NotTo(BeNil())
			Expect(result.Trap.Code).To(Equal(uint32(emu.ExcIllegalInstruction)))
			Expect(e.CSR().Mepc.Read()).To(Equal(uint32(0x100)))
			Expect(e.CSR().Mtval.Read()).To(Equal(uint32(0xFFFFFFFF)))
			Expect(e.RegFile().PC).To(Equal(handler))
		})

		It("should trap on a misaligned branch target", func() {
			e.LoadProgram(0x100, program(insts.Encode(insts.OpBEQ, 0, 0, 0, 6)))

			result := e.Step()

			Expect(result.Trap).NotTo(BeNil())
			Expect(result.Trap.Code).To(Equal(uint32(emu.ExcInstructionAddressMisaligned)))
			Expect(result.Trap.EPC).To(Equal(uint32(0x100)))
			Expect(e.CSR().Mtval.Read()).To(Equal(uint32(0x106)))
			Expect(e.RegFile().PC).To(Equal(handler))
		})

		It("should not link on a misaligned JALR", func() {
			e.LoadProgram(0x100, program(insts.Encode(insts.OpJALR, 2, 1, 0, 0)))
			e.RegFile().WriteReg(1, 0x203)
			e.RegFile().WriteReg(2, 0xAA)

			result := e.Step()

			Expect(result.Trap.Code).To(Equal(uint32(emu.ExcInstructionAddressMisaligned)))
			Expect(e.CSR().Mtval.Read()).To(Equal(uint32(0x202)))
			Expect(e.RegFile().ReadReg(2)).To(Equal(uint32(0xAA)))
		})

		It("should trap ECALL from user mode to machine mode", func() {
			e.LoadProgram(0x200, program(insts.Encode(insts.OpECALL, 0, 0, 0, 0)))
			e.SetPrivilege(emu.PrivUser)

			result := e.Step()

			Expect(result.Trap.Code).To(Equal(uint32(emu.ExcEcallFromUMode)))
			Expect(e.Privilege()).To(Equal(emu.PrivMachine))
			Expect(e.CSR().Mepc.Read()).To(Equal(uint32(0x200)))
			Expect(e.CSR().Mcause.Read()).To(Equal(uint32(8)))
			Expect(e.CSR().Mstatus.MPP()).To(Equal(emu.PrivUser))
			Expect(e.RegFile().PC).To(Equal(handler))
		})

		It("should delegate ECALL from user mode to supervisor mode", func() {
			e.CSR().Medeleg.Write(1 << emu.ExcEcallFromUMode)
			e.CSR().Stvec.Write(0x900)
			e.LoadProgram(0x200, program(insts.Encode(insts.OpECALL, 0, 0, 0, 0)))
			e.SetPrivilege(emu.PrivUser)

			e.Step()

			Expect(e.Privilege()).To(Equal(emu.PrivSupervisor))
			Expect(e.CSR().Sepc.Read()).To(Equal(uint32(0x200)))
			Expect(e.CSR().Scause.Read()).To(Equal(uint32(8)))
			Expect(e.CSR().Mstatus.SPP()).To(Equal(emu.PrivUser))
			Expect(e.RegFile().PC).To(Equal(uint32(0x900)))
		})

		It("should not delegate exceptions raised in machine mode", func() {
			e.CSR().Medeleg.Write(1 << emu.ExcBreakpoint)
			e.LoadProgram(0x10, program(insts.Encode(insts.OpEBREAK, 0, 0, 0, 0)))

			e.Step()

			Expect(e.Privilege()).To(Equal(emu.PrivMachine))
			Expect(e.CSR().Mcause.Read()).To(Equal(uint32(emu.ExcBreakpoint)))
			Expect(e.CSR().Mtval.Read()).To(Equal(uint32(0x10)))
		})

		It("should ignore the vector mode for exceptions", func() {
			e.CSR().Mtvec.Write(handler | 1)
			e.LoadProgram(0, program(insts.Encode(insts.OpECALL, 0, 0, 0, 0)))

			e.Step()

			Expect(e.RegFile().PC).To(Equal(handler))
		})

		It("should count exceptions by code", func() {
			e.LoadProgram(0, program(0))
			e.Step()
			Expect(e.Stats().Exceptions[emu.ExcIllegalInstruction]).To(Equal(uint64(1)))
		})
	})

	Describe("Trap return", func() {
		mret := insts.Encode(insts.OpMRET, 0, 0, 0, 0)
		sret := insts.Encode(insts.OpSRET, 0, 0, 0, 0)
		ecall := insts.Encode(insts.OpECALL, 0, 0, 0, 0)

		DescribeTable("should restore MIE and privilege after a round trip",
			func(priv emu.Privilege, mie bool) {
				e.Memory().Write32(handler, mret, 0xF)
				e.LoadProgram(0x100, program(ecall))
				e.SetPrivilege(priv)
				e.CSR().Mstatus.SetMIE(mie)

				e.Step()
				Expect(e.Privilege()).To(Equal(emu.PrivMachine))
				Expect(e.CSR().Mstatus.MIE()).To(BeFalse())

				e.Step()
				Expect(e.Privilege()).To(Equal(priv))
				Expect(e.CSR().Mstatus.MIE()).To(Equal(mie))
				Expect(e.CSR().Mstatus.MPIE()).To(BeTrue())
				Expect(e.CSR().Mstatus.MPP()).To(Equal(emu.PrivUser))
				Expect(e.RegFile().PC).To(Equal(uint32(0x100)))
			},
			Entry("from machine mode, enabled", emu.PrivMachine, true),
			Entry("from machine mode, disabled", emu.PrivMachine, false),
			Entry("from supervisor mode", emu.PrivSupervisor, true),
			Entry("from user mode", emu.PrivUser, true),
		)

		It("should return from a supervisor trap with sret", func() {
			e.CSR().Medeleg.Write(1 << emu.ExcEcallFromUMode)
			e.CSR().Stvec.Write(0x900)
			e.Memory().Write32(0x900, sret, 0xF)
			e.LoadProgram(0x100, program(ecall))
			e.SetPrivilege(emu.PrivUser)
			e.CSR().Mstatus.SetSIE(true)

			e.Step()
			Expect(e.CSR().Mstatus.SIE()).To(BeFalse())
			Expect(e.CSR().Mstatus.SPIE()).To(BeTrue())

			e.Step()
			Expect(e.Privilege()).To(Equal(emu.PrivUser))
			Expect(e.CSR().Mstatus.SIE()).To(BeTrue())
			Expect(e.RegFile().PC).To(Equal(uint32(0x100)))
		})

		It("should clear MPRV when returning below machine mode", func() {
			e.CSR().Mstatus.SetMPRV(true)
			e.CSR().Mstatus.SetMPP(emu.PrivSupervisor)
			e.CSR().Mepc.Write(0x300)
			e.LoadProgram(0, program(mret))

			e.Step()

			Expect(e.Privilege()).To(Equal(emu.PrivSupervisor))
			Expect(e.CSR().Mstatus.MPRV()).To(BeFalse())
			Expect(e.RegFile().PC).To(Equal(uint32(0x300)))
		})

		It("should make mret illegal outside machine mode", func() {
			e.LoadProgram(0x100, program(mret))
			e.SetPrivilege(emu.PrivSupervisor)

			result := e.Step()

			Expect(result.Trap.Code).To(Equal(uint32(emu.ExcIllegalInstruction)))
		})

		It("should make sret illegal in user mode and under TSR", func() {
			e.LoadProgram(0x100, program(sret))
			e.SetPrivilege(emu.PrivUser)
			Expect(e.Step().Trap.Code).To(Equal(uint32(emu.ExcIllegalInstruction)))

			e.CSR().Mstatus.Write(1 << 22)
			e.RegFile().PC = 0x100
			e.SetPrivilege(emu.PrivSupervisor)
			Expect(e.Step().Trap.Code).To(Equal(uint32(emu.ExcIllegalInstruction)))
		})
	})

	Describe("Interrupts", func() {
		BeforeEach(func() {
			e.LoadProgram(0x100, program(insts.NOP(), insts.NOP()))
		})

		It("should take MEI over MTI", func() {
			e.CSR().Mie.Write(1<<emu.InterruptMEI | 1<<emu.InterruptMTI)
			e.CSR().Mstatus.SetMIE(true)
			e.SetInterruptPending(emu.InterruptMTI, true)
			e.SetExternalInterrupt(true)

			result := e.Step()

			Expect(result.Trap).NotTo(BeNil())
			Expect(result.Trap.Interrupt).To(BeTrue())
			Expect(result.Trap.Code).To(Equal(uint32(emu.InterruptMEI)))
			Expect(e.CSR().Mcause.Read()).To(Equal(uint32(0x8000000B)))
			Expect(e.CSR().Mepc.Read()).To(Equal(uint32(0x100)))
			Expect(e.Stats().Interrupts[emu.InterruptMEI]).To(Equal(uint64(1)))
		})

		It("should use the vector table for interrupts", func() {
			e.CSR().Mtvec.Write(handler | 1)
			e.CSR().Mie.Write(1 << emu.InterruptMTI)
			e.CSR().Mstatus.SetMIE(true)
			e.SetInterruptPending(emu.InterruptMTI, true)

			e.Step()

			Expect(e.RegFile().PC).To(Equal(handler + 4*7))
			Expect(e.CSR().Mtval.Read()).To(BeZero())
		})

		It("should mask machine interrupts in machine mode without MIE", func() {
			e.CSR().Mie.Write(1 << emu.InterruptMEI)
			e.SetExternalInterrupt(true)

			result := e.Step()

			Expect(result.Trap).To(BeNil())
			Expect(e.RegFile().PC).To(Equal(uint32(0x104)))
		})

		It("should always take machine interrupts below machine mode", func() {
			e.CSR().Mie.Write(1 << emu.InterruptMEI)
			e.SetExternalInterrupt(true)
			e.SetPrivilege(emu.PrivUser)

			result := e.Step()

			Expect(result.Trap).NotTo(BeNil())
			Expect(e.Privilege()).To(Equal(emu.PrivMachine))
		})

		It("should route delegated interrupts to supervisor mode", func() {
			e.CSR().Stvec.Write(0x900)
			e.CSR().Mideleg.Write(1 << emu.InterruptSTI)
			e.CSR().Mie.Write(1 << emu.InterruptSTI)
			e.SetInterruptPending(emu.InterruptSTI, true)
			e.SetPrivilege(emu.PrivUser)

			result := e.Step()

			Expect(result.Trap.To).To(Equal(emu.PrivSupervisor))
			Expect(e.CSR().Scause.Read()).To(Equal(uint32(0x80000005)))
			Expect(e.RegFile().PC).To(Equal(uint32(0x900)))
		})

		It("should not take delegated interrupts in machine mode", func() {
			e.CSR().Mideleg.Write(1 << emu.InterruptSTI)
			e.CSR().Mie.Write(1 << emu.InterruptSTI)
			e.CSR().Mstatus.SetMIE(true)
			e.CSR().Mstatus.SetSIE(true)
			e.SetInterruptPending(emu.InterruptSTI, true)

			Expect(e.Step().Trap).To(BeNil())
		})

		It("should need SIE for delegated interrupts in supervisor mode", func() {
			e.CSR().Mideleg.Write(1 << emu.InterruptSSI)
			e.CSR().Mie.Write(1 << emu.InterruptSSI)
			e.SetInterruptPending(emu.InterruptSSI, true)
			e.SetPrivilege(emu.PrivSupervisor)

			Expect(e.Step().Trap).To(BeNil())

			e.CSR().Mstatus.SetSIE(true)
			Expect(e.Step().Trap).NotTo(BeNil())
		})
	})

	Describe("WFI", func() {
		wfi := insts.Encode(insts.OpWFI, 0, 0, 0, 0)

		It("should wait until an enabled interrupt is pending", func() {
			e.LoadProgram(0x100, program(wfi, insts.Encode(insts.OpADDI, 1, 0, 0, 1)))

			Expect(e.Step().Waiting).To(BeTrue())
			Expect(e.RegFile().PC).To(Equal(uint32(0x104)))

			result := e.Step()
			Expect(result.Waiting).To(BeTrue())
			Expect(result.Inst).To(BeNil())

			e.CSR().Mie.Write(1 << emu.InterruptMTI)
			e.SetInterruptPending(emu.InterruptMTI, true)

			result = e.Step()
			Expect(result.Waiting).To(BeFalse())
			Expect(result.Trap).To(BeNil())
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(1)))
		})

		It("should be illegal in user mode and under TW", func() {
			e.LoadProgram(0x100, program(wfi))
			e.SetPrivilege(emu.PrivUser)
			Expect(e.Step().Trap.Code).To(Equal(uint32(emu.ExcIllegalInstruction)))

			e.CSR().Mstatus.Write(1 << 21)
			e.RegFile().PC = 0x100
			e.SetPrivilege(emu.PrivSupervisor)
			Expect(e.Step().Trap.Code).To(Equal(uint32(emu.ExcIllegalInstruction)))
		})
	})

	Describe("CSR instructions", func() {
		It("should swap with csrrw", func() {
			e.CSR().Mscratch.Write(0x55)
			e.RegFile().WriteReg(2, 0x77)
			e.LoadProgram(0, program(insts.EncodeCSR(insts.OpCSRRW, 1, 2, emu.CSRMscratch)))

			e.Step()

			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(0x55)))
			Expect(e.CSR().Mscratch.Read()).To(Equal(uint32(0x77)))
		})

		It("should set and clear bits", func() {
			e.LoadProgram(0, program(
				insts.EncodeCSR(insts.OpCSRRSI, 0, 0x8, emu.CSRMstatus),
				insts.EncodeCSR(insts.OpCSRRCI, 3, 0x8, emu.CSRMstatus),
			))

			e.Step()
			Expect(e.CSR().Mstatus.MIE()).To(BeTrue())

			e.Step()
			Expect(e.CSR().Mstatus.MIE()).To(BeFalse())
			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(0x8)))
		})

		It("should read a read-only CSR with csrrs x0", func() {
			e = emu.NewEmulator(emu.WithHartID(0x0201))
			e.LoadProgram(0, program(insts.EncodeCSR(insts.OpCSRRS, 4, 0, emu.CSRMhartid)))

			result := e.Step()

			Expect(result.Trap).To(BeNil())
			Expect(e.RegFile().ReadReg(4)).To(Equal(uint32(0x0201)))
		})

		It("should reject writes to read-only CSRs", func() {
			e.RegFile().WriteReg(1, 1)
			e.LoadProgram(0, program(insts.EncodeCSR(insts.OpCSRRW, 4, 1, emu.CSRMhartid)))

			result := e.Step()

			Expect(result.Trap.Code).To(Equal(uint32(emu.ExcIllegalInstruction)))
			Expect(e.RegFile().ReadReg(4)).To(BeZero())
		})

		It("should reject machine CSRs from user mode", func() {
			e.LoadProgram(0, program(insts.EncodeCSR(insts.OpCSRRS, 4, 0, emu.CSRMstatus)))
			e.SetPrivilege(emu.PrivUser)

			Expect(e.Step().Trap.Code).To(Equal(uint32(emu.ExcIllegalInstruction)))
		})

		It("should apply the WARL mask on write", func() {
			e.RegFile().WriteReg(1, 0xFFFFFFFF)
			e.LoadProgram(0, program(insts.EncodeCSR(insts.OpCSRRW, 0, 1, emu.CSRMedeleg)))

			e.Step()

			Expect(e.CSR().Medeleg.Read()).To(Equal(emu.MerMask))
		})
	})

	Describe("Loads and stores", func() {
		It("should store and load words", func() {
			e.RegFile().WriteReg(1, 0x1000)
			e.RegFile().WriteReg(2, 0xDEADBEEF)
			e.LoadProgram(0, program(
				insts.Encode(insts.OpSW, 0, 1, 2, 8),
				insts.Encode(insts.OpLW, 3, 1, 0, 8),
			))

			Expect(e.Step().MemWrites).To(Equal(1))
			e.Step()

			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(0xDEADBEEF)))
			Expect(e.MemAddress()).To(Equal(uint32(0x1008)))
		})

		It("should sign- and zero-extend sub-word loads", func() {
			e.Memory().Write32(0x1000, 0x8081F0FF, 0xF)
			e.RegFile().WriteReg(1, 0x1000)
			e.LoadProgram(0, program(
				insts.Encode(insts.OpLB, 2, 1, 0, 0),
				insts.Encode(insts.OpLBU, 3, 1, 0, 0),
				insts.Encode(insts.OpLH, 4, 1, 0, 2),
				insts.Encode(insts.OpLHU, 5, 1, 0, 2),
			))

			for i := 0; i < 4; i++ {
				e.Step()
			}

			Expect(e.RegFile().ReadReg(2)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(e.RegFile().ReadReg(3)).To(Equal(uint32(0xFF)))
			Expect(e.RegFile().ReadReg(4)).To(Equal(uint32(0xFFFF8081)))
			Expect(e.RegFile().ReadReg(5)).To(Equal(uint32(0x8081)))
		})

		It("should only touch the addressed bytes on sub-word stores", func() {
			e.Memory().Write32(0x1000, 0x11223344, 0xF)
			e.RegFile().WriteReg(1, 0x1000)
			e.RegFile().WriteReg(2, 0xAABBCCDD)
			e.LoadProgram(0, program(
				insts.Encode(insts.OpSB, 0, 1, 2, 1),
				insts.Encode(insts.OpSH, 0, 1, 2, 2),
			))

			e.Step()
			Expect(e.Memory().Read32(0x1000)).To(Equal(uint32(0x1122DD44)))

			e.Step()
			Expect(e.Memory().Read32(0x1000)).To(Equal(uint32(0xCCDDDD44)))
		})

		It("should trap on misaligned accesses", func() {
			e.RegFile().WriteReg(1, 0x1001)
			e.LoadProgram(0, program(
				insts.Encode(insts.OpLH, 2, 1, 0, 0),
			))

			result := e.Step()

			Expect(result.Trap.Code).To(Equal(uint32(emu.ExcLoadAddressMisaligned)))
			Expect(e.CSR().Mtval.Read()).To(Equal(uint32(0x1001)))
		})

		It("should raise access faults outside a bounded memory", func() {
			e = emu.NewEmulator(emu.WithMemory(emu.NewBoundedMemory(0x1000)))
			e.CSR().Mtvec.Write(handler)
			e.RegFile().WriteReg(1, 0x2000)
			e.LoadProgram(0, program(insts.Encode(insts.OpSW, 0, 1, 0, 0)))

			result := e.Step()

			Expect(result.Trap.Code).To(Equal(uint32(emu.ExcStoreAccessFault)))
		})
	})

	Describe("Stats", func() {
		It("should split kernel and task instructions by class", func() {
			e.LoadProgram(0, program(
				insts.NOP(),
				insts.Encode(insts.OpADDI, 1, 0, 0, 1),
				insts.Encode(insts.OpMUL, 2, 1, 1, 0),
			))

			e.Step()
			e.SetPrivilege(emu.PrivUser)
			e.Step()
			e.Step()

			s := e.Stats()
			Expect(s.Kernel[insts.ClassNop]).To(Equal(uint64(1)))
			Expect(s.Tasks[insts.ClassArith]).To(Equal(uint64(1)))
			Expect(s.Tasks[insts.ClassMultDiv]).To(Equal(uint64(1)))
			Expect(s.KernelInstructions()).To(Equal(uint64(1)))
			Expect(s.TaskInstructions()).To(Equal(uint64(2)))
			Expect(e.CSR().Instret).To(Equal(uint64(3)))
		})
	})

	Describe("Run", func() {
		It("should run until the program spins on itself", func() {
			e.LoadProgram(0, program(
				insts.Encode(insts.OpADDI, 1, 0, 0, 10),
				insts.Encode(insts.OpADDI, 1, 1, 0, -1),
				insts.Encode(insts.OpBNE, 0, 1, 0, -4),
				insts.Encode(insts.OpJAL, 0, 0, 0, 0),
			))

			n, err := e.Run()

			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(uint64(1 + 2*10 + 1)))
			Expect(e.RegFile().ReadReg(1)).To(BeZero())
		})
	})

	Describe("Bus construction", func() {
		It("should load programs through a bus that is not a Memory", func() {
			backing := emu.NewBoundedMemory(0x1000)
			e = emu.NewEmulator(emu.WithBus(wrappedBus{backing}))
			Expect(e.Memory()).To(BeNil())

			e.LoadProgram(0x100, program(insts.Encode(insts.OpADDI, 1, 0, 0, 5)))
			Expect(backing.Read32(0x100)).To(Equal(insts.Encode(insts.OpADDI, 1, 0, 0, 5)))

			r := e.Step()
			Expect(r.Trap).To(BeNil())
			Expect(e.RegFile().ReadReg(1)).To(Equal(uint32(5)))
			Expect(e.RegFile().PC).To(Equal(uint32(0x104)))
		})

		It("should keep an explicit memory behind the bus", func() {
			backing := emu.NewMemory()
			e = emu.NewEmulator(emu.WithMemory(backing), emu.WithBus(wrappedBus{backing}))
			Expect(e.Memory()).To(BeIdenticalTo(backing))
		})

		It("should adopt a Memory given as the bus", func() {
			backing := emu.NewMemory()
			e = emu.NewEmulator(emu.WithBus(backing))
			Expect(e.Memory()).To(BeIdenticalTo(backing))
		})
	})
})

// wrappedBus hides the concrete memory behind the Bus interface.
type wrappedBus struct {
	mem *emu.Memory
}

func (b wrappedBus) Read32(addr uint32) uint32 { return b.mem.Read32(addr) }
func (b wrappedBus) Write32(addr uint32, data uint32, byteEnable uint8) {
	b.mem.Write32(addr, data, byteEnable)
}
func (b wrappedBus) Mapped(addr uint32) bool { return b.mem.Mapped(addr) }
