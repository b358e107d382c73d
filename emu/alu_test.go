package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvpe/emu"
	"github.com/sarchlab/rvpe/insts"
)

var _ = Describe("ALU", func() {
	const intMin = uint32(0x80000000)
	minusOne := uint32(0xFFFFFFFF)

	DescribeTable("Compute",
		func(op insts.Op, a, b, want uint32) {
			Expect(emu.Compute(op, a, b)).To(Equal(want))
		},
		Entry("add wraps", insts.OpADD, uint32(0xFFFFFFFF), uint32(2), uint32(1)),
		Entry("sub", insts.OpSUB, uint32(3), uint32(5), uint32(0xFFFFFFFE)),
		Entry("sll uses the low 5 bits", insts.OpSLL, uint32(1), uint32(33), uint32(2)),
		Entry("srl uses the low 5 bits", insts.OpSRL, uint32(0x80000000), uint32(0x3F), uint32(1)),
		Entry("sra replicates bit 31", insts.OpSRA, uint32(0x80000000), uint32(4), uint32(0xF8000000)),
		Entry("srai of a positive value", insts.OpSRAI, uint32(0x40000000), uint32(30), uint32(1)),
		Entry("slt is signed", insts.OpSLT, uint32(0xFFFFFFFF), uint32(1), uint32(1)),
		Entry("sltu is unsigned", insts.OpSLTU, uint32(0xFFFFFFFF), uint32(1), uint32(0)),
		Entry("sltiu x, 1 tests zero", insts.OpSLTIU, uint32(0), uint32(1), uint32(1)),

		Entry("mul keeps the low word", insts.OpMUL, uint32(0x10000), uint32(0x10001), uint32(0x10000)),
		Entry("mulh signed", insts.OpMULH, minusOne, minusOne, uint32(0)),
		Entry("mulh negative", insts.OpMULH, intMin, uint32(2), minusOne),
		Entry("mulhsu", insts.OpMULHSU, minusOne, minusOne, minusOne),
		Entry("mulhu", insts.OpMULHU, minusOne, minusOne, uint32(0xFFFFFFFE)),

		Entry("div", insts.OpDIV, uint32(0xFFFFFFF9), uint32(2), uint32(0xFFFFFFFD)),
		Entry("div by zero", insts.OpDIV, uint32(42), uint32(0), minusOne),
		Entry("divu by zero", insts.OpDIVU, uint32(42), uint32(0), minusOne),
		Entry("rem by zero", insts.OpREM, uint32(42), uint32(0), uint32(42)),
		Entry("remu by zero", insts.OpREMU, uint32(42), uint32(0), uint32(42)),
		Entry("div overflow", insts.OpDIV, intMin, minusOne, intMin),
		Entry("rem overflow", insts.OpREM, intMin, minusOne, uint32(0)),
		Entry("rem keeps the dividend sign", insts.OpREM, uint32(0xFFFFFFF9), uint32(2), minusOne),
		Entry("remu", insts.OpREMU, uint32(7), uint32(3), uint32(1)),
	)

	It("should never write x0", func() {
		rf := &emu.RegFile{}
		alu := emu.NewALU(rf)
		rf.WriteReg(1, 7)
		alu.RegImm(insts.OpADDI, 0, 1, 5)
		alu.RegReg(insts.OpADD, 0, 1, 1)
		Expect(rf.ReadReg(0)).To(BeZero())
		Expect(rf.X[0]).To(BeZero())
	})
})
