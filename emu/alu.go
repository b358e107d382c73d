package emu

import "github.com/sarchlab/rvpe/insts"

// ALU implements RV32I integer arithmetic and the M extension.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// RegReg performs rd = rs1 op rs2.
func (a *ALU) RegReg(op insts.Op, rd, rs1, rs2 uint8) {
	result := Compute(op, a.regFile.ReadReg(rs1), a.regFile.ReadReg(rs2))
	a.regFile.WriteReg(rd, result)
}

// RegImm performs rd = rs1 op imm.
func (a *ALU) RegImm(op insts.Op, rd, rs1 uint8, imm int32) {
	result := Compute(op, a.regFile.ReadReg(rs1), uint32(imm))
	a.regFile.WriteReg(rd, result)
}

// Compute evaluates an OP or OP-IMM operation on two operands. Shift
// amounts use the low 5 bits of b.
func Compute(op insts.Op, a, b uint32) uint32 {
	switch op {
	case insts.OpADD, insts.OpADDI:
		return a + b
	case insts.OpSUB:
		return a - b
	case insts.OpSLL, insts.OpSLLI:
		return a << (b & 0x1F)
	case insts.OpSLT, insts.OpSLTI:
		return boolToWord(int32(a) < int32(b))
	case insts.OpSLTU, insts.OpSLTIU:
		return boolToWord(a < b)
	case insts.OpXOR, insts.OpXORI:
		return a ^ b
	case insts.OpSRL, insts.OpSRLI:
		return a >> (b & 0x1F)
	case insts.OpSRA, insts.OpSRAI:
		return uint32(int32(a) >> (b & 0x1F))
	case insts.OpOR, insts.OpORI:
		return a | b
	case insts.OpAND, insts.OpANDI:
		return a & b
	case insts.OpMUL:
		return a * b
	case insts.OpMULH:
		return uint32(uint64(int64(int32(a))*int64(int32(b))) >> 32)
	case insts.OpMULHSU:
		return uint32(uint64(int64(int32(a))*int64(b)) >> 32)
	case insts.OpMULHU:
		return uint32(uint64(a) * uint64(b) >> 32)
	case insts.OpDIV:
		return div(a, b)
	case insts.OpDIVU:
		if b == 0 {
			return 0xFFFFFFFF
		}
		return a / b
	case insts.OpREM:
		return rem(a, b)
	case insts.OpREMU:
		if b == 0 {
			return a
		}
		return a % b
	default:
		panic("emu: no ALU operation for " + op.String())
	}
}

const minInt32 = -1 << 31

func div(a, b uint32) uint32 {
	sa, sb := int32(a), int32(b)
	switch {
	case sb == 0:
		return 0xFFFFFFFF
	case sa == minInt32 && sb == -1:
		return a
	default:
		return uint32(sa / sb)
	}
}

func rem(a, b uint32) uint32 {
	sa, sb := int32(a), int32(b)
	switch {
	case sb == 0:
		return a
	case sa == minInt32 && sb == -1:
		return 0
	default:
		return uint32(sa % sb)
	}
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
