package emu

import "github.com/sarchlab/rvpe/insts"

// BranchUnit implements RV32I jumps and conditional branches.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// Taken evaluates the condition of a conditional branch.
func (b *BranchUnit) Taken(op insts.Op, rs1, rs2 uint8) bool {
	x := b.regFile.ReadReg(rs1)
	y := b.regFile.ReadReg(rs2)

	switch op {
	case insts.OpBEQ:
		return x == y
	case insts.OpBNE:
		return x != y
	case insts.OpBLT:
		return int32(x) < int32(y)
	case insts.OpBGE:
		return int32(x) >= int32(y)
	case insts.OpBLTU:
		return x < y
	case insts.OpBGEU:
		return x >= y
	default:
		panic("emu: not a branch: " + op.String())
	}
}

// Jump transfers control to target and writes the return address to rd.
// A target that is not 4-byte aligned raises a misaligned fault and
// leaves rd and the PC untouched.
func (b *BranchUnit) Jump(rd uint8, target uint32) *Fault {
	if target&0x3 != 0 {
		return &Fault{Code: ExcInstructionAddressMisaligned, Tval: target}
	}

	b.regFile.WriteReg(rd, b.regFile.PC+4)
	b.regFile.PC = target
	return nil
}

// JAL jumps PC-relative.
func (b *BranchUnit) JAL(rd uint8, offset int32) *Fault {
	return b.Jump(rd, b.regFile.PC+uint32(offset))
}

// JALR jumps to rs1 + offset with bit 0 cleared.
func (b *BranchUnit) JALR(rd, rs1 uint8, offset int32) *Fault {
	target := (b.regFile.ReadReg(rs1) + uint32(offset)) &^ 1
	return b.Jump(rd, target)
}

// Branch jumps PC-relative if the condition holds. It reports whether
// the branch was taken.
func (b *BranchUnit) Branch(op insts.Op, rs1, rs2 uint8, offset int32) (bool, *Fault) {
	if !b.Taken(op, rs1, rs2) {
		return false, nil
	}
	return true, b.Jump(0, b.regFile.PC+uint32(offset))
}
