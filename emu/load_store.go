package emu

import "github.com/sarchlab/rvpe/insts"

// LoadStoreUnit implements RV32I loads and stores. Every access goes
// through the MMU and is issued on the bus as an aligned word.
type LoadStoreUnit struct {
	regFile *RegFile
	port    *busPort
	mmu     *MMU
}

// newLoadStoreUnit creates a LoadStoreUnit connected to the given
// register file, bus port and MMU.
func newLoadStoreUnit(regFile *RegFile, port *busPort, mmu *MMU) *LoadStoreUnit {
	return &LoadStoreUnit{regFile: regFile, port: port, mmu: mmu}
}

func accessWidth(op insts.Op) uint32 {
	switch op {
	case insts.OpLB, insts.OpLBU, insts.OpSB:
		return 1
	case insts.OpLH, insts.OpLHU, insts.OpSH:
		return 2
	default:
		return 4
	}
}

func (lsu *LoadStoreUnit) resolve(va uint32, width uint32, access AccessType,
	priv Privilege) (uint32, *Fault) {
	if va&(width-1) != 0 {
		code := ExcLoadAddressMisaligned
		if access == AccessStore {
			code = ExcStoreAddressMisaligned
		}
		return 0, &Fault{Code: code, Tval: va}
	}

	pa, f := lsu.mmu.Translate(va, access, priv)
	if f != nil {
		return 0, f
	}

	if pa > 0xFFFFFFFF || !lsu.port.mapped(uint32(pa)) {
		return 0, &Fault{Code: access.accessFault(), Tval: va}
	}

	return uint32(pa), nil
}

// Load performs rd = mem[rs1 + offset] at data privilege priv.
func (lsu *LoadStoreUnit) Load(op insts.Op, rd, rs1 uint8, offset int32, priv Privilege) *Fault {
	va := lsu.regFile.ReadReg(rs1) + uint32(offset)

	pa, f := lsu.resolve(va, accessWidth(op), AccessLoad, priv)
	if f != nil {
		return f
	}

	word := lsu.port.read(pa &^ 3) >> (8 * (pa & 3))

	var value uint32
	switch op {
	case insts.OpLB:
		value = uint32(int32(int8(word)))
	case insts.OpLBU:
		value = word & 0xFF
	case insts.OpLH:
		value = uint32(int32(int16(word)))
	case insts.OpLHU:
		value = word & 0xFFFF
	default:
		value = word
	}

	lsu.regFile.WriteReg(rd, value)
	return nil
}

// Store performs mem[rs1 + offset] = rs2 at data privilege priv. Sub-word
// stores drive the byte enables of the addressed lanes.
func (lsu *LoadStoreUnit) Store(op insts.Op, rs1, rs2 uint8, offset int32, priv Privilege) *Fault {
	va := lsu.regFile.ReadReg(rs1) + uint32(offset)
	width := accessWidth(op)

	pa, f := lsu.resolve(va, width, AccessStore, priv)
	if f != nil {
		return f
	}

	lane := pa & 3
	enable := uint8(1<<width-1) << lane
	data := lsu.regFile.ReadReg(rs2) << (8 * lane)

	lsu.port.write(pa&^3, data, enable)
	return nil
}
