// Package emu provides functional RV32IM emulation.
package emu

// Register is a 32-bit word with positional bit and field accessors.
// It is the base of every CSR and address type in this package.
type Register uint32

// Bit reports whether bit n is set.
func (r Register) Bit(n uint) bool {
	return r>>n&1 == 1
}

// SetBit sets or clears bit n.
func (r *Register) SetBit(n uint, v bool) {
	if v {
		*r |= 1 << n
	} else {
		*r &^= 1 << n
	}
}

// Bits returns the field [hi:lo], right-aligned.
func (r Register) Bits(hi, lo uint) uint32 {
	width := hi - lo + 1
	return uint32(r>>lo) & (1<<width - 1)
}

// SetBits replaces the field [hi:lo] with the low bits of v.
func (r *Register) SetBits(hi, lo uint, v uint32) {
	width := hi - lo + 1
	mask := Register(1<<width-1) << lo
	*r = *r&^mask | Register(v)<<lo&mask
}

// RegFile represents the RV32 integer register file.
// It contains 32 general-purpose registers (x0-x31) and the program counter.
type RegFile struct {
	// X holds general-purpose registers x0-x31.
	// X[0] is hardwired to zero; ReadReg never returns its stored value.
	X [32]uint32

	// PC is the program counter.
	PC uint32
}

// ReadReg reads a register value. Register 0 always reads as 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to register 0 are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}
