package insts

import "fmt"

// Op represents an RV32IM operation.
type Op uint8

// RV32IM operations.
const (
	OpUnknown Op = iota

	// U-type and jumps
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR

	// Branches
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	// Loads and stores
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW

	// Register-immediate
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	// Register-register
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	// M extension
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	// MISC-MEM
	OpFENCE
	OpFENCEI

	// SYSTEM
	OpECALL
	OpEBREAK
	OpMRET
	OpSRET
	OpWFI
	OpSFENCEVMA
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// NumOps is the number of operations, including OpUnknown.
	NumOps
)

var opNames = [NumOps]string{
	OpUnknown: "unknown",
	OpLUI:     "lui", OpAUIPC: "auipc", OpJAL: "jal", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLBU: "lbu", OpLHU: "lhu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw",
	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori", OpORI: "ori",
	OpANDI: "andi", OpSLLI: "slli", OpSRLI: "srli", OpSRAI: "srai",
	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpFENCE: "fence", OpFENCEI: "fence.i",
	OpECALL: "ecall", OpEBREAK: "ebreak", OpMRET: "mret", OpSRET: "sret",
	OpWFI: "wfi", OpSFENCEVMA: "sfence.vma",
	OpCSRRW: "csrrw", OpCSRRS: "csrrs", OpCSRRC: "csrrc",
	OpCSRRWI: "csrrwi", OpCSRRSI: "csrrsi", OpCSRRCI: "csrrci",
}

func (o Op) String() string {
	if o < NumOps {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // register-register
	FormatI              // register-immediate, loads, JALR, SYSTEM
	FormatS              // stores
	FormatB              // conditional branches
	FormatU              // LUI, AUIPC
	FormatJ              // JAL
)

// Class groups operations for statistics and latency lookup.
type Class uint8

// Instruction classes.
const (
	ClassOther Class = iota
	ClassArith
	ClassLogical
	ClassShift
	ClassMove
	ClassBranch
	ClassJump
	ClassLoad
	ClassStore
	ClassMultDiv
	ClassNop
	ClassSystem

	// NumClasses is the number of instruction classes.
	NumClasses
)

var classNames = [NumClasses]string{
	"other", "arith", "logical", "shift", "move", "branch",
	"jump", "load", "store", "multdiv", "nop", "system",
}

func (c Class) String() string {
	if c < NumClasses {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Major opcodes, instruction bits [6:0].
const (
	OpcodeLoad    uint8 = 0x03
	OpcodeMiscMem uint8 = 0x0F
	OpcodeOpImm   uint8 = 0x13
	OpcodeAUIPC   uint8 = 0x17
	OpcodeStore   uint8 = 0x23
	OpcodeOp      uint8 = 0x33
	OpcodeLUI     uint8 = 0x37
	OpcodeBranch  uint8 = 0x63
	OpcodeJALR    uint8 = 0x67
	OpcodeJAL     uint8 = 0x6F
	OpcodeSystem  uint8 = 0x73
)

// Funct7 values that select between instruction groups.
const (
	Funct7Base   uint8 = 0x00
	Funct7Alt    uint8 = 0x20 // SUB, SRA, SRAI
	Funct7MulDiv uint8 = 0x01
)

// Instruction represents a decoded RV32 instruction.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format
	Class  Class  // Statistics and latency class

	Word uint32 // Raw instruction word

	Opcode uint8 // bits [6:0]
	Rd     uint8 // bits [11:7]
	Funct3 uint8 // bits [14:12]
	Rs1    uint8 // bits [19:15]
	Rs2    uint8 // bits [24:20]
	Funct7 uint8 // bits [31:25]

	// Imm is the sign-extended immediate for the instruction's format.
	// For shift-immediates it holds the shift amount; for CSR immediates
	// the zero-extended uimm5 held in Rs1.
	Imm int32

	// CSR is the CSR number for Zicsr instructions.
	CSR uint16
}

func (i *Instruction) String() string {
	return fmt.Sprintf("%v rd=x%d rs1=x%d rs2=x%d imm=%d", i.Op, i.Rd, i.Rs1, i.Rs2, i.Imm)
}

type subDecoder func(word uint32, inst *Instruction) bool

// Decoder decodes RV32IM machine code into instructions.
//
// Decoding is a two-level dispatch: the major opcode selects a
// sub-decoder, which resolves funct3/funct7 through its own table.
type Decoder struct {
	major [128]subDecoder
}

// NewDecoder creates a new RV32IM instruction decoder.
func NewDecoder() *Decoder {
	d := &Decoder{}
	d.major[OpcodeOpImm] = decodeOpImm
	d.major[OpcodeOp] = decodeOp
	d.major[OpcodeBranch] = decodeBranch
	d.major[OpcodeLoad] = decodeLoad
	d.major[OpcodeStore] = decodeStore
	d.major[OpcodeJAL] = decodeJAL
	d.major[OpcodeJALR] = decodeJALR
	d.major[OpcodeLUI] = decodeUpper
	d.major[OpcodeAUIPC] = decodeUpper
	d.major[OpcodeMiscMem] = decodeMiscMem
	d.major[OpcodeSystem] = decodeSystem
	return d
}

// Decode decodes a 32-bit RV32 instruction word. An unmatched bit pattern
// at any level yields an instruction with Op == OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Word:   word,
		Opcode: uint8(word & 0x7F),
		Rd:     uint8((word >> 7) & 0x1F),
		Funct3: uint8((word >> 12) & 0x7),
		Rs1:    uint8((word >> 15) & 0x1F),
		Rs2:    uint8((word >> 20) & 0x1F),
		Funct7: uint8(word >> 25),
	}

	sub := d.major[inst.Opcode]
	if sub == nil || !sub(word, inst) {
		inst.Op = OpUnknown
		inst.Format = FormatUnknown
		inst.Class = ClassOther
	}

	return inst
}

type opEntry struct {
	op    Op
	class Class
}

// funct3 → op for OP-IMM, ignoring the shifts which also need funct7.
var opImmTable = map[uint8]opEntry{
	0b000: {OpADDI, ClassArith},
	0b010: {OpSLTI, ClassArith},
	0b011: {OpSLTIU, ClassArith},
	0b100: {OpXORI, ClassLogical},
	0b110: {OpORI, ClassLogical},
	0b111: {OpANDI, ClassLogical},
}

// funct7<<3 | funct3 → op for OP-IMM shifts.
var opImmShiftTable = map[uint16]opEntry{
	uint16(Funct7Base)<<3 | 0b001: {OpSLLI, ClassShift},
	uint16(Funct7Base)<<3 | 0b101: {OpSRLI, ClassShift},
	uint16(Funct7Alt)<<3 | 0b101:  {OpSRAI, ClassShift},
}

// funct7<<3 | funct3 → op for OP.
var opTable = map[uint16]opEntry{
	uint16(Funct7Base)<<3 | 0b000:   {OpADD, ClassArith},
	uint16(Funct7Alt)<<3 | 0b000:    {OpSUB, ClassArith},
	uint16(Funct7Base)<<3 | 0b001:   {OpSLL, ClassShift},
	uint16(Funct7Base)<<3 | 0b010:   {OpSLT, ClassArith},
	uint16(Funct7Base)<<3 | 0b011:   {OpSLTU, ClassArith},
	uint16(Funct7Base)<<3 | 0b100:   {OpXOR, ClassLogical},
	uint16(Funct7Base)<<3 | 0b101:   {OpSRL, ClassShift},
	uint16(Funct7Alt)<<3 | 0b101:    {OpSRA, ClassShift},
	uint16(Funct7Base)<<3 | 0b110:   {OpOR, ClassLogical},
	uint16(Funct7Base)<<3 | 0b111:   {OpAND, ClassLogical},
	uint16(Funct7MulDiv)<<3 | 0b000: {OpMUL, ClassMultDiv},
	uint16(Funct7MulDiv)<<3 | 0b001: {OpMULH, ClassMultDiv},
	uint16(Funct7MulDiv)<<3 | 0b010: {OpMULHSU, ClassMultDiv},
	uint16(Funct7MulDiv)<<3 | 0b011: {OpMULHU, ClassMultDiv},
	uint16(Funct7MulDiv)<<3 | 0b100: {OpDIV, ClassMultDiv},
	uint16(Funct7MulDiv)<<3 | 0b101: {OpDIVU, ClassMultDiv},
	uint16(Funct7MulDiv)<<3 | 0b110: {OpREM, ClassMultDiv},
	uint16(Funct7MulDiv)<<3 | 0b111: {OpREMU, ClassMultDiv},
}

var branchTable = [8]Op{
	0b000: OpBEQ, 0b001: OpBNE,
	0b100: OpBLT, 0b101: OpBGE,
	0b110: OpBLTU, 0b111: OpBGEU,
}

var loadTable = [8]Op{
	0b000: OpLB, 0b001: OpLH, 0b010: OpLW,
	0b100: OpLBU, 0b101: OpLHU,
}

var storeTable = [8]Op{
	0b000: OpSB, 0b001: OpSH, 0b010: OpSW,
}

var csrTable = [8]Op{
	0b001: OpCSRRW, 0b010: OpCSRRS, 0b011: OpCSRRC,
	0b101: OpCSRRWI, 0b110: OpCSRRSI, 0b111: OpCSRRCI,
}

// Immediate extraction, sign-extended to 32 bits.

func immI(word uint32) int32 {
	return int32(word) >> 20
}

func immS(word uint32) int32 {
	return (int32(word)>>25)<<5 | int32((word>>7)&0x1F)
}

func immB(word uint32) int32 {
	imm := (int32(word)>>31)<<12 |
		int32((word>>7)&0x1)<<11 |
		int32((word>>25)&0x3F)<<5 |
		int32((word>>8)&0xF)<<1
	return imm
}

func immU(word uint32) int32 {
	return int32(word & 0xFFFFF000)
}

func immJ(word uint32) int32 {
	imm := (int32(word)>>31)<<20 |
		int32((word>>12)&0xFF)<<12 |
		int32((word>>20)&0x1)<<11 |
		int32((word>>21)&0x3FF)<<1
	return imm
}

func decodeOpImm(word uint32, inst *Instruction) bool {
	inst.Format = FormatI

	if inst.Funct3 == 0b001 || inst.Funct3 == 0b101 {
		e, ok := opImmShiftTable[uint16(inst.Funct7)<<3|uint16(inst.Funct3)]
		if !ok {
			return false
		}
		inst.Op, inst.Class = e.op, e.class
		inst.Imm = int32(inst.Rs2) // shamt
		return true
	}

	e, ok := opImmTable[inst.Funct3]
	if !ok {
		return false
	}
	inst.Op, inst.Class = e.op, e.class
	inst.Imm = immI(word)

	if inst.Op == OpADDI && inst.Rd == 0 && inst.Rs1 == 0 && inst.Imm == 0 {
		inst.Class = ClassNop
	}
	return true
}

func decodeOp(word uint32, inst *Instruction) bool {
	inst.Format = FormatR

	e, ok := opTable[uint16(inst.Funct7)<<3|uint16(inst.Funct3)]
	if !ok {
		return false
	}
	inst.Op, inst.Class = e.op, e.class
	return true
}

func decodeBranch(word uint32, inst *Instruction) bool {
	op := branchTable[inst.Funct3]
	if op == OpUnknown {
		return false
	}
	inst.Op, inst.Format, inst.Class = op, FormatB, ClassBranch
	inst.Imm = immB(word)
	return true
}

func decodeLoad(word uint32, inst *Instruction) bool {
	op := loadTable[inst.Funct3]
	if op == OpUnknown {
		return false
	}
	inst.Op, inst.Format, inst.Class = op, FormatI, ClassLoad
	inst.Imm = immI(word)
	return true
}

func decodeStore(word uint32, inst *Instruction) bool {
	op := storeTable[inst.Funct3]
	if op == OpUnknown {
		return false
	}
	inst.Op, inst.Format, inst.Class = op, FormatS, ClassStore
	inst.Imm = immS(word)
	return true
}

func decodeJAL(word uint32, inst *Instruction) bool {
	inst.Op, inst.Format, inst.Class = OpJAL, FormatJ, ClassJump
	inst.Imm = immJ(word)
	return true
}

func decodeJALR(word uint32, inst *Instruction) bool {
	if inst.Funct3 != 0 {
		return false
	}
	inst.Op, inst.Format, inst.Class = OpJALR, FormatI, ClassJump
	inst.Imm = immI(word)
	return true
}

func decodeUpper(word uint32, inst *Instruction) bool {
	inst.Format, inst.Class = FormatU, ClassMove
	if inst.Opcode == OpcodeLUI {
		inst.Op = OpLUI
	} else {
		inst.Op = OpAUIPC
	}
	inst.Imm = immU(word)
	return true
}

func decodeMiscMem(word uint32, inst *Instruction) bool {
	inst.Format, inst.Class = FormatI, ClassNop
	switch inst.Funct3 {
	case 0b000:
		inst.Op = OpFENCE
	case 0b001:
		inst.Op = OpFENCEI
	default:
		return false
	}
	inst.Imm = immI(word)
	return true
}

// SYSTEM funct12 values for funct3 == 0.
const (
	funct12ECALL  = 0x000
	funct12EBREAK = 0x001
	funct12SRET   = 0x102
	funct12WFI    = 0x105
	funct12MRET   = 0x302

	funct7SFENCEVMA = 0x09
)

func decodeSystem(word uint32, inst *Instruction) bool {
	inst.Format, inst.Class = FormatI, ClassSystem

	if inst.Funct3 != 0 {
		op := csrTable[inst.Funct3]
		if op == OpUnknown {
			return false
		}
		inst.Op = op
		inst.CSR = uint16(word >> 20)
		if op == OpCSRRWI || op == OpCSRRSI || op == OpCSRRCI {
			inst.Imm = int32(inst.Rs1)
		}
		return true
	}

	if inst.Rd != 0 {
		return false
	}

	if inst.Funct7 == funct7SFENCEVMA {
		inst.Op = OpSFENCEVMA
		return true
	}

	if inst.Rs1 != 0 {
		return false
	}

	switch word >> 20 {
	case funct12ECALL:
		inst.Op = OpECALL
	case funct12EBREAK:
		inst.Op = OpEBREAK
	case funct12SRET:
		inst.Op = OpSRET
	case funct12WFI:
		inst.Op = OpWFI
	case funct12MRET:
		inst.Op = OpMRET
	default:
		return false
	}
	return true
}
