package insts

import "fmt"

type encoding struct {
	opcode  uint8
	funct3  uint8
	funct7  uint8
	format  Format
	funct12 uint16
}

var encodings = map[Op]encoding{
	OpLUI:   {opcode: OpcodeLUI, format: FormatU},
	OpAUIPC: {opcode: OpcodeAUIPC, format: FormatU},
	OpJAL:   {opcode: OpcodeJAL, format: FormatJ},
	OpJALR:  {opcode: OpcodeJALR, format: FormatI},

	OpBEQ:  {opcode: OpcodeBranch, funct3: 0b000, format: FormatB},
	OpBNE:  {opcode: OpcodeBranch, funct3: 0b001, format: FormatB},
	OpBLT:  {opcode: OpcodeBranch, funct3: 0b100, format: FormatB},
	OpBGE:  {opcode: OpcodeBranch, funct3: 0b101, format: FormatB},
	OpBLTU: {opcode: OpcodeBranch, funct3: 0b110, format: FormatB},
	OpBGEU: {opcode: OpcodeBranch, funct3: 0b111, format: FormatB},

	OpLB:  {opcode: OpcodeLoad, funct3: 0b000, format: FormatI},
	OpLH:  {opcode: OpcodeLoad, funct3: 0b001, format: FormatI},
	OpLW:  {opcode: OpcodeLoad, funct3: 0b010, format: FormatI},
	OpLBU: {opcode: OpcodeLoad, funct3: 0b100, format: FormatI},
	OpLHU: {opcode: OpcodeLoad, funct3: 0b101, format: FormatI},
	OpSB:  {opcode: OpcodeStore, funct3: 0b000, format: FormatS},
	OpSH:  {opcode: OpcodeStore, funct3: 0b001, format: FormatS},
	OpSW:  {opcode: OpcodeStore, funct3: 0b010, format: FormatS},

	OpADDI:  {opcode: OpcodeOpImm, funct3: 0b000, format: FormatI},
	OpSLTI:  {opcode: OpcodeOpImm, funct3: 0b010, format: FormatI},
	OpSLTIU: {opcode: OpcodeOpImm, funct3: 0b011, format: FormatI},
	OpXORI:  {opcode: OpcodeOpImm, funct3: 0b100, format: FormatI},
	OpORI:   {opcode: OpcodeOpImm, funct3: 0b110, format: FormatI},
	OpANDI:  {opcode: OpcodeOpImm, funct3: 0b111, format: FormatI},
	OpSLLI:  {opcode: OpcodeOpImm, funct3: 0b001, funct7: Funct7Base, format: FormatR},
	OpSRLI:  {opcode: OpcodeOpImm, funct3: 0b101, funct7: Funct7Base, format: FormatR},
	OpSRAI:  {opcode: OpcodeOpImm, funct3: 0b101, funct7: Funct7Alt, format: FormatR},

	OpADD:  {opcode: OpcodeOp, funct3: 0b000, funct7: Funct7Base, format: FormatR},
	OpSUB:  {opcode: OpcodeOp, funct3: 0b000, funct7: Funct7Alt, format: FormatR},
	OpSLL:  {opcode: OpcodeOp, funct3: 0b001, funct7: Funct7Base, format: FormatR},
	OpSLT:  {opcode: OpcodeOp, funct3: 0b010, funct7: Funct7Base, format: FormatR},
	OpSLTU: {opcode: OpcodeOp, funct3: 0b011, funct7: Funct7Base, format: FormatR},
	OpXOR:  {opcode: OpcodeOp, funct3: 0b100, funct7: Funct7Base, format: FormatR},
	OpSRL:  {opcode: OpcodeOp, funct3: 0b101, funct7: Funct7Base, format: FormatR},
	OpSRA:  {opcode: OpcodeOp, funct3: 0b101, funct7: Funct7Alt, format: FormatR},
	OpOR:   {opcode: OpcodeOp, funct3: 0b110, funct7: Funct7Base, format: FormatR},
	OpAND:  {opcode: OpcodeOp, funct3: 0b111, funct7: Funct7Base, format: FormatR},

	OpMUL:    {opcode: OpcodeOp, funct3: 0b000, funct7: Funct7MulDiv, format: FormatR},
	OpMULH:   {opcode: OpcodeOp, funct3: 0b001, funct7: Funct7MulDiv, format: FormatR},
	OpMULHSU: {opcode: OpcodeOp, funct3: 0b010, funct7: Funct7MulDiv, format: FormatR},
	OpMULHU:  {opcode: OpcodeOp, funct3: 0b011, funct7: Funct7MulDiv, format: FormatR},
	OpDIV:    {opcode: OpcodeOp, funct3: 0b100, funct7: Funct7MulDiv, format: FormatR},
	OpDIVU:   {opcode: OpcodeOp, funct3: 0b101, funct7: Funct7MulDiv, format: FormatR},
	OpREM:    {opcode: OpcodeOp, funct3: 0b110, funct7: Funct7MulDiv, format: FormatR},
	OpREMU:   {opcode: OpcodeOp, funct3: 0b111, funct7: Funct7MulDiv, format: FormatR},

	OpFENCE:  {opcode: OpcodeMiscMem, funct3: 0b000, format: FormatI},
	OpFENCEI: {opcode: OpcodeMiscMem, funct3: 0b001, format: FormatI},

	OpECALL:     {opcode: OpcodeSystem, funct12: funct12ECALL},
	OpEBREAK:    {opcode: OpcodeSystem, funct12: funct12EBREAK},
	OpSRET:      {opcode: OpcodeSystem, funct12: funct12SRET},
	OpWFI:       {opcode: OpcodeSystem, funct12: funct12WFI},
	OpMRET:      {opcode: OpcodeSystem, funct12: funct12MRET},
	OpSFENCEVMA: {opcode: OpcodeSystem, funct7: funct7SFENCEVMA, format: FormatR},

	OpCSRRW:  {opcode: OpcodeSystem, funct3: 0b001},
	OpCSRRS:  {opcode: OpcodeSystem, funct3: 0b010},
	OpCSRRC:  {opcode: OpcodeSystem, funct3: 0b011},
	OpCSRRWI: {opcode: OpcodeSystem, funct3: 0b101},
	OpCSRRSI: {opcode: OpcodeSystem, funct3: 0b110},
	OpCSRRCI: {opcode: OpcodeSystem, funct3: 0b111},
}

// Encode assembles an instruction word. Fields that the operation's
// format does not use are ignored. For shift-immediates imm is the shift
// amount. Panics on an operation that has no encoding.
func Encode(op Op, rd, rs1, rs2 uint8, imm int32) uint32 {
	e, ok := encodings[op]
	if !ok {
		panic(fmt.Sprintf("insts: no encoding for %v", op))
	}

	if e.opcode == OpcodeSystem && e.funct3 == 0 && e.format != FormatR {
		return uint32(e.funct12)<<20 | uint32(e.opcode)
	}

	rdF := uint32(rd&0x1F) << 7
	rs1F := uint32(rs1&0x1F) << 15
	rs2F := uint32(rs2&0x1F) << 20
	f3 := uint32(e.funct3) << 12
	op7 := uint32(e.opcode)
	u := uint32(imm)

	switch e.format {
	case FormatR:
		if e.opcode == OpcodeOpImm {
			rs2F = (u & 0x1F) << 20
		}
		return uint32(e.funct7)<<25 | rs2F | rs1F | f3 | rdF | op7
	case FormatI:
		return (u&0xFFF)<<20 | rs1F | f3 | rdF | op7
	case FormatS:
		return (u>>5&0x7F)<<25 | rs2F | rs1F | f3 | (u&0x1F)<<7 | op7
	case FormatB:
		return (u>>12&0x1)<<31 | (u>>5&0x3F)<<25 | rs2F | rs1F | f3 |
			(u>>1&0xF)<<8 | (u>>11&0x1)<<7 | op7
	case FormatU:
		return u&0xFFFFF000 | rdF | op7
	case FormatJ:
		return (u>>20&0x1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&0x1)<<20 |
			(u>>12&0xFF)<<12 | rdF | op7
	default:
		panic(fmt.Sprintf("insts: no format for %v", op))
	}
}

// EncodeCSR assembles a Zicsr instruction. For the immediate forms src is
// the 5-bit uimm, otherwise the source register.
func EncodeCSR(op Op, rd, src uint8, csr uint16) uint32 {
	e, ok := encodings[op]
	if !ok || e.opcode != OpcodeSystem || e.funct3 == 0 {
		panic(fmt.Sprintf("insts: %v is not a CSR instruction", op))
	}
	return uint32(csr&0xFFF)<<20 | uint32(src&0x1F)<<15 |
		uint32(e.funct3)<<12 | uint32(rd&0x1F)<<7 | uint32(e.opcode)
}

// NOP returns the canonical no-op, ADDI x0, x0, 0.
func NOP() uint32 {
	return Encode(OpADDI, 0, 0, 0, 0)
}
