// Package insts provides RV32IM instruction definitions and decoding.
//
// This package implements decoding of RISC-V machine code into structured
// instruction representations. It supports:
//   - RV32I base integer instructions (OP, OP-IMM, LUI, AUIPC, JAL, JALR,
//     BRANCH, LOAD, STORE, MISC-MEM)
//   - The M extension multiply/divide/remainder forms
//   - Privileged SYSTEM instructions: ECALL, EBREAK, MRET, SRET, WFI,
//     SFENCE.VMA and the Zicsr CSR instructions
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00500093) // ADDI x1, x0, 5
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts
