package benchmarks

import (
	"github.com/sarchlab/rvpe/emu"
	"github.com/sarchlab/rvpe/insts"
)

// ABI register numbers used by the benchmark programs.
const (
	zero = 0
	ra   = 1
	t0   = 5
	t1   = 6
	t2   = 7
	a0   = 10
	a1   = 11
	a2   = 12
	a3   = 13
	a4   = 14
	s2   = 18
	s3   = 19
	s4   = 20
	s5   = 21
)

// dataAddr is where benchmarks keep their data.
const dataAddr = 0x8000

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each
// benchmark targets one cost of the core loop and leaves its result in a0.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchLoop(),
		mixedOperations(),
		matrixMultiply2x2(),
		trapRoundTrip(),
		divideChain(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: a loop,
// a matrix multiply and a trap-heavy program.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		branchLoop(),
		matrixMultiply2x2(),
		trapRoundTrip(),
	}
}

// halt is the self loop every benchmark ends with.
func halt() uint32 {
	return insts.Encode(insts.OpJAL, zero, 0, 0, 0)
}

func addi(rd, rs1 uint8, imm int32) uint32 {
	return insts.Encode(insts.OpADDI, rd, rs1, 0, imm)
}

func rtype(op insts.Op, rd, rs1, rs2 uint8) uint32 {
	return insts.Encode(op, rd, rs1, rs2, 0)
}

// 1. Arithmetic Sequential - independent ALU operations
func arithmeticSequential() Benchmark {
	instrs := make([]uint32, 0, 21)
	for i := 0; i < 20; i++ {
		r := uint8(a0 + i%5)
		instrs = append(instrs, addi(r, r, 1))
	}
	instrs = append(instrs, halt())

	return Benchmark{
		Name:           "arithmetic_sequential",
		Description:    "20 independent ADDIs over 5 registers - measures ALU cost",
		Program:        BuildProgram(instrs...),
		ExpectedResult: 4,
	}
}

// 2. Dependency Chain - each ADDI reads the previous result
func dependencyChain() Benchmark {
	return Benchmark{
		Name:           "dependency_chain",
		Description:    "20 dependent ADDIs (a0 = a0 + 1)",
		Program:        buildDependencyChain(20),
		ExpectedResult: 20,
	}
}

func buildDependencyChain(n int) []byte {
	instrs := make([]uint32, 0, n+1)
	for i := 0; i < n; i++ {
		instrs = append(instrs, addi(a0, a0, 1))
	}
	instrs = append(instrs, halt())
	return BuildProgram(instrs...)
}

// 3. Memory Sequential - store/load pairs
func memorySequential() Benchmark {
	instrs := make([]uint32, 0, 21)
	for i := int32(0); i < 10; i++ {
		instrs = append(instrs,
			insts.Encode(insts.OpSW, 0, a1, a0, 4*i),
			insts.Encode(insts.OpLW, a0, a1, 0, 4*i),
		)
	}
	instrs = append(instrs, halt())

	return Benchmark{
		Name:        "memory_sequential",
		Description: "10 SW/LW pairs to sequential words - measures bus latency",
		Setup: func(e *emu.Emulator) {
			e.RegFile().WriteReg(a1, dataAddr)
			e.RegFile().WriteReg(a0, 42)
		},
		Program:        BuildProgram(instrs...),
		ExpectedResult: 42,
	}
}

// 4. Function Calls - JAL/JALR pairs
func functionCalls() Benchmark {
	instrs := make([]uint32, 0, 8)
	for i := int32(0); i < 5; i++ {
		instrs = append(instrs, insts.Encode(insts.OpJAL, ra, 0, 0, (6-i)*4))
	}
	instrs = append(instrs,
		halt(),
		// add_one
		addi(a0, a0, 1),
		insts.Encode(insts.OpJALR, zero, ra, 0, 0),
	)

	return Benchmark{
		Name:           "function_calls",
		Description:    "5 calls to a one-instruction function - measures call overhead",
		Program:        BuildProgram(instrs...),
		ExpectedResult: 5,
	}
}

// 5. Branch Loop - a counted loop closed by BNE
func branchLoop() Benchmark {
	return Benchmark{
		Name:        "branch_loop",
		Description: "10-iteration counted loop - measures taken branch cost",
		Program: BuildProgram(
			addi(a1, zero, 10),
			// loop:
			addi(a0, a0, 1),
			addi(a1, a1, -1),
			insts.Encode(insts.OpBNE, 0, a1, zero, -8),
			halt(),
		),
		ExpectedResult: 10,
	}
}

// 6. Mixed Operations - ALU, multiply/divide and memory
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "MUL, DIV, REM, SW and LW - a small realistic mix",
		Setup: func(e *emu.Emulator) {
			e.RegFile().WriteReg(a4, dataAddr)
		},
		Program: BuildProgram(
			addi(a1, zero, 6),
			addi(a2, zero, 7),
			rtype(insts.OpMUL, a0, a1, a2),         // 42
			rtype(insts.OpDIV, a3, a0, a1),         // 7
			insts.Encode(insts.OpSW, 0, a4, a3, 0), // [data] = 7
			insts.Encode(insts.OpLW, t0, a4, 0, 0), // t0 = 7
			rtype(insts.OpADD, a0, a0, t0),         // 49
			rtype(insts.OpREM, t1, a0, a1),         // 49 % 6 = 1
			rtype(insts.OpADD, a0, a0, t1),         // 50
			halt(),
		),
		ExpectedResult: 50,
	}
}

// 7. Matrix Multiply - C = A x B for 2x2 word matrices, a0 = sum(C)
func matrixMultiply2x2() Benchmark {
	lw := func(rd uint8, off int32) uint32 {
		return insts.Encode(insts.OpLW, rd, a1, 0, off)
	}
	sw := func(rs uint8, off int32) uint32 {
		return insts.Encode(insts.OpSW, 0, a2, rs, off)
	}
	// dot computes rd = x*y + z*w using t2 as scratch.
	dot := func(rd, x, y, z, w uint8) []uint32 {
		return []uint32{
			rtype(insts.OpMUL, rd, x, y),
			rtype(insts.OpMUL, t2, z, w),
			rtype(insts.OpADD, rd, rd, t2),
		}
	}

	instrs := []uint32{
		// A into t0, t1, a3, a4; B into s2..s5
		lw(t0, 0), lw(t1, 4), lw(a3, 8), lw(a4, 12),
		lw(s2, 16), lw(s3, 20), lw(s4, 24), lw(s5, 28),
	}
	c := []struct {
		x, y, z, w uint8
	}{
		{t0, s2, t1, s4}, // C00
		{t0, s3, t1, s5}, // C01
		{a3, s2, a4, s4}, // C10
		{a3, s3, a4, s5}, // C11
	}
	for i, m := range c {
		instrs = append(instrs, dot(ra, m.x, m.y, m.z, m.w)...)
		instrs = append(instrs,
			sw(ra, int32(4*i)),
			rtype(insts.OpADD, a0, a0, ra),
		)
	}
	instrs = append(instrs, halt())

	return Benchmark{
		Name:        "matrix_multiply_2x2",
		Description: "2x2 matrix multiply from memory - loads, MULs and stores",
		Setup: func(e *emu.Emulator) {
			// A = [1 2; 3 4], B = [5 6; 7 8]
			for i, v := range []uint32{1, 2, 3, 4, 5, 6, 7, 8} {
				e.Memory().Write32(dataAddr+uint32(4*i), v, 0xF)
			}
			e.RegFile().WriteReg(a1, dataAddr)
			e.RegFile().WriteReg(a2, dataAddr+0x100)
		},
		Program: BuildProgram(instrs...),
		// C = [19 22; 43 50]
		ExpectedResult: 134,
	}
}

// 8. Trap Round Trip - ECALL into a machine handler and MRET back
func trapRoundTrip() Benchmark {
	const handler = 6 * 4

	instrs := make([]uint32, 0, 11)
	for i := 0; i < 5; i++ {
		instrs = append(instrs, insts.Encode(insts.OpECALL, 0, 0, 0, 0))
	}
	instrs = append(instrs,
		halt(),
		// handler: count, then return past the ECALL
		addi(a0, a0, 1),
		insts.EncodeCSR(insts.OpCSRRS, t0, zero, emu.CSRMepc),
		addi(t0, t0, 4),
		insts.EncodeCSR(insts.OpCSRRW, zero, t0, emu.CSRMepc),
		insts.Encode(insts.OpMRET, 0, 0, 0, 0),
	)

	return Benchmark{
		Name:        "trap_round_trip",
		Description: "5 ECALL/MRET round trips - measures trap entry and return",
		Setup: func(e *emu.Emulator) {
			e.CSR().Mtvec.Write(ProgramAddr + handler)
		},
		Program:        BuildProgram(instrs...),
		ExpectedResult: 5,
	}
}

// 9. Divide Chain - dependent divisions
func divideChain() Benchmark {
	instrs := []uint32{
		insts.Encode(insts.OpLUI, a0, 0, 0, 0x100000), // a0 = 0x100000
		addi(a1, zero, 2),
	}
	for i := 0; i < 10; i++ {
		instrs = append(instrs, rtype(insts.OpDIVU, a0, a0, a1))
	}
	instrs = append(instrs, halt())

	return Benchmark{
		Name:           "divide_chain",
		Description:    "10 dependent DIVUs - measures divider latency",
		Program:        BuildProgram(instrs...),
		ExpectedResult: 0x100000 >> 10,
	}
}
