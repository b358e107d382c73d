package emu

import "github.com/sarchlab/rvpe/insts"

// execOutcome is what an executor reports back to the core loop.
type execOutcome struct {
	fault  *Fault
	jumped bool
	wait   bool
}

type executor func(e *Emulator, inst *insts.Instruction) execOutcome

var executors [insts.NumOps]executor

func init() {
	for _, op := range []insts.Op{
		insts.OpADD, insts.OpSUB, insts.OpSLL, insts.OpSLT, insts.OpSLTU,
		insts.OpXOR, insts.OpSRL, insts.OpSRA, insts.OpOR, insts.OpAND,
		insts.OpMUL, insts.OpMULH, insts.OpMULHSU, insts.OpMULHU,
		insts.OpDIV, insts.OpDIVU, insts.OpREM, insts.OpREMU,
	} {
		executors[op] = execRegReg
	}

	for _, op := range []insts.Op{
		insts.OpADDI, insts.OpSLTI, insts.OpSLTIU, insts.OpXORI,
		insts.OpORI, insts.OpANDI, insts.OpSLLI, insts.OpSRLI, insts.OpSRAI,
	} {
		executors[op] = execRegImm
	}

	for _, op := range []insts.Op{
		insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGE, insts.OpBLTU, insts.OpBGEU,
	} {
		executors[op] = execBranch
	}

	for _, op := range []insts.Op{
		insts.OpLB, insts.OpLH, insts.OpLW, insts.OpLBU, insts.OpLHU,
	} {
		executors[op] = execLoad
	}

	for _, op := range []insts.Op{insts.OpSB, insts.OpSH, insts.OpSW} {
		executors[op] = execStore
	}

	for _, op := range []insts.Op{
		insts.OpCSRRW, insts.OpCSRRS, insts.OpCSRRC,
		insts.OpCSRRWI, insts.OpCSRRSI, insts.OpCSRRCI,
	} {
		executors[op] = execCSR
	}

	executors[insts.OpLUI] = execLUI
	executors[insts.OpAUIPC] = execAUIPC
	executors[insts.OpJAL] = execJAL
	executors[insts.OpJALR] = execJALR
	executors[insts.OpFENCE] = execNop
	executors[insts.OpFENCEI] = execNop
	executors[insts.OpECALL] = execECALL
	executors[insts.OpEBREAK] = execEBREAK
	executors[insts.OpMRET] = execMRET
	executors[insts.OpSRET] = execSRET
	executors[insts.OpWFI] = execWFI
	executors[insts.OpSFENCEVMA] = execSFENCEVMA
}

func illegal(inst *insts.Instruction) execOutcome {
	return execOutcome{fault: &Fault{Code: ExcIllegalInstruction, Tval: inst.Word}}
}

func execNop(*Emulator, *insts.Instruction) execOutcome {
	return execOutcome{}
}

func execRegReg(e *Emulator, inst *insts.Instruction) execOutcome {
	e.alu.RegReg(inst.Op, inst.Rd, inst.Rs1, inst.Rs2)
	return execOutcome{}
}

func execRegImm(e *Emulator, inst *insts.Instruction) execOutcome {
	e.alu.RegImm(inst.Op, inst.Rd, inst.Rs1, inst.Imm)
	return execOutcome{}
}

func execLUI(e *Emulator, inst *insts.Instruction) execOutcome {
	e.regFile.WriteReg(inst.Rd, uint32(inst.Imm))
	return execOutcome{}
}

func execAUIPC(e *Emulator, inst *insts.Instruction) execOutcome {
	e.regFile.WriteReg(inst.Rd, e.regFile.PC+uint32(inst.Imm))
	return execOutcome{}
}

func execJAL(e *Emulator, inst *insts.Instruction) execOutcome {
	f := e.branchUnit.JAL(inst.Rd, inst.Imm)
	return execOutcome{fault: f, jumped: f == nil}
}

func execJALR(e *Emulator, inst *insts.Instruction) execOutcome {
	f := e.branchUnit.JALR(inst.Rd, inst.Rs1, inst.Imm)
	return execOutcome{fault: f, jumped: f == nil}
}

func execBranch(e *Emulator, inst *insts.Instruction) execOutcome {
	taken, f := e.branchUnit.Branch(inst.Op, inst.Rs1, inst.Rs2, inst.Imm)
	return execOutcome{fault: f, jumped: taken && f == nil}
}

func execLoad(e *Emulator, inst *insts.Instruction) execOutcome {
	f := e.lsu.Load(inst.Op, inst.Rd, inst.Rs1, inst.Imm, e.dataPrivilege())
	return execOutcome{fault: f}
}

func execStore(e *Emulator, inst *insts.Instruction) execOutcome {
	f := e.lsu.Store(inst.Op, inst.Rs1, inst.Rs2, inst.Imm, e.dataPrivilege())
	return execOutcome{fault: f}
}

func execCSR(e *Emulator, inst *insts.Instruction) execOutcome {
	var src uint32
	switch inst.Op {
	case insts.OpCSRRWI, insts.OpCSRRSI, insts.OpCSRRCI:
		src = uint32(inst.Imm)
	default:
		src = e.regFile.ReadReg(inst.Rs1)
	}

	isWrite := inst.Op == insts.OpCSRRW || inst.Op == insts.OpCSRRWI
	doRead := !isWrite || inst.Rd != 0
	doWrite := isWrite || inst.Rs1 != 0

	var old uint32
	if doRead {
		v, ok := e.csr.Read(inst.CSR, e.priv)
		if !ok {
			return illegal(inst)
		}
		old = v
	}

	if doWrite {
		next := src
		switch inst.Op {
		case insts.OpCSRRS, insts.OpCSRRSI:
			next = old | src
		case insts.OpCSRRC, insts.OpCSRRCI:
			next = old &^ src
		}
		if !e.csr.Write(inst.CSR, next, e.priv) {
			return illegal(inst)
		}
	}

	e.regFile.WriteReg(inst.Rd, old)
	return execOutcome{}
}

func execECALL(e *Emulator, _ *insts.Instruction) execOutcome {
	code := ExcEcallFromMMode
	switch e.priv {
	case PrivUser:
		code = ExcEcallFromUMode
	case PrivSupervisor:
		code = ExcEcallFromSMode
	}
	return execOutcome{fault: &Fault{Code: code}}
}

func execEBREAK(e *Emulator, _ *insts.Instruction) execOutcome {
	return execOutcome{fault: &Fault{Code: ExcBreakpoint, Tval: e.regFile.PC}}
}

func execMRET(e *Emulator, inst *insts.Instruction) execOutcome {
	if e.priv != PrivMachine {
		return illegal(inst)
	}
	e.returnFromTrap(PrivMachine)
	return execOutcome{jumped: true}
}

func execSRET(e *Emulator, inst *insts.Instruction) execOutcome {
	if e.priv == PrivUser || (e.priv == PrivSupervisor && e.csr.Mstatus.TSR()) {
		return illegal(inst)
	}
	e.returnFromTrap(PrivSupervisor)
	return execOutcome{jumped: true}
}

func execWFI(e *Emulator, inst *insts.Instruction) execOutcome {
	if e.priv == PrivUser || (e.priv == PrivSupervisor && e.csr.Mstatus.TW()) {
		return illegal(inst)
	}
	return execOutcome{wait: true}
}

func execSFENCEVMA(e *Emulator, inst *insts.Instruction) execOutcome {
	if e.priv == PrivUser || (e.priv == PrivSupervisor && e.csr.Mstatus.TVM()) {
		return illegal(inst)
	}
	return execOutcome{}
}
