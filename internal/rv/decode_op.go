package rv

// opKey packs funct7 and funct3 into one lookup key for the OP (R-type)
// table, mirroring the riscv-spec funct7||funct3 grouping.
func opKey(funct7, funct3 uint32) uint32 { return funct7<<3 | funct3 }

var opTable = map[uint32]Op{
	opKey(0x00, 0): OpADD, opKey(0x20, 0): OpSUB,
	opKey(0x00, 1): OpSLL,
	opKey(0x00, 2): OpSLT,
	opKey(0x00, 3): OpSLTU,
	opKey(0x00, 4): OpXOR,
	opKey(0x00, 5): OpSRL, opKey(0x20, 5): OpSRA,
	opKey(0x00, 6): OpOR,
	opKey(0x00, 7): OpAND,

	// M extension
	opKey(0x01, 0): OpMUL,
	opKey(0x01, 1): OpMULH,
	opKey(0x01, 2): OpMULHSU,
	opKey(0x01, 3): OpMULHU,
	opKey(0x01, 4): OpDIV,
	opKey(0x01, 5): OpDIVU,
	opKey(0x01, 6): OpREM,
	opKey(0x01, 7): OpREMU,

	// Zbb
	opKey(0x20, 7): OpANDN,
	opKey(0x20, 6): OpORN,
	opKey(0x20, 4): OpXNOR,
	opKey(0x05, 4): OpMIN,
	opKey(0x05, 5): OpMINU,
	opKey(0x05, 6): OpMAX,
	opKey(0x05, 7): OpMAXU,
	opKey(0x30, 1): OpROL,
	opKey(0x30, 5): OpROR,

	// Zbs (register forms)
	opKey(0x24, 1): OpBCLR,
	opKey(0x24, 5): OpBEXT,
	opKey(0x34, 1): OpBINV,
	opKey(0x14, 1): OpBSET,

	// Zba
	opKey(0x10, 2): OpSH1ADD,
	opKey(0x10, 4): OpSH2ADD,
	opKey(0x10, 6): OpSH3ADD,

	// Zicond
	opKey(0x07, 5): OpCZEROEQZ,
	opKey(0x07, 7): OpCZERONEZ,

	// ZEXT.H shares OP space on RV32 (it moves to OP-32 on RV64); rs2
	// must be zero, checked after lookup.
	opKey(0x04, 4): OpZEXTH,
}

func decodeOp(pc uint64, w uint32, funct3, funct7 uint32, rd, rs1, rs2 uint8, exts ExtensionSet) (Inst, error) {
	op, ok := opTable[opKey(funct7, funct3)]
	if !ok {
		return Inst{}, illegal(pc, rawBytes(w), "unknown OP funct7/funct3 combination")
	}
	if op == OpZEXTH && rs2 != 0 {
		return Inst{}, illegal(pc, rawBytes(w), "ZEXT.H encodes rs2=0")
	}
	if needsExt(op) != ExtI && !exts.Has(needsExt(op)) {
		return Inst{}, unsupported(pc, rawBytes(w), op.String()+" requires an extension not admitted")
	}
	return Inst{PC: pc, Len: 4, Raw: w, Op: op, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
}

var op32Table = map[uint32]Op{
	opKey(0x00, 0): OpADDW, opKey(0x20, 0): OpSUBW,
	opKey(0x00, 1): OpSLLW,
	opKey(0x00, 5): OpSRLW, opKey(0x20, 5): OpSRAW,
	opKey(0x01, 0): OpMULW,
	opKey(0x01, 4): OpDIVW,
	opKey(0x01, 5): OpDIVUW,
	opKey(0x01, 6): OpREMW,
	opKey(0x01, 7): OpREMUW,
	opKey(0x30, 1): OpROLW,
	opKey(0x30, 5): OpRORW,
	opKey(0x04, 0): OpADDUW,
	opKey(0x04, 4): OpZEXTH,
	opKey(0x10, 2): OpSH1ADDUW,
	opKey(0x10, 4): OpSH2ADDUW,
	opKey(0x10, 6): OpSH3ADDUW,
}

func decodeOp32(pc uint64, w uint32, funct3, funct7 uint32, rd, rs1, rs2 uint8, exts ExtensionSet) (Inst, error) {
	op, ok := op32Table[opKey(funct7, funct3)]
	if !ok {
		return Inst{}, illegal(pc, rawBytes(w), "unknown OP-32 funct7/funct3 combination")
	}
	if op == OpZEXTH && rs2 != 0 {
		return Inst{}, illegal(pc, rawBytes(w), "ZEXT.H encodes rs2=0")
	}
	if needsExt(op) != ExtI && !exts.Has(needsExt(op)) {
		return Inst{}, unsupported(pc, rawBytes(w), op.String()+" requires an extension not admitted")
	}
	return Inst{PC: pc, Len: 4, Raw: w, Op: op, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
}

// needsExt answers, for an already-decoded opcode, which extension gates it
// beyond the base check already done by the caller (used to reject e.g. a
// ROL decoded from bit patterns when Zb was not admitted).
func needsExt(op Op) Extension {
	switch op {
	case OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU,
		OpMULW, OpDIVW, OpDIVUW, OpREMW, OpREMUW:
		return ExtM
	case OpCZEROEQZ, OpCZERONEZ:
		return ExtZicond
	case OpANDN, OpORN, OpXNOR, OpMIN, OpMINU, OpMAX, OpMAXU, OpROL, OpROR,
		OpROLW, OpRORW, OpBCLR, OpBEXT, OpBINV, OpBSET,
		OpSH1ADD, OpSH2ADD, OpSH3ADD, OpSH1ADDUW, OpSH2ADDUW, OpSH3ADDUW, OpADDUW,
		OpCLZ, OpCLZW, OpCTZ, OpCTZW, OpCPOP, OpCPOPW, OpSEXTB, OpSEXTH, OpZEXTH,
		OpRORI, OpRORIW, OpREV8, OpORCB, OpSLLIUW:
		return ExtZb
	default:
		return ExtI
	}
}
