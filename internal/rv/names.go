package rv

import "strconv"

var opNames = map[Op]string{
	OpLUI: "LUI", OpAUIPC: "AUIPC", OpJAL: "JAL", OpJALR: "JALR",
	OpBEQ: "BEQ", OpBNE: "BNE", OpBLT: "BLT", OpBGE: "BGE", OpBLTU: "BLTU", OpBGEU: "BGEU",
	OpLB: "LB", OpLH: "LH", OpLW: "LW", OpLBU: "LBU", OpLHU: "LHU",
	OpSB: "SB", OpSH: "SH", OpSW: "SW",
	OpADDI: "ADDI", OpSLTI: "SLTI", OpSLTIU: "SLTIU", OpXORI: "XORI", OpORI: "ORI", OpANDI: "ANDI",
	OpSLLI: "SLLI", OpSRLI: "SRLI", OpSRAI: "SRAI",
	OpADD: "ADD", OpSUB: "SUB", OpSLL: "SLL", OpSLT: "SLT", OpSLTU: "SLTU",
	OpXOR: "XOR", OpSRL: "SRL", OpSRA: "SRA", OpOR: "OR", OpAND: "AND",
	OpFENCE: "FENCE", OpFENCEI: "FENCE.I", OpECALL: "ECALL", OpEBREAK: "EBREAK",
	OpLWU: "LWU", OpLD: "LD", OpSD: "SD",
	OpADDIW: "ADDIW", OpSLLIW: "SLLIW", OpSRLIW: "SRLIW", OpSRAIW: "SRAIW",
	OpADDW: "ADDW", OpSUBW: "SUBW", OpSLLW: "SLLW", OpSRLW: "SRLW", OpSRAW: "SRAW",
	OpCSRRW: "CSRRW", OpCSRRS: "CSRRS", OpCSRRC: "CSRRC",
	OpCSRRWI: "CSRRWI", OpCSRRSI: "CSRRSI", OpCSRRCI: "CSRRCI",
	OpMUL: "MUL", OpMULH: "MULH", OpMULHSU: "MULHSU", OpMULHU: "MULHU",
	OpDIV: "DIV", OpDIVU: "DIVU", OpREM: "REM", OpREMU: "REMU",
	OpMULW: "MULW", OpDIVW: "DIVW", OpDIVUW: "DIVUW", OpREMW: "REMW", OpREMUW: "REMUW",
	OpLRW: "LR.W", OpSCW: "SC.W",
	OpAMOSWAPW: "AMOSWAP.W", OpAMOADDW: "AMOADD.W", OpAMOXORW: "AMOXOR.W", OpAMOANDW: "AMOAND.W",
	OpAMOORW: "AMOOR.W", OpAMOMINW: "AMOMIN.W", OpAMOMAXW: "AMOMAX.W",
	OpAMOMINUW: "AMOMINU.W", OpAMOMAXUW: "AMOMAXU.W",
	OpLRD: "LR.D", OpSCD: "SC.D",
	OpAMOSWAPD: "AMOSWAP.D", OpAMOADDD: "AMOADD.D", OpAMOXORD: "AMOXOR.D", OpAMOANDD: "AMOAND.D",
	OpAMOORD: "AMOOR.D", OpAMOMIND: "AMOMIN.D", OpAMOMAXD: "AMOMAX.D",
	OpAMOMINUD: "AMOMINU.D", OpAMOMAXUD: "AMOMAXU.D",
	OpCZEROEQZ: "CZERO.EQZ", OpCZERONEZ: "CZERO.NEZ",
	OpANDN: "ANDN", OpORN: "ORN", OpXNOR: "XNOR",
	OpCLZ: "CLZ", OpCLZW: "CLZW", OpCTZ: "CTZ", OpCTZW: "CTZW", OpCPOP: "CPOP", OpCPOPW: "CPOPW",
	OpMAX: "MAX", OpMAXU: "MAXU", OpMIN: "MIN", OpMINU: "MINU",
	OpSEXTB: "SEXT.B", OpSEXTH: "SEXT.H", OpZEXTH: "ZEXT.H",
	OpROL: "ROL", OpROLW: "ROLW", OpROR: "ROR", OpRORW: "RORW", OpRORI: "RORI", OpRORIW: "RORIW",
	OpBCLR: "BCLR", OpBEXT: "BEXT", OpBINV: "BINV", OpBSET: "BSET",
	OpSH1ADD: "SH1ADD", OpSH2ADD: "SH2ADD", OpSH3ADD: "SH3ADD",
	OpSH1ADDUW: "SH1ADD.UW", OpSH2ADDUW: "SH2ADD.UW", OpSH3ADDUW: "SH3ADD.UW",
	OpADDUW: "ADD.UW", OpSLLIUW: "SLLI.UW", OpREV8: "REV8", OpORCB: "ORC.B",
}

// String returns the canonical assembly mnemonic for o, or a numeric
// fallback for a tag with no name (only possible for a corrupted Op).
func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "op#" + strconv.Itoa(int(o))
}
