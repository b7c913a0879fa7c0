package rv

// Op is a dense small-integer opcode tag. Values are grouped by extension
// family so a range check can answer "which table does this belong to"
// without a map lookup; the lifter switches on Op directly.
type Op uint16

const (
	OpInvalid Op = iota

	// RV32I base
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
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
	OpFENCE
	OpFENCEI
	OpECALL
	OpEBREAK

	// RV64I additions
	OpLWU
	OpLD
	OpSD
	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	// Zicsr
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// M extension
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	// A extension
	OpLRW
	OpSCW
	OpAMOSWAPW
	OpAMOADDW
	OpAMOXORW
	OpAMOANDW
	OpAMOORW
	OpAMOMINW
	OpAMOMAXW
	OpAMOMINUW
	OpAMOMAXUW
	OpLRD
	OpSCD
	OpAMOSWAPD
	OpAMOADDD
	OpAMOXORD
	OpAMOANDD
	OpAMOORD
	OpAMOMIND
	OpAMOMAXD
	OpAMOMINUD
	OpAMOMAXUD

	// Zicond
	OpCZEROEQZ
	OpCZERONEZ

	// Zb* subset (Zba/Zbb/Zbs)
	OpANDN
	OpORN
	OpXNOR
	OpCLZ
	OpCLZW
	OpCTZ
	OpCTZW
	OpCPOP
	OpCPOPW
	OpMAX
	OpMAXU
	OpMIN
	OpMINU
	OpSEXTB
	OpSEXTH
	OpZEXTH
	OpROL
	OpROLW
	OpROR
	OpRORW
	OpRORI
	OpRORIW
	OpBCLR
	OpBEXT
	OpBINV
	OpBSET
	OpSH1ADD
	OpSH2ADD
	OpSH3ADD
	OpSH1ADDUW
	OpSH2ADDUW
	OpSH3ADDUW
	OpADDUW
	OpSLLIUW
	OpREV8
	OpORCB

	opCount
)

// AMOOrdering carries the aq/rl bits of an atomic instruction. The decoder
// records them in Inst; the lifter does not carry them into the IR, which
// has no ordering field, so no emitter honors them.
type AMOOrdering struct {
	Acquire  bool
	Release bool
}

// Inst is a decoded instruction: a tagged record with up to three register
// operands, a sign-extended immediate, a shift amount, a CSR number, and AMO
// ordering bits. Fields not meaningful for a given Op are left zero.
type Inst struct {
	Op       Op
	PC       uint64
	Len      int // encoded width in bytes: 2 or 4
	Rd       uint8
	Rs1      uint8
	Rs2      uint8
	Imm      int64 // sign-extended to 64 bits regardless of XLEN
	Shamt    uint8
	CSR      uint16
	Ordering AMOOrdering
	// Raw is the original encoded bits (the 16-bit parcel for compressed
	// forms); nothing in the pipeline or tests reads it.
	Raw uint32
}

// IsWidthSensitive reports whether Op is only valid when XLEN==64 (the
// "*W" forms plus LD/SD/LWU).
func (o Op) IsWidthSensitive() bool {
	switch o {
	case OpLWU, OpLD, OpSD,
		OpADDIW, OpSLLIW, OpSRLIW, OpSRAIW,
		OpADDW, OpSUBW, OpSLLW, OpSRLW, OpSRAW,
		OpMULW, OpDIVW, OpDIVUW, OpREMW, OpREMUW,
		OpLRD, OpSCD, OpAMOSWAPD, OpAMOADDD, OpAMOXORD, OpAMOANDD,
		OpAMOORD, OpAMOMIND, OpAMOMAXD, OpAMOMINUD, OpAMOMAXUD,
		OpCLZW, OpCTZW, OpCPOPW, OpROLW, OpRORW, OpRORIW,
		OpSH1ADDUW, OpSH2ADDUW, OpSH3ADDUW, OpADDUW, OpSLLIUW:
		return true
	default:
		return false
	}
}
