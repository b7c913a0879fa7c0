package rv

// zbbSingleOperand maps the Zbb "unary" selector carried in what would
// otherwise be the rs2 field of an OP-IMM shift encoding (CLZ/CTZ/CPOP/
// SEXT.B/SEXT.H, and their *W counterparts).
var zbbSingleOperand = map[uint32]Op{0: OpCLZ, 1: OpCTZ, 2: OpCPOP, 4: OpSEXTB, 5: OpSEXTH}
var zbbSingleOperandW = map[uint32]Op{0: OpCLZW, 1: OpCTZW, 2: OpCPOPW}

// decodeOpImm handles OP-IMM: the arithmetic-immediate forms, the shift
// forms (SLLI/SRLI/SRAI), Zbb's RORI, and Zbb's unary bit-counting forms
// (CLZ/CTZ/CPOP/SEXT.B/SEXT.H), which alias the shift encoding space with a
// qualifier field above the shift amount.
func decodeOpImm(pc uint64, w uint32, xlen XLEN, funct3 uint32, rd, rs1 uint8, exts ExtensionSet) (Inst, error) {
	in := Inst{PC: pc, Len: 4, Raw: w, Rd: rd, Rs1: rs1}
	shiftBits := xlen.ShiftMaskBits()
	shamtMask := uint32(1)<<shiftBits - 1
	qualifier := w >> (20 + shiftBits)

	switch funct3 {
	case 0:
		in.Op = OpADDI
		in.Imm = signExtend(int64(w)>>20, 12)
	case 2:
		in.Op = OpSLTI
		in.Imm = signExtend(int64(w)>>20, 12)
	case 3:
		in.Op = OpSLTIU
		in.Imm = signExtend(int64(w)>>20, 12)
	case 4:
		in.Op = OpXORI
		in.Imm = signExtend(int64(w)>>20, 12)
	case 6:
		in.Op = OpORI
		in.Imm = signExtend(int64(w)>>20, 12)
	case 7:
		in.Op = OpANDI
		in.Imm = signExtend(int64(w)>>20, 12)
	case 1:
		if zbbQualifier(qualifier, shiftBits) {
			if !exts.Has(ExtZb) {
				return Inst{}, unsupported(pc, rawBytes(w), "Zbb unary op but Zb not admitted")
			}
			op, ok := zbbSingleOperand[w>>20&0x1f]
			if !ok {
				return Inst{}, illegal(pc, rawBytes(w), "unknown Zbb unary selector")
			}
			in.Op = op
			return in, nil
		}
		in.Op = OpSLLI
		in.Shamt = uint8(w >> 20 & shamtMask)
	case 5:
		// REV8 and ORC.B claim fixed imm12 values inside the shift
		// encoding space and must be matched before the shamt split.
		imm12 := w >> 20 & 0xfff
		rev8 := uint32(0x698) // imm12 for XLEN=32
		if xlen == XLEN64 {
			rev8 = 0x6b8
		}
		if imm12 == rev8 || imm12 == 0x287 {
			if !exts.Has(ExtZb) {
				return Inst{}, unsupported(pc, rawBytes(w), "REV8/ORC.B but Zb not admitted")
			}
			if imm12 == rev8 {
				in.Op = OpREV8
			} else {
				in.Op = OpORCB
			}
			return in, nil
		}
		if w>>30&1 == 1 && !zbbQualifier(qualifier, shiftBits) {
			in.Op = OpSRAI
		} else if zbbQualifier(qualifier, shiftBits) {
			if !exts.Has(ExtZb) {
				return Inst{}, unsupported(pc, rawBytes(w), "RORI but Zb not admitted")
			}
			in.Op = OpRORI
		} else {
			in.Op = OpSRLI
		}
		in.Shamt = uint8(w >> 20 & shamtMask)
	default:
		return Inst{}, illegal(pc, rawBytes(w), "unknown OP-IMM funct3")
	}
	return in, nil
}

// zbbQualifier reports whether the bits above the shift-amount field match
// the Zbb "011000..." designator (binary 0110000 scaled to the qualifier's
// width, which depends on how many low bits the shift amount itself used).
func zbbQualifier(qualifier uint32, shiftBits uint32) bool {
	switch shiftBits {
	case 5:
		return qualifier == 0x30 // 7-bit field, 0110000
	case 6:
		return qualifier == 0x18 // 6-bit field, 011000
	default:
		return false
	}
}

func decodeOpImm32(pc uint64, w uint32, funct3 uint32, rd, rs1 uint8, exts ExtensionSet) (Inst, error) {
	in := Inst{PC: pc, Len: 4, Raw: w, Rd: rd, Rs1: rs1}
	qualifier := w >> 25 // *W shift forms always use a 5-bit shamt, 7-bit qualifier

	switch funct3 {
	case 0:
		in.Op = OpADDIW
		in.Imm = signExtend(int64(w)>>20, 12)
	case 1:
		if qualifier == 0x30 {
			if !exts.Has(ExtZb) {
				return Inst{}, unsupported(pc, rawBytes(w), "Zbb unary *W op but Zb not admitted")
			}
			op, ok := zbbSingleOperandW[w>>20&0x1f]
			if !ok {
				return Inst{}, illegal(pc, rawBytes(w), "unknown Zbb unary *W selector")
			}
			in.Op = op
			return in, nil
		}
		// SLLI.UW carries a 6-bit shamt, so only the top 6 bits
		// designate it.
		if w>>26&0x3f == 0x02 {
			if !exts.Has(ExtZb) {
				return Inst{}, unsupported(pc, rawBytes(w), "SLLI.UW but Zb not admitted")
			}
			in.Op = OpSLLIUW
			in.Shamt = uint8(w >> 20 & 0x3f)
			return in, nil
		}
		in.Op = OpSLLIW
		in.Shamt = uint8(w >> 20 & 0x1f)
	case 5:
		switch {
		case qualifier == 0x30:
			if !exts.Has(ExtZb) {
				return Inst{}, unsupported(pc, rawBytes(w), "RORIW but Zb not admitted")
			}
			in.Op = OpRORIW
		case w>>30&1 == 1:
			in.Op = OpSRAIW
		default:
			in.Op = OpSRLIW
		}
		in.Shamt = uint8(w >> 20 & 0x1f)
	default:
		return Inst{}, illegal(pc, rawBytes(w), "unknown OP-IMM-32 funct3")
	}
	return in, nil
}
