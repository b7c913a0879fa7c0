package rv

// decodeSystem handles the SYSTEM opcode: ECALL/EBREAK (funct3=0, rs1=rd=0,
// distinguished by imm[11:0]) and the six CSR instructions (funct3!=0).
func decodeSystem(pc uint64, w uint32, funct3 uint32, rd, rs1 uint8, exts ExtensionSet) (Inst, error) {
	in := Inst{PC: pc, Len: 4, Raw: w, Rd: rd, Rs1: rs1}

	if funct3 == 0 {
		imm12 := w >> 20 & 0xfff
		switch imm12 {
		case 0x000:
			in.Op = OpECALL
		case 0x001:
			in.Op = OpEBREAK
		default:
			return Inst{}, illegal(pc, rawBytes(w), "unknown SYSTEM imm12 for funct3=0")
		}
		return in, nil
	}

	if !exts.Has(ExtZicsr) {
		return Inst{}, unsupported(pc, rawBytes(w), "CSR instruction but Zicsr not admitted")
	}
	in.CSR = uint16(w >> 20 & 0xfff)
	switch funct3 {
	case 1:
		in.Op = OpCSRRW
	case 2:
		in.Op = OpCSRRS
	case 3:
		in.Op = OpCSRRC
	case 5:
		in.Op = OpCSRRWI
		in.Imm = int64(rs1) // rs1 field carries a 5-bit zero-extended immediate
	case 6:
		in.Op = OpCSRRSI
		in.Imm = int64(rs1)
	case 7:
		in.Op = OpCSRRCI
		in.Imm = int64(rs1)
	default:
		return Inst{}, illegal(pc, rawBytes(w), "unknown CSR funct3")
	}
	return in, nil
}
