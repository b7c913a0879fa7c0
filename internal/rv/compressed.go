package rv

// decodeCompressed decodes a single 16-bit RVC instruction into the same
// Inst record a 32-bit equivalent would produce, register operands expanded
// and immediates sign-extended, so the lifter never sees a compressed
// form. Register field layouts below follow riscv-spec v2.2 Table 12.5.
func decodeCompressed(pc uint64, in uint16, xlen XLEN) (Inst, error) {
	base := Inst{PC: pc, Len: 2, Raw: uint32(in)}
	op := in & 0x3
	funct3 := in >> 13 & 0x7

	switch {
	case op == 0x0 && funct3 == 0x0: // C.ADDI4SPN
		imm := (uint32(in)>>1&0x3c0 | uint32(in)>>7&0x30 | uint32(in)>>2&0x8 | uint32(in)>>4&0x4)
		if imm == 0 {
			return Inst{}, illegal(pc, rvcBytes(in), "C.ADDI4SPN with nzuimm=0 is reserved")
		}
		rd := expandReg(in >> 2 & 0x7)
		base.Op, base.Rd, base.Rs1, base.Imm = OpADDI, rd, RegSP, int64(imm)
		return base, nil

	case op == 0x0 && funct3 == 0x2: // C.LW
		rs1 := expandReg(in >> 7 & 0x7)
		rd := expandReg(in >> 2 & 0x7)
		imm := uint32(in)>>7&0x38 | uint32(in)>>4&0x4 | uint32(in)<<1&0x40
		base.Op, base.Rd, base.Rs1, base.Imm = OpLW, rd, rs1, int64(imm)
		return base, nil

	case op == 0x0 && funct3 == 0x3: // C.LD (RV64)
		if xlen != XLEN64 {
			return Inst{}, unsupported(pc, rvcBytes(in), "C.LD requires XLEN=64")
		}
		rs1 := expandReg(in >> 7 & 0x7)
		rd := expandReg(in >> 2 & 0x7)
		imm := uint32(in)>>7&0x38 | uint32(in)<<1&0xc0
		base.Op, base.Rd, base.Rs1, base.Imm = OpLD, rd, rs1, int64(imm)
		return base, nil

	case op == 0x0 && funct3 == 0x6: // C.SW
		rs1 := expandReg(in >> 7 & 0x7)
		rs2 := expandReg(in >> 2 & 0x7)
		imm := uint32(in)>>7&0x38 | uint32(in)>>4&0x4 | uint32(in)<<1&0x40
		base.Op, base.Rs1, base.Rs2, base.Imm = OpSW, rs1, rs2, int64(imm)
		return base, nil

	case op == 0x0 && funct3 == 0x7: // C.SD (RV64)
		if xlen != XLEN64 {
			return Inst{}, unsupported(pc, rvcBytes(in), "C.SD requires XLEN=64")
		}
		rs1 := expandReg(in >> 7 & 0x7)
		rs2 := expandReg(in >> 2 & 0x7)
		imm := uint32(in)>>7&0x38 | uint32(in)<<1&0xc0
		base.Op, base.Rs1, base.Rs2, base.Imm = OpSD, rs1, rs2, int64(imm)
		return base, nil

	case op == 0x1 && funct3 == 0x0: // C.NOP / C.ADDI
		r := uint8(in >> 7 & 0x1f)
		imm := ciImm(in)
		base.Op, base.Rd, base.Rs1, base.Imm = OpADDI, r, r, signExtend(int64(imm), 6)
		return base, nil

	case op == 0x1 && funct3 == 0x1: // C.ADDIW (RV64) / C.JAL (RV32)
		r := uint8(in >> 7 & 0x1f)
		if xlen == XLEN64 {
			if r == 0 {
				return Inst{}, illegal(pc, rvcBytes(in), "C.ADDIW requires rd!=0")
			}
			imm := ciImm(in)
			base.Op, base.Rd, base.Rs1, base.Imm = OpADDIW, r, r, signExtend(int64(imm), 6)
			return base, nil
		}
		imm := cjImm(in)
		base.Op, base.Rd, base.Imm = OpJAL, RegRA, signExtend(int64(imm), 12)
		return base, nil

	case op == 0x1 && funct3 == 0x2: // C.LI
		r := uint8(in >> 7 & 0x1f)
		imm := ciImm(in)
		base.Op, base.Rd, base.Rs1, base.Imm = OpADDI, r, RegZero, signExtend(int64(imm), 6)
		return base, nil

	case op == 0x1 && funct3 == 0x3: // C.ADDI16SP / C.LUI
		r := uint8(in >> 7 & 0x1f)
		if r == RegSP {
			imm := uint32(in)>>3&0x200 | uint32(in)>>2&0x10 | uint32(in)<<1&0x40 |
				uint32(in)<<4&0x180 | uint32(in)<<3&0x20
			if imm == 0 {
				return Inst{}, illegal(pc, rvcBytes(in), "C.ADDI16SP with nzimm=0 is reserved")
			}
			base.Op, base.Rd, base.Rs1, base.Imm = OpADDI, RegSP, RegSP, signExtend(int64(imm), 10)
			return base, nil
		}
		imm := ciImm(in)
		if imm == 0 {
			return Inst{}, illegal(pc, rvcBytes(in), "C.LUI with nzimm=0 is reserved")
		}
		base.Op, base.Rd, base.Imm = OpLUI, r, signExtend(int64(imm)<<12, 18)
		return base, nil

	case op == 0x1 && funct3 == 0x4: // arithmetic group: C.SRLI/C.SRAI/C.ANDI/C.SUB/C.XOR/C.OR/C.AND/C.SUBW/C.ADDW
		return decodeCA(pc, in, xlen)

	case op == 0x1 && funct3 == 0x5: // C.J
		imm := cjImm(in)
		base.Op, base.Rd, base.Imm = OpJAL, RegZero, signExtend(int64(imm), 12)
		return base, nil

	case op == 0x1 && funct3 == 0x6: // C.BEQZ
		rs1 := expandReg(in >> 7 & 0x7)
		imm := cbImm(in)
		base.Op, base.Rs1, base.Rs2, base.Imm = OpBEQ, rs1, RegZero, signExtend(int64(imm), 9)
		return base, nil

	case op == 0x1 && funct3 == 0x7: // C.BNEZ
		rs1 := expandReg(in >> 7 & 0x7)
		imm := cbImm(in)
		base.Op, base.Rs1, base.Rs2, base.Imm = OpBNE, rs1, RegZero, signExtend(int64(imm), 9)
		return base, nil

	case op == 0x2 && funct3 == 0x0: // C.SLLI
		r := uint8(in >> 7 & 0x1f)
		shamt := uint32(in)>>2&0x1f | uint32(in)>>7&0x20
		base.Op, base.Rd, base.Rs1, base.Shamt = OpSLLI, r, r, uint8(shamt)
		return base, nil

	case op == 0x2 && funct3 == 0x2: // C.LWSP
		r := uint8(in >> 7 & 0x1f)
		if r == 0 {
			return Inst{}, illegal(pc, rvcBytes(in), "C.LWSP requires rd!=0")
		}
		imm := uint32(in)>>7&0x20 | uint32(in)>>2&0x1c | uint32(in)<<4&0xc0
		base.Op, base.Rd, base.Rs1, base.Imm = OpLW, r, RegSP, int64(imm)
		return base, nil

	case op == 0x2 && funct3 == 0x3: // C.LDSP (RV64)
		if xlen != XLEN64 {
			return Inst{}, unsupported(pc, rvcBytes(in), "C.LDSP requires XLEN=64")
		}
		r := uint8(in >> 7 & 0x1f)
		if r == 0 {
			return Inst{}, illegal(pc, rvcBytes(in), "C.LDSP requires rd!=0")
		}
		imm := uint32(in)>>7&0x20 | uint32(in)>>2&0x18 | uint32(in)<<4&0x1c0
		base.Op, base.Rd, base.Rs1, base.Imm = OpLD, r, RegSP, int64(imm)
		return base, nil

	case op == 0x2 && funct3 == 0x4: // CR-type: C.JR/C.MV/C.EBREAK/C.JALR/C.ADD
		return decodeCR(pc, in)

	case op == 0x2 && funct3 == 0x6: // C.SWSP
		rs2 := uint8(in >> 2 & 0x1f)
		imm := uint32(in)>>7&0x3c | uint32(in)>>1&0xc0
		base.Op, base.Rs1, base.Rs2, base.Imm = OpSW, RegSP, rs2, int64(imm)
		return base, nil

	case op == 0x2 && funct3 == 0x7: // C.SDSP (RV64)
		if xlen != XLEN64 {
			return Inst{}, unsupported(pc, rvcBytes(in), "C.SDSP requires XLEN=64")
		}
		rs2 := uint8(in >> 2 & 0x1f)
		imm := uint32(in)>>7&0x38 | uint32(in)>>1&0x1c0
		base.Op, base.Rs1, base.Rs2, base.Imm = OpSD, RegSP, rs2, int64(imm)
		return base, nil

	default:
		return Inst{}, illegal(pc, rvcBytes(in), "unrecognized or floating-point compressed encoding")
	}
}

func decodeCA(pc uint64, in uint16, xlen XLEN) (Inst, error) {
	base := Inst{PC: pc, Len: 2, Raw: uint32(in)}
	rd := expandReg(in >> 7 & 0x7)
	sub := in >> 10 & 0x3
	switch sub {
	case 0x0: // C.SRLI
		shamt := uint32(in)>>2&0x1f | uint32(in)>>7&0x20
		base.Op, base.Rd, base.Rs1, base.Shamt = OpSRLI, rd, rd, uint8(shamt)
		return base, nil
	case 0x1: // C.SRAI
		shamt := uint32(in)>>2&0x1f | uint32(in)>>7&0x20
		base.Op, base.Rd, base.Rs1, base.Shamt = OpSRAI, rd, rd, uint8(shamt)
		return base, nil
	case 0x2: // C.ANDI
		imm := signExtend(int64(ciImm(in)), 6)
		base.Op, base.Rd, base.Rs1, base.Imm = OpANDI, rd, rd, imm
		return base, nil
	case 0x3:
		rs2 := expandReg(in >> 2 & 0x7)
		wide := in>>12&1 != 0
		switch in >> 5 & 0x3 {
		case 0x0:
			if wide {
				base.Op = OpSUBW
			} else {
				base.Op = OpSUB
			}
		case 0x1:
			if wide {
				if xlen != XLEN64 {
					return Inst{}, unsupported(pc, rvcBytes(in), "C.ADDW requires XLEN=64")
				}
				base.Op = OpADDW
			} else {
				base.Op = OpXOR
			}
		case 0x2:
			if wide {
				return Inst{}, illegal(pc, rvcBytes(in), "reserved CA encoding")
			}
			base.Op = OpOR
		case 0x3:
			if wide {
				return Inst{}, illegal(pc, rvcBytes(in), "reserved CA encoding")
			}
			base.Op = OpAND
		}
		base.Rd, base.Rs1, base.Rs2 = rd, rd, rs2
		return base, nil
	}
	return Inst{}, illegal(pc, rvcBytes(in), "unreachable CA decode")
}

func decodeCR(pc uint64, in uint16) (Inst, error) {
	base := Inst{PC: pc, Len: 2, Raw: uint32(in)}
	rd := uint8(in >> 7 & 0x1f)
	rs2 := uint8(in >> 2 & 0x1f)
	bit12 := in>>12&1 != 0

	if !bit12 {
		if rs2 == 0 {
			if rd == 0 {
				return Inst{}, illegal(pc, rvcBytes(in), "reserved CR encoding")
			}
			base.Op, base.Rs1 = OpJALR, rd
			base.Rd, base.Imm = RegZero, 0
			return base, nil // C.JR
		}
		base.Op, base.Rd, base.Rs1, base.Rs2 = OpADD, rd, RegZero, rs2 // C.MV: rd = 0 + rs2
		return base, nil
	}
	if rs2 == 0 {
		if rd == 0 {
			base.Op = OpEBREAK
			return base, nil
		}
		base.Op, base.Rd, base.Rs1, base.Imm = OpJALR, RegRA, rd, 0 // C.JALR
		return base, nil
	}
	base.Op, base.Rd, base.Rs1, base.Rs2 = OpADD, rd, rd, rs2 // C.ADD
	return base, nil
}

// expandReg maps the compact 3-bit register encoding (x8-x15) used by CIW/
// CL/CS/CA/CB formats to a full 5-bit register index.
func expandReg(compact uint16) uint8 { return uint8(compact&0x7) + 8 }

func ciImm(in uint16) uint32 {
	return uint32(in)>>2&0x1f | uint32(in)>>7&0x20
}

func cjImm(in uint16) uint32 {
	v := uint32(in)
	return v>>1&0x800 | v<<2&0x400 | v>>1&0x300 | v<<1&0x80 |
		v>>1&0x40 | v<<3&0x20 | v>>7&0x10 | v>>2&0xe
}

func cbImm(in uint16) uint32 {
	v := uint32(in)
	return v>>4&0x100 | v<<1&0xc0 | v<<3&0x20 | v>>7&0x18 | v>>2&0x6
}

const (
	RegZero uint8 = 0
	RegRA   uint8 = 1
	RegSP   uint8 = 2
)

func rvcBytes(in uint16) []byte { return []byte{byte(in), byte(in >> 8)} }
