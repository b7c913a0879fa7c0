package rv

// Decode decodes the instruction at pc from mem (a byte accessor over the
// guest memory image) under the given xlen and extension set. It returns
// the decoded instruction, whose Len is its encoded length (2 or 4). Decode has no
// side effects: it never writes to any state.
//
// mem must supply at least 4 bytes at pc; callers that know the first
// half-word is a compressed form may supply only 2.
func Decode(pc uint64, mem []byte, xlen XLEN, exts ExtensionSet) (Inst, error) {
	if len(mem) < 2 {
		return Inst{}, illegal(pc, mem, "fewer than 2 bytes available")
	}
	lo := uint16(mem[0]) | uint16(mem[1])<<8
	// riscv-spec: bits 1:0 != 0b11 marks a 16-bit compressed instruction.
	if lo&0x3 != 0x3 {
		if !exts.Has(ExtC) {
			return Inst{}, unsupported(pc, mem[:2], "compressed instruction but C extension not admitted")
		}
		in, err := decodeCompressed(pc, lo, xlen)
		if err != nil {
			return Inst{}, err
		}
		return in, nil
	}
	if lo&0x1f == 0x1f {
		return Inst{}, unsupported(pc, mem[:2], "48-bit+ encodings are not supported")
	}
	if len(mem) < 4 {
		return Inst{}, illegal(pc, mem, "fewer than 4 bytes available for a 32-bit instruction")
	}
	word := uint32(mem[0]) | uint32(mem[1])<<8 | uint32(mem[2])<<16 | uint32(mem[3])<<24
	return decode32(pc, word, xlen, exts)
}

// baseOpcode is bits 6:2 of a 32-bit instruction word.
type baseOpcode uint32

const (
	boLoad    baseOpcode = 0x00
	boMiscMem baseOpcode = 0x03
	boOpImm   baseOpcode = 0x04
	boAUIPC   baseOpcode = 0x05
	boOpImm32 baseOpcode = 0x06
	boStore   baseOpcode = 0x08
	boAMO     baseOpcode = 0x0b
	boOp      baseOpcode = 0x0c
	boLUI     baseOpcode = 0x0d
	boOp32    baseOpcode = 0x0e
	boBranch  baseOpcode = 0x18
	boJALR    baseOpcode = 0x19
	boJAL     baseOpcode = 0x1b
	boSystem  baseOpcode = 0x1c
)

func decode32(pc uint64, w uint32, xlen XLEN, exts ExtensionSet) (Inst, error) {
	in := Inst{PC: pc, Len: 4, Raw: w}
	rd := uint8(w >> 7 & 0x1f)
	rs1 := uint8(w >> 15 & 0x1f)
	rs2 := uint8(w >> 20 & 0x1f)
	funct3 := w >> 12 & 0x7
	funct7 := w >> 25 & 0x7f
	bop := baseOpcode(w >> 2 & 0x1f)

	switch bop {
	case boLUI:
		in.Op = OpLUI
		in.Rd = rd
		in.Imm = int64(int32(w & 0xFFFFF000))
		return in, nil

	case boAUIPC:
		in.Op = OpAUIPC
		in.Rd = rd
		in.Imm = int64(int32(w & 0xFFFFF000))
		return in, nil

	case boJAL:
		in.Op = OpJAL
		in.Rd = rd
		in.Imm = signExtend(jImm(w), 21)
		return in, nil

	case boJALR:
		if funct3 != 0 {
			return Inst{}, illegal(pc, rawBytes(w), "JALR requires funct3=0")
		}
		in.Op = OpJALR
		in.Rd, in.Rs1 = rd, rs1
		in.Imm = signExtend(int64(w)>>20, 12)
		return in, nil

	case boBranch:
		op, ok := branchOps[funct3]
		if !ok {
			return Inst{}, illegal(pc, rawBytes(w), "unknown branch funct3")
		}
		in.Op = op
		in.Rs1, in.Rs2 = rs1, rs2
		in.Imm = signExtend(bImm(w), 13)
		return in, nil

	case boLoad:
		op, widthSensitive, ok := loadOp(funct3)
		if !ok {
			return Inst{}, illegal(pc, rawBytes(w), "unknown load funct3")
		}
		if widthSensitive && xlen != XLEN64 {
			return Inst{}, unsupported(pc, rawBytes(w), "64-bit load on XLEN=32")
		}
		in.Op = op
		in.Rd, in.Rs1 = rd, rs1
		in.Imm = signExtend(int64(w)>>20, 12)
		return in, nil

	case boStore:
		op, widthSensitive, ok := storeOp(funct3)
		if !ok {
			return Inst{}, illegal(pc, rawBytes(w), "unknown store funct3")
		}
		if widthSensitive && xlen != XLEN64 {
			return Inst{}, unsupported(pc, rawBytes(w), "SD on XLEN=32")
		}
		in.Op = op
		in.Rs1, in.Rs2 = rs1, rs2
		in.Imm = signExtend(sImm(w), 12)
		return in, nil

	case boOpImm:
		return decodeOpImm(pc, w, xlen, funct3, rd, rs1, exts)

	case boOpImm32:
		if xlen != XLEN64 {
			return Inst{}, unsupported(pc, rawBytes(w), "*IW forms require XLEN=64")
		}
		return decodeOpImm32(pc, w, funct3, rd, rs1, exts)

	case boOp:
		return decodeOp(pc, w, funct3, funct7, rd, rs1, rs2, exts)

	case boOp32:
		if xlen != XLEN64 {
			return Inst{}, unsupported(pc, rawBytes(w), "*W forms require XLEN=64")
		}
		return decodeOp32(pc, w, funct3, funct7, rd, rs1, rs2, exts)

	case boAMO:
		if !exts.Has(ExtA) {
			return Inst{}, unsupported(pc, rawBytes(w), "AMO/LR/SC but A extension not admitted")
		}
		return decodeAMO(pc, w, xlen, funct3, rd, rs1, rs2)

	case boMiscMem:
		in.Rd, in.Rs1 = rd, rs1
		if funct3 == 0 {
			in.Op = OpFENCE
		} else if funct3 == 1 {
			in.Op = OpFENCEI
		} else {
			return Inst{}, illegal(pc, rawBytes(w), "unknown MISC-MEM funct3")
		}
		return in, nil

	case boSystem:
		return decodeSystem(pc, w, funct3, rd, rs1, exts)

	default:
		return Inst{}, illegal(pc, rawBytes(w), "unrecognized base opcode")
	}
}

var branchOps = map[uint32]Op{0: OpBEQ, 1: OpBNE, 4: OpBLT, 5: OpBGE, 6: OpBLTU, 7: OpBGEU}

// loadOps maps funct3 to (Op, requiresXLEN64).
var loadOps = map[uint32]struct {
	op     Op
	xlen64 bool
}{
	0: {OpLB, false}, 1: {OpLH, false}, 2: {OpLW, false},
	4: {OpLBU, false}, 5: {OpLHU, false}, 6: {OpLWU, true}, 3: {OpLD, true},
}

var storeOps = map[uint32]struct {
	op     Op
	xlen64 bool
}{
	0: {OpSB, false}, 1: {OpSH, false}, 2: {OpSW, false}, 3: {OpSD, true},
}

// wrap helpers so decode32's switch can use 3-value lookups uniformly.
func loadOp(f uint32) (Op, bool, bool) {
	e, ok := loadOps[f]
	return e.op, e.xlen64, ok
}
func storeOp(f uint32) (Op, bool, bool) {
	e, ok := storeOps[f]
	return e.op, e.xlen64, ok
}

func rawBytes(w uint32) []byte {
	return []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
}

func signExtend(v int64, bits uint) int64 {
	shift := 64 - bits
	return (v << shift) >> shift
}

func jImm(w uint32) int64 {
	// imm[20|10:1|11|19:12]
	v := (uint64(w) >> 11 & (1 << 20)) |
		(uint64(w) & 0xff000) |
		(uint64(w) >> 9 & (1 << 11)) |
		(uint64(w) >> 20 & 0x7fe)
	return int64(v)
}

func bImm(w uint32) int64 {
	v := (uint64(w) >> 19 & (1 << 12)) |
		(uint64(w) << 4 & (1 << 11)) |
		(uint64(w) >> 20 & 0x7e0) |
		(uint64(w) >> 7 & 0x1e)
	return int64(v)
}

func sImm(w uint32) int64 {
	v := (uint64(w) >> 20 & 0xfe0) | (uint64(w) >> 7 & 0x1f)
	return int64(v)
}
