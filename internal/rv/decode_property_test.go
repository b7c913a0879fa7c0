package rv

import (
	"testing"

	"pgregory.net/rapid"
)

// Field-recovery reflexivity: for canonical encodings the decoder admits,
// every operand field decodes back to the value it was encoded from.
// Full re-encoding is not a goal; these properties pin down the bit-field
// extraction (the part of the decoder most prone to off-by-one shifts).

func TestDecodeRecoversITypeFields(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rd := uint8(rapid.IntRange(0, 31).Draw(t, "rd"))
		rs1 := uint8(rapid.IntRange(0, 31).Draw(t, "rs1"))
		imm := int32(rapid.IntRange(-2048, 2047).Draw(t, "imm"))
		w := uint32(imm)<<20 | uint32(rs1)<<15 | 0<<12 | uint32(rd)<<7 | 0x13 // addi

		in, err := Decode(0, enc32(w), XLEN64, IMACDefault())
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if in.Op != OpADDI || in.Rd != rd || in.Rs1 != rs1 || in.Imm != int64(imm) {
			t.Fatalf("got %+v, want ADDI rd=%d rs1=%d imm=%d", in, rd, rs1, imm)
		}
	})
}

func TestDecodeRecoversBranchOffsets(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rs1 := uint8(rapid.IntRange(0, 31).Draw(t, "rs1"))
		rs2 := uint8(rapid.IntRange(0, 31).Draw(t, "rs2"))
		// B-type immediates are even 13-bit values.
		off := int32(rapid.IntRange(-2048, 2047).Draw(t, "off")) * 2

		imm := uint32(off)
		w := uint32(0x63) // BEQ opcode, funct3=0
		w |= uint32(rs1) << 15
		w |= uint32(rs2) << 20
		w |= imm >> 12 & 0x1 << 31
		w |= imm >> 5 & 0x3f << 25
		w |= imm >> 1 & 0xf << 8
		w |= imm >> 11 & 0x1 << 7

		in, err := Decode(0, enc32(w), XLEN64, IMACDefault())
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if in.Op != OpBEQ || in.Rs1 != rs1 || in.Rs2 != rs2 || in.Imm != int64(off) {
			t.Fatalf("got %+v, want BEQ rs1=%d rs2=%d imm=%d", in, rs1, rs2, off)
		}
	})
}

func TestDecodeRecoversJALOffsets(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rd := uint8(rapid.IntRange(0, 31).Draw(t, "rd"))
		// J-type immediates are even 21-bit values.
		off := int32(rapid.IntRange(-524288, 524287).Draw(t, "off")) * 2

		imm := uint32(off)
		w := uint32(0x6f)
		w |= uint32(rd) << 7
		w |= imm >> 20 & 0x1 << 31
		w |= imm >> 1 & 0x3ff << 21
		w |= imm >> 11 & 0x1 << 20
		w |= imm >> 12 & 0xff << 12

		in, err := Decode(0, enc32(w), XLEN64, IMACDefault())
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if in.Op != OpJAL || in.Rd != rd || in.Imm != int64(off) {
			t.Fatalf("got %+v, want JAL rd=%d imm=%d", in, rd, off)
		}
	})
}

func TestDecodeRecoversShiftAmounts(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rd := uint8(rapid.IntRange(1, 31).Draw(t, "rd"))
		rs1 := uint8(rapid.IntRange(0, 31).Draw(t, "rs1"))
		shamt := uint8(rapid.IntRange(0, 63).Draw(t, "shamt"))
		w := uint32(shamt)<<20 | uint32(rs1)<<15 | 1<<12 | uint32(rd)<<7 | 0x13 // slli

		in, err := Decode(0, enc32(w), XLEN64, IMACDefault())
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if in.Op != OpSLLI || in.Shamt != shamt {
			t.Fatalf("got %+v, want SLLI shamt=%d", in, shamt)
		}
	})
}
