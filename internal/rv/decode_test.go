package rv

import (
	"errors"
	"testing"
)

func enc32(word uint32) []byte {
	return []byte{byte(word), byte(word >> 8), byte(word >> 16), byte(word >> 24)}
}

// encIType builds a 32-bit I-type word: imm[11:0] rs1 funct3 rd opcode.
func encIType(opcode uint32, rd, funct3, rs1 uint8, imm int32) uint32 {
	return uint32(imm)<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | uint32(rd)<<7 | opcode
}

// encRType builds a 32-bit R-type word: funct7 rs2 rs1 funct3 rd opcode.
func encRType(opcode uint32, rd, funct3, rs1, rs2 uint8, funct7 uint32) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | uint32(rd)<<7 | opcode
}

func TestDecodeADDI(t *testing.T) {
	// addi x5, x6, -1  (opcode OP-IMM=0x13, funct3=0)
	w := encIType(0x13, 5, 0, 6, -1)
	in, err := Decode(0x1000, enc32(w), XLEN64, IMACDefault())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Op != OpADDI {
		t.Fatalf("Op = %v, want OpADDI", in.Op)
	}
	if in.Rd != 5 || in.Rs1 != 6 {
		t.Fatalf("Rd/Rs1 = %d/%d, want 5/6", in.Rd, in.Rs1)
	}
	if in.Imm != -1 {
		t.Fatalf("Imm = %d, want -1", in.Imm)
	}
	if in.Len != 4 {
		t.Fatalf("Len = %d, want 4", in.Len)
	}
	if in.PC != 0x1000 {
		t.Fatalf("PC = 0x%x, want 0x1000", in.PC)
	}
}

func TestDecodeADD(t *testing.T) {
	// add x1, x2, x3 (opcode OP=0x33, funct3=0, funct7=0)
	w := encRType(0x33, 1, 0, 2, 3, 0)
	in, err := Decode(0, enc32(w), XLEN64, IMACDefault())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Op != OpADD || in.Rd != 1 || in.Rs1 != 2 || in.Rs2 != 3 {
		t.Fatalf("got %+v", in)
	}
}

func TestDecodeSUBDistinguishedByFunct7(t *testing.T) {
	w := encRType(0x33, 1, 0, 2, 3, 0x20)
	in, err := Decode(0, enc32(w), XLEN64, IMACDefault())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Op != OpSUB {
		t.Fatalf("Op = %v, want OpSUB", in.Op)
	}
}

func TestDecodeWidthSensitiveOpcodeRejectedAtXLEN32(t *testing.T) {
	// addiw x5, x6, 1 (opcode OP-IMM-32 = 0x1b)
	w := encIType(0x1b, 5, 0, 6, 1)
	_, err := Decode(0, enc32(w), XLEN32, IMACDefault())
	if err == nil {
		t.Fatal("expected ADDIW to be rejected at XLEN32")
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected a *DecodeError, got %T: %v", err, err)
	}
	if !decErr.Unsupported {
		t.Fatal("ADDIW at XLEN32 should be Unsupported, not merely illegal")
	}
}

func TestDecodeADDIWAcceptedAtXLEN64(t *testing.T) {
	w := encIType(0x1b, 5, 0, 6, 1)
	in, err := Decode(0, enc32(w), XLEN64, IMACDefault())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Op != OpADDIW {
		t.Fatalf("Op = %v, want OpADDIW", in.Op)
	}
}

func TestDecodeIllegalInstructionUnknownOpcode(t *testing.T) {
	// opcode bits 6:2 = 0x02 is not assigned to anything in the base ISA.
	w := uint32(0x02)<<2 | 0x3
	_, err := Decode(0, enc32(w), XLEN64, IMACDefault())
	if err == nil {
		t.Fatal("expected an illegal-instruction error")
	}
}

func TestDecodeCompressedAddi(t *testing.T) {
	// c.addi x5, 1: funct3=000, bits[1:0]=01, rd/rs1 in bits 11:7, imm
	// split across bits 12 and 6:2.
	var word uint16
	word |= 0b000 << 13 // funct3
	word |= 0 << 12     // imm[5] = 0
	word |= 5 << 7       // rd/rs1 = x5
	word |= 1 << 2        // imm[4:0] = 1
	word |= 0b01          // quadrant 1

	in, err := Decode(0x2000, []byte{byte(word), byte(word >> 8), 0, 0}, XLEN64, IMACDefault())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Len != 2 {
		t.Fatalf("Len = %d, want 2 for a compressed form", in.Len)
	}
	if in.Op != OpADDI {
		t.Fatalf("Op = %v, want OpADDI (compressed forms decode to the uncompressed record)", in.Op)
	}
	if in.Rd != 5 || in.Rs1 != 5 {
		t.Fatalf("Rd/Rs1 = %d/%d, want 5/5", in.Rd, in.Rs1)
	}
	if in.Imm != 1 {
		t.Fatalf("Imm = %d, want 1", in.Imm)
	}
}

func TestDecodeCompressedRejectedWithoutCExtension(t *testing.T) {
	var word uint16
	word |= 5 << 7
	word |= 1 << 2
	word |= 0b01
	noC := NewExtensionSet(ExtI, ExtM, ExtA, ExtZicsr)
	_, err := Decode(0, []byte{byte(word), byte(word >> 8), 0, 0}, XLEN64, noC)
	if err == nil {
		t.Fatal("expected compressed decode to fail when ExtC is not admitted")
	}
}

func TestXLENMask(t *testing.T) {
	if got := XLEN32.Mask(0xFFFFFFFFFFFFFFFF); got != 0xFFFFFFFF {
		t.Fatalf("XLEN32.Mask = 0x%x, want 0xFFFFFFFF", got)
	}
	if got := XLEN64.Mask(0xFFFFFFFFFFFFFFFF); got != 0xFFFFFFFFFFFFFFFF {
		t.Fatalf("XLEN64.Mask = 0x%x, want all ones", got)
	}
}

func TestXLENShiftMaskBits(t *testing.T) {
	if XLEN32.ShiftMaskBits() != 5 {
		t.Fatalf("XLEN32.ShiftMaskBits() = %d, want 5", XLEN32.ShiftMaskBits())
	}
	if XLEN64.ShiftMaskBits() != 6 {
		t.Fatalf("XLEN64.ShiftMaskBits() = %d, want 6", XLEN64.ShiftMaskBits())
	}
}

func TestDecodeRev8AndOrcBClaimShiftEncodingSpace(t *testing.T) {
	// rev8 x10, x11 on RV64: imm12=0x6b8 inside the OP-IMM funct3=5 space.
	w := encIType(0x13, 10, 5, 11, 0x6b8)
	in, err := Decode(0, enc32(w), XLEN64, IMACDefault())
	if err != nil {
		t.Fatalf("Decode rev8: %v", err)
	}
	if in.Op != OpREV8 || in.Rd != 10 || in.Rs1 != 11 {
		t.Fatalf("got %+v, want REV8 x10, x11", in)
	}

	// orc.b x10, x11: imm12=0x287, same funct3.
	w = encIType(0x13, 10, 5, 11, 0x287)
	in, err = Decode(0, enc32(w), XLEN64, IMACDefault())
	if err != nil {
		t.Fatalf("Decode orc.b: %v", err)
	}
	if in.Op != OpORCB {
		t.Fatalf("Op = %v, want OpORCB", in.Op)
	}

	// Without Zb admitted, the same words are not silently SRAI/SRLI.
	if _, err := Decode(0, enc32(w), XLEN64, NewExtensionSet(ExtI, ExtM, ExtA, ExtC, ExtZicsr)); err == nil {
		t.Fatal("orc.b without Zb admitted must not decode")
	}
}

func TestDecodeSLLIUWCarriesSixBitShamt(t *testing.T) {
	// slli.uw x10, x11, 33: OP-IMM-32, funct3=1, top bits 000010.
	w := encIType(0x1b, 10, 1, 11, 0x02<<6|33)
	in, err := Decode(0, enc32(w), XLEN64, IMACDefault())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Op != OpSLLIUW {
		t.Fatalf("Op = %v, want OpSLLIUW", in.Op)
	}
	if in.Shamt != 33 {
		t.Fatalf("Shamt = %d, want 33", in.Shamt)
	}
}

func TestDecodeZextHRequiresZeroRs2(t *testing.T) {
	// zext.h x10, x11 on RV64 lives in OP-32: funct7=0x04, funct3=4, rs2=0.
	w := encRType(0x3b, 10, 4, 11, 0, 0x04)
	in, err := Decode(0, enc32(w), XLEN64, IMACDefault())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Op != OpZEXTH {
		t.Fatalf("Op = %v, want OpZEXTH", in.Op)
	}

	w = encRType(0x3b, 10, 4, 11, 7, 0x04)
	if _, err := Decode(0, enc32(w), XLEN64, IMACDefault()); err == nil {
		t.Fatal("zext.h with rs2!=0 must not decode")
	}

	// On RV32 the same instruction lives in OP.
	w = encRType(0x33, 10, 4, 11, 0, 0x04)
	in, err = Decode(0, enc32(w), XLEN32, IMACDefault())
	if err != nil {
		t.Fatalf("Decode rv32: %v", err)
	}
	if in.Op != OpZEXTH {
		t.Fatalf("rv32 Op = %v, want OpZEXTH", in.Op)
	}
}
