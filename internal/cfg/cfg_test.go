package cfg

import (
	"testing"

	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/rv"
)

// flatMem is the smallest possible ByteSource: a zero-padded byte slice
// addressed from 0, enough to exercise discovery and absorption without
// pulling in internal/guestmem or internal/elfview.
type flatMem []byte

func (m flatMem) ReadAt(addr uint64, n int) ([]byte, bool) {
	if addr+uint64(n) > uint64(len(m)) {
		return nil, false
	}
	return m[addr : addr+uint64(n)], true
}

func le32(w uint32) []byte {
	return []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
}

func TestBuildDiscoversAndAbsorbsFallthrough(t *testing.T) {
	// 0:  jal x0, 8      (unconditional jump to the syscall block)
	// 4:  padding        (never reached)
	// 8:  ecall          (Syscall, resumes at 12)
	// 12: ebreak         (Break)
	prog := append(append(append(le32(0x0080006f), make([]byte, 4)...), le32(0x00000073)...), le32(0x00100073)...)

	fn, err := Build(flatMem(prog), 0, nil, Options{XLEN: rv.XLEN64, Exts: rv.IMACDefault(), RequireCatchAll: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, ok := fn.Blocks[8]; ok {
		t.Fatal("expected the block at pc=8 to be absorbed into its sole Jump predecessor at pc=0")
	}
	entry, ok := fn.Blocks[0]
	if !ok {
		t.Fatal("expected the entry block at pc=0 to survive absorption")
	}
	sc, ok := entry.Term.(ir.Syscall)
	if !ok {
		t.Fatalf("expected the merged entry block's terminator to be the absorbed Syscall, got %T", entry.Term)
	}
	if sc.PCNext != 12 {
		t.Fatalf("PCNext = %d, want 12", sc.PCNext)
	}
	brk, ok := fn.Blocks[12]
	if !ok {
		t.Fatal("expected a discovered block at pc=12 (the syscall's resume PC)")
	}
	if _, ok := brk.Term.(ir.Break); !ok {
		t.Fatalf("expected pc=12's terminator to be Break, got %T", brk.Term)
	}
}

func TestAbsorptionIsIdempotent(t *testing.T) {
	prog := append(append(le32(0x0080006f), le32(0x00000073)...), le32(0x00100073)...)
	fn, err := Build(flatMem(prog), 0, nil, Options{XLEN: rv.XLEN64, Exts: rv.IMACDefault(), RequireCatchAll: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	before := len(fn.Blocks)
	absorbFallthrough(fn)
	if len(fn.Blocks) != before {
		t.Fatalf("a second absorption pass changed block count from %d to %d", before, len(fn.Blocks))
	}
}

func TestUnresolvedIndirectJumpFallsBackToDispatchTable(t *testing.T) {
	// 0: jalr x0, x1, 0 -- target depends on a register the builder
	// cannot fold to a constant, so this cannot be statically recovered.
	prog := le32(0x00008067)
	fn, err := Build(flatMem(prog), 0, nil, Options{XLEN: rv.XLEN64, Exts: rv.IMACDefault(), RequireCatchAll: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(fn.UnresolvedIndirect) != 1 || fn.UnresolvedIndirect[0] != 0 {
		t.Fatalf("UnresolvedIndirect = %v, want [0]", fn.UnresolvedIndirect)
	}
	if len(fn.DispatchTable) != 1 || fn.DispatchTable[0] != 0 {
		t.Fatalf("DispatchTable = %v, want [0]", fn.DispatchTable)
	}
}

func TestUnresolvedIndirectJumpFailsWithoutCatchAll(t *testing.T) {
	prog := le32(0x00008067)
	_, err := Build(flatMem(prog), 0, nil, Options{XLEN: rv.XLEN64, Exts: rv.IMACDefault(), RequireCatchAll: false})
	if err == nil {
		t.Fatal("expected a CfgUnresolvedError when no catch-all dispatch table is configured")
	}
	if _, ok := err.(*CfgUnresolvedError); !ok {
		t.Fatalf("expected *CfgUnresolvedError, got %T: %v", err, err)
	}
}

func TestEveryEdgeTargetsADiscoveredBlockOrAnEscape(t *testing.T) {
	// 0: beq x0, x0, 12  (then=12, else=4)
	// 4: ebreak
	// 12: ebreak
	beq := uint32(0)<<25 | uint32(0)<<20 | uint32(0)<<15 | 0<<12 | uint32(0)<<7 | 0x63
	// bImm encodes imm=12: imm[12]=0,imm[11]=0,imm[10:5]=0,imm[4:1]=6(0b0110)
	beq |= 6 << 8 // imm[4:1] into bits 11:8
	prog := append(append(le32(beq), le32(0x00100073)...), make([]byte, 4)...)
	prog = append(prog, le32(0x00100073)...)

	fn, err := Build(flatMem(prog), 0, nil, Options{XLEN: rv.XLEN64, Exts: rv.IMACDefault(), RequireCatchAll: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for pc, b := range fn.Blocks {
		for _, target := range successorsOf(b.Term) {
			if _, ok := fn.Blocks[target]; ok {
				continue
			}
			t.Fatalf("block at pc=%d has an edge to pc=%d which is not a discovered block", pc, target)
		}
	}
}
