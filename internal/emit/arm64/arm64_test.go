package arm64

import (
	"strings"
	"testing"

	"github.com/openrvt/rvtx/internal/cfg"
	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/regalloc"
	"github.com/openrvt/rvtx/internal/rv"
)

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

func buildTwoBlockFunction(t *testing.T) *cfg.Function {
	t.Helper()
	// 0: jal x0, 8    -- unconditional jump, absorbed into the entry block
	// 4: padding      -- never reached
	// 8: ecall        -- syscall, resumes at 12
	// 12: ebreak
	prog := append(append(append(le32(0x0080006f), make([]byte, 4)...), le32(0x00000073)...), le32(0x00100073)...)
	fn, err := cfg.Build(flatMem(prog), 0, nil, cfg.Options{XLEN: rv.XLEN64, Exts: rv.IMACDefault(), RequireCatchAll: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return fn
}

func TestEmitProducesOneLabelPerBlock(t *testing.T) {
	fn := buildTwoBlockFunction(t)
	src, err := Emit(fn, Options{Policy: regalloc.DefaultARM64Policy, RegWidth: ir.W64})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	for _, pc := range fn.Order {
		want := "blk_" + trimHex(pc) + ":"
		if !strings.Contains(src, want) {
			t.Fatalf("expected a block label %q in generated assembly:\n%s", want, src)
		}
	}
}

func TestEmitUsesAAPCS64EntryConvention(t *testing.T) {
	fn := buildTwoBlockFunction(t)
	src, err := Emit(fn, Options{Policy: regalloc.DefaultARM64Policy, RegWidth: ir.W64})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(src, "rv_entry:") {
		t.Fatal("expected an rv_entry label")
	}
	if !strings.Contains(src, "mov\t"+stateReg+", x0") {
		t.Fatal("expected the AAPCS64 state pointer arriving in x0 to be pinned to the state register")
	}
	if !strings.Contains(src, "rv_dispatch:") {
		t.Fatal("expected an rv_dispatch label")
	}
}

func TestEmitDispatchCoversEveryDiscoveredBlock(t *testing.T) {
	fn := buildTwoBlockFunction(t)
	src, err := Emit(fn, Options{Policy: regalloc.DefaultARM64Policy, RegWidth: ir.W64})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	for _, pc := range fn.DispatchTable {
		want := "b.eq\t" + "blk_" + trimHex(pc)
		if !strings.Contains(src, want) {
			t.Fatalf("expected dispatch to branch to pc 0x%x's block, want %q in:\n%s", pc, want, src)
		}
	}
}

func trimHex(pc uint64) string {
	if pc == 0 {
		return "0"
	}
	s := ""
	for pc > 0 {
		s = string("0123456789abcdef"[pc&0xf]) + s
		pc >>= 4
	}
	return s
}

func TestEmitRoutesEveryExitThroughHaltFunnel(t *testing.T) {
	fn := buildTwoBlockFunction(t)
	src, err := Emit(fn, Options{Policy: regalloc.DefaultARM64Policy, RegWidth: ir.W64})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(src, "rv_halt_exit:") {
		t.Fatal("expected the shared halt funnel label")
	}
	if !strings.Contains(src, "b\trv_halt_exit") {
		t.Fatal("expected exit paths to branch through the halt funnel")
	}
}
