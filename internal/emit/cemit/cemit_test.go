package cemit

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

func TestEmitProducesOneFunctionPerBlock(t *testing.T) {
	fn := buildTwoBlockFunction(t)
	src, err := Emit(fn, Options{Policy: regalloc.DefaultCPolicy(), RegWidth: ir.W64})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	for _, pc := range fn.Order {
		want := "blk_" + trimHex(pc)
		if !strings.Contains(src, want) {
			t.Fatalf("expected a block function named %q in generated source:\n%s", want, src)
		}
	}
}

func TestEmitUsesTailCallMacroBetweenBlocks(t *testing.T) {
	fn := buildTwoBlockFunction(t)
	src, err := Emit(fn, Options{Policy: regalloc.DefaultCPolicy(), RegWidth: ir.W64})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(src, "RVTX_TAILCALL") {
		t.Fatal("expected the tail-call macro to guard inter-block control transfer")
	}
	if !strings.Contains(src, "clang::musttail") {
		t.Fatal("expected the musttail attribute to be wired through the RVTX_TAILCALL macro")
	}
}

func TestEmitEntryDispatchesToFunctionEntryPC(t *testing.T) {
	fn := buildTwoBlockFunction(t)
	src, err := Emit(fn, Options{Policy: regalloc.DefaultCPolicy(), RegWidth: ir.W64})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !strings.Contains(src, "rv_entry") {
		t.Fatal("expected an rv_entry function")
	}
	want := "rv_dispatch(state, UINT64_C(0x" + trimHex(fn.Entry) + ")"
	if !strings.Contains(src, want) {
		t.Fatalf("expected rv_entry to dispatch at the function's entry pc, want %q in:\n%s", want, src)
	}
}

func TestEmitTracesEveryBlock(t *testing.T) {
	fn := buildTwoBlockFunction(t)
	src, err := Emit(fn, Options{Policy: regalloc.DefaultCPolicy(), RegWidth: ir.W64})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if strings.Count(src, "trace_block(") != len(fn.Order) {
		t.Fatalf("expected one trace_block call per discovered block, got %d calls for %d blocks",
			strings.Count(src, "trace_block("), len(fn.Order))
	}
}

func trimHex(pc uint64) string {
	s := ""
	if pc == 0 {
		return "0"
	}
	for pc > 0 {
		s = string("0123456789abcdef"[pc&0xf]) + s
		pc >>= 4
	}
	return s
}

func TestEmitBlockAndDispatchShareOnePrototype(t *testing.T) {
	fn := buildTwoBlockFunction(t)
	src, err := Emit(fn, Options{Policy: regalloc.DefaultCPolicy(), RegWidth: ir.W64})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	// musttail requires the caller's and callee's prototypes to match, so
	// rv_dispatch must carry the same (state, pc, hot...) list the block
	// functions do.
	if !strings.Contains(src, "rv_word_t rv_dispatch(rv_state_t *state, uint64_t pc, rv_word_t sp") {
		t.Fatalf("expected rv_dispatch to share the block prototype, got:\n%s", src)
	}
	if !strings.Contains(src, "if (state->halted) { return (rv_word_t)state->exit_code; }") {
		t.Fatal("expected every block to check the halt flag on entry")
	}
}
