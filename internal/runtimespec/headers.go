package runtimespec

import (
	"fmt"
	"sort"
	"strings"
)

// TracerHeader renders rv_tracer.h. When custom is false, a
// no-op default is emitted: every hook is a static inline that discards
// its arguments, so the emitted C always compiles against this header
// whether or not a real tracer is supplied.
func TracerHeader(custom bool) string {
	var b strings.Builder
	b.WriteString("/* Generated by rvtx. Do not edit by hand. */\n")
	b.WriteString("#ifndef RV_TRACER_H\n#define RV_TRACER_H\n\n")
	b.WriteString("#include <stdint.h>\n\n")
	if custom {
		b.WriteString("/* Caller-supplied tracer: declarations only, definitions are linked in. */\n")
	}
	hooks := []struct{ sig, body string }{
		{"static inline void trace_init(void *tracer_state)", ""},
		{"static inline void trace_fini(void *tracer_state)", ""},
		{"static inline void trace_pc(void *tracer_state, uint64_t pc)", ""},
		{"static inline void trace_block(void *tracer_state, uint64_t entry_pc)", ""},
		{"static inline void trace_reg_read(void *tracer_state, int reg, uint64_t value)", ""},
		{"static inline void trace_reg_write(void *tracer_state, int reg, uint64_t value)", ""},
		{"static inline void trace_mem_read_byte(void *tracer_state, uint64_t addr, uint8_t value)", ""},
		{"static inline void trace_mem_read_halfword(void *tracer_state, uint64_t addr, uint16_t value)", ""},
		{"static inline void trace_mem_read_word(void *tracer_state, uint64_t addr, uint32_t value)", ""},
		{"static inline void trace_mem_read_dword(void *tracer_state, uint64_t addr, uint64_t value)", ""},
		{"static inline void trace_mem_write_byte(void *tracer_state, uint64_t addr, uint8_t value)", ""},
		{"static inline void trace_mem_write_halfword(void *tracer_state, uint64_t addr, uint16_t value)", ""},
		{"static inline void trace_mem_write_word(void *tracer_state, uint64_t addr, uint32_t value)", ""},
		{"static inline void trace_mem_write_dword(void *tracer_state, uint64_t addr, uint64_t value)", ""},
		{"static inline void trace_branch_taken(void *tracer_state, uint64_t from_pc, uint64_t to_pc)", ""},
		{"static inline void trace_branch_not_taken(void *tracer_state, uint64_t from_pc, uint64_t to_pc)", ""},
		{"static inline void trace_csr_read(void *tracer_state, int csr, uint64_t value)", ""},
		{"static inline void trace_csr_write(void *tracer_state, int csr, uint64_t value)", ""},
	}
	for _, h := range hooks {
		if custom {
			fmt.Fprintf(&b, "%s;\n", strings.TrimPrefix(h.sig, "static inline "))
			continue
		}
		fmt.Fprintf(&b, "%s { (void)tracer_state; }\n", h.sig)
	}
	b.WriteString("\n#endif /* RV_TRACER_H */\n")
	return b.String()
}

// TracerShimSource renders a small externally-linkable no-op definition
// for every tracer hook, compiled alongside the generated rv_syscall.c
// and linked with the x86/arm64 emitters' output: those
// backends call the hooks with bl/call, which needs a real symbol with
// external linkage, unlike the C emitter's #include of TracerHeader's
// static inline stubs. Callers supplying their own tracer implementation
// link that object in instead and never
// call this function.
func TracerShimSource() string {
	var b strings.Builder
	b.WriteString("/* Generated by rvtx. Do not edit by hand. */\n")
	b.WriteString("#include <stdint.h>\n\n")
	sigs := []string{
		"void trace_init(void *tracer_state)",
		"void trace_fini(void *tracer_state)",
		"void trace_pc(void *tracer_state, uint64_t pc)",
		"void trace_block(void *tracer_state, uint64_t entry_pc)",
		"void trace_reg_read(void *tracer_state, int reg, uint64_t value)",
		"void trace_reg_write(void *tracer_state, int reg, uint64_t value)",
		"void trace_mem_read_byte(void *tracer_state, uint64_t addr, uint8_t value)",
		"void trace_mem_read_halfword(void *tracer_state, uint64_t addr, uint16_t value)",
		"void trace_mem_read_word(void *tracer_state, uint64_t addr, uint32_t value)",
		"void trace_mem_read_dword(void *tracer_state, uint64_t addr, uint64_t value)",
		"void trace_mem_write_byte(void *tracer_state, uint64_t addr, uint8_t value)",
		"void trace_mem_write_halfword(void *tracer_state, uint64_t addr, uint16_t value)",
		"void trace_mem_write_word(void *tracer_state, uint64_t addr, uint32_t value)",
		"void trace_mem_write_dword(void *tracer_state, uint64_t addr, uint64_t value)",
		"void trace_branch_taken(void *tracer_state, uint64_t from_pc, uint64_t to_pc)",
		"void trace_branch_not_taken(void *tracer_state, uint64_t from_pc, uint64_t to_pc)",
		"void trace_csr_read(void *tracer_state, int csr, uint64_t value)",
		"void trace_csr_write(void *tracer_state, int csr, uint64_t value)",
	}
	for _, sig := range sigs {
		fmt.Fprintf(&b, "%s { (void)tracer_state; }\n", sig)
	}
	return b.String()
}

// StateHeader renders rv_state.h: the guest-state struct shared between
// the C emitter's generated block functions and the runtime shim.
// xlenBits selects uint32_t/uint64_t for the register
// file and PC.
func StateHeader(xlenBits int) string {
	word := "uint64_t"
	if xlenBits == 32 {
		word = "uint32_t"
	}
	var b strings.Builder
	b.WriteString("/* Generated by rvtx. Do not edit by hand. */\n")
	b.WriteString("#ifndef RV_STATE_H\n#define RV_STATE_H\n\n#include <stdint.h>\n\n")
	fmt.Fprintf(&b, "typedef %s rv_word_t;\n\n", word)
	b.WriteString("typedef struct rv_state {\n")
	b.WriteString("    rv_word_t regs[32];\n")
	b.WriteString("    rv_word_t pc;\n")
	b.WriteString("    rv_word_t res_addr;\n")
	b.WriteString("    int       res_valid;\n")
	b.WriteString("    rv_word_t csr_cycle;\n")
	b.WriteString("    rv_word_t csr_instret;\n")
	b.WriteString("    rv_word_t csr_time;\n")
	b.WriteString("    uint8_t  *mem;\n")
	b.WriteString("    uint64_t  mem_mask;\n")
	b.WriteString("    void     *tracer_state;\n")
	// 8 bytes wide (not C's 4-byte int), independent of XLEN, so the asm
	// backends' fixed-offset 8-byte loads/stores land exactly on these
	// fields with no 4-byte straddling or tail-padding surprises.
	b.WriteString("    int64_t   exit_code;\n")
	b.WriteString("    int64_t   halted;\n")
	// tohost_addr is the HTIF watch address; initialize() points it at the
	// guest's tohost symbol, or at an unreachable sentinel when the ELF
	// exports none.
	b.WriteString("    uint64_t  tohost_addr;\n")
	b.WriteString("} rv_state_t;\n\n")
	b.WriteString(memoryAccessors)
	b.WriteString(arithHelpers)
	b.WriteString("#endif /* RV_STATE_H */\n")
	return b.String()
}

// arithHelpers give the C emitter a call target for every operation whose
// C equivalent is either undefined behavior on some inputs (division,
// bit-count builtins on zero) or not expressible as a single C operator
// (rotate, MULH*, REV8, ORC.B). Both 32- and 64-bit forms are always
// emitted since *W opcodes operate at 32 bits regardless of XLEN.
const arithHelpers = `
static inline int32_t rv_divs32(int32_t a, int32_t b) {
    if (b == 0) return -1;
    if (a == INT32_MIN && b == -1) return INT32_MIN;
    return a / b;
}
static inline uint32_t rv_divu32(uint32_t a, uint32_t b) { return b == 0 ? UINT32_MAX : a / b; }
static inline int32_t rv_rems32(int32_t a, int32_t b) {
    if (b == 0) return a;
    if (a == INT32_MIN && b == -1) return 0;
    return a % b;
}
static inline uint32_t rv_remu32(uint32_t a, uint32_t b) { return b == 0 ? a : a % b; }

static inline int64_t rv_divs64(int64_t a, int64_t b) {
    if (b == 0) return -1;
    if (a == INT64_MIN && b == -1) return INT64_MIN;
    return a / b;
}
static inline uint64_t rv_divu64(uint64_t a, uint64_t b) { return b == 0 ? UINT64_MAX : a / b; }
static inline int64_t rv_rems64(int64_t a, int64_t b) {
    if (b == 0) return a;
    if (a == INT64_MIN && b == -1) return 0;
    return a % b;
}
static inline uint64_t rv_remu64(uint64_t a, uint64_t b) { return b == 0 ? a : a % b; }

static inline int32_t rv_mulhss32(int32_t a, int32_t b) { return (int32_t)(((int64_t)a * (int64_t)b) >> 32); }
static inline int32_t rv_mulhsu32(int32_t a, uint32_t b) { return (int32_t)(((int64_t)a * (int64_t)(uint64_t)b) >> 32); }
static inline uint32_t rv_mulhuu32(uint32_t a, uint32_t b) { return (uint32_t)(((uint64_t)a * (uint64_t)b) >> 32); }
static inline int64_t rv_mulhss64(int64_t a, int64_t b) { return (int64_t)(((__int128)a * (__int128)b) >> 64); }
static inline int64_t rv_mulhsu64(int64_t a, uint64_t b) { return (int64_t)(((__int128)a * (unsigned __int128)b) >> 64); }
static inline uint64_t rv_mulhuu64(uint64_t a, uint64_t b) { return (uint64_t)(((unsigned __int128)a * (unsigned __int128)b) >> 64); }

static inline uint32_t rv_rol32(uint32_t v, uint32_t n) { n &= 31; return n == 0 ? v : (v << n) | (v >> (32 - n)); }
static inline uint32_t rv_ror32(uint32_t v, uint32_t n) { n &= 31; return n == 0 ? v : (v >> n) | (v << (32 - n)); }
static inline uint64_t rv_rol64(uint64_t v, uint64_t n) { n &= 63; return n == 0 ? v : (v << n) | (v >> (64 - n)); }
static inline uint64_t rv_ror64(uint64_t v, uint64_t n) { n &= 63; return n == 0 ? v : (v >> n) | (v << (64 - n)); }

static inline uint32_t rv_clz32(uint32_t v) { return v == 0 ? 32 : (uint32_t)__builtin_clz(v); }
static inline uint32_t rv_ctz32(uint32_t v) { return v == 0 ? 32 : (uint32_t)__builtin_ctz(v); }
static inline uint32_t rv_cpop32(uint32_t v) { return (uint32_t)__builtin_popcount(v); }
static inline uint64_t rv_clz64(uint64_t v) { return v == 0 ? 64 : (uint64_t)__builtin_clzll(v); }
static inline uint64_t rv_ctz64(uint64_t v) { return v == 0 ? 64 : (uint64_t)__builtin_ctzll(v); }
static inline uint64_t rv_cpop64(uint64_t v) { return (uint64_t)__builtin_popcountll(v); }

static inline uint32_t rv_rev8_32(uint32_t v) { return __builtin_bswap32(v); }
static inline uint64_t rv_rev8_64(uint64_t v) { return __builtin_bswap64(v); }
static inline uint32_t rv_orcb_32(uint32_t v) {
    uint32_t r = 0;
    for (int i = 0; i < 4; i++) r |= (uint32_t)((v >> (i * 8)) & 0xff ? 0xff : 0x00) << (i * 8);
    return r;
}
static inline uint64_t rv_orcb_64(uint64_t v) {
    uint64_t r = 0;
    for (int i = 0; i < 8; i++) r |= (uint64_t)((v >> (i * 8)) & 0xff ? 0xff : 0x00) << (i * 8);
    return r;
}
`


// memoryAccessors are the masked load/store helpers the C emitter's
// generated Load/Store expressions call into.
const memoryAccessors = `
static inline uint8_t rv_load8(rv_state_t *state, uint64_t addr) {
    return state->mem[addr & state->mem_mask];
}
static inline uint16_t rv_load16(rv_state_t *state, uint64_t addr) {
    uint64_t o = addr & state->mem_mask;
    return (uint16_t)state->mem[o] | ((uint16_t)state->mem[(o + 1) & state->mem_mask] << 8);
}
static inline uint32_t rv_load32(rv_state_t *state, uint64_t addr) {
    uint64_t o = addr & state->mem_mask;
    return (uint32_t)state->mem[o] |
           ((uint32_t)state->mem[(o + 1) & state->mem_mask] << 8) |
           ((uint32_t)state->mem[(o + 2) & state->mem_mask] << 16) |
           ((uint32_t)state->mem[(o + 3) & state->mem_mask] << 24);
}
static inline uint64_t rv_load64(rv_state_t *state, uint64_t addr) {
    return (uint64_t)rv_load32(state, addr) | ((uint64_t)rv_load32(state, addr + 4) << 32);
}
static inline void rv_store8(rv_state_t *state, uint64_t addr, uint8_t v) {
    state->mem[addr & state->mem_mask] = v;
}
static inline void rv_store16(rv_state_t *state, uint64_t addr, uint16_t v) {
    uint64_t o = addr & state->mem_mask;
    state->mem[o] = (uint8_t)v;
    state->mem[(o + 1) & state->mem_mask] = (uint8_t)(v >> 8);
}
/* HTIF tohost protocol: a word-or-wider store of a non-zero low word to
 * the watched address halts the guest. The riscv-tests convention encodes
 * pass as 1 (exit 0) and failure as (case_index << 1) | 1, surfaced
 * verbatim as the exit code. */
static inline void rv_htif_check(rv_state_t *state, uint64_t addr, uint64_t v) {
    uint32_t lo = (uint32_t)v;
    if (addr != state->tohost_addr || lo == 0) {
        return;
    }
    state->exit_code = lo == 1 ? 0 : (int64_t)lo;
    state->halted = 1;
}
static inline void rv_store32(rv_state_t *state, uint64_t addr, uint32_t v) {
    uint64_t o = addr & state->mem_mask;
    state->mem[o] = (uint8_t)v;
    state->mem[(o + 1) & state->mem_mask] = (uint8_t)(v >> 8);
    state->mem[(o + 2) & state->mem_mask] = (uint8_t)(v >> 16);
    state->mem[(o + 3) & state->mem_mask] = (uint8_t)(v >> 24);
    rv_htif_check(state, addr, v);
}
static inline void rv_store64(rv_state_t *state, uint64_t addr, uint64_t v) {
    uint64_t o = addr & state->mem_mask;
    state->mem[o] = (uint8_t)v;
    state->mem[(o + 1) & state->mem_mask] = (uint8_t)(v >> 8);
    state->mem[(o + 2) & state->mem_mask] = (uint8_t)(v >> 16);
    state->mem[(o + 3) & state->mem_mask] = (uint8_t)(v >> 24);
    state->mem[(o + 4) & state->mem_mask] = (uint8_t)(v >> 32);
    state->mem[(o + 5) & state->mem_mask] = (uint8_t)(v >> 40);
    state->mem[(o + 6) & state->mem_mask] = (uint8_t)(v >> 48);
    state->mem[(o + 7) & state->mem_mask] = (uint8_t)(v >> 56);
    rv_htif_check(state, addr, v);
}
`


// DispatchSource renders the C source for a syscall dispatch table: a
// switch on a7 (regs[17]) calling the matching runtime function with
// fixed arity, writing its result back to a0 (regs[10]), or halting with
// GuestTrap for anything not in the table.
func DispatchSource(preset Preset) string {
	table := Table(preset)
	sorted := append([]SyscallEntry(nil), table...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Num < sorted[j].Num })

	var b strings.Builder
	b.WriteString("/* Generated by rvtx. Do not edit by hand. */\n")
	b.WriteString("#include \"rv_state.h\"\n\n")
	for _, e := range sorted {
		if e.Kind != KindFunc {
			continue
		}
		args := ""
		for i := 0; i < e.Arity; i++ {
			args += fmt.Sprintf(", rv_word_t a%d", i)
		}
		fmt.Fprintf(&b, "extern rv_word_t %s(rv_state_t *state%s);\n", e.RuntimeFunc, args)
	}
	b.WriteString("\nrv_word_t rv_syscall(rv_state_t *state, rv_word_t pc_next) {\n")
	b.WriteString("    rv_word_t a7 = state->regs[17];\n")
	b.WriteString("    switch (a7) {\n")
	for _, e := range sorted {
		fmt.Fprintf(&b, "    case %d: { /* %s */\n", e.Num, e.Name)
		switch e.Kind {
		case KindExit:
			b.WriteString("        state->exit_code = (int64_t)state->regs[10];\n")
			b.WriteString("        state->halted = 1;\n")
			b.WriteString("        return (rv_word_t)state->exit_code;\n")
		case KindFunc:
			call := e.RuntimeFunc + "(state"
			for i := 0; i < e.Arity; i++ {
				call += fmt.Sprintf(", state->regs[%d]", 10+i)
			}
			call += ")"
			fmt.Fprintf(&b, "        state->regs[10] = %s;\n", call)
			b.WriteString("        state->pc = pc_next;\n")
			b.WriteString("        return 0;\n")
		}
		b.WriteString("    }\n")
	}
	b.WriteString("    default:\n")
	b.WriteString("        state->exit_code = (int64_t)((a7 << 1) | 1);\n")
	b.WriteString("        state->halted = 1;\n")
	b.WriteString("        return (rv_word_t)state->exit_code;\n")
	b.WriteString("    }\n}\n")
	return b.String()
}
