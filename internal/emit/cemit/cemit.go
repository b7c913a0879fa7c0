// Package cemit renders a discovered control-flow graph as C source: one
// static function per block, tail-calling its successor(s) rather than
// looping, so the guest's control flow becomes the host compiler's call
// graph. Output is built with a strings.Builder and plain fmt.Fprintf
// calls; the generated shapes are too regular to earn a template engine.
package cemit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openrvt/rvtx/internal/cfg"
	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/regalloc"
)

// Options configures C generation.
type Options struct {
	// Policy is the hot-register set; every entry becomes a C function
	// parameter threaded between blocks.
	Policy regalloc.Policy
	// RegWidth is the guest register width (ir.W32 or ir.W64).
	RegWidth ir.Width
}

type emitter struct {
	opt Options
	fn  *cfg.Function
	b   *strings.Builder
}

// Emit renders fn as a standalone C translation unit that #includes the
// generated rv_state.h/rv_tracer.h headers and defines one
// function per block plus the function-wide dispatch trampoline used both
// as the translation's entry point and as the catch-all target for
// unresolved indirect jumps.
func Emit(fn *cfg.Function, opt Options) (string, error) {
	e := &emitter{opt: opt, fn: fn, b: &strings.Builder{}}
	e.preamble()
	e.forwardDecls()
	for _, pc := range fn.Order {
		if err := e.block(pc, fn.Blocks[pc]); err != nil {
			return "", err
		}
	}
	e.dispatch()
	return e.b.String(), nil
}

func (e *emitter) preamble() {
	e.b.WriteString("/* Generated by rvtx. Do not edit by hand. */\n")
	e.b.WriteString("#include \"rv_state.h\"\n#include \"rv_tracer.h\"\n\n")
	e.b.WriteString("#if defined(__clang__) && __has_cpp_attribute(clang::musttail)\n")
	e.b.WriteString("#define RVTX_TAILCALL [[clang::musttail]]\n")
	e.b.WriteString("#else\n")
	e.b.WriteString("#define RVTX_TAILCALL\n")
	e.b.WriteString("#endif\n\n")
	e.b.WriteString("extern rv_word_t rv_syscall(rv_state_t *state, rv_word_t pc_next);\n\n")
}

func (e *emitter) params() []string {
	out := make([]string, 0, len(e.opt.Policy.Hot))
	for _, reg := range e.opt.Policy.Hot {
		out = append(out, "rv_word_t "+regalloc.Name(reg))
	}
	return out
}

// signature renders a block function's prototype. Every block function
// and rv_dispatch share the exact same parameter list (state, pc, hot
// registers): clang's musttail attribute rejects a tail call whose callee
// prototype differs from the caller's, and every function here
// tail-calls into every other.
func (e *emitter) signature(pc uint64) string {
	params := append([]string{"rv_state_t *state", "uint64_t pc"}, e.params()...)
	return fmt.Sprintf("rv_word_t blk_%x(%s)", pc, strings.Join(params, ", "))
}

func (e *emitter) dispatchSignature() string {
	params := append([]string{"rv_state_t *state", "uint64_t pc"}, e.params()...)
	return fmt.Sprintf("rv_word_t rv_dispatch(%s)", strings.Join(params, ", "))
}

func (e *emitter) forwardDecls() {
	for _, pc := range e.fn.Order {
		fmt.Fprintf(e.b, "static %s;\n", e.signature(pc))
	}
	fmt.Fprintf(e.b, "\nstatic %s;\n\n", e.dispatchSignature())
}

// argsFromLocals renders a call's hot-register arguments as the current
// block's C locals/parameters: ordinary control flow (Jump/Branch/a
// resolved indirect jump target) keeps hot values pinned in C variables
// across the tail call rather than round-tripping them through
// state->regs. Tail calls into rv_dispatch pass them too, but only to
// satisfy the shared prototype: rv_dispatch reloads every hot value from
// state->regs.
func (e *emitter) argsFromLocals() string {
	var parts []string
	for _, reg := range e.opt.Policy.Hot {
		parts = append(parts, regalloc.Name(reg))
	}
	if len(parts) == 0 {
		return ""
	}
	return ", " + strings.Join(parts, ", ")
}

// argsFromState renders the same argument list sourced fresh from
// state->regs, used wherever control resumes without a live chain of C
// locals to carry forward: the translation's entry point, and the
// resumption after a syscall crosses into the runtime.
func (e *emitter) argsFromState() string {
	var parts []string
	for _, reg := range e.opt.Policy.Hot {
		parts = append(parts, fmt.Sprintf("state->regs[%d]", reg))
	}
	if len(parts) == 0 {
		return ""
	}
	return ", " + strings.Join(parts, ", ")
}

func (e *emitter) block(pc uint64, blk *ir.Block) error {
	fmt.Fprintf(e.b, "static %s {\n", e.signature(pc))
	e.b.WriteString("    (void)pc;\n")
	// An HTIF store mid-predecessor sets state->halted; the next block
	// boundary is where execution actually stops.
	e.b.WriteString("    if (state->halted) { return (rv_word_t)state->exit_code; }\n")
	fmt.Fprintf(e.b, "    state->csr_instret += UINT64_C(%d);\n", blk.InstCount)
	fmt.Fprintf(e.b, "    state->csr_cycle += UINT64_C(%d);\n", blk.InstCount)
	fmt.Fprintf(e.b, "    trace_block(state->tracer_state, UINT64_C(0x%x));\n", pc)
	for _, s := range blk.Stmts {
		if err := e.stmt("    ", s); err != nil {
			return err
		}
	}
	if err := e.term(pc, "    ", blk.Term); err != nil {
		return err
	}
	e.b.WriteString("}\n\n")
	return nil
}

// dispatch renders the function-wide dispatch trampoline: a switch over
// every discovered block entry PC, used as the translation's single entry
// point and as the shared fallback target whenever a block's indirect
// jump did not recover a tighter static target set.
func (e *emitter) dispatch() {
	table := append([]uint64(nil), e.fn.DispatchTable...)
	sort.Slice(table, func(i, j int) bool { return table[i] < table[j] })

	fmt.Fprintf(e.b, "static %s {\n", e.dispatchSignature())
	e.b.WriteString("    if (state->halted) { return (rv_word_t)state->exit_code; }\n")
	e.b.WriteString("    switch (pc) {\n")
	for _, pc := range table {
		fmt.Fprintf(e.b, "    case UINT64_C(0x%x): RVTX_TAILCALL return blk_%x(state, pc%s);\n", pc, pc, e.argsFromState())
	}
	e.b.WriteString("    default:\n")
	e.b.WriteString("        state->exit_code = 1; /* IllegalPC */\n")
	e.b.WriteString("        state->res_valid = 0;\n")
	e.b.WriteString("        state->halted = 1;\n")
	e.b.WriteString("        return (rv_word_t)state->exit_code;\n")
	e.b.WriteString("    }\n}\n\n")
	fmt.Fprintf(e.b, "rv_word_t rv_entry(rv_state_t *state) {\n")
	e.b.WriteString("    trace_init(state->tracer_state);\n")
	fmt.Fprintf(e.b, "    return rv_dispatch(state, UINT64_C(0x%x)%s);\n", e.fn.Entry, e.argsFromState())
	e.b.WriteString("}\n")
}
