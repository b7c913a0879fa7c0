package cemit

import (
	"fmt"
	"sort"

	"github.com/openrvt/rvtx/internal/ir"
)

// term renders a block's terminator. Jump/Branch/IndirectJump tail-call
// directly between the generated block functions; Syscall is the one
// terminator that crosses into the hand-written runtime, so it flushes
// hot registers to state->regs first and reloads them fresh afterward.
func (e *emitter) term(pc uint64, indent string, t ir.Terminator) error {
	switch v := t.(type) {
	case ir.Jump:
		fmt.Fprintf(e.b, "%sRVTX_TAILCALL return blk_%x(state, UINT64_C(0x%x)%s);\n", indent, v.Target, v.Target, e.argsFromLocals())
		return nil

	case ir.Branch:
		cond := exprC(v.Cond, e.opt)
		fmt.Fprintf(e.b, "%sif (%s) {\n", indent, cond)
		fmt.Fprintf(e.b, "%s    trace_branch_taken(state->tracer_state, UINT64_C(0x%x), UINT64_C(0x%x));\n", indent, pc, v.Then)
		fmt.Fprintf(e.b, "%s    RVTX_TAILCALL return blk_%x(state, UINT64_C(0x%x)%s);\n", indent, v.Then, v.Then, e.argsFromLocals())
		fmt.Fprintf(e.b, "%s} else {\n", indent)
		fmt.Fprintf(e.b, "%s    trace_branch_not_taken(state->tracer_state, UINT64_C(0x%x), UINT64_C(0x%x));\n", indent, pc, v.Else)
		fmt.Fprintf(e.b, "%s    RVTX_TAILCALL return blk_%x(state, UINT64_C(0x%x)%s);\n", indent, v.Else, v.Else, e.argsFromLocals())
		fmt.Fprintf(e.b, "%s}\n", indent)
		return nil

	case ir.IndirectJump:
		return e.indirectJump(pc, indent, v)

	case ir.Syscall:
		for _, reg := range e.opt.Policy.Hot {
			fmt.Fprintf(e.b, "%sstate->regs[%d] = %s;\n", indent, reg, regName(reg))
		}
		fmt.Fprintf(e.b, "%srv_word_t sc_ret = rv_syscall(state, UINT64_C(0x%x));\n", indent, v.PCNext)
		fmt.Fprintf(e.b, "%sif (state->halted) { return sc_ret; }\n", indent)
		// The hot locals are stale here (rv_syscall writes a0 through
		// state->regs); rv_dispatch reloads every hot value from state, so
		// the arguments only exist to satisfy the shared prototype.
		fmt.Fprintf(e.b, "%sRVTX_TAILCALL return rv_dispatch(state, (uint64_t)state->pc%s);\n", indent, e.argsFromLocals())
		return nil

	case ir.Break:
		fmt.Fprintf(e.b, "%sstate->exit_code = 1; /* GuestTrap: EBREAK at 0x%x */\n", indent, v.PC)
		fmt.Fprintf(e.b, "%sstate->halted = 1;\n", indent)
		fmt.Fprintf(e.b, "%sreturn (rv_word_t)state->exit_code;\n", indent)
		return nil

	case ir.Halt:
		fmt.Fprintf(e.b, "%sstate->exit_code = (int64_t)(%s);\n", indent, exprC(v.ExitCode, e.opt))
		fmt.Fprintf(e.b, "%sstate->res_valid = 0;\n", indent)
		fmt.Fprintf(e.b, "%sstate->halted = 1;\n", indent)
		fmt.Fprintf(e.b, "%strace_fini(state->tracer_state);\n", indent)
		fmt.Fprintf(e.b, "%sreturn (rv_word_t)state->exit_code;\n", indent)
		return nil
	}
	return fmt.Errorf("cemit: unhandled terminator %T", t)
}

// indirectJump dispatches on a runtime-computed target. Where the CFG
// builder recovered a static target set the switch only lists those cases, documenting the
// tighter bound even though the dispatch itself is still a runtime switch;
// everything else falls through to the function-wide dispatch table via
// rv_dispatch.
func (e *emitter) indirectJump(pc uint64, indent string, v ir.IndirectJump) error {
	fmt.Fprintf(e.b, "%s{\n", indent)
	fmt.Fprintf(e.b, "%s    uint64_t it_target = (uint64_t)(%s);\n", indent, exprC(v.Target, e.opt))
	if targets, ok := e.fn.ResolvedIndirect[pc]; ok {
		sorted := append([]uint64(nil), targets...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		fmt.Fprintf(e.b, "%s    switch (it_target) {\n", indent)
		for _, t := range sorted {
			fmt.Fprintf(e.b, "%s    case UINT64_C(0x%x): RVTX_TAILCALL return blk_%x(state, it_target%s);\n", indent, t, t, e.argsFromLocals())
		}
		fmt.Fprintf(e.b, "%s    default: break;\n", indent)
		fmt.Fprintf(e.b, "%s    }\n", indent)
	}
	// Unresolved, or a resolved target outside the recovered set (a
	// mispredicted table bound): flush hot regs and fall back to the
	// full dispatch table.
	for _, reg := range e.opt.Policy.Hot {
		fmt.Fprintf(e.b, "%s    state->regs[%d] = %s;\n", indent, reg, regName(reg))
	}
	fmt.Fprintf(e.b, "%s    RVTX_TAILCALL return rv_dispatch(state, it_target%s);\n", indent, e.argsFromLocals())
	fmt.Fprintf(e.b, "%s}\n", indent)
	return nil
}
