package arm64

import (
	"fmt"
	"sort"

	"github.com/openrvt/rvtx/internal/ir"
)

func (e *emitter) flushHot() {
	for i, reg := range e.opt.Policy.Hot {
		fmt.Fprintf(e.b, "\tstr\t%s, [%s, #%d]\n", hotPhysical[i], stateReg, offRegs+8*int(reg))
	}
}

func (e *emitter) term(pc uint64, t ir.Terminator) error {
	switch v := t.(type) {
	case ir.Jump:
		fmt.Fprintf(e.b, "\tb\t%s\n", e.blockLabel(v.Target))
		return nil

	case ir.Branch:
		e.genExpr(v.Cond)
		lelse := e.newLabel("brElse")
		fmt.Fprintf(e.b, "\tcbz\tx0, %s\n", lelse)
		e.callTrace("trace_branch_taken", fmt.Sprintf("#0x%x", pc), fmt.Sprintf("#0x%x", v.Then))
		fmt.Fprintf(e.b, "\tb\t%s\n", e.blockLabel(v.Then))
		fmt.Fprintf(e.b, "%s:\n", lelse)
		e.callTrace("trace_branch_not_taken", fmt.Sprintf("#0x%x", pc), fmt.Sprintf("#0x%x", v.Else))
		fmt.Fprintf(e.b, "\tb\t%s\n", e.blockLabel(v.Else))
		return nil

	case ir.IndirectJump:
		return e.indirectJump(pc, v)

	case ir.Syscall:
		e.flushHot()
		fmt.Fprintf(e.b, "\tmov\tx0, %s\n", stateReg)
		e.movImm64("x1", v.PCNext)
		e.b.WriteString("\tsub\tsp, sp, #16\n")
		fmt.Fprintf(e.b, "\tstr\t%s, [sp]\n", stateReg)
		e.b.WriteString("\tbl\trv_syscall\n")
		fmt.Fprintf(e.b, "\tldr\t%s, [sp], #16\n", stateReg)
		// rv_syscall's return value (x0) is the exit code on the halted
		// path, so the halted test uses x1 to keep it intact.
		fmt.Fprintf(e.b, "\tldr\tx1, [%s, #%d]\n", stateReg, offHalted)
		ldone := e.newLabel("scHalted")
		fmt.Fprintf(e.b, "\tcbz\tx1, %s\n", ldone)
		e.epilogue()
		fmt.Fprintf(e.b, "%s:\n", ldone)
		fmt.Fprintf(e.b, "\tldr\tx0, [%s, #%d]\n", stateReg, offPC)
		// Reload hot registers fresh: rv_syscall only touches state->regs,
		// it has no notion of this routine's pinned locals.
		for i, reg := range e.opt.Policy.Hot {
			fmt.Fprintf(e.b, "\tldr\t%s, [%s, #%d]\n", hotPhysical[i], stateReg, offRegs+8*int(reg))
		}
		e.b.WriteString("\tb\trv_dispatch\n")
		return nil

	case ir.Break:
		fmt.Fprintf(e.b, "\tmov\tx1, #1\n\tstr\tx1, [%s, #%d]\n", stateReg, offExitCode)
		fmt.Fprintf(e.b, "\tstr\tx1, [%s, #%d]\n", stateReg, offHalted)
		e.b.WriteString("\tb\trv_halt_exit\n")
		return nil

	case ir.Halt:
		e.genExpr(v.ExitCode)
		fmt.Fprintf(e.b, "\tstr\tx0, [%s, #%d]\n", stateReg, offExitCode)
		fmt.Fprintf(e.b, "\tstr\txzr, [%s, #%d]\n", stateReg, offResValid)
		e.b.WriteString("\tmov\tx1, #1\n")
		fmt.Fprintf(e.b, "\tstr\tx1, [%s, #%d]\n", stateReg, offHalted)
		e.b.WriteString("\tb\trv_halt_exit\n")
		return nil
	}
	return fmt.Errorf("arm64: unhandled terminator %T", t)
}

func (e *emitter) indirectJump(pc uint64, v ir.IndirectJump) error {
	e.genExpr(v.Target)
	if targets, ok := e.fn.ResolvedIndirect[pc]; ok {
		sorted := append([]uint64(nil), targets...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		for _, t := range sorted {
			e.movImm64("x1", t)
			e.b.WriteString("\tcmp\tx0, x1\n")
			fmt.Fprintf(e.b, "\tb.eq\t%s\n", e.blockLabel(t))
		}
	}
	e.flushHot()
	e.b.WriteString("\tb\trv_dispatch\n")
	return nil
}
