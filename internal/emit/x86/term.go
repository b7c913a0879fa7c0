package x86

import (
	"fmt"
	"sort"

	"github.com/openrvt/rvtx/internal/ir"
)

func (e *emitter) flushHot() {
	for i, reg := range e.opt.Policy.Hot {
		fmt.Fprintf(e.b, "\tmovq\t%s, %d(%s)\n", hotPhysical64[i], offRegs+8*int(reg), stateReg)
	}
}

func (e *emitter) term(pc uint64, t ir.Terminator) error {
	switch v := t.(type) {
	case ir.Jump:
		fmt.Fprintf(e.b, "\tjmp\t%s\n", e.blockLabel(v.Target))
		return nil

	case ir.Branch:
		e.genExpr(v.Cond)
		e.b.WriteString("\ttestq\t%rax, %rax\n")
		lelse := e.newLabel("brElse")
		fmt.Fprintf(e.b, "\tje\t%s\n", lelse)
		e.callTrace("trace_branch_taken", fmt.Sprintf("$0x%x", pc), fmt.Sprintf("$0x%x", v.Then))
		fmt.Fprintf(e.b, "\tjmp\t%s\n", e.blockLabel(v.Then))
		fmt.Fprintf(e.b, "%s:\n", lelse)
		e.callTrace("trace_branch_not_taken", fmt.Sprintf("$0x%x", pc), fmt.Sprintf("$0x%x", v.Else))
		fmt.Fprintf(e.b, "\tjmp\t%s\n", e.blockLabel(v.Else))
		return nil

	case ir.IndirectJump:
		return e.indirectJump(pc, v)

	case ir.Syscall:
		e.flushHot()
		fmt.Fprintf(e.b, "\tmovq\t%s, %%rdi\n", stateReg)
		fmt.Fprintf(e.b, "\tmovabsq\t$0x%x, %%rsi\n", v.PCNext)
		fmt.Fprintf(e.b, "\tpushq\t%s\n", stateReg)
		e.b.WriteString("\tcall\trv_syscall\n")
		fmt.Fprintf(e.b, "\tpopq\t%s\n", stateReg)
		fmt.Fprintf(e.b, "\tcmpq\t$0, %d(%s)\n", offHalted, stateReg)
		ldone := e.newLabel("scHalted")
		fmt.Fprintf(e.b, "\tje\t%s\n", ldone)
		e.epilogue()
		fmt.Fprintf(e.b, "%s:\n", ldone)
		fmt.Fprintf(e.b, "\tmovq\t%d(%s), %%rax\n", offPC, stateReg)
		// Reload hot registers fresh: rv_syscall only ever touches
		// state->regs, it has no notion of this routine's pinned locals.
		for i, reg := range e.opt.Policy.Hot {
			fmt.Fprintf(e.b, "\tmovq\t%d(%s), %s\n", offRegs+8*int(reg), stateReg, hotPhysical64[i])
		}
		e.b.WriteString("\tjmp\trv_dispatch\n")
		return nil

	case ir.Break:
		fmt.Fprintf(e.b, "\tmovq\t$1, %d(%s)\n", offExitCode, stateReg)
		fmt.Fprintf(e.b, "\tmovq\t$1, %d(%s)\n", offHalted, stateReg)
		e.b.WriteString("\tjmp\trv_halt_exit\n")
		return nil

	case ir.Halt:
		e.genExpr(v.ExitCode)
		fmt.Fprintf(e.b, "\tmovq\t%%rax, %d(%s)\n", offExitCode, stateReg)
		fmt.Fprintf(e.b, "\tmovq\t$0, %d(%s)\n", offResValid, stateReg)
		fmt.Fprintf(e.b, "\tmovq\t$1, %d(%s)\n", offHalted, stateReg)
		e.b.WriteString("\tjmp\trv_halt_exit\n")
		return nil
	}
	return fmt.Errorf("x86: unhandled terminator %T", t)
}

func (e *emitter) indirectJump(pc uint64, v ir.IndirectJump) error {
	e.genExpr(v.Target)
	if targets, ok := e.fn.ResolvedIndirect[pc]; ok {
		sorted := append([]uint64(nil), targets...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		for _, t := range sorted {
			fmt.Fprintf(e.b, "\tcmpq\t$0x%x, %%rax\n", t)
			fmt.Fprintf(e.b, "\tje\t%s\n", e.blockLabel(t))
		}
	}
	e.flushHot()
	e.b.WriteString("\tjmp\trv_dispatch\n")
	return nil
}
