package x86

import (
	"fmt"

	"github.com/openrvt/rvtx/internal/ir"
)

// callTrace calls a tracer hook: rdi is always the tracer_state pointer,
// rest fills rsi/rdx/rcx/r8 in order. Only the state pointer needs manual
// preservation across the call (SysV callee-saved regs, including the
// five hot guest registers, survive automatically); the one-instruction
// save/restore pair is the asm-level mirror of the C backend getting this
// for free from its compiler.
func (e *emitter) callTrace(hook string, rest ...string) {
	argRegs := []string{"%rsi", "%rdx", "%rcx", "%r8"}
	fmt.Fprintf(e.b, "\tmovq\t%d(%s), %%rdi\n", offTracerState, stateReg)
	for i, v := range rest {
		fmt.Fprintf(e.b, "\tmovq\t%s, %s\n", v, argRegs[i])
	}
	fmt.Fprintf(e.b, "\tpushq\t%s\n", stateReg)
	fmt.Fprintf(e.b, "\tcall\t%s\n", hook)
	fmt.Fprintf(e.b, "\tpopq\t%s\n", stateReg)
}

func (e *emitter) stmt(s ir.Stmt) error {
	switch v := s.(type) {
	case ir.RegWrite:
		if v.Reg == 0 {
			return nil
		}
		e.genExpr(v.Value)
		if phys, ok := e.hotReg64(v.Reg); ok {
			fmt.Fprintf(e.b, "\tmovq\t%%rax, %s\n", phys)
			e.callTrace("trace_reg_write", fmt.Sprintf("$%d", v.Reg), phys)
			return nil
		}
		fmt.Fprintf(e.b, "\tmovq\t%%rax, %d(%s)\n", offRegs+8*int(v.Reg), stateReg)
		e.callTrace("trace_reg_write", fmt.Sprintf("$%d", v.Reg), "%rax")
		return nil

	case ir.CSRWrite:
		e.genExpr(v.Value)
		if off, ok := csrOffset(v.CSR); ok {
			fmt.Fprintf(e.b, "\tmovq\t%%rax, %d(%s)\n", off, stateReg)
		}
		e.callTrace("trace_csr_write", fmt.Sprintf("$%d", v.CSR), "%rax")
		return nil

	case ir.Store:
		e.genExpr(v.Value)
		e.b.WriteString("\tpushq\t%rax\n")
		e.genExpr(v.Address)
		e.htifCheck(v.MemWidth)
		fmt.Fprintf(e.b, "\tandq\t%d(%s), %%rax\n", offMemMask, stateReg)
		fmt.Fprintf(e.b, "\taddq\t%d(%s), %%rax\n", offMem, stateReg)
		e.b.WriteString("\tmovq\t%rax, %rcx\n") // rcx: effective pointer
		e.b.WriteString("\tpopq\t%rax\n")        // rax: value
		switch v.MemWidth {
		case ir.W8:
			e.b.WriteString("\tmovb\t%al, (%rcx)\n")
		case ir.W16:
			e.b.WriteString("\tmovw\t%ax, (%rcx)\n")
		case ir.W32:
			e.b.WriteString("\tmovl\t%eax, (%rcx)\n")
		default:
			e.b.WriteString("\tmovq\t%rax, (%rcx)\n")
		}
		e.callTrace(traceStoreHook(v.MemWidth), "%rcx", "%rax")
		return nil

	case ir.TempAssign:
		e.genExpr(v.Value)
		fmt.Fprintf(e.b, "\t%s\t%s, %d(%%rbp)\n", storeOp(v.W), regName("ax", v.W), tempOffset(v.ID))
		return nil

	case ir.ReservationOp:
		if v.Kind == ir.ReservationSet {
			e.genExpr(v.Address)
			fmt.Fprintf(e.b, "\tmovq\t%%rax, %d(%s)\n", offResAddr, stateReg)
			fmt.Fprintf(e.b, "\tmovq\t$1, %d(%s)\n", offResValid, stateReg)
			return nil
		}
		fmt.Fprintf(e.b, "\tmovq\t$0, %d(%s)\n", offResValid, stateReg)
		return nil

	case ir.AtomicRMW:
		return e.atomicRMW(v)

	case ir.StoreConditional:
		return e.storeConditional(v)

	case ir.TraceHook:
		// Evaluate left to right, pushing each result, then pop in
		// reverse so rest ends up in original argument order.
		for _, a := range v.Args {
			e.genExpr(a)
			e.b.WriteString("\tpushq\t%rax\n")
		}
		rest := make([]string, len(v.Args))
		for i := len(v.Args) - 1; i >= 0; i-- {
			e.b.WriteString("\tpopq\t%rax\n")
			fmt.Fprintf(e.b, "\tmovq\t%%rax, %d(%%rbp)\n", tempOffset(64+i))
			rest[i] = fmt.Sprintf("%d(%%rbp)", tempOffset(64+i))
		}
		e.callTrace(v.Hook, rest...)
		return nil
	}
	return nil
}

// htifCheck watches a word-or-wider store for the HTIF tohost protocol:
// if the guest address in %rax matches state->tohost_addr and the value's
// low word (still pushed on the stack) is non-zero, the exit code is
// recorded and halted is set. The store itself still proceeds; the next
// block boundary observes halted and leaves.
func (e *emitter) htifCheck(w ir.Width) {
	if w != ir.W32 && w != ir.W64 {
		return
	}
	lskip := e.newLabel("htSkip")
	lstore := e.newLabel("htNz")
	fmt.Fprintf(e.b, "\tcmpq\t%d(%s), %%rax\n", offToHost, stateReg)
	fmt.Fprintf(e.b, "\tjne\t%s\n", lskip)
	e.b.WriteString("\tmovq\t(%rsp), %rdx\n")
	e.b.WriteString("\ttestl\t%edx, %edx\n")
	fmt.Fprintf(e.b, "\tje\t%s\n", lskip)
	fmt.Fprintf(e.b, "\tmovq\t$1, %d(%s)\n", offHalted, stateReg)
	e.b.WriteString("\tmovl\t%edx, %edx\n")
	e.b.WriteString("\tcmpq\t$1, %rdx\n")
	fmt.Fprintf(e.b, "\tjne\t%s\n", lstore)
	e.b.WriteString("\txorq\t%rdx, %rdx\n")
	fmt.Fprintf(e.b, "%s:\n", lstore)
	fmt.Fprintf(e.b, "\tmovq\t%%rdx, %d(%s)\n", offExitCode, stateReg)
	fmt.Fprintf(e.b, "%s:\n", lskip)
}

func traceStoreHook(w ir.Width) string {
	switch w {
	case ir.W8:
		return "trace_mem_write_byte"
	case ir.W16:
		return "trace_mem_write_halfword"
	case ir.W32:
		return "trace_mem_write_word"
	default:
		return "trace_mem_write_dword"
	}
}

func storeOp(w ir.Width) string {
	switch w {
	case ir.W8:
		return "movb"
	case ir.W16:
		return "movw"
	case ir.W32:
		return "movl"
	default:
		return "movq"
	}
}

func (e *emitter) atomicRMW(v ir.AtomicRMW) error {
	e.genExpr(v.Operand)
	e.b.WriteString("\tpushq\t%rax\n") // operand
	e.genExpr(v.Address)
	fmt.Fprintf(e.b, "\tandq\t%d(%s), %%rax\n", offMemMask, stateReg)
	fmt.Fprintf(e.b, "\taddq\t%d(%s), %%rax\n", offMem, stateReg)
	e.b.WriteString("\tmovq\t%rax, %rdx\n") // rdx: effective pointer
	switch v.MemWidth {
	case ir.W32:
		e.b.WriteString("\tmovslq\t(%rdx), %rax\n")
	default:
		e.b.WriteString("\tmovq\t(%rdx), %rax\n")
	}
	e.b.WriteString("\tmovq\t%rax, %r8\n") // old, sign-extended
	e.b.WriteString("\tpopq\t%rcx\n")      // operand
	e.combine(v.Op, v.MemWidth)
	switch v.MemWidth {
	case ir.W32:
		e.b.WriteString("\tmovl\t%eax, (%rdx)\n")
	default:
		e.b.WriteString("\tmovq\t%rax, (%rdx)\n")
	}
	fmt.Fprintf(e.b, "\tmovq\t%%r8, %d(%%rbp)\n", tempOffset(v.Result))
	return nil
}

func (e *emitter) storeConditional(v ir.StoreConditional) error {
	e.genExpr(v.Value)
	e.b.WriteString("\tpushq\t%rax\n")
	e.genExpr(v.Address)
	e.b.WriteString("\tmovq\t%rax, %rcx\n") // rcx: guest address, same representation ReservationOp Set compared
	lfail := e.newLabel("scFail")
	ldone := e.newLabel("scDone")
	fmt.Fprintf(e.b, "\tcmpq\t$0, %d(%s)\n", offResValid, stateReg)
	fmt.Fprintf(e.b, "\tje\t%s\n", lfail)
	fmt.Fprintf(e.b, "\tcmpq\t%d(%s), %%rcx\n", offResAddr, stateReg)
	fmt.Fprintf(e.b, "\tjne\t%s\n", lfail)
	fmt.Fprintf(e.b, "\tandq\t%d(%s), %%rcx\n", offMemMask, stateReg)
	fmt.Fprintf(e.b, "\taddq\t%d(%s), %%rcx\n", offMem, stateReg)
	e.b.WriteString("\tpopq\t%rax\n")
	switch v.MemWidth {
	case ir.W32:
		e.b.WriteString("\tmovl\t%eax, (%rcx)\n")
	default:
		e.b.WriteString("\tmovq\t%rax, (%rcx)\n")
	}
	fmt.Fprintf(e.b, "\tmovq\t$0, %d(%%rbp)\n", tempOffset(v.Result))
	fmt.Fprintf(e.b, "\tjmp\t%s\n", ldone)
	fmt.Fprintf(e.b, "%s:\n", lfail)
	e.b.WriteString("\tpopq\t%rax\n") // discard saved value
	fmt.Fprintf(e.b, "\tmovq\t$1, %d(%%rbp)\n", tempOffset(v.Result))
	fmt.Fprintf(e.b, "%s:\n", ldone)
	fmt.Fprintf(e.b, "\tmovq\t$0, %d(%s)\n", offResValid, stateReg)
	return nil
}
