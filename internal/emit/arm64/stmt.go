package arm64

import (
	"fmt"

	"github.com/openrvt/rvtx/internal/ir"
)

// callTrace calls a tracer hook: x0 is always the tracer_state pointer,
// the rest fill x1-x4 in order. rest is moved into its argument registers
// before x0 is loaded, since rest may itself reference x0 (the value a
// caller just computed); the opposite ordering from internal/emit/x86's
// callTrace, which can set %rdi first because rdi and the value register
// %rax never collide. stateReg (x9) is caller-saved under AAPCS64
// (as internal/emit/x86's %r10 is under SysV), so it's spilled around the
// call by hand.
func (e *emitter) callTrace(hook string, rest ...string) {
	argRegs := []string{"x1", "x2", "x3", "x4"}
	for i, v := range rest {
		fmt.Fprintf(e.b, "\tmov\t%s, %s\n", argRegs[i], v)
	}
	fmt.Fprintf(e.b, "\tldr\tx0, [%s, #%d]\n", stateReg, offTracerState)
	e.b.WriteString("\tsub\tsp, sp, #16\n")
	fmt.Fprintf(e.b, "\tstr\t%s, [sp]\n", stateReg)
	fmt.Fprintf(e.b, "\tbl\t%s\n", hook)
	fmt.Fprintf(e.b, "\tldr\t%s, [sp], #16\n", stateReg)
}

func imm(n int64) string { return fmt.Sprintf("#%d", n) }

func (e *emitter) stmt(s ir.Stmt) error {
	switch v := s.(type) {
	case ir.RegWrite:
		if v.Reg == 0 {
			return nil
		}
		e.genExpr(v.Value)
		if phys, ok := e.hotReg(v.Reg); ok {
			fmt.Fprintf(e.b, "\tmov\t%s, x0\n", phys)
			e.callTrace("trace_reg_write", imm(int64(v.Reg)), phys)
			return nil
		}
		fmt.Fprintf(e.b, "\tstr\tx0, [%s, #%d]\n", stateReg, offRegs+8*int(v.Reg))
		e.callTrace("trace_reg_write", imm(int64(v.Reg)), "x0")
		return nil

	case ir.CSRWrite:
		e.genExpr(v.Value)
		if off, ok := csrOffset(v.CSR); ok {
			fmt.Fprintf(e.b, "\tstr\tx0, [%s, #%d]\n", stateReg, off)
		}
		e.callTrace("trace_csr_write", imm(int64(v.CSR)), "x0")
		return nil

	case ir.Store:
		e.genExpr(v.Value)
		e.push()
		e.genExpr(v.Address)
		e.htifCheck(v.MemWidth)
		fmt.Fprintf(e.b, "\tldr\tx1, [%s, #%d]\n", stateReg, offMemMask)
		e.b.WriteString("\tand\tx0, x0, x1\n")
		fmt.Fprintf(e.b, "\tldr\tx1, [%s, #%d]\n", stateReg, offMem)
		e.b.WriteString("\tadd\tx0, x0, x1\n")
		e.b.WriteString("\tmov\tx1, x0\n") // x1: effective pointer
		e.pop("x0")                        // x0: value
		switch v.MemWidth {
		case ir.W8:
			e.b.WriteString("\tstrb\tw0, [x1]\n")
		case ir.W16:
			e.b.WriteString("\tstrh\tw0, [x1]\n")
		case ir.W32:
			e.b.WriteString("\tstr\tw0, [x1]\n")
		default:
			e.b.WriteString("\tstr\tx0, [x1]\n")
		}
		e.callTrace(traceStoreHook(v.MemWidth), "x1", "x0")
		return nil

	case ir.TempAssign:
		e.genExpr(v.Value)
		fmt.Fprintf(e.b, "\t%s\t%s, [x29, #%d]\n", storeOp(v.W), reg("0", v.W), tempOffset(v.ID))
		return nil

	case ir.ReservationOp:
		if v.Kind == ir.ReservationSet {
			e.genExpr(v.Address)
			fmt.Fprintf(e.b, "\tstr\tx0, [%s, #%d]\n", stateReg, offResAddr)
			fmt.Fprintf(e.b, "\tmov\tx1, #1\n\tstr\tx1, [%s, #%d]\n", stateReg, offResValid)
			return nil
		}
		fmt.Fprintf(e.b, "\tstr\txzr, [%s, #%d]\n", stateReg, offResValid)
		return nil

	case ir.AtomicRMW:
		return e.atomicRMW(v)

	case ir.StoreConditional:
		return e.storeConditional(v)

	case ir.TraceHook:
		// Evaluate left to right, pushing each result, then pop in
		// reverse so rest ends up in original argument order, same
		// discipline as internal/emit/x86's TraceHook case.
		for _, a := range v.Args {
			e.genExpr(a)
			e.push()
		}
		rest := make([]string, len(v.Args))
		for i := len(v.Args) - 1; i >= 0; i-- {
			e.pop("x0")
			fmt.Fprintf(e.b, "\tstr\tx0, [x29, #%d]\n", tempOffset(64+i))
			rest[i] = fmt.Sprintf("[x29, #%d]", tempOffset(64+i))
		}
		// rest entries are memory operands; callTrace's mov needs a
		// register source, so load each into place right before use.
		argRegs := []string{"x1", "x2", "x3", "x4"}
		for i, slot := range rest {
			fmt.Fprintf(e.b, "\tldr\t%s, %s\n", argRegs[i], slot)
		}
		fmt.Fprintf(e.b, "\tldr\tx0, [%s, #%d]\n", stateReg, offTracerState)
		e.b.WriteString("\tsub\tsp, sp, #16\n")
		fmt.Fprintf(e.b, "\tstr\t%s, [sp]\n", stateReg)
		fmt.Fprintf(e.b, "\tbl\t%s\n", v.Hook)
		fmt.Fprintf(e.b, "\tldr\t%s, [sp], #16\n", stateReg)
		return nil
	}
	return nil
}

// htifCheck watches a word-or-wider store for the HTIF tohost protocol:
// if the guest address in x0 matches state->tohost_addr and the value's
// low word (still in the push slot at [sp]) is non-zero, the exit code is
// recorded and halted is set. The store itself still proceeds; the next
// block boundary observes halted and leaves.
func (e *emitter) htifCheck(w ir.Width) {
	if w != ir.W32 && w != ir.W64 {
		return
	}
	lskip := e.newLabel("htSkip")
	lstore := e.newLabel("htNz")
	fmt.Fprintf(e.b, "\tldr\tx2, [%s, #%d]\n", stateReg, offToHost)
	e.b.WriteString("\tcmp\tx0, x2\n")
	fmt.Fprintf(e.b, "\tb.ne\t%s\n", lskip)
	e.b.WriteString("\tldr\tx2, [sp]\n")
	e.b.WriteString("\tands\tx2, x2, #0xffffffff\n")
	fmt.Fprintf(e.b, "\tb.eq\t%s\n", lskip)
	e.b.WriteString("\tmov\tx3, #1\n")
	fmt.Fprintf(e.b, "\tstr\tx3, [%s, #%d]\n", stateReg, offHalted)
	e.b.WriteString("\tcmp\tx2, #1\n")
	fmt.Fprintf(e.b, "\tb.ne\t%s\n", lstore)
	e.b.WriteString("\tmov\tx2, xzr\n")
	fmt.Fprintf(e.b, "%s:\n", lstore)
	fmt.Fprintf(e.b, "\tstr\tx2, [%s, #%d]\n", stateReg, offExitCode)
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
		return "strb"
	case ir.W16:
		return "strh"
	case ir.W32:
		return "str"
	default:
		return "str"
	}
}

// atomicRMW implements an AMO: load-combine-store plus returning the old
// value, mirroring internal/emit/x86's atomicRMW but trading its %rdx/%r8
// scratch pair for x2/x3 (A64 has no equivalent to a dedicated "high"
// register, so any free caller-saved pair works).
func (e *emitter) atomicRMW(v ir.AtomicRMW) error {
	e.genExpr(v.Operand)
	e.push()
	e.genExpr(v.Address)
	fmt.Fprintf(e.b, "\tldr\tx1, [%s, #%d]\n", stateReg, offMemMask)
	e.b.WriteString("\tand\tx0, x0, x1\n")
	fmt.Fprintf(e.b, "\tldr\tx1, [%s, #%d]\n", stateReg, offMem)
	e.b.WriteString("\tadd\tx0, x0, x1\n")
	e.b.WriteString("\tmov\tx2, x0\n") // x2: effective pointer
	switch v.MemWidth {
	case ir.W32:
		e.b.WriteString("\tldrsw\tx0, [x2]\n")
	default:
		e.b.WriteString("\tldr\tx0, [x2]\n")
	}
	e.b.WriteString("\tmov\tx3, x0\n") // x3: old value, kept aside for Result
	e.pop("x1")                       // x1: operand
	e.combine(v.Op, v.MemWidth)
	switch v.MemWidth {
	case ir.W32:
		e.b.WriteString("\tstr\tw0, [x2]\n")
	default:
		e.b.WriteString("\tstr\tx0, [x2]\n")
	}
	fmt.Fprintf(e.b, "\tstr\tx3, [x29, #%d]\n", tempOffset(v.Result))
	return nil
}

func (e *emitter) storeConditional(v ir.StoreConditional) error {
	e.genExpr(v.Value)
	e.push()
	e.genExpr(v.Address)
	e.b.WriteString("\tmov\tx1, x0\n") // x1: guest address, same representation ReservationOp Set compared
	lfail := e.newLabel("scFail")
	ldone := e.newLabel("scDone")
	fmt.Fprintf(e.b, "\tldr\tx2, [%s, #%d]\n", stateReg, offResValid)
	fmt.Fprintf(e.b, "\tcbz\tx2, %s\n", lfail)
	fmt.Fprintf(e.b, "\tldr\tx2, [%s, #%d]\n", stateReg, offResAddr)
	e.b.WriteString("\tcmp\tx1, x2\n")
	fmt.Fprintf(e.b, "\tb.ne\t%s\n", lfail)
	fmt.Fprintf(e.b, "\tldr\tx2, [%s, #%d]\n", stateReg, offMemMask)
	e.b.WriteString("\tand\tx1, x1, x2\n")
	fmt.Fprintf(e.b, "\tldr\tx2, [%s, #%d]\n", stateReg, offMem)
	e.b.WriteString("\tadd\tx1, x1, x2\n")
	e.pop("x0")
	switch v.MemWidth {
	case ir.W32:
		e.b.WriteString("\tstr\tw0, [x1]\n")
	default:
		e.b.WriteString("\tstr\tx0, [x1]\n")
	}
	fmt.Fprintf(e.b, "\tstr\txzr, [x29, #%d]\n", tempOffset(v.Result))
	fmt.Fprintf(e.b, "\tb\t%s\n", ldone)
	fmt.Fprintf(e.b, "%s:\n", lfail)
	e.pop("x0") // discard saved value
	e.b.WriteString("\tmov\tx2, #1\n")
	fmt.Fprintf(e.b, "\tstr\tx2, [x29, #%d]\n", tempOffset(v.Result))
	fmt.Fprintf(e.b, "%s:\n", ldone)
	fmt.Fprintf(e.b, "\tstr\txzr, [%s, #%d]\n", stateReg, offResValid)
	return nil
}
