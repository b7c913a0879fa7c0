package cemit

import (
	"fmt"

	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/regalloc"
)

// stmt renders one IR statement as one or more C statements. Tracer hooks
// are inlined immediately after the host statement that makes the access
// observable, so trace order always matches program order.
func (e *emitter) stmt(indent string, s ir.Stmt) error {
	switch v := s.(type) {
	case ir.RegWrite:
		if v.Reg == 0 {
			// Writes to x0 are observationally absent.
			return nil
		}
		val := exprC(v.Value, e.opt)
		if e.opt.Policy.IsHot(v.Reg) {
			fmt.Fprintf(e.b, "%s%s = %s;\n", indent, regName(v.Reg), val)
			fmt.Fprintf(e.b, "%strace_reg_write(state->tracer_state, %d, (uint64_t)%s);\n", indent, v.Reg, regName(v.Reg))
			return nil
		}
		fmt.Fprintf(e.b, "%sstate->regs[%d] = %s;\n", indent, v.Reg, val)
		fmt.Fprintf(e.b, "%strace_reg_write(state->tracer_state, %d, (uint64_t)state->regs[%d]);\n", indent, v.Reg, v.Reg)
		return nil

	case ir.CSRWrite:
		val := exprC(v.Value, e.opt)
		if field, ok := csrField(v.CSR); ok {
			fmt.Fprintf(e.b, "%sstate->%s = %s;\n", indent, field, val)
			fmt.Fprintf(e.b, "%strace_csr_write(state->tracer_state, %d, (uint64_t)state->%s);\n", indent, v.CSR, field)
			return nil
		}
		// Unsupported CSR: discarded, but still observable to a tracer.
		fmt.Fprintf(e.b, "%s/* unsupported CSR 0x%x write discarded */\n", indent, v.CSR)
		fmt.Fprintf(e.b, "%strace_csr_write(state->tracer_state, %d, (uint64_t)(%s));\n", indent, v.CSR, val)
		return nil

	case ir.Store:
		addr := exprC(v.Address, e.opt)
		val := exprC(v.Value, e.opt)
		fmt.Fprintf(e.b, "%srv_store%s(state, (uint64_t)(%s), (%s)(%s));\n", indent, wbits(v.MemWidth), addr, cType(v.MemWidth), val)
		fmt.Fprintf(e.b, "%strace_mem_write_%s(state->tracer_state, (uint64_t)(%s), (%s)(%s));\n",
			indent, memHookSuffix(v.MemWidth), addr, cType(v.MemWidth), val)
		return nil

	case ir.TempAssign:
		fmt.Fprintf(e.b, "%s%s t%d = %s;\n", indent, cType(v.W), v.ID, exprC(v.Value, e.opt))
		return nil

	case ir.ReservationOp:
		if v.Kind == ir.ReservationSet {
			fmt.Fprintf(e.b, "%sstate->res_addr = (uint64_t)(%s);\n", indent, exprC(v.Address, e.opt))
			fmt.Fprintf(e.b, "%sstate->res_valid = 1;\n", indent)
			return nil
		}
		fmt.Fprintf(e.b, "%sstate->res_valid = 0;\n", indent)
		return nil

	case ir.AtomicRMW:
		return e.atomicRMW(indent, v)

	case ir.StoreConditional:
		return e.storeConditional(indent, v)

	case ir.TraceHook:
		args := ""
		for _, a := range v.Args {
			args += fmt.Sprintf(", (uint64_t)(%s)", exprC(a, e.opt))
		}
		fmt.Fprintf(e.b, "%s%s(state->tracer_state%s);\n", indent, v.Hook, args)
		return nil
	}
	return nil
}

func (e *emitter) atomicRMW(indent string, v ir.AtomicRMW) error {
	mw := cType(v.MemWidth)
	// t<N> is declared outside the nested block: the lifter's RegWrite
	// for rd (lift/atomic.go) reads it in the enclosing block's scope,
	// after this braces-delimited sequence has already closed.
	fmt.Fprintf(e.b, "%s%s t%d;\n", indent, cType(e.opt.RegWidth), v.Result)
	fmt.Fprintf(e.b, "%s{\n", indent)
	fmt.Fprintf(e.b, "%s    uint64_t amo_addr = (uint64_t)(%s);\n", indent, exprC(v.Address, e.opt))
	fmt.Fprintf(e.b, "%s    %s amo_old = rv_load%s(state, amo_addr);\n", indent, mw, wbits(v.MemWidth))
	operand := fmt.Sprintf("(%s)(%s)", mw, exprC(v.Operand, e.opt))
	fmt.Fprintf(e.b, "%s    %s amo_new = %s;\n", indent, mw, combineC("amo_old", operand, v.Op, v.MemWidth))
	fmt.Fprintf(e.b, "%s    rv_store%s(state, amo_addr, amo_new);\n", indent, wbits(v.MemWidth))
	if v.Signed {
		fmt.Fprintf(e.b, "%s    t%d = (%s)(%s)amo_old;\n", indent, v.Result, cType(e.opt.RegWidth), sType(v.MemWidth))
	} else {
		fmt.Fprintf(e.b, "%s    t%d = (%s)amo_old;\n", indent, v.Result, cType(e.opt.RegWidth))
	}
	fmt.Fprintf(e.b, "%s}\n", indent)
	return nil
}

func (e *emitter) storeConditional(indent string, v ir.StoreConditional) error {
	mw := cType(v.MemWidth)
	// t<N> is declared outside the nested block for the same reason as
	// atomicRMW above: the lifter's RegWrite for rd consumes it after
	// this sequence's braces have closed.
	fmt.Fprintf(e.b, "%s%s t%d;\n", indent, cType(e.opt.RegWidth), v.Result)
	fmt.Fprintf(e.b, "%s{\n", indent)
	fmt.Fprintf(e.b, "%s    uint64_t sc_addr = (uint64_t)(%s);\n", indent, exprC(v.Address, e.opt))
	fmt.Fprintf(e.b, "%s    int sc_ok = state->res_valid && state->res_addr == sc_addr;\n", indent)
	fmt.Fprintf(e.b, "%s    if (sc_ok) { rv_store%s(state, sc_addr, (%s)(%s)); }\n", indent, wbits(v.MemWidth), mw, exprC(v.Value, e.opt))
	fmt.Fprintf(e.b, "%s    state->res_valid = 0;\n", indent)
	fmt.Fprintf(e.b, "%s    t%d = sc_ok ? 0 : 1;\n", indent, v.Result)
	fmt.Fprintf(e.b, "%s}\n", indent)
	return nil
}

func regName(reg uint8) string { return regalloc.Name(reg) }

func memHookSuffix(w ir.Width) string {
	switch w {
	case ir.W8:
		return "byte"
	case ir.W16:
		return "halfword"
	case ir.W32:
		return "word"
	default:
		return "dword"
	}
}
