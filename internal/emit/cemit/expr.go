package cemit

import (
	"fmt"

	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/regalloc"
)

func cType(w ir.Width) string {
	switch w {
	case ir.W8:
		return "uint8_t"
	case ir.W16:
		return "uint16_t"
	case ir.W32:
		return "uint32_t"
	default:
		return "uint64_t"
	}
}

func sType(w ir.Width) string {
	switch w {
	case ir.W8:
		return "int8_t"
	case ir.W16:
		return "int16_t"
	case ir.W32:
		return "int32_t"
	default:
		return "int64_t"
	}
}

// wsuffix selects the arith-helper variant: the *W opcodes always
// lift at ir.W32 regardless of XLEN, everything else lifts at the guest
// register width, so 32 vs 64 is the only distinction the helper library
// (internal/runtimespec's rv_* functions) needs.
func wsuffix(w ir.Width) string {
	if w == ir.W32 {
		return "32"
	}
	return "64"
}

// exprC renders e as a single parenthesized C expression, already cast to
// its own Width(). Subexpressions are rendered independently and may be
// duplicated textually (e.g. Max's ternary references both operands
// twice) since every ir.Expr is pure: duplication costs
// nothing but source size.
func exprC(e ir.Expr, opt Options) string {
	switch v := e.(type) {
	case ir.Const:
		return fmt.Sprintf("((%s)UINT64_C(0x%x))", cType(v.W), v.Value)

	case ir.RegRead:
		if opt.Policy.IsHot(v.Reg) {
			return fmt.Sprintf("((%s)%s)", cType(v.W), regalloc.Name(v.Reg))
		}
		return fmt.Sprintf("((%s)state->regs[%d])", cType(v.W), v.Reg)

	case ir.CSRRead:
		if field, ok := csrField(v.CSR); ok {
			return fmt.Sprintf("((%s)state->%s)", cType(v.W), field)
		}
		// Unsupported CSRs read as zero.
		return fmt.Sprintf("((%s)0)", cType(v.W))

	case ir.TempRead:
		return fmt.Sprintf("t%d", v.ID)

	case ir.Bin:
		return binC(v, opt)

	case ir.Un:
		return unC(v, opt)

	case ir.SignExtend:
		return fmt.Sprintf("((%s)(%s)(%s))", cType(v.W), sType(v.From), exprC(v.Arg, opt))

	case ir.ZeroExtend:
		return fmt.Sprintf("((%s)(%s)(%s))", cType(v.W), cType(v.From), exprC(v.Arg, opt))

	case ir.Truncate:
		return fmt.Sprintf("((%s)(%s))", cType(v.W), exprC(v.Arg, opt))

	case ir.Select:
		return fmt.Sprintf("((%s) != 0 ? (%s) : (%s))", exprC(v.Cond, opt), exprC(v.IfTrue, opt), exprC(v.IfFalse, opt))

	case ir.Addr:
		return fmt.Sprintf("((%s)((uint64_t)(%s) + (int64_t)(%d)))", cType(v.W), exprC(v.Base, opt), v.Offset)

	case ir.Load:
		return loadC(v, opt)

	default:
		// Unreachable for any IR the lifter produces; a literal zero keeps
		// the emitted source well-formed if a new Expr kind is ever added
		// here without a matching case.
		return "((uint64_t)0)"
	}
}

func csrField(csr uint16) (string, bool) {
	switch csr {
	case 0xc00:
		return "csr_cycle", true
	case 0xc01:
		return "csr_time", true
	case 0xc02:
		return "csr_instret", true
	default:
		return "", false
	}
}

func loadC(v ir.Load, opt Options) string {
	addr := exprC(v.Address, opt)
	call := fmt.Sprintf("rv_load%s(state, (uint64_t)(%s))", wbits(v.MemWidth), addr)
	if v.Signed {
		return fmt.Sprintf("((%s)(%s)(%s))", cType(v.W), sType(v.MemWidth), call)
	}
	return fmt.Sprintf("((%s)(%s))", cType(v.W), call)
}

// wbits names the memory-access width suffix (8/16/32/64), distinct from
// wsuffix which only ever picks between the two arith-helper variants.
func wbits(w ir.Width) string {
	switch w {
	case ir.W8:
		return "8"
	case ir.W16:
		return "16"
	case ir.W32:
		return "32"
	default:
		return "64"
	}
}

func binC(v ir.Bin, opt Options) string {
	l := exprC(v.Lhs, opt)
	r := exprC(v.Rhs, opt)
	ct := cType(v.W)
	st := sType(v.W)
	ws := wsuffix(v.W)
	bits := "31"
	if v.W == ir.W64 {
		bits = "63"
	}
	switch v.Op {
	case ir.Add:
		return fmt.Sprintf("((%s)(%s + %s))", ct, l, r)
	case ir.Sub:
		return fmt.Sprintf("((%s)(%s - %s))", ct, l, r)
	case ir.And:
		return fmt.Sprintf("(%s & %s)", l, r)
	case ir.Or:
		return fmt.Sprintf("(%s | %s)", l, r)
	case ir.Xor:
		return fmt.Sprintf("(%s ^ %s)", l, r)
	case ir.Shl:
		return fmt.Sprintf("((%s)(%s << %s))", ct, l, r)
	case ir.ShrU:
		return fmt.Sprintf("(%s >> %s)", l, r)
	case ir.ShrS:
		return fmt.Sprintf("((%s)((%s)%s >> %s))", ct, st, l, r)
	case ir.SLT, ir.Lt:
		return fmt.Sprintf("(((%s)%s < (%s)%s) ? 1 : 0)", st, l, st, r)
	case ir.SLTU, ir.LtU:
		return fmt.Sprintf("((%s < %s) ? 1 : 0)", l, r)
	case ir.Ge:
		return fmt.Sprintf("(((%s)%s >= (%s)%s) ? 1 : 0)", st, l, st, r)
	case ir.GeU:
		return fmt.Sprintf("((%s >= %s) ? 1 : 0)", l, r)
	case ir.Eq:
		return fmt.Sprintf("((%s == %s) ? 1 : 0)", l, r)
	case ir.Ne:
		return fmt.Sprintf("((%s != %s) ? 1 : 0)", l, r)
	case ir.MulLow:
		return fmt.Sprintf("((%s)(%s * %s))", ct, l, r)
	case ir.MulHSS:
		return fmt.Sprintf("rv_mulhss%s((%s)%s, (%s)%s)", ws, st, l, st, r)
	case ir.MulHSU:
		return fmt.Sprintf("rv_mulhsu%s((%s)%s, %s)", ws, st, l, r)
	case ir.MulHUU:
		return fmt.Sprintf("rv_mulhuu%s(%s, %s)", ws, l, r)
	case ir.DivS:
		return fmt.Sprintf("((%s)rv_divs%s((%s)%s, (%s)%s))", ct, ws, st, l, st, r)
	case ir.DivU:
		return fmt.Sprintf("rv_divu%s(%s, %s)", ws, l, r)
	case ir.RemS:
		return fmt.Sprintf("((%s)rv_rems%s((%s)%s, (%s)%s))", ct, ws, st, l, st, r)
	case ir.RemU:
		return fmt.Sprintf("rv_remu%s(%s, %s)", ws, l, r)
	case ir.Rol:
		return fmt.Sprintf("rv_rol%s(%s, (uint32_t)(%s))", ws, l, r)
	case ir.Ror:
		return fmt.Sprintf("rv_ror%s(%s, (uint32_t)(%s))", ws, l, r)
	case ir.AndN:
		return fmt.Sprintf("(%s & ~(%s))", l, r)
	case ir.OrN:
		return fmt.Sprintf("(%s | ~(%s))", l, r)
	case ir.XNor:
		return fmt.Sprintf("(~(%s ^ %s))", l, r)
	case ir.Max:
		return fmt.Sprintf("(((%s)%s > (%s)%s) ? %s : %s)", st, l, st, r, l, r)
	case ir.MaxU:
		return fmt.Sprintf("((%s > %s) ? %s : %s)", l, r, l, r)
	case ir.Min:
		return fmt.Sprintf("(((%s)%s < (%s)%s) ? %s : %s)", st, l, st, r, l, r)
	case ir.MinU:
		return fmt.Sprintf("((%s < %s) ? %s : %s)", l, r, l, r)
	case ir.BClr:
		return fmt.Sprintf("(%s & ~(((%s)1) << (%s & %s)))", l, ct, r, bits)
	case ir.BExt:
		return fmt.Sprintf("((%s >> (%s & %s)) & 1)", l, r, bits)
	case ir.BInv:
		return fmt.Sprintf("(%s ^ (((%s)1) << (%s & %s)))", l, ct, r, bits)
	case ir.BSet:
		return fmt.Sprintf("(%s | (((%s)1) << (%s & %s)))", l, ct, r, bits)
	case ir.Sh1Add:
		return fmt.Sprintf("((%s)((%s << 1) + %s))", ct, l, r)
	case ir.Sh2Add:
		return fmt.Sprintf("((%s)((%s << 2) + %s))", ct, l, r)
	case ir.Sh3Add:
		return fmt.Sprintf("((%s)((%s << 3) + %s))", ct, l, r)
	case ir.Swap:
		return r
	default:
		return fmt.Sprintf("((%s)0)", ct)
	}
}

func unC(v ir.Un, opt Options) string {
	a := exprC(v.Arg, opt)
	ct := cType(v.W)
	st := sType(v.W)
	ws := wsuffix(v.W)
	switch v.Op {
	case ir.Neg:
		return fmt.Sprintf("((%s)(-(%s)(%s)))", ct, st, a)
	case ir.Not:
		return fmt.Sprintf("(~(%s))", a)
	case ir.Clz:
		return fmt.Sprintf("rv_clz%s(%s)", ws, a)
	case ir.Ctz:
		return fmt.Sprintf("rv_ctz%s(%s)", ws, a)
	case ir.Cpop:
		return fmt.Sprintf("rv_cpop%s(%s)", ws, a)
	case ir.Rev8:
		return fmt.Sprintf("rv_rev8_%s(%s)", ws, a)
	case ir.OrcB:
		return fmt.Sprintf("rv_orcb_%s(%s)", ws, a)
	default:
		return fmt.Sprintf("((%s)0)", ct)
	}
}

// combineC renders an AtomicRMW's read-modify-write step, applying op to
// the just-loaded old value and the operand. Distinct from
// binC because AtomicRMW carries op directly rather than as an ir.Bin
// node; there is no lhs/rhs Expr pair to recurse into, just two already-
// rendered C expressions.
func combineC(old, operand string, op ir.BinOp, w ir.Width) string {
	ct := cType(w)
	st := sType(w)
	switch op {
	case ir.Swap:
		return operand
	case ir.Add:
		return fmt.Sprintf("((%s)(%s + %s))", ct, old, operand)
	case ir.And:
		return fmt.Sprintf("(%s & %s)", old, operand)
	case ir.Or:
		return fmt.Sprintf("(%s | %s)", old, operand)
	case ir.Xor:
		return fmt.Sprintf("(%s ^ %s)", old, operand)
	case ir.Max:
		return fmt.Sprintf("(((%s)%s > (%s)%s) ? %s : %s)", st, old, st, operand, old, operand)
	case ir.MaxU:
		return fmt.Sprintf("((%s > %s) ? %s : %s)", old, operand, old, operand)
	case ir.Min:
		return fmt.Sprintf("(((%s)%s < (%s)%s) ? %s : %s)", st, old, st, operand, old, operand)
	case ir.MinU:
		return fmt.Sprintf("((%s < %s) ? %s : %s)", old, operand, old, operand)
	default:
		return old
	}
}
