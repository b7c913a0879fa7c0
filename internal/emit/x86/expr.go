package x86

import (
	"fmt"

	"github.com/openrvt/rvtx/internal/ir"
)

// genExpr emits code evaluating e and leaves the result in %rax (32-bit
// values in %eax, which the hardware zero-extends into %rax; callers
// that need RISC-V's *W sign-extension semantics rely on the IR already
// wrapping the Bin/Un node in an explicit ir.SignExtend, same convention
// as the C backend). Binary operators evaluate rhs first, push it,
// evaluate lhs (now safely reusing %rax), then pop rhs into %rcx: stack
// discipline rather than a depth-indexed register bank, so arbitrarily
// nested expressions never need more than a handful of fixed scratch
// registers.
func (e *emitter) genExpr(expr ir.Expr) {
	switch v := expr.(type) {
	case ir.Const:
		if v.W == ir.W32 {
			fmt.Fprintf(e.b, "\tmovl\t$0x%x, %%eax\n", uint32(v.Value))
		} else {
			fmt.Fprintf(e.b, "\tmovabsq\t$0x%x, %%rax\n", v.Value)
		}

	case ir.RegRead:
		e.genRegRead(v.Reg, v.W)

	case ir.CSRRead:
		if off, ok := csrOffset(v.CSR); ok {
			fmt.Fprintf(e.b, "\tmovq\t%d(%s), %%rax\n", off, stateReg)
		} else {
			e.b.WriteString("\txorq\t%rax, %rax\n")
		}

	case ir.TempRead:
		fmt.Fprintf(e.b, "\t%s\t%d(%%rbp), %s\n", movOp(v.W), tempOffset(v.ID), regName("ax", v.W))

	case ir.Bin:
		e.genBin(v)

	case ir.Un:
		e.genExpr(v.Arg)
		e.genUn(v.Op, v.W)

	case ir.SignExtend:
		e.genExpr(v.Arg)
		e.genSignExtend(v.From, v.W)

	case ir.ZeroExtend:
		e.genExpr(v.Arg)
		e.genZeroExtend(v.From, v.W)

	case ir.Truncate:
		e.genExpr(v.Arg)
		e.genTruncate(v.W)

	case ir.Select:
		e.genSelect(v)

	case ir.Addr:
		e.genExpr(v.Base)
		if v.Offset != 0 {
			fmt.Fprintf(e.b, "\taddq\t$%d, %%rax\n", v.Offset)
		}
		if v.W == ir.W32 {
			e.b.WriteString("\tmovl\t%eax, %eax\n")
		}

	case ir.Load:
		e.genLoad(v)

	default:
		e.b.WriteString("\txorq\t%rax, %rax\n")
	}
}

func (e *emitter) genRegRead(reg uint8, w ir.Width) {
	if phys, ok := e.hotReg64(reg); ok {
		if w == ir.W32 {
			fmt.Fprintf(e.b, "\tmovl\t%s, %%eax\n", sub32(phys))
		} else {
			fmt.Fprintf(e.b, "\tmovq\t%s, %%rax\n", phys)
		}
		return
	}
	fmt.Fprintf(e.b, "\t%s\t%d(%s), %s\n", movOp(w), offRegs+8*int(reg), stateReg, regName("ax", w))
}

// tempOffset maps a block-local temp ID to a byte offset within the
// fixed 1024-byte scratch region anchored at %rbp (offsets.go's stateReg
// companion, dedicated here since it's an x86-only concern): good for up
// to 128 live temps per block, far more than any block this lifter
// produces actually allocates.
func tempOffset(id int) int { return id * 8 }

func movOp(w ir.Width) string {
	switch w {
	case ir.W8:
		return "movzbq"
	case ir.W16:
		return "movzwq"
	case ir.W32:
		return "movl"
	default:
		return "movq"
	}
}

// regName names a scratch register at width w. base is either a legacy
// name suffix ("ax", "cx", "dx") or an extended-register number ("8",
// "9", "11"); the two families spell their 32-bit forms differently
// (%eax vs %r8d), so this dispatches on which family base belongs to.
func regName(base string, w ir.Width) string {
	switch base {
	case "ax", "cx", "dx", "bx", "si", "di":
		if w == ir.W32 {
			return "%e" + base
		}
		return "%r" + base
	default:
		if w == ir.W32 {
			return "%r" + base + "d"
		}
		return "%r" + base
	}
}

func sub32(reg64 string) string {
	// rbx/r12-r15 -> ebx/r12d.. ; already-32-bit names pass through.
	switch reg64 {
	case "%rbx":
		return "%ebx"
	case "%r12":
		return "%r12d"
	case "%r13":
		return "%r13d"
	case "%r14":
		return "%r14d"
	case "%r15":
		return "%r15d"
	default:
		return reg64
	}
}

func csrOffset(csr uint16) (int, bool) {
	switch csr {
	case 0xc00:
		return offCSRCycle, true
	case 0xc01:
		return offCSRTime, true
	case 0xc02:
		return offCSRInstret, true
	default:
		return 0, false
	}
}

func (e *emitter) genSignExtend(from, to ir.Width) {
	switch from {
	case ir.W8:
		e.b.WriteString("\tmovsbq\t%al, %rax\n")
	case ir.W16:
		e.b.WriteString("\tmovswq\t%ax, %rax\n")
	case ir.W32:
		e.b.WriteString("\tmovslq\t%eax, %rax\n")
	}
	if to == ir.W32 {
		e.b.WriteString("\tmovl\t%eax, %eax\n")
	}
}

func (e *emitter) genZeroExtend(from, to ir.Width) {
	switch from {
	case ir.W8:
		e.b.WriteString("\tmovzbq\t%al, %rax\n")
	case ir.W16:
		e.b.WriteString("\tmovzwq\t%ax, %rax\n")
	case ir.W32:
		e.b.WriteString("\tmovl\t%eax, %eax\n")
	}
	if to == ir.W32 {
		e.b.WriteString("\tmovl\t%eax, %eax\n")
	}
}

func (e *emitter) genTruncate(to ir.Width) {
	switch to {
	case ir.W8:
		e.b.WriteString("\tmovzbq\t%al, %rax\n")
	case ir.W16:
		e.b.WriteString("\tmovzwq\t%ax, %rax\n")
	case ir.W32:
		e.b.WriteString("\tmovl\t%eax, %eax\n")
	}
}

func (e *emitter) genSelect(v ir.Select) {
	lfalse := e.newLabel("selF")
	ldone := e.newLabel("selD")
	e.genExpr(v.Cond)
	e.b.WriteString("\ttestq\t%rax, %rax\n")
	fmt.Fprintf(e.b, "\tje\t%s\n", lfalse)
	e.genExpr(v.IfTrue)
	fmt.Fprintf(e.b, "\tjmp\t%s\n", ldone)
	fmt.Fprintf(e.b, "%s:\n", lfalse)
	e.genExpr(v.IfFalse)
	fmt.Fprintf(e.b, "%s:\n", ldone)
}

func (e *emitter) genLoad(v ir.Load) {
	e.genExpr(v.Address)
	e.b.WriteString("\tandq\t" + fmt.Sprintf("%d(%s), %%rax\n", offMemMask, stateReg))
	fmt.Fprintf(e.b, "\taddq\t%d(%s), %%rax\n", offMem, stateReg)
	switch v.MemWidth {
	case ir.W8:
		if v.Signed {
			e.b.WriteString("\tmovsbq\t(%rax), %rax\n")
		} else {
			e.b.WriteString("\tmovzbq\t(%rax), %rax\n")
		}
	case ir.W16:
		if v.Signed {
			e.b.WriteString("\tmovswq\t(%rax), %rax\n")
		} else {
			e.b.WriteString("\tmovzwq\t(%rax), %rax\n")
		}
	case ir.W32:
		if v.Signed {
			e.b.WriteString("\tmovslq\t(%rax), %rax\n")
		} else {
			e.b.WriteString("\tmovl\t(%rax), %eax\n")
		}
	default:
		e.b.WriteString("\tmovq\t(%rax), %rax\n")
	}
}

// genBin evaluates rhs, saves it, evaluates lhs, recovers rhs into %rcx,
// then combines %rax (lhs) and %rcx (rhs) into %rax.
func (e *emitter) genBin(v ir.Bin) {
	e.genExpr(v.Rhs)
	e.b.WriteString("\tpushq\t%rax\n")
	e.genExpr(v.Lhs)
	e.b.WriteString("\tpopq\t%rcx\n")
	e.combine(v.Op, v.W)
}

func (e *emitter) combine(op ir.BinOp, w ir.Width) {
	is32 := w == ir.W32
	ax, cx, dx := regName("ax", w), regName("cx", w), regName("dx", w)
	suf := "q"
	if is32 {
		suf = "l"
	}
	switch op {
	case ir.Add:
		fmt.Fprintf(e.b, "\tadd%s\t%s, %s\n", suf, cx, ax)
	case ir.Sub:
		fmt.Fprintf(e.b, "\tsub%s\t%s, %s\n", suf, cx, ax)
	case ir.And:
		fmt.Fprintf(e.b, "\tand%s\t%s, %s\n", suf, cx, ax)
	case ir.Or:
		fmt.Fprintf(e.b, "\tor%s\t%s, %s\n", suf, cx, ax)
	case ir.Xor:
		fmt.Fprintf(e.b, "\txor%s\t%s, %s\n", suf, cx, ax)
	case ir.Shl:
		fmt.Fprintf(e.b, "\tshl%s\t%%cl, %s\n", suf, ax)
	case ir.ShrU:
		fmt.Fprintf(e.b, "\tshr%s\t%%cl, %s\n", suf, ax)
	case ir.ShrS:
		fmt.Fprintf(e.b, "\tsar%s\t%%cl, %s\n", suf, ax)
	case ir.SLT, ir.Lt:
		e.setcc("setl", w)
	case ir.SLTU, ir.LtU:
		e.setcc("setb", w)
	case ir.Ge:
		e.setcc("setge", w)
	case ir.GeU:
		e.setcc("setae", w)
	case ir.Eq:
		e.setcc("sete", w)
	case ir.Ne:
		e.setcc("setne", w)
	case ir.MulLow:
		fmt.Fprintf(e.b, "\timul%s\t%s, %s\n", suf, cx, ax)
	case ir.MulHUU:
		fmt.Fprintf(e.b, "\tmul%s\t%s\n", suf, cx)
		fmt.Fprintf(e.b, "\tmov%s\t%s, %s\n", suf, dx, ax)
	case ir.MulHSS:
		fmt.Fprintf(e.b, "\timul%s\t%s\n", suf, cx)
		fmt.Fprintf(e.b, "\tmov%s\t%s, %s\n", suf, dx, ax)
	case ir.MulHSU:
		e.genMulHSU(w)
	case ir.DivU:
		e.genDivRem(w, false, false)
	case ir.RemU:
		e.genDivRem(w, false, true)
	case ir.DivS:
		e.genDivRem(w, true, false)
	case ir.RemS:
		e.genDivRem(w, true, true)
	case ir.Rol:
		fmt.Fprintf(e.b, "\trol%s\t%%cl, %s\n", suf, ax)
	case ir.Ror:
		fmt.Fprintf(e.b, "\tror%s\t%%cl, %s\n", suf, ax)
	case ir.AndN:
		fmt.Fprintf(e.b, "\tnot%s\t%s\n\tand%s\t%s, %s\n", suf, cx, suf, cx, ax)
	case ir.OrN:
		fmt.Fprintf(e.b, "\tnot%s\t%s\n\tor%s\t%s, %s\n", suf, cx, suf, cx, ax)
	case ir.XNor:
		fmt.Fprintf(e.b, "\txor%s\t%s, %s\n\tnot%s\t%s\n", suf, cx, ax, suf, ax)
	case ir.Max:
		fmt.Fprintf(e.b, "\tcmp%s\t%s, %s\n\tcmovl\t%s, %s\n", suf, cx, ax, cx, ax)
	case ir.MaxU:
		fmt.Fprintf(e.b, "\tcmp%s\t%s, %s\n\tcmovb\t%s, %s\n", suf, cx, ax, cx, ax)
	case ir.Min:
		fmt.Fprintf(e.b, "\tcmp%s\t%s, %s\n\tcmovg\t%s, %s\n", suf, cx, ax, cx, ax)
	case ir.MinU:
		fmt.Fprintf(e.b, "\tcmp%s\t%s, %s\n\tcmova\t%s, %s\n", suf, cx, ax, cx, ax)
	case ir.BClr:
		fmt.Fprintf(e.b, "\tbtr%s\t%s, %s\n", suf, cx, ax)
	case ir.BSet:
		fmt.Fprintf(e.b, "\tbts%s\t%s, %s\n", suf, cx, ax)
	case ir.BInv:
		fmt.Fprintf(e.b, "\tbtc%s\t%s, %s\n", suf, cx, ax)
	case ir.BExt:
		fmt.Fprintf(e.b, "\tbt%s\t%s, %s\n\tsetb\t%%al\n\tmovzbq\t%%al, %%rax\n", suf, cx, ax)
	case ir.Sh1Add:
		fmt.Fprintf(e.b, "\tlea%s\t(%s,%s,2), %s\n", suf, cx, ax, ax)
	case ir.Sh2Add:
		fmt.Fprintf(e.b, "\tlea%s\t(%s,%s,4), %s\n", suf, cx, ax, ax)
	case ir.Sh3Add:
		fmt.Fprintf(e.b, "\tlea%s\t(%s,%s,8), %s\n", suf, cx, ax, ax)
	case ir.Swap:
		fmt.Fprintf(e.b, "\tmov%s\t%s, %s\n", suf, cx, ax)
	}
}

func (e *emitter) setcc(op string, w ir.Width) {
	suf := "q"
	if w == ir.W32 {
		suf = "l"
	}
	fmt.Fprintf(e.b, "\tcmp%s\t%s, %s\n", suf, regName("cx", w), regName("ax", w))
	fmt.Fprintf(e.b, "\t%s\t%%al\n", op)
	e.b.WriteString("\tmovzbq\t%al, %rax\n")
}

func (e *emitter) genMulHSU(w ir.Width) {
	suf := "q"
	if w == ir.W32 {
		suf = "l"
	}
	ax, cx := regName("ax", w), regName("cx", w)
	r8, r11, dx := regName("8", w), regName("11", w), regName("dx", w)
	fmt.Fprintf(e.b, "\tmov%s\t%s, %s\n", suf, ax, r8)
	fmt.Fprintf(e.b, "\tmul%s\t%s\n", suf, cx)
	fmt.Fprintf(e.b, "\tmov%s\t%s, %s\n", suf, dx, ax)
	fmt.Fprintf(e.b, "\txor%s\t%s, %s\n", suf, r11, r11)
	fmt.Fprintf(e.b, "\ttest%s\t%s, %s\n", suf, r8, r8)
	e.b.WriteString("\tcmovs\t" + cx + ", " + r11 + "\n")
	fmt.Fprintf(e.b, "\tsub%s\t%s, %s\n", suf, r11, ax)
}

// genDivRem emits the divide-by-zero and (for signed division) MIN/-1
// overflow guards, then the actual idiv/div.
func (e *emitter) genDivRem(w ir.Width, signed, rem bool) {
	is32 := w == ir.W32
	suf := "q"
	if is32 {
		suf = "l"
	}
	ax, cx, dx := regName("ax", w), regName("cx", w), regName("dx", w)
	lnz := e.newLabel("dnz")
	ldone := e.newLabel("ddone")

	fmt.Fprintf(e.b, "\ttest%s\t%s, %s\n", suf, cx, cx)
	fmt.Fprintf(e.b, "\tjne\t%s\n", lnz)
	if !signed && !rem {
		fmt.Fprintf(e.b, "\tmov%s\t$-1, %s\n", suf, ax) // all-ones: UINT_MAX
	}
	// RemU and RemS by zero both yield the dividend, already in %rax;
	// DivS by zero yields -1 same as DivU.
	if signed && !rem {
		fmt.Fprintf(e.b, "\tmov%s\t$-1, %s\n", suf, ax)
	}
	fmt.Fprintf(e.b, "\tjmp\t%s\n", ldone)
	fmt.Fprintf(e.b, "%s:\n", lnz)

	if signed {
		lgo := e.newLabel("dgo")
		minReg := regName("8", w)
		if is32 {
			fmt.Fprintf(e.b, "\tcmpl\t$-1, %s\n", cx)
		} else {
			fmt.Fprintf(e.b, "\tcmpq\t$-1, %s\n", cx)
		}
		fmt.Fprintf(e.b, "\tjne\t%s\n", lgo)
		if is32 {
			e.b.WriteString("\tmovl\t$0x80000000, %r8d\n")
		} else {
			e.b.WriteString("\tmovabsq\t$0x8000000000000000, %r8\n")
		}
		fmt.Fprintf(e.b, "\tcmp%s\t%s, %s\n", suf, minReg, ax)
		fmt.Fprintf(e.b, "\tjne\t%s\n", lgo)
		if rem {
			fmt.Fprintf(e.b, "\txor%s\t%s, %s\n", suf, ax, ax)
		} // else DivS overflow result is MIN, already in %rax
		fmt.Fprintf(e.b, "\tjmp\t%s\n", ldone)
		fmt.Fprintf(e.b, "%s:\n", lgo)
		if is32 {
			e.b.WriteString("\tcltd\n")
			e.b.WriteString("\tidivl\t" + cx + "\n")
		} else {
			e.b.WriteString("\tcqto\n")
			e.b.WriteString("\tidivq\t" + cx + "\n")
		}
	} else {
		fmt.Fprintf(e.b, "\txor%s\t%s, %s\n", suf, dx, dx)
		fmt.Fprintf(e.b, "\tdiv%s\t%s\n", suf, cx)
	}
	if rem {
		fmt.Fprintf(e.b, "\tmov%s\t%s, %s\n", suf, dx, ax)
	}
	fmt.Fprintf(e.b, "%s:\n", ldone)
}

func (e *emitter) genUn(op ir.UnOp, w ir.Width) {
	is32 := w == ir.W32
	suf := "q"
	bits := 64
	if is32 {
		suf = "l"
		bits = 32
	}
	ax := regName("ax", w)
	switch op {
	case ir.Neg:
		fmt.Fprintf(e.b, "\tneg%s\t%s\n", suf, ax)
	case ir.Not:
		fmt.Fprintf(e.b, "\tnot%s\t%s\n", suf, ax)
	case ir.Clz:
		e.genClz(w, bits)
	case ir.Ctz:
		e.genCtz(w, bits)
	case ir.Cpop:
		fmt.Fprintf(e.b, "\tpopcnt%s\t%s, %s\n", suf, ax, ax)
	case ir.Rev8:
		fmt.Fprintf(e.b, "\tbswap\t%s\n", ax)
	case ir.OrcB:
		e.genOrcB(w)
	}
}

func (e *emitter) genClz(w ir.Width, bits int) {
	is32 := w == ir.W32
	suf := "q"
	if is32 {
		suf = "l"
	}
	ax, cx := regName("ax", w), regName("cx", w)
	lzero := e.newLabel("clzZ")
	ldone := e.newLabel("clzD")
	fmt.Fprintf(e.b, "\ttest%s\t%s, %s\n", suf, ax, ax)
	fmt.Fprintf(e.b, "\tje\t%s\n", lzero)
	fmt.Fprintf(e.b, "\tbsr%s\t%s, %s\n", suf, ax, ax)
	fmt.Fprintf(e.b, "\tmov%s\t$%d, %s\n", suf, bits-1, cx)
	fmt.Fprintf(e.b, "\tsub%s\t%s, %s\n", suf, ax, cx)
	fmt.Fprintf(e.b, "\tmov%s\t%s, %s\n", suf, cx, ax)
	fmt.Fprintf(e.b, "\tjmp\t%s\n", ldone)
	fmt.Fprintf(e.b, "%s:\n", lzero)
	fmt.Fprintf(e.b, "\tmov%s\t$%d, %s\n", suf, bits, ax)
	fmt.Fprintf(e.b, "%s:\n", ldone)
}

func (e *emitter) genCtz(w ir.Width, bits int) {
	is32 := w == ir.W32
	suf := "q"
	if is32 {
		suf = "l"
	}
	ax := regName("ax", w)
	lzero := e.newLabel("ctzZ")
	ldone := e.newLabel("ctzD")
	fmt.Fprintf(e.b, "\ttest%s\t%s, %s\n", suf, ax, ax)
	fmt.Fprintf(e.b, "\tje\t%s\n", lzero)
	fmt.Fprintf(e.b, "\tbsf%s\t%s, %s\n", suf, ax, ax)
	fmt.Fprintf(e.b, "\tjmp\t%s\n", ldone)
	fmt.Fprintf(e.b, "%s:\n", lzero)
	fmt.Fprintf(e.b, "\tmov%s\t$%d, %s\n", suf, bits, ax)
	fmt.Fprintf(e.b, "%s:\n", ldone)
}

// genOrcB unrolls RISC-V's "OR-combine, byte granule": each byte becomes
// 0xff if it was nonzero, 0x00 otherwise. Unrolled rather than a real
// loop so no loop-counter register needs to survive interleaved with the
// rest of this file's fixed scratch assignments.
func (e *emitter) genOrcB(w ir.Width) {
	n := 8
	if w == ir.W32 {
		n = 4
	}
	e.b.WriteString("\tmovq\t%rax, %rcx\n")
	e.b.WriteString("\txorq\t%rdx, %rdx\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(e.b, "\tmovq\t%%rcx, %%r8\n")
		if i > 0 {
			fmt.Fprintf(e.b, "\tshrq\t$%d, %%r8\n", 8*i)
		}
		e.b.WriteString("\tandb\t$0xff, %r8b\n")
		e.b.WriteString("\tcmpb\t$0, %r8b\n")
		e.b.WriteString("\tsetne\t%r8b\n")
		e.b.WriteString("\tnegb\t%r8b\n")
		e.b.WriteString("\tmovzbq\t%r8b, %r8\n")
		if i > 0 {
			fmt.Fprintf(e.b, "\tshlq\t$%d, %%r8\n", 8*i)
		}
		e.b.WriteString("\torq\t%r8, %rdx\n")
	}
	e.b.WriteString("\tmovq\t%rdx, %rax\n")
	if w == ir.W32 {
		e.b.WriteString("\tmovl\t%eax, %eax\n")
	}
}
