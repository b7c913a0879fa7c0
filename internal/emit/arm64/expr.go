package arm64

import (
	"fmt"

	"github.com/openrvt/rvtx/internal/ir"
)

// genExpr emits code evaluating e and leaves the result in x0 (w0 for
// 32-bit values; the hardware zero-extends w0 into x0 on every write, so
// callers needing RISC-V's *W sign-extension semantics rely on the IR
// already wrapping the node in an explicit ir.SignExtend, same convention
// as internal/emit/x86). Binary operators evaluate the left operand
// first and spill it to the stack before evaluating the right: AArch64's
// shift forms consume the left operand's register, so the left value must
// be out of x0 before the right-hand side runs. The same holds for any
// two-operand evaluation whose right-hand side could itself clobber the
// scratch registers.
func (e *emitter) genExpr(expr ir.Expr) {
	switch v := expr.(type) {
	case ir.Const:
		e.movImm64("x0", v.Value)

	case ir.RegRead:
		e.genRegRead(v.Reg, v.W)

	case ir.CSRRead:
		if off, ok := csrOffset(v.CSR); ok {
			fmt.Fprintf(e.b, "\tldr\tx0, [%s, #%d]\n", stateReg, off)
		} else {
			e.b.WriteString("\tmov\tx0, xzr\n")
		}

	case ir.TempRead:
		fmt.Fprintf(e.b, "\t%s\t%s, [x29, #%d]\n", loadOp(v.W), reg("0", v.W), tempOffset(v.ID))

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
			e.addImm("x0", "x0", v.Offset)
		}
		if v.W == ir.W32 {
			e.b.WriteString("\tmov\tw0, w0\n")
		}

	case ir.Load:
		e.genLoad(v)

	default:
		e.b.WriteString("\tmov\tx0, xzr\n")
	}
}

func (e *emitter) genRegRead(reg8 uint8, w ir.Width) {
	if phys, ok := e.hotReg(reg8); ok {
		fmt.Fprintf(e.b, "\tmov\t%s, %s\n", reg("0", w), wOrX(phys, w))
		return
	}
	fmt.Fprintf(e.b, "\t%s\t%s, [%s, #%d]\n", loadOp(w), reg("0", w), stateReg, offRegs+8*int(reg8))
}

// push/pop spill x0 to/from a 16-byte-aligned stack slot; a single fixed
// scratch register can't survive arbitrarily nested operand evaluation
// the way a stack can.
func (e *emitter) push() {
	e.b.WriteString("\tsub\tsp, sp, #16\n\tstr\tx0, [sp]\n")
}

func (e *emitter) pop(into string) {
	fmt.Fprintf(e.b, "\tldr\t%s, [sp]\n\tadd\tsp, sp, #16\n", into)
}

// tempOffset maps a block-local temp ID to a byte offset within the
// fixed tempRegionSize scratch region anchored at x29.
func tempOffset(id int) int { return id * 8 }

func loadOp(w ir.Width) string {
	switch w {
	case ir.W8:
		return "ldrb"
	case ir.W16:
		return "ldrh"
	case ir.W32:
		return "ldr"
	default:
		return "ldr"
	}
}

// reg names the scratch register numbered n ("0".."4") at width w.
func reg(n string, w ir.Width) string {
	if w == ir.W32 {
		return "w" + n
	}
	return "x" + n
}

// wOrX renders a hot physical register (always given in its x-form, e.g.
// "x19") at the requested width.
func wOrX(phys string, w ir.Width) string {
	if w == ir.W32 {
		return "w" + phys[1:]
	}
	return phys
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

// addImm adds a constant (which may exceed A64's 12-bit shifted-immediate
// ADD form) to src, leaving the result in dst.
func (e *emitter) addImm(dst, src string, v int64) {
	if v >= 0 && v <= 0xfff {
		fmt.Fprintf(e.b, "\tadd\t%s, %s, #%d\n", dst, src, v)
		return
	}
	if v < 0 && -v <= 0xfff {
		fmt.Fprintf(e.b, "\tsub\t%s, %s, #%d\n", dst, src, -v)
		return
	}
	e.movImm64("x4", uint64(v))
	fmt.Fprintf(e.b, "\tadd\t%s, %s, x4\n", dst, src)
}

func (e *emitter) genSignExtend(from, to ir.Width) {
	switch from {
	case ir.W8:
		e.b.WriteString("\tsxtb\tx0, w0\n")
	case ir.W16:
		e.b.WriteString("\tsxth\tx0, w0\n")
	case ir.W32:
		e.b.WriteString("\tsxtw\tx0, w0\n")
	}
	if to == ir.W32 {
		e.b.WriteString("\tmov\tw0, w0\n")
	}
}

func (e *emitter) genZeroExtend(from, to ir.Width) {
	switch from {
	case ir.W8:
		e.b.WriteString("\tand\tx0, x0, #0xff\n")
	case ir.W16:
		e.b.WriteString("\tand\tx0, x0, #0xffff\n")
	case ir.W32:
		e.b.WriteString("\tmov\tw0, w0\n")
	}
	if to == ir.W32 {
		e.b.WriteString("\tmov\tw0, w0\n")
	}
}

func (e *emitter) genTruncate(to ir.Width) {
	switch to {
	case ir.W8:
		e.b.WriteString("\tand\tx0, x0, #0xff\n")
	case ir.W16:
		e.b.WriteString("\tand\tx0, x0, #0xffff\n")
	case ir.W32:
		e.b.WriteString("\tmov\tw0, w0\n")
	}
}

func (e *emitter) genSelect(v ir.Select) {
	lfalse := e.newLabel("selF")
	ldone := e.newLabel("selD")
	e.genExpr(v.Cond)
	e.b.WriteString("\tcbz\tx0, " + lfalse + "\n")
	e.genExpr(v.IfTrue)
	fmt.Fprintf(e.b, "\tb\t%s\n", ldone)
	fmt.Fprintf(e.b, "%s:\n", lfalse)
	e.genExpr(v.IfFalse)
	fmt.Fprintf(e.b, "%s:\n", ldone)
}

func (e *emitter) genLoad(v ir.Load) {
	e.genExpr(v.Address)
	fmt.Fprintf(e.b, "\tldr\tx1, [%s, #%d]\n", stateReg, offMemMask)
	e.b.WriteString("\tand\tx0, x0, x1\n")
	fmt.Fprintf(e.b, "\tldr\tx1, [%s, #%d]\n", stateReg, offMem)
	e.b.WriteString("\tadd\tx0, x0, x1\n")
	switch v.MemWidth {
	case ir.W8:
		if v.Signed {
			e.b.WriteString("\tldrsb\tx0, [x0]\n")
		} else {
			e.b.WriteString("\tldrb\tw0, [x0]\n")
		}
	case ir.W16:
		if v.Signed {
			e.b.WriteString("\tldrsh\tx0, [x0]\n")
		} else {
			e.b.WriteString("\tldrh\tw0, [x0]\n")
		}
	case ir.W32:
		if v.Signed {
			e.b.WriteString("\tldrsw\tx0, [x0]\n")
		} else {
			e.b.WriteString("\tldr\tw0, [x0]\n")
		}
	default:
		e.b.WriteString("\tldr\tx0, [x0]\n")
	}
}

// genBin evaluates the left operand, spills it to the stack, evaluates
// the right operand, moves it aside into x1, then restores the left
// operand into x0. combine always sees lhs in x0 and rhs in x1.
func (e *emitter) genBin(v ir.Bin) {
	e.genExpr(v.Lhs)
	e.push()
	e.genExpr(v.Rhs)
	e.b.WriteString("\tmov\tx1, x0\n")
	e.pop("x0")
	e.combine(v.Op, v.W)
}

func (e *emitter) combine(op ir.BinOp, w ir.Width) {
	ax, bx := reg("0", w), reg("1", w)
	switch op {
	case ir.Add:
		fmt.Fprintf(e.b, "\tadd\t%s, %s, %s\n", ax, ax, bx)
	case ir.Sub:
		fmt.Fprintf(e.b, "\tsub\t%s, %s, %s\n", ax, ax, bx)
	case ir.And:
		fmt.Fprintf(e.b, "\tand\t%s, %s, %s\n", ax, ax, bx)
	case ir.Or:
		fmt.Fprintf(e.b, "\torr\t%s, %s, %s\n", ax, ax, bx)
	case ir.Xor:
		fmt.Fprintf(e.b, "\teor\t%s, %s, %s\n", ax, ax, bx)
	case ir.Shl:
		fmt.Fprintf(e.b, "\tlslv\t%s, %s, %s\n", ax, ax, bx)
	case ir.ShrU:
		fmt.Fprintf(e.b, "\tlsrv\t%s, %s, %s\n", ax, ax, bx)
	case ir.ShrS:
		fmt.Fprintf(e.b, "\tasrv\t%s, %s, %s\n", ax, ax, bx)
	case ir.SLT, ir.Lt:
		fmt.Fprintf(e.b, "\tcmp\t%s, %s\n\tcset\t%s, lt\n", ax, bx, ax)
	case ir.SLTU, ir.LtU:
		fmt.Fprintf(e.b, "\tcmp\t%s, %s\n\tcset\t%s, lo\n", ax, bx, ax)
	case ir.Ge:
		fmt.Fprintf(e.b, "\tcmp\t%s, %s\n\tcset\t%s, ge\n", ax, bx, ax)
	case ir.GeU:
		fmt.Fprintf(e.b, "\tcmp\t%s, %s\n\tcset\t%s, hs\n", ax, bx, ax)
	case ir.Eq:
		fmt.Fprintf(e.b, "\tcmp\t%s, %s\n\tcset\t%s, eq\n", ax, bx, ax)
	case ir.Ne:
		fmt.Fprintf(e.b, "\tcmp\t%s, %s\n\tcset\t%s, ne\n", ax, bx, ax)
	case ir.MulLow:
		fmt.Fprintf(e.b, "\tmul\t%s, %s, %s\n", ax, ax, bx)
	case ir.MulHUU:
		e.genMulH(w, false, false)
	case ir.MulHSS:
		e.genMulH(w, true, true)
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
		fmt.Fprintf(e.b, "\tneg\t%s, %s\n\trorv\t%s, %s, %s\n", bx, bx, ax, ax, bx)
	case ir.Ror:
		fmt.Fprintf(e.b, "\trorv\t%s, %s, %s\n", ax, ax, bx)
	case ir.AndN:
		fmt.Fprintf(e.b, "\tbic\t%s, %s, %s\n", ax, ax, bx)
	case ir.OrN:
		fmt.Fprintf(e.b, "\torn\t%s, %s, %s\n", ax, ax, bx)
	case ir.XNor:
		fmt.Fprintf(e.b, "\teor\t%s, %s, %s\n\tmvn\t%s, %s\n", ax, ax, bx, ax, ax)
	case ir.Max:
		fmt.Fprintf(e.b, "\tcmp\t%s, %s\n\tcsel\t%s, %s, %s, gt\n", ax, bx, ax, ax, bx)
	case ir.MaxU:
		fmt.Fprintf(e.b, "\tcmp\t%s, %s\n\tcsel\t%s, %s, %s, hi\n", ax, bx, ax, ax, bx)
	case ir.Min:
		fmt.Fprintf(e.b, "\tcmp\t%s, %s\n\tcsel\t%s, %s, %s, lt\n", ax, bx, ax, ax, bx)
	case ir.MinU:
		fmt.Fprintf(e.b, "\tcmp\t%s, %s\n\tcsel\t%s, %s, %s, lo\n", ax, bx, ax, ax, bx)
	case ir.BClr:
		fmt.Fprintf(e.b, "\tmov\t%s, #1\n\tlslv\t%s, %s, %s\n\tbic\t%s, %s, %s\n", reg("2", w), reg("2", w), reg("2", w), bx, ax, ax, reg("2", w))
	case ir.BSet:
		fmt.Fprintf(e.b, "\tmov\t%s, #1\n\tlslv\t%s, %s, %s\n\torr\t%s, %s, %s\n", reg("2", w), reg("2", w), reg("2", w), bx, ax, ax, reg("2", w))
	case ir.BInv:
		fmt.Fprintf(e.b, "\tmov\t%s, #1\n\tlslv\t%s, %s, %s\n\teor\t%s, %s, %s\n", reg("2", w), reg("2", w), reg("2", w), bx, ax, ax, reg("2", w))
	case ir.BExt:
		fmt.Fprintf(e.b, "\tlsrv\t%s, %s, %s\n\tand\t%s, %s, #1\n", ax, ax, bx, ax, ax)
	case ir.Sh1Add:
		fmt.Fprintf(e.b, "\tadd\t%s, %s, %s, lsl #1\n", ax, bx, ax)
	case ir.Sh2Add:
		fmt.Fprintf(e.b, "\tadd\t%s, %s, %s, lsl #2\n", ax, bx, ax)
	case ir.Sh3Add:
		fmt.Fprintf(e.b, "\tadd\t%s, %s, %s, lsl #3\n", ax, bx, ax)
	case ir.Swap:
		fmt.Fprintf(e.b, "\tmov\t%s, %s\n", ax, bx)
	}
}

// genMulH computes the high half of a 32x32->64 or 64x64->128 multiply.
// The 32-bit case widens through umull/smull (A64 has no 32-bit *MULH),
// discarding the low half via a 32-bit shift of the 64-bit product.
func (e *emitter) genMulH(w ir.Width, lhsSigned, rhsSigned bool) {
	if w == ir.W64 {
		if lhsSigned && rhsSigned {
			e.b.WriteString("\tsmulh\tx0, x0, x1\n")
		} else {
			e.b.WriteString("\tumulh\tx0, x0, x1\n")
		}
		return
	}
	if lhsSigned && rhsSigned {
		e.b.WriteString("\tsmull\tx0, w0, w1\n")
	} else {
		e.b.WriteString("\tumull\tx0, w0, w1\n")
	}
	e.b.WriteString("\tlsr\tx0, x0, #32\n")
}

// genMulHSU computes mulhsu(a,b) = mulhu(a,b) - (a<0 ? b : 0), the
// standard correction that turns an unsigned-times-unsigned high
// multiply into a signed(a)-times-unsigned(b) one without a mixed-sign
// hardware instruction.
func (e *emitter) genMulHSU(w ir.Width) {
	if w == ir.W64 {
		e.b.WriteString("\tmov\tx2, x0\n") // keep a's sign bit around
		e.b.WriteString("\tumulh\tx0, x0, x1\n")
		e.b.WriteString("\tasr\tx2, x2, #63\n")
		e.b.WriteString("\tand\tx2, x2, x1\n")
		e.b.WriteString("\tsub\tx0, x0, x2\n")
		return
	}
	e.b.WriteString("\tmov\tw2, w0\n")
	e.b.WriteString("\tumull\tx0, w0, w1\n")
	e.b.WriteString("\tlsr\tx0, x0, #32\n")
	e.b.WriteString("\tasr\tw2, w2, #31\n")
	e.b.WriteString("\tand\tw2, w2, w1\n")
	e.b.WriteString("\tsub\tw0, w0, w2\n")
}

// genDivRem implements RISC-V's divide-by-zero contract:
// AArch64's UDIV/SDIV already return 0 on divide-by-zero instead of
// faulting, and already wrap MIN/-1 to MIN with a zero remainder via
// plain two's-complement arithmetic, so only the zero-divisor case needs
// an explicit branch; the MIN/-1 overflow case needs no special-casing
// at all on this backend.
func (e *emitter) genDivRem(w ir.Width, signed, rem bool) {
	ax, bx, save := reg("0", w), reg("1", w), reg("2", w)
	lzero := e.newLabel("dzero")
	ldone := e.newLabel("ddone")

	fmt.Fprintf(e.b, "\tmov\t%s, %s\n", save, ax)
	fmt.Fprintf(e.b, "\tcbz\t%s, %s\n", bx, lzero)
	if signed {
		fmt.Fprintf(e.b, "\tsdiv\t%s, %s, %s\n", ax, ax, bx)
	} else {
		fmt.Fprintf(e.b, "\tudiv\t%s, %s, %s\n", ax, ax, bx)
	}
	if rem {
		fmt.Fprintf(e.b, "\tmsub\t%s, %s, %s, %s\n", ax, ax, bx, save)
	}
	fmt.Fprintf(e.b, "\tb\t%s\n", ldone)
	fmt.Fprintf(e.b, "%s:\n", lzero)
	if rem {
		fmt.Fprintf(e.b, "\tmov\t%s, %s\n", ax, save)
	} else {
		fmt.Fprintf(e.b, "\tmovn\t%s, #0\n", ax)
	}
	fmt.Fprintf(e.b, "%s:\n", ldone)
}

func (e *emitter) genUn(op ir.UnOp, w ir.Width) {
	ax := reg("0", w)
	switch op {
	case ir.Neg:
		fmt.Fprintf(e.b, "\tneg\t%s, %s\n", ax, ax)
	case ir.Not:
		fmt.Fprintf(e.b, "\tmvn\t%s, %s\n", ax, ax)
	case ir.Clz:
		fmt.Fprintf(e.b, "\tclz\t%s, %s\n", ax, ax)
	case ir.Ctz:
		fmt.Fprintf(e.b, "\trbit\t%s, %s\n\tclz\t%s, %s\n", ax, ax, ax, ax)
	case ir.Cpop:
		e.genCpop(w)
	case ir.Rev8:
		fmt.Fprintf(e.b, "\trev\t%s, %s\n", ax, ax)
	case ir.OrcB:
		e.genOrcB(w)
	}
}

// genCpop is the classic SWAR bit-count, chosen over a branchy loop to
// match this backend's linear, branch-free style for unary helpers.
func (e *emitter) genCpop(w ir.Width) {
	if w == ir.W32 {
		e.b.WriteString("\tmov\tw1, #0x5555\n\tmovk\tw1, #0x5555, lsl #16\n")
		e.b.WriteString("\tlsr\tw2, w0, #1\n\tand\tw2, w2, w1\n\tsub\tw0, w0, w2\n")
		e.b.WriteString("\tmov\tw1, #0x3333\n\tmovk\tw1, #0x3333, lsl #16\n")
		e.b.WriteString("\tand\tw2, w0, w1\n\tlsr\tw0, w0, #2\n\tand\tw0, w0, w1\n\tadd\tw0, w0, w2\n")
		e.b.WriteString("\tmov\tw1, #0x0f0f\n\tmovk\tw1, #0x0f0f, lsl #16\n")
		e.b.WriteString("\tlsr\tw2, w0, #4\n\tadd\tw0, w0, w2\n\tand\tw0, w0, w1\n")
		e.b.WriteString("\tmov\tw1, #0x0101\n\tmovk\tw1, #0x0101, lsl #16\n")
		e.b.WriteString("\tmul\tw0, w0, w1\n\tlsr\tw0, w0, #24\n")
		return
	}
	e.movImm64("x1", 0x5555555555555555)
	e.b.WriteString("\tlsr\tx2, x0, #1\n\tand\tx2, x2, x1\n\tsub\tx0, x0, x2\n")
	e.movImm64("x1", 0x3333333333333333)
	e.b.WriteString("\tand\tx2, x0, x1\n\tlsr\tx0, x0, #2\n\tand\tx0, x0, x1\n\tadd\tx0, x0, x2\n")
	e.movImm64("x1", 0x0f0f0f0f0f0f0f0f)
	e.b.WriteString("\tlsr\tx2, x0, #4\n\tadd\tx0, x0, x2\n\tand\tx0, x0, x1\n")
	e.movImm64("x1", 0x0101010101010101)
	e.b.WriteString("\tmul\tx0, x0, x1\n\tlsr\tx0, x0, #56\n")
}

// genOrcB unrolls the "OR-combine, byte granule" operator: each byte
// becomes 0xff if it was nonzero, 0x00 otherwise.
func (e *emitter) genOrcB(w ir.Width) {
	n := 8
	if w == ir.W32 {
		n = 4
	}
	e.b.WriteString("\tmov\tx1, x0\n\tmov\tx0, xzr\n")
	for i := 0; i < n; i++ {
		e.b.WriteString("\tmov\tx2, x1\n")
		if i > 0 {
			fmt.Fprintf(e.b, "\tlsr\tx2, x2, #%d\n", 8*i)
		}
		e.b.WriteString("\tand\tx2, x2, #0xff\n")
		e.b.WriteString("\tcmp\tx2, #0\n\tcset\tx2, ne\n\tneg\tx2, x2\n\tand\tx2, x2, #0xff\n")
		if i > 0 {
			fmt.Fprintf(e.b, "\tlsl\tx2, x2, #%d\n", 8*i)
		}
		e.b.WriteString("\torr\tx0, x0, x2\n")
	}
	if w == ir.W32 {
		e.b.WriteString("\tmov\tw0, w0\n")
	}
}
