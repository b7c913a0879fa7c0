package lift

import (
	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/rv"
)

// liftCSR handles the six Zicsr instructions: reads
// always return the current value (into rd, subject to the usual x0
// discard); writes commit unless the instruction is a set/clear form
// whose source operand is zero (RISC-V's read-only idiom, used e.g. to
// read `cycle`/`instret` without side effects).
func (l *Lifter) liftCSR(b *ir.Block, in rv.Inst) error {
	var src ir.Expr
	var srcIsZero bool
	switch in.Op {
	case rv.OpCSRRW, rv.OpCSRRS, rv.OpCSRRC:
		src = l.readReg(in.Rs1)
		srcIsZero = in.Rs1 == 0
	case rv.OpCSRRWI, rv.OpCSRRSI, rv.OpCSRRCI:
		src = ir.Const{W: l.RegWidth, Value: uint64(in.Imm)}
		srcIsZero = in.Imm == 0
	default:
		return errNotCSR
	}

	old := ir.CSRRead{CSR: in.CSR, W: l.RegWidth}
	l.writeReg(b, in.Rd, old)

	switch in.Op {
	case rv.OpCSRRW, rv.OpCSRRWI:
		b.Emit(ir.CSRWrite{CSR: in.CSR, Value: src})
	case rv.OpCSRRS, rv.OpCSRRSI:
		if !srcIsZero {
			b.Emit(ir.CSRWrite{CSR: in.CSR, Value: ir.Bin{Op: ir.Or, Lhs: old, Rhs: src, W: l.RegWidth}})
		}
	case rv.OpCSRRC, rv.OpCSRRCI:
		if !srcIsZero {
			b.Emit(ir.CSRWrite{CSR: in.CSR, Value: ir.Bin{Op: ir.AndN, Lhs: old, Rhs: src, W: l.RegWidth}})
		}
	}
	return nil
}
