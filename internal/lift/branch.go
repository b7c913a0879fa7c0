package lift

import (
	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/rv"
)

var branchCmp = map[rv.Op]ir.BinOp{
	rv.OpBEQ: ir.Eq, rv.OpBNE: ir.Ne,
	rv.OpBLT: ir.Lt, rv.OpBGE: ir.Ge,
	rv.OpBLTU: ir.LtU, rv.OpBGEU: ir.GeU,
}

func (l *Lifter) liftBranch(b *ir.Block, in rv.Inst) error {
	cmp := branchCmp[in.Op]
	cond := ir.Bin{Op: cmp, Lhs: l.readReg(in.Rs1), Rhs: l.readReg(in.Rs2), W: l.RegWidth}
	thenPC := uint64(int64(in.PC) + in.Imm)
	elsePC := in.PC + uint64(in.Len)
	b.Term = ir.Branch{Cond: cond, Then: thenPC, Else: elsePC}
	return nil
}

func (l *Lifter) liftJAL(b *ir.Block, in rv.Inst) error {
	link := in.PC + uint64(in.Len)
	l.writeReg(b, in.Rd, ir.Const{W: l.RegWidth, Value: link})
	b.Term = ir.Jump{Target: uint64(int64(in.PC) + in.Imm)}
	return nil
}

func (l *Lifter) liftJALR(b *ir.Block, in rv.Inst) error {
	// The target must be computed from rs1's pre-write value even when
	// rd == rs1, so it is captured into a temp before rd is overwritten.
	raw := ir.Bin{Op: ir.Add, Lhs: l.readReg(in.Rs1), Rhs: ir.Const{W: l.RegWidth, Value: uint64(in.Imm)}, W: l.RegWidth}
	masked := ir.Bin{Op: ir.And, Lhs: raw, Rhs: ir.Const{W: l.RegWidth, Value: ^uint64(1)}, W: l.RegWidth}
	tmp := b.NewTemp(l.RegWidth)
	b.Emit(ir.TempAssign{ID: tmp, Value: masked, W: l.RegWidth})

	link := in.PC + uint64(in.Len)
	l.writeReg(b, in.Rd, ir.Const{W: l.RegWidth, Value: link})

	// An indirect jump is a context-changing terminator: it invalidates
	// the LR/SC reservation, same as syscall and halt.
	b.Emit(ir.ReservationOp{Kind: ir.ReservationClear})
	b.Term = ir.IndirectJump{Target: ir.TempRead{ID: tmp, W: l.RegWidth}}
	return nil
}
