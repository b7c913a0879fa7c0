package lift

import (
	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/rv"
)

var loadWidth = map[rv.Op]struct {
	w      ir.Width
	signed bool
}{
	rv.OpLB: {ir.W8, true}, rv.OpLBU: {ir.W8, false},
	rv.OpLH: {ir.W16, true}, rv.OpLHU: {ir.W16, false},
	rv.OpLW: {ir.W32, true}, rv.OpLWU: {ir.W32, false},
	rv.OpLD: {ir.W64, true},
}

var storeWidth = map[rv.Op]ir.Width{
	rv.OpSB: ir.W8, rv.OpSH: ir.W16, rv.OpSW: ir.W32, rv.OpSD: ir.W64,
}

func (l *Lifter) liftMemory(b *ir.Block, in rv.Inst) error {
	if lw, ok := loadWidth[in.Op]; ok {
		addr := ir.Addr{Base: l.readReg(in.Rs1), Offset: in.Imm, W: l.RegWidth}
		l.writeReg(b, in.Rd, ir.Load{Address: addr, MemWidth: lw.w, Signed: lw.signed, W: l.RegWidth})
		return nil
	}
	if sw, ok := storeWidth[in.Op]; ok {
		addr := ir.Addr{Base: l.readReg(in.Rs1), Offset: in.Imm, W: l.RegWidth}
		b.Emit(ir.Store{Address: addr, Value: l.readReg(in.Rs2), MemWidth: sw})
		// Conservative reservation policy: any store
		// clears the reservation, not just ones that alias res_addr.
		// This trades a rare spurious SC failure for never needing
		// runtime alias tracking against an address the backend already
		// discarded.
		b.Emit(ir.ReservationOp{Kind: ir.ReservationClear})
		return nil
	}
	return errNotMemory
}
