package lift

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/rv"
)

// evalExpr is a tiny reference interpreter covering exactly the node
// shapes the lifter produces for shift and *W instructions. It exists to
// check properties against, not to replace the emitters.
func evalExpr(e ir.Expr, regs map[uint8]uint64) uint64 {
	switch v := e.(type) {
	case ir.Const:
		return v.Value
	case ir.RegRead:
		if v.Reg == 0 {
			return 0
		}
		return regs[v.Reg]
	case ir.Bin:
		lhs := evalExpr(v.Lhs, regs)
		rhs := evalExpr(v.Rhs, regs)
		switch v.Op {
		case ir.Add:
			return maskWidth(lhs+rhs, v.W)
		case ir.Sub:
			return maskWidth(lhs-rhs, v.W)
		case ir.And:
			return maskWidth(lhs&rhs, v.W)
		case ir.Or:
			return maskWidth(lhs|rhs, v.W)
		case ir.Xor:
			return maskWidth(lhs^rhs, v.W)
		case ir.Shl:
			return maskWidth(maskWidth(lhs, v.W)<<rhs, v.W)
		case ir.ShrU:
			return maskWidth(lhs, v.W) >> rhs
		case ir.ShrS:
			return maskWidth(uint64(signed(lhs, v.W)>>int64(rhs)), v.W)
		}
	case ir.Truncate:
		return maskWidth(evalExpr(v.Arg, regs), v.W)
	case ir.SignExtend:
		return uint64(signed(evalExpr(v.Arg, regs), v.From))
	}
	panic("evalExpr: unhandled node")
}

func maskWidth(v uint64, w ir.Width) uint64 {
	if w >= 64 {
		return v
	}
	return v & (uint64(1)<<uint(w) - 1)
}

func signed(v uint64, w ir.Width) int64 {
	v = maskWidth(v, w)
	bit := uint64(1) << uint(w-1)
	if v&bit != 0 {
		return int64(v - (uint64(1) << uint(w)))
	}
	return int64(v)
}

// TestShiftMaskingIsEquivalentToModularShiftAmount checks that for any shift amount, the lifted IR must behave
// as if the amount were taken modulo XLEN, for every shift amount a guest
// program could present in rs2 -- not just the in-range ones.
func TestShiftMaskingIsEquivalentToModularShiftAmount(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		xlenChoice := rapid.SampledFrom([]rv.XLEN{rv.XLEN32, rv.XLEN64}).Draw(t, "xlen")
		rs1val := rapid.Uint64().Draw(t, "rs1")
		amt := rapid.Uint64Range(0, 1<<20).Draw(t, "amt")
		op := rapid.SampledFrom([]rv.Op{rv.OpSLL, rv.OpSRL, rv.OpSRA}).Draw(t, "op")

		l := New(xlenChoice)
		b := &ir.Block{}
		if _, err := l.Lift(b, rv.Inst{Op: op, Rd: 5, Rs1: 1, Rs2: 2}); err != nil {
			t.Fatalf("Lift: %v", err)
		}
		rw := b.Stmts[len(b.Stmts)-1].(ir.RegWrite)

		regs := map[uint8]uint64{1: rs1val, 2: amt}
		got := evalExpr(rw.Value, regs)

		want := amt % uint64(xlenChoice)
		wantVal := shiftRef(op, rs1val, want, xlenChoice)
		if got != wantVal {
			t.Fatalf("xlen=%d op=%v rs1=0x%x amt=%d: got 0x%x, want 0x%x (masked amt=%d)",
				xlenChoice, op, rs1val, amt, got, wantVal, want)
		}
	})
}

func shiftRef(op rv.Op, v, amt uint64, xlen rv.XLEN) uint64 {
	v = maskWidth(v, ir.Width(xlen))
	switch op {
	case rv.OpSLL:
		return maskWidth(v<<amt, ir.Width(xlen))
	case rv.OpSRL:
		return v >> amt
	case rv.OpSRA:
		return maskWidth(uint64(signed(v, ir.Width(xlen))>>amt), ir.Width(xlen))
	}
	panic("shiftRef: unhandled op")
}

// TestWOpsAlwaysSignExtendOnXLEN64 exercises the invariant that every
// *W-suffixed RV64 opcode's 32-bit result is sign-extended to 64 bits
// regardless of the operand values chosen.
func TestWOpsAlwaysSignExtendOnXLEN64(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rs1 := rapid.Uint64().Draw(t, "rs1")
		rs2 := rapid.Uint64().Draw(t, "rs2")

		l := New(rv.XLEN64)
		b := &ir.Block{}
		if _, err := l.Lift(b, rv.Inst{Op: rv.OpADDW, Rd: 5, Rs1: 1, Rs2: 2}); err != nil {
			t.Fatalf("Lift: %v", err)
		}
		rw := b.Stmts[len(b.Stmts)-1].(ir.RegWrite)
		se, ok := rw.Value.(ir.SignExtend)
		if !ok || se.From != ir.W32 || se.W != ir.W64 {
			t.Fatalf("expected a W32->W64 SignExtend, got %#v", rw.Value)
		}

		regs := map[uint8]uint64{1: rs1, 2: rs2}
		got := evalExpr(rw.Value, regs)

		sum32 := uint32(rs1) + uint32(rs2)
		want := uint64(int64(int32(sum32)))
		if got != want {
			t.Fatalf("rs1=0x%x rs2=0x%x: got 0x%x, want 0x%x", rs1, rs2, got, want)
		}
	})
}
