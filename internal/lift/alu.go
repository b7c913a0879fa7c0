package lift

import (
	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/rv"
)

// shiftMask returns the mask covering the low bits of a shift amount
// that are architecturally significant at width w: 5 bits for a 32-bit
// operation, 6 for a 64-bit one.
func shiftMask(w ir.Width) uint64 {
	if w == ir.W64 {
		return 0x3f
	}
	return 0x1f
}

func maskShamt(amt ir.Expr, w ir.Width) ir.Expr {
	return ir.Bin{Op: ir.And, Lhs: amt, Rhs: ir.Const{W: w, Value: shiftMask(w)}, W: w}
}

var regRegOp = map[rv.Op]ir.BinOp{
	rv.OpADD: ir.Add, rv.OpSUB: ir.Sub, rv.OpSLL: ir.Shl,
	rv.OpSLT: ir.SLT, rv.OpSLTU: ir.SLTU, rv.OpXOR: ir.Xor,
	rv.OpSRL: ir.ShrU, rv.OpSRA: ir.ShrS, rv.OpOR: ir.Or, rv.OpAND: ir.And,
	rv.OpMUL: ir.MulLow, rv.OpMULH: ir.MulHSS, rv.OpMULHSU: ir.MulHSU, rv.OpMULHU: ir.MulHUU,
	rv.OpDIV: ir.DivS, rv.OpDIVU: ir.DivU, rv.OpREM: ir.RemS, rv.OpREMU: ir.RemU,
	rv.OpANDN: ir.AndN, rv.OpORN: ir.OrN, rv.OpXNOR: ir.XNor,
	rv.OpMAX: ir.Max, rv.OpMAXU: ir.MaxU, rv.OpMIN: ir.Min, rv.OpMINU: ir.MinU,
	rv.OpROL: ir.Rol, rv.OpROR: ir.Ror,
	rv.OpBCLR: ir.BClr, rv.OpBEXT: ir.BExt, rv.OpBINV: ir.BInv, rv.OpBSET: ir.BSet,
	rv.OpSH1ADD: ir.Sh1Add, rv.OpSH2ADD: ir.Sh2Add, rv.OpSH3ADD: ir.Sh3Add,
}

var regReg32WOp = map[rv.Op]ir.BinOp{
	rv.OpADDW: ir.Add, rv.OpSUBW: ir.Sub, rv.OpSLLW: ir.Shl, rv.OpSRLW: ir.ShrU, rv.OpSRAW: ir.ShrS,
	rv.OpMULW: ir.MulLow, rv.OpDIVW: ir.DivS, rv.OpDIVUW: ir.DivU, rv.OpREMW: ir.RemS, rv.OpREMUW: ir.RemU,
	rv.OpROLW: ir.Rol, rv.OpRORW: ir.Ror,
	rv.OpSH1ADDUW: ir.Sh1Add, rv.OpSH2ADDUW: ir.Sh2Add, rv.OpSH3ADDUW: ir.Sh3Add,
}

var immOp = map[rv.Op]ir.BinOp{
	rv.OpADDI: ir.Add, rv.OpSLTI: ir.SLT, rv.OpSLTIU: ir.SLTU,
	rv.OpXORI: ir.Xor, rv.OpORI: ir.Or, rv.OpANDI: ir.And,
}

var shiftImmOp = map[rv.Op]ir.BinOp{
	rv.OpSLLI: ir.Shl, rv.OpSRLI: ir.ShrU, rv.OpSRAI: ir.ShrS, rv.OpRORI: ir.Ror,
}

var shiftImm32WOp = map[rv.Op]ir.BinOp{
	rv.OpSLLIW: ir.Shl, rv.OpSRLIW: ir.ShrU, rv.OpSRAIW: ir.ShrS, rv.OpRORIW: ir.Ror,
}

var unaryOp = map[rv.Op]ir.UnOp{
	rv.OpCLZ: ir.Clz, rv.OpCTZ: ir.Ctz, rv.OpCPOP: ir.Cpop,
	rv.OpCLZW: ir.Clz, rv.OpCTZW: ir.Ctz, rv.OpCPOPW: ir.Cpop,
	rv.OpREV8: ir.Rev8, rv.OpORCB: ir.OrcB,
}

func (l *Lifter) liftALU(b *ir.Block, in rv.Inst) error {
	switch in.Op {
	case rv.OpADDI:
		// ADDI rd, x0, imm collapses to a constant-store into rd:
		// the lifter's one deliberate algebraic fold.
		if in.Rs1 == 0 {
			l.writeReg(b, in.Rd, ir.Const{W: l.RegWidth, Value: uint64(in.Imm)})
			return nil
		}
		l.writeReg(b, in.Rd, ir.Bin{Op: ir.Add, Lhs: l.readReg(in.Rs1), Rhs: ir.Const{W: l.RegWidth, Value: uint64(in.Imm)}, W: l.RegWidth})
		return nil

	case rv.OpSLTI, rv.OpSLTIU, rv.OpXORI, rv.OpORI, rv.OpANDI:
		op := immOp[in.Op]
		l.writeReg(b, in.Rd, ir.Bin{Op: op, Lhs: l.readReg(in.Rs1), Rhs: ir.Const{W: l.RegWidth, Value: uint64(in.Imm)}, W: l.RegWidth})
		return nil

	case rv.OpSLLI, rv.OpSRLI, rv.OpSRAI, rv.OpRORI:
		op := shiftImmOp[in.Op]
		l.writeReg(b, in.Rd, ir.Bin{Op: op, Lhs: l.readReg(in.Rs1), Rhs: ir.Const{W: l.RegWidth, Value: uint64(in.Shamt)}, W: l.RegWidth})
		return nil

	case rv.OpADD, rv.OpSUB, rv.OpSLT, rv.OpSLTU, rv.OpXOR, rv.OpOR, rv.OpAND,
		rv.OpMUL, rv.OpMULH, rv.OpMULHSU, rv.OpMULHU, rv.OpDIV, rv.OpDIVU, rv.OpREM, rv.OpREMU,
		rv.OpANDN, rv.OpORN, rv.OpXNOR, rv.OpMAX, rv.OpMAXU, rv.OpMIN, rv.OpMINU,
		rv.OpBCLR, rv.OpBEXT, rv.OpBINV, rv.OpBSET, rv.OpSH1ADD, rv.OpSH2ADD, rv.OpSH3ADD:
		op := regRegOp[in.Op]
		l.writeReg(b, in.Rd, ir.Bin{Op: op, Lhs: l.readReg(in.Rs1), Rhs: l.readReg(in.Rs2), W: l.RegWidth})
		return nil

	case rv.OpSLL, rv.OpSRL, rv.OpSRA, rv.OpROL, rv.OpROR:
		op := regRegOp[in.Op]
		amt := maskShamt(l.readReg(in.Rs2), l.RegWidth)
		l.writeReg(b, in.Rd, ir.Bin{Op: op, Lhs: l.readReg(in.Rs1), Rhs: amt, W: l.RegWidth})
		return nil

	case rv.OpADDW, rv.OpSUBW, rv.OpMULW, rv.OpDIVW, rv.OpDIVUW, rv.OpREMW, rv.OpREMUW:
		op := regReg32WOp[in.Op]
		lhs := ir.Truncate{Arg: l.readReg(in.Rs1), W: ir.W32}
		rhs := ir.Truncate{Arg: l.readReg(in.Rs2), W: ir.W32}
		res := ir.Bin{Op: op, Lhs: lhs, Rhs: rhs, W: ir.W32}
		l.writeReg(b, in.Rd, l.widenResult(res))
		return nil

	case rv.OpSLLW, rv.OpSRLW, rv.OpSRAW, rv.OpROLW, rv.OpRORW:
		op := regReg32WOp[in.Op]
		lhs := ir.Truncate{Arg: l.readReg(in.Rs1), W: ir.W32}
		amt := maskShamt(ir.Truncate{Arg: l.readReg(in.Rs2), W: ir.W32}, ir.W32)
		res := ir.Bin{Op: op, Lhs: lhs, Rhs: amt, W: ir.W32}
		l.writeReg(b, in.Rd, l.widenResult(res))
		return nil

	case rv.OpADDIW:
		lhs := ir.Truncate{Arg: l.readReg(in.Rs1), W: ir.W32}
		res := ir.Bin{Op: ir.Add, Lhs: lhs, Rhs: ir.Const{W: ir.W32, Value: uint64(int32(in.Imm))}, W: ir.W32}
		l.writeReg(b, in.Rd, l.widenResult(res))
		return nil

	case rv.OpSLLIW, rv.OpSRLIW, rv.OpSRAIW, rv.OpRORIW:
		op := shiftImm32WOp[in.Op]
		lhs := ir.Truncate{Arg: l.readReg(in.Rs1), W: ir.W32}
		res := ir.Bin{Op: op, Lhs: lhs, Rhs: ir.Const{W: ir.W32, Value: uint64(in.Shamt)}, W: ir.W32}
		l.writeReg(b, in.Rd, l.widenResult(res))
		return nil

	case rv.OpADDUW:
		lhs := ir.ZeroExtend{Arg: ir.Truncate{Arg: l.readReg(in.Rs1), W: ir.W32}, From: ir.W32, W: l.RegWidth}
		l.writeReg(b, in.Rd, ir.Bin{Op: ir.Add, Lhs: lhs, Rhs: l.readReg(in.Rs2), W: l.RegWidth})
		return nil

	case rv.OpSH1ADDUW, rv.OpSH2ADDUW, rv.OpSH3ADDUW:
		op := regReg32WOp[in.Op]
		lhs := ir.ZeroExtend{Arg: ir.Truncate{Arg: l.readReg(in.Rs1), W: ir.W32}, From: ir.W32, W: l.RegWidth}
		l.writeReg(b, in.Rd, ir.Bin{Op: op, Lhs: lhs, Rhs: l.readReg(in.Rs2), W: l.RegWidth})
		return nil

	case rv.OpSLLIUW:
		lhs := ir.ZeroExtend{Arg: ir.Truncate{Arg: l.readReg(in.Rs1), W: ir.W32}, From: ir.W32, W: l.RegWidth}
		l.writeReg(b, in.Rd, ir.Bin{Op: ir.Shl, Lhs: lhs, Rhs: ir.Const{W: l.RegWidth, Value: uint64(in.Shamt)}, W: l.RegWidth})
		return nil

	case rv.OpCLZ, rv.OpCTZ, rv.OpCPOP, rv.OpREV8, rv.OpORCB:
		op := unaryOp[in.Op]
		l.writeReg(b, in.Rd, ir.Un{Op: op, Arg: l.readReg(in.Rs1), W: l.RegWidth})
		return nil

	case rv.OpCLZW, rv.OpCTZW, rv.OpCPOPW:
		op := unaryOp[in.Op]
		res := ir.Un{Op: op, Arg: ir.Truncate{Arg: l.readReg(in.Rs1), W: ir.W32}, W: ir.W32}
		l.writeReg(b, in.Rd, l.widenResult(res))
		return nil

	case rv.OpSEXTB:
		l.writeReg(b, in.Rd, ir.SignExtend{Arg: ir.Truncate{Arg: l.readReg(in.Rs1), W: ir.W8}, From: ir.W8, W: l.RegWidth})
		return nil
	case rv.OpSEXTH:
		l.writeReg(b, in.Rd, ir.SignExtend{Arg: ir.Truncate{Arg: l.readReg(in.Rs1), W: ir.W16}, From: ir.W16, W: l.RegWidth})
		return nil
	case rv.OpZEXTH:
		l.writeReg(b, in.Rd, ir.ZeroExtend{Arg: ir.Truncate{Arg: l.readReg(in.Rs1), W: ir.W16}, From: ir.W16, W: l.RegWidth})
		return nil

	case rv.OpCZEROEQZ:
		cond := ir.Bin{Op: ir.Eq, Lhs: l.readReg(in.Rs2), Rhs: ir.Const{W: l.RegWidth, Value: 0}, W: l.RegWidth}
		l.writeReg(b, in.Rd, ir.Select{Cond: cond, IfTrue: ir.Const{W: l.RegWidth, Value: 0}, IfFalse: l.readReg(in.Rs1), W: l.RegWidth})
		return nil
	case rv.OpCZERONEZ:
		cond := ir.Bin{Op: ir.Ne, Lhs: l.readReg(in.Rs2), Rhs: ir.Const{W: l.RegWidth, Value: 0}, W: l.RegWidth}
		l.writeReg(b, in.Rd, ir.Select{Cond: cond, IfTrue: ir.Const{W: l.RegWidth, Value: 0}, IfFalse: l.readReg(in.Rs1), W: l.RegWidth})
		return nil
	}
	return errNotALU
}
