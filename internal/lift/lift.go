// Package lift lowers decoded RISC-V instructions (internal/rv) into the
// translator's IR (internal/ir) with bit-exact semantics. A Lifter is
// parameterized by XLEN exactly once at construction; one code path
// serves both widths.
package lift

import (
	"fmt"

	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/rv"
)

// Lifter lowers one decoded instruction at a time into the current block.
type Lifter struct {
	XLEN rv.XLEN
	// RegWidth is the register file width as an ir.Width: W32 for XLEN32,
	// W64 for XLEN64.
	RegWidth ir.Width
}

func New(xlen rv.XLEN) *Lifter {
	w := ir.W32
	if xlen == rv.XLEN64 {
		w = ir.W64
	}
	return &Lifter{XLEN: xlen, RegWidth: w}
}

// Result reports what a Lift call produced: either the block continues
// (more instructions may follow) or it terminated, in which case b.Term is
// set and the CFG builder must stop decoding this block.
type Result struct {
	Terminated bool
}

// Lift appends IR for in to b. Branch/jump/syscall/break instructions set
// b.Term and return Terminated=true; all others append statements only.
func (l *Lifter) Lift(b *ir.Block, in rv.Inst) (Result, error) {
	switch {
	case isBranch(in.Op):
		return Result{true}, l.liftBranch(b, in)
	case in.Op == rv.OpJAL:
		return Result{true}, l.liftJAL(b, in)
	case in.Op == rv.OpJALR:
		return Result{true}, l.liftJALR(b, in)
	case in.Op == rv.OpECALL:
		// Context-changing terminators invalidate the LR/SC reservation;
		// emitting the clear here keeps every backend in step.
		b.Emit(ir.ReservationOp{Kind: ir.ReservationClear})
		b.Term = ir.Syscall{PCNext: in.PC + uint64(in.Len)}
		return Result{true}, nil
	case in.Op == rv.OpEBREAK:
		b.Emit(ir.ReservationOp{Kind: ir.ReservationClear})
		b.Term = ir.Break{PC: in.PC}
		return Result{true}, nil
	}

	switch in.Op {
	case rv.OpLUI:
		l.writeReg(b, in.Rd, ir.Const{W: l.RegWidth, Value: uint64(in.Imm)})
	case rv.OpAUIPC:
		l.writeReg(b, in.Rd, ir.Const{W: l.RegWidth, Value: uint64(int64(in.PC) + in.Imm)})
	case rv.OpFENCE, rv.OpFENCEI:
		// No-ops at this tier: the translator emits single-threaded
		// native code with program-order statement emission already
		// matching FENCE's intent.
	default:
		if err := l.liftALU(b, in); err == nil {
			return Result{false}, nil
		} else if err != errNotALU {
			return Result{false}, err
		}
		if err := l.liftMemory(b, in); err == nil {
			return Result{false}, nil
		} else if err != errNotMemory {
			return Result{false}, err
		}
		if err := l.liftAtomic(b, in); err == nil {
			return Result{false}, nil
		} else if err != errNotAtomic {
			return Result{false}, err
		}
		if err := l.liftCSR(b, in); err == nil {
			return Result{false}, nil
		} else if err != errNotCSR {
			return Result{false}, err
		}
		return Result{false}, fmt.Errorf("lift: unhandled op %s at pc=0x%x", in.Op, in.PC)
	}
	return Result{false}, nil
}

func isBranch(op rv.Op) bool {
	switch op {
	case rv.OpBEQ, rv.OpBNE, rv.OpBLT, rv.OpBGE, rv.OpBLTU, rv.OpBGEU:
		return true
	default:
		return false
	}
}

// readReg returns an Expr for reading rd/rs1/rs2. Register 0 folds
// directly to a Const rather than an ir.RegRead: it is never observable
// as anything but zero.
func (l *Lifter) readReg(r uint8) ir.Expr {
	if r == 0 {
		return ir.Const{W: l.RegWidth, Value: 0}
	}
	return ir.RegRead{Reg: r, W: l.RegWidth}
}

// writeReg emits a RegWrite, or nothing at all when the destination is
// register 0.
func (l *Lifter) writeReg(b *ir.Block, rd uint8, v ir.Expr) {
	if rd == 0 {
		return
	}
	b.Emit(ir.RegWrite{Reg: rd, Value: v})
}

// widenResult wraps a 32-bit-wide expression so that 32-bit operations
// on an XLEN=64 target always sign-extend their result to 64 bits,
// matching the ISA. On an XLEN=32 target it is the identity (the *W
// opcodes never decode there).
func (l *Lifter) widenResult(v ir.Expr) ir.Expr {
	if l.RegWidth == ir.W64 && v.Width() == ir.W32 {
		return ir.SignExtend{Arg: v, From: ir.W32, W: ir.W64}
	}
	return v
}
