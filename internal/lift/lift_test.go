package lift

import (
	"testing"

	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/rv"
)

func TestRegisterZeroWriteIsNoOp(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	// addi x0, x1, 5 -- a write targeting x0 must vanish at IR level.
	_, err := l.Lift(b, rv.Inst{Op: rv.OpADDI, Rd: 0, Rs1: 1, Imm: 5})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if len(b.Stmts) != 0 {
		t.Fatalf("expected no statements for a write to x0, got %d: %#v", len(b.Stmts), b.Stmts)
	}
}

func TestADDIFromZeroFoldsToConst(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	_, err := l.Lift(b, rv.Inst{Op: rv.OpADDI, Rd: 5, Rs1: 0, Imm: 42})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if len(b.Stmts) != 1 {
		t.Fatalf("expected exactly one statement, got %d", len(b.Stmts))
	}
	rw, ok := b.Stmts[0].(ir.RegWrite)
	if !ok {
		t.Fatalf("expected a RegWrite, got %T", b.Stmts[0])
	}
	c, ok := rw.Value.(ir.Const)
	if !ok {
		t.Fatalf("expected ADDI rd, x0, imm to fold to a Const, got %T", rw.Value)
	}
	if c.Value != 42 {
		t.Fatalf("Const.Value = %d, want 42", c.Value)
	}
}

func TestShiftAmountIsMaskedAtIRLevel(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	_, err := l.Lift(b, rv.Inst{Op: rv.OpSLL, Rd: 5, Rs1: 1, Rs2: 2})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	rw := b.Stmts[0].(ir.RegWrite)
	bin, ok := rw.Value.(ir.Bin)
	if !ok {
		t.Fatalf("expected a Bin, got %T", rw.Value)
	}
	mask, ok := bin.Rhs.(ir.Bin)
	if !ok || mask.Op != ir.And {
		t.Fatalf("expected the shift amount to be masked with And, got %#v", bin.Rhs)
	}
	c, ok := mask.Rhs.(ir.Const)
	if !ok || c.Value != 0x3f {
		t.Fatalf("expected a mask of 0x3f at XLEN64, got %#v", mask.Rhs)
	}
}

func TestShiftAmountMaskXLEN32(t *testing.T) {
	l := New(rv.XLEN32)
	b := &ir.Block{}
	_, err := l.Lift(b, rv.Inst{Op: rv.OpSRL, Rd: 5, Rs1: 1, Rs2: 2})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	rw := b.Stmts[0].(ir.RegWrite)
	bin := rw.Value.(ir.Bin)
	mask := bin.Rhs.(ir.Bin)
	c := mask.Rhs.(ir.Const)
	if c.Value != 0x1f {
		t.Fatalf("expected a mask of 0x1f at XLEN32, got 0x%x", c.Value)
	}
}

func Test32BitOpSignExtendedOnXLEN64(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	_, err := l.Lift(b, rv.Inst{Op: rv.OpADDW, Rd: 5, Rs1: 1, Rs2: 2})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	rw := b.Stmts[0].(ir.RegWrite)
	se, ok := rw.Value.(ir.SignExtend)
	if !ok {
		t.Fatalf("expected ADDW's result to be wrapped in a SignExtend on XLEN64, got %T", rw.Value)
	}
	if se.From != ir.W32 || se.W != ir.W64 {
		t.Fatalf("SignExtend From/W = %v/%v, want W32/W64", se.From, se.W)
	}
}

func TestBranchTerminator(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	res, err := l.Lift(b, rv.Inst{Op: rv.OpBEQ, PC: 0x100, Len: 4, Rs1: 1, Rs2: 2, Imm: 16})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if !res.Terminated {
		t.Fatal("expected a branch to terminate the block")
	}
	br, ok := b.Term.(ir.Branch)
	if !ok {
		t.Fatalf("expected an ir.Branch terminator, got %T", b.Term)
	}
	if br.Then != 0x110 || br.Else != 0x104 {
		t.Fatalf("Then/Else = 0x%x/0x%x, want 0x110/0x104", br.Then, br.Else)
	}
}

func TestJALRProducesIndirectJumpThroughATemp(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	res, err := l.Lift(b, rv.Inst{Op: rv.OpJALR, PC: 0x200, Len: 4, Rd: 1, Rs1: 5, Imm: 4})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if !res.Terminated {
		t.Fatal("expected JALR to terminate the block")
	}
	ij, ok := b.Term.(ir.IndirectJump)
	if !ok {
		t.Fatalf("expected an ir.IndirectJump, got %T", b.Term)
	}
	if !endsWithReservationClear(b) {
		t.Fatal("expected an indirect jump to invalidate the LR/SC reservation")
	}
	if _, ok := ij.Target.(ir.TempRead); !ok {
		t.Fatalf("expected the target to read back a temp captured before rd is overwritten, got %T", ij.Target)
	}
	// rd=1 (ra) must still receive the return address, link=pc+len.
	found := false
	for _, s := range b.Stmts {
		if rw, ok := s.(ir.RegWrite); ok && rw.Reg == 1 {
			if c, ok := rw.Value.(ir.Const); ok && c.Value == 0x204 {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("expected a RegWrite to ra with the link address 0x204")
	}
}

func TestECALLProducesSyscallTerminator(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	res, err := l.Lift(b, rv.Inst{Op: rv.OpECALL, PC: 0x300, Len: 4})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if !res.Terminated {
		t.Fatal("expected ECALL to terminate the block")
	}
	sc, ok := b.Term.(ir.Syscall)
	if !ok {
		t.Fatalf("expected ir.Syscall, got %T", b.Term)
	}
	if sc.PCNext != 0x304 {
		t.Fatalf("PCNext = 0x%x, want 0x304", sc.PCNext)
	}
	if !endsWithReservationClear(b) {
		t.Fatal("expected ECALL to invalidate the LR/SC reservation")
	}
}

func TestEBREAKProducesBreakTerminator(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	res, err := l.Lift(b, rv.Inst{Op: rv.OpEBREAK, PC: 0x400})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if !res.Terminated {
		t.Fatal("expected EBREAK to terminate the block")
	}
	if br, ok := b.Term.(ir.Break); !ok || br.PC != 0x400 {
		t.Fatalf("expected ir.Break{PC:0x400}, got %#v", b.Term)
	}
	if !endsWithReservationClear(b) {
		t.Fatal("expected EBREAK to invalidate the LR/SC reservation")
	}
}

// endsWithReservationClear reports whether the block's final statement
// invalidates the reservation, the required transition for every
// context-changing terminator.
func endsWithReservationClear(b *ir.Block) bool {
	if len(b.Stmts) == 0 {
		return false
	}
	op, ok := b.Stmts[len(b.Stmts)-1].(ir.ReservationOp)
	return ok && op.Kind == ir.ReservationClear
}

func TestLRSetsReservation(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	_, err := l.Lift(b, rv.Inst{Op: rv.OpLRD, Rd: 5, Rs1: 1})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	if len(b.Stmts) < 1 {
		t.Fatal("expected at least a ReservationOp and a RegWrite")
	}
	rop, ok := b.Stmts[0].(ir.ReservationOp)
	if !ok || rop.Kind != ir.ReservationSet {
		t.Fatalf("expected the first statement to set the reservation, got %#v", b.Stmts[0])
	}
}

func TestSCResultGoesThroughATemp(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	_, err := l.Lift(b, rv.Inst{Op: rv.OpSCD, Rd: 5, Rs1: 1, Rs2: 2})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	sc, ok := b.Stmts[0].(ir.StoreConditional)
	if !ok {
		t.Fatalf("expected an ir.StoreConditional, got %T", b.Stmts[0])
	}
	rw, ok := b.Stmts[1].(ir.RegWrite)
	if !ok {
		t.Fatalf("expected a RegWrite reading back the result temp, got %T", b.Stmts[1])
	}
	tr, ok := rw.Value.(ir.TempRead)
	if !ok || tr.ID != sc.Result {
		t.Fatalf("expected rd to read back temp %d, got %#v", sc.Result, rw.Value)
	}
}

func TestAMOSwapWordSignExtendsPreImageOnXLEN64(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	_, err := l.Lift(b, rv.Inst{Op: rv.OpAMOSWAPW, Rd: 5, Rs1: 1, Rs2: 2})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	rmw, ok := b.Stmts[0].(ir.AtomicRMW)
	if !ok {
		t.Fatalf("expected an ir.AtomicRMW, got %T", b.Stmts[0])
	}
	if rmw.MemWidth != ir.W32 || !rmw.Signed {
		t.Fatalf("expected a signed 32-bit AMO, got width=%v signed=%v", rmw.MemWidth, rmw.Signed)
	}
	if rmw.Op != ir.Swap {
		t.Fatalf("expected ir.Swap, got %v", rmw.Op)
	}
}

func TestCSRReadOnlyFormSkipsWrite(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	// csrrs rd, csr, x0 -- a read with a zero source must not commit a write.
	_, err := l.Lift(b, rv.Inst{Op: rv.OpCSRRS, Rd: 5, Rs1: 0, CSR: 0xc00})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	for _, s := range b.Stmts {
		if _, ok := s.(ir.CSRWrite); ok {
			t.Fatal("expected no CSRWrite for the read-only csrrs rd, csr, x0 form")
		}
	}
}

func TestCSRWriteCommitsByDefault(t *testing.T) {
	l := New(rv.XLEN64)
	b := &ir.Block{}
	_, err := l.Lift(b, rv.Inst{Op: rv.OpCSRRW, Rd: 0, Rs1: 1, CSR: 0x300})
	if err != nil {
		t.Fatalf("Lift: %v", err)
	}
	found := false
	for _, s := range b.Stmts {
		if w, ok := s.(ir.CSRWrite); ok && w.CSR == 0x300 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected csrrw to emit a CSRWrite even when rd=x0 (the write itself is never conditional on rd)")
	}
}
