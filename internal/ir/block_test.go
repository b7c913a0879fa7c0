package ir

import "testing"

func TestNewTempAssignsSequentialIDs(t *testing.T) {
	b := &Block{}
	id0 := b.NewTemp(W32)
	id1 := b.NewTemp(W64)
	if id0 != 0 || id1 != 1 {
		t.Fatalf("ids = %d,%d want 0,1", id0, id1)
	}
	if b.TempWidth(0) != W32 || b.TempWidth(1) != W64 {
		t.Fatalf("widths = %v,%v want W32,W64", b.TempWidth(0), b.TempWidth(1))
	}
}

func TestEmitAppendsInOrder(t *testing.T) {
	b := &Block{}
	b.Emit(RegWrite{Reg: 1, Value: Const{W: W64, Value: 1}})
	b.Emit(RegWrite{Reg: 2, Value: Const{W: W64, Value: 2}})
	if len(b.Stmts) != 2 {
		t.Fatalf("len(Stmts) = %d, want 2", len(b.Stmts))
	}
	first := b.Stmts[0].(RegWrite)
	second := b.Stmts[1].(RegWrite)
	if first.Reg != 1 || second.Reg != 2 {
		t.Fatal("statements must be retained in emission order")
	}
}
