package regalloc

import "testing"

func TestDefaultCPolicyCarriesFullHotSet(t *testing.T) {
	p := DefaultCPolicy()
	if len(p.Hot) != len(defaultHot) {
		t.Fatalf("len(Hot) = %d, want %d", len(p.Hot), len(defaultHot))
	}
	if !p.IsHot(2) { // sp
		t.Fatal("expected sp (x2) to be hot under the C backend's policy")
	}
}

func TestX86PolicyTrimmedToCalleeSavedBudget(t *testing.T) {
	if len(DefaultX86Policy.Hot) != 5 {
		t.Fatalf("len(DefaultX86Policy.Hot) = %d, want 5", len(DefaultX86Policy.Hot))
	}
	if !DefaultX86Policy.IsHot(2) || !DefaultX86Policy.IsHot(1) {
		t.Fatal("expected sp and ra to remain hot even under the trimmed x86 policy")
	}
}

func TestHotIndexReportsPosition(t *testing.T) {
	p := Policy{Hot: []uint8{2, 1, 3}}
	idx, ok := p.HotIndex(1)
	if !ok || idx != 1 {
		t.Fatalf("HotIndex(1) = %d,%v want 1,true", idx, ok)
	}
	if _, ok := p.HotIndex(99); ok {
		t.Fatal("expected HotIndex for a cold register to report false")
	}
}

func TestNameFallsBackToRawIndex(t *testing.T) {
	if Name(2) != "sp" {
		t.Fatalf("Name(2) = %q, want sp", Name(2))
	}
	if Name(31) != "x31" {
		t.Fatalf("Name(31) = %q, want x31", Name(31))
	}
}
