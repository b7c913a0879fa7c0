package rv

import "testing"

func TestNewRegistryAcceptsIMACDefault(t *testing.T) {
	if _, err := NewRegistry(IMACDefault()); err != nil {
		t.Fatalf("NewRegistry(IMACDefault()): %v", err)
	}
}

func TestNewRegistryAcceptsSingleExtension(t *testing.T) {
	if _, err := NewRegistry(NewExtensionSet(ExtI)); err != nil {
		t.Fatalf("NewRegistry(I only): %v", err)
	}
}

func TestRegistryRejectsOverlappingEntries(t *testing.T) {
	r := &Registry{}
	if err := r.add(regEntry{ext: ExtI, mask: 0x7f, match: 0x33, name: "OP"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := r.add(regEntry{ext: ExtM, mask: 0x7f, match: 0x33, name: "OP-M"}); err == nil {
		t.Fatal("expected an overlap error for a second entry claiming the same opcode")
	}
}
