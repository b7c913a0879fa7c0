package elfview

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/openrvt/rvtx/internal/rv"
)

// buildMinimalRV64Elf hand-assembles the smallest ELF64 EM_RISCV
// executable debug/elf will parse: one PT_LOAD segment, no section
// headers, no symbol table. The bytes are laid out directly against the
// format debug/elf itself expects; no fixture binaries are checked in.
func buildMinimalRV64Elf(t *testing.T, entry uint64, segBytes []byte) string {
	t.Helper()
	const ehdrSize = 64
	const phdrSize = 56
	dataOff := uint64(ehdrSize + phdrSize)

	buf := make([]byte, dataOff+uint64(len(segBytes)))
	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // ELFDATA2LSB
	buf[6] = 1 // EV_CURRENT
	le := binary.LittleEndian
	le.PutUint16(buf[16:], 2)   // e_type = ET_EXEC
	le.PutUint16(buf[18:], 243) // e_machine = EM_RISCV
	le.PutUint32(buf[20:], 1)   // e_version
	le.PutUint64(buf[24:], entry)
	le.PutUint64(buf[32:], ehdrSize) // e_phoff
	le.PutUint64(buf[40:], 0)        // e_shoff
	le.PutUint32(buf[48:], 0)        // e_flags
	le.PutUint16(buf[52:], ehdrSize)
	le.PutUint16(buf[54:], phdrSize)
	le.PutUint16(buf[56:], 1) // e_phnum
	le.PutUint16(buf[58:], 0)
	le.PutUint16(buf[60:], 0)
	le.PutUint16(buf[62:], 0)

	ph := buf[ehdrSize:]
	le.PutUint32(ph[0:], 1) // PT_LOAD
	le.PutUint32(ph[4:], 5) // PF_R|PF_X
	le.PutUint64(ph[8:], dataOff)
	le.PutUint64(ph[16:], entry)
	le.PutUint64(ph[24:], entry)
	le.PutUint64(ph[32:], uint64(len(segBytes)))
	le.PutUint64(ph[40:], uint64(len(segBytes)))
	le.PutUint64(ph[48:], 4096)

	copy(buf[dataOff:], segBytes)

	path := filepath.Join(t.TempDir(), "test.elf")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadParsesRV64ExecutableWithOneSegment(t *testing.T) {
	path := buildMinimalRV64Elf(t, 0x10000, []byte{0x13, 0x00, 0x00, 0x00})

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.XLEN != rv.XLEN64 {
		t.Fatalf("XLEN = %v, want XLEN64", img.XLEN)
	}
	if img.Entry != 0x10000 {
		t.Fatalf("Entry = 0x%x, want 0x10000", img.Entry)
	}
	if len(img.Segments) != 1 {
		t.Fatalf("len(Segments) = %d, want 1", len(img.Segments))
	}
	if img.Segments[0].VAddr != 0x10000 {
		t.Fatalf("Segments[0].VAddr = 0x%x, want 0x10000", img.Segments[0].VAddr)
	}
	if img.HasToHost {
		t.Fatal("expected no tohost symbol in a stripped fixture")
	}
}

func TestLoadRejectsNonRiscvMachine(t *testing.T) {
	path := buildMinimalRV64Elf(t, 0x1000, nil)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	binary.LittleEndian.PutUint16(raw[18:], 0x3e) // EM_X86_64
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a non-RISC-V machine")
	} else if _, ok := err.(*InvalidError); !ok {
		t.Fatalf("expected *InvalidError, got %T: %v", err, err)
	}
}

func TestExportPCsSkipsUnresolvedNames(t *testing.T) {
	img := &Image{Symbols: map[string]uint64{"main": 0x1234}}
	pcs := img.ExportPCs([]string{"main", "does_not_exist"})
	if len(pcs) != 1 || pcs[0] != 0x1234 {
		t.Fatalf("ExportPCs = %v, want [0x1234]", pcs)
	}
}
