package xlate

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// buildMinimalRV64Elf hand-assembles the smallest ELF64 EM_RISCV
// executable debug/elf will parse, mirroring internal/elfview's own test
// fixture; no fixture binaries are checked in.
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
	le.PutUint32(buf[20:], 1)
	le.PutUint64(buf[24:], entry)
	le.PutUint64(buf[32:], ehdrSize)
	le.PutUint64(buf[40:], 0)
	le.PutUint32(buf[48:], 0)
	le.PutUint16(buf[52:], ehdrSize)
	le.PutUint16(buf[54:], phdrSize)
	le.PutUint16(buf[56:], 1)
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

func le32(w uint32) []byte {
	return []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
}

// tohostHaltProgram: addi a0, x0, 1; ebreak -- a minimal guest with one
// reachable block ending in EBREAK, small enough to decode with no
// ambiguity about seed/entry resolution.
func tohostHaltProgram() []byte {
	return append(le32(0x00100513), le32(0x00100073)...) // addi a0,x0,1 ; ebreak
}

func TestTranslateEmitOnlyProducesCSourceWithoutToolchain(t *testing.T) {
	entry := uint64(0x10000)
	elfPath := buildMinimalRV64Elf(t, entry, tohostHaltProgram())
	outPath := filepath.Join(t.TempDir(), "out.c")

	res, err := Translate(Options{
		ELFPath:  elfPath,
		OutPath:  outPath,
		Backend:  BackendC,
		Syscalls: SyscallsLinux,
		EmitOnly: true,
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.SourcePath != outPath {
		t.Fatalf("SourcePath = %q, want %q", res.SourcePath, outPath)
	}
	src, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", outPath, err)
	}
	if !strings.Contains(string(src), "rv_entry") {
		t.Fatal("expected generated C source to define rv_entry")
	}
	if !strings.Contains(string(src), "blk_10000") {
		t.Fatalf("expected a block function for the entry pc 0x%x in:\n%s", entry, src)
	}
	tracerHdr := filepath.Join(filepath.Dir(outPath), "rv_tracer.h")
	if _, err := os.Stat(tracerHdr); err != nil {
		t.Fatalf("expected rv_tracer.h alongside the emitted source: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(outPath), "rv_init.c")); err == nil {
		t.Fatal("lift (EmitOnly) must not emit rv_init.c -- that needs a toolchain link step")
	}
}

func TestTranslateRejectsNonRiscvElf(t *testing.T) {
	elfPath := buildMinimalRV64Elf(t, 0x1000, tohostHaltProgram())
	raw, err := os.ReadFile(elfPath)
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint16(raw[18:], 0x3e) // EM_X86_64
	if err := os.WriteFile(elfPath, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Translate(Options{
		ELFPath:  elfPath,
		OutPath:  filepath.Join(t.TempDir(), "out.c"),
		Backend:  BackendC,
		EmitOnly: true,
	})
	if err == nil {
		t.Fatal("expected Translate to reject a non-RISC-V ELF")
	}
}

// TestTranslateCompileCInvokesHostToolchain exercises the full compile
// path end to end, standing in for the
// host C compiler with a fake script so the test never depends on one
// being installed.
func TestTranslateCompileCInvokesHostToolchain(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake cc script needs a POSIX shell")
	}
	entry := uint64(0x10000)
	elfPath := buildMinimalRV64Elf(t, entry, tohostHaltProgram())
	outPath := filepath.Join(t.TempDir(), "out.so")
	workDir := t.TempDir()

	ccDir := t.TempDir()
	cc := filepath.Join(ccDir, "fakecc")
	script := "#!/bin/sh\nprev=\"\"\nfor a in \"$@\"; do\n  if [ \"$prev\" = \"-o\" ]; then touch \"$a\"; fi\n  prev=\"$a\"\ndone\nexit 0\n"
	if err := os.WriteFile(cc, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Translate(Options{
		ELFPath:  elfPath,
		OutPath:  outPath,
		Backend:  BackendC,
		Syscalls: SyscallsBaremetal,
		CC:       cc,
		WorkDir:  workDir,
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected the fake toolchain to produce %q: %v", outPath, err)
	}
	if _, err := os.Stat(filepath.Join(workDir, "rv_init.c")); err != nil {
		t.Fatalf("expected rv_init.c to be generated for a full compile: %v", err)
	}
	foundTracer := false
	for _, p := range res.HeaderPaths {
		if filepath.Base(p) == "rv_tracer.h" {
			foundTracer = true
		}
	}
	if !foundTracer {
		t.Fatal("expected rv_tracer.h among the result's header paths")
	}
}
