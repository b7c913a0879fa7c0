// Package elfview gives the rest of the pipeline a parsed view of the
// guest executable: a thin wrapper over the standard library's debug/elf
// reader. It validates class and machine, extracts PT_LOAD segments, and
// resolves the symbols the runtime contract needs.
package elfview

import (
	"debug/elf"
	"fmt"

	"github.com/openrvt/rvtx/internal/rv"
)

// LoadSegment is one PT_LOAD program header's file contents, ready to be
// copied into the guest memory image at Initialize time.
type LoadSegment struct {
	VAddr uint64
	Flags elf.ProgFlag
	Bytes []byte
}

// Image is the parsed view the rest of the translator consumes: a
// contiguous-byte-addressable set of segments plus the symbols a
// translation run needs (entry point, configured exports, the optional
// HTIF tohost/fromhost pair).
type Image struct {
	XLEN     rv.XLEN
	Entry    uint64
	Segments []LoadSegment
	Symbols  map[string]uint64

	ToHost     uint64
	HasToHost  bool
	FromHost   uint64
	HasFromHost bool
}

// Load parses path as an ELF file and validates it is a RISC-V RV32/RV64
// user-mode executable. Non-ELF input, the wrong class, or a non-RISC-V
// machine all surface as InvalidError.
func Load(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, &InvalidError{Reason: err.Error()}
	}
	defer f.Close()

	var xlen rv.XLEN
	switch f.Class {
	case elf.ELFCLASS32:
		xlen = rv.XLEN32
	case elf.ELFCLASS64:
		xlen = rv.XLEN64
	default:
		return nil, &InvalidError{Reason: "unknown ELF class"}
	}
	if f.Machine != elf.EM_RISCV {
		return nil, &InvalidError{Reason: fmt.Sprintf("machine %s is not EM_RISCV", f.Machine)}
	}

	img := &Image{XLEN: xlen, Entry: f.Entry, Symbols: make(map[string]uint64)}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, prog.Filesz)
		if prog.Filesz > 0 {
			if _, err := prog.ReadAt(data, 0); err != nil {
				return nil, &InvalidError{Reason: fmt.Sprintf("reading PT_LOAD segment at 0x%x: %v", prog.Vaddr, err)}
			}
		}
		img.Segments = append(img.Segments, LoadSegment{
			VAddr: prog.Vaddr, Flags: prog.Flags, Bytes: data,
		})
	}

	syms, err := f.Symbols()
	if err != nil && len(syms) == 0 {
		// A stripped static binary legitimately has no symbol table;
		// only the entry point and PT_LOAD segments are required.
		syms = nil
	}
	for _, s := range syms {
		img.Symbols[s.Name] = s.Value
	}
	if v, ok := img.Symbols["tohost"]; ok {
		img.ToHost, img.HasToHost = v, true
	}
	if v, ok := img.Symbols["fromhost"]; ok {
		img.FromHost, img.HasFromHost = v, true
	}
	return img, nil
}

// ExportPCs resolves a configured list of export symbol names to
// addresses for use as discovery seeds, skipping any name not present in
// the symbol table.
func (img *Image) ExportPCs(names []string) []uint64 {
	var pcs []uint64
	for _, n := range names {
		if v, ok := img.Symbols[n]; ok {
			pcs = append(pcs, v)
		}
	}
	return pcs
}

// InvalidError reports input that is not an ELF, has the wrong class, or
// targets the wrong architecture.
type InvalidError struct{ Reason string }

func (e *InvalidError) Error() string { return "elf invalid: " + e.Reason }
