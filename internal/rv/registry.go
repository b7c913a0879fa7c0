package rv

import "fmt"

// regEntry is one (mask, match, decoder-name) triple contributed by an
// extension. Registry construction rejects any two entries whose masks
// overlap on a shared match value; extension overlap is a programming
// error, not an input error.
type regEntry struct {
	ext   Extension
	mask  uint32
	match uint32
	name  string
}

// Registry records which (mask,match) pairs each admitted extension
// contributes, in a fixed try order, and validates that no two entries can
// match the same encoded word. It does not perform decoding itself (decode32
// and decodeCompressed encode the equivalent dispatch directly for speed)
// but NewRegistry is what a translator run should call once at startup to
// catch a misconfigured extension set before decoding begins.
type Registry struct {
	entries []regEntry
}

// NewRegistry builds the registry for the given extension set, in the fixed
// order I, M, A, C, Zicsr, Zicond, Zb, and rejects overlapping entries.
func NewRegistry(exts ExtensionSet) (*Registry, error) {
	r := &Registry{}
	order := []Extension{ExtI, ExtM, ExtA, ExtC, ExtZicsr, ExtZicond, ExtZb}
	for _, e := range order {
		if !exts.Has(e) {
			continue
		}
		for _, entry := range extensionEntries(e) {
			if err := r.add(entry); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Registry) add(e regEntry) error {
	for _, existing := range r.entries {
		if existing.mask&e.mask == 0 {
			continue
		}
		commonMask := existing.mask & e.mask
		if existing.match&commonMask == e.match&commonMask {
			return fmt.Errorf("extension registry conflict: %s entry %q overlaps %s entry %q",
				e.ext, e.name, existing.ext, existing.name)
		}
	}
	r.entries = append(r.entries, e)
	return nil
}

// extensionEntries returns the base-opcode-level (mask,match) pairs an
// extension contributes. These are deliberately coarse (opcode-class
// granularity, not full funct3/funct7 granularity); the registry's job is
// to catch a decoder wired with two extensions that claim the same
// instruction space, not to re-host the full decode tables.
func extensionEntries(e Extension) []regEntry {
	const opcodeMask = 0x7f
	switch e {
	case ExtI:
		return []regEntry{
			{e, opcodeMask, 0x37, "LUI"}, {e, opcodeMask, 0x17, "AUIPC"},
			{e, opcodeMask, 0x6f, "JAL"}, {e, opcodeMask, 0x67, "JALR"},
			{e, opcodeMask, 0x63, "BRANCH"}, {e, opcodeMask, 0x03, "LOAD"},
			{e, opcodeMask, 0x23, "STORE"}, {e, opcodeMask, 0x13, "OP-IMM"},
			{e, opcodeMask, 0x1b, "OP-IMM-32"}, {e, opcodeMask, 0x33, "OP"},
			{e, opcodeMask, 0x3b, "OP-32"}, {e, opcodeMask, 0x0f, "MISC-MEM"},
			{e, opcodeMask, 0x73, "SYSTEM-ECALL-EBREAK"},
		}
	case ExtM:
		// M shares the OP/OP-32 opcode with I; it is distinguished at
		// funct7 granularity, which this coarse registry intentionally
		// does not model, so it contributes no opcode-level entry.
		return nil
	case ExtA:
		return []regEntry{{e, opcodeMask, 0x2f, "AMO"}}
	case ExtC:
		return []regEntry{{e, 0x3, 0x0, "C0"}, {e, 0x3, 0x1, "C1"}, {e, 0x3, 0x2, "C2"}}
	case ExtZicsr:
		return nil // shares SYSTEM opcode with ECALL/EBREAK, disambiguated by funct3
	case ExtZicond:
		return nil // shares OP opcode, disambiguated by funct7/funct3
	case ExtZb:
		return nil // shares OP/OP-IMM/OP-32/OP-IMM-32, disambiguated downstream
	default:
		return nil
	}
}
