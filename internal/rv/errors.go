package rv

import "fmt"

// DecodeError is returned when bytes at a PC do not decode under the active
// extension set. It carries enough context (PC, offending bytes) for the
// driver to surface an IllegalInstruction/UnsupportedExtension diagnostic
// verbatim.
type DecodeError struct {
	PC    uint64
	Bytes []byte
	// Unsupported is set when the bytes matched a known encoding that
	// belongs to an extension not admitted by the active ExtensionSet,
	// as opposed to matching no known encoding at all.
	Unsupported bool
	Reason      string
}

func (e *DecodeError) Error() string {
	kind := "illegal instruction"
	if e.Unsupported {
		kind = "unsupported extension"
	}
	return fmt.Sprintf("%s at pc=0x%x: %s (bytes=% x)", kind, e.PC, e.Reason, e.Bytes)
}

func illegal(pc uint64, bytes []byte, reason string) error {
	return &DecodeError{PC: pc, Bytes: bytes, Reason: reason}
}

func unsupported(pc uint64, bytes []byte, reason string) error {
	return &DecodeError{PC: pc, Bytes: bytes, Unsupported: true, Reason: reason}
}
