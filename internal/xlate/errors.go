// Package xlate is the translator driver: it sequences ELF loading,
// discovery+lift+CFG construction, and emission into the linear state
// machine Discovering -> Lifting -> BuildingCfg -> Emitting -> Done (or
// Failed on the first error), and unifies every component's error into
// the ErrorKind taxonomy so the CLI front end can map failures to exit
// codes without knowing which package raised them.
package xlate

import (
	"errors"
	"fmt"

	"github.com/openrvt/rvtx/internal/cfg"
	"github.com/openrvt/rvtx/internal/elfview"
	"github.com/openrvt/rvtx/internal/rv"
	"github.com/openrvt/rvtx/internal/toolchain"
)

// ErrorKind classifies a translation failure.
type ErrorKind int

const (
	ElfInvalid ErrorKind = iota
	UnsupportedExtension
	IllegalInstruction
	CfgUnresolved
	ToolchainFailure
	GuestTrap
)

func (k ErrorKind) String() string {
	switch k {
	case ElfInvalid:
		return "ElfInvalid"
	case UnsupportedExtension:
		return "UnsupportedExtension"
	case IllegalInstruction:
		return "IllegalInstruction"
	case CfgUnresolved:
		return "CfgUnresolved"
	case ToolchainFailure:
		return "ToolchainFailure"
	case GuestTrap:
		return "GuestTrap"
	default:
		return "Unknown"
	}
}

// ExitCode maps an ErrorKind to a process exit code: 0 is reserved for
// success, so kinds are numbered from 1 in the fixed order
// they're declared above. A GuestTrap surfaced at translate time (as
// opposed to runtime) still uses this mapping; the runtime's own exit
// code for a guest halt is computed separately.
func (k ErrorKind) ExitCode() int { return int(k) + 1 }

// Error is the translator's unified error type: every failure in the
// pipeline is normalized to one of these before it reaches the driver's
// caller, carrying the offending PC and bytes where known. It supports
// errors.Is/errors.As against both *Error (by Kind) and the wrapped
// underlying error.
type Error struct {
	Kind    ErrorKind
	PC      uint64
	Bytes   []byte
	Wrapped error
}

func (e *Error) Error() string {
	if len(e.Bytes) > 0 {
		return fmt.Sprintf("%s at pc=0x%x (bytes=% x): %v", e.Kind, e.PC, e.Bytes, e.Wrapped)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Wrapped)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, &xlate.Error{Kind: xlate.CfgUnresolved}) without
// needing PC/Bytes/Wrapped to match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// classify normalizes an error from elfview/rv/lift/cfg into an *Error,
// surfacing the underlying error rather than reinterpreting its message.
func classify(err error) *Error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return already
	}

	var elfErr *elfview.InvalidError
	if errors.As(err, &elfErr) {
		return &Error{Kind: ElfInvalid, Wrapped: err}
	}

	var decErr *rv.DecodeError
	if errors.As(err, &decErr) {
		kind := IllegalInstruction
		if decErr.Unsupported {
			kind = UnsupportedExtension
		}
		return &Error{Kind: kind, PC: decErr.PC, Bytes: decErr.Bytes, Wrapped: err}
	}

	var cfgErr *cfg.CfgUnresolvedError
	if errors.As(err, &cfgErr) {
		return &Error{Kind: CfgUnresolved, PC: cfgErr.PC, Wrapped: err}
	}

	var toolErr *toolchain.FailureError
	if errors.As(err, &toolErr) {
		return &Error{Kind: ToolchainFailure, Wrapped: err}
	}

	// Anything else reaching the driver is still a decode/lift-time
	// failure (lift.Lift's "unhandled op" path, for instance); treat it
	// as an illegal instruction since it has the same operator contract
	// from the CLI's point of view: fatal, no PC/bytes recovered.
	return &Error{Kind: IllegalInstruction, Wrapped: err}
}
