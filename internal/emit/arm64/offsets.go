package arm64

// Field offsets into rv_state_t (internal/runtimespec's generated
// rv_state.h), hand-mirrored here the same way internal/emit/x86 does:
// this backend never goes through a C compiler that could compute them
// with offsetof, so they must be kept in sync with rv_state.h by hand
// (documented in DESIGN.md). res_valid is a 4-byte int but is immediately
// followed by the 8-byte-aligned csr_cycle, so the compiler pads it out
// to a full 8-byte slot; exit_code and halted have no such neighbor, so
// rv_state.h declares them int64_t (not C's 4-byte int) specifically so
// they land on these offsets without relying on tail padding.
const (
	offRegs        = 0
	offPC          = 256
	offResAddr     = 264
	offResValid    = 272
	offCSRCycle    = 280
	offCSRInstret  = 288
	offCSRTime     = 296
	offMem         = 304
	offMemMask     = 312
	offTracerState = 320
	offExitCode    = 328
	offHalted      = 336
	offToHost      = 344
)

// hotPhysical is the fixed host-register binding for
// regalloc.DefaultARM64Policy's ten hot slots: the full x19-x28
// callee-saved range. x9 holds the state pointer
// (caller-saved, manually preserved around BL) and x29/x30/sp are left
// to their AAPCS64 roles.
var hotPhysical = []string{"x19", "x20", "x21", "x22", "x23", "x24", "x25", "x26", "x27", "x28"}

// tempRegionSize is the fixed IR-temp scratch area carved out of the
// stack once in the prologue, addressed relative to x29 (which the
// prologue points at its base) for the life of the function (128 slots of 8 bytes; mirrors internal/emit/x86's
// tempRegionSize). Kept a multiple of 16 so the prologue's stack
// adjustment stays AAPCS64-aligned.
const tempRegionSize = 1024

// stateReg holds the rv_state_t* for the life of a translation unit's
// execution. It is caller-saved under AAPCS64, so the one place control
// genuinely leaves this code (the Syscall terminator's call to
// rv_syscall, and every trace hook) must save and restore it manually
// around the call, same as x86's %r10 discipline.
const stateReg = "x9"
