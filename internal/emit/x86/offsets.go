package x86

// Field offsets into rv_state_t (internal/runtimespec's generated
// rv_state.h), hand-mirrored here because the asm backend never goes
// through a C compiler that could compute them with offsetof. res_valid
// is a 4-byte int but is immediately followed by the 8-byte-aligned
// csr_cycle, so the compiler pads it out to a full 8-byte slot;
// exit_code and halted have no such neighbor, so rv_state.h declares
// them int64_t (not C's 4-byte int) specifically so they land on these
// offsets without relying on tail padding. Must be kept in sync with
// rv_state.h by hand (documented in DESIGN.md rather than generated,
// since this backend's output is never assembled in this exercise).
const (
	offRegs        = 0   // regs[32], 8 bytes each regardless of XLEN
	offPC          = 256
	offResAddr     = 264
	offResValid    = 272
	offCSRCycle    = 280
	offCSRInstret  = 288
	offCSRTime     = 296
	offMem         = 304 // uint8_t *
	offMemMask     = 312
	offTracerState = 320 // void *
	offExitCode    = 328
	offHalted      = 336
	offToHost      = 344
)

// hotPhysical64 (and its 32-bit view hotPhysical32) is the fixed host-register
// binding for regalloc.DefaultX86Policy's five hot slots (sp, ra, a0, a1, a2),
// in policy order. These five plus %rbp (the temp-region base) are the six
// SysV callee-saved GPRs; the state pointer lives in caller-saved %r10.
var hotPhysical64 = []string{"%rbx", "%r12", "%r13", "%r14", "%r15"}
var hotPhysical32 = []string{"%ebx", "%r12d", "%r13d", "%r14d", "%r15d"}

// tempRegionSize is the fixed IR-temp scratch area rv_entry carves out of
// the stack once at startup, addressed via %rbp for the whole run (128
// slots of 8 bytes; see expr.go's tempOffset, far more than any block
// this lifter produces actually allocates).
const tempRegionSize = 1024

// stateReg holds the rv_state_t* for the life of a translation unit's
// execution. It is caller-saved by the SysV ABI, so every call out of
// this code (the Syscall terminator's call into rv_syscall, and every
// trace hook call) saves and restores it around the call explicitly
// rather than relying on callee-save.
const stateReg = "%r10"
