// Package regalloc implements the fixed, non-inferential register
// allocation policy: a documented hot set of guest
// registers pinned to host registers across block boundaries, with every
// other guest register and IR temp living in fixed slots.
package regalloc

// Policy is immutable once constructed; none of the asm backends perform
// cross-block liveness analysis, so the same Policy value
// is shared by every block of a function.
type Policy struct {
	// Hot lists guest register indices pinned to host registers, in the
	// fixed order they are bound to host registers (index 0 of Hot binds
	// to the backend's first hot host register, and so on).
	Hot []uint8
}

// guestRegName mirrors internal/rv's ABI register names for diagnostics.
var guestRegName = map[uint8]string{
	1: "ra", 2: "sp", 3: "gp", 4: "tp",
	8: "s0", 10: "a0", 11: "a1", 12: "a2", 13: "a3",
	14: "a4", 15: "a5", 16: "a6", 17: "a7",
}

// defaultHot is shared by all three backends: ra, sp, gp, the frame
// pointer s0, and the eight argument/return registers a0..a7: the ABI
// registers and the stack/global pointers that dominate traffic in
// typical call-heavy guest code.
var defaultHot = []uint8{2, 1, 3, 8, 10, 11, 12, 13, 14, 15, 16, 17}

// DefaultCPolicy is the hot set for the C emitter: the same guest
// registers are simply C function parameters, so there is no host
// register budget to worry about, so the full default set is carried.
func DefaultCPolicy() Policy { return Policy{Hot: append([]uint8(nil), defaultHot...)} }

// DefaultX86Policy binds the default hot set to x86-64's callee-saved
// general registers: rbx, r12-r15 are available without a
// prologue save/restore dance inside a block, so the hot set is trimmed
// to 5 entries to fit; the rest live in the state record like any cold
// register. sp/ra/a0 take priority since prologue/epilogue and the call
// convention touch them on every syscall boundary.
var DefaultX86Policy = Policy{Hot: []uint8{2, 1, 10, 11, 12}}

// DefaultARM64Policy binds the default hot set to AArch64's x19-x28
// callee-saved registers: ten slots, two short of defaultHot's twelve, so
// the two least call-heavy entries (a6, a7) are dropped rather than
// carried cold.
var DefaultARM64Policy = Policy{Hot: []uint8{2, 1, 3, 8, 10, 11, 12, 13, 14, 15}}

// IsHot reports whether guest register reg is pinned to a host register
// under this policy.
func (p Policy) IsHot(reg uint8) bool {
	for _, r := range p.Hot {
		if r == reg {
			return true
		}
	}
	return false
}

// HotIndex returns the position of reg within the policy's hot set (used
// by a backend to pick the Nth host register/parameter slot) and whether
// reg is hot at all.
func (p Policy) HotIndex(reg uint8) (int, bool) {
	for i, r := range p.Hot {
		if r == reg {
			return i, true
		}
	}
	return 0, false
}

// Name returns the ABI name of a guest register, for diagnostics and
// generated comments.
func Name(reg uint8) string {
	if n, ok := guestRegName[reg]; ok {
		return n
	}
	return "x" + itoa(reg)
}

func itoa(n uint8) string {
	if n == 0 {
		return "0"
	}
	var buf [3]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
