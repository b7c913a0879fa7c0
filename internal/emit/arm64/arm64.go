// Package arm64 renders a control-flow graph as AArch64 assembly: one
// label per block, plain branches between them, and the hot register set
// bound directly to the x19-x28 callee-saved range. Same linear
// instruction-by-instruction text assembly as internal/emit/x86, in A64
// syntax instead of AT&T.
package arm64

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openrvt/rvtx/internal/cfg"
	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/regalloc"
)

// Options configures AArch64 generation.
type Options struct {
	Policy   regalloc.Policy // must be regalloc.DefaultARM64Policy in practice
	RegWidth ir.Width
}

type emitter struct {
	opt    Options
	fn     *cfg.Function
	b      *strings.Builder
	labelN int
}

// Emit renders fn as a single .s file defining rv_entry, the function's
// block labels, and the dispatch trampoline used both as the entry point
// and as the indirect-jump catch-all.
func Emit(fn *cfg.Function, opt Options) (string, error) {
	e := &emitter{opt: opt, fn: fn, b: &strings.Builder{}}
	e.preamble()
	for _, pc := range fn.Order {
		if err := e.block(pc, fn.Blocks[pc]); err != nil {
			return "", err
		}
	}
	e.dispatch()
	return e.b.String(), nil
}

func (e *emitter) newLabel(prefix string) string {
	e.labelN++
	return fmt.Sprintf(".L%s_%d", prefix, e.labelN)
}

func (e *emitter) preamble() {
	e.b.WriteString("// Generated by rvtx. Do not edit by hand.\n")
	e.b.WriteString("\t.text\n")
	e.b.WriteString("\t.extern rv_syscall\n")
	e.b.WriteString("\t.global rv_entry\n")
	e.b.WriteString("rv_entry:\n")
	// AAPCS64: rv_state_t *state arrives in x0. Save every callee-saved
	// register this routine uses (x19-x28, the full hot set, plus x29/x30
	// as a conventional frame) before carving out the temp scratch region
	// and loading the hot set's initial values from state->regs.
	e.b.WriteString("\tstp\tx29, x30, [sp, #-16]!\n")
	e.b.WriteString("\tstp\tx19, x20, [sp, #-16]!\n")
	e.b.WriteString("\tstp\tx21, x22, [sp, #-16]!\n")
	e.b.WriteString("\tstp\tx23, x24, [sp, #-16]!\n")
	e.b.WriteString("\tstp\tx25, x26, [sp, #-16]!\n")
	e.b.WriteString("\tstp\tx27, x28, [sp, #-16]!\n")
	fmt.Fprintf(e.b, "\tsub\tsp, sp, #%d\n", tempRegionSize)
	// x29 anchors the temp scratch region for the life of the function.
	// genBin's push/pop pair moves sp transiently while evaluating nested
	// operands, so temp offsets are addressed off x29 instead, the same
	// role %rbp plays in internal/emit/x86.
	e.b.WriteString("\tmov\tx29, sp\n")
	fmt.Fprintf(e.b, "\tmov\t%s, x0\n", stateReg)
	for i, reg := range e.opt.Policy.Hot {
		fmt.Fprintf(e.b, "\tldr\t%s, [%s, #%d]\n", hotPhysical[i], stateReg, offRegs+8*int(reg))
	}
	fmt.Fprintf(e.b, "\tldr\tx0, [%s, #%d]\n", stateReg, offPC)
	e.b.WriteString("\tb\trv_dispatch\n\n")
}

func (e *emitter) blockLabel(pc uint64) string { return fmt.Sprintf("blk_%x", pc) }

func (e *emitter) hotReg(reg uint8) (string, bool) {
	if idx, ok := e.opt.Policy.HotIndex(reg); ok {
		return hotPhysical[idx], true
	}
	return "", false
}

func (e *emitter) block(pc uint64, blk *ir.Block) error {
	fmt.Fprintf(e.b, "%s:\n", e.blockLabel(pc))
	// An HTIF store mid-predecessor sets state->halted; the next block
	// boundary is where execution actually stops.
	fmt.Fprintf(e.b, "\tldr\tx1, [%s, #%d]\n", stateReg, offHalted)
	e.b.WriteString("\tcbnz\tx1, rv_halt_exit\n")
	e.bumpCounter(offCSRInstret, blk.InstCount)
	e.bumpCounter(offCSRCycle, blk.InstCount)
	e.callTrace("trace_block", fmt.Sprintf("#0x%x", pc))
	for _, s := range blk.Stmts {
		if err := e.stmt(s); err != nil {
			return err
		}
	}
	return e.term(pc, blk.Term)
}

// epilogue restores every saved register and returns to the runtime,
// used at every exit point (Halt, Break, and the syscall path when
// state->halted becomes true).
func (e *emitter) epilogue() {
	fmt.Fprintf(e.b, "\tadd\tsp, sp, #%d\n", tempRegionSize)
	e.b.WriteString("\tldp\tx27, x28, [sp], #16\n")
	e.b.WriteString("\tldp\tx25, x26, [sp], #16\n")
	e.b.WriteString("\tldp\tx23, x24, [sp], #16\n")
	e.b.WriteString("\tldp\tx21, x22, [sp], #16\n")
	e.b.WriteString("\tldp\tx19, x20, [sp], #16\n")
	e.b.WriteString("\tldp\tx29, x30, [sp], #16\n")
	e.b.WriteString("\tret\n")
}

// dispatch renders rv_dispatch: a linear scan of every discovered block's
// entry PC against a runtime value sitting in x0, used as the
// translation's entry point and as the shared indirect-jump fallback.
func (e *emitter) dispatch() {
	table := append([]uint64(nil), e.fn.DispatchTable...)
	sort.Slice(table, func(i, j int) bool { return table[i] < table[j] })

	e.b.WriteString("rv_dispatch:\n")
	fmt.Fprintf(e.b, "\tldr\tx1, [%s, #%d]\n", stateReg, offHalted)
	e.b.WriteString("\tcbnz\tx1, rv_halt_exit\n")
	for _, pc := range table {
		fmt.Fprintf(e.b, "\tmov\tx1, #0x%x\n", pc&0xffff)
		if pc > 0xffff {
			fmt.Fprintf(e.b, "\tmovk\tx1, #0x%x, lsl #16\n", (pc>>16)&0xffff)
		}
		if pc > 0xffffffff {
			fmt.Fprintf(e.b, "\tmovk\tx1, #0x%x, lsl #32\n", (pc>>32)&0xffff)
			fmt.Fprintf(e.b, "\tmovk\tx1, #0x%x, lsl #48\n", (pc>>48)&0xffff)
		}
		e.b.WriteString("\tcmp\tx0, x1\n")
		fmt.Fprintf(e.b, "\tb.eq\t%s\n", e.blockLabel(pc))
	}
	fmt.Fprintf(e.b, "\tmov\tx1, #1\n\tstr\tx1, [%s, #%d]\n", stateReg, offExitCode)
	fmt.Fprintf(e.b, "\tstr\txzr, [%s, #%d]\n", stateReg, offResValid)
	fmt.Fprintf(e.b, "\tstr\tx1, [%s, #%d]\n", stateReg, offHalted)
	// rv_halt_exit is every exit path's funnel: the guest exit code
	// becomes rv_entry's return value.
	e.b.WriteString("rv_halt_exit:\n")
	fmt.Fprintf(e.b, "\tldr\tx0, [%s, #%d]\n", stateReg, offExitCode)
	e.epilogue()
	e.b.WriteString("\n")
}

// bumpCounter adds n to a 64-bit counter field in guest state. Block
// instruction counts exceed A64's 12-bit add immediate only for
// pathological straight-line code, so the wide form is the rare path.
func (e *emitter) bumpCounter(off, n int) {
	fmt.Fprintf(e.b, "\tldr\tx1, [%s, #%d]\n", stateReg, off)
	if n <= 0xfff {
		fmt.Fprintf(e.b, "\tadd\tx1, x1, #%d\n", n)
	} else {
		e.movImm64("x2", uint64(n))
		e.b.WriteString("\tadd\tx1, x1, x2\n")
	}
	fmt.Fprintf(e.b, "\tstr\tx1, [%s, #%d]\n", stateReg, off)
}

// movImm64 loads an arbitrary 64-bit constant into reg via MOVZ/MOVK,
// used anywhere a constant doesn't fit A64's 12-bit (optionally shifted)
// immediate forms.
func (e *emitter) movImm64(reg string, v uint64) {
	fmt.Fprintf(e.b, "\tmovz\t%s, #0x%x\n", reg, v&0xffff)
	for shift := 16; shift < 64; shift += 16 {
		part := (v >> uint(shift)) & 0xffff
		if part != 0 {
			fmt.Fprintf(e.b, "\tmovk\t%s, #0x%x, lsl #%d\n", reg, part, shift)
		}
	}
}
