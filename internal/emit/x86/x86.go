// Package x86 renders a control-flow graph as x86-64 assembly in AT&T
// syntax: one label per block, plain jmp/jcc between them
// instead of call/ret so there is no return-address bookkeeping, and the
// hot register set bound directly to physical callee-saved GPRs instead
// of a C compiler's register allocator. Emission is linear text assembly,
// one instruction at a time, with no cross-block analysis.
package x86

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openrvt/rvtx/internal/cfg"
	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/regalloc"
)

// Options configures x86-64 generation.
type Options struct {
	Policy   regalloc.Policy // must be regalloc.DefaultX86Policy in practice
	RegWidth ir.Width
}

type emitter struct {
	opt    Options
	fn     *cfg.Function
	b      *strings.Builder
	labelN int
}

// Emit renders fn as a single .s file defining rv_entry, the function's
// internal block labels, and the dispatch trampoline used both as the
// entry point and as the indirect-jump catch-all.
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
	e.b.WriteString("/* Generated by rvtx. Do not edit by hand. */\n")
	e.b.WriteString("\t.text\n")
	e.b.WriteString("\t.extern rv_syscall\n")
	e.b.WriteString("\t.global rv_entry\n")
	e.b.WriteString("rv_entry:\n")
	// SysV ABI: rv_state_t *state arrives in %rdi. Pin it to the
	// dedicated state register and save every callee-saved GPR this
	// routine uses (including the five now bound to hot guest registers,
	// and %rbp, repurposed below as the IR-temp scratch base) before
	// loading their initial values from state->regs.
	e.b.WriteString("\tpushq\t%rbp\n\tpushq\t%rbx\n\tpushq\t%r12\n\tpushq\t%r13\n\tpushq\t%r14\n\tpushq\t%r15\n")
	fmt.Fprintf(e.b, "\tsubq\t$%d, %%rsp\n", tempRegionSize)
	e.b.WriteString("\tmovq\t%rsp, %rbp\n")
	fmt.Fprintf(e.b, "\tmovq\t%%rdi, %s\n", stateReg)
	for i, reg := range e.opt.Policy.Hot {
		fmt.Fprintf(e.b, "\tmovq\t%d(%s), %s\n", offRegs+8*int(reg), stateReg, hotPhysical64[i])
	}
	fmt.Fprintf(e.b, "\tmovq\t%d(%s), %%rax\n", offPC, stateReg)
	fmt.Fprintf(e.b, "\tjmp\trv_dispatch\n\n")
}

func (e *emitter) blockLabel(pc uint64) string { return fmt.Sprintf("blk_%x", pc) }

func (e *emitter) hotReg64(reg uint8) (string, bool) {
	if idx, ok := e.opt.Policy.HotIndex(reg); ok {
		return hotPhysical64[idx], true
	}
	return "", false
}

func (e *emitter) block(pc uint64, blk *ir.Block) error {
	fmt.Fprintf(e.b, "%s:\n", e.blockLabel(pc))
	// An HTIF store mid-predecessor sets state->halted; the next block
	// boundary is where execution actually stops.
	fmt.Fprintf(e.b, "\tcmpq\t$0, %d(%s)\n", offHalted, stateReg)
	e.b.WriteString("\tjne\trv_halt_exit\n")
	fmt.Fprintf(e.b, "\taddq\t$%d, %d(%s)\n", blk.InstCount, offCSRInstret, stateReg)
	fmt.Fprintf(e.b, "\taddq\t$%d, %d(%s)\n", blk.InstCount, offCSRCycle, stateReg)
	e.callTrace("trace_block", fmt.Sprintf("$0x%x", pc))
	for _, s := range blk.Stmts {
		if err := e.stmt(s); err != nil {
			return err
		}
	}
	return e.term(pc, blk.Term)
}

// epilogue restores the six saved callee-saved GPRs and returns to the
// runtime, used at every exit point (Halt, Break, and the syscall path
// when state->halted becomes true).
func (e *emitter) epilogue() {
	fmt.Fprintf(e.b, "\taddq\t$%d, %%rsp\n", tempRegionSize)
	e.b.WriteString("\tpopq\t%r15\n\tpopq\t%r14\n\tpopq\t%r13\n\tpopq\t%r12\n\tpopq\t%rbx\n\tpopq\t%rbp\n\tret\n")
}

// dispatch renders rv_dispatch: a linear scan of every discovered block's
// entry PC against a runtime value already sitting in %rax, used as the
// translation's entry point and as the shared indirect-jump fallback.
// A linear cmp/je chain rather than a jump table keeps
// this backend's addressing simple; a real build would sort the table and
// binary-search it once block counts get large.
func (e *emitter) dispatch() {
	table := append([]uint64(nil), e.fn.DispatchTable...)
	sort.Slice(table, func(i, j int) bool { return table[i] < table[j] })

	e.b.WriteString("rv_dispatch:\n")
	fmt.Fprintf(e.b, "\tcmpq\t$0, %d(%s)\n", offHalted, stateReg)
	e.b.WriteString("\tjne\trv_halt_exit\n")
	for _, pc := range table {
		fmt.Fprintf(e.b, "\tcmpq\t$0x%x, %%rax\n", pc)
		fmt.Fprintf(e.b, "\tje\t%s\n", e.blockLabel(pc))
	}
	fmt.Fprintf(e.b, "\tmovq\t$1, %d(%s)\n", offExitCode, stateReg)
	fmt.Fprintf(e.b, "\tmovq\t$0, %d(%s)\n", offResValid, stateReg)
	fmt.Fprintf(e.b, "\tmovq\t$1, %d(%s)\n", offHalted, stateReg)
	// rv_halt_exit is every exit path's funnel: the guest exit code
	// becomes rv_entry's return value.
	e.b.WriteString("rv_halt_exit:\n")
	fmt.Fprintf(e.b, "\tmovq\t%d(%s), %%rax\n", offExitCode, stateReg)
	e.epilogue()
	e.b.WriteString("\n")
}
