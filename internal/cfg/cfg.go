// Package cfg discovers reachable basic blocks from entry symbols and
// branch/jump targets, performs fall-through absorption, and resolves (or
// gives up on) indirect-jump target sets, producing a per-function
// control-flow graph.
package cfg

import (
	"fmt"
	"sort"

	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/lift"
	"github.com/openrvt/rvtx/internal/rv"
)

// ByteSource is the minimal view of guest memory the CFG builder needs: a
// window of bytes at a guest address, used both for instruction fetch and
// for reading jump-table entries during indirect-target recovery. ok is
// false for addresses outside the window.
type ByteSource interface {
	ReadAt(addr uint64, n int) (data []byte, ok bool)
}

// Function is one discovered control-flow graph: a function's blocks keyed
// by entry PC, plus the set of indirect-jump sites whose targets could not
// be statically recovered and therefore fall back to the function-wide
// dispatch table.
type Function struct {
	Entry uint64
	// Order lists block entry PCs in discovery order, so emitters that
	// want deterministic output iterate this instead of ranging the map.
	Order  []uint64
	Blocks map[uint64]*ir.Block

	// UnresolvedIndirect lists the entry PCs of blocks whose terminator
	// is an ir.IndirectJump with no recovered static target set. These
	// blocks dispatch through DispatchTable at runtime.
	UnresolvedIndirect []uint64
	// ResolvedIndirect records, for a block whose terminator is an
	// IndirectJump and whose targets were statically recovered (the
	// auipc+addi+jalr jump-table idiom), the recovered target set, in
	// table order.
	ResolvedIndirect map[uint64][]uint64
	// DispatchTable is every discovered block's entry PC, sorted, used
	// as the catch-all jump target set for UnresolvedIndirect sites.
	// Populated by Build.
	DispatchTable []uint64
}

// Options configures discovery.
type Options struct {
	XLEN rv.XLEN
	Exts rv.ExtensionSet
	// RequireCatchAll, when false, makes an unrecovered indirect jump a
	// CfgUnresolved error instead of silently falling back to the
	// dispatch-table-of-everything policy.
	RequireCatchAll bool
}

// Build discovers every block reachable from seeds (the ELF entry point
// plus any configured export symbols) and returns the resulting Function.
// Discovery is breadth-first: branch and direct-jump targets join the
// work queue as they're found.
func Build(mem ByteSource, entry uint64, seeds []uint64, opt Options) (*Function, error) {
	fn := &Function{
		Entry:            entry,
		Blocks:           make(map[uint64]*ir.Block),
		ResolvedIndirect: make(map[uint64][]uint64),
	}
	lifter := lift.New(opt.XLEN)

	queue := append([]uint64{entry}, seeds...)
	visited := make(map[uint64]bool)

	for len(queue) > 0 {
		pc := queue[0]
		queue = queue[1:]
		if visited[pc] {
			continue
		}
		visited[pc] = true

		block, targets, err := decodeBlock(mem, pc, opt, lifter)
		if err != nil {
			return nil, err
		}
		fn.Blocks[pc] = block
		fn.Order = append(fn.Order, pc)

		if ij, ok := block.Term.(ir.IndirectJump); ok {
			if recovered, ok := recoverJumpTable(mem, block, ij, opt); ok {
				fn.ResolvedIndirect[pc] = recovered
				targets = append(targets, recovered...)
			}
		}
		for _, t := range targets {
			if !visited[t] {
				queue = append(queue, t)
			}
		}
	}

	absorbFallthrough(fn)
	if err := fn.finalize(opt); err != nil {
		return nil, err
	}
	return fn, nil
}

// decodeBlock decodes and lifts sequentially from pc until a terminator is
// produced, returning the block and the statically known successor PCs
// (Jump and Branch targets, plus a Syscall's fallthrough PC: the runtime
// resumes there through a fresh dispatch, so it must be a discovered
// block as well).
func decodeBlock(mem ByteSource, entry uint64, opt Options, lifter *lift.Lifter) (*ir.Block, []uint64, error) {
	block := &ir.Block{Entry: entry}
	pc := entry
	for {
		raw, ok := mem.ReadAt(pc, 4)
		if !ok {
			raw, ok = mem.ReadAt(pc, 2)
			if !ok {
				return nil, nil, fmt.Errorf("cfg: pc 0x%x outside guest memory window", pc)
			}
		}
		in, err := rv.Decode(pc, raw, opt.XLEN, opt.Exts)
		if err != nil {
			return nil, nil, err
		}
		// One trace_pc hook per executed instruction, emitted before the
		// instruction's own statements so the tracer sees PCs in program
		// order even when an instruction has no other observable effect.
		block.Emit(ir.TraceHook{Hook: "trace_pc", Args: []ir.Expr{ir.Const{W: lifter.RegWidth, Value: pc}}})
		block.InstCount++
		res, err := lifter.Lift(block, in)
		if err != nil {
			return nil, nil, err
		}
		if res.Terminated {
			return block, successorsOf(block.Term), nil
		}
		pc += uint64(in.Len)
	}
}

func successorsOf(t ir.Terminator) []uint64 {
	switch v := t.(type) {
	case ir.Jump:
		return []uint64{v.Target}
	case ir.Branch:
		return []uint64{v.Then, v.Else}
	case ir.Syscall:
		// The runtime resumes the guest at PCNext once rv_syscall
		// returns, so that PC must be a discovered block too.
		return []uint64{v.PCNext}
	default:
		return nil
	}
}

// finalize builds the dispatch table and records, for every indirect-jump
// site that Build's recovery pass did not resolve, that it falls back to
// the catch-all dispatch table (or fails with CfgUnresolved if none was
// configured).
func (fn *Function) finalize(opt Options) error {
	for _, pc := range fn.Order {
		b := fn.Blocks[pc]
		if _, ok := b.Term.(ir.IndirectJump); !ok {
			continue
		}
		if _, ok := fn.ResolvedIndirect[pc]; ok {
			continue
		}
		fn.UnresolvedIndirect = append(fn.UnresolvedIndirect, pc)
		if !opt.RequireCatchAll {
			return &CfgUnresolvedError{PC: pc}
		}
	}
	table := make([]uint64, 0, len(fn.Blocks))
	for pc := range fn.Blocks {
		table = append(table, pc)
	}
	sort.Slice(table, func(i, j int) bool { return table[i] < table[j] })
	fn.DispatchTable = table
	return nil
}

// CfgUnresolvedError reports an indirect jump with no recoverable target
// set and no catch-all dispatch table configured.
type CfgUnresolvedError struct {
	PC uint64
}

func (e *CfgUnresolvedError) Error() string {
	return fmt.Sprintf("cfg: unresolved indirect jump at pc=0x%x and no catch-all dispatch configured", e.PC)
}
