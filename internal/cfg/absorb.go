package cfg

import "github.com/openrvt/rvtx/internal/ir"

// absorbFallthrough concatenates a block into its sole predecessor when
// that predecessor ends in an unconditional Jump to it and it has no other
// incoming edges, running to fixed point. Running this function twice is
// a no-op: a second pass finds no block left with exactly one Jump-only
// predecessor, since every such pair was already merged.
func absorbFallthrough(fn *Function) {
	for {
		incoming := incomingCounts(fn)
		merged := false
		for _, predPC := range fn.Order {
			pred, ok := fn.Blocks[predPC]
			if !ok {
				continue
			}
			j, ok := pred.Term.(ir.Jump)
			if !ok || j.Target == predPC {
				continue
			}
			succ, ok := fn.Blocks[j.Target]
			if !ok || j.Target == fn.Entry {
				continue
			}
			if incoming[j.Target] != 1 {
				continue
			}
			mergeInto(pred, succ)
			if targets, ok := fn.ResolvedIndirect[j.Target]; ok {
				fn.ResolvedIndirect[predPC] = targets
				delete(fn.ResolvedIndirect, j.Target)
			}
			delete(fn.Blocks, j.Target)
			merged = true
		}
		if merged {
			fn.Order = compactOrder(fn.Order, fn.Blocks)
			continue
		}
		return
	}
}

// incomingCounts counts, for every PC appearing as a Jump/Branch target
// or a Syscall resume PC anywhere in the function, how many blocks target
// it.
func incomingCounts(fn *Function) map[uint64]int {
	counts := make(map[uint64]int)
	for _, pc := range fn.Order {
		b, ok := fn.Blocks[pc]
		if !ok {
			continue
		}
		for _, t := range successorsOf(b.Term) {
			counts[t]++
		}
	}
	return counts
}

// mergeInto splices succ's statements and terminator onto the end of
// pred, renumbering succ's temps so they don't collide with pred's
// (temps are only unique within the block that defined them).
func mergeInto(pred, succ *ir.Block) {
	offset := len(pred.TempWidths)
	for _, s := range succ.Stmts {
		pred.Stmts = append(pred.Stmts, ir.RemapStmtTemps(s, offset))
	}
	pred.TempWidths = append(pred.TempWidths, succ.TempWidths...)
	pred.InstCount += succ.InstCount
	pred.Term = ir.RemapTermTemps(succ.Term, offset)
}

func compactOrder(order []uint64, blocks map[uint64]*ir.Block) []uint64 {
	out := order[:0:0]
	for _, pc := range order {
		if _, ok := blocks[pc]; ok {
			out = append(out, pc)
		}
	}
	return out
}
