package cfg

import "github.com/openrvt/rvtx/internal/ir"

// recoverJumpTable recognizes one narrow pattern: auipc+addi
// materializing a table base, a scaled index added to it, and a load
// through the result feeding the indirect jump. Full dataflow
// analysis across blocks is out of scope; this recognizes only the case
// where the table base is a compile-time constant reachable by walking
// the terminating block's own RegWrite/TempAssign chain (true whenever
// the auipc/addi pair lives in the same block as the load and jalr, which
// is how a single-switch-statement table compiles). Anything else is left
// unresolved and falls back to the function's catch-all dispatch table.
func recoverJumpTable(mem ByteSource, b *ir.Block, ij ir.IndirectJump, opt Options) ([]uint64, bool) {
	regConst := map[uint8]uint64{0: 0}
	tempConst := map[int]uint64{}

	eval := func(e ir.Expr) (uint64, bool) {
		return foldConst(e, regConst, tempConst)
	}

	// Walk the block's own statements, propagating constants forward so
	// that a later Load's address can be resolved even though the
	// auipc-equivalent RegWrite happened earlier in the same block.
	for _, s := range b.Stmts {
		switch v := s.(type) {
		case ir.RegWrite:
			if c, ok := eval(v.Value); ok {
				regConst[v.Reg] = c
			} else {
				delete(regConst, v.Reg)
			}
		case ir.TempAssign:
			if c, ok := eval(v.Value); ok {
				tempConst[v.ID] = c
			} else {
				delete(tempConst, v.ID)
			}
		}
	}

	load, ok := findFeedingLoad(b, ij.Target)
	if !ok {
		return nil, false
	}
	base, ok := foldConstPartial(load.Address, regConst, tempConst)
	if !ok {
		return nil, false
	}

	entrySize := int(load.MemWidth / 8)
	const maxEntries = 256
	var targets []uint64
	for i := 0; i < maxEntries; i++ {
		raw, ok := mem.ReadAt(base+uint64(i*entrySize), entrySize)
		if !ok {
			break
		}
		v := littleEndian(raw)
		if v == 0 {
			break
		}
		targets = append(targets, v)
	}
	if len(targets) == 0 {
		return nil, false
	}
	return targets, true
}

func littleEndian(b []byte) uint64 {
	var v uint64
	for i, by := range b {
		v |= uint64(by) << (8 * i)
	}
	return v
}

// findFeedingLoad finds the Load expression that ultimately produces the
// indirect jump's target, following at most one TempRead indirection
// (the common "ld tN, 0(addr); jalr x0, 0(tN)" shape).
func findFeedingLoad(b *ir.Block, target ir.Expr) (ir.Load, bool) {
	if l, ok := target.(ir.Load); ok {
		return l, true
	}
	tr, ok := target.(ir.TempRead)
	if !ok {
		return ir.Load{}, false
	}
	for i := len(b.Stmts) - 1; i >= 0; i-- {
		ta, ok := b.Stmts[i].(ir.TempAssign)
		if !ok || ta.ID != tr.ID {
			continue
		}
		if l, ok := ta.Value.(ir.Load); ok {
			return l, true
		}
		return ir.Load{}, false
	}
	return ir.Load{}, false
}

// foldConst evaluates e to a concrete value if every leaf it touches is a
// Const or a register/temp already known to be constant.
func foldConst(e ir.Expr, regConst map[uint8]uint64, tempConst map[int]uint64) (uint64, bool) {
	switch v := e.(type) {
	case ir.Const:
		return v.Value, true
	case ir.RegRead:
		c, ok := regConst[v.Reg]
		return c, ok
	case ir.TempRead:
		c, ok := tempConst[v.ID]
		return c, ok
	case ir.SignExtend:
		return foldConst(v.Arg, regConst, tempConst)
	case ir.ZeroExtend:
		return foldConst(v.Arg, regConst, tempConst)
	case ir.Truncate:
		return foldConst(v.Arg, regConst, tempConst)
	case ir.Bin:
		l, lok := foldConst(v.Lhs, regConst, tempConst)
		r, rok := foldConst(v.Rhs, regConst, tempConst)
		if !lok || !rok {
			return 0, false
		}
		switch v.Op {
		case ir.Add:
			return l + r, true
		case ir.Sub:
			return l - r, true
		case ir.Or:
			return l | r, true
		case ir.Shl:
			return l << r, true
		case ir.And:
			return l & r, true
		}
	case ir.Addr:
		base, ok := foldConst(v.Base, regConst, tempConst)
		if !ok {
			return 0, false
		}
		return uint64(int64(base) + v.Offset), true
	}
	return 0, false
}

// foldConstPartial resolves the one compile-time-constant additive term
// within e even when e also contains an unresolvable runtime operand (the
// scaled switch index); that constant term is the jump table's base
// address in the auipc+scaled-index+add idiom.
func foldConstPartial(e ir.Expr, regConst map[uint8]uint64, tempConst map[int]uint64) (uint64, bool) {
	if c, ok := foldConst(e, regConst, tempConst); ok {
		return c, true
	}
	if a, ok := e.(ir.Addr); ok {
		return foldConstPartial(a.Base, regConst, tempConst)
	}
	b, ok := e.(ir.Bin)
	if !ok || b.Op != ir.Add {
		return 0, false
	}
	if c, ok := foldConst(b.Lhs, regConst, tempConst); ok {
		return c, true
	}
	if c, ok := foldConst(b.Rhs, regConst, tempConst); ok {
		return c, true
	}
	return 0, false
}
