package ir

// RemapTemps returns a copy of e with every TempRead's ID shifted by
// offset. It is used by the CFG builder's fall-through absorption
// to renumber a successor block's temps before splicing its
// statements into its sole predecessor, since temp IDs are only unique
// within the block that defined them.
func RemapTemps(e Expr, offset int) Expr {
	switch v := e.(type) {
	case TempRead:
		v.ID += offset
		return v
	case Bin:
		v.Lhs = RemapTemps(v.Lhs, offset)
		v.Rhs = RemapTemps(v.Rhs, offset)
		return v
	case Un:
		v.Arg = RemapTemps(v.Arg, offset)
		return v
	case SignExtend:
		v.Arg = RemapTemps(v.Arg, offset)
		return v
	case ZeroExtend:
		v.Arg = RemapTemps(v.Arg, offset)
		return v
	case Truncate:
		v.Arg = RemapTemps(v.Arg, offset)
		return v
	case Select:
		v.Cond = RemapTemps(v.Cond, offset)
		v.IfTrue = RemapTemps(v.IfTrue, offset)
		v.IfFalse = RemapTemps(v.IfFalse, offset)
		return v
	case Addr:
		v.Base = RemapTemps(v.Base, offset)
		return v
	case Load:
		v.Address = RemapTemps(v.Address, offset)
		return v
	default:
		// Const, RegRead, CSRRead carry no temp references.
		return e
	}
}

// RemapStmtTemps rewrites the temp references within a single statement.
func RemapStmtTemps(s Stmt, offset int) Stmt {
	switch v := s.(type) {
	case RegWrite:
		v.Value = RemapTemps(v.Value, offset)
		return v
	case CSRWrite:
		v.Value = RemapTemps(v.Value, offset)
		return v
	case Store:
		v.Address = RemapTemps(v.Address, offset)
		v.Value = RemapTemps(v.Value, offset)
		return v
	case TempAssign:
		v.ID += offset
		v.Value = RemapTemps(v.Value, offset)
		return v
	case ReservationOp:
		if v.Address != nil {
			v.Address = RemapTemps(v.Address, offset)
		}
		return v
	case AtomicRMW:
		v.Address = RemapTemps(v.Address, offset)
		v.Operand = RemapTemps(v.Operand, offset)
		v.Result += offset
		return v
	case StoreConditional:
		v.Address = RemapTemps(v.Address, offset)
		v.Value = RemapTemps(v.Value, offset)
		v.Result += offset
		return v
	case TraceHook:
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = RemapTemps(a, offset)
		}
		v.Args = args
		return v
	default:
		return s
	}
}

// RemapTermTemps rewrites the temp references within a terminator.
func RemapTermTemps(t Terminator, offset int) Terminator {
	switch v := t.(type) {
	case Branch:
		v.Cond = RemapTemps(v.Cond, offset)
		return v
	case IndirectJump:
		v.Target = RemapTemps(v.Target, offset)
		return v
	case Halt:
		v.ExitCode = RemapTemps(v.ExitCode, offset)
		return v
	default:
		return t
	}
}
