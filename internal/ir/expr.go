// Package ir defines the translator's intermediate representation: pure
// expression trees, side-effecting statements, and block terminators. The
// IR is value-level, not SSA: a block is an ordered list of
// statements, IR temps are numbered within a block and carry a width tag,
// and expression trees are small and copied rather than shared so that
// lifetimes stay local to one block.
package ir

// Width is the bit width of an IR value: a register, a temp, a memory
// access, or an extension/truncation operand.
type Width uint8

const (
	W8  Width = 8
	W16 Width = 16
	W32 Width = 32
	W64 Width = 64
)

// BinOp is a pure two-operand arithmetic/logical/shift/compare operator.
// Division and remainder carry RISC-V's divide-by-zero and overflow
// semantics; the lifter adds no guards, so each emitter implements those
// cases itself.
type BinOp uint8

const (
	Add BinOp = iota
	Sub
	And
	Or
	Xor
	Shl
	ShrU
	ShrS
	SLT  // signed less-than, result 0/1
	SLTU // unsigned less-than, result 0/1
	Eq
	Ne
	Lt
	Ge
	LtU
	GeU
	MulLow // low XLEN bits of the product
	MulHSS // high bits, both signed
	MulHSU // high bits, signed*unsigned
	MulHUU // high bits, both unsigned
	DivS
	DivU
	RemS
	RemU
	// Zb* helpers lowered directly as binary operators rather than as
	// combinations.
	Rol
	Ror
	AndN
	OrN
	XNor
	Max
	MaxU
	Min
	MinU
	BClr
	BExt
	BInv
	BSet
	Sh1Add
	Sh2Add
	Sh3Add
	// Swap is AMOSWAP's combine function: the stored value is simply the
	// operand, the loaded pre-image is still returned to rd.
	Swap
)

// UnOp is a pure single-operand operator.
type UnOp uint8

const (
	Neg UnOp = iota
	Not
	Clz
	Ctz
	Cpop
	Rev8
	OrcB
)

// Expr is a pure, value-producing IR node. All Expr implementations are
// small structs copied by value; none hold pointers into a block's
// statement list.
type Expr interface {
	// Width reports the bit width the expression evaluates at.
	Width() Width
	isExpr()
}

// Const is a sign- or zero-extended immediate, materialized once at lift
// time.
type Const struct {
	W     Width
	Value uint64
}

func (Const) isExpr()        {}
func (c Const) Width() Width { return c.W }

// RegRead reads a guest general-purpose register. Reg 0 always reads as
// the constant zero; the lifter is responsible for folding that case to a
// Const rather than emitting RegRead{Reg: 0}.
type RegRead struct {
	Reg uint8
	W   Width
}

func (RegRead) isExpr()        {}
func (r RegRead) Width() Width { return r.W }

// CSRRead reads a CSR's current value.
type CSRRead struct {
	CSR uint16
	W   Width
}

func (CSRRead) isExpr()        {}
func (c CSRRead) Width() Width { return c.W }

// TempRead reads a previously assigned IR temp. Temps do not cross block
// boundaries; the CFG/lifter never construct a
// TempRead referring to an undefined temp.
type TempRead struct {
	ID int
	W  Width
}

func (TempRead) isExpr()        {}
func (t TempRead) Width() Width { return t.W }

// Bin is a pure binary operator application. Shift amounts are expected to
// already be masked to log2(XLEN) bits by the lifter for Shl/ShrU/ShrS,
// never left for the emitter to mask.
type Bin struct {
	Op       BinOp
	Lhs, Rhs Expr
	W        Width
}

func (Bin) isExpr()        {}
func (b Bin) Width() Width { return b.W }

// Un is a pure unary operator application.
type Un struct {
	Op  UnOp
	Arg Expr
	W   Width
}

func (Un) isExpr()        {}
func (u Un) Width() Width { return u.W }

// SignExtend widens Arg (which is From bits wide) to W, replicating its
// sign bit.
type SignExtend struct {
	Arg  Expr
	From Width
	W    Width
}

func (SignExtend) isExpr()        {}
func (s SignExtend) Width() Width { return s.W }

// ZeroExtend widens Arg (which is From bits wide) to W with zero fill.
type ZeroExtend struct {
	Arg  Expr
	From Width
	W    Width
}

func (ZeroExtend) isExpr()        {}
func (z ZeroExtend) Width() Width { return z.W }

// Truncate narrows Arg to W bits, discarding the high bits.
type Truncate struct {
	Arg Expr
	W   Width
}

func (Truncate) isExpr()        {}
func (t Truncate) Width() Width { return t.W }

// Select is a conditional-select expression: Zicond's CZERO.EQZ/NEZ and
// any other ternary the lifter needs lower to this node.
// Cond is truthy when non-zero.
type Select struct {
	Cond       Expr
	IfTrue     Expr
	IfFalse    Expr
	W          Width
}

func (Select) isExpr()        {}
func (s Select) Width() Width { return s.W }

// Addr computes a masked effective address: Base + Offset, truncated to
// the address width.
type Addr struct {
	Base   Expr
	Offset int64
	W      Width // address width, i.e. XLEN
}

func (Addr) isExpr()        {}
func (a Addr) Width() Width { return a.W }

// Load reads MemWidth bits from the guest memory image at Address and
// extends the result to W (sign or zero, selected by Signed).
type Load struct {
	Address  Expr
	MemWidth Width
	Signed   bool
	W        Width
}

func (Load) isExpr()        {}
func (l Load) Width() Width { return l.W }
