package ir

// Stmt is a side-effecting IR node, executed in exactly the order it
// appears in its owning block. Any access the tracer must be able to
// observe (a register or CSR access, a memory access, a branch decision)
// is represented as a Stmt so the emitter can inline a tracer call at
// exactly that point.
type Stmt interface {
	isStmt()
}

// RegWrite writes Value to a guest general-purpose register. A write to
// register 0 is a no-op at the IR level: the lifter must not emit a
// RegWrite{Reg: 0, ...} that isn't itself documented as a discard; the CFG
// and emitter both treat Reg==0 as observationally absent.
type RegWrite struct {
	Reg   uint8
	Value Expr
}

func (RegWrite) isStmt() {}

// CSRWrite commits Value to a CSR, unless the originating instruction form
// was the lifter-recognized read-only no-op (rs1=0 on a set/clear form),
// which the lifter simply omits rather than emitting here.
type CSRWrite struct {
	CSR   uint16
	Value Expr
}

func (CSRWrite) isStmt() {}

// Store writes Value (truncated to MemWidth) to the guest memory image at
// Address.
type Store struct {
	Address  Expr
	Value    Expr
	MemWidth Width
}

func (Store) isStmt() {}

// TempAssign defines an IR temp. Every TempRead referring to ID must be
// preceded, within the same block, by exactly one TempAssign of that ID.
type TempAssign struct {
	ID    int
	Value Expr
	W     Width
}

func (TempAssign) isStmt() {}

// ReservationOp manages the LR/SC reservation pair (res_addr, res_valid)
// held in guest state.
type ReservationOp struct {
	// Kind selects the transition: Set records Address as the new
	// reservation; Clear invalidates it unconditionally.
	Kind    ReservationKind
	Address Expr // only meaningful when Kind == ReservationSet
}

func (ReservationOp) isStmt() {}

type ReservationKind uint8

const (
	ReservationSet ReservationKind = iota
	ReservationClear
)

// AtomicRMW performs the read-modify-write step of an AMO: load the
// current value at Address, combine it with Operand using Op, store the
// result back, and make the pre-image available as Result (a temp ID the
// lifter has already allocated for rd). Lowered as a single statement
// rather than load+compute+store so the emitter backends that cannot
// offer true atomicity at least keep the three steps adjacent and
// untraced in between.
type AtomicRMW struct {
	Address  Expr
	Operand  Expr
	Op       BinOp
	MemWidth Width
	Signed   bool
	Result   int // temp ID receiving the (possibly sign-extended) pre-image
}

func (AtomicRMW) isStmt() {}

// StoreConditional is SC's all-or-nothing write: if the reservation is
// valid and matches Address, Value is stored and Result receives 0;
// otherwise nothing is stored and Result receives 1. The reservation is
// cleared unconditionally either way.
type StoreConditional struct {
	Address  Expr
	Value    Expr
	MemWidth Width
	Result   int // temp ID receiving 0 (success) or 1 (failure)
}

func (StoreConditional) isStmt() {}

// TraceHook is an explicit tracer-callback invocation for an observable
// access that would otherwise be implicit in the surrounding statement
// (e.g. the C emitter inlines trace_reg_write immediately after a
// RegWrite; this node exists for hooks that have no natural host
// statement of their own, such as trace_pc before each instruction).
type TraceHook struct {
	Hook string // e.g. "trace_pc"
	Args []Expr
}

func (TraceHook) isStmt() {}
