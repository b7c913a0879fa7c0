package xlate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/openrvt/rvtx/internal/cfg"
	"github.com/openrvt/rvtx/internal/elfview"
	"github.com/openrvt/rvtx/internal/emit/arm64"
	"github.com/openrvt/rvtx/internal/emit/cemit"
	"github.com/openrvt/rvtx/internal/emit/x86"
	"github.com/openrvt/rvtx/internal/guestmem"
	"github.com/openrvt/rvtx/internal/ir"
	"github.com/openrvt/rvtx/internal/regalloc"
	"github.com/openrvt/rvtx/internal/rv"
	"github.com/openrvt/rvtx/internal/runtimespec"
	"github.com/openrvt/rvtx/internal/toolchain"
)

// Backend selects which emitter renders the discovered CFG.
type Backend string

const (
	BackendC     Backend = "c"
	BackendX86   Backend = "x86"
	BackendARM64 Backend = "arm64"
)

// Syscalls selects the runtime syscall table preset.
type Syscalls string

const (
	SyscallsBaremetal Syscalls = "baremetal"
	SyscallsLinux     Syscalls = "linux"
)

// State is the driver's position in the translation pipeline:
// Discovering -> Lifting -> BuildingCfg -> Emitting -> Done, or Failed
// on the first error.
type State int

const (
	StateDiscovering State = iota
	StateLifting
	StateBuildingCfg
	StateEmitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "Discovering"
	case StateLifting:
		return "Lifting"
	case StateBuildingCfg:
		return "BuildingCfg"
	case StateEmitting:
		return "Emitting"
	case StateDone:
		return "Done"
	default:
		return "Failed"
	}
}

// Options configures one translation run end to end: where the guest ELF
// comes from, which backend renders it, and how the host toolchain turns
// that output into a loadable shared library.
type Options struct {
	ELFPath string
	OutPath string
	Backend Backend

	Syscalls Syscalls
	// HTIFSymbol is the export watched for the tohost/fromhost halt
	// protocol. The watch itself lives in the runtime (initialize() arms
	// it from the ELF's tohost symbol); the translator only checks the
	// symbol is actually present when one was configured.
	HTIFSymbol string

	// ExportSymbols lists symbol names seeded into CFG discovery
	// alongside the ELF entry point, for guests whose entry points are
	// called individually rather than running main to completion.
	ExportSymbols []string

	// EmitOnly, when set, writes the generated C source straight to
	// OutPath and skips invoking the host toolchain.
	// Only meaningful with BackendC; OutPath names the .c file itself
	// rather than a .so.
	EmitOnly bool

	// HotRegs overrides the backend's default hot-register policy when
	// non-empty.
	HotRegs []uint8

	MemWindowBytes uint64

	// StackTop overrides the initial stack pointer initialize() writes into
	// regs[2]; defaults to a fixed offset below the top of the memory
	// window when zero.
	StackTop uint64

	// TracerHeaderPath, when set, is copied in as rv_tracer.h instead of
	// the generated no-op stub.
	TracerHeaderPath string

	CC             string
	ToolchainFlags []string

	// WorkDir holds intermediate generated sources; defaults to
	// os.TempDir() when empty.
	WorkDir string
}

// Result records the artifact paths a run produced, for callers (tests,
// the CLI) that want to inspect intermediate output.
type Result struct {
	SourcePath  string
	HeaderPaths []string
	OutPath     string
}

// Translate runs the full pipeline once: load the ELF, discover and lift
// reachable code into a CFG, emit it through the configured backend, and
// invoke the host toolchain to produce a loadable shared library. Every
// state transition is logged at Info level; recoverable anomalies log at
// Warn. The first hard failure is normalized to an *Error and returned;
// Translate itself never logs at Error level, since the caller decides
// how a failure should be reported.
func Translate(opt Options) (*Result, error) {
	logState(StateDiscovering, opt)

	img, err := elfview.Load(opt.ELFPath)
	if err != nil {
		return nil, classify(err)
	}
	if img.XLEN == rv.XLEN32 && opt.Backend != BackendC {
		log.Warn("asm backends are exercised mainly against XLEN64 guests", "backend", opt.Backend, "xlen", img.XLEN)
	}
	if opt.HTIFSymbol != "" && !img.HasToHost {
		log.Warn("configured HTIF symbol has no tohost export; halt detection relies on EBREAK/syscall exit instead", "symbol", opt.HTIFSymbol)
	}

	mem := guestmem.New(memWindow(opt.MemWindowBytes))
	mem.LoadSegments(img)

	logState(StateLifting, opt)
	logState(StateBuildingCfg, opt)

	seeds := img.ExportPCs(opt.ExportSymbols)
	fn, err := cfg.Build(mem, img.Entry, seeds, cfg.Options{
		XLEN:            img.XLEN,
		Exts:            rv.IMACDefault(),
		RequireCatchAll: true,
	})
	if err != nil {
		return nil, classify(err)
	}
	log.Info("cfg built", "blocks", len(fn.Blocks), "unresolved_indirect", len(fn.UnresolvedIndirect))
	if len(fn.UnresolvedIndirect) > 0 {
		log.Warn("indirect jump sites fell back to the whole-function dispatch table", "count", len(fn.UnresolvedIndirect))
	}

	logState(StateEmitting, opt)
	res, err := emitAndBuild(img, fn, opt)
	if err != nil {
		return nil, classify(err)
	}

	logState(StateDone, opt)
	return res, nil
}

func logState(s State, opt Options) {
	log.Info("translator state", "state", s.String(), "elf", opt.ELFPath, "backend", opt.Backend)
}

func memWindow(requested uint64) uint64 {
	if requested == 0 {
		return 256 << 20
	}
	return requested
}

func regWidth(x rv.XLEN) ir.Width {
	if x == rv.XLEN64 {
		return ir.W64
	}
	return ir.W32
}

func policyFor(backend Backend, override []uint8) regalloc.Policy {
	if len(override) > 0 {
		return regalloc.Policy{Hot: override}
	}
	switch backend {
	case BackendX86:
		return regalloc.DefaultX86Policy
	case BackendARM64:
		return regalloc.DefaultARM64Policy
	default:
		return regalloc.DefaultCPolicy()
	}
}

func syscallPreset(s Syscalls) runtimespec.Preset {
	if s == SyscallsBaremetal {
		return runtimespec.Baremetal
	}
	return runtimespec.Linux
}

func stackTopFor(requested, memWindow uint64) uint64 {
	if requested != 0 {
		return requested
	}
	// Leave a guard gap below the window's top so a guest that touches a
	// little above its initial stack pointer lands in the gap instead of
	// wrapping around to the bottom of the window, where loaded segments
	// live.
	const guard = 4096
	if memWindow <= guard {
		return 0
	}
	top := (memWindow - guard) &^ 0xf
	return top
}

// emitAndBuild renders fn through the configured backend, writes the
// generated sources and runtime-contract headers to opt.WorkDir, and
// invokes the host toolchain to produce opt.OutPath.
func emitAndBuild(img *elfview.Image, fn *cfg.Function, opt Options) (*Result, error) {
	workDir := opt.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if opt.EmitOnly {
		// lift writes every generated file next to OutPath rather than a
		// scratch dir, since there is no toolchain invocation afterward to
		// collect -I flags pointing at a temp directory.
		workDir = filepath.Dir(opt.OutPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("xlate: creating work dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(opt.ELFPath), filepath.Ext(opt.ELFPath))
	w := regWidth(img.XLEN)
	policy := policyFor(opt.Backend, opt.HotRegs)
	cc := opt.CC
	if cc == "" {
		cc = "cc"
	}

	stateHdr := filepath.Join(workDir, "rv_state.h")
	if err := os.WriteFile(stateHdr, []byte(runtimespec.StateHeader(int(img.XLEN))), 0o644); err != nil {
		return nil, err
	}
	dispatchSrc := filepath.Join(workDir, "rv_syscall.c")
	if err := os.WriteFile(dispatchSrc, []byte(runtimespec.DispatchSource(syscallPreset(opt.Syscalls))), 0o644); err != nil {
		return nil, err
	}

	res := &Result{OutPath: opt.OutPath, HeaderPaths: []string{stateHdr, dispatchSrc}}
	flags := append([]string{"-I", workDir}, opt.ToolchainFlags...)
	units := []string{dispatchSrc}
	if !opt.EmitOnly {
		// lift (EmitOnly) only wants the block-dispatch C source;
		// initialize/run have no purpose without a toolchain run to
		// link them against.
		initSrc := filepath.Join(workDir, "rv_init.c")
		memWin := memWindow(opt.MemWindowBytes)
		src := runtimespec.InitSource(img, stackTopFor(opt.StackTop, memWin))
		if err := os.WriteFile(initSrc, []byte(src), 0o644); err != nil {
			return nil, err
		}
		res.HeaderPaths = append(res.HeaderPaths, initSrc)
		units = append(units, initSrc)
	}
	if opt.Syscalls != SyscallsBaremetal {
		// The "linux" table's DispatchSource declares every rv_sys_* entry
		// extern; SyscallShimSource is where those symbols actually live.
		shimSrc := filepath.Join(workDir, "rv_syscall_shim.c")
		if err := os.WriteFile(shimSrc, []byte(runtimespec.SyscallShimSource()), 0o644); err != nil {
			return nil, err
		}
		res.HeaderPaths = append(res.HeaderPaths, shimSrc)
		units = append(units, shimSrc)
	}

	if opt.Backend == BackendC {
		src, err := cemit.Emit(fn, cemit.Options{Policy: policy, RegWidth: w})
		if err != nil {
			return nil, err
		}
		srcPath := filepath.Join(workDir, base+".c")
		if opt.EmitOnly {
			srcPath = opt.OutPath
		}
		if err := os.WriteFile(srcPath, []byte(src), 0o644); err != nil {
			return nil, err
		}
		tracerHdr := filepath.Join(filepath.Dir(srcPath), "rv_tracer.h")
		if err := writeTracerHeader(tracerHdr, opt.TracerHeaderPath); err != nil {
			return nil, err
		}
		res.SourcePath = srcPath
		res.HeaderPaths = append(res.HeaderPaths, tracerHdr)
		if opt.EmitOnly {
			return res, nil
		}
		if err := toolchain.CompileC(cc, srcPath, opt.OutPath, append(flags, units...)...); err != nil {
			return nil, err
		}
		return res, nil
	}

	var src string
	var err error
	switch opt.Backend {
	case BackendX86:
		src, err = x86.Emit(fn, x86.Options{Policy: policy, RegWidth: w})
	case BackendARM64:
		src, err = arm64.Emit(fn, arm64.Options{Policy: policy, RegWidth: w})
	default:
		return nil, fmt.Errorf("xlate: unknown backend %q", opt.Backend)
	}
	if err != nil {
		return nil, err
	}
	srcPath := filepath.Join(workDir, base+".s")
	if err := os.WriteFile(srcPath, []byte(src), 0o644); err != nil {
		return nil, err
	}
	res.SourcePath = srcPath
	extras := append([]string(nil), units...)
	if opt.TracerHeaderPath == "" {
		// No custom tracer object is being linked in: the asm backends
		// call trace_* with bl/call, which needs an externally-linkable
		// definition rather than the C emitter's static-inline header.
		shimSrc := filepath.Join(workDir, "rv_tracer_shim.c")
		if err := os.WriteFile(shimSrc, []byte(runtimespec.TracerShimSource()), 0o644); err != nil {
			return nil, err
		}
		res.HeaderPaths = append(res.HeaderPaths, shimSrc)
		extras = append(extras, shimSrc)
	}
	if err := toolchain.AssembleAndLink(cc, srcPath, opt.OutPath, append(flags, extras...)...); err != nil {
		return nil, err
	}
	return res, nil
}

func writeTracerHeader(dst, customSrc string) error {
	if customSrc == "" {
		return os.WriteFile(dst, []byte(runtimespec.TracerHeader(false)), 0o644)
	}
	data, err := os.ReadFile(customSrc)
	if err != nil {
		return fmt.Errorf("xlate: reading tracer header: %w", err)
	}
	return os.WriteFile(dst, data, 0o644)
}
