// rvtx is the CLI front end for the translator, exposing its three
// operations (compile, lift, run). The core pipeline lives in
// internal/xlate; this file only parses flags,
// loads config, and maps the result to the process exit code.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/openrvt/rvtx/config"
	"github.com/openrvt/rvtx/internal/metrics"
	"github.com/openrvt/rvtx/internal/runtimeloader"
	"github.com/openrvt/rvtx/internal/rv"
	"github.com/openrvt/rvtx/internal/xlate"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "-version", "--version", "version":
		printVersion()
		os.Exit(0)
	case "-help", "--help", "help":
		printHelp()
		os.Exit(0)
	case "compile":
		os.Exit(runCompile(os.Args[2:]))
	case "lift":
		os.Exit(runLift(os.Args[2:]))
	case "run":
		os.Exit(runRun(os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "rvtx: unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("rvtx %s\n", Version)
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
	if Date != "unknown" {
		fmt.Printf("Built: %s\n", Date)
	}
}

func printHelp() {
	fmt.Printf(`rvtx %s - static RISC-V to native binary translator

Usage:
  rvtx compile <elf> -o <out> [--syscalls baremetal|linux] [--backend c|x86|arm64] [--tracer-header <path>]
  rvtx lift <elf> -o <out>
  rvtx run <out> [--xlen 32|64] [--mem-window <bytes>]
  rvtx -version
  rvtx -help

compile translates a guest ELF into a native shared library through the
host toolchain. lift stops after emitting C source, skipping the
toolchain invocation. run dlopens a previously compiled library, calls
initialize and run, and prints the guest's exit code and metrics.
`, Version)
}

// loadMergedConfig follows config/config.go's documented precedence: a
// loaded (or default) Config is the base, CLI flags override it field by
// field only when explicitly set.
func loadMergedConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Warn("failed to load config, using defaults", "err", err)
		cfg = config.DefaultConfig()
	}
	return cfg
}

func runCompile(args []string) int {
	return runTranslate(args, "compile", false)
}

func runLift(args []string) int {
	return runTranslate(args, "lift", true)
}

func runTranslate(args []string, name string, emitOnly bool) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	out := fs.String("o", "", "output path")
	backend := fs.String("backend", "", "emitter backend: c, x86, arm64 (compile only)")
	syscalls := fs.String("syscalls", "", "syscall table preset: baremetal, linux")
	tracerHdr := fs.String("tracer-header", "", "custom rv_tracer.h to use instead of the no-op default")
	cc := fs.String("cc", "", "host C compiler/assembler to invoke")
	memWindow := fs.Uint64("mem-window", 0, "guest memory window size in bytes (default 256MiB)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "rvtx %s: expected exactly one ELF path argument\n", name)
		return 2
	}
	if *out == "" {
		fmt.Fprintf(os.Stderr, "rvtx %s: -o is required\n", name)
		return 2
	}

	cfg := loadMergedConfig()
	opt := xlate.Options{
		ELFPath:          fs.Arg(0),
		OutPath:          *out,
		Backend:          xlate.Backend(firstNonEmpty(*backend, cfg.Target.Backend)),
		Syscalls:         xlate.Syscalls(firstNonEmpty(*syscalls, cfg.Target.Syscalls)),
		HTIFSymbol:       cfg.Target.HTIFSym,
		ExportSymbols:    cfg.Target.Exports,
		EmitOnly:         emitOnly,
		HotRegs:          toUint8Slice(cfg.Target.HotRegs),
		MemWindowBytes:   firstNonZero(*memWindow, cfg.Runtime.MemWindowBytes),
		TracerHeaderPath: firstNonEmpty(*tracerHdr, cfg.Tracer.HeaderPath),
		CC:               firstNonEmpty(*cc, cfg.Toolchain.CC),
		ToolchainFlags:   cfg.Toolchain.Flags,
	}
	if emitOnly {
		opt.Backend = xlate.BackendC
	}

	res, err := xlate.Translate(opt)
	if err != nil {
		return reportTranslateError(name, err)
	}
	fmt.Printf("rvtx %s: wrote %s\n", name, res.OutPath)
	return 0
}

func reportTranslateError(name string, err error) int {
	if xerr := asXlateError(err); xerr != nil {
		fmt.Fprintf(os.Stderr, "rvtx %s: %s\n", name, xerr.Error())
		return xerr.Kind.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "rvtx %s: %v\n", name, err)
	return 1
}

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	xlenFlag := fs.Int("xlen", 64, "guest register width: 32 or 64")
	memWindow := fs.Uint64("mem-window", 256<<20, "guest memory window size in bytes; must match the window compile used")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "rvtx run: expected exactly one shared-library path argument\n")
		return 2
	}

	xlen := rv.XLEN64
	if *xlenFlag == 32 {
		xlen = rv.XLEN32
	}

	lib, err := runtimeloader.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvtx run: %v\n", err)
		return 1
	}
	defer lib.Close()

	m, err := runtimeloader.Run(lib, xlen, *memWindow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvtx run: %v\n", err)
		return 1
	}

	printMetrics(m)
	return m.ExitCode
}

func printMetrics(m *metrics.Metrics) {
	fmt.Printf("exit code: %d\n", m.ExitCode)
	fmt.Printf("instructions retired: %d\n", m.InstCount)
	fmt.Printf("blocks dispatched: %d\n", m.BlockCount)
	fmt.Printf("cycles (approx): %d\n", m.CyclesApprox)
	fmt.Printf("halt pc: 0x%x\n", m.HaltPC)
}

// asXlateError walks err's Unwrap chain looking for a *xlate.Error, the
// same traversal errors.As performs, spelled out locally to avoid a
// throwaway target variable at its call site.
func asXlateError(err error) *xlate.Error {
	for err != nil {
		if xerr, ok := err.(*xlate.Error); ok {
			return xerr
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonZero(a, b uint64) uint64 {
	if a != 0 {
		return a
	}
	return b
}

func toUint8Slice(in []int) []uint8 {
	if len(in) == 0 {
		return nil
	}
	out := make([]uint8, len(in))
	for i, v := range in {
		out[i] = uint8(v)
	}
	return out
}
