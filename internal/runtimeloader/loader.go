// Package runtimeloader backs the `run` subcommand: dynamically load a
// shared library this translator produced, call its
// initialize/run entry points, and report the guest's exit code and
// metrics. The standard library's plugin package only loads Go-compiled
// plugins built by a matching toolchain, not an arbitrary C-ABI .so a
// host cc/clang produced, so this package is the one place in the
// repository that reaches for cgo, using dlopen/dlsym/dlclose as the
// minimal glue.
package runtimeloader

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

// rv_state64_t/rv_state32_t mirror internal/runtimespec.StateHeader's two
// possible renderings (rv_word_t is uint64_t for XLEN64 guests, uint32_t
// for XLEN32 guests). The layouts must track that generator exactly, field
// for field, since this struct is passed by pointer straight into the
// dynamically loaded library's initialize/run.
typedef struct {
    uint64_t regs[32];
    uint64_t pc;
    uint64_t res_addr;
    int32_t  res_valid;
    uint64_t csr_cycle;
    uint64_t csr_instret;
    uint64_t csr_time;
    uint8_t  *mem;
    uint64_t mem_mask;
    void     *tracer_state;
    int64_t  exit_code;
    int64_t  halted;
    uint64_t tohost_addr;
} rv_state64_t;

typedef struct {
    uint32_t regs[32];
    uint32_t pc;
    uint32_t res_addr;
    int32_t  res_valid;
    uint32_t csr_cycle;
    uint32_t csr_instret;
    uint32_t csr_time;
    uint8_t  *mem;
    uint64_t mem_mask;
    void     *tracer_state;
    int64_t  exit_code;
    int64_t  halted;
    uint64_t tohost_addr;
} rv_state32_t;

static void call_init(void *fn, void *state) {
    void (*f)(void *) = (void (*)(void *))fn;
    f(state);
}

static uint64_t call_run64(void *fn, void *state) {
    uint64_t (*f)(void *) = (uint64_t (*)(void *))fn;
    return f(state);
}

static uint64_t call_run32(void *fn, void *state) {
    uint32_t (*f)(void *) = (uint32_t (*)(void *))fn;
    return (uint64_t)f(state);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/openrvt/rvtx/internal/metrics"
	"github.com/openrvt/rvtx/internal/rv"
)

// Library is a dlopen'd translation artifact: the .so/.dylib the host
// toolchain produced from this translator's generated C or assembly.
type Library struct {
	handle unsafe.Pointer
	path   string
}

// Open dlopens path and resolves initialize/run, failing fast if either
// symbol is missing rather than deferring the error to Run.
func Open(path string) (*Library, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	handle := C.dlopen(cPath, C.RTLD_NOW)
	if handle == nil {
		return nil, fmt.Errorf("runtimeloader: dlopen %s: %s", path, C.GoString(C.dlerror()))
	}

	lib := &Library{handle: handle, path: path}
	if _, err := lib.sym("initialize"); err != nil {
		lib.Close()
		return nil, err
	}
	if _, err := lib.sym("run"); err != nil {
		lib.Close()
		return nil, err
	}
	return lib, nil
}

func (l *Library) sym(name string) (unsafe.Pointer, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	C.dlerror() // clear any pending error before the lookup
	fn := C.dlsym(l.handle, cName)
	if fn == nil {
		if msg := C.dlerror(); msg != nil {
			return nil, fmt.Errorf("runtimeloader: dlsym %s in %s: %s", name, l.path, C.GoString(msg))
		}
	}
	return fn, nil
}

// Close releases the loaded library. Safe to call on an already-closed
// Library.
func (l *Library) Close() error {
	if l.handle == nil {
		return nil
	}
	if C.dlclose(l.handle) != 0 {
		return fmt.Errorf("runtimeloader: dlclose %s: %s", l.path, C.GoString(C.dlerror()))
	}
	l.handle = nil
	return nil
}

// Run allocates a guest state struct and memory window sized per xlen,
// calls initialize then run, and reports the exit code and whatever
// metrics the state struct carries once run returns. memWindowBytes must
// match the window the translation run was
// built against; this package has no way to recover that value from the
// .so itself, so the caller (the run subcommand, from its --mem-window flag)
// is responsible for passing the same figure compile used.
func Run(lib *Library, xlen rv.XLEN, memWindowBytes uint64) (*metrics.Metrics, error) {
	initFn, err := lib.sym("initialize")
	if err != nil {
		return nil, err
	}
	runFn, err := lib.sym("run")
	if err != nil {
		return nil, err
	}

	mem := C.malloc(C.size_t(memWindowBytes))
	if mem == nil {
		return nil, fmt.Errorf("runtimeloader: allocating %d byte guest memory window", memWindowBytes)
	}
	defer C.free(mem)
	C.memset(mem, 0, C.size_t(memWindowBytes))

	mask := C.uint64_t(memWindowBytes - 1)

	if xlen == rv.XLEN32 {
		state := (*C.rv_state32_t)(C.malloc(C.size_t(unsafe.Sizeof(C.rv_state32_t{}))))
		if state == nil {
			return nil, fmt.Errorf("runtimeloader: allocating guest state")
		}
		defer C.free(unsafe.Pointer(state))
		C.memset(unsafe.Pointer(state), 0, C.size_t(unsafe.Sizeof(C.rv_state32_t{})))
		state.mem = (*C.uint8_t)(mem)
		state.mem_mask = mask

		C.call_init(initFn, unsafe.Pointer(state))
		exit := C.call_run32(runFn, unsafe.Pointer(state))

		return &metrics.Metrics{
			InstCount:    uint64(state.csr_instret),
			CyclesApprox: uint64(state.csr_cycle),
			HaltPC:       uint64(state.pc),
			ExitCode:     int(int32(exit)),
		}, nil
	}

	state := (*C.rv_state64_t)(C.malloc(C.size_t(unsafe.Sizeof(C.rv_state64_t{}))))
	if state == nil {
		return nil, fmt.Errorf("runtimeloader: allocating guest state")
	}
	defer C.free(unsafe.Pointer(state))
	C.memset(unsafe.Pointer(state), 0, C.size_t(unsafe.Sizeof(C.rv_state64_t{})))
	state.mem = (*C.uint8_t)(mem)
	state.mem_mask = mask

	C.call_init(initFn, unsafe.Pointer(state))
	exit := C.call_run64(runFn, unsafe.Pointer(state))

	return &metrics.Metrics{
		InstCount:    uint64(state.csr_instret),
		CyclesApprox: uint64(state.csr_cycle),
		HaltPC:       uint64(state.pc),
		ExitCode:     int(int32(exit)),
	}, nil
}
