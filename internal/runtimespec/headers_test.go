package runtimespec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerHeaderDeclaresEveryHook(t *testing.T) {
	h := TracerHeader(false)
	for _, hook := range []string{
		"trace_init", "trace_fini", "trace_pc", "trace_block",
		"trace_reg_read", "trace_reg_write",
		"trace_mem_read_byte", "trace_mem_write_dword",
		"trace_branch_taken", "trace_branch_not_taken",
		"trace_csr_read", "trace_csr_write",
	} {
		assert.Contains(t, h, hook, "tracer header must declare %s", hook)
	}
}

func TestStateHeaderSelectsWordWidthByXLEN(t *testing.T) {
	h32 := StateHeader(32)
	h64 := StateHeader(64)
	assert.Contains(t, h32, "typedef uint32_t rv_word_t;")
	assert.Contains(t, h64, "typedef uint64_t rv_word_t;")
	assert.Contains(t, h32, "rv_divs32")
	assert.Contains(t, h32, "rv_divs64", "32-bit and 64-bit *W helpers are both always emitted")
}

func TestDivHelpersCarryRiscvEdgeCaseSemantics(t *testing.T) {
	h := StateHeader(64)
	require.Contains(t, h, "rv_divs32")
	assert.Contains(t, h, "if (b == 0) return -1;")
	assert.Contains(t, h, "if (a == INT32_MIN && b == -1) return INT32_MIN;")
	assert.Contains(t, h, "b == 0 ? UINT32_MAX : a / b", "unsigned division by zero returns all-ones")
}

func TestStateHeaderWatchesToHostOnWordStores(t *testing.T) {
	h := StateHeader(64)
	require.Contains(t, h, "uint64_t  tohost_addr;")
	assert.Contains(t, h, "rv_htif_check", "store helpers must run the HTIF watch")
	assert.Equal(t, 2, strings.Count(h, "rv_htif_check(state, addr, v);"),
		"exactly the word and dword store helpers run the watch")
	assert.Contains(t, h, "lo == 1 ? 0 : (int64_t)lo",
		"tohost==1 is the riscv-tests pass value and must exit 0")
}

func TestDispatchSourceReturnsExitCodeOnHalt(t *testing.T) {
	src := DispatchSource(Baremetal)
	assert.Contains(t, src, "return (rv_word_t)state->exit_code;")
}

func TestDispatchSourceBaremetalOnlyExposesExit(t *testing.T) {
	src := DispatchSource(Baremetal)
	assert.Contains(t, src, "case 93:")
	assert.NotContains(t, src, "rv_sys_write", "the baremetal preset must not reference any Linux runtime function")
}

func TestDispatchSourceLinuxCoversFullTable(t *testing.T) {
	src := DispatchSource(Linux)
	for _, sym := range []string{"rv_sys_write", "rv_sys_read", "rv_sys_brk", "rv_sys_mmap"} {
		assert.Contains(t, src, sym)
	}
	assert.Contains(t, src, "case 94:", "exit_group must be dispatched alongside exit")
	assert.Contains(t, src, "default:")
}

func TestLookupReportsTrapForUnknownSyscallNumber(t *testing.T) {
	e := Lookup(Table(Linux), 999999)
	require.Equal(t, KindTrap, e.Kind)
}

func TestLookupFindsKnownSyscall(t *testing.T) {
	e := Lookup(Table(Linux), 64)
	require.Equal(t, KindFunc, e.Kind)
	assert.Equal(t, "write", e.Name)
	assert.Equal(t, 3, e.Arity)
}
