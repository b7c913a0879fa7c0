package runtimespec

import (
	"fmt"
	"strings"

	"github.com/openrvt/rvtx/internal/elfview"
)

// InitSource renders rv_init.c: the concrete initialize(state*) and
// run(state*) entry points every generated library exports. initialize
// embeds the ELF's PT_LOAD segments as byte arrays
// (the translator has already parsed them once via internal/elfview; this
// is the one place that data crosses from Go into the generated artifact)
// and copies them into state->mem, masked into the window the same way
// internal/guestmem.Image.LoadSegments does at translation time, then sets
// the initial PC and stack pointer. run dispatches through the backend's
// rv_entry: the C emitter defines rv_entry as a plain C function; the asm
// backends define it as an externally-linkable global, so declaring it
// extern here serves both.
func InitSource(img *elfview.Image, stackTop uint64) string {
	var b strings.Builder
	b.WriteString("/* Generated by rvtx. Do not edit by hand. */\n")
	b.WriteString("#include \"rv_state.h\"\n#include <string.h>\n\n")
	b.WriteString("extern rv_word_t rv_entry(rv_state_t *state);\n\n")

	for i, seg := range img.Segments {
		fmt.Fprintf(&b, "static const uint8_t rv_seg%d_data[] = {", i)
		for j, by := range seg.Bytes {
			if j%20 == 0 {
				b.WriteString("\n    ")
			}
			fmt.Fprintf(&b, "0x%02x,", by)
		}
		if len(seg.Bytes) == 0 {
			// A zero-length PT_LOAD segment (e.g. bss with no file
			// content) still needs a valid, non-empty array initializer.
			b.WriteString("0")
		}
		b.WriteString("\n};\n")
	}

	b.WriteString("\ntypedef struct { uint64_t vaddr; const uint8_t *data; uint64_t len; } rv_segment_t;\n")
	b.WriteString("static const rv_segment_t rv_segments[] = {\n")
	for i, seg := range img.Segments {
		fmt.Fprintf(&b, "    { UINT64_C(0x%x), rv_seg%d_data, sizeof(rv_seg%d_data) },\n", seg.VAddr, i, i)
	}
	b.WriteString("};\n\n")

	b.WriteString("void initialize(rv_state_t *state) {\n")
	b.WriteString("    memset(state->regs, 0, sizeof(state->regs));\n")
	b.WriteString("    state->res_valid = 0;\n")
	b.WriteString("    state->csr_cycle = 0;\n")
	b.WriteString("    state->csr_instret = 0;\n")
	b.WriteString("    state->csr_time = 0;\n")
	b.WriteString("    state->exit_code = 0;\n")
	b.WriteString("    state->halted = 0;\n")
	b.WriteString("    for (size_t i = 0; i < sizeof(rv_segments) / sizeof(rv_segments[0]); i++) {\n")
	b.WriteString("        const rv_segment_t *seg = &rv_segments[i];\n")
	b.WriteString("        for (uint64_t j = 0; j < seg->len; j++) {\n")
	b.WriteString("            state->mem[(seg->vaddr + j) & state->mem_mask] = seg->data[j];\n")
	b.WriteString("        }\n")
	b.WriteString("    }\n")
	fmt.Fprintf(&b, "    state->pc = UINT64_C(0x%x);\n", img.Entry)
	fmt.Fprintf(&b, "    state->regs[2] = UINT64_C(0x%x);\n", stackTop)
	// UINT64_MAX disables the HTIF watch: no masked guest address can
	// ever compare equal to it.
	if img.HasToHost {
		fmt.Fprintf(&b, "    state->tohost_addr = UINT64_C(0x%x);\n", img.ToHost)
	} else {
		b.WriteString("    state->tohost_addr = UINT64_MAX;\n")
	}
	b.WriteString("}\n\n")

	b.WriteString("rv_word_t run(rv_state_t *state) {\n")
	b.WriteString("    return rv_entry(state);\n")
	b.WriteString("}\n")
	return b.String()
}
