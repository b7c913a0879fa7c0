// Package toolchain invokes the host C compiler or assembler that turns
// emitted source into a shared library. The underlying tool's error
// output is returned unchanged rather than reinterpreted.
package toolchain

import (
	"bytes"
	"os/exec"
)

// CompileC invokes the host C compiler on src, producing a shared library
// at out with -O2 -fno-strict-aliasing. The C backend's tail calls additionally need
// a musttail-capable compiler; cc is trusted to be one (clang on the
// common platforms this targets).
func CompileC(cc, src, out string, extraFlags ...string) error {
	args := append([]string{"-shared", "-fPIC", "-O2", "-fno-strict-aliasing", "-o", out, src}, extraFlags...)
	return run(cc, args)
}

// AssembleAndLink invokes the host assembler/linker on an emitted .s file.
func AssembleAndLink(cc, src, out string, extraFlags ...string) error {
	args := append([]string{"-shared", "-fPIC", "-o", out, src}, extraFlags...)
	return run(cc, args)
}

func run(tool string, args []string) error {
	cmd := exec.Command(tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &FailureError{Tool: tool, Args: args, Stderr: stderr.String(), Wrapped: err}
	}
	return nil
}

// FailureError reports a failed host compiler or assembler invocation.
// The tool's stderr is surfaced verbatim rather than reinterpreted.
type FailureError struct {
	Tool    string
	Args    []string
	Stderr  string
	Wrapped error
}

func (e *FailureError) Error() string {
	return e.Tool + " failed: " + e.Wrapped.Error() + "\n" + e.Stderr
}

func (e *FailureError) Unwrap() error { return e.Wrapped }
