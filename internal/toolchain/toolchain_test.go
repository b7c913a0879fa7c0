package toolchain

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakeTool writes a tiny shell script standing in for cc/as so these tests
// never depend on a real host toolchain being installed.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool script needs a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fakecc")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestCompileCSucceeds(t *testing.T) {
	cc := fakeTool(t, "prev=\"\"\nfor a in \"$@\"; do\n  if [ \"$prev\" = \"-o\" ]; then touch \"$a\"; fi\n  prev=\"$a\"\ndone\nexit 0")
	out := filepath.Join(t.TempDir(), "out.so")
	src := filepath.Join(t.TempDir(), "in.c")
	if err := os.WriteFile(src, []byte("int main(void){return 0;}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CompileC(cc, src, out); err != nil {
		t.Fatalf("CompileC: %v", err)
	}
}

func TestCompileCSurfacesStderrVerbatim(t *testing.T) {
	cc := fakeTool(t, "echo 'in.c:1:1: error: bogus' 1>&2\nexit 1")
	out := filepath.Join(t.TempDir(), "out.so")
	src := filepath.Join(t.TempDir(), "in.c")
	if err := os.WriteFile(src, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := CompileC(cc, src, out)
	if err == nil {
		t.Fatal("expected CompileC to fail")
	}
	var fe *FailureError
	if !errors.As(err, &fe) {
		t.Fatalf("expected a *FailureError, got %T: %v", err, err)
	}
	if !strings.Contains(fe.Stderr, "bogus") {
		t.Fatalf("expected the tool's stderr to surface verbatim, got %q", fe.Stderr)
	}
	if fe.Tool != cc {
		t.Fatalf("expected Tool to record the invoked binary, got %q", fe.Tool)
	}
	if !errors.Is(err, fe.Wrapped) {
		t.Fatal("expected Unwrap to expose the underlying exec error")
	}
}

func TestAssembleAndLinkPassesExtraFlags(t *testing.T) {
	cc := fakeTool(t, `
for a in "$@"; do
  if [ "$a" = "-lm" ]; then exit 0; fi
done
echo "missing -lm" 1>&2
exit 1
`)
	out := filepath.Join(t.TempDir(), "out.so")
	src := filepath.Join(t.TempDir(), "in.s")
	if err := os.WriteFile(src, []byte("\t.text\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := AssembleAndLink(cc, src, out, "-lm"); err != nil {
		t.Fatalf("AssembleAndLink: %v", err)
	}
}
