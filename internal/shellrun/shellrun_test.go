package shellrun

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lazyshell/dsh/internal/builtins"
	"github.com/lazyshell/dsh/internal/lispeval"
)

func newTestShell(t *testing.T) *Shell {
	t.Helper()
	sh := New(false, false, lispeval.Null{})
	t.Cleanup(sh.Shutdown)
	sh.Env.SetVar("PATH", "/bin:/usr/bin")
	return sh
}

func TestRunLineExternalCommandExitCode(t *testing.T) {
	sh := newTestShell(t)
	code, err := sh.RunLine("/bin/sh -c 'exit 0'")
	if err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Fatalf("RunLine() code = %d, want 0", code)
	}
}

func TestRunLineCaptureSuffixBuffersStdoutInsteadOfInheriting(t *testing.T) {
	sh := newTestShell(t)
	code, err := sh.RunLine("/bin/echo hello |%")
	if err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Fatalf("RunLine() code = %d, want 0", code)
	}
	if sh.LastCapture != "hello" {
		t.Fatalf("LastCapture = %q, want %q", sh.LastCapture, "hello")
	}
}

func TestRunLineCapturingForcesCaptureRegardlessOfSuffix(t *testing.T) {
	sh := newTestShell(t)
	text, code, err := sh.RunLineCapturing("/bin/echo one two three")
	if err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Fatalf("code = %d, want 0", code)
	}
	if text != "one two three" {
		t.Fatalf("text = %q, want %q", text, "one two three")
	}
}

func TestRunLineAndOrShortCircuit(t *testing.T) {
	sh := newTestShell(t)
	code, err := sh.RunLine("/bin/sh -c 'exit 1' && /bin/sh -c 'exit 9'")
	if err != nil {
		t.Fatal(err)
	}
	if code != 1 {
		t.Fatalf("&&-chain after a failing first job should short-circuit; code = %d, want 1", code)
	}

	code, err = sh.RunLine("/bin/sh -c 'exit 1' || /bin/sh -c 'exit 0'")
	if err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Fatalf("||-chain should run the second job after a failing first one; code = %d, want 0", code)
	}
}

func TestRunLineCdBuiltinChangesDirectory(t *testing.T) {
	sh := newTestShell(t)
	start := sh.Env.Cwd()
	dir := t.TempDir()

	code, err := sh.RunLine("cd " + dir)
	if err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Fatalf("cd exit code = %d, want 0", code)
	}
	real, _ := filepath.EvalSymlinks(dir)
	cwd, _ := filepath.EvalSymlinks(sh.Env.Cwd())
	if cwd != real {
		t.Fatalf("Cwd() = %q, want %q", sh.Env.Cwd(), dir)
	}

	os.Chdir(start)
}

func TestRunLineExitReturnsExitRequested(t *testing.T) {
	sh := newTestShell(t)
	code, err := sh.RunLine("exit 5")
	if code != 5 {
		t.Fatalf("RunLine(exit 5) code = %d, want 5", code)
	}
	if _, ok := err.(*builtins.ExitRequested); !ok {
		t.Fatalf("RunLine(exit 5) error = %v, want *builtins.ExitRequested", err)
	}
}

func TestRunLineUnknownCommandReportsOneAndContinues(t *testing.T) {
	sh := newTestShell(t)
	code, err := sh.RunLine("this-command-does-not-exist-anywhere")
	if err != nil {
		t.Fatalf("RunLine() with an unresolvable command should not itself error: %v", err)
	}
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}
