package builtins

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lazyshell/dsh/internal/shelljob"
	"github.com/lazyshell/dsh/internal/shenv"
)

func captureOut(t *testing.T, run func(p *shelljob.Process)) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	p := &shelljob.Process{Stdout: w}
	run(p)
	w.Close()

	var sb strings.Builder
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		sb.WriteString(sc.Text())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestCdChangesDirectoryAndSetsPreviousDir(t *testing.T) {
	start, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(start)

	dir := t.TempDir()
	env := shenv.New()
	bt := New(env)

	code, err := bt.cd(&shelljob.Process{Argv: []string{dir}})
	if err != nil || code != 0 {
		t.Fatalf("cd(%q) = %d, %v; want 0, nil", dir, code, err)
	}

	real, _ := filepath.EvalSymlinks(dir)
	cwd, _ := filepath.EvalSymlinks(env.Cwd())
	if cwd != real {
		t.Fatalf("Cwd() = %q, want %q", env.Cwd(), dir)
	}

	code, err = bt.cd(&shelljob.Process{Argv: []string{"-"}})
	if err != nil || code != 0 {
		t.Fatalf("cd - = %d, %v; want 0, nil", code, err)
	}
	cwd, _ = filepath.EvalSymlinks(env.Cwd())
	realStart, _ := filepath.EvalSymlinks(start)
	if cwd != realStart {
		t.Fatalf("cd - returned to %q, want %q", env.Cwd(), start)
	}
}

func TestExitReturnsExitRequestedWithCode(t *testing.T) {
	env := shenv.New()
	bt := New(env)

	code, err := bt.exit(&shelljob.Process{Argv: []string{"7"}})
	if code != 7 {
		t.Fatalf("exit code = %d, want 7", code)
	}
	if e, ok := err.(*ExitRequested); !ok || e.Code != 7 {
		t.Fatalf("exit() error = %v, want *ExitRequested{Code: 7}", err)
	}
}

func TestExportMakesVariableVisibleInChildEnviron(t *testing.T) {
	env := shenv.New()
	bt := New(env)

	if _, err := bt.export(&shelljob.Process{Argv: []string{"FOO=bar"}}); err != nil {
		t.Fatal(err)
	}
	if !env.IsExported("FOO") {
		t.Fatalf("expected FOO exported")
	}
	v, ok := env.GetVar("FOO")
	if !ok || v != "bar" {
		t.Fatalf("GetVar(FOO) = %q, %v; want bar, true", v, ok)
	}

	if _, err := bt.unexport(&shelljob.Process{Argv: []string{"FOO"}}); err != nil {
		t.Fatal(err)
	}
	if env.IsExported("FOO") {
		t.Fatalf("expected FOO no longer exported")
	}
}

func TestAliasSetAndQuery(t *testing.T) {
	env := shenv.New()
	bt := New(env)

	if _, err := bt.alias(&shelljob.Process{Argv: []string{"ll=ls -la"}}); err != nil {
		t.Fatal(err)
	}

	out := captureOut(t, func(p *shelljob.Process) {
		p.Argv = []string{"ll"}
		bt.alias(p)
	})
	if !strings.Contains(out, "ll=") {
		t.Fatalf("alias query output = %q, want it to mention ll", out)
	}

	if _, err := bt.unalias(&shelljob.Process{Argv: []string{"ll"}}); err != nil {
		t.Fatal(err)
	}
	if _, ok := env.GetAlias("ll"); ok {
		t.Fatalf("expected alias removed")
	}
}

func TestLookupReturnsKnownBuiltinsOnly(t *testing.T) {
	bt := New(shenv.New())
	for _, name := range bt.Names() {
		if bt.Lookup(name) == nil {
			t.Fatalf("Lookup(%q) = nil for a name Names() advertises", name)
		}
	}
	if bt.Lookup("not-a-builtin") != nil {
		t.Fatalf("Lookup(unknown) should return nil")
	}
}
