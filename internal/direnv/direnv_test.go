package direnv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lazyshell/dsh/internal/shenv"
)

func TestSyncLoadsOverlayOnEnterAndRevertsOnLeave(t *testing.T) {
	root := t.TempDir()
	envFile := "FOO=bar\nEXPORT BAZ=qux\nPATH_ADD " + filepath.Join(root, "bin") + "\n"
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte(envFile), 0o644); err != nil {
		t.Fatal(err)
	}

	env := shenv.New()
	env.SetVar("PATH", "/usr/bin")
	env.RegisterDirenvRoot(root)

	Sync(env, filepath.Join(root, "sub"))

	if v, ok := env.GetVar("FOO"); !ok || v != "bar" {
		t.Fatalf("FOO = %q, %v; want bar, true", v, ok)
	}
	if v, ok := env.GetVar("BAZ"); !ok || v != "qux" {
		t.Fatalf("BAZ = %q, %v; want qux, true", v, ok)
	}
	if !env.IsExported("FOO") {
		t.Fatalf("FOO should be exported by a direnv overlay")
	}
	path, _ := env.GetVar("PATH")
	if want := filepath.Join(root, "bin") + string(os.PathListSeparator) + "/usr/bin"; path != want {
		t.Fatalf("PATH = %q, want %q", path, want)
	}

	Sync(env, t.TempDir())

	if v, ok := env.GetVar("FOO"); ok {
		t.Fatalf("FOO = %q after leaving root, want it reverted", v)
	}
	if path, _ := env.GetVar("PATH"); path != "/usr/bin" {
		t.Fatalf("PATH = %q after leaving root, want /usr/bin", path)
	}
}

func TestSyncIgnoresCommentsAndBlankLines(t *testing.T) {
	root := t.TempDir()
	envFile := "# a comment\n\nFOO=bar\n"
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte(envFile), 0o644); err != nil {
		t.Fatal(err)
	}

	env := shenv.New()
	env.RegisterDirenvRoot(root)
	Sync(env, root)

	if v, ok := env.GetVar("FOO"); !ok || v != "bar" {
		t.Fatalf("FOO = %q, %v; want bar, true", v, ok)
	}
}
