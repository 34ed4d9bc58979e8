// Package direnv implements spec.md §4.10: per-directory environment
// overlays loaded from a .env/.envrc file at a registered root and
// applied/reverted as the shell's cwd enters or leaves that root.
package direnv

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/lazyshell/dsh/internal/dshlog"
	"github.com/lazyshell/dsh/internal/shenv"
)

// fileNames are checked in order at a registered root; the first one
// found is loaded (spec.md §4.10: ".env or .envrc").
var fileNames = []string{".env", ".envrc"}

// Sync reapplies every registered direnv root's overlay against newPath:
// roots newPath is under get loaded (if not already), roots it has left
// get reverted, wired to fire on every chpwd (spec.md §4.10's "a root's
// overlay is active exactly while cwd is at or below it").
func Sync(env *shenv.Environment, newPath string) {
	for _, root := range env.DirenvRoots() {
		under := isUnder(newPath, root.Dir)
		switch {
		case under && root.State == shenv.DirenvUnloaded:
			load(env, root)
		case !under && root.State == shenv.DirenvLoaded:
			unload(env, root)
		}
	}
}

func isUnder(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

func load(env *shenv.Environment, root *shenv.DirenvRoot) {
	var path string
	for _, name := range fileNames {
		candidate := filepath.Join(root.Dir, name)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
			break
		}
	}
	if path == "" {
		root.State = shenv.DirenvLoaded
		return
	}

	f, err := os.Open(path)
	if err != nil {
		dshlog.Debugf("direnv: open %s: %v", path, err)
		root.State = shenv.DirenvLoaded
		return
	}
	defer f.Close()

	applied := root.Applied
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		applyLine(env, sc.Text(), applied)
	}
	root.State = shenv.DirenvLoaded
}

// applyLine parses one .env/.envrc line. Supported forms (spec.md
// §4.10): "KEY=VALUE", "EXPORT KEY=VALUE" (both exported — every shell
// variable this loader sets is exported, matching spec.md's framing of
// direnv overlays as affecting the child environment), and
// "PATH_ADD <dir>" which prepends to PATH.
func applyLine(env *shenv.Environment, line string, applied map[string]*string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	fields := strings.Fields(line)
	if len(fields) >= 2 && strings.EqualFold(fields[0], "PATH_ADD") {
		dir, err := shellquote.Split(strings.Join(fields[1:], " "))
		if err != nil || len(dir) == 0 {
			return
		}
		current, _ := env.GetVar("PATH")
		env.ApplyEnv("PATH", dir[0]+string(os.PathListSeparator)+current, applied)
		return
	}

	rest := line
	if len(fields) >= 1 && strings.EqualFold(fields[0], "EXPORT") {
		rest = strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	}

	name, value, ok := strings.Cut(rest, "=")
	if !ok {
		return
	}
	name = strings.TrimSpace(name)
	words, err := shellquote.Split(value)
	if err != nil {
		return
	}
	env.ApplyEnv(name, strings.Join(words, " "), applied)
}

func unload(env *shenv.Environment, root *shenv.DirenvRoot) {
	env.RevertEnv(root.Applied)
	root.Applied = map[string]*string{}
	root.State = shenv.DirenvUnloaded
}
