// Package shenv implements the shell-wide Environment (spec.md §3): shell
// variables, exported names, aliases, the PATH lookup cache, and the
// direnv root registry. It is held behind a single reader-writer lock —
// readers (dispatch, expansion) run concurrently, writers (cd/alias/
// export/PATH-change paths) are serialized — mirroring canonical-lxd's
// config.Config, which is likewise a single struct guarded for concurrent
// CLI access.
package shenv

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// cacheEntry is a PATH lookup result. A negative entry (negative==true)
// records that a name was looked up and not found, so repeated failed
// lookups don't re-walk PATH.
type cacheEntry struct {
	path     string
	negative bool
}

// DirenvState is the load state of a registered direnv root.
type DirenvState int

const (
	DirenvUnloaded DirenvState = iota
	DirenvLoaded
)

// DirenvRoot is one registered directory-environment overlay root.
type DirenvRoot struct {
	Dir   string
	State DirenvState
	// Applied holds the env var names this root set, and their prior
	// values (nil prior = var did not exist before loading), so it can
	// be reverted exactly when the cwd leaves the root.
	Applied map[string]*string
}

// ChpwdHook is invoked after a successful directory change.
type ChpwdHook func(newPath string)

// Environment is the process-wide, shared shell state described in
// spec.md §3.
type Environment struct {
	mu sync.RWMutex

	variables     map[string]string
	exportedVars  map[string]bool
	systemEnvVars map[string]string
	alias         map[string]string
	paths         []string

	commandCache     map[string]cacheEntry
	executableNames  []string
	executableFresh  bool

	direnvRoots []*DirenvRoot
	chpwdHooks  []ChpwdHook

	cwd         string
	previousDir string
}

// New captures the host environment at startup and builds PATH entries
// from it, per spec.md §3's "system_env_vars: snapshot ... at startup".
func New() *Environment {
	e := &Environment{
		variables:     map[string]string{},
		exportedVars:  map[string]bool{},
		systemEnvVars: map[string]string{},
		alias:         map[string]string{},
		commandCache:  map[string]cacheEntry{},
	}

	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			name, val := kv[:i], kv[i+1:]
			e.systemEnvVars[name] = val
			e.variables[name] = val
			e.exportedVars[name] = true
		}
	}

	if term := e.variables["TERM"]; term == "" {
		e.variables["TERM"] = "xterm-256color"
		e.exportedVars["TERM"] = true
	}

	e.paths = splitPath(e.variables["PATH"])

	if cwd, err := os.Getwd(); err == nil {
		e.cwd = cwd
	}

	return e
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, string(os.PathListSeparator))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetVar reads a shell variable (shell-local or inherited).
func (e *Environment) GetVar(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.variables[name]
	return v, ok
}

// SetVar sets a single shell variable. If it is PATH, the command cache
// and executable-name prewarm are invalidated atomically with the write.
func (e *Environment) SetVar(name, value string) {
	e.SetVars(map[string]string{name: value})
}

// SetVars sets several variables as one write, coalescing PATH
// invalidation into a single cache clear (spec.md §4.10's batching note)
// instead of one clear per variable.
func (e *Environment) SetVars(vars map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pathChanged := false
	for name, value := range vars {
		e.variables[name] = value
		if name == "PATH" {
			pathChanged = true
		}
	}
	if pathChanged {
		e.paths = splitPath(e.variables["PATH"])
		e.invalidateCacheLocked()
	}
}

// Export marks a variable as exported so it appears in child environments.
func (e *Environment) Export(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exportedVars[name] = true
}

// Unexport removes a variable from the exported set.
func (e *Environment) Unexport(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.exportedVars, name)
}

// IsExported reports whether name is in the exported set.
func (e *Environment) IsExported(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.exportedVars[name]
}

// ChildEnviron merges system_env_vars with the exported subset of
// variables, in "KEY=VALUE" form, suitable for exec.Cmd.Env. Matches
// spec.md §4.4 step 4's "merging system_env_vars with exports taken from
// variables[exported_vars]", and guarantees TERM is present.
func (e *Environment) ChildEnviron() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	merged := make(map[string]string, len(e.systemEnvVars)+len(e.exportedVars))
	for k, v := range e.systemEnvVars {
		merged[k] = v
	}
	for name := range e.exportedVars {
		if v, ok := e.variables[name]; ok {
			merged[name] = v
		}
	}
	if merged["TERM"] == "" {
		merged["TERM"] = "xterm-256color"
	}

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Alias expansion ---------------------------------------------------------

func (e *Environment) SetAlias(name, replacement string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alias[name] = replacement
}

func (e *Environment) RemoveAlias(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.alias, name)
}

func (e *Environment) GetAlias(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.alias[name]
	return v, ok
}

func (e *Environment) Aliases() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.alias))
	for k, v := range e.alias {
		out[k] = v
	}
	return out
}

// PATH cache ---------------------------------------------------------------

// Paths returns a copy of the ordered PATH directory list.
func (e *Environment) Paths() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.paths))
	copy(out, e.paths)
	return out
}

// LookupCommand resolves a bare command name against PATH, consulting and
// populating the command cache. Absolute and "./"-relative names are not
// cached (they bypass PATH search entirely, per spec.md §4.7 step 4).
func (e *Environment) LookupCommand(name string) (string, bool) {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") {
		if st, err := os.Stat(name); err == nil && !st.IsDir() && isExecutable(st.Mode()) {
			return name, true
		}
		return "", false
	}

	e.mu.RLock()
	if entry, ok := e.commandCache[name]; ok {
		e.mu.RUnlock()
		if entry.negative {
			return "", false
		}
		return entry.path, true
	}
	paths := make([]string, len(e.paths))
	copy(paths, e.paths)
	e.mu.RUnlock()

	for _, dir := range paths {
		candidate := filepath.Join(dir, name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() && isExecutable(st.Mode()) {
			e.mu.Lock()
			e.commandCache[name] = cacheEntry{path: candidate}
			e.mu.Unlock()
			return candidate, true
		}
	}

	e.mu.Lock()
	e.commandCache[name] = cacheEntry{negative: true}
	e.mu.Unlock()
	return "", false
}

func isExecutable(mode os.FileMode) bool {
	return mode&0o111 != 0
}

func (e *Environment) invalidateCacheLocked() {
	e.commandCache = map[string]cacheEntry{}
	e.executableFresh = false
}

// RefreshExecutableNames walks PATH once and records every executable
// basename, sorted, for prefix search (spec.md §3's executable_names and
// §4.10's completion-candidate supplement).
func (e *Environment) RefreshExecutableNames() {
	e.mu.RLock()
	paths := make([]string, len(e.paths))
	copy(paths, e.paths)
	e.mu.RUnlock()

	seen := map[string]bool{}
	names := make([]string, 0, 256)
	for _, dir := range paths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, ent := range entries {
			if ent.IsDir() {
				continue
			}
			info, err := ent.Info()
			if err != nil || !isExecutable(info.Mode()) {
				continue
			}
			if !seen[ent.Name()] {
				seen[ent.Name()] = true
				names = append(names, ent.Name())
			}
		}
	}
	sort.Strings(names)

	e.mu.Lock()
	e.executableNames = names
	e.executableFresh = true
	e.mu.Unlock()
}

// ExecutableNames returns the prewarmed, sorted executable-name set.
func (e *Environment) ExecutableNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.executableNames))
	copy(out, e.executableNames)
	return out
}

// CompletionCandidates returns executable basenames starting with prefix,
// the data the excluded completion UI would consume (spec.md §4.10).
func (e *Environment) CompletionCandidates(prefix string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []string
	for _, n := range e.executableNames {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}

// Directory tracking --------------------------------------------------------

// Cwd returns the shell's recorded working directory.
func (e *Environment) Cwd() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cwd
}

// PreviousDir returns the directory recorded before the last Chdir, for
// "cd -" (spec.md Testable Properties).
func (e *Environment) PreviousDir() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.previousDir
}

// Chdir changes directory, updates PWD/OLDPWD, and fires chpwd hooks
// exactly once on success (spec.md Testable Properties: "the chpwd hook
// fires once per successful change").
func (e *Environment) Chdir(dir string) error {
	if err := os.Chdir(dir); err != nil {
		return err
	}
	abs, err := os.Getwd()
	if err != nil {
		abs = dir
	}

	e.mu.Lock()
	e.previousDir = e.cwd
	e.cwd = abs
	e.variables["OLDPWD"] = e.previousDir
	e.variables["PWD"] = abs
	e.exportedVars["OLDPWD"] = true
	e.exportedVars["PWD"] = true
	hooks := make([]ChpwdHook, len(e.chpwdHooks))
	copy(hooks, e.chpwdHooks)
	e.mu.Unlock()

	for _, h := range hooks {
		h(abs)
	}
	return nil
}

// RegisterChpwdHook adds a callback invoked after every successful cd.
func (e *Environment) RegisterChpwdHook(h ChpwdHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chpwdHooks = append(e.chpwdHooks, h)
}

// direnv roots ---------------------------------------------------------------

// RegisterDirenvRoot adds dir to the direnv root registry, unloaded.
func (e *Environment) RegisterDirenvRoot(dir string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.direnvRoots {
		if r.Dir == dir {
			return
		}
	}
	e.direnvRoots = append(e.direnvRoots, &DirenvRoot{Dir: dir, State: DirenvUnloaded, Applied: map[string]*string{}})
}

// DirenvRoots returns the live slice of registered roots (direnv.Sync
// mutates them directly under its own synchronization contract with the
// caller, which always runs on the single-threaded chpwd path).
func (e *Environment) DirenvRoots() []*DirenvRoot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.direnvRoots
}

// ApplyEnv sets a var directly, recording in out the prior value for
// later reversion; used by the direnv loader.
func (e *Environment) ApplyEnv(name, value string, out map[string]*string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := out[name]; !exists {
		if prior, ok := e.variables[name]; ok {
			v := prior
			out[name] = &v
		} else {
			out[name] = nil
		}
	}
	e.variables[name] = value
	e.exportedVars[name] = true
	if name == "PATH" {
		e.paths = splitPath(value)
		e.invalidateCacheLocked()
	}
}

// RevertEnv restores variables to the values recorded in applied.
func (e *Environment) RevertEnv(applied map[string]*string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pathChanged := false
	for name, prior := range applied {
		if prior == nil {
			delete(e.variables, name)
			delete(e.exportedVars, name)
		} else {
			e.variables[name] = *prior
		}
		if name == "PATH" {
			pathChanged = true
		}
	}
	if pathChanged {
		e.paths = splitPath(e.variables["PATH"])
		e.invalidateCacheLocked()
	}
}
