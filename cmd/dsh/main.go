// Command dsh is the CLI entrypoint for the execution core: interactive
// sessions, `-c`/`-l`/`--notebook` one-shot modes, and the `import`
// history-conversion subcommand (spec.md §6). It wires shenv, launch,
// jobtable, dispatch, hooks, direnv, and config together; the line
// editor, completion UI, and embedded Lisp interpreter itself are
// external collaborators this command never implements.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/lazyshell/dsh/internal/builtins"
	"github.com/lazyshell/dsh/internal/config"
	"github.com/lazyshell/dsh/internal/direnv"
	"github.com/lazyshell/dsh/internal/dshlog"
	"github.com/lazyshell/dsh/internal/lispeval"
	"github.com/lazyshell/dsh/internal/shellrun"
)

// cmdGlobal carries the flags and shared state every dsh mode reads,
// following canonical-lxd's lxc/main.go cmdGlobal pattern.
type cmdGlobal struct {
	cmd *cobra.Command
	cfg *config.Config

	flagCommand  string
	flagScript   string
	flagNotebook string
	flagDebug    bool
	flagVerbose  bool

	exitCode int
}

func main() {
	os.Exit(run())
}

func run() int {
	globalCmd := &cmdGlobal{}

	app := &cobra.Command{
		Use:           "dsh",
		Short:         "A POSIX-style interactive shell",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.PersistentFlags().BoolVar(&globalCmd.flagDebug, "debug", false, "Show all debug messages")
	app.PersistentFlags().BoolVarP(&globalCmd.flagVerbose, "verbose", "v", false, "Show all information messages")
	app.Flags().StringVarP(&globalCmd.flagCommand, "command", "c", "", "Execute one command line non-interactively and exit with its code")
	app.Flags().StringVarP(&globalCmd.flagScript, "lisp", "l", "", "Evaluate a Lisp script with the embedded evaluator and exit")
	app.Flags().StringVar(&globalCmd.flagNotebook, "notebook", "", "Open a notebook session (external to this core)")

	app.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		dshlog.SetVerbose(globalCmd.flagVerbose)
		dshlog.SetDebug(globalCmd.flagDebug)
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		globalCmd.cfg = cfg
		return nil
	}

	app.RunE = func(cmd *cobra.Command, args []string) error {
		globalCmd.cmd = cmd
		return globalCmd.runDefault()
	}

	importCmd := &cmdImport{global: globalCmd}
	app.AddCommand(importCmd.command())

	if err := app.Execute(); err != nil {
		dshlog.ReportFailure("dsh", err.Error(), nil)
		return 1
	}
	return globalCmd.exitCode
}

// runDefault chooses among -c, -l, --notebook, and the read-eval loop
// per spec.md §6, in that priority order.
func (g *cmdGlobal) runDefault() error {
	lisp := lispeval.Evaluator(lispeval.Null{})

	switch {
	case g.flagCommand != "":
		return g.runOneShot(lisp, g.flagCommand)
	case g.flagScript != "":
		return g.runLispScript(lisp, g.flagScript)
	case g.flagNotebook != "":
		return g.runNotebook(g.flagNotebook)
	default:
		return g.runLoop(lisp)
	}
}

// setExit records the process exit code a run mode produced; cobra's
// RunE contract only carries an error, not a specific exit code, so the
// code threads back through this field rather than scattered os.Exit
// calls.
func (g *cmdGlobal) setExit(code int) { g.exitCode = code }

// runOneShot implements `-c <string>`: execute one command line
// non-interactively and exit with its code (spec.md §6).
func (g *cmdGlobal) runOneShot(lisp lispeval.Evaluator, line string) error {
	sh := shellrun.New(false, g.cfg.StrictGlob, lisp)
	defer sh.Shutdown()

	code, _ := sh.RunLine(line)
	g.setExit(code)
	return nil
}

// runLispScript implements `-l <script>`: hand the file's contents to
// the embedded evaluator and exit with its result code.
func (g *cmdGlobal) runLispScript(lisp lispeval.Evaluator, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("dsh: %s: %w", path, err)
	}
	code, err := lisp.EvalScript(string(data))
	if err != nil {
		dshlog.ReportFailure(path, err.Error(), nil)
	}
	g.setExit(code)
	return nil
}

// runNotebook implements `--notebook <file>`: opening the notebook UI
// itself is an external collaborator (spec.md §1's non-goals), so the
// core's only responsibility is handing the path off and reporting that
// no notebook front end is embedded in this binary.
func (g *cmdGlobal) runNotebook(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("dsh: %s: %w", path, err)
	}
	dshlog.Infof("notebook session requested for %s; no notebook front end is embedded in this binary", path)
	g.setExit(0)
	return nil
}

// runLoop is the read-eval loop for interactive and piped-script
// invocations alike. A real line editor, prompt rendering, and
// completion UI are external collaborators (spec.md §1); this loop is
// the minimal stand-in that reads one line at a time and dispatches it
// to shellrun, which is the actual seam those front ends would call
// through in a complete product.
func (g *cmdGlobal) runLoop(lisp lispeval.Evaluator) error {
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())

	sh := shellrun.New(interactive, g.cfg.StrictGlob, lisp)
	defer sh.Shutdown()

	if g.cfg.DirenvEnabled {
		sh.Env.RegisterDirenvRoot(sh.Env.Cwd())
		direnv.Sync(sh.Env, sh.Env.Cwd())
		sh.Env.RegisterChpwdHook(func(newPath string) { direnv.Sync(sh.Env, newPath) })
	}

	reader := bufio.NewScanner(os.Stdin)
	reader.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	code := 0
	for {
		if interactive {
			sh.Hooks.PrePrompt()
			for _, n := range sh.PollBackground() {
				fmt.Fprintf(os.Stderr, "[%d]  %s\t%s\n", n.JobID, n.Note, n.Cmd)
			}
			fmt.Fprint(os.Stderr, "$ ")
		}

		if !reader.Scan() {
			break
		}
		line := reader.Text()
		if line == "" {
			continue
		}

		var runErr error
		code, runErr = sh.RunLine(line)
		if _, exited := runErr.(*builtins.ExitRequested); exited {
			break
		}
	}
	if err := reader.Err(); err != nil {
		dshlog.Errorf("dsh: read error: %v", err)
	}

	g.setExit(code)
	return nil
}
