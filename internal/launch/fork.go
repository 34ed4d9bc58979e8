package launch

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/creack/pty"

	"github.com/lazyshell/dsh/internal/dshlog"
	"github.com/lazyshell/dsh/internal/shellerr"
	"github.com/lazyshell/dsh/internal/shelljob"
)

// forkExternal starts one external process of job's pipeline, per
// spec.md §4.4 steps 2-4: assign it to the job's process group (creating
// the group at the first process), optionally make that group the
// terminal's foreground group, merge the environment, and exec.
//
// Setpgid/Pgid/Foreground/Setctty/Ctty are set on SysProcAttr rather than
// called after fork, because os/exec performs fork and exec as one
// syscall from Go's perspective: there is no window to run Go code
// between them, and the kernel applies these atomically with the exec
// itself, which is what makes the handoff race-free (spec.md §4.4,
// §8's "no window where the terminal belongs to neither").
func (l *Launcher) forkExternal(job *shelljob.Job, p *shelljob.Process, isFirst bool, pgid int, ctx Context) (int, error) {
	cmd := exec.Command(p.Cmd, p.Argv...)
	cmd.Env = l.env.ChildEnviron()
	cmd.Dir = l.env.Cwd()

	if err := l.installProcSubst(cmd, p); err != nil {
		return 0, &shellerr.LaunchError{Cmd: p.Cmd, Err: err}
	}

	attr := &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    pgid, // 0 for the first process: kernel assigns pid as pgid
	}
	if ctx.Interactive && ctx.Foreground && job.SubshellKind == shelljob.None {
		attr.Foreground = true
		if ctx.Term != nil {
			attr.Ctty = ctx.Term.TTYFd
			attr.Setctty = true
		}
	}
	cmd.SysProcAttr = attr

	if ctx.PTY && isFirst {
		return l.startWithPTY(cmd, p)
	}

	if p.FIFOPath != "" {
		// Blocks until OpenProcessSubstitution's reader opens the other
		// end; the caller runs that open on its own goroutine so the two
		// sides rendezvous instead of deadlocking each other.
		w, err := os.OpenFile(p.FIFOPath, os.O_WRONLY, 0)
		if err != nil {
			return 0, &shellerr.LaunchError{Cmd: p.Cmd, Err: err}
		}
		p.Stdout = w
	}

	cmd.Stdin = fileOrInherit(p.Stdin, os.Stdin)
	cmd.Stdout = fileOrInherit(p.Stdout, os.Stdout)
	cmd.Stderr = fileOrInherit(p.Stderr, os.Stderr)

	if err := cmd.Start(); err != nil {
		return 0, &shellerr.LaunchError{Cmd: p.Cmd, Err: err}
	}

	p.SetWaitCmd(cmd)
	return cmd.Process.Pid, nil
}

func fileOrInherit(f *os.File, fallback *os.File) *os.File {
	if f != nil {
		return f
	}
	return fallback
}

// startWithPTY runs cmd attached to a new pseudo-terminal, used for the
// first stage of an interactive job when the caller asked for a PTY
// (spec.md §4.4's PTY branch, the mechanism canonical-lxd's
// lxc/exec_unix.go and lxd-agent/exec.go use to give a remote exec
// session a real terminal rather than plain pipes).
func (l *Launcher) startWithPTY(cmd *exec.Cmd, p *shelljob.Process) (int, error) {
	// pty.Start makes the child a session leader (Setsid) with the PTY
	// slave as its controlling terminal (Setctty); a session leader cannot
	// setpgid, so the process-group and foreground settings are dropped.
	cmd.SysProcAttr.Setpgid = false
	cmd.SysProcAttr.Pgid = 0
	cmd.SysProcAttr.Foreground = false
	cmd.SysProcAttr.Ctty = 0
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return 0, &shellerr.LaunchError{Cmd: p.Cmd, Err: err}
	}
	p.PTY = ptmx
	p.SetWaitCmd(cmd)
	dshlog.Debugf("launch: %s started under pty, fd=%v", p.Cmd, ptmx.Fd())
	return cmd.Process.Pid, nil
}

// installProcSubst wires each <(...) process-substitution pipe the
// planner opened onto cmd.ExtraFiles, and rewrites the corresponding
// argv placeholder to /dev/fd/<n> (spec.md §4.3 step 4, §4.4's
// "/dev/fd plumbing"). Go guarantees the i-th entry of ExtraFiles lands
// at fd 3+i in the child, which is what makes the rewrite predictable
// without inspecting the child's fd table.
//
// p.ProcSubstFiles only ever holds entries the planner opened while
// l.devFD was true (the /dev/fd-unavailable fallback resolves its
// substitutions to a literal FIFO path at plan time instead, see
// internal/plan's resolveProcSubstMarkers), so the devFD check below is
// an invariant guard, not a live fallback path.
func (l *Launcher) installProcSubst(cmd *exec.Cmd, p *shelljob.Process) error {
	if len(p.ProcSubstFiles) == 0 {
		return nil
	}
	if !l.devFD {
		return errDevFDUnavailable{}
	}
	base := len(cmd.ExtraFiles) + 3
	for i, f := range p.ProcSubstFiles {
		cmd.ExtraFiles = append(cmd.ExtraFiles, f)
		fdPath := devFDPath(base + i)
		if i < len(p.ArgPlaceholders) {
			// p.ArgPlaceholders indexes p.Argv (arguments after the
			// command name); cmd.Args additionally carries the program
			// name at index 0, so the corresponding cmd.Args slot is one
			// higher.
			idx := p.ArgPlaceholders[i] + 1
			if idx >= 0 && idx < len(cmd.Args) {
				cmd.Args[idx] = fdPath
			}
		}
	}
	return nil
}

func devFDPath(fd int) string {
	return "/dev/fd/" + strconv.Itoa(fd)
}

type errDevFDUnavailable struct{}

func (errDevFDUnavailable) Error() string { return "/dev/fd is unavailable on this system" }
