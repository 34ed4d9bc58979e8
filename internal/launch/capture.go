package launch

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/lazyshell/dsh/internal/dshlog"
	"github.com/lazyshell/dsh/internal/shelljob"
)

// CaptureOutput runs job with its last process's stdout redirected to an
// internal pipe, drains that pipe, and returns the collected text and the
// job's final exit code — the primitive both command substitution
// ($(...)/`...`) and process-planned subshell capture build on (spec.md
// §4.3 step 3, §9). text is whitespace-joined for a $(...)/backtick job
// (SubshellKind == CommandSubstitution) and left newline-joined (trailing
// newline trimmed) for a bare subshell used as a value, matching spec.md
// §9's standardization of the two forms.
func (l *Launcher) CaptureOutput(job *shelljob.Job, ctx Context) (string, int, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return "", 1, &pipeError{err}
	}

	last := job.LastProcess()
	last.Stdout = w
	last.StdoutIsPipeWrite = false // CaptureOutput, not the launcher's own wiring, owns closing w
	last.CaptureOut = r

	ctx.Foreground = true
	if err := l.Launch(job, ctx); err != nil {
		w.Close()
		r.Close()
		return "", 1, err
	}
	w.Close()

	raw, _ := io.ReadAll(bufio.NewReader(r))
	r.Close()

	if err := l.Wait(job); err != nil {
		return "", job.ExitCode(), err
	}

	text := string(raw)
	if job.SubshellKind == shelljob.CommandSubstitution {
		text = strings.Join(strings.Fields(text), " ")
	} else {
		text = strings.TrimRight(text, "\n")
	}
	return text, job.ExitCode(), nil
}

// OpenProcessSubstitution starts job in the background with its stdout
// wired to a pipe, and returns the read end for the launcher's caller
// (the argv rewriter in fork.go) to install as the outer process's
// /dev/fd/<n> source (spec.md §4.3 step 4). When /dev/fd is unavailable,
// it falls back to a named FIFO and returns that path instead, for the
// caller to substitute directly into the outer process's argv — exactly
// one of the two return values is non-zero.
func (l *Launcher) OpenProcessSubstitution(job *shelljob.Job, ctx Context) (*os.File, string, error) {
	if l.devFD {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, "", &pipeError{err}
		}
		last := job.LastProcess()
		last.Stdout = w
		last.StdoutIsPipeWrite = false

		ctx.Foreground = false
		if err := l.Launch(job, ctx); err != nil {
			w.Close()
			r.Close()
			return nil, "", err
		}
		w.Close()
		return r, "", nil
	}

	path, err := l.openProcSubstFIFO(job, ctx)
	return nil, path, err
}

// openProcSubstFIFO is the /dev/fd-unavailable fallback. It hands the
// outer command the FIFO's path directly rather than a descriptor this
// process itself holds open: the writer's forkExternal blocks on its own
// O_WRONLY open of the FIFO until a reader shows up, so Launch runs on a
// goroutine here and this function returns the path immediately, letting
// the eventual reader (the outer process, once it execs and opens path
// itself) be the one that unblocks the writer — the same rendezvous two
// independent processes piped through a named pipe on a shell command
// line would go through. Because the writer's completion isn't known
// until that reader appears, any failure launching it is logged rather
// than returned synchronously.
func (l *Launcher) openProcSubstFIFO(job *shelljob.Job, ctx Context) (string, error) {
	path := os.TempDir() + "/dsh-procsubst-" + uuid.NewString()
	if err := mkfifo(path); err != nil {
		return "", err
	}

	last := job.LastProcess()
	last.FIFOPath = path

	ctx.Foreground = false
	go func() {
		if err := l.Launch(job, ctx); err != nil {
			dshlog.Debugf("launch: process substitution writer for %s: %v", path, err)
			os.Remove(path)
		}
	}()
	return path, nil
}
