package launch

import (
	"os/exec"
	"syscall"

	"github.com/lazyshell/dsh/internal/shelljob"
)

// Wait blocks until every process in job has exited or stopped, filling
// in each Process's ExitCode/Signal/State and the job's aggregate state
// (spec.md §4.5). External processes are reaped with exec.Cmd.Wait();
// builtins/user functions that ran on a goroutine are joined on their
// Done channel. jobtable builds foreground waiting and background
// polling on top of this, adding job registration and notification.
func (l *Launcher) Wait(job *shelljob.Job) error {
	var firstErr error
	for _, p := range job.Processes {
		if err := waitOne(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func waitOne(p *shelljob.Process) error {
	if p.Kind != shelljob.External {
		if p.Done != nil {
			<-p.Done
		}
		return p.Err
	}

	cmdAny := p.WaitCmd()
	cmd, ok := cmdAny.(*exec.Cmd)
	if !ok || cmd == nil {
		return nil
	}

	err := cmd.Wait()
	p.State = shelljob.Completed
	if p.PTY != nil {
		p.PTY.Close()
	}

	if err == nil {
		p.ExitCode = 0
		return nil
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return err
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		p.ExitCode = exitErr.ExitCode()
		return nil
	}
	switch {
	case status.Stopped():
		p.State = shelljob.Stopped
		p.Signal = status.StopSignal().String()
	case status.Signaled():
		p.Signal = status.Signal().String()
		p.ExitCode = 128 + int(status.Signal())
	default:
		p.ExitCode = status.ExitStatus()
	}
	return nil
}
