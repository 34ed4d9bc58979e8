// Package jobtable implements spec.md §4.5: the job table, the
// background SIGCHLD-driven reaper, and foreground/background job
// transitions. It builds on internal/launch's Launch/Wait primitives,
// adding registration, notification, and the tcsetpgrp handoff for
// bringing a job to or from the foreground.
package jobtable

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/lazyshell/dsh/internal/dshlog"
	"github.com/lazyshell/dsh/internal/launch"
	"github.com/lazyshell/dsh/internal/shelljob"
	"github.com/lazyshell/dsh/internal/termctl"
)

// Notification describes a background job transition the shell reports
// to the user at the next prompt (spec.md §4.5's "double-buffered
// background notifications" — collected as they occur, drained once per
// prompt so they never interleave with the line currently being typed).
type Notification struct {
	JobID int
	Cmd   string
	State shelljob.State
	Note  string // "Done", "Terminated(signal)", "Stopped(signal)"
}

// Table tracks every job the shell has launched, including completed
// ones until they are reaped/reported, per spec.md §4.5.
type Table struct {
	mu      sync.Mutex
	jobs    map[int]*shelljob.Job
	nextID  int
	pending []Notification

	launcher *launch.Launcher
	term     *termctl.Controller

	sigchld chan os.Signal
	stop    chan struct{}
}

// New creates an empty Table and starts its background reaper goroutine.
func New(l *launch.Launcher, term *termctl.Controller) *Table {
	t := &Table{
		jobs:     map[int]*shelljob.Job{},
		nextID:   1,
		launcher: l,
		term:     term,
		sigchld:  make(chan os.Signal, 16),
		stop:     make(chan struct{}),
	}
	signal.Notify(t.sigchld, unix.SIGCHLD)
	go t.reapLoop()
	return t
}

// Close stops the reaper goroutine.
func (t *Table) Close() {
	close(t.stop)
	signal.Stop(t.sigchld)
}

// Register assigns job an id and adds it to the table (spec.md §4.5
// step 1, run immediately after Launch starts the job's processes).
func (t *Table) Register(job *shelljob.Job) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	job.ID = t.nextID
	t.nextID++
	t.jobs[job.ID] = job
	return job.ID
}

// WaitForeground blocks until job leaves the Running state, transferring
// the controlling terminal to it first and restoring the shell's own
// foreground status once the job stops or completes (spec.md §4.5's
// foreground-wait, §4.6's terminal handoff).
func (t *Table) WaitForeground(job *shelljob.Job) error {
	if t.term != nil {
		if err := t.term.TransferForeground(job.Pgid); err != nil {
			dshlog.Debugf("jobtable: transfer foreground failed: %v", err)
		}
	}

	err := t.launcher.Wait(job)

	if t.term != nil {
		if ferr := t.term.RestoreShellForeground(); ferr != nil {
			dshlog.Debugf("jobtable: restore shell foreground failed: %v", ferr)
		}
	}

	if job.State() == shelljob.Completed {
		t.mu.Lock()
		delete(t.jobs, job.ID)
		t.mu.Unlock()
	}
	return err
}

// PollBackground returns and clears notifications queued by the reaper
// since the last call (spec.md §4.5: drained once per prompt cycle).
func (t *Table) PollBackground() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.pending
	t.pending = nil
	return out
}

// BringToForeground resumes a stopped job in the foreground: sends
// SIGCONT to its process group, transfers the terminal, and waits
// (spec.md §4.5's `fg` operation).
func (t *Table) BringToForeground(job *shelljob.Job) error {
	if err := unix.Kill(-job.Pgid, unix.SIGCONT); err != nil {
		return fmt.Errorf("dsh: fg: %w", err)
	}
	for _, p := range job.Processes {
		if p.State == shelljob.Stopped {
			p.State = shelljob.Running
		}
	}
	return t.WaitForeground(job)
}

// Continue resumes a stopped job in the background (spec.md §4.5's `bg`
// operation): SIGCONT without reclaiming the terminal.
func (t *Table) Continue(job *shelljob.Job) error {
	if err := unix.Kill(-job.Pgid, unix.SIGCONT); err != nil {
		return fmt.Errorf("dsh: bg: %w", err)
	}
	for _, p := range job.Processes {
		if p.State == shelljob.Stopped {
			p.State = shelljob.Running
		}
	}
	return nil
}

// KillAllWait sends SIGHUP to every tracked job's process group and
// waits for each of them to exit, used on shell exit (spec.md §4.5's
// "on shell exit, outstanding background jobs are signaled and reaped
// rather than left orphaned").
func (t *Table) KillAllWait() {
	t.mu.Lock()
	jobs := make([]*shelljob.Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		jobs = append(jobs, j)
	}
	t.mu.Unlock()

	for _, j := range jobs {
		if j.Pgid != 0 {
			unix.Kill(-j.Pgid, unix.SIGHUP)
		}
	}
	for _, j := range jobs {
		t.launcher.Wait(j)
	}
}

// Jobs returns a snapshot of the currently tracked jobs, ordered by id,
// for the `jobs` builtin.
func (t *Table) Jobs() []*shelljob.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*shelljob.Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// reapLoop drains SIGCHLD notifications and polls every background job
// for state changes without blocking (spec.md §4.5's non-blocking
// update(), driven here by the kernel's SIGCHLD rather than an idle-tick
// poll, since Go delivers SIGCHLD through the signal package like any
// other signal).
func (t *Table) reapLoop() {
	for {
		select {
		case <-t.stop:
			return
		case <-t.sigchld:
			t.pollOnce()
		}
	}
}

func (t *Table) pollOnce() {
	t.mu.Lock()
	jobs := make([]*shelljob.Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		if !j.Foreground {
			jobs = append(jobs, j)
		}
	}
	t.mu.Unlock()

	for _, j := range jobs {
		before := j.State()
		reapNonBlocking(j)
		after := j.State()
		if after == before {
			continue
		}
		note := ""
		switch after {
		case shelljob.Completed:
			if j.Signal() != "" {
				note = fmt.Sprintf("Terminated(%s)", j.Signal())
			} else {
				note = "Done"
			}
		case shelljob.Stopped:
			note = fmt.Sprintf("Stopped(%s)", j.LastProcess().Signal)
		}
		if note == "" {
			continue
		}
		t.mu.Lock()
		t.pending = append(t.pending, Notification{JobID: j.ID, Cmd: j.Cmd, State: after, Note: note})
		if after == shelljob.Completed {
			delete(t.jobs, j.ID)
		}
		t.mu.Unlock()
	}
}

// reapNonBlocking polls each of the job's external processes with
// WNOHANG, the non-blocking counterpart to launch.Launcher.Wait used for
// background jobs so the reaper never stalls on a job the user hasn't
// asked to wait for.
func reapNonBlocking(j *shelljob.Job) {
	for _, p := range j.Processes {
		if p.Kind != shelljob.External || p.State == shelljob.Completed {
			continue
		}
		var status unix.WaitStatus
		pid, err := unix.Wait4(p.Pid, &status, unix.WNOHANG, nil)
		if err != nil || pid == 0 {
			continue
		}
		switch {
		case status.Stopped():
			p.State = shelljob.Stopped
			p.Signal = status.StopSignal().String()
		case status.Signaled():
			p.State = shelljob.Completed
			p.Signal = status.Signal().String()
			p.ExitCode = 128 + int(status.Signal())
		case status.Exited():
			p.State = shelljob.Completed
			p.ExitCode = status.ExitStatus()
		}
	}
}
