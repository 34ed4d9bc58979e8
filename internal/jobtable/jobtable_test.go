package jobtable

import (
	"testing"
	"time"

	"github.com/lazyshell/dsh/internal/launch"
	"github.com/lazyshell/dsh/internal/lispeval"
	"github.com/lazyshell/dsh/internal/shelljob"
	"github.com/lazyshell/dsh/internal/shenv"
)

func newExternalJob(cmd string, argv ...string) *shelljob.Job {
	p := &shelljob.Process{Cmd: cmd, Argv: argv, Kind: shelljob.External}
	return shelljob.NewJob(cmd, []*shelljob.Process{p})
}

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	env := shenv.New()
	l := launch.New(env, lispeval.Null{})
	tbl := New(l, nil)
	defer tbl.Close()

	j1 := newExternalJob("/bin/true")
	j2 := newExternalJob("/bin/true")

	id1 := tbl.Register(j1)
	id2 := tbl.Register(j2)
	if id2 != id1+1 {
		t.Fatalf("Register() ids = %d, %d; want sequential", id1, id2)
	}
}

func TestWaitForegroundReturnsExitCode(t *testing.T) {
	env := shenv.New()
	l := launch.New(env, lispeval.Null{})
	tbl := New(l, nil)
	defer tbl.Close()

	job := newExternalJob("/bin/sh", "-c", "exit 3")
	job.Foreground = true
	if err := l.Launch(job, launch.Context{}); err != nil {
		t.Fatal(err)
	}
	tbl.Register(job)

	if err := tbl.WaitForeground(job); err != nil {
		t.Fatal(err)
	}
	if job.ExitCode() != 3 {
		t.Fatalf("ExitCode() = %d, want 3", job.ExitCode())
	}
	if job.State() != shelljob.Completed {
		t.Fatalf("State() = %v, want Completed", job.State())
	}
}

func TestPollBackgroundReportsCompletion(t *testing.T) {
	env := shenv.New()
	l := launch.New(env, lispeval.Null{})
	tbl := New(l, nil)
	defer tbl.Close()

	job := newExternalJob("/bin/true")
	job.Foreground = false
	if err := l.Launch(job, launch.Context{}); err != nil {
		t.Fatal(err)
	}
	tbl.Register(job)

	deadline := time.Now().Add(2 * time.Second)
	var notes []Notification
	for time.Now().Before(deadline) {
		notes = tbl.PollBackground()
		if len(notes) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(notes) != 1 || notes[0].JobID != job.ID {
		t.Fatalf("PollBackground() = %+v, want one notification for job %d", notes, job.ID)
	}
}
