package plan

import (
	"testing"

	"github.com/lazyshell/dsh/internal/builtins"
	"github.com/lazyshell/dsh/internal/dispatch"
	"github.com/lazyshell/dsh/internal/expand"
	"github.com/lazyshell/dsh/internal/grammar"
	"github.com/lazyshell/dsh/internal/launch"
	"github.com/lazyshell/dsh/internal/lispeval"
	"github.com/lazyshell/dsh/internal/shelljob"
	"github.com/lazyshell/dsh/internal/shenv"
)

func newPlanner(t *testing.T) *Planner {
	t.Helper()
	env := shenv.New()
	env.SetVar("PATH", "/bin:/usr/bin")
	l := launch.New(env, lispeval.Null{})
	disp := dispatch.New(env, builtins.New(env), lispeval.Null{}, nil)
	return New(env, disp, l, expand.Options{}, launch.Context{})
}

func mustParse(t *testing.T, line string) *grammar.Commands {
	t.Helper()
	tree, err := grammar.Parse(line)
	if err != nil {
		t.Fatalf("grammar.Parse(%q): %v", line, err)
	}
	return tree
}

func TestPlanResolvesExternalCommand(t *testing.T) {
	pl := newPlanner(t)
	list, err := pl.Plan(mustParse(t, "/bin/echo hello"))
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(list.Jobs))
	}
	job := list.Jobs[0]
	if len(job.Processes) != 1 {
		t.Fatalf("got %d processes, want 1", len(job.Processes))
	}
	p := job.Processes[0]
	if p.Kind != shelljob.External || p.Cmd != "/bin/echo" {
		t.Fatalf("process = %+v, want External /bin/echo", p)
	}
	if len(p.Argv) != 1 || p.Argv[0] != "hello" {
		t.Fatalf("Argv = %v, want [hello]", p.Argv)
	}
}

func TestPlanBuildsMultiStagePipeline(t *testing.T) {
	pl := newPlanner(t)
	list, err := pl.Plan(mustParse(t, "/bin/echo hi | /bin/cat"))
	if err != nil {
		t.Fatal(err)
	}
	job := list.Jobs[0]
	if len(job.Processes) != 2 {
		t.Fatalf("got %d processes, want 2", len(job.Processes))
	}
	if job.Processes[0].Next != job.Processes[1] {
		t.Fatalf("expected pipeline Next link between stages")
	}
}

func TestPlanAssignsListOperators(t *testing.T) {
	pl := newPlanner(t)
	list, err := pl.Plan(mustParse(t, "/bin/echo a && /bin/echo b || /bin/echo c"))
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(list.Jobs))
	}
	if list.Jobs[0].ListOp != shelljob.Seq {
		t.Fatalf("first job ListOp = %v, want Seq", list.Jobs[0].ListOp)
	}
	if list.Jobs[1].ListOp != shelljob.And {
		t.Fatalf("second job ListOp = %v, want And", list.Jobs[1].ListOp)
	}
	if list.Jobs[2].ListOp != shelljob.Or {
		t.Fatalf("third job ListOp = %v, want Or", list.Jobs[2].ListOp)
	}
}

func TestPlanMarksBackgroundJob(t *testing.T) {
	pl := newPlanner(t)
	list, err := pl.Plan(mustParse(t, "/bin/echo hi &"))
	if err != nil {
		t.Fatal(err)
	}
	if list.Jobs[0].Foreground {
		t.Fatalf("expected job to be background")
	}
}

func TestPlanCaptureSuffixSetsJobCaptureOutput(t *testing.T) {
	pl := newPlanner(t)
	list, err := pl.Plan(mustParse(t, "/bin/echo hi |%"))
	if err != nil {
		t.Fatal(err)
	}
	if !list.Jobs[0].CaptureOutput {
		t.Fatalf("expected CaptureOutput to be set by the |%% suffix")
	}
}

func TestPlanWithoutCaptureSuffixLeavesCaptureOutputFalse(t *testing.T) {
	pl := newPlanner(t)
	list, err := pl.Plan(mustParse(t, "/bin/echo hi"))
	if err != nil {
		t.Fatal(err)
	}
	if list.Jobs[0].CaptureOutput {
		t.Fatalf("expected CaptureOutput to be false without a |%% suffix")
	}
}

func TestPlanCommandSubstitutionWhitespaceSplits(t *testing.T) {
	pl := newPlanner(t)
	list, err := pl.Plan(mustParse(t, `/bin/echo $(/bin/echo one   two)`))
	if err != nil {
		t.Fatal(err)
	}
	p := list.Jobs[0].Processes[0]
	if len(p.Argv) != 2 || p.Argv[0] != "one" || p.Argv[1] != "two" {
		t.Fatalf("Argv = %v, want [one two] (command substitution is whitespace-split)", p.Argv)
	}
}

func TestPlanUnknownCommandReturnsResolutionError(t *testing.T) {
	pl := newPlanner(t)
	_, err := pl.Plan(mustParse(t, "this-command-does-not-exist-anywhere"))
	if err == nil {
		t.Fatalf("expected an error resolving an unknown command")
	}
}
