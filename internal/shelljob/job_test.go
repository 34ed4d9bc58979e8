package shelljob

import "testing"

func TestJobStateDerivation(t *testing.T) {
	j := NewJob("a | b", []*Process{{State: Completed}, {State: Completed}})
	if got := j.State(); got != Completed {
		t.Fatalf("State() = %v, want Completed", got)
	}

	j = NewJob("a | b", []*Process{{State: Completed}, {State: Stopped}})
	if got := j.State(); got != Stopped {
		t.Fatalf("State() = %v, want Stopped", got)
	}

	j = NewJob("a | b", []*Process{{State: Running}, {State: Stopped}})
	if got := j.State(); got != Running {
		t.Fatalf("State() = %v, want Running", got)
	}
}

func TestJobExitCodeIsLastProcess(t *testing.T) {
	j := NewJob("a | b", []*Process{
		{State: Completed, ExitCode: 1},
		{State: Completed, ExitCode: 0},
	})
	if got := j.ExitCode(); got != 0 {
		t.Fatalf("ExitCode() = %d, want 0 (last process wins)", got)
	}
}

func TestNewJobLinksNext(t *testing.T) {
	p1, p2, p3 := &Process{Cmd: "a"}, &Process{Cmd: "b"}, &Process{Cmd: "c"}
	j := NewJob("a | b | c", []*Process{p1, p2, p3})
	if j.Processes[0].Next != p2 || j.Processes[1].Next != p3 {
		t.Fatalf("pipeline Next links not wired correctly")
	}
	if j.Processes[2].Next != nil {
		t.Fatalf("last process must have nil Next")
	}
}
