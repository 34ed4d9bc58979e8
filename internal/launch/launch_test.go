package launch

import (
	"io"
	"os"
	"testing"

	"github.com/lazyshell/dsh/internal/lispeval"
	"github.com/lazyshell/dsh/internal/shelljob"
	"github.com/lazyshell/dsh/internal/shenv"
)

func TestWirePipesConnectsStages(t *testing.T) {
	l := New(shenv.New(), lispeval.Null{})
	job := shelljob.NewJob("a | b", []*shelljob.Process{{Cmd: "a"}, {Cmd: "b"}})

	if err := l.wirePipes(job); err != nil {
		t.Fatal(err)
	}
	defer l.closeParentPipeEnds(job)

	if job.Processes[0].Stdout == nil || job.Processes[1].Stdin == nil {
		t.Fatal("expected a single pipe wired between the two stages")
	}

	go func() {
		io.WriteString(job.Processes[0].Stdout, "hi")
		job.Processes[0].Stdout.Close()
	}()
	buf := make([]byte, 2)
	if _, err := io.ReadFull(job.Processes[1].Stdin, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hi" {
		t.Fatalf("got %q", buf)
	}
}

func TestApplyRedirectionsOpensOutputFile(t *testing.T) {
	l := New(shenv.New(), lispeval.Null{})
	dir := t.TempDir()
	target := dir + "/out.txt"

	job := shelljob.NewJob("a", []*shelljob.Process{{
		Cmd:       "a",
		Redirects: []*shelljob.Redirect{{Op: ">", Target: target}},
	}})

	if err := l.applyRedirections(job); err != nil {
		t.Fatal(err)
	}
	defer job.Processes[0].Stdout.Close()

	if _, err := job.Processes[0].Stdout.WriteString("hello"); err != nil {
		t.Fatal(err)
	}
	job.Processes[0].Stdout.Sync()

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("file contents = %q, want hello", got)
	}
}

func TestRunInProcessBuiltinSynchronous(t *testing.T) {
	l := New(shenv.New(), lispeval.Null{})
	job := shelljob.NewJob("mybuiltin", []*shelljob.Process{{
		Cmd:  "mybuiltin",
		Kind: shelljob.Builtin,
		BuiltinFn: func(p *shelljob.Process) (int, error) {
			return 7, nil
		},
	}})

	if err := l.runInProcess(job, job.Processes[0], false); err != nil {
		t.Fatal(err)
	}
	if job.Processes[0].State != shelljob.Completed {
		t.Fatalf("expected Completed, got %v", job.Processes[0].State)
	}
	if job.Processes[0].ExitCode != 7 {
		t.Fatalf("ExitCode = %d, want 7", job.Processes[0].ExitCode)
	}
}

func TestRunInProcessBuiltinInPipelineUsesDoneChannel(t *testing.T) {
	l := New(shenv.New(), lispeval.Null{})
	p := &shelljob.Process{
		Cmd:  "mybuiltin",
		Kind: shelljob.Builtin,
		BuiltinFn: func(p *shelljob.Process) (int, error) {
			return 3, nil
		},
	}
	job := shelljob.NewJob("mybuiltin | cat", []*shelljob.Process{p, {Cmd: "cat"}})

	if err := l.runInProcess(job, p, true); err != nil {
		t.Fatal(err)
	}
	<-p.Done
	if p.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", p.ExitCode)
	}
}
