package hooks

import (
	"errors"
	"testing"

	"github.com/lazyshell/dsh/internal/shenv"
)

// recordingEvaluator implements lispeval.Evaluator, recording every
// CallHook invocation instead of actually evaluating anything.
type recordingEvaluator struct {
	calls [][]string
	fail  string
}

func (r *recordingEvaluator) EvalString(name string, argv []string) (string, int, error) {
	return "", 1, errors.New("not implemented")
}
func (r *recordingEvaluator) IsExported(name string) bool { return false }
func (r *recordingEvaluator) EvalScript(source string) (int, error) { return 1, errors.New("not implemented") }

func (r *recordingEvaluator) CallHook(hook string, args ...string) error {
	r.calls = append(r.calls, append([]string{hook}, args...))
	if hook == r.fail {
		return errors.New("hook failed")
	}
	return nil
}

func TestPreExecAndPostExecFireWithArgs(t *testing.T) {
	ev := &recordingEvaluator{}
	r := New(ev)

	r.PreExec("echo hi")
	r.PostExec("echo hi", 2)

	if len(ev.calls) != 2 {
		t.Fatalf("got %d calls, want 2: %v", len(ev.calls), ev.calls)
	}
	if want := []string{"pre-exec", "echo hi"}; !equal(ev.calls[0], want) {
		t.Fatalf("calls[0] = %v, want %v", ev.calls[0], want)
	}
	if want := []string{"post-exec", "echo hi", "2"}; !equal(ev.calls[1], want) {
		t.Fatalf("calls[1] = %v, want %v", ev.calls[1], want)
	}
}

func TestFailingHookIsLoggedNotPropagated(t *testing.T) {
	ev := &recordingEvaluator{fail: "pre-prompt"}
	r := New(ev)

	// PrePrompt returns nothing to fail with; a panic here would be the
	// only way this test could fail, proving the error is swallowed.
	r.PrePrompt()

	if len(ev.calls) != 1 || ev.calls[0][0] != "pre-prompt" {
		t.Fatalf("calls = %v, want one pre-prompt call", ev.calls)
	}
}

func TestBindChpwdFiresOnSuccessfulCd(t *testing.T) {
	ev := &recordingEvaluator{}
	r := New(ev)
	env := shenv.New()
	r.BindChpwd(env)

	dir := t.TempDir()
	if err := env.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, c := range ev.calls {
		if len(c) == 2 && c[0] == "chpwd" {
			found = true
		}
	}
	if !found {
		t.Fatalf("calls = %v, want a chpwd hook call", ev.calls)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
