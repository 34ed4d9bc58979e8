package expand

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/lazyshell/dsh/internal/shenv"
)

func TestExpandBracesRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"{a}", []string{"{a}"}},
		{"a{b,c}d", []string{"abd", "acd"}},
		{"{a,b}{1,2}", []string{"a1", "a2", "b1", "b2"}},
		{`a\{b,c\}d`, []string{"a{b,c}d"}},
	}
	for _, c := range cases {
		got := ExpandBraces(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("ExpandBraces(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestExpandTilde(t *testing.T) {
	env := shenv.New()
	env.SetVar("HOME", "/home/alice")

	if got := ExpandTilde("~/x", env); got != "/home/alice/x" {
		t.Errorf("ExpandTilde(~/x) = %q, want /home/alice/x", got)
	}
	if got := ExpandTilde("~", env); got != "/home/alice" {
		t.Errorf("ExpandTilde(~) = %q, want /home/alice", got)
	}
	if got := ExpandTilde("foo~bar", env); got != "foo~bar" {
		t.Errorf("ExpandTilde should only fire at word start, got %q", got)
	}
}

func TestExpandVariables(t *testing.T) {
	env := shenv.New()
	env.SetVar("NAME", "world")

	if got := ExpandVariables("hello $NAME", env); got != "hello world" {
		t.Errorf("ExpandVariables($NAME) = %q", got)
	}
	if got := ExpandVariables("hello ${NAME}!", env); got != "hello world!" {
		t.Errorf("ExpandVariables(${NAME}) = %q", got)
	}
	if got := ExpandVariables("$UNDEFINED_XYZ", env); got != "" {
		t.Errorf("undefined variable should expand to empty string, got %q", got)
	}
}

func TestExpandGlobSortedAndLiteralOnNoMatch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ExpandGlob("*.txt", dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a.txt", "b.txt"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandGlob(*.txt) = %v, want %v", got, want)
	}

	got, err = ExpandGlob("*.nomatch", dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"*.nomatch"}; !reflect.DeepEqual(got, want) {
		t.Errorf("no-match glob should keep literal pattern, got %v", got)
	}

	if _, err := ExpandGlob("*.nomatch", dir, Options{StrictGlob: true}); err == nil {
		t.Errorf("expected error in strict mode for no-match glob")
	}
}

func TestAliasExpandFixedPointAndCycleGuard(t *testing.T) {
	env := shenv.New()
	env.SetAlias("ll", "ls -la")
	env.SetAlias("ls", "ls --color")

	tokens, expanded, err := AliasExpand("ll", env)
	if err != nil {
		t.Fatal(err)
	}
	if !expanded {
		t.Fatalf("expected expansion to occur")
	}
	if want := []string{"ls", "--color", "-la"}; !reflect.DeepEqual(tokens, want) {
		t.Errorf("AliasExpand(ll) = %v, want %v", tokens, want)
	}

	// Self-referential alias must terminate.
	env.SetAlias("loop", "loop foo")
	tokens, _, err = AliasExpand("loop", env)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"loop", "foo"}; !reflect.DeepEqual(tokens, want) {
		t.Errorf("AliasExpand(loop) = %v, want %v", tokens, want)
	}
}
