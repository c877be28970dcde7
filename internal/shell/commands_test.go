package shell

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/shelf/internal/apperr"
)

func TestLs(t *testing.T) {
	sh, _ := newTestShell(t)
	cases := []struct {
		line string
		want string
	}{
		{"ls /", "authors\nbooks\nsubjects\ntags"},
		{"ls /books", "12\n15\n21\n7"},
		{"ls /books/7/t*", "tags\ntext\ntitle"},
		{"ls /books/7/title", "title"},
		{"ls -l /books/7/similar", "l     0.20  12 -> /books/12"},
		{"ls /authors/herbert-frank /authors/gibson-william", "/authors/herbert-frank:\nbooks\nname\n\n/authors/gibson-william:\nbooks\nname"},
	}
	for _, tc := range cases {
		if got := mustExec(t, sh, tc.line); got != tc.want {
			t.Errorf("%s = %q, want %q", tc.line, got, tc.want)
		}
	}

	mustExec(t, sh, "cd /books/7")
	if got := mustExec(t, sh, "ls files"); got != "epub\npdf" {
		t.Errorf("relative ls = %q", got)
	}
	if err := execErr(t, sh, "ls /books/7/z*"); !errors.Is(err, apperr.ErrPathNotFound) {
		t.Errorf("unmatched glob err = %v", err)
	}
}

func TestLsLong(t *testing.T) {
	sh, _ := newTestShell(t)
	out := mustExec(t, sh, "ls -l /books/7")
	for _, want := range []string{"-      4 B  title", "w      0 B  color", "d        -  files"} {
		if !strings.Contains(out, want) {
			t.Errorf("ls -l missing %q:\n%s", want, out)
		}
	}
}

func TestLsEntries(t *testing.T) {
	sh, _ := newTestShell(t)
	out, err := sh.Exec(context.Background(), "ls /authors/herbert-frank/books")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Entries) != 1 || out.Entries[0].Target != "/books/7" {
		t.Errorf("entries = %+v", out.Entries)
	}
}

func TestTree(t *testing.T) {
	sh, _ := newTestShell(t)
	want := "/authors\n├── gibson-william\n├── guin-ursula-k-le\n└── herbert-frank"
	if got := mustExec(t, sh, "tree -L 1 /authors"); got != want {
		t.Errorf("tree =\n%s\nwant\n%s", got, want)
	}
	want = "/authors/herbert-frank\n├── books\n│   └── 7 -> /books/7\n└── name"
	if got := mustExec(t, sh, "tree /authors/herbert-frank"); got != want {
		t.Errorf("tree =\n%s\nwant\n%s", got, want)
	}
	if err := execErr(t, sh, "tree -L 0"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("err = %v", err)
	}
}

func TestCatAndFilters(t *testing.T) {
	sh, _ := newTestShell(t)
	cases := []struct {
		line string
		want string
	}{
		{"cat /books/7/title /books/12/title", "Dune\nThe Left Hand of Darkness"},
		{"cat /books/7/text | head -n 1", "A beginning is the time for taking the most delicate care."},
		{"cat /books/7/text | tail -n 1", "The spice must flow."},
		{"head -n 1 /books/7/subjects", "Ecology"},
		{"cat /books/7/subjects | wc -l", "2"},
		{"wc -w /books/7/title", "1"},
		{"cat /books/7/subjects /books/12/subjects | sort | uniq -c", "      1 Ecology\n      1 Gender\n      2 Science Fiction"},
		{"cat /books/7/subjects | sort -r", "Science Fiction\nEcology"},
		{"echo hello   world", "hello world"},
		{`echo "a | b"`, "a | b"},
	}
	for _, tc := range cases {
		if got := mustExec(t, sh, tc.line); got != tc.want {
			t.Errorf("%s = %q, want %q", tc.line, got, tc.want)
		}
	}
	if err := execErr(t, sh, "head"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("head without input err = %v", err)
	}
	if err := execErr(t, sh, "cat /books/7"); !errors.Is(err, apperr.ErrIsADirectory) {
		t.Errorf("cat dir err = %v", err)
	}
}

func TestGrep(t *testing.T) {
	sh, _ := newTestShell(t)
	cases := []struct {
		line string
		want string
	}{
		{"grep -i SPICE /books/7/text", "The spice must flow."},
		{"grep -n spice /books/7/text", "2:The spice must flow."},
		{"grep -rn spice /books/7", "/books/7/text:2:The spice must flow."},
		{"grep Dune /books/7/title /books/12/title", "/books/7/title:Dune"},
		{"ls /books | grep 1", "12\n15\n21"},
		{"grep nothing-here /books/7/text", ""},
	}
	for _, tc := range cases {
		if got := mustExec(t, sh, tc.line); got != tc.want {
			t.Errorf("%s = %q, want %q", tc.line, got, tc.want)
		}
	}
	if err := execErr(t, sh, "grep '(' /books/7/text"); !errors.Is(err, apperr.ErrBadPattern) {
		t.Errorf("bad pattern err = %v", err)
	}
	if err := execErr(t, sh, "grep x /books/7"); !errors.Is(err, apperr.ErrIsADirectory) {
		t.Errorf("dir without -r err = %v", err)
	}
	if err := execErr(t, sh, "grep x"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("no input err = %v", err)
	}
}

func TestFind(t *testing.T) {
	sh, _ := newTestShell(t)
	want := "/books/12  The Left Hand of Darkness\n/books/15  A Wizard of Earthsea"
	if got := mustExec(t, sh, "find author:guin"); got != want {
		t.Errorf("find = %q, want %q", got, want)
	}
	if got := mustExec(t, sh, "find author:guin year:1969"); got != "/books/12  The Left Hand of Darkness" {
		t.Errorf("find AND = %q", got)
	}
	if got := mustExec(t, sh, "find title:*dune*"); got != "/books/7  Dune" {
		t.Errorf("find glob = %q", got)
	}
	if err := execErr(t, sh, "find colour:red"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("unknown field err = %v", err)
	}
}

func TestHelp(t *testing.T) {
	sh, _ := newTestShell(t)
	out := mustExec(t, sh, "help")
	for _, name := range []string{"grep", "mkdir", "tree"} {
		if !strings.Contains(out, name) {
			t.Errorf("help missing %s", name)
		}
	}
	if got := mustExec(t, sh, "help ln"); !strings.HasPrefix(got, "usage: ln <book-path> <tag-path>") {
		t.Errorf("help ln = %q", got)
	}
}

func TestExit(t *testing.T) {
	sh, _ := newTestShell(t)
	out, err := sh.Exec(context.Background(), "exit")
	if err != nil || !out.Exit {
		t.Errorf("exit = %+v, %v", out, err)
	}
}
