package shell

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/shelf/internal/vfs"
)

func TestREPLHandle(t *testing.T) {
	sh, _ := newTestShell(t)
	var out, errOut bytes.Buffer
	r := NewREPL(sh, &out, &errOut)
	ctx := context.Background()

	if r.Handle(ctx, "cat /books/7/title") {
		t.Error("cat ended the session")
	}
	if out.String() != "Dune\n" {
		t.Errorf("out = %q", out.String())
	}
	if r.Handle(ctx, "cat /nope") {
		t.Error("failure ended the session")
	}
	if errOut.String() != "cat: /nope: no such file or directory\n" {
		t.Errorf("errOut = %q", errOut.String())
	}
	out.Reset()
	r.Handle(ctx, "cd /books")
	if out.Len() != 0 {
		t.Errorf("cd printed %q", out.String())
	}
	if got := r.Prompt(); got != "shelf:/books$ " {
		t.Errorf("prompt = %q", got)
	}
	if !r.Handle(ctx, "quit") {
		t.Error("quit did not end the session")
	}
}

func TestREPLComplete(t *testing.T) {
	sh, _ := newTestShell(t)
	r := NewREPL(sh, &bytes.Buffer{}, &bytes.Buffer{})
	ctx := context.Background()
	cases := []struct {
		in   string
		want []string
	}{
		{"l", []string{"ln ", "ls "}},
		{"ls /bo", []string{"ls /books/"}},
		{"cat /books/7/ti", []string{"cat /books/7/title"}},
		{"cat /books/7/title | he", []string{"cat /books/7/title | head "}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, r.Complete(ctx, tc.in)); diff != "" {
			t.Errorf("Complete(%q) (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestRendererPlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	out := &Output{Text: "a\nb", Entries: []Entry{{Name: "a", Kind: vfs.KindVirtual}, {Name: "b", Kind: vfs.KindFile}}}
	if got := r.Output(out); got != "a\nb" {
		t.Errorf("Output = %q", got)
	}
	if got := r.Error(errors.New("ls: boom")); got != "ls: boom" {
		t.Errorf("Error = %q", got)
	}
}

func TestRendererKeepsNonListingText(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, true)
	out := &Output{Text: "l     0.20  12 -> /books/12", Entries: []Entry{{Name: "12", Kind: vfs.KindSymlink}}}
	if got := r.Output(out); got != out.Text {
		t.Errorf("Output = %q", got)
	}
}
