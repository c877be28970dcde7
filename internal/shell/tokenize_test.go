package shell

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/shelf/internal/apperr"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"ls -l /books", []string{"ls", "-l", "/books"}},
		{"  echo   a  b ", []string{"echo", "a", "b"}},
		{`echo "hello world"`, []string{"echo", "hello world"}},
		{`echo 'it''s'`, []string{"echo", "its"}},
		{`echo "say \"hi\""`, []string{"echo", `say "hi"`}},
		{`echo 'a\b'`, []string{"echo", `a\b`}},
		{`echo a\ b`, []string{"echo", "a b"}},
		{`echo ""`, []string{"echo", ""}},
		{"", nil},
	}
	for _, tc := range cases {
		got, err := tokenize(tc.in)
		if err != nil {
			t.Fatalf("tokenize(%q): %v", tc.in, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("tokenize(%q) (-want +got):\n%s", tc.in, diff)
		}
	}
	if _, err := tokenize(`echo "oops`); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("unterminated quote err = %v", err)
	}
}

func TestSplitPipeline(t *testing.T) {
	got, err := splitPipeline(`cat /books/7/text | grep "a|b" | head -n 2`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"cat /books/7/text", `grep "a|b"`, "head -n 2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stages (-want +got):\n%s", diff)
	}
}

func TestSplitRedirect(t *testing.T) {
	cmd, target, ok, err := splitRedirect(`echo "a > b" > /tags/Work/description`)
	if err != nil || !ok {
		t.Fatalf("splitRedirect: %v, %v", ok, err)
	}
	if cmd != `echo "a > b"` || target != "/tags/Work/description" {
		t.Errorf("got %q, %q", cmd, target)
	}

	if _, _, ok, _ := splitRedirect(`echo "no > redirect"`); ok {
		t.Error("quoted > treated as redirect")
	}
	for _, bad := range []string{"echo x >", "echo x > a b"} {
		if _, _, _, err := splitRedirect(bad); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("splitRedirect(%q) err = %v", bad, err)
		}
	}
}
