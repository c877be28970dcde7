package shell

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/library"
	"github.com/starford/shelf/internal/testutil"
)

func bookTagPaths(t *testing.T, lib *library.DB, bookID int64) []string {
	t.Helper()
	tags, err := lib.BookTags(context.Background(), bookID)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, tg := range tags {
		out = append(out, tg.Path)
	}
	return out
}

func TestRemoveTagTree(t *testing.T) {
	sh, lib := newTestShell(t)
	ctx := context.Background()
	mustExec(t, sh, "mkdir /tags/Work /tags/Work/Project")
	mustExec(t, sh, "ln /books/7 /tags/Work")
	mustExec(t, sh, "ln /books/7 /tags/Work/Project")

	err := execErr(t, sh, "rm /tags/Work")
	if !errors.Is(err, apperr.ErrTagHasChildren) {
		t.Fatalf("rm err = %v, want ErrTagHasChildren", err)
	}
	if got := bookTagPaths(t, lib, testutil.DuneID); len(got) != 2 {
		t.Fatalf("tags after failed rm = %v", got)
	}

	mustExec(t, sh, "rm -r /tags/Work")
	for _, p := range []string{"Work", "Work/Project"} {
		if tg, _ := lib.GetTag(ctx, p); tg != nil {
			t.Errorf("tag %s survived rm -r", p)
		}
	}
	if got := bookTagPaths(t, lib, testutil.DuneID); len(got) != 0 {
		t.Errorf("book 7 still tagged %v", got)
	}
	book, err := lib.GetBook(ctx, testutil.DuneID)
	if err != nil || book == nil || book.Title != "Dune" {
		t.Fatalf("book 7 = %+v, %v", book, err)
	}
	if got := mustExec(t, sh, "cat /books/7/authors"); got != "Frank Herbert" {
		t.Errorf("authors = %q", got)
	}
}

func TestRedirectIntoDescription(t *testing.T) {
	sh, _ := newTestShell(t)
	mustExec(t, sh, "mkdir /tags/Work")
	mustExec(t, sh, `echo "x" > /tags/Work/description`)
	if got := mustExec(t, sh, "cat /tags/Work/description"); got != "x" {
		t.Errorf("description = %q, want %q", got, "x")
	}

	err := execErr(t, sh, `echo "x" > /books/7/title`)
	if !errors.Is(err, apperr.ErrReadOnlyWrite) {
		t.Fatalf("err = %v, want ErrReadOnlyWrite", err)
	}
	if err.Error() != "echo: /books/7/title: read-only file" {
		t.Errorf("diagnostic = %q", err.Error())
	}
	if got := mustExec(t, sh, "cat /books/7/title"); got != "Dune" {
		t.Errorf("title = %q", got)
	}
}

func TestMkdir(t *testing.T) {
	sh, lib := newTestShell(t)
	ctx := context.Background()
	mustExec(t, sh, "mkdir /tags/A/B/C")
	for _, p := range []string{"A", "A/B", "A/B/C"} {
		if tg, _ := lib.GetTag(ctx, p); tg == nil {
			t.Errorf("tag %s missing", p)
		}
	}
	if err := execErr(t, sh, "mkdir /tags/A"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("existing err = %v", err)
	}
	mustExec(t, sh, "mkdir -p /tags/A")

	mustExec(t, sh, "cd /tags/A")
	mustExec(t, sh, "mkdir D")
	if tg, _ := lib.GetTag(ctx, "A/D"); tg == nil {
		t.Error("relative mkdir did not create A/D")
	}
	for _, bad := range []string{"mkdir /books/x", "mkdir /tags", "mkdir /tags/A/.tag", "mkdir /tags/A/color"} {
		if err := execErr(t, sh, bad); !errors.Is(err, apperr.ErrInvalidArgument) && !errors.Is(err, apperr.ErrAlreadyExists) {
			t.Errorf("%s err = %v", bad, err)
		}
	}
}

func TestLnAndListing(t *testing.T) {
	sh, _ := newTestShell(t)
	mustExec(t, sh, "ln /authors/guin-ursula-k-le/books/12 /tags/Reading/Now")
	if got := mustExec(t, sh, "ls /tags/Reading/Now"); got != "12\ncolor\ndescription" {
		t.Errorf("ls = %q", got)
	}
	if got := mustExec(t, sh, "cat /tags/Reading/Now/12/title"); got != "The Left Hand of Darkness" {
		t.Errorf("title via tag = %q", got)
	}
	if got := mustExec(t, sh, "ls /books/12/tags/Reading"); got != "Now" {
		t.Errorf("book tags view = %q", got)
	}
	if err := execErr(t, sh, "ln /books/12/title /tags/Reading"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("ln non-book err = %v", err)
	}
}

func TestMv(t *testing.T) {
	sh, lib := newTestShell(t)
	ctx := context.Background()
	mustExec(t, sh, "ln /books/12 /tags/A")

	mustExec(t, sh, "mv /tags/A/12 /tags/B")
	if got := bookTagPaths(t, lib, testutil.LeftHandID); len(got) != 1 || got[0] != "B" {
		t.Fatalf("tags after move = %v", got)
	}

	mustExec(t, sh, "mkdir /tags/B/Sub")
	mustExec(t, sh, "mv /tags/B /tags/C/D")
	if got := bookTagPaths(t, lib, testutil.LeftHandID); len(got) != 1 || got[0] != "C/D" {
		t.Fatalf("tags after rename = %v", got)
	}
	if tg, _ := lib.GetTag(ctx, "C/D/Sub"); tg == nil {
		t.Error("descendant not renamed")
	}
	if tg, _ := lib.GetTag(ctx, "B"); tg != nil {
		t.Error("old tag survived rename")
	}

	mustExec(t, sh, "mkdir /tags/E")
	if err := execErr(t, sh, "mv /tags/E /tags/C/D"); !errors.Is(err, apperr.ErrDuplicateTagPath) {
		t.Errorf("rename onto existing err = %v", err)
	}
	if err := execErr(t, sh, "mv /books/7 /tags/E"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("mv book dir err = %v", err)
	}
}

func TestRmLinks(t *testing.T) {
	sh, lib := newTestShell(t)
	mustExec(t, sh, "ln /books/15 /tags/X")
	mustExec(t, sh, "ln /books/15 /tags/Y/Z")

	mustExec(t, sh, "rm /tags/X/15")
	if got := bookTagPaths(t, lib, testutil.EarthseaID); len(got) != 1 || got[0] != "Y/Z" {
		t.Fatalf("tags = %v", got)
	}
	mustExec(t, sh, "rm /books/15/tags/Y/Z")
	if got := bookTagPaths(t, lib, testutil.EarthseaID); len(got) != 0 {
		t.Fatalf("tags = %v", got)
	}

	for _, line := range []string{"rm /books/15/title", "rm /books/15", "rm /authors"} {
		err := execErr(t, sh, line)
		if !errors.Is(err, apperr.ErrInvalidArgument) || !strings.Contains(err.Error(), "not removable") {
			t.Errorf("%s err = %v, want not removable", line, err)
		}
	}
	if err := execErr(t, sh, "rm /tags/nope"); !errors.Is(err, apperr.ErrPathNotFound) {
		t.Errorf("rm missing err = %v", err)
	}
}

func TestRmExactTagUnderDeeperOne(t *testing.T) {
	sh, lib := newTestShell(t)
	mustExec(t, sh, "ln /books/7 /tags/Work")
	mustExec(t, sh, "ln /books/7 /tags/Work/Project")

	if got := mustExec(t, sh, "ls /books/7/tags/Work"); got != ".tag\nProject" {
		t.Fatalf("ls = %q", got)
	}
	mustExec(t, sh, "rm /books/7/tags/Work/.tag")
	if got := bookTagPaths(t, lib, testutil.DuneID); len(got) != 1 || got[0] != "Work/Project" {
		t.Fatalf("tags = %v", got)
	}
	if got := mustExec(t, sh, "ls /books/7/tags/Work"); got != "Project" {
		t.Errorf("ls after rm = %q", got)
	}
}

func TestCwdFollowsTagRename(t *testing.T) {
	sh, _ := newTestShell(t)
	mustExec(t, sh, "mkdir /tags/A/C")
	mustExec(t, sh, `echo "alpha" > /tags/A/description`)
	mustExec(t, sh, "cd /tags/A")

	mustExec(t, sh, "mv /tags/A /tags/B")
	if got := sh.Pwd(); got != "/tags/B" {
		t.Fatalf("pwd = %q, want /tags/B", got)
	}
	if got := mustExec(t, sh, "cat description"); got != "alpha" {
		t.Errorf("description = %q", got)
	}
	mustExec(t, sh, "cd C")
	if got := sh.Pwd(); got != "/tags/B/C" {
		t.Errorf("pwd = %q, want /tags/B/C", got)
	}

	mustExec(t, sh, "mv /tags/B /tags/Z/B")
	if got := sh.Pwd(); got != "/tags/Z/B/C" {
		t.Errorf("pwd after ancestor move = %q", got)
	}
	mustExec(t, sh, "mkdir D")
	if got := mustExec(t, sh, "ls /tags/Z/B/C"); got != "D\ncolor\ndescription" {
		t.Errorf("ls = %q", got)
	}
}

func TestCwdLeavesDeletedTag(t *testing.T) {
	sh, _ := newTestShell(t)
	mustExec(t, sh, "mkdir /tags/A/B/C")
	mustExec(t, sh, "cd /tags/A/B/C")

	mustExec(t, sh, "rm -r /tags/A/B")
	if got := sh.Pwd(); got != "/tags/A" {
		t.Errorf("pwd = %q, want /tags/A", got)
	}
	mustExec(t, sh, "rm -r /tags/A")
	if got := sh.Pwd(); got != "/tags" {
		t.Errorf("pwd = %q, want /tags", got)
	}
}

func TestNumericTagNames(t *testing.T) {
	sh, lib := newTestShell(t)
	mustExec(t, sh, "mkdir /tags/Years/2024")
	mustExec(t, sh, "ln /books/7 /tags/Years/2024")
	if got := mustExec(t, sh, "ls /tags/Years/2024"); got != "7\ncolor\ndescription" {
		t.Errorf("ls = %q", got)
	}
	if got := bookTagPaths(t, lib, testutil.DuneID); len(got) != 1 || got[0] != "Years/2024" {
		t.Errorf("tags = %v", got)
	}
	mustExec(t, sh, "rm /tags/Years/2024/7")
	if got := bookTagPaths(t, lib, testutil.DuneID); len(got) != 0 {
		t.Errorf("tags after rm = %v", got)
	}
}
