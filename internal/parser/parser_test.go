package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte(`---
id: 7
title: The Dispossessed
authors:
  - Ursula K. Le Guin
subjects: [Anarchism, Science fiction]
year: 1974
language: en
tags:
  - Fiction/SF
files:
  - format: EPUB
    path: /books/dispossessed.epub
    size: 524288
---
Chapter one.
`)
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ID != 7 || r.Title != "The Dispossessed" || r.Year != 1974 {
		t.Errorf("record = %+v", r)
	}
	if diff := cmp.Diff(StringList{"Anarchism", "Science fiction"}, r.Subjects); diff != "" {
		t.Errorf("subjects (-want +got):\n%s", diff)
	}
	if len(r.Files) != 1 || r.Files[0].Format != "epub" {
		t.Errorf("files = %+v, want one lowercase epub", r.Files)
	}
	if r.Body != "Chapter one.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_ScalarAuthors(t *testing.T) {
	r, err := Parse([]byte("---\ntitle: X\nauthors: Frank Herbert\n---\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(StringList{"Frank Herbert"}, r.Authors); diff != "" {
		t.Errorf("authors (-want +got):\n%s", diff)
	}
}

func TestParse_DeduplicatesLists(t *testing.T) {
	r, err := Parse([]byte("---\ntags: [a, ' a ', b, '']\n---\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(StringList{"a", "b"}, r.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
}

func TestParse_NoFrontmatterUsesHeading(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n")); err == nil {
		t.Fatal("expected error for malformed frontmatter")
	}
}

func TestParse_Unterminated(t *testing.T) {
	if _, err := Parse([]byte("---\ntitle: x\nno closing")); err == nil {
		t.Fatal("expected error for unterminated frontmatter")
	}
}
