package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/checksum"
	"github.com/starford/shelf/internal/library"
	"github.com/starford/shelf/internal/storage"
	"github.com/starford/shelf/internal/testutil"
)

const duneRecord = `---
id: 3
title: Dune
authors: [Frank Herbert]
subjects: [Science Fiction]
tags: [Fiction/SF]
---
The spice must flow.
`

func testService(t *testing.T) (*Service, *library.DB, storage.Provider) {
	t.Helper()
	_, store := testutil.TestCatalog(t)
	db := testutil.TestDB(t)
	return NewService(store, db), db, store
}

func TestCreateAndGetRecord(t *testing.T) {
	svc, db, _ := testService(t)
	ctx := context.Background()

	d, err := svc.CreateRecord(ctx, "sf/dune.md", []byte(duneRecord))
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if d.BookID != 3 || d.Title != "Dune" {
		t.Errorf("detail = %+v", d)
	}
	if diff := cmp.Diff([]string{"Fiction/SF"}, d.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	b, _ := db.GetBook(ctx, 3)
	if b == nil || strings.TrimSpace(b.Text) != "The spice must flow." {
		t.Fatalf("indexed book = %+v", b)
	}

	got, err := svc.GetRecord(ctx, "sf/dune.md")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Checksum != checksum.Sum([]byte(duneRecord)) {
		t.Errorf("checksum = %q", got.Checksum)
	}
}

func TestCreateRecord_Duplicate(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()
	if _, err := svc.CreateRecord(ctx, "dune.md", []byte(duneRecord)); err != nil {
		t.Fatal(err)
	}
	_, err := svc.CreateRecord(ctx, "dune.md", []byte(duneRecord))
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateRecord_Rejected(t *testing.T) {
	svc, _, store := testService(t)
	ctx := context.Background()

	for _, p := range []string{"", "dune.txt", ".hidden/dune.md"} {
		if _, err := svc.CreateRecord(ctx, p, []byte(duneRecord)); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("CreateRecord(%q) err = %v, want ErrInvalidArgument", p, err)
		}
	}

	_, err := svc.CreateRecord(ctx, "bad.md", []byte("---\ntitle: [unterminated\n---\n"))
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("malformed record err = %v", err)
	}
	if _, err := store.Read("bad.md"); err == nil {
		t.Error("malformed record was written")
	}
}

func TestCreateRecord_PinnedIDConflictLeavesNoFile(t *testing.T) {
	svc, _, store := testService(t)
	ctx := context.Background()
	if _, err := svc.CreateRecord(ctx, "a.md", []byte(duneRecord)); err != nil {
		t.Fatal(err)
	}
	_, err := svc.CreateRecord(ctx, "b.md", []byte(duneRecord))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if _, err := store.Read("b.md"); err == nil {
		t.Error("conflicting record left in the catalog")
	}
}

func TestUpdateRecord_OptimisticLocking(t *testing.T) {
	svc, db, _ := testService(t)
	ctx := context.Background()
	d, err := svc.CreateRecord(ctx, "dune.md", []byte(duneRecord))
	if err != nil {
		t.Fatal(err)
	}

	v2 := []byte("---\nid: 3\ntitle: Dune Messiah\n---\n")
	if _, err := svc.UpdateRecord(ctx, "dune.md", v2, "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale update err = %v, want ErrConflict", err)
	}
	if _, err := svc.UpdateRecord(ctx, "dune.md", v2, d.Checksum); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	b, _ := db.GetBook(ctx, 3)
	if b.Title != "Dune Messiah" {
		t.Errorf("title = %q", b.Title)
	}

	if _, err := svc.UpdateRecord(ctx, "nope.md", v2, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing record err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRecord(t *testing.T) {
	svc, db, _ := testService(t)
	ctx := context.Background()
	if _, err := svc.CreateRecord(ctx, "dune.md", []byte(duneRecord)); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteRecord(ctx, "dune.md"); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if b, _ := db.GetBook(ctx, 3); b != nil {
		t.Error("book survived record deletion")
	}
	if err := svc.DeleteRecord(ctx, "dune.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestMoveRecord_KeepsShellTags(t *testing.T) {
	svc, db, store := testService(t)
	ctx := context.Background()
	if _, err := svc.CreateRecord(ctx, "dune.md", []byte(duneRecord)); err != nil {
		t.Fatal(err)
	}
	tag, _ := db.GetOrCreateTag(ctx, "Favorites")
	if err := db.AddTagToBook(ctx, 3, tag.ID); err != nil {
		t.Fatal(err)
	}

	d, err := svc.MoveRecord(ctx, "dune.md", "sf/dune.md")
	if err != nil {
		t.Fatalf("MoveRecord: %v", err)
	}
	if d.Path != "sf/dune.md" || d.BookID != 3 {
		t.Errorf("detail = %+v", d)
	}
	if _, err := store.Read("dune.md"); err == nil {
		t.Error("old record still present")
	}
	tags, _ := db.BookTags(ctx, 3)
	var paths []string
	for _, tg := range tags {
		paths = append(paths, tg.Path)
	}
	if diff := cmp.Diff([]string{"Favorites", "Fiction/SF"}, paths); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestListRecords(t *testing.T) {
	svc, _, store := testService(t)
	ctx := context.Background()
	if _, err := svc.CreateRecord(ctx, "dune.md", []byte(duneRecord)); err != nil {
		t.Fatal(err)
	}
	// Written behind the service's back, so never indexed.
	if err := store.Write("loose.md", []byte("# Loose\n")); err != nil {
		t.Fatal(err)
	}

	items, err := svc.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	byPath := map[string]RecordListItem{}
	for _, it := range items {
		byPath[it.Path] = it
	}
	if byPath["dune.md"].BookID != 3 {
		t.Errorf("dune item = %+v", byPath["dune.md"])
	}
	if byPath["loose.md"].BookID != 0 {
		t.Errorf("loose item = %+v", byPath["loose.md"])
	}
}
