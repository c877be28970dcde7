package mcpserver

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/shelf/internal/catalog"
	"github.com/starford/shelf/internal/storage"
	"github.com/starford/shelf/internal/testutil"
	"github.com/starford/shelf/internal/vfs"
)

type testEnv struct {
	srv     *Server
	store   storage.Provider
	changes []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SeedLibrary(t)
	_, store := testutil.TestCatalog(t)
	env := &testEnv{store: store}
	env.srv = New(vfs.New(db), catalog.NewService(store, db), func(cmd string) {
		env.changes = append(env.changes, cmd)
	})
	return env
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so dispatch to the
	// handler functions here.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "vfs_exec":
		result, err = srv.vfsExec(ctx, req)
	case "vfs_ls":
		result, err = srv.vfsLs(ctx, req)
	case "vfs_cat":
		result, err = srv.vfsCat(ctx, req)
	case "vfs_complete":
		result, err = srv.vfsComplete(ctx, req)
	case "create_record":
		result, err = srv.createRecord(ctx, req)
	case "read_record":
		result, err = srv.readRecord(ctx, req)
	case "list_records":
		result, err = srv.listRecords(ctx, req)
	case "get_record_contract":
		result, err = srv.getRecordContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestExec_SessionKeepsCwd(t *testing.T) {
	env := newTestEnv(t)

	r := callTool(t, env.srv, "vfs_exec", map[string]any{"line": "cd /books/7"})
	if r.IsError || resultText(r) != "ok" {
		t.Fatalf("cd result = %q (error=%v)", resultText(r), r.IsError)
	}
	r = callTool(t, env.srv, "vfs_exec", map[string]any{"line": "cat title"})
	if got := strings.TrimSpace(resultText(r)); got != "Dune" {
		t.Errorf("cat title = %q, want Dune", got)
	}
}

func TestExec_MutationNotifies(t *testing.T) {
	env := newTestEnv(t)

	r := callTool(t, env.srv, "vfs_exec", map[string]any{"line": "mkdir /tags/Work"})
	if r.IsError {
		t.Fatalf("mkdir: %s", resultText(r))
	}
	r = callTool(t, env.srv, "vfs_exec", map[string]any{"line": "ln /books/7 /tags/Work"})
	if r.IsError {
		t.Fatalf("ln: %s", resultText(r))
	}
	if diff := cmp.Diff([]string{"mkdir", "ln"}, env.changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestExec_Errors(t *testing.T) {
	env := newTestEnv(t)

	r := callTool(t, env.srv, "vfs_exec", map[string]any{"line": "frobnicate"})
	if !r.IsError {
		t.Error("expected error for unknown command")
	}
	r = callTool(t, env.srv, "vfs_exec", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing line")
	}
}

func TestLsAndCat(t *testing.T) {
	env := newTestEnv(t)

	r := callTool(t, env.srv, "vfs_ls", map[string]any{"path": "/books"})
	if r.IsError {
		t.Fatalf("ls: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "21") {
		t.Errorf("ls /books = %q", resultText(r))
	}

	r = callTool(t, env.srv, "vfs_ls", map[string]any{"path": "/nope"})
	if !r.IsError {
		t.Error("expected error for missing directory")
	}

	r = callTool(t, env.srv, "vfs_cat", map[string]any{"path": "/books/12/title"})
	if got := strings.TrimSpace(resultText(r)); got != "The Left Hand of Darkness" {
		t.Errorf("cat = %q", got)
	}
}

func TestComplete(t *testing.T) {
	env := newTestEnv(t)

	r := callTool(t, env.srv, "vfs_complete", map[string]any{"line": "ca"})
	if got := strings.Split(resultText(r), "\n"); !slices.Contains(got, "cat ") {
		t.Errorf("completions = %q, want cat", got)
	}
	r = callTool(t, env.srv, "vfs_complete", map[string]any{"line": "zzz"})
	if resultText(r) != "no completions" {
		t.Errorf("completions = %q", resultText(r))
	}
}

func TestCreateAndReadRecord(t *testing.T) {
	env := newTestEnv(t)
	content := "---\nid: 3\ntitle: Solaris\nauthors: [Stanislaw Lem]\n---\n"

	r := callTool(t, env.srv, "create_record", map[string]any{
		"path":    "sf/solaris.md",
		"content": content,
	})
	if text := resultText(r); text != "created: sf/solaris.md -> /books/3" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, env.srv, "read_record", map[string]any{"path": "sf/solaris.md"})
	if resultText(r) != content {
		t.Errorf("read result = %q", resultText(r))
	}

	r = callTool(t, env.srv, "vfs_cat", map[string]any{"path": "/books/3/title"})
	if got := strings.TrimSpace(resultText(r)); got != "Solaris" {
		t.Errorf("indexed title = %q", got)
	}
}

func TestCreateRecord_Invalid(t *testing.T) {
	env := newTestEnv(t)
	r := callTool(t, env.srv, "create_record", map[string]any{
		"path":    "solaris.txt",
		"content": "# Solaris\n",
	})
	if !r.IsError {
		t.Error("expected error for non-markdown path")
	}
}

func TestListRecords(t *testing.T) {
	env := newTestEnv(t)

	r := callTool(t, env.srv, "list_records", map[string]any{})
	if resultText(r) != "no records" {
		t.Errorf("empty list = %q", resultText(r))
	}

	_ = env.store.Write("loose.md", []byte("# Loose\n"))
	r = callTool(t, env.srv, "list_records", map[string]any{})
	if resultText(r) != "loose.md  (not indexed)" {
		t.Errorf("list = %q", resultText(r))
	}
}

func TestReadRecordMissing(t *testing.T) {
	env := newTestEnv(t)
	r := callTool(t, env.srv, "read_record", map[string]any{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing record")
	}
}

func TestGetRecordContract(t *testing.T) {
	env := newTestEnv(t)
	r := callTool(t, env.srv, "get_record_contract", map[string]any{})
	if resultText(r) != RecordFormatContract {
		t.Error("contract text mismatch")
	}
}
