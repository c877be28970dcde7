package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/shelf/internal/catalog"
	"github.com/starford/shelf/internal/library"
	"github.com/starford/shelf/internal/testutil"
	"github.com/starford/shelf/internal/vfs"
)

type testServer struct {
	router  http.Handler
	db      *library.DB
	changes []string
}

// testEnv sets up a seeded library, an empty catalog and a router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) *testServer {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) *testServer {
	t.Helper()
	_, store := testutil.TestCatalog(t)
	db := testutil.SeedLibrary(t)
	ts := &testServer{db: db}
	svc := catalog.NewService(store, db)
	ts.router = NewRouter(svc, vfs.New(db), authEnabled, authToken, sseHandler, func(cmd string) {
		ts.changes = append(ts.changes, cmd)
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		req = httptest.NewRequest(method, target, bytes.NewReader(data))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

const recordBody = "---\nid: 40\ntitle: Solaris\nauthors: [Stanislaw Lem]\n---\nThe ocean.\n"

func TestCreateAndGetRecord(t *testing.T) {
	ts := testEnv(t, "")

	w := ts.do(t, http.MethodPost, "/records", CreateRecordRequest{Path: "sf/solaris.md", Content: recordBody})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/records/sf/solaris.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	rec := decode[RecordDetail](t, w)
	if rec.BookID != 40 || rec.Title != "Solaris" {
		t.Errorf("record = %+v", rec)
	}

	// The new book shows up in the tree straight away.
	w = ts.do(t, http.MethodGet, "/vfs/books/40/title", nil)
	node := decode[NodeResponse](t, w)
	if node.Content == nil || *node.Content != "Solaris" {
		t.Errorf("title node = %+v", node)
	}
}

func TestGetRecord_EncodedSlash(t *testing.T) {
	ts := testEnv(t, "")
	ts.do(t, http.MethodPost, "/records", CreateRecordRequest{Path: "sf/solaris.md", Content: recordBody})

	w := ts.do(t, http.MethodGet, "/records/"+url.PathEscape("sf/solaris.md"), nil)
	if w.Code != http.StatusOK {
		t.Errorf("encoded get = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCreateRecord_Duplicate(t *testing.T) {
	ts := testEnv(t, "")
	body := CreateRecordRequest{Path: "dup.md", Content: recordBody}
	if w := ts.do(t, http.MethodPost, "/records", body); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/records", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateRecord_BadPath(t *testing.T) {
	ts := testEnv(t, "")
	w := ts.do(t, http.MethodPost, "/records", CreateRecordRequest{Path: "solaris.txt", Content: recordBody})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad path = %d, want 400", w.Code)
	}
}

func TestUpdateRecord_OptimisticLocking(t *testing.T) {
	ts := testEnv(t, "")
	w := ts.do(t, http.MethodPost, "/records", CreateRecordRequest{Path: "lock.md", Content: recordBody})
	created := decode[RecordDetail](t, w)

	update := func(ifMatch string) int {
		data, _ := json.Marshal(UpdateRecordRequest{Content: "---\nid: 40\ntitle: Solaris (1961)\n---\n"})
		req := httptest.NewRequest(http.MethodPut, "/records/lock.md", bytes.NewReader(data))
		if ifMatch != "" {
			req.Header.Set("If-Match", `"`+ifMatch+`"`)
		}
		rw := httptest.NewRecorder()
		ts.router.ServeHTTP(rw, req)
		return rw.Code
	}

	if code := update("wrong"); code != http.StatusConflict {
		t.Errorf("stale update = %d, want 409", code)
	}
	if code := update(created.Checksum); code != http.StatusOK {
		t.Errorf("matching update = %d, want 200", code)
	}
	if code := update(""); code != http.StatusOK {
		t.Errorf("unconditional update = %d, want 200", code)
	}
}

func TestUpdateRecord_NotFound(t *testing.T) {
	ts := testEnv(t, "")
	w := ts.do(t, http.MethodPut, "/records/ghost.md", UpdateRecordRequest{Content: "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestMoveAndDeleteRecord(t *testing.T) {
	ts := testEnv(t, "")
	ts.do(t, http.MethodPost, "/records", CreateRecordRequest{Path: "solaris.md", Content: recordBody})

	w := ts.do(t, http.MethodPatch, "/records/solaris.md", MoveRecordRequest{Path: "classics/solaris.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	if w := ts.do(t, http.MethodGet, "/records/solaris.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("old path = %d, want 404", w.Code)
	}

	w = ts.do(t, http.MethodDelete, "/records/classics/solaris.md", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/vfs/books/40", nil); w.Code != http.StatusNotFound {
		t.Errorf("deleted book still in tree: %d", w.Code)
	}
}

func TestListRecords(t *testing.T) {
	ts := testEnv(t, "")
	ts.do(t, http.MethodPost, "/records", CreateRecordRequest{Path: "a.md", Content: recordBody})

	w := ts.do(t, http.MethodGet, "/records", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	resp := decode[RecordListResponse](t, w)
	if resp.Total != 1 || resp.Records[0].BookID != 40 {
		t.Errorf("list = %+v", resp)
	}
}

func TestGetNode_Directory(t *testing.T) {
	ts := testEnv(t, "")
	w := ts.do(t, http.MethodGet, "/vfs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("root = %d", w.Code)
	}
	node := decode[NodeResponse](t, w)
	var names []string
	for _, e := range node.Entries {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"books", "authors", "subjects", "tags"}, names); diff != "" {
		t.Errorf("root entries mismatch (-want +got):\n%s", diff)
	}
	if node.Path != "/" {
		t.Errorf("path = %q", node.Path)
	}
}

func TestGetNode_FileAndLink(t *testing.T) {
	ts := testEnv(t, "")

	w := ts.do(t, http.MethodGet, "/vfs/books/7/year", nil)
	node := decode[NodeResponse](t, w)
	if node.Content == nil || *node.Content != "1965" || node.Writable {
		t.Errorf("year node = %+v", node)
	}

	w = ts.do(t, http.MethodGet, "/vfs/books/7/similar/12?nofollow=1", nil)
	node = decode[NodeResponse](t, w)
	if node.Target != "/books/12" {
		t.Errorf("link node = %+v", node)
	}

	w = ts.do(t, http.MethodGet, "/vfs/books/7/similar/12", nil)
	node = decode[NodeResponse](t, w)
	if node.Path != "/books/12" || len(node.Entries) == 0 {
		t.Errorf("followed link = %+v", node)
	}

	if w := ts.do(t, http.MethodGet, "/vfs/books/999", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing node = %d, want 404", w.Code)
	}
}

func TestWriteNode(t *testing.T) {
	ts := testEnv(t, "")

	w := ts.do(t, http.MethodPut, "/vfs/books/7/color", WriteFileRequest{Content: "#ff8800"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("write color = %d, body = %s", w.Code, w.Body.String())
	}
	b, _ := ts.db.GetBook(context.Background(), testutil.DuneID)
	if b.Color != "#ff8800" {
		t.Errorf("color = %q", b.Color)
	}

	w = ts.do(t, http.MethodPut, "/vfs/books/7/title", WriteFileRequest{Content: "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("write read-only = %d, want 400", w.Code)
	}
	if diff := cmp.Diff([]string{"write"}, ts.changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
}

func TestExec(t *testing.T) {
	ts := testEnv(t, "")

	w := ts.do(t, http.MethodPost, "/exec", ExecRequest{Line: "cat title | wc -c", Cwd: "/books/7"})
	if w.Code != http.StatusOK {
		t.Fatalf("exec = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[ExecResponse](t, w)
	if resp.Text != "4" || resp.Cwd != "/books/7" {
		t.Errorf("exec = %+v", resp)
	}

	// Sessions do not outlive a request: cwd starts at "/" again.
	w = ts.do(t, http.MethodPost, "/exec", ExecRequest{Line: "cd similar/12"})
	if w.Code != http.StatusNotFound {
		t.Errorf("relative cd from / = %d, want 404", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/exec", ExecRequest{Line: "cd similar/12", Cwd: "/books/7"})
	if resp := decode[ExecResponse](t, w); resp.Cwd != "/books/12" {
		t.Errorf("cd through link: %+v", resp)
	}
}

func TestExec_Mutations(t *testing.T) {
	ts := testEnv(t, "")

	for _, line := range []string{"mkdir /tags/Work", "ln /books/7 /tags/Work"} {
		if w := ts.do(t, http.MethodPost, "/exec", ExecRequest{Line: line}); w.Code != http.StatusOK {
			t.Fatalf("%s = %d, body = %s", line, w.Code, w.Body.String())
		}
	}
	if diff := cmp.Diff([]string{"mkdir", "ln"}, ts.changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}

	w := ts.do(t, http.MethodPost, "/exec", ExecRequest{Line: "cat /tags/Work/7/title"})
	if resp := decode[ExecResponse](t, w); resp.Text != "Dune" {
		t.Errorf("cat through tag link = %q", resp.Text)
	}

	w = ts.do(t, http.MethodPost, "/exec", ExecRequest{Line: "mkdir /tags/Work/Deep"})
	if w.Code != http.StatusOK {
		t.Fatal(w.Body.String())
	}
	w = ts.do(t, http.MethodPost, "/exec", ExecRequest{Line: "rm /tags/Work"})
	if w.Code != http.StatusConflict {
		t.Errorf("rm tag with children = %d, want 409", w.Code)
	}
}

func TestExec_Errors(t *testing.T) {
	ts := testEnv(t, "")
	cases := []struct {
		line string
		cwd  string
		want int
	}{
		{"cat /nope", "", http.StatusNotFound},
		{"frobnicate", "", http.StatusBadRequest},
		{"echo x > /books/7/title", "", http.StatusBadRequest},
		{"pwd", "/no/such/dir", http.StatusNotFound},
		{"", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := ts.do(t, http.MethodPost, "/exec", ExecRequest{Line: tc.line, Cwd: tc.cwd})
		if w.Code != tc.want {
			t.Errorf("exec %q in %q = %d, want %d (body %s)", tc.line, tc.cwd, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestComplete(t *testing.T) {
	ts := testEnv(t, "")
	w := ts.do(t, http.MethodGet, "/complete?line="+url.QueryEscape("cat /books/7/ti")+"&cwd=/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete = %d", w.Code)
	}
	resp := decode[CompleteResponse](t, w)
	if diff := cmp.Diff([]string{"cat /books/7/title"}, resp.Completions); diff != "" {
		t.Errorf("completions mismatch (-want +got):\n%s", diff)
	}

	w = ts.do(t, http.MethodGet, "/complete?line=zz", nil)
	if resp := decode[CompleteResponse](t, w); resp.Completions == nil || len(resp.Completions) != 0 {
		t.Errorf("no-match completions = %#v", resp.Completions)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	ts := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/vfs/books", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed get = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	ts := testEnv(t, "secret123")
	if w := ts.do(t, http.MethodGet, "/records", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	ts := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/exec", bytes.NewReader([]byte(`{"line":"ls"}`)))
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	ts := testEnv(t, "")
	if w := ts.do(t, http.MethodGet, "/records", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	ts := testEnvWithSSE(t, true, "secret", blockingSSE)
	if w := ts.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	ts := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	ts := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with query token should not 401")
	}
}

func TestAuthMiddleware_QueryTokenOnlyForEventStreams(t *testing.T) {
	ts := testEnv(t, "tok")
	if w := ts.do(t, http.MethodGet, "/records?access_token=tok", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("query token on JSON route = %d, want 401", w.Code)
	}
}
