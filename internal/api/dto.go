package api

import (
	"github.com/starford/shelf/internal/catalog"
	"github.com/starford/shelf/internal/shell"
	"github.com/starford/shelf/internal/vfs"
)

// CreateRecordRequest is the request body for creating a catalog record.
type CreateRecordRequest struct {
	Path    string `json:"path" example:"sf/dune.md" validate:"required"`
	Content string `json:"content" example:"---\ntitle: Dune\n---\n" validate:"required"`
}

// UpdateRecordRequest is the request body for replacing a catalog record.
type UpdateRecordRequest struct {
	Content string `json:"content" example:"---\ntitle: Dune Messiah\n---\n" validate:"required"`
}

// MoveRecordRequest is the request body for renaming a catalog record.
type MoveRecordRequest struct {
	Path string `json:"path" example:"classics/dune.md" validate:"required"`
}

// RecordDetail is the full record response type (aliased from the domain layer).
type RecordDetail = catalog.RecordDetail

// RecordListItem is a lightweight item in a list response (aliased from the domain layer).
type RecordListItem = catalog.RecordListItem

// RecordListResponse wraps record listings.
type RecordListResponse struct {
	Records []RecordListItem `json:"records" validate:"required"`
	Total   int              `json:"total" example:"42" validate:"required"`
}

// ExecRequest runs one command line. Cwd is the directory the line runs
// in; it defaults to "/".
type ExecRequest struct {
	Line string `json:"line" example:"ls /tags | sort -r" validate:"required"`
	Cwd  string `json:"cwd,omitempty" example:"/books/7"`
}

// ExecResponse carries a command's output and the directory the session
// ended in, so a client can thread cd across requests.
type ExecResponse struct {
	Text    string        `json:"text"`
	Entries []shell.Entry `json:"entries,omitempty"`
	Cwd     string        `json:"cwd" example:"/books/7"`
}

// NodeResponse describes one VFS node. Directories carry Entries and
// files carry Content.
type NodeResponse struct {
	Path     string        `json:"path" example:"/books/7/title"`
	Kind     vfs.Kind      `json:"kind" example:"file"`
	Target   string        `json:"target,omitempty"`
	Writable bool          `json:"writable,omitempty"`
	Content  *string       `json:"content,omitempty"`
	Entries  []shell.Entry `json:"entries,omitempty"`
}

// WriteFileRequest replaces the content of a writable VFS file.
type WriteFileRequest struct {
	Content string `json:"content" example:"Books to read this winter"`
}

// CompleteResponse lists path completions.
type CompleteResponse struct {
	Completions []string `json:"completions"`
}
