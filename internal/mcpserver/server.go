// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the shelf shell and catalog for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/shelf/internal/catalog"
	"github.com/starford/shelf/internal/shell"
	"github.com/starford/shelf/internal/vfs"
)

// Resource URIs.
const (
	RecordFormatURI = "shelf://record-format"
	ShellGuideURI   = "shelf://shell-guide"
)

// Server wraps the MCP server with shelf tools. A stdio client gets one
// shell session, so cd persists across vfs_exec calls.
type Server struct {
	mcp *server.MCPServer
	svc *catalog.Service

	mu    sync.Mutex
	shell *shell.Shell
}

// New creates a new MCP server with all shelf tools registered. onChange,
// if non-nil, runs after a tool changes the tree.
func New(fsys *vfs.FS, svc *catalog.Service, onChange func(cmd string)) *Server {
	opts := []shell.Option{}
	if onChange != nil {
		opts = append(opts, shell.WithChangeHook(onChange))
	}
	s := &Server{svc: svc, shell: shell.New(fsys, opts...)}

	s.mcp = server.NewMCPServer(
		"Shelf",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("vfs_exec",
		mcp.WithDescription("Run a shell command line against the library filesystem. "+
			"Supports pipes (|) and redirection to writable files (>). "+
			"Read the shelf://shell-guide resource for the tree layout and commands."),
		mcp.WithString("line", mcp.Required(), mcp.Description("Command line, e.g. find author:herbert | head -n 5")),
	), s.vfsExec)

	s.mcp.AddTool(mcp.NewTool("vfs_ls",
		mcp.WithDescription("Long listing of a directory: kind marker, size or score, name and link target."),
		mcp.WithString("path", mcp.Description("Directory path (defaults to the current directory)")),
	), s.vfsLs)

	s.mcp.AddTool(mcp.NewTool("vfs_cat",
		mcp.WithDescription("Read a file from the library filesystem."),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path, e.g. /books/7/description")),
	), s.vfsCat)

	s.mcp.AddTool(mcp.NewTool("vfs_complete",
		mcp.WithDescription("Complete a partial command line: command names first, then paths."),
		mcp.WithString("line", mcp.Required(), mcp.Description("Partial command line")),
	), s.vfsComplete)

	s.mcp.AddTool(mcp.NewTool("create_record",
		mcp.WithDescription("Create a catalog record and index the book it describes. "+
			"Content MUST follow the record format contract. Read it first via "+
			"the get_record_contract tool or the shelf://record-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new record (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown record following the shelf record format contract")),
	), s.createRecord)

	s.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read the raw Markdown of a catalog record."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the record (e.g. sf/dune.md)")),
	), s.readRecord)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List catalog records with the book id each one produced."),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the catalog record format contract. "+
			"Call this before creating records to ensure correct structure."),
	), s.getRecordContract)

	s.mcp.AddResource(
		mcp.NewResource(RecordFormatURI, "Record Format Contract",
			mcp.WithResourceDescription("Markdown book record format that all catalog records must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		textResource(RecordFormatURI, RecordFormatContract),
	)
	s.mcp.AddResource(
		mcp.NewResource(ShellGuideURI, "Shell Guide",
			mcp.WithResourceDescription("Layout of the library filesystem and the commands that drive it."),
			mcp.WithMIMEType("text/markdown"),
		),
		textResource(ShellGuideURI, ShellGuide),
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func textResource(uri, text string) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      uri,
				MIMEType: "text/markdown",
				Text:     text,
			},
		}, nil
	}
}

// outputResult renders command output. Empty output becomes "ok" so the
// client can tell success from silence.
func outputResult(out *shell.Output, err error) *mcp.CallToolResult {
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	if out.Text == "" {
		return mcp.NewToolResultText("ok")
	}
	return mcp.NewToolResultText(out.Text)
}

func (s *Server) vfsExec(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	line, err := req.RequireString("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.shell.Exec(ctx, line)
	return outputResult(out, err), nil
}

func (s *Server) vfsLs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := []string{"-l"}
	if p := req.GetString("path", ""); p != "" {
		args = append(args, p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.shell.Run(ctx, "ls", args...)
	return outputResult(out, err), nil
}

func (s *Server) vfsCat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.shell.Run(ctx, "cat", p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out.Text), nil
}

func (s *Server) vfsComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	line, err := req.RequireString("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	completions := s.shell.Complete(ctx, line)
	if len(completions) == 0 {
		return mcp.NewToolResultText("no completions"), nil
	}
	return mcp.NewToolResultText(strings.Join(completions, "\n")), nil
}

func (s *Server) createRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.CreateRecord(ctx, path, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s -> %s", path, vfs.BookPath(rec.BookID))), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.GetRecord(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(rec.Content), nil
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListRecords(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no records"), nil
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		if it.BookID == 0 {
			lines = append(lines, it.Path+"  (not indexed)")
			continue
		}
		lines = append(lines, fmt.Sprintf("%s  %s  %s", it.Path, vfs.BookPath(it.BookID), it.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getRecordContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}
