// Package shell runs Unix-like command lines against the virtual filesystem.
//
// Handlers never print. Each returns an Output and the caller (the REPL,
// the exec subcommand, the HTTP and MCP front-ends) decides how to render
// it. Pipelines feed one stage's Output.Text to the next stage as stdin.
package shell

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/shelf/internal/apperr"
	"github.com/starford/shelf/internal/vfs"
)

// Call is one invocation of a command.
type Call struct {
	Name string
	Args []string
	// Stdin holds the previous pipeline stage's output, or nil when the
	// command is not fed by a pipe.
	Stdin *string
}

// Entry is one listed node, kept alongside the plain text so a terminal
// front-end can style it.
type Entry struct {
	Name   string   `json:"name"`
	Kind   vfs.Kind `json:"kind"`
	Target string   `json:"target,omitempty"`
	Color  string   `json:"color,omitempty"`
}

// Output is what a command produces.
type Output struct {
	Text    string  `json:"text"`
	Entries []Entry `json:"entries,omitempty"`
	// Exit asks an interactive driver to end the session.
	Exit bool `json:"exit,omitempty"`
}

// Handler runs a command.
type Handler func(ctx context.Context, c *Call) (*Output, error)

// Command is a named handler with its help text.
type Command struct {
	Name  string
	Usage string
	Short string
	Run   Handler
	// Mutates marks commands that change the catalog.
	Mutates bool
}

// CommandError is a failed command. It renders as "<cmd>: <message>".
type CommandError struct {
	Cmd string
	Err error
}

func (e *CommandError) Error() string { return e.Cmd + ": " + e.Err.Error() }

func (e *CommandError) Unwrap() error { return e.Err }

// PipelineError reports the stage that stopped a pipeline. It matches
// apperr.ErrPipelineStage and the stage's own error.
type PipelineError struct {
	Stage int
	Err   *CommandError
}

func (e *PipelineError) Error() string { return e.Err.Error() }

func (e *PipelineError) Unwrap() []error { return []error{apperr.ErrPipelineStage, e.Err} }

// Shell is one session: a current directory and a command registry. It is
// not safe for concurrent use; give each client its own Shell over a shared
// vfs.FS.
type Shell struct {
	fs       *vfs.FS
	cwd      vfs.Node
	commands map[string]*Command
	logger   *slog.Logger
	onChange func(cmd string)
}

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the logger used for command tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// WithChangeHook registers fn to run after a mutating command or a
// redirection succeeds. It receives the command name.
func WithChangeHook(fn func(cmd string)) Option {
	return func(s *Shell) { s.onChange = fn }
}

// New returns a shell at "/" with the built-in commands registered.
func New(fs *vfs.FS, opts ...Option) *Shell {
	s := &Shell{
		fs:       fs,
		cwd:      fs.Root(),
		commands: make(map[string]*Command),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.registerBuiltins()
	return s
}

// Register adds or replaces a command.
func (s *Shell) Register(c *Command) {
	s.commands[c.Name] = c
}

// Commands returns the registered commands ordered by name.
func (s *Shell) Commands() []*Command {
	out := make([]*Command, 0, len(s.commands))
	for _, c := range s.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FS returns the filesystem the shell operates on.
func (s *Shell) FS() *vfs.FS { return s.fs }

// Cwd returns the current directory.
func (s *Shell) Cwd() vfs.Node { return s.cwd }

// Pwd returns the absolute path of the current directory.
func (s *Shell) Pwd() string { return vfs.Path(s.cwd) }

// Exec runs one command line. A line may be a pipeline, and may end in a
// redirection to a writable file, which receives the output with its
// trailing newline removed. A failed stage stops the line; its error is a
// *CommandError, wrapped in a *PipelineError when the line has more than
// one stage.
func (s *Shell) Exec(ctx context.Context, line string) (*Output, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return &Output{}, nil
	}
	s.logger.Debug("exec", slog.String("line", line), slog.String("cwd", s.Pwd()))

	command, target, redirect, err := splitRedirect(line)
	if err != nil {
		return nil, &CommandError{Cmd: firstWord(line), Err: err}
	}
	out, err := s.pipeline(ctx, command)
	if err != nil || !redirect {
		return out, err
	}
	text := strings.TrimSuffix(out.Text, "\n")
	if err := s.fs.WriteFile(ctx, target, s.cwd, text); err != nil {
		return nil, &CommandError{Cmd: firstWord(command), Err: err}
	}
	s.changed(firstWord(command))
	return &Output{}, nil
}

func (s *Shell) pipeline(ctx context.Context, line string) (*Output, error) {
	stages, err := splitPipeline(line)
	if err != nil {
		return nil, &CommandError{Cmd: firstWord(line), Err: err}
	}
	if len(stages) == 1 {
		out, cerr := s.run(ctx, stages[0], nil)
		if cerr != nil {
			return nil, cerr
		}
		return out, nil
	}

	var stdin *string
	var out *Output
	for i, stage := range stages {
		var cerr *CommandError
		out, cerr = s.run(ctx, stage, stdin)
		if cerr != nil {
			return nil, &PipelineError{Stage: i, Err: cerr}
		}
		text := out.Text
		stdin = &text
	}
	return out, nil
}

func (s *Shell) run(ctx context.Context, raw string, stdin *string) (*Output, *CommandError) {
	words, err := tokenize(raw)
	if err != nil {
		return nil, &CommandError{Cmd: firstWord(raw), Err: err}
	}
	if len(words) == 0 {
		return nil, &CommandError{Cmd: "shell", Err: fmt.Errorf("%w: empty command", apperr.ErrInvalidArgument)}
	}
	return s.call(ctx, words[0], words[1:], stdin)
}

// Run invokes one command with arguments that are already split. Nothing
// is tokenized, so arguments may hold spaces, quotes, pipes or ">".
func (s *Shell) Run(ctx context.Context, name string, args ...string) (*Output, error) {
	out, cerr := s.call(ctx, name, args, nil)
	if cerr != nil {
		return nil, cerr
	}
	return out, nil
}

func (s *Shell) call(ctx context.Context, name string, args []string, stdin *string) (*Output, *CommandError) {
	cmd, ok := s.commands[name]
	if !ok {
		return nil, &CommandError{Cmd: name, Err: errCommandNotFound}
	}
	out, err := cmd.Run(ctx, &Call{Name: name, Args: args, Stdin: stdin})
	if err != nil {
		return nil, &CommandError{Cmd: name, Err: err}
	}
	if out == nil {
		out = &Output{}
	}
	if cmd.Mutates {
		s.refreshCwd(ctx)
		s.changed(cmd.Name)
	}
	return out, nil
}

// refreshCwd rebuilds the current directory after a mutation. A renamed
// tag is followed to its new path; a deleted one leaves the shell in the
// nearest directory that still exists.
func (s *Shell) refreshCwd(ctx context.Context) {
	lib := s.fs.Library()
	for n := s.cwd; n != nil; n = n.Parent() {
		p := vfs.Path(n)
		if td, ok := n.(vfs.TagNode); ok {
			tag, err := lib.GetTagByID(ctx, td.Tag().ID)
			if err != nil || tag == nil {
				continue
			}
			p = vfs.TagPath(tag.Path)
		}
		fresh, err := s.fs.Resolve(ctx, p, nil, true)
		if err == nil && fresh != nil && vfs.IsDir(fresh) {
			if p != s.Pwd() {
				s.logger.Debug("cwd moved", slog.String("from", s.Pwd()), slog.String("to", p))
			}
			s.cwd = fresh
			return
		}
	}
	s.cwd = s.fs.Root()
}

func (s *Shell) changed(cmd string) {
	s.logger.Info("catalog changed", slog.String("command", cmd))
	if s.onChange != nil {
		s.onChange(cmd)
	}
}

func firstWord(line string) string {
	if f := strings.Fields(line); len(f) > 0 {
		return f[0]
	}
	return "shell"
}

// Complete returns full-line completions for input: command names for the
// first word of a pipeline stage, VFS paths for any later word.
func (s *Shell) Complete(ctx context.Context, input string) []string {
	stageStart := strings.LastIndex(input, "|") + 1
	stage := input[stageStart:]
	cut := strings.LastIndexAny(input, " \t") + 1
	if cut < stageStart {
		cut = stageStart
	}
	head, word := input[:cut], input[cut:]

	var out []string
	if strings.TrimSpace(stage) == word {
		for _, c := range s.Commands() {
			if strings.HasPrefix(c.Name, word) {
				out = append(out, head+c.Name+" ")
			}
		}
		return out
	}
	paths, err := s.fs.CompletePath(ctx, word, s.cwd)
	if err != nil {
		return nil
	}
	for _, p := range paths {
		out = append(out, head+p)
	}
	return out
}
