package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// REPL is the interactive loop around a Shell.
type REPL struct {
	shell       *Shell
	render      *Renderer
	out         io.Writer
	errOut      io.Writer
	prompt      string
	historyFile string
	color       bool
}

// REPLOption configures a REPL.
type REPLOption func(*REPL)

// WithPrompt sets the prompt prefix shown before the current directory.
func WithPrompt(prompt string) REPLOption {
	return func(r *REPL) { r.prompt = prompt }
}

// WithHistoryFile persists line history to path. Empty disables history.
func WithHistoryFile(path string) REPLOption {
	return func(r *REPL) { r.historyFile = path }
}

// WithColor enables styled listings and diagnostics.
func WithColor(color bool) REPLOption {
	return func(r *REPL) { r.color = color }
}

// NewREPL returns a REPL writing results to out and diagnostics to errOut.
func NewREPL(sh *Shell, out, errOut io.Writer, opts ...REPLOption) *REPL {
	r := &REPL{shell: sh, out: out, errOut: errOut, prompt: "shelf"}
	for _, o := range opts {
		o(r)
	}
	r.render = NewRenderer(out, r.color)
	return r
}

// Prompt returns the prompt for the current directory.
func (r *REPL) Prompt() string {
	return fmt.Sprintf("%s:%s$ ", r.prompt, r.shell.Pwd())
}

// Run reads lines until exit, EOF, Ctrl-C or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(input string) []string { return r.Complete(ctx, input) })

	if r.historyFile != "" {
		if f, err := os.Open(r.historyFile); err == nil {
			line.ReadHistory(f) //nolint:errcheck
			f.Close()
		}
	}
	defer r.saveHistory(line)

	fmt.Fprintln(r.out, "shelf: type 'help' for commands, 'exit' to leave.")
	for ctx.Err() == nil {
		input, err := line.Prompt(r.Prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("shell: read input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if r.Handle(ctx, input) {
			return nil
		}
	}
	return nil
}

func (r *REPL) saveHistory(line *liner.State) {
	if r.historyFile == "" {
		return
	}
	if f, err := os.Create(r.historyFile); err == nil {
		line.WriteHistory(f) //nolint:errcheck
		f.Close()
	}
}

// Handle runs one line, prints its result or diagnostic, and reports
// whether the session should end. Failures never end the session.
func (r *REPL) Handle(ctx context.Context, input string) bool {
	out, err := r.shell.Exec(ctx, input)
	if err != nil {
		fmt.Fprintln(r.errOut, r.render.Error(err))
		return false
	}
	if out.Text != "" {
		fmt.Fprintln(r.out, r.render.Output(out))
	}
	return out.Exit
}

// Complete returns full-line completions for input.
func (r *REPL) Complete(ctx context.Context, input string) []string {
	return r.shell.Complete(ctx, input)
}
