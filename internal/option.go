package internal

import (
	"io"
	"os"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	out    io.Writer
	errOut io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput sets where command results and diagnostics are written.
// Defaults to stdout and stderr.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *application) {
		a.out = out
		a.errOut = errOut
	}
}

func newApplication(opts []Option) *application {
	app := &application{out: os.Stdout, errOut: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	return app
}
