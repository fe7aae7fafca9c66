package internal

import (
	"io"

	"github.com/starford/mediabin/internal/sequence"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	confirmer sequence.Confirmer
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfirmer overrides the sequence confirmation mode from the config,
// for example with an interactive prompt.
func WithConfirmer(c sequence.Confirmer) Option {
	return func(a *application) {
		a.confirmer = c
	}
}

// WithLogOutput sends logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
