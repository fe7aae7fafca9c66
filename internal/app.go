package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/probe"
	"github.com/starford/mediabin/internal/project"
	"github.com/starford/mediabin/internal/projection"
	"github.com/starford/mediabin/internal/sequence"
	"github.com/starford/mediabin/internal/session"
	"github.com/starford/mediabin/internal/thumbnail"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logOutput == nil {
		app.logOutput = os.Stdout
	}
	if app.confirmer == nil {
		app.confirmer = sequence.Always
		if app.config.Sequences.Confirm == ConfirmNever {
			app.confirmer = sequence.Never
		}
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// core is the catalog, its session and the project store it persists to.
type core struct {
	store *project.Store
	cat   *catalog.Catalog
	sess  *session.Session
}

func (c *core) Close() {
	if c.store != nil {
		_ = c.store.Close()
	}
}

// buildCore opens the project and assembles a session over a fresh catalog.
// The session loop is not started.
func (a *application) buildCore(events session.Events, logger *slog.Logger) (*core, error) {
	cfg := a.config

	var store *project.Store
	if cfg.Project.Path != "" {
		s, err := project.Open(cfg.Project.Path)
		if err != nil {
			return nil, fmt.Errorf("open project: %w", err)
		}
		store = s
	}

	prober := probe.NewFFprobe(cfg.Probe.Binary, cfg.Probe.Timeout)
	cat := catalog.New(prober, sequence.NewDetector(a.confirmer, logger), logger)

	client, err := thumbnail.NewClient(cfg.Thumbnails.BaseURL(), cfg.Thumbnails.Timeout)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("thumbnail client: %w", err)
	}
	resolver := thumbnail.NewResolver(client, cat, cfg.Thumbnails.Timeout, logger)

	sess, err := session.New(cat, resolver, session.Options{
		Store:         store,
		AutosaveEvery: cfg.Project.Autosave,
		Events:        events,
		View: projection.Options{
			Scheme:   cfg.View.Scheme,
			Language: cfg.View.Tag(),
			Logger:   logger,
		},
		Logger: logger,
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("init session: %w", err)
	}
	return &core{store: store, cat: cat, sess: sess}, nil
}

// start runs the session loop in the background and restores the project.
// The returned function stops the loop and waits for it.
func (c *core) start(ctx context.Context, logger *slog.Logger) (stop func(), err error) {
	loopCtx, cancel := context.WithCancel(ctx)
	go func() {
		_ = c.sess.Run(loopCtx)
	}()
	stop = func() {
		cancel()
		<-c.sess.Stopped()
	}
	if err := c.restore(ctx, logger); err != nil {
		stop()
		return nil, err
	}
	return stop, nil
}

func (c *core) restore(ctx context.Context, logger *slog.Logger) error {
	if c.store == nil {
		return nil
	}
	if err := c.sess.Load(ctx); err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	st, err := c.sess.Status(ctx)
	if err != nil {
		return err
	}
	logger.Info("Project loaded",
		slog.String("path", c.store.Path()),
		slog.Int("assets", st.Assets))
	return nil
}
