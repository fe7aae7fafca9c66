package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/mcpserver"
	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/session"
	"github.com/starford/mediabin/internal/storage"
)

// Import adds paths to the project without starting any server and saves it.
// Per-file failures are part of the returned report.
func Import(ctx context.Context, paths []string, opts ...Option) (catalog.Report, error) {
	app, err := newApplication(opts)
	if err != nil {
		return catalog.Report{}, err
	}
	logger := app.newLogger()

	c, err := app.buildCore(nil, logger)
	if err != nil {
		return catalog.Report{}, err
	}
	defer c.Close()

	stop, err := c.start(ctx, logger)
	if err != nil {
		return catalog.Report{}, err
	}
	defer stop()

	job, err := c.sess.Import(ctx, session.ImportRequest{Paths: paths})
	if err != nil {
		return catalog.Report{}, err
	}
	rep, err := c.sess.Wait(ctx, job.ID)
	if err != nil {
		return catalog.Report{}, err
	}

	if c.store != nil {
		if err := c.sess.Save(ctx); err != nil {
			return rep, fmt.Errorf("save project: %w", err)
		}
	}
	logger.Info("Import finished",
		slog.Int("imported", rep.Imported),
		slog.Int("skipped", rep.Skipped))
	return rep, nil
}

// List returns the assets stored in the project, in catalog order.
func List(ctx context.Context, opts ...Option) ([]models.Asset, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger := app.newLogger()

	c, err := app.buildCore(nil, logger)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	stop, err := c.start(ctx, logger)
	if err != nil {
		return nil, err
	}
	defer stop()

	return c.sess.Assets(ctx)
}

// RunMCP serves the MCP tools over stdin/stdout until the client disconnects.
// Logs go to stderr unless WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	c, err := app.buildCore(nil, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	stop, err := c.start(ctx, logger)
	if err != nil {
		return err
	}
	defer stop()

	var inbox storage.Provider
	if cfg.MCP.InboxDir != "" {
		if err := os.MkdirAll(cfg.MCP.InboxDir, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.MCP.InboxDir)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		inbox = fs
	}

	srv := mcpserver.New(c.sess, inbox)
	logger.Info("MCP server listening on stdio", slog.Bool("fetch_media", inbox != nil))
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	if c.store != nil {
		if err := c.sess.Save(ctx); err != nil {
			logger.Warn("save project failed", slog.String("error", err.Error()))
		}
	}
	return nil
}
