// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mediabin/internal/api"
	"github.com/starford/mediabin/internal/session"
	"github.com/starford/mediabin/internal/sse"
	"github.com/starford/mediabin/internal/storage"
	"github.com/starford/mediabin/internal/thumbsvc"
	"github.com/starford/mediabin/internal/watchfolder"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("project_path", cfg.Project.Path),
		slog.String("thumbnails", cfg.Thumbnails.BaseURL()),
		slog.Int("watch_folders", len(cfg.Watch.Folders)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker feeds the presentation layer.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.buildCore(sse.NewNotifier(broker), logger)
	if err != nil {
		return err
	}
	defer c.Close()

	// Built-in thumbnail service reads assets from the session snapshot.
	var thumbs *thumbsvc.Server
	var thumbServer *http.Server
	if cfg.Thumbnails.Listen != "" {
		if err := os.MkdirAll(cfg.Thumbnails.CacheDir, 0o755); err != nil {
			return fmt.Errorf("create thumbnail cache dir: %w", err)
		}
		cache, err := storage.NewFS(cfg.Thumbnails.CacheDir)
		if err != nil {
			return fmt.Errorf("init thumbnail cache: %w", err)
		}
		render := thumbsvc.NewFFmpeg(cfg.Thumbnails.FFmpeg, cfg.Thumbnails.Width, cfg.Thumbnails.Timeout)
		thumbs = thumbsvc.New(c.sess.Lookup(), cache, render, logger)
		thumbServer = &http.Server{
			Addr:    cfg.Thumbnails.Listen,
			Handler: thumbs.Handler(),
		}
	}

	apiRouter := api.NewRouter(c.sess, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.sess.Status(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Session loop owns the catalog; everything else talks to it.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	g.Go(func() error {
		return c.sess.Run(loopCtx)
	})

	if err := c.restore(gCtx, logger); err != nil {
		stopLoop()
		_ = g.Wait()
		return err
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Background workers stop with the servers.
	runCtx, stopRun := context.WithCancel(gCtx)
	defer stopRun()

	if thumbServer != nil {
		g.Go(func() error {
			logger.Info("Starting thumbnail service", slog.String("address", thumbServer.Addr))
			if err := thumbServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("thumbnail server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			thumbs.PruneEvery(runCtx, cfg.Thumbnails.PruneInterval)
			return nil
		})
	}

	// Watch folders feed quiet imports.
	if len(cfg.Watch.Folders) > 0 {
		g.Go(func() error {
			return watchfolder.Watch(runCtx, cfg.Watch.Folders, func(ctx context.Context, paths []string) error {
				job, err := c.sess.Import(ctx, session.ImportRequest{Paths: paths, Quiet: true})
				if err != nil {
					return err
				}
				logger.Info("Watch folder import queued",
					slog.String("job", job.ID), slog.Int("files", len(paths)))
				return nil
			}, watchfolder.Options{
				Debounce:     cfg.Watch.Debounce,
				Extensions:   cfg.Watch.Extensions,
				ScanExisting: cfg.Watch.ScanExisting,
				Logger:       logger,
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		if thumbServer != nil {
			if err := thumbServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Thumbnail server shutdown error", slog.String("error", err.Error()))
			}
		}

		stopRun()
		// Stopping the loop cancels imports and autosaves the project.
		stopLoop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
