// Package thumbsvc is the local thumbnail service. It renders asset frames on
// demand into a file cache and answers with the cached image location.
//
// The service never touches the catalog directly: it reads assets through a
// Lookup, which in the application is an immutable snapshot published by the
// session loop.
package thumbsvc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/starford/mediabin/internal/checksum"
	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/storage"
)

// Lookup resolves asset ids.
type Lookup interface {
	Asset(id string) (models.Asset, bool)
}

// ErrUnknownAsset is returned for ids the lookup does not know.
var ErrUnknownAsset = errors.New("thumbsvc: unknown asset")

// Server renders and caches thumbnails.
type Server struct {
	lookup Lookup
	store  storage.Provider
	render Renderer
	logger *slog.Logger
	group  singleflight.Group
}

// New creates a thumbnail server.
func New(lookup Lookup, store storage.Provider, render Renderer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{lookup: lookup, store: store, render: render, logger: logger}
}

// Handler returns the service routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/thumbnails/{id}/{frame}/path/", s.handleLocate(false))
	r.Get("/thumbnails/{id}/{frame}/path/no-cache/", s.handleLocate(true))
	r.Get("/thumbnails/{id}/{frame}/", s.handleImage)
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func cacheKey(id string, frame int) string {
	return id + "/" + strconv.Itoa(frame) + ".png"
}

// Ensure renders the frame unless it is cached (or force is set) and returns
// its absolute location.
func (s *Server) Ensure(ctx context.Context, id string, frame int, force bool) (string, error) {
	a, ok := s.lookup.Asset(id)
	if !ok {
		return "", ErrUnknownAsset
	}
	key := cacheKey(a.ID, frame)

	if !force {
		if _, err := s.store.Stat(key); err == nil {
			return s.store.Abs(key)
		}
	}

	_, err, shared := s.group.Do(key, func() (any, error) {
		img, err := s.render.Render(ctx, a, frame)
		if err != nil {
			return nil, err
		}
		return nil, s.store.Write(key, img)
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("thumbsvc: rendered",
		slog.String("id", id), slog.Int("frame", frame), slog.Bool("shared", shared))
	return s.store.Abs(key)
}

// Prune removes cached frames of assets the lookup no longer knows.
func (s *Server) Prune() (int, error) {
	entries, err := s.store.List("")
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		id, _, ok := strings.Cut(strings.ReplaceAll(e.Path, "\\", "/"), "/")
		if !ok {
			continue
		}
		if _, live := s.lookup.Asset(id); live {
			continue
		}
		if err := s.store.Delete(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// PruneEvery runs Prune on a ticker until ctx is done.
func (s *Server) PruneEvery(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune()
			if err != nil {
				s.logger.Warn("thumbsvc: prune failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				s.logger.Info("thumbsvc: pruned thumbnails", slog.Int("removed", n))
			}
		}
	}
}

func parseFrame(r *http.Request) (int, error) {
	frame, err := strconv.Atoi(chi.URLParam(r, "frame"))
	if err != nil || frame < 1 {
		return 0, fmt.Errorf("invalid frame %q", chi.URLParam(r, "frame"))
	}
	return frame, nil
}

func (s *Server) handleLocate(force bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, err := parseFrame(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		loc, err := s.Ensure(r.Context(), chi.URLParam(r, "id"), frame, force)
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(loc))
	}
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	frame, err := parseFrame(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.Ensure(r.Context(), id, frame, false); err != nil {
		s.writeError(w, err)
		return
	}
	img, err := s.store.Read(cacheKey(id, frame))
	if err != nil {
		s.writeError(w, err)
		return
	}
	etag := checksum.ETag(img)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if checksum.Matches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrUnknownAsset) {
		http.Error(w, "asset not found", http.StatusNotFound)
		return
	}
	s.logger.Warn("thumbsvc: request failed", slog.String("error", err.Error()))
	http.Error(w, "thumbnail unavailable", http.StatusBadGateway)
}
