// Package thumbnail resolves preview image locations for catalogued assets
// through the thumbnail service and caches them per asset.
package thumbnail

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/starford/mediabin/internal/models"
)

// Service locates (rendering on demand) the preview image of one frame.
type Service interface {
	Locate(ctx context.Context, id string, frame int, force bool) (string, error)
}

// AssetSource looks assets up by id.
type AssetSource interface {
	Get(id string) (models.Asset, bool)
}

type entry struct {
	location string
	frame    int
}

// Resolver caches resolved locations keyed by asset id. It is not safe for
// concurrent use.
type Resolver struct {
	svc     Service
	assets  AssetSource
	timeout time.Duration
	logger  *slog.Logger
	cache   map[string]entry
}

// NewResolver creates a resolver. timeout bounds each service call; zero
// leaves it to the service.
func NewResolver(svc Service, assets AssetSource, timeout time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		svc:     svc,
		assets:  assets,
		timeout: timeout,
		logger:  logger,
		cache:   make(map[string]entry),
	}
}

// DefaultFrame returns the frame shown for an asset: the frame at its start
// offset when it has one, otherwise the first frame.
func DefaultFrame(a models.Asset) int {
	if a.Metadata.Start == nil {
		return 1
	}
	return int(math.Round(*a.Metadata.Start*a.Metadata.FPS.Float())) + 1
}

// Resolve returns the preview location for id. frame overrides the default
// frame when non-nil. Failures are logged and reported as ok == false.
func (r *Resolver) Resolve(ctx context.Context, id string, frame *int, force bool) (location string, ok bool) {
	target := 1
	if frame != nil {
		target = *frame
	} else if a, found := r.assets.Get(id); found {
		target = DefaultFrame(a)
	}

	if e, hit := r.cache[id]; hit && !force && e.frame == target {
		return e.location, true
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	loc, err := r.svc.Locate(ctx, id, target, force)
	if err != nil {
		r.logger.Warn("thumbnail: unavailable",
			slog.String("id", id), slog.Int("frame", target), slog.String("error", err.Error()))
		return "", false
	}
	r.cache[id] = entry{location: loc, frame: target}
	return loc, true
}

// InvalidateAll drops every cached location.
func (r *Resolver) InvalidateAll() {
	clear(r.cache)
}

// Len returns the number of cached entries.
func (r *Resolver) Len() int { return len(r.cache) }
