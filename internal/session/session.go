// Package session runs the single logical thread that owns the catalog, its
// view projection and the thumbnail resolver. Callers submit closures to the
// loop and wait for them; import batches are processed one file per loop
// iteration so submitted commands are served between files.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/mediabin/internal/apperr"
	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/project"
	"github.com/starford/mediabin/internal/projection"
)

// Events receives everything the session announces to the presentation layer.
// All methods are called on the loop goroutine.
type Events interface {
	projection.Observer
	catalog.ErrorSink
	ImportProgress(job string, p catalog.Progress)
	ImportFinished(job JobStatus)
}

// Options configure a Session.
type Options struct {
	// Store enables Save and Load. Nil leaves the session unpersisted.
	Store *project.Store
	// AutosaveEvery saves a changed catalog periodically. Zero disables it.
	AutosaveEvery time.Duration
	Events        Events
	View          projection.Options
	Logger        *slog.Logger
}

// Session owns the catalog and everything derived from it.
type Session struct {
	cat    *catalog.Catalog
	view   *projection.View
	thumbs projection.Thumbnails
	store  *project.Store
	events Events
	logger *slog.Logger

	autosaveEvery time.Duration
	savedVersion  atomic.Uint64

	cmds    chan func()
	stopped chan struct{}

	// Loop-owned import state.
	jobs    map[string]*job
	order   []string
	queue   []*job
	current *job
	run     *catalog.ImportRun
	jobSeq  int

	published uint64
	snap      atomic.Pointer[snapshot]
}

var ready = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// New builds a session over cat. thumbs may be nil.
func New(cat *catalog.Catalog, thumbs projection.Thumbnails, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Events == nil {
		opts.Events = NopEvents{}
	}
	if opts.View.Logger == nil {
		opts.View.Logger = opts.Logger
	}

	view, err := projection.New(cat, thumbs, opts.Events, opts.View)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s := &Session{
		cat:           cat,
		view:          view,
		thumbs:        thumbs,
		store:         opts.Store,
		events:        opts.Events,
		logger:        opts.Logger,
		autosaveEvery: opts.AutosaveEvery,
		cmds:          make(chan func()),
		stopped:       make(chan struct{}),
		jobs:          make(map[string]*job),
	}
	s.savedVersion.Store(cat.Version())
	s.publishSnapshot()
	return s, nil
}

// Run drives the loop until ctx is cancelled. It must be called once.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.stopped)
	defer s.view.Close()

	var autosave <-chan time.Time
	if s.store != nil && s.autosaveEvery > 0 {
		t := time.NewTicker(s.autosaveEvery)
		defer t.Stop()
		autosave = t.C
	}

	s.logger.Info("session: loop started")
	for {
		var work <-chan struct{}
		if s.active() {
			// Submitted commands go ahead of the next file.
			select {
			case fn := <-s.cmds:
				fn()
				continue
			default:
			}
			work = ready
		}

		select {
		case <-ctx.Done():
			s.shutdown()
			s.logger.Info("session: loop stopped")
			return nil
		case fn := <-s.cmds:
			fn()
		case <-autosave:
			s.saveIfDirty(ctx)
		case <-work:
			s.step(ctx)
		}
		s.publish()
	}
}

func (s *Session) shutdown() {
	s.cancelAll()
	s.publish()
	if s.store != nil && s.autosaveEvery > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.saveIfDirty(ctx)
	}
}

// Do runs fn on the loop and waits for it to return.
func (s *Session) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
		s.publish()
	}

	select {
	case s.cmds <- wrapped:
	case <-s.stopped:
		return fmt.Errorf("session: %w", apperr.ErrClosed)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped is closed once Run has returned.
func (s *Session) Stopped() <-chan struct{} { return s.stopped }

// snapshot is an immutable copy of the catalog published by the loop.
type snapshot struct {
	version uint64
	byID    map[string]models.Asset
	ids     []string
}

func (s *Session) publish() {
	if s.cat.Version() == s.published {
		return
	}
	s.publishSnapshot()
}

func (s *Session) publishSnapshot() {
	assets := s.cat.Snapshot()
	snap := &snapshot{
		version: s.cat.Version(),
		byID:    make(map[string]models.Asset, len(assets)),
		ids:     make([]string, len(assets)),
	}
	for i, a := range assets {
		snap.byID[a.ID] = a
		snap.ids[i] = a.ID
	}
	s.published = snap.version
	s.snap.Store(snap)
}

// Lookup reads the latest published catalog snapshot. It never enters the
// loop and is safe for concurrent use.
type Lookup struct {
	snap *atomic.Pointer[snapshot]
}

// Lookup returns a reader over the published snapshots.
func (s *Session) Lookup() Lookup { return Lookup{snap: &s.snap} }

// Asset returns the asset with id as of the last published snapshot.
func (l Lookup) Asset(id string) (models.Asset, bool) {
	a, ok := l.snap.Load().byID[id]
	return a, ok
}

// IDs returns every asset id in catalog order.
func (l Lookup) IDs() []string {
	return l.snap.Load().ids
}

// Version returns the catalog version of the snapshot.
func (l Lookup) Version() uint64 { return l.snap.Load().version }

// NopEvents drops every notification.
type NopEvents struct{ projection.NopObserver }

func (NopEvents) ReportImportError(string, error)         {}
func (NopEvents) ImportProgress(string, catalog.Progress) {}
func (NopEvents) ImportFinished(JobStatus)                {}
