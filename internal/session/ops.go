package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/mediabin/internal/apperr"
	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/project"
	"github.com/starford/mediabin/internal/projection"
)

// ViewState is the visible projection plus its filter and sort settings.
type ViewState struct {
	Rows       []models.Asset     `json:"rows"`
	Total      int                `json:"total"`
	Types      []models.MediaType `json:"types"`
	Text       string             `json:"text"`
	SortColumn int                `json:"sort_column"`
	SortDesc   bool               `json:"sort_desc"`
}

// Status summarises the session.
type Status struct {
	Assets     int        `json:"assets"`
	Visible    int        `json:"visible"`
	ImportPath string     `json:"import_path"`
	Dirty      bool       `json:"dirty"`
	Importing  *JobStatus `json:"importing,omitempty"`
	Queued     int        `json:"queued"`
	Project    string     `json:"project,omitempty"`
}

// Status returns a summary of the catalog, the view and the import queue.
func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.Do(ctx, func() {
		st = Status{
			Assets:     s.cat.Len(),
			Visible:    s.view.Len(),
			ImportPath: s.cat.ImportPath(),
			Dirty:      s.cat.Version() != s.savedVersion.Load(),
			Queued:     len(s.queue),
		}
		if s.current != nil {
			cur := s.current.status
			st.Importing = &cur
		}
		if s.store != nil {
			st.Project = s.store.Path()
		}
	})
	return st, err
}

// Assets returns every asset in catalog order.
func (s *Session) Assets(ctx context.Context) ([]models.Asset, error) {
	var out []models.Asset
	err := s.Do(ctx, func() { out = s.cat.Snapshot() })
	return out, err
}

// Asset returns one asset.
func (s *Session) Asset(ctx context.Context, id string) (models.Asset, error) {
	var (
		a  models.Asset
		ok bool
	)
	if err := s.Do(ctx, func() { a, ok = s.cat.Get(id) }); err != nil {
		return a, err
	}
	if !ok {
		return a, fmt.Errorf("session: asset %s: %w", id, apperr.ErrNotFound)
	}
	return a, nil
}

// Delete removes an asset from the catalog.
func (s *Session) Delete(ctx context.Context, id string) error {
	return s.call(ctx, func() error { return s.cat.Delete(id) })
}

// SetField edits the title or tags of an asset.
func (s *Session) SetField(ctx context.Context, id, key, value string) error {
	return s.call(ctx, func() error { return s.cat.SetField(id, key, value) })
}

// View returns the visible rows and the current view settings.
func (s *Session) View(ctx context.Context) (ViewState, error) {
	var vs ViewState
	err := s.Do(ctx, func() { vs = s.viewState() })
	return vs, err
}

func (s *Session) viewState() ViewState {
	col, desc := s.view.SortOrder()
	return ViewState{
		Rows:       s.view.Rows(),
		Total:      s.cat.Len(),
		Types:      s.view.TypeFilter(),
		Text:       s.view.TextFilter(),
		SortColumn: col,
		SortDesc:   desc,
	}
}

// SetTypeFilter narrows the view to one media type; "" shows all types.
func (s *Session) SetTypeFilter(ctx context.Context, mt models.MediaType) error {
	return s.call(ctx, func() error { return s.view.SetTypeFilter(mt) })
}

// SetTextFilter sets the view's text filter. With fixed the text is matched
// literally, otherwise as a regular expression.
func (s *Session) SetTextFilter(ctx context.Context, text string, fixed bool) error {
	return s.call(ctx, func() error {
		if fixed {
			s.view.SetFixedTextFilter(text)
			return nil
		}
		return s.view.SetTextFilter(text)
	})
}

// Sort orders the view by column; a negative column restores catalog order.
func (s *Session) Sort(ctx context.Context, column int, descending bool) error {
	return s.call(ctx, func() error { return s.view.Sort(column, descending) })
}

// SetCell edits one cell of the view.
func (s *Session) SetCell(ctx context.Context, row, col int, value string) error {
	return s.call(ctx, func() error { return s.view.SetData(row, col, value) })
}

// Export builds the drag payload of the selected cells.
func (s *Session) Export(ctx context.Context, indices []projection.Index) (projection.Selection, error) {
	var sel projection.Selection
	err := s.Do(ctx, func() { sel = s.view.Export(ctx, indices) })
	return sel, err
}

// Thumbnail resolves the preview location of an asset. frame nil selects the
// asset's default frame. ok is false when no preview could be produced.
func (s *Session) Thumbnail(ctx context.Context, id string, frame *int, force bool) (location string, ok bool, err error) {
	var known bool
	err = s.Do(ctx, func() {
		if _, known = s.cat.Get(id); !known || s.thumbs == nil {
			return
		}
		location, ok = s.thumbs.Resolve(ctx, id, frame, force)
	})
	if err != nil {
		return "", false, err
	}
	if !known {
		return "", false, fmt.Errorf("session: asset %s: %w", id, apperr.ErrNotFound)
	}
	return location, ok, nil
}

// Save writes the catalog to the project store.
func (s *Session) Save(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("session: %w", apperr.ErrNoProject)
	}
	var (
		doc     project.Document
		version uint64
	)
	if err := s.Do(ctx, func() { doc, version = s.document() }); err != nil {
		return err
	}
	if err := s.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	s.savedVersion.Store(version)
	s.logger.Info("session: project saved", slog.Int("assets", len(doc.Assets)))
	return nil
}

// Load replaces the catalog with the stored project. Running and queued
// imports are cancelled first. A malformed project leaves the catalog as it
// was.
func (s *Session) Load(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("session: %w", apperr.ErrNoProject)
	}
	doc, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("session: load: %w", err)
	}
	err = s.call(ctx, func() error {
		s.cancelAll()
		if err := s.cat.Replace(doc.Assets, doc.ImportPath); err != nil {
			return err
		}
		s.savedVersion.Store(s.cat.Version())
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: load: %w", err)
	}
	s.logger.Info("session: project loaded", slog.Int("assets", len(doc.Assets)))
	return nil
}

func (s *Session) document() (project.Document, uint64) {
	return project.Document{
		Assets:     s.cat.Snapshot(),
		ImportPath: s.cat.ImportPath(),
	}, s.cat.Version()
}

func (s *Session) saveIfDirty(ctx context.Context) {
	if s.cat.Version() == s.savedVersion.Load() {
		return
	}
	doc, version := s.document()
	if err := s.store.Save(ctx, doc); err != nil {
		s.logger.Warn("session: autosave failed", slog.String("error", err.Error()))
		return
	}
	s.savedVersion.Store(version)
	s.logger.Debug("session: autosaved", slog.Int("assets", len(doc.Assets)))
}

// call runs fn on the loop and returns its error.
func (s *Session) call(ctx context.Context, fn func() error) error {
	var ferr error
	if err := s.Do(ctx, func() { ferr = fn() }); err != nil {
		return err
	}
	return ferr
}
