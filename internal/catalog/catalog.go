// Package catalog is the ordered, canonical store of project assets. It owns
// asset identity, path deduplication, the import pipeline and the change feed.
//
// A Catalog is not safe for concurrent use; it is owned by one goroutine (see
// package session).
package catalog

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/starford/mediabin/internal/apperr"
	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/probe"
	"github.com/starford/mediabin/internal/sequence"
)

// Editable field keys accepted by SetField.
const (
	FieldTitle = "title"
	FieldTags  = "tags"
)

// Catalog holds assets in insertion order.
type Catalog struct {
	assets     []models.Asset
	byID       map[string]int
	byPath     map[string]string
	importPath string
	version    uint64

	sub         Subscriber
	subSeq      uint64
	dispatching bool

	prober   probe.Prober
	detector *sequence.Detector
	newID    func() string
	logger   *slog.Logger
}

// New creates an empty catalog.
func New(prober probe.Prober, detector *sequence.Detector, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	if detector == nil {
		detector = sequence.NewDetector(sequence.Always, logger)
	}
	return &Catalog{
		byID:     make(map[string]int),
		byPath:   make(map[string]string),
		prober:   prober,
		detector: detector,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// Len returns the number of assets.
func (c *Catalog) Len() int { return len(c.assets) }

// At returns the asset at position i.
func (c *Catalog) At(i int) models.Asset { return c.assets[i] }

// Get returns the asset with the given id.
func (c *Catalog) Get(id string) (models.Asset, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Asset{}, false
	}
	return c.assets[i], true
}

// IndexOf returns the position of id, or -1.
func (c *Catalog) IndexOf(id string) int {
	if i, ok := c.byID[id]; ok {
		return i
	}
	return -1
}

// ByPath returns the live asset stored under path.
func (c *Catalog) ByPath(path string) (models.Asset, bool) {
	id, ok := c.byPath[path]
	if !ok {
		return models.Asset{}, false
	}
	return c.Get(id)
}

// Snapshot returns a copy of all assets in catalog order.
func (c *Catalog) Snapshot() []models.Asset { return slices.Clone(c.assets) }

// ImportPath returns the directory of the most recent import.
func (c *Catalog) ImportPath() string { return c.importPath }

// Version increases on every mutation.
func (c *Catalog) Version() uint64 { return c.version }

// Delete removes one asset. The remaining assets keep their order.
func (c *Catalog) Delete(id string) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	i, ok := c.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	removed := c.assets[i]
	c.assets = slices.Delete(c.assets, i, i+1)
	delete(c.byID, id)
	delete(c.byPath, removed.Path)
	c.reindex(i)

	c.logger.Debug("catalog: deleted asset", slog.String("id", id), slog.String("path", removed.Path))
	c.emit(Event{Type: EventDelete, ID: id, Index: i})
	return nil
}

// SetField updates an editable field. Setting a field to its current value
// succeeds without emitting an event.
func (c *Catalog) SetField(id, key, value string) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	i, ok := c.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}

	a := &c.assets[i]
	var field *string
	switch key {
	case FieldTitle:
		field = &a.Title
	case FieldTags:
		field = &a.Tags
	default:
		return fmt.Errorf("catalog: %q: %w", key, apperr.ErrFieldNotEditable)
	}
	if *field == value {
		return nil
	}
	*field = value
	c.emit(Event{Type: EventUpdate, ID: id, Key: key, Index: i})
	return nil
}

// Replace swaps the whole catalog, as on project load. Every asset is
// validated first; on error the catalog is left untouched.
func (c *Catalog) Replace(assets []models.Asset, importPath string) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	byID := make(map[string]int, len(assets))
	byPath := make(map[string]string, len(assets))
	for i, a := range assets {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("catalog: asset %d (%q): %w: %w", i, a.ID, apperr.ErrInvalidAsset, err)
		}
		if _, dup := byID[a.ID]; dup {
			return fmt.Errorf("catalog: asset %d: duplicate id %q: %w", i, a.ID, apperr.ErrInvalidAsset)
		}
		if _, dup := byPath[a.Path]; dup {
			return fmt.Errorf("catalog: asset %d: duplicate path %q: %w", i, a.Path, apperr.ErrInvalidAsset)
		}
		byID[a.ID] = i
		byPath[a.Path] = a.ID
	}

	c.assets = slices.Clone(assets)
	c.byID = byID
	c.byPath = byPath
	c.importPath = importPath

	c.logger.Info("catalog: replaced", slog.Int("assets", len(assets)))
	c.emit(Event{Type: EventReset})
	return nil
}

func (c *Catalog) insert(a models.Asset) (int, error) {
	if err := c.checkMutable(); err != nil {
		return 0, err
	}
	if _, dup := c.byPath[a.Path]; dup {
		return 0, fmt.Errorf("catalog: %s: %w", a.Path, apperr.ErrAlreadyExists)
	}
	i := len(c.assets)
	c.assets = append(c.assets, a)
	c.byID[a.ID] = i
	c.byPath[a.Path] = a.ID
	c.emit(Event{Type: EventInsert, ID: a.ID, Index: i})
	return i, nil
}

func (c *Catalog) setImportPath(dir string) {
	if dir == c.importPath {
		return
	}
	c.importPath = dir
	c.version++
}

func (c *Catalog) reindex(from int) {
	for i := from; i < len(c.assets); i++ {
		c.byID[c.assets[i].ID] = i
	}
}
