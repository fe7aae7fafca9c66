// Package projection derives the filtered, sorted and editable row view that
// the presentation layer reads. It follows the catalog through its change
// feed and never mutates assets except through Catalog.SetField.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/starford/mediabin/internal/apperr"
	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/models"
)

// Source is the catalog surface the view reads and edits through.
type Source interface {
	Len() int
	At(i int) models.Asset
	Get(id string) (models.Asset, bool)
	IndexOf(id string) int
	SetField(id, key, value string) error
	Subscribe(sub catalog.Subscriber) (func(), error)
}

// Thumbnails resolves preview locations.
type Thumbnails interface {
	Resolve(ctx context.Context, id string, frame *int, force bool) (string, bool)
	InvalidateAll()
}

// Observer is told how visible rows changed. Ranges are inclusive. An edit
// that moves a sorted row is reported as a removal and an insertion followed
// by RowChanged at the new position.
type Observer interface {
	RowsReset()
	RowsInserted(first, last int)
	RowsRemoved(first, last int)
	RowChanged(row int, scope Scope, firstCol, lastCol int)
}

// Options configure a View.
type Options struct {
	// Scheme prefixes exported resource locators: <scheme>://file/<id>.
	Scheme string
	// Language selects the sort collation. Defaults to English.
	Language language.Tag
	Logger   *slog.Logger
}

// View is a filtered, sorted projection of the catalog. It is not safe for
// concurrent use.
type View struct {
	src    Source
	thumbs Thumbnails
	obs    Observer
	scheme string
	logger *slog.Logger

	types    map[models.MediaType]bool
	textExpr string
	text     *regexp.Regexp

	sortCol  int
	sortDesc bool
	collator *collate.Collator

	rows        []string // visible asset ids in display order
	unsubscribe func()
}

// New builds a view and attaches it to the source's change feed. It fails
// with apperr.ErrFeedBusy when another view already follows the source.
func New(src Source, thumbs Thumbnails, obs Observer, opts Options) (*View, error) {
	if opts.Scheme == "" {
		opts.Scheme = "mediabin"
	}
	if opts.Language == language.Und {
		opts.Language = language.English
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if obs == nil {
		obs = NopObserver{}
	}
	v := &View{
		src:      src,
		thumbs:   thumbs,
		obs:      obs,
		scheme:   opts.Scheme,
		logger:   opts.Logger,
		sortCol:  -1,
		collator: collate.New(opts.Language),
	}
	v.types = allTypes()

	unsubscribe, err := src.Subscribe(v)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	v.unsubscribe = unsubscribe
	v.rows = v.derive()
	return v, nil
}

// Close detaches the view from the change feed.
func (v *View) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
}

func allTypes() map[models.MediaType]bool {
	m := make(map[models.MediaType]bool, len(models.MediaTypes))
	for _, mt := range models.MediaTypes {
		m[mt] = true
	}
	return m
}

// SetTypeFilter narrows the view to one media type; "" accepts all three.
func (v *View) SetTypeFilter(mt models.MediaType) error {
	if mt == "" {
		v.types = allTypes()
	} else {
		if _, err := models.ParseMediaType(string(mt)); err != nil {
			return fmt.Errorf("projection: %w: %w", apperr.ErrInvalidFilter, err)
		}
		v.types = map[models.MediaType]bool{mt: true}
	}
	v.reset()
	return nil
}

// TypeFilter returns the accepted media types in display order.
func (v *View) TypeFilter() []models.MediaType {
	var out []models.MediaType
	for _, mt := range models.MediaTypes {
		if v.types[mt] {
			out = append(out, mt)
		}
	}
	return out
}

// SetTextFilter matches pattern, a regular expression, case-insensitively
// against title and tags. An empty pattern matches everything. On a bad
// pattern the current filter is kept.
func (v *View) SetTextFilter(pattern string) error {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile("(?i)" + pattern)
		if err != nil {
			return fmt.Errorf("projection: %w: %w", apperr.ErrInvalidFilter, err)
		}
	}
	v.textExpr = pattern
	v.text = re
	v.reset()
	return nil
}

// SetFixedTextFilter filters on a literal substring.
func (v *View) SetFixedTextFilter(s string) {
	if s == "" {
		_ = v.SetTextFilter("")
		return
	}
	_ = v.SetTextFilter(regexp.QuoteMeta(s))
}

// TextFilter returns the current pattern.
func (v *View) TextFilter() string { return v.textExpr }

// Sort orders rows by the display value of column, ties kept in catalog
// order. A negative column restores catalog order.
func (v *View) Sort(column int, descending bool) error {
	if column >= NumColumns {
		return fmt.Errorf("projection: sort column %d: %w", column, apperr.ErrInvalidFilter)
	}
	v.sortCol = max(column, -1)
	v.sortDesc = descending
	v.reset()
	return nil
}

// SortOrder returns the sort column (-1 for none) and direction.
func (v *View) SortOrder() (column int, descending bool) { return v.sortCol, v.sortDesc }

// Accepts reports whether a passes both filter axes.
func (v *View) Accepts(a models.Asset) bool {
	if !v.types[a.MediaType] {
		return false
	}
	if v.text == nil {
		return true
	}
	return v.text.MatchString(a.DisplayTitle()) || v.text.MatchString(a.Tags)
}

func (v *View) derive() []string {
	rows := make([]string, 0, v.src.Len())
	for i := 0; i < v.src.Len(); i++ {
		if a := v.src.At(i); v.Accepts(a) {
			rows = append(rows, a.ID)
		}
	}
	if v.sortCol >= 0 {
		sort.SliceStable(rows, func(i, j int) bool { return v.less(rows[i], rows[j]) })
	}
	return rows
}

func (v *View) reset() {
	v.rows = v.derive()
	v.obs.RowsReset()
}

// less orders two visible ids by the sort column, then by catalog position.
func (v *View) less(x, y string) bool {
	if v.sortCol >= 0 {
		ax, _ := v.src.Get(x)
		ay, _ := v.src.Get(y)
		c := v.collator.CompareString(Value(ax, v.sortCol), Value(ay, v.sortCol))
		if v.sortDesc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
	}
	return v.src.IndexOf(x) < v.src.IndexOf(y)
}

// insertPos returns where id belongs among the current rows.
func (v *View) insertPos(id string) int {
	return sort.Search(len(v.rows), func(i int) bool { return v.less(id, v.rows[i]) })
}

func (v *View) rowOf(id string) int {
	return slices.Index(v.rows, id)
}

// CatalogChanged implements catalog.Subscriber.
func (v *View) CatalogChanged(ev catalog.Event) {
	switch ev.Type {
	case catalog.EventReset:
		if v.thumbs != nil {
			v.thumbs.InvalidateAll()
		}
		v.reset()

	case catalog.EventInsert:
		a, ok := v.src.Get(ev.ID)
		if !ok || !v.Accepts(a) {
			return
		}
		v.insertRow(ev.ID)

	case catalog.EventDelete:
		v.removeRow(ev.ID)

	case catalog.EventUpdate:
		v.updateRow(ev)
	}
}

func (v *View) insertRow(id string) {
	pos := v.insertPos(id)
	v.rows = slices.Insert(v.rows, pos, id)
	v.obs.RowsInserted(pos, pos)
}

func (v *View) removeRow(id string) {
	pos := v.rowOf(id)
	if pos < 0 {
		return
	}
	v.rows = slices.Delete(v.rows, pos, pos+1)
	v.obs.RowsRemoved(pos, pos)
}

func (v *View) updateRow(ev catalog.Event) {
	a, ok := v.src.Get(ev.ID)
	if !ok {
		return
	}
	pos := v.rowOf(ev.ID)
	visible := v.Accepts(a)

	switch {
	case pos < 0 && visible:
		v.insertRow(ev.ID)
		return
	case pos >= 0 && !visible:
		v.removeRow(ev.ID)
		return
	case pos < 0:
		return
	}

	// Still visible: move it if the edit changed its sort position.
	if v.sortCol >= 0 {
		rest := slices.Delete(slices.Clone(v.rows), pos, pos+1)
		target := sort.Search(len(rest), func(i int) bool { return v.less(ev.ID, rest[i]) })
		if target != pos {
			v.rows = slices.Insert(rest, target, ev.ID)
			v.obs.RowsRemoved(pos, pos)
			v.obs.RowsInserted(target, target)
			pos = target
		}
	}

	f, ok := FieldByKey(ev.Key)
	if ok && f.Scope == ScopeCell {
		v.obs.RowChanged(pos, ScopeCell, f.Column, f.Column)
		return
	}
	v.obs.RowChanged(pos, ScopeRow, 0, NumColumns-1)
}

// Len returns the number of visible rows.
func (v *View) Len() int { return len(v.rows) }

// Row returns the asset shown at row.
func (v *View) Row(row int) (models.Asset, error) {
	if row < 0 || row >= len(v.rows) {
		return models.Asset{}, fmt.Errorf("projection: row %d: %w", row, apperr.ErrNotFound)
	}
	a, ok := v.src.Get(v.rows[row])
	if !ok {
		return models.Asset{}, fmt.Errorf("projection: row %d: %w", row, apperr.ErrNotFound)
	}
	return a, nil
}

// Rows returns every visible asset in display order.
func (v *View) Rows() []models.Asset {
	out := make([]models.Asset, 0, len(v.rows))
	for _, id := range v.rows {
		if a, ok := v.src.Get(id); ok {
			out = append(out, a)
		}
	}
	return out
}

// Data returns the text of one cell.
func (v *View) Data(row, col int) (string, error) {
	if col < 0 || col >= NumColumns {
		return "", fmt.Errorf("projection: column %d: %w", col, apperr.ErrNotFound)
	}
	a, err := v.Row(row)
	if err != nil {
		return "", err
	}
	return Value(a, col), nil
}

// SetData edits one cell through the catalog. Writing the current value is a
// successful no-op.
func (v *View) SetData(row, col int, value string) error {
	if col < 0 || col >= NumColumns {
		return fmt.Errorf("projection: column %d: %w", col, apperr.ErrNotFound)
	}
	f := Fields[col]
	if !f.Editable {
		return fmt.Errorf("projection: column %d: %w", col, apperr.ErrFieldNotEditable)
	}
	a, err := v.Row(row)
	if err != nil {
		return err
	}
	return v.src.SetField(a.ID, f.Key, value)
}

// Thumbnail resolves the preview of the asset at row.
func (v *View) Thumbnail(ctx context.Context, row int) (string, bool) {
	a, err := v.Row(row)
	if err != nil || v.thumbs == nil {
		return "", false
	}
	return v.thumbs.Resolve(ctx, a.ID, nil, false)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) RowsReset()                      {}
func (NopObserver) RowsInserted(int, int)           {}
func (NopObserver) RowsRemoved(int, int)            {}
func (NopObserver) RowChanged(int, Scope, int, int) {}
