package projection

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/starford/mediabin/internal/apperr"
	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/probe"
	"github.com/starford/mediabin/internal/sequence"
)

type notification struct {
	kind        string
	first, last int
	scope       Scope
	col0, col1  int
}

type recordingObserver struct {
	got []notification
}

func (o *recordingObserver) RowsReset() { o.got = append(o.got, notification{kind: "reset"}) }
func (o *recordingObserver) RowsInserted(first, last int) {
	o.got = append(o.got, notification{kind: "insert", first: first, last: last})
}
func (o *recordingObserver) RowsRemoved(first, last int) {
	o.got = append(o.got, notification{kind: "remove", first: first, last: last})
}
func (o *recordingObserver) RowChanged(row int, scope Scope, firstCol, lastCol int) {
	o.got = append(o.got, notification{kind: "change", first: row, last: row, scope: scope, col0: firstCol, col1: lastCol})
}

func (o *recordingObserver) clear() { o.got = nil }

type fakeThumbs struct {
	locations   map[string]string
	calls       []string
	invalidated int
}

func (f *fakeThumbs) Resolve(_ context.Context, id string, _ *int, _ bool) (string, bool) {
	f.calls = append(f.calls, id)
	loc, ok := f.locations[id]
	return loc, ok
}

func (f *fakeThumbs) InvalidateAll() { f.invalidated++ }

func seedAssets() []models.Asset {
	return []models.Asset{
		{ID: "v1", Path: "/m/beach.mp4", Title: "beach", Tags: "summer", MediaType: models.MediaVideo},
		{ID: "i1", Path: "/m/Sunset.png", Title: "Sunset", MediaType: models.MediaImage},
		{ID: "a1", Path: "/m/theme.mp3", Title: "theme", Tags: "music", MediaType: models.MediaAudio},
		{ID: "i2", Path: "/m/apple.jpg", Title: "apple", Tags: "Summer fruit", MediaType: models.MediaImage},
		{ID: "v2", Path: "/m/intro.mov", Title: "intro", MediaType: models.MediaVideo},
	}
}

func newTestView(t *testing.T) (*catalog.Catalog, *View, *recordingObserver, *fakeThumbs) {
	t.Helper()
	c := catalog.New(nil, nil, nil)
	if err := c.Replace(seedAssets(), ""); err != nil {
		t.Fatal(err)
	}
	obs := &recordingObserver{}
	thumbs := &fakeThumbs{locations: map[string]string{}}
	v, err := New(c, thumbs, obs, Options{Scheme: "openshot"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(v.Close)
	return c, v, obs, thumbs
}

func visibleIDs(v *View) []string {
	var ids []string
	for _, a := range v.Rows() {
		ids = append(ids, a.ID)
	}
	return ids
}

// fullDerive recomputes the visible ids from scratch with a fresh view.
func fullDerive(t *testing.T, c *catalog.Catalog, v *View) []string {
	t.Helper()
	v.Close()
	fresh, err := New(c, nil, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		fresh.Close()
		unsub, err := c.Subscribe(v)
		if err != nil {
			t.Fatal(err)
		}
		v.unsubscribe = unsub
	}()
	fresh.types = v.types
	fresh.text = v.text
	fresh.sortCol, fresh.sortDesc = v.sortCol, v.sortDesc
	fresh.rows = fresh.derive()
	return visibleIDs(fresh)
}

func TestTypeFilter(t *testing.T) {
	_, v, obs, _ := newTestView(t)
	if v.Len() != 5 {
		t.Fatalf("len = %d", v.Len())
	}
	if err := v.SetTypeFilter(models.MediaImage); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(v); !slices.Equal(got, []string{"i1", "i2"}) {
		t.Errorf("images = %v", got)
	}
	if len(obs.got) != 1 || obs.got[0].kind != "reset" {
		t.Errorf("notifications = %+v", obs.got)
	}
	if err := v.SetTypeFilter("document"); !errors.Is(err, apperr.ErrInvalidFilter) {
		t.Errorf("bad type: %v", err)
	}
	if err := v.SetTypeFilter(""); err != nil || v.Len() != 5 {
		t.Errorf("reset type filter: %v len %d", err, v.Len())
	}
}

func TestTextFilter(t *testing.T) {
	_, v, _, _ := newTestView(t)

	// Matches title or tags, case-insensitively.
	if err := v.SetTextFilter("summer"); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(v); !slices.Equal(got, []string{"v1", "i2"}) {
		t.Errorf("summer = %v", got)
	}

	if err := v.SetTextFilter("^(sun|the)"); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(v); !slices.Equal(got, []string{"i1", "a1"}) {
		t.Errorf("regex = %v", got)
	}

	if err := v.SetTextFilter("(unclosed"); !errors.Is(err, apperr.ErrInvalidFilter) {
		t.Errorf("invalid regex: %v", err)
	}
	if v.TextFilter() != "^(sun|the)" || v.Len() != 2 {
		t.Error("invalid pattern replaced the filter")
	}

	v.SetFixedTextFilter("(")
	if v.Len() != 0 {
		t.Errorf("literal '(' matched %v", visibleIDs(v))
	}

	// Both axes combine with AND.
	_ = v.SetTextFilter("summer")
	_ = v.SetTypeFilter(models.MediaVideo)
	if got := visibleIDs(v); !slices.Equal(got, []string{"v1"}) {
		t.Errorf("and = %v", got)
	}
}

func TestDelete_VisibleCount(t *testing.T) {
	c, v, obs, _ := newTestView(t)
	_ = v.SetTypeFilter(models.MediaImage)
	obs.clear()

	// Filtered-out asset: count unchanged, no notification.
	if err := c.Delete("a1"); err != nil {
		t.Fatal(err)
	}
	if v.Len() != 2 || len(obs.got) != 0 {
		t.Errorf("len %d notifications %+v", v.Len(), obs.got)
	}

	if err := c.Delete("i1"); err != nil {
		t.Fatal(err)
	}
	if v.Len() != 1 {
		t.Errorf("len = %d, want 1", v.Len())
	}
	if len(obs.got) != 1 || obs.got[0] != (notification{kind: "remove", first: 0, last: 0}) {
		t.Errorf("notifications = %+v", obs.got)
	}
}

func TestEditScopes(t *testing.T) {
	_, v, obs, _ := newTestView(t)

	if err := v.SetData(1, ColTags, "golden hour"); err != nil {
		t.Fatal(err)
	}
	want := notification{kind: "change", first: 1, last: 1, scope: ScopeCell, col0: ColTags, col1: ColTags}
	if len(obs.got) != 1 || obs.got[0] != want {
		t.Errorf("tags edit = %+v", obs.got)
	}

	obs.clear()
	if err := v.SetData(1, ColName, "Dusk"); err != nil {
		t.Fatal(err)
	}
	want = notification{kind: "change", first: 1, last: 1, scope: ScopeRow, col0: 0, col1: NumColumns - 1}
	if len(obs.got) != 1 || obs.got[0] != want {
		t.Errorf("title edit = %+v", obs.got)
	}

	obs.clear()
	if err := v.SetData(1, ColName, "Dusk"); err != nil || len(obs.got) != 0 {
		t.Errorf("unchanged edit: %v %+v", err, obs.got)
	}

	if err := v.SetData(1, ColMediaType, "audio"); !errors.Is(err, apperr.ErrFieldNotEditable) {
		t.Errorf("media type edit: %v", err)
	}
	if err := v.SetData(99, ColName, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("bad row: %v", err)
	}
	if got, _ := v.Data(1, ColData); got != "Dusk" {
		t.Errorf("data col = %q", got)
	}
}

func TestEditMovesSortedRow(t *testing.T) {
	c, v, obs, _ := newTestView(t)
	if err := v.Sort(ColTags, false); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(v); got[0] != "i1" {
		t.Fatalf("sorted by tags = %v", got)
	}
	obs.clear()

	if err := c.SetField("i1", catalog.FieldTags, "zoo"); err != nil {
		t.Fatal(err)
	}
	last := v.Len() - 1
	if got := visibleIDs(v); got[last] != "i1" {
		t.Errorf("after tagging = %v", got)
	}
	want := []notification{
		{kind: "remove", first: 0, last: 0},
		{kind: "insert", first: last, last: last},
		{kind: "change", first: last, last: last, scope: ScopeCell, col0: ColTags, col1: ColTags},
	}
	if !slices.Equal(obs.got, want) {
		t.Errorf("notifications = %+v, want %+v", obs.got, want)
	}
}

func TestEditOutOfFilter(t *testing.T) {
	c, v, obs, _ := newTestView(t)
	_ = v.SetTextFilter("summer")
	obs.clear()

	if err := c.SetField("v2", catalog.FieldTags, "summer trip"); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(v); !slices.Equal(got, []string{"v1", "i2", "v2"}) {
		t.Errorf("after tagging = %v", got)
	}
	if err := c.SetField("v1", catalog.FieldTags, ""); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(v); !slices.Equal(got, []string{"i2", "v2"}) {
		t.Errorf("after untagging = %v", got)
	}
	if len(obs.got) != 2 || obs.got[0].kind != "insert" || obs.got[1].kind != "remove" {
		t.Errorf("notifications = %+v", obs.got)
	}
}

func TestSort_Collation(t *testing.T) {
	c, v, _, _ := newTestView(t)
	if err := v.Sort(ColName, false); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(v); !slices.Equal(got, []string{"i2", "v1", "v2", "i1", "a1"}) {
		t.Errorf("ascending = %v", got)
	}
	_ = v.Sort(ColName, true)
	if got := visibleIDs(v); !slices.Equal(got, []string{"a1", "i1", "v2", "v1", "i2"}) {
		t.Errorf("descending = %v", got)
	}

	// Ties keep catalog order.
	_ = v.Sort(ColMediaType, false)
	if got := visibleIDs(v); !slices.Equal(got, []string{"a1", "i1", "i2", "v1", "v2"}) {
		t.Errorf("by type = %v", got)
	}

	// A title edit moves the row to its new place.
	_ = v.Sort(ColName, false)
	if err := c.SetField("a1", catalog.FieldTitle, "aardvark"); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(v); got[0] != "a1" {
		t.Errorf("after rename = %v", got)
	}
	if got, want := visibleIDs(v), fullDerive(t, c, v); !slices.Equal(got, want) {
		t.Errorf("incremental %v != full %v", got, want)
	}

	if err := v.Sort(NumColumns, false); err == nil {
		t.Error("expected error for bad column")
	}
	_ = v.Sort(-1, false)
	if got := visibleIDs(v); !slices.Equal(got, []string{"v1", "i1", "a1", "i2", "v2"}) {
		t.Errorf("unsorted = %v", got)
	}
}

func TestIncrementalMatchesFullDerive(t *testing.T) {
	dir := t.TempDir()
	prober := probe.Func(func(_ context.Context, path string, _ probe.Source) (models.Metadata, error) {
		if strings.HasSuffix(path, ".png") {
			return models.Metadata{HasVideo: true, VideoLength: 1}, nil
		}
		return models.Metadata{HasVideo: true, VideoLength: 100}, nil
	})
	c := catalog.New(prober, sequence.NewDetector(sequence.Never, nil), nil)
	v, err := New(c, nil, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_ = v.SetTextFilter("e")
	_ = v.Sort(ColName, true)

	var paths []string
	for _, n := range []string{"zebra.mp4", "eagle.png", "bear.mp4", "tree.png", "cat.mp4", "deer.png"} {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	c.Import(context.Background(), paths, catalog.ImportOptions{})
	check := func(step string) {
		t.Helper()
		if got, want := visibleIDs(v), fullDerive(t, c, v); !slices.Equal(got, want) {
			t.Fatalf("%s: incremental %v != full %v", step, got, want)
		}
	}
	check("import")

	cat, _ := c.ByPath(paths[4])
	_ = c.SetField(cat.ID, catalog.FieldTags, "feline")
	check("tag")
	_ = c.SetField(cat.ID, catalog.FieldTitle, "alley cat")
	check("rename")
	zebra, _ := c.ByPath(paths[0])
	_ = c.SetField(zebra.ID, catalog.FieldTitle, "zorro")
	check("rename out")
	bear, _ := c.ByPath(paths[2])
	_ = c.Delete(bear.ID)
	check("delete")
	_ = v.SetTypeFilter(models.MediaImage)
	check("type filter")
}

func TestResetInvalidatesThumbnails(t *testing.T) {
	c, v, obs, thumbs := newTestView(t)
	_ = v.SetTypeFilter(models.MediaAudio)
	obs.clear()

	if err := c.Replace(seedAssets()[:2], "/other"); err != nil {
		t.Fatal(err)
	}
	if thumbs.invalidated != 1 {
		t.Errorf("invalidated = %d", thumbs.invalidated)
	}
	if len(obs.got) != 1 || obs.got[0].kind != "reset" || v.Len() != 0 {
		t.Errorf("notifications %+v len %d", obs.got, v.Len())
	}
}

func TestExport(t *testing.T) {
	_, v, _, thumbs := newTestView(t)
	thumbs.locations["a1"] = "/cache/a1/1.png"
	thumbs.locations["i2"] = "/cache/i2/1.png"

	sel := v.Export(context.Background(), []Index{
		{Row: 1, Col: 0},
		{Row: 1, Col: 2},
		{Row: 42, Col: 0},
		{Row: 0, Col: 9},
		{Row: 2, Col: 1},
		{Row: 3, Col: 0},
	})
	if !slices.Equal(sel.IDs, []string{"i1", "a1", "i2"}) {
		t.Errorf("ids = %v", sel.IDs)
	}
	want := []string{"openshot://file/i1", "openshot://file/a1", "openshot://file/i2"}
	if !slices.Equal(sel.URIs, want) {
		t.Errorf("uris = %v", sel.URIs)
	}
	if !sel.HasPreview || sel.Preview != "/cache/a1/1.png" {
		t.Errorf("preview = %q %v", sel.Preview, sel.HasPreview)
	}

	empty := v.Export(context.Background(), []Index{{Row: 0, Col: 0}})
	if empty.HasPreview || len(empty.URIs) != 1 {
		t.Errorf("no thumbnail selection = %+v", empty)
	}
}

func TestSecondViewRejected(t *testing.T) {
	c, _, _, _ := newTestView(t)
	if _, err := New(c, nil, nil, Options{}); !errors.Is(err, apperr.ErrFeedBusy) {
		t.Errorf("second view: %v", err)
	}
}

func TestColumnByName(t *testing.T) {
	for name, want := range map[string]int{"title": ColName, "Name": ColName, "tags": ColTags, "path": ColPath, "id": ColID} {
		got, err := ColumnByName(name)
		if err != nil || got != want {
			t.Errorf("%s: %d, %v", name, got, err)
		}
	}
	if _, err := ColumnByName("bogus"); err == nil {
		t.Error("expected error")
	}
	if f := Fields[ColTags]; f.Scope != ScopeCell || !f.Editable {
		t.Errorf("tags field = %+v", f)
	}
}
