package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/mediabin/internal/apperr"
	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/probe"
	"github.com/starford/mediabin/internal/sequence"
)

// fakeProber classifies by extension and fails for names containing "bad".
type fakeProber struct {
	calls  []string
	starts []int
}

func (f *fakeProber) Probe(_ context.Context, path string, src probe.Source) (models.Metadata, error) {
	f.calls = append(f.calls, src.String()+":"+path)
	f.starts = append(f.starts, src.StartNumber)
	if strings.Contains(filepath.Base(path), "bad") {
		return models.Metadata{}, errors.New("invalid data found")
	}
	if src.Pattern {
		return models.Metadata{HasVideo: true, Duration: 0.4, VideoLength: 10, FPS: models.Fraction{Num: 25, Den: 1}}, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg":
		return models.Metadata{HasVideo: true, VideoLength: 1, Format: "png_pipe", FPS: models.Fraction{Num: 25, Den: 1}}, nil
	case ".mp3", ".wav":
		return models.Metadata{HasAudio: true, Duration: 3}, nil
	default:
		return models.Metadata{HasVideo: true, HasAudio: true, Duration: 10, VideoLength: 300, FPS: models.Fraction{Num: 30, Den: 1}}, nil
	}
}

type recorder struct {
	events []Event
}

func (r *recorder) CatalogChanged(ev Event) { r.events = append(r.events, ev) }

type sinkFunc func(string, error)

func (f sinkFunc) ReportImportError(name string, err error) { f(name, err) }

func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

func newTestCatalog(confirm sequence.Confirmer) (*Catalog, *fakeProber) {
	fp := &fakeProber{}
	return New(fp, sequence.NewDetector(confirm, nil), nil), fp
}

func TestImport_ClassifiesAndDedups(t *testing.T) {
	dir := t.TempDir()
	paths := touch(t, dir, "clip.mp4", "song.mp3", "photo.png")
	c, _ := newTestCatalog(sequence.Always)
	rec := &recorder{}
	if _, err := c.Subscribe(rec); err != nil {
		t.Fatal(err)
	}

	rep := c.Import(context.Background(), paths[:2], ImportOptions{})
	if rep.Imported != 2 || c.Len() != 2 {
		t.Fatalf("first import: %+v, len %d", rep, c.Len())
	}

	// Two of three already catalogued: grows by exactly one.
	rep = c.Import(context.Background(), paths, ImportOptions{})
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if rep.Imported != 1 || rep.Duplicates != 2 || rep.Skipped != 2 {
		t.Errorf("report = %+v", rep)
	}

	want := map[string]models.MediaType{"clip.mp4": models.MediaVideo, "song.mp3": models.MediaAudio, "photo.png": models.MediaImage}
	for i := 0; i < c.Len(); i++ {
		a := c.At(i)
		if a.MediaType != want[a.Title] {
			t.Errorf("%s: media type %s", a.Title, a.MediaType)
		}
	}
	if len(rec.events) != 3 {
		t.Errorf("events = %d, want 3 inserts", len(rec.events))
	}
	for i, ev := range rec.events {
		if ev.Type != EventInsert || ev.Index != i {
			t.Errorf("event %d = %+v", i, ev)
		}
	}
	if c.ImportPath() != dir {
		t.Errorf("import path = %q, want %q", c.ImportPath(), dir)
	}
}

func TestImport_CollapsesSequence(t *testing.T) {
	dir := t.TempDir()
	var names []string
	for i := 1; i <= 10; i++ {
		names = append(names, fmt.Sprintf("img%03d.png", i))
	}
	paths := touch(t, dir, names...)
	c, fp := newTestCatalog(sequence.Always)

	rep := c.Import(context.Background(), paths, ImportOptions{})
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	if rep.Imported != 1 || rep.Collapsed != 9 {
		t.Errorf("report = %+v", rep)
	}

	a := c.At(0)
	if a.MediaType != models.MediaVideo || a.Sequence == nil {
		t.Fatalf("asset = %+v", a)
	}
	if a.Path != filepath.Join(dir, "img%03d.png") || a.Title != "img%03d.png" {
		t.Errorf("path %q title %q", a.Path, a.Title)
	}
	if a.Metadata.VideoLength != 10 || a.Metadata.Duration != 0.4 {
		t.Errorf("metadata = %+v", a.Metadata)
	}
	if fp.calls[1] != "sequence:"+a.Path {
		t.Errorf("probe calls = %v", fp.calls)
	}

	// Re-importing a frame of a catalogued sequence is a duplicate.
	rep = c.Import(context.Background(), paths[3:4], ImportOptions{})
	if rep.Duplicates != 1 || c.Len() != 1 {
		t.Errorf("re-import report = %+v", rep)
	}
}

func TestImport_SequenceStartingLate(t *testing.T) {
	dir := t.TempDir()
	var names []string
	for i := 1001; i <= 1010; i++ {
		names = append(names, fmt.Sprintf("img%d.png", i))
	}
	paths := touch(t, dir, names...)
	c, fp := newTestCatalog(sequence.Always)

	c.Import(context.Background(), paths[4:5], ImportOptions{})
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	a := c.At(0)
	if a.Sequence == nil || a.Sequence.StartNumber != 1001 {
		t.Fatalf("sequence = %+v", a.Sequence)
	}
	if a.Path != filepath.Join(dir, "img%04d.png") {
		t.Errorf("path = %q", a.Path)
	}
	if len(fp.starts) != 2 || fp.starts[1] != 1001 {
		t.Errorf("start numbers = %v, want [0 1001]", fp.starts)
	}
}

func TestImport_SequenceWithoutBaseName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "render")
	paths := touch(t, dir, "0001.png", "0002.png", "0003.png")
	c, _ := newTestCatalog(sequence.Always)

	c.Import(context.Background(), paths, ImportOptions{})
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}
	if got := c.At(0).Title; got != "render (%04d.png)" {
		t.Errorf("title = %q", got)
	}
}

func TestImport_DeclinedSequenceImportsFrames(t *testing.T) {
	dir := t.TempDir()
	paths := touch(t, dir, "img001.png", "img002.png", "img003.png")
	c, _ := newTestCatalog(sequence.Never)

	rep := c.Import(context.Background(), paths, ImportOptions{})
	if rep.Imported != 3 || c.Len() != 3 {
		t.Errorf("report = %+v", rep)
	}
	for i := 0; i < c.Len(); i++ {
		if c.At(i).MediaType != models.MediaImage || c.At(i).Sequence != nil {
			t.Errorf("asset %d = %+v", i, c.At(i))
		}
	}
}

func TestImport_HintSkipsDetection(t *testing.T) {
	dir := t.TempDir()
	paths := touch(t, dir, "a1.jpg", "a2.jpg")
	c, _ := newTestCatalog(sequence.Never)

	hint := &models.Sequence{BaseName: "a", DigitCount: 1, Extension: "jpg"}
	rep := c.Import(context.Background(), paths, ImportOptions{Hint: hint})
	if rep.Imported != 1 || rep.Collapsed != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if got := c.At(0).Path; got != filepath.Join(dir, "a%d.jpg") {
		t.Errorf("path = %q", got)
	}
	if hint.Folder != "" {
		t.Error("hint was modified")
	}
}

func TestImport_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	paths := touch(t, dir, "a.mp4", "bad.mp4", "c.mp4")
	c, _ := newTestCatalog(sequence.Always)

	var reported []string
	sink := sinkFunc(func(name string, _ error) { reported = append(reported, name) })

	rep := c.Import(context.Background(), paths, ImportOptions{Sink: sink})
	if c.Len() != 2 || rep.Imported != 2 || rep.Skipped != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(rep.Errors) != 1 || rep.Errors[0].Name != "bad.mp4" {
		t.Errorf("errors = %+v", rep.Errors)
	}
	if len(reported) != 1 || reported[0] != "bad.mp4" {
		t.Errorf("sink = %v", reported)
	}

	reported = nil
	rep = c.Import(context.Background(), paths[1:2], ImportOptions{Sink: sink, Quiet: true})
	if len(rep.Errors) != 1 || len(reported) != 0 {
		t.Errorf("quiet import: errors %d, sink %v", len(rep.Errors), reported)
	}
}

func TestImportRun_StepAndCancel(t *testing.T) {
	dir := t.TempDir()
	var names []string
	for i := 0; i < 20; i++ {
		names = append(names, fmt.Sprintf("clip-%c.mp4", 'a'+i))
	}
	paths := touch(t, dir, names...)
	c, _ := newTestCatalog(sequence.Always)

	var progress []Progress
	run := c.BeginImport(paths, ImportOptions{Progress: func(p Progress) { progress = append(progress, p) }})
	for i := 0; i < 5; i++ {
		if run.Step(context.Background()) {
			t.Fatal("finished early")
		}
	}
	run.Cancel()
	if !run.Step(context.Background()) {
		t.Error("cancelled run should be done")
	}

	rep := run.Report()
	if !rep.Cancelled || rep.Imported != 5 || c.Len() != 5 {
		t.Errorf("report = %+v, len %d", rep, c.Len())
	}
	if len(progress) != 5 || progress[4] != (Progress{Current: 5, Total: 20}) {
		t.Errorf("progress = %+v", progress)
	}
}

func TestImport_ContextCancelledBetweenFiles(t *testing.T) {
	paths := touch(t, t.TempDir(), "a.mp4", "b.mp4")
	c, _ := newTestCatalog(sequence.Always)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := c.Import(ctx, paths, ImportOptions{})
	if !rep.Cancelled || c.Len() != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestDelete_PreservesOrder(t *testing.T) {
	paths := touch(t, t.TempDir(), "a.mp4", "b.mp4", "c.mp4", "d.mp4")
	c, _ := newTestCatalog(sequence.Always)
	c.Import(context.Background(), paths, ImportOptions{})
	rec := &recorder{}
	if _, err := c.Subscribe(rec); err != nil {
		t.Fatal(err)
	}

	id := c.At(1).ID
	if err := c.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var titles []string
	for _, a := range c.Snapshot() {
		titles = append(titles, a.Title)
	}
	if strings.Join(titles, ",") != "a.mp4,c.mp4,d.mp4" {
		t.Errorf("order = %v", titles)
	}
	if c.IndexOf(c.At(2).ID) != 2 {
		t.Error("index not rebuilt")
	}
	if _, ok := c.ByPath(paths[1]); ok {
		t.Error("path still catalogued")
	}
	if len(rec.events) != 1 || rec.events[0] != (Event{Type: EventDelete, ID: id, Index: 1}) {
		t.Errorf("events = %+v", rec.events)
	}
	if err := c.Delete(id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestSetField(t *testing.T) {
	paths := touch(t, t.TempDir(), "a.mp4")
	c, _ := newTestCatalog(sequence.Always)
	c.Import(context.Background(), paths, ImportOptions{})
	rec := &recorder{}
	if _, err := c.Subscribe(rec); err != nil {
		t.Fatal(err)
	}
	id := c.At(0).ID

	if err := c.SetField(id, FieldTags, "outdoor"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetField(id, FieldTags, "outdoor"); err != nil {
		t.Fatal(err)
	}
	if len(rec.events) != 1 || rec.events[0].Key != FieldTags {
		t.Errorf("events = %+v", rec.events)
	}
	if err := c.SetField(id, "media_type", "audio"); !errors.Is(err, apperr.ErrFieldNotEditable) {
		t.Errorf("media_type edit: %v", err)
	}
	if err := c.SetField("nope", FieldTitle, "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown id: %v", err)
	}
}

func TestReplace(t *testing.T) {
	c, _ := newTestCatalog(sequence.Always)
	rec := &recorder{}
	if _, err := c.Subscribe(rec); err != nil {
		t.Fatal(err)
	}
	good := []models.Asset{
		{ID: "1", Path: "/m/a.mp4", Title: "a", MediaType: models.MediaVideo},
		{ID: "2", Path: "/m/img%03d.png", MediaType: models.MediaVideo,
			Sequence: &models.Sequence{BaseName: "img", DigitCount: 3, Extension: "png", FixedWidth: true}},
	}
	if err := c.Replace(good, "/m"); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if c.Len() != 2 || c.ImportPath() != "/m" {
		t.Errorf("len %d import path %q", c.Len(), c.ImportPath())
	}
	if len(rec.events) != 1 || rec.events[0].Type != EventReset {
		t.Errorf("events = %+v", rec.events)
	}

	bad := [][]models.Asset{
		{{ID: "", Path: "/m/x.mp4", MediaType: models.MediaVideo}},
		{{ID: "3", Path: "/m/x.mp4", MediaType: "document"}},
		{{ID: "3", Path: "/m/frame001.png", MediaType: models.MediaVideo, Sequence: &models.Sequence{DigitCount: 3, Extension: "png"}}},
		{{ID: "3", Path: "/m/x.mp4", MediaType: models.MediaVideo}, {ID: "3", Path: "/m/y.mp4", MediaType: models.MediaVideo}},
		{{ID: "3", Path: "/m/x.mp4", MediaType: models.MediaVideo}, {ID: "4", Path: "/m/x.mp4", MediaType: models.MediaVideo}},
	}
	for i, assets := range bad {
		if err := c.Replace(assets, ""); !errors.Is(err, apperr.ErrInvalidAsset) {
			t.Errorf("case %d: err = %v", i, err)
		}
	}
	if c.Len() != 2 || len(rec.events) != 1 {
		t.Error("failed replace touched the catalog")
	}
}

func TestSubscribe_SingleConsumer(t *testing.T) {
	c, _ := newTestCatalog(sequence.Always)
	unsub, err := c.Subscribe(&recorder{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Subscribe(&recorder{}); !errors.Is(err, apperr.ErrFeedBusy) {
		t.Errorf("second subscribe: %v", err)
	}
	unsub()
	unsub2, err := c.Subscribe(&recorder{})
	if err != nil {
		t.Fatalf("subscribe after unsubscribe: %v", err)
	}
	unsub() // stale handle must not detach the new subscriber
	if _, err := c.Subscribe(&recorder{}); !errors.Is(err, apperr.ErrFeedBusy) {
		t.Error("stale unsubscribe detached the current subscriber")
	}
	unsub2()
}

func TestSubscribe_RejectsReentrantMutation(t *testing.T) {
	paths := touch(t, t.TempDir(), "a.mp4", "b.mp4")
	c, _ := newTestCatalog(sequence.Always)

	var inner error
	_, err := c.Subscribe(SubscriberFunc(func(ev Event) {
		if ev.Type == EventInsert {
			inner = c.SetField(ev.ID, FieldTags, "auto")
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	c.Import(context.Background(), paths[:1], ImportOptions{})
	if !errors.Is(inner, apperr.ErrReentrantMutation) {
		t.Errorf("inner mutation err = %v", inner)
	}
	if c.At(0).Tags != "" {
		t.Error("reentrant edit applied")
	}
}

func TestExpandPaths(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "shots/b.png", "shots/a.png", "shots/deep/c.mp4")
	single := touch(t, root, "z.mp3")[0]

	paths, quiet := ExpandPaths([]string{single, filepath.Join(root, "shots"), filepath.Join(root, "missing")}, nil)
	if !quiet {
		t.Error("directory input should make the import quiet")
	}
	want := []string{
		filepath.Join(root, "shots", "a.png"),
		filepath.Join(root, "shots", "b.png"),
		filepath.Join(root, "shots", "deep", "c.mp4"),
		single,
	}
	if strings.Join(paths, "|") != strings.Join(want, "|") {
		t.Errorf("paths = %v", paths)
	}

	paths, quiet = ExpandPaths([]string{single}, nil)
	if quiet || len(paths) != 1 {
		t.Errorf("single file: %v quiet=%v", paths, quiet)
	}
}

func TestExpandPaths_FollowsFileSymlinks(t *testing.T) {
	root := t.TempDir()
	target := touch(t, root, "library/clip.mov")[0]
	touch(t, root, "drop/a.png")
	if err := os.Symlink(target, filepath.Join(root, "drop", "link.mov")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "library"), filepath.Join(root, "drop", "dirlink")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "gone.mov"), filepath.Join(root, "drop", "dangling.mov")); err != nil {
		t.Fatal(err)
	}

	paths, _ := ExpandPaths([]string{filepath.Join(root, "drop")}, nil)
	want := []string{
		filepath.Join(root, "drop", "a.png"),
		filepath.Join(root, "drop", "link.mov"),
	}
	if strings.Join(paths, "|") != strings.Join(want, "|") {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestExpandPaths_SkipsProjectFiles(t *testing.T) {
	root := t.TempDir()
	files := touch(t, root, "old.mediabin", "shots/a.png", "shots/backup.MEDIABIN")

	paths, _ := ExpandPaths([]string{files[0], filepath.Join(root, "shots")}, nil)
	if len(paths) != 1 || paths[0] != files[1] {
		t.Errorf("paths = %v", paths)
	}
}
