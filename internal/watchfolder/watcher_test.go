package watchfolder

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/starford/mediabin/internal/testutil"
)

type batches struct {
	mu  sync.Mutex
	got [][]string
}

func (b *batches) sink(_ context.Context, paths []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, paths)
	return nil
}

func (b *batches) seen(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, batch := range b.got {
		if slices.Contains(batch, path) {
			return true
		}
	}
	return false
}

func startWatch(t *testing.T, dir string, b *batches, opts Options) {
	t.Helper()
	opts.Debounce = 50 * time.Millisecond
	opts.Logger = testutil.Logger()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Watch(ctx, []string{dir}, b.sink, opts); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatch_NewFileQueued(t *testing.T) {
	dir := t.TempDir()
	b := &batches{}
	startWatch(t, dir, b, Options{})

	path := testutil.Touch(t, dir, "clip.mp4")[0]

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return b.seen(path)
	}, "new file not handed to sink")
}

func TestWatch_NewDirWatched(t *testing.T) {
	dir := t.TempDir()
	b := &batches{}
	startWatch(t, dir, b, Options{})

	sub := filepath.Join(dir, "shoot")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	path := testutil.Touch(t, sub, "img001.png")[0]

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return b.seen(path)
	}, "file in new subdir not handed to sink")
}

func TestWatch_FiltersExtensionsAndHidden(t *testing.T) {
	dir := t.TempDir()
	b := &batches{}
	startWatch(t, dir, b, Options{Extensions: []string{"mp4", ".PNG"}})

	paths := testutil.Touch(t, dir, "notes.txt", ".clip.mp4", "a.mp4", "b.png")

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return b.seen(paths[2]) && b.seen(paths[3])
	}, "accepted files not handed to sink")
	if b.seen(paths[0]) || b.seen(paths[1]) {
		t.Errorf("filtered files reached the sink: %v", b.got)
	}
}

func TestWatch_ScanExisting(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.Touch(t, dir, "old/a.mp4", "b.wav")
	b := &batches{}
	startWatch(t, dir, b, Options{ScanExisting: true})

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return b.seen(paths[0]) && b.seen(paths[1])
	}, "existing files not queued")

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.got) != 1 || !slices.IsSorted(b.got[0]) {
		t.Errorf("batches = %v, want one sorted batch", b.got)
	}
}

func TestFilter(t *testing.T) {
	f := newFilter(nil)
	if !f.accepts("/a/b.anything") || f.accepts("/a/.hidden") {
		t.Error("empty filter should accept every visible file")
	}
	f = newFilter([]string{"mov"})
	if !f.accepts("/a/B.MOV") || f.accepts("/a/b.mp4") {
		t.Error("extension filter mismatch")
	}
}
