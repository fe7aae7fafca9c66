package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempCache(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempCache(t)
	content := []byte("\x89PNG fake")
	if err := s.Write("abc-1.png", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("abc-1.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}

	e, err := s.Stat("abc-1.png")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if e.Size != int64(len(content)) {
		t.Errorf("size = %d", e.Size)
	}
	abs, _ := s.Abs("abc-1.png")
	if abs != filepath.Join(s.Root(), "abc-1.png") {
		t.Errorf("abs = %q", abs)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempCache(t)
	if err := s.Write("a/b/c.png", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempCache(t)
	_ = s.Write("del.png", []byte("bye"))
	if err := s.Delete("del.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Stat("del.png"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat after delete: %v", err)
	}
}

func TestList(t *testing.T) {
	s := tempCache(t)
	_ = s.Write("b-1.png", []byte("b"))
	_ = s.Write("sub/a-1.png", []byte("a"))
	_ = os.WriteFile(filepath.Join(s.Root(), tmpPrefix+"123"), []byte("partial"), 0o644)

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Path != "b-1.png" || items[1].Path != filepath.Join("sub", "a-1.png") {
		t.Errorf("items = %+v", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempCache(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.png",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if _, err := s.Abs(p); err == nil {
			t.Errorf("expected error for abs of %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempCache(t)
	_ = s.Write("atomic.png", []byte("original"))

	if err := s.Write("atomic.png", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.png")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, tmpPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_CreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "thumbs", "cache")
	s, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(s.Root()); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "mediabin-test-*")
	if err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
