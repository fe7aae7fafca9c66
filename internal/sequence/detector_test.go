package sequence

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/mediabin/internal/models"
)

func writeFrames(t *testing.T, dir, format string, from, to int) {
	t.Helper()
	for i := from; i <= to; i++ {
		name := filepath.Join(dir, fmt.Sprintf(format, i))
		if err := os.WriteFile(name, []byte("frame"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestParseName(t *testing.T) {
	cases := []struct {
		name   string
		ok     bool
		base   string
		digits int
		number int
		zero   bool
	}{
		{"img001.png", true, "img", 3, 1, true},
		{"img010.PNG", true, "img", 3, 10, true},
		{"shot_42.jpeg", true, "shot_", 2, 42, false},
		{"0007.tif", true, "", 4, 7, true},
		{"frame.png", false, "", 0, 0, false},
		{"clip001.mp4", false, "", 0, 0, false},
		{"img001.png.bak", false, "", 0, 0, false},
		{"notes.txt", false, "", 0, 0, false},
	}
	for _, tc := range cases {
		m, ok := ParseName(tc.name)
		if ok != tc.ok {
			t.Errorf("%s: ok = %v, want %v", tc.name, ok, tc.ok)
			continue
		}
		if !ok {
			continue
		}
		if m.BaseName != tc.base || m.DigitCount != tc.digits || m.Number != tc.number || m.LeadingZero != tc.zero {
			t.Errorf("%s: got %+v", tc.name, m)
		}
	}
}

func TestDetect_FixedWidthSequence(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "img%03d.png", 1, 10)

	d := NewDetector(Always, nil)
	visited := NewVisited()

	seq := d.Detect(filepath.Join(dir, "img004.png"), visited)
	if seq == nil {
		t.Fatal("expected a sequence")
	}
	if seq.BaseName != "img" || seq.DigitCount != 3 || seq.Extension != "png" || !seq.FixedWidth {
		t.Errorf("descriptor = %+v", seq)
	}
	if seq.Pattern() != "img%03d.png" {
		t.Errorf("pattern = %q", seq.Pattern())
	}
	if !visited.Has(dir) {
		t.Error("directory should be marked visited")
	}

	// Same run, other frame in the same directory: short-circuits.
	if again := d.Detect(filepath.Join(dir, "img007.png"), visited); again != nil {
		t.Errorf("second detect in visited dir = %+v, want nil", again)
	}
}

func TestDetect_VariableWidth(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "shot%d.jpg", 1, 12)

	seq := NewDetector(Always, nil).Detect(filepath.Join(dir, "shot5.jpg"), NewVisited())
	if seq == nil {
		t.Fatal("expected a sequence")
	}
	if seq.FixedWidth {
		t.Error("expected variable width when shot10.jpg exists")
	}
	if seq.Pattern() != "shot%d.jpg" {
		t.Errorf("pattern = %q", seq.Pattern())
	}
}

func TestDetect_SingleFileIsNotSequence(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "still%02d.png", 7, 7)

	visited := NewVisited()
	if seq := NewDetector(Always, nil).Detect(filepath.Join(dir, "still07.png"), visited); seq != nil {
		t.Errorf("lone frame detected as %+v", seq)
	}
	if visited.Has(dir) {
		t.Error("unconfirmed directory should not be marked")
	}
}

func TestDetect_NonMatchingName(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "clip%03d.mov", 1, 5)

	if seq := NewDetector(Always, nil).Detect(filepath.Join(dir, "clip002.mov"), NewVisited()); seq != nil {
		t.Errorf("non-image extension detected as %+v", seq)
	}
}

func TestDetect_NeighbourOutsideWindow(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "far%04d.png", 1, 1)
	writeFrames(t, dir, "far%04d.png", 500, 500)

	if seq := NewDetector(Always, nil).Detect(filepath.Join(dir, "far0001.png"), NewVisited()); seq != nil {
		t.Errorf("frames 499 apart detected as %+v", seq)
	}
}

func TestDetect_DeclineStillMarksVisited(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "img%03d.png", 1, 3)

	asked := 0
	confirm := ConfirmFunc(func(name string) bool {
		asked++
		if name != "img002.png" {
			t.Errorf("asked about %q", name)
		}
		return false
	})
	d := NewDetector(confirm, nil)
	visited := NewVisited()

	if seq := d.Detect(filepath.Join(dir, "img002.png"), visited); seq != nil {
		t.Errorf("declined sequence returned %+v", seq)
	}
	if !visited.Has(dir) {
		t.Error("declined directory should stay visited")
	}
	_ = d.Detect(filepath.Join(dir, "img003.png"), visited)
	if asked != 1 {
		t.Errorf("asked %d times, want 1", asked)
	}
}

func TestDetect_UppercaseExtension(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "IMG_%04d.JPG", 1, 4)

	seq := NewDetector(Always, nil).Detect(filepath.Join(dir, "IMG_0002.JPG"), NewVisited())
	if seq == nil {
		t.Fatal("expected a sequence")
	}
	if seq.Extension != "JPG" || seq.DigitCount != 4 {
		t.Errorf("descriptor = %+v", seq)
	}
}

func TestFirstFrame(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, "img%04d.png", 1001, 1010)
	writeFrames(t, dir, "other%04d.png", 1, 2)

	seq := NewDetector(Always, nil).Detect(filepath.Join(dir, "img1004.png"), NewVisited())
	if seq == nil {
		t.Fatal("expected a sequence")
	}
	if first, ok := FirstFrame(*seq); !ok || first != 1001 {
		t.Errorf("FirstFrame = %d, %v, want 1001", first, ok)
	}

	variable := t.TempDir()
	writeFrames(t, variable, "f%d.jpg", 8, 12)
	if first, ok := FirstFrame(models.Sequence{BaseName: "f", DigitCount: 1, Extension: "jpg", Folder: variable}); !ok || first != 8 {
		t.Errorf("variable FirstFrame = %d, %v, want 8", first, ok)
	}

	if _, ok := FirstFrame(models.Sequence{BaseName: "none", DigitCount: 3, FixedWidth: true, Extension: "png", Folder: dir}); ok {
		t.Error("expected no frames")
	}
}
