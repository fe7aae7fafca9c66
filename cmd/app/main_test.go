package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/starford/mediabin/internal/catalog"
	"github.com/starford/mediabin/internal/models"
)

func TestPromptConfirmer(t *testing.T) {
	var out bytes.Buffer
	c := newPromptConfirmer(strings.NewReader("y\nno\n YES \n"), &out)

	want := []bool{true, false, true, false}
	for i, w := range want {
		if got := c.ConfirmSequence("img001.png"); got != w {
			t.Errorf("answer %d = %v, want %v", i, got, w)
		}
	}
	if !strings.Contains(out.String(), "img001.png") {
		t.Errorf("prompt = %q", out.String())
	}
}

func TestRenderAssets(t *testing.T) {
	if got := renderAssets(nil); got != "No assets." {
		t.Errorf("empty = %q", got)
	}
	out := renderAssets([]models.Asset{{
		ID: "a1", Path: "/m/clip.mp4", Title: "Clip", Tags: "b-roll", MediaType: models.MediaVideo,
		Metadata: models.Metadata{VideoLength: 300},
	}})
	for _, s := range []string{"Clip", "video", "300", "b-roll", "/m/clip.mp4"} {
		if !strings.Contains(out, s) {
			t.Errorf("table missing %q:\n%s", s, out)
		}
	}
}

func TestRenderReport(t *testing.T) {
	out := renderReport(catalog.Report{
		Imported: 2,
		Skipped:  1,
		Errors:   []catalog.FileError{{Name: "bad.mov", Err: errors.New("invalid data")}},
	})
	for _, s := range []string{"Imported", "bad.mov", "invalid data"} {
		if !strings.Contains(out, s) {
			t.Errorf("report missing %q:\n%s", s, out)
		}
	}
}
