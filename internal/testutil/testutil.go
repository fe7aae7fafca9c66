// Package testutil provides shared test helpers for media trees, project
// stores and a deterministic prober.
package testutil

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/probe"
	"github.com/starford/mediabin/internal/project"
)

// TestProject opens a project store in a temporary directory that is closed
// automatically.
func TestProject(t *testing.T) *project.Store {
	t.Helper()
	s, err := project.Open(filepath.Join(t.TempDir(), "project.mediabin"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Touch creates small files under dir and returns their absolute paths.
func Touch(t *testing.T, dir string, names ...string) []string {
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

// Logger returns a logger that only reports errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// Prober classifies files by extension. Names containing "bad" fail to
// probe. Gate, when set, is called before every probe.
type Prober struct {
	Gate func(path string)

	mu    sync.Mutex
	paths []string
}

// Probe implements probe.Prober.
func (p *Prober) Probe(_ context.Context, path string, src probe.Source) (models.Metadata, error) {
	if p.Gate != nil {
		p.Gate(path)
	}
	p.mu.Lock()
	p.paths = append(p.paths, path)
	p.mu.Unlock()

	if strings.Contains(filepath.Base(path), "bad") {
		return models.Metadata{}, errors.New("invalid data found when processing input")
	}
	if src.Pattern {
		return models.Metadata{HasVideo: true, Duration: 0.4, VideoLength: 10, FPS: models.Fraction{Num: 25, Den: 1}}, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return models.Metadata{HasVideo: true, VideoLength: 1, Format: "png_pipe", FPS: models.Fraction{Num: 25, Den: 1}}, nil
	case ".mp3", ".wav":
		return models.Metadata{HasAudio: true, Duration: 3}, nil
	default:
		return models.Metadata{HasVideo: true, HasAudio: true, Duration: 10, VideoLength: 300, FPS: models.Fraction{Num: 30, Den: 1}}, nil
	}
}

// Probed returns every probed path in call order.
func (p *Prober) Probed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}
