// Package probe inspects media sources and classifies them.
package probe

import (
	"context"
	"strings"

	"github.com/starford/mediabin/internal/models"
)

// Source tells the prober how to open a path.
type Source struct {
	// Pattern marks a printf-style frame pattern such as /dir/img%03d.png.
	Pattern bool
	// StartNumber is the number of the first frame file of a pattern.
	StartNumber int
}

// Single is one file on disk.
var Single = Source{}

// Sequence opens a frame pattern whose first file is numbered start.
func Sequence(start int) Source {
	return Source{Pattern: true, StartNumber: max(start, 0)}
}

func (s Source) String() string {
	if s.Pattern {
		return "sequence"
	}
	return "single"
}

// Prober returns structural metadata for a media source.
type Prober interface {
	Probe(ctx context.Context, path string, src Source) (models.Metadata, error)
}

// Func adapts a function to Prober.
type Func func(ctx context.Context, path string, src Source) (models.Metadata, error)

// Probe implements Prober.
func (f Func) Probe(ctx context.Context, path string, src Source) (models.Metadata, error) {
	return f(ctx, path, src)
}

// Demuxers that only ever yield still pictures.
var stillFormats = map[string]bool{
	"image2":    true,
	"png_pipe":  true,
	"jpeg_pipe": true,
	"tiff_pipe": true,
	"svg_pipe":  true,
	"bmp_pipe":  true,
	"webp_pipe": true,
}

// IsImage reports whether a video-capable source is a still image.
func IsImage(m models.Metadata) bool {
	if !m.HasVideo || m.HasAudio {
		return false
	}
	if m.VideoLength <= 1 {
		return true
	}
	for _, name := range strings.Split(m.Format, ",") {
		if stillFormats[strings.TrimSpace(name)] {
			return true
		}
	}
	return false
}

// Classify maps probe metadata to a media type.
func Classify(m models.Metadata) models.MediaType {
	switch {
	case m.HasVideo && IsImage(m):
		return models.MediaImage
	case m.HasVideo:
		return models.MediaVideo
	case m.HasAudio:
		return models.MediaAudio
	default:
		return models.MediaVideo
	}
}
