// Package models defines the domain types for mediabin.
package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MediaType classifies a catalogued asset.
type MediaType string

// Media kinds. Every asset carries exactly one of these.
const (
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaImage MediaType = "image"
)

// MediaTypes lists every valid media type in display order.
var MediaTypes = []MediaType{MediaAudio, MediaImage, MediaVideo}

// ParseMediaType returns the media type named by s (case-insensitive).
func ParseMediaType(s string) (MediaType, error) {
	mt := MediaType(strings.ToLower(strings.TrimSpace(s)))
	switch mt {
	case MediaVideo, MediaAudio, MediaImage:
		return mt, nil
	}
	return "", fmt.Errorf("unknown media type %q", s)
}

// Fraction is a rational number such as a frame rate (30000/1001).
type Fraction struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

// Float returns the fraction as a float64, or 0 when the denominator is zero.
func (f Fraction) Float() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// Metadata holds probe-derived fields.
type Metadata struct {
	HasVideo    bool     `json:"has_video"`
	HasAudio    bool     `json:"has_audio"`
	Duration    float64  `json:"duration"`
	FPS         Fraction `json:"fps"`
	VideoLength int64    `json:"video_length"`
	Width       int      `json:"width,omitempty"`
	Height      int      `json:"height,omitempty"`
	Codec       string   `json:"codec,omitempty"`
	Format      string   `json:"format,omitempty"`
	// Start is the trim offset in seconds, when the asset has one.
	Start *float64 `json:"start,omitempty"`
}

// Sequence describes a run of numbered frame files collapsed into one asset.
type Sequence struct {
	BaseName   string `json:"base_name"`
	FixedWidth bool   `json:"fixed_width"`
	DigitCount int    `json:"digit_count"`
	Extension  string `json:"extension"`
	Folder     string `json:"folder_path,omitempty"`
	// StartNumber is the number of the first frame file on disk.
	StartNumber int `json:"start_number,omitempty"`
}

// Pattern returns the printf-style file name for the sequence, e.g. img%03d.png.
func (s Sequence) Pattern() string {
	num := "%d"
	if s.FixedWidth {
		num = fmt.Sprintf("%%0%dd", s.DigitCount)
	}
	return s.BaseName + num + "." + s.Extension
}

// PatternPath joins Folder and Pattern.
func (s Sequence) PatternPath() string {
	return filepath.Join(s.Folder, s.Pattern())
}

// Glob returns a glob matching every frame file of the sequence in Folder.
func (s Sequence) Glob() string {
	return filepath.Join(EscapeGlob(s.Folder), EscapeGlob(s.BaseName)+"[0-9]*."+EscapeGlob(s.Extension))
}

// Validate implements validation.Validatable.
func (s Sequence) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.DigitCount, validation.Required, validation.Min(1)),
		validation.Field(&s.Extension, validation.Required),
		validation.Field(&s.StartNumber, validation.Min(0)),
	)
}

// Asset is one catalogued media reference: a file or a collapsed sequence.
type Asset struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Tags      string    `json:"tags"`
	MediaType MediaType `json:"media_type"`
	Metadata  Metadata  `json:"metadata"`
	Sequence  *Sequence `json:"sequence,omitempty"`
}

// DisplayTitle returns Title, falling back to the base name of Path.
func (a Asset) DisplayTitle() string {
	if a.Title != "" {
		return a.Title
	}
	return filepath.Base(a.Path)
}

var errPatternPath = errors.New("sequence asset path must be a frame pattern")

// Validate checks the fields every catalogued asset must carry.
func (a Asset) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.ID, validation.Required),
		validation.Field(&a.Path, validation.Required, validation.By(func(any) error {
			if a.Sequence != nil && !strings.Contains(filepath.Base(a.Path), "%") {
				return errPatternPath
			}
			return nil
		})),
		validation.Field(&a.MediaType, validation.Required, validation.In(MediaVideo, MediaAudio, MediaImage)),
		validation.Field(&a.Sequence),
	)
}

// EscapeGlob quotes the characters filepath.Match treats specially.
func EscapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
