// Package sequence recognises numbered image files that belong to a frame
// sequence and describes them as a single pattern.
package sequence

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/mediabin/internal/models"
)

// Frame numbers are searched within this distance of the probed frame,
// and never at or above maxFrame.
const (
	neighbourWindow = 100
	maxFrame        = 50000
)

// Extensions lists the image extensions eligible for sequence detection.
var Extensions = []string{"png", "jpg", "jpeg", "gif", "tif", "svg"}

var frameRe = regexp.MustCompile(`(?i)^(.*[^\d])?(0*)(\d+)\.(` + strings.Join(Extensions, "|") + `)$`)

// Confirmer asks whether a detected run of frames should be imported as one
// sequence. fileName is the representative frame's base name.
type Confirmer interface {
	ConfirmSequence(fileName string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(fileName string) bool

// ConfirmSequence implements Confirmer.
func (f ConfirmFunc) ConfirmSequence(fileName string) bool { return f(fileName) }

// Always accepts every detected sequence.
var Always Confirmer = ConfirmFunc(func(string) bool { return true })

// Never declines every detected sequence.
var Never Confirmer = ConfirmFunc(func(string) bool { return false })

// Visited is the set of directories already evaluated during one import run.
// Only one sequence match is attempted per directory per run.
type Visited map[string]struct{}

// NewVisited returns an empty set.
func NewVisited() Visited { return make(Visited) }

// Has reports whether dir was already evaluated.
func (v Visited) Has(dir string) bool {
	_, ok := v[filepath.Clean(dir)]
	return ok
}

// Mark records dir as evaluated.
func (v Visited) Mark(dir string) { v[filepath.Clean(dir)] = struct{}{} }

// Detector decides whether a path is one frame of an image sequence.
type Detector struct {
	confirm Confirmer
	logger  *slog.Logger
}

// NewDetector returns a Detector that asks confirm before accepting a match.
// A nil confirm accepts every match.
func NewDetector(confirm Confirmer, logger *slog.Logger) *Detector {
	if confirm == nil {
		confirm = Always
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{confirm: confirm, logger: logger}
}

// Match is the parsed form of a frame file name.
type Match struct {
	BaseName    string
	LeadingZero bool
	Number      int
	DigitCount  int
	Extension   string
}

// ParseName splits a frame file name into its parts. ok is false when the
// name is not <base><digits>.<image ext>.
func ParseName(name string) (m Match, ok bool) {
	parts := frameRe.FindStringSubmatch(name)
	if parts == nil {
		return Match{}, false
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil {
		return Match{}, false
	}
	return Match{
		BaseName:    parts[1],
		LeadingZero: parts[2] != "",
		Number:      n,
		DigitCount:  len(parts[2]) + len(parts[3]),
		Extension:   parts[4],
	}, true
}

// Detect returns the sequence that path belongs to, or nil. The directory
// of a confirmed match is marked in visited whatever the user answers, and a
// directory already in visited is never scanned again.
func (d *Detector) Detect(path string, visited Visited) *models.Sequence {
	dir, name := filepath.Split(path)
	dir = filepath.Clean(dir)
	if visited != nil && visited.Has(dir) {
		return nil
	}

	m, ok := ParseName(name)
	if !ok {
		return nil
	}

	fixed := m.LeadingZero || !hasVariableWidth(dir, m)

	if !hasNeighbour(dir, m, fixed) {
		return nil
	}

	d.logger.Debug("sequence: ignoring directory for further matches", slog.String("dir", dir))
	if visited != nil {
		visited.Mark(dir)
	}

	d.logger.Info("sequence: asking to import frames as sequence", slog.String("file", name))
	if !d.confirm.ConfirmSequence(name) {
		return nil
	}

	return &models.Sequence{
		BaseName:   m.BaseName,
		FixedWidth: fixed,
		DigitCount: m.DigitCount,
		Extension:  m.Extension,
		Folder:     dir,
	}
}

// FirstFrame returns the lowest frame number among the files of s on disk.
// ok is false when none exist.
func FirstFrame(s models.Sequence) (first int, ok bool) {
	matches, err := filepath.Glob(s.Glob())
	if err != nil {
		return 0, false
	}
	for _, path := range matches {
		m, parsed := ParseName(filepath.Base(path))
		if !parsed || m.BaseName != s.BaseName || m.Extension != s.Extension {
			continue
		}
		if s.FixedWidth && m.DigitCount != s.DigitCount {
			continue
		}
		if !s.FixedWidth && m.LeadingZero {
			continue
		}
		if !ok || m.Number < first {
			first, ok = m.Number, true
		}
	}
	return first, ok
}

// hasVariableWidth looks for siblings numbered with one digit more or one
// digit fewer (three when the match has a single digit).
func hasVariableWidth(dir string, m Match) bool {
	shorter := m.DigitCount - 1
	if m.DigitCount <= 1 {
		shorter = 3
	}
	for _, width := range []int{m.DigitCount + 1, shorter} {
		pattern := filepath.Join(models.EscapeGlob(dir),
			models.EscapeGlob(m.BaseName)+strings.Repeat("[0-9]", width)+"."+models.EscapeGlob(m.Extension))
		if matches, _ := filepath.Glob(pattern); len(matches) > 0 {
			return true
		}
	}
	return false
}

func hasNeighbour(dir string, m Match, fixed bool) bool {
	lo := max(0, m.Number-neighbourWindow)
	hi := min(m.Number+neighbourWindow+1, maxFrame)
	for x := lo; x < hi; x++ {
		if x == m.Number {
			continue
		}
		name := m.BaseName + formatFrame(x, m.DigitCount, fixed) + "." + m.Extension
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func formatFrame(n, digits int, fixed bool) string {
	s := strconv.Itoa(n)
	if fixed && len(s) < digits {
		s = strings.Repeat("0", digits-len(s)) + s
	}
	return s
}
