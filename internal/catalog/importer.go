package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/starford/mediabin/internal/models"
	"github.com/starford/mediabin/internal/probe"
	"github.com/starford/mediabin/internal/sequence"
)

// ProgressThreshold is the batch size above which progress is reported.
const ProgressThreshold = 15

// ErrorSink surfaces a non-fatal per-file import failure.
type ErrorSink interface {
	ReportImportError(fileName string, err error)
}

// Progress is reported after each processed file of a large batch.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ImportOptions tune one import run.
type ImportOptions struct {
	// Hint, when set, is used as the sequence descriptor for every path
	// instead of running detection.
	Hint *models.Sequence
	// Quiet suppresses Sink notifications. Errors are still recorded.
	Quiet    bool
	Sink     ErrorSink
	Progress func(Progress)
}

// FileError is a recoverable failure for one input path.
type FileError struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Err  error  `json:"-"`
}

func (e FileError) Error() string { return e.Name + ": " + e.Err.Error() }

// Report summarises an import run.
type Report struct {
	Imported   int         `json:"imported"`
	Skipped    int         `json:"skipped"`
	Duplicates int         `json:"duplicates"`
	Collapsed  int         `json:"collapsed"`
	Errors     []FileError `json:"errors,omitempty"`
	AssetIDs   []string    `json:"asset_ids,omitempty"`
	Cancelled  bool        `json:"cancelled"`
}

// ImportRun is an import batch processed one file per Step.
type ImportRun struct {
	c       *Catalog
	opts    ImportOptions
	queue   []string
	pos     int
	total   int
	visited sequence.Visited
	report  Report
}

// BeginImport starts a batch over paths, processed in order.
func (c *Catalog) BeginImport(paths []string, opts ImportOptions) *ImportRun {
	return &ImportRun{
		c:       c,
		opts:    opts,
		queue:   slices.Clone(paths),
		total:   len(paths),
		visited: sequence.NewVisited(),
	}
}

// Import runs a whole batch. ctx is only checked between files.
func (c *Catalog) Import(ctx context.Context, paths []string, opts ImportOptions) Report {
	run := c.BeginImport(paths, opts)
	for !run.Step(ctx) {
	}
	return run.Report()
}

// Done reports whether no file is left to process.
func (r *ImportRun) Done() bool { return r.pos >= len(r.queue) }

// Remaining returns the number of queued files not yet processed.
func (r *ImportRun) Remaining() int { return len(r.queue) - r.pos }

// Cancel drops every file not yet processed.
func (r *ImportRun) Cancel() {
	if r.Done() {
		return
	}
	r.pos = len(r.queue)
	r.report.Cancelled = true
}

// Report returns the summary so far.
func (r *ImportRun) Report() Report {
	rep := r.report
	rep.Skipped = rep.Duplicates + len(rep.Errors)
	rep.Errors = slices.Clone(rep.Errors)
	rep.AssetIDs = slices.Clone(rep.AssetIDs)
	return rep
}

// Step processes the next file and reports whether the run is finished.
// A cancelled ctx cancels the run before the next file.
func (r *ImportRun) Step(ctx context.Context) bool {
	if r.Done() {
		return true
	}
	if ctx.Err() != nil {
		r.Cancel()
		return true
	}

	path := r.queue[r.pos]
	r.pos++
	r.importFile(ctx, path)

	if r.total > ProgressThreshold && r.opts.Progress != nil {
		r.opts.Progress(Progress{Current: r.pos, Total: len(r.queue)})
	}
	return r.Done()
}

func (r *ImportRun) importFile(ctx context.Context, path string) {
	c := r.c
	if _, ok := c.byPath[path]; ok {
		r.report.Duplicates++
		return
	}

	meta, err := c.prober.Probe(ctx, path, probe.Single)
	if err != nil {
		r.fail(path, err)
		return
	}

	dir := filepath.Dir(path)
	asset := models.Asset{
		ID:        c.newID(),
		Path:      path,
		Title:     filepath.Base(path),
		MediaType: probe.Classify(meta),
		Metadata:  meta,
	}

	seq := r.opts.Hint
	if seq == nil {
		seq = c.detector.Detect(path, r.visited)
	}
	if seq != nil {
		s := *seq
		if s.Folder == "" {
			s.Folder = dir
		}
		if s.StartNumber == 0 {
			if first, ok := sequence.FirstFrame(s); ok {
				s.StartNumber = first
			}
		}
		pattern := s.PatternPath()

		if _, ok := c.byPath[pattern]; ok {
			r.collapse(s, path)
			r.report.Duplicates++
			return
		}

		seqMeta, err := c.prober.Probe(ctx, pattern, probe.Sequence(s.StartNumber))
		if err != nil {
			r.fail(path, fmt.Errorf("sequence %s: %w", s.Pattern(), err))
			return
		}

		asset.Path = pattern
		asset.Title = s.Pattern()
		if s.BaseName == "" {
			asset.Title = fmt.Sprintf("%s (%s)", filepath.Base(s.Folder), s.Pattern())
		}
		asset.MediaType = models.MediaVideo
		asset.Metadata.Duration = seqMeta.Duration
		asset.Metadata.VideoLength = seqMeta.VideoLength
		asset.Sequence = &s

		c.logger.Info("catalog: imported image sequence",
			slog.String("file", path), slog.String("pattern", s.Pattern()))
		r.collapse(s, path)
	} else {
		c.logger.Info("catalog: imported media file", slog.String("file", path))
	}

	if _, err := c.insert(asset); err != nil {
		r.fail(path, err)
		return
	}
	r.report.Imported++
	r.report.AssetIDs = append(r.report.AssetIDs, asset.ID)
	c.setImportPath(dir)
}

// collapse drops queued sibling frames of s from the rest of the batch.
func (r *ImportRun) collapse(s models.Sequence, current string) {
	matches, err := filepath.Glob(s.Glob())
	if err != nil || len(matches) == 0 {
		return
	}
	siblings := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		siblings[filepath.Clean(m)] = struct{}{}
	}

	rest := r.queue[r.pos:]
	kept := rest[:0]
	for _, p := range rest {
		if _, ok := siblings[filepath.Clean(p)]; ok && p != current {
			r.report.Collapsed++
			continue
		}
		kept = append(kept, p)
	}
	r.queue = r.queue[:r.pos+len(kept)]
	r.c.logger.Debug("catalog: removed sequence frames from batch",
		slog.String("glob", s.Glob()), slog.Int("remaining", r.Remaining()))
}

func (r *ImportRun) fail(path string, err error) {
	fe := FileError{Path: path, Name: filepath.Base(path), Err: err}
	r.report.Errors = append(r.report.Errors, fe)
	r.c.logger.Warn("catalog: failed to import",
		slog.String("file", path), slog.String("error", err.Error()))
	if !r.opts.Quiet && r.opts.Sink != nil {
		r.opts.Sink.ReportImportError(fe.Name, err)
	}
}
