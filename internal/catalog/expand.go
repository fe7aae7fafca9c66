package catalog

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ProjectExt is the extension of project files. A dropped project file is
// skipped rather than imported; projects are opened with --project.
const ProjectExt = ".mediabin"

// ExpandPaths turns dropped paths into an import batch. Directories are walked
// recursively and make the import quiet; symlinks to regular files are
// followed. Missing paths and project files are skipped. The result is
// absolute and sorted.
func ExpandPaths(inputs []string, logger *slog.Logger) (paths []string, quiet bool) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			logger.Warn("catalog: bad path", slog.String("path", in), slog.String("error", err.Error()))
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			logger.Debug("catalog: skipping missing path", slog.String("path", abs))
			continue
		}
		if !info.IsDir() {
			if isProjectFile(abs, logger) {
				continue
			}
			paths = append(paths, abs)
			continue
		}

		quiet = true
		logger.Info("catalog: recursively importing", slog.String("dir", abs))
		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if d != nil && d.IsDir() && p != abs {
					return filepath.SkipDir
				}
				return walkErr
			}
			if d.Type()&fs.ModeSymlink != 0 {
				if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
					return nil
				}
			} else if !d.Type().IsRegular() {
				return nil
			}
			if !isProjectFile(p, logger) {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			logger.Warn("catalog: directory walk failed", slog.String("dir", abs), slog.String("error", err.Error()))
		}
	}
	sort.Strings(paths)
	return paths, quiet
}

func isProjectFile(path string, logger *slog.Logger) bool {
	if !strings.EqualFold(filepath.Ext(path), ProjectExt) {
		return false
	}
	logger.Warn("catalog: not importing project file, open it with --project", slog.String("path", path))
	return true
}
