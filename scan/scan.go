package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tbalint/repovector-mcp/ignore"
)

// FileDescriptor describes one file included in a snapshot. Descriptors are
// produced fresh on every scan and never mutated.
type FileDescriptor struct {
	Path         string // absolute path
	RelativePath string // relative to the repository root, forward slashes
	Dir          string // containing directory, absolute
	SizeBytes    int64
}

// statWorkers bounds the concurrent stat fan-out.
const statWorkers = 8

// Scanner walks the repository tree and produces a complete snapshot of the
// files the ignore rules admit. Used for the bootstrap snapshot and for a
// forced full re-index.
type Scanner struct {
	rootDir string
	matcher *ignore.Matcher
	logger  *slog.Logger
}

// NewScanner creates a scanner rooted at rootDir.
func NewScanner(rootDir string, matcher *ignore.Matcher, logger *slog.Logger) *Scanner {
	return &Scanner{rootDir: rootDir, matcher: matcher, logger: logger}
}

// Scan walks the tree once and returns descriptors for every non-ignored
// file. Permission errors are logged and the affected subtree skipped; the
// scan as a whole always completes.
func (s *Scanner) Scan(ctx context.Context) ([]FileDescriptor, error) {
	if info, err := os.Stat(s.rootDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", s.rootDir)
	}

	var accepted []string
	filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("scan: skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == s.rootDir {
				return nil
			}
			if ignore.IsVCSMetadataDir(d.Name()) || s.matcher.ShouldIgnore(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.matcher.ShouldIgnore(path) {
			return nil
		}
		accepted = append(accepted, path)
		return nil
	})

	// Stat accepted files concurrently and gather into one snapshot.
	var mu sync.Mutex
	descriptors := make([]FileDescriptor, 0, len(accepted))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(statWorkers)
	for _, path := range accepted {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				s.logger.Warn("scan: cannot stat file", "path", path, "error", err)
				return nil
			}
			relPath, _ := filepath.Rel(s.rootDir, path)
			descriptor := FileDescriptor{
				Path:         path,
				RelativePath: filepath.ToSlash(relPath),
				Dir:          filepath.Dir(path),
				SizeBytes:    info.Size(),
			}
			mu.Lock()
			descriptors = append(descriptors, descriptor)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return descriptors, nil
}
