package syncer

import (
	"context"
	"os"
	"time"

	"github.com/tbalint/repovector-mcp/watcher"
)

// VerifyResult holds the outcome of one consistency verification pass.
type VerifyResult struct {
	MissingFiles  int // on disk but not tracked
	StaleRecords  int // tracked but no longer on disk
	ModifiedFiles int // mtime newer than the record
	Duration      time.Duration
}

// RunPeriodicVerify compares the filesystem with the record map at the given
// interval until ctx is cancelled. It is the recovery path for events lost
// to queue overflow: anything the live stream missed is found here.
func (s *Synchronizer) RunPeriodicVerify(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("sync: periodic verification started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync: periodic verification stopped")
			return
		case <-ticker.C:
			result := s.VerifyOnce(ctx)
			if result.MissingFiles+result.StaleRecords+result.ModifiedFiles > 0 {
				s.logger.Info("sync: verification repaired index",
					"missing", result.MissingFiles,
					"stale", result.StaleRecords,
					"modified", result.ModifiedFiles,
					"duration", result.Duration,
				)
			} else {
				s.logger.Debug("sync: verification found index in sync", "duration", result.Duration)
			}
		}
	}
}

// VerifyOnce runs a single verification pass: missing and modified files are
// re-indexed, stale records retired. Repairs go through the same per-path
// flights as live events, so a pass never races the batch loop on one path.
func (s *Synchronizer) VerifyOnce(ctx context.Context) VerifyResult {
	start := time.Now()
	var result VerifyResult

	descriptors, err := s.scanner.Scan(ctx)
	if err != nil {
		s.logger.Warn("sync: verification scan failed", "error", err)
		result.Duration = time.Since(start)
		return result
	}

	onDisk := make(map[string]string, len(descriptors)) // rel path -> abs path
	for _, d := range descriptors {
		onDisk[d.RelativePath] = d.Path
	}
	tracked := s.records.Snapshot()

	for relPath, absPath := range onDisk {
		record, ok := tracked[relPath]
		if ok {
			info, err := os.Stat(absPath)
			if err != nil || !info.ModTime().After(record.IndexedAt) {
				continue
			}
			result.ModifiedFiles++
		} else {
			result.MissingFiles++
		}
		s.processEvent(ctx, watcher.Event{
			Kind:    watcher.KindModified,
			Path:    absPath,
			RelPath: relPath,
			Time:    time.Now(),
		})
	}

	for relPath := range tracked {
		if _, exists := onDisk[relPath]; exists {
			continue
		}
		s.processEvent(ctx, watcher.Event{
			Kind:    watcher.KindDeleted,
			Path:    s.absolutePath(relPath),
			RelPath: relPath,
			Time:    time.Now(),
		})
		result.StaleRecords++
	}

	result.Duration = time.Since(start)
	return result
}
