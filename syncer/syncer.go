package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tbalint/repovector-mcp/checksum"
	"github.com/tbalint/repovector-mcp/ignore"
	"github.com/tbalint/repovector-mcp/language"
	"github.com/tbalint/repovector-mcp/scan"
	"github.com/tbalint/repovector-mcp/splitter"
	"github.com/tbalint/repovector-mcp/vector"
	"github.com/tbalint/repovector-mcp/watcher"
)

// Skip reasons for content that is read but not indexed. These are not
// failures; the path simply stays untracked.
var (
	errNotText  = errors.New("content is not decodable text")
	errTooLarge = errors.New("content exceeds size limit")
)

// batchWorkers bounds concurrent per-path processing within one batch.
const batchWorkers = 4

// EventSource is the upstream change detector. Stop must close the event
// channel once every buffered event has been handed over.
type EventSource interface {
	Events() <-chan watcher.Event
	Stop() error
}

// Config holds the synchronizer's tunables. The file size limit lives on
// the ignore matcher, which the synchronizer consults.
type Config struct {
	BatchSize int           // events pulled per batch
	BatchWait time.Duration // per-item wait before a partial batch is processed
}

// Synchronizer consumes the bootstrap snapshot and the live event stream and
// drives the vector store. It is the only writer of the record map and the
// only caller of the store.
type Synchronizer struct {
	rootDir  string
	config   Config
	store    vector.Store
	splitter *splitter.Splitter
	scanner  *scan.Scanner
	matcher  *ignore.Matcher
	records  *Records
	logger   *slog.Logger

	// flight serializes work per relative path while letting distinct
	// paths proceed concurrently.
	flight singleflight.Group

	source   EventSource
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a synchronizer. The record map starts empty; the bootstrap
// scan in Start populates it.
func New(
	rootDir string,
	config Config,
	store vector.Store,
	split *splitter.Splitter,
	scanner *scan.Scanner,
	matcher *ignore.Matcher,
	records *Records,
	source EventSource,
	logger *slog.Logger,
) *Synchronizer {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.BatchWait <= 0 {
		config.BatchWait = time.Second
	}
	return &Synchronizer{
		rootDir:  rootDir,
		config:   config,
		store:    store,
		splitter: split,
		scanner:  scanner,
		matcher:  matcher,
		records:  records,
		source:   source,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Records exposes the record map for status and files tooling.
func (s *Synchronizer) Records() *Records {
	return s.records
}

// Start ingests the bootstrap snapshot, then processes live events in
// batches until Stop is called (or ctx is cancelled). It blocks for the
// lifetime of the pipeline; run it in its own goroutine.
func (s *Synchronizer) Start(ctx context.Context) error {
	defer close(s.done)

	if info, err := os.Stat(s.rootDir); err != nil || !info.IsDir() {
		return fmt.Errorf("repository root %s is not a directory", s.rootDir)
	}

	if err := s.bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap scan: %w", err)
	}

	events := s.source.Events()
	for {
		batch, open := s.nextBatch(ctx, events)
		if len(batch) > 0 {
			s.processBatch(ctx, batch)
		}
		if !open {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Stop shuts the event source, then blocks until every enqueued event has
// been drained and processed and Start has returned.
func (s *Synchronizer) Stop() {
	s.stopOnce.Do(func() {
		if err := s.source.Stop(); err != nil {
			s.logger.Warn("sync: stopping event source", "error", err)
		}
		<-s.done
	})
}

// bootstrap converts the scanner's snapshot into synthetic created events
// and processes them in batches.
func (s *Synchronizer) bootstrap(ctx context.Context) error {
	descriptors, err := s.scanner.Scan(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("sync: bootstrap snapshot", "files", len(descriptors))

	batch := make([]watcher.Event, 0, s.config.BatchSize)
	for _, d := range descriptors {
		batch = append(batch, watcher.Event{
			Kind:    watcher.KindCreated,
			Path:    d.Path,
			RelPath: d.RelativePath,
			Time:    time.Now(),
			Size:    d.SizeBytes,
		})
		if len(batch) == s.config.BatchSize {
			s.processBatch(ctx, batch)
			batch = batch[:0]
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if len(batch) > 0 {
		s.processBatch(ctx, batch)
	}
	return nil
}

// nextBatch pulls events off the queue up to the batch size, or until the
// per-item wait times out, whichever comes first. The second return value is
// false once the event channel has closed and drained.
func (s *Synchronizer) nextBatch(ctx context.Context, events <-chan watcher.Event) ([]watcher.Event, bool) {
	var batch []watcher.Event
	timer := time.NewTimer(s.config.BatchWait)
	defer timer.Stop()

	for len(batch) < s.config.BatchSize {
		select {
		case event, ok := <-events:
			if !ok {
				return batch, false
			}
			batch = append(batch, event)
		case <-timer.C:
			return batch, true
		case <-ctx.Done():
			return batch, true
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.config.BatchWait)
	}
	return batch, true
}

// processBatch handles a batch's events concurrently across paths while
// keeping events for one path in arrival order. A failure on one path never
// aborts the rest of the batch, and an in-flight batch always runs to
// completion, cancellation notwithstanding, so Stop can account for every
// drained event.
func (s *Synchronizer) processBatch(ctx context.Context, batch []watcher.Event) {
	ctx = context.WithoutCancel(ctx)

	byPath := make(map[string][]watcher.Event)
	var order []string
	for _, event := range batch {
		if _, seen := byPath[event.RelPath]; !seen {
			order = append(order, event.RelPath)
		}
		byPath[event.RelPath] = append(byPath[event.RelPath], event)
	}

	var group errgroup.Group
	group.SetLimit(batchWorkers)
	for _, relPath := range order {
		events := byPath[relPath]
		group.Go(func() error {
			for _, event := range events {
				s.processEvent(ctx, event)
			}
			return nil
		})
	}
	group.Wait()
}

// processEvent dispatches one event under the path's flight.
func (s *Synchronizer) processEvent(ctx context.Context, event watcher.Event) {
	if event.IsDir {
		return
	}

	s.flight.Do(event.RelPath, func() (any, error) {
		switch event.Kind {
		case watcher.KindDeleted, watcher.KindMoved:
			if err := s.retire(ctx, event.RelPath); err != nil {
				// Keep the record: a later delete (periodic verification
				// re-issues one) retries the store call.
				s.logger.Error("sync: retiring path", "path", event.RelPath, "error", err)
			}
		case watcher.KindCreated, watcher.KindModified:
			if err := s.ensureIndexed(ctx, event.RelPath, event.Path); err != nil {
				// Discard the record so the next relevant event starts clean.
				s.logger.Error("sync: indexing path", "path", event.RelPath, "error", err)
				s.records.Remove(event.RelPath)
			}
		}
		return nil, nil
	})
}

// retire removes a path's vectors from the store and drops its record.
// Paths without a record are a no-op, so coalesced or redelivered deletes
// have no side effects.
func (s *Synchronizer) retire(ctx context.Context, relPath string) error {
	record, ok := s.records.Get(relPath)
	if !ok {
		return nil
	}
	if len(record.VectorIDs) > 0 {
		if err := s.store.Delete(ctx, record.VectorIDs); err != nil {
			return fmt.Errorf("deleting %d vectors: %w", len(record.VectorIDs), err)
		}
	}
	s.records.Remove(relPath)
	s.logger.Debug("sync: retired path", "path", relPath)
	return nil
}

// ensureIndexed brings a path's stored vectors in line with its current
// content. Unreadable, non-text, and oversized content is skipped without
// error; an unchanged content hash costs zero store calls.
func (s *Synchronizer) ensureIndexed(ctx context.Context, relPath string, absPath string) error {
	data, err := readFileWithRetry(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			// The file vanished between the event and the read.
			return s.retire(ctx, relPath)
		}
		s.logger.Warn("sync: cannot read file, skipping", "path", relPath, "error", err)
		return nil
	}

	if reason := s.checkContent(data); reason != nil {
		s.logger.Debug("sync: skipping file", "path", relPath, "reason", reason)
		return nil
	}

	hash := checksum.Sum(data)
	previous, hadPrevious := s.records.Get(relPath)
	if hadPrevious && previous.ContentHash == hash {
		return nil
	}

	s.records.Begin(relPath)

	lang := language.Detect(absPath)
	chunks := s.splitter.Split(string(data))

	var vectorIDs []string
	if len(chunks) > 0 {
		now := time.Now()
		metadata := make([]vector.ChunkMetadata, len(chunks))
		for i := range chunks {
			metadata[i] = vector.ChunkMetadata{
				Source:       absPath,
				RelativePath: relPath,
				ChunkIndex:   i,
				TotalChunks:  len(chunks),
				Language:     lang,
				IndexedAt:    now,
			}
		}
		vectorIDs, err = s.store.EmbedAndStore(ctx, chunks, metadata)
		if err != nil {
			return fmt.Errorf("storing %d chunks: %w", len(chunks), err)
		}
	}

	// New vectors first, old ones retired after: the path never has zero
	// coverage, at the cost of transient duplicates within this flight.
	// A failed retire must not discard the record: the new vectors are
	// already stored, and dropping their ids would orphan both generations.
	if hadPrevious && len(previous.VectorIDs) > 0 {
		if err := s.store.Delete(ctx, previous.VectorIDs); err != nil {
			s.logger.Warn("sync: failed to retire stale vectors",
				"path", relPath, "count", len(previous.VectorIDs), "error", err)
		}
	}

	s.records.Set(relPath, Record{
		ContentHash: hash,
		VectorIDs:   vectorIDs,
		IndexedAt:   time.Now(),
		Language:    lang,
		SizeBytes:   int64(len(data)),
	})
	s.logger.Debug("sync: indexed path", "path", relPath, "chunks", len(chunks))
	return nil
}

// checkContent returns a skip reason for content that cannot be indexed.
func (s *Synchronizer) checkContent(data []byte) error {
	if s.matcher.IsFileTooLarge(int64(len(data))) {
		return errTooLarge
	}
	if !language.IsText(data) {
		return errNotText
	}
	return nil
}

// readFileWithRetry reads a file, retrying once after a short delay for
// editors that hold a lock while saving.
func readFileWithRetry(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil || os.IsNotExist(err) {
		return data, err
	}
	time.Sleep(50 * time.Millisecond)
	return os.ReadFile(path)
}

// Reindex drops all records and stored vectors, reloads the ignore rules,
// and rebuilds the index from a fresh scan. Returns the number of files
// indexed and their combined size.
func (s *Synchronizer) Reindex(ctx context.Context) (int, int64, error) {
	s.records.Clear()
	if err := s.store.Clear(); err != nil {
		return 0, 0, fmt.Errorf("clearing store: %w", err)
	}
	s.matcher.Reload()

	if err := s.bootstrap(ctx); err != nil {
		return 0, 0, err
	}
	return s.records.Len(), s.records.TotalSizeBytes(), nil
}

// absolutePath maps a relative path back under the root.
func (s *Synchronizer) absolutePath(relPath string) string {
	return filepath.Join(s.rootDir, filepath.FromSlash(relPath))
}
