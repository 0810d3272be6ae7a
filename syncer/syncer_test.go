package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tbalint/repovector-mcp/ignore"
	"github.com/tbalint/repovector-mcp/scan"
	"github.com/tbalint/repovector-mcp/splitter"
	"github.com/tbalint/repovector-mcp/vector"
	"github.com/tbalint/repovector-mcp/watcher"
)

// fakeStore records collaborator calls so tests can assert exactly how often
// the synchronizer drives the store.
type fakeStore struct {
	mu          sync.Mutex
	seq         int
	live        map[string]string // vector id -> relative path
	storeCalls  int
	deleteCalls int
	failStore   bool
	failDelete  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{live: make(map[string]string)}
}

func (f *fakeStore) EmbedAndStore(ctx context.Context, chunks []string, metadata []vector.ChunkMetadata) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storeCalls++
	if f.failStore {
		return nil, errors.New("store unavailable")
	}
	ids := make([]string, len(chunks))
	for i := range chunks {
		f.seq++
		ids[i] = fmt.Sprintf("v%d", f.seq)
		f.live[ids[i]] = metadata[i].RelativePath
	}
	return ids, nil
}

func (f *fakeStore) Delete(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.failDelete {
		return errors.New("delete unavailable")
	}
	for _, id := range ids {
		delete(f.live, id)
	}
	return nil
}

func (f *fakeStore) Search(ctx context.Context, query string, limit int) ([]vector.SearchResult, error) {
	return nil, nil
}

func (f *fakeStore) DocumentCount() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.live))
}

func (f *fakeStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live = make(map[string]string)
	return nil
}

func (f *fakeStore) Close() error { return nil }

// liveFor returns the live vector ids stored for one relative path.
func (f *fakeStore) liveFor(relPath string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, path := range f.live {
		if path == relPath {
			ids = append(ids, id)
		}
	}
	return ids
}

func (f *fakeStore) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storeCalls, f.deleteCalls
}

// stubSource is a hand-fed event source.
type stubSource struct {
	events   chan watcher.Event
	stopOnce sync.Once
}

func newStubSource() *stubSource {
	return &stubSource{events: make(chan watcher.Event, 64)}
}

func (s *stubSource) Events() <-chan watcher.Event { return s.events }

func (s *stubSource) Stop() error {
	s.stopOnce.Do(func() { close(s.events) })
	return nil
}

func newTestSyncer(t *testing.T, rootDir string, store vector.Store) (*Synchronizer, *stubSource) {
	return newTestSyncerWithLimit(t, rootDir, store, 0)
}

func newTestSyncerWithLimit(t *testing.T, rootDir string, store vector.Store, maxFileSizeBytes int64) (*Synchronizer, *stubSource) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	matcher := ignore.NewMatcher(ignore.MatcherOptions{
		RootDir:          rootDir,
		MaxFileSizeBytes: maxFileSizeBytes,
		Logger:           logger,
	})
	source := newStubSource()
	s := New(
		rootDir,
		Config{BatchSize: 4, BatchWait: 20 * time.Millisecond},
		store,
		splitter.New(0, 0),
		scan.NewScanner(rootDir, matcher, logger),
		matcher,
		NewRecords(),
		source,
		logger,
	)
	return s, source
}

// runPipeline starts the synchronizer, feeds it the given events, then
// drains and stops it.
func runPipeline(t *testing.T, s *Synchronizer, source *stubSource, events ...watcher.Event) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()
	for _, event := range events {
		source.events <- event
	}
	s.Stop()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func modifiedEvent(rootDir string, relPath string) watcher.Event {
	return watcher.Event{
		Kind:    watcher.KindModified,
		Path:    filepath.Join(rootDir, filepath.FromSlash(relPath)),
		RelPath: relPath,
		Time:    time.Now(),
	}
}

func deletedEvent(rootDir string, relPath string) watcher.Event {
	event := modifiedEvent(rootDir, relPath)
	event.Kind = watcher.KindDeleted
	return event
}

func Test_Synchronizer_BootstrapIndexesSnapshot(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.go"), "package a\n")
	writeFile(t, filepath.Join(tmpDir, "sub", "b.py"), "print('b')\n")

	store := newFakeStore()
	s, source := newTestSyncer(t, tmpDir, store)
	runPipeline(t, s, source)

	if s.Records().Len() != 2 {
		t.Fatalf("expected 2 records after bootstrap, got %d", s.Records().Len())
	}
	record, ok := s.Records().Get("a.go")
	if !ok {
		t.Fatal("expected record for a.go")
	}
	if record.ContentHash == "" || len(record.VectorIDs) == 0 {
		t.Errorf("incomplete record %+v", record)
	}
	if record.Language != "Go" {
		t.Errorf("expected language Go, got %q", record.Language)
	}
	if store.DocumentCount() == 0 {
		t.Error("expected vectors in the store after bootstrap")
	}
}

func Test_Synchronizer_UnchangedContentIsFree(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.go"), "package a\n")

	store := newFakeStore()
	s, source := newTestSyncer(t, tmpDir, store)
	// Bootstrap indexes a.go once; the two redelivered events must be free.
	runPipeline(t, s, source,
		modifiedEvent(tmpDir, "a.go"),
		modifiedEvent(tmpDir, "a.go"),
	)

	storeCalls, _ := store.calls()
	if storeCalls != 1 {
		t.Errorf("expected exactly 1 store call for unchanged content, got %d", storeCalls)
	}
}

func Test_Synchronizer_ModifiedContentReplacesVectors(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "a.go")
	writeFile(t, path, "package a\n")

	store := newFakeStore()
	s, source := newTestSyncer(t, tmpDir, store)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	// Wait for bootstrap, then rewrite the file and deliver the event.
	waitFor(t, func() bool { return s.Records().Len() == 1 })
	firstIDs := store.liveFor("a.go")

	writeFile(t, path, "package a\n\nfunc changed() {}\n")
	source.events <- modifiedEvent(tmpDir, "a.go")
	s.Stop()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}

	secondIDs := store.liveFor("a.go")
	if len(secondIDs) == 0 {
		t.Fatal("expected live vectors after modification")
	}
	for _, old := range firstIDs {
		for _, current := range secondIDs {
			if old == current {
				t.Errorf("expected old vector %s to be retired", old)
			}
		}
	}
	record, _ := s.Records().Get("a.go")
	if len(record.VectorIDs) != len(secondIDs) {
		t.Errorf("record tracks %d ids, store holds %d", len(record.VectorIDs), len(secondIDs))
	}
}

func Test_Synchronizer_DeleteRetiresExactlyOnce(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "a.go")
	writeFile(t, path, "package a\n")

	store := newFakeStore()
	s, source := newTestSyncer(t, tmpDir, store)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()
	waitFor(t, func() bool { return s.Records().Len() == 1 })

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	// Two delete events for the same path: the second must be a no-op.
	source.events <- deletedEvent(tmpDir, "a.go")
	source.events <- deletedEvent(tmpDir, "a.go")
	s.Stop()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}

	_, deleteCalls := store.calls()
	if deleteCalls != 1 {
		t.Errorf("expected exactly 1 delete call, got %d", deleteCalls)
	}
	if store.DocumentCount() != 0 {
		t.Errorf("expected no live vectors, got %d", store.DocumentCount())
	}
	if _, ok := s.Records().Get("a.go"); ok {
		t.Error("expected record to be removed")
	}
}

func Test_Synchronizer_DeleteWithoutRecordIsNoop(t *testing.T) {
	tmpDir := t.TempDir()

	store := newFakeStore()
	s, source := newTestSyncer(t, tmpDir, store)
	runPipeline(t, s, source, deletedEvent(tmpDir, "ghost.go"))

	_, deleteCalls := store.calls()
	if deleteCalls != 0 {
		t.Errorf("expected no delete calls for untracked path, got %d", deleteCalls)
	}
}

func Test_Synchronizer_SkipsBinaryAndOversized(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "blob.bin"), []byte{0x00, 0x01, 0x02}, 0644); err != nil {
		t.Fatal(err)
	}

	store := newFakeStore()
	s, source := newTestSyncerWithLimit(t, tmpDir, store, 16)
	writeFile(t, filepath.Join(tmpDir, "big.txt"), "this content exceeds sixteen bytes by far\n")
	writeFile(t, filepath.Join(tmpDir, "ok.txt"), "short\n")
	runPipeline(t, s, source)

	if _, ok := s.Records().Get("blob.bin"); ok {
		t.Error("expected binary file to be skipped")
	}
	if _, ok := s.Records().Get("big.txt"); ok {
		t.Error("expected oversized file to be skipped")
	}
	if _, ok := s.Records().Get("ok.txt"); !ok {
		t.Error("expected small text file to be indexed")
	}
}

func Test_Synchronizer_StoreFailureDiscardsRecordAndContinues(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "bad.go"), "package bad\n")
	writeFile(t, filepath.Join(tmpDir, "good.go"), "package good\n")

	store := newFakeStore()
	store.failStore = true
	s, source := newTestSyncer(t, tmpDir, store)
	runPipeline(t, s, source)

	if s.Records().Len() != 0 {
		t.Fatalf("expected no records while the store fails, got %d", s.Records().Len())
	}

	// The store recovers; a fresh event retries cleanly.
	store.mu.Lock()
	store.failStore = false
	store.mu.Unlock()

	s2, source2 := newTestSyncer(t, tmpDir, store)
	runPipeline(t, s2, source2)
	if s2.Records().Len() != 2 {
		t.Errorf("expected both files indexed after recovery, got %d", s2.Records().Len())
	}
}

func Test_Synchronizer_StaleRetireFailureKeepsNewRecord(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "a.go")
	writeFile(t, path, "package a\n")

	store := newFakeStore()
	store.failDelete = true
	s, source := newTestSyncer(t, tmpDir, store)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()
	waitFor(t, func() bool { return s.Records().Len() == 1 })

	writeFile(t, path, "package a\n\nfunc changed() {}\n")
	source.events <- modifiedEvent(tmpDir, "a.go")
	s.Stop()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}

	// The new generation was stored, so the record must survive the failed
	// retire and track the new ids.
	record, ok := s.Records().Get("a.go")
	if !ok {
		t.Fatal("expected record to survive a failed stale-vector retire")
	}
	storeCalls, deleteCalls := store.calls()
	if storeCalls != 2 {
		t.Fatalf("expected 2 store calls, got %d", storeCalls)
	}
	if deleteCalls != 1 {
		t.Fatalf("expected 1 attempted delete, got %d", deleteCalls)
	}
	live := store.liveFor("a.go")
	for _, id := range record.VectorIDs {
		found := false
		for _, liveID := range live {
			if id == liveID {
				found = true
			}
		}
		if !found {
			t.Errorf("record tracks id %s that is not live in the store", id)
		}
	}
}

func Test_Synchronizer_VanishedFileOnReadRetires(t *testing.T) {
	tmpDir := t.TempDir()

	store := newFakeStore()
	s, source := newTestSyncer(t, tmpDir, store)
	// Event for a path that never existed on disk.
	runPipeline(t, s, source, modifiedEvent(tmpDir, "gone.go"))

	if _, ok := s.Records().Get("gone.go"); ok {
		t.Error("expected no record for a vanished file")
	}
	storeCalls, _ := store.calls()
	if storeCalls != 0 {
		t.Errorf("expected no store calls, got %d", storeCalls)
	}
}

func Test_Synchronizer_VerifyRepairsDrift(t *testing.T) {
	tmpDir := t.TempDir()
	keep := filepath.Join(tmpDir, "keep.go")
	writeFile(t, keep, "package keep\n")
	stale := filepath.Join(tmpDir, "stale.go")
	writeFile(t, stale, "package stale\n")

	store := newFakeStore()
	s, _ := newTestSyncer(t, tmpDir, store)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()
	waitFor(t, func() bool { return s.Records().Len() == 2 })

	// Drift: one file deleted, one created, with no events delivered.
	if err := os.Remove(stale); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(tmpDir, "missing.go"), "package missing\n")

	result := s.VerifyOnce(context.Background())
	if result.MissingFiles != 1 {
		t.Errorf("expected 1 missing file, got %d", result.MissingFiles)
	}
	if result.StaleRecords != 1 {
		t.Errorf("expected 1 stale record, got %d", result.StaleRecords)
	}

	if _, ok := s.Records().Get("missing.go"); !ok {
		t.Error("expected missing.go to be indexed by verification")
	}
	if _, ok := s.Records().Get("stale.go"); ok {
		t.Error("expected stale.go record to be retired by verification")
	}

	s.Stop()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
}

func Test_Synchronizer_ReindexRebuildsFromScratch(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.go"), "package a\n")

	store := newFakeStore()
	s, _ := newTestSyncer(t, tmpDir, store)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()
	waitFor(t, func() bool { return s.Records().Len() == 1 })

	writeFile(t, filepath.Join(tmpDir, "b.go"), "package b\n")
	files, size, err := s.Reindex(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if files != 2 {
		t.Errorf("expected 2 files after reindex, got %d", files)
	}
	if size <= 0 {
		t.Errorf("expected positive total size, got %d", size)
	}

	s.Stop()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
}

func Test_Synchronizer_MissingRootFailsStartup(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	store := newFakeStore()
	s, _ := newTestSyncer(t, missing, store)

	if err := s.Start(context.Background()); err == nil {
		t.Error("expected startup error for missing repository root")
	}
}

// waitFor polls until the condition holds or the test times out.
func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
