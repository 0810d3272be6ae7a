package syncer

import (
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Record is the bookkeeping entry for one indexed path: its last-known
// content hash and the vector ids currently stored for it. Once a record is
// complete (InProgress false), its vector ids are exactly the set present in
// the store for that path.
type Record struct {
	ContentHash string
	VectorIDs   []string
	IndexedAt   time.Time
	InProgress  bool
	Language    string
	SizeBytes   int64
}

// Records owns the path -> Record map, the one piece of mutable state shared
// across concurrently processed paths. All access goes through its lock;
// per-path exclusion during processing is layered on top by the
// synchronizer's singleflight group.
type Records struct {
	mu     sync.RWMutex
	byPath map[string]Record
}

// NewRecords creates an empty record map.
func NewRecords() *Records {
	return &Records{byPath: make(map[string]Record)}
}

// Get returns a copy of the record for relPath.
func (r *Records) Get(relPath string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.byPath[relPath]
	return record, ok
}

// Set stores the record for relPath.
func (r *Records) Set(relPath string, record Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPath[relPath] = record
}

// Remove deletes the record for relPath. Removing an absent path is a no-op.
func (r *Records) Remove(relPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPath, relPath)
}

// Begin marks an existing record as in progress. Paths without a record are
// left alone; their record is only created on successful indexing.
func (r *Records) Begin(relPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.byPath[relPath]; ok {
		record.InProgress = true
		r.byPath[relPath] = record
	}
}

// InProgressCount returns the number of paths whose stored vectors are
// being replaced right now.
func (r *Records) InProgressCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, record := range r.byPath {
		if record.InProgress {
			count++
		}
	}
	return count
}

// Len returns the number of tracked paths.
func (r *Records) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPath)
}

// Snapshot returns a copy of the whole record map.
func (r *Records) Snapshot() map[string]Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]Record, len(r.byPath))
	for path, record := range r.byPath {
		snapshot[path] = record
	}
	return snapshot
}

// Paths returns all tracked paths, sorted.
func (r *Records) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.byPath))
	for path := range r.byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Glob returns the tracked paths matching a doublestar pattern, sorted.
func (r *Records) Glob(pattern string) []string {
	var matched []string
	for _, path := range r.Paths() {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			matched = append(matched, path)
		}
	}
	return matched
}

// LanguageCounts returns the number of tracked paths per language.
func (r *Records) LanguageCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, record := range r.byPath {
		counts[record.Language]++
	}
	return counts
}

// TotalSizeBytes returns the combined size of all tracked files as of their
// last indexing.
func (r *Records) TotalSizeBytes() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, record := range r.byPath {
		total += record.SizeBytes
	}
	return total
}

// Clear drops every record.
func (r *Records) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPath = make(map[string]Record)
}
