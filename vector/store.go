package vector

import (
	"context"
	"time"
)

// ChunkMetadata accompanies one chunk submitted for embedding and storage.
// Metadata entries correspond 1:1, in order, with the chunk slice and with
// the vector ids the store returns.
type ChunkMetadata struct {
	Source       string // absolute file path
	RelativePath string // path relative to the repository root, forward slashes
	ChunkIndex   int
	TotalChunks  int
	Language     string
	IndexedAt    time.Time
}

// SearchResult is one hit from a store query.
type SearchResult struct {
	ID           string
	RelativePath string
	Language     string
	Fragment     string
	Score        float64
}

// Store is the indexing collaborator: it embeds and persists chunks and
// retires them by id. Implementations must tolerate being called again with
// the same logical content; the synchronizer's hash check minimizes but does
// not eliminate redundant calls under retry.
type Store interface {
	// EmbedAndStore persists the chunks and returns one opaque vector id per
	// chunk, in chunk order.
	EmbedAndStore(ctx context.Context, chunks []string, metadata []ChunkMetadata) ([]string, error)

	// Delete retires the given vector ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Search queries the store and returns up to limit results.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// DocumentCount returns the number of stored chunks.
	DocumentCount() uint64

	// Clear drops every stored chunk. Used by a forced full re-index.
	Clear() error

	Close() error
}
