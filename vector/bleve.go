package vector

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
)

// BleveStore is an in-process Store backed by a mem-only Bleve index. Each
// chunk is one document keyed by its vector id. It performs lexical indexing
// rather than embedding math, which keeps the collaborator contract intact
// while staying self-contained; remote embedding backends implement the same
// interface.
type BleveStore struct {
	mu    sync.RWMutex
	index bleve.Index
	// chunks keeps raw chunk text by id for result fragments; Bleve itself
	// does not store the content field.
	chunks map[string]chunkDocument
}

// chunkDocument is the document structure stored in Bleve.
type chunkDocument struct {
	Content  string `json:"content"`
	Path     string `json:"path"`
	Language string `json:"language"`
	Chunk    int    `json:"chunk"`
}

// NewBleveStore creates an empty in-memory store.
func NewBleveStore() (*BleveStore, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating bleve index: %w", err)
	}
	return &BleveStore{
		index:  index,
		chunks: make(map[string]chunkDocument),
	}, nil
}

// buildIndexMapping creates the Bleve index mapping for chunk documents.
func buildIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	contentFieldMapping := bleve.NewTextFieldMapping()
	contentFieldMapping.Store = false
	contentFieldMapping.IncludeInAll = true
	docMapping.AddFieldMappingsAt("content", contentFieldMapping)

	pathFieldMapping := bleve.NewTextFieldMapping()
	pathFieldMapping.Store = true
	pathFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("path", pathFieldMapping)

	langFieldMapping := bleve.NewKeywordFieldMapping()
	langFieldMapping.Store = true
	langFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("language", langFieldMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// EmbedAndStore indexes the chunks and returns one freshly generated vector
// id per chunk, in chunk order.
func (s *BleveStore) EmbedAndStore(ctx context.Context, chunks []string, metadata []ChunkMetadata) ([]string, error) {
	if len(chunks) != len(metadata) {
		return nil, fmt.Errorf("chunk/metadata length mismatch: %d vs %d", len(chunks), len(metadata))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.index.NewBatch()
	ids := make([]string, len(chunks))
	docs := make(map[string]chunkDocument, len(chunks))

	for i, chunk := range chunks {
		id := uuid.NewString()
		doc := chunkDocument{
			Content:  chunk,
			Path:     metadata[i].RelativePath,
			Language: metadata[i].Language,
			Chunk:    metadata[i].ChunkIndex,
		}
		if err := batch.Index(id, doc); err != nil {
			return nil, fmt.Errorf("batching chunk %d for %s: %w", i, metadata[i].RelativePath, err)
		}
		ids[i] = id
		docs[id] = doc
	}

	if err := s.index.Batch(batch); err != nil {
		return nil, fmt.Errorf("storing %d chunks: %w", len(chunks), err)
	}
	for id, doc := range docs {
		s.chunks[id] = doc
	}
	return ids, nil
}

// Delete removes the documents for the given vector ids. Ids that are not
// present are ignored, so redelivered deletes are free of side effects.
func (s *BleveStore) Delete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
		delete(s.chunks, id)
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("deleting %d chunks: %w", len(ids), err)
	}
	return nil
}

// Search queries the store. Query format follows the usual conventions:
// plain text for word-level matching, "quoted text" for a phrase,
// /pattern/ for a regexp.
func (s *BleveStore) Search(ctx context.Context, queryString string, limit int) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequest(buildQuery(queryString))
	searchRequest.Size = limit
	searchRequest.Fields = []string{"path", "language"}

	searchResults, err := s.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}

	results := make([]SearchResult, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		doc, ok := s.chunks[hit.ID]
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			ID:           hit.ID,
			RelativePath: doc.Path,
			Language:     doc.Language,
			Fragment:     fragmentFor(doc.Content, queryString),
			Score:        hit.Score,
		})
	}
	return results, nil
}

// DocumentCount returns the number of stored chunks.
func (s *BleveStore) DocumentCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count, err := s.index.DocCount()
	if err != nil {
		return uint64(len(s.chunks))
	}
	return count
}

// Clear drops every stored chunk and starts over with a fresh index.
func (s *BleveStore) Clear() error {
	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("recreating bleve index: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.index
	s.index = fresh
	s.chunks = make(map[string]chunkDocument)
	return old.Close()
}

// Close releases the underlying index.
func (s *BleveStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// buildQuery parses the query string into a Bleve query.
func buildQuery(queryString string) query.Query {
	queryString = strings.TrimSpace(queryString)

	if strings.HasPrefix(queryString, "/") && strings.HasSuffix(queryString, "/") && len(queryString) > 2 {
		return bleve.NewRegexpQuery(queryString[1 : len(queryString)-1])
	}
	if strings.HasPrefix(queryString, "\"") && strings.HasSuffix(queryString, "\"") && len(queryString) > 2 {
		return bleve.NewMatchPhraseQuery(queryString[1 : len(queryString)-1])
	}
	return bleve.NewMatchQuery(queryString)
}

// fragmentFor returns the first line of the chunk containing the search
// term, or the chunk's opening line when nothing matches literally.
func fragmentFor(content string, queryString string) string {
	term := strings.Trim(strings.TrimSpace(queryString), "\"/")
	termLower := strings.ToLower(term)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		if termLower != "" && strings.Contains(strings.ToLower(line), termLower) {
			return strings.TrimSpace(line)
		}
	}
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
