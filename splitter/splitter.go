package splitter

import "strings"

// Default chunking parameters, sized for embedding-model context windows.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// separators are tried in order: paragraph break, line break, word break,
// and finally a hard character split.
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter divides text into overlapping chunks along natural boundaries.
// Splitting is deterministic: the same content always yields the same chunks
// in the same order.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a splitter. Non-positive arguments fall back to the defaults.
func New(chunkSize int, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 5
		}
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split divides content into chunks of at most the configured size,
// preferring paragraph and line boundaries, with the configured overlap
// between consecutive chunks. Empty content yields no chunks.
func (s *Splitter) Split(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if len(content) <= s.chunkSize {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < len(content) {
		end := start + s.chunkSize
		if end >= len(content) {
			chunk := content[start:]
			if strings.TrimSpace(chunk) != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := s.findCut(content[start:end])
		chunk := content[start : start+cut]
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}

		next := start + cut - s.chunkOverlap
		if next <= start {
			next = start + cut
		}
		start = next
	}
	return chunks
}

// findCut picks the split point within window, preferring the latest
// occurrence of the highest-ranked separator.
func (s *Splitter) findCut(window string) int {
	for _, sep := range separators {
		if sep == "" {
			break
		}
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return idx + len(sep)
		}
	}
	return len(window)
}
