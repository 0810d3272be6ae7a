package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tbalint/repovector-mcp/vector"
)

// SearchArgs defines the input parameters for the repovector_search tool.
type SearchArgs struct {
	Query      string `json:"query" jsonschema:"Search query. Plain text for word match, quoted for exact phrase, /regex/ for regular expression"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"Maximum number of chunk results to return (default 10)"`
}

// SearchHandler holds the dependencies for the search tool.
type SearchHandler struct {
	Store             vector.Store
	DefaultMaxResults int
	Logger            *slog.Logger
}

// Handle processes a repovector_search request.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	if args.Query == "" {
		h.Logger.Warn("repovector_search called with empty query")
		return errorResult("Error: query parameter is required"), nil, nil
	}

	limit := args.MaxResults
	if limit <= 0 {
		limit = h.DefaultMaxResults
	}
	if limit <= 0 {
		limit = 10
	}

	results, err := h.Store.Search(ctx, args.Query, limit)
	if err != nil {
		h.Logger.Error("repovector_search failed", "query", args.Query, "error", err)
		return errorResult(fmt.Sprintf("Search error: %v", err)), nil, nil
	}

	h.Logger.Info("repovector_search",
		"query", args.Query,
		"results", len(results),
		"elapsed", time.Since(start),
	)

	return textResult(FormatSearchResults(results)), nil, nil
}
