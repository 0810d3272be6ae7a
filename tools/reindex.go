package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ReindexArgs defines the input parameters for the repovector_reindex tool.
type ReindexArgs struct{}

// ReindexFunc is the function signature for the reindex operation.
// It is provided by main.go to avoid circular dependencies.
type ReindexFunc func(ctx context.Context) (indexedCount int, totalSize int64, err error)

// ReindexHandler holds the dependencies for the reindex tool.
type ReindexHandler struct {
	DoReindex ReindexFunc
	Logger    *slog.Logger
}

// Handle processes a repovector_reindex request.
func (h *ReindexHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReindexArgs) (*mcp.CallToolResult, any, error) {
	h.Logger.Info("repovector_reindex started")
	start := time.Now()

	indexedCount, totalSize, err := h.DoReindex(ctx)
	if err != nil {
		h.Logger.Error("repovector_reindex failed", "error", err)
		return errorResult(fmt.Sprintf("Reindex error: %v", err)), nil, nil
	}

	elapsed := time.Since(start).Round(time.Millisecond)
	h.Logger.Info("repovector_reindex complete",
		"files", indexedCount,
		"totalSize", totalSize,
		"elapsed", elapsed,
	)

	output := fmt.Sprintf("reindexed: %d files (%s) in %s",
		indexedCount, formatFileSize(totalSize), elapsed)

	return textResult(output), nil, nil
}
