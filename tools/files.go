package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tbalint/repovector-mcp/syncer"
)

// FilesArgs defines the input parameters for the repovector_files tool.
type FilesArgs struct {
	Pattern    string `json:"pattern" jsonschema:"Glob pattern to match tracked files (e.g. **/*.ts or src/**/*.go)"`
	NameOnly   bool   `json:"nameOnly,omitempty" jsonschema:"If true return only file paths without metadata"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"Maximum number of results to return (default 50)"`
}

// FilesHandler holds the dependencies for the files tool.
type FilesHandler struct {
	Records *syncer.Records
	Logger  *slog.Logger
}

// Handle processes a repovector_files request.
func (h *FilesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args FilesArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	if args.Pattern == "" {
		h.Logger.Warn("repovector_files called with empty pattern")
		return errorResult("Error: pattern parameter is required"), nil, nil
	}

	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	paths := h.Records.Glob(args.Pattern)
	if len(paths) > maxResults {
		paths = paths[:maxResults]
	}

	h.Logger.Info("repovector_files",
		"pattern", args.Pattern,
		"results", len(paths),
		"elapsed", time.Since(start),
	)

	return textResult(FormatFileList(h.Records, paths, args.NameOnly)), nil, nil
}
