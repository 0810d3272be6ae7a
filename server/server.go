package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tbalint/repovector-mcp/tools"
)

// Setup creates and configures the MCP server with all tool registrations.
func Setup(
	searchHandler *tools.SearchHandler,
	filesHandler *tools.FilesHandler,
	statusHandler *tools.StatusHandler,
	reindexHandler *tools.ReindexHandler,
) *mcp.Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "repovector-mcp",
			Version: "0.3.0",
		},
		&mcp.ServerOptions{
			Instructions: `This server keeps a semantic chunk index of the project synchronized with the working tree. The index updates automatically when files change (via filesystem watcher), honoring the project's ignore rules.

Tool guidance:
- Use repovector_search to find code and docs by meaning or keyword; it searches indexed chunks, not raw lines
- Use repovector_files to list which files are currently tracked by the index
- Use repovector_status to inspect index health: tracked files, stored vectors, languages, memory, uptime
- Use repovector_reindex only when the index looks stale; it rebuilds everything from scratch`,
		},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "repovector_search",
		Description: `Search indexed file chunks. Returns the best-matching chunks with their source paths and score.

Query formats:
  - Plain text: word-level matching (e.g., "handleRequest")
  - "quoted text": exact phrase matching (e.g., "\"func main\"")
  - /regex/: regular expression matching (e.g., "/func\s+\w+Handler/")`,
	}, searchHandler.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "repovector_files",
		Description: `List tracked files by glob pattern.

Pattern examples:
  - "**/*.go" - all Go files
  - "src/**/*.ts" - TypeScript files under src/
  - "**/test_*.py" - Python test files
  - "*.json" - JSON files in root only`,
	}, filesHandler.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "repovector_status",
		Description: "Show index status: tracked files, stored vectors, size, languages, memory usage, and uptime.",
	}, statusHandler.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "repovector_reindex",
		Description: "Force a full re-index of the project. Clears existing vectors and rebuilds from scratch.",
	}, reindexHandler.Handle)

	return mcpServer
}
