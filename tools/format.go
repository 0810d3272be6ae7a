package tools

import (
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tbalint/repovector-mcp/syncer"
	"github.com/tbalint/repovector-mcp/vector"
)

// textResult wraps plain text in a tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// errorResult wraps an error message in a tool result flagged as an error.
func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// FormatSearchResults formats chunk search results as human-readable text,
// one block per chunk with its source path, score, and fragment.
func FormatSearchResults(results []vector.SearchResult) string {
	if len(results) == 0 {
		return "No matches found."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Found %d matching chunks:\n\n", len(results)))

	for i, result := range results {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(fmt.Sprintf("── %s (%s, score %.3f) ──\n",
			result.RelativePath, result.Language, result.Score))
		if result.Fragment != "" {
			builder.WriteString(fmt.Sprintf("  %s\n", result.Fragment))
		}
	}

	return builder.String()
}

// FormatFileList formats tracked file paths as human-readable text.
func FormatFileList(records *syncer.Records, paths []string, nameOnly bool) string {
	if len(paths) == 0 {
		return "No files matched."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Found %d files:\n\n", len(paths)))

	for _, path := range paths {
		if nameOnly {
			builder.WriteString(path)
			builder.WriteString("\n")
			continue
		}
		record, ok := records.Get(path)
		if !ok {
			builder.WriteString(fmt.Sprintf("  %s\n", path))
			continue
		}
		builder.WriteString(fmt.Sprintf("  %s  (%s, %s, %d chunks)\n",
			path,
			record.Language,
			formatFileSize(record.SizeBytes),
			len(record.VectorIDs),
		))
	}

	return builder.String()
}

// formatFileSize converts bytes to a human-readable string.
func formatFileSize(bytes int64) string {
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	case bytes >= 1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
