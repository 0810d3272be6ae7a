package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/tbalint/repovector-mcp/syncer"
)

func seededRecords() *syncer.Records {
	records := syncer.NewRecords()
	records.Set("main.go", syncer.Record{Language: "Go", SizeBytes: 120, VectorIDs: []string{"v1"}})
	records.Set("src/app.go", syncer.Record{Language: "Go", SizeBytes: 2048, VectorIDs: []string{"v2", "v3"}})
	records.Set("docs/readme.md", syncer.Record{Language: "Markdown", SizeBytes: 64, VectorIDs: []string{"v4"}})
	return records
}

func Test_FilesHandler_EmptyPattern(t *testing.T) {
	handler := &FilesHandler{Records: seededRecords(), Logger: testLogger()}

	result, _, err := handler.Handle(context.Background(), nil, FilesArgs{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error result for empty pattern")
	}
}

func Test_FilesHandler_GlobMatch(t *testing.T) {
	handler := &FilesHandler{Records: seededRecords(), Logger: testLogger()}

	result, _, err := handler.Handle(context.Background(), nil, FilesArgs{Pattern: "**/*.go"})
	if err != nil {
		t.Fatal(err)
	}
	output := resultText(t, result)
	if !strings.Contains(output, "main.go") || !strings.Contains(output, "src/app.go") {
		t.Errorf("expected both go files, got:\n%s", output)
	}
	if strings.Contains(output, "readme.md") {
		t.Errorf("markdown file should not match, got:\n%s", output)
	}
	if !strings.Contains(output, "2 chunks") {
		t.Errorf("expected chunk counts in metadata, got:\n%s", output)
	}
}

func Test_FilesHandler_NameOnly(t *testing.T) {
	handler := &FilesHandler{Records: seededRecords(), Logger: testLogger()}

	result, _, err := handler.Handle(context.Background(), nil, FilesArgs{Pattern: "**/*.md", NameOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	output := resultText(t, result)
	if !strings.Contains(output, "docs/readme.md") {
		t.Errorf("expected path in output, got:\n%s", output)
	}
	if strings.Contains(output, "Markdown") {
		t.Errorf("nameOnly output must not carry metadata, got:\n%s", output)
	}
}

func Test_FilesHandler_MaxResults(t *testing.T) {
	handler := &FilesHandler{Records: seededRecords(), Logger: testLogger()}

	result, _, err := handler.Handle(context.Background(), nil, FilesArgs{Pattern: "**/*", MaxResults: 1})
	if err != nil {
		t.Fatal(err)
	}
	output := resultText(t, result)
	if !strings.Contains(output, "Found 1 files") {
		t.Errorf("expected result truncated to 1 file, got:\n%s", output)
	}
}

func Test_FilesHandler_NoMatch(t *testing.T) {
	handler := &FilesHandler{Records: seededRecords(), Logger: testLogger()}

	result, _, err := handler.Handle(context.Background(), nil, FilesArgs{Pattern: "**/*.rs"})
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, result); got != "No files matched." {
		t.Errorf("unexpected output %q", got)
	}
}
