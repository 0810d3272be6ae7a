package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func Test_StatusHandler_ReportsCounts(t *testing.T) {
	records := seededRecords()
	records.Begin("main.go")
	handler := &StatusHandler{
		Records:   records,
		Store:     &stubStore{docs: 4},
		StartTime: time.Now().Add(-90 * time.Second),
		RootDir:   "/tmp/project",
		Logger:    testLogger(),
	}

	result, _, err := handler.Handle(context.Background(), nil, StatusArgs{})
	if err != nil {
		t.Fatal(err)
	}
	output := resultText(t, result)

	for _, want := range []string{
		"Root directory: /tmp/project",
		"Tracked files: 3",
		"In-flight updates: 1",
		"Stored vectors: 4",
		"Go",
		"Markdown",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in status output, got:\n%s", want, output)
		}
	}
}

func Test_FormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.d); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func Test_FormatFileSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}
	for _, tc := range cases {
		if got := formatFileSize(tc.bytes); got != tc.want {
			t.Errorf("formatFileSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}
