package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tbalint/repovector-mcp/ignore"
	"github.com/tbalint/repovector-mcp/register"
	"github.com/tbalint/repovector-mcp/scan"
	"github.com/tbalint/repovector-mcp/server"
	"github.com/tbalint/repovector-mcp/splitter"
	"github.com/tbalint/repovector-mcp/syncer"
	"github.com/tbalint/repovector-mcp/tools"
	"github.com/tbalint/repovector-mcp/vector"
	"github.com/tbalint/repovector-mcp/watcher"
)

// excludePatterns is a repeatable CLI flag for custom ignore patterns.
type excludePatterns []string

func (e *excludePatterns) String() string { return strings.Join(*e, ", ") }
func (e *excludePatterns) Set(value string) error {
	*e = append(*e, value)
	return nil
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "register" {
		if err := register.Run("repovector", os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var rootDir string
	var maxFileSizeBytes int64
	var maxResults int
	var batchSize int
	var batchWait time.Duration
	var coalesceWindow time.Duration
	var queueCapacity int
	var verifyInterval time.Duration
	var chunkSize int
	var chunkOverlap int
	var logLevel string
	var logFile string
	var excludes excludePatterns

	flag.StringVar(&rootDir, "root", "", "Project root directory (default: current working directory)")
	flag.Var(&excludes, "exclude", "Extra ignore pattern (repeatable)")
	flag.Int64Var(&maxFileSizeBytes, "max-file-size", 1024*1024, "Maximum file size in bytes (default: 1MB)")
	flag.IntVar(&maxResults, "max-results", 10, "Default max search results (default: 10)")
	flag.IntVar(&batchSize, "batch-size", 10, "Events processed per batch (default: 10)")
	flag.DurationVar(&batchWait, "batch-wait", time.Second, "Max wait before a partial batch is processed (default: 1s)")
	flag.DurationVar(&coalesceWindow, "coalesce-window", 100*time.Millisecond, "Window for coalescing bursts of events per path (default: 100ms)")
	flag.IntVar(&queueCapacity, "queue-capacity", 100, "Bounded event queue capacity (default: 100)")
	flag.DurationVar(&verifyInterval, "verify-interval", 5*time.Minute, "Interval between consistency checks, 0 disables (default: 5m)")
	flag.IntVar(&chunkSize, "chunk-size", 1000, "Target chunk size in bytes (default: 1000)")
	flag.IntVar(&chunkOverlap, "chunk-overlap", 200, "Overlap between adjacent chunks in bytes (default: 200)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	flag.StringVar(&logFile, "log-file", "", "Log file path (default: repovector-mcp.log in the root)")
	flag.Parse()

	if rootDir == "" {
		var err error
		rootDir, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
			os.Exit(1)
		}
	}
	rootDir, _ = filepath.Abs(rootDir)

	if info, err := os.Stat(rootDir); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "Error: root %s is not a directory\n", rootDir)
		os.Exit(1)
	}

	if logFile == "" {
		logFile = filepath.Join(rootDir, "repovector-mcp.log")
	}

	// Never log to stdout, that channel belongs to MCP stdio.
	logger := setupLogger(logLevel, logFile)

	logger.Info("starting repovector-mcp",
		"root", rootDir,
		"maxFileSize", maxFileSizeBytes,
		"coalesceWindow", coalesceWindow,
		"batchSize", batchSize,
	)

	startTime := time.Now()

	matcher := ignore.NewMatcher(ignore.MatcherOptions{
		RootDir:          rootDir,
		CustomPatterns:   excludes,
		MaxFileSizeBytes: maxFileSizeBytes,
		Logger:           logger,
	})

	store, err := vector.NewBleveStore()
	if err != nil {
		logger.Error("failed to create vector store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	fileWatcher, err := watcher.New(watcher.Options{
		RootDir:        rootDir,
		CoalesceWindow: coalesceWindow,
		QueueCapacity:  queueCapacity,
		Checker:        matcher,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("failed to subscribe to filesystem notifications", "error", err)
		os.Exit(1)
	}
	go fileWatcher.Start()

	scanner := scan.NewScanner(rootDir, matcher, logger)
	records := syncer.NewRecords()
	indexSync := syncer.New(
		rootDir,
		syncer.Config{
			BatchSize: batchSize,
			BatchWait: batchWait,
		},
		store,
		splitter.New(chunkSize, chunkOverlap),
		scanner,
		matcher,
		records,
		fileWatcher,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncErr := make(chan error, 1)
	go func() { syncErr <- indexSync.Start(ctx) }()
	defer indexSync.Stop()

	if verifyInterval > 0 {
		go indexSync.RunPeriodicVerify(ctx, verifyInterval)
	}

	searchHandler := &tools.SearchHandler{
		Store:             store,
		DefaultMaxResults: maxResults,
		Logger:            logger,
	}
	filesHandler := &tools.FilesHandler{Records: records, Logger: logger}
	statusHandler := &tools.StatusHandler{
		Records:   records,
		Store:     store,
		StartTime: startTime,
		RootDir:   rootDir,
		Logger:    logger,
	}
	reindexHandler := &tools.ReindexHandler{
		Logger:    logger,
		DoReindex: indexSync.Reindex,
	}

	mcpServer := server.Setup(searchHandler, filesHandler, statusHandler, reindexHandler)

	logger.Info("MCP server starting on stdio")
	if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		logger.Error("MCP server error", "error", err)
		os.Exit(1)
	}

	select {
	case err := <-syncErr:
		if err != nil {
			logger.Error("synchronizer error", "error", err)
			os.Exit(1)
		}
	default:
	}
}

// setupLogger creates an slog.Logger writing to stderr or a file.
func setupLogger(level string, logFile string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var writer *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v, falling back to stderr\n", logFile, err)
			writer = os.Stderr
		} else {
			writer = f
		}
	} else {
		writer = os.Stderr
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}
