package ignore

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"
)

// IgnoreFileName is the per-directory exclusion-rule file the matcher loads.
const IgnoreFileName = ".gitignore"

// Matcher decides whether a path is excluded from indexing. It loads every
// ignore file found anywhere under the root (not just the root one), always
// prepends the default rules, and evaluates them with last-match-wins
// precedence.
// Thread-safe: Reload() acquires a write lock, the query methods acquire a
// read lock.
type Matcher struct {
	mu               sync.RWMutex
	rootDir          string
	rules            *RuleSet
	customPatterns   []string
	maxFileSizeBytes int64
	logger           *slog.Logger
}

// MatcherOptions configures the ignore matcher.
type MatcherOptions struct {
	RootDir          string
	CustomPatterns   []string
	MaxFileSizeBytes int64
	Logger           *slog.Logger
}

// NewMatcher creates a matcher and loads all ignore files under the root.
func NewMatcher(options MatcherOptions) *Matcher {
	matcher := &Matcher{
		rootDir:          options.RootDir,
		customPatterns:   options.CustomPatterns,
		maxFileSizeBytes: options.MaxFileSizeBytes,
		logger:           options.Logger,
	}
	if matcher.maxFileSizeBytes <= 0 {
		matcher.maxFileSizeBytes = 1024 * 1024 // 1MB default
	}
	if matcher.logger == nil {
		matcher.logger = slog.Default()
	}

	matcher.rules = matcher.loadRules()
	return matcher
}

// Match reports whether the path, relative to the root, is excluded.
func (m *Matcher) Match(relPath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rules.Match(relPath)
}

// ShouldIgnore reports whether an absolute path is excluded from indexing.
func (m *Matcher) ShouldIgnore(absolutePath string) bool {
	relativePath, err := filepath.Rel(m.rootDir, absolutePath)
	if err != nil {
		relativePath = absolutePath
	}
	return m.Match(filepath.ToSlash(relativePath))
}

// ShouldIgnoreDir reports whether a directory should be skipped entirely
// during traversal.
func (m *Matcher) ShouldIgnoreDir(absolutePath string) bool {
	if IsVCSMetadataDir(filepath.Base(absolutePath)) {
		return true
	}
	return m.ShouldIgnore(absolutePath)
}

// IsFileTooLarge reports whether a file exceeds the configured size limit.
func (m *Matcher) IsFileTooLarge(fileSize int64) bool {
	return fileSize > m.maxFileSizeBytes
}

// MaxFileSizeBytes returns the configured maximum file size.
func (m *Matcher) MaxFileSizeBytes() int64 {
	return m.maxFileSizeBytes
}

// RuleCount returns the number of loaded rules, defaults included.
func (m *Matcher) RuleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rules.Len()
}

// Reload re-reads every ignore file from disk. Used when the watcher sees a
// change to an ignore file.
func (m *Matcher) Reload() {
	rules := m.loadRules()
	m.mu.Lock()
	m.rules = rules
	m.mu.Unlock()
}

// loadRules gathers defaults, custom patterns, and every ignore file found
// under the root into one ordered rule set.
func (m *Matcher) loadRules() *RuleSet {
	rules := defaultRules()

	for _, pattern := range m.customPatterns {
		if rule, ok := ParseRule(pattern, ""); ok {
			rules = append(rules, rule)
		}
	}

	filepath.WalkDir(m.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			m.logger.Warn("ignore: cannot read directory entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != m.rootDir && IsVCSMetadataDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != IgnoreFileName {
			return nil
		}
		origin, _ := filepath.Rel(m.rootDir, filepath.Dir(path))
		origin = filepath.ToSlash(origin)
		if origin == "." {
			origin = ""
		}
		parsed, err := parseIgnoreFile(path, origin)
		if err != nil {
			m.logger.Warn("ignore: skipping unreadable ignore file", "path", path, "error", err)
			return nil
		}
		rules = append(rules, parsed...)
		return nil
	})

	return NewRuleSet(rules)
}

// parseIgnoreFile reads and parses a single ignore file. Content that is not
// valid UTF-8 gets a Latin-1 fallback decode before the file is given up on.
func parseIgnoreFile(path string, origin string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	content := string(data)
	if !utf8.Valid(data) {
		content = decodeLatin1(data)
	}

	var rules []Rule
	for _, line := range strings.Split(content, "\n") {
		if rule, ok := ParseRule(line, origin); ok {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

// decodeLatin1 maps each byte to the Unicode code point of the same value.
func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
