package ignore

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule is a single parsed exclusion pattern, scoped to the directory whose
// ignore file defined it. Rules are immutable once parsed.
type Rule struct {
	Pattern string // pattern with '!', leading '/' and trailing '/' stripped
	Negated bool   // '!' prefix: a match re-includes the path
	Anchored bool  // '/' prefix: must match from the origin directory
	DirOnly bool   // '/' suffix: matches the named directory and its contents only
	Origin  string // directory (relative to root, forward slashes) of the defining file; "" for root
}

// ParseRule parses one line of an ignore file. The second return value is
// false for blank lines and comments.
func ParseRule(line string, origin string) (Rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Rule{}, false
	}

	rule := Rule{Origin: strings.Trim(path.Clean("/"+origin), "/")}
	if rule.Origin == "." {
		rule.Origin = ""
	}

	if strings.HasPrefix(line, "!") {
		rule.Negated = true
		line = strings.TrimSpace(line[1:])
	}
	if strings.HasSuffix(line, "/") {
		rule.DirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		rule.Anchored = true
		line = strings.TrimPrefix(line, "/")
	}

	rule.Pattern = line
	if rule.Pattern == "" {
		return Rule{}, false
	}
	if !doublestar.ValidatePattern(rule.Pattern) {
		return Rule{}, false
	}
	return rule, true
}

// AppliesTo reports whether relPath (relative to the repository root) is
// equal to, or nested under, the rule's origin directory.
func (r Rule) AppliesTo(relPath string) bool {
	if r.Origin == "" {
		return true
	}
	return relPath == r.Origin || strings.HasPrefix(relPath, r.Origin+"/")
}

// Depth returns the nesting depth of the rule's origin directory. Root-level
// rules have depth zero.
func (r Rule) Depth() int {
	if r.Origin == "" {
		return 0
	}
	return strings.Count(r.Origin, "/") + 1
}

// Matches reports whether the rule's pattern matches relPath. relPath must be
// relative to the repository root with forward slashes. The negation flag is
// not consulted here; precedence is handled by RuleSet.Match.
func (r Rule) Matches(relPath string) bool {
	rel := relPath
	if r.Origin != "" {
		if !r.AppliesTo(relPath) {
			return false
		}
		rel = strings.TrimPrefix(strings.TrimPrefix(relPath, r.Origin), "/")
		if rel == "" {
			// The origin directory itself is never matched by its own rules.
			return false
		}
	}

	// A pattern can match the path itself or any of its parent directories:
	// ignoring a directory ignores everything beneath it. Directory-only
	// patterns match parents only, so a plain file with the same name stays.
	if !r.DirOnly && r.matchTarget(rel) {
		return true
	}
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' && r.matchTarget(rel[:i]) {
			return true
		}
	}
	return false
}

// matchTarget matches the pattern against one candidate path.
func (r Rule) matchTarget(target string) bool {
	if r.Anchored {
		ok, err := doublestar.Match(r.Pattern, target)
		return err == nil && ok
	}
	if strings.Contains(r.Pattern, "/") {
		if ok, err := doublestar.Match(r.Pattern, target); err == nil && ok {
			return true
		}
		ok, err := doublestar.Match("**/"+r.Pattern, target)
		return err == nil && ok
	}
	// Bare name: matches the corresponding path component at any depth.
	ok, err := doublestar.Match(r.Pattern, path.Base(target))
	return err == nil && ok
}
