package ignore

import (
	"sort"
	"strings"
)

// RuleSet is an ordered collection of rules. Rules are evaluated in order and
// the last applicable match wins, so rules from more deeply nested ignore
// files can override rules defined closer to the root.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet builds a rule set from the given rules, ordered by ascending
// depth of their origin directory. The sort is stable, so rule order within
// one ignore file (and across files at equal depth) follows discovery order.
func NewRuleSet(rules []Rule) *RuleSet {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Depth() < ordered[j].Depth()
	})
	return &RuleSet{rules: ordered}
}

// Match reports whether relPath is excluded by the rule set. It is a pure
// function of the loaded rules: no I/O, deterministic, idempotent.
// relPath must be relative to the repository root; separators are
// normalized here so callers may pass native paths.
func (rs *RuleSet) Match(relPath string) bool {
	relPath = strings.Trim(strings.ReplaceAll(relPath, "\\", "/"), "/")
	if relPath == "" || relPath == "." {
		return false
	}

	ignored := false
	for _, rule := range rs.rules {
		if !rule.AppliesTo(relPath) {
			continue
		}
		if rule.Matches(relPath) {
			ignored = !rule.Negated
		}
	}
	return ignored
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}
