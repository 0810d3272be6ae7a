package ignore

// defaultRuleLines are always loaded ahead of any ignore file found in the
// tree: version-control metadata and the tool's own state never belong in
// the index.
var defaultRuleLines = []string{
	".git/",
	".svn/",
	".hg/",
	".repovector/",
	"repovector-mcp.log",
}

// vcsMetadataDirs are directory names skipped outright during traversal,
// before any rule evaluation.
var vcsMetadataDirs = map[string]bool{
	".git": true,
	".svn": true,
	".hg":  true,
}

// IsVCSMetadataDir reports whether name is a version-control metadata
// directory that traversal skips without consulting the rule set.
func IsVCSMetadataDir(name string) bool {
	return vcsMetadataDirs[name]
}

// defaultRules parses the built-in rule lines as root-level rules.
func defaultRules() []Rule {
	rules := make([]Rule, 0, len(defaultRuleLines))
	for _, line := range defaultRuleLines {
		if rule, ok := ParseRule(line, ""); ok {
			rules = append(rules, rule)
		}
	}
	return rules
}
