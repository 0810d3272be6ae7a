package language

import (
	"path/filepath"
	"strings"
)

// extensionLanguages maps lowercased file extensions (without dot) to the
// language name carried in chunk metadata and the status breakdown.
var extensionLanguages = map[string]string{
	"go":   "Go",
	"py":   "Python",
	"pyi":  "Python",
	"js":   "JavaScript",
	"jsx":  "JavaScript",
	"mjs":  "JavaScript",
	"ts":   "TypeScript",
	"tsx":  "TypeScript",
	"rs":   "Rust",
	"java": "Java",
	"kt":   "Kotlin",
	"c":    "C",
	"h":    "C",
	"cpp":  "C++",
	"cc":   "C++",
	"hpp":  "C++",
	"cs":   "C#",
	"rb":   "Ruby",
	"php":  "PHP",
	"sh":   "Shell",
	"bash": "Shell",
	"zsh":  "Shell",
	"html": "HTML",
	"htm":  "HTML",
	"css":  "CSS",
	"scss": "SCSS",
	"json": "JSON",
	"yaml": "YAML",
	"yml":  "YAML",
	"toml": "TOML",
	"xml":  "XML",
	"md":   "Markdown",
	"rst":  "reStructuredText",
	"sql":  "SQL",
	"tf":   "Terraform",
	"lua":  "Lua",
	"ex":   "Elixir",
	"exs":  "Elixir",
	"hs":   "Haskell",
	"zig":  "Zig",
	"vue":  "Vue",
	"txt":  "Text",
	"csv":  "CSV",
}

// wellKnownFiles covers extensionless files recognized by name.
var wellKnownFiles = map[string]string{
	"makefile":    "Makefile",
	"gnumakefile": "Makefile",
	"dockerfile":  "Dockerfile",
	"gemfile":     "Ruby",
	"rakefile":    "Ruby",
	".gitignore":  "Git Config",
	".env":        "Env",
}

// Detect returns the language name for a file path based on its extension,
// or "Unknown" when nothing is recognized.
func Detect(filePath string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))
	if ext == "" {
		if lang, ok := wellKnownFiles[strings.ToLower(filepath.Base(filePath))]; ok {
			return lang
		}
		return "Unknown"
	}
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return "Unknown"
}
