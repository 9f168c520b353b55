package util

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// MatchPattern compiles pattern and matches it against name.
// Invalid patterns are logged and never match.
func MatchPattern(pattern, name string) bool {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		slog.Default().Warn("invalid pattern, it will not match any files", "pattern", pattern, "error", err)
		return false
	}
	return g.Match(name)
}

type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// PatternSet is a compiled list of exclude patterns shared by the indexer
// and the watcher. It is immutable and safe for concurrent use.
type PatternSet struct {
	patterns []compiledPattern
}

// CompilePatterns compiles patterns, logging and dropping the invalid ones.
func CompilePatterns(patterns []string, logger *slog.Logger) *PatternSet {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PatternSet{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			logger.Warn("invalid exclude pattern, it will not match any files", "pattern", p, "error", err)
			continue
		}
		s.patterns = append(s.patterns, compiledPattern{pattern: p, glob: g})
		// "**/x" should also match x at the root
		if rest := strings.TrimPrefix(p, "**/"); rest != p && rest != "" {
			if rg, err := glob.Compile(rest, '/'); err == nil {
				s.patterns = append(s.patterns, compiledPattern{pattern: p, glob: rg})
			}
		}
	}
	return s
}

// Patterns returns the source text of the valid patterns.
func (s *PatternSet) Patterns() []string {
	var out []string
	seen := make(map[string]bool)
	for _, cp := range s.patterns {
		if !seen[cp.pattern] {
			seen[cp.pattern] = true
			out = append(out, cp.pattern)
		}
	}
	return out
}

// Match reports whether relPath is excluded. A path is excluded when the
// whole path, or any single segment of it, matches a pattern, so "vendor"
// excludes "a/vendor/b.go".
func (s *PatternSet) Match(relPath string) bool {
	if s == nil || len(s.patterns) == 0 {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	relPath = strings.TrimPrefix(relPath, "./")
	if relPath == "" || relPath == "." {
		return false
	}

	for _, cp := range s.patterns {
		if cp.glob.Match(relPath) {
			return true
		}
	}
	for _, seg := range strings.Split(relPath, "/") {
		if seg == "" {
			continue
		}
		for _, cp := range s.patterns {
			if cp.glob.Match(seg) {
				return true
			}
		}
	}
	return false
}
