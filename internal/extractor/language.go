package extractor

import (
	"sort"
	"strings"
)

type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangCPP        Language = "cpp"
	LangGo         Language = "go"
	LangUnknown    Language = "unknown"
)

// DefaultSuffixes returns the built-in suffix table. The returned map is a
// fresh copy and may be modified by the caller.
func DefaultSuffixes() map[string]Language {
	return map[string]Language{
		".py":   LangPython,
		".js":   LangJavaScript,
		".ts":   LangTypeScript,
		".java": LangJava,
		".cpp":  LangCPP,
		".go":   LangGo,
	}
}

type suffixEntry struct {
	suffix string
	lang   Language
}

// Classifier maps filenames to language tags by suffix. It is immutable
// after construction and safe for concurrent use.
type Classifier struct {
	entries []suffixEntry // longest suffix first
}

// NewClassifier builds a classifier from a suffix table. Suffixes are
// lowercased and given a leading dot if they lack one; entries with an empty
// suffix or language are ignored.
func NewClassifier(table map[string]Language) *Classifier {
	c := &Classifier{entries: make([]suffixEntry, 0, len(table))}
	for suffix, lang := range table {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if suffix == "" || suffix == "." || lang == "" {
			continue
		}
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		c.entries = append(c.entries, suffixEntry{suffix: suffix, lang: lang})
	}
	sort.Slice(c.entries, func(i, j int) bool {
		if len(c.entries[i].suffix) != len(c.entries[j].suffix) {
			return len(c.entries[i].suffix) > len(c.entries[j].suffix)
		}
		return c.entries[i].suffix < c.entries[j].suffix
	})
	return c
}

// Classify returns the language for filename, or LangUnknown.
func (c *Classifier) Classify(filename string) Language {
	name := strings.ToLower(filename)
	for _, e := range c.entries {
		if strings.HasSuffix(name, e.suffix) {
			return e.lang
		}
	}
	return LangUnknown
}

// Suffixes returns a copy of the classifier's table.
func (c *Classifier) Suffixes() map[string]Language {
	out := make(map[string]Language, len(c.entries))
	for _, e := range c.entries {
		out[e.suffix] = e.lang
	}
	return out
}
