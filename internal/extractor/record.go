package extractor

import (
	"encoding/json"
	"strings"
)

type FunctionInfo struct {
	Name       string   `json:"name" yaml:"name"`
	Parameters []string `json:"parameters" yaml:"parameters"`
}

type ClassInfo struct {
	Name string `json:"name" yaml:"name"`
}

// Partial is the language-specific part of a record, as produced by a
// strategy.
type Partial struct {
	Functions []FunctionInfo
	Classes   []ClassInfo
	Imports   []string
}

// Record is the complete analysis of one file. Counts are derived from the
// slices and never stored.
type Record struct {
	Path             string         `json:"file_path" yaml:"file_path"`
	Language         Language       `json:"language" yaml:"language"`
	DetectedLanguage Language       `json:"detected_language" yaml:"detected_language"`
	Strategy         string         `json:"strategy" yaml:"strategy"`
	Functions        []FunctionInfo `json:"functions" yaml:"functions"`
	Classes          []ClassInfo    `json:"classes" yaml:"classes"`
	Imports          []string       `json:"imports" yaml:"imports"`
	SizeBytes        int            `json:"size_bytes" yaml:"size_bytes"`
	LineCount        int            `json:"line_count" yaml:"line_count"`
}

func (r Record) FunctionCount() int { return len(r.Functions) }
func (r Record) ClassCount() int    { return len(r.Classes) }
func (r Record) ImportCount() int   { return len(r.Imports) }

// recordView is the wire shape of a Record, counts included.
type recordView struct {
	Path             string         `json:"file_path" yaml:"file_path"`
	Language         Language       `json:"language" yaml:"language"`
	DetectedLanguage Language       `json:"detected_language" yaml:"detected_language"`
	Strategy         string         `json:"strategy" yaml:"strategy"`
	Functions        []FunctionInfo `json:"functions" yaml:"functions"`
	Classes          []ClassInfo    `json:"classes" yaml:"classes"`
	Imports          []string       `json:"imports" yaml:"imports"`
	SizeBytes        int            `json:"size_bytes" yaml:"size_bytes"`
	LineCount        int            `json:"line_count" yaml:"line_count"`
	FunctionCount    int            `json:"function_count" yaml:"function_count"`
	ClassCount       int            `json:"class_count" yaml:"class_count"`
	ImportCount      int            `json:"import_count" yaml:"import_count"`
}

func (r Record) view() recordView {
	return recordView{
		Path:             r.Path,
		Language:         r.Language,
		DetectedLanguage: r.DetectedLanguage,
		Strategy:         r.Strategy,
		Functions:        r.Functions,
		Classes:          r.Classes,
		Imports:          r.Imports,
		SizeBytes:        r.SizeBytes,
		LineCount:        r.LineCount,
		FunctionCount:    r.FunctionCount(),
		ClassCount:       r.ClassCount(),
		ImportCount:      r.ImportCount(),
	}
}

// MarshalJSON emits the record with its derived counts.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.view())
}

// MarshalYAML emits the record with its derived counts.
func (r Record) MarshalYAML() (interface{}, error) {
	return r.view(), nil
}

// newRecord assembles a record from a strategy's partial result and the
// universal metadata of content. Nil slices become empty slices.
func newRecord(path string, detected, lang Language, strategy string, p Partial, content string) Record {
	r := Record{
		Path:             path,
		Language:         lang,
		DetectedLanguage: detected,
		Strategy:         strategy,
		Functions:        p.Functions,
		Classes:          p.Classes,
		Imports:          p.Imports,
		SizeBytes:        len(content),
		LineCount:        CountLines(content),
	}
	if r.Functions == nil {
		r.Functions = []FunctionInfo{}
	}
	for i := range r.Functions {
		if r.Functions[i].Parameters == nil {
			r.Functions[i].Parameters = []string{}
		}
	}
	if r.Classes == nil {
		r.Classes = []ClassInfo{}
	}
	if r.Imports == nil {
		r.Imports = []string{}
	}
	return r
}

// CountLines counts lines separated by \n, \r\n or \r. A trailing line
// terminator does not start a new line, so "" has 0 lines and "a\n" has 1.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	n := 0
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '\n':
			n++
		case '\r':
			n++
			if i+1 < len(content) && content[i+1] == '\n' {
				i++
			}
		}
	}
	last := content[len(content)-1]
	if last != '\n' && last != '\r' {
		n++
	}
	return n
}

// splitLines splits content on \n, \r\n or \r without producing a trailing
// empty line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}
