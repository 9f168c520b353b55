// Package report renders analysis results for humans and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/heefoo/codeoracle/internal/indexer"
)

const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// Formats lists the accepted output formats.
func Formats() []string {
	return []string{FormatJSON, FormatJSONL, FormatYAML, FormatTable}
}

// Write renders result in format.
//
// json writes the records as one indented array, jsonl writes one record per
// line, yaml writes the whole result including failures and the summary, and
// table writes a per-file table followed by a per-language summary.
func Write(w io.Writer, format string, result *indexer.Result) error {
	if result == nil {
		result = &indexer.Result{}
	}
	switch strings.ToLower(format) {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result.Records())
	case FormatJSONL:
		encoder := json.NewEncoder(w)
		for _, rec := range result.Records() {
			if err := encoder.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(result); err != nil {
			return err
		}
		return encoder.Close()
	case FormatTable:
		return writeTable(w, result)
	default:
		return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
}

func writeTable(w io.Writer, result *indexer.Result) error {
	files := table.NewWriter()
	files.SetStyle(table.StyleLight)
	files.AppendHeader(table.Row{"File", "Language", "Strategy", "Functions", "Classes", "Imports", "Lines", "Size", "Error"})

	for _, f := range result.Files {
		path := displayPath(result.Directory, f.Path)
		if f.Record == nil {
			files.AppendRow(table.Row{path, "", "", "", "", "", "", "", f.Error})
			continue
		}
		rec := f.Record
		files.AppendRow(table.Row{
			path,
			string(rec.Language),
			rec.Strategy,
			rec.FunctionCount(),
			rec.ClassCount(),
			rec.ImportCount(),
			rec.LineCount,
			humanize.IBytes(uint64(rec.SizeBytes)),
			f.Error,
		})
	}
	files.AppendFooter(table.Row{fmt.Sprintf("Total: %d files", len(result.Files))})

	s := result.Summary
	langs := table.NewWriter()
	langs.SetStyle(table.StyleLight)
	langs.AppendHeader(table.Row{"Language", "Files", "Functions", "Classes", "Imports", "Lines", "Size"})
	for _, ls := range s.Languages {
		langs.AppendRow(table.Row{
			ls.Language,
			ls.Files,
			ls.Functions,
			ls.Classes,
			ls.Imports,
			humanize.Comma(int64(ls.Lines)),
			humanize.IBytes(uint64(ls.Bytes)),
		})
	}
	langs.AppendFooter(table.Row{
		"Total",
		s.Files,
		s.Functions,
		s.Classes,
		s.Imports,
		humanize.Comma(int64(s.Lines)),
		humanize.IBytes(uint64(s.Bytes)),
	})

	_, err := fmt.Fprintf(w, "%s\n\n%s\n%s\n", files.Render(), langs.Render(), footnote(s))
	return err
}

func footnote(s indexer.Summary) string {
	parts := []string{fmt.Sprintf("%d analyzed", s.Files)}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.Faults > 0 {
		parts = append(parts, fmt.Sprintf("%d recovered from faults", s.Faults))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	return strings.Join(parts, ", ")
}

func displayPath(dir, path string) string {
	if dir == "" {
		return path
	}
	if rel, err := filepath.Rel(dir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}
