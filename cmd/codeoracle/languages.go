package main

import (
	"encoding/json"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/heefoo/codeoracle/internal/extractor"
)

type languageRow struct {
	Suffix   string `json:"suffix"`
	Language string `json:"language"`
	Detected string `json:"detected_language"`
	Strategy string `json:"strategy"`
}

func newLanguagesCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List recognised suffixes and their extraction strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := languageRows(a.newExtractor())
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Suffix", "Language", "Detected", "Strategy"})
			for _, r := range rows {
				t.AppendRow(table.Row{r.Suffix, r.Language, r.Detected, r.Strategy})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// languageRows reports a suffix whose language has no dedicated strategy as
// unknown, since its content goes through the fallback.
func languageRows(ex *extractor.Extractor) []languageRow {
	suffixes := ex.Classifier().Suffixes()
	rows := make([]languageRow, 0, len(suffixes))
	for suffix, detected := range suffixes {
		lang := detected
		strategy, dedicated := ex.Table().Lookup(detected)
		if !dedicated {
			lang = extractor.LangUnknown
		}
		rows = append(rows, languageRow{
			Suffix:   suffix,
			Language: string(lang),
			Detected: string(detected),
			Strategy: strategy.Name(),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Suffix < rows[j].Suffix })
	return rows
}
