package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/heefoo/codeoracle/internal/extractor"
	"github.com/heefoo/codeoracle/internal/indexer"
	"github.com/heefoo/codeoracle/internal/report"
)

type analyzeOptions struct {
	format         string
	workers        int
	includeUnknown bool
	progress       bool
	strict         bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <path>...",
		Short: "Analyze files and directories",
		Long: `Analyze extracts functions, classes and imports from each file given, and
from every supported file under each directory given. Directories honour the
configured exclude patterns.

Files that cannot be read or decoded are reported and do not stop the run;
use --strict to exit non-zero when any file failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("workers") {
				a.cfg.Scan.Workers = opts.workers
			}
			if cmd.Flags().Changed("include-unknown") {
				a.cfg.Scan.IncludeUnknown = opts.includeUnknown
			}
			idx, err := a.newIndexer()
			if err != nil {
				return err
			}

			result, err := runAnalyze(cmd, idx, args, opts)
			if err != nil {
				return err
			}
			if err := report.Write(cmd.OutOrStdout(), opts.format, result); err != nil {
				return err
			}
			if opts.strict && result.Summary.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", result.Summary.Failed, len(result.Files))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", report.FormatJSON, "output format: json, jsonl, yaml, table")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "number of files analyzed in parallel")
	cmd.Flags().BoolVar(&opts.includeUnknown, "include-unknown", false, "also analyze files whose suffix is not recognised")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show a progress bar on stderr")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit non-zero when any file fails")
	return cmd
}

// runAnalyze merges the results of every path argument into one result, in
// argument order.
func runAnalyze(cmd *cobra.Command, idx *indexer.Indexer, paths []string, opts *analyzeOptions) (*indexer.Result, error) {
	ctx := cmd.Context()
	merged := &indexer.Result{RunID: uuid.NewString()}
	skipped := 0

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			fr := indexer.FileResult{Path: path}
			rec, err := idx.AnalyzeFile(ctx, path)
			var fault *extractor.FaultError
			switch {
			case err == nil:
				fr.Record = &rec
			case errors.As(err, &fault):
				fr.Record = &rec
				fr.Error = err.Error()
			default:
				fr.Error = err.Error()
			}
			merged.Files = append(merged.Files, fr)
			continue
		}

		var progress *progressReporter
		if opts.progress {
			progress = newProgressReporter(cmd.ErrOrStderr(), path)
		}
		result, err := idx.AnalyzeDirectory(ctx, path, progress.Update)
		progress.Finish()
		if err != nil {
			return nil, err
		}
		if len(paths) == 1 {
			return result, nil
		}
		merged.Files = append(merged.Files, result.Files...)
		skipped += result.Summary.Skipped
	}

	merged.Summary = indexer.Summarize(merged.Files)
	merged.Summary.Skipped = skipped
	return merged, nil
}
