package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/heefoo/codeoracle/internal/daemon"
)

func newWatchCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "watch [dir]...",
		Short: "Re-analyze files as they change",
		Long: `Watch registers each directory (default: the current directory) recursively
and re-analyzes supported files after they settle. One event is written to
stdout per change: analyzed, removed or error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			sink, err := eventPrinter(cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			return a.watch(cmd.Context(), args, sink)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "jsonl", "event format: jsonl or text")
	return cmd
}

// watch blocks until ctx is done.
func (a *app) watch(ctx context.Context, dirs []string, sink daemon.Sink) error {
	idx, err := a.newIndexer()
	if err != nil {
		return err
	}
	w, err := daemon.NewWatcher(daemon.WatcherConfig{
		Indexer:          idx,
		Logger:           a.logger,
		ExcludePatterns:  a.cfg.Scan.ExcludePatterns,
		DebounceMs:       a.cfg.Watcher.DebounceMs,
		AnalyzeTimeoutMs: a.cfg.Watcher.AnalyzeTimeoutMs,
		Sink:             sink,
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Stop()

	a.logger.Info("watching", "dirs", dirs, "debounce_ms", a.cfg.Watcher.DebounceMs)
	err = w.Watch(ctx, dirs)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func eventPrinter(out io.Writer, format string) (daemon.Sink, error) {
	var mu sync.Mutex
	switch format {
	case "jsonl":
		encoder := json.NewEncoder(out)
		return func(e daemon.Event) {
			mu.Lock()
			defer mu.Unlock()
			encoder.Encode(e)
		}, nil
	case "text":
		return func(e daemon.Event) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(out, formatEvent(e))
		}, nil
	default:
		return nil, fmt.Errorf("unknown event format %q (want jsonl or text)", format)
	}
}

func formatEvent(e daemon.Event) string {
	ts := e.At.Format("15:04:05")
	switch e.Kind {
	case daemon.EventAnalyzed:
		rec := e.Record
		return fmt.Sprintf("%s analyzed %s [%s] functions=%d classes=%d imports=%d lines=%d",
			ts, e.Path, rec.Language, rec.FunctionCount(), rec.ClassCount(), rec.ImportCount(), rec.LineCount)
	case daemon.EventError:
		return fmt.Sprintf("%s error    %s: %s", ts, e.Path, e.Error)
	default:
		return fmt.Sprintf("%s %-8s %s", ts, e.Kind, e.Path)
	}
}
