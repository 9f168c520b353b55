package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heefoo/codeoracle/internal/config"
	"github.com/heefoo/codeoracle/internal/extractor"
	"github.com/heefoo/codeoracle/internal/indexer"
	"github.com/heefoo/codeoracle/internal/logging"
	"github.com/heefoo/codeoracle/internal/metrics"
)

var (
	// Version information - set via ldflags at build time
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what the persistent flags resolve to.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "codeoracle",
		Short: "Lightweight structural analysis of source files",
		Long: `codeoracle classifies source files by suffix and extracts a best-effort
inventory of functions, classes and imports using lexical patterns.

It can analyze files and directories once, watch directories for changes,
or serve the analysis as MCP tools over stdio or HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: .codeoracle/config.toml, then $HOME/.codeoracle/config.toml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newLanguagesCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	a.cfg = cfg
	a.logger = logging.New(cfg.Log, cmd.ErrOrStderr(), cmd.Name())
	a.metrics = metrics.New()

	for _, w := range config.Validate(cfg) {
		a.logger.Warn("config", "warning", w)
	}
	return nil
}

func (a *app) newExtractor() *extractor.Extractor {
	return extractor.New(
		extractor.WithClassifier(extractor.NewClassifier(a.cfg.SuffixTable())),
		extractor.WithLogger(a.logger),
	)
}

func (a *app) newIndexer() (*indexer.Indexer, error) {
	maxBytes, err := a.cfg.MaxFileBytes()
	if err != nil {
		return nil, fmt.Errorf("invalid max_file_size: %w", err)
	}
	return indexer.New(indexer.Config{
		Extractor:       a.newExtractor(),
		Logger:          a.logger,
		Metrics:         a.metrics,
		ExcludePatterns: a.cfg.Scan.ExcludePatterns,
		Workers:         a.cfg.Scan.Workers,
		MaxFileBytes:    maxBytes,
		IncludeUnknown:  a.cfg.Scan.IncludeUnknown,
	}), nil
}
