package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/heefoo/codeoracle/internal/daemon"
	"github.com/heefoo/codeoracle/pkg/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port      int
		watchDirs []string
	)

	cmd := &cobra.Command{
		Use:   "serve [stdio|http]",
		Short: "Serve the analysis tools over MCP",
		Long: `Serve exposes analyze_file, detect_language, analyze_path and
list_languages as MCP tools. In http mode the server also answers /health,
/ready and /metrics.

With --watch, the given directories are watched while serving and changes
are logged.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"stdio", "http"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := a.cfg.Server.Mode
			if len(args) == 1 {
				mode = args[0]
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			idx, err := a.newIndexer()
			if err != nil {
				return err
			}
			server := mcp.NewServer(mcp.ServerConfig{
				Indexer: idx,
				Config:  a.cfg,
				Metrics: a.metrics,
				Logger:  a.logger,
				Version: Version,
			})

			g, ctx := errgroup.WithContext(cmd.Context())
			if len(watchDirs) > 0 {
				g.Go(func() error {
					return a.watch(ctx, watchDirs, func(e daemon.Event) {
						a.logger.Debug("watch event", "kind", string(e.Kind), "file", e.Path)
					})
				})
			}

			g.Go(func() error {
				switch mode {
				case "stdio":
					return server.ServeStdio(ctx)
				case "http":
					return server.ServeHTTP(ctx, a.cfg.Server.Port)
				default:
					return fmt.Errorf("unknown mode: %s", mode)
				}
			})
			return g.Wait()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 3003, "HTTP server port")
	cmd.Flags().StringSliceVar(&watchDirs, "watch", nil, "directories to watch while serving")
	return cmd
}
