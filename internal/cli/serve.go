package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/recall-mcp/internal/mcp"
	"github.com/dshills/recall-mcp/internal/storage"
)

func newServeCmd(opts *rootOptions, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the MCP server on stdin/stdout. The embedding worker is started in the
background; memories that still lack vectors are queued on startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := a.log.Component("serve")
			logger.Info().
				Str("version", info.Version).
				Str("build_mode", storage.BuildMode).
				Str("driver", storage.DriverName).
				Bool("vector_extension", storage.VectorExtensionAvailable).
				Str("data_dir", a.cfg.DataDir).
				Msg("recall starting")

			if a.cfg.Vector.Enabled {
				if err := a.indexer.Start(context.WithoutCancel(ctx)); err != nil {
					return err
				}
			}

			server := mcp.NewServer(a.svc, a.log.Logger)
			if err := server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
}
