package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/pbs-retrieval/internal/adapters/mcp"
	"github.com/kirillkom/pbs-retrieval/internal/bootstrap"
	"github.com/kirillkom/pbs-retrieval/internal/observability/logging"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve retrieval tools over MCP on stdin and stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		// stdout carries the protocol, so diagnostics go to stderr.
		logger := logging.New(os.Stderr, currentConfig.ServiceName, currentConfig.LogLevel)

		app, err := bootstrap.New(ctx, currentConfig, logger)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		defer app.Close()

		srv := mcpadapter.NewServer(app.Retriever, app.Analyzer, app.RetrievalDefaults(), logger)
		return srv.ServeStdio(Version)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
