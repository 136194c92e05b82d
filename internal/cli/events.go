package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pbs-retrieval/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pbs-retrieval/internal/observability/logging"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow retrieval events published on NATS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := logging.New(os.Stderr, currentConfig.ServiceName, currentConfig.LogLevel)
		queue, err := nats.NewWithOptions(currentConfig.NATSURL, currentConfig.NATSSubject, nats.Options{Logger: logger})
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer queue.Close()

		out := cmd.OutOrStdout()
		return queue.SubscribeRetrievals(ctx, func(_ context.Context, data []byte) error {
			_, err := fmt.Fprintln(out, string(data))
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
